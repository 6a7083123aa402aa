package parser

import "github.com/PuerkitoBio/goquery"

const blockSelector = "div.data-block"

// extractBlocks returns every transaction container in document order.
func extractBlocks(doc *goquery.Document) []*goquery.Selection {
	var blocks []*goquery.Selection
	doc.Find(blockSelector).Each(func(_ int, s *goquery.Selection) {
		blocks = append(blocks, s)
	})
	return blocks
}
