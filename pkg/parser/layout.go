package parser

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/yurifrl/kupa/pkg/markup"
	"github.com/yurifrl/kupa/pkg/models"
)

// Layout names a revision of the register's report markup.
type Layout string

const (
	LayoutAuto       Layout = "auto"
	LayoutLabeled    Layout = "labeled"
	LayoutPositional Layout = "positional"
)

// ParseLayout validates a layout name coming from config or flags.
func ParseLayout(s string) (Layout, error) {
	switch l := Layout(strings.ToLower(strings.TrimSpace(s))); l {
	case "", LayoutAuto:
		return LayoutAuto, nil
	case LayoutLabeled, LayoutPositional:
		return l, nil
	default:
		return "", fmt.Errorf("unknown layout %q", s)
	}
}

// variant recovers the layout-specific regions of a block. Tenders are shared
// by every layout.
type variant interface {
	layout() Layout
	header(block *goquery.Selection) map[HeaderLabel]string
	itemRows(block *goquery.Selection) []*goquery.Selection
	decodeItem(row *goquery.Selection) (models.LineItem, error)
	totalsRow(block *goquery.Selection) *goquery.Selection
}

// detectLayout inspects the first headers of the document. Titled header cells
// only exist in the current layout; bare header values mean the legacy one.
func detectLayout(doc *goquery.Document) Layout {
	headers := doc.Find("div.data-block div.trans-header")
	if headers.Find("div.item-title").Length() > 0 {
		return LayoutLabeled
	}
	if headers.Find("span.header-num").Length() > 0 {
		return LayoutPositional
	}
	return LayoutLabeled
}

func variantFor(l Layout) variant {
	if l == LayoutPositional {
		return positionalVariant{}
	}
	return labeledVariant{}
}

// labeledVariant is the current report: titled header pairs, item rows nested
// one level under table-contents, six numeric item columns.
type labeledVariant struct{}

func (labeledVariant) layout() Layout { return LayoutLabeled }

func (labeledVariant) header(block *goquery.Selection) map[HeaderLabel]string {
	fields := make(map[HeaderLabel]string)
	block.Find("div.trans-header").First().Find("div.text").Each(func(_ int, pair *goquery.Selection) {
		title := pair.Find("div.item-title").First()
		value := pair.Find("span.header-num").First()
		if title.Length() == 0 || value.Length() == 0 {
			return
		}
		if label, ok := lookupHeaderLabel(markup.Text(title)); ok {
			fields[label] = markup.Text(value)
		}
	})
	return fields
}

func (labeledVariant) itemRows(block *goquery.Selection) []*goquery.Selection {
	var rows []*goquery.Selection
	block.Find("div.table-contents").First().Children().Each(func(_ int, child *goquery.Selection) {
		if child.Is("div.item-row") {
			rows = append(rows, child)
			return
		}
		if row := child.Find("div.item-row").First(); row.Length() > 0 {
			rows = append(rows, row)
		}
	})
	return rows
}

func (labeledVariant) decodeItem(row *goquery.Selection) (models.LineItem, error) {
	cols, err := decodeItemColumns(markup.Texts(row.Find("div.num")))
	if err != nil {
		return models.LineItem{}, err
	}
	item := lineItem(row, cols)
	item.Code = itemCode(row)
	item.Cashier = markup.Text(row.Find("div.text-2 div.text").First())
	return item, nil
}

func (labeledVariant) totalsRow(block *goquery.Selection) *goquery.Selection {
	return block.Find("div.table-totals div.totals-row").First()
}

// positionalVariant is the legacy report: untitled header values in a fixed
// order and four numeric item columns.
type positionalVariant struct{}

func (positionalVariant) layout() Layout { return LayoutPositional }

func (positionalVariant) header(block *goquery.Selection) map[HeaderLabel]string {
	fields := make(map[HeaderLabel]string)
	values := markup.Texts(block.Find("div.trans-header").First().Find("span.header-num"))
	for i, label := range positionalHeader {
		if i >= len(values) {
			break
		}
		fields[label] = values[i]
	}
	return fields
}

func (positionalVariant) itemRows(block *goquery.Selection) []*goquery.Selection {
	var rows []*goquery.Selection
	block.Find("div.item-row").Each(func(_ int, row *goquery.Selection) {
		rows = append(rows, row)
	})
	return rows
}

func (positionalVariant) decodeItem(row *goquery.Selection) (models.LineItem, error) {
	cols, err := decodeLegacyItemColumns(markup.Texts(row.Find("div.num")))
	if err != nil {
		return models.LineItem{}, err
	}
	return lineItem(row, cols), nil
}

func (positionalVariant) totalsRow(block *goquery.Selection) *goquery.Selection {
	return block.Find("div.totals-row").Not(".item-row").First()
}

func lineItem(row *goquery.Selection, cols ItemRowColumns) models.LineItem {
	return models.LineItem{
		Name:          markup.Text(row.Find("span").First()),
		Quantity:      cols.Quantity,
		UnitPrice:     cols.UnitPrice,
		TaxableAmount: cols.TaxableAmount,
		TotalPrice:    cols.SalePrice,
		VATAmount:     cols.VATAmount,
	}
}

const itemCodePrefix = "קוד פריט"

func itemCode(row *goquery.Selection) string {
	code := markup.Text(row.Find("div.item-code").First())
	return strings.TrimSpace(strings.TrimPrefix(strings.ReplaceAll(code, itemCodePrefix, ""), ":"))
}
