// Package markup turns raw report text into a node tree that can be queried by
// tag name and class attribute.
package markup

import (
	"bytes"
	"errors"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	ErrEmptyDocument = errors.New("document is empty")
	ErrNotMarkup     = errors.New("document contains no markup elements")
)

// Parse builds a queryable document. Malformed markup is repaired by the HTML
// tokenizer; only empty input and plain text without any element are errors.
func Parse(data []byte) (*goquery.Document, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyDocument
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	if doc.Find("body *").Length() == 0 && doc.Find("head *").Length() == 0 {
		return nil, ErrNotMarkup
	}
	return doc, nil
}

// bidi and spacing runes report generators sprinkle around Hebrew text.
var invisible = strings.NewReplacer(
	"\u200e", "",
	"\u200f", "",
	"\u202a", "",
	"\u202b", "",
	"\u202c", "",
	"\u00a0", " ",
)

// Text returns the visible text of a selection with whitespace collapsed.
func Text(sel *goquery.Selection) string {
	if sel == nil || sel.Length() == 0 {
		return ""
	}
	return Clean(sel.Text())
}

// Clean strips bidi marks and collapses whitespace.
func Clean(s string) string {
	return strings.Join(strings.Fields(invisible.Replace(s)), " ")
}

// HasClass reports whether the first node of sel carries class.
func HasClass(sel *goquery.Selection, class string) bool {
	return sel != nil && sel.Length() > 0 && sel.First().HasClass(class)
}

// Texts returns the cleaned text of every node in sel, in document order.
func Texts(sel *goquery.Selection) []string {
	out := make([]string, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		out = append(out, Text(s))
	})
	return out
}
