package parser

import (
	"errors"
	"fmt"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"
	"github.com/yurifrl/kupa/pkg/markup"
	"github.com/yurifrl/kupa/pkg/models"
)

var (
	errNotAnItem     = errors.New("row is a tender or totals row")
	errNoItemName    = errors.New("item row has no name")
	errNegativePrice = errors.New("item sale price is negative")
)

// blockFields is everything the four recovery passes found in one block.
type blockFields struct {
	header   map[HeaderLabel]string
	items    []models.LineItem
	payments []models.Payment
	totals   *models.Totals

	skippedItems    int
	skippedPayments int
}

// recoverFields runs the header, item, tender and totals passes. A missing
// region leaves its part of blockFields empty.
func (p *Parser) recoverFields(index int, block *goquery.Selection, v variant) *blockFields {
	f := &blockFields{header: v.header(block)}

	for i, row := range v.itemRows(block) {
		item, err := decodeItemRow(row, v)
		if err != nil {
			f.skippedItems++
			p.logger.Debug("skipping item row", "block", index, "row", i, "error", err)
			continue
		}
		f.items = append(f.items, item)
	}

	f.payments, f.skippedPayments = recoverPayments(block)

	if totals, err := recoverTotals(v.totalsRow(block)); err == nil {
		f.totals = totals
	} else {
		p.logger.Debug("totals not recovered, summing lines", "block", index, "error", err)
	}
	return f
}

func decodeItemRow(row *goquery.Selection, v variant) (models.LineItem, error) {
	if markup.HasClass(row, "tender-row") || markup.HasClass(row, "totals-row") {
		return models.LineItem{}, errNotAnItem
	}
	item, err := v.decodeItem(row)
	if err != nil {
		return models.LineItem{}, err
	}
	if item.Name == "" {
		return models.LineItem{}, errNoItemName
	}
	if item.TotalPrice.IsNegative() {
		return models.LineItem{}, fmt.Errorf("%w: %s", errNegativePrice, item.TotalPrice)
	}
	return item, nil
}

// recoverPayments reads every tender row. Rows without a method are dropped.
func recoverPayments(block *goquery.Selection) ([]models.Payment, int) {
	var (
		payments []models.Payment
		skipped  int
	)
	block.Find("div.table-tenders div.tender-row").Each(func(_ int, row *goquery.Selection) {
		var p models.Payment
		row.Find("div.text").Each(func(_ int, pair *goquery.Selection) {
			title := pair.Find("div.item-title").First()
			value := pair.Find("span.tender-num").First()
			if title.Length() == 0 || value.Length() == 0 {
				return
			}
			label, ok := lookupTenderLabel(markup.Text(title))
			if !ok {
				return
			}
			text := markup.Text(value)
			switch label {
			case TenderMethod:
				p.Method = text
			case TenderAmount:
				amount, err := parseNumber(text)
				if err != nil {
					amount = decimal.Zero
				}
				p.Amount = amount
			case TenderApproval:
				p.Approval = text
			case TenderReference:
				p.Reference = text
			}
		})
		if p.Method == "" {
			skipped++
			return
		}
		payments = append(payments, p)
	})
	return payments, skipped
}

var errNoTotalsRow = errors.New("no totals row")

func recoverTotals(row *goquery.Selection) (*models.Totals, error) {
	if row == nil || row.Length() == 0 {
		return nil, errNoTotalsRow
	}
	cols, err := decodeTotalsColumns(markup.Texts(row.Find("span.tender-num")))
	if err != nil {
		return nil, err
	}
	return &models.Totals{Items: cols.Items, VAT: cols.VAT, Total: cols.Total}, nil
}

// build hands the recovered fields to the transaction builder.
func (f *blockFields) build() (*models.Transaction, error) {
	b := models.NewTransaction(f.header[LabelOrder]).
		SetInvoice(f.header[LabelInvoice]).
		SetType(f.header[LabelTransactionType]).
		SetZNumber(f.header[LabelZNumber]).
		SetRegister(f.header[LabelRegister]).
		SetCustomer(f.header[LabelCustomerName], f.header[LabelCustomerCode]).
		SetDate(f.header[LabelDate])

	for _, it := range f.items {
		b.AddItem(it)
	}
	for _, p := range f.payments {
		b.AddPayment(p)
	}
	if f.totals != nil {
		b.SetTotals(*f.totals)
	}
	return b.Build()
}
