package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/yurifrl/kupa/pkg/csv"
	"github.com/yurifrl/kupa/pkg/models"
	"github.com/yurifrl/kupa/pkg/report"
	"github.com/yurifrl/kupa/pkg/rows"
)

type filters struct {
	startDate string
	endDate   string
	minAmount float64
	maxAmount float64
	item      string
}

func (f *filters) validate() error {
	for _, d := range []string{f.startDate, f.endDate} {
		if d == "" {
			continue
		}
		if _, err := time.Parse(models.DateLayout, d); err != nil {
			return fmt.Errorf("invalid date %q, expected YYYY-MM-DD", d)
		}
	}
	if f.maxAmount != 0 && f.minAmount > f.maxAmount {
		return fmt.Errorf("--min %.2f is greater than --max %.2f", f.minAmount, f.maxAmount)
	}
	return nil
}

// keep reports whether a transaction passes the date, total and item filters.
// Dates are ISO formatted, so they compare as strings.
func (f *filters) keep(t *models.Transaction) bool {
	date := t.Date()
	if f.startDate != "" && date < f.startDate {
		return false
	}
	if f.endDate != "" && date > f.endDate {
		return false
	}
	if f.minAmount != 0 && t.Total.LessThan(decimal.NewFromFloat(f.minAmount)) {
		return false
	}
	if f.maxAmount != 0 && t.Total.GreaterThan(decimal.NewFromFloat(f.maxAmount)) {
		return false
	}
	if f.item != "" {
		for _, it := range t.Items {
			if f.matchItem(it.Name) {
				return true
			}
		}
		return false
	}
	return true
}

func (f *filters) apply(txns []*models.Transaction) []*models.Transaction {
	out := make([]*models.Transaction, 0, len(txns))
	for _, t := range txns {
		if f.keep(t) {
			out = append(out, t)
		}
	}
	return out
}

func (f *filters) matchItem(name string) bool {
	return strings.Contains(strings.ToLower(name), strings.ToLower(f.item))
}

func (f *filters) rowFilter() csv.FilterFunc[rows.Row] {
	if f.item == "" {
		return nil
	}
	return func(r rows.Row) bool { return f.matchItem(r.ItemName) }
}

func (f *filters) itemFilter() csv.FilterFunc[report.ItemRow] {
	if f.item == "" {
		return nil
	}
	return func(r report.ItemRow) bool { return f.matchItem(r.ItemName) }
}

// renderTable writes one of the derived tables as CSV.
func (f *filters) renderTable(table string, txns []*models.Transaction) ([]byte, error) {
	switch table {
	case "daily":
		return csv.Create(report.DailySummary(txns), nil), nil
	case "items":
		return csv.Create(report.ItemSummary(txns), f.itemFilter()), nil
	case "transactions":
		return csv.Create(report.DetailedTransactions(txns), nil), nil
	case "rows":
		return csv.Create(rows.Flatten(txns), f.rowFilter()), nil
	default:
		return nil, fmt.Errorf("unknown table %q (daily, items, transactions, rows)", table)
	}
}
