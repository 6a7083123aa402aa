// Package report reduces parsed transactions into the daily, item and
// per-transaction tables.
package report

import (
	"sort"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/yurifrl/kupa/pkg/models"
)

// DailyRow is the sales summary of one calendar day.
type DailyRow struct {
	Date             string
	TotalSales       decimal.Decimal
	TransactionCount int
	ItemsCount       int
	TotalVAT         decimal.Decimal
}

func (DailyRow) Header() []string {
	return []string{"date", "total_sales", "transaction_count", "items_count", "total_vat"}
}

func (r DailyRow) Values() []string {
	return []string{
		r.Date,
		r.TotalSales.StringFixed(2),
		strconv.Itoa(r.TransactionCount),
		strconv.Itoa(r.ItemsCount),
		r.TotalVAT.StringFixed(2),
	}
}

// DailySummary groups transactions by date, ascending. Days without sales are
// not filled in.
func DailySummary(txns []*models.Transaction) []DailyRow {
	byDate := make(map[string]*DailyRow)
	for _, t := range txns {
		date := t.Date()
		row, ok := byDate[date]
		if !ok {
			row = &DailyRow{Date: date}
			byDate[date] = row
		}
		row.TotalSales = row.TotalSales.Add(t.Total)
		row.TransactionCount++
		row.ItemsCount += len(t.Items)
		row.TotalVAT = row.TotalVAT.Add(t.TotalVAT)
	}

	out := make([]DailyRow, 0, len(byDate))
	for _, row := range byDate {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// ItemRow aggregates every line sold under one item name.
type ItemRow struct {
	ItemName         string
	ItemCode         string
	Quantity         decimal.Decimal
	TotalAmount      decimal.Decimal
	TotalVAT         decimal.Decimal
	TransactionCount int
	AvgUnitPrice     decimal.Decimal
}

func (ItemRow) Header() []string {
	return []string{"item_name", "item_code", "quantity", "total_amount", "total_vat", "transaction_count", "avg_unit_price"}
}

func (r ItemRow) Values() []string {
	return []string{
		r.ItemName,
		r.ItemCode,
		r.Quantity.String(),
		r.TotalAmount.StringFixed(2),
		r.TotalVAT.StringFixed(2),
		strconv.Itoa(r.TransactionCount),
		r.AvgUnitPrice.StringFixed(2),
	}
}

// ItemSummary groups every line of every transaction by item name, ordered by
// total amount descending. Equal amounts keep first-seen order.
// TransactionCount counts transactions containing the item, not lines.
func ItemSummary(txns []*models.Transaction) []ItemRow {
	var (
		order  []string
		byName = make(map[string]*ItemRow)
	)
	for _, t := range txns {
		seen := make(map[string]bool, len(t.Items))
		for _, it := range t.Items {
			row, ok := byName[it.Name]
			if !ok {
				row = &ItemRow{ItemName: it.Name}
				byName[it.Name] = row
				order = append(order, it.Name)
			}
			if it.Code != "" {
				row.ItemCode = it.Code
			}
			row.Quantity = row.Quantity.Add(it.Quantity)
			row.TotalAmount = row.TotalAmount.Add(it.TotalPrice)
			row.TotalVAT = row.TotalVAT.Add(it.VATAmount)
			if !seen[it.Name] {
				seen[it.Name] = true
				row.TransactionCount++
			}
		}
	}

	out := make([]ItemRow, 0, len(order))
	for _, name := range order {
		row := byName[name]
		if !row.Quantity.IsZero() {
			row.AvgUnitPrice = row.TotalAmount.DivRound(row.Quantity, 4)
		}
		out = append(out, *row)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TotalAmount.GreaterThan(out[j].TotalAmount)
	})
	return out
}

// DetailRow is the header-level view of one transaction.
type DetailRow struct {
	OrderID       string
	InvoiceNum    string
	Date          string
	Time          string
	Register      string
	PaymentMethod string
	ItemCount     int
	TotalItems    decimal.Decimal
	TotalVAT      decimal.Decimal
	TotalAmount   decimal.Decimal
}

func (DetailRow) Header() []string {
	return []string{"order_id", "invoice_num", "date", "time", "register", "payment_method", "item_count", "total_items", "total_vat", "total_amount"}
}

func (r DetailRow) Values() []string {
	return []string{
		r.OrderID,
		r.InvoiceNum,
		r.Date,
		r.Time,
		r.Register,
		r.PaymentMethod,
		strconv.Itoa(r.ItemCount),
		r.TotalItems.StringFixed(2),
		r.TotalVAT.StringFixed(2),
		r.TotalAmount.StringFixed(2),
	}
}

// DetailedTransactions returns one row per transaction in input order.
func DetailedTransactions(txns []*models.Transaction) []DetailRow {
	out := make([]DetailRow, 0, len(txns))
	for _, t := range txns {
		out = append(out, DetailRow{
			OrderID:       t.OrderID,
			InvoiceNum:    t.InvoiceNum,
			Date:          t.Date(),
			Time:          t.Time(),
			Register:      t.Register,
			PaymentMethod: t.PaymentMethod(),
			ItemCount:     len(t.Items),
			TotalItems:    t.TotalItems,
			TotalVAT:      t.TotalVAT,
			TotalAmount:   t.Total,
		})
	}
	return out
}
