// Package rows is the flat, one-row-per-item representation used to persist
// transactions outside the report files.
package rows

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yurifrl/kupa/pkg/models"
)

// Columns is the header of every flat row export, in order.
var Columns = []string{
	"transaction_id",
	"date",
	"time",
	"order_id",
	"invoice_num",
	"payment_method",
	"item_name",
	"item_code",
	"quantity",
	"unit_price",
	"taxable_amount",
	"sale_price",
	"vat_amount",
	"cashier",
	"register",
}

// Row is one sold item together with the header fields of its transaction.
type Row struct {
	TransactionID string
	Date          string
	Time          string
	OrderID       string
	InvoiceNum    string
	PaymentMethod string
	ItemName      string
	ItemCode      string
	Quantity      decimal.Decimal
	UnitPrice     decimal.Decimal
	TaxableAmount decimal.Decimal
	SalePrice     decimal.Decimal
	VATAmount     decimal.Decimal
	Cashier       string
	Register      string
}

// TransactionID is the external identity of an item row. No single field of
// the report survives the round trip through a spreadsheet, so the key
// combines date, order, item name and quantity.
func TransactionID(date, orderID, itemName string, quantity decimal.Decimal) string {
	return fmt.Sprintf("%s_%s_%s_%s", date, orderID, itemName, quantity.String())
}

// CanonicalID rewrites the trailing quantity of a transaction id the way
// TransactionID renders it, so "…_Tea_2.0" and "…_Tea_2" compare equal. Ids
// whose last segment is not a number are returned unchanged.
func CanonicalID(id string) string {
	i := strings.LastIndex(id, "_")
	if i < 0 {
		return id
	}
	q, err := decimal.NewFromString(id[i+1:])
	if err != nil {
		return id
	}
	return id[:i+1] + q.String()
}

func (Row) Header() []string {
	return Columns
}

func (r Row) Values() []string {
	return []string{
		r.TransactionID,
		r.Date,
		r.Time,
		r.OrderID,
		r.InvoiceNum,
		r.PaymentMethod,
		r.ItemName,
		r.ItemCode,
		r.Quantity.String(),
		r.UnitPrice.String(),
		r.TaxableAmount.String(),
		r.SalePrice.String(),
		r.VATAmount.String(),
		r.Cashier,
		r.Register,
	}
}

// Flatten emits one row per (transaction, item) pair in input order.
func Flatten(txns []*models.Transaction) []Row {
	out := make([]Row, 0, len(txns))
	for _, t := range txns {
		method := t.PaymentMethod()
		for _, it := range t.Items {
			out = append(out, Row{
				TransactionID: TransactionID(t.Date(), t.OrderID, it.Name, it.Quantity),
				Date:          t.Date(),
				Time:          t.Time(),
				OrderID:       t.OrderID,
				InvoiceNum:    t.InvoiceNum,
				PaymentMethod: method,
				ItemName:      it.Name,
				ItemCode:      it.Code,
				Quantity:      it.Quantity,
				UnitPrice:     it.UnitPrice,
				TaxableAmount: it.TaxableAmount,
				SalePrice:     it.TotalPrice,
				VATAmount:     it.VATAmount,
				Cashier:       it.Cashier,
				Register:      t.Register,
			})
		}
	}
	return out
}

// Unflatten rebuilds transactions from flat rows, grouping by date and order
// in first-seen order. The per-transaction payment list collapses to a single
// payment carrying the recorded method and the summed sale price. Groups
// whose total is zero are dropped, like cancelled sales in a report.
func Unflatten(rs []Row) []*models.Transaction {
	type group struct {
		first Row
		rows  []Row
	}
	var (
		order  []string
		groups = make(map[string]*group)
	)
	for _, r := range rs {
		key := r.Date + "\x00" + r.OrderID
		g, ok := groups[key]
		if !ok {
			g = &group{first: r}
			groups[key] = g
			order = append(order, key)
		}
		g.rows = append(g.rows, r)
	}

	out := make([]*models.Transaction, 0, len(order))
	for _, key := range order {
		g := groups[key]
		ts, err := parseTimestamp(g.first.Date, g.first.Time)
		if err != nil {
			continue
		}
		b := models.NewTransaction(g.first.OrderID).
			SetInvoice(g.first.InvoiceNum).
			SetRegister(g.first.Register).
			SetTimestamp(ts)

		paid := decimal.Zero
		for _, r := range g.rows {
			b.AddItem(models.LineItem{
				Name:          r.ItemName,
				Code:          r.ItemCode,
				Quantity:      r.Quantity,
				UnitPrice:     r.UnitPrice,
				TaxableAmount: r.TaxableAmount,
				TotalPrice:    r.SalePrice,
				VATAmount:     r.VATAmount,
				Cashier:       r.Cashier,
			})
			paid = paid.Add(r.SalePrice)
		}
		if g.first.PaymentMethod != "" {
			b.AddPayment(models.Payment{Method: g.first.PaymentMethod, Amount: paid})
		}

		tx, err := b.Build()
		if err != nil {
			continue
		}
		out = append(out, tx)
	}
	return out
}

var timeLayouts = []string{"15:04:05", "15:04"}

func parseTimestamp(date, clock string) (time.Time, error) {
	day, err := time.Parse(models.DateLayout, strings.TrimSpace(date))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", date, err)
	}
	clock = strings.TrimSpace(clock)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, clock); err == nil {
			return day.Add(time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute + time.Duration(t.Second())*time.Second), nil
		}
	}
	return day, nil
}
