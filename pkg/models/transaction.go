package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// LineItem is one product line printed on a receipt.
type LineItem struct {
	Name          string
	Code          string
	Quantity      decimal.Decimal
	UnitPrice     decimal.Decimal
	TaxableAmount decimal.Decimal
	TotalPrice    decimal.Decimal
	VATAmount     decimal.Decimal
	Cashier       string
}

// Payment is one tender line. Amount is negative for change and refunds.
type Payment struct {
	Method    string
	Amount    decimal.Decimal
	Approval  string
	Reference string
}

// Totals are the three values of a receipt's totals row.
type Totals struct {
	Items decimal.Decimal
	VAT   decimal.Decimal
	Total decimal.Decimal
}

// Transaction is one sale recovered from a register report. It is built once
// by TransactionBuilder and never mutated afterwards.
type Transaction struct {
	OrderID         string
	InvoiceNum      string
	TransactionType string
	ZNumber         string
	Register        string
	CustomerName    string
	CustomerCode    string

	// Timestamp holds the printed wall clock in UTC. It is midnight when the
	// report only carried a date.
	Timestamp time.Time

	Items    []LineItem
	Payments []Payment

	TotalItems decimal.Decimal
	TotalVAT   decimal.Decimal
	Total      decimal.Decimal

	declared bool
}

func (t *Transaction) Date() string {
	return t.Timestamp.Format(DateLayout)
}

func (t *Transaction) Time() string {
	return t.Timestamp.Format(TimeLayout)
}

// Day returns the calendar date with the time of day stripped.
func (t *Transaction) Day() time.Time {
	y, m, d := t.Timestamp.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ItemsTotal sums the settled amount of every line.
func (t *Transaction) ItemsTotal() decimal.Decimal {
	sum := decimal.Zero
	for _, it := range t.Items {
		sum = sum.Add(it.TotalPrice)
	}
	return sum
}

// Declared reports whether the totals came from the receipt's totals row
// rather than from summing the lines.
func (t *Transaction) Declared() bool {
	return t.declared
}

// Divergence is the absolute gap between the declared total and the sum of
// the lines. It is zero when the totals were computed.
func (t *Transaction) Divergence() decimal.Decimal {
	if !t.declared || len(t.Items) == 0 {
		return decimal.Zero
	}
	return t.Total.Sub(t.ItemsTotal()).Abs()
}

// PrimaryPayment picks the payment with the largest positive amount. Ties keep
// the first one printed. Refund lines are never primary.
func (t *Transaction) PrimaryPayment() (Payment, bool) {
	var (
		best  Payment
		found bool
	)
	for _, p := range t.Payments {
		if !p.Amount.IsPositive() {
			continue
		}
		if !found || p.Amount.GreaterThan(best.Amount) {
			best = p
			found = true
		}
	}
	return best, found
}

// PaymentMethod is the method of PrimaryPayment, or "" when there is none.
func (t *Transaction) PaymentMethod() string {
	p, ok := t.PrimaryPayment()
	if !ok {
		return ""
	}
	return p.Method
}
