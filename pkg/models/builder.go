package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrMissingDate = errors.New("transaction has no date")
	ErrInvalidDate = errors.New("transaction date is not parseable")
	ErrCancelled   = errors.New("transaction total is zero")
)

// Report dates are printed day first. The single-digit verbs accept both
// "5/3/2024" and "05/03/2024".
var (
	dateTimeLayout = "2/1/2006 15:04"
	dateOnlyLayout = "2/1/2006"
)

// ParseDateTime reads a report date. A value without a time of day resolves to
// midnight.
func ParseDateTime(raw string) (time.Time, error) {
	value := strings.Join(strings.Fields(raw), " ")
	if value == "" {
		return time.Time{}, ErrMissingDate
	}
	if t, err := time.Parse(dateTimeLayout, value); err == nil {
		return t, nil
	}
	if t, err := time.Parse(dateOnlyLayout, value); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, raw)
}

// TransactionBuilder collects recovered fields and turns them into a
// Transaction, applying the rejection rules on Build.
type TransactionBuilder struct {
	tx      Transaction
	err     error
	hasDate bool
	totals  *Totals
}

func NewTransaction(orderID string) *TransactionBuilder {
	return &TransactionBuilder{tx: Transaction{OrderID: strings.TrimSpace(orderID)}}
}

func (b *TransactionBuilder) SetInvoice(invoice string) *TransactionBuilder {
	b.tx.InvoiceNum = strings.TrimSpace(invoice)
	return b
}

func (b *TransactionBuilder) SetType(kind string) *TransactionBuilder {
	b.tx.TransactionType = strings.TrimSpace(kind)
	return b
}

func (b *TransactionBuilder) SetZNumber(z string) *TransactionBuilder {
	b.tx.ZNumber = strings.TrimSpace(z)
	return b
}

func (b *TransactionBuilder) SetRegister(register string) *TransactionBuilder {
	b.tx.Register = strings.TrimSpace(register)
	return b
}

func (b *TransactionBuilder) SetCustomer(name, code string) *TransactionBuilder {
	b.tx.CustomerName = strings.TrimSpace(name)
	b.tx.CustomerCode = strings.TrimSpace(code)
	return b
}

// SetDate parses the combined "dd/mm/yyyy hh:mm" field of a report header.
func (b *TransactionBuilder) SetDate(raw string) *TransactionBuilder {
	t, err := ParseDateTime(raw)
	if err != nil {
		b.err = err
		b.hasDate = false
		return b
	}
	b.err = nil
	b.tx.Timestamp = t
	b.hasDate = true
	return b
}

// SetTimestamp sets an already parsed date and time.
func (b *TransactionBuilder) SetTimestamp(t time.Time) *TransactionBuilder {
	if t.IsZero() {
		b.err = ErrMissingDate
		b.hasDate = false
		return b
	}
	b.err = nil
	b.tx.Timestamp = t
	b.hasDate = true
	return b
}

func (b *TransactionBuilder) AddItem(item LineItem) *TransactionBuilder {
	b.tx.Items = append(b.tx.Items, item)
	return b
}

func (b *TransactionBuilder) AddPayment(p Payment) *TransactionBuilder {
	b.tx.Payments = append(b.tx.Payments, p)
	return b
}

// SetTotals records the totals printed on the receipt. Without them Build
// computes the totals from the lines.
func (b *TransactionBuilder) SetTotals(t Totals) *TransactionBuilder {
	b.totals = &t
	return b
}

func (b *TransactionBuilder) Build() (*Transaction, error) {
	if b.err != nil {
		return nil, b.err
	}
	if !b.hasDate {
		return nil, ErrMissingDate
	}

	tx := b.tx
	tx.Items = append([]LineItem(nil), b.tx.Items...)
	tx.Payments = append([]Payment(nil), b.tx.Payments...)

	if b.totals != nil {
		tx.TotalItems = b.totals.Items
		tx.TotalVAT = b.totals.VAT
		tx.Total = b.totals.Total
		tx.declared = true
	} else {
		tx.TotalItems, tx.TotalVAT, tx.Total = decimal.Zero, decimal.Zero, decimal.Zero
		for _, it := range tx.Items {
			tx.TotalItems = tx.TotalItems.Add(it.TaxableAmount)
			tx.TotalVAT = tx.TotalVAT.Add(it.VATAmount)
			tx.Total = tx.Total.Add(it.TotalPrice)
		}
	}

	if tx.Total.IsZero() {
		return nil, fmt.Errorf("%w: order %q", ErrCancelled, tx.OrderID)
	}
	return &tx, nil
}
