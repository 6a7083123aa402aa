package rows

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrEmpty         = errors.New("no records")
	ErrMissingColumn = errors.New("missing column")
)

// required columns a flat export must carry to be read back.
var required = []string{"date", "order_id", "item_name", "sale_price"}

// RecordError describes one record that could not be read.
type RecordError struct {
	Line int
	Err  error
}

func (e RecordError) Error() string {
	return fmt.Sprintf("record %d: %v", e.Line, e.Err)
}

func (e RecordError) Unwrap() error { return e.Err }

// FromRecords reads flat rows from a table whose first record is the header.
// Header names match case-insensitively and in any order. Records that cannot
// be decoded are returned as RecordErrors next to the rows that could.
func FromRecords(records [][]string) ([]Row, []RecordError, error) {
	if len(records) == 0 {
		return nil, nil, ErrEmpty
	}
	index := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		index[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))] = i
	}
	for _, name := range required {
		if _, ok := index[name]; !ok {
			return nil, nil, fmt.Errorf("%w: %s", ErrMissingColumn, name)
		}
	}

	var (
		out  = make([]Row, 0, len(records)-1)
		errs []RecordError
	)
	for line := 1; line < len(records); line++ {
		rec := records[line]
		if blank(rec) {
			continue
		}
		r, err := decodeRecord(index, rec)
		if err != nil {
			errs = append(errs, RecordError{Line: line, Err: err})
			continue
		}
		out = append(out, r)
	}
	return out, errs, nil
}

func decodeRecord(index map[string]int, rec []string) (Row, error) {
	get := func(name string) string {
		i, ok := index[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}
	num := func(name string) (decimal.Decimal, error) {
		s := get(name)
		if s == "" {
			return decimal.Zero, nil
		}
		d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", ""))
		if err != nil {
			return decimal.Zero, fmt.Errorf("column %s: %w", name, err)
		}
		return d, nil
	}

	r := Row{
		TransactionID: get("transaction_id"),
		Date:          get("date"),
		Time:          get("time"),
		OrderID:       get("order_id"),
		InvoiceNum:    get("invoice_num"),
		PaymentMethod: get("payment_method"),
		ItemName:      get("item_name"),
		ItemCode:      get("item_code"),
		Cashier:       get("cashier"),
		Register:      get("register"),
	}
	if r.Date == "" || r.OrderID == "" || r.ItemName == "" {
		return Row{}, errors.New("date, order_id and item_name are required")
	}

	var err error
	if r.Quantity, err = num("quantity"); err != nil {
		return Row{}, err
	}
	if r.UnitPrice, err = num("unit_price"); err != nil {
		return Row{}, err
	}
	if r.TaxableAmount, err = num("taxable_amount"); err != nil {
		return Row{}, err
	}
	if r.SalePrice, err = num("sale_price"); err != nil {
		return Row{}, err
	}
	if r.VATAmount, err = num("vat_amount"); err != nil {
		return Row{}, err
	}
	if r.TransactionID == "" {
		r.TransactionID = TransactionID(r.Date, r.OrderID, r.ItemName, r.Quantity)
	} else {
		r.TransactionID = CanonicalID(r.TransactionID)
	}
	return r, nil
}

// Records renders rows as a table with the header first.
func Records(rs []Row) [][]string {
	out := make([][]string, 0, len(rs)+1)
	out = append(out, Columns)
	for _, r := range rs {
		out = append(out, r.Values())
	}
	return out
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
