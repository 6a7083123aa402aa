// Package workbook writes parsed transactions as an xlsx workbook and reads
// flat rows back from xlsx and legacy xls files.
package workbook

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/extrame/xls"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"github.com/yurifrl/kupa/pkg/models"
	"github.com/yurifrl/kupa/pkg/report"
	"github.com/yurifrl/kupa/pkg/rows"
)

const (
	SheetDaily        = "Daily Summary"
	SheetTransactions = "Transactions"
	SheetItems        = "Items Summary"
	SheetRows         = "Rows"

	headerFill = "366092"

	// legacyMaxRows bounds how many rows are read from a legacy workbook.
	legacyMaxRows = 100000
)

var ErrNoSheets = errors.New("workbook has no sheets")

// numericColumns are written as number cells. Everything else stays text so
// ids such as order_id keep their leading zeros.
var numericColumns = map[string]bool{
	"total_sales":       true,
	"transaction_count": true,
	"items_count":       true,
	"total_vat":         true,
	"quantity":          true,
	"total_amount":      true,
	"avg_unit_price":    true,
	"item_count":        true,
	"total_items":       true,
	"unit_price":        true,
	"taxable_amount":    true,
	"sale_price":        true,
	"vat_amount":        true,
}

// Table is one sheet worth of data.
type Table struct {
	Name   string
	Header []string
	Rows   [][]string
}

// Tables lays out the four standard sheets for a set of transactions.
func Tables(txns []*models.Transaction) []Table {
	return []Table{
		tableOf(SheetDaily, report.DailySummary(txns)),
		tableOf(SheetTransactions, report.DetailedTransactions(txns)),
		tableOf(SheetItems, report.ItemSummary(txns)),
		tableOf(SheetRows, rows.Flatten(txns)),
	}
}

type record interface {
	Header() []string
	Values() []string
}

func tableOf[T record](name string, records []T) Table {
	var zero T
	t := Table{Name: name, Header: zero.Header()}
	for _, r := range records {
		t.Rows = append(t.Rows, r.Values())
	}
	return t
}

// Write renders the standard sheets of txns into w.
func Write(w io.Writer, txns []*models.Transaction) error {
	return WriteTables(w, Tables(txns))
}

// WriteTables renders arbitrary tables, one sheet each, in order.
func WriteTables(w io.Writer, tables []Table) error {
	f := excelize.NewFile()
	defer f.Close()

	style, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{headerFill}},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	for i, t := range tables {
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), t.Name); err != nil {
				return fmt.Errorf("rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(t.Name); err != nil {
			return fmt.Errorf("create sheet %s: %w", t.Name, err)
		}
		if err := writeTable(f, t, style); err != nil {
			return err
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeTable(f *excelize.File, t Table, style int) error {
	header := make([]interface{}, len(t.Header))
	for i, h := range t.Header {
		header[i] = h
	}
	if err := f.SetSheetRow(t.Name, "A1", &header); err != nil {
		return fmt.Errorf("write header of %s: %w", t.Name, err)
	}
	if len(t.Header) > 0 {
		last, err := excelize.CoordinatesToCellName(len(t.Header), 1)
		if err != nil {
			return err
		}
		if err := f.SetCellStyle(t.Name, "A1", last, style); err != nil {
			return fmt.Errorf("style header of %s: %w", t.Name, err)
		}
	}

	for i, values := range t.Rows {
		row := make([]interface{}, len(values))
		for j, v := range values {
			row[j] = cellValue(t.Header, j, v)
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(t.Name, cell, &row); err != nil {
			return fmt.Errorf("write row %d of %s: %w", i+2, t.Name, err)
		}
	}
	return nil
}

// cellValue converts v to a float64 when column j holds numbers. Values that
// do not parse are kept as text.
func cellValue(header []string, j int, v string) interface{} {
	if j >= len(header) || !numericColumns[header[j]] {
		return v
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return v
	}
	n, _ := d.Float64()
	return n
}

// ReadRows returns the records of the Rows sheet, or of the first sheet when
// the workbook was not written by this package.
func ReadRows(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrNoSheets
	}
	sheet := sheets[0]
	for _, name := range sheets {
		if name == SheetRows {
			sheet = name
			break
		}
	}

	records, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	return records, nil
}

// ReadLegacyRows returns the records of an .xls workbook. Legacy exports hold
// a single sheet; cells of any further sheets follow its rows.
func ReadLegacyRows(data []byte) ([][]string, error) {
	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, fmt.Errorf("error creating workbook: %w", err)
	}
	records := wb.ReadAllCells(legacyMaxRows)
	if len(records) == 0 {
		return nil, ErrNoSheets
	}
	return records, nil
}
