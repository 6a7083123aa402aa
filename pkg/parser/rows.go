package parser

import (
	"bytes"
	"fmt"

	"github.com/yurifrl/kupa/pkg/csv"
	"github.com/yurifrl/kupa/pkg/models"
	"github.com/yurifrl/kupa/pkg/rows"
	"github.com/yurifrl/kupa/pkg/workbook"
)

// ParseRowsCSV reads flat rows exported by this tool and turns them back into
// transactions, so previously exported data can flow through the same
// pipeline as a fresh report.
func (p *Parser) ParseRowsCSV(data []byte) ([]*models.Transaction, error) {
	records, err := csv.Read(data)
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	return p.fromRecords(records)
}

func (p *Parser) ParseRowsXLSX(data []byte) ([]*models.Transaction, error) {
	records, err := workbook.ReadRows(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return p.fromRecords(records)
}

func (p *Parser) ParseRowsXLS(data []byte) ([]*models.Transaction, error) {
	records, err := workbook.ReadLegacyRows(data)
	if err != nil {
		return nil, err
	}
	return p.fromRecords(records)
}

func (p *Parser) fromRecords(records [][]string) ([]*models.Transaction, error) {
	rs, bad, err := rows.FromRecords(records)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	for _, e := range bad {
		p.logger.Debug("skipping row", "line", e.Line, "error", e.Err)
	}

	txns := rows.Unflatten(rs)
	if len(txns) == 0 {
		p.logger.Warn("no transactions recovered", "rows", len(rs))
	}
	return txns, nil
}
