package parser

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/shopspring/decimal"
	"github.com/yurifrl/kupa/pkg/config"
	"github.com/yurifrl/kupa/pkg/markup"
	"github.com/yurifrl/kupa/pkg/models"
)

type FileType string

const (
	ReportHTML FileType = "report_html"
	RowsCSV    FileType = "rows_csv"
	RowsXLSX   FileType = "rows_xlsx"
	RowsXLS    FileType = "rows_xls"
)

var ErrUnknownFileType = errors.New("unknown file type")

// DefaultDivergenceTolerance is how far a printed total may drift from the sum
// of its lines before a warning is logged.
var DefaultDivergenceTolerance = decimal.NewFromInt(1)

type Parser struct {
	logger    *log.Logger
	layout    Layout
	tolerance decimal.Decimal
}

type Option func(*Parser)

// WithLayout forces a report layout instead of probing the document.
func WithLayout(l Layout) Option {
	return func(p *Parser) { p.layout = l }
}

func WithDivergenceTolerance(d decimal.Decimal) Option {
	return func(p *Parser) { p.tolerance = d }
}

func New(logger *log.Logger, opts ...Option) *Parser {
	p := &Parser{
		logger:    logger,
		layout:    LayoutAuto,
		tolerance: DefaultDivergenceTolerance,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// FromConfig builds a parser using the configured layout and divergence
// tolerance.
func FromConfig(cfg *config.Config, logger *log.Logger) (*Parser, error) {
	layout, err := ParseLayout(cfg.Layout)
	if err != nil {
		return nil, err
	}
	opts := []Option{WithLayout(layout)}
	if cfg.DivergenceTolerance != "" {
		tol, err := cfg.Tolerance()
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithDivergenceTolerance(tol))
	}
	return New(logger, opts...), nil
}

// Result is the outcome of parsing one report document.
type Result struct {
	Transactions []*models.Transaction
	Layout       Layout
	Blocks       int
	Skipped      int
}

// Parse recovers the transactions of a report document. Malformed rows and
// blocks are skipped and only shrink the result; an error is returned only
// when the input is empty or not markup at all.
func (p *Parser) Parse(data []byte) (*Result, error) {
	doc, err := markup.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}

	layout := p.layout
	if layout == LayoutAuto {
		layout = detectLayout(doc)
	}
	v := variantFor(layout)

	blocks := extractBlocks(doc)
	p.logger.Debug("extracted blocks", "count", len(blocks), "layout", layout)

	res := &Result{Layout: layout, Blocks: len(blocks)}
	for i, block := range blocks {
		fields := p.recoverFields(i, block, v)
		tx, err := fields.build()
		if err != nil {
			res.Skipped++
			p.logger.Debug("skipping block", "block", i, "order", fields.header[LabelOrder], "error", err)
			continue
		}
		if d := tx.Divergence(); d.GreaterThan(p.tolerance) {
			p.logger.Warn("printed total differs from line sum",
				"order", tx.OrderID, "date", tx.Date(), "total", tx.Total, "lines", tx.ItemsTotal())
		}
		res.Transactions = append(res.Transactions, tx)
	}

	if len(res.Transactions) == 0 {
		p.logger.Warn("no transactions recovered", "blocks", len(blocks), "layout", layout)
	}
	return res, nil
}

// ProcessBytes parses any supported input: a register HTML report, or flat
// rows previously exported by this tool as CSV, XLSX or legacy XLS.
func (p *Parser) ProcessBytes(data []byte, filename string) ([]*models.Transaction, error) {
	fileType := detectType(filename, data)
	p.logger.Debug("detected file type", "type", fileType, "filename", filename)

	switch fileType {
	case ReportHTML:
		res, err := p.Parse(data)
		if err != nil {
			return nil, err
		}
		return res.Transactions, nil
	case RowsCSV:
		return p.ParseRowsCSV(data)
	case RowsXLSX:
		return p.ParseRowsXLSX(data)
	case RowsXLS:
		return p.ParseRowsXLS(data)
	default:
		p.logger.Debug("unknown file type", "filename", filename)
		return nil, fmt.Errorf("%w: %s", ErrUnknownFileType, filename)
	}
}

func detectType(filename string, data []byte) FileType {
	looksLikeMarkup := bytes.HasPrefix(bytes.TrimSpace(bytes.TrimPrefix(data, utf8BOM)), []byte("<"))
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".html", ".htm":
		return ReportHTML
	case ".csv":
		return RowsCSV
	case ".xlsx":
		return RowsXLSX
	case ".xls":
		// Some registers save the HTML report with an .xls extension.
		if looksLikeMarkup {
			return ReportHTML
		}
		return RowsXLS
	}
	if looksLikeMarkup {
		return ReportHTML
	}
	return ""
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}
