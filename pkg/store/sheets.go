package store

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/yurifrl/kupa/pkg/config"
	"github.com/yurifrl/kupa/pkg/rows"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const (
	appendBatchSize = 100
	valueInput      = "USER_ENTERED"
)

// Sheets stores rows in one worksheet of a Google spreadsheet, header first.
type Sheets struct {
	srv           *sheets.Service
	spreadsheetID string
	sheetName     string
	sheetID       int64
	logger        *log.Logger
}

func NewSheets(ctx context.Context, cfg config.Store, logger *log.Logger) (*Sheets, error) {
	if cfg.SpreadsheetID == "" {
		return nil, fmt.Errorf("sheets store: spreadsheet_id is required")
	}
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	srv, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets client: %w", err)
	}

	s := &Sheets{
		srv:           srv,
		spreadsheetID: cfg.SpreadsheetID,
		sheetName:     cfg.SheetName,
		logger:        logger,
	}
	if s.sheetName == "" {
		s.sheetName = "Transactions"
	}
	if err := s.ensureSheet(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// ensureSheet creates the worksheet with its header row when it is missing.
func (s *Sheets) ensureSheet(ctx context.Context) error {
	doc, err := s.srv.Spreadsheets.Get(s.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("open spreadsheet: %w", err)
	}
	for _, sh := range doc.Sheets {
		if sh.Properties != nil && sh.Properties.Title == s.sheetName {
			s.sheetID = sh.Properties.SheetId
			return nil
		}
	}

	resp, err := s.srv.Spreadsheets.BatchUpdate(s.spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{Properties: &sheets.SheetProperties{Title: s.sheetName}},
		}},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("create worksheet %s: %w", s.sheetName, err)
	}
	if len(resp.Replies) > 0 && resp.Replies[0].AddSheet != nil {
		s.sheetID = resp.Replies[0].AddSheet.Properties.SheetId
	}

	header := &sheets.ValueRange{Values: [][]interface{}{toCells(rows.Columns)}}
	if _, err := s.srv.Spreadsheets.Values.Update(s.spreadsheetID, s.sheetName+"!A1", header).
		ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	s.logger.Info("created worksheet", "sheet", s.sheetName)
	return nil
}

func (s *Sheets) values(ctx context.Context) ([][]string, error) {
	resp, err := s.srv.Spreadsheets.Values.Get(s.spreadsheetID, s.sheetName).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read worksheet %s: %w", s.sheetName, err)
	}
	return fromCells(resp.Values), nil
}

func (s *Sheets) ReadAll(ctx context.Context) ([]rows.Row, error) {
	records, err := s.values(ctx)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	rs, bad, err := rows.FromRecords(records)
	if err != nil {
		return nil, err
	}
	for _, e := range bad {
		s.logger.Debug("skipping sheet row", "line", e.Line+1, "error", e.Err)
	}
	return rs, nil
}

func (s *Sheets) Append(ctx context.Context, rs []rows.Row) (int, error) {
	stored, err := s.ReadAll(ctx)
	if err != nil {
		return 0, err
	}
	existing := make(map[string]bool, len(stored))
	for _, r := range stored {
		existing[r.TransactionID] = true
	}
	fresh := dedupe(rs, existing)

	for start := 0; start < len(fresh); start += appendBatchSize {
		end := min(start+appendBatchSize, len(fresh))
		batch := make([][]interface{}, 0, end-start)
		for _, r := range fresh[start:end] {
			batch = append(batch, toCells(r.Values()))
		}
		if _, err := s.srv.Spreadsheets.Values.Append(s.spreadsheetID, s.sheetName, &sheets.ValueRange{Values: batch}).
			ValueInputOption(valueInput).InsertDataOption("INSERT_ROWS").Context(ctx).Do(); err != nil {
			return start, fmt.Errorf("append rows %d-%d: %w", start, end, err)
		}
		s.logger.Debug("appended batch", "from", start, "to", end)
	}
	return len(fresh), nil
}

// Delete removes matching rows bottom-up so earlier indexes stay valid.
func (s *Sheets) Delete(ctx context.Context, ids []string) (int, error) {
	records, err := s.values(ctx)
	if err != nil {
		return 0, err
	}
	indexes := matchingRows(records, ids)
	if len(indexes) == 0 {
		return 0, nil
	}

	requests := make([]*sheets.Request, 0, len(indexes))
	for _, i := range indexes {
		requests = append(requests, &sheets.Request{
			DeleteDimension: &sheets.DeleteDimensionRequest{
				Range: &sheets.DimensionRange{
					SheetId:    s.sheetID,
					Dimension:  "ROWS",
					StartIndex: int64(i),
					EndIndex:   int64(i + 1),
				},
			},
		})
	}
	if _, err := s.srv.Spreadsheets.BatchUpdate(s.spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{Requests: requests}).
		Context(ctx).Do(); err != nil {
		return 0, fmt.Errorf("delete rows: %w", err)
	}
	return len(indexes), nil
}

func (s *Sheets) Close() error { return nil }

// matchingRows returns the zero-based sheet row indexes whose transaction id
// is in ids, highest first. Ids compare in canonical form. The header row is
// never matched.
func matchingRows(records [][]string, ids []string) []int {
	if len(records) == 0 {
		return nil
	}
	col := -1
	for i, name := range records[0] {
		if strings.EqualFold(strings.TrimSpace(name), "transaction_id") {
			col = i
			break
		}
	}
	if col < 0 {
		return nil
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[rows.CanonicalID(id)] = true
	}
	var out []int
	for i := 1; i < len(records); i++ {
		if col < len(records[i]) && want[rows.CanonicalID(strings.TrimSpace(records[i][col]))] {
			out = append(out, i)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(out)))
	return out
}

func toCells(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func fromCells(values [][]interface{}) [][]string {
	out := make([][]string, len(values))
	for i, row := range values {
		out[i] = make([]string, len(row))
		for j, cell := range row {
			out[i][j] = fmt.Sprint(cell)
		}
	}
	return out
}
