// Package store persists flat report rows so history survives between runs.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/yurifrl/kupa/pkg/config"
	"github.com/yurifrl/kupa/pkg/rows"
)

var ErrUnknownDriver = errors.New("unknown store driver")

// Store keeps flat rows keyed by transaction id.
type Store interface {
	// Append writes the rows whose transaction id is not stored yet and
	// returns how many were written.
	Append(ctx context.Context, rs []rows.Row) (int, error)
	ReadAll(ctx context.Context) ([]rows.Row, error)
	// Delete removes rows by transaction id and returns how many existed.
	Delete(ctx context.Context, ids []string) (int, error)
	Close() error
}

// Open builds the store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.Store, logger *log.Logger) (Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", "memory":
		return NewMemory(), nil
	case "postgres":
		pg, err := NewPostgres(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return nil, err
		}
		return pg, nil
	case "sheets":
		sh, err := NewSheets(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		return sh, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, cfg.Driver)
	}
}

// dedupe drops rows whose id is in existing or repeated within rs. Rows
// without an id get one derived from their content.
func dedupe(rs []rows.Row, existing map[string]bool) []rows.Row {
	seen := make(map[string]bool, len(rs))
	out := make([]rows.Row, 0, len(rs))
	for _, r := range rs {
		if r.TransactionID == "" {
			r.TransactionID = rows.TransactionID(r.Date, r.OrderID, r.ItemName, r.Quantity)
		}
		if existing[r.TransactionID] || seen[r.TransactionID] {
			continue
		}
		seen[r.TransactionID] = true
		out = append(out, r)
	}
	return out
}
