package executors

import (
	"context"
	"fmt"

	"github.com/yurifrl/kupa/pkg/report"
	"github.com/yurifrl/kupa/pkg/rows"
	"github.com/yurifrl/kupa/pkg/ynab"
)

// Apply writes the rows missing from the store and returns how many were
// written.
func (e *Executor) Apply(ctx context.Context, local []rows.Row) (int, error) {
	remote, err := e.store.ReadAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read stored rows: %w", err)
	}
	rep := BuildReport(local, remote)

	toSync := rep.RowsToSync()
	e.logger.Info("rows to append", "count", len(toSync), "in_sync", rep.InSyncCount())
	if len(toSync) == 0 {
		return 0, nil
	}

	n, err := e.store.Append(ctx, toSync)
	if err != nil {
		return n, fmt.Errorf("failed to append rows: %w", err)
	}
	e.logger.Info("appended rows", "count", n)
	return n, nil
}

// ApplyIncome posts the days missing from the YNAB account.
func (e *Executor) ApplyIncome(daily []report.DailyRow) (int, error) {
	remote, err := e.remoteIncome()
	if err != nil {
		return 0, err
	}
	rep := BuildIncomeReport(daily, remote)
	e.logger.Info("days to post", "count", len(rep.Pending), "account_id", e.config.YNAB.AccountID)
	if len(rep.Pending) == 0 {
		return 0, nil
	}

	batch, err := ynab.Payloads(rep.Pending, e.config.YNAB.AccountID, e.config.YNAB.Payee)
	if err != nil {
		return 0, err
	}
	if err := e.ynab.Transaction().CreateTransactions(e.config.YNAB.BudgetID, batch); err != nil {
		return 0, fmt.Errorf("failed to create transactions: %w", err)
	}
	e.logger.Info("created transactions", "count", len(batch), "account_id", e.config.YNAB.AccountID)
	return len(batch), nil
}
