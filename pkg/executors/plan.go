package executors

import (
	"context"
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/yurifrl/kupa/pkg/report"
	"github.com/yurifrl/kupa/pkg/rows"
	"github.com/yurifrl/kupa/pkg/ynab"
)

var (
	syncedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))  // gray
	addedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10")) // green
)

// Plan compares local rows with the store and prints a preview without
// writing anything.
func (e *Executor) Plan(ctx context.Context, local []rows.Row) (*Report, error) {
	remote, err := e.store.ReadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read stored rows: %w", err)
	}
	rep := BuildReport(local, remote)
	e.logger.Debug("processing plan report", "total", len(rep.Items), "in_sync", rep.InSyncCount(), "to_add", rep.MissingCount())

	for _, m := range rep.Items {
		line := fmt.Sprintf("%s %s | %-8s | %-24s | %s | %s", m.Local.Date, m.Local.Time, m.Local.OrderID, m.Local.ItemName, m.Local.Quantity, m.Local.SalePrice.StringFixed(2))
		if m.Status == Synced {
			fmt.Fprintln(e.out, syncedStyle.Render("= "+line))
			continue
		}
		fmt.Fprintln(e.out, addedStyle.Render("+ "+line))
	}

	if rep.MissingCount() == 0 {
		fmt.Fprintf(e.out, "\nPlan: All %d row(s) are in sync\n", rep.InSyncCount())
	} else {
		fmt.Fprintf(e.out, "\nPlan: %d row(s) will be added, %d already in sync\n", rep.MissingCount(), rep.InSyncCount())
	}
	return rep, nil
}

// PlanIncome previews which days would be posted to YNAB.
func (e *Executor) PlanIncome(daily []report.DailyRow) (*IncomeReport, error) {
	remote, err := e.remoteIncome()
	if err != nil {
		return nil, err
	}
	rep := BuildIncomeReport(daily, remote)

	pending := make(map[string]bool, len(rep.Pending))
	for _, d := range rep.Pending {
		pending[d.Date] = true
	}
	for _, d := range daily {
		line := fmt.Sprintf("%s | %3d tx | %s", d.Date, d.TransactionCount, d.TotalSales.StringFixed(2))
		if pending[d.Date] {
			fmt.Fprintln(e.out, addedStyle.Render("+ "+line))
		} else {
			fmt.Fprintln(e.out, syncedStyle.Render("= "+line))
		}
	}
	fmt.Fprintf(e.out, "\nPlan: %d day(s) will be posted, %d already in sync\n", len(rep.Pending), rep.InSyncCount())
	return rep, nil
}

func (e *Executor) remoteIncome() ([]*ynab.Transaction, error) {
	if e.ynab == nil {
		return nil, fmt.Errorf("ynab client not configured")
	}
	if e.config.YNAB.BudgetID == "" || e.config.YNAB.AccountID == "" {
		return nil, fmt.Errorf("ynab budget_id and account_id are required")
	}
	remote, err := e.ynab.Transaction().GetTransactionsByAccount(e.config.YNAB.BudgetID, e.config.YNAB.AccountID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch remote transactions: %w", err)
	}
	return remote, nil
}
