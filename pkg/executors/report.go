package executors

import (
	"github.com/yurifrl/kupa/pkg/report"
	"github.com/yurifrl/kupa/pkg/rows"
	"github.com/yurifrl/kupa/pkg/ynab"
)

// Status indicates the reconciliation result for a local row.
type Status int

const (
	Synced Status = iota
	ToAdd
)

// Entry links a local row with its reconciliation status.
type Entry struct {
	Local  rows.Row
	Status Status
}

// Report is the result of matching local rows against a store.
type Report struct {
	Items  []Entry
	toSync []rows.Row
}

// BuildReport matches local rows against stored ones by transaction id. A
// row repeated locally is only added once.
func BuildReport(local, remote []rows.Row) *Report {
	idx := make(map[string]bool, len(remote))
	for _, r := range remote {
		idx[r.TransactionID] = true
	}

	items := make([]Entry, 0, len(local))
	toSync := make([]rows.Row, 0)
	for _, lr := range local {
		status := ToAdd
		if idx[lr.TransactionID] {
			status = Synced
		}
		items = append(items, Entry{Local: lr, Status: status})
		if status == ToAdd {
			toSync = append(toSync, lr)
			idx[lr.TransactionID] = true
		}
	}
	return &Report{Items: items, toSync: toSync}
}

// InSyncCount returns how many local rows already exist remotely.
func (r *Report) InSyncCount() int {
	return len(r.Items) - len(r.toSync)
}

// MissingCount returns how many local rows still need to be written.
func (r *Report) MissingCount() int {
	return len(r.toSync)
}

func (r *Report) RowsToSync() []rows.Row {
	return r.toSync
}

// IncomeReport is the result of matching daily totals against YNAB.
type IncomeReport struct {
	Daily   []report.DailyRow
	Pending []report.DailyRow
}

func BuildIncomeReport(daily []report.DailyRow, remote []*ynab.Transaction) *IncomeReport {
	return &IncomeReport{Daily: daily, Pending: ynab.Pending(daily, remote)}
}

func (r *IncomeReport) InSyncCount() int {
	return len(r.Daily) - len(r.Pending)
}
