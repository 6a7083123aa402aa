package ynab

import (
	"fmt"
	"strings"

	"github.com/brunomvsouza/ynab.go"
	"github.com/brunomvsouza/ynab.go/api"
	"github.com/brunomvsouza/ynab.go/api/account"
	"github.com/brunomvsouza/ynab.go/api/budget"
	"github.com/brunomvsouza/ynab.go/api/transaction"
	"github.com/yurifrl/kupa/pkg/report"
)

// memoPrefix marks transactions created by this tool. The memo's first comma
// separated field is the custom id used to recognise a day already posted.
const memoPrefix = "kupa:"

// YNABClient wraps the original YNAB client and adds custom functionality
type YNABClient struct {
	client ynab.ClientServicer
}

// TransactionService wraps the original transaction service
type TransactionService struct {
	client   *YNABClient
	original *transaction.Service
}

// Transaction wraps the core YNAB transaction adding CustomID extracted from
// the memo first CSV field.
type Transaction struct {
	*transaction.Transaction
	customID string
}

func extractCustomID(tx *transaction.Transaction) string {
	if tx == nil || tx.Memo == nil {
		return ""
	}
	memo := strings.Trim(*tx.Memo, "\"")
	if idx := strings.Index(memo, ","); idx > 0 {
		return memo[:idx]
	}
	return ""
}

func New(token string) *YNABClient {
	return &YNABClient{
		client: ynab.NewClient(token),
	}
}

func (c *YNABClient) Transaction() *TransactionService {
	return &TransactionService{
		client:   c,
		original: c.client.Transaction(),
	}
}

func (c *YNABClient) Budget() *budget.Service {
	return c.client.Budget()
}

func (c *YNABClient) Account() *account.Service {
	return c.client.Account()
}

func (ts *TransactionService) GetTransactionsByAccount(budgetID, accountID string) ([]*Transaction, error) {
	originalTransactions, err := ts.original.GetTransactionsByAccount(budgetID, accountID, nil)
	if err != nil {
		return nil, err
	}

	transactions := make([]*Transaction, 0, len(originalTransactions))
	for _, tx := range originalTransactions {
		transactions = append(transactions, Wrap(tx))
	}
	return transactions, nil
}

// CreateTransactions creates multiple transactions in one API call
func (ts *TransactionService) CreateTransactions(budgetID string, payloads []transaction.PayloadTransaction) error {
	if len(payloads) == 0 {
		return nil
	}
	_, err := ts.original.CreateTransactions(budgetID, payloads)
	return err
}

// Wrap attaches the memo custom id to a YNAB transaction.
func Wrap(tx *transaction.Transaction) *Transaction {
	return &Transaction{Transaction: tx, customID: extractCustomID(tx)}
}

func (t *Transaction) CustomID() string {
	return t.customID
}

// CustomID is the id a day of sales is posted under.
func CustomID(date string) string {
	return memoPrefix + date
}

// Memo is the memo of a posted day.
func Memo(row report.DailyRow) string {
	return fmt.Sprintf("%s,%d transactions", CustomID(row.Date), row.TransactionCount)
}

// Milliunits converts a currency amount to YNAB's integer milliunits.
func Milliunits(row report.DailyRow) int64 {
	return row.TotalSales.Shift(3).Round(0).IntPart()
}

// Pending returns the days that have no remote transaction with their custom
// id yet.
func Pending(daily []report.DailyRow, remote []*Transaction) []report.DailyRow {
	posted := make(map[string]bool, len(remote))
	for _, rt := range remote {
		if id := rt.CustomID(); id != "" {
			posted[id] = true
		}
	}
	out := make([]report.DailyRow, 0, len(daily))
	for _, row := range daily {
		if !posted[CustomID(row.Date)] {
			out = append(out, row)
		}
	}
	return out
}

// Payloads turns daily totals into cleared inflow transactions.
func Payloads(daily []report.DailyRow, accountID, payee string) ([]transaction.PayloadTransaction, error) {
	out := make([]transaction.PayloadTransaction, 0, len(daily))
	for _, row := range daily {
		date, err := api.DateFromString(row.Date)
		if err != nil {
			return nil, fmt.Errorf("invalid date %q: %w", row.Date, err)
		}
		memo := Memo(row)
		name := payee
		out = append(out, transaction.PayloadTransaction{
			AccountID: accountID,
			Date:      date,
			Amount:    Milliunits(row),
			Cleared:   transaction.ClearingStatusCleared,
			Approved:  true,
			PayeeName: &name,
			Memo:      &memo,
		})
	}
	return out, nil
}
