package parser

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/shopspring/decimal"
	"github.com/yurifrl/kupa/pkg/config"
	"github.com/yurifrl/kupa/pkg/markup"
	"github.com/yurifrl/kupa/pkg/models"
	"github.com/yurifrl/kupa/pkg/report"
)

func readFixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("Failed to read %s: %v", name, err)
	}
	return data
}

func TestParseLabeledReport(t *testing.T) {
	parser := New(log.Default())
	res, err := parser.Parse(readFixture(t, "report_labeled.html"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if res.Layout != LayoutLabeled {
		t.Errorf("Expected layout %s, got %s", LayoutLabeled, res.Layout)
	}
	if res.Blocks != 2 || res.Skipped != 1 {
		t.Errorf("Expected 2 blocks with 1 skipped, got %d blocks with %d skipped", res.Blocks, res.Skipped)
	}
	if len(res.Transactions) != 1 {
		t.Fatalf("Expected 1 transaction, got %d", len(res.Transactions))
	}

	tx := res.Transactions[0]
	assertTransaction(t, tx, "1001", "2024-03-15", "14:30", "85.50")
	if tx.InvoiceNum != "5001" || tx.TransactionType != "מכירה" || tx.ZNumber != "77" || tx.Register != "1" {
		t.Errorf("Header mismatch: %+v", tx)
	}
	if tx.CustomerName != "" || tx.CustomerCode != "" {
		t.Errorf("Expected empty customer fields, got %q %q", tx.CustomerName, tx.CustomerCode)
	}
	if !tx.Declared() {
		t.Errorf("Expected declared totals")
	}
	assertDecimal(t, "total vat", tx.TotalVAT, "12.42")
	assertDecimal(t, "total items", tx.TotalItems, "73.08")

	if len(tx.Items) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(tx.Items))
	}
	assertItem(t, tx.Items[0], "Cappuccino", "2", "34.00")
	assertItem(t, tx.Items[1], "Croissant", "1", "51.50")
	if tx.Items[0].Code != "101" || tx.Items[0].Cashier != "Dana" {
		t.Errorf("Expected code 101 and cashier Dana, got %q %q", tx.Items[0].Code, tx.Items[0].Cashier)
	}
	assertDecimal(t, "vat", tx.Items[1].VATAmount, "7.48")

	if len(tx.Payments) != 1 {
		t.Fatalf("Expected 1 payment, got %d", len(tx.Payments))
	}
	p := tx.Payments[0]
	if p.Method != "אשראי" || p.Approval != "0012345" || p.Reference != "9911" {
		t.Errorf("Payment mismatch: %+v", p)
	}
	assertDecimal(t, "payment", p.Amount, "85.50")
}

func TestEndToEndSummaries(t *testing.T) {
	parser := New(log.Default())
	txns, err := parser.ProcessBytes(readFixture(t, "report_labeled.html"), "report.html")
	if err != nil {
		t.Fatalf("ProcessBytes failed: %v", err)
	}
	if len(txns) != 1 {
		t.Fatalf("Expected 1 transaction, got %d", len(txns))
	}

	daily := report.DailySummary(txns)
	if len(daily) != 1 {
		t.Fatalf("Expected 1 daily row, got %d", len(daily))
	}
	assertDecimal(t, "total sales", daily[0].TotalSales, "85.50")
	if daily[0].TransactionCount != 1 {
		t.Errorf("Expected transaction count 1, got %d", daily[0].TransactionCount)
	}

	items := report.ItemSummary(txns)
	if len(items) != 2 {
		t.Fatalf("Expected 2 item rows, got %d", len(items))
	}
	quantities := map[string]string{}
	for _, it := range items {
		quantities[it.ItemName] = it.Quantity.String()
	}
	if quantities["Cappuccino"] != "2" || quantities["Croissant"] != "1" {
		t.Errorf("Unexpected quantities: %v", quantities)
	}
}

func TestParsePositionalReport(t *testing.T) {
	parser := New(log.Default())
	res, err := parser.Parse(readFixture(t, "report_positional.html"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if res.Layout != LayoutPositional {
		t.Fatalf("Expected layout %s, got %s", LayoutPositional, res.Layout)
	}
	if len(res.Transactions) != 1 {
		t.Fatalf("Expected 1 transaction, got %d", len(res.Transactions))
	}

	tx := res.Transactions[0]
	assertTransaction(t, tx, "2001", "2024-03-16", "09:15", "32.00")
	if tx.InvoiceNum != "6001" || tx.Register != "2" {
		t.Errorf("Header mismatch: %+v", tx)
	}
	if len(tx.Items) != 2 {
		t.Fatalf("Expected the totals-classed row to be skipped, got %d items", len(tx.Items))
	}
	assertItem(t, tx.Items[0], "Espresso", "2", "18.00")
	assertDecimal(t, "legacy vat", tx.Items[0].VATAmount, "0")
	assertDecimal(t, "total vat", tx.TotalVAT, "4.65")

	if got := tx.PaymentMethod(); got != "מזומן" {
		t.Errorf("Expected primary payment מזומן, got %q", got)
	}
}

func TestForcedLayout(t *testing.T) {
	// Read positionally, the labeled header values land in the wrong fields
	// and no block keeps a parseable date.
	parser := New(log.Default(), WithLayout(LayoutPositional))
	res, err := parser.Parse(readFixture(t, "report_labeled.html"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if res.Layout != LayoutPositional || len(res.Transactions) != 0 {
		t.Errorf("Expected no transactions with a forced positional layout, got %d", len(res.Transactions))
	}
}

func TestParseIsIdempotent(t *testing.T) {
	parser := New(log.Default())
	data := readFixture(t, "report_labeled.html")

	first, err := parser.Parse(data)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	second, err := parser.Parse(data)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Parsing twice gave different results:\n%+v\n%+v", first, second)
	}
}

func TestParseErrors(t *testing.T) {
	parser := New(log.Default())
	tests := []struct {
		name  string
		input string
		want  error
	}{
		{"empty", "", markup.ErrEmptyDocument},
		{"whitespace", "  \n\t ", markup.ErrEmptyDocument},
		{"plain text", "order 1001 total 85.50", markup.ErrNotMarkup},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parser.Parse([]byte(tt.input))
			if !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestNoBlocksIsNotAnError(t *testing.T) {
	parser := New(log.Default())
	res, err := parser.Parse([]byte("<html><body><p>no sales today</p></body></html>"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if res.Blocks != 0 || len(res.Transactions) != 0 {
		t.Errorf("Expected an empty result, got %+v", res)
	}
}

func TestBlockRecovery(t *testing.T) {
	tests := []struct {
		name         string
		block        string
		wantOrder    string
		wantTime     string
		wantTotal    string
		wantItems    int
		wantPayments int
	}{
		{
			name:      "fallback totals",
			block:     block("3001", "15/03/2024 10:00", itemRow("Tea", "1", "12.00", "10.26", "12.00", "1.74"), itemRow("Cookie", "2", "6.25", "10.68", "12.50", "1.82")),
			wantOrder: "3001",
			wantTime:  "10:00",
			wantTotal: "24.50",
			wantItems: 2,
		},
		{
			name:      "date only",
			block:     block("3002", "15/03/2024", itemRow("Tea", "1", "12.00", "10.26", "12.00", "1.74")),
			wantOrder: "3002",
			wantTime:  "00:00",
			wantTotal: "12.00",
			wantItems: 1,
		},
		{
			name:      "malformed row",
			block:     block("3003", "15/03/2024 11:00", itemRow("Tea", "1", "12.00", "10.26", "12.00", "1.74"), itemRow("Broken", "1", "5.00", "4.27", "", "")),
			wantOrder: "3003",
			wantTime:  "11:00",
			wantTotal: "12.00",
			wantItems: 1,
		},
		{
			name:      "unparseable number",
			block:     block("3004", "15/03/2024 11:30", itemRow("Tea", "1", "12.00", "10.26", "12.00", "1.74"), itemRow("Odd", "one", "5.00", "4.27", "5.00", "0.73")),
			wantOrder: "3004",
			wantTime:  "11:30",
			wantTotal: "12.00",
			wantItems: 1,
		},
		{
			name:      "thousands separator",
			block:     block("3005", "15/03/2024 12:00", itemRow("Catering", "1", "1,250.00", "1,068.38", "1,250.00", "181.62")),
			wantOrder: "3005",
			wantTime:  "12:00",
			wantTotal: "1250",
			wantItems: 1,
		},
		{
			name: "tender row without method",
			block: withTenders(block("3006", "15/03/2024 12:30", itemRow("Tea", "1", "12.00", "10.26", "12.00", "1.74")),
				tenderRow("", "5.00"), tenderRow("מזומן", "12.00")),
			wantOrder:    "3006",
			wantTime:     "12:30",
			wantTotal:    "12.00",
			wantItems:    1,
			wantPayments: 1,
		},
		{
			name: "tender and totals rows among items",
			block: block("3007", "15/03/2024 13:00",
				itemRow("Tea", "1", "12.00", "10.26", "12.00", "1.74"),
				`<div class="item"><div class="item-row tender-row"><span>Cash</span><div class="num">1</div><div class="num">12.00</div><div class="num">10.26</div><div class="num">12.00</div><div class="num">A</div><div class="num">1.74</div></div></div>`,
				`<div class="item-row totals-row"><span>Total</span><div class="num">1</div><div class="num">12.00</div><div class="num">10.26</div><div class="num">12.00</div><div class="num">A</div><div class="num">1.74</div></div>`),
			wantOrder: "3007",
			wantTime:  "13:00",
			wantTotal: "12.00",
			wantItems: 1,
		},
	}

	parser := New(log.Default())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := parser.Parse(document(tt.block))
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}
			if len(res.Transactions) != 1 {
				t.Fatalf("Expected 1 transaction, got %d", len(res.Transactions))
			}
			tx := res.Transactions[0]
			assertTransaction(t, tx, tt.wantOrder, "2024-03-15", tt.wantTime, tt.wantTotal)
			if len(tx.Items) != tt.wantItems {
				t.Errorf("Expected %d items, got %d", tt.wantItems, len(tx.Items))
			}
			if len(tx.Payments) != tt.wantPayments {
				t.Errorf("Expected %d payments, got %d", tt.wantPayments, len(tx.Payments))
			}
			if tt.wantPayments > 0 && tx.PaymentMethod() != "מזומן" {
				t.Errorf("Expected the cash tender to be kept, got %q", tx.PaymentMethod())
			}
			if tx.Declared() {
				t.Errorf("Expected computed totals")
			}
			if !tx.Total.Equal(tx.ItemsTotal()) {
				t.Errorf("Expected total %s to equal the line sum %s", tx.Total, tx.ItemsTotal())
			}
		})
	}
}

func TestBlockRejection(t *testing.T) {
	tests := []struct {
		name  string
		block string
	}{
		{"no date", block("4001", "", itemRow("Tea", "1", "12.00", "10.26", "12.00", "1.74"))},
		{"bad date", block("4002", "yesterday", itemRow("Tea", "1", "12.00", "10.26", "12.00", "1.74"))},
		{"zero total", block("4003", "15/03/2024 10:00", itemRow("Water", "1", "0", "0", "0", "0"))},
		{"no items", block("4004", "15/03/2024 10:00")},
	}

	parser := New(log.Default())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := parser.Parse(document(tt.block))
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}
			if len(res.Transactions) != 0 {
				t.Errorf("Expected the block to be rejected, got %+v", res.Transactions[0])
			}
			if res.Skipped != 1 {
				t.Errorf("Expected 1 skipped block, got %d", res.Skipped)
			}
		})
	}
}

func TestCancelledBlocksAreExcluded(t *testing.T) {
	parser := New(log.Default())
	res, err := parser.Parse(document(
		block("5001", "15/03/2024 10:00", itemRow("Tea", "1", "12.00", "10.26", "12.00", "1.74")),
		block("5002", "15/03/2024 10:05", itemRow("Tea", "1", "0", "0", "0", "0")),
		block("5003", "15/03/2024 10:10", itemRow("Tea", "2", "12.00", "20.51", "24.00", "3.49")),
	))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	for _, tx := range res.Transactions {
		if tx.OrderID == "5002" {
			t.Errorf("Cancelled order 5002 was returned")
		}
	}
	if len(res.Transactions) != 2 {
		t.Errorf("Expected 2 transactions, got %d", len(res.Transactions))
	}
}

func TestDetectType(t *testing.T) {
	tests := []struct {
		filename string
		data     string
		want     FileType
	}{
		{"report.html", "", ReportHTML},
		{"REPORT.HTM", "", ReportHTML},
		{"rows.csv", "date,order_id", RowsCSV},
		{"rows.xlsx", "PK", RowsXLSX},
		{"legacy.xls", "\xd0\xcf\x11\xe0", RowsXLS},
		{"report.xls", "\xef\xbb\xbf  <html>", ReportHTML},
		{"download", "<div class=\"data-block\"></div>", ReportHTML},
		{"notes.txt", "plain", ""},
	}
	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			if got := detectType(tt.filename, []byte(tt.data)); got != tt.want {
				t.Errorf("detectType(%q) = %q, want %q", tt.filename, got, tt.want)
			}
		})
	}
}

func TestProcessBytesUnknownType(t *testing.T) {
	parser := New(log.Default())
	if _, err := parser.ProcessBytes([]byte("plain"), "notes.txt"); !errors.Is(err, ErrUnknownFileType) {
		t.Errorf("Expected ErrUnknownFileType, got %v", err)
	}
}

func TestProcessBytesRowsCSV(t *testing.T) {
	csvData := strings.Join([]string{
		"Transaction_ID,Date,Time,Order_ID,Invoice_Num,Payment_Method,Item_Name,Item_Code,Quantity,Unit_Price,Taxable_Amount,Sale_Price,VAT_Amount,Cashier,Register",
		"x,2024-03-15,14:30,1001,5001,card,Cappuccino,101,2,17.00,29.06,34.00,4.94,Dana,1",
		"y,2024-03-15,14:30,1001,5001,card,Croissant,202,1,51.50,44.02,51.50,7.48,Dana,1",
		"z,2024-03-15,15:00,1002,5002,cash,Tea,,1,bad,0,12.00,0,,1",
	}, "\n")

	parser := New(log.Default())
	txns, err := parser.ProcessBytes([]byte(csvData), "rows.csv")
	if err != nil {
		t.Fatalf("ProcessBytes failed: %v", err)
	}
	if len(txns) != 1 {
		t.Fatalf("Expected 1 transaction, got %d", len(txns))
	}
	assertTransaction(t, txns[0], "1001", "2024-03-15", "14:30", "85.50")
	if got := txns[0].PaymentMethod(); got != "card" {
		t.Errorf("Expected payment method card, got %q", got)
	}
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		raw  string
		want string
		ok   bool
	}{
		{"34.00", "34", true},
		{"1,234.50", "1234.5", true},
		{"₪ 12.90", "12.9", true},
		{"12.90 ש\"ח", "12.9", true},
		{"\u200f-5.00", "-5", true},
		{"", "", false},
		{"A", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := parseNumber(tt.raw)
			if (err == nil) != tt.ok {
				t.Fatalf("parseNumber(%q) error = %v", tt.raw, err)
			}
			if tt.ok && !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("parseNumber(%q) = %s, want %s", tt.raw, got, tt.want)
			}
		})
	}
}

func TestDecodeColumns(t *testing.T) {
	cols, err := decodeItemColumns([]string{"2", "17.00", "29.06", "34.00", "A", "4.94"})
	if err != nil {
		t.Fatalf("decodeItemColumns failed: %v", err)
	}
	if cols.VATCode != "A" {
		t.Errorf("Expected VAT code A, got %q", cols.VATCode)
	}
	assertDecimal(t, "sale price", cols.SalePrice, "34.00")
	assertDecimal(t, "vat", cols.VATAmount, "4.94")

	if _, err := decodeItemColumns([]string{"2", "17.00", "29.06", "34.00"}); !errors.Is(err, errTooFewColumns) {
		t.Errorf("Expected errTooFewColumns, got %v", err)
	}
	if _, err := decodeLegacyItemColumns([]string{"2", "17.00", "29.06", "34.00"}); err != nil {
		t.Errorf("decodeLegacyItemColumns failed: %v", err)
	}
	if _, err := decodeTotalsColumns([]string{"1", "2"}); !errors.Is(err, errTooFewColumns) {
		t.Errorf("Expected errTooFewColumns, got %v", err)
	}
}

func TestLabels(t *testing.T) {
	if l, ok := lookupHeaderLabel(" תאריך: "); !ok || l != LabelDate {
		t.Errorf("Expected LabelDate, got %v %v", l, ok)
	}
	if _, ok := lookupHeaderLabel("שם מלצר"); ok {
		t.Errorf("Expected an unknown title to be ignored")
	}
	if l, ok := lookupTenderLabel("סכום בש\"ח"); !ok || l != TenderAmount {
		t.Errorf("Expected TenderAmount, got %v %v", l, ok)
	}
	if LabelOrder.String() != "הזמנה" {
		t.Errorf("Unexpected label name %q", LabelOrder.String())
	}
}

func TestParseLayout(t *testing.T) {
	for in, want := range map[string]Layout{"": LayoutAuto, "AUTO": LayoutAuto, "labeled": LayoutLabeled, " positional ": LayoutPositional} {
		got, err := ParseLayout(in)
		if err != nil || got != want {
			t.Errorf("ParseLayout(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseLayout("v3"); err == nil {
		t.Errorf("Expected an error for an unknown layout")
	}
}

func TestFromConfig(t *testing.T) {
	p, err := FromConfig(&config.Config{Layout: "positional", DivergenceTolerance: "0.5"}, log.Default())
	if err != nil {
		t.Fatalf("FromConfig returned error: %v", err)
	}
	if p.layout != LayoutPositional {
		t.Errorf("Expected positional layout, got %q", p.layout)
	}
	assertDecimal(t, "tolerance", p.tolerance, "0.5")

	p, err = FromConfig(&config.Config{}, log.Default())
	if err != nil {
		t.Fatalf("FromConfig returned error: %v", err)
	}
	if p.layout != LayoutAuto || !p.tolerance.Equal(DefaultDivergenceTolerance) {
		t.Errorf("Expected defaults, got %q and %s", p.layout, p.tolerance)
	}

	if _, err := FromConfig(&config.Config{Layout: "v3"}, log.Default()); err == nil {
		t.Errorf("Expected an error for an unknown layout")
	}
	if _, err := FromConfig(&config.Config{DivergenceTolerance: "-1"}, log.Default()); err == nil {
		t.Errorf("Expected an error for a negative tolerance")
	}
}

func document(blocks ...string) []byte {
	return []byte("<html><body>" + strings.Join(blocks, "\n") + "</body></html>")
}

func block(order, date string, items ...string) string {
	header := fmt.Sprintf(`<div class="text"><div class="item-title">הזמנה</div><span class="header-num">%s</span></div>`, order)
	if date != "" {
		header += fmt.Sprintf(`<div class="text"><div class="item-title">תאריך</div><span class="header-num">%s</span></div>`, date)
	}
	return fmt.Sprintf(`<div class="data-block"><div class="trans-header">%s</div><div class="table-contents">%s</div></div>`,
		header, strings.Join(items, ""))
}

// withTenders appends a tenders table to a block rendered by block.
func withTenders(block string, rows ...string) string {
	return strings.TrimSuffix(block, "</div>") + `<div class="table-tenders">` + strings.Join(rows, "") + `</div></div>`
}

// tenderRow renders a payment row. An empty method leaves the method pair out.
func tenderRow(method, amount string) string {
	var pairs strings.Builder
	if method != "" {
		fmt.Fprintf(&pairs, `<div class="text"><div class="item-title">צורת תשלום</div><span class="tender-num">%s</span></div>`, method)
	}
	fmt.Fprintf(&pairs, `<div class="text"><div class="item-title">סכום</div><span class="tender-num">%s</span></div>`, amount)
	return `<div class="tender-row">` + pairs.String() + `</div>`
}

// itemRow renders a current-layout item row. Empty values are left out, so a
// row can be built with missing columns.
func itemRow(name string, values ...string) string {
	var cells strings.Builder
	for i, v := range values {
		if v == "" {
			continue
		}
		fmt.Fprintf(&cells, `<div class="num">%s</div>`, v)
		if i == 3 {
			cells.WriteString(`<div class="num">A</div>`)
		}
	}
	return fmt.Sprintf(`<div class="item"><div class="item-row"><span>%s</span>%s</div></div>`, name, cells.String())
}

func assertTransaction(t *testing.T, tx *models.Transaction, order, date, clock, total string) {
	t.Helper()
	if tx.OrderID != order || tx.Date() != date || tx.Time() != clock || !tx.Total.Equal(decimal.RequireFromString(total)) {
		t.Errorf("Transaction mismatch:\nExpected: order=%s, date=%s, time=%s, total=%s\nGot: order=%s, date=%s, time=%s, total=%s",
			order, date, clock, total,
			tx.OrderID, tx.Date(), tx.Time(), tx.Total)
	}
}

func assertItem(t *testing.T, it models.LineItem, name, qty, total string) {
	t.Helper()
	if it.Name != name || !it.Quantity.Equal(decimal.RequireFromString(qty)) || !it.TotalPrice.Equal(decimal.RequireFromString(total)) {
		t.Errorf("Item mismatch:\nExpected: name=%s, qty=%s, total=%s\nGot: name=%s, qty=%s, total=%s",
			name, qty, total, it.Name, it.Quantity, it.TotalPrice)
	}
}

func assertDecimal(t *testing.T, field string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(decimal.RequireFromString(want)) {
		t.Errorf("%s: expected %s, got %s", field, want, got)
	}
}
