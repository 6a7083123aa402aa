package parser

import "strings"

// HeaderLabel is a field title recognised in a receipt header.
type HeaderLabel int

const (
	LabelOrder HeaderLabel = iota + 1
	LabelInvoice
	LabelTransactionType
	LabelZNumber
	LabelDate
	LabelRegister
	LabelCustomerName
	LabelCustomerCode
)

var headerLabels = map[string]HeaderLabel{
	"הזמנה":     LabelOrder,
	"חשבונית מס": LabelInvoice,
	"סוג עסקה":  LabelTransactionType,
	"זד מספר":   LabelZNumber,
	"תאריך":     LabelDate,
	"קופה":      LabelRegister,
	"שם לקוח":   LabelCustomerName,
	"קוד לקוח":  LabelCustomerCode,
}

// positionalHeader is the field order of the legacy header, which prints
// values without titles.
var positionalHeader = []HeaderLabel{
	LabelOrder,
	LabelInvoice,
	LabelTransactionType,
	LabelRegister,
	LabelDate,
}

func (l HeaderLabel) String() string {
	for title, label := range headerLabels {
		if label == l {
			return title
		}
	}
	return "unknown"
}

// lookupHeaderLabel resolves a printed title. Unknown titles return false.
func lookupHeaderLabel(title string) (HeaderLabel, bool) {
	label, ok := headerLabels[normalizeTitle(title)]
	return label, ok
}

// TenderLabel is a field title recognised in a payment row.
type TenderLabel int

const (
	TenderMethod TenderLabel = iota + 1
	TenderAmount
	TenderApproval
	TenderReference
)

// Tender titles carry suffixes on some registers ("סכום בש״ח"), so they are
// matched by containment, in this order.
var tenderLabels = []struct {
	fragment string
	label    TenderLabel
}{
	{"צורת תשלום", TenderMethod},
	{"סכום", TenderAmount},
	{"מספר אישור", TenderApproval},
	{"סימוכין", TenderReference},
}

func lookupTenderLabel(title string) (TenderLabel, bool) {
	title = normalizeTitle(title)
	for _, t := range tenderLabels {
		if strings.Contains(title, t.fragment) {
			return t.label, true
		}
	}
	return 0, false
}

func normalizeTitle(title string) string {
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(title), ":"))
}
