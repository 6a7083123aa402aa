package csv

import (
	"bytes"
	"encoding/csv"
)

// Record is any table row that knows its column names and cell values.
type Record interface {
	Header() []string
	Values() []string
}

type FilterFunc[T Record] func(T) bool

// Create renders records as CSV with a header line. The header comes from the
// zero value of T, so an empty table still carries its columns.
func Create[T Record](records []T, filter FilterFunc[T]) []byte {
	var (
		buf  bytes.Buffer
		zero T
	)
	w := csv.NewWriter(&buf)
	_ = w.Write(zero.Header())
	for _, r := range records {
		if filter == nil || filter(r) {
			_ = w.Write(r.Values())
		}
	}
	w.Flush()
	return buf.Bytes()
}

// Read parses CSV data into records, accepting rows of varying width.
func Read(data []byte) ([][]string, error) {
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	return r.ReadAll()
}
