package importer

import (
	"github.com/charmbracelet/log"
	"github.com/yurifrl/kupa/pkg/models"
)

// Importer merges transaction sets coming from several sources. It is
// decoupled from CLI and HTTP details so both layers can reuse it.
type Importer struct {
	logger *log.Logger
}

func New(logger *log.Logger) *Importer {
	return &Importer{logger: logger}
}

// Combine concatenates sets in order, keeping the first transaction seen for
// each (date, order id) pair.
func (i *Importer) Combine(sets ...[]*models.Transaction) []*models.Transaction {
	var (
		out  []*models.Transaction
		seen = make(map[string]bool)
	)
	for n, set := range sets {
		for _, t := range set {
			key := t.Date() + "|" + t.OrderID
			if seen[key] {
				i.logger.Debug("skipping duplicate transaction", "set", n, "order_id", t.OrderID, "date", t.Date())
				continue
			}
			seen[key] = true
			out = append(out, t)
		}
	}
	i.logger.Debug("combined transaction sets", "sets", len(sets), "transactions", len(out))
	return out
}
