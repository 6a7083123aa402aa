package executors

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/yurifrl/kupa/pkg/config"
	"github.com/yurifrl/kupa/pkg/store"
	"github.com/yurifrl/kupa/pkg/ynab"
)

type Executor struct {
	logger *log.Logger
	config *config.Config
	store  store.Store
	ynab   *ynab.YNABClient
	out    io.Writer
}

// New builds an executor. The YNAB client may be nil when only the row store
// is synced.
func New(logger *log.Logger, config *config.Config, store store.Store, ynab *ynab.YNABClient) *Executor {
	return &Executor{
		logger: logger,
		config: config,
		store:  store,
		ynab:   ynab,
		out:    os.Stdout,
	}
}

// SetOutput redirects plan previews, which go to stdout by default.
func (e *Executor) SetOutput(w io.Writer) {
	e.out = w
}
