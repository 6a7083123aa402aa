package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/yurifrl/kupa/pkg/cache"
	"github.com/yurifrl/kupa/pkg/config"
	"github.com/yurifrl/kupa/pkg/csv"
	"github.com/yurifrl/kupa/pkg/executors"
	"github.com/yurifrl/kupa/pkg/importer"
	"github.com/yurifrl/kupa/pkg/models"
	"github.com/yurifrl/kupa/pkg/parser"
	"github.com/yurifrl/kupa/pkg/rows"
	"github.com/yurifrl/kupa/pkg/store"
	"github.com/yurifrl/kupa/pkg/workbook"
	"github.com/yurifrl/kupa/pkg/ynab"
)

const (
	maxUploadSize = 32 << 20
	xlsxType      = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// tables maps the table names used in URLs to workbook sheets.
var tables = map[string]string{
	"daily":        workbook.SheetDaily,
	"transactions": workbook.SheetTransactions,
	"items":        workbook.SheetItems,
	"rows":         workbook.SheetRows,
}

// Server handles report uploads and serves the derived tables.
type Server struct {
	config   *config.Config
	logger   *log.Logger
	router   chi.Router
	parser   *parser.Parser
	importer *importer.Importer
	cache    *cache.Cache
	store    store.Store
}

// New creates a new HTTP server backed by st for synced rows.
func New(config *config.Config, logger *log.Logger, st store.Store) (*Server, error) {
	p, err := parser.FromConfig(config, logger)
	if err != nil {
		return nil, err
	}
	s := &Server{
		config:   config,
		logger:   logger,
		router:   chi.NewRouter(),
		parser:   p,
		importer: importer.New(logger),
		cache:    cache.New(),
		store:    st,
	}
	s.setupRoutes()
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until the listener fails.
func (s *Server) Start(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv.ListenAndServe()
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RealIP)
	s.router.Use(s.withLogging)

	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/process", s.handleProcess)

		r.Route("/uploads/{id}", func(r chi.Router) {
			r.Get("/export.xlsx", s.handleExport)
			r.Get("/rows.csv", s.handleRowsCSV)
			r.Get("/{table}", s.handleTable)
			r.Post("/sync", s.handleSync)
			r.Delete("/", s.handleDelete)
		})

		r.Get("/history/{table}", s.handleHistory)

		r.Get("/budgets", s.handleBudgets)
		r.Get("/budgets/{budgetID}/accounts", s.handleBudgetAccounts)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}); err != nil {
		s.logger.Warn("failed to write json response", "err", err)
	}
}

// ---------------- upload handler ----------------

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		s.respondError(w, r, http.StatusBadRequest, "failed to read upload", err)
		return
	}
	headers := r.MultipartForm.File["report"]
	if len(headers) == 0 {
		s.respondError(w, r, http.StatusBadRequest, "report file required", nil)
		return
	}

	var (
		sets    [][]*models.Transaction
		sources []string
	)
	for _, header := range headers {
		file, err := header.Open()
		if err != nil {
			s.respondError(w, r, http.StatusBadRequest, "failed to read file", err)
			return
		}
		data, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			s.respondError(w, r, http.StatusInternalServerError, "failed to read file", err)
			return
		}

		txns, err := s.parser.ProcessBytes(data, header.Filename)
		if err != nil {
			s.respondError(w, r, http.StatusBadRequest, "failed to process "+header.Filename, err)
			return
		}
		sets = append(sets, txns)
		sources = append(sources, header.Filename)
	}

	entry := s.cache.Put(sources, s.importer.Combine(sets...))
	s.logger.Info("processed upload", "id", entry.ID, "files", len(sources), "transactions", len(entry.Transactions))

	resp := map[string]interface{}{
		"status":       "success",
		"id":           entry.ID,
		"fingerprint":  entry.Fingerprint,
		"sources":      entry.Sources,
		"transactions": len(entry.Transactions),
		"daily":        tableRows(workbook.SheetDaily, entry.Transactions),
	}
	if len(entry.Transactions) == 0 {
		resp["warning"] = "no transactions were found in the uploaded report"
	}
	if err := s.writeJSON(w, http.StatusOK, resp); err != nil {
		s.logger.Warn("failed to write json response", "err", err)
	}
}

// ---------------- upload views ----------------

func (s *Server) entry(w http.ResponseWriter, r *http.Request) (*cache.Entry, bool) {
	entry, err := s.cache.Get(chi.URLParam(r, "id"))
	if errors.Is(err, cache.ErrNotFound) {
		s.respondError(w, r, http.StatusNotFound, "upload not found", nil)
		return nil, false
	}
	if err != nil {
		s.respondError(w, r, http.StatusInternalServerError, "failed to load upload", err)
		return nil, false
	}
	return entry, true
}

func (s *Server) handleTable(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.entry(w, r)
	if !ok {
		return
	}
	s.writeTable(w, r, chi.URLParam(r, "table"), entry.Transactions)
}

func (s *Server) writeTable(w http.ResponseWriter, r *http.Request, name string, txns []*models.Transaction) {
	sheet, ok := tables[name]
	if !ok {
		s.respondError(w, r, http.StatusNotFound, "unknown table "+name, nil)
		return
	}
	t := tableRows(sheet, txns)
	if err := s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "success",
		"table":  name,
		"header": t.Header,
		"rows":   t.Rows,
	}); err != nil {
		s.logger.Warn("failed to write json response", "err", err)
	}
}

func tableRows(sheet string, txns []*models.Transaction) workbook.Table {
	for _, t := range workbook.Tables(txns) {
		if t.Name == sheet {
			if t.Rows == nil {
				t.Rows = [][]string{}
			}
			return t
		}
	}
	return workbook.Table{Name: sheet, Rows: [][]string{}}
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.entry(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := workbook.Write(&buf, entry.Transactions); err != nil {
		s.respondError(w, r, http.StatusInternalServerError, "failed to build workbook", err)
		return
	}

	w.Header().Set("Content-Type", xlsxType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"kupa-%s.xlsx\"", entry.ID))
	if _, err := w.Write(buf.Bytes()); err != nil {
		s.logger.Warn("failed to write workbook response", "err", err)
	}
}

// handleRowsCSV serves the flat rows of an upload. An item query parameter
// keeps only rows whose item name contains it.
func (s *Server) handleRowsCSV(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.entry(w, r)
	if !ok {
		return
	}
	var filter csv.FilterFunc[rows.Row]
	if item := strings.ToLower(r.URL.Query().Get("item")); item != "" {
		filter = func(row rows.Row) bool {
			return strings.Contains(strings.ToLower(row.ItemName), item)
		}
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"kupa-%s.csv\"", entry.ID))
	if _, err := w.Write(csv.Create(rows.Flatten(entry.Transactions), filter)); err != nil {
		s.logger.Warn("failed to write csv response", "err", err)
	}
}

// ---------------- sync and delete ----------------

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.entry(w, r)
	if !ok {
		return
	}
	dryRun, _ := strconv.ParseBool(r.URL.Query().Get("dry_run"))

	exec := executors.New(s.logger, s.config, s.store, nil)
	exec.SetOutput(io.Discard)
	local := rows.Flatten(entry.Transactions)

	rep, err := exec.Plan(r.Context(), local)
	if err != nil {
		s.respondError(w, r, http.StatusBadGateway, "failed to read store", err)
		return
	}
	appended := 0
	if !dryRun {
		if appended, err = exec.Apply(r.Context(), local); err != nil {
			s.respondError(w, r, http.StatusBadGateway, "sync failed", err)
			return
		}
	}

	if err := s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "success",
		"dry_run":  dryRun,
		"to_add":   rep.MissingCount(),
		"in_sync":  rep.InSyncCount(),
		"appended": appended,
	}); err != nil {
		s.logger.Warn("failed to write json response", "err", err)
	}
}

// handleDelete drops an upload from the cache. With purge=true its rows are
// also removed from the store.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.entry(w, r)
	if !ok {
		return
	}
	purged := 0
	if purge, _ := strconv.ParseBool(r.URL.Query().Get("purge")); purge {
		local := rows.Flatten(entry.Transactions)
		ids := make([]string, len(local))
		for i, row := range local {
			ids[i] = row.TransactionID
		}
		n, err := s.store.Delete(r.Context(), ids)
		if err != nil {
			s.respondError(w, r, http.StatusBadGateway, "failed to delete stored rows", err)
			return
		}
		purged = n
	}
	s.cache.Invalidate(entry.ID)

	if err := s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "deleted",
		"id":     entry.ID,
		"purged": purged,
	}); err != nil {
		s.logger.Warn("failed to write json response", "err", err)
	}
}

// handleHistory renders a table from every row in the store.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	stored, err := s.store.ReadAll(r.Context())
	if err != nil {
		s.respondError(w, r, http.StatusBadGateway, "failed to read store", err)
		return
	}
	name := chi.URLParam(r, "table")
	if name == "rows" {
		values := make([][]string, 0, len(stored))
		for _, row := range stored {
			values = append(values, row.Values())
		}
		if err := s.writeJSON(w, http.StatusOK, map[string]interface{}{
			"status": "success",
			"table":  name,
			"header": rows.Columns,
			"rows":   values,
		}); err != nil {
			s.logger.Warn("failed to write json response", "err", err)
		}
		return
	}
	s.writeTable(w, r, name, rows.Unflatten(stored))
}

// ---------------- ynab lookups ----------------

func (s *Server) handleBudgets(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = s.config.YNAB.Token
	}
	if token == "" {
		s.respondError(w, r, http.StatusBadRequest, "token required", nil)
		return
	}

	budgets, err := ynab.New(token).Budget().GetBudgets()
	if err != nil {
		s.respondError(w, r, http.StatusBadGateway, "failed to fetch budgets", err)
		return
	}
	s.logger.Debug("budgets response", "budgets_count", len(budgets))

	if err := s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "success",
		"budgets": budgets,
	}); err != nil {
		s.logger.Warn("failed to write json response", "err", err)
	}
}

func (s *Server) handleBudgetAccounts(w http.ResponseWriter, r *http.Request) {
	budgetID := chi.URLParam(r, "budgetID")
	token := r.URL.Query().Get("token")
	if token == "" {
		token = s.config.YNAB.Token
	}
	if token == "" {
		s.respondError(w, r, http.StatusBadRequest, "token required", nil)
		return
	}

	snapshot, err := ynab.New(token).Account().GetAccounts(budgetID, nil)
	if err != nil {
		s.respondError(w, r, http.StatusBadGateway, "failed to fetch accounts", err)
		return
	}
	var accounts interface{} = []interface{}{}
	if snapshot != nil && snapshot.Accounts != nil {
		accounts = snapshot.Accounts
	}
	s.logger.Debug("accounts response", "budget_id", budgetID)

	if err := s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "success",
		"accounts": accounts,
	}); err != nil {
		s.logger.Warn("failed to write json response", "err", err)
	}
}

// --- helpers ---

// writeJSON encodes v as JSON with the given status and writes headers.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

// respondError logs the error and returns a minimal JSON error body.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, status int, message string, err error) {
	if err != nil {
		s.logger.Warn("request error", "status", status, "msg", message, "err", err, "method", r.Method, "path", r.URL.Path)
	} else {
		s.logger.Warn("request error", "status", status, "msg", message, "method", r.Method, "path", r.URL.Path)
	}
	_ = s.writeJSON(w, status, map[string]string{
		"status": "error",
		"error":  message,
	})
}

// withLogging logs each request and recovers panics.
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.logger.Debug("http request", "method", r.Method, "path", r.URL.Path, "remote", r.RemoteAddr)
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", "panic", rec, "method", r.Method, "path", r.URL.Path)
				s.respondError(w, r, http.StatusInternalServerError, "internal server error", fmt.Errorf("panic: %v", rec))
			}
		}()
		next.ServeHTTP(w, r)
	})
}
