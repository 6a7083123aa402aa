package store

import (
	"context"
	"sync"

	"github.com/yurifrl/kupa/pkg/rows"
)

// Memory is a process-local Store, used by default and in tests.
type Memory struct {
	mu    sync.RWMutex
	order []string
	byID  map[string]rows.Row
}

func NewMemory() *Memory {
	return &Memory{byID: make(map[string]rows.Row)}
}

func (m *Memory) Append(_ context.Context, rs []rows.Row) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing := make(map[string]bool, len(m.byID))
	for id := range m.byID {
		existing[id] = true
	}
	fresh := dedupe(rs, existing)
	for _, r := range fresh {
		m.byID[r.TransactionID] = r
		m.order = append(m.order, r.TransactionID)
	}
	return len(fresh), nil
}

func (m *Memory) ReadAll(_ context.Context) ([]rows.Row, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]rows.Row, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.byID[id])
	}
	return out, nil
}

func (m *Memory) Delete(_ context.Context, ids []string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		if _, ok := m.byID[id]; ok {
			drop[id] = true
			delete(m.byID, id)
		}
	}
	if len(drop) == 0 {
		return 0, nil
	}
	kept := m.order[:0]
	for _, id := range m.order {
		if !drop[id] {
			kept = append(kept, id)
		}
	}
	m.order = kept
	return len(drop), nil
}

func (m *Memory) Close() error { return nil }
