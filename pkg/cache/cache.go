// Package cache keeps parsed uploads addressable by id and by content
// fingerprint.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/yurifrl/kupa/pkg/models"
)

var ErrNotFound = errors.New("cache entry not found")

// Fingerprint is a deterministic digest of a transaction batch over each
// transaction's order id, date and total. Input order does not matter.
func Fingerprint(txns []*models.Transaction) string {
	lines := make([]string, len(txns))
	for i, t := range txns {
		lines[i] = t.OrderID + "|" + t.Date() + "|" + t.Total.StringFixed(2)
	}
	sort.Strings(lines)
	sum := sha256.Sum256([]byte(strings.Join(lines, "\n")))
	return hex.EncodeToString(sum[:])
}

// Entry is one cached parse result.
type Entry struct {
	ID           string
	Fingerprint  string
	Sources      []string
	Transactions []*models.Transaction
	CreatedAt    time.Time
}

// Cache is safe for concurrent use.
type Cache struct {
	mu      sync.RWMutex
	byID    map[string]*Entry
	byPrint map[string]string
	now     func() time.Time
}

func New() *Cache {
	return &Cache{
		byID:    make(map[string]*Entry),
		byPrint: make(map[string]string),
		now:     time.Now,
	}
}

// Put stores txns under a new id. A batch whose fingerprint is already cached
// returns the existing entry, so re-uploading a report does not grow the
// cache. Empty batches all share one fingerprint and always get their own
// entry.
func (c *Cache) Put(sources []string, txns []*models.Transaction) *Entry {
	fp := Fingerprint(txns)

	c.mu.Lock()
	defer c.mu.Unlock()

	if id, ok := c.byPrint[fp]; ok && len(txns) > 0 {
		return c.byID[id]
	}
	e := &Entry{
		ID:           uuid.New().String(),
		Fingerprint:  fp,
		Sources:      append([]string(nil), sources...),
		Transactions: txns,
		CreatedAt:    c.now(),
	}
	c.byID[e.ID] = e
	if len(txns) > 0 {
		c.byPrint[fp] = e.ID
	}
	return e
}

func (c *Cache) Get(id string) (*Entry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return e, nil
}

// Lookup finds an entry by fingerprint.
func (c *Cache) Lookup(fingerprint string) (*Entry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	id, ok := c.byPrint[fingerprint]
	if !ok {
		return nil, ErrNotFound
	}
	return c.byID[id], nil
}

// Invalidate drops one entry and reports whether it existed.
func (c *Cache) Invalidate(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.byID[id]
	if !ok {
		return false
	}
	delete(c.byID, id)
	delete(c.byPrint, e.Fingerprint)
	return true
}

func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.byID = make(map[string]*Entry)
	c.byPrint = make(map[string]string)
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byID)
}
