// Package livecache holds the in-memory last-known price of every symbol.
package livecache

import (
	"strings"
	"sync"
	"time"

	"price_engine/internal/feature/prices/domain/entity"
)

// Cache is a mutex-guarded map from symbol to its latest LivePriceEntry.
// It does not judge freshness; callers compare LastUpdate against their own thresholds.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entity.LivePriceEntry
	now     func() time.Time
}

// Option customizes a single Set call.
type Option func(*entity.LivePriceEntry)

// WithChangePercent records the provider's daily change percentage.
func WithChangePercent(p float64) Option {
	return func(e *entity.LivePriceEntry) { e.ChangePercent = &p }
}

// WithLastUpdate overrides the wall-clock timestamp of the entry.
func WithLastUpdate(t time.Time) Option {
	return func(e *entity.LivePriceEntry) { e.LastUpdate = t }
}

// New creates an empty Cache.
func New() *Cache {
	return &Cache{
		entries: make(map[string]entity.LivePriceEntry),
		now:     time.Now,
	}
}

func key(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// Get returns the entry for symbol.
func (c *Cache) Get(symbol string) (entity.LivePriceEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key(symbol)]
	return e, ok
}

// Set atomically replaces the entry for symbol.
func (c *Cache) Set(symbol string, price float64, currency string, market entity.Market, opts ...Option) {
	e := entity.LivePriceEntry{
		Symbol:   key(symbol),
		Price:    price,
		Currency: currency,
		Market:   market,
	}
	for _, opt := range opts {
		opt(&e)
	}
	c.Put(e)
}

// Put atomically replaces the entry with the same symbol. A zero LastUpdate is stamped with now.
func (c *Cache) Put(e entity.LivePriceEntry) {
	e.Symbol = key(e.Symbol)
	if e.Symbol == "" {
		return
	}
	if e.LastUpdate.IsZero() {
		e.LastUpdate = c.now()
	}
	c.mu.Lock()
	c.entries[e.Symbol] = e
	c.mu.Unlock()
}

// GetAll returns a copy of every entry.
func (c *Cache) GetAll() map[string]entity.LivePriceEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]entity.LivePriceEntry, len(c.entries))
	for k, v := range c.entries {
		if v.ChangePercent != nil {
			p := *v.ChangePercent
			v.ChangePercent = &p
		}
		out[k] = v
	}
	return out
}

// Remove deletes the entry for symbol.
func (c *Cache) Remove(symbol string) {
	c.mu.Lock()
	delete(c.entries, key(symbol))
	c.mu.Unlock()
}

// Size returns the number of cached symbols.
func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// UpdateBatch writes every entry under one lock and returns how many were stored.
// Entries without a symbol or with a non-positive price are skipped.
func (c *Cache) UpdateBatch(entries []entity.LivePriceEntry) int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, e := range entries {
		e.Symbol = key(e.Symbol)
		if e.Symbol == "" || e.Price <= 0 {
			continue
		}
		if e.LastUpdate.IsZero() {
			e.LastUpdate = now
		}
		c.entries[e.Symbol] = e
		n++
	}
	return n
}
