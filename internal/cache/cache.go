// Package cache is the process-local index over every known order. It owns
// two indexes, by order ID and by uppercased download code, which are always
// updated together under one lock.
package cache

import (
	"context"
	"strings"
	"sync"

	"hq-entitlements/internal/downloadcode"
	"hq-entitlements/internal/model"

	"github.com/rs/zerolog"
)

// Source is where the cache hydrates from.
type Source interface {
	LoadAll(ctx context.Context) ([]model.Order, error)
}

// Cache indexes orders by ID and by code.
type Cache struct {
	source Source
	logger zerolog.Logger

	mu     sync.RWMutex
	byID   map[string]model.Order
	byCode map[string]string // normalised code -> order ID

	loadMu   sync.Mutex
	hydrated bool // authoritative for reads
	durable  bool // holds everything the source had at least once
}

// New creates an empty cache that hydrates from source on first use.
func New(source Source, logger zerolog.Logger) *Cache {
	return &Cache{
		source: source,
		logger: logger.With().Str("component", "order-cache").Logger(),
		byID:   make(map[string]model.Order),
		byCode: make(map[string]string),
	}
}

// EnsureLoaded hydrates the cache from the source once per process.
// Concurrent first calls converge on a single load. Entries already
// present in memory win over the loaded copies, so a late or retried
// hydration never reverts in-process writes.
func (c *Cache) EnsureLoaded(ctx context.Context) error {
	c.loadMu.Lock()
	defer c.loadMu.Unlock()

	c.mu.RLock()
	done := c.durable
	c.mu.RUnlock()
	if done {
		return nil
	}

	orders, err := c.source.LoadAll(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	merged := 0
	for _, order := range orders {
		if _, exists := c.byID[order.OrderID]; exists {
			continue
		}
		c.put(order)
		merged++
	}
	c.hydrated = true
	c.durable = true
	c.mu.Unlock()

	c.logger.Info().
		Int("loaded", len(orders)).
		Int("merged", merged).
		Msg("order cache hydrated")

	return nil
}

// MarkHydrated makes the cache authoritative for reads even though the
// source could not be loaded.
func (c *Cache) MarkHydrated() {
	c.mu.Lock()
	c.hydrated = true
	c.mu.Unlock()
}

// Hydrated reports whether reads may be served from memory.
func (c *Cache) Hydrated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hydrated
}

// DurablyLoaded reports whether the source has been merged in at least once.
func (c *Cache) DurablyLoaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.durable
}

// Upsert stores order under both indexes.
func (c *Cache) Upsert(order model.Order) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.put(order)
}

// put requires c.mu held for writing.
func (c *Cache) put(order model.Order) {
	if prev, ok := c.byID[order.OrderID]; ok {
		prevCode := downloadcode.Normalize(prev.DownloadCode)
		if prevCode != downloadcode.Normalize(order.DownloadCode) && c.byCode[prevCode] == order.OrderID {
			delete(c.byCode, prevCode)
		}
	}

	c.byID[order.OrderID] = order.Clone()
	if code := downloadcode.Normalize(order.DownloadCode); code != "" {
		c.byCode[code] = order.OrderID
	}
}

// GetByID returns a copy of the order with the given ID.
func (c *Cache) GetByID(id string) (model.Order, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	order, ok := c.byID[id]
	if !ok {
		return model.Order{}, false
	}
	return order.Clone(), true
}

// GetByCode returns a copy of the order holding code, compared without case.
// On an index miss it scans all orders once, which catches legacy
// documents whose codes carry stray whitespace or odd casing.
func (c *Cache) GetByCode(code string) (model.Order, bool) {
	norm := downloadcode.Normalize(code)
	if norm == "" {
		return model.Order{}, false
	}

	c.mu.RLock()
	if id, ok := c.byCode[norm]; ok {
		if order, ok := c.byID[id]; ok {
			c.mu.RUnlock()
			return order.Clone(), true
		}
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	for id, order := range c.byID {
		if strings.EqualFold(strings.TrimSpace(order.DownloadCode), norm) {
			c.byCode[norm] = id
			return order.Clone(), true
		}
	}
	return model.Order{}, false
}

// HasCode reports whether any order already holds code.
func (c *Cache) HasCode(code string) bool {
	_, ok := c.GetByCode(code)
	return ok
}

// All returns copies of every order, in no particular order.
func (c *Cache) All() []model.Order {
	c.mu.RLock()
	defer c.mu.RUnlock()

	orders := make([]model.Order, 0, len(c.byID))
	for _, order := range c.byID {
		orders = append(orders, order.Clone())
	}
	return orders
}

// Len returns the number of orders indexed.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byID)
}
