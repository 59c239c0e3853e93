// Package clientdata caches upstream responses in memory with a TTL.
package clientdata

import (
	"sync"
	"time"

	"github.com/aristath/folio/internal/utils"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// Cache is a concurrency-safe key/value store whose entries expire after a
// fixed TTL measured by the injected clock.
type Cache[V any] struct {
	mu    sync.Mutex
	items map[string]entry[V]
	ttl   time.Duration
	clock utils.Clock
}

// NewCache creates a cache. A non-positive ttl falls back to TTLQuote.
func NewCache[V any](ttl time.Duration, clock utils.Clock) *Cache[V] {
	if ttl <= 0 {
		ttl = TTLQuote
	}
	if clock == nil {
		clock = utils.SystemClock{}
	}
	return &Cache[V]{
		items: make(map[string]entry[V]),
		ttl:   ttl,
		clock: clock,
	}
}

// Get returns the cached value if present and not expired
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[key]
	if !ok {
		var zero V
		return zero, false
	}
	if !c.clock.Now().Before(e.expiresAt) {
		delete(c.items, key)
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set stores a value, replacing any existing entry and its expiry
func (c *Cache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = entry[V]{value: value, expiresAt: c.clock.Now().Add(c.ttl)}
}

// Delete removes a key
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.items, key)
}

// PurgeExpired drops every expired entry and returns how many were removed
func (c *Cache[V]) PurgeExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	removed := 0
	for key, e := range c.items {
		if !now.Before(e.expiresAt) {
			delete(c.items, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored entries, expired or not
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.items)
}

// TTL returns the configured lifetime
func (c *Cache[V]) TTL() time.Duration {
	return c.ttl
}
