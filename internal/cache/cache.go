// Package cache provides a small bounded TTL cache for hot read paths.
//
// The cache favors simplicity over hit rate: entries expire lazily on read,
// and when the cache is full the oldest inserted entry is evicted regardless
// of recency. Correctness never depends on it; every entry is a disposable
// copy of persisted state.
package cache

import (
	"sync"
	"time"
)

// Defaults sized for a single-process deployment.
const (
	DefaultMaxEntries = 50
	DefaultTTL        = 10 * time.Minute
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// Cache is a thread-safe bounded map with per-entry TTL.
type Cache[V any] struct {
	mu         sync.Mutex
	entries    map[string]entry[V]
	order      []string
	maxEntries int
	ttl        time.Duration
	now        func() time.Time
}

// New creates a cache with the given capacity and TTL. Non-positive values
// fall back to the package defaults.
func New[V any](maxEntries int, ttl time.Duration) *Cache[V] {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache[V]{
		entries:    make(map[string]entry[V]),
		maxEntries: maxEntries,
		ttl:        ttl,
		now:        time.Now,
	}
}

// Get returns the cached value for key. Expired entries are removed on the
// way out and reported as a miss.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	if c.now().After(e.expiresAt) {
		c.removeLocked(key)
		return zero, false
	}
	return e.value, true
}

// Set stores a value under key. When the cache is at capacity the oldest
// inserted entry is evicted first.
func (c *Cache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; exists {
		c.entries[key] = entry[V]{value: value, expiresAt: c.now().Add(c.ttl)}
		return
	}
	if len(c.entries) >= c.maxEntries && len(c.order) > 0 {
		c.removeLocked(c.order[0])
	}
	c.entries[key] = entry[V]{value: value, expiresAt: c.now().Add(c.ttl)}
	c.order = append(c.order, key)
}

// Delete removes a key if present.
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(key)
}

// Clear drops every entry.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry[V])
	c.order = c.order[:0]
}

// Len reports the number of stored entries, including any not yet expired
// lazily.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache[V]) removeLocked(key string) {
	if _, ok := c.entries[key]; !ok {
		return
	}
	delete(c.entries, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}
