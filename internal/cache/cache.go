// Package cache provides the in-memory TTL caches that sit in front of the
// market-data and analysis upstreams.
package cache

import (
	"sync"
	"time"
)

// Entry holds a cached payload with the time it was stored.
type Entry[T any] struct {
	Value    T
	CachedAt time.Time
	TTL      time.Duration
}

// Fresh reports whether the entry is still valid at now.
// An entry is valid while now - CachedAt <= TTL.
func (e Entry[T]) Fresh(now time.Time) bool {
	return now.Sub(e.CachedAt) <= e.TTL
}

// Cache is a thread-safe map with a fixed TTL per entry. Expired entries
// are evicted lazily on read.
type Cache[T any] struct {
	mu      *sync.Mutex
	entries map[string]Entry[T]
	ttl     time.Duration
	now     func() time.Time
}

// New creates a cache with the given TTL.
func New[T any](ttl time.Duration) *Cache[T] {
	return newShared[T](&sync.Mutex{}, ttl, time.Now)
}

func newShared[T any](mu *sync.Mutex, ttl time.Duration, now func() time.Time) *Cache[T] {
	return &Cache[T]{
		mu:      mu,
		entries: make(map[string]Entry[T]),
		ttl:     ttl,
		now:     now,
	}
}

// Get returns the cached value for key if present and not expired.
// An expired entry is removed.
func (c *Cache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		var zero T
		return zero, false
	}
	if !entry.Fresh(c.now()) {
		delete(c.entries, key)
		var zero T
		return zero, false
	}
	return entry.Value, true
}

// Set stores value under key, replacing any existing entry.
func (c *Cache[T]) Set(key string, value T) {
	c.mu.Lock()
	c.entries[key] = Entry[T]{Value: value, CachedAt: c.now(), TTL: c.ttl}
	c.mu.Unlock()
}

// Delete removes key.
func (c *Cache[T]) Delete(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Len returns the number of stored entries, expired ones included.
func (c *Cache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// TTL returns the entry lifetime.
func (c *Cache[T]) TTL() time.Duration { return c.ttl }

// Clear removes every entry.
func (c *Cache[T]) Clear() {
	c.mu.Lock()
	c.clearLocked()
	c.mu.Unlock()
}

func (c *Cache[T]) clearLocked() {
	c.entries = make(map[string]Entry[T])
}
