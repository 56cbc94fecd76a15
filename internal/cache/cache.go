// Package cache implements the time-bounded response cache that sits between
// platform adapters and the network.
package cache

import (
	"sync"
	"time"

	"content_scout/internal/model"
)

// Default durations.
const (
	DefaultTTL            = 24 * time.Hour
	DefaultStaleRetention = 7 * 24 * time.Hour
)

// Options configures a Cache.
type Options struct {
	TTL time.Duration
	// StaleRetention is how long an expired entry stays available to
	// GetIgnoringTTL before Sweep drops it.
	StaleRetention time.Duration
	Now            func() time.Time
}

// Cache is a concurrency-safe key to raw-response store.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]model.CacheEntry
	ttl     time.Duration
	keep    time.Duration
	now     func() time.Time
}

// New creates a Cache, filling unset options with defaults.
func New(opts Options) *Cache {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.StaleRetention < 0 {
		opts.StaleRetention = 0
	} else if opts.StaleRetention == 0 {
		opts.StaleRetention = DefaultStaleRetention
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Cache{
		entries: make(map[string]model.CacheEntry),
		ttl:     opts.TTL,
		keep:    opts.StaleRetention,
		now:     opts.Now,
	}
}

// Get returns the stored value if present and younger than the TTL.
// Missing and expired entries are indistinguishable to the caller.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || c.now().Sub(e.StoredAt) > c.ttl {
		return nil, false
	}
	return e.Value, true
}

// GetIgnoringTTL returns the stored value regardless of age. Callers use it
// only when the platform quota cannot afford a fresh read.
func (c *Cache) GetIgnoringTTL(key string) ([]byte, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return e.Value, true
}

// Put stores value under key, replacing any previous entry.
func (c *Cache) Put(key string, value []byte) {
	c.mu.Lock()
	c.entries[key] = model.CacheEntry{Key: key, Value: value, StoredAt: c.now()}
	c.mu.Unlock()
}

// Sweep drops entries older than TTL plus stale retention and returns how
// many were removed.
func (c *Cache) Sweep() int {
	cutoff := c.ttl + c.keep
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for k, e := range c.entries {
		if now.Sub(e.StoredAt) > cutoff {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
