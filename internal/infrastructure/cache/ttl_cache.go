package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// TTLCache is a thread-safe map whose entries expire after a fixed TTL.
// Expired entries are dropped on read, and Set sweeps the whole map at
// most once per TTL, so keys that are never read again do not pile up.
type TTLCache[K comparable, V any] struct {
	mu        sync.RWMutex
	ttl       time.Duration
	items     map[K]entry[V]
	now       func() time.Time
	lastSweep time.Time
}

// NewTTLCache creates a cache holding entries for ttl.
func NewTTLCache[K comparable, V any](ttl time.Duration) *TTLCache[K, V] {
	return &TTLCache[K, V]{
		ttl:   ttl,
		items: make(map[K]entry[V]),
		now:   time.Now,
	}
}

// Get returns the cached value if it's still valid.
func (c *TTLCache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	e, ok := c.items[key]
	c.mu.RUnlock()

	var zero V
	if !ok {
		return zero, false
	}
	if !c.now().Before(e.expiresAt) {
		c.mu.Lock()
		if cur, ok := c.items[key]; ok && cur.expiresAt.Equal(e.expiresAt) {
			delete(c.items, key)
		}
		c.mu.Unlock()
		return zero, false
	}
	return e.value, true
}

// Set stores value under key for the cache TTL.
func (c *TTLCache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if now.Sub(c.lastSweep) >= c.ttl {
		for k, e := range c.items {
			if !now.Before(e.expiresAt) {
				delete(c.items, k)
			}
		}
		c.lastSweep = now
	}
	c.items[key] = entry[V]{value: value, expiresAt: now.Add(c.ttl)}
}
