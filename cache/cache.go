// Package cache implements the exact-match, TTL-expiring query-result
// cache described in spec §4.10: a mutex-guarded map keyed by the full
// query signature, with lazy expire-on-access semantics and a ttl=0
// disables-caching escape hatch.
package cache

import (
	"sync"
	"time"
)

type entry struct {
	value     interface{}
	expiresAt time.Time
}

// Cache is a single flat map of query-signature to cached result. It does
// not evict proactively — entries are checked for expiry on Get and
// overwritten on Put, matching the reference caching layer's shape.
type Cache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]entry

	hits   uint64
	misses uint64
}

// New builds a Cache with the given TTL. A ttl of 0 disables caching
// entirely: Get always misses and Put is a no-op, per spec §4.10.
func New(ttl time.Duration) *Cache {
	return &Cache{ttl: ttl, entries: make(map[string]entry)}
}

// Enabled reports whether this cache actually stores anything.
func (c *Cache) Enabled() bool {
	return c.ttl > 0
}

// Get returns the cached value for key, if present and not expired.
func (c *Cache) Get(key string) (interface{}, bool) {
	if !c.Enabled() {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || time.Now().After(e.expiresAt) {
		if ok {
			delete(c.entries, key)
		}
		c.misses++
		return nil, false
	}
	c.hits++
	return e.value, true
}

// Put stores value under key with the cache's configured TTL. A no-op
// when the cache is disabled.
func (c *Cache) Put(key string, value interface{}) {
	if !c.Enabled() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{value: value, expiresAt: time.Now().Add(c.ttl)}
}

// Invalidate drops every cached entry — called after a successful flush,
// since a flush changes which rows events_all resolves to.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry)
}

// Stats is a point-in-time snapshot of cache hit/miss counters.
type Stats struct {
	Hits    uint64
	Misses  uint64
	Entries int
}

// Stats returns the current hit/miss counters and entry count.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{Hits: c.hits, Misses: c.misses, Entries: len(c.entries)}
}
