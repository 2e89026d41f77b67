// Package resume holds the resume-data cache shared by the two render
// passes of one logical request. The prospective pass appends entries as it
// discovers cache misses; the final pass only reads. The passes are
// temporally disjoint, so the append-only discipline is a contract rather
// than a lock ordering concern, but the cache is still safe for concurrent
// use because fills arrive from loop tasks while the orchestrator polls.
package resume

import "sync"

// Cache is an append-only map from cache-entry keys to opaque payloads.
type Cache struct {
	mu      sync.RWMutex
	entries map[string][]byte
	stale   map[string]int
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{
		entries: make(map[string][]byte),
		stale:   make(map[string]int),
	}
}

// Put stores the payload for key. Overwriting an existing entry is allowed
// only with identical intent (a re-fill of the same deterministic read);
// the cache keeps the latest payload either way.
func (c *Cache) Put(key string, payload []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = payload
}

// PutWithRevalidate stores the payload along with its revalidation window
// in seconds.
func (c *Cache) PutWithRevalidate(key string, payload []byte, revalidate int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = payload
	c.stale[key] = revalidate
}

// Get returns the payload for key and whether it exists.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.entries[key]
	return p, ok
}

// Has reports whether key is present.
func (c *Cache) Has(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.entries[key]
	return ok
}

// Revalidate returns the stored revalidation window for key, or 0.
func (c *Cache) Revalidate(key string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stale[key]
}

// Len returns the number of entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
