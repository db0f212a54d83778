// Package cache provides the in-process caches used by the exporter.
// Product display names are cached for the lifetime of the process; Stripe
// rarely renames products and a restart picks up renames.
package cache

import (
	"sync"
)

// NameCache maps a Stripe product ID to the display name used as a plan label.
// Entries never expire and are never evicted.
type NameCache struct {
	names map[string]string
	mu    sync.RWMutex

	// Stats
	hits    int64
	misses  int64
	statsMu sync.RWMutex
}

// NewNameCache creates an empty name cache
func NewNameCache() *NameCache {
	return &NameCache{
		names: make(map[string]string),
	}
}

// Get returns the cached name for productID and whether it was present.
func (c *NameCache) Get(productID string) (string, bool) {
	c.mu.RLock()
	name, ok := c.names[productID]
	c.mu.RUnlock()

	if ok {
		c.recordHit()
	} else {
		c.recordMiss()
	}
	return name, ok
}

// Set stores the name for productID, replacing any previous value.
func (c *NameCache) Set(productID, name string) {
	c.mu.Lock()
	c.names[productID] = name
	c.mu.Unlock()
}

// Len returns the number of cached products
func (c *NameCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.names)
}

// Stats returns cache statistics
func (c *NameCache) Stats() CacheStats {
	c.statsMu.RLock()
	defer c.statsMu.RUnlock()

	total := c.hits + c.misses
	hitRatio := float64(0)
	if total > 0 {
		hitRatio = float64(c.hits) / float64(total)
	}

	return CacheStats{
		Hits:     c.hits,
		Misses:   c.misses,
		HitRatio: hitRatio,
		Entries:  c.Len(),
	}
}

// CacheStats holds cache statistics
type CacheStats struct {
	Hits     int64   `json:"hits"`
	Misses   int64   `json:"misses"`
	HitRatio float64 `json:"hit_ratio"`
	Entries  int     `json:"entries"`
}

func (c *NameCache) recordHit() {
	c.statsMu.Lock()
	c.hits++
	c.statsMu.Unlock()
}

func (c *NameCache) recordMiss() {
	c.statsMu.Lock()
	c.misses++
	c.statsMu.Unlock()
}
