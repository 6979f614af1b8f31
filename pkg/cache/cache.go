package cache

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bumpsafe/bumpsafe/pkg/models"
)

// Cache memoizes reasoner assessments keyed by normalized query text.
// Entries are valid for one freshness window from the time they were
// stored. The cache is process-local; each server instance has its own.
type Cache struct {
	mu        sync.Mutex
	entries   map[string]models.CacheEntry
	ttl       time.Duration
	threshold int

	hits   atomic.Int64
	misses atomic.Int64
	sweeps atomic.Int64

	now func() time.Time
}

// Normalize canonicalizes a free-text query for cache lookup: lower-case
// and trim, nothing else. Queries differing only in casing or surrounding
// whitespace share one entry.
func Normalize(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}

// New creates a Cache with the given freshness window and sweep threshold.
func New(ttl time.Duration, sweepThreshold int) *Cache {
	return &Cache{
		entries:   make(map[string]models.CacheEntry),
		ttl:       ttl,
		threshold: sweepThreshold,
		now:       time.Now,
	}
}

// Get returns the assessment for a normalized key if it is still fresh.
// A stale entry behaves as absent; the caller must re-fetch.
func (c *Cache) Get(key string) (models.Assessment, bool) {
	c.mu.Lock()
	e, ok := c.entries[key]
	c.mu.Unlock()

	if !ok || c.now().Sub(e.StoredAt) >= c.ttl {
		c.misses.Add(1)
		return models.Assessment{}, false
	}
	c.hits.Add(1)
	return e.Assessment, true
}

// Put stores an assessment, unconditionally overwriting any existing
// entry for the key. When the map grows past the sweep threshold, every
// entry older than the freshness window is removed. This is a soft bound:
// fresh entries are never evicted.
func (c *Cache) Put(key string, a models.Assessment) {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = models.CacheEntry{Key: key, Assessment: a, StoredAt: now}

	if len(c.entries) > c.threshold {
		for k, e := range c.entries {
			if now.Sub(e.StoredAt) >= c.ttl {
				delete(c.entries, k)
			}
		}
		c.sweeps.Add(1)
	}
}

// Len returns the current number of entries, fresh or stale.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Clear removes entries. If expiredOnly is true, only stale entries go.
func (c *Cache) Clear(expiredOnly bool) {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if !expiredOnly {
		c.entries = make(map[string]models.CacheEntry)
		return
	}
	for k, e := range c.entries {
		if now.Sub(e.StoredAt) >= c.ttl {
			delete(c.entries, k)
		}
	}
}

// Stats returns cache performance counters.
func (c *Cache) Stats() models.CacheStats {
	c.mu.Lock()
	entries := int64(len(c.entries))
	c.mu.Unlock()

	return models.CacheStats{
		Entries: entries,
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Sweeps:  c.sweeps.Load(),
	}
}
