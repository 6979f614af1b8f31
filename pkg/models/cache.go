package models

import "time"

// CacheEntry stores a memoized reasoner assessment keyed by normalized
// query text.
type CacheEntry struct {
	Key        string     `json:"key"`
	Assessment Assessment `json:"assessment"`
	StoredAt   time.Time  `json:"stored_at"`
}

// CacheStats reports cache performance counters.
type CacheStats struct {
	Entries int64 `json:"entries"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Sweeps  int64 `json:"sweeps"`
}
