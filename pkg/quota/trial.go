package quota

import (
	"context"
	"sync"
	"time"
)

// trialSweepThreshold bounds the fingerprint map; stale records from
// previous days are dropped once the map grows past it.
const trialSweepThreshold = 10000

type trialRecord struct {
	windowStart time.Time
	count       int
}

// TrialStore tracks anonymous trial usage keyed by client fingerprint
// (IP or session id). It is process-local and not persisted: a restart
// resets all trial counters, and each server instance counts its own.
type TrialStore struct {
	mu      sync.Mutex
	records map[string]*trialRecord
	limit   int

	now func() time.Time
}

// NewTrialStore creates a TrialStore allowing limit checks per
// fingerprint per calendar day.
func NewTrialStore(limit int) *TrialStore {
	return &TrialStore{
		records: make(map[string]*trialRecord),
		limit:   limit,
		now:     time.Now,
	}
}

// CheckDailyLimit resets the fingerprint's window if the calendar day has
// changed, then reports whether another check is allowed.
func (t *TrialStore) CheckDailyLimit(_ context.Context, fingerprint string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec := t.ensure(fingerprint)
	if rec.count >= t.limit {
		return ErrTrialExhausted
	}
	return nil
}

// Increment ensures the window is current and debits one check.
func (t *TrialStore) Increment(_ context.Context, fingerprint string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec := t.ensure(fingerprint)
	rec.count++
	return nil
}

// ensure returns the current-day record for a fingerprint, creating or
// rolling it over as needed. Caller holds the lock.
func (t *TrialStore) ensure(fingerprint string) *trialRecord {
	now := t.now()

	rec, ok := t.records[fingerprint]
	if !ok {
		if len(t.records) >= trialSweepThreshold {
			t.sweep(now)
		}
		rec = &trialRecord{windowStart: now}
		t.records[fingerprint] = rec
		return rec
	}
	if !SameDay(rec.windowStart, now) {
		rec.windowStart = now
		rec.count = 0
	}
	return rec
}

// sweep drops records whose window is not today. Caller holds the lock.
func (t *TrialStore) sweep(now time.Time) {
	for fp, rec := range t.records {
		if !SameDay(rec.windowStart, now) {
			delete(t.records, fp)
		}
	}
}

// Len returns the number of tracked fingerprints.
func (t *TrialStore) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.records)
}

// Remaining returns how many checks the fingerprint has left today.
func (t *TrialStore) Remaining(fingerprint string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec := t.ensure(fingerprint)
	if left := t.limit - rec.count; left > 0 {
		return left
	}
	return 0
}

// Limit returns the per-day trial allowance.
func (t *TrialStore) Limit() int {
	return t.limit
}
