package quota

import (
	"context"
	"errors"
	"time"
)

// ErrQuotaExceeded is returned when a free-tier user is out of checks
// for the current calendar day.
var ErrQuotaExceeded = errors.New("daily check limit reached")

// ErrTrialExhausted is returned when an anonymous fingerprint is out of
// trial checks for the current calendar day.
var ErrTrialExhausted = errors.New("trial check limit reached")

// Provider enforces a daily check quota for one identity, either a user
// id or an anonymous fingerprint. CheckDailyLimit may mutate the record
// (resetting the window on day rollover); callers must not assume it is
// read-only.
type Provider interface {
	CheckDailyLimit(ctx context.Context, identity string) error
	Increment(ctx context.Context, identity string) error
}

// SameDay reports whether a and b fall on the same calendar day in the
// process-local timezone. The quota window is a calendar day, not a
// rolling 24 hours: 23:59 and 00:01 the next minute are different windows.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
