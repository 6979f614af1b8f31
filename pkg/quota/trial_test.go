package quota

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestTrialLimit(t *testing.T) {
	ts := NewTrialStore(1)
	ctx := context.Background()

	if err := ts.CheckDailyLimit(ctx, "10.0.0.1"); err != nil {
		t.Fatalf("first check should pass: %v", err)
	}
	if err := ts.Increment(ctx, "10.0.0.1"); err != nil {
		t.Fatal(err)
	}

	err := ts.CheckDailyLimit(ctx, "10.0.0.1")
	if !errors.Is(err, ErrTrialExhausted) {
		t.Errorf("expected ErrTrialExhausted, got %v", err)
	}

	// A different fingerprint has its own allowance.
	if err := ts.CheckDailyLimit(ctx, "10.0.0.2"); err != nil {
		t.Errorf("other fingerprint should pass: %v", err)
	}
}

func TestTrialCalendarDayRollover(t *testing.T) {
	ts := NewTrialStore(1)
	ctx := context.Background()

	dayD := time.Date(2026, 3, 10, 23, 59, 59, 0, time.Local)
	ts.now = func() time.Time { return dayD }

	if err := ts.CheckDailyLimit(ctx, "fp"); err != nil {
		t.Fatal(err)
	}
	if err := ts.Increment(ctx, "fp"); err != nil {
		t.Fatal(err)
	}
	if err := ts.CheckDailyLimit(ctx, "fp"); !errors.Is(err, ErrTrialExhausted) {
		t.Fatalf("expected ErrTrialExhausted, got %v", err)
	}

	// Two minutes later it is a new calendar day, so the window resets
	// even though far less than 24 hours have elapsed.
	ts.now = func() time.Time { return dayD.Add(2 * time.Minute) }
	if err := ts.CheckDailyLimit(ctx, "fp"); err != nil {
		t.Errorf("next-day check should pass: %v", err)
	}
}

func TestTrialRemaining(t *testing.T) {
	ts := NewTrialStore(2)
	ctx := context.Background()

	if got := ts.Remaining("fp"); got != 2 {
		t.Errorf("expected 2 remaining, got %d", got)
	}
	_ = ts.Increment(ctx, "fp")
	_ = ts.Increment(ctx, "fp")
	if got := ts.Remaining("fp"); got != 0 {
		t.Errorf("expected 0 remaining, got %d", got)
	}
}

func TestTrialSweep(t *testing.T) {
	ts := NewTrialStore(1)
	ctx := context.Background()

	yesterday := time.Now().AddDate(0, 0, -1)
	ts.now = func() time.Time { return yesterday }
	for _, fp := range []string{"a", "b", "c"} {
		_ = ts.Increment(ctx, fp)
	}

	ts.now = time.Now
	ts.mu.Lock()
	ts.sweep(ts.now())
	ts.mu.Unlock()

	if got := ts.Len(); got != 0 {
		t.Errorf("expected stale fingerprints swept, got %d", got)
	}
}
