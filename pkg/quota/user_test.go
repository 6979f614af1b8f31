package quota

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/bumpsafe/bumpsafe/pkg/models"
	"github.com/bumpsafe/bumpsafe/pkg/store"
)

func setupUser(t *testing.T, tier models.Tier) (*store.Store, string, context.Context) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "quota_test.db")
	st, err := store.New(dbPath, 50)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = st.Close() })

	ctx := context.Background()
	u, err := st.CreateUser(ctx, "mom@example.com", tier)
	if err != nil {
		t.Fatal(err)
	}
	return st, u.ID, ctx
}

func TestFreeTierDailyLimit(t *testing.T) {
	st, id, ctx := setupUser(t, models.TierFree)
	q := NewUserQuota(st, 1)

	if err := q.CheckDailyLimit(ctx, id); err != nil {
		t.Fatalf("first check should pass: %v", err)
	}
	if err := q.Increment(ctx, id); err != nil {
		t.Fatal(err)
	}

	err := q.CheckDailyLimit(ctx, id)
	if !errors.Is(err, ErrQuotaExceeded) {
		t.Errorf("expected ErrQuotaExceeded, got %v", err)
	}
}

func TestCalendarDayRollover(t *testing.T) {
	st, id, ctx := setupUser(t, models.TierFree)
	q := NewUserQuota(st, 1)

	// Day D at 23:59:59: the single free check is used.
	dayD := time.Date(2026, 3, 10, 23, 59, 59, 0, time.Local)
	q.now = func() time.Time { return dayD }
	if err := q.CheckDailyLimit(ctx, id); err != nil {
		t.Fatal(err)
	}
	if err := q.Increment(ctx, id); err != nil {
		t.Fatal(err)
	}
	if err := q.CheckDailyLimit(ctx, id); !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}

	// Day D+1 at 00:00:01: new calendar day, new window, regardless of
	// how few hours have elapsed.
	q.now = func() time.Time { return dayD.Add(2 * time.Second) }
	if err := q.CheckDailyLimit(ctx, id); err != nil {
		t.Errorf("next-day check should pass: %v", err)
	}

	w, err := st.QuotaWindow(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if w.Count != 0 {
		t.Errorf("rollover should reset count to 0, got %d", w.Count)
	}
}

func TestCheckMutatesWindow(t *testing.T) {
	st, id, ctx := setupUser(t, models.TierFree)
	q := NewUserQuota(st, 1)

	yesterday := time.Now().AddDate(0, 0, -1)
	if err := st.ResetQuotaWindow(ctx, id, yesterday); err != nil {
		t.Fatal(err)
	}
	_ = st.IncrementSearchCount(ctx, id)

	// The check itself rolls the window forward; it is not read-only.
	if err := q.CheckDailyLimit(ctx, id); err != nil {
		t.Fatalf("stale window should reset on check: %v", err)
	}
	w, err := st.QuotaWindow(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if !SameDay(w.WindowStart, time.Now()) {
		t.Error("check should have moved the window to today")
	}
}

func TestPremiumUnlimited(t *testing.T) {
	st, id, ctx := setupUser(t, models.TierPremium)
	q := NewUserQuota(st, 1)

	for i := 0; i < 5; i++ {
		if err := q.CheckDailyLimit(ctx, id); err != nil {
			t.Fatalf("premium check %d should pass: %v", i, err)
		}
		if err := q.Increment(ctx, id); err != nil {
			t.Fatal(err)
		}
	}

	// The count is still maintained for premium users.
	w, err := st.QuotaWindow(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if w.Count != 5 {
		t.Errorf("expected count 5, got %d", w.Count)
	}
}

func TestUnknownUserFailsClosed(t *testing.T) {
	st, _, ctx := setupUser(t, models.TierFree)
	q := NewUserQuota(st, 1)

	err := q.CheckDailyLimit(ctx, "no-such-user")
	if err == nil {
		t.Fatal("expected error for unknown user")
	}
	if errors.Is(err, ErrQuotaExceeded) {
		t.Error("storage failure must not look like a quota error")
	}
}

func TestStatus(t *testing.T) {
	st, id, ctx := setupUser(t, models.TierFree)
	q := NewUserQuota(st, 3)

	_ = q.Increment(ctx, id)

	status, err := q.Status(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if status.Used != 1 || status.Remaining != 2 {
		t.Errorf("expected 1 used / 2 remaining, got %d/%d", status.Used, status.Remaining)
	}
	if status.Unlimited {
		t.Error("free tier should not be unlimited")
	}
}
