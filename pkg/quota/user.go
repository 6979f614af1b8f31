package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/bumpsafe/bumpsafe/pkg/models"
	"github.com/bumpsafe/bumpsafe/pkg/store"
)

// UserQuota enforces the daily limit for authenticated users, backed by
// the durable user aggregate. Premium users pass the check unconditionally
// but their window and count are still maintained, so history and usage
// stay accurate if they ever downgrade.
type UserQuota struct {
	store *store.Store
	limit int

	now func() time.Time
}

// NewUserQuota creates a UserQuota allowing limit checks per calendar day
// for free-tier users.
func NewUserQuota(s *store.Store, limit int) *UserQuota {
	return &UserQuota{store: s, limit: limit, now: time.Now}
}

// CheckDailyLimit rolls the window over if the calendar day changed, then
// reports whether the user may run another check. Storage errors fail
// closed: the check is denied.
func (q *UserQuota) CheckDailyLimit(ctx context.Context, userID string) error {
	w, err := q.window(ctx, userID)
	if err != nil {
		return err
	}
	if w.Tier == models.TierPremium {
		return nil
	}
	if w.Count >= q.limit {
		return ErrQuotaExceeded
	}
	return nil
}

// Increment ensures the window is current and debits one check.
func (q *UserQuota) Increment(ctx context.Context, userID string) error {
	if _, err := q.window(ctx, userID); err != nil {
		return err
	}
	if err := q.store.IncrementSearchCount(ctx, userID); err != nil {
		return fmt.Errorf("quota increment: %w", err)
	}
	return nil
}

// Status reports the user's remaining allowance for today.
func (q *UserQuota) Status(ctx context.Context, userID string) (models.QuotaStatus, error) {
	w, err := q.window(ctx, userID)
	if err != nil {
		return models.QuotaStatus{}, err
	}
	st := models.QuotaStatus{
		Tier:  w.Tier,
		Limit: q.limit,
		Used:  w.Count,
	}
	if w.Tier == models.TierPremium {
		st.Unlimited = true
		return st, nil
	}
	if left := q.limit - w.Count; left > 0 {
		st.Remaining = left
	}
	return st, nil
}

// window reads the quota state, resetting it first when the stored
// window's calendar day differs from today.
func (q *UserQuota) window(ctx context.Context, userID string) (models.QuotaWindow, error) {
	w, err := q.store.QuotaWindow(ctx, userID)
	if err != nil {
		return models.QuotaWindow{}, fmt.Errorf("quota check: %w", err)
	}

	now := q.now()
	if !SameDay(w.WindowStart, now) {
		if err := q.store.ResetQuotaWindow(ctx, userID, now); err != nil {
			return models.QuotaWindow{}, fmt.Errorf("quota check: %w", err)
		}
		w.Count = 0
		w.WindowStart = now
	}
	return w, nil
}
