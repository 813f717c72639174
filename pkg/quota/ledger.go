// Package quota tracks per-user storage usage against the user's quota.
package quota

import (
	"context"

	"github.com/marmos91/mozaichub/pkg/metadata"
	"github.com/marmos91/mozaichub/pkg/metrics"
)

// Ledger enforces quotas on write and reclaims usage on delete.
//
// Usage counters are updated with read-modify-write on the store. Two
// concurrent reservations for the same user can both pass the check;
// enforcement is best-effort.
type Ledger struct {
	store   metadata.Store
	metrics metrics.QuotaMetrics
}

// NewLedger creates a Ledger. m may be nil.
func NewLedger(store metadata.Store, m metrics.QuotaMetrics) *Ledger {
	if m == nil {
		m = metrics.NewNoopQuotaMetrics()
	}
	return &Ledger{store: store, metrics: m}
}

// Check returns the usage userID would reach after adding delta, or
// QuotaExceeded. Nothing is mutated; uploads call it before storing the
// artifact.
func (l *Ledger) Check(ctx context.Context, userID string, delta int64) (int64, error) {
	u, err := l.store.GetUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	return prospective(u, delta)
}

// Reserve adds delta to the user's usage and returns the new usage. When
// the result would exceed the quota it fails with QuotaExceeded and
// performs no mutation.
func (l *Ledger) Reserve(ctx context.Context, userID string, delta int64) (int64, error) {
	if delta < 0 {
		return 0, metadata.NewValidationError("quota", "negative reservation %d", delta)
	}

	u, err := l.store.GetUser(ctx, userID)
	if err != nil {
		return 0, err
	}

	next, err := prospective(u, delta)
	if err != nil {
		l.metrics.RecordReserve(delta, false)
		return u.UsedBytes, err
	}

	if err := l.store.SetStorageUsed(ctx, userID, next); err != nil {
		return u.UsedBytes, err
	}
	l.metrics.RecordReserve(delta, true)
	return next, nil
}

// Release subtracts delta from the user's usage, clamping at zero, and
// returns the new usage. A negative delta is rejected.
func (l *Ledger) Release(ctx context.Context, userID string, delta int64) (int64, error) {
	if delta < 0 {
		return 0, metadata.NewValidationError("quota", "negative release %d", delta)
	}

	u, err := l.store.GetUser(ctx, userID)
	if err != nil {
		return 0, err
	}

	next := Clamp(u.UsedBytes - delta)
	if err := l.store.SetStorageUsed(ctx, userID, next); err != nil {
		return u.UsedBytes, err
	}
	l.metrics.RecordRelease(u.UsedBytes - next)
	return next, nil
}

// Clamp floors usage at zero.
func Clamp(used int64) int64 {
	return max(used, 0)
}

// prospective compares against the remaining headroom so a huge delta
// cannot wrap the sum around int64.
func prospective(u *metadata.User, delta int64) (int64, error) {
	if delta > u.QuotaBytes-u.UsedBytes {
		return 0, metadata.NewQuotaExceededError(u.ID, u.UsedBytes, delta, u.QuotaBytes)
	}
	return u.UsedBytes + delta, nil
}
