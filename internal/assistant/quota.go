package assistant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/erazemk/shramba/internal/model"
	"github.com/erazemk/shramba/internal/store"
)

// Default daily limits.
const (
	DefaultQueryLimit    = 10
	DefaultAnalysisLimit = 5
)

// QuotaStatus describes what is left of a daily quota. ResetAt is only set
// when nothing remains and points at the next local midnight.
type QuotaStatus struct {
	Remaining int        `json:"remaining"`
	Total     int        `json:"total"`
	ResetAt   *time.Time `json:"reset_at,omitempty"`
}

// Tracker enforces per-user daily quotas. Counters live on the user row and
// reset lazily: a counter last used on an earlier local day counts as zero.
type Tracker struct {
	db     *sql.DB
	limits map[model.QuotaKind]int
	now    func() time.Time
}

// NewTracker returns a tracker with the given daily limits.
func NewTracker(db *sql.DB, queryLimit, analysisLimit int) *Tracker {
	return &Tracker{
		db: db,
		limits: map[model.QuotaKind]int{
			model.QuotaQuery:    queryLimit,
			model.QuotaAnalysis: analysisLimit,
		},
		now: time.Now,
	}
}

func (t *Tracker) limit(kind model.QuotaKind) (int, error) {
	limit, ok := t.limits[kind]
	if !ok {
		return 0, fmt.Errorf("unknown quota kind %q", kind)
	}
	return limit, nil
}

// Status reports the remaining quota without consuming anything.
func (t *Tracker) Status(ctx context.Context, userID int64, kind model.QuotaKind) (QuotaStatus, error) {
	limit, err := t.limit(kind)
	if err != nil {
		return QuotaStatus{}, err
	}
	usage, err := store.GetQuotaUsage(ctx, t.db, userID, kind)
	if err != nil {
		return QuotaStatus{}, err
	}
	now := t.now()
	return quotaStatus(limit, effectiveCount(usage, now), now), nil
}

// Reserve consumes one unit of quota. The check and the increment run in one
// write transaction, so two concurrent requests cannot both take the last
// unit. Fails with *QuotaExceededError when the limit has been reached.
func (t *Tracker) Reserve(ctx context.Context, userID int64, kind model.QuotaKind) (*Reservation, error) {
	limit, err := t.limit(kind)
	if err != nil {
		return nil, err
	}

	now := t.now()
	usage, err := store.UpdateQuotaUsage(ctx, t.db, userID, kind, func(u model.QuotaUsage) (model.QuotaUsage, error) {
		count := effectiveCount(u, now)
		if count >= limit {
			return u, &QuotaExceededError{Kind: kind, Status: quotaStatus(limit, count, now)}
		}
		return model.QuotaUsage{Count: count + 1, LastUsedAt: &now}, nil
	})
	if err != nil {
		return nil, err
	}

	return &Reservation{
		tracker: t,
		userID:  userID,
		kind:    kind,
		at:      now,
		status:  quotaStatus(limit, usage.Count, now),
	}, nil
}

// Reservation is one consumed unit of quota.
type Reservation struct {
	tracker  *Tracker
	userID   int64
	kind     model.QuotaKind
	at       time.Time
	status   QuotaStatus
	released bool
}

// Status returns the quota status after this reservation.
func (r *Reservation) Status() QuotaStatus {
	return r.status
}

var errRefundSkipped = errors.New("refund skipped")

// Release refunds the reserved unit after the guarded operation failed.
// Nothing is refunded once the day has rolled over, since the counter has
// already been reset. Failures are logged and swallowed.
func (r *Reservation) Release(ctx context.Context) {
	if r.released {
		return
	}
	r.released = true

	now := r.tracker.now()
	if !sameDay(r.at, now) {
		return
	}

	// The refund must land even if the caller's request was cancelled.
	ctx = context.WithoutCancel(ctx)
	_, err := store.UpdateQuotaUsage(ctx, r.tracker.db, r.userID, r.kind, func(u model.QuotaUsage) (model.QuotaUsage, error) {
		if u.Count == 0 || u.LastUsedAt == nil || !sameDay(*u.LastUsedAt, now) {
			return u, errRefundSkipped
		}
		u.Count--
		return u, nil
	})
	if err != nil && !errors.Is(err, errRefundSkipped) {
		slog.Warn("refunding quota", "user_id", r.userID, "kind", r.kind, "error", err)
	}
}

func quotaStatus(limit, count int, now time.Time) QuotaStatus {
	s := QuotaStatus{Remaining: max(limit-count, 0), Total: limit}
	if s.Remaining == 0 {
		reset := nextMidnight(now)
		s.ResetAt = &reset
	}
	return s
}

// effectiveCount applies the lazy daily reset.
func effectiveCount(u model.QuotaUsage, now time.Time) int {
	if u.LastUsedAt == nil || !sameDay(*u.LastUsedAt, now) {
		return 0
	}
	return u.Count
}

func sameDay(a, b time.Time) bool {
	a = a.In(b.Location())
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func nextMidnight(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, now.Location())
}
