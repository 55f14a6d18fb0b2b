package conflicts

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"bookingcrm/backend/internal/domain"
	"bookingcrm/backend/internal/store"
)

// Candidates are fetched in two phases. The store returns bookings of the
// resource whose start date lies in a bounded window ending at the proposal's
// last day. ReachingRange then drops, in process, the ones that end before
// the proposal starts. Keeping the second phase here avoids an OR-heavy range
// predicate in the store query.

// CandidateWindow is the start-date window queried for a proposal.
func CandidateWindow(p domain.ProposedAssignment, lookback time.Duration) (time.Time, time.Time) {
	if lookback <= 0 {
		lookback = store.CandidateLookback
	}
	start := domain.Date(domain.Date(p.StartDate).Add(-lookback))
	return start, p.EffectiveEndDate()
}

func FetchCandidates(ctx context.Context, src store.CandidateSource, kind domain.ResourceKind, resourceID uuid.UUID, windowStart, windowEnd time.Time, excludeID uuid.UUID) ([]domain.Booking, error) {
	rows, err := src.ListCandidates(ctx, store.CandidateQuery{
		Kind:        kind,
		ResourceID:  resourceID,
		WindowStart: domain.Date(windowStart),
		WindowEnd:   domain.Date(windowEnd),
		ExcludeID:   excludeID,
	})
	if err != nil {
		return nil, &FetchError{
			Kind:       kind,
			ResourceID: resourceID,
			Err:        err,
			timeout:    deadlineHit(ctx, err),
		}
	}
	return rows, nil
}

// ReachingRange keeps active candidates whose effective end date is on or
// after proposedStart, preserving order.
func ReachingRange(candidates []domain.Booking, proposedStart time.Time) []domain.Booking {
	start := domain.Date(proposedStart)
	out := make([]domain.Booking, 0, len(candidates))
	for _, c := range candidates {
		if !c.IsActive() {
			continue
		}
		if c.EffectiveEndDate().Before(start) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func deadlineHit(ctx context.Context, err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded)
}

func withFetchTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < timeout {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
