package conflicts

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"bookingcrm/backend/internal/domain"
	"bookingcrm/backend/internal/store"
)

const (
	DefaultFetchTimeout = 5 * time.Second

	memberFetchConcurrency = 4
)

// Check outcomes reported to the Observer.
const (
	OutcomeSkipped     = "skipped"
	OutcomeClear       = "clear"
	OutcomeConflict    = "conflict"
	OutcomeInvalid     = "invalid"
	OutcomeFetchFailed = "fetch_failed"
	OutcomeTimeout     = "timeout"
)

type Observer interface {
	ObserveCheck(kind domain.ResourceKind, outcome string, conflicts int, elapsed time.Duration)
}

type Options struct {
	// Lookback bounds the candidate window before the proposal's start date.
	Lookback time.Duration
	// FetchTimeout caps each check's store reads. A shorter caller deadline wins.
	FetchTimeout time.Duration
	// IncludeTeamMembers extends team checks to the staff bookings of every
	// team member.
	IncludeTeamMembers bool

	Observer Observer
	Logger   *slog.Logger
}

type Result struct {
	Conflicts []domain.Conflict
}

func (r Result) HasConflicts() bool {
	return len(r.Conflicts) > 0
}

// Checker is the advisory pre-flight conflict check. It holds no state
// between calls; enforcement against concurrent writers is the store's job.
type Checker struct {
	src     store.CandidateSource
	members store.TeamDirectory
	opts    Options
	log     *slog.Logger

	fetchConcurrency int
}

func NewChecker(src store.CandidateSource, members store.TeamDirectory, opts Options) *Checker {
	if opts.Lookback <= 0 {
		opts.Lookback = store.CandidateLookback
	}
	if opts.FetchTimeout == 0 {
		opts.FetchTimeout = DefaultFetchTimeout
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Checker{
		src:     src,
		members: members,
		opts:    opts,
		log:     log.With(slog.String("component", "conflicts.checker")),

		fetchConcurrency: memberFetchConcurrency,
	}
}

// WithSource returns a checker with the same options reading from src, e.g.
// a write transaction. Member fetches through it run one at a time since a
// transaction holds a single connection.
func (c *Checker) WithSource(src store.CandidateSource, members store.TeamDirectory) *Checker {
	cp := *c
	cp.src = src
	cp.members = members
	cp.fetchConcurrency = 1
	return &cp
}

// IncludesTeamMembers reports whether team checks also cover the staff
// bookings of team members.
func (c *Checker) IncludesTeamMembers() bool {
	return c.opts.IncludeTeamMembers && c.members != nil
}

func (c *Checker) Check(ctx context.Context, p domain.ProposedAssignment) (Result, error) {
	started := time.Now()

	if !p.Checkable() {
		c.observe("", OutcomeSkipped, 0, started)
		return Result{}, nil
	}

	kind, resourceID := p.Resource()
	window, err := p.Validate()
	if err != nil {
		c.observe(kind, OutcomeInvalid, 0, started)
		return Result{}, err
	}

	fetchCtx, cancel := withFetchTimeout(ctx, c.opts.FetchTimeout)
	defer cancel()

	windowStart, windowEnd := CandidateWindow(p, c.opts.Lookback)
	candidates, err := FetchCandidates(fetchCtx, c.src, kind, resourceID, windowStart, windowEnd, p.ExcludeBookingID)
	if err != nil {
		return Result{}, c.fetchFailed(kind, resourceID, err, started)
	}

	conflicts, err := evaluate(p, window, domain.ConflictTypeFor(kind), uuid.Nil, ReachingRange(candidates, p.StartDate))
	if err != nil {
		c.observe(kind, OutcomeInvalid, 0, started)
		return Result{}, err
	}

	if kind == domain.ResourceTeam && c.opts.IncludeTeamMembers && c.members != nil {
		memberConflicts, err := c.checkMembers(fetchCtx, p, window, resourceID, windowStart, windowEnd)
		if err != nil {
			var fErr *FetchError
			if errors.As(err, &fErr) {
				return Result{}, c.fetchFailed(kind, resourceID, err, started)
			}
			c.observe(kind, OutcomeInvalid, 0, started)
			return Result{}, err
		}
		conflicts = append(conflicts, memberConflicts...)
	}

	outcome := OutcomeClear
	if len(conflicts) > 0 {
		outcome = OutcomeConflict
	}
	c.observe(kind, outcome, len(conflicts), started)
	c.log.Debug(
		"conflict check done",
		slog.String("resource_kind", string(kind)),
		slog.String("resource_id", resourceID.String()),
		slog.Int("candidates", len(candidates)),
		slog.Int("conflicts", len(conflicts)),
	)

	return Result{Conflicts: conflicts}, nil
}

// checkMembers evaluates the staff bookings of every team member. Fetches
// run concurrently; results keep member order.
func (c *Checker) checkMembers(ctx context.Context, p domain.ProposedAssignment, window domain.ClockRange, teamID uuid.UUID, windowStart, windowEnd time.Time) ([]domain.Conflict, error) {
	members, err := c.members.ListTeamMembers(ctx, teamID)
	if err != nil {
		return nil, &FetchError{
			Kind:       domain.ResourceTeam,
			ResourceID: teamID,
			Err:        err,
			timeout:    deadlineHit(ctx, err),
		}
	}
	if len(members) == 0 {
		return nil, nil
	}

	perMember := make([][]domain.Booking, len(members))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.fetchConcurrency)
	for i, memberID := range members {
		g.Go(func() error {
			rows, err := FetchCandidates(gctx, c.src, domain.ResourceStaff, memberID, windowStart, windowEnd, p.ExcludeBookingID)
			if err != nil {
				return err
			}
			perMember[i] = ReachingRange(rows, p.StartDate)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []domain.Conflict
	for i, memberID := range members {
		found, err := evaluate(p, window, domain.ConflictTypeStaff, memberID, perMember[i])
		if err != nil {
			return nil, err
		}
		out = append(out, found...)
	}
	return out, nil
}

func (c *Checker) fetchFailed(kind domain.ResourceKind, resourceID uuid.UUID, err error, started time.Time) error {
	outcome := OutcomeFetchFailed
	if IsTimeout(err) {
		outcome = OutcomeTimeout
	}
	c.observe(kind, outcome, 0, started)
	c.log.Warn(
		"conflict check unavailable",
		slog.Any("err", err),
		slog.String("resource_kind", string(kind)),
		slog.String("resource_id", resourceID.String()),
		slog.Bool("timeout", outcome == OutcomeTimeout),
	)
	return err
}

func (c *Checker) observe(kind domain.ResourceKind, outcome string, conflicts int, started time.Time) {
	if c.opts.Observer == nil {
		return
	}
	c.opts.Observer.ObserveCheck(kind, outcome, conflicts, time.Since(started))
}
