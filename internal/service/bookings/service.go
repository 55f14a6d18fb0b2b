package bookings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"bookingcrm/backend/internal/conflicts"
	"bookingcrm/backend/internal/domain"
	"bookingcrm/backend/internal/store"
)

// Write results reported to the WriteObserver.
const (
	ResultOK       = "ok"
	ResultConflict = "conflict"
	ResultInvalid  = "invalid"
	ResultNotFound = "not_found"
	ResultError    = "error"
)

const maxIdempotencyKeyLen = 256

// ConflictError is returned by guarded writes that found active bookings in
// the way. It matches store.ErrConflict.
type ConflictError struct {
	Conflicts []domain.Conflict
}

func (e *ConflictError) Error() string {
	msgs := make([]string, 0, len(e.Conflicts))
	for _, c := range e.Conflicts {
		msgs = append(msgs, c.Message)
	}
	return fmt.Sprintf("booking conflicts with %d existing booking(s): %s", len(e.Conflicts), strings.Join(msgs, "; "))
}

func (e *ConflictError) Is(target error) bool {
	return target == store.ErrConflict
}

type WriteObserver interface {
	ObserveWrite(op, result string)
}

type Options struct {
	Observer WriteObserver
	Logger   *slog.Logger
}

type Service struct {
	repo    store.BookingRepository
	checker *conflicts.Checker
	obs     WriteObserver
	log     *slog.Logger
}

func NewService(repo store.BookingRepository, checker *conflicts.Checker, opts Options) *Service {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		repo:    repo,
		checker: checker,
		obs:     opts.Observer,
		log:     log.With(slog.String("component", "bookings.service")),
	}
}

type CreateInput struct {
	StaffID        uuid.UUID
	TeamID         uuid.UUID
	Title          string
	StartDate      time.Time
	EndDate        *time.Time
	StartTime      string
	EndTime        string
	Status         domain.BookingStatus
	IdempotencyKey string
}

type RescheduleInput struct {
	BookingID uuid.UUID
	StaffID   uuid.UUID
	TeamID    uuid.UUID
	StartDate time.Time
	EndDate   *time.Time
	StartTime string
	EndTime   string
}

// CheckConflicts is the advisory pre-flight check. It takes no locks.
func (s *Service) CheckConflicts(ctx context.Context, p domain.ProposedAssignment) (conflicts.Result, error) {
	return s.checker.Check(ctx, p)
}

// Watch re-checks a proposal as it is edited. See conflicts.Checker.Watch.
func (s *Service) Watch(ctx context.Context, in <-chan domain.ProposedAssignment, opts conflicts.WatchOptions) <-chan State {
	return s.checker.Watch(ctx, in, opts)
}

type State = conflicts.State

// Create inserts a booking after re-checking conflicts under the resource
// locks. A repeated idempotency key returns the booking created first.
func (s *Service) Create(ctx context.Context, in CreateInput) (created domain.Booking, err error) {
	defer func() { s.observe("create", err) }()

	title := strings.TrimSpace(in.Title)
	if title == "" {
		return domain.Booking{}, domain.NewValidationError("title is required")
	}

	status := in.Status
	if status == "" {
		status = domain.BookingStatusPending
	}
	if !validStatus(status) {
		return domain.Booking{}, domain.NewValidationError("unknown status")
	}

	p := domain.ProposedAssignment{
		StaffID:   in.StaffID,
		TeamID:    in.TeamID,
		StartDate: in.StartDate,
		EndDate:   normalizeEndDate(in.EndDate),
		StartTime: strings.TrimSpace(in.StartTime),
		EndTime:   strings.TrimSpace(in.EndTime),
	}
	if _, err := p.Validate(); err != nil {
		return domain.Booking{}, err
	}

	b := bookingFrom(p)
	b.Title = title
	b.Status = status

	key := strings.TrimSpace(in.IdempotencyKey)
	if key != "" {
		if len(key) > maxIdempotencyKeyLen {
			return domain.Booking{}, domain.NewValidationError("idempotency_key too long")
		}
		b.ID = uuid.NewSHA1(uuid.NameSpaceOID, []byte("bookingcrm:create_booking:"+key))
		// A retry must not collide with the row it created the first time.
		p.ExcludeBookingID = b.ID
	}

	keys, err := s.lockKeys(ctx, p)
	if err != nil {
		return domain.Booking{}, err
	}

	err = s.repo.InResourceTransaction(ctx, keys, func(ctx context.Context, tx store.BookingTx) error {
		if !status.Inactive() {
			if err := s.guard(ctx, tx, p); err != nil {
				return err
			}
		}
		created, err = tx.CreateBooking(ctx, b)
		return err
	})
	if err != nil {
		return domain.Booking{}, err
	}
	return created, nil
}

// Reschedule moves a booking to a new resource, day span or daily window.
// The booking itself is never reported as its own conflict.
func (s *Service) Reschedule(ctx context.Context, in RescheduleInput) (updated domain.Booking, err error) {
	defer func() { s.observe("reschedule", err) }()

	if in.BookingID == uuid.Nil {
		return domain.Booking{}, domain.NewValidationError("booking_id is required")
	}

	p := domain.ProposedAssignment{
		StaffID:          in.StaffID,
		TeamID:           in.TeamID,
		StartDate:        in.StartDate,
		EndDate:          normalizeEndDate(in.EndDate),
		StartTime:        strings.TrimSpace(in.StartTime),
		EndTime:          strings.TrimSpace(in.EndTime),
		ExcludeBookingID: in.BookingID,
	}
	if _, err := p.Validate(); err != nil {
		return domain.Booking{}, err
	}

	keys, err := s.lockKeys(ctx, p)
	if err != nil {
		return domain.Booking{}, err
	}

	err = s.repo.InResourceTransaction(ctx, keys, func(ctx context.Context, tx store.BookingTx) error {
		current, err := tx.GetBooking(ctx, in.BookingID)
		if err != nil {
			return err
		}
		if current.IsActive() {
			if err := s.guard(ctx, tx, p); err != nil {
				return err
			}
		}

		next := bookingFrom(p)
		next.ID = current.ID
		next.Title = current.Title
		next.Status = current.Status
		next.CreatedAt = current.CreatedAt
		updated, err = tx.UpdateBookingSchedule(ctx, next)
		return err
	})
	if err != nil {
		return domain.Booking{}, err
	}
	return updated, nil
}

// Delete soft-deletes a booking; it stops taking part in conflict checks.
func (s *Service) Delete(ctx context.Context, bookingID uuid.UUID) (err error) {
	defer func() { s.observe("delete", err) }()

	if bookingID == uuid.Nil {
		return domain.NewValidationError("booking_id is required")
	}
	return s.repo.InResourceTransaction(ctx, nil, func(ctx context.Context, tx store.BookingTx) error {
		return tx.SoftDeleteBooking(ctx, bookingID)
	})
}

// guard re-runs the conflict check against the transaction.
func (s *Service) guard(ctx context.Context, tx store.BookingTx, p domain.ProposedAssignment) error {
	res, err := s.checker.WithSource(tx, tx).Check(ctx, p)
	if err != nil {
		return err
	}
	if res.HasConflicts() {
		return &ConflictError{Conflicts: res.Conflicts}
	}
	return nil
}

// lockKeys lists every resource whose schedule the write depends on.
func (s *Service) lockKeys(ctx context.Context, p domain.ProposedAssignment) ([]string, error) {
	if !p.Checkable() {
		return nil, nil
	}
	kind, id := p.Resource()
	keys := []string{domain.ResourceKey(kind, id)}
	if kind != domain.ResourceTeam || !s.checker.IncludesTeamMembers() {
		return keys, nil
	}

	members, err := s.repo.ListTeamMembers(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list team members: %w", err)
	}
	for _, m := range members {
		keys = append(keys, domain.ResourceKey(domain.ResourceStaff, m))
	}
	return keys, nil
}

func (s *Service) observe(op string, err error) {
	result := ResultOK
	switch {
	case err == nil:
	case errors.Is(err, store.ErrConflict), errors.Is(err, store.ErrIdempotencyConflict):
		result = ResultConflict
	case errors.Is(err, domain.ErrInvalidInput):
		result = ResultInvalid
	case errors.Is(err, store.ErrNotFound):
		result = ResultNotFound
	default:
		result = ResultError
	}

	if s.obs != nil {
		s.obs.ObserveWrite(op, result)
	}
	if result == ResultError {
		s.log.Error("booking write failed", slog.String("op", op), slog.Any("err", err))
	}
}

func bookingFrom(p domain.ProposedAssignment) domain.Booking {
	b := domain.Booking{
		StartDate: domain.Date(p.StartDate),
		EndDate:   p.EndDate,
		StartTime: p.StartTime,
		EndTime:   p.EndTime,
	}
	if p.StaffID != uuid.Nil {
		id := p.StaffID
		b.StaffID = &id
	}
	if p.TeamID != uuid.Nil {
		id := p.TeamID
		b.TeamID = &id
	}
	return b
}

func normalizeEndDate(end *time.Time) *time.Time {
	if end == nil || end.IsZero() {
		return nil
	}
	d := domain.Date(*end)
	return &d
}

func validStatus(s domain.BookingStatus) bool {
	switch s {
	case domain.BookingStatusPending,
		domain.BookingStatusConfirmed,
		domain.BookingStatusCompleted,
		domain.BookingStatusCancelled,
		domain.BookingStatusNoShow:
		return true
	}
	return false
}
