package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"bookingcrm/backend/internal/domain"
)

// CandidateLookback bounds how far before a proposal's start date the store is
// scanned for bookings that may still be running.
const CandidateLookback = 365 * 24 * time.Hour

// CandidateQuery selects active bookings of one resource whose start date
// falls in [WindowStart, WindowEnd]. Bookings that start before the window
// are not returned even if they last into it.
type CandidateQuery struct {
	Kind        domain.ResourceKind
	ResourceID  uuid.UUID
	WindowStart time.Time
	WindowEnd   time.Time
	ExcludeID   uuid.UUID
}

type CandidateSource interface {
	ListCandidates(ctx context.Context, q CandidateQuery) ([]domain.Booking, error)
}

type TeamDirectory interface {
	ListTeamMembers(ctx context.Context, teamID uuid.UUID) ([]uuid.UUID, error)
}

type BookingRepository interface {
	CandidateSource
	TeamDirectory

	GetBooking(ctx context.Context, bookingID uuid.UUID) (domain.Booking, error)

	// InResourceTransaction runs fn in a transaction that holds an exclusive
	// lock on every resource key until commit or rollback.
	InResourceTransaction(ctx context.Context, keys []string, fn func(ctx context.Context, tx BookingTx) error) error
}

type BookingTx interface {
	CandidateSource
	TeamDirectory

	GetBooking(ctx context.Context, bookingID uuid.UUID) (domain.Booking, error)
	CreateBooking(ctx context.Context, b domain.Booking) (domain.Booking, error)
	UpdateBookingSchedule(ctx context.Context, b domain.Booking) (domain.Booking, error)
	SoftDeleteBooking(ctx context.Context, bookingID uuid.UUID) error
}
