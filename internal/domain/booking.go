package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCompleted BookingStatus = "completed"
	BookingStatusCancelled BookingStatus = "cancelled"
	BookingStatusNoShow    BookingStatus = "no_show"
)

// InactiveStatuses never take part in conflict checks.
var InactiveStatuses = []BookingStatus{BookingStatusCancelled, BookingStatusNoShow}

func (s BookingStatus) Inactive() bool {
	for _, st := range InactiveStatuses {
		if s == st {
			return true
		}
	}
	return false
}

type ResourceKind string

const (
	ResourceStaff ResourceKind = "staff"
	ResourceTeam  ResourceKind = "team"
)

// ResourceKey identifies a resource for locking, e.g. "staff:<uuid>".
func ResourceKey(kind ResourceKind, id uuid.UUID) string {
	return string(kind) + ":" + id.String()
}

type Booking struct {
	bun.BaseModel `bun:"table:bookings,alias:b"`

	ID        uuid.UUID     `bun:"id,pk,type:uuid"`
	StaffID   *uuid.UUID    `bun:"staff_id,type:uuid"`
	TeamID    *uuid.UUID    `bun:"team_id,type:uuid"`
	Title     string        `bun:"title,notnull"`
	StartDate time.Time     `bun:"start_date,notnull,type:date"`
	EndDate   *time.Time    `bun:"end_date,type:date"`
	StartTime string        `bun:"start_time,notnull,type:time"`
	EndTime   string        `bun:"end_time,nullzero,type:time"`
	Status    BookingStatus `bun:"status,notnull"`
	DeletedAt *time.Time    `bun:"deleted_at"`
	CreatedAt time.Time     `bun:"created_at,notnull"`
	UpdatedAt time.Time     `bun:"updated_at,notnull"`
}

func (b *Booking) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if b.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			b.ID = id
		}
		if b.CreatedAt.IsZero() {
			b.CreatedAt = now
		}
		if b.UpdatedAt.IsZero() {
			b.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		b.UpdatedAt = now
	}
	return nil
}

// IsActive is false for cancelled, no-show and soft-deleted bookings.
func (b Booking) IsActive() bool {
	return b.DeletedAt == nil && !b.Status.Inactive()
}

func (b Booking) EffectiveEndDate() time.Time {
	return EffectiveEnd(b.StartDate, b.EndDate)
}

func (b Booking) Clock() (ClockRange, error) {
	return NewClockRange(b.StartTime, b.EndTime)
}

// Resource returns the staff member or team the booking is assigned to.
func (b Booking) Resource() (ResourceKind, uuid.UUID, bool) {
	if b.StaffID != nil && *b.StaffID != uuid.Nil {
		return ResourceStaff, *b.StaffID, true
	}
	if b.TeamID != nil && *b.TeamID != uuid.Nil {
		return ResourceTeam, *b.TeamID, true
	}
	return "", uuid.Nil, false
}
