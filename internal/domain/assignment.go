package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ProposedAssignment is a staff member or team placed on a day span and a
// daily time window. It is the input of a conflict check.
type ProposedAssignment struct {
	StaffID          uuid.UUID
	TeamID           uuid.UUID
	StartDate        time.Time
	EndDate          *time.Time
	StartTime        string
	EndTime          string
	ExcludeBookingID uuid.UUID
}

// Checkable is false for unassigned proposals; they cannot collide.
func (p ProposedAssignment) Checkable() bool {
	return p.StaffID != uuid.Nil || p.TeamID != uuid.Nil
}

func (p ProposedAssignment) Resource() (ResourceKind, uuid.UUID) {
	if p.StaffID != uuid.Nil {
		return ResourceStaff, p.StaffID
	}
	return ResourceTeam, p.TeamID
}

func (p ProposedAssignment) EffectiveEndDate() time.Time {
	return EffectiveEnd(p.StartDate, p.EndDate)
}

// Validate checks required fields and returns the parsed daily window.
func (p ProposedAssignment) Validate() (ClockRange, error) {
	if p.StaffID != uuid.Nil && p.TeamID != uuid.Nil {
		return ClockRange{}, validationError("only one of staff_id or team_id may be set")
	}
	if p.StartDate.IsZero() {
		return ClockRange{}, validationError("start_date is required")
	}
	if strings.TrimSpace(p.StartTime) == "" {
		return ClockRange{}, validationError("start_time is required")
	}
	if p.EndDate != nil && !p.EndDate.IsZero() && Date(*p.EndDate).Before(Date(p.StartDate)) {
		return ClockRange{}, validationError("end_date must not be before start_date")
	}
	return NewClockRange(p.StartTime, p.EndTime)
}

// Key captures every field that affects the outcome of a check, by value.
// Two proposals with equal keys yield the same conflicts.
func (p ProposedAssignment) Key() string {
	var b strings.Builder
	b.WriteString(p.StaffID.String())
	b.WriteByte('|')
	b.WriteString(p.TeamID.String())
	b.WriteByte('|')
	if !p.StartDate.IsZero() {
		b.WriteString(FormatDate(p.StartDate))
	}
	b.WriteByte('|')
	if p.EndDate != nil && !p.EndDate.IsZero() {
		b.WriteString(FormatDate(*p.EndDate))
	}
	b.WriteByte('|')
	b.WriteString(strings.TrimSpace(p.StartTime))
	b.WriteByte('|')
	b.WriteString(strings.TrimSpace(p.EndTime))
	b.WriteByte('|')
	b.WriteString(p.ExcludeBookingID.String())
	return b.String()
}

type ConflictType string

const (
	ConflictTypeStaff ConflictType = "staff"
	ConflictTypeTeam  ConflictType = "team"
)

func ConflictTypeFor(kind ResourceKind) ConflictType {
	if kind == ResourceTeam {
		return ConflictTypeTeam
	}
	return ConflictTypeStaff
}

// Conflict is an existing active booking that collides with a proposal.
// It is advisory: nothing is locked by reporting it.
type Conflict struct {
	Booking     Booking
	Type        ConflictType
	Message     string
	SharedFrom  time.Time
	SharedTo    time.Time
	ViaMemberID uuid.UUID
}
