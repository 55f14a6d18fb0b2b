package conflicts

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"bookingcrm/backend/internal/domain"
)

// Evaluate classifies candidates of a single resource against a proposal.
// Conflicts come back in candidate order.
func Evaluate(p domain.ProposedAssignment, kind domain.ResourceKind, candidates []domain.Booking) ([]domain.Conflict, error) {
	window, err := p.Validate()
	if err != nil {
		return nil, err
	}
	return evaluate(p, window, domain.ConflictTypeFor(kind), uuid.Nil, candidates)
}

func evaluate(p domain.ProposedAssignment, window domain.ClockRange, conflictType domain.ConflictType, via uuid.UUID, candidates []domain.Booking) ([]domain.Conflict, error) {
	start := domain.Date(p.StartDate)
	end := p.EffectiveEndDate()

	var out []domain.Conflict
	for _, c := range candidates {
		if p.ExcludeBookingID != uuid.Nil && c.ID == p.ExcludeBookingID {
			continue
		}

		from, to, ok := domain.SharedDays(start, end, c.StartDate, c.EffectiveEndDate())
		if !ok {
			continue
		}

		clock, err := c.Clock()
		if err != nil {
			return nil, fmt.Errorf("booking %s: %w", c.ID, err)
		}
		if !domain.MinutesOverlap(window, clock) {
			continue
		}

		out = append(out, domain.Conflict{
			Booking:     c,
			Type:        conflictType,
			Message:     conflictMessage(conflictType, via, c, clock, from, to),
			SharedFrom:  from,
			SharedTo:    to,
			ViaMemberID: via,
		})
	}
	return out, nil
}

func conflictMessage(conflictType domain.ConflictType, via uuid.UUID, b domain.Booking, clock domain.ClockRange, from, to time.Time) string {
	var sb strings.Builder
	switch {
	case via != uuid.Nil:
		sb.WriteString("team member ")
		sb.WriteString(via.String())
	case conflictType == domain.ConflictTypeTeam:
		sb.WriteString("team")
	default:
		sb.WriteString("staff member")
	}
	sb.WriteString(" is already booked ")
	sb.WriteString(clock.String())

	if from.Equal(to) {
		sb.WriteString(" on ")
		sb.WriteString(domain.FormatDate(from))
	} else {
		sb.WriteString(" from ")
		sb.WriteString(domain.FormatDate(from))
		sb.WriteString(" to ")
		sb.WriteString(domain.FormatDate(to))
	}

	if title := strings.TrimSpace(b.Title); title != "" {
		sb.WriteString(" (")
		sb.WriteString(title)
		sb.WriteString(")")
	}
	return sb.String()
}
