package grpc

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/types/known/structpb"

	"bookingcrm/backend/internal/conflicts"
	"bookingcrm/backend/internal/domain"
)

// fieldError is a malformed request field. It maps to InvalidArgument.
type fieldError struct {
	field  string
	reason string
}

func (e *fieldError) Error() string {
	return e.field + " " + e.reason
}

func stringField(s *structpb.Struct, name string) string {
	return strings.TrimSpace(s.GetFields()[name].GetStringValue())
}

func uuidField(s *structpb.Struct, name string) (uuid.UUID, error) {
	raw := stringField(s, name)
	if raw == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, &fieldError{field: name, reason: "must be a UUID"}
	}
	return id, nil
}

func dateField(s *structpb.Struct, name string) (time.Time, error) {
	raw := stringField(s, name)
	if raw == "" {
		return time.Time{}, nil
	}
	d, err := domain.ParseDate(raw)
	if err != nil {
		return time.Time{}, &fieldError{field: name, reason: "must be a YYYY-MM-DD date"}
	}
	return d, nil
}

func proposalFromStruct(s *structpb.Struct) (domain.ProposedAssignment, error) {
	var (
		p   domain.ProposedAssignment
		err error
	)
	if p.StaffID, err = uuidField(s, "staff_id"); err != nil {
		return p, err
	}
	if p.TeamID, err = uuidField(s, "team_id"); err != nil {
		return p, err
	}
	if p.ExcludeBookingID, err = uuidField(s, "exclude_booking_id"); err != nil {
		return p, err
	}
	if p.StartDate, err = dateField(s, "start_date"); err != nil {
		return p, err
	}
	end, err := dateField(s, "end_date")
	if err != nil {
		return p, err
	}
	if !end.IsZero() {
		p.EndDate = &end
	}
	p.StartTime = stringField(s, "start_time")
	p.EndTime = stringField(s, "end_time")
	return p, nil
}

func conflictsToValues(cs []domain.Conflict) []any {
	out := make([]any, 0, len(cs))
	for _, c := range cs {
		m := map[string]any{
			"booking_id":    c.Booking.ID.String(),
			"conflict_type": string(c.Type),
			"message":       c.Message,
			"title":         c.Booking.Title,
			"start_date":    domain.FormatDate(c.Booking.StartDate),
			"end_date":      domain.FormatDate(c.Booking.EffectiveEndDate()),
			"start_time":    c.Booking.StartTime,
			"end_time":      c.Booking.EndTime,
			"shared_from":   domain.FormatDate(c.SharedFrom),
			"shared_to":     domain.FormatDate(c.SharedTo),
		}
		if c.ViaMemberID != uuid.Nil {
			m["via_member_id"] = c.ViaMemberID.String()
		}
		out = append(out, m)
	}
	return out
}

func resultToStruct(res conflicts.Result) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"has_conflicts": res.HasConflicts(),
		"conflicts":     conflictsToValues(res.Conflicts),
	})
}

func stateToStruct(st conflicts.State) (*structpb.Struct, error) {
	m := map[string]any{
		"checking":      st.Checking,
		"has_conflicts": st.HasConflicts(),
		"conflicts":     conflictsToValues(st.Conflicts),
	}
	if st.Err != nil {
		code, msg := stateError(st.Err)
		m["error"] = msg
		m["error_code"] = code
	}
	return structpb.NewStruct(m)
}

func bookingToStruct(b domain.Booking) (*structpb.Struct, error) {
	m := map[string]any{
		"id":         b.ID.String(),
		"title":      b.Title,
		"status":     string(b.Status),
		"start_date": domain.FormatDate(b.StartDate),
		"end_date":   domain.FormatDate(b.EffectiveEndDate()),
		"start_time": b.StartTime,
		"end_time":   b.EndTime,
	}
	if kind, id, ok := b.Resource(); ok {
		m[string(kind)+"_id"] = id.String()
	}
	if !b.CreatedAt.IsZero() {
		m["created_at"] = b.CreatedAt.UTC().Format(time.RFC3339)
	}
	if !b.UpdatedAt.IsZero() {
		m["updated_at"] = b.UpdatedAt.UTC().Format(time.RFC3339)
	}
	inner, err := structpb.NewStruct(m)
	if err != nil {
		return nil, fmt.Errorf("encode booking: %w", err)
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"booking": structpb.NewStructValue(inner),
	}}, nil
}
