package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

var (
	testStaffID = uuid.MustParse("00000000-0000-0000-0000-0000000000a1")
	testTeamID  = uuid.MustParse("00000000-0000-0000-0000-0000000000b1")
)

func TestProposedAssignment_Checkable(t *testing.T) {
	if (ProposedAssignment{}).Checkable() {
		t.Fatalf("unassigned proposal must not be checkable")
	}
	if !(ProposedAssignment{StaffID: testStaffID}).Checkable() {
		t.Fatalf("staff proposal must be checkable")
	}
	if !(ProposedAssignment{TeamID: testTeamID}).Checkable() {
		t.Fatalf("team proposal must be checkable")
	}
}

func TestProposedAssignment_Validate(t *testing.T) {
	start := day("2026-02-19")
	before := day("2026-02-18")

	tests := []struct {
		name    string
		p       ProposedAssignment
		wantErr string
	}{
		{
			name:    "missing start date",
			p:       ProposedAssignment{StaffID: testStaffID, StartTime: "09:00"},
			wantErr: "start_date is required",
		},
		{
			name:    "missing start time",
			p:       ProposedAssignment{StaffID: testStaffID, StartDate: start},
			wantErr: "start_time is required",
		},
		{
			name:    "both resources",
			p:       ProposedAssignment{StaffID: testStaffID, TeamID: testTeamID, StartDate: start, StartTime: "09:00"},
			wantErr: "only one of staff_id or team_id may be set",
		},
		{
			name:    "end date before start date",
			p:       ProposedAssignment{StaffID: testStaffID, StartDate: start, EndDate: &before, StartTime: "09:00"},
			wantErr: "end_date must not be before start_date",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.p.Validate()
			if err == nil {
				t.Fatalf("expected error")
			}
			if !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("error = %v, want ErrInvalidInput", err)
			}
			if err.Error() != tt.wantErr {
				t.Fatalf("error = %q, want %q", err.Error(), tt.wantErr)
			}
		})
	}

	r, err := ProposedAssignment{StaffID: testStaffID, StartDate: start, StartTime: "11:00", EndTime: "13:00"}.Validate()
	if err != nil {
		t.Fatalf("Validate error: %v", err)
	}
	if r.Start != 660 || r.End != 780 {
		t.Fatalf("range = %+v, want {660 780}", r)
	}
}

func TestProposedAssignment_KeyComparesByValue(t *testing.T) {
	end1 := day("2026-02-20")
	end2 := day("2026-02-20")

	a := ProposedAssignment{StaffID: testStaffID, StartDate: day("2026-02-19"), EndDate: &end1, StartTime: "09:00", EndTime: "10:00"}
	b := ProposedAssignment{StaffID: testStaffID, StartDate: time.Date(2026, 2, 19, 15, 0, 0, 0, time.UTC), EndDate: &end2, StartTime: " 09:00", EndTime: "10:00"}
	if a.Key() != b.Key() {
		t.Fatalf("keys differ for equal values: %q vs %q", a.Key(), b.Key())
	}

	c := b
	c.EndTime = "10:30"
	if a.Key() == c.Key() {
		t.Fatalf("keys equal after end_time change")
	}

	d := a
	d.ExcludeBookingID = uuid.MustParse("00000000-0000-0000-0000-0000000000c1")
	if a.Key() == d.Key() {
		t.Fatalf("keys equal after exclude id change")
	}
}

func TestBooking_IsActive(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name string
		b    Booking
		want bool
	}{
		{name: "confirmed", b: Booking{Status: BookingStatusConfirmed}, want: true},
		{name: "pending", b: Booking{Status: BookingStatusPending}, want: true},
		{name: "cancelled", b: Booking{Status: BookingStatusCancelled}, want: false},
		{name: "no show", b: Booking{Status: BookingStatusNoShow}, want: false},
		{name: "soft deleted", b: Booking{Status: BookingStatusConfirmed, DeletedAt: &now}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.b.IsActive(); got != tt.want {
				t.Fatalf("IsActive = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBooking_Resource(t *testing.T) {
	staff := testStaffID
	team := testTeamID

	kind, id, ok := Booking{StaffID: &staff}.Resource()
	if !ok || kind != ResourceStaff || id != staff {
		t.Fatalf("Resource = %s %s %v, want staff", kind, id, ok)
	}
	kind, id, ok = Booking{TeamID: &team}.Resource()
	if !ok || kind != ResourceTeam || id != team {
		t.Fatalf("Resource = %s %s %v, want team", kind, id, ok)
	}
	if _, _, ok := (Booking{}).Resource(); ok {
		t.Fatalf("unassigned booking reported a resource")
	}
	if got := ResourceKey(ResourceStaff, staff); got != "staff:"+staff.String() {
		t.Fatalf("ResourceKey = %q", got)
	}
}
