package domain

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	MinutesPerDay = 24 * 60

	// DefaultMinSlot is the length given to an interval without an end time.
	// The bookings table computes effective_end_minute with the same value.
	DefaultMinSlot = 15
)

// ClockRange is a wall-clock interval in minutes since midnight, [Start, End).
type ClockRange struct {
	Start int
	End   int
}

// ParseClock converts "HH:MM" or "HH:MM:SS" into minutes since midnight.
// Seconds are validated and then ignored.
func ParseClock(s string) (int, error) {
	raw := strings.TrimSpace(s)
	parts := strings.Split(raw, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, validationError(fmt.Sprintf("invalid time %q: want HH:MM", s))
	}

	hour, ok := clockField(parts[0], 1)
	if !ok || hour > 23 {
		return 0, validationError(fmt.Sprintf("invalid time %q: hour must be 00-23", s))
	}
	minute, ok := clockField(parts[1], 2)
	if !ok || minute > 59 {
		return 0, validationError(fmt.Sprintf("invalid time %q: minute must be 00-59", s))
	}
	if len(parts) == 3 {
		second, ok := clockField(parts[2], 2)
		if !ok || second > 59 {
			return 0, validationError(fmt.Sprintf("invalid time %q: second must be 00-59", s))
		}
	}

	return hour*60 + minute, nil
}

// ParseEndClock is ParseClock for the end of an interval: it also accepts
// "24:00" (and "24:00:00") as midnight at the end of the day.
func ParseEndClock(s string) (int, error) {
	switch strings.TrimSpace(s) {
	case "24:00", "24:00:00":
		return MinutesPerDay, nil
	}
	return ParseClock(s)
}

func clockField(s string, minLen int) (int, bool) {
	if len(s) < minLen || len(s) > 2 {
		return 0, false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

// FormatClock renders minutes since midnight as "HH:MM".
func FormatClock(minutes int) string {
	if minutes < 0 {
		minutes = 0
	}
	if minutes > MinutesPerDay {
		minutes = MinutesPerDay
	}
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// NewClockRange parses a start/end pair. An empty end, or an end equal to the
// start, becomes a DefaultMinSlot interval capped at midnight. The end may be
// "24:00".
func NewClockRange(start, end string) (ClockRange, error) {
	s, err := ParseClock(start)
	if err != nil {
		return ClockRange{}, err
	}

	if strings.TrimSpace(end) == "" {
		return minSlotRange(s), nil
	}

	e, err := ParseEndClock(end)
	if err != nil {
		return ClockRange{}, err
	}
	if e < s {
		return ClockRange{}, validationError(fmt.Sprintf("end time %s is before start time %s", FormatClock(e), FormatClock(s)))
	}
	if e == s {
		return minSlotRange(s), nil
	}
	return ClockRange{Start: s, End: e}, nil
}

func minSlotRange(start int) ClockRange {
	end := start + DefaultMinSlot
	if end > MinutesPerDay {
		end = MinutesPerDay
	}
	return ClockRange{Start: start, End: end}
}

func (r ClockRange) String() string {
	return FormatClock(r.Start) + "-" + FormatClock(r.End)
}

// MinutesOverlap reports whether two ranges share at least one minute.
// Back-to-back ranges (a.End == b.Start) do not overlap.
func MinutesOverlap(a, b ClockRange) bool {
	return a.Start < b.End && a.End > b.Start
}

func TimeOverlap(start1, end1, start2, end2 string) (bool, error) {
	a, err := NewClockRange(start1, end1)
	if err != nil {
		return false, err
	}
	b, err := NewClockRange(start2, end2)
	if err != nil {
		return false, err
	}
	return MinutesOverlap(a, b), nil
}
