package domain

import (
	"fmt"
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

// Date truncates t to its calendar day, expressed as UTC midnight. The
// calendar day is read in t's own location.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, validationError(fmt.Sprintf("invalid date %q: want YYYY-MM-DD", s))
	}
	return t, nil
}

func FormatDate(t time.Time) string {
	return Date(t).Format(DateLayout)
}

// EffectiveEnd is the last day of a span: end when set, start otherwise.
func EffectiveEnd(start time.Time, end *time.Time) time.Time {
	if end == nil || end.IsZero() {
		return Date(start)
	}
	return Date(*end)
}

// DateRangesOverlap compares inclusive day ranges. Ranges sharing a single
// calendar day overlap; ranges that are merely adjacent do not.
func DateRangesOverlap(aStart, aEnd, bStart, bEnd time.Time) bool {
	return !Date(aStart).After(Date(bEnd)) && !Date(aEnd).Before(Date(bStart))
}

// SharedDays returns the first and last calendar day common to both ranges.
func SharedDays(aStart, aEnd, bStart, bEnd time.Time) (time.Time, time.Time, bool) {
	if !DateRangesOverlap(aStart, aEnd, bStart, bEnd) {
		return time.Time{}, time.Time{}, false
	}

	from := Date(aStart)
	if b := Date(bStart); b.After(from) {
		from = b
	}
	to := Date(aEnd)
	if b := Date(bEnd); b.Before(to) {
		to = b
	}
	return from, to, true
}

// ExpandDays lists every calendar day in [start, end].
func ExpandDays(start, end time.Time) []time.Time {
	from := Date(start)
	to := Date(end)
	if to.Before(from) {
		return nil
	}

	out := make([]time.Time, 0, int(to.Sub(from)/(24*time.Hour))+1)
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out
}
