package models

import (
	"time"
)

// dayLayout is the wire format for calendar days. Parse and format must
// round-trip exactly; anything not zero-padded is rejected.
const dayLayout = "2006-01-02"

// Day is a single calendar day. Values are canonicalized to UTC midnight so
// days from any producer compare with Equal regardless of where the process
// runs; timezone only matters when deciding which calendar day an instant
// falls on, and DayOf takes it there.
type Day struct {
	t time.Time
}

// NewDay constructs a Day from calendar components.
func NewDay(year int, month time.Month, day int) Day {
	return Day{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DayOf truncates an instant to its calendar day in the given location.
func DayOf(t time.Time, loc *time.Location) Day {
	y, m, d := t.In(loc).Date()
	return NewDay(y, m, d)
}

// ParseDay parses a strict YYYY-MM-DD string. Non-zero-padded or
// out-of-range components fail with DateParseError.
func ParseDay(s string) (Day, error) {
	t, err := time.ParseInLocation(dayLayout, s, time.UTC)
	if err != nil {
		return Day{}, &DateParseError{Input: s, Err: err}
	}
	// time.Parse normalizes out-of-range components ("2024-02-31" becomes
	// March 2nd) and accepts unpadded digits; require an exact round trip.
	if t.Format(dayLayout) != s {
		return Day{}, &DateParseError{Input: s}
	}
	return Day{t: t}, nil
}

func (d Day) String() string { return d.t.Format(dayLayout) }

// Time returns midnight of the day in its location.
func (d Day) Time() time.Time { return d.t }

func (d Day) IsZero() bool { return d.t.IsZero() }

func (d Day) AddDays(n int) Day {
	return Day{t: d.t.AddDate(0, 0, n)}
}

func (d Day) Before(o Day) bool { return d.t.Before(o.t) }
func (d Day) After(o Day) bool  { return d.t.After(o.t) }
func (d Day) Equal(o Day) bool  { return d.t.Equal(o.t) }

func (d Day) Weekday() time.Weekday { return d.t.Weekday() }

func (d Day) IsWeekend() bool {
	wd := d.t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// DaysBetween returns the number of calendar days from a to b. Negative when
// b precedes a. Both operands are UTC midnights, so the difference is always
// an exact multiple of 24 hours.
func DaysBetween(a, b Day) int {
	return int(b.t.Sub(a.t) / (24 * time.Hour))
}

// DateRange is an inclusive span of calendar days.
type DateRange struct {
	Start Day
	End   Day
}

// Valid reports whether the range is non-empty and ordered.
func (r DateRange) Valid() bool {
	return !r.Start.IsZero() && !r.End.IsZero() && !r.End.Before(r.Start)
}

// Days returns the inclusive day count of the range.
func (r DateRange) Days() int {
	return DaysBetween(r.Start, r.End) + 1
}

func (r DateRange) Contains(d Day) bool {
	return !d.Before(r.Start) && !d.After(r.End)
}

// Overlaps reports whether the two inclusive ranges share at least one day.
func (r DateRange) Overlaps(o DateRange) bool {
	return !r.Start.After(o.End) && !r.End.Before(o.Start)
}

func (r DateRange) String() string {
	return r.Start.String() + ".." + r.End.String()
}
