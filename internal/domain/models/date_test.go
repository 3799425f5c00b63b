package models

import (
	"errors"
	"testing"
	"time"
)

func mustDay(t *testing.T, s string) Day {
	t.Helper()
	d, err := ParseDay(s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return d
}

func TestParseDay(t *testing.T) {
	d, err := ParseDay("2024-02-29")
	if err != nil {
		t.Fatalf("expected leap day to parse: %v", err)
	}
	if d.String() != "2024-02-29" {
		t.Fatalf("round trip mismatch: %s", d)
	}
}

func TestParseDayRejectsUnpadded(t *testing.T) {
	for _, s := range []string{"2024-2-09", "2024-02-9", "24-02-09"} {
		if _, err := ParseDay(s); err == nil {
			t.Fatalf("expected %q to be rejected", s)
		}
	}
}

func TestParseDayRejectsOverflow(t *testing.T) {
	// time.Parse would normalize this to March 2nd; the strict contract
	// refuses it instead.
	_, err := ParseDay("2024-02-31")
	if err == nil {
		t.Fatalf("expected overflow day to be rejected")
	}
	var parseErr *DateParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected DateParseError, got %T", err)
	}
}

func TestDayAddDays(t *testing.T) {
	d := mustDay(t, "2024-12-30").AddDays(3)
	if d.String() != "2025-01-02" {
		t.Fatalf("year rollover mismatch: %s", d)
	}
}

func TestDaysBetween(t *testing.T) {
	a := mustDay(t, "2024-03-01")
	b := mustDay(t, "2024-03-11")
	if got := DaysBetween(a, b); got != 10 {
		t.Fatalf("expected 10, got %d", got)
	}
	if got := DaysBetween(b, a); got != -10 {
		t.Fatalf("expected -10, got %d", got)
	}
}

func TestDayOfPicksCalendarDayInLocation(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	// 23:30 UTC is already the next day in Berlin, and the resulting Day
	// must compare equal to the same day parsed from a string.
	instant := time.Date(2024, 6, 10, 23, 30, 0, 0, time.UTC)
	got := DayOf(instant, loc)
	if got.String() != "2024-06-11" {
		t.Fatalf("expected 2024-06-11, got %s", got)
	}
	if !got.Equal(mustDay(t, "2024-06-11")) {
		t.Fatalf("expected location-derived day to equal parsed day")
	}
}

func TestDayIsWeekend(t *testing.T) {
	if !mustDay(t, "2024-03-02").IsWeekend() { // Saturday
		t.Fatalf("expected Saturday to be weekend")
	}
	if mustDay(t, "2024-03-04").IsWeekend() { // Monday
		t.Fatalf("expected Monday to be a business day")
	}
}

func TestDateRangeValid(t *testing.T) {
	r := DateRange{Start: mustDay(t, "2024-01-10"), End: mustDay(t, "2024-01-05")}
	if r.Valid() {
		t.Fatalf("inverted range should be invalid")
	}
	r = DateRange{Start: mustDay(t, "2024-01-10"), End: mustDay(t, "2024-01-10")}
	if !r.Valid() {
		t.Fatalf("single-day range should be valid")
	}
	if r.Days() != 1 {
		t.Fatalf("single-day range should span 1 day, got %d", r.Days())
	}
}

func TestDateRangeOverlaps(t *testing.T) {
	a := DateRange{Start: mustDay(t, "2024-01-01"), End: mustDay(t, "2024-01-10")}
	b := DateRange{Start: mustDay(t, "2024-01-10"), End: mustDay(t, "2024-01-20")}
	c := DateRange{Start: mustDay(t, "2024-01-11"), End: mustDay(t, "2024-01-20")}
	if !a.Overlaps(b) {
		t.Fatalf("touching ranges share a day")
	}
	if a.Overlaps(c) {
		t.Fatalf("disjoint ranges should not overlap")
	}
}
