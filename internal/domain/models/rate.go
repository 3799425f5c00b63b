package models

import (
	"fmt"
	"sort"
	"strings"
)

// RatePoint is one currency's rate against the reference currency.
type RatePoint struct {
	Code string  `json:"code"`
	Rate float64 `json:"rate"`
}

// NormalizeCode uppercases and validates a 3-letter ISO currency code.
func NormalizeCode(s string) (string, error) {
	c := strings.ToUpper(strings.TrimSpace(s))
	if len(c) != 3 {
		return "", fmt.Errorf("currency code %q: must be 3 letters", s)
	}
	for _, r := range c {
		if r < 'A' || r > 'Z' {
			return "", fmt.Errorf("currency code %q: must be 3 letters", s)
		}
	}
	return c, nil
}

// DayRecord is one business day's rate snapshot, unique per currency code.
type DayRecord struct {
	Date  Day
	Rates map[string]float64
}

// Rate looks up a currency's rate in the record.
func (r DayRecord) Rate(code string) (float64, bool) {
	v, ok := r.Rates[code]
	return v, ok
}

// Points returns the record's rates as a slice ordered by currency code.
func (r DayRecord) Points() []RatePoint {
	out := make([]RatePoint, 0, len(r.Rates))
	for code, rate := range r.Rates {
		out = append(out, RatePoint{Code: code, Rate: rate})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// Series is a sequence of DayRecord kept strictly ascending by date with no
// duplicates. Every producer maintains the ordering, which is what makes
// Earliest and Latest O(1).
type Series []DayRecord

func (s Series) IsEmpty() bool { return len(s) == 0 }

// Earliest returns the first date. Only meaningful when the series is
// non-empty.
func (s Series) Earliest() Day {
	if len(s) == 0 {
		return Day{}
	}
	return s[0].Date
}

// Latest returns the last date. Only meaningful when the series is non-empty.
func (s Series) Latest() Day {
	if len(s) == 0 {
		return Day{}
	}
	return s[len(s)-1].Date
}

// Summary condenses the series endpoints for gap analysis.
func (s Series) Summary() CacheSummary {
	if len(s) == 0 {
		return CacheSummary{Empty: true}
	}
	return CacheSummary{Earliest: s.Earliest(), Latest: s.Latest()}
}

// Slice returns the sub-series falling inside the inclusive range.
func (s Series) Slice(rng DateRange) Series {
	lo := sort.Search(len(s), func(i int) bool { return !s[i].Date.Before(rng.Start) })
	hi := sort.Search(len(s), func(i int) bool { return s[i].Date.After(rng.End) })
	if lo >= hi {
		return nil
	}
	out := make(Series, hi-lo)
	copy(out, s[lo:hi])
	return out
}

// CacheSummary describes a cached series' date coverage.
type CacheSummary struct {
	Earliest Day
	Latest   Day
	Empty    bool
}
