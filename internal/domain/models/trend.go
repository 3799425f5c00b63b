package models

import "time"

// TrendRecord is a derived weekly-change aggregate for one currency. It is
// never authored directly; it is rebuilt wholesale from a Series window.
type TrendRecord struct {
	Code            string    `json:"code"`
	WeeklyChangePct float64   `json:"weekly_change_pct"`
	Samples         []float64 `json:"samples"`
}

// ChartPoint is one day of a processed base/target cross-rate series.
type ChartPoint struct {
	Date string  `json:"date"`
	Rate float64 `json:"rate"`
}

// SyncEvent announces that a load fetched new data from the network.
type SyncEvent struct {
	Currency      string    `json:"currency"`
	FetchedRanges []string  `json:"fetched_ranges"`
	At            time.Time `json:"at"`
}
