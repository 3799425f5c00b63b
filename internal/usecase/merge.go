package usecase

import (
	"math"
	"sort"

	"RateSync/internal/domain/models"
)

// MergeSeries combines two series into one deduplicated, date-sorted result.
// Incoming wins whole-record on date collisions; no field-level merging.
// Pure and deterministic: the final sort removes map iteration order.
func MergeSeries(existing, incoming models.Series) models.Series {
	if len(incoming) == 0 {
		return existing
	}
	byDate := make(map[string]models.DayRecord, len(existing)+len(incoming))
	for _, rec := range existing {
		byDate[rec.Date.String()] = rec
	}
	for _, rec := range incoming {
		byDate[rec.Date.String()] = rec
	}

	merged := make(models.Series, 0, len(byDate))
	for _, rec := range byDate {
		merged = append(merged, rec)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Date.Before(merged[j].Date)
	})
	return merged
}

// ConvertToBase rebases a reference-denominated value by dividing through
// the base currency's rate. A zero or near-zero denominator falls back to
// the unconverted value instead of producing infinity.
func ConvertToBase(value, baseRate float64) float64 {
	if math.Abs(baseRate) < 1e-9 {
		return value
	}
	return value / baseRate
}
