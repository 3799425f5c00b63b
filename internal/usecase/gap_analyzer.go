package usecase

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"RateSync/internal/domain/models"
)

const defaultGapToleranceDays = 4

// GapAnalyzer decides which parts of a required date range genuinely need
// fetching. Leading gaps are static history and use a fixed calendar-day
// tolerance; trailing gaps sit near "today" and use a business-day scan with
// a publish cutoff. The asymmetry is deliberate: unifying the two rules
// would change behavior near the current day.
type GapAnalyzer struct {
	tolerance    int
	cutoffHour   int
	cutoffMinute int
	loc          *time.Location

	// now is replaceable in tests.
	now func() time.Time
}

// NewGapAnalyzer builds an analyzer. cutoff is "HH:MM" in loc, the local
// time after which the remote source is expected to have published today's
// rates.
func NewGapAnalyzer(toleranceDays int, cutoff string, loc *time.Location) (*GapAnalyzer, error) {
	if toleranceDays <= 0 {
		toleranceDays = defaultGapToleranceDays
	}
	h, m, err := parseCutoff(cutoff)
	if err != nil {
		return nil, err
	}
	return &GapAnalyzer{
		tolerance:    toleranceDays,
		cutoffHour:   h,
		cutoffMinute: m,
		loc:          loc,
		now:          time.Now,
	}, nil
}

// MissingRanges returns the sub-ranges of required not covered by the cached
// summary. At most two ranges come back: one leading, one trailing.
func (g *GapAnalyzer) MissingRanges(required models.DateRange, summary models.CacheSummary) ([]models.DateRange, error) {
	if !required.Valid() {
		return nil, &models.DateCalculationError{Reason: fmt.Sprintf("invalid range %s", required)}
	}
	if summary.Empty {
		return []models.DateRange{required}, nil
	}

	var missing []models.DateRange

	if required.Start.Before(summary.Earliest) {
		gapDays := models.DaysBetween(required.Start, summary.Earliest)
		// Short leading gaps are weekend or holiday artifacts, not data.
		if gapDays > g.tolerance {
			missing = append(missing, models.DateRange{
				Start: required.Start,
				End:   summary.Earliest.AddDays(-1),
			})
		}
	}

	if required.End.After(summary.Latest) {
		if g.HasActualDataGap(summary.Latest, required.End) {
			missing = append(missing, models.DateRange{
				Start: summary.Latest.AddDays(1),
				End:   required.End,
			})
		}
	}

	return missing, nil
}

// HasActualDataGap scans day-by-day from the day after from through to,
// short-circuiting on the first day that should have published data.
// Weekends never count. "Today" counts only once the publish cutoff has
// passed.
func (g *GapAnalyzer) HasActualDataGap(from, to models.Day) bool {
	today := g.Today()
	for d := from.AddDays(1); !d.After(to); d = d.AddDays(1) {
		if d.IsWeekend() {
			continue
		}
		if d.Equal(today) {
			if g.pastCutoff() {
				return true
			}
			continue
		}
		return true
	}
	return false
}

// Today returns the current calendar day in the reference timezone.
func (g *GapAnalyzer) Today() models.Day {
	return models.DayOf(g.now(), g.loc)
}

func (g *GapAnalyzer) pastCutoff() bool {
	now := g.now().In(g.loc)
	cutoff := time.Date(now.Year(), now.Month(), now.Day(), g.cutoffHour, g.cutoffMinute, 0, 0, g.loc)
	return !now.Before(cutoff)
}

func parseCutoff(s string) (int, int, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("publish cutoff %q: want HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, 0, fmt.Errorf("publish cutoff %q: bad hour", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, 0, fmt.Errorf("publish cutoff %q: bad minute", s)
	}
	return h, m, nil
}
