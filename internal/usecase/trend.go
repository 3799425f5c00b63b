package usecase

import (
	"context"
	"sort"

	"RateSync/internal/domain/models"
	drepo "RateSync/internal/domain/repository"
	tiercache "RateSync/internal/service/cache"
	applogger "RateSync/pkg/logger"
)

const trendWindowDays = 7

// TrendRecalculator maintains the derived weekly-change aggregates. Trends
// are never edited in place: a rebuild replaces the whole cached set in one
// Put, so readers see either the old set or the new one.
type TrendRecalculator struct {
	store   drepo.RateStore
	cache   *tiercache.TierCache
	gaps    *GapAnalyzer
	metrics drepo.Metrics
	log     *applogger.Logger
}

func NewTrendRecalculator(
	store drepo.RateStore,
	cache *tiercache.TierCache,
	gaps *GapAnalyzer,
	metrics drepo.Metrics,
	log *applogger.Logger,
) *TrendRecalculator {
	return &TrendRecalculator{
		store:   store,
		cache:   cache,
		gaps:    gaps,
		metrics: metrics,
		log:     log,
	}
}

// Window returns the trend window ending today.
func (t *TrendRecalculator) Window() models.DateRange {
	today := t.gaps.Today()
	return models.DateRange{Start: today.AddDays(-trendWindowDays), End: today}
}

// MaybeRecalculate rebuilds trends only when a fetched range overlaps the
// trend window. Backfills of old history do no work at all; a cold cache is
// filled lazily by the read path instead.
func (t *TrendRecalculator) MaybeRecalculate(ctx context.Context, fetched []models.DateRange) error {
	window := t.Window()
	for _, rng := range fetched {
		if rng.Overlaps(window) {
			return t.Recalculate(ctx)
		}
	}
	return nil
}

// Recalculate rebuilds the full trend set from the durable tier.
func (t *TrendRecalculator) Recalculate(ctx context.Context) error {
	window := t.Window()
	series, err := t.store.LoadAll(ctx, window.Start, window.End)
	if err != nil {
		return err
	}

	trends := buildTrends(series)
	t.cache.Put(tiercache.TrendKey(), trends)
	if t.metrics != nil {
		t.metrics.RecordTrendRebuild()
	}
	t.log.Debug("trends rebuilt",
		applogger.String("window", window.String()),
		applogger.Int("currencies", len(trends)),
	)
	return nil
}

// Cached returns the current trend set without touching the durable tier.
func (t *TrendRecalculator) Cached() []models.TrendRecord {
	if v, ok := t.cache.Get(tiercache.TrendKey()); ok {
		if trends, ok := v.([]models.TrendRecord); ok {
			return trends
		}
	}
	return nil
}

// buildTrends derives per-currency weekly change from a date-sorted series.
// Currencies with fewer than two samples in the window are dropped; a
// single observation has no trend.
func buildTrends(series models.Series) []models.TrendRecord {
	samples := make(map[string][]float64)
	for _, rec := range series {
		for code, rate := range rec.Rates {
			samples[code] = append(samples[code], rate)
		}
	}

	codes := make([]string, 0, len(samples))
	for code := range samples {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	trends := make([]models.TrendRecord, 0, len(codes))
	for _, code := range codes {
		vals := samples[code]
		if len(vals) < 2 {
			continue
		}
		first, last := vals[0], vals[len(vals)-1]
		var changePct float64
		if first != 0 {
			changePct = (last - first) / first * 100
		}
		trends = append(trends, models.TrendRecord{
			Code:            code,
			WeeklyChangePct: changePct,
			Samples:         vals,
		})
	}
	return trends
}
