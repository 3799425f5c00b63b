package usecase

import (
	"context"
	"time"

	"RateSync/internal/domain/models"
	applogger "RateSync/pkg/logger"
)

// Refresher keeps the trailing window warm for the configured currencies so
// the first request after a publish cutoff does not pay the fetch latency.
type Refresher struct {
	sync       *SyncOrchestrator
	trends     *TrendRecalculator
	charts     *ChartBuilder
	log        *applogger.Logger
	currencies []string
	interval   time.Duration
	windowDays int
}

func NewRefresher(
	sync *SyncOrchestrator,
	trends *TrendRecalculator,
	charts *ChartBuilder,
	log *applogger.Logger,
	currencies []string,
	interval time.Duration,
	windowDays int,
) *Refresher {
	if interval <= 0 {
		interval = time.Hour
	}
	if windowDays <= 0 {
		windowDays = trendWindowDays
	}
	return &Refresher{
		sync:       sync,
		trends:     trends,
		charts:     charts,
		log:        log,
		currencies: currencies,
		interval:   interval,
		windowDays: windowDays,
	}
}

// Run blocks until the context ends, refreshing on each tick. The first
// refresh happens immediately.
func (r *Refresher) Run(ctx context.Context) {
	r.refresh(ctx)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.refresh(ctx)
		}
	}
}

func (r *Refresher) refresh(ctx context.Context) {
	today := r.sync.gaps.Today()
	rng := models.DateRange{Start: today.AddDays(-r.windowDays), End: today}

	anyFetched := false
	var fetched []models.DateRange
	for _, currency := range r.currencies {
		res, err := r.sync.Load(ctx, currency, rng)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			r.log.Warn("scheduled refresh failed",
				applogger.String("currency", currency),
				applogger.Error(err),
			)
			continue
		}
		if res.NewDataFetched {
			anyFetched = true
			fetched = append(fetched, res.FetchedRanges...)
		}
	}

	if !anyFetched {
		return
	}
	if err := r.trends.MaybeRecalculate(ctx, fetched); err != nil {
		r.log.Warn("scheduled trend rebuild failed", applogger.Error(err))
	}
	r.charts.Invalidate(ctx)
}
