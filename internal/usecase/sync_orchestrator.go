package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"RateSync/internal/domain/models"
	drepo "RateSync/internal/domain/repository"
	tiercache "RateSync/internal/service/cache"
	"RateSync/internal/service/retry"
	applogger "RateSync/pkg/logger"
)

const (
	// EndpointHistoricalRates keys retry state for the range-query endpoint.
	EndpointHistoricalRates = "historical-rates"

	defaultChunkDays    = 180
	defaultMaxRangeDays = 366
)

// SyncConfig tunes the orchestrator.
type SyncConfig struct {
	BaseCurrency string
	ChunkDays    int // window size for chunked large-range reads
	MaxRangeDays int // ranges longer than this are chunked
}

// SyncOrchestrator coordinates the three tiers for historical rates: the
// in-process TierCache, the durable store, and the remote API behind the
// retry coordinator. It is the only writer path for cached series.
type SyncOrchestrator struct {
	source  drepo.RateSource
	store   drepo.RateStore
	cache   *tiercache.TierCache
	gaps    *GapAnalyzer
	retrier *retry.Coordinator
	pub     drepo.Publisher
	metrics drepo.Metrics
	log     *applogger.Logger
	cfg     SyncConfig

	// One lock per currency serializes the check-fetch-merge-write
	// sequence while keeping cross-currency loads parallel.
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewSyncOrchestrator(
	source drepo.RateSource,
	store drepo.RateStore,
	cache *tiercache.TierCache,
	gaps *GapAnalyzer,
	retrier *retry.Coordinator,
	pub drepo.Publisher,
	metrics drepo.Metrics,
	log *applogger.Logger,
	cfg SyncConfig,
) *SyncOrchestrator {
	if cfg.ChunkDays <= 0 {
		cfg.ChunkDays = defaultChunkDays
	}
	if cfg.MaxRangeDays <= 0 {
		cfg.MaxRangeDays = defaultMaxRangeDays
	}
	return &SyncOrchestrator{
		source:  source,
		store:   store,
		cache:   cache,
		gaps:    gaps,
		retrier: retrier,
		pub:     pub,
		metrics: metrics,
		log:     log,
		cfg:     cfg,
		locks:   make(map[string]*sync.Mutex),
	}
}

// LoadResult is the outcome of one load.
type LoadResult struct {
	Series models.Series
	// NewDataFetched is true when at least one sub-range came back from the
	// network with data, even if other sub-ranges failed.
	NewDataFetched bool
	// FetchedRanges lists the sub-ranges genuinely served by the network,
	// not the requested gaps. Only these invalidate downstream trends.
	FetchedRanges []models.DateRange
}

// Load returns the series for currency over rng, fetching whatever the
// cache and durable tiers cannot supply. Ranges beyond MaxRangeDays are
// processed in bounded windows with a cancellation check between them.
func (o *SyncOrchestrator) Load(ctx context.Context, currency string, rng models.DateRange) (*LoadResult, error) {
	code, err := models.NormalizeCode(currency)
	if err != nil {
		return nil, err
	}
	if !rng.Valid() {
		return nil, &models.DateCalculationError{Reason: "invalid range " + rng.String()}
	}

	var res *LoadResult
	if rng.Days() > o.cfg.MaxRangeDays {
		res, err = o.loadChunked(ctx, code, rng)
	} else {
		res, err = o.loadWindow(ctx, code, rng)
	}
	if err != nil {
		return nil, err
	}

	if res.NewDataFetched && o.pub != nil {
		ev := models.SyncEvent{Currency: code, At: time.Now()}
		for _, r := range res.FetchedRanges {
			ev.FetchedRanges = append(ev.FetchedRanges, r.String())
		}
		if perr := o.pub.PublishSync(ctx, ev); perr != nil {
			o.log.Warn("sync event publish failed",
				applogger.String("currency", code),
				applogger.Error(perr),
			)
		}
	}
	return res, nil
}

// GetCached returns whatever the in-process tier holds for the range.
// Never touches the durable tier or the network.
func (o *SyncOrchestrator) GetCached(currency string, rng models.DateRange) models.Series {
	code, err := models.NormalizeCode(currency)
	if err != nil {
		return nil
	}
	cached := o.cachedSeries(code)
	return cached.Slice(rng)
}

// CurrentSnapshot returns the latest-day rates across currencies. The cached
// slice is shared between reader goroutines and the quote pipeline, so the
// caller gets its own copy and may keep or mutate it freely.
func (o *SyncOrchestrator) CurrentSnapshot() []models.RatePoint {
	if v, ok := o.cache.Get(tiercache.SnapshotKey()); ok {
		if points, ok := v.([]models.RatePoint); ok {
			out := make([]models.RatePoint, len(points))
			copy(out, points)
			return out
		}
	}
	return nil
}

// ApplyQuote folds a live quote into the snapshot class. The cached slice is
// never edited in place; the copy from CurrentSnapshot is updated and a whole
// new snapshot is put back, so concurrent readers see the old set or the new
// one, never a half-written element.
func (o *SyncOrchestrator) ApplyQuote(code string, rate float64) {
	normalized, err := models.NormalizeCode(code)
	if err != nil {
		return
	}
	points := o.CurrentSnapshot()
	replaced := false
	for i := range points {
		if points[i].Code == normalized {
			points[i].Rate = rate
			replaced = true
			break
		}
	}
	if !replaced {
		points = append(points, models.RatePoint{Code: normalized, Rate: rate})
	}
	o.cache.Put(tiercache.SnapshotKey(), points)
}

// ClearAllCache drops every cached collection and all retry bookkeeping.
func (o *SyncOrchestrator) ClearAllCache() {
	o.cache.Clear()
	o.retrier.ResetAll()
}

func (o *SyncOrchestrator) loadChunked(ctx context.Context, code string, rng models.DateRange) (*LoadResult, error) {
	out := &LoadResult{}
	for _, window := range splitRange(rng, o.cfg.ChunkDays) {
		// Cooperative stop between chunks bounds both latency to
		// cancellation and peak memory.
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		part, err := o.loadWindow(ctx, code, window)
		if err != nil {
			return nil, err
		}
		out.Series = MergeSeries(out.Series, part.Series)
		out.FetchedRanges = append(out.FetchedRanges, part.FetchedRanges...)
	}
	out.NewDataFetched = len(out.FetchedRanges) > 0
	return out, nil
}

func (o *SyncOrchestrator) loadWindow(ctx context.Context, code string, rng models.DateRange) (*LoadResult, error) {
	lock := o.lockFor(code)
	lock.Lock()
	defer lock.Unlock()

	cached := o.cachedSeries(code)
	missing, err := o.gaps.MissingRanges(rng, cached.Summary())
	if err != nil {
		return nil, err
	}
	if len(missing) == 0 {
		return &LoadResult{Series: cached.Slice(rng)}, nil
	}

	var fetched []models.DateRange
	var incoming models.Series
	for _, sub := range missing {
		series, wasFetched, serr := o.loadSubRange(ctx, code, sub)
		if serr != nil {
			// Cancellation aborts the whole load; anything else is a
			// partial failure and the remaining sub-ranges still run.
			if ctx.Err() != nil || errors.Is(serr, context.Canceled) || errors.Is(serr, context.DeadlineExceeded) {
				return nil, serr
			}
			o.log.Error("sub-range load failed",
				applogger.String("currency", code),
				applogger.String("range", sub.String()),
				applogger.Error(serr),
			)
			if o.metrics != nil {
				o.metrics.RecordFetch("error")
			}
			continue
		}
		if wasFetched {
			fetched = append(fetched, sub)
		}
		incoming = MergeSeries(incoming, series)
	}

	merged := MergeSeries(cached, incoming)
	o.cache.Put(tiercache.HistoryKey(code), merged)
	o.refreshSnapshot(merged)

	return &LoadResult{
		Series:         merged.Slice(rng),
		NewDataFetched: len(fetched) > 0,
		FetchedRanges:  fetched,
	}, nil
}

// loadSubRange satisfies one missing interval. The durable tier may already
// cover a gap the in-process cache did not know about, so its coverage is
// re-checked with the same gap rules before going to the network.
func (o *SyncOrchestrator) loadSubRange(ctx context.Context, code string, sub models.DateRange) (models.Series, bool, error) {
	needFetch, err := o.storeNeedsFetch(ctx, sub)
	if err != nil {
		return nil, false, err
	}

	wasFetched := false
	if needFetch {
		var payload map[string]map[string]float64
		start := time.Now()
		err := o.retrier.Do(ctx, EndpointHistoricalRates, func(ctx context.Context) error {
			var ferr error
			payload, ferr = o.source.FetchHistorical(ctx, o.cfg.BaseCurrency, sub.Start, sub.End)
			return ferr
		})
		if o.metrics != nil {
			o.metrics.RecordFetchLatency(time.Since(start).Seconds())
		}
		if err != nil {
			return nil, false, err
		}
		// An empty payload (future dates, unpublished days) is not new
		// data and must not invalidate trends downstream.
		if len(payload) > 0 {
			if serr := o.store.SaveHistoricalRates(ctx, payload); serr != nil {
				return nil, false, serr
			}
			wasFetched = true
			if o.metrics != nil {
				o.metrics.RecordFetch("ok")
			}
		}
	}

	series, err := o.store.LoadSeries(ctx, code, sub.Start, sub.End)
	if err != nil {
		return nil, false, err
	}
	return series, wasFetched, nil
}

func (o *SyncOrchestrator) storeNeedsFetch(ctx context.Context, sub models.DateRange) (bool, error) {
	earliest, err := o.store.EarliestStoredDate(ctx)
	if err != nil {
		return false, err
	}
	latest, err := o.store.LatestStoredDate(ctx)
	if err != nil {
		return false, err
	}
	if earliest == nil || latest == nil {
		return true, nil
	}
	summary := models.CacheSummary{Earliest: *earliest, Latest: *latest}
	gaps, err := o.gaps.MissingRanges(sub, summary)
	if err != nil {
		return false, err
	}
	return len(gaps) > 0, nil
}

// refreshSnapshot promotes today's record, when present, to the snapshot
// class.
func (o *SyncOrchestrator) refreshSnapshot(series models.Series) {
	if series.IsEmpty() {
		return
	}
	today := o.gaps.Today()
	if !series.Latest().Equal(today) {
		return
	}
	o.cache.Put(tiercache.SnapshotKey(), series[len(series)-1].Points())
}

func (o *SyncOrchestrator) cachedSeries(code string) models.Series {
	if v, ok := o.cache.Get(tiercache.HistoryKey(code)); ok {
		if s, ok := v.(models.Series); ok {
			return s
		}
	}
	return nil
}

func (o *SyncOrchestrator) lockFor(code string) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	lock, ok := o.locks[code]
	if !ok {
		lock = &sync.Mutex{}
		o.locks[code] = lock
	}
	return lock
}

func splitRange(rng models.DateRange, chunkDays int) []models.DateRange {
	var out []models.DateRange
	start := rng.Start
	for !start.After(rng.End) {
		end := start.AddDays(chunkDays - 1)
		if end.After(rng.End) {
			end = rng.End
		}
		out = append(out, models.DateRange{Start: start, End: end})
		start = end.AddDays(1)
	}
	return out
}
