package usecase

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"RateSync/internal/domain/models"
	tiercache "RateSync/internal/service/cache"
	"RateSync/internal/service/retry"
	applogger "RateSync/pkg/logger"

	"github.com/stretchr/testify/require"
)

// fakeSource scripts the remote rates API.
type fakeSource struct {
	fn     func(from, to models.Day) (map[string]map[string]float64, error)
	calls  int
	ranges []models.DateRange
}

func (f *fakeSource) FetchHistorical(ctx context.Context, base string, from, to models.Day) (map[string]map[string]float64, error) {
	f.calls++
	f.ranges = append(f.ranges, models.DateRange{Start: from, End: to})
	if f.fn == nil {
		return map[string]map[string]float64{}, nil
	}
	return f.fn(from, to)
}

// fakeStore is an in-memory durable tier keyed by date string.
type fakeStore struct {
	data         map[string]map[string]float64
	saveCalls    int
	loadAllCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string]map[string]float64)}
}

func (f *fakeStore) SaveHistoricalRates(ctx context.Context, rates map[string]map[string]float64) error {
	f.saveCalls++
	for date, perCurrency := range rates {
		day := make(map[string]float64, len(perCurrency))
		for code, rate := range perCurrency {
			day[code] = rate
		}
		f.data[date] = day
	}
	return nil
}

func (f *fakeStore) sortedDates() []string {
	dates := make([]string, 0, len(f.data))
	for d := range f.data {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	return dates
}

func (f *fakeStore) LoadSeries(ctx context.Context, currency string, from, to models.Day) (models.Series, error) {
	var out models.Series
	for _, date := range f.sortedDates() {
		d, err := models.ParseDay(date)
		if err != nil {
			return nil, err
		}
		if d.Before(from) || d.After(to) {
			continue
		}
		if _, ok := f.data[date][currency]; !ok {
			continue
		}
		out = append(out, models.DayRecord{Date: d, Rates: f.data[date]})
	}
	return out, nil
}

func (f *fakeStore) LoadAll(ctx context.Context, from, to models.Day) (models.Series, error) {
	f.loadAllCalls++
	var out models.Series
	for _, date := range f.sortedDates() {
		d, err := models.ParseDay(date)
		if err != nil {
			return nil, err
		}
		if d.Before(from) || d.After(to) {
			continue
		}
		out = append(out, models.DayRecord{Date: d, Rates: f.data[date]})
	}
	return out, nil
}

func (f *fakeStore) EarliestStoredDate(ctx context.Context) (*models.Day, error) {
	dates := f.sortedDates()
	if len(dates) == 0 {
		return nil, nil
	}
	d, err := models.ParseDay(dates[0])
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (f *fakeStore) LatestStoredDate(ctx context.Context) (*models.Day, error) {
	dates := f.sortedDates()
	if len(dates) == 0 {
		return nil, nil
	}
	d, err := models.ParseDay(dates[len(dates)-1])
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (f *fakeStore) ClearAll(ctx context.Context) error {
	f.data = make(map[string]map[string]float64)
	return nil
}

func (f *fakeStore) Health(ctx context.Context) error { return nil }
func (f *fakeStore) Close() error                     { return nil }

type fakePublisher struct {
	events []models.SyncEvent
}

func (f *fakePublisher) PublishSync(ctx context.Context, ev models.SyncEvent) error {
	f.events = append(f.events, ev)
	return nil
}

func (f *fakePublisher) Close() error { return nil }

func testLogger(t *testing.T) *applogger.Logger {
	t.Helper()
	l, err := applogger.New(&applogger.Config{Level: "fatal", Format: "json", Output: "stderr"})
	require.NoError(t, err)
	return l
}

type orchestratorFixture struct {
	orch  *SyncOrchestrator
	src   *fakeSource
	store *fakeStore
	cache *tiercache.TierCache
	pub   *fakePublisher
}

// newFixture pins "now" to Monday 2024-06-10 18:00 UTC, past the cutoff.
func newFixture(t *testing.T, cfg SyncConfig) *orchestratorFixture {
	t.Helper()
	g := newGapAnalyzer(t, 4, "16:00", time.Date(2024, 6, 10, 18, 0, 0, 0, time.UTC))
	src := &fakeSource{}
	store := newFakeStore()
	cache := tiercache.NewTierCache(tiercache.DefaultCapacities(), nil)
	pub := &fakePublisher{}
	retrier := retry.New(retry.Config{
		MaxAttempts: 1,
		BaseDelay:   time.Millisecond,
		MaxDelay:    time.Millisecond,
	})
	if cfg.BaseCurrency == "" {
		cfg.BaseCurrency = "USD"
	}
	orch := NewSyncOrchestrator(src, store, cache, g, retrier, pub, nil, testLogger(t), cfg)
	return &orchestratorFixture{orch: orch, src: src, store: store, cache: cache, pub: pub}
}

func payloadFor(rng models.DateRange, rate float64) map[string]map[string]float64 {
	out := make(map[string]map[string]float64)
	for d := rng.Start; !d.After(rng.End); d = d.AddDays(1) {
		out[d.String()] = map[string]float64{"EUR": rate}
	}
	return out
}

func TestLoadValidation(t *testing.T) {
	fx := newFixture(t, SyncConfig{})

	_, err := fx.orch.Load(context.Background(), "EURO", rng(t, "2024-06-01", "2024-06-07"))
	require.Error(t, err)

	_, err = fx.orch.Load(context.Background(), "EUR", rng(t, "2024-06-07", "2024-06-01"))
	var calcErr *models.DateCalculationError
	require.ErrorAs(t, err, &calcErr)
}

func TestLoadCacheHitSkipsAllTiers(t *testing.T) {
	fx := newFixture(t, SyncConfig{})
	cached := models.Series{
		record(t, "2024-06-03", map[string]float64{"EUR": 0.90}),
		record(t, "2024-06-07", map[string]float64{"EUR": 0.91}),
	}
	fx.cache.Put(tiercache.HistoryKey("EUR"), cached)

	res, err := fx.orch.Load(context.Background(), "eur", rng(t, "2024-06-03", "2024-06-07"))

	require.NoError(t, err)
	require.False(t, res.NewDataFetched)
	require.Equal(t, cached, res.Series)
	require.Equal(t, 0, fx.src.calls)
	require.Empty(t, fx.pub.events)
}

func TestLoadServedFromStoreIsNotAFetch(t *testing.T) {
	fx := newFixture(t, SyncConfig{})
	require.NoError(t, fx.store.SaveHistoricalRates(context.Background(),
		payloadFor(rng(t, "2024-06-03", "2024-06-07"), 0.9)))
	fx.store.saveCalls = 0

	res, err := fx.orch.Load(context.Background(), "EUR", rng(t, "2024-06-03", "2024-06-07"))

	require.NoError(t, err)
	require.False(t, res.NewDataFetched)
	require.Len(t, res.Series, 5)
	require.Equal(t, 0, fx.src.calls)
	require.Empty(t, fx.pub.events)

	// The durable read is now promoted to the in-process tier.
	cached := fx.orch.GetCached("EUR", rng(t, "2024-06-03", "2024-06-07"))
	require.Len(t, cached, 5)
}

func TestLoadFetchesAndPublishes(t *testing.T) {
	fx := newFixture(t, SyncConfig{})
	fx.src.fn = func(from, to models.Day) (map[string]map[string]float64, error) {
		return payloadFor(models.DateRange{Start: from, End: to}, 0.9), nil
	}

	res, err := fx.orch.Load(context.Background(), "EUR", rng(t, "2024-06-03", "2024-06-07"))

	require.NoError(t, err)
	require.True(t, res.NewDataFetched)
	require.Equal(t, []models.DateRange{rng(t, "2024-06-03", "2024-06-07")}, res.FetchedRanges)
	require.Len(t, res.Series, 5)
	require.Equal(t, 1, fx.src.calls)
	require.Equal(t, 1, fx.store.saveCalls)

	require.Len(t, fx.pub.events, 1)
	require.Equal(t, "EUR", fx.pub.events[0].Currency)
	require.Equal(t, []string{"2024-06-03..2024-06-07"}, fx.pub.events[0].FetchedRanges)
}

func TestLoadEmptyPayloadIsNotNewData(t *testing.T) {
	fx := newFixture(t, SyncConfig{})
	fx.src.fn = func(from, to models.Day) (map[string]map[string]float64, error) {
		return map[string]map[string]float64{}, nil
	}

	// Business days with nothing published yet, e.g. a future-dated request.
	res, err := fx.orch.Load(context.Background(), "EUR", rng(t, "2024-06-03", "2024-06-07"))

	require.NoError(t, err)
	require.False(t, res.NewDataFetched)
	require.Empty(t, res.FetchedRanges)
	require.Empty(t, res.Series)
	require.Equal(t, 1, fx.src.calls)
	require.Equal(t, 0, fx.store.saveCalls)
	require.Empty(t, fx.pub.events)
}

func TestLoadPartialSubRangeFailureIsTolerated(t *testing.T) {
	fx := newFixture(t, SyncConfig{})
	// Cache and store both cover 2024-06-01..2024-06-04, leaving a leading
	// gap and a trailing gap in the required range.
	covered := rng(t, "2024-06-01", "2024-06-04")
	require.NoError(t, fx.store.SaveHistoricalRates(context.Background(), payloadFor(covered, 0.9)))
	series, err := fx.store.LoadSeries(context.Background(), "EUR", covered.Start, covered.End)
	require.NoError(t, err)
	fx.cache.Put(tiercache.HistoryKey("EUR"), series)

	fx.src.fn = func(from, to models.Day) (map[string]map[string]float64, error) {
		if from.Before(covered.Start) {
			return nil, &models.APIStatusError{StatusCode: 404}
		}
		return payloadFor(models.DateRange{Start: from, End: to}, 0.95), nil
	}

	res, err := fx.orch.Load(context.Background(), "EUR", rng(t, "2024-05-01", "2024-06-07"))

	require.NoError(t, err)
	require.True(t, res.NewDataFetched)
	require.Equal(t, []models.DateRange{rng(t, "2024-06-05", "2024-06-07")}, res.FetchedRanges)
	// Covered days plus the trailing fetch; the failed leading gap stays absent.
	require.Len(t, res.Series, 7)
	require.Equal(t, "2024-06-01", res.Series.Earliest().String())
	require.Equal(t, "2024-06-07", res.Series.Latest().String())
}

func TestLoadCancellationAborts(t *testing.T) {
	fx := newFixture(t, SyncConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	fx.src.fn = func(from, to models.Day) (map[string]map[string]float64, error) {
		cancel()
		return nil, context.Canceled
	}

	_, err := fx.orch.Load(ctx, "EUR", rng(t, "2024-06-03", "2024-06-07"))
	require.ErrorIs(t, err, context.Canceled)
}

func TestLoadChunksLargeRanges(t *testing.T) {
	fx := newFixture(t, SyncConfig{ChunkDays: 90, MaxRangeDays: 200})
	fx.src.fn = func(from, to models.Day) (map[string]map[string]float64, error) {
		return payloadFor(models.DateRange{Start: from, End: to}, 0.9), nil
	}

	// 366 inclusive days, forcing four 90-ish day windows.
	res, err := fx.orch.Load(context.Background(), "EUR", rng(t, "2023-06-10", "2024-06-09"))

	require.NoError(t, err)
	require.True(t, res.NewDataFetched)
	require.Equal(t, 5, fx.src.calls)
	for _, r := range fx.src.ranges {
		require.LessOrEqual(t, r.Days(), 90)
	}
	require.Len(t, res.Series, 366)
	require.Equal(t, "2023-06-10", res.Series.Earliest().String())
	require.Equal(t, "2024-06-09", res.Series.Latest().String())
}

func TestLoadChunkedStopsBetweenWindows(t *testing.T) {
	fx := newFixture(t, SyncConfig{ChunkDays: 90, MaxRangeDays: 200})
	ctx, cancel := context.WithCancel(context.Background())
	fx.src.fn = func(from, to models.Day) (map[string]map[string]float64, error) {
		cancel()
		return payloadFor(models.DateRange{Start: from, End: to}, 0.9), nil
	}

	_, err := fx.orch.Load(ctx, "EUR", rng(t, "2023-06-10", "2024-06-09"))

	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, fx.src.calls)
}

func TestClearAllCacheResetsRetryState(t *testing.T) {
	fx := newFixture(t, SyncConfig{})
	fx.src.fn = func(from, to models.Day) (map[string]map[string]float64, error) {
		return nil, &models.TransportError{Kind: models.TransportTimeout, Err: errors.New("i/o timeout")}
	}

	// Exhaust the endpoint budget. The failure is tolerated per sub-range,
	// so the load itself reports no new data rather than an error.
	res, err := fx.orch.Load(context.Background(), "EUR", rng(t, "2024-06-03", "2024-06-07"))
	require.NoError(t, err)
	require.False(t, res.NewDataFetched)
	callsAfterExhaustion := fx.src.calls
	require.Equal(t, 2, callsAfterExhaustion) // initial + 1 retry

	// Further loads are refused without touching the network.
	_, err = fx.orch.Load(context.Background(), "EUR", rng(t, "2024-06-03", "2024-06-07"))
	require.NoError(t, err)
	require.Equal(t, callsAfterExhaustion, fx.src.calls)

	fx.orch.ClearAllCache()
	fx.src.fn = func(from, to models.Day) (map[string]map[string]float64, error) {
		return payloadFor(models.DateRange{Start: from, End: to}, 0.9), nil
	}

	res, err = fx.orch.Load(context.Background(), "EUR", rng(t, "2024-06-03", "2024-06-07"))
	require.NoError(t, err)
	require.True(t, res.NewDataFetched)
}

func TestSnapshotFollowsLatestDay(t *testing.T) {
	fx := newFixture(t, SyncConfig{})
	fx.src.fn = func(from, to models.Day) (map[string]map[string]float64, error) {
		return payloadFor(models.DateRange{Start: from, End: to}, 0.9), nil
	}

	// The loaded range ends on "today", so its last record becomes the
	// current snapshot.
	_, err := fx.orch.Load(context.Background(), "EUR", rng(t, "2024-06-05", "2024-06-10"))
	require.NoError(t, err)

	snap := fx.orch.CurrentSnapshot()
	require.Equal(t, []models.RatePoint{{Code: "EUR", Rate: 0.9}}, snap)
}

func TestApplyQuote(t *testing.T) {
	fx := newFixture(t, SyncConfig{})
	fx.cache.Put(tiercache.SnapshotKey(), []models.RatePoint{{Code: "EUR", Rate: 0.9}})

	fx.orch.ApplyQuote("eur", 0.95)
	fx.orch.ApplyQuote("GBP", 0.8)
	fx.orch.ApplyQuote("bad-code", 1.0)

	snap := fx.orch.CurrentSnapshot()
	require.Equal(t, []models.RatePoint{
		{Code: "EUR", Rate: 0.95},
		{Code: "GBP", Rate: 0.8},
	}, snap)
}

func TestSnapshotIsCallerOwned(t *testing.T) {
	fx := newFixture(t, SyncConfig{})
	fx.orch.ApplyQuote("EUR", 0.9)

	// A quote applied after the read must not show up in the earlier slice.
	before := fx.orch.CurrentSnapshot()
	fx.orch.ApplyQuote("EUR", 1.5)
	require.InDelta(t, 0.9, before[0].Rate, 1e-12)

	// And mutating a returned slice must not leak into the cached snapshot.
	before[0].Rate = 42
	after := fx.orch.CurrentSnapshot()
	require.InDelta(t, 1.5, after[0].Rate, 1e-12)
}

func TestSnapshotConcurrentReadersAndQuotes(t *testing.T) {
	fx := newFixture(t, SyncConfig{})
	fx.orch.ApplyQuote("EUR", 1.0)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			fx.orch.ApplyQuote("EUR", float64(i+1))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			for _, p := range fx.orch.CurrentSnapshot() {
				require.NotEmpty(t, p.Code)
			}
		}
	}()
	wg.Wait()
}

func TestGetCachedNeverFetches(t *testing.T) {
	fx := newFixture(t, SyncConfig{})

	got := fx.orch.GetCached("EUR", rng(t, "2024-06-03", "2024-06-07"))
	require.Empty(t, got)
	require.Equal(t, 0, fx.src.calls)
}
