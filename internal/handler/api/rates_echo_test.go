package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"RateSync/internal/domain/models"
	tiercache "RateSync/internal/service/cache"
	"RateSync/internal/service/retry"
	"RateSync/internal/usecase"
	applogger "RateSync/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
)

type fakeSource struct{}

func (f *fakeSource) FetchHistorical(ctx context.Context, base string, from, to models.Day) (map[string]map[string]float64, error) {
	return map[string]map[string]float64{}, nil
}

// fakeStore is a minimal durable tier that counts truncations.
type fakeStore struct {
	data       map[string]map[string]float64
	clearCalls int
}

func (f *fakeStore) SaveHistoricalRates(ctx context.Context, rates map[string]map[string]float64) error {
	for date, perCurrency := range rates {
		f.data[date] = perCurrency
	}
	return nil
}

func (f *fakeStore) LoadSeries(ctx context.Context, currency string, from, to models.Day) (models.Series, error) {
	return nil, nil
}

func (f *fakeStore) LoadAll(ctx context.Context, from, to models.Day) (models.Series, error) {
	return nil, nil
}

func (f *fakeStore) EarliestStoredDate(ctx context.Context) (*models.Day, error) { return nil, nil }
func (f *fakeStore) LatestStoredDate(ctx context.Context) (*models.Day, error) { return nil, nil }

func (f *fakeStore) ClearAll(ctx context.Context) error {
	f.clearCalls++
	f.data = make(map[string]map[string]float64)
	return nil
}

func (f *fakeStore) Health(ctx context.Context) error { return nil }
func (f *fakeStore) Close() error                     { return nil }

func newTestHandler(t *testing.T, store *fakeStore) (*RatesEchoHandler, *echo.Echo) {
	t.Helper()
	lgr, err := applogger.New(&applogger.Config{Level: "fatal", Format: "json", Output: "stderr"})
	require.NoError(t, err)
	gaps, err := usecase.NewGapAnalyzer(4, "16:00", time.UTC)
	require.NoError(t, err)
	cache := tiercache.NewTierCache(tiercache.DefaultCapacities(), nil)
	retrier := retry.New(retry.Config{
		MaxAttempts: 1,
		BaseDelay:   time.Millisecond,
		MaxDelay:    time.Millisecond,
	})
	orch := usecase.NewSyncOrchestrator(&fakeSource{}, store, cache, gaps, retrier, nil, nil, lgr, usecase.SyncConfig{BaseCurrency: "USD"})
	trends := usecase.NewTrendRecalculator(store, cache, gaps, nil, lgr)
	charts := usecase.NewChartBuilder(orch, cache, nil, 0, lgr)
	h := NewRatesEchoHandler(lgr, orch, trends, charts, store)
	e := echo.New()
	h.RegisterRoutes(e)
	return h, e
}

func TestClearCacheLeavesStoreIntact(t *testing.T) {
	store := &fakeStore{data: map[string]map[string]float64{
		"2024-06-03": {"EUR": 0.9},
	}}
	_, e := newTestHandler(t, store)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/cache", nil))

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, 0, store.clearCalls)
	require.Len(t, store.data, 1)
}

func TestPurgeStoreTruncates(t *testing.T) {
	store := &fakeStore{data: map[string]map[string]float64{
		"2024-06-03": {"EUR": 0.9},
	}}
	_, e := newTestHandler(t, store)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/admin/store", nil))

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, 1, store.clearCalls)
	require.Empty(t, store.data)
}
