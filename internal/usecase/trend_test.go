package usecase

import (
	"context"
	"testing"
	"time"

	"RateSync/internal/domain/models"
	tiercache "RateSync/internal/service/cache"

	"github.com/stretchr/testify/require"
)

type trendFixture struct {
	trends *TrendRecalculator
	store  *fakeStore
	cache  *tiercache.TierCache
}

// newTrendFixture pins "now" to Monday 2024-06-10 18:00 UTC, so the trend
// window is 2024-06-03 through 2024-06-10.
func newTrendFixture(t *testing.T) *trendFixture {
	t.Helper()
	g := newGapAnalyzer(t, 4, "16:00", time.Date(2024, 6, 10, 18, 0, 0, 0, time.UTC))
	store := newFakeStore()
	cache := tiercache.NewTierCache(tiercache.DefaultCapacities(), nil)
	return &trendFixture{
		trends: NewTrendRecalculator(store, cache, g, nil, testLogger(t)),
		store:  store,
		cache:  cache,
	}
}

func TestTrendWindow(t *testing.T) {
	fx := newTrendFixture(t)
	w := fx.trends.Window()
	require.Equal(t, "2024-06-03", w.Start.String())
	require.Equal(t, "2024-06-10", w.End.String())
}

func TestRecalculate(t *testing.T) {
	fx := newTrendFixture(t)
	require.NoError(t, fx.store.SaveHistoricalRates(context.Background(), map[string]map[string]float64{
		"2024-06-03": {"EUR": 0.90, "GBP": 0.80, "JPY": 150.0},
		"2024-06-05": {"EUR": 0.92, "GBP": 0.80},
		"2024-06-07": {"EUR": 0.99, "GBP": 0.84},
		// Outside the window, must not contribute samples.
		"2024-05-01": {"EUR": 2.0, "CHF": 1.0},
	}))

	require.NoError(t, fx.trends.Recalculate(context.Background()))

	trends := fx.trends.Cached()
	require.Len(t, trends, 2) // JPY has one sample, CHF none in window

	require.Equal(t, "EUR", trends[0].Code)
	require.InDelta(t, 10.0, trends[0].WeeklyChangePct, 1e-9)
	require.Equal(t, []float64{0.90, 0.92, 0.99}, trends[0].Samples)

	require.Equal(t, "GBP", trends[1].Code)
	require.InDelta(t, 5.0, trends[1].WeeklyChangePct, 1e-9)
}

func TestRecalculateReplacesWholesale(t *testing.T) {
	fx := newTrendFixture(t)
	fx.cache.Put(tiercache.TrendKey(), []models.TrendRecord{
		{Code: "OLD", WeeklyChangePct: 99, Samples: []float64{1, 2}},
	})
	require.NoError(t, fx.store.SaveHistoricalRates(context.Background(), map[string]map[string]float64{
		"2024-06-03": {"EUR": 1.0},
		"2024-06-07": {"EUR": 1.1},
	}))

	require.NoError(t, fx.trends.Recalculate(context.Background()))

	trends := fx.trends.Cached()
	require.Len(t, trends, 1)
	require.Equal(t, "EUR", trends[0].Code)
}

func TestMaybeRecalculate(t *testing.T) {
	t.Run("old backfill leaves cached trends alone", func(t *testing.T) {
		fx := newTrendFixture(t)
		fx.cache.Put(tiercache.TrendKey(), []models.TrendRecord{{Code: "EUR", Samples: []float64{1, 2}}})

		err := fx.trends.MaybeRecalculate(context.Background(), []models.DateRange{
			rng(t, "2023-01-01", "2023-06-30"),
		})

		require.NoError(t, err)
		require.Equal(t, 0, fx.store.loadAllCalls)
	})

	t.Run("overlap with the window rebuilds", func(t *testing.T) {
		fx := newTrendFixture(t)
		fx.cache.Put(tiercache.TrendKey(), []models.TrendRecord{{Code: "EUR", Samples: []float64{1, 2}}})

		err := fx.trends.MaybeRecalculate(context.Background(), []models.DateRange{
			rng(t, "2024-06-05", "2024-06-07"),
		})

		require.NoError(t, err)
		require.Equal(t, 1, fx.store.loadAllCalls)
	})

	t.Run("no overlap does no work even on a cold cache", func(t *testing.T) {
		fx := newTrendFixture(t)

		err := fx.trends.MaybeRecalculate(context.Background(), nil)

		require.NoError(t, err)
		require.Equal(t, 0, fx.store.loadAllCalls)
		require.Nil(t, fx.trends.Cached())
	})

	t.Run("overlap rebuilds a cold cache", func(t *testing.T) {
		fx := newTrendFixture(t)

		err := fx.trends.MaybeRecalculate(context.Background(), []models.DateRange{
			rng(t, "2024-06-09", "2024-06-10"),
		})

		require.NoError(t, err)
		require.Equal(t, 1, fx.store.loadAllCalls)
	})
}

func TestCachedWithoutRebuild(t *testing.T) {
	fx := newTrendFixture(t)
	require.Nil(t, fx.trends.Cached())
}
