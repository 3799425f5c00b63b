package repository

import (
	"context"

	"RateSync/internal/domain/models"
)

// RateSource fetches historical rates from the remote API. Responses map
// YYYY-MM-DD date strings to per-currency rates against the base currency.
type RateSource interface {
	FetchHistorical(ctx context.Context, base string, from, to models.Day) (map[string]map[string]float64, error)
}

// RateStore is the durable tier. Writes are atomic per call and idempotent
// on already-present dates.
type RateStore interface {
	SaveHistoricalRates(ctx context.Context, rates map[string]map[string]float64) error
	LoadSeries(ctx context.Context, currency string, from, to models.Day) (models.Series, error)
	LoadAll(ctx context.Context, from, to models.Day) (models.Series, error)
	EarliestStoredDate(ctx context.Context) (*models.Day, error)
	LatestStoredDate(ctx context.Context) (*models.Day, error)
	ClearAll(ctx context.Context) error
	Health(ctx context.Context) error
	Close() error
}

// Publisher announces completed network syncs to downstream consumers.
type Publisher interface {
	PublishSync(ctx context.Context, ev models.SyncEvent) error
	Close() error
}

// Metrics records operational counters for the sync engine.
type Metrics interface {
	RecordCacheHit(class string)
	RecordCacheMiss(class string)
	RecordFetch(result string)
	RecordFetchLatency(seconds float64)
	RecordRetryAttempt(endpoint string)
	RecordTrendRebuild()
}
