package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"RateSync/internal/domain/models"
	tiercache "RateSync/internal/service/cache"
	rediscache "RateSync/pkg/cache"
	applogger "RateSync/pkg/logger"
)

const defaultChartRedisTTL = 6 * time.Hour

// ChartBuilder produces cross-rate chart series from loaded history. Charts
// are derived data with two cache layers: the in-process chart class and an
// optional shared Redis layer so restarted instances skip the rebuild.
type ChartBuilder struct {
	sync  *SyncOrchestrator
	cache *tiercache.TierCache
	redis rediscache.Service
	ttl   time.Duration
	log   *applogger.Logger
}

func NewChartBuilder(sync *SyncOrchestrator, cache *tiercache.TierCache, redis rediscache.Service, ttl time.Duration, log *applogger.Logger) *ChartBuilder {
	if ttl <= 0 {
		ttl = defaultChartRedisTTL
	}
	return &ChartBuilder{sync: sync, cache: cache, redis: redis, ttl: ttl, log: log}
}

// Build returns the base/target cross-rate series over rng, loading history
// through the orchestrator on a cold cache.
func (b *ChartBuilder) Build(ctx context.Context, base, target string, rng models.DateRange) ([]models.ChartPoint, error) {
	baseCode, err := models.NormalizeCode(base)
	if err != nil {
		return nil, err
	}
	targetCode, err := models.NormalizeCode(target)
	if err != nil {
		return nil, err
	}

	key := tiercache.ChartKey(baseCode, targetCode, rng)
	if v, ok := b.cache.Get(key); ok {
		if points, ok := v.([]models.ChartPoint); ok {
			return points, nil
		}
	}
	if points := b.redisGet(ctx, key); points != nil {
		b.cache.Put(key, points)
		return points, nil
	}

	res, err := b.sync.Load(ctx, targetCode, rng)
	if err != nil {
		return nil, err
	}

	points := crossRateSeries(res.Series, baseCode, targetCode)
	b.cache.Put(key, points)
	b.redisSet(ctx, key, points)
	return points, nil
}

// Invalidate drops every cached chart after new data arrives.
func (b *ChartBuilder) Invalidate(ctx context.Context) {
	b.cache.ClearClass(tiercache.ClassChart)
	if b.redis == nil {
		return
	}
	if err := b.redis.DeleteByPattern(ctx, "chart:*"); err != nil {
		b.log.Warn("chart redis invalidation failed", applogger.Error(err))
	}
}

func (b *ChartBuilder) redisGet(ctx context.Context, key tiercache.Key) []models.ChartPoint {
	if b.redis == nil {
		return nil
	}
	var points []models.ChartPoint
	err := b.redis.Get(ctx, redisChartKey(key), &points)
	if err != nil {
		if !errors.Is(err, rediscache.ErrCacheMiss) {
			b.log.Warn("chart redis read failed", applogger.Error(err))
		}
		return nil
	}
	if len(points) == 0 {
		return nil
	}
	return points
}

func (b *ChartBuilder) redisSet(ctx context.Context, key tiercache.Key, points []models.ChartPoint) {
	if b.redis == nil || len(points) == 0 {
		return
	}
	if err := b.redis.Set(ctx, redisChartKey(key), points, b.ttl); err != nil {
		b.log.Warn("chart redis write failed", applogger.Error(err))
	}
}

func redisChartKey(key tiercache.Key) string {
	return fmt.Sprintf("chart:%s", key.ID)
}

// crossRateSeries rebases target rates through the base currency. Days where
// either side is missing are skipped rather than interpolated.
func crossRateSeries(series models.Series, base, target string) []models.ChartPoint {
	points := make([]models.ChartPoint, 0, len(series))
	for _, rec := range series {
		targetRate, ok := rec.Rate(target)
		if !ok {
			continue
		}
		baseRate, ok := rec.Rate(base)
		if !ok {
			continue
		}
		points = append(points, models.ChartPoint{
			Date: rec.Date.String(),
			Rate: ConvertToBase(targetRate, baseRate),
		})
	}
	return points
}
