package di

import (
	"context"
	"fmt"
	"time"

	"RateSync/internal/domain/repository"
	"RateSync/internal/handler/api"
	mid "RateSync/internal/middleware"
	internalrepo "RateSync/internal/repository"
	tiercache "RateSync/internal/service/cache"
	"RateSync/internal/service/frankfurter"
	"RateSync/internal/service/quotes"
	"RateSync/internal/service/retry"
	"RateSync/internal/usecase"
	rediscache "RateSync/pkg/cache"
	pkgch "RateSync/pkg/clickhouse"
	"RateSync/pkg/config"
	pkgkafka "RateSync/pkg/kafka"
	applogger "RateSync/pkg/logger"
	"RateSync/pkg/metrics"
	"RateSync/pkg/queue"
	"RateSync/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	format := "json"
	if cfg.Environment == "development" {
		format = "console"
	}
	return applogger.New(&applogger.Config{Level: "info", Format: format, Output: "stdout"})
}

// ProvideClickHouseClient creates a ClickHouse client with the rates schema.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.InitSchema(ctx, internalrepo.Schema()); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

// ProvideRateStore creates the durable rate store.
func ProvideRateStore(chClient *pkgch.Client, l *applogger.Logger) repository.RateStore {
	store := internalrepo.NewCHRateStore(chClient)
	store.SetLogger(l)
	return store
}

// ProvideKafkaProducer creates a Kafka producer, or nil when disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}

	return producer, nil
}

// ProvideSyncPublisher creates the sync event publisher, or nil without Kafka.
func ProvideSyncPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.Publisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.Topic)
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideTierCache creates the in-process cache tier.
func ProvideTierCache(cfg *config.Config, m repository.Metrics) *tiercache.TierCache {
	caps := tiercache.DefaultCapacities()
	if cfg.Cache.SnapshotCap > 0 {
		caps.Snapshot = cfg.Cache.SnapshotCap
	}
	if cfg.Cache.HistoryCap > 0 {
		caps.History = cfg.Cache.HistoryCap
	}
	if cfg.Cache.TrendCap > 0 {
		caps.Trend = cfg.Cache.TrendCap
	}
	if cfg.Cache.ChartCap > 0 {
		caps.Chart = cfg.Cache.ChartCap
	}
	return tiercache.NewTierCache(caps, m)
}

// ProvideGapAnalyzer creates the gap analyzer in the configured timezone.
func ProvideGapAnalyzer(cfg *config.Config) (*usecase.GapAnalyzer, error) {
	tz := cfg.Sync.Timezone
	if tz == "" {
		tz = "UTC"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("sync timezone: %w", err)
	}
	return usecase.NewGapAnalyzer(cfg.Sync.GapTolerance, cfg.Sync.PublishCutoff, loc)
}

// ProvideRetryCoordinator creates the per-endpoint retry coordinator.
func ProvideRetryCoordinator(cfg *config.Config, m repository.Metrics) *retry.Coordinator {
	c := retry.New(retry.Config{
		MaxAttempts:  cfg.Retry.MaxAttempts,
		BaseDelay:    cfg.Retry.BaseDelay,
		MaxDelay:     cfg.Retry.MaxDelay,
		MaxEndpoints: cfg.Retry.MaxEndpoints,
	})
	c.SetAttemptObserver(m.RecordRetryAttempt)
	return c
}

// ProvideRateSource creates the remote rates API client.
func ProvideRateSource(cfg *config.Config) repository.RateSource {
	return frankfurter.New(cfg.RatesAPI.BaseURL, cfg.RatesAPI.Timeout)
}

// ProvideRedisCache creates the shared Redis cache, or nil when disabled.
func ProvideRedisCache(cfg *config.Config) (*rediscache.RedisCache, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	prefix := cfg.Redis.Prefix
	if prefix == "" {
		prefix = "ratesync"
	}
	return rediscache.NewRedisCache(
		rediscache.WithRedisHost(cfg.Redis.Host),
		rediscache.WithRedisPort(cfg.Redis.Port),
		rediscache.WithRedisPassword(cfg.Redis.Password),
		rediscache.WithRedisDB(cfg.Redis.DB),
		rediscache.WithRedisPrefix(prefix),
	)
}

// ProvideSyncOrchestrator creates the three-tier sync orchestrator.
func ProvideSyncOrchestrator(
	source repository.RateSource,
	store repository.RateStore,
	cache *tiercache.TierCache,
	gaps *usecase.GapAnalyzer,
	retrier *retry.Coordinator,
	pub repository.Publisher,
	m repository.Metrics,
	l *applogger.Logger,
	cfg *config.Config,
) *usecase.SyncOrchestrator {
	return usecase.NewSyncOrchestrator(source, store, cache, gaps, retrier, pub, m, l, usecase.SyncConfig{
		BaseCurrency: cfg.Sync.BaseCurrency,
		ChunkDays:    cfg.Sync.ChunkDays,
		MaxRangeDays: cfg.Sync.MaxRangeDays,
	})
}

// ProvideTrendRecalculator creates the trend maintainer.
func ProvideTrendRecalculator(
	store repository.RateStore,
	cache *tiercache.TierCache,
	gaps *usecase.GapAnalyzer,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.TrendRecalculator {
	return usecase.NewTrendRecalculator(store, cache, gaps, m, l)
}

// ProvideChartBuilder creates the chart builder with optional Redis layer.
func ProvideChartBuilder(
	sync *usecase.SyncOrchestrator,
	cache *tiercache.TierCache,
	redis *rediscache.RedisCache,
	cfg *config.Config,
	l *applogger.Logger,
) *usecase.ChartBuilder {
	var svc rediscache.Service
	if redis != nil {
		svc = redis
	}
	return usecase.NewChartBuilder(sync, cache, svc, cfg.Redis.ChartTTL, l)
}

// ProvideRefresher creates the scheduled refresher.
func ProvideRefresher(
	sync *usecase.SyncOrchestrator,
	trends *usecase.TrendRecalculator,
	charts *usecase.ChartBuilder,
	l *applogger.Logger,
	cfg *config.Config,
) *usecase.Refresher {
	return usecase.NewRefresher(sync, trends, charts, l,
		cfg.Sync.Currencies, cfg.Sync.RefreshInterval, 0)
}

// ProvideQuoteCollector creates the live quote collector, or nil when
// quotes are disabled.
func ProvideQuoteCollector(sync *usecase.SyncOrchestrator, cfg *config.Config) *usecase.QuoteCollector {
	if !cfg.Quotes.Enabled {
		return nil
	}
	stream := quotes.New(
		cfg.Quotes.WebSocketURL,
		cfg.Sync.Currencies,
		cfg.Quotes.ReconnectDelay,
		cfg.Quotes.PingInterval,
	)
	pipe := mid.NewQuotePipeline(usecase.NewSnapshotUpdater(sync),
		mid.WithMaxRPS(cfg.Quotes.MaxRPS),
		mid.WithBufferSize(cfg.Quotes.BufferSize),
	)
	return usecase.NewQuoteCollector(stream, pipe)
}

// ProvideJobQueue creates the Redis-backed job queue, or nil without Redis.
func ProvideJobQueue(
	redis *rediscache.RedisCache,
	sync *usecase.SyncOrchestrator,
	l *applogger.Logger,
) *queue.RedisQueue {
	if redis == nil {
		return nil
	}
	q := queue.NewRedisQueue(l, &queue.QueueConfig{
		Workers:    1,
		RetryLimit: 2,
		RetryDelay: 30 * time.Second,
	}, redis.Client(), queue.ModeProducerConsumer)
	q.RegisterJob(usecase.NewBackfillJob(sync, l))
	return q
}

// ProvideRatesHandler creates the HTTP handler.
func ProvideRatesHandler(
	l *applogger.Logger,
	sync *usecase.SyncOrchestrator,
	trends *usecase.TrendRecalculator,
	charts *usecase.ChartBuilder,
	store repository.RateStore,
	jobs *queue.RedisQueue,
) *api.RatesEchoHandler {
	h := api.NewRatesEchoHandler(l, sync, trends, charts, store)
	if jobs != nil {
		h.SetJobQueue(jobs)
	}
	return h
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	store repository.RateStore,
	pub repository.Publisher,
	producer *pkgkafka.Producer,
	refresher *usecase.Refresher,
	handler *api.RatesEchoHandler,
	collector *usecase.QuoteCollector,
	jobs *queue.RedisQueue,
) *server.App {
	// Error logs aggregate into Kafka when a producer is available.
	if producer != nil {
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   30 * time.Second,
			CountThreshold: 100,
			Topic:          "logs.aggregated",
			Publisher:      &kafkaLogPublisher{producer: producer},
		})
	}

	app := server.New(cfg, l, store, pub, refresher, handler)
	if collector != nil {
		app.SetQuoteCollector(collector)
	}
	if jobs != nil {
		app.SetJobQueue(jobs)
	}
	return app
}

// kafkaLogPublisher adapts the Kafka producer to the log collector.
type kafkaLogPublisher struct {
	producer *pkgkafka.Producer
}

func (p *kafkaLogPublisher) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return p.producer.Publish(ctx, topic, nil, payload)
}
