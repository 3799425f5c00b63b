//go:build wireinject
// +build wireinject

package di

import (
	"RateSync/pkg/config"
	"RateSync/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideRedisCache,

		// Repositories
		ProvideRateStore,
		ProvideSyncPublisher,
		ProvideRateSource,

		// Core services
		ProvideTierCache,
		ProvideGapAnalyzer,
		ProvideRetryCoordinator,

		// Use cases
		ProvideSyncOrchestrator,
		ProvideTrendRecalculator,
		ProvideChartBuilder,
		ProvideRefresher,
		ProvideQuoteCollector,
		ProvideJobQueue,

		// HTTP and application server
		ProvideRatesHandler,
		ProvideApp,
	)
	return &server.App{}, nil
}
