//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"AutoTrader/pkg/config"
	"AutoTrader/pkg/server"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,
		ProvideValidator,
		ProvidePairRegistry,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideRedisCache,

		// Repositories
		ProvideClickHouseStore,
		ProvideCandleStore,
		ProvideKafkaPublisher,
		ProvideCache,
		ProvideSignalCache,
		ProvideHub,

		// Use cases
		ProvideCandleProcessor,
		ProvideCandlePipeline,
		ProvideCandlesUseCase,
		ProvideSignalService,
		ProvidePromptRenderer,
		ProvideKafkaConsumer,

		// Transport
		ProvideRateLimiter,
		ProvideHandlers,
		ProvideHTTPServer,

		ProvideApp,
	)
	return nil, nil, nil
}
