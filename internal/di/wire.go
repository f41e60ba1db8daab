//go:build wireinject
// +build wireinject

package di

import (
	"AlertFuse/internal/service/dlq"
	"AlertFuse/pkg/config"
	"AlertFuse/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideRedisClient,
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,

		// Repositories
		ProvidePostStore,
		ProvideFusedStore,
		ProvidePublisher,
		ProvideDomainPublisher,
		ProvideAlertPublisher,
		ProvideHourlyMetrics,
		ProvideWatermarks,

		// Coordination and reliability services
		ProvideLockService,
		ProvideIdempotency,
		ProvideJobEnqueuer,
		ProvideReplayRouter,
		ProvideDLQManager,
		ProvideRateLimiter,
		ProvideCache,
		ProvideSanitizer,
		ProvideEnricher,

		// Sources
		ProvideMarketSource,
		ProvideRegistry,

		// Use cases
		ProvideCollector,
		ProvideFusion,
		ProvideEventsHandler,
		ProvideConsumerHandler,

		// Triggers
		ProvideJobQueue,
		ProvideQueueJobs,
		ProvideHTTPHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}

// InitializeDLQManager wires only what the replay command needs. The
// cleanup closes the Redis client and Kafka producer.
func InitializeDLQManager(cfg *config.Config) (*dlq.Manager, func(), error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,
		ProvideRedisClient,
		ProvideKafkaProducer,
		ProvidePublisher,
		ProvideJobEnqueuer,
		ProvideReplayRouter,
		ProvideHourlyMetrics,
		ProvideDLQManager,
	)
	return nil, nil, nil
}
