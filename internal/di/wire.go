//go:build wireinject
// +build wireinject

package di

import (
	"TickFuse/pkg/config"
	"TickFuse/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideParamsStore,
		ProvideMetrics,
		ProvideRedisCache,
		ProvideLogQueue,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,

		// Repositories
		ProvideClickHouseStorage,
		ProvideStorage,
		ProvideBarStore,
		ProvidePublisher,
		ProvideKafkaConsumer,
		ProvideMirrorHandler,

		// Collaborator clients
		ProvideRecognizer,
		ProvideQuoteFetcher,
		ProvideNormalizer,

		// Use cases
		ProvideEngine,

		// Presentation
		ProvideHTTPHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
