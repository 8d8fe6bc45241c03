//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"github.com/google/wire"

	"synergy-backend/application/ports"
	"synergy-backend/infrastructure/config"
	"synergy-backend/infrastructure/persistence/batch"
)

// SuperSet is the main provider set containing all providers
var SuperSet = wire.NewSet(
	ProvideLogger,
	ProvideMetrics,
	ProvideTracing,
	ProvideStoreDialer,
	ProvideEventPublisher,
	ProvideEventSink,
	ProvideConnectionManager,
	ProvideExecutor,
	ProvideBatchWriter,
	wire.Bind(new(ports.MutationQueue), new(*batch.Writer)),
	ProvideSynergyGraph,
	ProvidePersistLoop,
	ProvideRouter,
	wire.Struct(new(Container), "*"),
)

// InitializeContainer creates a fully wired container
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	wire.Build(SuperSet)
	return nil, nil // Wire will replace this
}
