package di

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"synergy-backend/application/services"
	"synergy-backend/infrastructure/config"
	"synergy-backend/infrastructure/messaging/eventbridge"
	"synergy-backend/infrastructure/persistence/batch"
	"synergy-backend/infrastructure/persistence/connection"
	"synergy-backend/interfaces/http/rest"
	"synergy-backend/pkg/observability"
)

// Container holds all application dependencies
type Container struct {
	Config      *config.Config
	Logger      *zap.Logger
	Metrics     *observability.Collector
	Tracing     *observability.TracerProvider
	Publisher   *eventbridge.Publisher
	Connection  *connection.Manager
	Writer      *batch.Writer
	Graph       *services.SynergyGraph
	PersistLoop *services.PersistLoop
	Router      *rest.Router
}

// Start acquires the store handle and optionally hydrates the graph.
// A store that cannot be reached fails startup.
func (c *Container) Start(ctx context.Context) error {
	if _, err := c.Connection.Acquire(ctx); err != nil {
		return err
	}
	if !c.Config.HydrateOnStart {
		return nil
	}
	loaded, err := c.Graph.Load(ctx)
	if err != nil {
		return err
	}
	c.Logger.Info("Graph hydrated", zap.Int("edges", loaded))
	return nil
}

// Shutdown flushes what is still queued and releases every resource. The
// persist loop, if it was running, must have stopped first.
func (c *Container) Shutdown(ctx context.Context) error {
	var errs []error

	if c.Writer.Pending() > 0 {
		if _, err := c.Graph.Persist(ctx); err != nil {
			c.Logger.Error("Final persist failed", zap.Int("pending", c.Writer.Pending()), zap.Error(err))
			errs = append(errs, err)
		}
	}
	if c.Publisher != nil {
		if err := c.Publisher.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := c.Connection.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Tracing.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
