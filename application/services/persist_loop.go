package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"synergy-backend/application/ports"
)

// Persister flushes queued graph mutations
type Persister interface {
	Persist(ctx context.Context) (ports.FlushResult, error)
}

// PersistLoop flushes the graph on a fixed interval and once more when stopped
type PersistLoop struct {
	persister    Persister
	interval     time.Duration
	finalTimeout time.Duration
	logger       *zap.Logger
}

// NewPersistLoop creates a PersistLoop
func NewPersistLoop(persister Persister, interval, finalTimeout time.Duration, logger *zap.Logger) *PersistLoop {
	if logger == nil {
		logger = zap.NewNop()
	}
	if finalTimeout <= 0 {
		finalTimeout = 10 * time.Second
	}
	return &PersistLoop{
		persister:    persister,
		interval:     interval,
		finalTimeout: finalTimeout,
		logger:       logger.Named("persist_loop"),
	}
}

// Run blocks until ctx is done, flushing every interval. The final flush runs
// on a fresh context bounded by the final timeout.
func (l *PersistLoop) Run(ctx context.Context) {
	l.logger.Info("Starting persist loop", zap.Duration("interval", l.interval))

	if l.interval > 0 {
		ticker := time.NewTicker(l.interval)
		defer ticker.Stop()

	loop:
		for {
			select {
			case <-ctx.Done():
				break loop
			case <-ticker.C:
				l.persist(ctx)
			}
		}
	} else {
		<-ctx.Done()
	}

	finalCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.finalTimeout)
	defer cancel()
	l.persist(finalCtx)
	l.logger.Info("Persist loop stopped")
}

func (l *PersistLoop) persist(ctx context.Context) {
	result, err := l.persister.Persist(ctx)
	if err != nil {
		l.logger.Warn("Persist failed, mutations stay queued",
			zap.String("flush_id", result.FlushID),
			zap.Int("failed", result.Failed),
			zap.Int("pending", result.Pending),
			zap.Error(err))
		return
	}
	if result.Groups > 0 {
		l.logger.Debug("Persisted mutations",
			zap.String("flush_id", result.FlushID),
			zap.Int("succeeded", result.Succeeded))
	}
}
