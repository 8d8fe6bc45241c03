package observability

import (
	"context"
	"time"

	"go.uber.org/zap"

	"synergy-backend/application/ports"
	pkgerrors "synergy-backend/pkg/errors"
	"synergy-backend/pkg/observability"
)

// MetricsExecutor decorates a ports.Executor with per-operation latency and
// result metrics. Calls slower than SlowThreshold are logged.
type MetricsExecutor struct {
	inner         ports.Executor
	metrics       *observability.Collector
	logger        *zap.Logger
	slowThreshold time.Duration
}

// NewMetricsExecutor wraps inner. A nil collector disables metrics.
func NewMetricsExecutor(inner ports.Executor, metrics *observability.Collector, slowThreshold time.Duration, logger *zap.Logger) *MetricsExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MetricsExecutor{
		inner:         inner,
		metrics:       metrics,
		logger:        logger.Named("executor"),
		slowThreshold: slowThreshold,
	}
}

// Execute implements ports.Executor
func (e *MetricsExecutor) Execute(ctx context.Context, name string, op ports.Operation) error {
	start := time.Now()
	err := e.inner.Execute(ctx, name, op)
	elapsed := time.Since(start)

	if e.metrics != nil {
		e.metrics.OperationAttempts.WithLabelValues(name, resultLabel(err)).Inc()
		e.metrics.OperationDuration.WithLabelValues(name).Observe(elapsed.Seconds())
	}
	if e.slowThreshold > 0 && elapsed > e.slowThreshold {
		e.logger.Warn("Slow store operation",
			zap.String("operation", name),
			zap.Duration("duration", elapsed),
			zap.Error(err))
	}
	return err
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case pkgerrors.IsConnectionInit(err):
		return "connection_failed"
	case pkgerrors.IsOperationExhausted(err):
		return "exhausted"
	default:
		return "failure"
	}
}

var _ ports.Executor = (*MetricsExecutor)(nil)
