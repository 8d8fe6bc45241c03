// Package observability adapts domain events to logs and metrics.
package observability

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"synergy-backend/application/ports"
	"synergy-backend/domain/events"
	"synergy-backend/pkg/observability"
)

// LoggingSink writes every event as a structured log line
type LoggingSink struct {
	logger *zap.Logger
}

// NewLoggingSink creates a LoggingSink
func NewLoggingSink(logger *zap.Logger) *LoggingSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoggingSink{logger: logger.Named("events")}
}

// Emit implements ports.EventSink
func (s *LoggingSink) Emit(_ context.Context, event events.DomainEvent) {
	fields := []zap.Field{
		zap.String("event_id", event.GetEventID()),
		zap.String("aggregate_id", event.GetAggregateID()),
	}
	level := zapcore.DebugLevel

	switch e := event.(type) {
	case events.EdgeAdmitted:
		fields = append(fields, zap.String("target", e.Target), zap.Float64("score", e.Score), zap.Bool("updated", e.Updated))
	case events.EdgeRejected:
		fields = append(fields, zap.String("target", e.Target), zap.Float64("score", e.Score), zap.String("reason", e.Reason))
	case events.EdgeEvicted:
		fields = append(fields, zap.String("target", e.Target), zap.Float64("score", e.Score), zap.String("evicted_by", e.EvictedBy))
		level = zapcore.InfoLevel
	case events.EdgeRemoved:
		fields = append(fields, zap.String("target", e.Target), zap.String("cause", e.Cause))
	case events.DomainRemoved:
		fields = append(fields, zap.Int("edges_removed", e.EdgesRemoved))
		level = zapcore.InfoLevel
	case events.BatchFlushed:
		fields = append(fields,
			zap.Int("groups", e.Groups),
			zap.Int("succeeded", e.Succeeded),
			zap.Int("failed", e.Failed),
			zap.Int("pending", e.Pending),
			zap.Duration("duration", e.Duration),
		)
		level = zapcore.InfoLevel
		if e.Failed > 0 {
			level = zapcore.WarnLevel
		}
	case events.ConnectionEstablished:
		fields = append(fields, zap.Duration("duration", e.Duration))
		level = zapcore.InfoLevel
	case events.ConnectionFailed:
		fields = append(fields, zap.String("error", e.Error))
		level = zapcore.ErrorLevel
	case events.OperationRetried:
		fields = append(fields, zap.Int("attempt", e.Attempt), zap.Duration("delay", e.Delay), zap.String("error", e.Error))
		level = zapcore.WarnLevel
	case events.OperationExhausted:
		fields = append(fields, zap.Int("attempts", e.Attempts), zap.String("error", e.Error))
		level = zapcore.ErrorLevel
	}

	if ce := s.logger.Check(level, event.GetEventType()); ce != nil {
		ce.Write(fields...)
	}
}

// MetricsSink turns events into Prometheus counters
type MetricsSink struct {
	metrics *observability.Collector
}

// NewMetricsSink creates a MetricsSink
func NewMetricsSink(metrics *observability.Collector) *MetricsSink {
	return &MetricsSink{metrics: metrics}
}

// Emit implements ports.EventSink
func (s *MetricsSink) Emit(_ context.Context, event events.DomainEvent) {
	m := s.metrics
	if m == nil {
		return
	}

	switch e := event.(type) {
	case events.EdgeAdmitted:
		outcome := "created"
		if e.Updated {
			outcome = "updated"
		}
		m.EdgeDecisions.WithLabelValues(outcome, "").Inc()
	case events.EdgeRejected:
		m.EdgeDecisions.WithLabelValues("rejected", e.Reason).Inc()
	case events.EdgeEvicted:
		m.EdgesEvicted.Inc()
	case events.EdgeRemoved:
		m.EdgesRemoved.WithLabelValues(e.Cause).Inc()
	case events.BatchFlushed:
		m.MutationsFlushed.WithLabelValues("succeeded").Add(float64(e.Succeeded))
		m.MutationsFlushed.WithLabelValues("failed").Add(float64(e.Failed))
		m.FlushDuration.Observe(e.Duration.Seconds())
		m.PendingMutations.Set(float64(e.Pending))
	case events.ConnectionEstablished:
		m.ConnectionAttempts.WithLabelValues("success").Inc()
	case events.ConnectionFailed:
		m.ConnectionAttempts.WithLabelValues("failure").Inc()
	case events.OperationRetried:
		m.OperationRetries.WithLabelValues(e.Operation).Inc()
	case events.OperationExhausted:
		m.OperationsExhausted.WithLabelValues(e.Operation).Inc()
	}
}

var (
	_ ports.EventSink = (*LoggingSink)(nil)
	_ ports.EventSink = (*MetricsSink)(nil)
)
