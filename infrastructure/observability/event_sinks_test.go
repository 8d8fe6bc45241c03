package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"synergy-backend/domain/events"
	"synergy-backend/pkg/observability"
)

func TestMetricsSink_CountsEvents(t *testing.T) {
	collector := observability.NewCollector("test")
	sink := NewMetricsSink(collector)
	ctx := context.Background()
	now := time.Now()

	sink.Emit(ctx, events.NewEdgeAdmitted("a", "b", 0.9, false, now))
	sink.Emit(ctx, events.NewEdgeAdmitted("a", "b", 0.95, true, now))
	sink.Emit(ctx, events.NewEdgeRejected("a", "c", 0.1, "below_threshold", now))
	sink.Emit(ctx, events.NewEdgeEvicted("a", "d", 0.8, "e", now))
	sink.Emit(ctx, events.NewEdgeRemoved("a", "b", events.RemovalExplicit, now))
	sink.Emit(ctx, events.NewBatchFlushed("f1", 2, 150, 10, 10, time.Second, now))
	sink.Emit(ctx, events.NewOperationRetried("apply", 1, time.Millisecond, errors.New("busy"), now))
	sink.Emit(ctx, events.NewOperationExhausted("apply", 3, errors.New("busy"), now))
	sink.Emit(ctx, events.NewConnectionFailed("dynamodb", errors.New("denied"), now))

	assert.Equal(t, 1.0, testutil.ToFloat64(collector.EdgeDecisions.WithLabelValues("created", "")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.EdgeDecisions.WithLabelValues("updated", "")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.EdgeDecisions.WithLabelValues("rejected", "below_threshold")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.EdgesEvicted))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.EdgesRemoved.WithLabelValues(events.RemovalExplicit)))
	assert.Equal(t, 150.0, testutil.ToFloat64(collector.MutationsFlushed.WithLabelValues("succeeded")))
	assert.Equal(t, 10.0, testutil.ToFloat64(collector.MutationsFlushed.WithLabelValues("failed")))
	assert.Equal(t, 10.0, testutil.ToFloat64(collector.PendingMutations))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.OperationRetries.WithLabelValues("apply")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.OperationsExhausted.WithLabelValues("apply")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.ConnectionAttempts.WithLabelValues("failure")))
}

func TestMetricsSink_NilCollector(t *testing.T) {
	sink := NewMetricsSink(nil)
	assert.NotPanics(t, func() {
		sink.Emit(context.Background(), events.NewEdgeEvicted("a", "b", 0.1, "c", time.Now()))
	})
}

func TestLoggingSink_Levels(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	sink := NewLoggingSink(zap.New(core))
	ctx := context.Background()
	now := time.Now()

	sink.Emit(ctx, events.NewOperationExhausted("apply", 3, errors.New("busy"), now))
	sink.Emit(ctx, events.NewBatchFlushed("f1", 1, 5, 1, 1, time.Millisecond, now))
	sink.Emit(ctx, events.NewEdgeAdmitted("a", "b", 0.9, false, now))

	entries := logs.All()
	if assert.Len(t, entries, 3) {
		assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
		assert.Equal(t, events.TypeOperationExhausted, entries[0].Message)
		assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
		assert.Equal(t, zapcore.DebugLevel, entries[2].Level)
		assert.Equal(t, "b", entries[2].ContextMap()["target"])
	}
}
