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

	"synergy-backend/application/ports"
	pkgerrors "synergy-backend/pkg/errors"
	"synergy-backend/pkg/observability"
)

type stubExecutor struct {
	err   error
	delay time.Duration
}

func (s stubExecutor) Execute(ctx context.Context, _ string, _ ports.Operation) error {
	time.Sleep(s.delay)
	return s.err
}

func TestMetricsExecutor_RecordsResults(t *testing.T) {
	collector := observability.NewCollector("test")
	ctx := context.Background()
	noop := func(context.Context, ports.DocumentStore) error { return nil }

	_ = NewMetricsExecutor(stubExecutor{}, collector, 0, nil).Execute(ctx, "apply", noop)
	_ = NewMetricsExecutor(stubExecutor{err: errors.New("conditional check failed")}, collector, 0, nil).Execute(ctx, "apply", noop)
	_ = NewMetricsExecutor(stubExecutor{err: pkgerrors.NewOperationExhaustedError("apply", 3, errors.New("busy"))}, collector, 0, nil).Execute(ctx, "apply", noop)
	_ = NewMetricsExecutor(stubExecutor{err: pkgerrors.NewConnectionInitError(errors.New("denied"))}, collector, 0, nil).Execute(ctx, "load", noop)

	assert.Equal(t, 1.0, testutil.ToFloat64(collector.OperationAttempts.WithLabelValues("apply", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.OperationAttempts.WithLabelValues("apply", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.OperationAttempts.WithLabelValues("apply", "exhausted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.OperationAttempts.WithLabelValues("load", "connection_failed")))
	assert.Equal(t, 2, testutil.CollectAndCount(collector.OperationDuration))
}

func TestMetricsExecutor_PassesErrorThrough(t *testing.T) {
	boom := errors.New("boom")
	err := NewMetricsExecutor(stubExecutor{err: boom}, nil, 0, nil).Execute(context.Background(), "apply", nil)
	assert.ErrorIs(t, err, boom)
}

func TestMetricsExecutor_LogsSlowOperations(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	executor := NewMetricsExecutor(stubExecutor{delay: 5 * time.Millisecond}, nil, time.Millisecond, zap.New(core))

	assert.NoError(t, executor.Execute(context.Background(), "load_edges", nil))
	assert.Equal(t, 1, logs.FilterMessage("Slow store operation").Len())
}
