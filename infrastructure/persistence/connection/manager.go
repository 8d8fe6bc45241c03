// Package connection owns the single shared handle to the remote document store
// and wraps every remote call in retry, backoff, an optional breaker and a deadline.
package connection

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"synergy-backend/application/ports"
	"synergy-backend/domain/events"
	pkgerrors "synergy-backend/pkg/errors"
	"synergy-backend/pkg/observability"
	"synergy-backend/pkg/retry"
)

const acquireKey = "store"

// Config configures a Manager.
type Config struct {
	StoreName        string        // label used in events and spans
	Policy           retry.Policy  // per-operation retry policy
	OperationTimeout time.Duration // overall deadline for one Execute call, 0 for none
	InitTimeout      time.Duration // deadline for creating the handle
	BreakerThreshold uint32        // consecutive transient failures that open the breaker, 0 disables it
	BreakerCooldown  time.Duration // time the breaker stays open
}

// DefaultConfig returns the default manager configuration
func DefaultConfig() Config {
	return Config{
		StoreName:        "store",
		Policy:           retry.DefaultPolicy(),
		OperationTimeout: 10 * time.Second,
		InitTimeout:      5 * time.Second,
		BreakerThreshold: 5,
		BreakerCooldown:  30 * time.Second,
	}
}

// Manager creates the store handle lazily, shares it between all callers and
// executes operations against it. Health is published as an immutable snapshot
// so readers never wait for in-flight operations.
type Manager struct {
	dialer   ports.StoreDialer
	config   Config
	classify func(error) bool
	sink     ports.EventSink
	logger   *zap.Logger
	tracer   trace.Tracer
	breaker  *gobreaker.CircuitBreaker
	now      func() time.Time

	dialGroup singleflight.Group

	mu    sync.RWMutex
	store ports.DocumentStore

	healthMu sync.Mutex // serialises snapshot writers
	health   atomic.Pointer[ports.ConnectionHealth]
}

// NewManager creates a Manager. Nothing is dialed until the first Acquire.
func NewManager(dialer ports.StoreDialer, config Config, sink ports.EventSink, logger *zap.Logger) *Manager {
	if sink == nil {
		sink = ports.NopEventSink{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.StoreName == "" {
		config.StoreName = "store"
	}

	m := &Manager{
		dialer:   dialer,
		config:   config,
		classify: retry.IsTransient,
		sink:     sink,
		logger:   logger.Named("connection"),
		tracer:   observability.Tracer("synergy-backend/connection"),
		now:      time.Now,
	}
	m.health.Store(&ports.ConnectionHealth{})

	if config.BreakerThreshold > 0 {
		m.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        config.StoreName,
			MaxRequests: 1,
			Timeout:     config.BreakerCooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= config.BreakerThreshold
			},
			// Permanent errors say nothing about backend availability
			IsSuccessful: func(err error) bool {
				return err == nil || !m.classify(err)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				m.logger.Warn("Circuit breaker state changed",
					zap.String("breaker", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()))
				m.updateHealth(func(h *ports.ConnectionHealth) {
					h.BreakerState = to.String()
				})
			},
		})
		m.updateHealth(func(h *ports.ConnectionHealth) {
			h.BreakerState = gobreaker.StateClosed.String()
		})
	}

	return m
}

// Acquire returns the shared handle, creating it on first use. Concurrent
// callers during creation share one attempt and see the same handle or the
// same ConnectionInitError.
func (m *Manager) Acquire(ctx context.Context) (ports.DocumentStore, error) {
	if store := m.current(); store != nil {
		return store, nil
	}

	ch := m.dialGroup.DoChan(acquireKey, func() (interface{}, error) {
		return m.dial(ctx)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(ports.DocumentStore), nil
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for store connection: %w", ctx.Err())
	}
}

func (m *Manager) current() ports.DocumentStore {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.store
}

func (m *Manager) dial(ctx context.Context) (ports.DocumentStore, error) {
	// A previous flight may have finished between the fast path and DoChan
	if store := m.current(); store != nil {
		return store, nil
	}

	// The handle outlives the caller that triggered the dial
	dialCtx := context.WithoutCancel(ctx)
	if m.config.InitTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(dialCtx, m.config.InitTimeout)
		defer cancel()
	}

	start := m.now()
	store, err := m.dialer(dialCtx)
	if err == nil && store == nil {
		err = fmt.Errorf("dialer returned no store")
	}
	if err != nil {
		m.logger.Error("Failed to initialize store connection",
			zap.String("store", m.config.StoreName),
			zap.Error(err))
		m.updateHealth(func(h *ports.ConnectionHealth) {
			h.Connected = false
			h.ConsecutiveFailures++
			h.LastError = err.Error()
		})
		m.sink.Emit(ctx, events.NewConnectionFailed(m.config.StoreName, err, m.now()))
		return nil, pkgerrors.NewConnectionInitError(err)
	}

	m.mu.Lock()
	m.store = store
	m.mu.Unlock()

	elapsed := m.now().Sub(start)
	m.updateHealth(func(h *ports.ConnectionHealth) {
		h.Connected = true
	})
	m.logger.Info("Store connection established",
		zap.String("store", m.config.StoreName),
		zap.Duration("duration", elapsed))
	m.sink.Emit(ctx, events.NewConnectionEstablished(m.config.StoreName, elapsed, m.now()))
	return store, nil
}

// Execute runs op against the shared handle. Transient failures are retried
// with backoff until the policy's attempts or the operation deadline run out,
// which yields an OperationExhaustedError wrapping the last failure. Any other
// failure is returned as is after a single attempt.
func (m *Manager) Execute(ctx context.Context, name string, op ports.Operation) error {
	store, err := m.Acquire(ctx)
	if err != nil {
		return err
	}

	if m.config.OperationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.config.OperationTimeout)
		defer cancel()
	}

	ctx, span := m.tracer.Start(ctx, "store."+name, trace.WithAttributes(
		attribute.String("store.name", m.config.StoreName),
		attribute.String("store.operation", name),
	))
	defer span.End()

	hooks := retry.Hooks{
		// Failures count per attempt, not per call
		OnFailure: func(attempt int, err error) {
			m.updateHealth(func(h *ports.ConnectionHealth) {
				h.ConsecutiveFailures++
				h.TotalOperations++
				h.LastError = err.Error()
			})
		},
		OnRetry: func(attempt int, delay time.Duration, err error) {
			m.logger.Debug("Retrying store operation",
				zap.String("operation", name),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(err))
			span.AddEvent("retry", trace.WithAttributes(attribute.Int("attempt", attempt)))
			m.sink.Emit(ctx, events.NewOperationRetried(name, attempt, delay, err, m.now()))
		},
	}

	outcome := m.config.Policy.Do(ctx, m.classify, hooks, func(ctx context.Context) error {
		if err := m.attempt(ctx, store, op); err != nil {
			return err
		}
		at := m.now()
		m.updateHealth(func(h *ports.ConnectionHealth) {
			h.Connected = true
			h.ConsecutiveFailures = 0
			h.TotalOperations++
			h.LastSuccessAt = &at
			h.LastError = ""
		})
		return nil
	})

	span.SetAttributes(attribute.Int("store.attempts", outcome.Attempts))
	if outcome.Err == nil {
		return nil
	}

	span.RecordError(outcome.Err)
	span.SetStatus(codes.Error, outcome.Err.Error())

	if !outcome.Exhausted {
		return outcome.Err
	}

	m.updateHealth(func(h *ports.ConnectionHealth) {
		h.Connected = false
	})
	m.logger.Warn("Store operation exhausted",
		zap.String("operation", name),
		zap.Int("attempts", outcome.Attempts),
		zap.Error(outcome.Err))
	m.sink.Emit(ctx, events.NewOperationExhausted(name, outcome.Attempts, outcome.Err, m.now()))
	return pkgerrors.NewOperationExhaustedError(name, outcome.Attempts, outcome.Err)
}

func (m *Manager) attempt(ctx context.Context, store ports.DocumentStore, op ports.Operation) error {
	if m.breaker == nil {
		return op(ctx, store)
	}
	_, err := m.breaker.Execute(func() (interface{}, error) {
		return nil, op(ctx, store)
	})
	return err
}

// Health returns the latest health snapshot without blocking
func (m *Manager) Health() ports.ConnectionHealth {
	return *m.health.Load()
}

// Reinitialize drops the shared handle and resets health. The next Acquire dials again.
func (m *Manager) Reinitialize() {
	m.mu.Lock()
	m.store = nil
	m.mu.Unlock()
	m.dialGroup.Forget(acquireKey)

	fresh := &ports.ConnectionHealth{}
	if m.breaker != nil {
		// Read before taking healthMu; state changes update health under the breaker's lock
		fresh.BreakerState = m.breaker.State().String()
	}
	m.healthMu.Lock()
	m.health.Store(fresh)
	m.healthMu.Unlock()

	m.logger.Info("Store connection reinitialized", zap.String("store", m.config.StoreName))
}

// Close releases the handle at process shutdown
func (m *Manager) Close() error {
	m.mu.Lock()
	store := m.store
	m.store = nil
	m.mu.Unlock()

	if closer, ok := store.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func (m *Manager) updateHealth(mutate func(h *ports.ConnectionHealth)) {
	m.healthMu.Lock()
	defer m.healthMu.Unlock()

	next := *m.health.Load()
	mutate(&next)
	m.health.Store(&next)
}

var (
	_ ports.Executor       = (*Manager)(nil)
	_ ports.HealthReporter = (*Manager)(nil)
)
