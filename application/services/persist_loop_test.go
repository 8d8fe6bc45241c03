package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"synergy-backend/application/ports"
)

type countingPersister struct {
	mu      sync.Mutex
	calls   int
	ctxErrs []error
	err     error
}

func (p *countingPersister) Persist(ctx context.Context) (ports.FlushResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.ctxErrs = append(p.ctxErrs, ctx.Err())
	return ports.FlushResult{Groups: 1, Succeeded: 1}, p.err
}

func (p *countingPersister) snapshot() (int, []error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls, append([]error(nil), p.ctxErrs...)
}

func runLoop(ctx context.Context, t *testing.T, loop *PersistLoop) <-chan struct{} {
	t.Helper()
	done := make(chan struct{})
	go func() {
		defer close(done)
		loop.Run(ctx)
	}()
	return done
}

func TestPersistLoop_FlushesOnTickAndOnStop(t *testing.T) {
	persister := &countingPersister{}
	loop := NewPersistLoop(persister, 5*time.Millisecond, time.Second, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := runLoop(ctx, t, loop)

	require.Eventually(t, func() bool {
		calls, _ := persister.snapshot()
		return calls >= 2
	}, time.Second, time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("persist loop did not stop")
	}

	calls, ctxErrs := persister.snapshot()
	require.GreaterOrEqual(t, calls, 3)
	// The final flush must not inherit the cancellation
	assert.NoError(t, ctxErrs[len(ctxErrs)-1])
}

func TestPersistLoop_ZeroIntervalOnlyFlushesOnStop(t *testing.T) {
	persister := &countingPersister{}
	loop := NewPersistLoop(persister, 0, 0, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := runLoop(ctx, t, loop)

	time.Sleep(20 * time.Millisecond)
	calls, _ := persister.snapshot()
	assert.Equal(t, 0, calls)

	cancel()
	<-done
	calls, _ = persister.snapshot()
	assert.Equal(t, 1, calls)
}

func TestPersistLoop_KeepsRunningAfterFailure(t *testing.T) {
	persister := &countingPersister{err: errors.New("store down")}
	loop := NewPersistLoop(persister, 2*time.Millisecond, time.Second, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := runLoop(ctx, t, loop)

	require.Eventually(t, func() bool {
		calls, _ := persister.snapshot()
		return calls >= 3
	}, time.Second, time.Millisecond)

	cancel()
	<-done
}
