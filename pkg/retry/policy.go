// Package retry provides the backoff policy wrapped around every remote store call.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// Policy defines retry behavior for a single remote operation.
type Policy struct {
	MaxAttempts int           // Total attempts, including the first
	BaseDelay   time.Duration // Delay before the second attempt
	MaxDelay    time.Duration // Upper bound for any single delay
	Jitter      float64       // Fraction of the delay randomised in both directions
}

// DefaultPolicy returns the default retry policy: 3 attempts, 100ms doubling.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    5 * time.Second,
		Jitter:      0.2,
	}
}

// Validate checks the policy ranges.
func (p Policy) Validate() error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be >= 1, got %d", p.MaxAttempts)
	}
	if p.BaseDelay < 0 || p.MaxDelay < 0 {
		return errors.New("retry delays must not be negative")
	}
	if p.Jitter < 0 || p.Jitter > 1 {
		return fmt.Errorf("jitter must be within [0, 1], got %v", p.Jitter)
	}
	return nil
}

// Delay returns the wait after the given zero-based failed attempt.
func (p Policy) Delay(attempt int) time.Duration {
	backoff := float64(p.BaseDelay) * math.Pow(2, float64(attempt))
	if p.MaxDelay > 0 && backoff > float64(p.MaxDelay) {
		backoff = float64(p.MaxDelay)
	}

	// -jitter to +jitter
	jitter := p.Jitter * backoff * (rand.Float64()*2 - 1)
	delay := backoff + jitter
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

// Hooks observe the progress of Do. Both are optional.
type Hooks struct {
	// OnFailure is called after every failed attempt.
	OnFailure func(attempt int, err error)
	// OnRetry is called before sleeping ahead of the next attempt.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// Outcome summarises a Do call.
type Outcome struct {
	Attempts  int
	Err       error
	Exhausted bool // transient failures used up the attempts or the deadline
}

// Do runs fn until it succeeds, fails permanently, runs out of attempts or would
// sleep past the context deadline. classify decides which errors are transient;
// nil means IsTransient.
func (p Policy) Do(ctx context.Context, classify func(error) bool, hooks Hooks, fn func(ctx context.Context) error) Outcome {
	if classify == nil {
		classify = IsTransient
	}
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return contextOutcome(attempt, lastErr, err)
		}

		err := fn(ctx)
		if err == nil {
			return Outcome{Attempts: attempt + 1}
		}
		lastErr = err
		if hooks.OnFailure != nil {
			hooks.OnFailure(attempt+1, err)
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return contextOutcome(attempt+1, lastErr, ctxErr)
		}
		if !classify(err) {
			return Outcome{Attempts: attempt + 1, Err: err}
		}
		if attempt == maxAttempts-1 {
			break
		}

		delay := p.Delay(attempt)
		if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < delay {
			return Outcome{Attempts: attempt + 1, Err: lastErr, Exhausted: true}
		}
		if hooks.OnRetry != nil {
			hooks.OnRetry(attempt+1, delay, err)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return contextOutcome(attempt+1, lastErr, ctx.Err())
		case <-timer.C:
		}
	}

	return Outcome{Attempts: maxAttempts, Err: lastErr, Exhausted: true}
}

// contextOutcome maps a finished context: a passed deadline exhausts the call,
// an explicit cancellation is a permanent failure.
func contextOutcome(attempts int, lastErr, ctxErr error) Outcome {
	if lastErr == nil {
		lastErr = ctxErr
	}
	if errors.Is(ctxErr, context.DeadlineExceeded) {
		return Outcome{Attempts: attempts, Err: lastErr, Exhausted: true}
	}
	return Outcome{Attempts: attempts, Err: fmt.Errorf("operation cancelled: %w", ctxErr)}
}
