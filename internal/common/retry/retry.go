// Package retry runs operations with bounded exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = time.Second
)

// ErrCancelled is returned when the context ends while waiting between attempts.
var ErrCancelled = errors.New("RETRY_CANCELLED")

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Executor retries an operation up to MaxAttempts times. Attempt i that fails
// and is not the last waits 2^i * BaseDelay. There is no jitter.
type Executor struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Sleep       SleepFunc

	// OnRetry, when set, is called before each wait.
	OnRetry func(name string, attempt int, delay time.Duration, err error)
}

// New returns an executor with the given cap and base delay. Non-positive
// values fall back to the defaults.
func New(maxAttempts int, baseDelay time.Duration) *Executor {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if baseDelay < 0 {
		baseDelay = DefaultBaseDelay
	}
	return &Executor{
		MaxAttempts: maxAttempts,
		BaseDelay:   baseDelay,
		Sleep:       ContextSleep,
	}
}

// Default returns the 3 attempt, 1s base delay executor.
func Default() *Executor {
	return New(DefaultMaxAttempts, DefaultBaseDelay)
}

// Do runs op with the default executor and the given attempt cap.
func Do(ctx context.Context, name string, maxAttempts int, op func(ctx context.Context) error) error {
	return New(maxAttempts, DefaultBaseDelay).Do(ctx, name, op)
}

// Do runs op until it succeeds or the attempts are exhausted. The final error
// wraps the last failure so errors.Is still matches it.
func (e *Executor) Do(ctx context.Context, name string, op func(ctx context.Context) error) error {
	attempts := e.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}
	sleep := e.Sleep
	if sleep == nil {
		sleep = ContextSleep
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return cancelled(name, err, lastErr)
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}

		if i == attempts-1 {
			break
		}

		delay := e.Backoff(i)
		if e.OnRetry != nil {
			e.OnRetry(name, i+1, delay, lastErr)
		}
		if err := sleep(ctx, delay); err != nil {
			return cancelled(name, err, lastErr)
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", name, attempts, lastErr)
}

// Backoff returns the wait after the failed attempt with 0-based index i.
func (e *Executor) Backoff(i int) time.Duration {
	return e.BaseDelay * time.Duration(1<<uint(i))
}

// Value is Do for operations that produce a result.
func Value[T any](ctx context.Context, e *Executor, name string, op func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := e.Do(ctx, name, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// ContextSleep is the production SleepFunc.
func ContextSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// NoSleep skips waiting but still honours cancellation.
func NoSleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

func cancelled(name string, ctxErr, lastErr error) error {
	if lastErr != nil {
		return fmt.Errorf("%s: %w: %w (last error: %v)", name, ErrCancelled, ctxErr, lastErr)
	}
	return fmt.Errorf("%s: %w: %w", name, ErrCancelled, ctxErr)
}
