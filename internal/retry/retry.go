// Package retry runs an operation under a bounded attempt budget with an
// injectable backoff sleep, so callers can be tested without real delays.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/IshaanNene/topicscout/internal/types"
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Policy defines bounded retry behavior.
type Policy struct {
	MaxAttempts int           // total attempts, including the first
	Delay       time.Duration // wait before the second attempt
	Multiplier  float64       // 1 keeps the delay fixed, >1 grows it per attempt
	MaxDelay    time.Duration // cap, 0 means uncapped
	Sleep       SleepFunc     // nil uses Sleep
	Logger      *slog.Logger
}

// Sleep is the real SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop marks err as final: Do returns it without further attempts.
func Stop(err error) error {
	if err == nil {
		return nil
	}
	return &stopError{err}
}

type stopError struct{ err error }

func (e *stopError) Error() string { return e.err.Error() }
func (e *stopError) Unwrap() error { return e.err }

// Do calls fn until it succeeds, returns a Stop or non-retryable error (see
// types.IsRetryable), the context ends, or MaxAttempts is used up. On
// exhaustion the returned error wraps both types.ErrMaxRetries and the last
// failure.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error) error {
	attempts := max(p.MaxAttempts, 1)
	sleep := p.Sleep
	if sleep == nil {
		sleep = Sleep
	}
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := fn(ctx, attempt)
		if err == nil {
			if attempt > 1 {
				logger.Debug("retry succeeded", "attempts", attempt)
			}
			return nil
		}

		var stop *stopError
		if errors.As(err, &stop) {
			return stop.err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if !types.IsRetryable(err) {
			logger.Debug("error is final, not retrying", "attempt", attempt, "error", err)
			return err
		}
		lastErr = err

		if attempt == attempts {
			break
		}

		wait := p.Backoff(attempt)
		var httpErr *types.HTTPError
		if errors.As(err, &httpErr) && httpErr.RetryAfter > wait {
			wait = httpErr.RetryAfter
		}

		logger.Warn("attempt failed, retrying",
			"attempt", attempt,
			"max_attempts", attempts,
			"backoff", wait,
			"error", err,
		)
		if err := sleep(ctx, wait); err != nil {
			return err
		}
	}

	return fmt.Errorf("%w after %d attempts: %w", types.ErrMaxRetries, attempts, lastErr)
}

// Backoff returns the wait after the given (1-based) failed attempt:
// Delay * Multiplier^(attempt-1), capped at MaxDelay.
func (p Policy) Backoff(attempt int) time.Duration {
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}
	d := float64(p.Delay) * math.Pow(mult, float64(attempt-1))
	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	return time.Duration(d)
}
