// Package ratelimit spaces out sequential upstream requests.
package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Throttle enforces a minimum interval between successive operations.
// The first Wait returns immediately.
type Throttle struct {
	limiter *rate.Limiter
}

// NewThrottle creates a throttle allowing one operation per interval.
// A non-positive interval disables throttling.
func NewThrottle(interval time.Duration) *Throttle {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Throttle{limiter: rate.NewLimiter(limit, 1)}
}

// Wait blocks until the next operation may proceed or ctx ends.
func (t *Throttle) Wait(ctx context.Context) error {
	if t == nil {
		return nil
	}
	return t.limiter.Wait(ctx)
}

// Interval reports the configured spacing, 0 when unthrottled.
func (t *Throttle) Interval() time.Duration {
	if t == nil || t.limiter.Limit() == rate.Inf {
		return 0
	}
	return time.Duration(float64(time.Second) / float64(t.limiter.Limit()))
}
