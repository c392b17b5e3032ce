package util

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// EventLimiter is a token bucket used to cap bursty event streams, such as
// filesystem notifications during a branch switch. Burst equals the
// per-second budget so a quiet period buys at most one second of catch-up.
type EventLimiter struct {
	bucket *rate.Limiter
}

// NewEventLimiter allows perSecond events per second. perSecond <= 0 means
// unlimited.
func NewEventLimiter(perSecond float64) *EventLimiter {
	if perSecond <= 0 {
		return &EventLimiter{bucket: rate.NewLimiter(rate.Inf, 0)}
	}
	burst := int(perSecond)
	if burst < 1 {
		burst = 1
	}
	return &EventLimiter{bucket: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// Allow reports whether one more event fits the current budget.
func (l *EventLimiter) Allow() bool {
	return l.bucket.AllowN(time.Now(), 1)
}

// Wait blocks until one event fits the budget or the context ends.
func (l *EventLimiter) Wait(ctx context.Context) error {
	return l.bucket.WaitN(ctx, 1)
}
