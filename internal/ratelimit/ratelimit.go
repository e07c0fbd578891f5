// Package ratelimit implements the token bucket shared by the ingestion
// engine's producers. It wraps golang.org/x/time/rate, which already
// performs the continuous-refill accounting the data model calls for,
// behind the engine's own wait/try-acquire vocabulary.
package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// burstMultiple is the data model's max = 2*rps relationship between the
// sustained rate and the burst capacity.
const burstMultiple = 2

// Limiter is a token bucket keyed by a single rate. rps=0 disables limiting
// entirely: every Wait and TryAcquire call succeeds immediately.
type Limiter struct {
	rps     float64
	limiter *rate.Limiter
}

// New builds a Limiter for the given requests-per-second rate. rps <= 0
// disables the limiter.
func New(rps float64) *Limiter {
	if rps <= 0 {
		return &Limiter{rps: 0}
	}
	return &Limiter{
		rps:     rps,
		limiter: rate.NewLimiter(rate.Limit(rps), int(rps*burstMultiple)),
	}
}

// Disabled reports whether this limiter was built with rps=0.
func (l *Limiter) Disabled() bool {
	return l.limiter == nil
}

// Wait blocks until a token is available, or until ctx is cancelled. It
// returns immediately, consuming nothing, if the limiter is disabled.
func (l *Limiter) Wait(ctx context.Context) error {
	if l.limiter == nil {
		return nil
	}
	return l.limiter.Wait(ctx)
}

// TryAcquire attempts to consume one token without blocking. It reports
// whether a token was available. A disabled limiter always succeeds.
func (l *Limiter) TryAcquire() bool {
	if l.limiter == nil {
		return true
	}
	return l.limiter.AllowN(time.Now(), 1)
}

// RPS returns the configured sustained rate (0 if disabled).
func (l *Limiter) RPS() float64 {
	return l.rps
}

// Burst returns the configured burst capacity (0 if disabled).
func (l *Limiter) Burst() int {
	if l.limiter == nil {
		return 0
	}
	return l.limiter.Burst()
}
