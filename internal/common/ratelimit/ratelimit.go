// Package ratelimit spaces outgoing Graph requests with a token bucket.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// Limiter wraps rate.Limiter. A Limiter built with a non-positive rate is
// disabled and never blocks.
type Limiter struct {
	limiter *rate.Limiter
	rps     float64
}

// New creates a limiter allowing rps requests per second with a burst of 1.
func New(rps float64) *Limiter {
	if rps <= 0 {
		return &Limiter{}
	}
	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		rps:     rps,
	}
}

// Enabled reports whether requests are being limited.
func (l *Limiter) Enabled() bool {
	return l != nil && l.limiter != nil
}

// Wait blocks until a request may proceed or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if !l.Enabled() {
		return nil
	}
	return l.limiter.Wait(ctx)
}

// String describes the rate for the --rate-limit debug line.
func (l *Limiter) String() string {
	if !l.Enabled() {
		return "disabled"
	}
	if l.rps >= 1 {
		return fmt.Sprintf("%.2f rps", l.rps)
	}
	interval := time.Duration(float64(time.Second) / l.rps)
	return fmt.Sprintf("1 request per %s", interval)
}
