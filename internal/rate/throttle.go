package rate

import (
	"context"
	"fmt"

	xrate "golang.org/x/time/rate"
)

// Throttle is a token bucket shared by every request of one client.
type Throttle struct {
	limiter *xrate.Limiter
}

// NewThrottle allows rps requests per second with the given burst. A non-positive
// rps disables throttling.
func NewThrottle(rps float64, burst int) *Throttle {
	if rps <= 0 {
		return &Throttle{limiter: xrate.NewLimiter(xrate.Inf, 0)}
	}
	if burst < 1 {
		burst = 1
	}
	return &Throttle{limiter: xrate.NewLimiter(xrate.Limit(rps), burst)}
}

// Wait blocks until a token is available. When ctx would expire first the call
// fails immediately with [ErrRateLimited].
func (t *Throttle) Wait(ctx context.Context) error {
	if t == nil {
		return nil
	}
	if err := t.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", ErrRateLimited, err)
	}
	return nil
}

// Allow reports whether a request may proceed now without waiting.
func (t *Throttle) Allow() bool {
	return t == nil || t.limiter.Allow()
}
