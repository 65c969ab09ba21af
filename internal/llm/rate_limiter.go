package llm

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter wraps rate.Limiter for outbound provider calls, generalized
// from the inbound HTTP rate limiter: same reqPerSec/burst shape, but
// Wait blocks the caller instead of rejecting a request.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter creates a limiter permitting reqPerSec sustained calls
// with a burst of up to burst calls.
func NewRateLimiter(reqPerSec float64, burst int) *RateLimiter {
	return &RateLimiter{limiter: rate.NewLimiter(rate.Limit(reqPerSec), burst)}
}

// Wait blocks until a token is available or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}
