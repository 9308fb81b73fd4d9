// rate_limiter.go
// ----------------
// This file defines the RateLimiter type gating outbound request admission. It
// wraps a token bucket with continuous refill, so the configured
// requests-per-minute budget drains smoothly instead of stepping at minute
// boundaries.
//
// Responsibilities:
// - Admitting at most Burst requests instantly.
// - Suspending callers cooperatively until a token is available, or rejecting
//   immediately with a rate_limited error in no-wait mode.
package hyperbridge

import (
	"context"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/time/rate"
)

type RateLimiter struct {
	limiter *rate.Limiter // nil when disabled
	noWait  bool
	logger  hclog.Logger
}

// NewRateLimiter builds the admission gate from the client configuration.
func NewRateLimiter(cfg *Config, logger hclog.Logger) *RateLimiter {
	rl := &RateLimiter{
		noWait: cfg.RateLimitNoWait,
		logger: logger.Named("ratelimit"),
	}
	if cfg.RateLimitEnabled {
		perSecond := rate.Limit(float64(cfg.RateLimitRequestsPerMinute) / 60.0)
		rl.limiter = rate.NewLimiter(perSecond, cfg.RateLimitBurst)
	}
	return rl
}

// Admit blocks until the request may proceed. In no-wait mode it fails fast
// with a rate_limited error when the bucket is empty.
func (rl *RateLimiter) Admit(ctx context.Context) error {
	if rl.limiter == nil {
		return nil
	}

	if rl.noWait {
		if !rl.limiter.Allow() {
			rl.logger.Debug("admission rejected, bucket empty")
			return newRateLimitedError("request budget exhausted", nil)
		}
		return nil
	}

	if err := rl.limiter.Wait(ctx); err != nil {
		switch ctx.Err() {
		case context.Canceled:
			return ctx.Err()
		case context.DeadlineExceeded:
			return newTimeoutError("timed out waiting for admission", err)
		}
		// Wait also fails when the required delay would exceed the context
		// deadline; surface that as a rate limit rejection.
		return newRateLimitedError("admission would exceed deadline", err)
	}
	return nil
}
