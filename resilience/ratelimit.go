package resilience

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiterConfig configures the outbound attempt limiter.
type RateLimiterConfig struct {
	// Rate is the number of attempts allowed per second.
	// Default: 100
	Rate float64

	// Burst is the maximum burst size.
	// Default: 10
	Burst int

	// WaitOnLimit waits for a token instead of returning an error.
	// Default: false
	WaitOnLimit bool

	// MaxWait is the maximum time to wait for a token when WaitOnLimit is set.
	// Default: 1 second
	MaxWait time.Duration
}

// RateLimiter paces outbound attempts, retries included, for every call that
// shares it.
type RateLimiter struct {
	config  RateLimiterConfig
	limiter *rate.Limiter
}

// NewRateLimiter creates a new rate limiter with a full burst.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	// Apply defaults
	if config.Rate <= 0 {
		config.Rate = 100
	}
	if config.Burst <= 0 {
		config.Burst = 10
	}
	if config.MaxWait <= 0 {
		config.MaxWait = time.Second
	}

	return &RateLimiter{
		config:  config,
		limiter: rate.NewLimiter(rate.Limit(config.Rate), config.Burst),
	}
}

// Allow reports whether an attempt may start now, consuming a token if so.
func (rl *RateLimiter) Allow() bool {
	return rl.limiter.Allow()
}

// Acquire admits one attempt. With WaitOnLimit it blocks up to MaxWait or
// until ctx is done; otherwise it fails fast with ErrRateLimitExceeded.
func (rl *RateLimiter) Acquire(ctx context.Context) error {
	if !rl.config.WaitOnLimit {
		if rl.limiter.Allow() {
			return nil
		}
		return ErrRateLimitExceeded
	}

	waitCtx, cancel := context.WithTimeout(ctx, rl.config.MaxWait)
	defer cancel()

	if err := rl.limiter.Wait(waitCtx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", ErrRateLimitExceeded, err)
	}
	return nil
}

// Tokens returns the number of tokens currently available.
func (rl *RateLimiter) Tokens() float64 {
	return rl.limiter.Tokens()
}

// Config returns the effective limiter configuration.
func (rl *RateLimiter) Config() RateLimiterConfig {
	return rl.config
}
