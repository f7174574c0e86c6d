package resilience

import (
	"math"
	"math/rand/v2"
	"time"
)

// BackoffPolicy computes the delay before the next retry.
//
// attempt is the 1-based index of the attempt that just failed, so the first
// retry waits NextDelay(1).
type BackoffPolicy interface {
	NextDelay(attempt int) time.Duration
}

// BackoffFunc is an adapter that allows a function to be used as a BackoffPolicy.
type BackoffFunc func(attempt int) time.Duration

// NextDelay implements BackoffPolicy.
func (f BackoffFunc) NextDelay(attempt int) time.Duration {
	return f(attempt)
}

// RandSource supplies uniform values in [0, 1).
// *rand.Rand from math/rand/v2 satisfies it.
type RandSource interface {
	Float64() float64
}

// globalRand uses the concurrency-safe top-level math/rand/v2 generator.
type globalRand struct{}

// #nosec G404 -- jitter is non-cryptographic timing variance.
func (globalRand) Float64() float64 { return rand.Float64() }

// BackoffConfig configures exponential backoff.
type BackoffConfig struct {
	// InitialDelay is the delay before the first retry.
	// Default: 100ms
	InitialDelay time.Duration

	// MaxDelay caps every delay, jitter included.
	// Default: 30s
	MaxDelay time.Duration

	// Multiplier is the growth factor between consecutive delays.
	// Default: 2.0
	Multiplier float64

	// Jitter is the randomization fraction in [0, 1]: 0.2 spreads each delay
	// uniformly over ±20%. Zero disables jitter.
	Jitter float64

	// Rand is the randomness source for jitter.
	// Default: the global math/rand/v2 generator.
	Rand RandSource
}

// ExponentialBackoff grows delays geometrically up to a cap, with jitter.
// Safe for concurrent use if Rand is.
type ExponentialBackoff struct {
	config BackoffConfig
}

// NewExponentialBackoff creates an exponential backoff policy.
func NewExponentialBackoff(config BackoffConfig) *ExponentialBackoff {
	// Apply defaults
	if config.InitialDelay <= 0 {
		config.InitialDelay = 100 * time.Millisecond
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 30 * time.Second
	}
	if config.Multiplier <= 0 {
		config.Multiplier = 2.0
	}
	if config.Jitter < 0 {
		config.Jitter = 0
	}
	if config.Jitter > 1 {
		config.Jitter = 1
	}
	if config.Rand == nil {
		config.Rand = globalRand{}
	}

	return &ExponentialBackoff{config: config}
}

// NextDelay returns min(MaxDelay, InitialDelay × Multiplier^(attempt−1)),
// randomized by Jitter and clamped to [0, MaxDelay].
func (b *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	maxDelay := float64(b.config.MaxDelay)
	delay := float64(b.config.InitialDelay) * math.Pow(b.config.Multiplier, float64(attempt-1))
	if math.IsNaN(delay) || math.IsInf(delay, 0) || delay > maxDelay {
		delay = maxDelay
	}

	if b.config.Jitter > 0 {
		// u in [-1, 1)
		u := b.config.Rand.Float64()*2 - 1
		delay += delay * b.config.Jitter * u
	}

	switch {
	case delay < 0:
		return 0
	case delay > maxDelay:
		return b.config.MaxDelay
	}
	return time.Duration(delay)
}

// Config returns the effective backoff configuration.
func (b *ExponentialBackoff) Config() BackoffConfig {
	return b.config
}

// ConstantBackoff returns a policy that always waits d.
func ConstantBackoff(d time.Duration) BackoffPolicy {
	if d < 0 {
		d = 0
	}
	return BackoffFunc(func(int) time.Duration {
		return d
	})
}

// LinearBackoff returns a policy that waits base × attempt, capped at max.
// A non-positive max disables the cap.
func LinearBackoff(base, max time.Duration) BackoffPolicy {
	return BackoffFunc(func(attempt int) time.Duration {
		if attempt < 1 {
			attempt = 1
		}
		d := base * time.Duration(attempt)
		if max > 0 && (d < 0 || d > max) {
			return max
		}
		if d < 0 {
			return time.Duration(math.MaxInt64)
		}
		return d
	})
}
