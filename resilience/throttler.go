package resilience

import "sync"

// ThrottlerConfig configures the retry throttler.
type ThrottlerConfig struct {
	// MaxTokens is the bucket capacity; the bucket starts full.
	// Default: 100
	MaxTokens float64

	// SuccessCredit is added to the bucket on every successful attempt.
	// Default: 0.1
	SuccessCredit float64

	// FailureCost is removed from the bucket on every retryable failure.
	// Default: 1
	FailureCost float64

	// Threshold is the floor: retries are admitted only while the bucket holds
	// more than Threshold tokens.
	// Default: MaxTokens / 2
	Threshold float64
}

// RetryThrottler is a token bucket that limits aggregate retry volume across
// every call sharing it. Failures drain the bucket faster than successes
// refill it, so a degraded backend quickly stops receiving retries from this
// process regardless of each call's own RetryPolicy.
//
// The first attempt of a call is never gated; only retries are.
// A nil *RetryThrottler admits every retry.
type RetryThrottler struct {
	config ThrottlerConfig

	mu     sync.Mutex
	tokens float64
}

// NewRetryThrottler creates a retry throttler with a full bucket.
func NewRetryThrottler(config ThrottlerConfig) *RetryThrottler {
	// Apply defaults
	if config.MaxTokens <= 0 {
		config.MaxTokens = 100
	}
	if config.SuccessCredit <= 0 {
		config.SuccessCredit = 0.1
	}
	if config.FailureCost <= 0 {
		config.FailureCost = 1
	}
	if config.Threshold <= 0 || config.Threshold >= config.MaxTokens {
		config.Threshold = config.MaxTokens / 2
	}

	return &RetryThrottler{
		config: config,
		tokens: config.MaxTokens,
	}
}

// OnSuccess replenishes the bucket by SuccessCredit.
func (t *RetryThrottler) OnSuccess() {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.tokens += t.config.SuccessCredit
	if t.tokens > t.config.MaxTokens {
		t.tokens = t.config.MaxTokens
	}
	t.mu.Unlock()
}

// OnFailure depletes the bucket by FailureCost.
func (t *RetryThrottler) OnFailure() {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.tokens -= t.config.FailureCost
	if t.tokens < 0 {
		t.tokens = 0
	}
	t.mu.Unlock()
}

// CanRetry reports whether a retry is admitted.
func (t *RetryThrottler) CanRetry() bool {
	if t == nil {
		return true
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tokens > t.config.Threshold
}

// Tokens returns the current bucket level.
func (t *RetryThrottler) Tokens() float64 {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tokens
}

// Reset refills the bucket.
func (t *RetryThrottler) Reset() {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.tokens = t.config.MaxTokens
	t.mu.Unlock()
}

// Config returns the effective throttler configuration.
func (t *RetryThrottler) Config() ThrottlerConfig {
	return t.config
}
