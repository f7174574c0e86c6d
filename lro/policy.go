package lro

import (
	"time"

	"github.com/jonwraymond/callkit/resilience"
)

// PollState is what a PollingPolicy decides on.
type PollState struct {
	// Polls is the number of status checks made so far.
	Polls int

	// Elapsed is the time since the Poller started.
	Elapsed time.Duration
}

// PollingPolicy paces status checks and decides when to give up.
// It has the same shape as RetryPolicy plus BackoffPolicy, tuned for longer
// intervals.
type PollingPolicy interface {
	// NextPollDelay returns the wait before status check number poll+1.
	NextPollDelay(poll int) time.Duration

	// ShouldContinuePolling reports whether another status check may run.
	ShouldContinuePolling(state PollState) bool
}

// PollingConfig configures the built-in polling policy.
type PollingConfig struct {
	// Interval is the wait before the first status check.
	// Default: 1s
	Interval time.Duration

	// MaxInterval caps the wait between status checks.
	// Default: Interval (fixed-rate polling)
	MaxInterval time.Duration

	// Multiplier grows the interval between checks.
	// Default: 1.0 when MaxInterval equals Interval, otherwise 1.5
	Multiplier float64

	// Jitter randomizes each wait, as a fraction in [0, 1].
	// Default: 0
	Jitter float64

	// MaxPolls is the maximum number of status checks. Zero means no limit.
	MaxPolls int

	// Timeout bounds total polling time. Zero means no limit.
	Timeout time.Duration

	// Rand is the jitter source.
	Rand resilience.RandSource
}

// Polling is the built-in PollingPolicy.
type Polling struct {
	config  PollingConfig
	backoff *resilience.ExponentialBackoff
}

// NewPollingPolicy creates a polling policy.
func NewPollingPolicy(config PollingConfig) *Polling {
	// Apply defaults
	if config.Interval <= 0 {
		config.Interval = time.Second
	}
	if config.MaxInterval < config.Interval {
		config.MaxInterval = config.Interval
	}
	if config.Multiplier <= 0 {
		config.Multiplier = 1.0
		if config.MaxInterval > config.Interval {
			config.Multiplier = 1.5
		}
	}
	if config.MaxPolls < 0 {
		config.MaxPolls = 0
	}

	return &Polling{
		config: config,
		backoff: resilience.NewExponentialBackoff(resilience.BackoffConfig{
			InitialDelay: config.Interval,
			MaxDelay:     config.MaxInterval,
			Multiplier:   config.Multiplier,
			Jitter:       config.Jitter,
			Rand:         config.Rand,
		}),
	}
}

// NextPollDelay implements PollingPolicy.
func (p *Polling) NextPollDelay(poll int) time.Duration {
	return p.backoff.NextDelay(poll + 1)
}

// ShouldContinuePolling implements PollingPolicy.
func (p *Polling) ShouldContinuePolling(state PollState) bool {
	if p.config.MaxPolls > 0 && state.Polls >= p.config.MaxPolls {
		return false
	}
	if p.config.Timeout > 0 && state.Elapsed >= p.config.Timeout {
		return false
	}
	return true
}

// Config returns the effective polling configuration.
func (p *Polling) Config() PollingConfig {
	return p.config
}

// Ensure Polling implements PollingPolicy
var _ PollingPolicy = (*Polling)(nil)
