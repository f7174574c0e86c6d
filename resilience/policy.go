package resilience

import "time"

// RetryState is the per-invocation view the policy decides on. It is created
// when a call starts and discarded when the call returns.
type RetryState struct {
	// Attempts is the number of attempts made so far (1 after the first failure).
	Attempts int

	// Start is when the first attempt began.
	Start time.Time

	// Elapsed is the time since Start.
	Elapsed time.Duration

	// LastErr is the error returned by the most recent attempt.
	LastErr error
}

// RetryPolicy decides whether a failed call may be attempted again.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use; one policy
//   value is shared by every invocation of a method.
// - ShouldContinue must be false when LastErr classifies Fatal.
type RetryPolicy interface {
	Classify(err error) Classification
	ShouldContinue(state RetryState) bool
}

// RetryPolicyConfig configures the built-in retry policy.
type RetryPolicyConfig struct {
	// MaxAttempts is the maximum number of attempts (including the first).
	// Zero means no attempt limit.
	MaxAttempts int

	// MaxElapsed bounds the time since the first attempt began.
	// Zero means no time budget.
	MaxElapsed time.Duration

	// Classifier decides which errors are retryable.
	// Default: DefaultClassifier
	Classifier Classifier
}

// Policy is the built-in RetryPolicy.
type Policy struct {
	config RetryPolicyConfig
}

// NewRetryPolicy creates a retry policy. A config with neither limit set
// retries retryable errors until the context ends or the throttler refuses.
func NewRetryPolicy(config RetryPolicyConfig) *Policy {
	if config.MaxAttempts < 0 {
		config.MaxAttempts = 0
	}
	if config.MaxElapsed < 0 {
		config.MaxElapsed = 0
	}
	if config.Classifier == nil {
		config.Classifier = DefaultClassifier
	}
	return &Policy{config: config}
}

// AttemptLimit returns a policy allowing at most n attempts in total.
func AttemptLimit(n int) *Policy {
	if n < 1 {
		n = 1
	}
	return NewRetryPolicy(RetryPolicyConfig{MaxAttempts: n})
}

// ElapsedLimit returns a policy that stops once d has elapsed since the first attempt.
func ElapsedLimit(d time.Duration) *Policy {
	return NewRetryPolicy(RetryPolicyConfig{MaxElapsed: d})
}

// Classify implements RetryPolicy.
func (p *Policy) Classify(err error) Classification {
	return p.config.Classifier.Classify(err)
}

// ShouldContinue implements RetryPolicy.
func (p *Policy) ShouldContinue(state RetryState) bool {
	if p.Classify(state.LastErr) != Retryable {
		return false
	}
	if p.config.MaxAttempts > 0 && state.Attempts >= p.config.MaxAttempts {
		return false
	}
	if p.config.MaxElapsed > 0 && state.Elapsed >= p.config.MaxElapsed {
		return false
	}
	return true
}

// Config returns the effective policy configuration.
func (p *Policy) Config() RetryPolicyConfig {
	return p.config
}

// AllOf continues only while every policy continues. An error is retryable
// only if every policy classifies it retryable.
func AllOf(policies ...RetryPolicy) RetryPolicy {
	return allOf(compact(policies))
}

// AnyOf continues while at least one policy continues. An error is retryable
// if any policy classifies it retryable.
func AnyOf(policies ...RetryPolicy) RetryPolicy {
	return anyOf(compact(policies))
}

type allOf []RetryPolicy

func (ps allOf) Classify(err error) Classification {
	if len(ps) == 0 {
		return DefaultClassifier.Classify(err)
	}
	for _, p := range ps {
		if p.Classify(err) != Retryable {
			return Fatal
		}
	}
	return Retryable
}

func (ps allOf) ShouldContinue(state RetryState) bool {
	if len(ps) == 0 {
		return false
	}
	for _, p := range ps {
		if !p.ShouldContinue(state) {
			return false
		}
	}
	return true
}

type anyOf []RetryPolicy

func (ps anyOf) Classify(err error) Classification {
	if len(ps) == 0 {
		return DefaultClassifier.Classify(err)
	}
	for _, p := range ps {
		if p.Classify(err) == Retryable {
			return Retryable
		}
	}
	return Fatal
}

func (ps anyOf) ShouldContinue(state RetryState) bool {
	for _, p := range ps {
		if p.ShouldContinue(state) {
			return true
		}
	}
	return false
}

func compact(policies []RetryPolicy) []RetryPolicy {
	out := make([]RetryPolicy, 0, len(policies))
	for _, p := range policies {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}

// Ensure built-ins implement RetryPolicy
var (
	_ RetryPolicy = (*Policy)(nil)
	_ RetryPolicy = allOf(nil)
	_ RetryPolicy = anyOf(nil)
)
