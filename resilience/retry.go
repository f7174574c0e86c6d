package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// OnRetryFunc is called before each backoff sleep.
type OnRetryFunc func(ctx context.Context, state RetryState, delay time.Duration)

// RetryConfig configures the retry loop.
type RetryConfig struct {
	// Policy decides whether to continue after a failure.
	// Default: AttemptLimit(3)
	Policy RetryPolicy

	// Backoff computes the delay before each retry.
	// Default: exponential, 100ms initial, 30s cap, ×2, 20% jitter
	Backoff BackoffPolicy

	// Throttler gates every retry. It is usually shared by all calls of a client.
	// Default: nil (no throttling)
	Throttler *RetryThrottler

	// Limiter paces every attempt, the first included.
	// Default: nil (no pacing)
	Limiter *RateLimiter

	// AttemptTimeout bounds each individual attempt.
	// Default: 0 (attempts share the caller's deadline)
	AttemptTimeout time.Duration

	// Clock supplies time and the cancellable wait primitive.
	// Default: SystemClock()
	Clock Clock

	// OnRetry is called before each retry sleep.
	OnRetry OnRetryFunc
}

// Option overrides part of a RetryConfig for one loop.
type Option func(*RetryConfig)

// WithClock sets the clock. Useful for testing.
func WithClock(c Clock) Option {
	return func(cfg *RetryConfig) { cfg.Clock = c }
}

// WithRateLimiter sets the attempt limiter.
func WithRateLimiter(rl *RateLimiter) Option {
	return func(cfg *RetryConfig) { cfg.Limiter = rl }
}

// WithAttemptTimeout sets the per-attempt timeout.
func WithAttemptTimeout(d time.Duration) Option {
	return func(cfg *RetryConfig) { cfg.AttemptTimeout = d }
}

// WithOnRetry sets the hook called before each retry sleep.
func WithOnRetry(fn OnRetryFunc) Option {
	return func(cfg *RetryConfig) { cfg.OnRetry = fn }
}

// WithPolicy replaces the retry policy.
func WithPolicy(p RetryPolicy) Option {
	return func(cfg *RetryConfig) { cfg.Policy = p }
}

// WithBackoff replaces the backoff policy.
func WithBackoff(b BackoffPolicy) Option {
	return func(cfg *RetryConfig) { cfg.Backoff = b }
}

// WithThrottler replaces the retry throttler.
func WithThrottler(t *RetryThrottler) Option {
	return func(cfg *RetryConfig) { cfg.Throttler = t }
}

// Retry is a reusable retry loop configuration. Safe for concurrent use; all
// per-invocation state lives on the stack of Execute/Do.
type Retry struct {
	config RetryConfig
}

// NewRetry creates a new retry handler.
func NewRetry(config RetryConfig) *Retry {
	return &Retry{config: withDefaults(config)}
}

func withDefaults(config RetryConfig) RetryConfig {
	if config.Policy == nil {
		config.Policy = AttemptLimit(3)
	}
	if config.Backoff == nil {
		config.Backoff = NewExponentialBackoff(BackoffConfig{Jitter: 0.2})
	}
	if config.Clock == nil {
		config.Clock = SystemClock()
	}
	return config
}

// With returns a copy of r with opts applied.
func (r *Retry) With(opts ...Option) *Retry {
	config := r.config
	for _, opt := range opts {
		opt(&config)
	}
	return &Retry{config: withDefaults(config)}
}

// Config returns the retry configuration.
func (r *Retry) Config() RetryConfig {
	return r.config
}

// Execute runs op under the retry loop.
func (r *Retry) Execute(ctx context.Context, op func(context.Context) error) error {
	_, err := run(ctx, r.config, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// Do runs call under r's retry loop and returns its value.
func Do[T any](ctx context.Context, r *Retry, call func(context.Context) (T, error)) (T, error) {
	return run(ctx, r.config, call)
}

// Execute runs call under a retry loop composed of policy, backoff and
// throttler. A nil policy or backoff takes the NewRetry default; a nil
// throttler disables throttling.
func Execute[T any](
	ctx context.Context,
	call func(context.Context) (T, error),
	policy RetryPolicy,
	backoff BackoffPolicy,
	throttler *RetryThrottler,
	opts ...Option,
) (T, error) {
	config := RetryConfig{
		Policy:    policy,
		Backoff:   backoff,
		Throttler: throttler,
	}
	for _, opt := range opts {
		opt(&config)
	}
	return run(ctx, withDefaults(config), call)
}

// run is the retry loop. The throttler never gates the first attempt; each
// retry requires a retryable error, throttler admission and policy
// continuation, in that order.
// A limiter refusal counts as a retryable attempt that does not drain the
// throttler.
func run[T any](ctx context.Context, cfg RetryConfig, call func(context.Context) (T, error)) (T, error) {
	var zero T
	state := RetryState{Start: cfg.Clock.Now()}

	for {
		var (
			value   T
			err     error
			limited bool
		)
		if cfg.Limiter != nil {
			if lerr := cfg.Limiter.Acquire(ctx); lerr != nil {
				if ctx.Err() != nil {
					return zero, &AbortedError{Cause: ctx.Err(), Last: state.LastErr}
				}
				err, limited = refused(lerr, state.LastErr), true
			}
		}
		if !limited {
			value, err = ExecuteWithTimeout(ctx, cfg.AttemptTimeout, call)
		}
		state.Attempts++
		state.Elapsed = cfg.Clock.Now().Sub(state.Start)

		if err == nil {
			cfg.Throttler.OnSuccess()
			return value, nil
		}
		state.LastErr = err

		if ctx.Err() != nil {
			return zero, &AbortedError{Cause: ctx.Err(), Last: err}
		}

		if cfg.Policy.Classify(err) != Retryable {
			return zero, asFatal(err)
		}
		if !limited {
			cfg.Throttler.OnFailure()
		}

		if !cfg.Throttler.CanRetry() {
			return zero, &ThrottledError{Attempts: state.Attempts, Err: err}
		}
		if !cfg.Policy.ShouldContinue(state) {
			return zero, &PolicyExhaustedError{Attempts: state.Attempts, Elapsed: state.Elapsed, Err: err}
		}

		delay := cfg.Backoff.NextDelay(state.Attempts)
		if cfg.OnRetry != nil {
			cfg.OnRetry(ctx, state, delay)
		}

		if err := cfg.Clock.Sleep(ctx, delay); err != nil {
			cause := ctx.Err()
			if cause == nil {
				cause = err
			}
			return zero, &AbortedError{Cause: cause, Last: state.LastErr}
		}
	}
}

// refused turns a limiter refusal into a retryable attempt failure that
// keeps the previous attempt's error reachable.
func refused(err, last error) error {
	if last == nil {
		return Transient(err)
	}
	return Transient(fmt.Errorf("%w; last error: %w", err, last))
}

// asFatal returns err typed for the caller: already-typed errors pass
// through, anything else becomes a PermanentError.
func asFatal(err error) error {
	var (
		permanent *PermanentError
		authErr   *AuthError
		aborted   *AbortedError
	)
	if errors.As(err, &permanent) || errors.As(err, &authErr) || errors.As(err, &aborted) {
		return err
	}
	return Permanent(err)
}
