// Package resilience provides the retry machinery shared by generated RPC clients.
//
// A call is wrapped by the retry loop, which composes three strategies:
//
//   - RetryPolicy: classifies errors and decides whether the loop may continue
//     (attempt limits, elapsed-time budgets, AND/OR combinations).
//
//   - BackoffPolicy: computes the delay inserted before each retry
//     (exponential with jitter, linear, constant).
//
//   - RetryThrottler: process-wide admission control that stops retries once
//     the backend looks unhealthy across all callers sharing the throttler.
//
// Optional extras are a RateLimiter that paces outbound attempts and a
// per-attempt timeout. A Bulkhead caps how many calls a client runs at once.
//
// # Usage
//
//	throttler := resilience.NewRetryThrottler(resilience.ThrottlerConfig{})
//
//	r := resilience.NewRetry(resilience.RetryConfig{
//	    Policy: resilience.AllOf(
//	        resilience.AttemptLimit(5),
//	        resilience.ElapsedLimit(30*time.Second),
//	    ),
//	    Backoff: resilience.NewExponentialBackoff(resilience.BackoffConfig{
//	        InitialDelay: 100 * time.Millisecond,
//	        MaxDelay:     5 * time.Second,
//	        Multiplier:   2.0,
//	        Jitter:       0.2,
//	    }),
//	    Throttler: throttler,
//	})
//
//	resp, err := resilience.Do(ctx, r, func(ctx context.Context) (*Response, error) {
//	    return stub.Get(ctx, req)
//	})
//
// Errors returned by the loop are typed: ThrottledError, PolicyExhaustedError,
// AbortedError, or the fatal error itself. The last underlying error is always
// reachable through errors.Is / errors.As.
package resilience
