package invoke

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jonwraymond/callkit/auth"
	"github.com/jonwraymond/callkit/lro"
	"github.com/jonwraymond/callkit/observe"
	"github.com/jonwraymond/callkit/resilience"
)

// ClientConfig configures a Client.
type ClientConfig struct {
	// Service names the remote service in telemetry, e.g. "storage.v1.Buckets".
	Service string

	// Retry is the retry loop every call runs under. Its throttler is shared
	// by all calls of the Client.
	// Default: resilience defaults plus a new RetryThrottler
	Retry *resilience.Retry

	// Tokens supplies the credential for every attempt.
	// Default: nil (calls are unauthenticated)
	Tokens *auth.TokenCache

	// MaxAuthRetries bounds re-authorization after a rejected credential and
	// retries of a token fetch that failed with a retryable cause.
	// Default: 1; negative disables both
	MaxAuthRetries int

	// Bulkhead caps outstanding calls. A call holds one slot for all its attempts.
	// Default: nil (unbounded)
	Bulkhead *resilience.Bulkhead

	// Polling paces long-running operation status checks.
	// Default: lro.NewPollingPolicy(lro.PollingConfig{})
	Polling lro.PollingPolicy

	// Middleware records spans, metrics and logs for every call.
	// Default: observe.NopMiddleware()
	Middleware *observe.Middleware

	// RequestID generates per-invocation identifiers.
	// Default: uuid.NewString
	RequestID func() string
}

// Client is the shared call pipeline for one service client. Safe for
// concurrent use.
type Client struct {
	config ClientConfig
}

// NewClient creates a Client.
func NewClient(config ClientConfig) (*Client, error) {
	if config.Service == "" {
		return nil, ErrMissingService
	}

	// Apply defaults
	if config.Retry == nil {
		config.Retry = resilience.NewRetry(resilience.RetryConfig{
			Throttler: resilience.NewRetryThrottler(resilience.ThrottlerConfig{}),
		})
	}
	switch {
	case config.MaxAuthRetries == 0:
		config.MaxAuthRetries = 1
	case config.MaxAuthRetries < 0:
		config.MaxAuthRetries = 0
	}
	if config.Polling == nil {
		config.Polling = lro.NewPollingPolicy(lro.PollingConfig{})
	}
	if config.Middleware == nil {
		config.Middleware = observe.NopMiddleware()
	}
	if config.RequestID == nil {
		config.RequestID = uuid.NewString
	}

	return &Client{config: config}, nil
}

// Config returns the effective client configuration.
func (c *Client) Config() ClientConfig {
	return c.config
}

// Service returns the remote service name.
func (c *Client) Service() string {
	return c.config.Service
}

// begin prepares the shared per-invocation state: metadata, context values
// and the retry loop with telemetry hooks attached.
func (c *Client) begin(ctx context.Context, method string, o callOptions) (context.Context, observe.CallMeta, *resilience.Retry) {
	id := RequestIDFromContext(ctx)
	if id == "" {
		id = c.config.RequestID()
		ctx = WithRequestID(ctx, id)
	}
	meta := observe.CallMeta{Service: c.config.Service, Method: method, RequestID: id}
	ctx = withCallMeta(ctx, meta)

	retry := c.config.Retry
	if o.retry != nil {
		retry = o.retry
	}
	if len(o.retryOpts) > 0 {
		retry = retry.With(o.retryOpts...)
	}
	retry = retry.With(resilience.WithOnRetry(
		chainRetryHooks(retry.Config().OnRetry, c.config.Middleware.RetryHook(meta)),
	))

	return ctx, meta, retry
}

// acquire takes a bulkhead slot when one is configured.
func (c *Client) acquire(ctx context.Context) (func(), error) {
	if c.config.Bulkhead == nil {
		return func() {}, nil
	}
	if err := c.config.Bulkhead.Acquire(ctx); err != nil {
		return nil, err
	}
	return c.config.Bulkhead.Release, nil
}

func chainRetryHooks(hooks ...resilience.OnRetryFunc) resilience.OnRetryFunc {
	return func(ctx context.Context, state resilience.RetryState, delay time.Duration) {
		for _, h := range hooks {
			if h != nil {
				h(ctx, state, delay)
			}
		}
	}
}

// authorized wraps one attempt with credential injection and bounded
// re-authorization. A rejection that survives every re-authorization is
// returned as an AuthError.
func authorized[T any](c *Client, meta observe.CallMeta, retry *resilience.Retry, skipAuth bool, call func(context.Context) (T, error)) func(context.Context) (T, error) {
	if c.config.Tokens == nil || skipAuth {
		return call
	}
	return func(ctx context.Context) (T, error) {
		var zero T
		for reauth := 0; ; reauth++ {
			tok, err := c.token(ctx, meta, retry)
			if err != nil {
				return zero, err
			}

			v, err := call(auth.WithToken(ctx, tok))
			if err == nil || !resilience.IsAuthRejection(err) {
				return v, err
			}
			if reauth >= c.config.MaxAuthRetries {
				if resilience.IsAuth(err) {
					return zero, err
				}
				return zero, resilience.Auth(err)
			}

			c.config.Middleware.Logger().WithCall(meta).Warn(ctx, "credential rejected, re-authorizing",
				observe.Field{Key: "reauth", Value: reauth + 1},
				observe.Field{Key: "error", Value: err.Error()},
			)
			c.config.Tokens.Reject(tok)
		}
	}
}

// token fetches the call's credential. A fetch whose cause the retry policy
// classifies as retryable, such as a 503 from a metadata server, is retried
// up to MaxAuthRetries times with the retry's backoff and clock. The final
// failure is returned as the cache reported it, an AuthError.
func (c *Client) token(ctx context.Context, meta observe.CallMeta, retry *resilience.Retry) (*auth.Token, error) {
	cfg := retry.Config()
	for attempt := 1; ; attempt++ {
		tok, err := c.config.Tokens.Token(ctx)
		if err == nil {
			return tok, nil
		}
		if attempt > c.config.MaxAuthRetries || ctx.Err() != nil || !fetchRetryable(cfg.Policy, err) {
			return nil, err
		}

		delay := cfg.Backoff.NextDelay(attempt)
		c.config.Middleware.Logger().WithCall(meta).Warn(ctx, "token fetch failed, retrying",
			observe.Field{Key: "attempt", Value: attempt},
			observe.Field{Key: "delay_ms", Value: delay.Milliseconds()},
			observe.Field{Key: "error", Value: err.Error()},
		)
		if serr := cfg.Clock.Sleep(ctx, delay); serr != nil {
			cause := ctx.Err()
			if cause == nil {
				cause = serr
			}
			return nil, &resilience.AbortedError{Cause: cause, Last: err}
		}
	}
}

// fetchRetryable classifies the provider failure underneath the AuthError
// the token cache reports.
func fetchRetryable(policy resilience.RetryPolicy, err error) bool {
	var authErr *resilience.AuthError
	if !errors.As(err, &authErr) || authErr.Err == nil {
		return false
	}
	return policy.Classify(authErr.Err) == resilience.Retryable
}
