package invoke

import "github.com/jonwraymond/callkit/resilience"

type callOptions struct {
	retry     *resilience.Retry
	retryOpts []resilience.Option
	noAuth    bool
}

// CallOption customizes one Call, StartOperation or List.
type CallOption func(*callOptions)

// WithRetry replaces the client's retry loop for this call.
func WithRetry(r *resilience.Retry) CallOption {
	return func(o *callOptions) { o.retry = r }
}

// WithRetryOptions overrides parts of the retry loop for this call, e.g.
// resilience.WithPolicy for a non-idempotent method.
func WithRetryOptions(opts ...resilience.Option) CallOption {
	return func(o *callOptions) { o.retryOpts = append(o.retryOpts, opts...) }
}

// WithoutAuth skips token injection for this call.
func WithoutAuth() CallOption {
	return func(o *callOptions) { o.noAuth = true }
}

func applyOptions(opts []CallOption) callOptions {
	var o callOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
