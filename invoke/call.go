package invoke

import (
	"context"

	"github.com/jonwraymond/callkit/observe"
	"github.com/jonwraymond/callkit/resilience"
)

// Call runs call as method of the client's service. Each attempt receives a
// context carrying the token, the request ID and the call metadata. The
// result is exactly one value or one typed error from the resilience
// taxonomy.
func Call[T any](ctx context.Context, c *Client, method string, call func(context.Context) (T, error), opts ...CallOption) (T, error) {
	var result T
	if method == "" {
		return result, ErrMissingMethod
	}

	o := applyOptions(opts)
	ctx, meta, retry := c.begin(ctx, method, o)

	release, err := c.acquire(ctx)
	if err != nil {
		return result, err
	}
	defer release()

	attempt := authorized(c, meta, retry, o.noAuth, call)
	err = c.config.Middleware.Wrap(func(ctx context.Context, meta observe.CallMeta) error {
		v, err := resilience.Do(ctx, retry, attempt)
		if err != nil {
			return err
		}
		result = v
		return nil
	})(ctx, meta)
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}

// Exec is Call for methods without a result.
func Exec(ctx context.Context, c *Client, method string, call func(context.Context) error, opts ...CallOption) error {
	_, err := Call(ctx, c, method, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, call(ctx)
	}, opts...)
	return err
}
