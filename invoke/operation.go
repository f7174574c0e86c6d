package invoke

import (
	"context"

	"github.com/jonwraymond/callkit/lro"
	"github.com/jonwraymond/callkit/observe"
	"github.com/jonwraymond/callkit/resilience"
)

// StartOperation runs the initiating call of a long-running operation and
// returns a Poller for it. The initiating call and every status check run
// with the client's credentials and retry loop; status checks are paced by
// the client's polling policy.
func StartOperation[T any](
	ctx context.Context,
	c *Client,
	method string,
	initiate lro.InitiateFunc[T],
	status lro.StatusFunc[T],
	opts ...CallOption,
) (*lro.Poller[T], error) {
	if method == "" {
		return nil, ErrMissingMethod
	}

	o := applyOptions(opts)
	ctx, meta, retry := c.begin(ctx, method, o)

	release, err := c.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	start := authorized[*lro.Operation[T]](c, meta, retry, o.noAuth, initiate)
	config, checkStatus := pollerConfig(c, meta, retry, o, status)

	var poller *lro.Poller[T]
	err = c.config.Middleware.Wrap(func(ctx context.Context, meta observe.CallMeta) error {
		p, err := lro.Start[T](ctx, start, checkStatus, config)
		if err != nil {
			return err
		}
		poller = p
		return nil
	})(ctx, meta)
	if err != nil {
		return nil, err
	}
	return poller, nil
}

// ResumeOperation returns a Poller for an operation started earlier, e.g.
// by another process that kept its name.
func ResumeOperation[T any](c *Client, method, name string, status lro.StatusFunc[T], opts ...CallOption) *lro.Poller[T] {
	o := applyOptions(opts)
	_, meta, retry := c.begin(context.Background(), method, o)

	config, checkStatus := pollerConfig(c, meta, retry, o, status)
	return lro.NewPoller(&lro.Operation[T]{Name: name}, checkStatus, config)
}

// pollerConfig builds the Poller configuration and the authorized status
// check. Status checks run under the caller's polling context, so the call
// metadata is re-attached to each one.
func pollerConfig[T any](c *Client, meta observe.CallMeta, retry *resilience.Retry, o callOptions, status lro.StatusFunc[T]) (lro.Config, lro.StatusFunc[T]) {
	config := lro.Config{
		Polling: c.config.Polling,
		Retry:   retry,
		OnPoll:  c.config.Middleware.PollHook(meta),
	}
	checkStatus := func(ctx context.Context, name string) (*lro.Operation[T], error) {
		ctx = withCallMeta(WithRequestID(ctx, meta.RequestID), meta)
		return authorized(c, meta, retry, o.noAuth, func(ctx context.Context) (*lro.Operation[T], error) {
			return status(ctx, name)
		})(ctx)
	}
	return config, checkStatus
}
