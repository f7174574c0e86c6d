package invoke

import (
	"context"

	"github.com/jonwraymond/callkit/paging"
)

// List returns a Paginator whose page fetches each run as a full call:
// credentials, retry loop and telemetry per page. Nothing is fetched until
// the Paginator is ranged over.
func List[T any](c *Client, method string, fetch paging.FetchFunc[T], opts ...ListOption) *paging.Paginator[T] {
	var lo listOptions
	for _, opt := range opts {
		opt(&lo)
	}

	return paging.New(func(ctx context.Context, token string) (paging.Page[T], error) {
		return Call(ctx, c, method, func(ctx context.Context) (paging.Page[T], error) {
			return fetch(ctx, token)
		}, lo.call...)
	}, lo.paging...)
}

type listOptions struct {
	call   []CallOption
	paging []paging.Option
}

// ListOption configures List.
type ListOption func(*listOptions)

// WithCallOptions applies opts to every page fetch.
func WithCallOptions(opts ...CallOption) ListOption {
	return func(o *listOptions) { o.call = append(o.call, opts...) }
}

// WithPagingOptions configures the Paginator, e.g. paging.WithMaxPages.
// Page fetches already retry, so paging.WithRetry is not needed.
func WithPagingOptions(opts ...paging.Option) ListOption {
	return func(o *listOptions) { o.paging = append(o.paging, opts...) }
}
