// Package paging turns token-continued list calls into Go iterators.
//
// A Paginator wraps a FetchFunc that returns one page and the token for the
// next. ByPage yields pages; ByItem flattens them. Both are lazy: exactly one
// fetch happens per page pulled, and an empty continuation token ends the
// sequence without another fetch. Each range over an iterator starts again
// from the first page.
//
// Basic usage:
//
//	p := paging.New(func(ctx context.Context, token string) (paging.Page[*Bucket], error) {
//	    resp, err := client.ListBuckets(ctx, &ListBucketsRequest{PageToken: token})
//	    if err != nil {
//	        return paging.Page[*Bucket]{}, err
//	    }
//	    return paging.Page[*Bucket]{Items: resp.Buckets, NextToken: resp.NextPageToken}, nil
//	})
//
//	for bucket, err := range p.ByItem(ctx) {
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Println(bucket.Name)
//	}
package paging

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/jonwraymond/callkit/resilience"
)

// Sentinel errors for pagination.
var (
	// ErrRepeatedToken is returned when a page's continuation token was already seen.
	ErrRepeatedToken = errors.New("paging: repeated page token")

	// ErrMaxPages is returned when more pages remain after the page limit.
	ErrMaxPages = errors.New("paging: page limit reached")
)

// Page is one page of results. An empty NextToken marks the last page.
type Page[T any] struct {
	Items     []T
	NextToken string
}

// Last reports whether this is the final page.
func (p Page[T]) Last() bool {
	return p.NextToken == ""
}

// FetchFunc fetches the page identified by token. The first page is requested
// with the start token, which defaults to "".
type FetchFunc[T any] func(ctx context.Context, token string) (Page[T], error)

type options struct {
	startToken  string
	maxPages    int
	retry       *resilience.Retry
	allowRepeat bool
}

// Option configures a Paginator.
type Option func(*options)

// WithStartToken begins iteration at token instead of the first page.
func WithStartToken(token string) Option {
	return func(o *options) {
		o.startToken = token
	}
}

// WithMaxPages stops iteration with ErrMaxPages once n pages were yielded and
// more remain. Zero means no limit.
func WithMaxPages(n int) Option {
	return func(o *options) {
		if n < 0 {
			n = 0
		}
		o.maxPages = n
	}
}

// WithRetry runs each page fetch under r.
func WithRetry(r *resilience.Retry) Option {
	return func(o *options) {
		o.retry = r
	}
}

// WithRepeatedTokens disables repeated-token detection, for backends that
// legitimately reuse a token.
func WithRepeatedTokens() Option {
	return func(o *options) {
		o.allowRepeat = true
	}
}

// Paginator iterates a paged collection. It holds no iteration state, so a
// Paginator may be ranged over many times and from many goroutines; each
// range is an independent, forward-only walk.
type Paginator[T any] struct {
	fetch FetchFunc[T]
	opts  options
}

// New creates a Paginator over fetch.
func New[T any](fetch FetchFunc[T], opts ...Option) *Paginator[T] {
	p := &Paginator[T]{fetch: fetch}
	for _, opt := range opts {
		opt(&p.opts)
	}
	return p
}

// ByPage returns an iterator over pages. After a fetch error the iterator
// yields the zero Page with the error and stops.
func (p *Paginator[T]) ByPage(ctx context.Context) iter.Seq2[Page[T], error] {
	return func(yield func(Page[T], error) bool) {
		token := p.opts.startToken
		seen := make(map[string]struct{})
		pages := 0

		for {
			if p.opts.maxPages > 0 && pages >= p.opts.maxPages {
				yield(Page[T]{}, fmt.Errorf("%w: %d", ErrMaxPages, p.opts.maxPages))
				return
			}
			if err := ctx.Err(); err != nil {
				yield(Page[T]{}, err)
				return
			}

			page, err := p.fetchPage(ctx, token)
			if err != nil {
				yield(Page[T]{}, err)
				return
			}
			pages++

			if !page.Last() && !p.opts.allowRepeat {
				if _, dup := seen[page.NextToken]; dup || page.NextToken == token {
					if !yield(page, nil) {
						return
					}
					yield(Page[T]{}, fmt.Errorf("%w: %q", ErrRepeatedToken, page.NextToken))
					return
				}
				seen[token] = struct{}{}
			}

			if !yield(page, nil) || page.Last() {
				return
			}
			token = page.NextToken
		}
	}
}

// ByItem returns an iterator over individual items, in page order. After a
// fetch error the iterator yields the zero T with the error and stops.
func (p *Paginator[T]) ByItem(ctx context.Context) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for page, err := range p.ByPage(ctx) {
			if err != nil {
				var zero T
				yield(zero, err)
				return
			}
			for _, item := range page.Items {
				if !yield(item, nil) {
					return
				}
			}
		}
	}
}

// All drains the paginator into a slice. On error it returns the items
// collected so far together with the error.
func (p *Paginator[T]) All(ctx context.Context) ([]T, error) {
	var items []T
	for item, err := range p.ByItem(ctx) {
		if err != nil {
			return items, err
		}
		items = append(items, item)
	}
	return items, nil
}

func (p *Paginator[T]) fetchPage(ctx context.Context, token string) (Page[T], error) {
	if p.opts.retry == nil {
		return p.fetch(ctx, token)
	}
	return resilience.Do(ctx, p.opts.retry, func(ctx context.Context) (Page[T], error) {
		return p.fetch(ctx, token)
	})
}
