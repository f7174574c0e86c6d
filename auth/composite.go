package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ChainProvider tries multiple providers in order and returns the first
// token produced. Once a provider succeeds it is remembered and tried first.
type ChainProvider struct {
	// Providers is the ordered list of credential sources to try.
	Providers []TokenProvider

	mu   sync.Mutex
	last int // index of the last provider that succeeded, or -1
}

// NewChainProvider creates a chain of credential sources.
func NewChainProvider(providers ...TokenProvider) *ChainProvider {
	return &ChainProvider{Providers: providers, last: -1}
}

// Token implements TokenProvider. If every provider fails, the error matches
// ErrNoProvider and joins each provider's failure.
func (c *ChainProvider) Token(ctx context.Context) (*Token, error) {
	if len(c.Providers) == 0 {
		return nil, ErrNoProvider
	}

	c.mu.Lock()
	last := c.last
	c.mu.Unlock()

	errs := []error{ErrNoProvider}
	if last >= 0 && last < len(c.Providers) {
		tok, err := c.Providers[last].Token(ctx)
		if err == nil {
			return tok, nil
		}
		errs = append(errs, fmt.Errorf("provider %d: %w", last, err))
	}

	for i, p := range c.Providers {
		if i == last {
			continue
		}
		tok, err := p.Token(ctx)
		if err != nil {
			// Stop early once the caller gave up
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			errs = append(errs, fmt.Errorf("provider %d: %w", i, err))
			continue
		}

		c.mu.Lock()
		c.last = i
		c.mu.Unlock()
		return tok, nil
	}

	return nil, errors.Join(errs...)
}

// Ensure ChainProvider implements TokenProvider
var _ TokenProvider = (*ChainProvider)(nil)
