package auth

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jonwraymond/callkit/resilience"
)

// TokenCacheConfig configures a TokenCache.
type TokenCacheConfig struct {
	// SafetyMargin is how long before expiry a token stops being served.
	// Default: 2 minutes
	SafetyMargin time.Duration

	// Clock supplies the current time.
	// Default: resilience.SystemClock()
	Clock resilience.Clock
}

// cachedToken is a token plus the instant it was fetched.
type cachedToken struct {
	token     *Token
	fetchedAt time.Time
}

// TokenCache serves a provider's token until it nears expiry, then refreshes
// it. At most one fetch is in flight at a time; concurrent callers wait for
// that fetch and all observe its outcome.
type TokenCache struct {
	provider TokenProvider
	config   TokenCacheConfig

	mu     sync.Mutex
	cached *cachedToken

	sfGroup singleflight.Group
	fetches atomic.Int64
}

const flightKey = "token"

// NewTokenCache creates a cache in front of provider.
func NewTokenCache(provider TokenProvider, config TokenCacheConfig) *TokenCache {
	// Apply defaults
	if config.SafetyMargin == 0 {
		config.SafetyMargin = 2 * time.Minute
	}
	if config.SafetyMargin < 0 {
		config.SafetyMargin = 0
	}
	if config.Clock == nil {
		config.Clock = resilience.SystemClock()
	}

	return &TokenCache{
		provider: provider,
		config:   config,
	}
}

// Token returns the cached token, fetching a new one when the cache is empty
// or the token is within the safety margin of expiry. Fetch failures are
// returned as *resilience.AuthError. If ctx ends while waiting, Token returns
// ctx.Err() and the in-flight fetch continues for other callers.
func (c *TokenCache) Token(ctx context.Context) (*Token, error) {
	if tok, ok := c.fresh(); ok {
		return tok, nil
	}

	ch := c.sfGroup.DoChan(flightKey, func() (any, error) {
		return c.fetch(context.WithoutCancel(ctx))
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Token).Clone(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Invalidate drops the cached token so the next Token call refetches. Use it
// after the backend rejects a token that has not yet expired. A fetch already
// in flight is joined rather than duplicated.
func (c *TokenCache) Invalidate() {
	c.mu.Lock()
	c.cached = nil
	c.mu.Unlock()
}

// Reject invalidates the cache only if it still holds rejected, so that
// concurrent calls rejecting the same token cause a single refetch. It
// reports whether the cache was cleared.
func (c *TokenCache) Reject(rejected *Token) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cached == nil || rejected == nil || c.cached.token.Value != rejected.Value {
		return false
	}
	c.cached = nil
	return true
}

// Peek returns the cached token and when it was fetched without fetching.
// It reports false when nothing is cached; the token may be stale.
func (c *TokenCache) Peek() (*Token, time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cached == nil {
		return nil, time.Time{}, false
	}
	return c.cached.token.Clone(), c.cached.fetchedAt, true
}

// Fetches returns how many times the underlying provider was called.
func (c *TokenCache) Fetches() int64 {
	return c.fetches.Load()
}

// Config returns the effective cache configuration.
func (c *TokenCache) Config() TokenCacheConfig {
	return c.config
}

func (c *TokenCache) fresh() (*Token, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cached == nil {
		return nil, false
	}
	if c.cached.token.ExpiresWithin(c.config.Clock.Now(), c.config.SafetyMargin) {
		return nil, false
	}
	return c.cached.token.Clone(), true
}

func (c *TokenCache) fetch(ctx context.Context) (*Token, error) {
	// A caller that saw a stale cache may start a flight just after another
	// flight stored a fresh token.
	if tok, ok := c.fresh(); ok {
		return tok, nil
	}

	c.fetches.Add(1)
	tok, err := c.provider.Token(ctx)
	if err != nil {
		if resilience.IsAuth(err) {
			return nil, err
		}
		return nil, resilience.Auth(fmt.Errorf("%w: %w", ErrProviderFailed, err))
	}
	if tok == nil || tok.Value == "" {
		return nil, resilience.Auth(ErrEmptyToken)
	}

	c.mu.Lock()
	c.cached = &cachedToken{token: tok.Clone(), fetchedAt: c.config.Clock.Now()}
	c.mu.Unlock()

	return tok, nil
}

// Ensure TokenCache implements TokenProvider
var _ TokenProvider = (*TokenCache)(nil)
