package invoke

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonwraymond/callkit/auth"
	"github.com/jonwraymond/callkit/lro"
	"github.com/jonwraymond/callkit/resilience"
)

// instantClock advances virtual time instead of sleeping and records waits.
type instantClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newInstantClock() *instantClock {
	return &instantClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *instantClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *instantClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	c.sleeps = append(c.sleeps, d)
	return nil
}

func (c *instantClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}

// rotatingTokens returns a cache over a provider issuing token-1, token-2, ...
func rotatingTokens(fetches *atomic.Int32) *auth.TokenCache {
	return auth.NewTokenCache(auth.TokenProviderFunc(func(ctx context.Context) (*auth.Token, error) {
		return &auth.Token{Value: fmt.Sprintf("token-%d", fetches.Add(1))}, nil
	}), auth.TokenCacheConfig{})
}

func testRetry(clock resilience.Clock, attempts int) *resilience.Retry {
	return resilience.NewRetry(resilience.RetryConfig{
		Policy:  resilience.AttemptLimit(attempts),
		Backoff: resilience.ConstantBackoff(100 * time.Millisecond),
		Clock:   clock,
	})
}

func newTestClient(t *testing.T, cfg ClientConfig) *Client {
	t.Helper()
	if cfg.Service == "" {
		cfg.Service = "storage.v1.Buckets"
	}
	if cfg.Retry == nil {
		cfg.Retry = testRetry(newInstantClock(), 3)
	}
	if cfg.Polling == nil {
		cfg.Polling = lro.NewPollingPolicy(lro.PollingConfig{Interval: 50 * time.Millisecond, MaxPolls: 10})
	}
	c, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return c
}
