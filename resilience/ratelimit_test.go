package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNewRateLimiter(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{})

	if rl.config.Rate != 100 {
		t.Errorf("Rate = %f, want 100", rl.config.Rate)
	}
	if rl.config.Burst != 10 {
		t.Errorf("Burst = %d, want 10", rl.config.Burst)
	}
	if rl.config.MaxWait != time.Second {
		t.Errorf("MaxWait = %v, want 1s", rl.config.MaxWait)
	}
}

func TestRateLimiter_Allow(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		Rate:  10, // 10 per second
		Burst: 5,
	})

	// Should allow burst
	for i := 0; i < 5; i++ {
		if !rl.Allow() {
			t.Errorf("Allow() = false on attempt %d, want true", i)
		}
	}

	// Should deny after burst
	if rl.Allow() {
		t.Error("Allow() = true after burst exhausted, want false")
	}
}

func TestRateLimiter_AcquireFailFast(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 1, Burst: 1})

	if err := rl.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if err := rl.Acquire(context.Background()); !errors.Is(err, ErrRateLimitExceeded) {
		t.Errorf("Acquire() error = %v, want ErrRateLimitExceeded", err)
	}
}

func TestRateLimiter_AcquireWaits(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		Rate:        100,
		Burst:       1,
		WaitOnLimit: true,
		MaxWait:     time.Second,
	})

	if err := rl.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	start := time.Now()
	if err := rl.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire() after wait error = %v", err)
	}
	if elapsed := time.Since(start); elapsed < 5*time.Millisecond {
		t.Errorf("Acquire() returned after %v, want a wait for refill", elapsed)
	}
}

func TestRateLimiter_AcquireMaxWaitExceeded(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		Rate:        0.1,
		Burst:       1,
		WaitOnLimit: true,
		MaxWait:     10 * time.Millisecond,
	})

	_ = rl.Acquire(context.Background())
	if err := rl.Acquire(context.Background()); !errors.Is(err, ErrRateLimitExceeded) {
		t.Errorf("Acquire() error = %v, want ErrRateLimitExceeded", err)
	}
}

func TestRateLimiter_AcquireContextCancelled(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		Rate:        0.1,
		Burst:       1,
		WaitOnLimit: true,
		MaxWait:     time.Minute,
	})
	_ = rl.Acquire(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := rl.Acquire(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Acquire() error = %v, want context.Canceled", err)
	}
}
