package resilience

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func noJitterBackoff() BackoffPolicy {
	return NewExponentialBackoff(BackoffConfig{
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2,
	})
}

func TestNewRetry_Defaults(t *testing.T) {
	r := NewRetry(RetryConfig{})
	cfg := r.Config()

	if cfg.Policy == nil {
		t.Error("Policy is nil, want AttemptLimit(3)")
	}
	if cfg.Backoff == nil {
		t.Error("Backoff is nil, want exponential default")
	}
	if cfg.Clock == nil {
		t.Error("Clock is nil, want SystemClock")
	}
	if cfg.Throttler != nil {
		t.Error("Throttler should default to nil")
	}
}

func TestRetry_SuccessOnFirstAttempt(t *testing.T) {
	clock := newFakeClock()
	r := NewRetry(RetryConfig{Policy: AttemptLimit(3), Clock: clock})

	attempts := 0
	err := r.Execute(context.Background(), func(ctx context.Context) error {
		attempts++
		return nil
	})

	if err != nil {
		t.Errorf("Execute() error = %v", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
	if len(clock.Sleeps()) != 0 {
		t.Errorf("sleeps = %v, want none", clock.Sleeps())
	}
}

func TestRetry_SuccessOnRetry(t *testing.T) {
	clock := newFakeClock()
	r := NewRetry(RetryConfig{Policy: AttemptLimit(3), Backoff: noJitterBackoff(), Clock: clock})

	attempts := 0
	got, err := Do(context.Background(), r, func(ctx context.Context) (string, error) {
		attempts++
		if attempts < 3 {
			return "", Transient(errBackend)
		}
		return "ok", nil
	})

	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if got != "ok" {
		t.Errorf("Do() = %q, want ok", got)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

// Three attempts, delays of 100ms and 200ms, then PolicyExhaustedError.
func TestExecute_ExhaustsAfterMaxAttempts(t *testing.T) {
	clock := newFakeClock()

	var attemptTimes []time.Duration
	start := clock.Now()
	_, err := Execute(context.Background(), func(ctx context.Context) (int, error) {
		attemptTimes = append(attemptTimes, clock.Now().Sub(start))
		return 0, Transient(errBackend)
	}, AttemptLimit(3), noJitterBackoff(), nil, WithClock(clock))

	var exhausted *PolicyExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("Execute() error = %v, want PolicyExhaustedError", err)
	}
	if exhausted.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", exhausted.Attempts)
	}
	if !errors.Is(err, ErrPolicyExhausted) {
		t.Error("errors.Is(err, ErrPolicyExhausted) = false")
	}
	if !errors.Is(err, errBackend) {
		t.Error("last error not retained as cause")
	}

	wantTimes := []time.Duration{0, 100 * time.Millisecond, 300 * time.Millisecond}
	if len(attemptTimes) != len(wantTimes) {
		t.Fatalf("attempts = %d, want %d", len(attemptTimes), len(wantTimes))
	}
	for i, w := range wantTimes {
		if attemptTimes[i] != w {
			t.Errorf("attempt %d at %v, want %v", i+1, attemptTimes[i], w)
		}
	}

	wantSleeps := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}
	sleeps := clock.Sleeps()
	if len(sleeps) != len(wantSleeps) {
		t.Fatalf("sleeps = %v, want %v", sleeps, wantSleeps)
	}
	for i, w := range wantSleeps {
		if sleeps[i] != w {
			t.Errorf("sleep %d = %v, want %v", i, sleeps[i], w)
		}
	}
}

func TestExecute_PermanentlyFailingAttemptedExactlyN(t *testing.T) {
	for _, n := range []int{1, 2, 5, 8} {
		attempts := 0
		_, err := Execute(context.Background(), func(ctx context.Context) (int, error) {
			attempts++
			return 0, Transient(errBackend)
		}, AttemptLimit(n), ConstantBackoff(time.Millisecond), nil, WithClock(newFakeClock()))

		if !errors.Is(err, ErrPolicyExhausted) {
			t.Errorf("n=%d: error = %v, want ErrPolicyExhausted", n, err)
		}
		if attempts != n {
			t.Errorf("n=%d: attempts = %d", n, attempts)
		}
	}
}

func TestExecute_FatalErrorNotRetried(t *testing.T) {
	badRequest := errors.New("bad request")

	attempts := 0
	_, err := Execute(context.Background(), func(ctx context.Context) (int, error) {
		attempts++
		return 0, badRequest
	}, AttemptLimit(5), noJitterBackoff(), nil, WithClock(newFakeClock()))

	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
	var permanent *PermanentError
	if !errors.As(err, &permanent) {
		t.Fatalf("error = %T, want *PermanentError", err)
	}
	if !errors.Is(err, badRequest) {
		t.Error("original error not retained")
	}
}

func TestExecute_AuthErrorPassesThrough(t *testing.T) {
	_, err := Execute(context.Background(), func(ctx context.Context) (int, error) {
		return 0, Auth(errors.New("token revoked"))
	}, AttemptLimit(5), noJitterBackoff(), nil, WithClock(newFakeClock()))

	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("error = %v, want *AuthError", err)
	}
	var permanent *PermanentError
	if errors.As(err, &permanent) {
		t.Error("AuthError should not be rewrapped as PermanentError")
	}
}

func TestExecute_ThrottledBeforePolicy(t *testing.T) {
	throttler := NewRetryThrottler(ThrottlerConfig{MaxTokens: 4, FailureCost: 1})

	attempts := 0
	_, err := Execute(context.Background(), func(ctx context.Context) (int, error) {
		attempts++
		return 0, Transient(errBackend)
	}, AttemptLimit(10), ConstantBackoff(time.Millisecond), throttler, WithClock(newFakeClock()))

	var throttled *ThrottledError
	if !errors.As(err, &throttled) {
		t.Fatalf("error = %v, want ThrottledError", err)
	}
	if errors.Is(err, ErrPolicyExhausted) {
		t.Error("ThrottledError must be distinguishable from PolicyExhaustedError")
	}
	// Threshold 2: tokens 4 → 3 (admit) → 2 (refuse).
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
	if !errors.Is(err, errBackend) {
		t.Error("last error not retained as cause")
	}
}

func TestExecute_SuccessReplenishesThrottler(t *testing.T) {
	throttler := NewRetryThrottler(ThrottlerConfig{MaxTokens: 10, SuccessCredit: 0.5})
	throttler.OnFailure()
	before := throttler.Tokens()

	_, err := Execute(context.Background(), func(ctx context.Context) (int, error) {
		return 1, nil
	}, AttemptLimit(1), nil, throttler)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if got := throttler.Tokens(); got != before+0.5 {
		t.Errorf("Tokens() = %f, want %f", got, before+0.5)
	}
}

func TestExecute_PermanentFailureDoesNotDrainThrottler(t *testing.T) {
	throttler := NewRetryThrottler(ThrottlerConfig{MaxTokens: 10})

	_, _ = Execute(context.Background(), func(ctx context.Context) (int, error) {
		return 0, Permanent(errBackend)
	}, AttemptLimit(3), nil, throttler, WithClock(newFakeClock()))

	if got := throttler.Tokens(); got != 10 {
		t.Errorf("Tokens() = %f, want 10", got)
	}
}

func TestExecute_ContextCancellationDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	attempts := 0
	_, err := Execute(ctx, func(ctx context.Context) (int, error) {
		attempts++
		return 0, Transient(errBackend)
	}, AttemptLimit(10), ConstantBackoff(time.Minute), nil)

	if !errors.Is(err, ErrAborted) {
		t.Errorf("error = %v, want ErrAborted", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if !errors.Is(err, errBackend) {
		t.Error("last attempt error not retained")
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("Execute() took %v, want prompt return on cancel", elapsed)
	}
}

func TestExecute_ElapsedBudget(t *testing.T) {
	clock := newFakeClock()

	attempts := 0
	_, err := Execute(context.Background(), func(ctx context.Context) (int, error) {
		attempts++
		clock.Advance(400 * time.Millisecond)
		return 0, Transient(errBackend)
	}, ElapsedLimit(time.Second), ConstantBackoff(100*time.Millisecond), nil, WithClock(clock))

	if !errors.Is(err, ErrPolicyExhausted) {
		t.Fatalf("error = %v, want ErrPolicyExhausted", err)
	}
	// 400 → 900 → 1400ms elapsed at the end of attempts 1..3.
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestExecute_OnRetryHook(t *testing.T) {
	var calls []RetryState
	var delays []time.Duration

	_, _ = Execute(context.Background(), func(ctx context.Context) (int, error) {
		return 0, Transient(errBackend)
	}, AttemptLimit(3), noJitterBackoff(), nil,
		WithClock(newFakeClock()),
		WithOnRetry(func(ctx context.Context, state RetryState, delay time.Duration) {
			calls = append(calls, state)
			delays = append(delays, delay)
		}))

	if len(calls) != 2 {
		t.Fatalf("OnRetry calls = %d, want 2", len(calls))
	}
	if calls[0].Attempts != 1 || calls[1].Attempts != 2 {
		t.Errorf("OnRetry attempts = %d,%d, want 1,2", calls[0].Attempts, calls[1].Attempts)
	}
	if delays[1] != 200*time.Millisecond {
		t.Errorf("second delay = %v, want 200ms", delays[1])
	}
}

func TestExecute_AttemptTimeoutIsRetried(t *testing.T) {
	var attempts atomic.Int32
	got, err := Execute(context.Background(), func(ctx context.Context) (string, error) {
		if attempts.Add(1) == 1 {
			<-ctx.Done()
			return "", ctx.Err()
		}
		return "ok", nil
	}, AttemptLimit(3), ConstantBackoff(time.Millisecond), nil,
		WithAttemptTimeout(20*time.Millisecond))

	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if got != "ok" {
		t.Errorf("Execute() = %q, want ok", got)
	}
	if attempts.Load() != 2 {
		t.Errorf("attempts = %d, want 2", attempts.Load())
	}
}

func TestExecute_RateLimiterFailFast(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 0.001, Burst: 1})
	throttler := NewRetryThrottler(ThrottlerConfig{MaxTokens: 10})

	attempts := 0
	_, err := Execute(context.Background(), func(ctx context.Context) (int, error) {
		attempts++
		return 0, Transient(errBackend)
	}, AttemptLimit(3), ConstantBackoff(time.Millisecond), throttler,
		WithClock(newFakeClock()), WithRateLimiter(rl))

	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 (later attempts refused by limiter)", attempts)
	}
	var exhausted *PolicyExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("error = %v, want PolicyExhaustedError", err)
	}
	if exhausted.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", exhausted.Attempts)
	}
	if !errors.Is(err, ErrRateLimitExceeded) || !errors.Is(err, errBackend) {
		t.Errorf("error = %v, want limiter refusal and last backend error as causes", err)
	}
	if got := throttler.Tokens(); got != 9 {
		t.Errorf("throttler tokens = %v, want 9 (refusals do not drain)", got)
	}
}

func TestExecute_RateLimiterRefusalFirstAttempt(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 0.001, Burst: 1})
	rl.Allow()

	attempts := 0
	_, err := Execute(context.Background(), func(ctx context.Context) (int, error) {
		attempts++
		return 1, nil
	}, AttemptLimit(2), ConstantBackoff(time.Millisecond), nil,
		WithClock(newFakeClock()), WithRateLimiter(rl))

	if attempts != 0 {
		t.Errorf("attempts = %d, want 0", attempts)
	}
	if !errors.Is(err, ErrPolicyExhausted) || !errors.Is(err, ErrRateLimitExceeded) {
		t.Errorf("error = %v, want PolicyExhaustedError caused by ErrRateLimitExceeded", err)
	}
}

func TestRetry_With(t *testing.T) {
	base := NewRetry(RetryConfig{Policy: AttemptLimit(2)})
	derived := base.With(WithPolicy(AttemptLimit(7)), WithAttemptTimeout(time.Second))

	if p, ok := base.Config().Policy.(*Policy); !ok || p.Config().MaxAttempts != 2 {
		t.Error("With() mutated the base Retry")
	}
	if p, ok := derived.Config().Policy.(*Policy); !ok || p.Config().MaxAttempts != 7 {
		t.Error("With() did not apply the policy override")
	}
	if derived.Config().AttemptTimeout != time.Second {
		t.Errorf("AttemptTimeout = %v, want 1s", derived.Config().AttemptTimeout)
	}
}
