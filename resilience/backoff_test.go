package resilience

import (
	"math/rand/v2"
	"testing"
	"time"
)

func TestNewExponentialBackoff_Defaults(t *testing.T) {
	b := NewExponentialBackoff(BackoffConfig{})
	cfg := b.Config()

	if cfg.InitialDelay != 100*time.Millisecond {
		t.Errorf("InitialDelay = %v, want 100ms", cfg.InitialDelay)
	}
	if cfg.MaxDelay != 30*time.Second {
		t.Errorf("MaxDelay = %v, want 30s", cfg.MaxDelay)
	}
	if cfg.Multiplier != 2.0 {
		t.Errorf("Multiplier = %f, want 2.0", cfg.Multiplier)
	}
	if cfg.Jitter != 0 {
		t.Errorf("Jitter = %f, want 0", cfg.Jitter)
	}
	if cfg.Rand == nil {
		t.Error("Rand is nil, want default source")
	}
}

func TestExponentialBackoff_NoJitter(t *testing.T) {
	b := NewExponentialBackoff(BackoffConfig{
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2,
	})

	want := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
		time.Second,
		time.Second,
	}
	for i, w := range want {
		if got := b.NextDelay(i + 1); got != w {
			t.Errorf("NextDelay(%d) = %v, want %v", i+1, got, w)
		}
	}
}

func TestExponentialBackoff_JitterBounds(t *testing.T) {
	tests := []struct {
		name string
		u    float64
		want time.Duration
	}{
		{"low edge", 0, 80 * time.Millisecond},
		{"midpoint", 0.5, 100 * time.Millisecond},
		{"high edge", 0.75, 110 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewExponentialBackoff(BackoffConfig{
				InitialDelay: 100 * time.Millisecond,
				MaxDelay:     time.Second,
				Multiplier:   2,
				Jitter:       0.2,
				Rand:         fixedRand(tt.u),
			})
			if got := b.NextDelay(1); got != tt.want {
				t.Errorf("NextDelay(1) = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExponentialBackoff_NeverExceedsMax(t *testing.T) {
	b := NewExponentialBackoff(BackoffConfig{
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   3,
		Jitter:       1,
		Rand:         rand.New(rand.NewPCG(1, 2)),
	})

	for attempt := 0; attempt < 200; attempt++ {
		d := b.NextDelay(attempt)
		if d < 0 || d > time.Second {
			t.Fatalf("NextDelay(%d) = %v, want within [0, 1s]", attempt, d)
		}
	}
}

func TestExponentialBackoff_HugeAttemptDoesNotOverflow(t *testing.T) {
	b := NewExponentialBackoff(BackoffConfig{
		InitialDelay: time.Second,
		MaxDelay:     time.Minute,
		Multiplier:   10,
	})
	if got := b.NextDelay(10_000); got != time.Minute {
		t.Errorf("NextDelay(10000) = %v, want 1m", got)
	}
}

func TestExponentialBackoff_Reproducible(t *testing.T) {
	newBackoff := func() *ExponentialBackoff {
		return NewExponentialBackoff(BackoffConfig{
			InitialDelay: 50 * time.Millisecond,
			MaxDelay:     5 * time.Second,
			Multiplier:   1.5,
			Jitter:       0.5,
			Rand:         rand.New(rand.NewPCG(42, 7)),
		})
	}

	a, b := newBackoff(), newBackoff()
	for attempt := 1; attempt <= 20; attempt++ {
		if da, db := a.NextDelay(attempt), b.NextDelay(attempt); da != db {
			t.Fatalf("attempt %d: %v != %v with identical seeds", attempt, da, db)
		}
	}
}

func TestExponentialBackoff_JitterClamped(t *testing.T) {
	b := NewExponentialBackoff(BackoffConfig{Jitter: 5})
	if got := b.Config().Jitter; got != 1 {
		t.Errorf("Jitter = %f, want clamped to 1", got)
	}
}

func TestConstantBackoff(t *testing.T) {
	b := ConstantBackoff(10 * time.Millisecond)
	for _, attempt := range []int{1, 3, 10} {
		if got := b.NextDelay(attempt); got != 10*time.Millisecond {
			t.Errorf("NextDelay(%d) = %v, want 10ms", attempt, got)
		}
	}
}

func TestLinearBackoff(t *testing.T) {
	b := LinearBackoff(10*time.Millisecond, 25*time.Millisecond)

	if got := b.NextDelay(1); got != 10*time.Millisecond {
		t.Errorf("NextDelay(1) = %v, want 10ms", got)
	}
	if got := b.NextDelay(2); got != 20*time.Millisecond {
		t.Errorf("NextDelay(2) = %v, want 20ms", got)
	}
	if got := b.NextDelay(3); got != 25*time.Millisecond {
		t.Errorf("NextDelay(3) = %v, want capped 25ms", got)
	}
}
