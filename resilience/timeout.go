package resilience

import (
	"context"
	"errors"
	"time"
)

// ExecuteWithTimeout runs call with its own deadline of d, independent of the
// retry loop's overall budget.
//
// If the attempt deadline fires while ctx is still live, the result is a
// TransientError wrapping ErrTimeout so the loop may retry it. If ctx itself
// ends first, ctx.Err() is returned. A non-positive d runs call directly.
func ExecuteWithTimeout[T any](ctx context.Context, d time.Duration, call func(context.Context) (T, error)) (T, error) {
	if d <= 0 {
		return call(ctx)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)

	go func() {
		v, err := call(attemptCtx)
		done <- result{value: v, err: err}
	}()

	var zero T
	select {
	case r := <-done:
		if r.err != nil && ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
			return zero, Transient(ErrTimeout)
		}
		return r.value, r.err
	case <-attemptCtx.Done():
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		return zero, Transient(ErrTimeout)
	}
}
