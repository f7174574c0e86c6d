package lro

import (
	"context"
	"maps"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/jonwraymond/callkit/resilience"
)

// InitiateFunc starts a long-running operation and returns its handle.
type InitiateFunc[T any] func(ctx context.Context) (*Operation[T], error)

// StatusFunc fetches the latest state of the named operation.
type StatusFunc[T any] func(ctx context.Context, name string) (*Operation[T], error)

// OnPollFunc is called after every status check.
type OnPollFunc func(ctx context.Context, name string, poll int, done bool, err error)

// Config configures a Poller.
type Config struct {
	// Polling paces status checks and bounds how long to poll.
	// Default: NewPollingPolicy(PollingConfig{})
	Polling PollingPolicy

	// Retry wraps the initiating call and every status check.
	// Default: resilience.NewRetry(resilience.RetryConfig{})
	Retry *resilience.Retry

	// Clock supplies the poll-interval wait.
	// Default: the Retry's clock
	Clock resilience.Clock

	// OnPoll is called after every status check.
	OnPoll OnPollFunc
}

func (c Config) withDefaults() Config {
	if c.Polling == nil {
		c.Polling = NewPollingPolicy(PollingConfig{})
	}
	if c.Retry == nil {
		c.Retry = resilience.NewRetry(resilience.RetryConfig{})
	}
	if c.Clock == nil {
		c.Clock = c.Retry.Config().Clock
	}
	return c
}

// Poller drives one long-running operation. Methods are safe for concurrent
// use; status checks are serialized and waiting for a turn honors ctx.
type Poller[T any] struct {
	status StatusFunc[T]
	config Config
	start  time.Time
	checks *semaphore.Weighted

	mu    sync.Mutex
	op    *Operation[T]
	state State
	polls int
	err   error
}

// Start runs the initiating call under the retry loop and returns a Poller
// for the operation it created.
func Start[T any](ctx context.Context, initiate InitiateFunc[T], status StatusFunc[T], config Config) (*Poller[T], error) {
	config = config.withDefaults()

	op, err := resilience.Do(ctx, config.Retry, func(ctx context.Context) (*Operation[T], error) {
		return initiate(ctx)
	})
	if err != nil {
		return nil, err
	}
	if op == nil {
		return nil, ErrNilOperation
	}
	if !op.Done && op.Name == "" {
		return nil, ErrMissingName
	}

	return NewPoller(op, status, config), nil
}

// NewPoller resumes polling an operation whose handle is already known.
func NewPoller[T any](op *Operation[T], status StatusFunc[T], config Config) *Poller[T] {
	config = config.withDefaults()

	p := &Poller[T]{
		status: status,
		config: config,
		start:  config.Clock.Now(),
		checks: semaphore.NewWeighted(1),
		op:     op,
		state:  StatePending,
	}
	if op != nil {
		p.applyLocked(op)
	}
	return p
}

// Name returns the operation name.
func (p *Poller[T]) Name() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.op == nil {
		return ""
	}
	return p.op.Name
}

// State returns the current state.
func (p *Poller[T]) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Done reports whether the Poller reached a terminal state.
func (p *Poller[T]) Done() bool {
	return p.State().Terminal()
}

// Polls returns the number of status checks made.
func (p *Poller[T]) Polls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.polls
}

// Metadata returns the latest progress payload.
func (p *Poller[T]) Metadata() map[string]any {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.op == nil {
		return nil
	}
	return maps.Clone(p.op.Metadata)
}

// Result returns the operation result and terminal error. Before a terminal
// state it returns the zero value and a nil error.
func (p *Poller[T]) Result() (T, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.resultLocked()
}

// Poll performs one status check, wrapped by the retry loop. It returns
// whether the Poller is now terminal along with the terminal error, if any.
// A status check that fails after retries returns that error and leaves the
// Poller in its previous state. Concurrent Polls wait their turn, or return
// an AbortedError when ctx ends first.
func (p *Poller[T]) Poll(ctx context.Context) (bool, error) {
	if err := p.checks.Acquire(ctx, 1); err != nil {
		return false, &resilience.AbortedError{Cause: err}
	}
	defer p.checks.Release(1)

	p.mu.Lock()
	if p.state.Terminal() {
		err := p.err
		p.mu.Unlock()
		return true, err
	}
	if p.op == nil {
		p.mu.Unlock()
		return false, ErrNilOperation
	}
	name := p.op.Name
	polls := p.polls
	p.mu.Unlock()

	op, err := resilience.Do(ctx, p.config.Retry, func(ctx context.Context) (*Operation[T], error) {
		return p.status(ctx, name)
	})
	if err == nil && op == nil {
		err = ErrNilOperation
	}
	if err != nil {
		if p.config.OnPoll != nil {
			p.config.OnPoll(ctx, name, polls, false, err)
		}
		return false, err
	}

	p.mu.Lock()
	p.polls++
	p.state = StatePolling
	p.applyLocked(op)
	polls, done, terr := p.polls, p.state.Terminal(), p.err
	p.mu.Unlock()

	if p.config.OnPoll != nil {
		p.config.OnPoll(ctx, name, polls, done, terr)
	}
	return done, terr
}

// UntilDone polls until the operation finishes, the polling policy gives
// up, or ctx ends. Cancellation only stops future polls; the Poller can be
// resumed with another UntilDone call.
func (p *Poller[T]) UntilDone(ctx context.Context) (T, error) {
	var zero T
	for {
		p.mu.Lock()
		if p.state.Terminal() {
			v, err := p.resultLocked()
			p.mu.Unlock()
			return v, err
		}

		state := PollState{Polls: p.polls, Elapsed: p.config.Clock.Now().Sub(p.start)}
		if !p.config.Polling.ShouldContinuePolling(state) {
			p.state = StatePolicyExhausted
			p.err = &resilience.PolicyExhaustedError{
				Attempts: state.Polls,
				Elapsed:  state.Elapsed,
				Err:      ErrNotDone,
			}
			err := p.err
			p.mu.Unlock()
			return zero, err
		}
		delay := p.config.Polling.NextPollDelay(state.Polls)
		p.mu.Unlock()

		if err := p.config.Clock.Sleep(ctx, delay); err != nil {
			cause := ctx.Err()
			if cause == nil {
				cause = err
			}
			return zero, &resilience.AbortedError{Cause: cause}
		}

		if _, err := p.Poll(ctx); err != nil {
			if p.Done() {
				return p.Result()
			}
			return zero, err
		}
	}
}

func (p *Poller[T]) applyLocked(op *Operation[T]) {
	if op.Name == "" && p.op != nil {
		op.Name = p.op.Name
	}
	p.op = op
	if !op.Done {
		return
	}
	if op.Err != nil {
		p.state = StateFailed
		p.err = &OperationFailedError{Name: op.Name, Err: op.Err}
		return
	}
	p.state = StateSucceeded
	p.err = nil
}

func (p *Poller[T]) resultLocked() (T, error) {
	var zero T
	switch p.state {
	case StateSucceeded:
		return p.op.Result, nil
	case StateFailed, StatePolicyExhausted:
		return zero, p.err
	default:
		return zero, nil
	}
}
