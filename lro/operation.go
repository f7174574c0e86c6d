// Package lro drives long-running operations to completion.
//
// An initiating call returns an Operation handle. A Poller then repeatedly
// invokes a status-check call, each wrapped by the resilience retry loop,
// until the operation reports done or the PollingPolicy stops polling.
//
// Poller state machine:
//
//	Pending → Polling → Succeeded | Failed | PolicyExhausted
//
// A failed status check is retried like any call. An operation that reports
// its own failure is terminal and never retried. Cancelling the context stops
// future polls only; the remote operation keeps running.
package lro

import (
	"errors"
	"fmt"
)

// Operation is the handle for a long-running operation.
type Operation[T any] struct {
	// Name identifies the operation on the server.
	Name string

	// Done reports whether the operation reached a terminal state.
	Done bool

	// Result is the operation's value once Done and Err is nil.
	Result T

	// Err is the operation's own failure once Done.
	Err error

	// Metadata is the latest progress payload reported by the server.
	Metadata map[string]any
}

// State is a Poller's position in its state machine.
type State int

const (
	// StatePending means no status check has run yet.
	StatePending State = iota
	// StatePolling means at least one status check ran and the operation is not done.
	StatePolling
	// StateSucceeded means the operation finished with a result.
	StateSucceeded
	// StateFailed means the operation itself finished with an error.
	StateFailed
	// StatePolicyExhausted means the polling policy stopped before completion.
	StatePolicyExhausted
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StatePolling:
		return "polling"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	case StatePolicyExhausted:
		return "policy-exhausted"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further polls will happen.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed || s == StatePolicyExhausted
}

// Sentinel errors for long-running operations.
var (
	// ErrOperationFailed is matched by OperationFailedError.
	ErrOperationFailed = errors.New("lro: operation failed")

	// ErrNotDone is the cause recorded when polling stops before completion.
	ErrNotDone = errors.New("lro: operation not done")

	// ErrMissingName is returned when the initiating call yields an unnamed pending operation.
	ErrMissingName = errors.New("lro: operation name is required")

	// ErrNilOperation is returned when a call yields no operation handle.
	ErrNilOperation = errors.New("lro: operation is nil")
)

// OperationFailedError reports an operation that completed with an error.
type OperationFailedError struct {
	Name string
	Err  error
}

func (e *OperationFailedError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrOperationFailed, e.Name, e.Err)
}

func (e *OperationFailedError) Unwrap() error { return e.Err }

// Is reports whether target is ErrOperationFailed.
func (e *OperationFailedError) Is(target error) bool { return target == ErrOperationFailed }
