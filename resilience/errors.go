package resilience

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinel errors for resilience operations.
var (
	// ErrThrottled is matched by ThrottledError.
	ErrThrottled = errors.New("resilience: retry throttled")

	// ErrPolicyExhausted is matched by PolicyExhaustedError.
	ErrPolicyExhausted = errors.New("resilience: retry policy exhausted")

	// ErrAborted is matched by AbortedError.
	ErrAborted = errors.New("resilience: wait aborted")

	// ErrRateLimitExceeded is returned when the limiter cannot admit an attempt.
	ErrRateLimitExceeded = errors.New("resilience: rate limit exceeded")

	// ErrBulkheadFull is returned when no call slot is available.
	ErrBulkheadFull = errors.New("resilience: bulkhead full")

	// ErrTimeout is the cause of a TransientError produced by an attempt timeout.
	ErrTimeout = errors.New("resilience: attempt timed out")
)

// TransientError marks a failure as retryable (network, timeout, 5xx class).
type TransientError struct {
	Err error
}

// Transient wraps err as a TransientError. A nil err returns nil.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

func (e *TransientError) Error() string { return "transient: " + errString(e.Err) }
func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError marks a failure as not retryable (4xx class, excluding auth).
type PermanentError struct {
	Err error
}

// Permanent wraps err as a PermanentError. A nil err returns nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

func (e *PermanentError) Error() string { return "permanent: " + errString(e.Err) }
func (e *PermanentError) Unwrap() error { return e.Err }

// AuthError reports a credential failure: a token fetch or refresh failed, or
// the backend rejected the presented credential.
type AuthError struct {
	Err error
}

// Auth wraps err as an AuthError. A nil err returns nil.
func Auth(err error) error {
	if err == nil {
		return nil
	}
	return &AuthError{Err: err}
}

// Error prefixes the cause with "auth: " unless the cause already carries it.
func (e *AuthError) Error() string {
	msg := errString(e.Err)
	if strings.HasPrefix(msg, "auth: ") {
		return msg
	}
	return "auth: " + msg
}
func (e *AuthError) Unwrap() error { return e.Err }

// ThrottledError is returned when the RetryThrottler refuses a retry.
// Err holds the last attempt's error.
type ThrottledError struct {
	Attempts int
	Err      error
}

func (e *ThrottledError) Error() string {
	return fmt.Sprintf("%s after %d attempt(s): %s", ErrThrottled, e.Attempts, errString(e.Err))
}

func (e *ThrottledError) Unwrap() error { return e.Err }

// Is reports whether target is ErrThrottled.
func (e *ThrottledError) Is(target error) bool { return target == ErrThrottled }

// PolicyExhaustedError is returned when a RetryPolicy or PollingPolicy stops
// the loop. Err holds the last underlying error.
type PolicyExhaustedError struct {
	Attempts int
	Elapsed  time.Duration
	Err      error
}

func (e *PolicyExhaustedError) Error() string {
	return fmt.Sprintf("%s after %d attempt(s) in %s: %s", ErrPolicyExhausted, e.Attempts, e.Elapsed, errString(e.Err))
}

func (e *PolicyExhaustedError) Unwrap() error { return e.Err }

// Is reports whether target is ErrPolicyExhausted.
func (e *PolicyExhaustedError) Is(target error) bool { return target == ErrPolicyExhausted }

// AbortedError is returned when a wait is interrupted by context cancellation
// or deadline. It matches ErrAborted, the context error, and the last
// attempt's error.
type AbortedError struct {
	Cause error // context.Canceled or context.DeadlineExceeded
	Last  error // last attempt error, may be nil
}

func (e *AbortedError) Error() string {
	if e.Last == nil {
		return fmt.Sprintf("%s: %s", ErrAborted, errString(e.Cause))
	}
	return fmt.Sprintf("%s: %s (last error: %s)", ErrAborted, errString(e.Cause), e.Last)
}

func (e *AbortedError) Unwrap() []error {
	if e.Last == nil {
		return []error{e.Cause}
	}
	return []error{e.Cause, e.Last}
}

// Is reports whether target is ErrAborted.
func (e *AbortedError) Is(target error) bool { return target == ErrAborted }

// IsAuth reports whether err carries an AuthError.
func IsAuth(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

func errString(err error) string {
	if err == nil {
		return "<nil>"
	}
	return err.Error()
}
