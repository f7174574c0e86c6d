package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Classification is the retry verdict for an error.
type Classification int

const (
	// Fatal errors end the retry loop immediately.
	Fatal Classification = iota
	// Retryable errors may be retried if the policy and throttler allow it.
	Retryable
)

// String returns the string representation of the classification.
func (c Classification) String() string {
	switch c {
	case Retryable:
		return "retryable"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Classifier maps an error to a Classification.
type Classifier interface {
	Classify(err error) Classification
}

// ClassifierFunc is an adapter that allows a function to be used as a Classifier.
type ClassifierFunc func(err error) Classification

// Classify implements Classifier.
func (f ClassifierFunc) Classify(err error) Classification {
	return f(err)
}

// HTTPStatusError carries a non-2xx HTTP response status.
type HTTPStatusError struct {
	StatusCode int
	Status     string
}

func (e *HTTPStatusError) Error() string {
	if e.Status != "" {
		return "http status " + e.Status
	}
	return fmt.Sprintf("http status %d", e.StatusCode)
}

// retryableCodes are the gRPC codes that indicate a transient backend condition.
var retryableCodes = map[codes.Code]bool{
	codes.Unavailable:       true,
	codes.DeadlineExceeded:  true,
	codes.Aborted:           true,
	codes.ResourceExhausted: true,
}

// DefaultClassifier classifies errors for generated clients.
//
// Typed errors win: TransientError is retryable, PermanentError and AuthError
// are fatal. Context cancellation is fatal. gRPC statuses Unavailable,
// DeadlineExceeded, Aborted and ResourceExhausted are retryable; HTTP 408, 429
// and 5xx are retryable; network timeouts are retryable. Everything else is
// fatal.
var DefaultClassifier Classifier = ClassifierFunc(classifyDefault)

func classifyDefault(err error) Classification {
	if err == nil {
		return Fatal
	}

	var (
		transient *TransientError
		permanent *PermanentError
		authErr   *AuthError
	)
	switch {
	case errors.As(err, &authErr), errors.As(err, &permanent):
		return Fatal
	case errors.As(err, &transient):
		return Retryable
	case errors.Is(err, context.Canceled):
		return Fatal
	}

	if st, ok := status.FromError(err); ok && st.Code() != codes.Unknown {
		if retryableCodes[st.Code()] {
			return Retryable
		}
		return Fatal
	}

	var httpErr *HTTPStatusError
	if errors.As(err, &httpErr) {
		return classifyHTTPStatus(httpErr.StatusCode)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Retryable
	}

	return Fatal
}

func classifyHTTPStatus(code int) Classification {
	switch {
	case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests:
		return Retryable
	case code >= 500 && code != http.StatusNotImplemented:
		return Retryable
	default:
		return Fatal
	}
}

// IsAuthRejection reports whether err means the backend rejected the
// presented credential: an AuthError, gRPC Unauthenticated, or HTTP 401.
func IsAuthRejection(err error) bool {
	if err == nil {
		return false
	}
	if IsAuth(err) {
		return true
	}
	if st, ok := status.FromError(err); ok && st.Code() == codes.Unauthenticated {
		return true
	}
	var httpErr *HTTPStatusError
	return errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusUnauthorized
}
