package resilience

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestDefaultClassifier(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Classification
	}{
		{"nil", nil, Fatal},
		{"plain error", errors.New("boom"), Fatal},
		{"transient", Transient(errors.New("reset")), Retryable},
		{"wrapped transient", fmt.Errorf("call: %w", Transient(errors.New("reset"))), Retryable},
		{"permanent", Permanent(errors.New("bad request")), Fatal},
		{"auth", Auth(errors.New("expired")), Fatal},
		{"canceled", context.Canceled, Fatal},
		{"grpc unavailable", status.Error(codes.Unavailable, "down"), Retryable},
		{"grpc deadline", status.Error(codes.DeadlineExceeded, "slow"), Retryable},
		{"grpc resource exhausted", status.Error(codes.ResourceExhausted, "quota"), Retryable},
		{"grpc aborted", status.Error(codes.Aborted, "conflict"), Retryable},
		{"grpc invalid argument", status.Error(codes.InvalidArgument, "bad"), Fatal},
		{"grpc unauthenticated", status.Error(codes.Unauthenticated, "who"), Fatal},
		{"http 503", &HTTPStatusError{StatusCode: http.StatusServiceUnavailable}, Retryable},
		{"http 429", &HTTPStatusError{StatusCode: http.StatusTooManyRequests}, Retryable},
		{"http 408", &HTTPStatusError{StatusCode: http.StatusRequestTimeout}, Retryable},
		{"http 501", &HTTPStatusError{StatusCode: http.StatusNotImplemented}, Fatal},
		{"http 404", &HTTPStatusError{StatusCode: http.StatusNotFound}, Fatal},
		{"net timeout", fmt.Errorf("dial: %w", timeoutErr{}), Retryable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DefaultClassifier.Classify(tt.err); got != tt.want {
				t.Errorf("Classify(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestIsAuthRejection(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"auth error", Auth(errors.New("revoked")), true},
		{"grpc unauthenticated", status.Error(codes.Unauthenticated, "expired"), true},
		{"wrapped grpc unauthenticated", Permanent(status.Error(codes.Unauthenticated, "expired")), true},
		{"http 401", &HTTPStatusError{StatusCode: http.StatusUnauthorized}, true},
		{"http 403", &HTTPStatusError{StatusCode: http.StatusForbidden}, false},
		{"transient", Transient(errors.New("reset")), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsAuthRejection(tt.err); got != tt.want {
				t.Errorf("IsAuthRejection(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestClassification_String(t *testing.T) {
	if Retryable.String() != "retryable" {
		t.Errorf("Retryable.String() = %q", Retryable.String())
	}
	if Fatal.String() != "fatal" {
		t.Errorf("Fatal.String() = %q", Fatal.String())
	}
	if Classification(9).String() != "unknown" {
		t.Errorf("Classification(9).String() = %q", Classification(9).String())
	}
}
