package invoke

import (
	"context"
	"net/http"

	"google.golang.org/grpc/metadata"

	"github.com/jonwraymond/callkit/auth"
	"github.com/jonwraymond/callkit/observe"
)

// RequestIDHeader carries the per-invocation request ID on the wire.
const RequestIDHeader = "x-request-id"

// Context keys for invocation values.
type contextKey int

const (
	requestIDKey contextKey = iota
	callMetaKey
)

// WithRequestID returns a context whose calls reuse id instead of generating
// a new request ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext returns the request ID in ctx, or "".
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

func withCallMeta(ctx context.Context, meta observe.CallMeta) context.Context {
	return context.WithValue(ctx, callMetaKey, meta)
}

// CallMetaFromContext returns the metadata of the call ctx belongs to.
func CallMetaFromContext(ctx context.Context) (observe.CallMeta, bool) {
	meta, ok := ctx.Value(callMetaKey).(observe.CallMeta)
	return meta, ok
}

// OutgoingContext appends the attempt's authorization and request ID to the
// gRPC outgoing metadata of ctx.
func OutgoingContext(ctx context.Context) context.Context {
	var kv []string
	if h := auth.HeaderFromContext(ctx); h != "" {
		kv = append(kv, "authorization", h)
	}
	if id := RequestIDFromContext(ctx); id != "" {
		kv = append(kv, RequestIDHeader, id)
	}
	if len(kv) == 0 {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, kv...)
}

// SetHeaders copies the attempt's authorization and request ID from ctx onto
// an HTTP request.
func SetHeaders(ctx context.Context, req *http.Request) {
	if h := auth.HeaderFromContext(ctx); h != "" {
		req.Header.Set("Authorization", h)
	}
	if id := RequestIDFromContext(ctx); id != "" {
		req.Header.Set(RequestIDHeader, id)
	}
}
