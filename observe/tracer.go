package observe

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/jonwraymond/callkit/resilience"
)

// CallMeta identifies an outbound call for telemetry purposes.
type CallMeta struct {
	Service   string // Remote service, e.g. "storage.v1.Buckets" (required)
	Method    string // Method name, e.g. "List" (required)
	RequestID string // Per-invocation identifier (optional)
}

// SpanName returns the deterministic span name for this call.
// Format: rpc.call.<service>.<method>
func (m CallMeta) SpanName() string {
	return "rpc.call." + m.Service + "." + m.Method
}

// FullMethod returns "/<service>/<method>", the gRPC method path.
func (m CallMeta) FullMethod() string {
	return "/" + m.Service + "/" + m.Method
}

// Tracer wraps OpenTelemetry tracing with call-specific span management.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartSpan starts a new span for an outbound call.
	StartSpan(ctx context.Context, meta CallMeta) (context.Context, trace.Span)

	// EndSpan ends the span, recording any error.
	EndSpan(span trace.Span, err error)
}

// tracerImpl is the concrete implementation of Tracer.
type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer creates a Tracer wrapping the given OpenTelemetry tracer.
func NewTracer(t trace.Tracer) Tracer {
	return &tracerImpl{tracer: t}
}

// StartSpan starts a new client span with call metadata as attributes.
func (t *tracerImpl) StartSpan(ctx context.Context, meta CallMeta) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("rpc.service", meta.Service),
		attribute.String("rpc.method", meta.Method),
		attribute.Bool("rpc.error", false), // Will be updated in EndSpan if error
	}
	if meta.RequestID != "" {
		attrs = append(attrs, attribute.String("rpc.request_id", meta.RequestID))
	}

	return t.tracer.Start(ctx, meta.SpanName(),
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

// EndSpan ends the span and records the error status if present.
func (t *tracerImpl) EndSpan(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(
			attribute.Bool("rpc.error", true),
			attribute.String("rpc.error_kind", ErrorKind(err)),
		)
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// AddRetryEvent records a retry on the span in ctx.
func AddRetryEvent(ctx context.Context, attempt int, delay time.Duration, err error) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.Int("rpc.attempt", attempt),
		attribute.Int64("rpc.retry_delay_ms", delay.Milliseconds()),
	}
	if err != nil {
		attrs = append(attrs, attribute.String("error", err.Error()))
	}
	span.AddEvent("retry", trace.WithAttributes(attrs...))
}

// AddPollEvent records a status check on the span in ctx.
func AddPollEvent(ctx context.Context, operation string, poll int, done bool) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.AddEvent("poll", trace.WithAttributes(
		attribute.String("lro.operation", operation),
		attribute.Int("lro.poll", poll),
		attribute.Bool("lro.done", done),
	))
}

// ErrorKind returns a low-cardinality label for err: throttled,
// policy_exhausted, aborted, auth, permanent, transient, or unknown.
func ErrorKind(err error) string {
	var (
		authErr      *resilience.AuthError
		permanentErr *resilience.PermanentError
		transientErr *resilience.TransientError
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, resilience.ErrThrottled):
		return "throttled"
	case errors.Is(err, resilience.ErrPolicyExhausted):
		return "policy_exhausted"
	case errors.Is(err, resilience.ErrAborted),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return "aborted"
	case errors.As(err, &authErr):
		return "auth"
	case errors.As(err, &permanentErr):
		return "permanent"
	case errors.As(err, &transientErr):
		return "transient"
	default:
		return "unknown"
	}
}

// noopTracer is a tracer that does nothing.
type noopTracer struct {
	noop trace.Tracer
}

// NopTracer returns a Tracer that records nothing.
func NopTracer() Tracer {
	return &noopTracer{
		noop: tracenoop.NewTracerProvider().Tracer("noop"),
	}
}

func (t *noopTracer) StartSpan(ctx context.Context, meta CallMeta) (context.Context, trace.Span) {
	return t.noop.Start(ctx, meta.SpanName())
}

func (t *noopTracer) EndSpan(span trace.Span, err error) {
	span.End()
}
