package observe

import (
	"context"
	"time"

	"github.com/jonwraymond/callkit/resilience"
)

// CallFunc is the signature for an outbound call that Middleware wraps.
type CallFunc func(ctx context.Context, meta CallMeta) error

// Middleware wraps outbound calls with observability (tracing, metrics, logging).
//
// Contract:
//   - Concurrency: Wrap() returns a thread-safe CallFunc.
//   - Context: Propagates context through tracing spans.
//   - Errors: Errors from wrapped function are recorded and propagated unchanged.
type Middleware struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
}

// NewMiddleware creates a new Middleware with the given observability components.
// Nil components are replaced with no-op implementations.
func NewMiddleware(tracer Tracer, metrics Metrics, logger Logger) *Middleware {
	if tracer == nil {
		tracer = NopTracer()
	}
	if metrics == nil {
		metrics = NopMetrics()
	}
	if logger == nil {
		logger = NopLogger()
	}
	return &Middleware{
		tracer:  tracer,
		metrics: metrics,
		logger:  logger,
	}
}

// NopMiddleware returns a Middleware that records nothing.
func NopMiddleware() *Middleware {
	return NewMiddleware(nil, nil, nil)
}

// Logger returns the middleware's logger.
func (m *Middleware) Logger() Logger {
	return m.logger
}

// Wrap wraps a CallFunc with tracing, metrics, and logging. The span covers
// every attempt of a retried call.
func (m *Middleware) Wrap(fn CallFunc) CallFunc {
	return func(ctx context.Context, meta CallMeta) error {
		// Start span
		ctx, span := m.tracer.StartSpan(ctx, meta)

		start := time.Now()
		err := fn(ctx, meta)
		duration := time.Since(start)

		// End span (records error status if err != nil)
		m.tracer.EndSpan(span, err)

		m.metrics.RecordCall(ctx, meta, duration, err)

		callLogger := m.logger.WithCall(meta)
		fields := []Field{
			{Key: "duration_ms", Value: float64(duration.Milliseconds())},
		}

		if err != nil {
			fields = append(fields,
				Field{Key: "error", Value: err.Error()},
				Field{Key: "error_kind", Value: ErrorKind(err)},
			)
			callLogger.Error(ctx, "call failed", fields...)
		} else {
			callLogger.Debug(ctx, "call completed", fields...)
		}

		return err
	}
}

// RetryHook returns a retry hook that logs each retry at warn level, counts
// it, and adds a retry event to the active span.
func (m *Middleware) RetryHook(meta CallMeta) resilience.OnRetryFunc {
	logger := m.logger.WithCall(meta)
	return func(ctx context.Context, state resilience.RetryState, delay time.Duration) {
		m.metrics.RecordRetry(ctx, meta)
		AddRetryEvent(ctx, state.Attempts, delay, state.LastErr)

		fields := []Field{
			{Key: "attempt", Value: state.Attempts},
			{Key: "delay_ms", Value: delay.Milliseconds()},
			{Key: "elapsed_ms", Value: state.Elapsed.Milliseconds()},
		}
		if state.LastErr != nil {
			fields = append(fields, Field{Key: "error", Value: state.LastErr.Error()})
		}
		logger.Warn(ctx, "retrying call", fields...)
	}
}

// PollHook returns a status-check hook for long-running operations. Its
// signature matches lro.OnPollFunc.
func (m *Middleware) PollHook(meta CallMeta) func(ctx context.Context, name string, poll int, done bool, err error) {
	logger := m.logger.WithCall(meta)
	return func(ctx context.Context, name string, poll int, done bool, err error) {
		if err != nil {
			logger.Warn(ctx, "status check failed",
				Field{Key: "operation", Value: name},
				Field{Key: "poll", Value: poll},
				Field{Key: "error", Value: err.Error()},
			)
			return
		}
		m.metrics.RecordPoll(ctx, meta, done)
		AddPollEvent(ctx, name, poll, done)
		logger.Debug(ctx, "status checked",
			Field{Key: "operation", Value: name},
			Field{Key: "poll", Value: poll},
			Field{Key: "done", Value: done},
		)
	}
}

// MiddlewareFromObserver creates a Middleware from an Observer.
// This is a convenience function for common use cases.
func MiddlewareFromObserver(obs Observer) (*Middleware, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}
	tracer := NewTracer(obs.Tracer())

	metrics, err := newMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}

	return NewMiddleware(tracer, metrics, obs.Logger()), nil
}
