package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records client call metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must honor cancellation/deadlines and return quickly.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordCall records a completed call with duration and outcome.
	RecordCall(ctx context.Context, meta CallMeta, duration time.Duration, err error)

	// RecordRetry records one retry of a call.
	RecordRetry(ctx context.Context, meta CallMeta)

	// RecordPoll records one long-running-operation status check.
	RecordPoll(ctx context.Context, meta CallMeta, done bool)
}

// metricsImpl is the concrete implementation of Metrics.
type metricsImpl struct {
	callCount      metric.Int64Counter
	errorCount     metric.Int64Counter
	retryCount     metric.Int64Counter
	throttledCount metric.Int64Counter
	exhaustedCount metric.Int64Counter
	pollCount      metric.Int64Counter
	durationHist   metric.Float64Histogram
}

// NewMetrics creates a Metrics instance with the given meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	return newMetrics(meter)
}

func newMetrics(meter metric.Meter) (*metricsImpl, error) {
	m := &metricsImpl{}
	counters := []struct {
		dst         *metric.Int64Counter
		name        string
		description string
		unit        string
	}{
		{&m.callCount, "rpc.client.calls", "Total number of outbound calls", "{call}"},
		{&m.errorCount, "rpc.client.errors", "Total number of failed calls", "{error}"},
		{&m.retryCount, "rpc.client.retries", "Total number of retried attempts", "{retry}"},
		{&m.throttledCount, "rpc.client.throttled", "Calls stopped by the retry throttler", "{call}"},
		{&m.exhaustedCount, "rpc.client.exhausted", "Calls stopped by the retry or polling policy", "{call}"},
		{&m.pollCount, "rpc.client.polls", "Long-running operation status checks", "{poll}"},
	}
	for _, c := range counters {
		counter, err := meter.Int64Counter(c.name,
			metric.WithDescription(c.description),
			metric.WithUnit(c.unit),
		)
		if err != nil {
			return nil, err
		}
		*c.dst = counter
	}

	durationHist, err := meter.Float64Histogram(
		"rpc.client.duration_ms",
		metric.WithDescription("Call duration including retries in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}
	m.durationHist = durationHist

	return m, nil
}

func callAttrs(meta CallMeta) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("rpc.service", meta.Service),
		attribute.String("rpc.method", meta.Method),
	}
}

// RecordCall records metrics for a completed call.
func (m *metricsImpl) RecordCall(ctx context.Context, meta CallMeta, duration time.Duration, err error) {
	attrs := callAttrs(meta)
	opt := metric.WithAttributes(attrs...)

	// Always increment total counter
	m.callCount.Add(ctx, 1, opt)

	if err != nil {
		kind := ErrorKind(err)
		m.errorCount.Add(ctx, 1, metric.WithAttributes(append(attrs, attribute.String("error.kind", kind))...))
		switch kind {
		case "throttled":
			m.throttledCount.Add(ctx, 1, opt)
		case "policy_exhausted":
			m.exhaustedCount.Add(ctx, 1, opt)
		}
	}

	m.durationHist.Record(ctx, float64(duration.Milliseconds()), opt)
}

// RecordRetry records one retry.
func (m *metricsImpl) RecordRetry(ctx context.Context, meta CallMeta) {
	m.retryCount.Add(ctx, 1, metric.WithAttributes(callAttrs(meta)...))
}

// RecordPoll records one status check.
func (m *metricsImpl) RecordPoll(ctx context.Context, meta CallMeta, done bool) {
	attrs := append(callAttrs(meta), attribute.Bool("lro.done", done))
	m.pollCount.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// noopMetrics is a metrics implementation that does nothing.
type noopMetrics struct{}

// NopMetrics returns a Metrics that records nothing.
func NopMetrics() Metrics { return noopMetrics{} }

func (noopMetrics) RecordCall(ctx context.Context, meta CallMeta, duration time.Duration, err error) {
}
func (noopMetrics) RecordRetry(ctx context.Context, meta CallMeta)           {}
func (noopMetrics) RecordPoll(ctx context.Context, meta CallMeta, done bool) {}
