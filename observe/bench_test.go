package observe

import (
	"context"
	"errors"
	"io"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// BenchmarkLogger_Info measures logging throughput.
func BenchmarkLogger_Info(b *testing.B) {
	logger := NewLoggerWithWriter("info", io.Discard)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		logger.Info(ctx, "benchmark message", Field{Key: "iteration", Value: i})
	}
}

// BenchmarkLogger_Redaction measures logging with redacted fields.
func BenchmarkLogger_Redaction(b *testing.B) {
	logger := NewLoggerWithWriter("info", io.Discard)
	ctx := context.Background()
	fields := []Field{
		{Key: "access_token", Value: "ya29.value"},
		{Key: "Authorization", Value: "Bearer value"},
		{Key: "expires_in", Value: 3600},
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		logger.Info(ctx, "benchmark message", fields...)
	}
}

// BenchmarkLogger_WithCall_ThenLog measures creating a call logger and logging.
func BenchmarkLogger_WithCall_ThenLog(b *testing.B) {
	logger := NewLoggerWithWriter("info", io.Discard)
	ctx := context.Background()
	meta := CallMeta{Service: "svc", Method: "Get", RequestID: "req"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		logger.WithCall(meta).Info(ctx, "call completed")
	}
}

// BenchmarkLogger_LevelFiltering measures the cost of filtered-out entries.
func BenchmarkLogger_LevelFiltering(b *testing.B) {
	logger := NewLoggerWithWriter("error", io.Discard)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		logger.Debug(ctx, "dropped")
	}
}

func BenchmarkErrorKind(b *testing.B) {
	err := errors.New("plain")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = ErrorKind(err)
	}
}

// BenchmarkMiddleware_Wrap measures the full telemetry overhead per call.
func BenchmarkMiddleware_Wrap(b *testing.B) {
	tp := sdktrace.NewTracerProvider()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewManualReader()))
	metrics, err := NewMetrics(mp.Meter("bench"))
	if err != nil {
		b.Fatal(err)
	}
	mw := NewMiddleware(NewTracer(tp.Tracer("bench")), metrics, NewLoggerWithWriter("info", io.Discard))
	call := mw.Wrap(func(ctx context.Context, meta CallMeta) error { return nil })
	meta := CallMeta{Service: "svc", Method: "Get"}
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = call(ctx, meta)
	}
}

// BenchmarkConcurrent_Middleware measures wrapped calls under parallel load.
func BenchmarkConcurrent_Middleware(b *testing.B) {
	mw := NewMiddleware(NopTracer(), NopMetrics(), NewLoggerWithWriter("info", io.Discard))
	call := mw.Wrap(func(ctx context.Context, meta CallMeta) error { return nil })
	meta := CallMeta{Service: "svc", Method: "Get"}

	b.RunParallel(func(pb *testing.PB) {
		ctx := context.Background()
		for pb.Next() {
			_ = call(ctx, meta)
		}
	})
}

// BenchmarkConfig_Validate measures configuration validation.
func BenchmarkConfig_Validate(b *testing.B) {
	cfg := Config{
		ServiceName: "svc",
		Tracing:     TracingConfig{Enabled: true, Exporter: "otlp", Endpoint: "localhost:4317", SamplePct: 0.5},
		Metrics:     MetricsConfig{Enabled: true, Exporter: "prometheus"},
		Logging:     LoggingConfig{Enabled: true, Level: "info"},
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = cfg.Validate()
	}
}
