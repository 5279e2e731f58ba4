// Package telemetry bootstraps the process-wide logger and tracer used
// across the execution core: structured logging via log/slog (the
// teacher's own ambient choice — zap appears only as an indirect,
// never-imported dependency) and distributed tracing via OpenTelemetry,
// following the shape of the teacher's observability/tracer.go.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	stdouttrace "go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// TracerConfig controls tracer bootstrap, mirroring the teacher's
// TracerConfig shape (observability/tracer.go).
type TracerConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"` // "stdout", or "otlpgrpc" (also used when empty)
	EndpointURL  string  `yaml:"endpoint_url"`
	SamplingRate float64 `yaml:"sampling_rate"`
	ServiceName  string  `yaml:"service_name"`
}

var tracerName atomic.Value // string

func init() {
	tracerName.Store("github.com/kadirpekel/execore")
}

// InitTracer installs a global TracerProvider per cfg and returns it so
// callers can Shutdown it on process exit. Disabled tracing installs a
// no-op provider; an exporter or resource that cannot be created is
// returned as an error and no provider is installed.
func InitTracer(ctx context.Context, cfg TracerConfig) (trace.TracerProvider, error) {
	if !cfg.Enabled {
		tp := noop.NewTracerProvider()
		otel.SetTracerProvider(tp)
		return tp, nil
	}

	var exporter sdktrace.SpanExporter
	var err error

	switch cfg.Exporter {
	case "stdout":
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
	default:
		exporter, err = otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(cfg.EndpointURL),
			otlptracegrpc.WithInsecure(),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create span exporter: %w", err)
	}

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "execore"
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(serviceName)))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	rate := cfg.SamplingRate
	if rate <= 0 {
		rate = 1
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(rate)),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	return tp, nil
}

// Tracer returns the process-wide tracer used to span context
// invocations.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName.Load().(string))
}

var logger atomic.Pointer[slog.Logger]

func init() {
	logger.Store(slog.New(slog.NewTextHandler(os.Stderr, nil)))
}

// SetLogger installs the process-wide structured logger.
func SetLogger(l *slog.Logger) {
	logger.Store(l)
}

// Logger returns the process-wide structured logger.
func Logger() *slog.Logger {
	return logger.Load()
}
