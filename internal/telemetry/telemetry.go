// Package telemetry holds the process-wide logger, tracer and refund
// metrics.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	defaultServiceName = "refund-orchestrator"
	defaultEndpoint    = "jaeger:4318"
)

// Logger and Tracer are usable before InitTelemetry runs; they start as a
// no-op logger and the global (no-op) tracer.
var (
	Tracer      trace.Tracer = otel.Tracer(defaultServiceName)
	Logger      *zap.Logger  = zap.NewNop()
	ServiceName              = defaultServiceName
)

// InitTelemetry builds the JSON logger and an OTLP/HTTP trace pipeline.
// An empty endpoint falls back to the local Jaeger collector.
func InitTelemetry(serviceName, endpoint string) error {
	logger, err := newLogger(serviceName)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	tp, err := newTracerProvider(serviceName, endpoint)
	if err != nil {
		return err
	}
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	ServiceName = serviceName
	Logger = logger
	Tracer = tp.Tracer(serviceName)

	Logger.Info("Telemetry initialized",
		zap.String("service", serviceName),
		zap.String("otlp_endpoint", endpointOrDefault(endpoint)),
	)
	return nil
}

func newLogger(serviceName string) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.InitialFields = map[string]any{"service": serviceName}
	return config.Build()
}

func newTracerProvider(serviceName, endpoint string) (*sdktrace.TracerProvider, error) {
	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String("1.0.0"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	exporter, err := otlptracehttp.New(context.Background(),
		otlptracehttp.WithEndpoint(endpointOrDefault(endpoint)),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
	), nil
}

func endpointOrDefault(endpoint string) string {
	if endpoint == "" {
		return defaultEndpoint
	}
	return endpoint
}

// Shutdown flushes pending spans and log entries.
func Shutdown(ctx context.Context) error {
	if tp, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider); ok {
		if err := tp.Shutdown(ctx); err != nil {
			return err
		}
	}
	return Logger.Sync()
}

// StartSpan opens a span named after a refund operation and tags it with
// the given attributes.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return Tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// LoggerFor returns Logger tagged with the trace id of ctx, if any.
func LoggerFor(ctx context.Context) *zap.Logger {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return Logger
	}
	return Logger.With(zap.String("trace_id", sc.TraceID().String()))
}
