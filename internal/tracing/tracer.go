// Package tracing wires OpenTelemetry for the chat pipeline.
package tracing

import (
	"context"

	"github.com/liliang-cn/shopbot/internal/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/liliang-cn/shopbot"

// Tracer returns the tracer used by pipeline components.
// It is a no-op until Init installs a provider.
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

// Init installs an OTLP/HTTP exporter when tracing is enabled.
// The returned function flushes and stops the provider.
func Init(ctx context.Context, cfg config.TracingConfig, logger *zap.Logger) func(context.Context) error {
	noop := func(context.Context) error { return nil }
	if !cfg.Enabled {
		logger.Info("Tracing disabled")
		return noop
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(cfg.Endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		logger.Warn("Failed to create OTLP exporter, tracing disabled", zap.Error(err))
		return noop
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(cfg.ServiceName),
		)),
	)
	otel.SetTracerProvider(tp)
	logger.Info("Tracing enabled", zap.String("endpoint", cfg.Endpoint))

	return tp.Shutdown
}
