package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// InstallOTLPExporter builds an OTLP/HTTP span exporter pointed at
// settings.OTLPEndpoint, registers it as the global trace provider, and
// returns a shutdown func for graceful process exit. Called once from
// cmd/gateway at startup when the endpoint is configured; a no-op endpoint
// leaves the global provider untouched, so GetTracer's noop fallback
// applies.
func InstallOTLPExporter(ctx context.Context, s Settings) (shutdown func(context.Context) error, err error) {
	if !s.Enabled || s.OTLPEndpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	var exporter *otlptrace.Exporter
	exporter, err = otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(s.OTLPEndpoint))
	if err != nil {
		return nil, fmt.Errorf("telemetry: build otlp exporter: %w", err)
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName("llm-gateway"),
	))
	if err != nil {
		return nil, fmt.Errorf("telemetry: build resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}
