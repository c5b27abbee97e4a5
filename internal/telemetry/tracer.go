package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// TracerName is the instrumentation scope name used for every pipeline span.
const TracerName = "llm-gateway"

// GetTracer returns a no-op tracer when telemetry is disabled, the
// caller-supplied tracer when one was configured, or the global otel tracer
// otherwise.
func GetTracer(s Settings) trace.Tracer {
	if !s.Enabled {
		return noop.NewTracerProvider().Tracer(TracerName)
	}
	if s.Tracer != nil {
		return s.Tracer
	}
	return otel.Tracer(TracerName)
}

// StartPipelineSpan starts a span named for one pipeline stage
//
// tagged with the candidate's upstream and model.
func StartPipelineSpan(ctx context.Context, s Settings, stage, upstream, model string) (context.Context, trace.Span) {
	tracer := GetTracer(s)
	return tracer.Start(ctx, "gateway."+stage, trace.WithAttributes(
		attribute.String("gateway.upstream", upstream),
		attribute.String("gateway.model", model),
	))
}
