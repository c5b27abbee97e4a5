// Package telemetry provides OpenTelemetry span helpers for the gateway's
// pipeline stages. Telemetry is disabled by default; enabling it swaps in a
// real tracer that can export via OTLP/HTTP.
package telemetry

import (
	"go.opentelemetry.io/otel/trace"
)

// Settings configures whether and how pipeline spans are recorded.
type Settings struct {
	// Enabled controls whether spans are recorded at all.
	Enabled bool

	// OTLPEndpoint, when non-empty, is where spans are exported
	// (features.otlp_endpoint in config).
	OTLPEndpoint string

	// Tracer is a pre-built tracer to use instead of the global one. Tests
	// inject a recording tracer here.
	Tracer trace.Tracer
}

// DefaultSettings returns telemetry disabled.
func DefaultSettings() Settings {
	return Settings{Enabled: false}
}
