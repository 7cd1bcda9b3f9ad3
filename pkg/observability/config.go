// Package observability provides OpenTelemetry-based tracing, metrics, and
// structured logging for the circuit runtime and storage tiers, grounded on
// the teacher's pkg/observability and internal/observability packages.
package observability

import "log/slog"

const (
	defaultServiceName        = "dbspgo"
	defaultShutdownTimeoutSec = 5
)

// Config holds every observability option. Zero value is usable: Init
// returns no-op tracer/meter providers and a stderr text logger.
type Config struct {
	// ServiceName is the OTel resource service name.
	ServiceName string

	// Environment is the deployment environment (e.g. "production", "dev").
	Environment string

	// OTLPEndpoint is the OTLP gRPC collector address (e.g. "localhost:4317").
	// Empty disables trace/metric export; providers become no-op.
	OTLPEndpoint string

	// OTLPInsecure disables TLS for the OTLP gRPC connection.
	OTLPInsecure bool

	// OTLPHeaders are additional gRPC metadata headers for the OTLP exporter.
	OTLPHeaders map[string]string

	// SampleRatio is the trace sampling ratio (0.0 to 1.0). Zero uses the
	// OTel SDK default (parent-based with always-on root).
	SampleRatio float64

	// LogLevel controls the minimum slog severity.
	LogLevel slog.Level

	// LogJSON enables JSON-formatted log output.
	LogJSON bool

	// PrometheusEnabled attaches a Prometheus exporter to the meter
	// provider in addition to (or instead of) OTLP export, serving
	// PrometheusHandler's /metrics scrape endpoint.
	PrometheusEnabled bool

	// ShutdownTimeoutSec is the maximum seconds Init's Shutdown func waits
	// for a final flush.
	ShutdownTimeoutSec int
}

// DefaultConfig returns a Config suitable for zero-config startup: no
// export, info-level text logging to stderr.
func DefaultConfig() Config {
	return Config{
		ServiceName:        defaultServiceName,
		LogLevel:           slog.LevelInfo,
		ShutdownTimeoutSec: defaultShutdownTimeoutSec,
	}
}
