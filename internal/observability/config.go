// Package observability provides structured logging and OpenTelemetry
// metrics/tracing for the synthfuzz CLI, mirroring the teacher's own
// pkg/observability package but exporting metrics to a local Prometheus
// registry instead of a remote OTLP collector.
package observability

import "log/slog"

// AppMode identifies which synthfuzz subcommand is running, surfaced as a
// static log/metric attribute.
type AppMode string

const (
	// ModeGenerate is the `synthfuzz generate` driver run.
	ModeGenerate AppMode = "generate"
	// ModeAnalyze is the `synthfuzz analyze` structural report.
	ModeAnalyze AppMode = "analyze"
	// ModeValidate is the `synthfuzz validate` config/schema check.
	ModeValidate AppMode = "validate"
)

const defaultServiceName = "synthfuzz"

// Config holds observability configuration.
type Config struct {
	// ServiceName is the OTel resource service name.
	ServiceName string
	// ServiceVersion is the running binary's version.
	ServiceVersion string
	// Environment is the deployment environment, e.g. "dev" or "ci".
	Environment string
	// Mode identifies which subcommand is running.
	Mode AppMode

	// LogLevel controls the minimum slog severity.
	LogLevel slog.Level
	// LogJSON enables JSON-formatted log output.
	LogJSON bool

	// MetricsAddr, when non-empty, serves the Prometheus /metrics endpoint
	// on this address for the run's duration.
	MetricsAddr string
}

// DefaultConfig returns a Config with sensible defaults for zero-config
// startup.
func DefaultConfig() Config {
	return Config{
		ServiceName: defaultServiceName,
		Mode:        ModeGenerate,
		LogLevel:    slog.LevelInfo,
	}
}
