package telemetry

import (
	"fmt"
	"time"
)

// Config contains the telemetry configuration.
type Config struct {
	// ServiceName identifies hostsync in traces.
	ServiceName string `koanf:"service_name"`

	// ServiceVersion is the build version. It is set by the binary, not by config files.
	ServiceVersion string `koanf:"-"`

	// Logging contains logging configuration.
	Logging LoggingConfig `koanf:"logging"`

	// Tracing contains tracing configuration.
	Tracing TracingConfig `koanf:"tracing"`

	// Metrics contains metrics configuration.
	Metrics MetricsConfig `koanf:"metrics"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	// Level sets the minimum log level (trace, debug, info, warn, error).
	Level string `koanf:"level"`

	// Format specifies the log format (console, json).
	Format string `koanf:"format"`

	// Output specifies where logs are written (stdout, stderr, file path).
	Output string `koanf:"output"`

	// EnableCaller adds file:line caller information to logs.
	EnableCaller bool `koanf:"caller"`

	// TimeFormat specifies the timestamp format (unix, unixms, rfc3339).
	TimeFormat string `koanf:"time_format"`
}

// TracingConfig configures tracing of scans, planning and operations.
type TracingConfig struct {
	Enabled bool `koanf:"enabled"`

	// Exporter is otlp, stdout or none.
	Exporter string `koanf:"exporter"`

	// Endpoint is the OTLP gRPC endpoint, e.g. "localhost:4317".
	Endpoint string `koanf:"endpoint"`

	// SamplingRate is the trace sampling rate (0.0 to 1.0).
	SamplingRate float64 `koanf:"sampling_rate"`

	ExportTimeout time.Duration `koanf:"export_timeout"`

	// Headers are sent with every OTLP export.
	Headers map[string]string `koanf:"headers"`

	// Insecure disables TLS for the OTLP connection.
	Insecure bool `koanf:"insecure"`
}

// MetricsConfig configures drift and execution metrics.
type MetricsConfig struct {
	Enabled bool `koanf:"enabled"`

	// Namespace prefixes every metric name.
	Namespace string `koanf:"namespace"`

	// Textfile is the node-exporter textfile collector file metrics are written to
	// after each command. Empty disables writing.
	Textfile string `koanf:"textfile"`
}

// DefaultConfig returns the default telemetry configuration: console logs on
// stderr, tracing off, metrics collected but not written.
func DefaultConfig() *Config {
	return &Config{
		ServiceName:    "hostsync",
		ServiceVersion: "dev",
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			Output:     "stderr",
			TimeFormat: "rfc3339",
		},
		Tracing: TracingConfig{
			Enabled:       false,
			Exporter:      "none",
			SamplingRate:  1.0,
			ExportTimeout: 10 * time.Second,
			Headers:       make(map[string]string),
			Insecure:      true,
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "hostsync",
		},
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.ServiceName == "" {
		return fmt.Errorf("service name is required")
	}

	validLevels := map[string]bool{
		"trace": true, "debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.Logging.Format != "console" && c.Logging.Format != "json" {
		return fmt.Errorf("invalid log format: %s (must be 'console' or 'json')", c.Logging.Format)
	}

	validExporters := map[string]bool{"otlp": true, "stdout": true, "none": true}
	if c.Tracing.Enabled && !validExporters[c.Tracing.Exporter] {
		return fmt.Errorf("invalid trace exporter: %s", c.Tracing.Exporter)
	}
	if c.Tracing.Enabled && c.Tracing.Exporter == "otlp" && c.Tracing.Endpoint == "" {
		return fmt.Errorf("otlp exporter requires an endpoint")
	}

	if c.Tracing.SamplingRate < 0 || c.Tracing.SamplingRate > 1 {
		return fmt.Errorf("trace sampling rate must be between 0 and 1, got: %f", c.Tracing.SamplingRate)
	}

	return nil
}
