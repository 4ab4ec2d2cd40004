// Package telemetry sets up OpenTelemetry tracing for the controller.
// Every reconcile runs in a span with a trace id; spans are exported over
// OTLP/HTTP when an endpoint is configured and discarded otherwise.
package telemetry

import (
	"fmt"
	"os"
)

const (
	// DefaultServiceName is the service name reported with every span.
	DefaultServiceName = "foo-controller"

	// DefaultSampling samples every trace.
	DefaultSampling = 1.0

	// EndpointEnvVar holds the collector URL when none is configured.
	EndpointEnvVar = "OPENTELEMETRY_ENDPOINT_URL"
)

// TracingConfig controls span export.
type TracingConfig struct {
	// Enabled turns on span export. A configured endpoint enables it too.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the OTLP/HTTP collector, as "host:port" or a full URL.
	// Falls back to $OPENTELEMETRY_ENDPOINT_URL.
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint,omitempty"`

	// Insecure allows plain HTTP to the collector.
	Insecure bool `mapstructure:"insecure" yaml:"insecure,omitempty"`

	// Sampling is the ratio of traces kept, from 0 to 1.
	Sampling float64 `mapstructure:"sampling" yaml:"sampling,omitempty"`
}

// GetEndpoint returns the configured endpoint or the one from the environment.
func (c *TracingConfig) GetEndpoint() string {
	if c.Endpoint != "" {
		return c.Endpoint
	}
	return os.Getenv(EndpointEnvVar)
}

// ExportEnabled reports whether spans are sent to a collector: either
// Enabled is set or an endpoint is known from config or the environment.
func (c *TracingConfig) ExportEnabled() bool {
	return c.Enabled || c.GetEndpoint() != ""
}

// GetSampling returns the sampling ratio, defaulting to DefaultSampling.
func (c *TracingConfig) GetSampling() float64 {
	if c.Sampling <= 0 {
		return DefaultSampling
	}
	return c.Sampling
}

// Validate checks the tracing configuration.
func (c *TracingConfig) Validate() error {
	if c.Sampling < 0 || c.Sampling > 1 {
		return fmt.Errorf("sampling must be between 0 and 1, got %v", c.Sampling)
	}
	if c.Enabled && c.GetEndpoint() == "" {
		return fmt.Errorf("tracing enabled but no endpoint set (configure tracing.endpoint or %s)", EndpointEnvVar)
	}
	return nil
}
