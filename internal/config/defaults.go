package config

import (
	"time"

	"github.com/giantswarm/foo-controller/internal/telemetry"
)

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Addr:         "0.0.0.0:8080",
			EnableStatus: true,
		},
		Controller: ControllerConfig{
			Workers:          2,
			DefaultRequeue:   time.Hour,
			ReconcileTimeout: 30 * time.Second,
			GracePeriod:      30 * time.Second,
			ErrorPolicy:      ErrorPolicyFixed,
			ErrorRequeue:     360 * time.Second,
			ErrorMaxBackoff:  15 * time.Minute,
		},
		Watch: WatchConfig{
			ResyncPeriod: 5 * time.Minute,
			MaxBackoff:   30 * time.Second,
		},
		Store: StoreConfig{
			Type: StoreKubernetes,
		},
		Metrics: MetricsConfig{
			Namespace: "foo_controller",
		},
		Tracing: telemetry.TracingConfig{
			Sampling: telemetry.DefaultSampling,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}
