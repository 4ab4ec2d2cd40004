package config

import (
	"time"

	"github.com/giantswarm/foo-controller/internal/telemetry"
)

// Config is the top-level configuration of the controller.
type Config struct {
	Server     ServerConfig            `mapstructure:"server" yaml:"server"`
	Controller ControllerConfig        `mapstructure:"controller" yaml:"controller"`
	Watch      WatchConfig             `mapstructure:"watch" yaml:"watch"`
	Store      StoreConfig             `mapstructure:"store" yaml:"store"`
	Metrics    MetricsConfig           `mapstructure:"metrics" yaml:"metrics"`
	Tracing    telemetry.TracingConfig `mapstructure:"tracing" yaml:"tracing"`
	Logging    LoggingConfig           `mapstructure:"logging" yaml:"logging"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	// Addr is the host:port to listen on.
	Addr string `mapstructure:"addr" yaml:"addr"`

	// EnableStatus serves the per-object reconcile status on /status.
	EnableStatus bool `mapstructure:"enableStatus" yaml:"enableStatus"`

	// EnableControl serves the manual reconcile and kind toggle routes.
	EnableControl bool `mapstructure:"enableControl" yaml:"enableControl"`
}

// ErrorPolicyType selects how failed reconciles are retried.
type ErrorPolicyType string

const (
	// ErrorPolicyFixed retries after a constant delay.
	ErrorPolicyFixed ErrorPolicyType = "fixed"

	// ErrorPolicyExponential doubles the delay per consecutive failure.
	ErrorPolicyExponential ErrorPolicyType = "exponential"
)

// ControllerConfig configures the dispatcher.
type ControllerConfig struct {
	Workers          int             `mapstructure:"workers" yaml:"workers"`
	DefaultRequeue   time.Duration   `mapstructure:"defaultRequeue" yaml:"defaultRequeue"`
	ReconcileTimeout time.Duration   `mapstructure:"reconcileTimeout" yaml:"reconcileTimeout"`
	GracePeriod      time.Duration   `mapstructure:"gracePeriod" yaml:"gracePeriod"`
	ErrorPolicy      ErrorPolicyType `mapstructure:"errorPolicy" yaml:"errorPolicy"`

	// ErrorRequeue is the fixed retry delay, or the base delay of the
	// exponential policy.
	ErrorRequeue time.Duration `mapstructure:"errorRequeue" yaml:"errorRequeue"`

	// ErrorMaxBackoff caps the exponential policy.
	ErrorMaxBackoff time.Duration `mapstructure:"errorMaxBackoff" yaml:"errorMaxBackoff"`

	// DisabledKinds lists kinds that are watched but not reconciled.
	DisabledKinds []string `mapstructure:"disabledKinds" yaml:"disabledKinds,omitempty"`
}

// WatchConfig configures the watch source.
type WatchConfig struct {
	// ResyncPeriod is the interval between full relists. Zero disables resync.
	ResyncPeriod time.Duration `mapstructure:"resyncPeriod" yaml:"resyncPeriod"`

	// MaxBackoff caps the delay between reconnect attempts.
	MaxBackoff time.Duration `mapstructure:"maxBackoff" yaml:"maxBackoff"`
}

// StoreType selects the object store backend.
type StoreType string

const (
	// StoreKubernetes talks to the API server from the kubeconfig or
	// in-cluster service account.
	StoreKubernetes StoreType = "kubernetes"

	// StoreFilesystem loads manifests from a directory and follows changes.
	StoreFilesystem StoreType = "filesystem"

	// StoreMemory starts with an empty in-process store.
	StoreMemory StoreType = "memory"
)

// StoreConfig configures the object store.
type StoreConfig struct {
	Type StoreType `mapstructure:"type" yaml:"type"`

	// Namespace restricts the Kubernetes store; empty means all namespaces.
	Namespace string `mapstructure:"namespace" yaml:"namespace,omitempty"`

	// Path is the manifest directory of the filesystem store.
	Path string `mapstructure:"path" yaml:"path,omitempty"`
}

// MetricsConfig configures the metrics registry.
type MetricsConfig struct {
	// Namespace prefixes every metric name.
	Namespace string `mapstructure:"namespace" yaml:"namespace"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}
