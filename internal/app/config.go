package app

import (
	"io"

	"github.com/giantswarm/foo-controller/internal/config"
)

// Config holds the application configuration
type Config struct {
	// Debug forces debug logging regardless of the configured level.
	Debug bool

	// ConfigPath is an optional YAML file with controller settings.
	ConfigPath string

	// Version is reported in traces and logs.
	Version string

	// LogOutput receives log records. Defaults to stderr.
	LogOutput io.Writer

	// Settings is the resolved controller configuration. When nil it is
	// loaded from ConfigPath, the environment and bound flags.
	Settings *config.Config
}

// NewConfig creates a new application configuration
func NewConfig(debug bool, configPath string) *Config {
	return &Config{
		Debug:      debug,
		ConfigPath: configPath,
	}
}
