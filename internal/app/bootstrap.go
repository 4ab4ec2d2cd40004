package app

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/giantswarm/foo-controller/internal/config"
	"github.com/giantswarm/foo-controller/pkg/logging"
)

// Application represents the main application structure that bootstraps and
// runs the controller.
type Application struct {
	config   *Config
	services *Services
}

// NewApplication loads and validates the configuration, initializes
// logging and builds every component. Nothing is started yet.
func NewApplication(ctx context.Context, cfg *Config) (*Application, error) {
	settings := cfg.Settings
	if settings == nil {
		loaded, err := config.Load(cfg.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load configuration: %w", err)
		}
		settings = loaded
	}
	if cfg.Debug {
		settings.Logging.Level = "debug"
	}
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	cfg.Settings = settings

	if err := initLogging(settings.Logging, cfg.LogOutput); err != nil {
		return nil, err
	}

	services, err := InitializeServices(ctx, cfg)
	if err != nil {
		logging.Error("Bootstrap", err, "Failed to initialize services")
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	return &Application{
		config:   cfg,
		services: services,
	}, nil
}

// Services returns the components built by NewApplication.
func (a *Application) Services() *Services {
	return a.services
}

func initLogging(lc config.LoggingConfig, output io.Writer) error {
	level, err := logging.ParseLevel(lc.Level)
	if err != nil {
		return err
	}
	format, err := logging.ParseFormat(lc.Format)
	if err != nil {
		return err
	}
	if output == nil {
		output = os.Stderr
	}
	logging.Init(level, format, output)
	return nil
}
