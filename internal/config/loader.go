package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/spf13/viper"

	"github.com/giantswarm/foo-controller/pkg/logging"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "FOO_CONTROLLER"

// Load resolves the configuration from the global viper instance, which is
// where command line flags are bound. path may be empty.
func Load(path string) (*Config, error) {
	return LoadWithViper(viper.GetViper(), path)
}

// LoadWithViper resolves the configuration from v. Defaults are registered
// on v first so every key can be overridden from the environment.
func LoadWithViper(v *viper.Viper, path string) (*Config, error) {
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s does not exist: %w", path, err)
			}
			return nil, fmt.Errorf("error loading config from %s: %w", path, err)
		}
		logging.Info("ConfigLoader", "Loaded configuration from %s", path)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.enableStatus", d.Server.EnableStatus)
	v.SetDefault("server.enableControl", d.Server.EnableControl)

	v.SetDefault("controller.workers", d.Controller.Workers)
	v.SetDefault("controller.defaultRequeue", d.Controller.DefaultRequeue)
	v.SetDefault("controller.reconcileTimeout", d.Controller.ReconcileTimeout)
	v.SetDefault("controller.gracePeriod", d.Controller.GracePeriod)
	v.SetDefault("controller.errorPolicy", string(d.Controller.ErrorPolicy))
	v.SetDefault("controller.errorRequeue", d.Controller.ErrorRequeue)
	v.SetDefault("controller.errorMaxBackoff", d.Controller.ErrorMaxBackoff)
	v.SetDefault("controller.disabledKinds", d.Controller.DisabledKinds)

	v.SetDefault("watch.resyncPeriod", d.Watch.ResyncPeriod)
	v.SetDefault("watch.maxBackoff", d.Watch.MaxBackoff)

	v.SetDefault("store.type", string(d.Store.Type))
	v.SetDefault("store.namespace", d.Store.Namespace)
	v.SetDefault("store.path", d.Store.Path)

	v.SetDefault("metrics.namespace", d.Metrics.Namespace)

	v.SetDefault("tracing.enabled", d.Tracing.Enabled)
	v.SetDefault("tracing.endpoint", d.Tracing.Endpoint)
	v.SetDefault("tracing.insecure", d.Tracing.Insecure)
	v.SetDefault("tracing.sampling", d.Tracing.Sampling)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
}
