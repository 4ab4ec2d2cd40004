package config

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCollectsEveryError(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.Addr = "no-port"
	cfg.Controller.Workers = 0
	cfg.Controller.ErrorPolicy = "random"
	cfg.Store.Type = StoreFilesystem
	cfg.Logging.Level = "loud"

	err := cfg.Validate()
	require.Error(t, err)

	var errs *ConfigurationErrorCollection
	require.True(t, errors.As(err, &errs))
	assert.Equal(t, 5, errs.Count())

	fields := make([]string, 0, errs.Count())
	for _, e := range errs.Errors {
		fields = append(fields, e.Field)
	}
	assert.ElementsMatch(t, []string{
		"server.addr",
		"controller.workers",
		"controller.errorPolicy",
		"store.path",
		"logging.level",
	}, fields)

	assert.Len(t, errs.GetErrorsBySection("controller"), 2)
	assert.Contains(t, errs.Error(), "5 configuration errors")
	assert.Equal(t, []string{"server", "controller", "store", "logging"}, errs.Sections())

	report := errs.GetDetailedReport()
	assert.Contains(t, report, "Suggestions:")
	assert.Contains(t, report, "Section controller (2 errors)")
	assert.Less(t, strings.Index(report, "Section server"), strings.Index(report, "Section controller"))
}

func TestValidateExponentialBounds(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Controller.ErrorPolicy = ErrorPolicyExponential
	cfg.Controller.ErrorRequeue = time.Minute
	cfg.Controller.ErrorMaxBackoff = time.Second

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "controller.errorMaxBackoff")
}

func TestValidateTracingNeedsEndpoint(t *testing.T) {
	t.Setenv("OPENTELEMETRY_ENDPOINT_URL", "")
	cfg := DefaultConfig()
	cfg.Tracing.Enabled = true

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tracing")

	cfg.Tracing.Endpoint = "localhost:4318"
	assert.NoError(t, cfg.Validate())
}

func TestValidateListenAddr(t *testing.T) {
	tests := []struct {
		addr    string
		wantErr bool
	}{
		{"0.0.0.0:8080", false},
		{":8080", false},
		{"127.0.0.1:0", false},
		{"localhost", true},
		{"host:http", true},
		{"host:70000", true},
	}
	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			err := ValidateListenAddr("server.addr", tt.addr)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfigurationErrorFormatting(t *testing.T) {
	ce := ConfigurationError{
		FilePath:    "/etc/foo/config.yaml",
		Section:     "store",
		Field:       "store.path",
		ErrorType:   "validation",
		Message:     "is required",
		Suggestions: []string{"set it"},
	}
	assert.Equal(t, "[store] store.path: is required", ce.Error())
	detailed := ce.DetailedError()
	assert.Contains(t, detailed, "File: /etc/foo/config.yaml")
	assert.Contains(t, detailed, "- set it")

	empty := NewConfigurationErrorCollection()
	assert.False(t, empty.HasErrors())
	assert.Equal(t, "no configuration errors", empty.Error())
}
