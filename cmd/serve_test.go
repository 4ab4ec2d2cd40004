package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/giantswarm/foo-controller/internal/config"
)

func TestReportConfigErrors(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Controller.Workers = 0
	cfg.Store.Type = config.StoreFilesystem

	validationErr := cfg.Validate()
	if validationErr == nil {
		t.Fatal("expected validation to fail")
	}
	err := fmt.Errorf("failed to initialize application: %w",
		fmt.Errorf("invalid configuration: %w", validationErr))

	var buf bytes.Buffer
	if !reportConfigErrors(&buf, err) {
		t.Fatal("expected a report for configuration errors")
	}

	out := buf.String()
	for _, want := range []string{"Section controller (1 errors)", "Section store (1 errors)", "controller.workers", "store.path"} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
}

func TestReportConfigErrorsIgnoresOtherErrors(t *testing.T) {
	var buf bytes.Buffer
	if reportConfigErrors(&buf, errors.New("store not ready")) {
		t.Error("unexpected report for a non-configuration error")
	}
	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}
}
