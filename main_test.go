package main

import (
	"testing"

	"github.com/giantswarm/foo-controller/cmd"
)

func TestVersion(t *testing.T) {
	if version != "dev" {
		t.Errorf("Expected default version to be 'dev', got %s", version)
	}

	cmd.SetVersion(version)
	if cmd.GetVersion() != version {
		t.Errorf("Expected command version %s, got %s", version, cmd.GetVersion())
	}
}
