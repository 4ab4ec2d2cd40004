package cmd

import (
	"bytes"
	"strings"
	"testing"
)

func TestSetVersion(t *testing.T) {
	originalVersion := rootCmd.Version
	defer func() { rootCmd.Version = originalVersion }()

	testVersion := "1.2.3-test"
	SetVersion(testVersion)

	if GetVersion() != testVersion {
		t.Errorf("Expected version to be %s, got %s", testVersion, GetVersion())
	}
}

func TestRootCommand(t *testing.T) {
	if rootCmd.Use != "foo-controller" {
		t.Errorf("Expected Use to be 'foo-controller', got %s", rootCmd.Use)
	}

	if rootCmd.Short == "" {
		t.Error("Expected Short description to be set")
	}

	if !rootCmd.SilenceUsage {
		t.Error("Expected SilenceUsage to be true")
	}

	for _, name := range []string{"config", "debug"} {
		if rootCmd.PersistentFlags().Lookup(name) == nil {
			t.Errorf("Expected persistent flag --%s", name)
		}
	}
}

func TestSubcommands(t *testing.T) {
	expectedCommands := []string{"version", "server", "crdgen", "list"}
	foundCommands := make(map[string]bool)

	for _, cmd := range rootCmd.Commands() {
		foundCommands[cmd.Name()] = true
	}

	for _, expected := range expectedCommands {
		if !foundCommands[expected] {
			t.Errorf("Expected subcommand %s to be registered", expected)
		}
	}
}

func TestServeCommandFlags(t *testing.T) {
	if serveCmd.Use != "server" {
		t.Errorf("Expected Use to be 'server', got %s", serveCmd.Use)
	}
	if len(serveCmd.Aliases) != 1 || serveCmd.Aliases[0] != "serve" {
		t.Errorf("Expected alias 'serve', got %v", serveCmd.Aliases)
	}

	addr := serveCmd.Flags().Lookup("addr")
	if addr == nil {
		t.Fatal("Expected --addr flag")
	}
	if addr.Shorthand != "a" {
		t.Errorf("Expected shorthand 'a', got %q", addr.Shorthand)
	}
	if addr.DefValue != "0.0.0.0:8080" {
		t.Errorf("Expected default 0.0.0.0:8080, got %s", addr.DefValue)
	}
}

func TestServeAliasResolves(t *testing.T) {
	cmd, _, err := rootCmd.Find([]string{"serve"})
	if err != nil {
		t.Fatalf("Error finding serve alias: %v", err)
	}
	if cmd != serveCmd {
		t.Errorf("Expected 'serve' to resolve to the server command, got %s", cmd.Name())
	}
}

func TestServeHelp(t *testing.T) {
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	defer func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	}()
	rootCmd.SetArgs([]string{"server", "--help"})

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("Error executing server help: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "--addr") {
		t.Errorf("Help output should mention --addr. Got: %q", output)
	}
	if !strings.Contains(output, "FOO_CONTROLLER_") {
		t.Errorf("Help output should mention the environment prefix. Got: %q", output)
	}
}
