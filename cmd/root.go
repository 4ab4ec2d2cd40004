package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/giantswarm/foo-controller/pkg/logging"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (startup failure, invalid arguments).
	ExitCodeError = 1
)

// Persistent flag values shared by every subcommand.
var (
	configPath string
	debug      bool
)

// rootCmd represents the base command for the controller.
// It is the entry point when the application is called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "foo-controller",
	Short: "Reconcile Foo resources",
	Long: `foo-controller watches Foo custom resources and keeps their status
up to date. It serves health, metrics and reconcile status over HTTP and can
print the Foo CustomResourceDefinition for installation.`,
	// SilenceUsage prevents Cobra from printing the usage message on errors that are handled by the application.
	SilenceUsage: true,
}

// SetVersion sets the version for the root command.
// This function is typically called from the main package to inject the application version at build time.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application.
// This function is called by main.main().
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "foo-controller version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(ExitCodeError)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML configuration file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		logging.Error("CLI", err, "Error binding debug flag")
	}

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newCRDGenCmd())
}
