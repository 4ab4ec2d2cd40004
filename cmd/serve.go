package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/giantswarm/foo-controller/internal/app"
	"github.com/giantswarm/foo-controller/internal/config"
	"github.com/giantswarm/foo-controller/internal/server"
	"github.com/giantswarm/foo-controller/pkg/logging"
)

// serveCmd runs the controller until SIGINT or SIGTERM.
var serveCmd = &cobra.Command{
	Use:     "server",
	Aliases: []string{"serve"},
	Short:   "Run the controller and its HTTP server",
	Long: `Runs the controller: every Foo object is reconciled after each change
and periodically afterwards, and /health, /metrics and /status are served on
the listen address.

Configuration is read from the file given with --config, then from
environment variables prefixed with FOO_CONTROLLER_ (for example
FOO_CONTROLLER_STORE_TYPE=filesystem), then from flags.

The store defaults to the Kubernetes API server from the kubeconfig or the
in-cluster service account; the Foo CRD must be installed
(foo-controller crdgen | kubectl apply -f -).`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

// runServe is the main entry point for the serve command
func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := app.NewConfig(viper.GetBool("debug"), configPath)
	cfg.Version = rootCmd.Version

	application, err := app.NewApplication(ctx, cfg)
	if err != nil {
		reportConfigErrors(cmd.ErrOrStderr(), err)
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	if err := application.Run(ctx); err != nil {
		logging.Error("CLI", err, "Controller stopped with an error")
		return err
	}
	return nil
}

// reportConfigErrors prints the per-section report when err carries
// configuration errors.
func reportConfigErrors(w io.Writer, err error) bool {
	var cfgErrs *config.ConfigurationErrorCollection
	if !errors.As(err, &cfgErrs) || !cfgErrs.HasErrors() {
		return false
	}
	fmt.Fprintln(w, cfgErrs.GetDetailedReport())
	return true
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("addr", "a", server.DefaultAddr, "Address to listen on")
	if err := viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr")); err != nil {
		logging.Error("CLI", err, "Error binding addr flag")
	}
}
