package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// newVersionCmd creates the Cobra command for displaying the application version.
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of foo-controller",
		Long:  `All software has versions. This is foo-controller's.`,
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "foo-controller version %s (%s, %s/%s)\n",
				rootCmd.Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
}
