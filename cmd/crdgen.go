package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	foov1 "github.com/giantswarm/foo-controller/pkg/apis/foo/v1"
)

// newCRDGenCmd creates the command printing the Foo CRD as YAML.
func newCRDGenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "crdgen",
		Short: "Print the Foo CustomResourceDefinition",
		Long: `Print the Foo CustomResourceDefinition as YAML. Install it with:

  foo-controller crdgen | kubectl apply -f -`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := foov1.CustomResourceDefinitionYAML()
			if err != nil {
				return fmt.Errorf("failed to render CRD: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}
