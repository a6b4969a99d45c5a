package commands

import (
	"github.com/spf13/cobra"

	"github.com/johnlam90/vpc-builder/cmd/vpc-builder/handlers"
)

// Images returns the images command.
func Images(global *handlers.GlobalOptions) *cobra.Command {
	var patterns []string

	cmd := &cobra.Command{
		Use:   "images",
		Short: "Find an ebs x86_64 image by name",
		Long: `Images prints the ID of the first ebs-backed x86_64 image whose name
matches one of the patterns. Without --name the CentOS patterns are used.

Example:
  vpc-builder images --name 'centos-7*' --name 'CentOS-7*'`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Images(cmd.Context(), *global, patterns, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringArrayVar(&patterns, "name", nil, "Image name pattern, may be repeated")

	return cmd
}
