package commands

import (
	"github.com/spf13/cobra"

	"github.com/johnlam90/vpc-builder/cmd/vpc-builder/handlers"
	"github.com/johnlam90/vpc-builder/pkg/keypair"
)

// KeyPair returns the keypair command.
func KeyPair(global *handlers.GlobalOptions) *cobra.Command {
	var name, dir string

	cmd := &cobra.Command{
		Use:   "keypair",
		Short: "Create a key pair and save its private key",
		Long: `Keypair creates a key pair and writes the private key to <dir>/<name>.pem
with mode 0600. An existing file is never overwritten.

Example:
  vpc-builder keypair --name key1 --dir ~/.ssh/vpc-builder`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.KeyPair(cmd.Context(), *global, name, dir, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Key pair name (default test_key_ with the date and time)")
	cmd.Flags().StringVar(&dir, "dir", keypair.DefaultDirectory, "Directory for the private key file")

	return cmd
}
