package commands

import (
	"github.com/spf13/cobra"

	"github.com/johnlam90/vpc-builder/cmd/vpc-builder/handlers"
	"github.com/johnlam90/vpc-builder/pkg/keypair"
	"github.com/johnlam90/vpc-builder/pkg/sshexec"
)

// Connect returns the connect command.
//
// The connect command is an end-to-end check of a region: it builds a VPC,
// logs into the bouncer and offers to delete everything again.
func Connect(global *handlers.GlobalOptions) *cobra.Command {
	var opts handlers.ConnectOptions

	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Set up a VPC, run a command on the bouncer, then tear it down",
		Long: `Connect creates a key pair and a VPC, connects to the bouncer over SSH
and runs "ls -la /root". It then asks whether to tear the VPC down.

Example:
  vpc-builder connect --nat-image ami-87654321 --yes`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Connect(cmd.Context(), *global, opts, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.ImageID, "image", "", "Image ID for the instances, looked up when empty")
	cmd.Flags().StringVar(&opts.NATImageID, "nat-image", "", "Image ID for the NAT instance, none when empty")
	cmd.Flags().StringVar(&opts.User, "user", sshexec.DefaultUser, "SSH user on the bouncer")
	cmd.Flags().StringVar(&opts.KeyDir, "key-dir", keypair.DefaultDirectory, "Directory for the private key file")
	cmd.Flags().BoolVarP(&opts.Yes, "yes", "y", false, "Tear down without asking")

	return cmd
}
