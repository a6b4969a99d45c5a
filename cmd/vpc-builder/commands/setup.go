package commands

import (
	"github.com/spf13/cobra"

	"github.com/johnlam90/vpc-builder/cmd/vpc-builder/handlers"
	"github.com/johnlam90/vpc-builder/pkg/vpc"
)

// Setup returns the setup command.
//
// The setup command creates a VPC with a public and a private subnet, an
// internet gateway, two security groups and up to three instances.
func Setup(global *handlers.GlobalOptions) *cobra.Command {
	var opts vpc.SetupOptions

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Create a VPC with public and private subnets",
		Long: `Setup provisions a VPC topology:
  - a VPC with one public and one private subnet
  - an internet gateway routed from the public subnet
  - a public security group open to SSH from your public IP
  - a private security group open to SSH from the public one
  - a bouncer in the public subnet and a worker in the private subnet
  - a NAT instance when --nat-image is set

There is no rollback. When a step fails the VPC ID is printed so the
partial VPC can be removed with teardown.

Example:
  vpc-builder setup --image ami-12345678 --key key1 --nat-image ami-87654321`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Setup(cmd.Context(), *global, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.ImageID, "image", "", "Image ID for the bouncer and private instances (required)")
	cmd.Flags().StringVar(&opts.KeyName, "key", "", "Key pair name for the instances (required)")
	cmd.Flags().StringVar(&opts.NATImageID, "nat-image", "", "Image ID for the NAT instance, none when empty")
	cmd.Flags().StringVar(&opts.VpcCIDR, "vpc-cidr", vpc.DefaultVpcCIDR, "VPC CIDR block")
	cmd.Flags().StringVar(&opts.PublicSubnetCIDR, "public-cidr", vpc.DefaultPublicSubnetCIDR, "Public subnet CIDR block")
	cmd.Flags().StringVar(&opts.PrivateSubnetCIDR, "private-cidr", vpc.DefaultPrivateSubnetCIDR, "Private subnet CIDR block")
	cmd.Flags().StringVar(&opts.InstanceType, "instance-type", vpc.DefaultInstanceType, "Instance type")
	cmd.Flags().StringVar(&opts.TagPrefix, "tag-prefix", "", "Prefix for resource Name tags")
	_ = cmd.MarkFlagRequired("image")
	_ = cmd.MarkFlagRequired("key")

	return cmd
}
