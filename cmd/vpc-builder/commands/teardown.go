package commands

import (
	"github.com/spf13/cobra"

	"github.com/johnlam90/vpc-builder/cmd/vpc-builder/handlers"
)

// Teardown returns the teardown command.
//
// The teardown command deletes a VPC and every resource inside it.
func Teardown(global *handlers.GlobalOptions) *cobra.Command {
	var (
		vpcID              string
		terminateInstances bool
	)

	cmd := &cobra.Command{
		Use:   "teardown",
		Short: "Delete a VPC and everything in it",
		Long: `Teardown removes a VPC and its dependencies in order:
  - Instances (stopped, then terminated)
  - Peering connections
  - Public IPs
  - Network interfaces
  - Internet and NAT gateways
  - Routes
  - Load balancers
  - Route tables and subnets
  - Security group rules and groups

Instances are only removed with --terminate-instances. Without it teardown
refuses to run while the VPC still has instances. Failures on one resource
do not stop the run; every failure is listed in the summary.

Example:
  vpc-builder teardown --vpc vpc-12345678 --terminate-instances

WARNING: This operation is irreversible.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Teardown(cmd.Context(), *global, vpcID, terminateInstances, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&vpcID, "vpc", "", "ID of the VPC to delete (required)")
	cmd.Flags().BoolVar(&terminateInstances, "terminate-instances", false, "Stop and terminate the instances in the VPC")
	_ = cmd.MarkFlagRequired("vpc")

	return cmd
}
