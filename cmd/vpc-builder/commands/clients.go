package commands

import (
	"github.com/spf13/cobra"

	"github.com/johnlam90/vpc-builder/cmd/vpc-builder/handlers"
)

// Clients returns the clients command.
func Clients(global *handlers.GlobalOptions) *cobra.Command {
	var probe bool

	cmd := &cobra.Command{
		Use:   "clients",
		Short: "List the configured service clients",
		Long: `Clients lists the compute, load balancer, identity and object storage
clients and whether an endpoint is configured for each.

With --probe every configured client makes one read-only call, and the
command fails if any of them does.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Clients(cmd.Context(), *global, probe, cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&probe, "probe", false, "Call each configured service")

	return cmd
}
