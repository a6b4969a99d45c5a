// Package commands defines the CLI command structure and flag bindings.
//
// Command execution is delegated to handler functions in the handlers package.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/johnlam90/vpc-builder/cmd/vpc-builder/handlers"
)

// Root returns the root command for the vpc-builder CLI.
//
// The global flags live on the root command and are shared by every
// subcommand through one handlers.GlobalOptions value.
func Root() *cobra.Command {
	global := &handlers.GlobalOptions{}

	cmd := &cobra.Command{
		Use:           "vpc-builder",
		Short:         "Provision and tear down VPCs on EC2-compatible clouds",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&global.Region, "region", "", "Region to work in (default from OCB_REGION or eu-west-2)")
	flags.BoolVar(&global.Stdout, "stdout", false, "Mirror log lines on standard output")
	flags.StringVar(&global.LogFile, "log-file", "", "Append logs to this file (default from OCB_LOG_FILE or /tmp/ocb.log)")
	flags.StringVar(&global.LogLevel, "log-level", "", "Log level: debug, info, warn or error")
	flags.StringVar(&global.MetricsFile, "metrics-file", "", "Write Prometheus metrics to this file on exit")

	cmd.AddCommand(Setup(global))
	cmd.AddCommand(Teardown(global))
	cmd.AddCommand(KeyPair(global))
	cmd.AddCommand(Images(global))
	cmd.AddCommand(Clients(global))
	cmd.AddCommand(Connect(global))

	return cmd
}
