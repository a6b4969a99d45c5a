// Package main is the entry point for the vpc-builder CLI.
//
// vpc-builder provisions a two-subnet VPC with a bouncer, a private worker
// and an optional NAT instance on an EC2-compatible cloud, and tears such
// VPCs down again in dependency order.
//
// Commands: setup, teardown, keypair, images, clients, connect.
//
// For detailed usage information, run:
//
//	vpc-builder --help
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/johnlam90/vpc-builder/cmd/vpc-builder/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := commands.Root().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
