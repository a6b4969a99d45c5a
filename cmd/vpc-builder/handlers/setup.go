package handlers

import (
	"context"
	"fmt"
	"io"

	"github.com/johnlam90/vpc-builder/pkg/vpc"
)

// Setup handles the setup command.
//
// It provisions the VPC topology and prints the created resources. When a
// step fails, the VPC ID is still printed so the partial VPC can be torn down.
func Setup(ctx context.Context, opts GlobalOptions, setupOpts vpc.SetupOptions, out io.Writer) error {
	env, err := newEnvironment(ctx, opts)
	if err != nil {
		return err
	}
	defer env.close()

	setup, err := env.builder.Setup(ctx, setupOpts)
	if setup != nil {
		printSetup(out, setup)
	}
	if err != nil {
		if setup != nil && setup.Vpc != nil {
			return fmt.Errorf("setup of %s failed, run teardown --vpc %s --terminate-instances to clean up: %w", setup.Vpc.ID, setup.Vpc.ID, err)
		}
		return fmt.Errorf("setup failed: %w", err)
	}
	return nil
}

func printSetup(out io.Writer, s *vpc.Setup) {
	if s.Vpc == nil {
		return
	}
	fmt.Fprintf(out, "VPC:            %s (%s)\n", s.Vpc.ID, s.Vpc.CIDRBlock)
	if s.PublicSubnet != nil {
		fmt.Fprintf(out, "Public subnet:  %s (%s)\n", s.PublicSubnet.ID, s.PublicSubnet.CIDRBlock)
	}
	if s.PrivateSubnet != nil {
		fmt.Fprintf(out, "Private subnet: %s (%s)\n", s.PrivateSubnet.ID, s.PrivateSubnet.CIDRBlock)
	}
	if s.Gateway != nil {
		fmt.Fprintf(out, "Gateway:        %s\n", s.Gateway.ID)
	}
	for _, inst := range s.Instances() {
		ip := inst.PrivateIP
		if inst.PublicIP != "" {
			ip = inst.PublicIP
		}
		fmt.Fprintf(out, "Instance:       %s %s %s %s\n", inst.ID(), inst.Role, inst.State, ip)
	}
}
