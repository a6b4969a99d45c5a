// Package vpcbuilder provisions and tears down VPCs on EC2-compatible clouds
// such as Outscale.
//
// This package can be used in two ways:
//
// 1. As a command-line tool (see cmd/vpc-builder)
// 2. As a library for building VPCs programmatically (see pkg/lib)
//
// For library usage, import the lib package:
//
//	import "github.com/johnlam90/vpc-builder/pkg/lib"
//
// Then use the VPCBuilder to set up and tear down a VPC:
//
//	builder, err := lib.NewVPCBuilder(ctx, logger)
//	if err != nil {
//	    log.Fatalf("Failed to create VPC builder: %v", err)
//	}
//
//	setup, err := builder.Setup(ctx, vpc.SetupOptions{
//	    ImageID: "ami-12345678",
//	    KeyName: "key1",
//	})
//
//	result, err := builder.Teardown(ctx, setup.Vpc.ID, true)
package vpcbuilder
