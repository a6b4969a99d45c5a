/*
Package lib provides a clean API for using the VPC builder as a library in
other Go projects.

It provisions a two-subnet VPC with a bouncer, an optional NAT instance and a
private worker, and tears VPCs down again with all their dependents.

Basic usage:

	// Create a logger
	zapLog, _ := zap.NewDevelopment()
	logger := zapr.NewLogger(zapLog)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	// Credentials and endpoints come from the environment and services.ini
	builder, err := lib.NewVPCBuilder(ctx, logger)
	if err != nil {
		log.Fatalf("Failed to create VPC builder: %v", err)
	}

	kp, err := builder.CreateKeyPair(ctx, "", "")
	if err != nil {
		log.Fatalf("Failed to create key pair: %v", err)
	}

	setup, err := builder.Setup(ctx, vpc.SetupOptions{
		ImageID:    "ami-12345678",
		NATImageID: "ami-87654321",
		KeyName:    kp.Name,
	})
	if err != nil {
		log.Fatalf("Failed to set up VPC: %v", err)
	}

	result, err := builder.Teardown(ctx, setup.Vpc.ID, true)
	if err != nil {
		log.Fatalf("Teardown refused: %v", err)
	}
	if err := result.Err(); err != nil {
		log.Printf("Teardown left resources behind: %v", err)
	}

For more examples, see the examples/library-usage directory.
*/
package lib
