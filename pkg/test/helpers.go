// Package test provides utilities for tests that run against a real cloud.
package test

import (
	"context"
	"os"
	"testing"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/testr"
	"github.com/johnlam90/vpc-builder/pkg/config"
	"github.com/johnlam90/vpc-builder/pkg/lib"
)

// SkipIfNoAWSCredentials skips the test if no access key is configured
func SkipIfNoAWSCredentials(t *testing.T) {
	t.Helper()

	if os.Getenv("AWS_ACCESS_KEY_ID") == "" || os.Getenv("AWS_SECRET_ACCESS_KEY") == "" {
		t.Skip("Skipping test that requires cloud credentials - AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY must be set")
	}
}

// SkipIfNoImage returns the image ID stored in env, or skips the test
func SkipIfNoImage(t *testing.T, env string) string {
	t.Helper()

	image := os.Getenv(env)
	if image == "" {
		t.Skipf("Skipping test that requires an image ID - %s is not set", env)
	}
	return image
}

// CreateTestLogger creates a logger for testing
func CreateTestLogger(t *testing.T) logr.Logger {
	return testr.New(t)
}

// CreateTestVPCBuilder creates a builder connected to the configured cloud.
// The test is skipped when credentials are missing and fails when the
// configuration does not load or no compute endpoint is configured.
func CreateTestVPCBuilder(t *testing.T) *lib.VPCBuilder {
	t.Helper()

	SkipIfNoAWSCredentials(t)

	logger := CreateTestLogger(t)
	cfg, warnings, err := config.LoadBuilderConfig()
	if err != nil {
		t.Fatalf("Failed to load configuration: %v", err)
	}
	for _, w := range warnings {
		t.Logf("Configuration warning: %s", w)
	}

	builder, err := lib.NewVPCBuilderWithConfig(context.Background(), cfg, logger)
	if err != nil {
		t.Fatalf("Failed to create VPC builder: %v", err)
	}
	if builder.Clients().Compute == nil {
		t.Fatal("No compute endpoint configured - set FCU_ENDPOINT or OCB_DEFAULT_ENDPOINTS=true")
	}
	return builder
}
