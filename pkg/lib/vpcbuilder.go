// Package lib provides a clean API for using the VPC builder as a library in
// other Go projects. It wires configuration, service clients, the provisioning
// builder and the teardown runner behind one constructor.
package lib

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-logr/logr"
	"github.com/johnlam90/vpc-builder/pkg/aws"
	"github.com/johnlam90/vpc-builder/pkg/config"
	"github.com/johnlam90/vpc-builder/pkg/keypair"
	"github.com/johnlam90/vpc-builder/pkg/observability"
	"github.com/johnlam90/vpc-builder/pkg/teardown"
	"github.com/johnlam90/vpc-builder/pkg/vpc"
)

// ErrNilConfig is returned when a constructor is given a nil configuration
var ErrNilConfig = errors.New("config cannot be nil")

// VPCBuilder provisions and tears down VPCs. All operations share one API
// caller, so they share its rate limiter.
type VPCBuilder struct {
	clients *aws.Clients
	config  *config.BuilderConfig
	logger  logr.Logger
	caller  *aws.Caller

	builder *vpc.Builder
	runner  *teardown.Runner
	keys    *keypair.Creator
	images  *aws.ImageResolver
}

type options struct {
	builder []vpc.Option
	runner  []teardown.Option
}

// Option customizes the components built by NewVPCBuilderWithClients
type Option func(*options)

// WithBuilderOptions passes options to the provisioning builder
func WithBuilderOptions(opts ...vpc.Option) Option {
	return func(o *options) { o.builder = append(o.builder, opts...) }
}

// WithRunnerOptions passes options to the teardown runner
func WithRunnerOptions(opts ...teardown.Option) Option {
	return func(o *options) { o.runner = append(o.runner, opts...) }
}

// NewVPCBuilder loads the configuration from the environment and creates the
// service clients it describes. Configuration warnings are logged.
func NewVPCBuilder(ctx context.Context, logger logr.Logger) (*VPCBuilder, error) {
	cfg, warnings, err := config.LoadBuilderConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	for _, w := range warnings {
		logger.Info("Configuration warning", "warning", string(w))
	}
	return NewVPCBuilderWithConfig(ctx, cfg, logger)
}

// NewVPCBuilderWithConfig creates the service clients described by cfg
func NewVPCBuilderWithConfig(ctx context.Context, cfg *config.BuilderConfig, logger logr.Logger) (*VPCBuilder, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}
	clients, err := aws.NewClients(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create service clients: %w", err)
	}
	return NewVPCBuilderWithClients(clients, cfg, logger, observability.NewMetrics())
}

// NewVPCBuilderWithClients builds on existing clients, such as the in-memory
// mocks. metrics may be nil.
func NewVPCBuilderWithClients(clients *aws.Clients, cfg *config.BuilderConfig, logger logr.Logger, metrics *observability.Metrics, opts ...Option) (*VPCBuilder, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}
	if clients == nil || clients.Compute == nil {
		return nil, teardown.ErrNoComputeClient
	}

	caller := aws.NewCaller(logger, metrics, cfg.APIRateLimit, cfg.APIBurst)
	o := &options{
		builder: []vpc.Option{vpc.WithCaller(caller)},
		runner:  []teardown.Option{teardown.WithCaller(caller)},
	}
	for _, opt := range opts {
		opt(o)
	}

	runner, err := teardown.NewRunner(clients, cfg, logger, metrics, o.runner...)
	if err != nil {
		return nil, err
	}

	return &VPCBuilder{
		clients: clients,
		config:  cfg,
		logger:  logger,
		caller:  caller,
		builder: vpc.NewBuilder(clients.Compute, cfg, logger, metrics, o.builder...),
		runner:  runner,
		keys:    keypair.NewCreator(clients.Compute, caller, logger),
		images:  aws.NewImageResolver(clients.Compute, caller, logger),
	}, nil
}

// Clients returns the service clients
func (b *VPCBuilder) Clients() *aws.Clients {
	return b.clients
}

// Config returns the configuration
func (b *VPCBuilder) Config() *config.BuilderConfig {
	return b.config
}

// Setup provisions a VPC. On failure the resources created so far are
// returned alongside the error so they can be torn down.
func (b *VPCBuilder) Setup(ctx context.Context, opts vpc.SetupOptions) (*vpc.Setup, error) {
	return b.builder.SetupVPC(ctx, opts)
}

// Teardown deletes vpcID and everything in it. See teardown.Runner.Teardown.
func (b *VPCBuilder) Teardown(ctx context.Context, vpcID string, terminateInstances bool) (*teardown.Result, error) {
	if vpcID == "" {
		return nil, fmt.Errorf("VPC ID cannot be empty")
	}
	return b.runner.Teardown(ctx, vpcID, terminateInstances)
}

// CreateKeyPair creates a key pair and stores its private key under dir.
// Empty arguments take the keypair package defaults.
func (b *VPCBuilder) CreateKeyPair(ctx context.Context, name, dir string) (*keypair.KeyPair, error) {
	return b.keys.Create(ctx, name, dir)
}

// FindImage returns the first ebs x86_64 image matching namePatterns
func (b *VPCBuilder) FindImage(ctx context.Context, namePatterns ...string) (string, error) {
	return b.images.FindImage(ctx, namePatterns...)
}

// Probe checks every configured service endpoint with one read-only call
func (b *VPCBuilder) Probe(ctx context.Context) []aws.ServiceStatus {
	return b.clients.Probe(ctx, b.caller)
}
