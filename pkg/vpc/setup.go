package vpc

import (
	"context"
	"fmt"
	"net/netip"
)

// Setup defaults
const (
	DefaultVpcCIDR           = "10.0.0.0/16"
	DefaultPublicSubnetCIDR  = "10.0.1.0/24"
	DefaultPrivateSubnetCIDR = "10.0.2.0/24"
)

// SetupOptions configures SetupVPC
type SetupOptions struct {
	// ImageID is the image of the bouncer and the private worker
	ImageID string
	// NATImageID, when set, adds a NAT instance in the public subnet
	NATImageID string
	// KeyName is the key pair installed on every instance
	KeyName      string
	InstanceType string
	// TagPrefix prefixes every Name tag
	TagPrefix string

	VpcCIDR           string
	PublicSubnetCIDR  string
	PrivateSubnetCIDR string
}

// applyDefaults fills empty fields with the package defaults
func (o *SetupOptions) applyDefaults() {
	if o.VpcCIDR == "" {
		o.VpcCIDR = DefaultVpcCIDR
	}
	if o.PublicSubnetCIDR == "" {
		o.PublicSubnetCIDR = DefaultPublicSubnetCIDR
	}
	if o.PrivateSubnetCIDR == "" {
		o.PrivateSubnetCIDR = DefaultPrivateSubnetCIDR
	}
	if o.InstanceType == "" {
		o.InstanceType = DefaultInstanceType
	}
}

// Validate checks required fields and that both subnets fit in the VPC
func (o *SetupOptions) Validate() error {
	if o.ImageID == "" {
		return fmt.Errorf("%w: image ID is required", ErrInvalidOptions)
	}
	if o.KeyName == "" {
		return fmt.Errorf("%w: key name is required", ErrInvalidOptions)
	}

	vpcPrefix, err := netip.ParsePrefix(o.VpcCIDR)
	if err != nil {
		return fmt.Errorf("%w: VPC CIDR %q: %w", ErrInvalidOptions, o.VpcCIDR, err)
	}
	subnets := map[string]string{"public": o.PublicSubnetCIDR, "private": o.PrivateSubnetCIDR}
	parsed := map[string]netip.Prefix{}
	for role, cidr := range subnets {
		p, err := netip.ParsePrefix(cidr)
		if err != nil {
			return fmt.Errorf("%w: %s subnet CIDR %q: %w", ErrInvalidOptions, role, cidr, err)
		}
		if p.Bits() < vpcPrefix.Bits() || !vpcPrefix.Contains(p.Addr()) {
			return fmt.Errorf("%w: %s subnet %s is outside VPC %s", ErrInvalidOptions, role, cidr, o.VpcCIDR)
		}
		parsed[role] = p
	}
	if parsed["public"].Overlaps(parsed["private"]) {
		return fmt.Errorf("%w: public subnet %s overlaps private subnet %s", ErrInvalidOptions, o.PublicSubnetCIDR, o.PrivateSubnetCIDR)
	}
	return nil
}

// Setup holds every resource created by SetupVPC. Fields are nil for the
// resources not created before a failure. NAT is nil without a NAT image.
type Setup struct {
	Vpc     *Vpc
	NAT     *Instance
	Bouncer *Instance
	Private *Instance

	PublicSubnet  *Subnet
	PrivateSubnet *Subnet
	PublicGroup   *SecurityGroup
	PrivateGroup  *SecurityGroup
	Gateway       *InternetGateway
	Addresses     []Address
}

// SetupVPC builds the whole topology: network, internet gateway, security
// groups, instances, routes and public IPs, in that order. There is no
// rollback; on error the partial Setup is returned with it.
func (b *Builder) SetupVPC(ctx context.Context, opts SetupOptions) (*Setup, error) {
	opts.applyDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	opCtx := b.operation("setup-vpc").WithMetadata("tagPrefix", opts.TagPrefix)
	b.logger.LogOperationStart(ctx, opCtx, "Setting up VPC")

	setup := &Setup{}
	var err error

	setup.Vpc, setup.PublicSubnet, setup.PrivateSubnet, err = b.CreateNetwork(ctx, opts.VpcCIDR, opts.PublicSubnetCIDR, opts.PrivateSubnetCIDR, opts.TagPrefix)
	if err != nil {
		return setup, b.finish(ctx, opCtx, err, "Set up VPC")
	}
	opCtx.WithVpc(setup.Vpc.ID)

	if setup.Gateway, err = b.CreateGateway(ctx, setup.Vpc); err != nil {
		return setup, b.finish(ctx, opCtx, err, "Set up VPC")
	}

	if setup.PublicGroup, setup.PrivateGroup, err = b.CreateSecurityGroups(ctx, setup.Vpc, opts.TagPrefix); err != nil {
		return setup, b.finish(ctx, opCtx, err, "Set up VPC")
	}

	setup.NAT, setup.Bouncer, setup.Private, err = b.RunInstances(ctx, InstanceSpec{
		ImageID:       opts.ImageID,
		NATImageID:    opts.NATImageID,
		KeyName:       opts.KeyName,
		InstanceType:  opts.InstanceType,
		TagPrefix:     opts.TagPrefix,
		PublicSubnet:  setup.PublicSubnet,
		PrivateSubnet: setup.PrivateSubnet,
		PublicGroup:   setup.PublicGroup,
		PrivateGroup:  setup.PrivateGroup,
	})
	if err != nil {
		return setup, b.finish(ctx, opCtx, err, "Set up VPC")
	}

	if err := b.ConfigureNetworkFlows(ctx, setup.Vpc, setup.PublicSubnet, setup.PrivateSubnet, setup.Gateway, setup.NAT); err != nil {
		return setup, b.finish(ctx, opCtx, err, "Set up VPC")
	}

	if setup.Addresses, err = b.SetupPublicIPs(ctx, setup.NAT, setup.Bouncer); err != nil {
		return setup, b.finish(ctx, opCtx, err, "Set up VPC")
	}

	for _, inst := range []*Instance{setup.NAT, setup.Bouncer, setup.Private} {
		if inst == nil {
			continue
		}
		if _, err := inst.Refresh(ctx); err != nil {
			b.log.Info("Failed to refresh instance", "instanceID", inst.ID(), "error", err.Error())
		}
	}

	return setup, b.finish(ctx, opCtx, nil, "VPC set up")
}

// Instances returns the created instances, skipping nil ones
func (s *Setup) Instances() []*Instance {
	var out []*Instance
	for _, inst := range []*Instance{s.NAT, s.Bouncer, s.Private} {
		if inst != nil {
			out = append(out, inst)
		}
	}
	return out
}
