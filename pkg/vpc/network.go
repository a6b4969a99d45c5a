package vpc

import (
	"context"
	"fmt"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
)

// CreateNetwork creates the VPC and its public and private subnets, then
// names them after tagPrefix. Resources created before a failure are
// returned with the error.
func (b *Builder) CreateNetwork(ctx context.Context, vpcCIDR, publicCIDR, privateCIDR, tagPrefix string) (*Vpc, *Subnet, *Subnet, error) {
	opCtx := b.operation("create-network").WithMetadata("vpcCIDR", vpcCIDR)
	b.logger.LogOperationStart(ctx, opCtx, "Creating network")

	vpc, err := b.createVpc(ctx, vpcCIDR)
	if err != nil {
		return nil, nil, nil, b.finish(ctx, opCtx, err, "Create network")
	}
	opCtx.WithVpc(vpc.ID)
	b.log.Info("VPC created", "vpcID", vpc.ID, "cidr", vpc.CIDRBlock)

	if err := b.pause(ctx); err != nil {
		return vpc, nil, nil, err
	}

	public, err := b.createSubnet(ctx, vpc, publicCIDR, SubnetPublic)
	if err != nil {
		return vpc, nil, nil, b.finish(ctx, opCtx, err, "Create network")
	}
	b.log.Info("Public subnet created", "subnetID", public.ID, "cidr", public.CIDRBlock)

	private, err := b.createSubnet(ctx, vpc, privateCIDR, SubnetPrivate)
	if err != nil {
		return vpc, public, nil, b.finish(ctx, opCtx, err, "Create network")
	}
	b.log.Info("Private subnet created", "subnetID", private.ID, "cidr", private.CIDRBlock)

	for _, t := range []struct{ id, name string }{
		{vpc.ID, tagPrefix},
		{public.ID, tagPrefix + suffixPublic},
		{private.ID, tagPrefix + suffixPrivate},
	} {
		if err := b.tag(ctx, t.id, TagName, t.name); err != nil {
			return vpc, public, private, b.finish(ctx, opCtx, err, "Create network")
		}
	}

	return vpc, public, private, b.finish(ctx, opCtx, nil, "Network created")
}

func (b *Builder) createVpc(ctx context.Context, cidr string) (*Vpc, error) {
	var out *ec2.CreateVpcOutput
	err := b.call(ctx, "CreateVpc", func(ctx context.Context) error {
		var err error
		out, err = b.ec2.CreateVpc(ctx, &ec2.CreateVpcInput{CidrBlock: awssdk.String(cidr)})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrVPCCreate, cidr, err)
	}
	return &Vpc{
		ID:        awssdk.ToString(out.Vpc.VpcId),
		CIDRBlock: awssdk.ToString(out.Vpc.CidrBlock),
	}, nil
}

func (b *Builder) createSubnet(ctx context.Context, vpc *Vpc, cidr string, role SubnetRole) (*Subnet, error) {
	var out *ec2.CreateSubnetOutput
	err := b.call(ctx, "CreateSubnet", func(ctx context.Context) error {
		var err error
		out, err = b.ec2.CreateSubnet(ctx, &ec2.CreateSubnetInput{
			VpcId:     awssdk.String(vpc.ID),
			CidrBlock: awssdk.String(cidr),
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w %s %s: %w", ErrSubnetCreate, role, cidr, err)
	}
	return &Subnet{
		ID:        awssdk.ToString(out.Subnet.SubnetId),
		VpcID:     vpc.ID,
		CIDRBlock: awssdk.ToString(out.Subnet.CidrBlock),
		Role:      role,
	}, nil
}
