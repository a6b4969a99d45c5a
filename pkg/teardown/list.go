package teardown

import (
	"context"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/johnlam90/vpc-builder/pkg/aws"
	"github.com/johnlam90/vpc-builder/pkg/vpc"
)

// paginate drains an SDK paginator, sending every page request through the caller
func paginate[O, T any](ctx context.Context, caller *aws.Caller, service, operation string, hasMore func() bool, next func(context.Context) (O, error), items func(O) []T) ([]T, error) {
	var all []T
	for hasMore() {
		var page O
		err := caller.Do(ctx, service, operation, func(ctx context.Context) error {
			var err error
			page, err = next(ctx)
			return err
		})
		if err != nil {
			return all, err
		}
		all = append(all, items(page)...)
	}
	return all, nil
}

func vpcFilter(name, vpcID string) []types.Filter {
	return []types.Filter{{Name: awssdk.String(name), Values: []string{vpcID}}}
}

func (r *Runner) listInstances(ctx context.Context, vpcID string) ([]*vpc.Instance, error) {
	p := ec2.NewDescribeInstancesPaginator(r.ec2, &ec2.DescribeInstancesInput{Filters: vpcFilter("vpc-id", vpcID)})
	reservations, err := paginate(ctx, r.caller, aws.ServiceCompute, "DescribeInstances", p.HasMorePages,
		func(ctx context.Context) (*ec2.DescribeInstancesOutput, error) { return p.NextPage(ctx) },
		func(o *ec2.DescribeInstancesOutput) []types.Reservation { return o.Reservations })
	if err != nil {
		return nil, err
	}
	var out []*vpc.Instance
	for _, res := range reservations {
		for _, inst := range res.Instances {
			out = append(out, vpc.NewInstance(inst, "", r.ec2, r.caller))
		}
	}
	return out, nil
}

func (r *Runner) listPeeringConnections(ctx context.Context, vpcID string) ([]types.VpcPeeringConnection, error) {
	p := ec2.NewDescribeVpcPeeringConnectionsPaginator(r.ec2, &ec2.DescribeVpcPeeringConnectionsInput{
		Filters: vpcFilter("requester-vpc-info.vpc-id", vpcID),
	})
	return paginate(ctx, r.caller, aws.ServiceCompute, "DescribeVpcPeeringConnections", p.HasMorePages,
		func(ctx context.Context) (*ec2.DescribeVpcPeeringConnectionsOutput, error) { return p.NextPage(ctx) },
		func(o *ec2.DescribeVpcPeeringConnectionsOutput) []types.VpcPeeringConnection { return o.VpcPeeringConnections })
}

func (r *Runner) listNetworkInterfaces(ctx context.Context, vpcID string) ([]types.NetworkInterface, error) {
	p := ec2.NewDescribeNetworkInterfacesPaginator(r.ec2, &ec2.DescribeNetworkInterfacesInput{Filters: vpcFilter("vpc-id", vpcID)})
	return paginate(ctx, r.caller, aws.ServiceCompute, "DescribeNetworkInterfaces", p.HasMorePages,
		func(ctx context.Context) (*ec2.DescribeNetworkInterfacesOutput, error) { return p.NextPage(ctx) },
		func(o *ec2.DescribeNetworkInterfacesOutput) []types.NetworkInterface { return o.NetworkInterfaces })
}

func (r *Runner) listInternetGateways(ctx context.Context, vpcID string) ([]types.InternetGateway, error) {
	p := ec2.NewDescribeInternetGatewaysPaginator(r.ec2, &ec2.DescribeInternetGatewaysInput{Filters: vpcFilter("attachment.vpc-id", vpcID)})
	return paginate(ctx, r.caller, aws.ServiceCompute, "DescribeInternetGateways", p.HasMorePages,
		func(ctx context.Context) (*ec2.DescribeInternetGatewaysOutput, error) { return p.NextPage(ctx) },
		func(o *ec2.DescribeInternetGatewaysOutput) []types.InternetGateway { return o.InternetGateways })
}

func (r *Runner) listNatGateways(ctx context.Context, vpcID string) ([]types.NatGateway, error) {
	p := ec2.NewDescribeNatGatewaysPaginator(r.ec2, &ec2.DescribeNatGatewaysInput{Filter: vpcFilter("vpc-id", vpcID)})
	return paginate(ctx, r.caller, aws.ServiceCompute, "DescribeNatGateways", p.HasMorePages,
		func(ctx context.Context) (*ec2.DescribeNatGatewaysOutput, error) { return p.NextPage(ctx) },
		func(o *ec2.DescribeNatGatewaysOutput) []types.NatGateway { return o.NatGateways })
}

func (r *Runner) listRouteTables(ctx context.Context, vpcID string) ([]types.RouteTable, error) {
	p := ec2.NewDescribeRouteTablesPaginator(r.ec2, &ec2.DescribeRouteTablesInput{Filters: vpcFilter("vpc-id", vpcID)})
	return paginate(ctx, r.caller, aws.ServiceCompute, "DescribeRouteTables", p.HasMorePages,
		func(ctx context.Context) (*ec2.DescribeRouteTablesOutput, error) { return p.NextPage(ctx) },
		func(o *ec2.DescribeRouteTablesOutput) []types.RouteTable { return o.RouteTables })
}

func (r *Runner) listSubnets(ctx context.Context, vpcID string) ([]types.Subnet, error) {
	p := ec2.NewDescribeSubnetsPaginator(r.ec2, &ec2.DescribeSubnetsInput{Filters: vpcFilter("vpc-id", vpcID)})
	return paginate(ctx, r.caller, aws.ServiceCompute, "DescribeSubnets", p.HasMorePages,
		func(ctx context.Context) (*ec2.DescribeSubnetsOutput, error) { return p.NextPage(ctx) },
		func(o *ec2.DescribeSubnetsOutput) []types.Subnet { return o.Subnets })
}

func (r *Runner) listSecurityGroups(ctx context.Context, vpcID string) ([]types.SecurityGroup, error) {
	p := ec2.NewDescribeSecurityGroupsPaginator(r.ec2, &ec2.DescribeSecurityGroupsInput{Filters: vpcFilter("vpc-id", vpcID)})
	return paginate(ctx, r.caller, aws.ServiceCompute, "DescribeSecurityGroups", p.HasMorePages,
		func(ctx context.Context) (*ec2.DescribeSecurityGroupsOutput, error) { return p.NextPage(ctx) },
		func(o *ec2.DescribeSecurityGroupsOutput) []types.SecurityGroup { return o.SecurityGroups })
}

func (r *Runner) listVpcs(ctx context.Context, vpcID string) ([]types.Vpc, error) {
	p := ec2.NewDescribeVpcsPaginator(r.ec2, &ec2.DescribeVpcsInput{Filters: vpcFilter("vpc-id", vpcID)})
	return paginate(ctx, r.caller, aws.ServiceCompute, "DescribeVpcs", p.HasMorePages,
		func(ctx context.Context) (*ec2.DescribeVpcsOutput, error) { return p.NextPage(ctx) },
		func(o *ec2.DescribeVpcsOutput) []types.Vpc { return o.Vpcs })
}
