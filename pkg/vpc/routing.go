package vpc

import (
	"context"
	"fmt"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
)

const defaultRoute = "0.0.0.0/0"

// ConfigureNetworkFlows routes the private subnet, through the main route
// table, to the NAT instance when there is one, and gives the public subnet
// its own table routing to the internet gateway.
func (b *Builder) ConfigureNetworkFlows(ctx context.Context, vpc *Vpc, public, private *Subnet, igw *InternetGateway, nat *Instance) error {
	opCtx := b.operation("configure-network-flows").WithVpc(vpc.ID)
	if private != nil {
		opCtx.WithMetadata("privateSubnet", private.ID)
	}
	b.logger.LogOperationStart(ctx, opCtx, "Configuring network flows")

	mainID, err := b.mainRouteTable(ctx, vpc)
	if err != nil {
		return b.finish(ctx, opCtx, err, "Find main route table")
	}

	if nat != nil {
		if err := b.createRoute(ctx, mainID, &ec2.CreateRouteInput{InstanceId: awssdk.String(nat.ID())}); err != nil {
			return b.finish(ctx, opCtx, err, "Route main table to NAT")
		}
	}
	if err := b.tag(ctx, mainID, TagName, mainRouteTableName(vpc.ID)); err != nil {
		return b.finish(ctx, opCtx, err, "Tag main route table")
	}

	var created *ec2.CreateRouteTableOutput
	err = b.call(ctx, "CreateRouteTable", func(ctx context.Context) error {
		var err error
		created, err = b.ec2.CreateRouteTable(ctx, &ec2.CreateRouteTableInput{VpcId: awssdk.String(vpc.ID)})
		return err
	})
	if err != nil {
		return b.finish(ctx, opCtx, fmt.Errorf("%w: create in %s: %w", ErrRouteTable, vpc.ID, err), "Create route table")
	}
	rtbID := awssdk.ToString(created.RouteTable.RouteTableId)
	if err := b.tag(ctx, rtbID, TagName, secondRouteTableName(vpc.ID)); err != nil {
		return b.finish(ctx, opCtx, err, "Tag route table")
	}
	if err := b.pause(ctx); err != nil {
		return err
	}
	b.log.Info("Route table created", "routeTableID", rtbID)

	err = b.call(ctx, "AssociateRouteTable", func(ctx context.Context) error {
		_, err := b.ec2.AssociateRouteTable(ctx, &ec2.AssociateRouteTableInput{
			RouteTableId: awssdk.String(rtbID),
			SubnetId:     awssdk.String(public.ID),
		})
		return err
	})
	if err != nil {
		return b.finish(ctx, opCtx, fmt.Errorf("%w: associate %s with %s: %w", ErrRouteTable, rtbID, public.ID, err), "Associate route table")
	}
	if err := b.pause(ctx); err != nil {
		return err
	}

	if err := b.createRoute(ctx, rtbID, &ec2.CreateRouteInput{GatewayId: awssdk.String(igw.ID)}); err != nil {
		return b.finish(ctx, opCtx, err, "Route public table to internet gateway")
	}

	if nat != nil {
		if err := b.setSourceDestCheck(ctx, nat, false); err != nil {
			return b.finish(ctx, opCtx, err, "Disable NAT source/destination check")
		}
	}

	return b.finish(ctx, opCtx, nil, "Network flows configured")
}

func (b *Builder) mainRouteTable(ctx context.Context, vpc *Vpc) (string, error) {
	var out *ec2.DescribeRouteTablesOutput
	err := b.call(ctx, "DescribeRouteTables", func(ctx context.Context) error {
		var err error
		out, err = b.ec2.DescribeRouteTables(ctx, &ec2.DescribeRouteTablesInput{
			Filters: []types.Filter{
				{Name: awssdk.String("vpc-id"), Values: []string{vpc.ID}},
				{Name: awssdk.String("association.main"), Values: []string{"true"}},
			},
		})
		return err
	})
	if err != nil {
		return "", fmt.Errorf("%w: describe main table of %s: %w", ErrRouteTable, vpc.ID, err)
	}
	if len(out.RouteTables) == 0 {
		return "", fmt.Errorf("%w: no main route table in %s", ErrRouteTable, vpc.ID)
	}
	return awssdk.ToString(out.RouteTables[0].RouteTableId), nil
}

// createRoute adds the default route to a table. target carries the gateway
// or instance to route through.
func (b *Builder) createRoute(ctx context.Context, routeTableID string, target *ec2.CreateRouteInput) error {
	target.RouteTableId = awssdk.String(routeTableID)
	target.DestinationCidrBlock = awssdk.String(defaultRoute)
	err := b.call(ctx, "CreateRoute", func(ctx context.Context) error {
		_, err := b.ec2.CreateRoute(ctx, target)
		return err
	})
	if err != nil {
		return fmt.Errorf("%w %s in %s: %w", ErrRoute, defaultRoute, routeTableID, err)
	}
	return nil
}
