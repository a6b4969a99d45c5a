package teardown

import (
	"context"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
)

// localGateway is the implicit target of the VPC-internal route
const localGateway = "local"

func deletePeeringConnections(ctx context.Context, r *Runner, s *stepRun) error {
	peerings, err := r.listPeeringConnections(ctx, s.vpcID)
	if err != nil {
		return err
	}
	for _, pcx := range peerings {
		id := awssdk.ToString(pcx.VpcPeeringConnectionId)
		if pcx.Status != nil && pcx.Status.Code == types.VpcPeeringConnectionStateReasonCodeDeleted {
			continue
		}
		s.attempt(ctx, id, "DeleteVpcPeeringConnection", func(ctx context.Context) error {
			_, err := r.ec2.DeleteVpcPeeringConnection(ctx, &ec2.DeleteVpcPeeringConnectionInput{VpcPeeringConnectionId: awssdk.String(id)})
			return err
		})
	}
	return nil
}

// releaseAddresses frees the addresses of every instance of the VPC,
// disassociating them first
func releaseAddresses(ctx context.Context, r *Runner, s *stepRun) error {
	instances, err := r.listInstances(ctx, s.vpcID)
	if err != nil {
		return err
	}
	for _, inst := range instances {
		var out *ec2.DescribeAddressesOutput
		err := r.call(ctx, "DescribeAddresses", func(ctx context.Context) error {
			var err error
			out, err = r.ec2.DescribeAddresses(ctx, &ec2.DescribeAddressesInput{Filters: vpcFilter("instance-id", inst.ID())})
			return err
		})
		if err != nil {
			s.fail(ctx, inst.ID(), err)
			continue
		}

		for _, addr := range out.Addresses {
			allocID := awssdk.ToString(addr.AllocationId)
			if assocID := awssdk.ToString(addr.AssociationId); assocID != "" {
				s.attempt(ctx, assocID, "DisassociateAddress", func(ctx context.Context) error {
					_, err := r.ec2.DisassociateAddress(ctx, &ec2.DisassociateAddressInput{AssociationId: awssdk.String(assocID)})
					return err
				})
				if err := r.pause(ctx); err != nil {
					return err
				}
			}
			s.attempt(ctx, allocID, "ReleaseAddress", func(ctx context.Context) error {
				_, err := r.ec2.ReleaseAddress(ctx, &ec2.ReleaseAddressInput{AllocationId: awssdk.String(allocID)})
				return err
			})
		}

		if err := r.pause(ctx); err != nil {
			return err
		}
	}
	return nil
}

func deleteNetworkInterfaces(ctx context.Context, r *Runner, s *stepRun) error {
	nics, err := r.listNetworkInterfaces(ctx, s.vpcID)
	if err != nil {
		return err
	}
	for _, nic := range nics {
		id := awssdk.ToString(nic.NetworkInterfaceId)
		s.attempt(ctx, id, "DeleteNetworkInterface", func(ctx context.Context) error {
			_, err := r.ec2.DeleteNetworkInterface(ctx, &ec2.DeleteNetworkInterfaceInput{NetworkInterfaceId: awssdk.String(id)})
			return err
		})
	}
	return nil
}

func deleteInternetGateways(ctx context.Context, r *Runner, s *stepRun) error {
	gateways, err := r.listInternetGateways(ctx, s.vpcID)
	if err != nil {
		return err
	}
	for _, igw := range gateways {
		id := awssdk.ToString(igw.InternetGatewayId)
		for _, att := range igw.Attachments {
			attachedTo := awssdk.ToString(att.VpcId)
			s.attempt(ctx, id, "DetachInternetGateway", func(ctx context.Context) error {
				_, err := r.ec2.DetachInternetGateway(ctx, &ec2.DetachInternetGatewayInput{
					InternetGatewayId: awssdk.String(id),
					VpcId:             awssdk.String(attachedTo),
				})
				return err
			})
			if err := r.pause(ctx); err != nil {
				return err
			}
		}
		s.attempt(ctx, id, "DeleteInternetGateway", func(ctx context.Context) error {
			_, err := r.ec2.DeleteInternetGateway(ctx, &ec2.DeleteInternetGatewayInput{InternetGatewayId: awssdk.String(id)})
			return err
		})
	}
	return r.pause(ctx)
}

// deleteNatGateway removes the first live NAT gateway of the VPC. A VPC built
// by this tool has at most one.
func deleteNatGateway(ctx context.Context, r *Runner, s *stepRun) error {
	gateways, err := r.listNatGateways(ctx, s.vpcID)
	if err != nil {
		return err
	}
	var live []types.NatGateway
	for _, gw := range gateways {
		if gw.State != types.NatGatewayStateDeleted && gw.State != types.NatGatewayStateDeleting {
			live = append(live, gw)
		}
	}
	if len(live) == 0 {
		return nil
	}
	if len(live) > 1 {
		r.logger.LogOperationWarning(ctx, s.opCtx.WithMetadata("natGateways", len(live)), "More than one NAT gateway found, deleting only the first")
	}

	id := awssdk.ToString(live[0].NatGatewayId)
	s.attempt(ctx, id, "DeleteNatGateway", func(ctx context.Context) error {
		_, err := r.ec2.DeleteNatGateway(ctx, &ec2.DeleteNatGatewayInput{NatGatewayId: awssdk.String(id)})
		return err
	})
	return nil
}

// deleteRoutes removes every route but the local one from every table of the VPC
func deleteRoutes(ctx context.Context, r *Runner, s *stepRun) error {
	tables, err := r.listRouteTables(ctx, s.vpcID)
	if err != nil {
		return err
	}
	for _, rt := range tables {
		rtbID := awssdk.ToString(rt.RouteTableId)
		for _, route := range rt.Routes {
			if awssdk.ToString(route.GatewayId) == localGateway {
				continue
			}
			input := &ec2.DeleteRouteInput{RouteTableId: awssdk.String(rtbID)}
			var dest string
			switch {
			case route.DestinationCidrBlock != nil:
				dest = awssdk.ToString(route.DestinationCidrBlock)
				input.DestinationCidrBlock = route.DestinationCidrBlock
			case route.DestinationIpv6CidrBlock != nil:
				dest = awssdk.ToString(route.DestinationIpv6CidrBlock)
				input.DestinationIpv6CidrBlock = route.DestinationIpv6CidrBlock
			case route.DestinationPrefixListId != nil:
				dest = awssdk.ToString(route.DestinationPrefixListId)
				input.DestinationPrefixListId = route.DestinationPrefixListId
			default:
				continue
			}
			s.attempt(ctx, rtbID+":"+dest, "DeleteRoute", func(ctx context.Context) error {
				_, err := r.ec2.DeleteRoute(ctx, input)
				return err
			})
		}
	}
	return nil
}

// deleteRouteTables disassociates every subnet and deletes every table but
// the main one, which goes away with the VPC
func deleteRouteTables(ctx context.Context, r *Runner, s *stepRun) error {
	tables, err := r.listRouteTables(ctx, s.vpcID)
	if err != nil {
		return err
	}
	for _, rt := range tables {
		rtbID := awssdk.ToString(rt.RouteTableId)
		isMain := false
		for _, assoc := range rt.Associations {
			if awssdk.ToBool(assoc.Main) {
				isMain = true
				continue
			}
			assocID := awssdk.ToString(assoc.RouteTableAssociationId)
			s.attempt(ctx, assocID, "DisassociateRouteTable", func(ctx context.Context) error {
				_, err := r.ec2.DisassociateRouteTable(ctx, &ec2.DisassociateRouteTableInput{AssociationId: awssdk.String(assocID)})
				return err
			})
		}
		if isMain {
			continue
		}
		s.attempt(ctx, rtbID, "DeleteRouteTable", func(ctx context.Context) error {
			_, err := r.ec2.DeleteRouteTable(ctx, &ec2.DeleteRouteTableInput{RouteTableId: awssdk.String(rtbID)})
			return err
		})
	}
	return nil
}

func deleteSubnets(ctx context.Context, r *Runner, s *stepRun) error {
	subnets, err := r.listSubnets(ctx, s.vpcID)
	if err != nil {
		return err
	}
	for _, subnet := range subnets {
		id := awssdk.ToString(subnet.SubnetId)
		s.attempt(ctx, id, "DeleteSubnet", func(ctx context.Context) error {
			_, err := r.ec2.DeleteSubnet(ctx, &ec2.DeleteSubnetInput{SubnetId: awssdk.String(id)})
			return err
		})
	}
	return r.pause(ctx)
}

// deleteVpc deletes the VPC itself. A VPC that no longer exists is skipped.
func deleteVpc(ctx context.Context, r *Runner, s *stepRun) error {
	vpcs, err := r.listVpcs(ctx, s.vpcID)
	if err != nil {
		return err
	}
	if len(vpcs) == 0 {
		r.log.Info("VPC already deleted", "vpcID", s.vpcID)
		s.Skipped = true
		return nil
	}
	s.result.VpcDeleted = s.attempt(ctx, s.vpcID, "DeleteVpc", func(ctx context.Context) error {
		_, err := r.ec2.DeleteVpc(ctx, &ec2.DeleteVpcInput{VpcId: awssdk.String(s.vpcID)})
		return err
	})
	if s.result.VpcDeleted {
		r.log.Info("VPC deleted", "vpcID", s.vpcID)
	} else if n := len(s.Failed); n > 0 {
		r.log.Error(s.Failed[n-1].Err, "Failed to delete VPC", "vpcID", s.vpcID)
	}
	return nil
}
