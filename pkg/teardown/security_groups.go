package teardown

import (
	"context"
	"fmt"
	"strings"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
)

// defaultGroupName marks the group created with the VPC, which cannot be deleted
const defaultGroupName = "default"

// grants splits permissions into one permission per source so that each
// rule is revoked, and reported, on its own
func grants(perms []types.IpPermission) []types.IpPermission {
	var out []types.IpPermission
	for _, p := range perms {
		base := types.IpPermission{IpProtocol: p.IpProtocol, FromPort: p.FromPort, ToPort: p.ToPort}
		for _, r := range p.IpRanges {
			g := base
			g.IpRanges = []types.IpRange{{CidrIp: r.CidrIp}}
			out = append(out, g)
		}
		for _, r := range p.Ipv6Ranges {
			g := base
			g.Ipv6Ranges = []types.Ipv6Range{{CidrIpv6: r.CidrIpv6}}
			out = append(out, g)
		}
		for _, pair := range p.UserIdGroupPairs {
			g := base
			g.UserIdGroupPairs = []types.UserIdGroupPair{{GroupId: pair.GroupId, UserId: pair.UserId}}
			out = append(out, g)
		}
		for _, pl := range p.PrefixListIds {
			g := base
			g.PrefixListIds = []types.PrefixListId{{PrefixListId: pl.PrefixListId}}
			out = append(out, g)
		}
	}
	return out
}

// grantLabel names a single grant in logs and results
func grantLabel(groupID, direction string, g types.IpPermission) string {
	var source string
	switch {
	case len(g.IpRanges) > 0:
		source = awssdk.ToString(g.IpRanges[0].CidrIp)
	case len(g.Ipv6Ranges) > 0:
		source = awssdk.ToString(g.Ipv6Ranges[0].CidrIpv6)
	case len(g.UserIdGroupPairs) > 0:
		source = awssdk.ToString(g.UserIdGroupPairs[0].GroupId)
	case len(g.PrefixListIds) > 0:
		source = awssdk.ToString(g.PrefixListIds[0].PrefixListId)
	}
	return fmt.Sprintf("%s:%s:%s:%d-%d:%s", groupID, direction, awssdk.ToString(g.IpProtocol),
		awssdk.ToInt32(g.FromPort), awssdk.ToInt32(g.ToPort), source)
}

// revokeSecurityGroupRules empties every group of the VPC. Groups referencing
// each other cannot be deleted until both sides are flushed.
func revokeSecurityGroupRules(ctx context.Context, r *Runner, s *stepRun) error {
	groups, err := r.listSecurityGroups(ctx, s.vpcID)
	if err != nil {
		return err
	}
	for _, sg := range groups {
		groupID := awssdk.ToString(sg.GroupId)
		for _, g := range grants(sg.IpPermissions) {
			s.attempt(ctx, grantLabel(groupID, "ingress", g), "RevokeSecurityGroupIngress", func(ctx context.Context) error {
				_, err := r.ec2.RevokeSecurityGroupIngress(ctx, &ec2.RevokeSecurityGroupIngressInput{
					GroupId:       awssdk.String(groupID),
					IpPermissions: []types.IpPermission{g},
				})
				return err
			})
		}
		for _, g := range grants(sg.IpPermissionsEgress) {
			s.attempt(ctx, grantLabel(groupID, "egress", g), "RevokeSecurityGroupEgress", func(ctx context.Context) error {
				_, err := r.ec2.RevokeSecurityGroupEgress(ctx, &ec2.RevokeSecurityGroupEgressInput{
					GroupId:       awssdk.String(groupID),
					IpPermissions: []types.IpPermission{g},
				})
				return err
			})
		}
	}
	return nil
}

func deleteSecurityGroups(ctx context.Context, r *Runner, s *stepRun) error {
	groups, err := r.listSecurityGroups(ctx, s.vpcID)
	if err != nil {
		return err
	}
	for _, sg := range groups {
		groupID, name := awssdk.ToString(sg.GroupId), awssdk.ToString(sg.GroupName)
		if strings.Contains(name, defaultGroupName) {
			continue
		}
		s.attempt(ctx, groupID, "DeleteSecurityGroup", func(ctx context.Context) error {
			_, err := r.ec2.DeleteSecurityGroup(ctx, &ec2.DeleteSecurityGroupInput{GroupId: awssdk.String(groupID)})
			return err
		})
	}
	return nil
}
