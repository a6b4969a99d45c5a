package vpc

import (
	"context"
	"fmt"
	"net/netip"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/johnlam90/vpc-builder/pkg/aws"
)

const (
	publicGroupDescription  = "public security group"
	privateGroupDescription = "private security group"
)

// ingressRule is one protocol and port range opened from a single source
type ingressRule struct {
	protocol    string
	fromPort    int32
	toPort      int32
	sourceCIDR  netip.Prefix
	sourceGroup string
}

func (r ingressRule) permission() types.IpPermission {
	p := types.IpPermission{
		IpProtocol: awssdk.String(r.protocol),
		FromPort:   awssdk.Int32(r.fromPort),
		ToPort:     awssdk.Int32(r.toPort),
	}
	switch {
	case r.sourceGroup != "":
		p.UserIdGroupPairs = []types.UserIdGroupPair{{GroupId: awssdk.String(r.sourceGroup)}}
	case r.sourceCIDR.Addr().Is6():
		p.Ipv6Ranges = []types.Ipv6Range{{CidrIpv6: awssdk.String(r.sourceCIDR.String())}}
	default:
		p.IpRanges = []types.IpRange{{CidrIp: awssdk.String(r.sourceCIDR.String())}}
	}
	return p
}

func (r ingressRule) source() string {
	if r.sourceGroup != "" {
		return r.sourceGroup
	}
	return r.sourceCIDR.String()
}

// CreateSecurityGroups creates the public and private groups of vpc. The
// public group accepts SSH from the caller's address and all traffic from the
// private group; the private group accepts SSH from the public group.
func (b *Builder) CreateSecurityGroups(ctx context.Context, vpc *Vpc, tagPrefix string) (*SecurityGroup, *SecurityGroup, error) {
	opCtx := b.operation("create-security-groups").WithVpc(vpc.ID)
	b.logger.LogOperationStart(ctx, opCtx, "Creating security groups")

	sshSource := b.sshSourcePrefix(ctx)
	b.log.Info("Public security group allows SSH", "source", sshSource.String())

	public, err := b.createGroup(ctx, vpc, tagPrefix+suffixPublic, publicGroupDescription)
	if err != nil {
		return nil, nil, b.finish(ctx, opCtx, err, "Create security groups")
	}
	private, err := b.createGroup(ctx, vpc, tagPrefix+suffixPrivate, privateGroupDescription)
	if err != nil {
		return public, nil, b.finish(ctx, opCtx, err, "Create security groups")
	}

	publicRules := []ingressRule{
		{protocol: "tcp", fromPort: 22, toPort: 22, sourceCIDR: sshSource},
		{protocol: "tcp", fromPort: 0, toPort: 65535, sourceGroup: private.ID},
		{protocol: "udp", fromPort: 0, toPort: 65535, sourceGroup: private.ID},
		{protocol: "icmp", fromPort: -1, toPort: -1, sourceGroup: private.ID},
	}
	for _, rule := range publicRules {
		if err := b.authorize(ctx, public, rule); err != nil {
			return public, private, b.finish(ctx, opCtx, err, "Authorize security group ingress")
		}
	}

	privateRule := ingressRule{protocol: "tcp", fromPort: 22, toPort: 22, sourceGroup: public.ID}
	if err := b.authorize(ctx, private, privateRule); err != nil {
		return public, private, b.finish(ctx, opCtx, err, "Authorize security group ingress")
	}

	return public, private, b.finish(ctx, opCtx, nil, "Security groups created")
}

func (b *Builder) createGroup(ctx context.Context, vpc *Vpc, name, description string) (*SecurityGroup, error) {
	var out *ec2.CreateSecurityGroupOutput
	err := b.call(ctx, "CreateSecurityGroup", func(ctx context.Context) error {
		var err error
		out, err = b.ec2.CreateSecurityGroup(ctx, &ec2.CreateSecurityGroupInput{
			GroupName:   awssdk.String(name),
			Description: awssdk.String(description),
			VpcId:       awssdk.String(vpc.ID),
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrSecurityGroupCreate, name, err)
	}
	sg := &SecurityGroup{ID: awssdk.ToString(out.GroupId), Name: name, VpcID: vpc.ID}
	b.log.Info("Security group created", "groupID", sg.ID, "name", name)
	return sg, nil
}

// authorize opens rule on sg. A rule that already exists counts as success.
func (b *Builder) authorize(ctx context.Context, sg *SecurityGroup, rule ingressRule) error {
	err := b.call(ctx, "AuthorizeSecurityGroupIngress", func(ctx context.Context) error {
		_, err := b.ec2.AuthorizeSecurityGroupIngress(ctx, &ec2.AuthorizeSecurityGroupIngressInput{
			GroupId:       awssdk.String(sg.ID),
			IpPermissions: []types.IpPermission{rule.permission()},
		})
		return err
	})
	if aws.IsDuplicate(err) {
		b.log.V(1).Info("Ingress rule already present", "groupID", sg.ID, "protocol", rule.protocol, "source", rule.source())
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w %s %s %d-%d from %s: %w", ErrSecurityGroupAuthorize, sg.ID, rule.protocol, rule.fromPort, rule.toPort, rule.source(), err)
	}
	return nil
}
