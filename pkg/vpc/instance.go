package vpc

import (
	"context"
	"fmt"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
)

// DefaultInstanceType is used when InstanceSpec.InstanceType is empty
const DefaultInstanceType = "t2.medium"

// InstanceSpec describes the instances to launch into the topology
type InstanceSpec struct {
	ImageID string
	// NATImageID, when set, launches a NAT instance in the public subnet
	NATImageID   string
	KeyName      string
	InstanceType string
	TagPrefix    string

	PublicSubnet  *Subnet
	PrivateSubnet *Subnet
	PublicGroup   *SecurityGroup
	PrivateGroup  *SecurityGroup
}

// RunInstances launches the NAT instance (when requested), the bouncer and
// the private worker one after the other, then waits for them to be running.
// Instances still not running after the wait timeout are logged and returned
// as they are.
func (b *Builder) RunInstances(ctx context.Context, spec InstanceSpec) (nat, bouncer, private *Instance, err error) {
	opCtx := b.operation("run-instances")
	if spec.PublicSubnet != nil {
		opCtx.WithVpc(spec.PublicSubnet.VpcID)
	}
	b.logger.LogOperationStart(ctx, opCtx, "Running instances")

	instanceType := spec.InstanceType
	if instanceType == "" {
		instanceType = DefaultInstanceType
	}

	if spec.NATImageID != "" {
		nat, err = b.launch(ctx, spec.NATImageID, instanceType, spec.KeyName, spec.PublicSubnet, spec.PublicGroup, RoleNAT, spec.TagPrefix+suffixNAT)
		if err != nil {
			return nil, nil, nil, b.finish(ctx, opCtx, err, "Run NAT instance")
		}
	}

	bouncer, err = b.launch(ctx, spec.ImageID, instanceType, spec.KeyName, spec.PublicSubnet, spec.PublicGroup, RoleBouncer, spec.TagPrefix+suffixBouncer)
	if err != nil {
		return nat, nil, nil, b.finish(ctx, opCtx, err, "Run bouncer instance")
	}

	private, err = b.launch(ctx, spec.ImageID, instanceType, spec.KeyName, spec.PrivateSubnet, spec.PrivateGroup, RolePrivateWorker, spec.TagPrefix+suffixInstance)
	if err != nil {
		return nat, bouncer, nil, b.finish(ctx, opCtx, err, "Run private instance")
	}

	stragglers := b.waiter.ForState(ctx, Refreshables(nat, bouncer, private), StateRunning, b.waitTimeout)
	if len(stragglers) > 0 {
		ids := make([]string, 0, len(stragglers))
		for _, s := range stragglers {
			ids = append(ids, s.ID())
		}
		b.logger.LogStragglers(ctx, opCtx, StateRunning, ids)
	}

	return nat, bouncer, private, b.finish(ctx, opCtx, nil, "Instances launched")
}

func (b *Builder) launch(ctx context.Context, imageID, instanceType, keyName string, subnet *Subnet, group *SecurityGroup, role InstanceRole, name string) (*Instance, error) {
	if subnet == nil || group == nil {
		return nil, fmt.Errorf("%w %s: subnet and security group are required", ErrInstanceRun, role)
	}

	input := &ec2.RunInstancesInput{
		ImageId:          awssdk.String(imageID),
		InstanceType:     types.InstanceType(instanceType),
		MinCount:         awssdk.Int32(1),
		MaxCount:         awssdk.Int32(1),
		SubnetId:         awssdk.String(subnet.ID),
		SecurityGroupIds: []string{group.ID},
	}
	if keyName != "" {
		input.KeyName = awssdk.String(keyName)
	}

	var out *ec2.RunInstancesOutput
	err := b.call(ctx, "RunInstances", func(ctx context.Context) error {
		var err error
		out, err = b.ec2.RunInstances(ctx, input)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w %s from %s: %w", ErrInstanceRun, role, imageID, err)
	}
	if len(out.Instances) == 0 {
		return nil, fmt.Errorf("%w %s from %s: no instance returned", ErrInstanceRun, role, imageID)
	}

	inst := NewInstance(out.Instances[0], role, b.ec2, b.caller)
	b.log.Info("Instance launched", "instanceID", inst.ID(), "role", role, "subnetID", subnet.ID)

	if err := b.tag(ctx, inst.ID(), TagName, name); err != nil {
		return inst, err
	}
	return inst, nil
}

// setSourceDestCheck toggles the source/destination check of an instance
func (b *Builder) setSourceDestCheck(ctx context.Context, inst *Instance, enabled bool) error {
	err := b.call(ctx, "ModifyInstanceAttribute", func(ctx context.Context) error {
		_, err := b.ec2.ModifyInstanceAttribute(ctx, &ec2.ModifyInstanceAttributeInput{
			InstanceId:      awssdk.String(inst.ID()),
			SourceDestCheck: &types.AttributeBooleanValue{Value: awssdk.Bool(enabled)},
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("%w %s sourceDestCheck=%t: %w", ErrInstanceAttribute, inst.ID(), enabled, err)
	}
	inst.SourceDestCheck = enabled
	return nil
}
