package vpc

import (
	"context"
	"fmt"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/johnlam90/vpc-builder/pkg/aws"
	"github.com/johnlam90/vpc-builder/pkg/waiter"
)

// Instance states as reported by the compute API
const (
	StatePending      = string(types.InstanceStateNamePending)
	StateRunning      = string(types.InstanceStateNameRunning)
	StateStopping     = string(types.InstanceStateNameStopping)
	StateStopped      = string(types.InstanceStateNameStopped)
	StateShuttingDown = string(types.InstanceStateNameShuttingDown)
	StateTerminated   = string(types.InstanceStateNameTerminated)
)

// SubnetRole tells the two subnets of the topology apart
type SubnetRole string

const (
	// SubnetPublic routes 0.0.0.0/0 through the internet gateway
	SubnetPublic SubnetRole = "public"
	// SubnetPrivate uses the main route table, through the NAT instance if any
	SubnetPrivate SubnetRole = "private"
)

// InstanceRole tells the instances of the topology apart
type InstanceRole string

const (
	RoleNAT           InstanceRole = "nat"
	RoleBouncer       InstanceRole = "bouncer"
	RolePrivateWorker InstanceRole = "private-worker"
)

// Vpc is a snapshot of a created VPC
type Vpc struct {
	ID        string
	CIDRBlock string
}

// Subnet is a snapshot of a created subnet
type Subnet struct {
	ID        string
	VpcID     string
	CIDRBlock string
	Role      SubnetRole
}

// SecurityGroup is a snapshot of a created security group
type SecurityGroup struct {
	ID    string
	Name  string
	VpcID string
}

// InternetGateway is a snapshot of an internet gateway and the VPCs it is attached to
type InternetGateway struct {
	ID          string
	Attachments []string
}

// Address is an allocated public IP and its association
type Address struct {
	AllocationID  string
	AssociationID string
	PublicIP      string
	InstanceID    string
}

// Instance is a refreshable snapshot of a compute instance
type Instance struct {
	InstanceID       string
	SubnetID         string
	SecurityGroupIDs []string
	Role             InstanceRole
	State            string
	PrivateIP        string
	PublicIP         string
	SourceDestCheck  bool

	api    aws.InstanceAPI
	caller *aws.Caller
}

var _ waiter.Refreshable = (*Instance)(nil)

// NewInstance wraps an SDK instance description. api and caller are used by Refresh.
func NewInstance(inst types.Instance, role InstanceRole, api aws.InstanceAPI, caller *aws.Caller) *Instance {
	i := &Instance{Role: role, api: api, caller: caller}
	i.update(inst)
	return i
}

// ID returns the instance ID
func (i *Instance) ID() string {
	return i.InstanceID
}

// Refresh re-reads the instance and returns its current state
func (i *Instance) Refresh(ctx context.Context) (string, error) {
	var out *ec2.DescribeInstancesOutput
	err := i.caller.Do(ctx, aws.ServiceCompute, "DescribeInstances", func(ctx context.Context) error {
		var err error
		out, err = i.api.DescribeInstances(ctx, &ec2.DescribeInstancesInput{InstanceIds: []string{i.InstanceID}})
		return err
	})
	if err != nil {
		return "", err
	}
	for _, r := range out.Reservations {
		for _, inst := range r.Instances {
			if awssdk.ToString(inst.InstanceId) == i.InstanceID {
				i.update(inst)
				return i.State, nil
			}
		}
	}
	return "", fmt.Errorf("instance %s missing from describe output", i.InstanceID)
}

func (i *Instance) update(inst types.Instance) {
	i.InstanceID = awssdk.ToString(inst.InstanceId)
	i.SubnetID = awssdk.ToString(inst.SubnetId)
	i.PrivateIP = awssdk.ToString(inst.PrivateIpAddress)
	i.PublicIP = awssdk.ToString(inst.PublicIpAddress)
	i.SourceDestCheck = awssdk.ToBool(inst.SourceDestCheck)
	if inst.State != nil {
		i.State = string(inst.State.Name)
	}
	i.SecurityGroupIDs = i.SecurityGroupIDs[:0]
	for _, g := range inst.SecurityGroups {
		i.SecurityGroupIDs = append(i.SecurityGroupIDs, awssdk.ToString(g.GroupId))
	}
}

// IsTerminal reports whether the instance can no longer reach stopped
func (i *Instance) IsTerminal() bool {
	return i.State == StateShuttingDown || i.State == StateTerminated
}

// Refreshables returns instances as waiter input, skipping nil entries
func Refreshables(instances ...*Instance) []waiter.Refreshable {
	out := make([]waiter.Refreshable, 0, len(instances))
	for _, inst := range instances {
		if inst != nil {
			out = append(out, inst)
		}
	}
	return out
}
