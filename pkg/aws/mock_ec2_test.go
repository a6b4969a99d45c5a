package aws

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupMockNetwork creates a VPC with one subnet
func setupMockNetwork(t *testing.T) (*MockEC2Client, string, string) {
	t.Helper()
	m := NewMockEC2Client()
	ctx := context.Background()

	vpc, err := m.CreateVpc(ctx, &ec2.CreateVpcInput{CidrBlock: aws.String("10.0.0.0/16")})
	require.NoError(t, err)
	vpcID := aws.ToString(vpc.Vpc.VpcId)

	subnet, err := m.CreateSubnet(ctx, &ec2.CreateSubnetInput{VpcId: aws.String(vpcID), CidrBlock: aws.String("10.0.1.0/24")})
	require.NoError(t, err)
	return m, vpcID, aws.ToString(subnet.Subnet.SubnetId)
}

func TestMockEC2Client_CreateVpcSeedsDefaults(t *testing.T) {
	m, vpcID, _ := setupMockNetwork(t)

	require.Len(t, m.RouteTables, 1)
	for _, rt := range m.RouteTables {
		assert.Equal(t, vpcID, aws.ToString(rt.VpcId))
		assert.True(t, isMainRouteTable(rt))
		require.Len(t, rt.Routes, 1)
		assert.Equal(t, "local", aws.ToString(rt.Routes[0].GatewayId))
	}
	require.Len(t, m.SecurityGroups, 1)
	for _, sg := range m.SecurityGroups {
		assert.Equal(t, "default", aws.ToString(sg.GroupName))
	}
}

func TestMockEC2Client_SubnetRange(t *testing.T) {
	m, vpcID, _ := setupMockNetwork(t)
	ctx := context.Background()

	tests := []struct {
		cidr string
		code string
	}{
		{"192.168.0.0/24", "InvalidSubnet.Range"},
		{"10.0.0.0/8", "InvalidSubnet.Range"},
		{"10.0.1.0/24", "InvalidSubnet.Conflict"},
		{"garbage", "InvalidSubnet.Range"},
	}
	for _, tt := range tests {
		_, err := m.CreateSubnet(ctx, &ec2.CreateSubnetInput{VpcId: aws.String(vpcID), CidrBlock: aws.String(tt.cidr)})
		assert.Equal(t, tt.code, ErrorCode(err), tt.cidr)
	}
}

func TestMockEC2Client_DeleteVpcDependencies(t *testing.T) {
	m, vpcID, subnetID := setupMockNetwork(t)
	ctx := context.Background()

	_, err := m.DeleteVpc(ctx, &ec2.DeleteVpcInput{VpcId: aws.String(vpcID)})
	assert.Equal(t, "DependencyViolation", ErrorCode(err))

	_, err = m.DeleteSubnet(ctx, &ec2.DeleteSubnetInput{SubnetId: aws.String(subnetID)})
	require.NoError(t, err)

	_, err = m.DeleteVpc(ctx, &ec2.DeleteVpcInput{VpcId: aws.String(vpcID)})
	require.NoError(t, err)
	assert.Empty(t, m.Vpcs)
	assert.Empty(t, m.RouteTables, "the main route table goes with the VPC")
	assert.Empty(t, m.SecurityGroups, "the default group goes with the VPC")

	_, err = m.DeleteVpc(ctx, &ec2.DeleteVpcInput{VpcId: aws.String(vpcID)})
	assert.True(t, IsNotFound(err))
}

func TestMockEC2Client_DeleteSubnetWithInstance(t *testing.T) {
	m, _, subnetID := setupMockNetwork(t)
	ctx := context.Background()
	id := m.AddInstance(subnetID, types.InstanceStateNameStopped)

	_, err := m.DeleteSubnet(ctx, &ec2.DeleteSubnetInput{SubnetId: aws.String(subnetID)})
	assert.Equal(t, "DependencyViolation", ErrorCode(err))

	_, err = m.TerminateInstances(ctx, &ec2.TerminateInstancesInput{InstanceIds: []string{id}})
	require.NoError(t, err)
	assert.Equal(t, types.InstanceStateNameShuttingDown, m.InstanceState(id))

	_, err = m.DeleteSubnet(ctx, &ec2.DeleteSubnetInput{SubnetId: aws.String(subnetID)})
	assert.Equal(t, "DependencyViolation", ErrorCode(err), "shutting-down still blocks the subnet")

	_, err = m.DescribeInstances(ctx, &ec2.DescribeInstancesInput{InstanceIds: []string{id}})
	require.NoError(t, err)
	assert.Equal(t, types.InstanceStateNameTerminated, m.InstanceState(id))

	_, err = m.DeleteSubnet(ctx, &ec2.DeleteSubnetInput{SubnetId: aws.String(subnetID)})
	require.NoError(t, err)
}

func TestMockEC2Client_InstanceLifecycle(t *testing.T) {
	m, _, subnetID := setupMockNetwork(t)
	ctx := context.Background()
	id := m.AddInstance(subnetID, types.InstanceStateNamePending)

	describe := func() types.InstanceStateName {
		_, err := m.DescribeInstances(ctx, &ec2.DescribeInstancesInput{InstanceIds: []string{id}})
		require.NoError(t, err)
		return m.InstanceState(id)
	}

	assert.Equal(t, types.InstanceStateNameRunning, describe())
	assert.Equal(t, types.InstanceStateNameRunning, describe(), "running is stable")

	_, err := m.StopInstances(ctx, &ec2.StopInstancesInput{InstanceIds: []string{id}})
	require.NoError(t, err)
	assert.Equal(t, types.InstanceStateNameStopping, m.InstanceState(id))
	assert.Equal(t, types.InstanceStateNameStopped, describe())

	_, err = m.TerminateInstances(ctx, &ec2.TerminateInstancesInput{InstanceIds: []string{id}})
	require.NoError(t, err)
	_, err = m.StopInstances(ctx, &ec2.StopInstancesInput{InstanceIds: []string{id}})
	assert.Equal(t, "IncorrectInstanceState", ErrorCode(err))
	assert.Equal(t, types.InstanceStateNameTerminated, describe())
}

func TestMockEC2Client_StuckInstance(t *testing.T) {
	m, _, subnetID := setupMockNetwork(t)
	ctx := context.Background()
	id := m.AddInstance(subnetID, types.InstanceStateNameRunning)
	m.SetStuck(id, true)

	_, err := m.StopInstances(ctx, &ec2.StopInstancesInput{InstanceIds: []string{id}})
	require.NoError(t, err)
	for range 3 {
		_, err = m.DescribeInstances(ctx, &ec2.DescribeInstancesInput{InstanceIds: []string{id}})
		require.NoError(t, err)
	}
	assert.Equal(t, types.InstanceStateNameStopping, m.InstanceState(id))

	_, err = m.StopInstances(ctx, &ec2.StopInstancesInput{InstanceIds: []string{id}, Force: aws.Bool(true)})
	require.NoError(t, err)
	assert.Equal(t, types.InstanceStateNameStopping, m.InstanceState(id), "force does not unstick")

	m.SetStuck(id, false)
	_, err = m.StopInstances(ctx, &ec2.StopInstancesInput{InstanceIds: []string{id}, Force: aws.Bool(true)})
	require.NoError(t, err)
	assert.Equal(t, types.InstanceStateNameStopped, m.InstanceState(id))
}

func TestMockEC2Client_SecurityGroupReferences(t *testing.T) {
	m, vpcID, _ := setupMockNetwork(t)
	ctx := context.Background()

	create := func(name string) string {
		out, err := m.CreateSecurityGroup(ctx, &ec2.CreateSecurityGroupInput{
			GroupName: aws.String(name), Description: aws.String(name), VpcId: aws.String(vpcID),
		})
		require.NoError(t, err)
		return aws.ToString(out.GroupId)
	}
	public := create("public")
	private := create("private")

	perm := types.IpPermission{
		IpProtocol:       aws.String("tcp"),
		FromPort:         aws.Int32(22),
		ToPort:           aws.Int32(22),
		UserIdGroupPairs: []types.UserIdGroupPair{{GroupId: aws.String(public)}},
	}
	_, err := m.AuthorizeSecurityGroupIngress(ctx, &ec2.AuthorizeSecurityGroupIngressInput{GroupId: aws.String(private), IpPermissions: []types.IpPermission{perm}})
	require.NoError(t, err)
	_, err = m.AuthorizeSecurityGroupIngress(ctx, &ec2.AuthorizeSecurityGroupIngressInput{GroupId: aws.String(private), IpPermissions: []types.IpPermission{perm}})
	assert.True(t, IsDuplicate(err))

	_, err = m.DeleteSecurityGroup(ctx, &ec2.DeleteSecurityGroupInput{GroupId: aws.String(public)})
	assert.Equal(t, "DependencyViolation", ErrorCode(err), "private still references public")

	_, err = m.RevokeSecurityGroupIngress(ctx, &ec2.RevokeSecurityGroupIngressInput{GroupId: aws.String(private), IpPermissions: []types.IpPermission{perm}})
	require.NoError(t, err)
	_, err = m.RevokeSecurityGroupIngress(ctx, &ec2.RevokeSecurityGroupIngressInput{GroupId: aws.String(private), IpPermissions: []types.IpPermission{perm}})
	assert.Equal(t, "InvalidPermission.NotFound", ErrorCode(err))

	_, err = m.DeleteSecurityGroup(ctx, &ec2.DeleteSecurityGroupInput{GroupId: aws.String(public)})
	require.NoError(t, err)
}

func TestMockEC2Client_AddressLifecycle(t *testing.T) {
	m, _, subnetID := setupMockNetwork(t)
	ctx := context.Background()
	id := m.AddInstance(subnetID, types.InstanceStateNameRunning)

	alloc, err := m.AllocateAddress(ctx, &ec2.AllocateAddressInput{Domain: types.DomainTypeVpc})
	require.NoError(t, err)
	assoc, err := m.AssociateAddress(ctx, &ec2.AssociateAddressInput{AllocationId: alloc.AllocationId, InstanceId: aws.String(id)})
	require.NoError(t, err)

	_, err = m.AssociateAddress(ctx, &ec2.AssociateAddressInput{AllocationId: alloc.AllocationId, InstanceId: aws.String(id)})
	assert.True(t, IsDuplicate(err))

	_, err = m.ReleaseAddress(ctx, &ec2.ReleaseAddressInput{AllocationId: alloc.AllocationId})
	assert.Equal(t, "InvalidIPAddress.InUse", ErrorCode(err))

	out, err := m.DescribeAddresses(ctx, &ec2.DescribeAddressesInput{
		Filters: []types.Filter{{Name: aws.String("instance-id"), Values: []string{id}}},
	})
	require.NoError(t, err)
	require.Len(t, out.Addresses, 1)
	assert.Equal(t, aws.ToString(assoc.AssociationId), aws.ToString(out.Addresses[0].AssociationId))

	_, err = m.DisassociateAddress(ctx, &ec2.DisassociateAddressInput{AssociationId: assoc.AssociationId})
	require.NoError(t, err)
	_, err = m.ReleaseAddress(ctx, &ec2.ReleaseAddressInput{AllocationId: alloc.AllocationId})
	require.NoError(t, err)
	assert.Empty(t, m.Addresses)
}

func TestMockEC2Client_MainRouteTableRules(t *testing.T) {
	m, vpcID, _ := setupMockNetwork(t)
	ctx := context.Background()

	out, err := m.DescribeRouteTables(ctx, &ec2.DescribeRouteTablesInput{
		Filters: []types.Filter{
			{Name: aws.String("vpc-id"), Values: []string{vpcID}},
			{Name: aws.String("association.main"), Values: []string{"true"}},
		},
	})
	require.NoError(t, err)
	require.Len(t, out.RouteTables, 1)
	mainTable := out.RouteTables[0]

	_, err = m.DeleteRoute(ctx, &ec2.DeleteRouteInput{RouteTableId: mainTable.RouteTableId, DestinationCidrBlock: aws.String("10.0.0.0/16")})
	assert.Equal(t, "InvalidParameterValue", ErrorCode(err), "the local route stays")

	_, err = m.DisassociateRouteTable(ctx, &ec2.DisassociateRouteTableInput{AssociationId: mainTable.Associations[0].RouteTableAssociationId})
	assert.Equal(t, "InvalidParameterValue", ErrorCode(err), "the main association stays")
}

func TestMockEC2Client_FiltersAndFailures(t *testing.T) {
	m, vpcID, _ := setupMockNetwork(t)
	ctx := context.Background()

	_, err := m.DescribeSubnets(ctx, &ec2.DescribeSubnetsInput{
		Filters: []types.Filter{{Name: aws.String("cidr-block"), Values: []string{"10.0.1.0/24"}}},
	})
	assert.Equal(t, "InvalidParameterValue", ErrorCode(err), "unknown filters are rejected")

	out, err := m.DescribeVpcs(ctx, &ec2.DescribeVpcsInput{
		Filters: []types.Filter{{Name: aws.String("vpc-id"), Values: []string{"vpc-*"}}},
	})
	require.NoError(t, err)
	require.Len(t, out.Vpcs, 1)
	assert.Equal(t, vpcID, aws.ToString(out.Vpcs[0].VpcId))

	m.SetFailureScenario("DescribeVpcs", true)
	_, err = m.DescribeVpcs(ctx, &ec2.DescribeVpcsInput{})
	assert.Equal(t, "MockFailure", ErrorCode(err))
	assert.Equal(t, 2, m.CallCount("DescribeVpcs"))
	assert.NotContains(t, m.MutatingCalls(), "DescribeVpcs")
}
