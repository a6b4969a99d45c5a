package teardown

import (
	"context"
	"errors"
	"net/netip"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/go-logr/logr/testr"
	"github.com/johnlam90/vpc-builder/pkg/aws"
	"github.com/johnlam90/vpc-builder/pkg/config"
	"github.com/johnlam90/vpc-builder/pkg/vpc"
	"github.com/johnlam90/vpc-builder/pkg/waiter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a throttle that moves a fake clock forward on every pause
type fakeClock struct {
	now    time.Time
	step   time.Duration
	pauses int
}

func (c *fakeClock) Pause(ctx context.Context) error {
	c.pauses++
	c.now = c.now.Add(c.step)
	return ctx.Err()
}

func (c *fakeClock) Now() time.Time { return c.now }

type testEnv struct {
	ec2   *aws.MockEC2Client
	elb   *aws.MockELBClient
	cfg   *config.BuilderConfig
	clock *fakeClock
}

func newTestEnv() *testEnv {
	cfg := config.DefaultBuilderConfig()
	cfg.LoadBalancerPollAttempts = 3
	return &testEnv{
		ec2:   aws.NewMockEC2Client(),
		elb:   aws.NewMockELBClient(),
		cfg:   cfg,
		clock: &fakeClock{now: time.Unix(1700000000, 0), step: 5 * time.Second},
	}
}

func (e *testEnv) runner(t *testing.T, withELB bool) *Runner {
	t.Helper()
	log := testr.New(t)
	clients := &aws.Clients{Compute: e.ec2}
	if withELB {
		clients.LoadBalancer = e.elb
	}
	r, err := NewRunner(clients, e.cfg, log, nil,
		WithThrottle(e.clock),
		WithWaiter(waiter.New(e.clock, log).WithClock(e.clock.Now)),
		WithCaller(aws.NewCaller(log, nil, 1000, 1000)),
	)
	require.NoError(t, err)
	return r
}

func (e *testEnv) setup(t *testing.T, natImage string) *vpc.Setup {
	t.Helper()
	log := testr.New(t)
	b := vpc.NewBuilder(e.ec2, e.cfg, log, nil,
		vpc.WithThrottle(e.clock),
		vpc.WithWaiter(waiter.New(e.clock, log).WithClock(e.clock.Now)),
		vpc.WithCaller(aws.NewCaller(log, nil, 1000, 1000)),
		vpc.WithIPLookup(vpc.StaticIPLookup{Addr: netip.MustParseAddr("198.51.100.7")}),
	)
	setup, err := b.SetupVPC(context.Background(), vpc.SetupOptions{ImageID: "ami-X", NATImageID: natImage, KeyName: "key1", TagPrefix: "td"})
	require.NoError(t, err)
	e.ec2.ResetCalls()
	return setup
}

func indexOf(calls []string, op string, last bool) int {
	idx := -1
	for i, c := range calls {
		if c == op {
			idx = i
			if !last {
				return idx
			}
		}
	}
	return idx
}

func TestNewRunner_RequiresCompute(t *testing.T) {
	_, err := NewRunner(&aws.Clients{}, config.DefaultBuilderConfig(), testr.New(t), nil)
	assert.ErrorIs(t, err, ErrNoComputeClient)

	_, err = NewRunner(nil, config.DefaultBuilderConfig(), testr.New(t), nil)
	assert.ErrorIs(t, err, ErrNoComputeClient)
}

func TestTeardown_GuardRefusesLiveInstances(t *testing.T) {
	env := newTestEnv()
	setup := env.setup(t, "")

	result, err := env.runner(t, true).Teardown(context.Background(), setup.Vpc.ID, false)
	require.ErrorIs(t, err, ErrLiveInstances)
	assert.Contains(t, err.Error(), setup.Bouncer.ID())
	assert.Empty(t, result.Steps)
	assert.Empty(t, env.ec2.MutatingCalls(), "the guard only describes")
	assert.Empty(t, env.elb.Calls())
	assert.Contains(t, env.ec2.Vpcs, setup.Vpc.ID)
}

func TestTeardown_GuardStoppedInstance(t *testing.T) {
	env := newTestEnv()
	setup := env.setup(t, "")
	for _, inst := range setup.Instances() {
		env.ec2.Instances[inst.ID()].State = &types.InstanceState{Name: types.InstanceStateNameTerminated}
	}
	stopped := env.ec2.AddInstance(setup.PrivateSubnet.ID, types.InstanceStateNameStopped)

	_, err := env.runner(t, false).Teardown(context.Background(), setup.Vpc.ID, false)
	require.ErrorIs(t, err, ErrLiveInstances)
	assert.Contains(t, err.Error(), stopped)
	assert.NotContains(t, err.Error(), setup.Bouncer.ID())
	assert.Empty(t, env.ec2.MutatingCalls())
}

func TestTeardown_GuardDescribeFailure(t *testing.T) {
	env := newTestEnv()
	setup := env.setup(t, "")
	env.ec2.SetFailureScenario("DescribeInstances", true)

	_, err := env.runner(t, false).Teardown(context.Background(), setup.Vpc.ID, false)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrLiveInstances))
	assert.Equal(t, "MockFailure", aws.ErrorCode(err))
	assert.Empty(t, env.ec2.MutatingCalls())
}

func TestTeardown_FullVPCWithNAT(t *testing.T) {
	env := newTestEnv()
	setup := env.setup(t, "ami-NAT")
	require.Len(t, setup.Instances(), 3)
	require.Len(t, env.ec2.Addresses, 2)

	result, err := env.runner(t, true).Teardown(context.Background(), setup.Vpc.ID, true)
	require.NoError(t, err)
	require.NoError(t, result.Err())
	assert.True(t, result.VpcDeleted)
	assert.Len(t, result.Steps, len(Steps))

	for _, inst := range setup.Instances() {
		assert.Equal(t, types.InstanceStateNameTerminated, env.ec2.InstanceState(inst.ID()), inst.Role)
	}
	assert.Empty(t, env.ec2.Addresses, "every elastic IP is released")
	assert.Empty(t, env.ec2.Vpcs)
	assert.Empty(t, env.ec2.Subnets)
	assert.Empty(t, env.ec2.InternetGateways)
	assert.Empty(t, env.ec2.SecurityGroups)
	assert.Empty(t, env.ec2.RouteTables)

	calls := env.ec2.MutatingCalls()
	deleteVpc := indexOf(calls, "DeleteVpc", false)
	require.GreaterOrEqual(t, deleteVpc, 0)
	assert.Equal(t, len(calls)-1, deleteVpc, "the VPC is deleted last")
	for _, op := range []string{"DeleteSubnet", "DeleteSecurityGroup", "DeleteRouteTable", "DeleteInternetGateway", "ReleaseAddress", "TerminateInstances"} {
		idx := indexOf(calls, op, true)
		require.GreaterOrEqual(t, idx, 0, op)
		assert.Less(t, idx, deleteVpc, op)
	}
	assert.Less(t, indexOf(calls, "ReleaseAddress", true), indexOf(calls, "DetachInternetGateway", false))
}

func TestTeardown_FlushesRulesBeforeDeletingGroups(t *testing.T) {
	env := newTestEnv()
	setup := env.setup(t, "")

	result, err := env.runner(t, false).Teardown(context.Background(), setup.Vpc.ID, true)
	require.NoError(t, err)
	require.NoError(t, result.Err())

	calls := env.ec2.MutatingCalls()
	firstDelete := indexOf(calls, "DeleteSecurityGroup", false)
	require.GreaterOrEqual(t, firstDelete, 0)
	assert.Less(t, indexOf(calls, "RevokeSecurityGroupIngress", true), firstDelete)
	assert.Less(t, indexOf(calls, "RevokeSecurityGroupEgress", true), firstDelete)

	// public: 4 ingress + egress, private: 1 ingress + egress, default: egress
	rules := result.Step(StepSecurityGroupRules)
	require.NotNil(t, rules)
	assert.Len(t, rules.Attempted, 8)
	assert.Equal(t, 2, env.ec2.CallCount("DeleteSecurityGroup"), "the default group is left to the VPC")
}

func TestTeardown_KeepsMainTableAndLocalRoutes(t *testing.T) {
	env := newTestEnv()
	setup := env.setup(t, "ami-NAT")

	result, err := env.runner(t, false).Teardown(context.Background(), setup.Vpc.ID, true)
	require.NoError(t, err)
	require.NoError(t, result.Err())

	// the NAT route in the main table and the gateway route in the public one
	assert.Equal(t, 2, env.ec2.CallCount("DeleteRoute"))
	assert.Equal(t, 1, env.ec2.CallCount("DeleteRouteTable"))
	assert.Equal(t, 1, env.ec2.CallCount("DisassociateRouteTable"))
}

func TestTeardown_Idempotent(t *testing.T) {
	env := newTestEnv()
	setup := env.setup(t, "ami-NAT")

	first, err := env.runner(t, true).Teardown(context.Background(), setup.Vpc.ID, true)
	require.NoError(t, err)
	require.NoError(t, first.Err())
	env.ec2.ResetCalls()

	second, err := env.runner(t, true).Teardown(context.Background(), setup.Vpc.ID, false)
	require.NoError(t, err, "terminated instances do not trip the guard")
	require.NoError(t, second.Err())
	assert.False(t, second.VpcDeleted)
	assert.True(t, second.Step(StepVpc).Skipped)
	assert.Empty(t, env.ec2.MutatingCalls())
}

func TestTeardown_FailuresDoNotStopTheUnwind(t *testing.T) {
	env := newTestEnv()
	setup := env.setup(t, "")
	env.ec2.SetFailureScenario("DeleteSubnet", true)

	result, err := env.runner(t, false).Teardown(context.Background(), setup.Vpc.ID, true)
	require.NoError(t, err)
	require.Error(t, result.Err())

	subnets := result.Step(StepSubnets)
	require.NotNil(t, subnets)
	require.Len(t, subnets.Failed, 2)
	assert.Equal(t, "MockFailure", aws.ErrorCode(subnets.Failed[0].Err))
	assert.Equal(t, StepSubnets, subnets.Failed[0].Step)

	assert.Equal(t, 2, env.ec2.CallCount("DeleteSecurityGroup"), "later steps still run")
	assert.Equal(t, 1, env.ec2.CallCount("DeleteVpc"))
	assert.False(t, result.VpcDeleted)
	vpcStep := result.Step(StepVpc)
	require.Len(t, vpcStep.Failed, 1)
	assert.Equal(t, "DependencyViolation", aws.ErrorCode(vpcStep.Failed[0].Err))
	assert.Len(t, result.Failures(), 3)
}

func TestTeardown_WaitStragglers(t *testing.T) {
	env := newTestEnv()
	setup := env.setup(t, "")
	env.ec2.SetStuck(setup.Private.ID(), true)

	result, err := env.runner(t, false).Teardown(context.Background(), setup.Vpc.ID, true)
	require.NoError(t, err)

	assert.Equal(t, []string{setup.Private.ID()}, result.Step(StepWaitStopped).Stragglers)
	assert.Equal(t, []string{setup.Private.ID()}, result.Step(StepWaitTerminated).Stragglers)
	assert.Empty(t, result.Step(StepWaitTerminated).Failed, "stragglers are not failures")
	assert.Equal(t, types.InstanceStateNameTerminated, env.ec2.InstanceState(setup.Bouncer.ID()))
}

func TestTeardown_ContextCancelled(t *testing.T) {
	env := newTestEnv()
	setup := env.setup(t, "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := env.runner(t, false).Teardown(ctx, setup.Vpc.ID, true)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, result.Steps)
	assert.Empty(t, env.ec2.MutatingCalls())
}

func TestTeardown_PeeringAndNetworkInterfaces(t *testing.T) {
	env := newTestEnv()
	setup := env.setup(t, "")
	requested := env.ec2.AddPeeringConnection(setup.Vpc.ID, "vpc-other")
	accepted := env.ec2.AddPeeringConnection("vpc-other", setup.Vpc.ID)
	nic := env.ec2.AddNetworkInterface(setup.Vpc.ID, setup.PrivateSubnet.ID)

	result, err := env.runner(t, false).Teardown(context.Background(), setup.Vpc.ID, true)
	require.NoError(t, err)
	require.NoError(t, result.Err())

	assert.NotContains(t, env.ec2.PeeringConnections, requested)
	assert.Contains(t, env.ec2.PeeringConnections, accepted, "only requester-side connections are deleted")
	assert.NotContains(t, env.ec2.NetworkInterfaces, nic)
	assert.Equal(t, []string{nic}, result.Step(StepNetworkInterfaces).Attempted)
	assert.True(t, result.VpcDeleted)
}

func TestTeardown_NatGateway(t *testing.T) {
	env := newTestEnv()
	setup := env.setup(t, "")
	first := env.ec2.AddNatGateway(setup.Vpc.ID, setup.PublicSubnet.ID)
	second := env.ec2.AddNatGateway(setup.Vpc.ID, setup.PublicSubnet.ID)

	result, err := env.runner(t, false).Teardown(context.Background(), setup.Vpc.ID, true)
	require.NoError(t, err)

	assert.Equal(t, types.NatGatewayStateDeleted, env.ec2.NatGateways[first].State)
	assert.Equal(t, types.NatGatewayStateAvailable, env.ec2.NatGateways[second].State, "only the first gateway is deleted")
	assert.Equal(t, []string{first}, result.Step(StepNatGateway).Attempted)
}

func TestTeardown_NatGatewayFailureIsRecorded(t *testing.T) {
	env := newTestEnv()
	setup := env.setup(t, "")
	env.ec2.AddNatGateway(setup.Vpc.ID, setup.PublicSubnet.ID)
	env.ec2.SetFailureScenario("DeleteNatGateway", true)

	result, err := env.runner(t, false).Teardown(context.Background(), setup.Vpc.ID, true)
	require.NoError(t, err)
	require.Len(t, result.Step(StepNatGateway).Failed, 1)
	assert.True(t, result.VpcDeleted, "the VPC does not depend on the NAT gateway in the fake")
}

func TestTeardown_LoadBalancers(t *testing.T) {
	env := newTestEnv()
	setup := env.setup(t, "")
	env.elb.DisappearAfter = 1
	inVpc := env.elb.AddLoadBalancer("web", setup.Vpc.ID, setup.PublicSubnet.ID, "subnet-elsewhere")
	outside := env.elb.AddLoadBalancer("other", "vpc-other", "subnet-elsewhere")

	result, err := env.runner(t, true).Teardown(context.Background(), setup.Vpc.ID, true)
	require.NoError(t, err)
	require.NoError(t, result.Err())

	step := result.Step(StepLoadBalancers)
	assert.Equal(t, []string{inVpc}, step.Attempted)
	assert.Empty(t, step.Stragglers)
	assert.NotContains(t, env.elb.LoadBalancers, inVpc)
	assert.Contains(t, env.elb.LoadBalancers, outside)
}

func TestTeardown_LoadBalancerStragglers(t *testing.T) {
	env := newTestEnv()
	setup := env.setup(t, "")
	env.elb.DisappearAfter = 100
	arn := env.elb.AddLoadBalancer("slow", setup.Vpc.ID, setup.PrivateSubnet.ID)

	result, err := env.runner(t, true).Teardown(context.Background(), setup.Vpc.ID, true)
	require.NoError(t, err)

	step := result.Step(StepLoadBalancers)
	assert.Equal(t, []string{arn}, step.Stragglers)
	describes := 0
	for _, c := range env.elb.Calls() {
		if c == "DescribeLoadBalancers" {
			describes++
		}
	}
	assert.Equal(t, 1+env.cfg.LoadBalancerPollAttempts, describes)
}

func TestTeardown_NoLoadBalancerClient(t *testing.T) {
	env := newTestEnv()
	setup := env.setup(t, "")
	env.elb.AddLoadBalancer("web", setup.Vpc.ID, setup.PublicSubnet.ID)

	result, err := env.runner(t, false).Teardown(context.Background(), setup.Vpc.ID, true)
	require.NoError(t, err)
	assert.True(t, result.Step(StepLoadBalancers).Skipped)
	assert.Empty(t, env.elb.Calls())
}

// vanishingGateways reports every internet gateway as already deleted
type vanishingGateways struct {
	*aws.MockEC2Client
}

func (v vanishingGateways) DeleteInternetGateway(ctx context.Context, params *ec2.DeleteInternetGatewayInput, optFns ...func(*ec2.Options)) (*ec2.DeleteInternetGatewayOutput, error) {
	return nil, aws.APIError("InvalidInternetGatewayID.NotFound", "The internetGateway ID does not exist")
}

func TestTeardown_AlreadyAbsentCountsAsSuccess(t *testing.T) {
	env := newTestEnv()
	setup := env.setup(t, "")
	log := testr.New(t)

	r, err := NewRunner(&aws.Clients{Compute: vanishingGateways{env.ec2}}, env.cfg, log, nil,
		WithThrottle(env.clock),
		WithWaiter(waiter.New(env.clock, log).WithClock(env.clock.Now)),
		WithCaller(aws.NewCaller(log, nil, 1000, 1000)),
	)
	require.NoError(t, err)

	result, err := r.Teardown(context.Background(), setup.Vpc.ID, true)
	require.NoError(t, err)
	require.NoError(t, result.Err())

	step := result.Step(StepInternetGateways)
	assert.Equal(t, []string{setup.Gateway.ID, setup.Gateway.ID}, step.Attempted, "detach then delete")
	assert.Empty(t, step.Failed)
	assert.True(t, result.VpcDeleted)
}
