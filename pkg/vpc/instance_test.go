package vpc

import (
	"context"
	"testing"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/go-logr/logr/testr"
	"github.com/johnlam90/vpc-builder/pkg/aws"
	"github.com/johnlam90/vpc-builder/pkg/waiter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedInstance(t *testing.T, env *testEnv, state types.InstanceStateName) *Instance {
	t.Helper()
	_, public, _, err := env.builder.CreateNetwork(context.Background(), DefaultVpcCIDR, DefaultPublicSubnetCIDR, DefaultPrivateSubnetCIDR, "inst")
	require.NoError(t, err)
	id := env.mock.AddInstance(public.ID, state)
	return NewInstance(types.Instance{InstanceId: awssdk.String(id), State: &types.InstanceState{Name: state}}, RoleBouncer, env.mock, env.builder.caller)
}

func TestInstanceRefresh(t *testing.T) {
	env := newTestEnv(t)
	inst := seedInstance(t, env, types.InstanceStateNamePending)
	assert.Equal(t, StatePending, inst.State)

	state, err := inst.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateRunning, state)
	assert.Equal(t, StateRunning, inst.State)
	assert.NotEmpty(t, inst.PrivateIP)
	assert.NotEmpty(t, inst.SubnetID)
}

func TestInstanceRefresh_NotFound(t *testing.T) {
	env := newTestEnv(t)
	inst := NewInstance(types.Instance{InstanceId: awssdk.String("i-missing")}, RoleBouncer, env.mock, env.builder.caller)

	_, err := inst.Refresh(context.Background())
	require.Error(t, err)
	assert.True(t, aws.IsNotFound(err))
}

func TestInstanceIsTerminal(t *testing.T) {
	for state, terminal := range map[string]bool{
		StatePending: false, StateRunning: false, StateStopping: false,
		StateStopped: false, StateShuttingDown: true, StateTerminated: true,
	} {
		inst := &Instance{State: state}
		assert.Equal(t, terminal, inst.IsTerminal(), state)
	}
}

func TestRefreshablesSkipsNil(t *testing.T) {
	a := &Instance{InstanceID: "i-a"}
	b := &Instance{InstanceID: "i-b"}
	assert.Equal(t, []string{"i-a", "i-b"}, waiter.IDs(Refreshables(nil, a, nil, b)))
}

func TestWaitForRunning_StuckInstance(t *testing.T) {
	env := newTestEnv(t)
	inst := seedInstance(t, env, types.InstanceStateNamePending)
	env.mock.SetStuck(inst.ID(), true)

	w := waiter.New(env.clock, testr.New(t)).WithClock(env.clock.Now)
	stragglers := w.ForState(context.Background(), Refreshables(inst), StateRunning, 20*time.Second)
	assert.Equal(t, []string{inst.ID()}, waiter.IDs(stragglers))
	assert.Equal(t, StatePending, inst.State)
}
