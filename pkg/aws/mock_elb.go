package aws

import (
	"context"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	elbv2 "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	elbtypes "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2/types"
)

// MockELBClient is an in-memory ELBAPI. Deleted load balancers stay visible
// for DisappearAfter describe calls, like the real service's asynchronous
// deletion.
type MockELBClient struct {
	LoadBalancers    map[string]*elbtypes.LoadBalancer // ARN -> load balancer
	FailureScenarios map[string]bool
	DisappearAfter   int

	deleting map[string]int // ARN -> describes left before removal
	calls    []string
	nextID   int
	mutex    sync.Mutex
}

// NewMockELBClient creates an empty in-memory load balancer API
func NewMockELBClient() *MockELBClient {
	return &MockELBClient{
		LoadBalancers:    make(map[string]*elbtypes.LoadBalancer),
		FailureScenarios: make(map[string]bool),
		deleting:         make(map[string]int),
	}
}

var _ ELBAPI = (*MockELBClient)(nil)

// SetFailureScenario sets whether a specific operation should fail
func (m *MockELBClient) SetFailureScenario(operation string, shouldFail bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.FailureScenarios[operation] = shouldFail
}

// AddLoadBalancer seeds an active load balancer spanning subnetIDs and returns its ARN
func (m *MockELBClient) AddLoadBalancer(name, vpcID string, subnetIDs ...string) string {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.nextID++
	arn := fmt.Sprintf("arn:aws:elasticloadbalancing:eu-west-2:000000000000:loadbalancer/app/%s/%016x", name, m.nextID)
	lb := &elbtypes.LoadBalancer{
		LoadBalancerArn:  aws.String(arn),
		LoadBalancerName: aws.String(name),
		VpcId:            aws.String(vpcID),
		State:            &elbtypes.LoadBalancerState{Code: elbtypes.LoadBalancerStateEnumActive},
	}
	for _, id := range subnetIDs {
		lb.AvailabilityZones = append(lb.AvailabilityZones, elbtypes.AvailabilityZone{SubnetId: aws.String(id)})
	}
	m.LoadBalancers[arn] = lb
	return arn
}

// Calls returns every operation invoked so far, in order
func (m *MockELBClient) Calls() []string {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return append([]string(nil), m.calls...)
}

// Count returns the number of load balancers still visible
func (m *MockELBClient) Count() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return len(m.LoadBalancers)
}

func (m *MockELBClient) begin(operation string) error {
	m.calls = append(m.calls, operation)
	if m.FailureScenarios[operation] {
		return APIError("MockFailure", fmt.Sprintf("simulated %s failure", operation))
	}
	return nil
}

// DescribeLoadBalancers lists every load balancer, or those named by ARN
func (m *MockELBClient) DescribeLoadBalancers(ctx context.Context, params *elbv2.DescribeLoadBalancersInput, optFns ...func(*elbv2.Options)) (*elbv2.DescribeLoadBalancersOutput, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if err := m.begin("DescribeLoadBalancers"); err != nil {
		return nil, err
	}

	for arn, left := range m.deleting {
		if left <= 0 {
			delete(m.LoadBalancers, arn)
			delete(m.deleting, arn)
			continue
		}
		m.deleting[arn] = left - 1
	}

	for _, arn := range params.LoadBalancerArns {
		if _, ok := m.LoadBalancers[arn]; !ok {
			return nil, APIError("LoadBalancerNotFound", fmt.Sprintf("Load balancer '%s' not found", arn))
		}
	}
	ids := idSet(params.LoadBalancerArns)
	out := &elbv2.DescribeLoadBalancersOutput{}
	for _, arn := range sortedKeys(m.LoadBalancers) {
		if ids != nil && !ids[arn] {
			continue
		}
		out.LoadBalancers = append(out.LoadBalancers, *m.LoadBalancers[arn])
	}
	return out, nil
}

// DeleteLoadBalancer schedules removal of a load balancer
func (m *MockELBClient) DeleteLoadBalancer(ctx context.Context, params *elbv2.DeleteLoadBalancerInput, optFns ...func(*elbv2.Options)) (*elbv2.DeleteLoadBalancerOutput, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if err := m.begin("DeleteLoadBalancer"); err != nil {
		return nil, err
	}
	arn := aws.ToString(params.LoadBalancerArn)
	if _, ok := m.LoadBalancers[arn]; !ok {
		return nil, APIError("LoadBalancerNotFound", fmt.Sprintf("Load balancer '%s' not found", arn))
	}
	if _, ok := m.deleting[arn]; !ok {
		m.deleting[arn] = m.DisappearAfter
	}
	return &elbv2.DeleteLoadBalancerOutput{}, nil
}
