// Package teardown removes a VPC and everything in it, in dependency order.
// Every step re-lists remote state, so a teardown can be run again after a
// partial failure.
package teardown

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"github.com/johnlam90/vpc-builder/pkg/aws"
	"github.com/johnlam90/vpc-builder/pkg/config"
	"github.com/johnlam90/vpc-builder/pkg/observability"
	"github.com/johnlam90/vpc-builder/pkg/throttle"
	"github.com/johnlam90/vpc-builder/pkg/waiter"
)

const workflowTeardown = "teardown"

// Runner tears down VPCs through one compute client and an optional load
// balancer client
type Runner struct {
	ec2      aws.EC2API
	elb      aws.ELBAPI
	caller   *aws.Caller
	throttle throttle.Throttle
	waiter   *waiter.Waiter
	logger   *observability.StructuredLogger
	log      logr.Logger
	metrics  *observability.Metrics

	waitTimeout    time.Duration
	lbPollAttempts int
}

// Option customizes a Runner
type Option func(*Runner)

// WithThrottle replaces the fixed-interval pause
func WithThrottle(t throttle.Throttle) Option {
	return func(r *Runner) { r.throttle = t }
}

// WithCaller shares an API caller with other components
func WithCaller(c *aws.Caller) Option {
	return func(r *Runner) { r.caller = c }
}

// WithWaiter replaces the instance state waiter
func WithWaiter(w *waiter.Waiter) Option {
	return func(r *Runner) { r.waiter = w }
}

// NewRunner creates a Runner from the invocation's clients. A nil
// clients.LoadBalancer makes the load-balancers step a no-op. metrics may be nil.
func NewRunner(clients *aws.Clients, cfg *config.BuilderConfig, logger logr.Logger, metrics *observability.Metrics, opts ...Option) (*Runner, error) {
	if clients == nil || clients.Compute == nil {
		return nil, ErrNoComputeClient
	}

	log := logger.WithName("teardown")
	r := &Runner{
		ec2:            clients.Compute,
		elb:            clients.LoadBalancer,
		log:            log,
		logger:         observability.NewStructuredLogger(log, metrics),
		metrics:        metrics,
		waitTimeout:    cfg.InstanceWaitTimeout,
		lbPollAttempts: cfg.LoadBalancerPollAttempts,
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.throttle == nil {
		var onPause func()
		if metrics != nil {
			onPause = metrics.RecordThrottlePause
		}
		r.throttle = throttle.NewInterval(cfg.ShortDelay, onPause)
	}
	if r.caller == nil {
		r.caller = aws.NewCaller(logger, metrics, cfg.APIRateLimit, cfg.APIBurst)
	}
	if r.waiter == nil {
		r.waiter = waiter.New(r.throttle, logger)
	}
	return r, nil
}

// Step is one named phase of the teardown
type Step struct {
	Name string
	Run  func(ctx context.Context, r *Runner, s *stepRun) error
}

// Steps is the teardown order. Instances go first, then everything that
// references an instance, then the network objects from the outside in.
var Steps = []Step{
	{Name: StepStopInstances, Run: stopInstances},
	{Name: StepForceStopInstances, Run: forceStopInstances},
	{Name: StepWaitStopped, Run: waitStopped},
	{Name: StepTerminateInstances, Run: terminateInstances},
	{Name: StepWaitTerminated, Run: waitTerminated},
	{Name: StepVpcPeering, Run: deletePeeringConnections},
	{Name: StepElasticIPs, Run: releaseAddresses},
	{Name: StepNetworkInterfaces, Run: deleteNetworkInterfaces},
	{Name: StepInternetGateways, Run: deleteInternetGateways},
	{Name: StepNatGateway, Run: deleteNatGateway},
	{Name: StepRoutes, Run: deleteRoutes},
	{Name: StepLoadBalancers, Run: deleteLoadBalancers},
	{Name: StepRouteTables, Run: deleteRouteTables},
	{Name: StepSubnets, Run: deleteSubnets},
	{Name: StepSecurityGroupRules, Run: revokeSecurityGroupRules},
	{Name: StepSecurityGroups, Run: deleteSecurityGroups},
	{Name: StepVpc, Run: deleteVpc},
}

// Step names
const (
	StepStopInstances      = "stop-instances"
	StepForceStopInstances = "force-stop-instances"
	StepWaitStopped        = "wait-stopped"
	StepTerminateInstances = "terminate-instances"
	StepWaitTerminated     = "wait-terminated"
	StepVpcPeering         = "vpc-peering"
	StepElasticIPs         = "elastic-ips"
	StepNetworkInterfaces  = "network-interfaces"
	StepInternetGateways   = "internet-gateways"
	StepNatGateway         = "nat-gateway"
	StepRoutes             = "routes"
	StepLoadBalancers      = "load-balancers"
	StepRouteTables        = "route-tables"
	StepSubnets            = "subnets"
	StepSecurityGroupRules = "security-group-rules"
	StepSecurityGroups     = "security-groups"
	StepVpc                = "vpc"
)

// Teardown deletes vpcID and its dependents. Unless terminateInstances is
// set, a VPC holding running or stopped instances is left untouched and
// ErrLiveInstances is returned.
//
// Unwind failures do not stop the teardown: they are logged and collected in
// the returned Result, whose Err reports them. The returned error is only set
// for the guard and for context cancellation.
func (r *Runner) Teardown(ctx context.Context, vpcID string, terminateInstances bool) (*Result, error) {
	result := &Result{VpcID: vpcID}

	if !terminateInstances {
		if err := r.guard(ctx, vpcID); err != nil {
			return result, err
		}
	}

	opCtx := observability.NewOperationContext(workflowTeardown, "teardown").WithVpc(vpcID)
	r.logger.LogOperationStart(ctx, opCtx, "Deleting VPC")

	for _, step := range Steps {
		if err := ctx.Err(); err != nil {
			r.logger.LogOperationError(ctx, opCtx, err, "Teardown interrupted")
			return result, err
		}
		result.Steps = append(result.Steps, r.runStep(ctx, vpcID, step, result))
	}

	if failed := len(result.Failures()); failed > 0 {
		r.logger.LogOperationPartial(ctx, opCtx, failed, "Teardown finished with failures")
	} else {
		r.logger.LogOperationSuccess(ctx, opCtx, "Teardown finished")
	}
	return result, nil
}

func (r *Runner) runStep(ctx context.Context, vpcID string, step Step, result *Result) StepResult {
	opCtx := observability.NewOperationContext(workflowTeardown, step.Name).WithVpc(vpcID)
	r.logger.LogOperationStart(ctx, opCtx, "Running teardown step")

	s := &stepRun{
		runner: r,
		vpcID:  vpcID,
		opCtx:  opCtx,
		result: result,
		StepResult: StepResult{
			Name: step.Name,
		},
	}
	if err := step.Run(ctx, r, s); err != nil {
		// the step could not list what it had to delete
		s.fail(ctx, "", err)
	}
	s.Duration = opCtx.Duration()

	switch {
	case len(s.Failed) > 0:
		r.logger.LogOperationPartial(ctx, opCtx, len(s.Failed), "Teardown step finished with failures")
	case s.Skipped:
		r.logger.LogOperationWarning(ctx, opCtx, "Teardown step skipped")
	default:
		r.logger.LogOperationSuccess(ctx, opCtx, "Teardown step finished")
	}
	return s.StepResult
}

// stepRun carries the state of one running step
type stepRun struct {
	StepResult

	runner *Runner
	vpcID  string
	opCtx  *observability.OperationContext
	result *Result
}

// attempt runs one mutating call on resource and records its outcome. A not
// found response means the resource is already gone and counts as success.
func (s *stepRun) attempt(ctx context.Context, resource, operation string, fn func(ctx context.Context) error) bool {
	s.Attempted = append(s.Attempted, resource)
	err := s.runner.call(ctx, operation, fn)
	if err == nil {
		return true
	}
	if aws.IsNotFound(err) {
		s.runner.log.V(1).Info("Resource already absent", "step", s.Name, "resourceID", resource, "operation", operation)
		return true
	}
	s.fail(ctx, resource, fmt.Errorf("%s: %w", operation, err))
	return false
}

func (s *stepRun) fail(ctx context.Context, resource string, err error) {
	s.Failed = append(s.Failed, Failure{Step: s.Name, Resource: resource, Err: err})
	s.runner.logger.LogResourceError(ctx, s.opCtx, resource, err, "Teardown call failed")
}

func (r *Runner) call(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	return r.caller.Do(ctx, aws.ServiceCompute, operation, fn)
}

func (r *Runner) pause(ctx context.Context) error {
	return r.throttle.Pause(ctx)
}
