package teardown

import (
	"context"
	"fmt"
	"strings"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/johnlam90/vpc-builder/pkg/vpc"
	"github.com/johnlam90/vpc-builder/pkg/waiter"
)

// guard refuses to touch a VPC that still has running or stopped instances.
// It only describes.
func (r *Runner) guard(ctx context.Context, vpcID string) error {
	instances, err := r.listInstances(ctx, vpcID)
	if err != nil {
		return fmt.Errorf("failed to list instances of %s: %w", vpcID, err)
	}
	var live []string
	for _, inst := range instances {
		if inst.State == vpc.StateRunning || inst.State == vpc.StateStopped {
			live = append(live, inst.ID())
		}
	}
	if len(live) > 0 {
		r.log.Error(ErrLiveInstances, "Teardown will not be executed", "vpcID", vpcID, "instances", live)
		return fmt.Errorf("%w: %s in %s", ErrLiveInstances, strings.Join(live, ", "), vpcID)
	}
	return nil
}

func stopInstances(ctx context.Context, r *Runner, s *stepRun) error {
	instances, err := r.listInstances(ctx, s.vpcID)
	if err != nil {
		return err
	}
	for _, inst := range instances {
		if inst.State == vpc.StateStopped || inst.IsTerminal() {
			continue
		}
		r.stop(ctx, s, inst, false)
	}
	return nil
}

// forceStopInstances covers guests that ignore the ACPI stop request
func forceStopInstances(ctx context.Context, r *Runner, s *stepRun) error {
	if err := r.pause(ctx); err != nil {
		return err
	}
	instances, err := r.listInstances(ctx, s.vpcID)
	if err != nil {
		return err
	}
	for _, inst := range instances {
		if inst.State == vpc.StateStopped || inst.IsTerminal() {
			continue
		}
		r.stop(ctx, s, inst, true)
	}
	return nil
}

func (r *Runner) stop(ctx context.Context, s *stepRun, inst *vpc.Instance, force bool) {
	s.attempt(ctx, inst.ID(), "StopInstances", func(ctx context.Context) error {
		_, err := r.ec2.StopInstances(ctx, &ec2.StopInstancesInput{
			InstanceIds: []string{inst.ID()},
			Force:       awssdk.Bool(force),
		})
		return err
	})
}

func waitStopped(ctx context.Context, r *Runner, s *stepRun) error {
	instances, err := r.listInstances(ctx, s.vpcID)
	if err != nil {
		return err
	}
	var pending []*vpc.Instance
	for _, inst := range instances {
		if !inst.IsTerminal() && inst.State != vpc.StateStopped {
			pending = append(pending, inst)
		}
	}
	r.wait(ctx, s, pending, vpc.StateStopped)
	return nil
}

func terminateInstances(ctx context.Context, r *Runner, s *stepRun) error {
	instances, err := r.listInstances(ctx, s.vpcID)
	if err != nil {
		return err
	}
	for _, inst := range instances {
		if inst.State == vpc.StateTerminated {
			continue
		}
		s.attempt(ctx, inst.ID(), "TerminateInstances", func(ctx context.Context) error {
			_, err := r.ec2.TerminateInstances(ctx, &ec2.TerminateInstancesInput{InstanceIds: []string{inst.ID()}})
			return err
		})
	}
	return nil
}

func waitTerminated(ctx context.Context, r *Runner, s *stepRun) error {
	instances, err := r.listInstances(ctx, s.vpcID)
	if err != nil {
		return err
	}
	var pending []*vpc.Instance
	for _, inst := range instances {
		if inst.State != vpc.StateTerminated {
			pending = append(pending, inst)
		}
	}
	r.wait(ctx, s, pending, vpc.StateTerminated)
	return nil
}

func (r *Runner) wait(ctx context.Context, s *stepRun, instances []*vpc.Instance, target string) {
	if len(instances) == 0 {
		return
	}
	for _, inst := range instances {
		s.Attempted = append(s.Attempted, inst.ID())
	}
	stragglers := r.waiter.ForState(ctx, vpc.Refreshables(instances...), target, r.waitTimeout)
	if len(stragglers) > 0 {
		s.Stragglers = waiter.IDs(stragglers)
		r.logger.LogStragglers(ctx, s.opCtx, target, s.Stragglers)
	}
}
