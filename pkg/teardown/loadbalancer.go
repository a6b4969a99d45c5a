package teardown

import (
	"context"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	elbv2 "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	elbtypes "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2/types"
	"github.com/johnlam90/vpc-builder/pkg/aws"
)

// deleteLoadBalancers deletes every load balancer spanning a subnet of the
// VPC, then polls until they are gone or the attempts run out
func deleteLoadBalancers(ctx context.Context, r *Runner, s *stepRun) error {
	if r.elb == nil {
		r.log.Info("No load balancer connection configured, skipping load balancers", "vpcID", s.vpcID)
		s.Skipped = true
		return nil
	}

	subnets, err := r.listSubnets(ctx, s.vpcID)
	if err != nil {
		return err
	}
	inVpc := make(map[string]bool, len(subnets))
	for _, subnet := range subnets {
		inVpc[awssdk.ToString(subnet.SubnetId)] = true
	}

	lbs, err := r.vpcLoadBalancers(ctx, inVpc)
	if err != nil {
		return err
	}
	if len(lbs) == 0 {
		return nil
	}

	for _, arn := range lbs {
		s.Attempted = append(s.Attempted, arn)
		err := r.caller.Do(ctx, aws.ServiceLoadBalancer, "DeleteLoadBalancer", func(ctx context.Context) error {
			_, err := r.elb.DeleteLoadBalancer(ctx, &elbv2.DeleteLoadBalancerInput{LoadBalancerArn: awssdk.String(arn)})
			return err
		})
		if err != nil && !aws.IsNotFound(err) {
			s.fail(ctx, arn, err)
		}
		if err := r.pause(ctx); err != nil {
			return err
		}
	}

	remaining := lbs
	for attempt := 0; attempt < r.lbPollAttempts && len(remaining) > 0; attempt++ {
		if err := r.pause(ctx); err != nil {
			return err
		}
		still, err := r.vpcLoadBalancers(ctx, inVpc)
		if err != nil {
			r.log.Info("Failed to list load balancers", "error", err.Error(), "attempt", attempt+1)
			continue
		}
		remaining = still
	}
	if len(remaining) > 0 {
		s.Stragglers = remaining
		r.logger.LogStragglers(ctx, s.opCtx, "deleted", remaining)
	}
	return nil
}

// vpcLoadBalancers returns the ARNs of load balancers with at least one subnet in subnets
func (r *Runner) vpcLoadBalancers(ctx context.Context, subnets map[string]bool) ([]string, error) {
	p := elbv2.NewDescribeLoadBalancersPaginator(r.elb, &elbv2.DescribeLoadBalancersInput{})
	lbs, err := paginate(ctx, r.caller, aws.ServiceLoadBalancer, "DescribeLoadBalancers", p.HasMorePages,
		func(ctx context.Context) (*elbv2.DescribeLoadBalancersOutput, error) { return p.NextPage(ctx) },
		func(o *elbv2.DescribeLoadBalancersOutput) []elbtypes.LoadBalancer { return o.LoadBalancers })
	if err != nil {
		return nil, err
	}

	var arns []string
	for _, lb := range lbs {
		for _, az := range lb.AvailabilityZones {
			if subnets[awssdk.ToString(az.SubnetId)] {
				arns = append(arns, awssdk.ToString(lb.LoadBalancerArn))
				break
			}
		}
	}
	return arns, nil
}
