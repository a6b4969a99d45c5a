package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	elbv2 "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ServiceStatus is the outcome of probing one service client
type ServiceStatus struct {
	Service    string
	Configured bool
	// Detail names the probed identity or counts what the probe listed
	Detail string
	Err    error
}

// Probe makes one cheap read-only call per configured service to check the
// endpoint and credentials. Unconfigured services are reported without a call.
func (c *Clients) Probe(ctx context.Context, caller *Caller) []ServiceStatus {
	statuses := []ServiceStatus{
		c.probe(ctx, caller, ServiceCompute, c.Compute != nil, func(ctx context.Context) (string, error) {
			out, err := c.Compute.DescribeVpcs(ctx, &ec2.DescribeVpcsInput{})
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%d VPCs", len(out.Vpcs)), nil
		}),
		c.probe(ctx, caller, ServiceLoadBalancer, c.LoadBalancer != nil, func(ctx context.Context) (string, error) {
			out, err := c.LoadBalancer.DescribeLoadBalancers(ctx, &elbv2.DescribeLoadBalancersInput{})
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%d load balancers", len(out.LoadBalancers)), nil
		}),
		c.probe(ctx, caller, ServiceIdentity, c.Identity != nil, func(ctx context.Context) (string, error) {
			out, err := c.Identity.GetUser(ctx, &iam.GetUserInput{})
			if err != nil {
				return "", err
			}
			if out.User == nil {
				return "", nil
			}
			return aws.ToString(out.User.UserName), nil
		}),
		c.probe(ctx, caller, ServiceObjectStorage, c.ObjectStorage != nil, func(ctx context.Context) (string, error) {
			out, err := c.ObjectStorage.ListBuckets(ctx, &s3.ListBucketsInput{})
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%d buckets", len(out.Buckets)), nil
		}),
	}
	return statuses
}

func (c *Clients) probe(ctx context.Context, caller *Caller, service string, configured bool, fn func(ctx context.Context) (string, error)) ServiceStatus {
	status := ServiceStatus{Service: service, Configured: configured}
	if !configured {
		return status
	}
	status.Err = caller.Do(ctx, service, "Probe", func(ctx context.Context) error {
		var err error
		status.Detail, err = fn(ctx)
		return err
	})
	return status
}
