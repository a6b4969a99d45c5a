package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	elbv2 "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-logr/logr"
	"github.com/johnlam90/vpc-builder/pkg/config"
)

// Service names used in logs, metrics and client listings
const (
	ServiceCompute       = "compute"
	ServiceLoadBalancer  = "load-balancer"
	ServiceIdentity      = "identity"
	ServiceObjectStorage = "object-storage"
)

// Clients holds one client per cloud service. A nil field means the service
// has no endpoint configured and dependent steps must treat it as unavailable.
type Clients struct {
	Compute       EC2API
	LoadBalancer  ELBAPI
	Identity      IAMAPI
	ObjectStorage S3API
}

// Available lists the configured services in a stable order
func (c *Clients) Available() []string {
	var services []string
	if c.Compute != nil {
		services = append(services, ServiceCompute)
	}
	if c.LoadBalancer != nil {
		services = append(services, ServiceLoadBalancer)
	}
	if c.Identity != nil {
		services = append(services, ServiceIdentity)
	}
	if c.ObjectStorage != nil {
		services = append(services, ServiceObjectStorage)
	}
	return services
}

// NewClients creates the service clients described by cfg, signing every
// request with the configured static access key. Clients are created once per
// workflow invocation and shared by all components of that invocation.
func NewClients(ctx context.Context, cfg *config.BuilderConfig, logger logr.Logger) (*Clients, error) {
	if cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
		return nil, config.ErrMissingCredentials
	}

	log := logger.WithName("clients").WithValues("region", cfg.Region)

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	clients := &Clients{}

	if endpoint, ok := resolveEndpoint(cfg, cfg.Endpoints.Compute); ok {
		clients.Compute = ec2.NewFromConfig(awsCfg, func(o *ec2.Options) {
			o.BaseEndpoint = endpoint
		})
	} else {
		log.Info("No compute connection configured")
	}

	if endpoint, ok := resolveEndpoint(cfg, cfg.Endpoints.LoadBalancer); ok {
		clients.LoadBalancer = elbv2.NewFromConfig(awsCfg, func(o *elbv2.Options) {
			o.BaseEndpoint = endpoint
		})
	} else {
		log.Info("No load balancer connection configured")
	}

	if endpoint, ok := resolveEndpoint(cfg, cfg.Endpoints.Identity); ok {
		clients.Identity = iam.NewFromConfig(awsCfg, func(o *iam.Options) {
			o.BaseEndpoint = endpoint
		})
	} else {
		log.Info("No identity connection configured")
	}

	if endpoint, ok := resolveEndpoint(cfg, cfg.Endpoints.ObjectStorage); ok {
		clients.ObjectStorage = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.BaseEndpoint = endpoint
			// Outscale OSU and most S3 look-alikes only support path-style addressing
			o.UsePathStyle = endpoint != nil
		})
	} else {
		log.Info("No object storage connection configured")
	}

	log.V(1).Info("Created service clients", "available", clients.Available())
	return clients, nil
}

// resolveEndpoint returns the base endpoint override for a service and whether
// the service should get a client at all. A nil override with ok set means the
// SDK resolves the endpoint from the region.
func resolveEndpoint(cfg *config.BuilderConfig, endpoint string) (*string, bool) {
	if endpoint != "" {
		return aws.String(cfg.EndpointURL(endpoint)), true
	}
	if cfg.UseDefaultEndpoints {
		return nil, true
	}
	return nil, false
}
