package vpc

import (
	"context"
	"fmt"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
)

// CreateGateway creates an internet gateway, attaches it to vpc and returns
// a fresh description listing its attachments
func (b *Builder) CreateGateway(ctx context.Context, vpc *Vpc) (*InternetGateway, error) {
	opCtx := b.operation("create-gateway").WithVpc(vpc.ID)
	b.logger.LogOperationStart(ctx, opCtx, "Creating internet gateway")

	var created *ec2.CreateInternetGatewayOutput
	err := b.call(ctx, "CreateInternetGateway", func(ctx context.Context) error {
		var err error
		created, err = b.ec2.CreateInternetGateway(ctx, &ec2.CreateInternetGatewayInput{})
		return err
	})
	if err != nil {
		return nil, b.finish(ctx, opCtx, fmt.Errorf("%w: %w", ErrGatewayCreate, err), "Create internet gateway")
	}
	igwID := awssdk.ToString(created.InternetGateway.InternetGatewayId)
	opCtx.WithResource(igwID)
	igw := &InternetGateway{ID: igwID}

	if err := b.pause(ctx); err != nil {
		return igw, err
	}

	err = b.call(ctx, "AttachInternetGateway", func(ctx context.Context) error {
		_, err := b.ec2.AttachInternetGateway(ctx, &ec2.AttachInternetGatewayInput{
			InternetGatewayId: awssdk.String(igwID),
			VpcId:             awssdk.String(vpc.ID),
		})
		return err
	})
	if err != nil {
		return igw, b.finish(ctx, opCtx, fmt.Errorf("%w %s to %s: %w", ErrGatewayAttach, igwID, vpc.ID, err), "Attach internet gateway")
	}

	if err := b.pause(ctx); err != nil {
		return igw, err
	}

	var described *ec2.DescribeInternetGatewaysOutput
	err = b.call(ctx, "DescribeInternetGateways", func(ctx context.Context) error {
		var err error
		described, err = b.ec2.DescribeInternetGateways(ctx, &ec2.DescribeInternetGatewaysInput{
			InternetGatewayIds: []string{igwID},
		})
		return err
	})
	if err != nil {
		return igw, b.finish(ctx, opCtx, fmt.Errorf("%w: describe %s: %w", ErrGatewayAttach, igwID, err), "Describe internet gateway")
	}
	if len(described.InternetGateways) > 0 {
		igw = gatewayFromSDK(described.InternetGateways[0])
	}

	return igw, b.finish(ctx, opCtx, nil, "Internet gateway created")
}

func gatewayFromSDK(g types.InternetGateway) *InternetGateway {
	igw := &InternetGateway{ID: awssdk.ToString(g.InternetGatewayId)}
	for _, a := range g.Attachments {
		igw.Attachments = append(igw.Attachments, awssdk.ToString(a.VpcId))
	}
	return igw
}
