package vpc

import (
	"context"
	"fmt"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
)

const (
	// TagName is the display name tag
	TagName = "Name"
	// TagEIPAutoAttach records the public IP attached to an instance
	TagEIPAutoAttach = "osc.fcu.eip.auto-attach"
)

// Name tag suffixes appended to the tag prefix
const (
	suffixPublic   = "-public"
	suffixPrivate  = "-private"
	suffixNAT      = "-nat"
	suffixBouncer  = "-bouncer"
	suffixInstance = "-instance-1"
)

func mainRouteTableName(vpcID string) string {
	return "main for " + vpcID
}

func secondRouteTableName(vpcID string) string {
	return "second for " + vpcID
}

// tag sets a single tag on a resource
func (b *Builder) tag(ctx context.Context, resourceID, key, value string) error {
	err := b.call(ctx, "CreateTags", func(ctx context.Context) error {
		_, err := b.ec2.CreateTags(ctx, &ec2.CreateTagsInput{
			Resources: []string{resourceID},
			Tags:      []types.Tag{{Key: awssdk.String(key), Value: awssdk.String(value)}},
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: %s %s=%s: %w", ErrTag, resourceID, key, value, err)
	}
	return nil
}
