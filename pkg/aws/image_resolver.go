package aws

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/go-logr/logr"
)

// DefaultImageNamePatterns match the CentOS images used for the bouncer and
// private instances
var DefaultImageNamePatterns = []string{"centos6*", "centos-7*", "Centos7*", "Centos-7*"}

// ImageNotFoundError is returned when no image matches the name patterns
type ImageNotFoundError struct {
	Patterns []string
}

func (e ImageNotFoundError) Error() string {
	return fmt.Sprintf("no ebs x86_64 image matching %s", strings.Join(e.Patterns, ", "))
}

// ImageResolver looks up machine images by name pattern
type ImageResolver struct {
	// EC2 is the compute API used for image lookups
	EC2 InstanceAPI
	// Logger is used for structured logging
	Logger logr.Logger
	caller *Caller

	// Cache of resolved image IDs keyed by the joined name patterns
	imageCache      map[string]string
	cacheMutex      sync.RWMutex
	cacheExpiration time.Duration
	lastCacheUpdate time.Time
}

// NewImageResolver creates an ImageResolver
func NewImageResolver(ec2Client InstanceAPI, caller *Caller, logger logr.Logger) *ImageResolver {
	return &ImageResolver{
		EC2:             ec2Client,
		Logger:          logger.WithName("image-resolver"),
		caller:          caller,
		imageCache:      make(map[string]string, 4),
		cacheExpiration: 5 * time.Minute,
		lastCacheUpdate: time.Now(),
	}
}

// FindImage returns the ID of the first ebs-backed x86_64 image whose name
// matches any of namePatterns. DefaultImageNamePatterns are used when none
// are given.
func (r *ImageResolver) FindImage(ctx context.Context, namePatterns ...string) (string, error) {
	if len(namePatterns) == 0 {
		namePatterns = DefaultImageNamePatterns
	}
	key := strings.Join(namePatterns, ",")
	log := r.Logger.WithValues("patterns", namePatterns)

	r.cacheMutex.RLock()
	if imageID, ok := r.imageCache[key]; ok && time.Since(r.lastCacheUpdate) < r.cacheExpiration {
		r.cacheMutex.RUnlock()
		log.V(1).Info("Using cached image ID", "imageID", imageID)
		return imageID, nil
	}
	r.cacheMutex.RUnlock()

	input := &ec2.DescribeImagesInput{
		Filters: []types.Filter{
			{Name: aws.String("root-device-type"), Values: []string{"ebs"}},
			{Name: aws.String("architecture"), Values: []string{"x86_64"}},
			{Name: aws.String("name"), Values: namePatterns},
		},
	}

	var result *ec2.DescribeImagesOutput
	err := r.caller.Do(ctx, ServiceCompute, "DescribeImages", func(ctx context.Context) error {
		var err error
		result, err = r.EC2.DescribeImages(ctx, input)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to describe images: %w", err)
	}

	if len(result.Images) == 0 {
		return "", ImageNotFoundError{Patterns: namePatterns}
	}
	if len(result.Images) > 1 {
		log.V(1).Info("Multiple images matched, using the first one", "count", len(result.Images))
	}

	imageID := aws.ToString(result.Images[0].ImageId)
	log.Info("Found image", "imageID", imageID, "name", aws.ToString(result.Images[0].Name))

	r.cacheMutex.Lock()
	r.imageCache[key] = imageID
	r.lastCacheUpdate = time.Now()
	r.cacheMutex.Unlock()

	return imageID, nil
}
