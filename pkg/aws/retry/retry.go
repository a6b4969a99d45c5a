// Package retry retries cloud API calls with exponential backoff. Failures are
// classified first, and the class decides whether and how long to back off.
package retry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/smithy-go"
	"github.com/go-logr/logr"
	"k8s.io/apimachinery/pkg/util/wait"
)

// RetryableFunc is one attempt. It returns true once the work is done.
type RetryableFunc func() (bool, error)

// Category is the retry class of a failed call
type Category string

const (
	// CategoryFatal covers client errors such as DependencyViolation or bad parameters
	CategoryFatal Category = "fatal"
	// CategoryThrottling is a provider rate limit response
	CategoryThrottling Category = "throttling"
	// CategoryTransient is a server-side failure or an unrecognized error
	CategoryTransient Category = "transient"
	// CategoryNetwork is a connection level failure
	CategoryNetwork Category = "network"
	// CategoryNotFound means the resource is already gone
	CategoryNotFound Category = "not-found"
)

var codeCategories = map[string]Category{
	"RequestLimitExceeded":     CategoryThrottling,
	"Throttling":               CategoryThrottling,
	"ThrottlingException":      CategoryThrottling,
	"SlowDown":                 CategoryThrottling,
	"TooManyRequestsException": CategoryThrottling,
	"InternalError":            CategoryTransient,
	"InternalFailure":          CategoryTransient,
	"ServiceUnavailable":       CategoryTransient,
	"Unavailable":              CategoryTransient,
	"RequestTimeout":           CategoryTransient,
}

// messageCategories is checked in order against errors that carry no code
var messageCategories = []struct {
	category Category
	keywords []string
}{
	{CategoryThrottling, []string{"requestlimitexceeded", "throttling", "rate limit", "too many requests", "slowdown"}},
	{CategoryNotFound, []string{".notfound", "resource not found", "does not exist"}},
	{CategoryNetwork, []string{
		"connection timeout", "connection refused", "connection reset",
		"network unreachable", "no such host", "host unreachable", "no route to host",
	}},
	{CategoryFatal, []string{
		"access denied", "unauthorized", "forbidden", "invalid parameter",
		"malformed", "bad request", "validation", "dependencyviolation",
	}},
}

// Classify sorts err into a retry category. A provider error code decides
// when present. Otherwise the message is matched against known keywords, and
// anything unrecognized counts as transient.
func Classify(err error) Category {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return CategoryFatal
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		if c, ok := codeCategories[code]; ok {
			return c
		}
		if strings.HasSuffix(code, "NotFound") {
			return CategoryNotFound
		}
		return CategoryFatal
	}

	msg := strings.ToLower(err.Error())
	for _, mc := range messageCategories {
		for _, kw := range mc.keywords {
			if strings.Contains(msg, kw) {
				return mc.category
			}
		}
	}
	return CategoryTransient
}

// IsRetryable reports whether err is worth another attempt
func IsRetryable(err error) bool {
	switch Classify(err) {
	case CategoryThrottling, CategoryTransient, CategoryNetwork:
		return true
	}
	return false
}

// BackoffFor returns the backoff used after a failure of category c.
// Throttling backs off longest; fatal and not-found errors get no retries.
func BackoffFor(c Category) wait.Backoff {
	switch c {
	case CategoryThrottling:
		return wait.Backoff{Steps: 8, Duration: 2 * time.Second, Factor: 2.5, Jitter: 0.2}
	case CategoryNetwork:
		return wait.Backoff{Steps: 6, Duration: 500 * time.Millisecond, Factor: 1.5, Jitter: 0.1}
	case CategoryTransient:
		return DefaultBackoff()
	default:
		return wait.Backoff{Steps: 1}
	}
}

// DefaultBackoff returns the default backoff configuration
func DefaultBackoff() wait.Backoff {
	return wait.Backoff{
		Steps:    5,
		Duration: 1 * time.Second,
		Factor:   2.0,
		Jitter:   0.1,
	}
}

// Do makes a first attempt and, if it fails with a retryable error, keeps
// retrying with the backoff of that error's category.
func Do(ctx context.Context, logger logr.Logger, operation string, fn RetryableFunc) error {
	done, err := fn()
	if err == nil {
		if done {
			return nil
		}
		return WithExponentialBackoff(ctx, logger, operation, fn, IsRetryable, DefaultBackoff())
	}

	category := Classify(err)
	if !IsRetryable(err) {
		logger.V(1).Info("Not retrying", "operation", operation, "category", string(category), "error", err.Error())
		return err
	}

	backoff := BackoffFor(category)
	logger.Info("Retrying failed call",
		"operation", operation,
		"category", string(category),
		"error", err.Error(),
		"maxAttempts", backoff.Steps,
		"initialDelay", backoff.Duration)

	// The first attempt already happened, so wait before the next one
	timer := time.NewTimer(backoff.Duration)
	select {
	case <-ctx.Done():
		timer.Stop()
		return fmt.Errorf("failed to %s: %w", operation, ctx.Err())
	case <-timer.C:
	}
	backoff.Steps--
	if backoff.Steps < 1 {
		return fmt.Errorf("failed to %s after retries: %w", operation, err)
	}
	return WithExponentialBackoff(ctx, logger, operation, fn, IsRetryable, backoff)
}

// WithExponentialBackoff retries fn while isRetryable accepts its error. When
// the steps run out the last error is wrapped with the operation name.
func WithExponentialBackoff(
	ctx context.Context,
	logger logr.Logger,
	operation string,
	fn RetryableFunc,
	isRetryable func(error) bool,
	backoff wait.Backoff,
) error {
	var lastErr error
	err := wait.ExponentialBackoffWithContext(ctx, backoff, func(context.Context) (bool, error) {
		done, err := fn()
		if err == nil {
			return done, nil
		}
		lastErr = err
		if !isRetryable(err) {
			return false, err
		}
		logger.V(1).Info("Retryable error encountered, will retry", "operation", operation, "error", err.Error())
		return false, nil
	})
	if err == nil {
		return nil
	}

	if lastErr == nil {
		lastErr = err
	}
	if wait.Interrupted(err) {
		return fmt.Errorf("failed to %s after retries: %w", operation, lastErr)
	}
	return lastErr
}
