package aws

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"github.com/johnlam90/vpc-builder/pkg/aws/retry"
	"github.com/johnlam90/vpc-builder/pkg/observability"
	"golang.org/x/time/rate"
	"k8s.io/apimachinery/pkg/util/wait"
)

// Caller serializes cloud API calls behind a rate limiter, retries throttled
// and transient failures, and records every call in logs and metrics.
type Caller struct {
	logger      *observability.StructuredLogger
	rateLimiter *rate.Limiter
	backoff     *wait.Backoff
	timeout     time.Duration
}

// CallerOption customizes a Caller
type CallerOption func(*Caller)

// WithBackoff retries every failure with b instead of the per-category backoff
func WithBackoff(b wait.Backoff) CallerOption {
	return func(c *Caller) { c.backoff = &b }
}

// WithCallTimeout overrides the per-call timeout
func WithCallTimeout(d time.Duration) CallerOption {
	return func(c *Caller) { c.timeout = d }
}

// NewCaller creates a Caller allowing limit calls per second with the given burst.
// metrics may be nil.
func NewCaller(logger logr.Logger, metrics *observability.Metrics, limit float64, burst int, opts ...CallerOption) *Caller {
	c := &Caller{
		logger:      observability.NewStructuredLogger(logger.WithName("api"), metrics),
		rateLimiter: rate.NewLimiter(rate.Limit(limit), burst),
		timeout:     30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// waitForRateLimit waits for rate limiter before making API calls
func (c *Caller) waitForRateLimit(ctx context.Context) error {
	return c.rateLimiter.Wait(ctx)
}

// Do runs one API call. fn is retried while the error is throttling, network
// or transient, with the backoff of that category. NotFound and other client
// errors are returned unchanged so callers can classify them with IsNotFound
// and friends.
func (c *Caller) Do(ctx context.Context, service, operation string, fn func(ctx context.Context) error) error {
	attempt := func() (bool, error) {
		if err := c.waitForRateLimit(ctx); err != nil {
			return false, fmt.Errorf("rate limit wait failed: %w", err)
		}

		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		start := time.Now()
		err := fn(callCtx)
		c.logger.LogAPICall(ctx, service, operation, time.Since(start), err)
		if err != nil {
			return false, err
		}
		return true, nil
	}

	if c.backoff != nil {
		return retry.WithExponentialBackoff(ctx, c.logger.Logger(), operation, attempt, retry.IsRetryable, *c.backoff)
	}
	return retry.Do(ctx, c.logger.Logger(), operation, attempt)
}
