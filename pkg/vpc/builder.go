// Package vpc provisions a two-subnet VPC: a public subnet holding a bouncer
// and an optional NAT instance, and a private subnet holding one worker.
package vpc

import (
	"context"
	"time"

	"github.com/go-logr/logr"
	"github.com/johnlam90/vpc-builder/pkg/aws"
	"github.com/johnlam90/vpc-builder/pkg/config"
	"github.com/johnlam90/vpc-builder/pkg/observability"
	"github.com/johnlam90/vpc-builder/pkg/throttle"
	"github.com/johnlam90/vpc-builder/pkg/waiter"
)

const workflowSetup = "setup"

// Builder runs the provisioning steps against one compute API. Calls are
// serialized and every fixed delay goes through the throttle.
type Builder struct {
	ec2      aws.EC2API
	caller   *aws.Caller
	throttle throttle.Throttle
	waiter   *waiter.Waiter
	ipLookup PublicIPLookup
	logger   *observability.StructuredLogger
	log      logr.Logger
	metrics  *observability.Metrics

	waitTimeout time.Duration
}

// Option customizes a Builder
type Option func(*Builder)

// WithThrottle replaces the fixed-interval pause
func WithThrottle(t throttle.Throttle) Option {
	return func(b *Builder) { b.throttle = t }
}

// WithCaller shares an API caller, and its rate limiter, with other components
func WithCaller(c *aws.Caller) Option {
	return func(b *Builder) { b.caller = c }
}

// WithIPLookup replaces the IP-echo lookup used for the SSH ingress rule
func WithIPLookup(l PublicIPLookup) Option {
	return func(b *Builder) { b.ipLookup = l }
}

// WithWaiter replaces the instance state waiter
func WithWaiter(w *waiter.Waiter) Option {
	return func(b *Builder) { b.waiter = w }
}

// NewBuilder creates a Builder from cfg. metrics may be nil.
func NewBuilder(api aws.EC2API, cfg *config.BuilderConfig, logger logr.Logger, metrics *observability.Metrics, opts ...Option) *Builder {
	log := logger.WithName("vpc")
	b := &Builder{
		ec2:         api,
		log:         log,
		logger:      observability.NewStructuredLogger(log, metrics),
		metrics:     metrics,
		waitTimeout: cfg.InstanceWaitTimeout,
	}
	for _, opt := range opts {
		opt(b)
	}

	if b.throttle == nil {
		var onPause func()
		if metrics != nil {
			onPause = metrics.RecordThrottlePause
		}
		b.throttle = throttle.NewInterval(cfg.ShortDelay, onPause)
	}
	if b.caller == nil {
		b.caller = aws.NewCaller(logger, metrics, cfg.APIRateLimit, cfg.APIBurst)
	}
	if b.ipLookup == nil {
		b.ipLookup = NewHTTPIPLookup(cfg.IPEchoURL, 10*time.Second)
	}
	if b.waiter == nil {
		b.waiter = waiter.New(b.throttle, logger)
	}
	return b
}

func (b *Builder) call(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	return b.caller.Do(ctx, aws.ServiceCompute, operation, fn)
}

func (b *Builder) pause(ctx context.Context) error {
	return b.throttle.Pause(ctx)
}

func (b *Builder) operation(step string) *observability.OperationContext {
	return observability.NewOperationContext(workflowSetup, step)
}

// finish logs the outcome of a provisioning step and passes err through
func (b *Builder) finish(ctx context.Context, opCtx *observability.OperationContext, err error, message string) error {
	if err != nil {
		b.logger.LogOperationError(ctx, opCtx, err, message+" failed")
		return err
	}
	b.logger.LogOperationSuccess(ctx, opCtx, message)
	return nil
}
