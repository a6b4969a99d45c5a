// Package throttle provides the fixed-interval pauses inserted between
// dependent cloud API calls and between polls of a resource's state.
package throttle

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"
)

// Throttle blocks the caller until the next call may proceed
type Throttle interface {
	// Pause returns once the interval has elapsed or ctx is done
	Pause(ctx context.Context) error
}

// Interval blocks every Pause for the full interval, measured from the call.
// The delay does not shrink after an idle gap, so each pause gives the
// provider the same time to settle.
type Interval struct {
	every   time.Duration
	onPause func()
}

// NewInterval creates an Interval throttle. onPause, when not nil, is called
// after every completed pause.
func NewInterval(every time.Duration, onPause func()) *Interval {
	return &Interval{every: every, onPause: onPause}
}

// Pause waits one interval or until ctx is done
func (i *Interval) Pause(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < i.every {
		return fmt.Errorf("pause of %s would exceed context deadline", i.every)
	}

	timer := time.NewTimer(i.every)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	}

	if i.onPause != nil {
		i.onPause()
	}
	return nil
}

// Every returns the configured interval
func (i *Interval) Every() time.Duration {
	return i.every
}

// NoOp never blocks. Tests use it to run workflows without real delays.
type NoOp struct{}

// Pause returns ctx.Err()
func (NoOp) Pause(ctx context.Context) error {
	return ctx.Err()
}

// Counter counts pauses without blocking
type Counter struct {
	n atomic.Int64
}

// Pause records the pause and returns ctx.Err()
func (c *Counter) Pause(ctx context.Context) error {
	c.n.Add(1)
	return ctx.Err()
}

// Count returns the number of pauses taken
func (c *Counter) Count() int {
	return int(c.n.Load())
}
