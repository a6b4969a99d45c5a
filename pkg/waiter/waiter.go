// Package waiter polls cloud resources until they reach a target state or a
// deadline passes.
package waiter

import (
	"context"
	"time"

	"github.com/go-logr/logr"
	"github.com/johnlam90/vpc-builder/pkg/throttle"
)

// Refreshable is a resource handle whose state can be re-read from the provider
type Refreshable interface {
	// ID returns the provider-assigned identifier
	ID() string
	// Refresh fetches and caches the current state
	Refresh(ctx context.Context) (string, error)
}

// Waiter polls Refreshable resources with a fixed pause after every check
type Waiter struct {
	throttle throttle.Throttle
	logger   logr.Logger
	now      func() time.Time
}

// New creates a Waiter pausing on th between checks
func New(th throttle.Throttle, logger logr.Logger) *Waiter {
	return &Waiter{
		throttle: th,
		logger:   logger.WithName("waiter"),
		now:      time.Now,
	}
}

// WithClock replaces the wall clock used for the deadline
func (w *Waiter) WithClock(now func() time.Time) *Waiter {
	w.now = now
	return w
}

// ForState refreshes each remaining resource in turn, dropping those that
// report target, until none remain or timeout has elapsed. Every check is
// followed by one throttle pause. The deadline is evaluated before each pass
// over the remaining set. Refresh errors keep the resource in the set.
//
// The returned stragglers keep their input order. Duplicate IDs are waited on
// once. Cancelling ctx ends the wait early with the current stragglers.
func (w *Waiter) ForState(ctx context.Context, resources []Refreshable, target string, timeout time.Duration) []Refreshable {
	remaining := dedupe(resources)
	if len(remaining) == 0 {
		return nil
	}

	log := w.logger.WithValues("targetState", target, "timeout", timeout)
	log.V(1).Info("Waiting for resources", "count", len(remaining))

	deadline := w.now().Add(timeout)
	for len(remaining) > 0 && !w.now().After(deadline) {
		pass := remaining
		remaining = make([]Refreshable, 0, len(pass))

		for i, r := range pass {
			state, err := r.Refresh(ctx)
			switch {
			case err != nil:
				log.Info("Failed to refresh resource state", "resourceID", r.ID(), "error", err.Error())
				remaining = append(remaining, r)
			case state == target:
				log.V(1).Info("Resource reached target state", "resourceID", r.ID())
			default:
				remaining = append(remaining, r)
			}

			if err := w.throttle.Pause(ctx); err != nil {
				// keep every resource not yet checked in this pass
				remaining = append(remaining, pass[i+1:]...)
				log.Info("Wait interrupted", "error", err.Error(), "stragglers", IDs(remaining))
				return remaining
			}
		}
	}

	if len(remaining) > 0 {
		log.Info("Resources did not reach target state before timeout", "stragglers", IDs(remaining))
		return remaining
	}
	return nil
}

// IDs returns the identifiers of resources
func IDs(resources []Refreshable) []string {
	ids := make([]string, 0, len(resources))
	for _, r := range resources {
		ids = append(ids, r.ID())
	}
	return ids
}

func dedupe(resources []Refreshable) []Refreshable {
	seen := make(map[string]struct{}, len(resources))
	out := make([]Refreshable, 0, len(resources))
	for _, r := range resources {
		if r == nil {
			continue
		}
		if _, ok := seen[r.ID()]; ok {
			continue
		}
		seen[r.ID()] = struct{}{}
		out = append(out, r)
	}
	return out
}
