package teardown

import (
	"errors"
	"fmt"
	"time"
)

// Failure is one resource that could not be removed
type Failure struct {
	Step     string
	Resource string
	Err      error
}

func (f Failure) Error() string {
	if f.Resource == "" {
		return fmt.Sprintf("%s: %v", f.Step, f.Err)
	}
	return fmt.Sprintf("%s %s: %v", f.Step, f.Resource, f.Err)
}

func (f Failure) Unwrap() error {
	return f.Err
}

// StepResult is the outcome of one teardown step
type StepResult struct {
	Name string
	// Attempted lists every resource the step acted on, failed or not
	Attempted []string
	Failed    []Failure
	// Stragglers are resources that had not reached their target state when a wait gave up
	Stragglers []string
	// Skipped is set when the step had nothing it could act on, such as no load balancer client
	Skipped  bool
	Duration time.Duration
}

// Result summarizes a teardown run
type Result struct {
	VpcID      string
	Steps      []StepResult
	VpcDeleted bool
}

// Failures returns every recorded failure in step order
func (r *Result) Failures() []Failure {
	var out []Failure
	for _, s := range r.Steps {
		out = append(out, s.Failed...)
	}
	return out
}

// Err joins every recorded failure, or returns nil when there is none.
// Stragglers alone are not an error.
func (r *Result) Err() error {
	failures := r.Failures()
	if len(failures) == 0 {
		return nil
	}
	errs := make([]error, 0, len(failures))
	for _, f := range failures {
		errs = append(errs, f)
	}
	return errors.Join(errs...)
}

// Step returns the result of the named step, or nil if it did not run
func (r *Result) Step(name string) *StepResult {
	for i := range r.Steps {
		if r.Steps[i].Name == name {
			return &r.Steps[i]
		}
	}
	return nil
}
