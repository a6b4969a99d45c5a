package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/johnlam90/vpc-builder/pkg/teardown"
)

// Teardown handles the teardown command.
//
// It deletes the VPC and everything in it, prints one line per step and
// fails when any resource could not be removed.
func Teardown(ctx context.Context, opts GlobalOptions, vpcID string, terminateInstances bool, out io.Writer) error {
	env, err := newEnvironment(ctx, opts)
	if err != nil {
		return err
	}
	defer env.close()

	return runTeardown(ctx, env, vpcID, terminateInstances, out)
}

func runTeardown(ctx context.Context, env *environment, vpcID string, terminateInstances bool, out io.Writer) error {
	result, err := env.builder.Teardown(ctx, vpcID, terminateInstances)
	if errors.Is(err, teardown.ErrLiveInstances) {
		return fmt.Errorf("%w: rerun with --terminate-instances to remove them", err)
	}
	if err != nil {
		return err
	}

	printResult(out, result)
	if err := result.Err(); err != nil {
		return fmt.Errorf("teardown of %s incomplete: %w", vpcID, err)
	}
	return nil
}

func printResult(out io.Writer, r *teardown.Result) {
	fmt.Fprintf(out, "Teardown of %s\n", r.VpcID)
	for _, s := range r.Steps {
		var status string
		switch {
		case s.Skipped:
			status = "skipped"
		case len(s.Failed) > 0:
			status = fmt.Sprintf("%d failed of %d", len(s.Failed), len(s.Attempted))
		default:
			status = fmt.Sprintf("%d done", len(s.Attempted))
		}
		fmt.Fprintf(out, "  %-28s %s\n", s.Name, status)
		if len(s.Stragglers) > 0 {
			fmt.Fprintf(out, "  %-28s stragglers: %s\n", "", strings.Join(s.Stragglers, ", "))
		}
	}
	for _, f := range r.Failures() {
		fmt.Fprintf(out, "  failed: %v\n", f)
	}
	if r.VpcDeleted {
		fmt.Fprintf(out, "VPC %s deleted\n", r.VpcID)
	} else {
		fmt.Fprintf(out, "VPC %s not deleted\n", r.VpcID)
	}
}
