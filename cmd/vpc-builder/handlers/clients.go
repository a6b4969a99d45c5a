package handlers

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/johnlam90/vpc-builder/pkg/aws"
)

// Clients handles the clients command.
//
// It lists the four service clients and whether each one is configured.
// With probe set, every configured client also makes one read-only call.
func Clients(ctx context.Context, opts GlobalOptions, probe bool, out io.Writer) error {
	env, err := newEnvironment(ctx, opts)
	if err != nil {
		return err
	}
	defer env.close()

	var statuses []aws.ServiceStatus
	if probe {
		statuses = env.builder.Probe(ctx)
	} else {
		configured := map[string]bool{}
		for _, s := range env.builder.Clients().Available() {
			configured[s] = true
		}
		for _, s := range []string{aws.ServiceCompute, aws.ServiceLoadBalancer, aws.ServiceIdentity, aws.ServiceObjectStorage} {
			statuses = append(statuses, aws.ServiceStatus{Service: s, Configured: configured[s]})
		}
	}

	return printStatuses(out, statuses, probe)
}

func printStatuses(out io.Writer, statuses []aws.ServiceStatus, probed bool) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	var failed int
	for _, s := range statuses {
		state := "not configured"
		if s.Configured {
			state = "configured"
		}
		if !probed || !s.Configured {
			fmt.Fprintf(w, "%s\t%s\n", s.Service, state)
			continue
		}
		if s.Err != nil {
			failed++
			fmt.Fprintf(w, "%s\t%s\terror: %v\n", s.Service, state, s.Err)
			continue
		}
		fmt.Fprintf(w, "%s\t%s\tok %s\n", s.Service, state, s.Detail)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d service probes failed", failed)
	}
	return nil
}
