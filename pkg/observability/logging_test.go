package observability

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureLogger records every log line
func captureLogger() (logr.Logger, *[]string) {
	var lines []string
	logger := funcr.New(func(prefix, args string) {
		lines = append(lines, prefix+" "+args)
	}, funcr.Options{Verbosity: 2})
	return logger, &lines
}

func TestCategorizeError(t *testing.T) {
	tests := []struct {
		err      error
		expected string
	}{
		{nil, "none"},
		{errors.New("RequestLimitExceeded: Request limit exceeded"), "throttling"},
		{errors.New("UnauthorizedOperation: forbidden"), "authorization"},
		{errors.New("InvalidVpcID.NotFound: The vpc ID 'vpc-1' does not exist"), "not_found"},
		{errors.New("DependencyViolation: resource sg-1 has a dependent object"), "dependency"},
		{errors.New("dial tcp: i/o timeout"), "network"},
		{errors.New("InvalidParameterValue: bad cidr"), "validation"},
		{errors.New("boom"), "unknown"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, CategorizeError(tt.err), "%v", tt.err)
	}
}

func TestResourceKind(t *testing.T) {
	assert.Equal(t, "vpc", resourceKind("vpc-0123"))
	assert.Equal(t, "sg", resourceKind("sg-0123:ingress:tcp:22-22:0.0.0.0/0"))
	assert.Equal(t, "arn", resourceKind("arn:aws:elasticloadbalancing:eu-west-2:0:loadbalancer/app/web/1"))
	assert.Equal(t, "unknown", resourceKind(""))
}

func TestOperationContextLogFields(t *testing.T) {
	opCtx := NewOperationContext("teardown", "subnets").
		WithVpc("vpc-1").
		WithResource("subnet-1").
		WithMetadata("count", 2)

	fields := opCtx.LogFields()
	kv := map[string]interface{}{}
	for i := 0; i+1 < len(fields); i += 2 {
		kv[fields[i].(string)] = fields[i+1]
	}

	assert.Equal(t, "teardown", kv["workflow"])
	assert.Equal(t, "subnets", kv["step"])
	assert.Equal(t, "vpc-1", kv["vpcID"])
	assert.Equal(t, "subnet-1", kv["resourceID"])
	assert.Equal(t, 2, kv["count"])
	assert.True(t, strings.HasPrefix(kv["operationID"].(string), "op-"))
	assert.GreaterOrEqual(t, opCtx.Duration(), time.Duration(0))
}

func TestStructuredLogger_Lines(t *testing.T) {
	logger, lines := captureLogger()
	sl := NewStructuredLogger(logger, nil)
	ctx := context.Background()
	opCtx := NewOperationContext("setup", "network").WithVpc("vpc-1")

	sl.LogOperationStart(ctx, opCtx, "Creating network")
	sl.LogOperationWarning(ctx, opCtx, "more than one NAT gateway")
	sl.LogResourceError(ctx, opCtx, "subnet-1", errors.New("DependencyViolation"), "Failed to delete subnet")
	sl.LogStragglers(ctx, opCtx, "terminated", nil)
	sl.LogStragglers(ctx, opCtx, "terminated", []string{"i-1"})
	sl.LogOperationError(ctx, opCtx, errors.New("boom"), "Network failed")

	require.Len(t, *lines, 5, "an empty straggler list is not logged")
	assert.Contains(t, (*lines)[0], "Creating network")
	assert.Contains(t, (*lines)[1], "WARNING: more than one NAT gateway")
	assert.Contains(t, (*lines)[2], `"warning"=true`)
	assert.Contains(t, (*lines)[3], "i-1")
	assert.Contains(t, (*lines)[4], `"error"="boom"`)
}

func TestStructuredLogger_RecordsMetrics(t *testing.T) {
	logger, _ := captureLogger()
	m := NewMetrics()
	sl := NewStructuredLogger(logger, m)
	ctx := context.Background()

	steps := m.WorkflowStepsTotal.WithLabelValues("metrics-test", "network", "success")
	before := testutil.ToFloat64(steps)
	sl.LogOperationSuccess(ctx, NewOperationContext("metrics-test", "network"), "done")
	assert.Equal(t, before+1, testutil.ToFloat64(steps))

	partial := m.WorkflowStepsTotal.WithLabelValues("metrics-test", "subnets", "partial")
	before = testutil.ToFloat64(partial)
	sl.LogOperationPartial(ctx, NewOperationContext("metrics-test", "subnets"), 2, "partial")
	assert.Equal(t, before+1, testutil.ToFloat64(partial))

	resErrs := m.ResourceErrors.WithLabelValues("metrics-test", "subnet", "dependency")
	before = testutil.ToFloat64(resErrs)
	sl.LogResourceError(ctx, NewOperationContext("metrics-test", "subnets"), "subnet-1", errors.New("DependencyViolation"), "failed")
	assert.Equal(t, before+1, testutil.ToFloat64(resErrs))

	stragglers := m.WaitStragglersTotal.WithLabelValues("metrics-test-stopped")
	before = testutil.ToFloat64(stragglers)
	sl.LogStragglers(ctx, NewOperationContext("metrics-test", "wait"), "metrics-test-stopped", []string{"i-1", "i-2"})
	assert.Equal(t, before+2, testutil.ToFloat64(stragglers))

	calls := m.APICallsTotal.WithLabelValues("metrics-test", "DeleteVpc", "error")
	before = testutil.ToFloat64(calls)
	sl.LogAPICall(ctx, "metrics-test", "DeleteVpc", time.Millisecond, errors.New("DependencyViolation"))
	assert.Equal(t, before+1, testutil.ToFloat64(calls))
}
