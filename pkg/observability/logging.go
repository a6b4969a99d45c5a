package observability

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-logr/logr"
)

// StructuredLogger provides structured logging with consistent fields
type StructuredLogger struct {
	logger  logr.Logger
	metrics *Metrics
}

// NewStructuredLogger creates a new structured logger. metrics may be nil.
func NewStructuredLogger(logger logr.Logger, metrics *Metrics) *StructuredLogger {
	return &StructuredLogger{
		logger:  logger,
		metrics: metrics,
	}
}

// Logger returns the underlying logr.Logger
func (sl *StructuredLogger) Logger() logr.Logger {
	return sl.logger
}

// OperationContext holds context information for a workflow step
type OperationContext struct {
	OperationID string
	Workflow    string
	Step        string
	VpcID       string
	ResourceID  string
	StartTime   time.Time
	Metadata    map[string]interface{}
}

// NewOperationContext creates a new operation context
func NewOperationContext(workflow, step string) *OperationContext {
	return &OperationContext{
		OperationID: generateOperationID(),
		Workflow:    workflow,
		Step:        step,
		StartTime:   time.Now(),
		Metadata:    make(map[string]interface{}),
	}
}

// WithVpc adds the VPC being worked on to the context
func (oc *OperationContext) WithVpc(vpcID string) *OperationContext {
	oc.VpcID = vpcID
	return oc
}

// WithResource adds the resource being worked on to the context
func (oc *OperationContext) WithResource(resourceID string) *OperationContext {
	oc.ResourceID = resourceID
	return oc
}

// WithMetadata adds metadata to the context
func (oc *OperationContext) WithMetadata(key string, value interface{}) *OperationContext {
	oc.Metadata[key] = value
	return oc
}

// Duration returns the elapsed time since the operation started
func (oc *OperationContext) Duration() time.Duration {
	return time.Since(oc.StartTime)
}

// LogFields returns structured log fields for this context
func (oc *OperationContext) LogFields() []interface{} {
	fields := []interface{}{
		"operationID", oc.OperationID,
		"workflow", oc.Workflow,
		"step", oc.Step,
		"duration", oc.Duration(),
	}

	if oc.VpcID != "" {
		fields = append(fields, "vpcID", oc.VpcID)
	}
	if oc.ResourceID != "" {
		fields = append(fields, "resourceID", oc.ResourceID)
	}

	for key, value := range oc.Metadata {
		fields = append(fields, key, value)
	}

	return fields
}

// LogOperationStart logs the start of an operation
func (sl *StructuredLogger) LogOperationStart(ctx context.Context, opCtx *OperationContext, message string) {
	sl.logger.Info(message, opCtx.LogFields()...)
}

// LogOperationSuccess logs successful completion of an operation
func (sl *StructuredLogger) LogOperationSuccess(ctx context.Context, opCtx *OperationContext, message string) {
	sl.logger.Info(message, opCtx.LogFields()...)

	if sl.metrics != nil {
		sl.metrics.RecordStep(opCtx.Workflow, opCtx.Step, "success", opCtx.Duration())
	}
}

// LogOperationPartial logs a step that finished with some failed resources
func (sl *StructuredLogger) LogOperationPartial(ctx context.Context, opCtx *OperationContext, failed int, message string) {
	fields := append(opCtx.LogFields(), "failed", failed)
	sl.logger.Info(message, fields...)

	if sl.metrics != nil {
		sl.metrics.RecordStep(opCtx.Workflow, opCtx.Step, "partial", opCtx.Duration())
	}
}

// LogOperationError logs an error during an operation
func (sl *StructuredLogger) LogOperationError(ctx context.Context, opCtx *OperationContext, err error, message string) {
	sl.logger.Error(err, message, opCtx.LogFields()...)

	if sl.metrics != nil {
		sl.metrics.RecordStep(opCtx.Workflow, opCtx.Step, "error", opCtx.Duration())
	}
}

// LogResourceError logs a failure on a single resource within a step. Such
// failures do not stop the step.
func (sl *StructuredLogger) LogResourceError(ctx context.Context, opCtx *OperationContext, resourceID string, err error, message string) {
	fields := append(opCtx.LogFields(), "resourceID", resourceID, "warning", true, "error", err.Error())
	sl.logger.Info(message, fields...)

	if sl.metrics != nil {
		sl.metrics.RecordResourceError(opCtx.Workflow, resourceKind(resourceID), CategorizeError(err))
	}
}

// LogOperationWarning logs a warning during an operation
func (sl *StructuredLogger) LogOperationWarning(ctx context.Context, opCtx *OperationContext, message string) {
	sl.logger.Info(fmt.Sprintf("WARNING: %s", message), opCtx.LogFields()...)
}

// LogStragglers logs resources that did not converge before a wait timed out
func (sl *StructuredLogger) LogStragglers(ctx context.Context, opCtx *OperationContext, targetState string, ids []string) {
	if len(ids) == 0 {
		return
	}
	fields := append(opCtx.LogFields(), "targetState", targetState, "stragglers", ids)
	sl.logger.Info("WARNING: resources did not reach target state before timeout", fields...)

	if sl.metrics != nil {
		sl.metrics.RecordStragglers(targetState, len(ids))
	}
}

// LogAPICall logs a cloud API call with timing
func (sl *StructuredLogger) LogAPICall(ctx context.Context, service, operation string, duration time.Duration, err error) {
	fields := []interface{}{
		"service", service,
		"operation", operation,
		"duration", duration,
	}

	if err != nil {
		fields = append(fields, "error", err.Error())
		sl.logger.V(1).Info("API call failed", fields...)

		if sl.metrics != nil {
			sl.metrics.RecordAPIError(service, operation, CategorizeError(err))
			sl.metrics.RecordAPICall(service, operation, "error", duration)
		}
		return
	}

	sl.logger.V(2).Info("API call succeeded", fields...)
	if sl.metrics != nil {
		sl.metrics.RecordAPICall(service, operation, "success", duration)
	}
}

func generateOperationID() string {
	return fmt.Sprintf("op-%d", time.Now().UnixNano())
}

// CategorizeError categorizes errors for metrics labels
func CategorizeError(err error) string {
	if err == nil {
		return "none"
	}

	errMsg := strings.ToLower(err.Error())

	switch {
	case contains(errMsg, "throttling", "rate limit", "requestlimitexceeded"):
		return "throttling"
	case contains(errMsg, "access denied", "unauthorized", "forbidden", "authfailure"):
		return "authorization"
	case contains(errMsg, "notfound", "not found", "does not exist"):
		return "not_found"
	case contains(errMsg, "dependencyviolation", "in use", "has dependencies"):
		return "dependency"
	case contains(errMsg, "timeout", "connection"):
		return "network"
	case contains(errMsg, "invalid", "malformed", "bad request"):
		return "validation"
	}

	return "unknown"
}

// resourceKind derives a metrics label from a provider ID prefix such as
// "vpc-", "subnet-" or "sg-"
func resourceKind(resourceID string) string {
	if i := strings.Index(resourceID, "-"); i > 0 {
		return resourceID[:i]
	}
	if strings.HasPrefix(resourceID, "arn:") {
		return "arn"
	}
	return "unknown"
}

func contains(str string, substrings ...string) bool {
	for _, substr := range substrings {
		if strings.Contains(str, substr) {
			return true
		}
	}
	return false
}
