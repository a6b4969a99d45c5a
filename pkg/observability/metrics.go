package observability

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all the Prometheus metrics for the provisioning and teardown workflows
type Metrics struct {
	// Workflow step metrics
	WorkflowStepsTotal   *prometheus.CounterVec
	WorkflowStepDuration *prometheus.HistogramVec
	ResourceErrors       *prometheus.CounterVec

	// Polling metrics
	WaitStragglersTotal *prometheus.CounterVec
	ThrottlePausesTotal prometheus.Counter

	// Cloud API metrics
	APICallsTotal      *prometheus.CounterVec
	APICallDuration    *prometheus.HistogramVec
	APIErrors          *prometheus.CounterVec
	APIThrottlingTotal prometheus.Counter
}

var (
	metricsInstance *Metrics
	metricsOnce     sync.Once
)

// NewMetrics creates and registers all metrics (singleton pattern)
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		metricsInstance = createMetrics()
	})
	return metricsInstance
}

func createMetrics() *Metrics {
	m := &Metrics{
		WorkflowStepsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vpcbuilder_workflow_steps_total",
				Help: "Total number of workflow steps run",
			},
			[]string{"workflow", "step", "status"},
		),

		WorkflowStepDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vpcbuilder_workflow_step_duration_seconds",
				Help:    "Duration of workflow steps in seconds",
				Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
			},
			[]string{"workflow", "step"},
		),

		ResourceErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vpcbuilder_resource_operation_errors_total",
				Help: "Total number of failed operations on individual resources",
			},
			[]string{"workflow", "resource", "error_category"},
		),

		WaitStragglersTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vpcbuilder_wait_stragglers_total",
				Help: "Total number of resources that did not reach the target state before the wait timed out",
			},
			[]string{"target_state"},
		),

		ThrottlePausesTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "vpcbuilder_throttle_pauses_total",
				Help: "Total number of fixed-interval pauses taken between dependent calls",
			},
		),

		APICallsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vpcbuilder_api_calls_total",
				Help: "Total number of cloud API calls made",
			},
			[]string{"service", "operation", "status"},
		),

		APICallDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vpcbuilder_api_call_duration_seconds",
				Help:    "Duration of cloud API calls in seconds",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
			},
			[]string{"service", "operation"},
		),

		APIErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vpcbuilder_api_errors_total",
				Help: "Total number of cloud API errors",
			},
			[]string{"service", "operation", "error_category"},
		),

		APIThrottlingTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "vpcbuilder_api_throttling_events_total",
				Help: "Total number of cloud API throttling responses",
			},
		),
	}

	return m
}

// RecordStep records the outcome of one workflow step
func (m *Metrics) RecordStep(workflow, step, status string, duration time.Duration) {
	m.WorkflowStepsTotal.WithLabelValues(workflow, step, status).Inc()
	m.WorkflowStepDuration.WithLabelValues(workflow, step).Observe(duration.Seconds())
}

// RecordResourceError records a failed operation on a single resource
func (m *Metrics) RecordResourceError(workflow, resource, errorCategory string) {
	m.ResourceErrors.WithLabelValues(workflow, resource, errorCategory).Inc()
}

// RecordStragglers records resources left behind by a wait
func (m *Metrics) RecordStragglers(targetState string, count int) {
	if count <= 0 {
		return
	}
	m.WaitStragglersTotal.WithLabelValues(targetState).Add(float64(count))
}

// RecordThrottlePause records one fixed-interval pause
func (m *Metrics) RecordThrottlePause() {
	m.ThrottlePausesTotal.Inc()
}

// RecordAPICall records metrics for a cloud API call
func (m *Metrics) RecordAPICall(service, operation, status string, duration time.Duration) {
	m.APICallsTotal.WithLabelValues(service, operation, status).Inc()
	m.APICallDuration.WithLabelValues(service, operation).Observe(duration.Seconds())
}

// RecordAPIError records a cloud API error
func (m *Metrics) RecordAPIError(service, operation, errorCategory string) {
	m.APIErrors.WithLabelValues(service, operation, errorCategory).Inc()
	if errorCategory == "throttling" {
		m.APIThrottlingTotal.Inc()
	}
}

// WriteTextfile writes every registered metric to path in the text exposition
// format, for collection by a node exporter textfile collector.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}

// Timer is a helper for timing operations
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
