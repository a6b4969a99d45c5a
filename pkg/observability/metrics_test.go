package observability

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics_Singleton(t *testing.T) {
	assert.Same(t, NewMetrics(), NewMetrics())
}

func TestMetrics_Record(t *testing.T) {
	m := NewMetrics()

	pauses := testutil.ToFloat64(m.ThrottlePausesTotal)
	m.RecordThrottlePause()
	assert.Equal(t, pauses+1, testutil.ToFloat64(m.ThrottlePausesTotal))

	stragglers := m.WaitStragglersTotal.WithLabelValues("record-test")
	before := testutil.ToFloat64(stragglers)
	m.RecordStragglers("record-test", 0)
	assert.Equal(t, before, testutil.ToFloat64(stragglers), "zero stragglers are not counted")

	throttled := testutil.ToFloat64(m.APIThrottlingTotal)
	m.RecordAPIError("compute", "record-test", "throttling")
	m.RecordAPIError("compute", "record-test", "dependency")
	assert.Equal(t, throttled+1, testutil.ToFloat64(m.APIThrottlingTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.APIErrors.WithLabelValues("compute", "record-test", "dependency")))

	m.RecordStep("record-test", "vpc", "success", 2*time.Second)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WorkflowStepsTotal.WithLabelValues("record-test", "vpc", "success")))
}

func TestWriteTextfile(t *testing.T) {
	m := NewMetrics()
	m.RecordThrottlePause()
	path := filepath.Join(t.TempDir(), "vpcbuilder.prom")

	require.NoError(t, WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "vpcbuilder_throttle_pauses_total")
}

func TestWriteTextfile_BadPath(t *testing.T) {
	err := WriteTextfile(filepath.Join(t.TempDir(), "missing", "vpcbuilder.prom"))
	assert.Error(t, err)
}
