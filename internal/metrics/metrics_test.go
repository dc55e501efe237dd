package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_Step(t *testing.T) {
	t.Parallel()

	r := New()
	r.Step("membership", "done")
	r.Step("membership", "done")
	r.Step("membership", "skipped")

	assert.Equal(t, 2.0, testutil.ToFloat64(r.steps.WithLabelValues("membership", "done")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.steps.WithLabelValues("membership", "skipped")))
}

func TestRecorder_Finish(t *testing.T) {
	t.Parallel()

	r := New()
	r.Finish(time.Now().Add(-2*time.Second), true)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.runFailed))
	assert.GreaterOrEqual(t, testutil.ToFloat64(r.runDuration), 2.0)
}

func TestRecorder_WriteTextfile(t *testing.T) {
	t.Parallel()

	r := New()
	r.Step("project", "fatal")
	r.Finish(time.Now(), false)

	path := filepath.Join(t.TempDir(), "provisioner.prom")
	require.NoError(t, r.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `provisioner_step_results_total{result="fatal",step="project"} 1`)
	assert.Contains(t, string(data), "provisioner_run_failed 0")
}

func TestRecorder_Nil(t *testing.T) {
	t.Parallel()

	var r *Recorder
	r.Step("x", "done")
	r.Finish(time.Now(), true)
	assert.NoError(t, r.WriteTextfile("/nonexistent/file.prom"))
}
