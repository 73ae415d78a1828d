package telemetry_test

import (
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"codeberg.org/mutker/edgebench/internal/client"
	"codeberg.org/mutker/edgebench/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveTask(t *testing.T) {
	tel := telemetry.New()

	tel.ObserveTask("S3", client.Outcome{Success: true, Location: "supervisor", ResponseTime: 120})
	tel.ObserveTask("S3", client.Outcome{Success: true, Location: "kitchen", ResponseTime: 80})
	tel.ObserveTask("S3", client.Unavailable("all peers unavailable"))
	tel.ObserveOffload("S3")
	tel.ObserveOffload("S3")

	m := tel.Metrics
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TasksTotal.WithLabelValues("S3", "supervisor", telemetry.ResultSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TasksTotal.WithLabelValues("S3", "none", telemetry.ResultFailure)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.OffloadsTotal.WithLabelValues("S3")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.TaskDuration))
}

func TestIndependentRegistries(t *testing.T) {
	a, b := telemetry.New(), telemetry.New()
	a.SetAdmissionCPU(90)
	b.SetAdmissionCPU(10)

	assert.Equal(t, 90.0, testutil.ToFloat64(a.Metrics.AdmissionCPU))
	assert.Equal(t, 10.0, testutil.ToFloat64(b.Metrics.AdmissionCPU))
}

func TestScenarioGauge(t *testing.T) {
	tel := telemetry.New()
	done := tel.ScenarioStarted("S1")
	assert.Equal(t, 1.0, testutil.ToFloat64(tel.Metrics.ActiveScenario.WithLabelValues("S1")))
	done()
	assert.Equal(t, 0.0, testutil.ToFloat64(tel.Metrics.ActiveScenario.WithLabelValues("S1")))
}

func TestWriteTextfileAndHandler(t *testing.T) {
	tel := telemetry.New()
	tel.ObserveRequest(client.PathTask, 30*time.Millisecond, "ok")

	path := filepath.Join(t.TempDir(), "dispatch_metrics.prom")
	require.NoError(t, tel.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `edgebench_http_request_duration_seconds_count{path="/api/task",result="ok"} 1`)

	rec := httptest.NewRecorder()
	tel.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.True(t, strings.Contains(rec.Body.String(), "edgebench_http_request_duration_seconds"))
}
