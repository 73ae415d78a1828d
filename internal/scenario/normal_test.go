package scenario_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"codeberg.org/mutker/edgebench/internal/client"
	"codeberg.org/mutker/edgebench/internal/errors"
	"codeberg.org/mutker/edgebench/internal/scenario"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalAlwaysOK(t *testing.T) {
	if testing.Short() {
		t.Skip("runs for ten seconds")
	}

	sup := newNode(t, map[string]http.HandlerFunc{
		client.PathTask:       respond(`{"status":"completed"}`),
		client.PathMetrics:    respond(`{"cpu": 35, "memory": 48, "network": 220, "energy": 9}`),
		client.PathSensorData: respond(`{}`),
	})

	res, err := scenario.NewNormal(deps(sup.url())).Run(context.Background(), 10*time.Second)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, res.TasksCompleted, 1)
	assert.Equal(t, 0, res.TasksFailed)
	assert.Equal(t, 1.0, res.SuccessRate)
	assert.Len(t, res.ResponseTimes, res.TasksCompleted)
	assert.Len(t, res.AccuracyScores, res.TasksCompleted)
	for _, a := range res.AccuracyScores {
		assert.GreaterOrEqual(t, a, 0.0)
		assert.LessOrEqual(t, a, 100.0)
	}
	for _, cpu := range res.CPUUsage {
		assert.Equal(t, 35.0, cpu)
	}
	assert.Equal(t, 9.0*float64(len(res.EnergyConsumption)), res.TotalEnergy)
	assert.Equal(t, "S1_Normal_Operation", res.Scenario)
	assert.NotEmpty(t, res.RunID)
}

func TestNormalCountsFailures(t *testing.T) {
	sup := newNode(t, map[string]http.HandlerFunc{
		client.PathTask: fail(http.StatusInternalServerError),
	})

	n := scenario.NewNormal(deps(sup.url()))
	n.Pacing = scenario.Pacing{Min: 10 * time.Millisecond, Max: 20 * time.Millisecond}

	res, err := n.Run(context.Background(), 300*time.Millisecond)
	require.NoError(t, err)

	assert.Equal(t, 0, res.TasksCompleted)
	assert.GreaterOrEqual(t, res.TasksFailed, 1)
	assert.Equal(t, 0.0, res.SuccessRate)
	assert.Empty(t, res.ResponseTimes)

	// /api/metrics is missing, so every sample is synthetic
	for _, cpu := range res.CPUUsage {
		assert.GreaterOrEqual(t, cpu, 20.0)
		assert.LessOrEqual(t, cpu, 50.0)
	}
}

func TestNormalStreamsSensorData(t *testing.T) {
	sup := newNode(t, map[string]http.HandlerFunc{
		client.PathTask:       respond(`{}`),
		client.PathSensorData: respond(`{}`),
	})

	d := deps(sup.url())
	d.Sink = &countingSink{}
	n := scenario.NewNormal(d)
	n.Pacing = scenario.Pacing{Min: 50 * time.Millisecond, Max: 50 * time.Millisecond}

	_, err := n.Run(context.Background(), 500*time.Millisecond)
	require.NoError(t, err)

	assert.Equal(t, 3, d.Sink.(*countingSink).distinct())
}

func TestNormalInvalidDuration(t *testing.T) {
	_, err := scenario.NewNormal(deps("http://127.0.0.1:1")).Run(context.Background(), 0)
	assert.True(t, errors.HasCode(err, scenario.ErrInvalidDuration))
}

func TestNormalCancelled(t *testing.T) {
	sup := newNode(t, map[string]http.HandlerFunc{client.PathTask: respond(`{}`)})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	res, err := scenario.NewNormal(deps(sup.url())).Run(ctx, time.Minute)
	assert.True(t, errors.HasCode(err, scenario.ErrCancelled))
	assert.Equal(t, 1, res.TasksCompleted+res.TasksFailed)
}
