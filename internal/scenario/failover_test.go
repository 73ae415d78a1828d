package scenario_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"codeberg.org/mutker/edgebench/internal/client"
	"codeberg.org/mutker/edgebench/internal/scenario"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type deployment struct {
	supervisor *node
	peers      map[string]*node
	order      []scenario.Peer
}

// newDeployment starts a supervisor and three peers. Peers report the
// supervisor as online until online is false; kitchen wins elections.
func newDeployment(t *testing.T, online bool) *deployment {
	t.Helper()

	d := &deployment{
		supervisor: newNode(t, map[string]http.HandlerFunc{
			client.PathTask:            respond(`{"status":"completed"}`),
			client.PathSimulateFailure: respond(`{"status":"offline"}`),
		}),
		peers: make(map[string]*node),
	}

	statusBody := `{"supervisor_online": false}`
	if online {
		statusBody = `{"supervisor_online": true}`
	}

	for _, loc := range []string{"office", "kitchen", "hallway"} {
		leader := loc == "kitchen"
		election := `{"is_leader": false, "location": "` + loc + `"}`
		if leader {
			election = `{"is_leader": true, "location": "kitchen"}`
		}

		d.peers[loc] = newNode(t, map[string]http.HandlerFunc{
			client.PathSupervisorStatus: respond(statusBody),
			client.PathLeaderElection:   respond(election),
			client.PathStatus:           respond(election),
			client.PathCoordinateTask:   respond(`{"status":"coordinated"}`),
		})
		d.order = append(d.order, scenario.Peer{Location: loc, Endpoint: d.peers[loc].url()})
	}

	return d
}

func fastFailover(d *deployment) *scenario.Failover {
	f := scenario.NewFailover(deps(d.supervisor.url(), d.order...))
	f.BeforePacing = scenario.Pacing{Min: 20 * time.Millisecond, Max: 40 * time.Millisecond}
	f.AfterPacing = scenario.Pacing{Min: 20 * time.Millisecond, Max: 40 * time.Millisecond}
	f.PollInterval = 10 * time.Millisecond
	return f
}

func TestFailoverSkipsRecoveryWhenTimeIsShort(t *testing.T) {
	d := newDeployment(t, false)

	res, err := fastFailover(d).Run(context.Background(), time.Second)
	require.NoError(t, err)

	fo := res.Failover
	require.NotNil(t, fo)
	assert.True(t, fo.RecoverySkipped)
	assert.Equal(t, 0, fo.TasksAfterRecovery)
	assert.Empty(t, fo.ResponseTimesAfter)
	assert.Equal(t, 0.0, fo.PerformanceDegradation)
	assert.Equal(t, 0.0, fo.RecoverySuccessRate)

	assert.GreaterOrEqual(t, fo.TasksBeforeFailure, 1)
	assert.True(t, fo.DetectionReported)
	assert.Equal(t, "office", fo.DetectedBy)
	assert.Equal(t, "kitchen", fo.Leader)
	assert.InDelta(t, fo.FailureDetectionTime+fo.LeaderElectionTime, fo.Downtime, 1e-9)
	assert.Equal(t, 1, d.supervisor.count(client.PathSimulateFailure))
	assert.Equal(t, 0, d.peers["kitchen"].count(client.PathCoordinateTask))
}

func TestFailoverRecoversOnLeader(t *testing.T) {
	d := newDeployment(t, false)
	f := fastFailover(d)
	f.MinRecoveryWindow = 200 * time.Millisecond

	res, err := f.Run(context.Background(), 2*time.Second)
	require.NoError(t, err)

	fo := res.Failover
	assert.False(t, fo.RecoverySkipped)
	assert.GreaterOrEqual(t, fo.TasksAfterRecovery, 1)
	assert.Equal(t, fo.TasksAfterRecovery, d.peers["kitchen"].count(client.PathCoordinateTask))
	assert.Equal(t, 0, d.peers["office"].count(client.PathCoordinateTask))

	for _, a := range fo.AccuracyAfter {
		assert.GreaterOrEqual(t, a, 75.0)
		assert.LessOrEqual(t, a, 90.0)
	}
	for _, a := range fo.AccuracyBefore {
		assert.GreaterOrEqual(t, a, 80.0)
		assert.LessOrEqual(t, a, 95.0)
	}

	assert.Equal(t, fo.TasksBeforeFailure+fo.TasksAfterRecovery, res.TasksCompleted)
	assert.Len(t, res.ResponseTimes, res.TasksCompleted)
	assert.InDelta(t, float64(fo.TasksAfterRecovery)/float64(fo.TasksBeforeFailure), fo.RecoverySuccessRate, 1e-9)
}

func TestFailoverDetectionFallback(t *testing.T) {
	d := newDeployment(t, true)
	f := fastFailover(d)
	f.DetectionWindow = 100 * time.Millisecond

	res, err := f.Run(context.Background(), 500*time.Millisecond)
	require.NoError(t, err)

	fo := res.Failover
	assert.False(t, fo.DetectionReported)
	assert.Equal(t, 30.0, fo.FailureDetectionTime)
	assert.GreaterOrEqual(t, fo.Downtime, 30.0)
	assert.True(t, fo.RecoverySkipped)
}
