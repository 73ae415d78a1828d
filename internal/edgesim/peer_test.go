package edgesim_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"codeberg.org/mutker/edgebench/internal/client"
	"codeberg.org/mutker/edgebench/internal/edgesim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// lateHandler lets a test server start before its handler exists.
type lateHandler struct{ h http.Handler }

func (l *lateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) { l.h.ServeHTTP(w, r) }

type cluster struct {
	peers   []*edgesim.Peer
	servers []*httptest.Server
}

func startCluster(t *testing.T, supervisor string, locations ...string) *cluster {
	t.Helper()

	cl := &cluster{}
	handlers := make([]*lateHandler, len(locations))
	members := make([]edgesim.Member, len(locations))
	for i, loc := range locations {
		handlers[i] = &lateHandler{}
		srv := httptest.NewServer(handlers[i])
		t.Cleanup(srv.Close)
		cl.servers = append(cl.servers, srv)
		members[i] = edgesim.Member{Location: loc, Endpoint: srv.URL}
	}

	for i, loc := range locations {
		p, err := edgesim.NewPeer(edgesim.PeerConfig{
			NodeConfig:        edgesim.NodeConfig{Seed: int64(i + 1)},
			Location:          loc,
			Supervisor:        supervisor,
			Members:           members,
			HeartbeatInterval: 20 * time.Millisecond,
		}, nil)
		require.NoError(t, err)
		handlers[i].h = p.Handler()
		p.Start(context.Background())
		t.Cleanup(p.Stop)
		cl.peers = append(cl.peers, p)
	}
	return cl
}

func TestPeerDetectsSupervisorFailure(t *testing.T) {
	sup, supURL := startSupervisor(t, edgesim.NodeConfig{Seed: 1})
	cl := startCluster(t, supURL, "office", "kitchen")
	c := client.New()

	online, err := c.SupervisorStatus(context.Background(), cl.servers[0].URL)
	require.NoError(t, err)
	assert.True(t, online)

	sup.Fail()
	assert.Eventually(t, func() bool {
		online, err := c.SupervisorStatus(context.Background(), cl.servers[1].URL)
		return err == nil && !online
	}, 2*time.Second, 10*time.Millisecond)

	sup.Restore()
	assert.Eventually(t, cl.peers[1].SupervisorOnline, 2*time.Second, 10*time.Millisecond)
}

func TestElectionPicksFirstReachableMember(t *testing.T) {
	cl := startCluster(t, "", "office", "kitchen", "hallway")
	c := client.New()
	ctx := context.Background()

	e, err := c.LeaderElection(ctx, cl.servers[2].URL, "hallway")
	require.NoError(t, err)
	assert.False(t, e.IsLeader)
	assert.Equal(t, "office", e.Location)

	e, err = c.LeaderElection(ctx, cl.servers[0].URL, "office")
	require.NoError(t, err)
	assert.True(t, e.IsLeader)

	status, err := c.Status(ctx, cl.servers[0].URL)
	require.NoError(t, err)
	assert.True(t, status.IsLeader)
	assert.Equal(t, "office", status.Location)
}

func TestElectionSkipsUnreachableMember(t *testing.T) {
	cl := startCluster(t, "", "office", "kitchen", "hallway")
	cl.servers[0].Close()
	c := client.New()

	e, err := c.LeaderElection(context.Background(), cl.servers[1].URL, "kitchen")
	require.NoError(t, err)
	assert.True(t, e.IsLeader)
	assert.Equal(t, "kitchen", e.Location)
	assert.True(t, cl.peers[1].IsLeader())
}

func TestCoordinateTaskRequiresLeadership(t *testing.T) {
	cl := startCluster(t, "", "office", "kitchen")
	c := client.New()
	ctx := context.Background()
	task := map[string]any{"id": "c-1", "type": "environmental_analysis", "location": "kitchen"}

	out := c.Dispatch(ctx, cl.servers[0].URL, client.PathCoordinateTask, task, time.Second)
	require.NotNil(t, out.Failure)
	assert.Equal(t, http.StatusConflict, out.Failure.StatusCode)

	cl.peers[0].Elect(ctx)
	out = c.Dispatch(ctx, cl.servers[0].URL, client.PathCoordinateTask, task, time.Second)
	assert.True(t, out.Success)
}

func TestPeerProcessTaskAndMetrics(t *testing.T) {
	cl := startCluster(t, "", "hallway")
	c := client.New()
	ctx := context.Background()

	out := c.Dispatch(ctx, cl.servers[0].URL, client.PathProcessTask,
		map[string]any{"id": "p-1", "type": "ml_inference", "complexity": "complex"}, time.Second)
	require.True(t, out.Success, "failure: %v", out.Failure)

	raw, err := c.RawMetrics(ctx, cl.servers[0].URL)
	require.NoError(t, err)
	assert.Equal(t, "online", raw["status"])
	assert.Equal(t, "hallway", raw["location"])

	m, err := c.Metrics(ctx, cl.servers[0].URL)
	require.NoError(t, err)
	assert.Greater(t, m.CPUPercent, 0.0)

	_, err = c.Ping(ctx, cl.servers[0].URL)
	assert.NoError(t, err)
}

func TestNewPeerRequiresLocation(t *testing.T) {
	_, err := edgesim.NewPeer(edgesim.PeerConfig{}, nil)
	assert.Error(t, err)
}
