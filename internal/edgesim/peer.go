package edgesim

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"codeberg.org/mutker/edgebench/internal/client"
	"codeberg.org/mutker/edgebench/internal/errors"
	"codeberg.org/mutker/edgebench/internal/logger"
	"github.com/gin-gonic/gin"
)

const (
	DefaultHeartbeatInterval = 2 * time.Second
	DefaultHeartbeatMisses   = 2
)

// Member is one peer of the deployment as every other peer knows it.
type Member struct {
	Location string
	Endpoint string
}

type PeerConfig struct {
	NodeConfig
	Location   string
	Supervisor string
	// Members lists every peer, this one included, in election order.
	Members           []Member
	HeartbeatInterval time.Duration
	// HeartbeatMisses consecutive failed pings mark the supervisor offline.
	HeartbeatMisses int
	Client          *client.Client
}

// Peer is an edge node at one location. It watches the supervisor with a
// heartbeat and takes part in leader election once the supervisor is gone.
type Peer struct {
	*node
	cfg PeerConfig

	supervisorOnline atomic.Bool
	misses           int

	mu     sync.RWMutex
	leader string

	hbMu   sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewPeer(cfg PeerConfig, log *logger.Logger) (*Peer, error) {
	if cfg.Location == "" {
		return nil, errors.New().WithMessage(ErrInvalidPeer, "peer location is empty")
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if cfg.HeartbeatMisses <= 0 {
		cfg.HeartbeatMisses = DefaultHeartbeatMisses
	}
	if cfg.Client == nil {
		cfg.Client = client.New()
	}

	p := &Peer{node: newNode(cfg.Location, cfg.NodeConfig, log), cfg: cfg}
	p.supervisorOnline.Store(true)
	return p, nil
}

func (p *Peer) Location() string { return p.cfg.Location }

func (p *Peer) SupervisorOnline() bool { return p.supervisorOnline.Load() }

func (p *Peer) IsLeader() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.leader == p.cfg.Location
}

// Leader returns the elected location, empty before any election.
func (p *Peer) Leader() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.leader
}

// Start runs the task queue and the supervisor heartbeat.
func (p *Peer) Start(ctx context.Context) {
	p.hbMu.Lock()
	defer p.hbMu.Unlock()
	if p.cancel != nil {
		return
	}

	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})
	p.queue.Start(ctx)

	if p.cfg.Supervisor == "" {
		close(p.done)
		return
	}
	go p.heartbeat(ctx, p.done)
}

func (p *Peer) Stop() {
	p.hbMu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel = nil
	p.hbMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	p.queue.Stop()
}

func (p *Peer) heartbeat(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.checkSupervisor(ctx)
		}
	}
}

func (p *Peer) checkSupervisor(ctx context.Context) {
	_, err := p.cfg.Client.Ping(ctx, p.cfg.Supervisor)
	if err == nil {
		p.misses = 0
		if !p.supervisorOnline.Swap(true) {
			p.logs.Add("Supervisor back online")
			p.setLeader("")
		}
		return
	}

	p.misses++
	if p.misses >= p.cfg.HeartbeatMisses && p.supervisorOnline.Swap(false) {
		p.logs.Add("Supervisor unreachable after %d heartbeats: %v", p.misses, err)
	}
}

// Elect picks the first reachable member in configured order. The peer
// itself is always reachable.
func (p *Peer) Elect(ctx context.Context) string {
	leader := ""
	for _, m := range p.cfg.Members {
		if m.Location == p.cfg.Location {
			leader = m.Location
			break
		}
		if _, err := p.cfg.Client.Ping(ctx, m.Endpoint); err == nil {
			leader = m.Location
			break
		}
	}
	if leader == "" {
		leader = p.cfg.Location
	}

	p.setLeader(leader)
	p.logs.Add("Leader elected: %s", leader)
	return leader
}

func (p *Peer) setLeader(location string) {
	p.mu.Lock()
	p.leader = location
	p.mu.Unlock()
}

func (p *Peer) Handler() http.Handler {
	router := p.newRouter()

	router.GET(client.PathSupervisorStatus, p.handleSupervisorStatus)
	router.POST(client.PathLeaderElection, p.handleElection)
	router.GET(client.PathStatus, p.handleStatus)
	router.POST(client.PathCoordinateTask, p.handleCoordinateTask)
	router.POST(client.PathProcessTask, p.handleTask)
	router.GET(client.PathMetrics, p.handleMetrics)
	router.GET(client.PathPing, p.handlePing)

	return router
}

func (p *Peer) handleSupervisorStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"supervisor_online": p.supervisorOnline.Load(), "location": p.cfg.Location})
}

type electionRequest struct {
	Location  string    `json:"location"`
	Timestamp time.Time `json:"timestamp"`
}

func (p *Peer) handleElection(c *gin.Context) {
	var req electionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	leader := p.Elect(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"is_leader": leader == p.cfg.Location,
		"location":  leader,
		"requested": req.Location,
	})
}

func (p *Peer) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"is_leader":         p.IsLeader(),
		"location":          p.cfg.Location,
		"leader":            p.Leader(),
		"supervisor_online": p.supervisorOnline.Load(),
	})
}

// handleCoordinateTask accepts tasks only on the elected leader.
func (p *Peer) handleCoordinateTask(c *gin.Context) {
	if !p.IsLeader() {
		c.JSON(http.StatusConflict, gin.H{"error": "not the leader", "leader": p.Leader()})
		return
	}
	p.handleTask(c)
}

func (p *Peer) handleMetrics(c *gin.Context) {
	u := p.utilization(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"cpu":      u.CPUPercent,
		"memory":   u.MemoryPercent,
		"network":  u.NetworkUsage,
		"energy":   u.Energy,
		"status":   "online",
		"location": p.cfg.Location,
	})
}
