package edgesim

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"codeberg.org/mutker/edgebench/internal/client"
	"codeberg.org/mutker/edgebench/internal/logger"
	"codeberg.org/mutker/edgebench/internal/sensor"
	"github.com/gin-gonic/gin"
)

const supervisorName = "supervisor"

// PathRestore brings a failed supervisor back online.
const PathRestore = "/admin/restore"

// Supervisor is the central node. After a simulated failure every API
// endpoint answers 503 until it is restored; /logs stays reachable.
type Supervisor struct {
	*node

	// FailureDuration restores the supervisor automatically after a
	// simulated failure. Zero keeps it offline until Restore.
	FailureDuration time.Duration

	offline  atomic.Bool
	mu       sync.Mutex
	restore  *time.Timer
	readings map[string]sensor.Reading
	received atomic.Int64
}

func NewSupervisor(cfg NodeConfig, log *logger.Logger) *Supervisor {
	return &Supervisor{
		node:     newNode(supervisorName, cfg, log),
		readings: make(map[string]sensor.Reading),
	}
}

// Start runs the background task queue.
func (s *Supervisor) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

func (s *Supervisor) Stop() {
	s.mu.Lock()
	if s.restore != nil {
		s.restore.Stop()
	}
	s.mu.Unlock()
	s.queue.Stop()
}

func (s *Supervisor) Offline() bool { return s.offline.Load() }

// Fail takes the supervisor offline.
func (s *Supervisor) Fail() {
	if s.offline.Swap(true) {
		return
	}
	s.logs.Add("Simulated failure: supervisor offline")

	if s.FailureDuration <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.restore != nil {
		s.restore.Stop()
	}
	s.restore = time.AfterFunc(s.FailureDuration, s.Restore)
}

// Restore brings the supervisor back online.
func (s *Supervisor) Restore() {
	if s.offline.Swap(false) {
		s.logs.Add("Supervisor restored")
	}
}

// Latest returns the most recent reading received for location.
func (s *Supervisor) Latest(location string) (sensor.Reading, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.readings[location]
	return r, ok
}

// Received counts accepted sensor readings.
func (s *Supervisor) Received() int64 { return s.received.Load() }

func (s *Supervisor) Handler() http.Handler {
	router := s.newRouter()

	router.POST(client.PathTask, s.online, s.handleTask)
	router.POST(client.PathSensorData, s.online, s.handleSensorData)
	router.GET(client.PathMetrics, s.online, s.handleMetrics)
	router.GET(client.PathSystemMetrics, s.online, s.handleSystemMetrics)
	router.GET(client.PathPing, s.online, s.handlePing)

	router.POST(client.PathSimulateFailure, s.handleSimulateFailure)
	router.POST(PathRestore, s.handleRestore)

	return router
}

// online aborts with 503 while the supervisor is failed.
func (s *Supervisor) online(c *gin.Context) {
	if s.offline.Load() {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, errorResponse{Error: "supervisor offline"})
		return
	}
	c.Next()
}

func (s *Supervisor) handleSensorData(c *gin.Context) {
	var r sensor.Reading
	if err := c.ShouldBindJSON(&r); err != nil || r.Location == "" {
		s.logs.Add("Error processing sensor data: %v", err)
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid sensor reading"})
		return
	}

	s.received.Add(1)
	s.queue.Add(Job{Name: "store_reading " + r.Location, Run: func() error {
		s.mu.Lock()
		s.readings[r.Location] = r
		s.mu.Unlock()
		return nil
	}})

	c.JSON(http.StatusOK, gin.H{"result": gin.H{"status": "received", "location": r.Location}})
}

func (s *Supervisor) handleMetrics(c *gin.Context) {
	u := s.utilization(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"cpu_percent":        u.CPUPercent,
		"memory_percent":     u.MemoryPercent,
		"network_usage":      u.NetworkUsage,
		"energy_consumption": u.Energy,
		"active_tasks":       s.inflight.Load(),
		"processed_tasks":    s.processed.Load(),
		"timestamp":          time.Now(),
	})
}

func (s *Supervisor) handleSystemMetrics(c *gin.Context) {
	u := s.utilization(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"cpu_percent":    u.CPUPercent,
		"memory_percent": u.MemoryPercent,
	})
}

func (s *Supervisor) handleSimulateFailure(c *gin.Context) {
	s.Fail()
	c.JSON(http.StatusOK, gin.H{"status": "offline", "restore_after_s": s.FailureDuration.Seconds()})
}

func (s *Supervisor) handleRestore(c *gin.Context) {
	s.Restore()
	c.JSON(http.StatusOK, gin.H{"status": "online"})
}
