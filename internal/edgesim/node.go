// Package edgesim simulates an edge deployment: one supervisor and a set
// of location peers speaking the HTTP/JSON API the harness drives.
package edgesim

import (
	"context"
	"math/rand"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"codeberg.org/mutker/edgebench/internal/logger"
	"codeberg.org/mutker/edgebench/internal/telemetry"
	"github.com/gin-gonic/gin"
)

// Processing shapes the simulated execution time of a task.
type Processing struct {
	Min time.Duration
	Max time.Duration
	// PerTask is added for every other task in flight on the node.
	PerTask time.Duration
}

func DefaultProcessing() Processing {
	return Processing{Min: 50 * time.Millisecond, Max: 200 * time.Millisecond, PerTask: 25 * time.Millisecond}
}

var complexityFactor = map[string]float64{
	"simple":  0.5,
	"low":     0.5,
	"medium":  1,
	"complex": 2,
	"high":    2,
}

// NodeConfig is shared by the supervisor and peers.
type NodeConfig struct {
	Processing  Processing
	Load        LoadModel
	Telemetry   *telemetry.Telemetry
	LogCapacity int
	Seed        int64
}

type taskRequest struct {
	ID         string `json:"id"`
	Type       string `json:"type" binding:"required"`
	Location   string `json:"location"`
	Priority   string `json:"priority"`
	Complexity string `json:"complexity"`
	DataSize   int    `json:"data_size"`
}

type taskResponse struct {
	Status         string    `json:"status"`
	TaskID         string    `json:"task_id"`
	TaskType       string    `json:"task_type"`
	Location       string    `json:"location"`
	ProcessedBy    string    `json:"processed_by"`
	ProcessingTime float64   `json:"processing_time_ms"`
	Timestamp      time.Time `json:"timestamp"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type node struct {
	name       string
	processing Processing
	load       LoadModel
	telemetry  *telemetry.Telemetry
	logs       *LogManager
	queue      *TaskQueue
	log        *logger.Logger
	inflight   atomic.Int64
	processed  atomic.Int64

	mu  sync.Mutex
	rng *rand.Rand
}

func newNode(name string, cfg NodeConfig, log *logger.Logger) *node {
	if log == nil {
		log = logger.Nop()
	}
	log = log.With(name)

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if cfg.Load == nil {
		cfg.Load = NewSyntheticLoad(seed)
	}

	logs := NewLogManager(cfg.LogCapacity, log)
	return &node{
		name:       name,
		processing: cfg.Processing,
		load:       cfg.Load,
		telemetry:  cfg.Telemetry,
		logs:       logs,
		queue:      NewTaskQueue(logs),
		log:        log,
		rng:        rand.New(rand.NewSource(seed)),
	}
}

// Logs exposes the node's log ring.
func (n *node) Logs() *LogManager { return n.logs }

func (n *node) utilization(ctx context.Context) Utilization {
	return n.load.Utilization(ctx, int(n.inflight.Load()))
}

// execute simulates running task and blocks for its processing time.
func (n *node) execute(ctx context.Context, task taskRequest) (taskResponse, error) {
	others := n.inflight.Add(1) - 1
	defer n.inflight.Add(-1)

	delay := n.delay(task.Complexity, int(others))
	start := time.Now()

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return taskResponse{}, ctx.Err()
	case <-timer.C:
	}

	n.processed.Add(1)
	return taskResponse{
		Status:         "completed",
		TaskID:         task.ID,
		TaskType:       task.Type,
		Location:       task.Location,
		ProcessedBy:    n.name,
		ProcessingTime: float64(time.Since(start).Microseconds()) / 1000,
		Timestamp:      time.Now(),
	}, nil
}

func (n *node) delay(complexity string, others int) time.Duration {
	p := n.processing
	d := p.Min
	if p.Max > p.Min {
		n.mu.Lock()
		d += time.Duration(n.rng.Int63n(int64(p.Max - p.Min)))
		n.mu.Unlock()
	}
	if f, ok := complexityFactor[complexity]; ok {
		d = time.Duration(float64(d) * f)
	}
	return d + time.Duration(others)*p.PerTask
}

// handleTask binds a task, executes it and writes the JSON response.
func (n *node) handleTask(c *gin.Context) {
	var task taskRequest
	if err := c.ShouldBindJSON(&task); err != nil {
		n.logs.Add("Rejected task: %v", err)
		c.JSON(http.StatusBadRequest, errorResponse{Error: "missing task type"})
		return
	}

	resp, err := n.execute(c.Request.Context(), task)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
		return
	}

	n.queue.Add(Job{Name: "log_task " + task.ID, Run: func() error {
		n.logs.Add("Task %s (%s) completed in %.1fms", task.ID, task.Type, resp.ProcessingTime)
		return nil
	}})
	c.JSON(http.StatusOK, resp)
}

func (n *node) handleLogs(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"logs": n.logs.Lines()})
}

func (n *node) handlePing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "location": n.name, "timestamp": time.Now()})
}

// newRouter builds an engine with recovery, request logging and, when
// telemetry is configured, a Prometheus endpoint.
func (n *node) newRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(n.requestLogger())

	if n.telemetry != nil {
		router.GET("/metrics", gin.WrapH(n.telemetry.Handler()))
	}
	router.GET("/logs", n.handleLogs)
	return router
}

func (n *node) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		elapsed := time.Since(start)
		status := c.Writer.Status()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		if n.telemetry != nil {
			n.telemetry.ObserveRequest(path, elapsed, strconv.Itoa(status))
		}

		n.log.Debug().
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", status).
			Dur("duration", elapsed).
			Msg("HTTP request")
	}
}
