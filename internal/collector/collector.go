// Package collector keeps bounded system metric histories and task
// execution counters for a harness run.
package collector

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"codeberg.org/mutker/edgebench/internal/errors"
	"codeberg.org/mutker/edgebench/internal/hostprobe"
	"codeberg.org/mutker/edgebench/internal/logger"
	"codeberg.org/mutker/edgebench/internal/ring"
	"codeberg.org/mutker/edgebench/internal/store"
)

const (
	DefaultCapacity = 1000
	DefaultInterval = 5 * time.Second

	taskLogFile     = "task_executions.jsonl"
	exportFile      = "metrics_export.json"
	stopTimeout     = 10 * time.Second
	defaultDirPerm  = 0o755
	defaultFilePerm = 0o644
)

type Collector struct {
	mu       sync.Mutex
	dir      string
	probe    hostprobe.Probe
	store    store.Store
	runID    string
	log      *logger.Logger
	capacity int

	history       map[string]*ring.Ring[Point]
	current       *hostprobe.Sample
	attempts      map[string]int
	errorCounts   map[string]int
	responseTimes map[string][]float64

	cancel context.CancelFunc
	done   chan struct{}
}

type Option func(*Collector)

// WithStore mirrors task records and samples into s.
func WithStore(s store.Store) Option {
	return func(c *Collector) { c.store = s }
}

// WithCapacity overrides the per-metric history capacity.
func WithCapacity(n int) Option {
	return func(c *Collector) { c.capacity = n }
}

// WithRunID tags mirrored records with a run identifier.
func WithRunID(id string) Option {
	return func(c *Collector) { c.runID = id }
}

// New creates a collector writing its logs under dir.
func New(dir string, probe hostprobe.Probe, log *logger.Logger, opts ...Option) (*Collector, error) {
	if err := os.MkdirAll(dir, defaultDirPerm); err != nil {
		return nil, errors.New().Wrap(errors.ErrInitFailed, err)
	}

	c := &Collector{
		dir:           dir,
		probe:         probe,
		log:           log,
		capacity:      DefaultCapacity,
		history:       make(map[string]*ring.Ring[Point]),
		attempts:      make(map[string]int),
		errorCounts:   make(map[string]int),
		responseTimes: make(map[string][]float64),
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Start spawns the sampler. Calling Start while it runs does nothing.
func (c *Collector) Start(interval time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		return
	}
	if interval <= 0 {
		interval = DefaultInterval
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})

	go c.run(ctx, interval, c.done)

	c.log.Debug().Dur("interval", interval).Msg("Metrics collection started")
}

// Stop signals the sampler and waits for it to exit.
func (c *Collector) Stop() error {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	select {
	case <-done:
		c.log.Debug().Msg("Metrics collection stopped")
		return nil
	case <-time.After(stopTimeout):
		return errors.New().New(ErrStopTimeout)
	}
}

func (c *Collector) run(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		c.sampleOnce(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (c *Collector) sampleOnce(ctx context.Context) {
	s, err := c.probe.Sample(ctx)
	if err != nil {
		if ctx.Err() == nil {
			c.log.Warn().Err(errors.New().Wrap(ErrCollectMetrics, err)).Msg("System sample failed")
		}
		return
	}
	c.AddSample(s)
}

// AddSample fans a sample out into the per-metric histories.
func (c *Collector) AddSample(s hostprobe.Sample) {
	values := map[string]float64{
		KeyCPU:          s.CPUPercent,
		KeyMemory:       s.MemoryPercent,
		KeyDisk:         s.DiskUsagePercent,
		KeyBytesSent:    float64(s.NetworkIO.BytesSent),
		KeyBytesRecv:    float64(s.NetworkIO.BytesRecv),
		KeyPacketsSent:  float64(s.NetworkIO.PacketsSent),
		KeyPacketsRecv:  float64(s.NetworkIO.PacketsRecv),
		KeyProcessCount: float64(s.ProcessCount),
	}
	if s.GPU != nil {
		values[KeyGPU] = s.GPU.Percent
		values[KeyGPUTemperature] = s.GPU.Temperature
	}

	c.mu.Lock()
	for key, v := range values {
		c.push(key, Point{Timestamp: s.Timestamp, Value: v})
	}
	c.current = &s
	c.mu.Unlock()

	if c.store != nil {
		err := c.store.RecordSample(store.SystemSample{
			Timestamp:     s.Timestamp,
			CPUPercent:    s.CPUPercent,
			MemoryPercent: s.MemoryPercent,
			DiskPercent:   s.DiskUsagePercent,
			ProcessCount:  s.ProcessCount,
		})
		if err != nil {
			c.log.Warn().Err(err).Msg("Failed to mirror sample")
		}
	}
}

func (c *Collector) push(key string, p Point) {
	r, ok := c.history[key]
	if !ok {
		r = ring.New[Point](c.capacity)
		c.history[key] = r
	}
	r.Push(p)
}

// Current returns the latest system sample.
func (c *Collector) Current() (hostprobe.Sample, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil {
		return hostprobe.Sample{}, false
	}
	return *c.current, true
}

// History returns a copy of one metric series, oldest first.
func (c *Collector) History(key string) []Point {
	c.mu.Lock()
	defer c.mu.Unlock()

	r, ok := c.history[key]
	if !ok {
		return nil
	}
	return r.Items()
}

// RecordTaskExecution counts one task attempt under location_taskType and
// appends it to task_executions.jsonl.
func (c *Collector) RecordTaskExecution(taskType string, responseTime float64, success bool, location string) error {
	key := location + "_" + taskType

	c.mu.Lock()
	defer c.mu.Unlock()

	c.attempts[key]++
	if success {
		c.responseTimes[key] = append(c.responseTimes[key], responseTime)
	} else {
		c.errorCounts[key]++
	}

	rec := TaskRecord{
		Timestamp:         time.Now(),
		TaskType:          taskType,
		ResponseTime:      responseTime,
		Success:           success,
		ExecutionLocation: location,
	}
	if c.current != nil {
		rec.SystemCPU = c.current.CPUPercent
		rec.SystemMemory = c.current.MemoryPercent
	}

	if c.store != nil {
		err := c.store.RecordTask(store.TaskExecution{
			Timestamp:    rec.Timestamp,
			RunID:        c.runID,
			TaskType:     taskType,
			Location:     location,
			ResponseTime: responseTime,
			Success:      success,
			SystemCPU:    rec.SystemCPU,
			SystemMemory: rec.SystemMemory,
		})
		if err != nil {
			c.log.Warn().Err(err).Msg("Failed to mirror task execution")
		}
	}

	return c.appendLine(taskLogFile, rec)
}

// RecordScenarioMetrics appends metrics to <scenarioID>_metrics.jsonl.
func (c *Collector) RecordScenarioMetrics(scenarioID string, metrics any) error {
	rec := ScenarioRecord{
		Timestamp:  time.Now(),
		ScenarioID: scenarioID,
		Metrics:    metrics,
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.store != nil {
		payload, err := json.Marshal(metrics)
		if err == nil {
			err = c.store.RecordScenario(store.ScenarioMetrics{
				Timestamp:  rec.Timestamp,
				ScenarioID: scenarioID,
				Payload:    string(payload),
			})
		}
		if err != nil {
			c.log.Warn().Err(err).Msg("Failed to mirror scenario metrics")
		}
	}

	return c.appendLine(scenarioID+"_metrics.jsonl", rec)
}

func (c *Collector) appendLine(name string, v any) error {
	errFactory := errors.New()

	line, err := json.Marshal(v)
	if err != nil {
		return errFactory.Wrap(ErrAppendRecord, err)
	}

	f, err := os.OpenFile(filepath.Join(c.dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, defaultFilePerm)
	if err != nil {
		return errFactory.Wrap(ErrAppendRecord, err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return errFactory.Wrap(ErrAppendRecord, err)
	}
	return nil
}

// PerformanceSummary folds the counters and histories into aggregates.
func (c *Collector) PerformanceSummary() PerformanceSummary {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.summary()
}

func (c *Collector) summary() PerformanceSummary {
	s := PerformanceSummary{
		TaskSummary:          make(map[string]int, len(c.attempts)),
		AverageResponseTimes: make(map[string]Stats),
		ErrorRates:           make(map[string]float64),
		SystemUtilization:    make(map[string]Stats),
	}

	for key, n := range c.attempts {
		s.TaskSummary[key] = n
	}

	for key, times := range c.responseTimes {
		if len(times) == 0 {
			continue
		}
		st := fold(times)
		st.Count = len(times)
		s.AverageResponseTimes[key] = st
	}

	for key, errs := range c.errorCounts {
		if total := c.attempts[key]; total > 0 {
			s.ErrorRates[key] = float64(errs) / float64(total)
		}
	}

	for name, key := range map[string]string{"cpu": KeyCPU, "memory": KeyMemory} {
		r, ok := c.history[key]
		if !ok || r.Len() == 0 {
			continue
		}
		points := r.Items()
		values := make([]float64, len(points))
		for i, p := range points {
			values[i] = p.Value
		}
		s.SystemUtilization[name] = fold(values)
	}

	return s
}

// Export writes metrics_export.json and returns its path.
func (c *Collector) Export() (string, error) {
	errFactory := errors.New()

	c.mu.Lock()
	export := Export{
		ExportTimestamp:      time.Now(),
		TaskCounters:         make(map[string]int, len(c.attempts)),
		ResponseTimes:        make(map[string][]float64, len(c.responseTimes)),
		ErrorCounts:          make(map[string]int, len(c.errorCounts)),
		SystemMetricsHistory: make(map[string][]Point, len(c.history)),
		PerformanceSummary:   c.summary(),
	}
	for k, v := range c.attempts {
		export.TaskCounters[k] = v
	}
	for k, v := range c.responseTimes {
		export.ResponseTimes[k] = append([]float64(nil), v...)
	}
	for k, v := range c.errorCounts {
		export.ErrorCounts[k] = v
	}
	for k, r := range c.history {
		export.SystemMetricsHistory[k] = r.Items()
	}
	c.mu.Unlock()

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return "", errFactory.Wrap(ErrExportMetrics, err)
	}

	path := filepath.Join(c.dir, exportFile)
	if err := os.WriteFile(path, data, defaultFilePerm); err != nil {
		return "", errFactory.Wrap(ErrExportMetrics, err)
	}

	c.log.Info().Str("path", path).Msg("Metrics exported")

	return path, nil
}

func fold(values []float64) Stats {
	st := Stats{Min: values[0], Max: values[0]}
	sum := 0.0
	for _, v := range values {
		sum += v
		if v < st.Min {
			st.Min = v
		}
		if v > st.Max {
			st.Max = v
		}
	}
	st.Mean = sum / float64(len(values))
	return st
}
