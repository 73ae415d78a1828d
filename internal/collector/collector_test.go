package collector_test

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"codeberg.org/mutker/edgebench/internal/collector"
	"codeberg.org/mutker/edgebench/internal/hostprobe"
	"codeberg.org/mutker/edgebench/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProbe struct {
	mu    sync.Mutex
	calls int
}

func (p *fakeProbe) Sample(_ context.Context) (hostprobe.Sample, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return hostprobe.Sample{
		Timestamp:     time.Now(),
		CPUPercent:    float64(p.calls),
		MemoryPercent: 50,
	}, nil
}

func (p *fakeProbe) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func newCollector(t *testing.T, opts ...collector.Option) (*collector.Collector, string) {
	t.Helper()
	dir := t.TempDir()
	c, err := collector.New(dir, &fakeProbe{}, logger.Nop(), opts...)
	require.NoError(t, err)
	return c, dir
}

func TestEmptySummary(t *testing.T) {
	c, _ := newCollector(t)

	s := c.PerformanceSummary()
	assert.Empty(t, s.TaskSummary)
	assert.Empty(t, s.AverageResponseTimes)
	assert.Empty(t, s.ErrorRates)
	assert.Empty(t, s.SystemUtilization)
}

func TestHistoryEvictsOldestFirst(t *testing.T) {
	c, _ := newCollector(t)
	base := time.Unix(1_700_000_000, 0)

	for i := 0; i < 2500; i++ {
		c.AddSample(hostprobe.Sample{
			Timestamp:  base.Add(time.Duration(i) * time.Second),
			CPUPercent: float64(i),
			NetworkIO:  hostprobe.NetIO{BytesSent: uint64(i)},
		})
	}

	for _, key := range []string{collector.KeyCPU, collector.KeyBytesSent, collector.KeyMemory} {
		points := c.History(key)
		require.Len(t, points, collector.DefaultCapacity, key)
	}

	cpu := c.History(collector.KeyCPU)
	for i, p := range cpu {
		assert.Equal(t, float64(1500+i), p.Value)
		assert.True(t, p.Timestamp.Equal(base.Add(time.Duration(1500+i)*time.Second)))
	}
	assert.Nil(t, c.History(collector.KeyGPU))
}

func TestRecordTaskExecution(t *testing.T) {
	c, dir := newCollector(t)
	c.AddSample(hostprobe.Sample{Timestamp: time.Now(), CPUPercent: 42, MemoryPercent: 61})

	require.NoError(t, c.RecordTaskExecution("anomaly_detection", 100, true, "office"))
	require.NoError(t, c.RecordTaskExecution("anomaly_detection", 300, true, "office"))
	require.NoError(t, c.RecordTaskExecution("anomaly_detection", 0, false, "office"))
	require.NoError(t, c.RecordTaskExecution("anomaly_detection", 0, false, "office"))

	s := c.PerformanceSummary()
	key := "office_anomaly_detection"
	assert.Equal(t, 4, s.TaskSummary[key])
	assert.Equal(t, collector.Stats{Mean: 200, Min: 100, Max: 300, Count: 2}, s.AverageResponseTimes[key])
	assert.InDelta(t, 0.5, s.ErrorRates[key], 1e-9)
	assert.Equal(t, 42.0, s.SystemUtilization["cpu"].Mean)

	f, err := os.Open(filepath.Join(dir, "task_executions.jsonl"))
	require.NoError(t, err)
	defer f.Close()

	var records []collector.TaskRecord
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec collector.TaskRecord
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
		records = append(records, rec)
	}
	require.Len(t, records, 4)
	assert.Equal(t, "office", records[0].ExecutionLocation)
	assert.Equal(t, 42.0, records[0].SystemCPU)
	assert.Equal(t, 61.0, records[0].SystemMemory)
	assert.False(t, records[3].Success)
}

func TestRecordScenarioMetrics(t *testing.T) {
	c, dir := newCollector(t)

	require.NoError(t, c.RecordScenarioMetrics("S2", map[string]float64{"detection_time": 3}))
	require.NoError(t, c.RecordScenarioMetrics("S2", map[string]float64{"detection_time": 4}))

	data, err := os.ReadFile(filepath.Join(dir, "S2_metrics.jsonl"))
	require.NoError(t, err)
	assert.Equal(t, 2, countLines(data))
}

func TestExportRoundTrip(t *testing.T) {
	c, _ := newCollector(t)
	c.AddSample(hostprobe.Sample{Timestamp: time.Now(), CPUPercent: 33.3, MemoryPercent: 44.4})
	require.NoError(t, c.RecordTaskExecution("ml_inference", 812.25, true, "kitchen"))
	require.NoError(t, c.RecordTaskExecution("ml_inference", 0, false, "kitchen"))
	require.NoError(t, c.RecordTaskExecution("sensor_reading", 17.125, true, "supervisor"))

	before := c.PerformanceSummary()
	path, err := c.Export()
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var export collector.Export
	require.NoError(t, json.Unmarshal(data, &export))

	assert.Equal(t, before, export.PerformanceSummary)
	assert.Equal(t, before.TaskSummary, export.TaskCounters)
	assert.Equal(t, map[string]int{"kitchen_ml_inference": 1}, export.ErrorCounts)
	assert.Len(t, export.SystemMetricsHistory[collector.KeyCPU], 1)
}

func TestStartStop(t *testing.T) {
	probe := &fakeProbe{}
	c, err := collector.New(t.TempDir(), probe, logger.Nop())
	require.NoError(t, err)

	c.Start(10 * time.Millisecond)
	c.Start(10 * time.Millisecond)

	require.Eventually(t, func() bool { return probe.count() >= 3 }, time.Second, 5*time.Millisecond)
	require.NoError(t, c.Stop())
	require.NoError(t, c.Stop())

	stopped := probe.count()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, stopped, probe.count())

	_, ok := c.Current()
	assert.True(t, ok)
}

func TestConcurrentRecording(t *testing.T) {
	c, _ := newCollector(t)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				_ = c.RecordTaskExecution("basic_analysis", float64(i), i%5 != 0, "hallway")
				c.AddSample(hostprobe.Sample{Timestamp: time.Now(), CPUPercent: float64(i)})
			}
		}()
	}
	wg.Wait()

	s := c.PerformanceSummary()
	assert.Equal(t, 400, s.TaskSummary["hallway_basic_analysis"])
	assert.InDelta(t, 0.2, s.ErrorRates["hallway_basic_analysis"], 1e-9)
	assert.Len(t, c.History(collector.KeyCPU), 400)
}

func countLines(data []byte) int {
	n := 0
	for _, b := range data {
		if b == '\n' {
			n++
		}
	}
	return n
}
