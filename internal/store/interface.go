// Package store mirrors execution records into SQLite.
package store

import "time"

// Store persists harness records. Writes are buffered and flushed in
// batches, so a record is durable only after Flush or Close.
type Store interface {
	RecordTask(rec TaskExecution) error
	RecordSample(s SystemSample) error
	RecordScenario(m ScenarioMetrics) error
	Flush() error
	Close() error
}

type TaskExecution struct {
	Timestamp    time.Time
	RunID        string
	TaskType     string
	Location     string
	ResponseTime float64
	Success      bool
	SystemCPU    float64
	SystemMemory float64
}

type SystemSample struct {
	Timestamp     time.Time
	CPUPercent    float64
	MemoryPercent float64
	DiskPercent   float64
	ProcessCount  int
}

type ScenarioMetrics struct {
	Timestamp  time.Time
	ScenarioID string
	Payload    string
}
