package collector

import "time"

// Metric keys recorded by the sampler.
const (
	KeyCPU            = "cpu_percent"
	KeyMemory         = "memory_percent"
	KeyDisk           = "disk_usage"
	KeyBytesSent      = "network_bytes_sent"
	KeyBytesRecv      = "network_bytes_recv"
	KeyPacketsSent    = "network_packets_sent"
	KeyPacketsRecv    = "network_packets_recv"
	KeyProcessCount   = "process_count"
	KeyGPU            = "gpu_percent"
	KeyGPUTemperature = "gpu_temperature"
)

// Point is one timestamped value of a metric series.
type Point struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// Stats aggregates a series. Count is only set for response times.
type Stats struct {
	Mean  float64 `json:"mean"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Count int     `json:"count,omitempty"`
}

type PerformanceSummary struct {
	TaskSummary          map[string]int     `json:"task_summary"`
	AverageResponseTimes map[string]Stats   `json:"average_response_times"`
	ErrorRates           map[string]float64 `json:"error_rates"`
	SystemUtilization    map[string]Stats   `json:"system_utilization"`
}

// Export is the layout of metrics_export.json.
type Export struct {
	ExportTimestamp      time.Time            `json:"export_timestamp"`
	TaskCounters         map[string]int       `json:"task_counters"`
	ResponseTimes        map[string][]float64 `json:"response_times"`
	ErrorCounts          map[string]int       `json:"error_counts"`
	SystemMetricsHistory map[string][]Point   `json:"system_metrics_history"`
	PerformanceSummary   PerformanceSummary   `json:"performance_summary"`
}

// TaskRecord is one line of task_executions.jsonl.
type TaskRecord struct {
	Timestamp         time.Time `json:"timestamp"`
	TaskType          string    `json:"task_type"`
	ResponseTime      float64   `json:"response_time"`
	Success           bool      `json:"success"`
	ExecutionLocation string    `json:"execution_location"`
	SystemCPU         float64   `json:"system_cpu"`
	SystemMemory      float64   `json:"system_memory"`
}

// ScenarioRecord is one line of <scenario_id>_metrics.jsonl.
type ScenarioRecord struct {
	Timestamp  time.Time `json:"timestamp"`
	ScenarioID string    `json:"scenario_id"`
	Metrics    any       `json:"metrics"`
}
