package hostprobe

import (
	"context"
	"time"
)

// NetIO holds cumulative interface counters.
type NetIO struct {
	BytesSent   uint64 `json:"bytes_sent"`
	BytesRecv   uint64 `json:"bytes_recv"`
	PacketsSent uint64 `json:"packets_sent"`
	PacketsRecv uint64 `json:"packets_recv"`
}

// GPU holds the utilization of the first GPU.
type GPU struct {
	Percent     float64 `json:"gpu_percent"`
	Temperature float64 `json:"gpu_temperature"`
}

// Sample is one host system snapshot.
type Sample struct {
	Timestamp        time.Time `json:"timestamp"`
	CPUPercent       float64   `json:"cpu_percent"`
	MemoryPercent    float64   `json:"memory_percent"`
	DiskUsagePercent float64   `json:"disk_usage"`
	NetworkIO        NetIO     `json:"network_io"`
	ProcessCount     int       `json:"process_count"`
	GPU              *GPU      `json:"gpu,omitempty"`
}

// Probe reads host metrics.
type Probe interface {
	Sample(ctx context.Context) (Sample, error)
}

// CPUReader reads current CPU utilization in percent.
type CPUReader interface {
	CPUPercent(ctx context.Context) (float64, error)
}

// MemoryReader reads current memory utilization in percent.
type MemoryReader interface {
	MemoryPercent(ctx context.Context) (float64, error)
}
