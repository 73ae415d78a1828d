package edgesim

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"codeberg.org/mutker/edgebench/internal/hostprobe"
)

// Utilization is what a node reports on its metrics endpoints.
type Utilization struct {
	CPUPercent    float64
	MemoryPercent float64
	NetworkUsage  float64
	Energy        float64
}

// LoadModel reports a node's utilization given its in-flight task count.
type LoadModel interface {
	Utilization(ctx context.Context, inflight int) Utilization
}

// SyntheticLoad derives utilization from the in-flight task count, so a
// busy node reports a high CPU percentage.
type SyntheticLoad struct {
	BaseCPU    float64
	PerTaskCPU float64
	BaseMemory float64
	Jitter     float64

	mu  sync.Mutex
	rng *rand.Rand
}

func NewSyntheticLoad(seed int64) *SyntheticLoad {
	return &SyntheticLoad{
		BaseCPU:    20,
		PerTaskCPU: 12,
		BaseMemory: 45,
		Jitter:     3,
		rng:        rand.New(rand.NewSource(seed)),
	}
}

func (s *SyntheticLoad) Utilization(_ context.Context, inflight int) Utilization {
	s.mu.Lock()
	noise := (s.rng.Float64()*2 - 1) * s.Jitter
	netUsage := 10 + s.rng.Float64()*40
	s.mu.Unlock()

	cpu := clampPercent(s.BaseCPU + float64(inflight)*s.PerTaskCPU + noise)
	mem := clampPercent(s.BaseMemory + float64(inflight)*2 + noise/2)

	return Utilization{
		CPUPercent:    cpu,
		MemoryPercent: mem,
		NetworkUsage:  netUsage,
		Energy:        estimateEnergy(cpu, mem),
	}
}

// HostLoad reports the machine the simulator runs on.
type HostLoad struct {
	host *hostprobe.Host

	mu       sync.Mutex
	lastSent uint64
	lastAt   time.Time
}

func NewHostLoad(host *hostprobe.Host) *HostLoad {
	return &HostLoad{host: host}
}

func (h *HostLoad) Utilization(ctx context.Context, _ int) Utilization {
	s, err := h.host.Sample(ctx)
	if err != nil {
		return Utilization{}
	}

	return Utilization{
		CPUPercent:    s.CPUPercent,
		MemoryPercent: s.MemoryPercent,
		NetworkUsage:  h.networkRate(s),
		Energy:        estimateEnergy(s.CPUPercent, s.MemoryPercent),
	}
}

// networkRate is the KiB/s sent since the previous sample.
func (h *HostLoad) networkRate(s hostprobe.Sample) float64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	var rate float64
	if !h.lastAt.IsZero() && s.NetworkIO.BytesSent >= h.lastSent {
		if secs := s.Timestamp.Sub(h.lastAt).Seconds(); secs > 0 {
			rate = float64(s.NetworkIO.BytesSent-h.lastSent) / 1024 / secs
		}
	}
	h.lastSent = s.NetworkIO.BytesSent
	h.lastAt = s.Timestamp
	return rate
}

// estimateEnergy is a linear watt model of a small edge board.
func estimateEnergy(cpu, mem float64) float64 {
	const idleWatts, cpuWatts, memWatts = 2.5, 0.06, 0.01
	return idleWatts + cpu*cpuWatts + mem*memWatts
}

func clampPercent(v float64) float64 {
	return max(0, min(100, v))
}
