package scenario

import (
	"context"

	"codeberg.org/mutker/edgebench/internal/client"
)

// CPUProbe supplies the CPU sample behind an offload decision.
type CPUProbe interface {
	CPUPercent(ctx context.Context) float64
}

// LoadProbe supplies supervisor CPU and memory for the load monitor.
type LoadProbe interface {
	Load(ctx context.Context) (cpu, memory float64)
}

// SupervisorProbe reads GET /api/system_metrics on the supervisor and
// falls back to the local host when it does not answer.
type SupervisorProbe struct {
	client   *client.Client
	endpoint string
	local    LocalProbe
}

func NewSupervisorProbe(c *client.Client, endpoint string, local LocalProbe) *SupervisorProbe {
	return &SupervisorProbe{client: c, endpoint: endpoint, local: local}
}

func (p *SupervisorProbe) CPUPercent(ctx context.Context) float64 {
	if m, err := p.client.SystemMetrics(ctx, p.endpoint); err == nil {
		return m.CPUPercent
	}
	if p.local != nil {
		if v, err := p.local.CPUPercent(ctx); err == nil {
			return v
		}
	}
	return 0
}

func (p *SupervisorProbe) Load(ctx context.Context) (float64, float64) {
	if m, err := p.client.SystemMetrics(ctx, p.endpoint); err == nil {
		return m.CPUPercent, m.MemoryPercent
	}
	if p.local == nil {
		return 0, 0
	}

	var cpu, mem float64
	if v, err := p.local.CPUPercent(ctx); err == nil {
		cpu = v
	}
	if v, err := p.local.MemoryPercent(ctx); err == nil {
		mem = v
	}
	return cpu, mem
}
