// Package hostprobe samples local system metrics.
package hostprobe

import (
	"context"
	"time"

	"codeberg.org/mutker/edgebench/internal/errors"
	"codeberg.org/mutker/edgebench/internal/logger"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/net"
	"github.com/shirou/gopsutil/v3/process"
)

const (
	defaultCPUWindow = time.Second
	defaultDiskPath  = "/"

	// DispatchCPUWindow is the CPU window of readings taken once per
	// dispatched task.
	DispatchCPUWindow = 100 * time.Millisecond
)

// Host samples the machine the harness runs on.
type Host struct {
	cpuWindow time.Duration
	diskPath  string
	gpu       *gpuReader
	log       *logger.Logger
}

type Option func(*Host)

// WithCPUWindow sets the measurement window of CPU percent readings.
func WithCPUWindow(d time.Duration) Option {
	return func(h *Host) { h.cpuWindow = d }
}

// WithDiskPath sets the mount point whose usage is reported.
func WithDiskPath(path string) Option {
	return func(h *Host) { h.diskPath = path }
}

// WithGPU enables GPU sampling through NVML when a device is present.
func WithGPU() Option {
	return func(h *Host) { h.gpu = &gpuReader{} }
}

func New(log *logger.Logger, opts ...Option) *Host {
	h := &Host{
		cpuWindow: defaultCPUWindow,
		diskPath:  defaultDiskPath,
		log:       log,
	}
	for _, opt := range opts {
		opt(h)
	}

	if h.gpu != nil {
		if err := h.gpu.initialize(); err != nil {
			h.log.Debug().Err(err).Msg("GPU sampling unavailable")
			h.gpu = nil
		}
	}

	return h
}

// Close releases NVML if it was initialized.
func (h *Host) Close() error {
	if h.gpu == nil {
		return nil
	}
	return h.gpu.shutdown()
}

// ForDispatch returns a reader measuring CPU over DispatchCPUWindow. It
// shares h's settings but not its GPU handle, so only h needs closing.
func (h *Host) ForDispatch() *Host {
	cp := *h
	cp.cpuWindow = DispatchCPUWindow
	cp.gpu = nil
	return &cp
}

func (h *Host) CPUPercent(ctx context.Context) (float64, error) {
	values, err := cpu.PercentWithContext(ctx, h.cpuWindow, false)
	if err != nil {
		return 0, errors.New().Wrap(ErrCPUReadFailed, err)
	}
	if len(values) == 0 {
		return 0, errors.New().New(ErrCPUReadFailed)
	}
	return values[0], nil
}

func (h *Host) MemoryPercent(ctx context.Context) (float64, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, errors.New().Wrap(ErrMemoryReadFailed, err)
	}
	return vm.UsedPercent, nil
}

// Sample reads every metric. Individual read failures leave the field zero
// and are logged; only a CPU failure is returned.
func (h *Host) Sample(ctx context.Context) (Sample, error) {
	s := Sample{Timestamp: time.Now()}

	cpuPercent, err := h.CPUPercent(ctx)
	if err != nil {
		return s, err
	}
	s.CPUPercent = cpuPercent

	if s.MemoryPercent, err = h.MemoryPercent(ctx); err != nil {
		h.log.Debug().Err(err).Msg("Memory read failed")
	}

	if usage, err := disk.UsageWithContext(ctx, h.diskPath); err != nil {
		h.log.Debug().Err(errors.New().Wrap(ErrDiskReadFailed, err)).Msg("Disk read failed")
	} else {
		s.DiskUsagePercent = usage.UsedPercent
	}

	if counters, err := net.IOCountersWithContext(ctx, false); err != nil || len(counters) == 0 {
		h.log.Debug().Err(errors.New().Wrap(ErrNetworkReadFailed, err)).Msg("Network read failed")
	} else {
		s.NetworkIO = NetIO{
			BytesSent:   counters[0].BytesSent,
			BytesRecv:   counters[0].BytesRecv,
			PacketsSent: counters[0].PacketsSent,
			PacketsRecv: counters[0].PacketsRecv,
		}
	}

	if pids, err := process.PidsWithContext(ctx); err != nil {
		h.log.Debug().Err(errors.New().Wrap(ErrProcessReadFailed, err)).Msg("Process count failed")
	} else {
		s.ProcessCount = len(pids)
	}

	if h.gpu != nil {
		if g, err := h.gpu.read(); err != nil {
			h.log.Debug().Err(err).Msg("GPU read failed")
		} else {
			s.GPU = &g
		}
	}

	return s, nil
}
