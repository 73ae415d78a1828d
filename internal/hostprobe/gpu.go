package hostprobe

import (
	"sync"

	"codeberg.org/mutker/edgebench/internal/errors"
	"github.com/NVIDIA/go-nvml/pkg/nvml"
)

// gpuReader reads utilization of the first NVIDIA device.
type gpuReader struct {
	mu          sync.Mutex
	device      nvml.Device
	initialized bool
}

func (g *gpuReader) initialize() error {
	errFactory := errors.New()

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.initialized {
		return nil
	}

	if ret := nvml.Init(); ret != nvml.SUCCESS {
		return errFactory.Wrap(ErrGPUInitFailed, newNVMLError(ret))
	}

	count, ret := nvml.DeviceGetCount()
	if ret != nvml.SUCCESS || count == 0 {
		nvml.Shutdown()
		return errFactory.WithData(ErrGPUNotFound, count)
	}

	device, ret := nvml.DeviceGetHandleByIndex(0)
	if ret != nvml.SUCCESS {
		nvml.Shutdown()
		return errFactory.Wrap(ErrGPUNotFound, newNVMLError(ret))
	}

	g.device = device
	g.initialized = true

	return nil
}

func (g *gpuReader) read() (GPU, error) {
	errFactory := errors.New()

	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.initialized {
		return GPU{}, errFactory.New(ErrGPUNotInitialized)
	}

	util, ret := g.device.GetUtilizationRates()
	if ret != nvml.SUCCESS {
		return GPU{}, errFactory.Wrap(ErrGPUReadFailed, newNVMLError(ret))
	}

	temp, ret := g.device.GetTemperature(nvml.TEMPERATURE_GPU)
	if ret != nvml.SUCCESS {
		return GPU{}, errFactory.Wrap(ErrGPUReadFailed, newNVMLError(ret))
	}

	return GPU{Percent: float64(util.Gpu), Temperature: float64(temp)}, nil
}

func (g *gpuReader) shutdown() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.initialized {
		return nil
	}

	if ret := nvml.Shutdown(); ret != nvml.SUCCESS {
		return errors.New().Wrap(ErrGPUShutdownFailed, newNVMLError(ret))
	}
	g.initialized = false

	return nil
}
