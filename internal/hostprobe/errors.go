package hostprobe

import (
	"codeberg.org/mutker/edgebench/internal/errors"
	"github.com/NVIDIA/go-nvml/pkg/nvml"
)

const (
	ErrCPUReadFailed     = errors.ErrorCode("hostprobe_cpu_read_failed")
	ErrMemoryReadFailed  = errors.ErrorCode("hostprobe_memory_read_failed")
	ErrDiskReadFailed    = errors.ErrorCode("hostprobe_disk_read_failed")
	ErrNetworkReadFailed = errors.ErrorCode("hostprobe_network_read_failed")
	ErrProcessReadFailed = errors.ErrorCode("hostprobe_process_read_failed")

	ErrGPUNotInitialized = errors.ErrorCode("hostprobe_gpu_not_initialized")
	ErrGPUInitFailed     = errors.ErrorCode("hostprobe_gpu_init_failed")
	ErrGPUNotFound       = errors.ErrorCode("hostprobe_gpu_not_found")
	ErrGPUReadFailed     = errors.ErrorCode("hostprobe_gpu_read_failed")
	ErrGPUShutdownFailed = errors.ErrorCode("hostprobe_gpu_shutdown_failed")
)

// nvmlError represents an NVML-specific error
type nvmlError struct {
	ret nvml.Return
}

func (e nvmlError) Error() string {
	return nvml.ErrorString(e.ret)
}

// newNVMLError creates an error from an NVML return code
func newNVMLError(ret nvml.Return) error {
	if ret == nvml.SUCCESS {
		return nil
	}
	return &nvmlError{ret: ret}
}
