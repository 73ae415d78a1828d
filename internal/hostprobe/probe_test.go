package hostprobe_test

import (
	"context"
	"testing"
	"time"

	"codeberg.org/mutker/edgebench/internal/hostprobe"
	"codeberg.org/mutker/edgebench/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHostSample(t *testing.T) {
	h := hostprobe.New(logger.Nop(), hostprobe.WithCPUWindow(50*time.Millisecond))
	defer h.Close()

	s, err := h.Sample(context.Background())
	require.NoError(t, err)

	assert.False(t, s.Timestamp.IsZero())
	assert.GreaterOrEqual(t, s.CPUPercent, 0.0)
	assert.LessOrEqual(t, s.CPUPercent, 100.0)
	assert.GreaterOrEqual(t, s.MemoryPercent, 0.0)
	assert.LessOrEqual(t, s.MemoryPercent, 100.0)
}

func TestGPUIsOptional(t *testing.T) {
	// Hosts without NVML fall back to CPU-only sampling.
	h := hostprobe.New(logger.Nop(), hostprobe.WithCPUWindow(10*time.Millisecond), hostprobe.WithGPU())
	defer h.Close()

	_, err := h.Sample(context.Background())
	require.NoError(t, err)
}

func TestForDispatchUsesShortWindow(t *testing.T) {
	h := hostprobe.New(logger.Nop())
	defer h.Close()

	start := time.Now()
	v, err := h.ForDispatch().CPUPercent(context.Background())
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 600*time.Millisecond)
	assert.GreaterOrEqual(t, v, 0.0)
	assert.LessOrEqual(t, v, 100.0)
}
