package edgesim

import (
	"fmt"
	"sync"
	"time"

	"codeberg.org/mutker/edgebench/internal/logger"
	"codeberg.org/mutker/edgebench/internal/ring"
)

const (
	DefaultLogCapacity = 1000
	logTimeLayout      = "2006-01-02 15:04:05"
)

// LogManager keeps the most recent node log lines for GET /logs. Every
// line is also forwarded to the structured logger.
type LogManager struct {
	mu    sync.Mutex
	lines *ring.Ring[string]
	log   *logger.Logger
	now   func() time.Time
}

func NewLogManager(capacity int, log *logger.Logger) *LogManager {
	if capacity <= 0 {
		capacity = DefaultLogCapacity
	}
	if log == nil {
		log = logger.Nop()
	}
	return &LogManager{
		lines: ring.New[string](capacity),
		log:   log,
		now:   time.Now,
	}
}

// Add appends "[YYYY-MM-DD HH:MM:SS] msg", evicting the oldest line when full.
func (m *LogManager) Add(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	line := fmt.Sprintf("[%s] %s", m.now().Format(logTimeLayout), msg)

	m.mu.Lock()
	m.lines.Push(line)
	m.mu.Unlock()

	m.log.Info().Msg(msg)
}

// Lines returns the retained lines, oldest first.
func (m *LogManager) Lines() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lines.Items()
}

func (m *LogManager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lines.Reset()
}
