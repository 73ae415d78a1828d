// Package pid guards an output directory against concurrent runs.
package pid

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"codeberg.org/mutker/edgebench/internal/errors"
)

const lockFile = "edgebench.pid"

// Lock is a PID file held in a run's output directory.
type Lock struct {
	path string
}

// Acquire writes the current process ID to dir. It fails with
// ErrAlreadyRunning while another live process holds the file; a file left
// by a dead process is taken over.
func Acquire(dir string) (*Lock, error) {
	errFactory := errors.New()
	path := filepath.Join(dir, lockFile)

	if _, err := os.Stat(path); err == nil {
		bytes, err := os.ReadFile(path)
		if err != nil {
			return nil, errFactory.Wrap(errors.ErrInternal, err)
		}

		pid, err := strconv.Atoi(strings.TrimSpace(string(bytes)))
		if err != nil {
			return nil, errFactory.Wrap(errors.ErrInternal, err)
		}

		if alive(pid) {
			return nil, errFactory.WithData(errors.ErrAlreadyRunning, pid)
		}
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errFactory.Wrap(errors.ErrInternal, err)
	}
	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o600); err != nil {
		return nil, errFactory.Wrap(errors.ErrInternal, err)
	}

	return &Lock{path: path}, nil
}

func (l *Lock) Path() string { return l.path }

// Release removes the PID file. Releasing twice is harmless.
func (l *Lock) Release() error {
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return errors.New().Wrap(errors.ErrInternal, err)
	}
	return nil
}

func alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}
