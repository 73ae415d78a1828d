package store

import (
	"time"

	"codeberg.org/mutker/edgebench/internal/errors"
)

const (
	defaultDirPerm      = 0o755
	defaultBatchSize    = 100
	defaultBatchTimeout = 5 * time.Second
	backupDirName       = "backups"
)

type Config struct {
	DBPath       string
	BatchSize    int
	BatchTimeout time.Duration
}

func DefaultConfig(dbPath string) Config {
	return Config{
		DBPath:       dbPath,
		BatchSize:    defaultBatchSize,
		BatchTimeout: defaultBatchTimeout,
	}
}

func (c Config) Validate() error {
	errFactory := errors.New()

	if c.DBPath == "" {
		return errFactory.New(ErrInvalidDBPath)
	}
	if c.BatchSize < 0 || c.BatchTimeout < 0 {
		return errFactory.WithData(ErrInvalidConfig, c)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
