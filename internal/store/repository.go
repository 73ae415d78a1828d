package store

import (
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"time"

	"codeberg.org/mutker/edgebench/internal/errors"
	"codeberg.org/mutker/edgebench/internal/logger"
	_ "github.com/mattn/go-sqlite3"
)

type entry struct {
	query string
	args  []any
}

type repository struct {
	db            *sql.DB
	logger        *logger.Logger
	cfg           Config
	mu            sync.Mutex
	buffer        []entry
	closed        bool
	flushTicker   *time.Ticker
	shutdownChan  chan struct{}
	flushDoneChan chan struct{}
}

// Open opens (or creates) the SQLite database at cfg.DBPath.
func Open(cfg Config, log *logger.Logger) (Store, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), defaultDirPerm); err != nil {
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Path  string
			Error string
		}{
			Phase: "create_directory",
			Path:  cfg.DBPath,
			Error: err.Error(),
		})
	}

	dsn := cfg.DBPath + "?_journal=WAL&_auto_vacuum=2"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errFactory.Wrap(ErrStorageInit, err)
	}

	repo, err := New(db, cfg, log)
	if err != nil {
		db.Close()
		return nil, err
	}

	return repo, nil
}

// New wraps an already opened database, validating its schema.
func New(db *sql.DB, cfg Config, log *logger.Logger) (Store, error) {
	errFactory := errors.New()

	backupDir := filepath.Join(filepath.Dir(cfg.DBPath), backupDirName)
	if err := ValidateAndUpdateSchema(db, backupDir, log); err != nil {
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Error string
		}{
			Phase: "schema_version",
			Error: err.Error(),
		})
	}

	log.Info().
		Str("path", cfg.DBPath).
		Int("schema_version", SchemaVersion).
		Int("batch_size", cfg.BatchSize).
		Dur("batch_timeout", cfg.BatchTimeout).
		Msg("Store initialized")

	repo := &repository{
		db:            db,
		logger:        log,
		cfg:           cfg,
		buffer:        make([]entry, 0, cfg.BatchSize),
		shutdownChan:  make(chan struct{}),
		flushDoneChan: make(chan struct{}),
	}

	if cfg.BatchTimeout > 0 {
		repo.flushTicker = time.NewTicker(cfg.BatchTimeout)
		go repo.flusher()
	} else {
		close(repo.flushDoneChan)
	}

	return repo, nil
}

func (r *repository) RecordTask(rec TaskExecution) error {
	return r.record(insertTaskSQL,
		rec.Timestamp.UnixMilli(),
		rec.RunID,
		rec.TaskType,
		rec.Location,
		rec.ResponseTime,
		boolToInt(rec.Success),
		rec.SystemCPU,
		rec.SystemMemory,
	)
}

func (r *repository) RecordSample(s SystemSample) error {
	return r.record(insertSampleSQL,
		s.Timestamp.UnixMilli(),
		s.CPUPercent,
		s.MemoryPercent,
		s.DiskPercent,
		int64(s.ProcessCount),
	)
}

func (r *repository) RecordScenario(m ScenarioMetrics) error {
	return r.record(insertScenarioSQL, m.Timestamp.UnixMilli(), m.ScenarioID, m.Payload)
}

func (r *repository) record(query string, args ...any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return errors.New().New(ErrClosed)
	}

	r.buffer = append(r.buffer, entry{query: query, args: args})

	if len(r.buffer) >= r.cfg.BatchSize {
		return r.flush()
	}

	return nil
}

func (r *repository) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.flush()
}

func (r *repository) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	close(r.shutdownChan)
	if r.flushTicker != nil {
		r.flushTicker.Stop()
	}
	<-r.flushDoneChan

	r.mu.Lock()
	flushErr := r.flush()
	r.mu.Unlock()

	if _, err := r.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		r.logger.Debug().Err(err).Msg("WAL checkpoint failed")
	}

	if err := r.db.Close(); err != nil {
		return errors.New().Wrap(ErrStorageClose, err)
	}

	if flushErr != nil {
		return errors.New().Wrap(ErrStorageClose, flushErr)
	}

	r.logger.Info().Msg("Store closed")

	return nil
}

func (r *repository) flusher() {
	defer close(r.flushDoneChan)

	for {
		select {
		case <-r.flushTicker.C:
			r.mu.Lock()
			if err := r.flush(); err != nil {
				r.logger.Warn().Err(err).Msg("Periodic flush failed")
			}
			r.mu.Unlock()
		case <-r.shutdownChan:
			return
		}
	}
}

// flush writes the buffer in one transaction. A failed batch is dropped.
func (r *repository) flush() error {
	if len(r.buffer) == 0 {
		return nil
	}

	errFactory := errors.New()
	batch := r.buffer
	r.buffer = r.buffer[:0:0]

	tx, err := r.db.Begin()
	if err != nil {
		return errFactory.Wrap(ErrTransactionFailed, err)
	}

	rollback := func() {
		if err := tx.Rollback(); err != nil {
			r.logger.Error().Err(err).Msg("Failed to roll back transaction")
		}
	}

	stmts := make(map[string]*sql.Stmt)
	defer func() {
		for _, stmt := range stmts {
			stmt.Close()
		}
	}()

	for _, e := range batch {
		stmt, ok := stmts[e.query]
		if !ok {
			stmt, err = tx.Prepare(e.query)
			if err != nil {
				rollback()
				return errFactory.Wrap(ErrTransactionFailed, err)
			}
			stmts[e.query] = stmt
		}

		if _, err := stmt.Exec(e.args...); err != nil {
			rollback()
			return errFactory.WithData(ErrTransactionFailed, struct {
				Dropped int
				Error   string
			}{
				Dropped: len(batch),
				Error:   err.Error(),
			})
		}
	}

	if err := tx.Commit(); err != nil {
		return errFactory.Wrap(ErrTransactionFailed, err)
	}

	r.logger.Debug().Int("records", len(batch)).Msg("Flushed records to store")

	return nil
}
