package store

import (
	"database/sql"

	"codeberg.org/mutker/edgebench/internal/errors"
	"codeberg.org/mutker/edgebench/internal/logger"
)

const (
	SchemaVersion = 1

	createTablesSQL = `
	   CREATE TABLE IF NOT EXISTS schema_versions (
	       version     INTEGER PRIMARY KEY,
	       applied_at  TEXT NOT NULL
	   );
	   CREATE TABLE IF NOT EXISTS task_executions (
	       id             INTEGER PRIMARY KEY AUTOINCREMENT,
	       timestamp      INTEGER NOT NULL,
	       run_id         TEXT NOT NULL,
	       task_type      TEXT NOT NULL,
	       location       TEXT NOT NULL,
	       response_time  REAL NOT NULL,
	       success        INTEGER NOT NULL CHECK (success IN (0, 1)),
	       system_cpu     REAL NOT NULL,
	       system_memory  REAL NOT NULL
	   );
	   CREATE TABLE IF NOT EXISTS system_samples (
	       id             INTEGER PRIMARY KEY AUTOINCREMENT,
	       timestamp      INTEGER NOT NULL,
	       cpu_percent    REAL NOT NULL,
	       memory_percent REAL NOT NULL,
	       disk_percent   REAL NOT NULL,
	       process_count  INTEGER NOT NULL CHECK (typeof(process_count) = 'integer')
	   );
	   CREATE TABLE IF NOT EXISTS scenario_metrics (
	       id          INTEGER PRIMARY KEY AUTOINCREMENT,
	       timestamp   INTEGER NOT NULL,
	       scenario_id TEXT NOT NULL,
	       payload     TEXT NOT NULL
	   );`

	insertTaskSQL = `
    INSERT INTO task_executions (
        timestamp, run_id, task_type, location,
        response_time, success, system_cpu, system_memory
    ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	insertSampleSQL = `
    INSERT INTO system_samples (
        timestamp, cpu_percent, memory_percent, disk_percent, process_count
    ) VALUES (?, ?, ?, ?, ?)`

	insertScenarioSQL = `
    INSERT INTO scenario_metrics (timestamp, scenario_id, payload)
    VALUES (?, ?, ?)`
)

var managedTables = []string{"task_executions", "system_samples", "scenario_metrics", "schema_versions"}

// InitSchema creates the tables and records the current version.
func InitSchema(db *sql.DB, log *logger.Logger) error {
	errFactory := errors.New()

	tx, err := db.Begin()
	if err != nil {
		return errFactory.Wrap(ErrSchemaInitFailed, err)
	}

	committed := false
	defer func() {
		if !committed {
			if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
				log.Debug().Err(err).Msg("Failed to rollback transaction")
			}
		}
	}()

	if _, err := tx.Exec(createTablesSQL); err != nil {
		return errFactory.WithData(ErrSchemaInitFailed, struct {
			Phase string
			Error string
		}{
			Phase: "create_tables",
			Error: err.Error(),
		})
	}

	if _, err := tx.Exec(`
        INSERT INTO schema_versions (version, applied_at)
        VALUES (?, datetime('now'))
    `, SchemaVersion); err != nil {
		return errFactory.WithData(ErrSchemaInitFailed, struct {
			Phase string
			Error string
		}{
			Phase: "record_version",
			Error: err.Error(),
		})
	}

	if err := tx.Commit(); err != nil {
		return errFactory.Wrap(ErrSchemaInitFailed, err)
	}
	committed = true

	log.Info().Int("version", SchemaVersion).Msg("Store schema initialized")

	return nil
}

// GetSchemaVersion returns the recorded schema version, 0 for a new database.
func GetSchemaVersion(db *sql.DB) (int, error) {
	errFactory := errors.New()

	exists, err := TableExists(db, "schema_versions")
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, nil
	}

	var version int
	err = db.QueryRow(`
        SELECT version
        FROM schema_versions
        ORDER BY version DESC
        LIMIT 1
    `).Scan(&version)

	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, errFactory.Wrap(ErrSchemaValidationFailed, err)
	}

	return version, nil
}

func TableExists(db *sql.DB, tableName string) (bool, error) {
	var exists bool
	err := db.QueryRow(`
        SELECT EXISTS (
            SELECT 1 FROM sqlite_master
            WHERE type='table' AND name=?
        )
    `, tableName).Scan(&exists)
	if err != nil {
		return false, errors.New().WithData(ErrSchemaValidationFailed, struct {
			Table string
			Error string
		}{
			Table: tableName,
			Error: err.Error(),
		})
	}
	return exists, nil
}
