package history

import (
	"database/sql"
	"fmt"
	"time"
)

const SchemaVersion = 2

// Run is one generation attempt.
type Run struct {
	ID              string
	Timestamp       time.Time
	Duration        time.Duration
	FileCount       int
	FailedFileCount int
	UnitCount       int
	ProgramCount    int
	EdgeCount       int
	UnresolvedCount int
	AmbiguousCount  int
	CycleCount      int
	OutputPath      string
	OutputStatus    string
	Success         bool
	Diagnostics     []Diagnostic
}

// Diagnostic is a stored copy of one reported problem.
type Diagnostic struct {
	Kind     string
	Module   string
	Referrer string
	File     string
}

type migration struct {
	version int
	sql     string
}

var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS runs (
  run_id TEXT PRIMARY KEY,
  ts_utc TEXT NOT NULL,
  duration_ms INTEGER NOT NULL DEFAULT 0,
  file_count INTEGER NOT NULL,
  failed_file_count INTEGER NOT NULL,
  unit_count INTEGER NOT NULL,
  program_count INTEGER NOT NULL,
  edge_count INTEGER NOT NULL,
  unresolved_count INTEGER NOT NULL,
  ambiguous_count INTEGER NOT NULL,
  cycle_count INTEGER NOT NULL,
  output_path TEXT NOT NULL DEFAULT '',
  output_status TEXT NOT NULL DEFAULT '',
  success INTEGER NOT NULL,
  created_at_utc TEXT NOT NULL DEFAULT (CURRENT_TIMESTAMP)
);
CREATE INDEX IF NOT EXISTS idx_runs_ts ON runs(ts_utc);
`,
	},
	{
		version: 2,
		sql: `
CREATE TABLE IF NOT EXISTS run_diagnostics (
  run_id TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
  seq INTEGER NOT NULL,
  kind TEXT NOT NULL,
  module TEXT NOT NULL,
  referrer TEXT NOT NULL,
  file TEXT NOT NULL DEFAULT '',
  PRIMARY KEY (run_id, seq)
);
CREATE INDEX IF NOT EXISTS idx_run_diagnostics_module ON run_diagnostics(module);
`,
	},
}

func EnsureSchema(db *sql.DB) error {
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS schema_migrations (
  version INTEGER PRIMARY KEY,
  applied_at_utc TEXT NOT NULL DEFAULT (CURRENT_TIMESTAMP)
);
`); err != nil {
		return fmt.Errorf("create schema_migrations table: %w", err)
	}

	var current int
	if err := db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current); err != nil {
		return fmt.Errorf("read schema_migrations version: %w", err)
	}
	if current > SchemaVersion {
		return fmt.Errorf("schema version %d is newer than supported version %d", current, SchemaVersion)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.version, err)
		}
		if _, err := tx.Exec(m.sql); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply migration %d: %w", m.version, err)
		}
		if _, err := tx.Exec(`INSERT INTO schema_migrations(version) VALUES (?)`, m.version); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.version, err)
		}
	}
	return nil
}
