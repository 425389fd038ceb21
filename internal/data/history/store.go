package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const (
	driverName  = "sqlite"
	maxAttempts = 5
	// Fixed width so ts_utc sorts lexically.
	timestampLayout = "2006-01-02T15:04:05.000000000Z"
)

// Store keeps generation runs in a local SQLite file.
type Store struct {
	path string
	db   *sql.DB
	mu   sync.Mutex
}

func Open(path string) (*Store, error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return nil, fmt.Errorf("history path must not be empty")
	}
	if info, err := os.Stat(cleanPath); err == nil && info.IsDir() {
		return nil, fmt.Errorf("history path %q is a directory, expected file", cleanPath)
	}

	dir := filepath.Dir(cleanPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history directory %q: %w", dir, err)
		}
	}

	// busy_timeout + WAL reduce lock conflicts when watch mode and a manual
	// run share the file.
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(2000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", cleanPath)
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite history %q: %w", cleanPath, err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite history %q: %w", cleanPath, err)
	}
	if err := EnsureSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize sqlite schema %q: %w", cleanPath, err)
	}
	return &Store{path: cleanPath, db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// SaveRun stores run and its diagnostics, assigning an ID and timestamp
// when missing. It returns the ID.
func (s *Store) SaveRun(ctx context.Context, run Run) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.Timestamp.IsZero() {
		run.Timestamp = time.Now().UTC()
	}

	err := s.withRetry("save run", func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
INSERT INTO runs (
  run_id, ts_utc, duration_ms, file_count, failed_file_count, unit_count, program_count,
  edge_count, unresolved_count, ambiguous_count, cycle_count, output_path, output_status, success
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID,
			run.Timestamp.UTC().Format(timestampLayout),
			run.Duration.Milliseconds(),
			run.FileCount,
			run.FailedFileCount,
			run.UnitCount,
			run.ProgramCount,
			run.EdgeCount,
			run.UnresolvedCount,
			run.AmbiguousCount,
			run.CycleCount,
			run.OutputPath,
			run.OutputStatus,
			boolToInt(run.Success),
		)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
		for i, d := range run.Diagnostics {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO run_diagnostics (run_id, seq, kind, module, referrer, file) VALUES (?, ?, ?, ?, ?, ?)`,
				run.ID, i, d.Kind, d.Module, d.Referrer, d.File,
			); err != nil {
				_ = tx.Rollback()
				return err
			}
		}
		return tx.Commit()
	})
	if err != nil {
		return "", err
	}
	return run.ID, nil
}

// Recent returns up to limit runs, newest first. Diagnostics are not loaded.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 20
	}
	var rows *sql.Rows
	err := s.withRetry("load runs", func() error {
		var qErr error
		rows, qErr = s.db.QueryContext(ctx, `
SELECT
  run_id, ts_utc, duration_ms, file_count, failed_file_count, unit_count, program_count,
  edge_count, unresolved_count, ambiguous_count, cycle_count, output_path, output_status, success
FROM runs
ORDER BY ts_utc DESC, run_id ASC
LIMIT ?`, limit)
		return qErr
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]Run, 0)
	for rows.Next() {
		var (
			tsRaw      string
			durationMS int64
			success    int
			run        Run
		)
		if err := rows.Scan(
			&run.ID,
			&tsRaw,
			&durationMS,
			&run.FileCount,
			&run.FailedFileCount,
			&run.UnitCount,
			&run.ProgramCount,
			&run.EdgeCount,
			&run.UnresolvedCount,
			&run.AmbiguousCount,
			&run.CycleCount,
			&run.OutputPath,
			&run.OutputStatus,
			&success,
		); err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		ts, err := time.Parse(timestampLayout, tsRaw)
		if err != nil {
			return nil, fmt.Errorf("parse run timestamp %q: %w", tsRaw, err)
		}
		run.Timestamp = ts.UTC()
		run.Duration = time.Duration(durationMS) * time.Millisecond
		run.Success = success != 0
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run rows: %w", err)
	}
	return runs, nil
}

// Diagnostics returns the diagnostics stored for runID in report order.
func (s *Store) Diagnostics(ctx context.Context, runID string) ([]Diagnostic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rows *sql.Rows
	err := s.withRetry("load diagnostics", func() error {
		var qErr error
		rows, qErr = s.db.QueryContext(ctx,
			`SELECT kind, module, referrer, file FROM run_diagnostics WHERE run_id = ? ORDER BY seq ASC`, runID)
		return qErr
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Diagnostic
	for rows.Next() {
		var d Diagnostic
		if err := rows.Scan(&d.Kind, &d.Module, &d.Referrer, &d.File); err != nil {
			return nil, fmt.Errorf("scan diagnostic row: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Prune keeps the newest keep runs and deletes the rest.
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	if keep <= 0 {
		return 0, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	err := s.withRetry("prune runs", func() error {
		res, err := s.db.ExecContext(ctx, `
DELETE FROM runs WHERE run_id NOT IN (
  SELECT run_id FROM runs ORDER BY ts_utc DESC, run_id ASC LIMIT ?
)`, keep)
		if err != nil {
			return err
		}
		deleted, err = res.RowsAffected()
		return err
	})
	return deleted, err
}

func (s *Store) withRetry(op string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !isLockError(err) || attempt == maxAttempts {
			break
		}
		time.Sleep(time.Duration(attempt*25) * time.Millisecond)
	}
	return fmt.Errorf("%s: %w", op, lastErr)
}

func isLockError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "busy")
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
