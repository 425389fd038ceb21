// Package ports declares the interfaces the application layer depends on.
package ports

import (
	"context"
	"time"

	"fortrandep/internal/data/history"
	"fortrandep/internal/engine/parser"
)

// SourceLoader turns one path into a parsed source file.
type SourceLoader interface {
	LoadFile(path string) (*parser.SourceFile, error)
}

// RunStore persists generation runs.
type RunStore interface {
	SaveRun(ctx context.Context, run history.Run) (string, error)
	Recent(ctx context.Context, limit int) ([]history.Run, error)
	Diagnostics(ctx context.Context, runID string) ([]history.Diagnostic, error)
	Prune(ctx context.Context, keep int) (int64, error)
	Path() string
	Close() error
}

// ChangeBatch is one debounced group of changed paths from the watcher.
type ChangeBatch struct {
	Paths []string
	At    time.Time
}

type EnqueueResult string

const (
	EnqueueAccepted EnqueueResult = "accepted"
	EnqueueDropped  EnqueueResult = "dropped"
)

// ChangeQueue buffers watcher batches between the file system callback
// and the regeneration loop.
type ChangeQueue interface {
	Enqueue(batch ChangeBatch) EnqueueResult
	DequeueBatch(ctx context.Context, maxItems int, wait time.Duration) ([]ChangeBatch, error)
	Len() int
	Close() error
}
