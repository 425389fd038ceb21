package parser

import (
	"context"
	"log/slog"
	"runtime"
	"sort"
	"sync"

	domainErrors "fortrandep/internal/core/errors"
	"fortrandep/internal/shared/observability"

	"golang.org/x/sync/errgroup"
)

// FileError records a file dropped from the run.
type FileError struct {
	Path string
	Err  error
}

func (e FileError) Error() string {
	return e.Path + ": " + e.Err.Error()
}

// Batch is the result of parsing many files.
type Batch struct {
	// Files are sorted by path.
	Files    []*SourceFile
	Failures []FileError
}

// ParseAll loads paths on at most workers goroutines. A file that fails to
// parse is reported in Failures and the rest continue. Only cancellation
// of ctx aborts the batch.
func ParseAll(ctx context.Context, l *Loader, paths []string, workers int) (*Batch, error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	var (
		mu    sync.Mutex
		batch = &Batch{}
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, path := range paths {
		path := path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			file, err := l.LoadFile(path)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				slog.Warn("failed to process file", "path", path, "error", err)
				observability.FileFailuresTotal.WithLabelValues(string(domainErrors.CodeOf(err))).Inc()
				batch.Failures = append(batch.Failures, FileError{Path: path, Err: err})
				return nil
			}
			observability.FilesParsedTotal.Inc()
			batch.Files = append(batch.Files, file)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	sort.Slice(batch.Files, func(i, j int) bool { return batch.Files[i].Path < batch.Files[j].Path })
	sort.Slice(batch.Failures, func(i, j int) bool { return batch.Failures[i].Path < batch.Failures[j].Path })
	return batch, nil
}
