package app

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"fortrandep/internal/core/ports"
	"fortrandep/internal/core/watcher"
	"fortrandep/internal/data/queue"
	"fortrandep/internal/shared/observability"
	"fortrandep/internal/shared/util"
)

const watchQueueSize = 64

// Watch generates once, then regenerates whenever a watched source
// changes until ctx is done. Regenerations are throttled by the watch
// rate settings and always replace the rule file they produced. onResult
// may be nil.
func (a *App) Watch(ctx context.Context, onResult func(*Result)) error {
	res, err := a.Generate(ctx)
	if err != nil {
		return err
	}
	if onResult != nil {
		onResult(res)
	}

	changes := queue.NewMemoryQueue(watchQueueSize)
	defer changes.Close()
	w, err := watcher.NewWatcher(
		a.Config.Watch.Debounce,
		a.Config.ExcludeDirs,
		a.Config.Exclude,
		func(paths []string) {
			if changes.Enqueue(ports.ChangeBatch{Paths: paths}) == ports.EnqueueDropped {
				slog.Warn("change queue full, dropping batch", "paths", len(paths))
			}
		},
	)
	if err != nil {
		return err
	}
	defer w.Close()
	w.SetExtensions(a.watchExtensions())
	roots := a.watchRoots()
	if err := w.Watch(roots); err != nil {
		return err
	}
	slog.Info("watching for changes", "roots", roots)

	limiter := util.NewLimiter(a.Config.Watch.RebuildsPerSecond, a.Config.Watch.RebuildBurst)
	last := res
	for {
		first, err := changes.DequeueBatch(ctx, 1, 0)
		if err != nil {
			// Cancellation or a closed queue both end the watch.
			return nil
		}
		if err := limiter.Wait(ctx); err != nil {
			return nil
		}
		// Pick up whatever queued while the limiter held us back.
		rest, _ := changes.DequeueBatch(ctx, watchQueueSize, time.Nanosecond)
		paths := queue.MergePaths(append(first, rest...))
		a.logAffected(last, paths)
		a.includes.Purge()

		next, err := a.run(ctx, true)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			observability.RegenerationsTotal.WithLabelValues("error").Inc()
			slog.Error("regeneration failed", "error", err)
			continue
		}
		outcome := "success"
		if !next.Success() {
			outcome = "failure"
		}
		observability.RegenerationsTotal.WithLabelValues(outcome).Inc()
		last = next
		if onResult != nil {
			onResult(next)
		}
	}
}

func (a *App) logAffected(prev *Result, changed []string) {
	if prev == nil || prev.Project == nil {
		return
	}
	for _, path := range changed {
		clean := filepath.Clean(path)
		deps := prev.Project.Dependents(clean)
		if deps == nil {
			slog.Info("source changed", "path", clean)
			continue
		}
		slog.Info("source changed", "path", clean, "affected", len(deps)-1)
		slog.Debug("affected files", "path", clean, "dependents", deps[1:])
	}
}

func (a *App) watchExtensions() []string {
	exts := append([]string(nil), a.Config.Extensions...)
	if a.Config.Preprocess || a.Config.Output.EmitIncludes {
		exts = append(exts, ".h", ".inc", ".fh")
	}
	return exts
}

// watchRoots covers the search directories, the directories of explicit
// files and the include paths.
func (a *App) watchRoots() []string {
	roots := append([]string(nil), a.Config.SearchDirs...)
	for _, f := range a.Config.Files {
		roots = append(roots, filepath.Dir(f))
	}
	roots = append(roots, a.includes.Paths()...)
	clean := make([]string, 0, len(roots))
	for _, r := range roots {
		if info, err := os.Stat(r); err != nil || !info.IsDir() {
			continue
		}
		if abs, err := filepath.Abs(r); err == nil {
			r = abs
		}
		clean = append(clean, filepath.Clean(r))
	}
	out := util.UniqueStrings(clean)
	sort.Strings(out)
	return out
}
