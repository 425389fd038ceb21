// Package app wires discovery, parsing, graph building and rule emission
// into the operations exposed by the command line.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"fortrandep/internal/core/config"
	"fortrandep/internal/core/ports"
	"fortrandep/internal/data/history"
	"fortrandep/internal/engine/graph"
	"fortrandep/internal/engine/parser"
	"fortrandep/internal/engine/preprocessor"

	"github.com/gobwas/glob"
)

type App struct {
	Config *config.Config

	macros   *preprocessor.MacroTable
	includes *preprocessor.IncludeResolver
	loader   *parser.Loader

	excludeGlobs []glob.Glob
	dirGlobs     []glob.Glob

	history ports.RunStore
}

var (
	_ ports.RunStore     = (*history.Store)(nil)
	_ ports.SourceLoader = (*parser.Loader)(nil)
)

// New validates cfg and prepares the shared macro table, include resolver
// and loader.
func New(cfg *config.Config) (*App, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	macros := preprocessor.NewMacroTable()
	for _, entry := range cfg.Macros {
		if err := macros.DefineEntry(entry); err != nil {
			return nil, err
		}
	}

	includes, err := preprocessor.NewIncludeResolver(cfg.IncludePaths, preprocessor.DefaultIncludeCacheSize)
	if err != nil {
		return nil, err
	}

	excludeGlobs, err := compileGlobs(cfg.Exclude, "exclude")
	if err != nil {
		return nil, err
	}
	dirGlobs, err := compileGlobs(cfg.ExcludeDirs, "exclude dir")
	if err != nil {
		return nil, err
	}

	a := &App{
		Config:       cfg,
		macros:       macros,
		includes:     includes,
		excludeGlobs: excludeGlobs,
		dirGlobs:     dirGlobs,
		loader: parser.NewLoader(parser.Options{
			Preprocess:         cfg.Preprocess,
			Macros:             macros,
			Includes:           includes,
			SubstituteUseNames: cfg.SubstituteUseNames,
		}),
	}

	if cfg.History.Enabled {
		store, err := history.Open(cfg.History.Path)
		if err != nil {
			slog.Warn("run history disabled", "path", cfg.History.Path, "error", err)
		} else {
			a.history = store
		}
	}
	return a, nil
}

func (a *App) Close() error {
	if a.history != nil {
		return a.history.Close()
	}
	return nil
}

// History returns the run store, or nil when history is disabled.
func (a *App) History() ports.RunStore {
	return a.history
}

// SetHistory replaces the run store. The previous store is not closed.
func (a *App) SetHistory(store ports.RunStore) {
	a.history = store
}

// Macros returns the command line macro table.
func (a *App) Macros() *preprocessor.MacroTable {
	return a.macros
}

func (a *App) graphConfig() graph.Config {
	cfg := graph.Config{
		Ignores: a.Config.IgnoreModules,
		Workers: a.Config.Workers,
	}
	if !a.Config.NoDefaultIgnores {
		cfg.DefaultIgnores = graph.DefaultIgnoredModules()
	}
	return cfg
}

// Build discovers, parses and analyzes the configured sources without
// writing anything.
func (a *App) Build(ctx context.Context) (*parser.Batch, *graph.Project, error) {
	paths, err := a.DiscoverSources()
	if err != nil {
		return nil, nil, err
	}
	batch, err := parser.ParseAll(ctx, a.loader, paths, a.Config.Workers)
	if err != nil {
		return nil, nil, err
	}
	project, err := graph.Build(ctx, batch.Files, a.graphConfig())
	if err != nil {
		return nil, nil, err
	}
	return batch, project, nil
}

func compileGlobs(patterns []string, label string) ([]glob.Glob, error) {
	out := make([]glob.Glob, 0, len(patterns))
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid %s pattern %q: %w", label, pattern, err)
		}
		out = append(out, g)
	}
	return out, nil
}
