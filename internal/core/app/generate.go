package app

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	domainErrors "fortrandep/internal/core/errors"
	"fortrandep/internal/data/history"
	"fortrandep/internal/engine/graph"
	"fortrandep/internal/engine/parser"
	"fortrandep/internal/output"
	"fortrandep/internal/shared/observability"

	"go.opentelemetry.io/otel/attribute"
)

// Result summarizes one generation run.
type Result struct {
	RunID    string
	Project  *graph.Project
	Failures []parser.FileError
	// Diagnostics are the project diagnostics in report order.
	Diagnostics  []graph.Diagnostic
	OutputPath   string
	OutputStatus output.WriteStatus
	Duration     time.Duration
}

// Success is false when a file was dropped, a fatal diagnostic was
// reported or the output could not be written.
func (r *Result) Success() bool {
	if r == nil {
		return false
	}
	if len(r.Failures) > 0 || r.OutputStatus == output.StatusExists {
		return false
	}
	return r.Project == nil || r.Project.Success()
}

// Generate runs the whole pipeline and writes the rule file together with
// any configured DOT and TSV views. Analysis problems are reported in the
// Result; the error is reserved for cancellation and write failures.
func (a *App) Generate(ctx context.Context) (*Result, error) {
	return a.run(ctx, a.Config.Output.Overwrite)
}

func (a *App) run(ctx context.Context, overwrite bool) (*Result, error) {
	start := time.Now()
	ctx, span := observability.StartStage(ctx, "generate")
	defer span.End()

	res, err := a.generate(ctx, overwrite)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}
	res.Duration = time.Since(start)
	span.SetAttributes(
		attribute.Int("fortrandep.files", len(res.Project.Files())),
		attribute.Int("fortrandep.failures", len(res.Failures)),
		attribute.Bool("fortrandep.success", res.Success()),
	)
	observability.AnalysisDuration.WithLabelValues("total").Observe(res.Duration.Seconds())

	a.logDependencies(res.Project)
	a.recordRun(ctx, res)
	return res, nil
}

func (a *App) generate(ctx context.Context, overwrite bool) (*Result, error) {
	stage := time.Now()
	paths, err := a.DiscoverSources()
	if err != nil {
		return nil, err
	}
	observability.AnalysisDuration.WithLabelValues("discover").Observe(time.Since(stage).Seconds())

	stage = time.Now()
	pctx, pspan := observability.StartStage(ctx, "parse", attribute.Int("fortrandep.paths", len(paths)))
	batch, err := parser.ParseAll(pctx, a.loader, paths, a.Config.Workers)
	pspan.End()
	if err != nil {
		return nil, err
	}
	observability.AnalysisDuration.WithLabelValues("parse").Observe(time.Since(stage).Seconds())

	stage = time.Now()
	project, err := graph.Build(ctx, batch.Files, a.graphConfig())
	if err != nil {
		return nil, err
	}
	observability.AnalysisDuration.WithLabelValues("graph").Observe(time.Since(stage).Seconds())

	res := &Result{
		Project:     project,
		Failures:    batch.Failures,
		Diagnostics: project.Diagnostics(),
		OutputPath:  a.Config.Output.Path,
	}
	for _, d := range res.Diagnostics {
		slog.Warn("dependency diagnostic", "kind", d.Kind, "module", d.Module, "referrer", d.Referrer, "path", d.File)
	}

	stage = time.Now()
	if err := a.emit(ctx, res, overwrite); err != nil {
		return nil, err
	}
	observability.AnalysisDuration.WithLabelValues("emit").Observe(time.Since(stage).Seconds())
	return res, nil
}

// emit writes the rule file even when the analysis had failures, so a
// partially valid project still gets usable rules.
func (a *App) emit(ctx context.Context, res *Result, overwrite bool) error {
	_, span := observability.StartStage(ctx, "emit")
	defer span.End()

	out := a.Config.Output
	gen := output.NewMakeGenerator(res.Project, a.makeOptions())
	content, err := gen.Generate()
	if err != nil {
		return err
	}
	status, err := output.WriteGenerated(out.Path, content, overwrite)
	if err != nil {
		observability.RecordError(span, err)
		return err
	}
	res.OutputStatus = status
	if status == output.StatusWritten {
		slog.Info("wrote dependency file", "path", out.Path, "files", len(res.Project.Files()))
	}

	if out.DOT != "" {
		if err := a.writeView(out.DOT, output.NewDOTGenerator(res.Project).Generate); err != nil {
			return err
		}
	}
	if out.TSV != "" {
		if err := a.writeView(out.TSV, output.NewTSVGenerator(res.Project).Generate); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) makeOptions() output.MakeOptions {
	out := a.Config.Output
	opts := output.MakeOptions{
		BuildDir:     out.BuildDir,
		ObjectExt:    out.ObjectExt,
		SkipPrograms: out.SkipPrograms,
		ExePrefix:    out.ExePrefix,
		Executables:  out.Executables,
		EmitIncludes: out.EmitIncludes,
		BaseDir:      out.RelativeTo,
	}
	// Sources are discovered as absolute paths; without relative_to they
	// are written relative to the working directory when below it.
	if opts.BaseDir == "" {
		opts.BaseDir = "."
	}
	if abs, err := filepath.Abs(opts.BaseDir); err == nil {
		opts.BaseDir = abs
	}
	if out.EmitIncludes {
		opts.ResolveInclude = a.includes.Find
	}
	return opts
}

// writeView always replaces the file; only the rule file is protected.
func (a *App) writeView(path string, render func() (string, error)) error {
	content, err := render()
	if err != nil {
		return err
	}
	if _, err := output.WriteGenerated(path, content, true); err != nil {
		return err
	}
	slog.Debug("wrote view", "path", path)
	return nil
}

// logDependencies prints the verbose per-module and per-file listing at
// debug level.
func (a *App) logDependencies(p *graph.Project) {
	if !slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	for _, name := range p.UnitNames() {
		slog.Debug("module dependencies", "module", name, "uses", p.UnitUses(name), "depends_on", p.ModuleDeps(name))
	}
	for _, f := range p.Files() {
		slog.Debug("file dependencies", "path", f.Path, "depends_on", p.FileDeps(f.Path))
	}
}

func (a *App) recordRun(ctx context.Context, res *Result) {
	if a.history == nil {
		return
	}
	run := history.Run{
		Timestamp:       time.Now().UTC(),
		Duration:        res.Duration,
		FileCount:       len(res.Project.Files()),
		FailedFileCount: len(res.Failures),
		UnitCount:       len(res.Project.UnitNames()),
		ProgramCount:    len(res.Project.Programs()),
		EdgeCount:       res.Project.ModuleGraph().EdgeCount(),
		OutputPath:      absOrSelf(res.OutputPath),
		OutputStatus:    res.OutputStatus.String(),
		Success:         res.Success(),
	}
	for _, d := range res.Diagnostics {
		switch d.Kind {
		case graph.DiagUnresolved:
			run.UnresolvedCount++
		case graph.DiagAmbiguous:
			run.AmbiguousCount++
		case graph.DiagCycle:
			run.CycleCount++
		}
		run.Diagnostics = append(run.Diagnostics, history.Diagnostic{
			Kind:     string(d.Kind),
			Module:   d.Module,
			Referrer: d.Referrer,
			File:     d.File,
		})
	}
	for _, f := range res.Failures {
		run.Diagnostics = append(run.Diagnostics, history.Diagnostic{
			Kind:   "file",
			Module: string(domainErrors.CodeOf(f.Err)),
			File:   f.Path,
		})
	}

	id, err := a.history.SaveRun(ctx, run)
	if err != nil {
		slog.Warn("failed to record run history", "path", a.history.Path(), "error", err)
		return
	}
	res.RunID = id
	if keep := a.Config.History.Keep; keep > 0 {
		if _, err := a.history.Prune(ctx, keep); err != nil {
			slog.Warn("failed to prune run history", "error", err)
		}
	}
}

func absOrSelf(p string) string {
	if p == "" {
		return p
	}
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

// OutputExists reports whether the configured rule file is present.
func (a *App) OutputExists() bool {
	_, err := os.Stat(a.Config.Output.Path)
	return err == nil
}
