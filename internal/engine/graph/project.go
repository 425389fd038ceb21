// Package graph builds the project-wide unit registry and the module and
// file dependency graphs used to emit build rules.
package graph

import (
	"context"
	"sort"
	"strings"
	"sync"

	domainErrors "fortrandep/internal/core/errors"
	"fortrandep/internal/engine/parser"
	"fortrandep/internal/shared/observability"
)

type Stage int

const (
	StageRaw Stage = iota
	StageModulesIndexed
	StageIgnoresApplied
	StageDirectDepsComputed
	StageClosuresComputed
	StageReady
)

func (s Stage) String() string {
	switch s {
	case StageRaw:
		return "raw"
	case StageModulesIndexed:
		return "modules-indexed"
	case StageIgnoresApplied:
		return "ignores-applied"
	case StageDirectDepsComputed:
		return "direct-deps-computed"
	case StageClosuresComputed:
		return "closures-computed"
	case StageReady:
		return "ready"
	default:
		return "unknown"
	}
}

// DefaultIgnoredModules returns the intrinsic modules every compiler
// provides. Callers pass them in through Config.
func DefaultIgnoredModules() []string {
	return []string{
		"ieee_arithmetic",
		"ieee_exceptions",
		"ieee_features",
		"iso_c_binding",
		"iso_fortran_env",
	}
}

type Config struct {
	// DefaultIgnores is merged with Ignores. Build does not add the
	// intrinsic set on its own.
	DefaultIgnores []string
	Ignores        []string
	// Workers bounds parallel closure computation; <= 0 means NumCPU.
	Workers int
}

// Project is the analyzed view of a set of source files. It is read-only
// once Build returns.
type Project struct {
	stage Stage

	files map[string]*parser.SourceFile
	paths []string

	units    map[string]*parser.CompilationUnit
	unitUses map[string][]string
	fileUses map[string][]string
	ignored  map[string]struct{}

	syms *SymbolTable
	adj  [][]int

	moduleDeps *DependencyGraph
	fileDeps   *DependencyGraph

	closureMu sync.Mutex
	closures  map[string][]string

	diagMu   sync.Mutex
	diags    []Diagnostic
	diagSeen map[diagKey]bool
}

// Build runs every stage over files. Resolution problems become
// diagnostics; the returned error is only set on cancellation.
func Build(ctx context.Context, files []*parser.SourceFile, cfg Config) (*Project, error) {
	ctx, span := observability.StartStage(ctx, "graph.build")
	defer span.End()

	p := &Project{
		files:    make(map[string]*parser.SourceFile, len(files)),
		units:    make(map[string]*parser.CompilationUnit),
		unitUses: make(map[string][]string),
		fileUses: make(map[string][]string),
		ignored:  make(map[string]struct{}),
		syms:     NewSymbolTable(),
		closures: make(map[string][]string),
		diagSeen: make(map[diagKey]bool),
	}
	for _, f := range files {
		if _, dup := p.files[f.Path]; dup {
			continue
		}
		p.files[f.Path] = f
		p.paths = append(p.paths, f.Path)
	}
	sort.Strings(p.paths)

	p.indexUnits()
	p.applyIgnores(append(append([]string(nil), cfg.DefaultIgnores...), cfg.Ignores...))
	p.computeDirectDeps()
	if err := p.computeClosures(ctx, cfg.Workers); err != nil {
		observability.RecordError(span, err)
		return nil, err
	}
	p.reportCycles()
	p.stage = StageReady

	observability.GraphModules.Set(float64(len(p.units)))
	observability.GraphEdges.Set(float64(p.moduleDeps.EdgeCount()))
	return p, nil
}

func (p *Project) indexUnits() {
	for _, path := range p.paths {
		f := p.files[path]
		for _, u := range f.SortedUnits() {
			if first, ok := p.units[u.Name]; ok {
				p.report(Diagnostic{
					Kind:     DiagAmbiguous,
					Module:   u.Name,
					Referrer: u.File,
					File:     first.File,
					Detail:   "unit " + u.Name + " also defined in " + first.File,
				})
				continue
			}
			p.units[u.Name] = u
		}
		for _, dup := range f.Duplicates {
			p.report(Diagnostic{
				Kind:     DiagAmbiguous,
				Module:   dup.Name,
				Referrer: dup.File,
				File:     dup.File,
				Detail:   "unit " + dup.Name + " defined twice in " + dup.File,
			})
		}
	}
	p.stage = StageModulesIndexed
}

func (p *Project) applyIgnores(names []string) {
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n != "" {
			p.ignored[n] = struct{}{}
		}
	}
	for name := range p.ignored {
		delete(p.units, name)
	}
	for name, u := range p.units {
		p.unitUses[name] = p.filterIgnored(u.Uses)
	}
	for _, path := range p.paths {
		p.fileUses[path] = p.filterIgnored(p.files[path].Uses)
	}
	p.stage = StageIgnoresApplied
}

func (p *Project) filterIgnored(uses []string) []string {
	out := make([]string, 0, len(uses))
	for _, use := range uses {
		if _, skip := p.ignored[use]; !skip {
			out = append(out, use)
		}
	}
	return out
}

func (p *Project) computeDirectDeps() {
	p.moduleDeps = NewDependencyGraph()
	for _, name := range p.UnitNames() {
		p.syms.Intern(name)
	}
	p.adj = make([][]int, p.syms.Len())

	for _, name := range p.UnitNames() {
		var deps []string
		for _, use := range p.unitUses[name] {
			if _, ok := p.units[use]; !ok {
				u := p.units[name]
				p.report(Diagnostic{Kind: DiagUnresolved, Module: use, Referrer: name, File: u.File})
				continue
			}
			deps = append(deps, use)
		}
		p.sortByFile(deps)
		p.moduleDeps.Set(name, deps)

		id, _ := p.syms.Lookup(name)
		for _, dep := range p.moduleDeps.Deps(name) {
			depID, _ := p.syms.Lookup(dep)
			p.adj[id] = append(p.adj[id], depID)
		}
	}

	// File uses are the union of unit uses, so anything unresolved here
	// was already reported against its unit.
	p.fileDeps = NewDependencyGraph()
	for _, path := range p.paths {
		var deps []string
		for _, use := range p.fileUses[path] {
			u, ok := p.units[use]
			if !ok || u.File == path {
				continue
			}
			deps = append(deps, u.File)
		}
		sort.Strings(deps)
		p.fileDeps.Set(path, deps)
	}
	p.stage = StageDirectDepsComputed
}

// sortByFile orders unit names by defining file, then by name.
func (p *Project) sortByFile(names []string) {
	sort.SliceStable(names, func(i, j int) bool {
		fi, fj := p.units[names[i]].File, p.units[names[j]].File
		if fi != fj {
			return fi < fj
		}
		return names[i] < names[j]
	})
}

func (p *Project) Stage() Stage {
	return p.stage
}

// Files returns source files sorted by path.
func (p *Project) Files() []*parser.SourceFile {
	out := make([]*parser.SourceFile, len(p.paths))
	for i, path := range p.paths {
		out[i] = p.files[path]
	}
	return out
}

func (p *Project) File(path string) (*parser.SourceFile, bool) {
	f, ok := p.files[path]
	return f, ok
}

// UnitNames returns registered unit names in sorted order.
func (p *Project) UnitNames() []string {
	out := make([]string, 0, len(p.units))
	for name := range p.units {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (p *Project) Unit(name string) (*parser.CompilationUnit, bool) {
	u, ok := p.units[strings.ToLower(name)]
	return u, ok
}

// Programs returns program units sorted by name.
func (p *Project) Programs() []*parser.CompilationUnit {
	var out []*parser.CompilationUnit
	for _, name := range p.UnitNames() {
		if u := p.units[name]; u.IsProgram() {
			out = append(out, u)
		}
	}
	return out
}

// Ignored returns the effective ignore set, sorted.
func (p *Project) Ignored() []string {
	out := make([]string, 0, len(p.ignored))
	for n := range p.ignored {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func (p *Project) IsIgnored(name string) bool {
	_, ok := p.ignored[strings.ToLower(name)]
	return ok
}

// UnitUses returns a unit's uses with ignored modules removed.
func (p *Project) UnitUses(name string) []string {
	return append([]string(nil), p.unitUses[strings.ToLower(name)]...)
}

// FileUses returns a file's uses with ignored modules removed.
func (p *Project) FileUses(path string) []string {
	return append([]string(nil), p.fileUses[path]...)
}

// ModuleDeps returns the resolved direct dependencies of a unit, sorted by
// defining file.
func (p *Project) ModuleDeps(name string) []string {
	return p.moduleDeps.Deps(strings.ToLower(name))
}

// FileDeps returns the files defining modules used by path, excluding path.
func (p *Project) FileDeps(path string) []string {
	return p.fileDeps.Deps(path)
}

func (p *Project) ModuleGraph() *DependencyGraph {
	return p.moduleDeps
}

func (p *Project) FileGraph() *DependencyGraph {
	return p.fileDeps
}

func (p *Project) notFound(name string) error {
	err := domainErrors.Newf(domainErrors.CodeNotFound, "unit %q is not registered", name)
	return domainErrors.AddContext(err, domainErrors.CtxModule, name)
}
