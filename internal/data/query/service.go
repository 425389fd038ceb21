// Package query answers questions about an analyzed project: unit
// listings, unit details, use chains and rebuild impact.
package query

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	domainErrors "fortrandep/internal/core/errors"
	"fortrandep/internal/engine/graph"
)

type Service struct {
	project *graph.Project
}

func NewService(p *graph.Project) *Service {
	return &Service{project: p}
}

// ListUnits returns every unit whose name contains filter, sorted by name.
func (s *Service) ListUnits(ctx context.Context, filter string, limit int) ([]UnitSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dependents := s.dependentCounts()
	filter = strings.ToLower(strings.TrimSpace(filter))
	rows := make([]UnitSummary, 0)
	for _, name := range s.project.UnitNames() {
		if filter != "" && !strings.Contains(name, filter) {
			continue
		}
		rows = append(rows, s.summary(name, dependents))
	}

	if limit > 0 && len(rows) > limit {
		return rows[:limit], nil
	}
	return rows, nil
}

func (s *Service) summary(name string, dependents map[string]int) UnitSummary {
	u, _ := s.project.Unit(name)
	return UnitSummary{
		Name:            name,
		Kind:            string(u.Kind),
		File:            u.File,
		UseCount:        len(s.project.UnitUses(name)),
		DependencyCount: len(s.project.ModuleDeps(name)),
		DependentCount:  dependents[name],
	}
}

func (s *Service) dependentCounts() map[string]int {
	counts := make(map[string]int)
	for _, name := range s.project.UnitNames() {
		for _, dep := range s.project.ModuleDeps(name) {
			counts[dep]++
		}
	}
	return counts
}

func (s *Service) UnitDetails(ctx context.Context, name string) (UnitDetails, error) {
	if err := ctx.Err(); err != nil {
		return UnitDetails{}, err
	}

	name = strings.ToLower(strings.TrimSpace(name))
	u, ok := s.project.Unit(name)
	if !ok {
		err := domainErrors.Newf(domainErrors.CodeNotFound, "unit not found: %s", name)
		return UnitDetails{}, domainErrors.AddContext(err, domainErrors.CtxModule, name)
	}

	var dependents []string
	for _, other := range s.project.UnitNames() {
		for _, dep := range s.project.ModuleDeps(other) {
			if dep == name {
				dependents = append(dependents, other)
				break
			}
		}
	}
	sort.Strings(dependents)

	details := UnitDetails{
		Name:         name,
		Kind:         string(u.Kind),
		File:         u.File,
		Uses:         s.project.UnitUses(name),
		Dependencies: s.project.ModuleDeps(name),
		Dependents:   dependents,
	}
	if u.IsProgram() {
		closure, err := s.project.Closure(name)
		if err != nil {
			return UnitDetails{}, err
		}
		details.Closure = closure
	}
	return details, nil
}

// DependencyTrace returns the shortest use chain from one unit to another.
func (s *Service) DependencyTrace(ctx context.Context, from, to string, maxDepth int) (TraceResult, error) {
	if err := ctx.Err(); err != nil {
		return TraceResult{}, err
	}

	from = strings.ToLower(strings.TrimSpace(from))
	to = strings.ToLower(strings.TrimSpace(to))
	path, ok := s.project.UseChain(from, to)
	if !ok {
		return TraceResult{}, domainErrors.Newf(domainErrors.CodeNotFound, "no path from %s to %s", from, to)
	}
	depth := len(path) - 1
	if maxDepth > 0 && depth > maxDepth {
		return TraceResult{}, fmt.Errorf("trace depth %d exceeds max_depth %d", depth, maxDepth)
	}

	return TraceResult{
		From:  from,
		To:    to,
		Path:  path,
		Depth: depth,
	}, nil
}

// Impact lists the files to rebuild when file changes. file may be given
// with or without its directory when the base name is unique.
func (s *Service) Impact(ctx context.Context, file string) (ImpactResult, error) {
	if err := ctx.Err(); err != nil {
		return ImpactResult{}, err
	}

	path, err := s.resolveFile(file)
	if err != nil {
		return ImpactResult{}, err
	}
	return ImpactResult{File: path, Affected: s.project.Dependents(path)}, nil
}

func (s *Service) resolveFile(file string) (string, error) {
	clean := filepath.Clean(file)
	if _, ok := s.project.File(clean); ok {
		return clean, nil
	}
	if abs, err := filepath.Abs(clean); err == nil {
		if _, ok := s.project.File(abs); ok {
			return abs, nil
		}
	}

	var matches []string
	for _, f := range s.project.Files() {
		if filepath.Base(f.Path) == filepath.Base(clean) {
			matches = append(matches, f.Path)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		err := domainErrors.Newf(domainErrors.CodeNotFound, "file not in project: %s", file)
		return "", domainErrors.AddContext(err, domainErrors.CtxPath, file)
	default:
		err := domainErrors.Newf(domainErrors.CodeValidationError, "%s matches %d files: %s", file, len(matches), strings.Join(matches, ", "))
		return "", domainErrors.AddContext(err, domainErrors.CtxPath, file)
	}
}
