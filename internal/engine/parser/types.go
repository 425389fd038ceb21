// Package parser turns Fortran source files into SourceFile records:
// their program units and the modules those units use.
package parser

import (
	"sort"

	"fortrandep/internal/engine/preprocessor"
	"fortrandep/internal/engine/token"
)

// CompilationUnit is one module or program and the names it uses.
type CompilationUnit struct {
	Kind token.UnitKind
	Name string
	// File is the path of the owning SourceFile.
	File string
	Uses []string
	// Start and End are 1-based line numbers of the opening and closing
	// statements in File.
	Start int
	End   int
}

func (u *CompilationUnit) IsProgram() bool {
	return u.Kind == token.Program
}

// SourceFile is immutable once returned by a Loader.
type SourceFile struct {
	Path     string
	RawLines []preprocessor.Line
	Lines    []preprocessor.Line
	// Uses is the sorted union of every unit's uses.
	Uses  []string
	Units map[string]*CompilationUnit
	// Duplicates are units whose name was already taken in this file.
	Duplicates []*CompilationUnit
	// Includes holds Fortran 'include' statement targets as written.
	Includes []string
	// CppIncludes holds resolved '#include' files.
	CppIncludes  []string
	Preprocessed bool
}

// UnitNames returns unit names in source order.
func (f *SourceFile) UnitNames() []string {
	units := f.SortedUnits()
	names := make([]string, len(units))
	for i, u := range units {
		names[i] = u.Name
	}
	return names
}

// SortedUnits returns units ordered by their start line.
func (f *SourceFile) SortedUnits() []*CompilationUnit {
	out := make([]*CompilationUnit, 0, len(f.Units))
	for _, u := range f.Units {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Start != out[j].Start {
			return out[i].Start < out[j].Start
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func (f *SourceFile) Modules() []*CompilationUnit {
	return f.unitsOfKind(token.Module)
}

func (f *SourceFile) Programs() []*CompilationUnit {
	return f.unitsOfKind(token.Program)
}

func (f *SourceFile) unitsOfKind(kind token.UnitKind) []*CompilationUnit {
	var out []*CompilationUnit
	for _, u := range f.SortedUnits() {
		if u.Kind == kind {
			out = append(out, u)
		}
	}
	return out
}
