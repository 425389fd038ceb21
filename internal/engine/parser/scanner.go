package parser

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	domainErrors "fortrandep/internal/core/errors"
	"fortrandep/internal/engine/preprocessor"
	"fortrandep/internal/engine/token"
)

// ScanOptions tunes unit scanning.
type ScanOptions struct {
	// UseNameMacros, when set, rewrites use targets whose name matches a
	// macro (ignoring case) to the macro's value.
	UseNameMacros *preprocessor.MacroTable
}

type marker struct {
	index int
	line  preprocessor.Line
	tok   token.Token
}

// ScanResult is the outcome of scanning one file.
type ScanResult struct {
	Units map[string]*CompilationUnit
	// Duplicates holds later units reusing a name already defined in the
	// same file. The first definition stays in Units.
	Duplicates []*CompilationUnit
	// Includes lists Fortran include targets in file order.
	Includes []string
}

// ScanUnits finds module and program units in lines and the modules each
// one uses.
func ScanUnits(path string, lines []preprocessor.Line, opts ScanOptions) (*ScanResult, error) {
	var (
		opens, closes []marker
		toks          = make([]token.Token, len(lines))
		includes      []string
	)
	for i, l := range lines {
		tok := token.Classify(l.Text)
		toks[i] = tok
		switch tok.Kind {
		case token.UnitOpen:
			opens = append(opens, marker{index: i, line: l, tok: tok})
		case token.UnitClose:
			closes = append(closes, marker{index: i, line: l, tok: tok})
		case token.IncludeRef:
			includes = append(includes, tok.Name)
		}
	}

	if len(opens) != len(closes) {
		err := domainErrors.Newf(domainErrors.CodeUnmatchedUnit,
			"found %d unit openings and %d closings", len(opens), len(closes))
		err = domainErrors.AddContext(err, domainErrors.CtxPath, path)
		if len(opens) > len(closes) {
			err = domainErrors.AddContext(err, domainErrors.CtxLine, opens[len(closes)].line.Num)
		} else {
			err = domainErrors.AddContext(err, domainErrors.CtxLine, closes[len(opens)].line.Num)
		}
		return nil, err
	}

	res := &ScanResult{Units: make(map[string]*CompilationUnit, len(opens)), Includes: includes}
	for i, open := range opens {
		end := closes[i]
		if end.index < open.index {
			err := domainErrors.New(domainErrors.CodeUnmatchedUnit, "unit closed before it was opened")
			err = domainErrors.AddContext(err, domainErrors.CtxPath, path)
			return nil, domainErrors.AddContext(err, domainErrors.CtxLine, end.line.Num)
		}
		name := open.tok.Name
		if name == "" {
			name = programNameFromPath(path)
		}
		unit := &CompilationUnit{
			Kind:  open.tok.Unit,
			Name:  name,
			File:  path,
			Start: open.line.Num,
			End:   end.line.Num,
		}
		seen := make(map[string]bool)
		for j := open.index; j < end.index; j++ {
			if toks[j].Kind != token.UseRef {
				continue
			}
			use := substituteUseName(toks[j].Name, opts.UseNameMacros)
			if seen[use] {
				continue
			}
			seen[use] = true
			unit.Uses = append(unit.Uses, use)
		}
		if _, dup := res.Units[name]; dup {
			res.Duplicates = append(res.Duplicates, unit)
			continue
		}
		res.Units[name] = unit
	}
	return res, nil
}

// FileUses returns the sorted union of the units' uses.
func FileUses(units map[string]*CompilationUnit) []string {
	set := make(map[string]struct{})
	for _, u := range units {
		for _, use := range u.Uses {
			set[use] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for use := range set {
		out = append(out, use)
	}
	sort.Strings(out)
	return out
}

func substituteUseName(name string, macros *preprocessor.MacroTable) string {
	if macros == nil {
		return name
	}
	if v, ok := macros.LookupFold(name); ok && v != preprocessor.Truthy {
		return strings.ToLower(strings.TrimSpace(v))
	}
	return name
}

func programNameFromPath(path string) string {
	base := filepath.Base(path)
	return strings.ToLower(strings.TrimSuffix(base, filepath.Ext(base)))
}

// String renders a unit for log output.
func (u *CompilationUnit) String() string {
	return fmt.Sprintf("%s %s (%s:%d-%d)", u.Kind, u.Name, u.File, u.Start, u.End)
}
