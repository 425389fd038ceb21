// Package preprocessor resolves the C style directives found in Fortran
// sources: #include, #define and #ifdef/#ifndef/#if/#else/#endif.
package preprocessor

import (
	"log/slog"

	domainErrors "fortrandep/internal/core/errors"
	"fortrandep/internal/engine/token"
)

// Result is the flat directive-free output of one Process call.
type Result struct {
	Lines []Line
	// Macros is the table after every define in taken branches.
	Macros *MacroTable
	// Includes lists resolved #include files in first-use order.
	Includes []string
}

type Preprocessor struct {
	macros   *MacroTable
	includes *IncludeResolver
}

// New returns a preprocessor seeded with macros. The table is cloned on
// every Process call, so one Preprocessor can serve many goroutines.
// includes may be nil, in which case every #include fails.
func New(macros *MacroTable, includes *IncludeResolver) *Preprocessor {
	if macros == nil {
		macros = NewMacroTable()
	}
	return &Preprocessor{macros: macros, includes: includes}
}

// Process runs include expansion, define extraction, conditional
// resolution and macro substitution over lines.
func (p *Preprocessor) Process(lines []Line) (*Result, error) {
	expanded, includes, err := p.expandIncludes(lines)
	if err != nil {
		return nil, err
	}

	tree, err := BuildTree(expanded, func(l Line, tok token.Token) {
		slog.Debug("dropping directive", "path", l.File, "line", l.Num, "directive", tok.Directive, "text", l.Text)
	})
	if err != nil {
		return nil, err
	}

	macros := p.macros.Clone()
	resolved, err := tree.Resolve(macros)
	if err != nil {
		return nil, err
	}

	for i := range resolved {
		resolved[i].Text = macros.Substitute(resolved[i].Text)
	}
	return &Result{Lines: resolved, Macros: macros, Includes: includes}, nil
}

// expandIncludes splices included files in place of #include lines.
// Included text is not searched for further includes.
func (p *Preprocessor) expandIncludes(lines []Line) ([]Line, []string, error) {
	var (
		out      = make([]Line, 0, len(lines))
		includes []string
		seen     = make(map[string]bool)
	)
	for _, l := range lines {
		tok := token.Classify(l.Text)
		if tok.Kind != token.DirectiveInclude {
			out = append(out, l)
			continue
		}
		if p.includes == nil {
			return nil, nil, directiveError(domainErrors.CodeIncludeNotFound, "no include search paths configured", l)
		}
		path, body, err := p.includes.Load(tok.Name)
		if err != nil {
			de := domainErrors.AddContext(err, domainErrors.CtxPath, l.File)
			de = domainErrors.AddContext(de, domainErrors.CtxLine, l.Num)
			return nil, nil, domainErrors.AddContext(de, domainErrors.CtxDirective, l.Text)
		}
		out = append(out, body...)
		if !seen[path] {
			seen[path] = true
			includes = append(includes, path)
		}
	}
	return out, includes, nil
}

// ProcessTexts is a convenience wrapper for callers holding plain strings.
func (p *Preprocessor) ProcessTexts(file string, texts []string) ([]string, error) {
	res, err := p.Process(FromTexts(file, texts))
	if err != nil {
		return nil, err
	}
	return Texts(res.Lines), nil
}
