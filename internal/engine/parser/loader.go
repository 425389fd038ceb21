package parser

import (
	"os"
	"strconv"
	"time"

	domainErrors "fortrandep/internal/core/errors"
	"fortrandep/internal/engine/preprocessor"
	"fortrandep/internal/shared/observability"
)

// Options controls how files are read and scanned.
type Options struct {
	// Preprocess enables directive resolution for files containing '#' lines.
	Preprocess bool
	Macros     *preprocessor.MacroTable
	Includes   *preprocessor.IncludeResolver
	// SubstituteUseNames rewrites use targets that name a macro.
	SubstituteUseNames bool
}

// Loader builds SourceFiles. It holds no per-file state and may be shared
// by concurrent workers.
type Loader struct {
	opts Options
	pp   *preprocessor.Preprocessor
}

func NewLoader(opts Options) *Loader {
	if opts.Macros == nil {
		opts.Macros = preprocessor.NewMacroTable()
	}
	return &Loader{
		opts: opts,
		pp:   preprocessor.New(opts.Macros, opts.Includes),
	}
}

// LoadFile reads and parses path.
func (l *Loader) LoadFile(path string) (*SourceFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		code := domainErrors.CodeInternal
		if os.IsNotExist(err) {
			code = domainErrors.CodeNotFound
		}
		return nil, domainErrors.AddContext(domainErrors.Wrap(err, code, "read source"), domainErrors.CtxPath, path)
	}
	return l.Parse(path, data)
}

// Parse builds a SourceFile from in-memory content.
func (l *Loader) Parse(path string, data []byte) (*SourceFile, error) {
	start := time.Now()
	raw := preprocessor.SplitSource(path, data)
	file := &SourceFile{Path: path, RawLines: raw, Lines: raw}

	macros := l.opts.Macros
	if l.opts.Preprocess && preprocessor.HasDirectives(raw) {
		res, err := l.pp.Process(raw)
		if err != nil {
			return nil, err
		}
		file.Lines = res.Lines
		file.CppIncludes = res.Includes
		file.Preprocessed = true
		macros = res.Macros
	}

	var scanOpts ScanOptions
	if l.opts.SubstituteUseNames {
		scanOpts.UseNameMacros = macros
	}
	scan, err := ScanUnits(path, file.Lines, scanOpts)
	if err != nil {
		return nil, err
	}
	file.Units = scan.Units
	file.Duplicates = scan.Duplicates
	file.Includes = scan.Includes
	file.Uses = FileUses(scan.Units)

	observability.ParsingDuration.WithLabelValues(strconv.FormatBool(file.Preprocessed)).Observe(time.Since(start).Seconds())
	return file, nil
}
