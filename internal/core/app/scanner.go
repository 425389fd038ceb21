package app

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	domainErrors "fortrandep/internal/core/errors"
	"fortrandep/internal/shared/util"
)

// DiscoverSources returns the configured source files after exclusion,
// sorted and without duplicates. Paths are absolute so a file named both
// explicitly and through a search directory is one source. Search
// directories are walked for files with a configured extension.
func (a *App) DiscoverSources() ([]string, error) {
	var files []string
	for _, f := range a.Config.Files {
		info, err := os.Stat(f)
		if err != nil {
			err = domainErrors.Wrap(err, domainErrors.CodeNotFound, "source file")
			return nil, domainErrors.AddContext(err, domainErrors.CtxPath, f)
		}
		if info.IsDir() {
			return nil, domainErrors.AddContext(
				domainErrors.New(domainErrors.CodeValidationError, "expected a file, got a directory"),
				domainErrors.CtxPath, f)
		}
		abs, err := absPath(f)
		if err != nil {
			return nil, err
		}
		files = append(files, abs)
	}

	walked, err := a.ScanDirectories(a.Config.SearchDirs)
	if err != nil {
		return nil, err
	}
	files = append(files, walked...)

	out := make([]string, 0, len(files))
	for _, f := range util.UniqueStrings(files) {
		if a.isExcluded(f) {
			continue
		}
		out = append(out, f)
	}
	sort.Strings(out)
	return out, nil
}

// ScanDirectories walks roots for files with a configured extension,
// skipping directories whose base name matches an exclude_dirs glob.
func (a *App) ScanDirectories(roots []string) ([]string, error) {
	exts := make(map[string]bool, len(a.Config.Extensions))
	for _, ext := range a.Config.Extensions {
		exts[ext] = true
	}

	var files []string
	for _, root := range roots {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			base := filepath.Base(path)
			if d.IsDir() {
				if path == root {
					return nil
				}
				for _, g := range a.dirGlobs {
					if g.Match(base) {
						return filepath.SkipDir
					}
				}
				return nil
			}
			if !exts[filepath.Ext(base)] {
				return nil
			}
			abs, err := absPath(path)
			if err != nil {
				return err
			}
			files = append(files, abs)
			return nil
		})
		if err != nil {
			err = domainErrors.Wrap(err, domainErrors.CodeNotFound, "search directory")
			return nil, domainErrors.AddContext(err, domainErrors.CtxPath, root)
		}
	}
	return files, nil
}

func absPath(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		err = domainErrors.Wrap(err, domainErrors.CodeInternal, "resolve source path")
		return "", domainErrors.AddContext(err, domainErrors.CtxPath, p)
	}
	return abs, nil
}

// isExcluded matches path against the exclude list: exact paths after
// normalization, or globs against either the base name or the whole path.
func (a *App) isExcluded(path string) bool {
	norm := util.NormalizePatternPath(path)
	for _, ex := range a.Config.Exclude {
		if util.NormalizePatternPath(ex) == norm {
			return true
		}
		if abs, err := filepath.Abs(ex); err == nil {
			if p, err := filepath.Abs(path); err == nil && abs == p {
				return true
			}
		}
	}
	base := filepath.Base(path)
	for _, g := range a.excludeGlobs {
		if g.Match(base) || g.Match(norm) || g.Match(strings.TrimPrefix(filepath.ToSlash(path), "/")) {
			return true
		}
	}
	return false
}
