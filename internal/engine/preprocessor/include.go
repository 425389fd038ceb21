package preprocessor

import (
	"fmt"
	"os"
	"path/filepath"

	domainErrors "fortrandep/internal/core/errors"
	"fortrandep/internal/shared/observability"
	"fortrandep/internal/shared/util"

	lru "github.com/hashicorp/golang-lru/v2"
)

const DefaultIncludeCacheSize = 256

// IncludeResolver locates '#include' targets across ordered search paths
// and caches their split content. It is safe for concurrent use.
type IncludeResolver struct {
	paths []string
	cache *lru.Cache[string, []Line]
}

// NewIncludeResolver expands and deduplicates paths, keeping their order.
func NewIncludeResolver(paths []string, cacheSize int) (*IncludeResolver, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultIncludeCacheSize
	}
	cache, err := lru.New[string, []Line](cacheSize)
	if err != nil {
		return nil, domainErrors.Wrap(err, domainErrors.CodeInternal, "create include cache")
	}
	expanded, err := util.ExpandPaths(paths)
	if err != nil {
		return nil, domainErrors.Wrap(err, domainErrors.CodeValidationError, "expand include paths")
	}
	return &IncludeResolver{paths: expanded, cache: cache}, nil
}

func (r *IncludeResolver) Paths() []string {
	return append([]string(nil), r.paths...)
}

// Find returns the first search path entry containing name.
func (r *IncludeResolver) Find(name string) (string, bool) {
	if filepath.IsAbs(name) {
		if isFile(name) {
			return filepath.Clean(name), true
		}
		return "", false
	}
	for _, dir := range r.paths {
		candidate := filepath.Join(dir, name)
		if isFile(candidate) {
			return candidate, true
		}
	}
	return "", false
}

// Load resolves name and returns its lines.
func (r *IncludeResolver) Load(name string) (string, []Line, error) {
	path, ok := r.Find(name)
	if !ok {
		return "", nil, domainErrors.New(domainErrors.CodeIncludeNotFound,
			fmt.Sprintf("include %q not found in %d search paths", name, len(r.paths)))
	}
	if lines, ok := r.cache.Get(path); ok {
		observability.IncludeCacheLookups.WithLabelValues("hit").Inc()
		return path, lines, nil
	}
	observability.IncludeCacheLookups.WithLabelValues("miss").Inc()
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, domainErrors.Wrap(err, domainErrors.CodeIncludeNotFound, "read include")
	}
	lines := SplitSource(path, data)
	r.cache.Add(path, lines)
	return path, lines, nil
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Purge drops every cached include body. Watch mode calls it before a
// regeneration so edited include files are read again.
func (r *IncludeResolver) Purge() {
	r.cache.Purge()
}
