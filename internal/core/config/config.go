package config

import (
	"time"
)

// DefaultFile is read when no --config flag is given. Its absence is not
// an error.
const DefaultFile = "fortrandep.toml"

type Config struct {
	// Files lists sources explicitly. When empty, SearchDirs are walked.
	Files      []string `toml:"files"`
	SearchDirs []string `toml:"search_dirs"`
	Extensions []string `toml:"extensions"`
	// Exclude holds paths or glob patterns matched against source paths.
	Exclude     []string `toml:"exclude"`
	ExcludeDirs []string `toml:"exclude_dirs"`

	IgnoreModules []string `toml:"ignore_modules"`
	// NoDefaultIgnores drops the intrinsic module ignore set.
	NoDefaultIgnores bool `toml:"no_default_ignores"`

	// Macros are "NAME" or "NAME=VALUE" entries.
	Macros             []string `toml:"macros"`
	IncludePaths       []string `toml:"include_paths"`
	Preprocess         bool     `toml:"preprocess"`
	SubstituteUseNames bool     `toml:"substitute_use_names"`
	Workers            int      `toml:"workers"`

	Output        Output        `toml:"output"`
	History       History       `toml:"history"`
	Watch         Watch         `toml:"watch"`
	Observability Observability `toml:"observability"`
	Log           Log           `toml:"log"`
}

type Output struct {
	Path         string            `toml:"path"`
	Overwrite    bool              `toml:"overwrite"`
	BuildDir     string            `toml:"build_dir"`
	ObjectExt    string            `toml:"object_ext"`
	SkipPrograms bool              `toml:"skip_programs"`
	ExePrefix    string            `toml:"exe_prefix"`
	Executables  map[string]string `toml:"executables"`
	EmitIncludes bool              `toml:"emit_includes"`
	// RelativeTo rewrites source paths in rules relative to this directory.
	RelativeTo string `toml:"relative_to"`
	DOT        string `toml:"dot"`
	TSV        string `toml:"tsv"`
}

type History struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
	// Keep bounds the number of stored runs; 0 keeps everything.
	Keep int `toml:"keep"`
}

type Watch struct {
	Debounce          time.Duration `toml:"debounce"`
	RebuildsPerSecond float64       `toml:"rebuilds_per_second"`
	RebuildBurst      int           `toml:"rebuild_burst"`
}

type Observability struct {
	MetricsAddr  string `toml:"metrics_addr"`
	OTLPEndpoint string `toml:"otlp_endpoint"`
	ServiceName  string `toml:"service_name"`
}

type Log struct {
	Level string `toml:"level"`
}

// DefaultConfig returns a configuration with every default applied.
func DefaultConfig() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}
