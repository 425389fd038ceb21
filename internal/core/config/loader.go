package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	domainErrors "fortrandep/internal/core/errors"
	"fortrandep/internal/shared/util"

	"github.com/BurntSushi/toml"
)

// Load reads a TOML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domainErrors.AddContext(domainErrors.Wrap(err, domainErrors.CodeNotFound, "config file not found"), domainErrors.CtxPath, path)
		}
		return nil, err
	}

	var cfg Config
	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return nil, domainErrors.AddContext(domainErrors.Wrap(err, domainErrors.CodeValidationError, "decode config"), domainErrors.CtxPath, path)
	}
	for _, key := range md.Undecoded() {
		slog.Warn("unknown config key", "path", path, "key", key.String())
	}

	return Finalize(&cfg)
}

// LoadOptional loads path when it exists and returns defaults otherwise.
func LoadOptional(path string) (*Config, error) {
	if !util.FileExists(path) {
		return DefaultConfig(), nil
	}
	return Load(path)
}

// Finalize applies defaults, normalizes and validates cfg in place. The
// CLI calls it again after layering flag values on top of a loaded file.
func Finalize(cfg *Config) (*Config, error) {
	applyDefaults(cfg)
	normalize(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if len(cfg.Extensions) == 0 {
		cfg.Extensions = []string{".f90", ".F90"}
	}
	if len(cfg.SearchDirs) == 0 && len(cfg.Files) == 0 {
		cfg.SearchDirs = []string{"."}
	}
	if len(cfg.ExcludeDirs) == 0 {
		cfg.ExcludeDirs = []string{".git", "build"}
	}
	if strings.TrimSpace(cfg.Output.Path) == "" {
		cfg.Output.Path = "depends.mak"
	}
	if strings.TrimSpace(cfg.Output.ObjectExt) == "" {
		cfg.Output.ObjectExt = ".o"
	}
	if strings.TrimSpace(cfg.Output.ExePrefix) == "" {
		cfg.Output.ExePrefix = "bin/"
	}
	if strings.TrimSpace(cfg.History.Path) == "" {
		cfg.History.Path = filepath.Join(".fortrandep", "history.db")
	}
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 500 * time.Millisecond
	}
	if cfg.Watch.RebuildsPerSecond == 0 {
		cfg.Watch.RebuildsPerSecond = 2
	}
	if cfg.Watch.RebuildBurst == 0 {
		cfg.Watch.RebuildBurst = 1
	}
	if strings.TrimSpace(cfg.Observability.ServiceName) == "" {
		cfg.Observability.ServiceName = "fortrandep"
	}
	if strings.TrimSpace(cfg.Log.Level) == "" {
		cfg.Log.Level = "info"
	}
}

func normalize(cfg *Config) {
	cfg.Files = util.UniqueStrings(trimAll(cfg.Files))
	cfg.SearchDirs = util.UniqueStrings(trimAll(cfg.SearchDirs))
	cfg.Exclude = util.UniqueStrings(trimAll(cfg.Exclude))
	cfg.ExcludeDirs = util.UniqueStrings(trimAll(cfg.ExcludeDirs))
	cfg.IncludePaths = util.UniqueStrings(trimAll(cfg.IncludePaths))
	cfg.Macros = util.UniqueStrings(trimAll(cfg.Macros))

	exts := make([]string, 0, len(cfg.Extensions))
	for _, ext := range trimAll(cfg.Extensions) {
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		exts = append(exts, ext)
	}
	cfg.Extensions = util.UniqueStrings(exts)

	ignores := make([]string, 0, len(cfg.IgnoreModules))
	for _, m := range trimAll(cfg.IgnoreModules) {
		ignores = append(ignores, strings.ToLower(m))
	}
	cfg.IgnoreModules = util.UniqueStrings(ignores)

	if len(cfg.Output.Executables) > 0 {
		exes := make(map[string]string, len(cfg.Output.Executables))
		for prog, exe := range cfg.Output.Executables {
			exes[strings.ToLower(strings.TrimSpace(prog))] = strings.TrimSpace(exe)
		}
		cfg.Output.Executables = exes
	}
	if !strings.HasPrefix(cfg.Output.ObjectExt, ".") {
		cfg.Output.ObjectExt = "." + cfg.Output.ObjectExt
	}
	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// Validate checks values that defaults cannot repair.
func Validate(cfg *Config) error {
	if err := validateMacros(cfg); err != nil {
		return err
	}
	if err := validateOutput(cfg); err != nil {
		return err
	}
	if err := validateWatch(cfg); err != nil {
		return err
	}
	return validateLog(cfg)
}

func validateMacros(cfg *Config) error {
	for _, m := range cfg.Macros {
		name, _, _ := strings.Cut(m, "=")
		if !isIdentifier(strings.TrimSpace(name)) {
			return validationError("macros", fmt.Sprintf("invalid macro %q", m))
		}
	}
	return nil
}

func validateOutput(cfg *Config) error {
	if cfg.Output.DOT != "" && cfg.Output.DOT == cfg.Output.Path {
		return validationError("output.dot", "must differ from output.path")
	}
	if cfg.Output.TSV != "" && cfg.Output.TSV == cfg.Output.Path {
		return validationError("output.tsv", "must differ from output.path")
	}
	for prog, exe := range cfg.Output.Executables {
		if prog == "" || exe == "" {
			return validationError("output.executables", "program and executable names must be non-empty")
		}
	}
	return nil
}

func validateWatch(cfg *Config) error {
	if cfg.Watch.Debounce < 0 {
		return validationError("watch.debounce", "must not be negative")
	}
	if cfg.Watch.RebuildsPerSecond < 0 {
		return validationError("watch.rebuilds_per_second", "must not be negative")
	}
	if cfg.Workers < 0 {
		return validationError("workers", "must not be negative")
	}
	return nil
}

func validateLog(cfg *Config) error {
	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return validationError("log.level", fmt.Sprintf("unknown level %q", cfg.Log.Level))
	}
}

// SlogLevel maps the configured level name.
func (l Log) SlogLevel() slog.Level {
	switch l.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func validationError(field, msg string) error {
	err := domainErrors.New(domainErrors.CodeValidationError, field+": "+msg)
	return domainErrors.AddContext(err, "field", field)
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		isLetter := r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		isDigit := r >= '0' && r <= '9'
		if !isLetter && !(i > 0 && isDigit) {
			return false
		}
	}
	return true
}
