package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	domainErrors "fortrandep/internal/core/errors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpfile, err := os.CreateTemp(t.TempDir(), "fortrandep*.toml")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tmpfile.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := tmpfile.Close(); err != nil {
		t.Fatal(err)
	}
	return tmpfile.Name()
}

func TestLoad(t *testing.T) {
	content := `
search_dirs = ["./src", "./src", " lib "]
extensions = ["f90", ".F90"]
exclude = ["src/legacy/*.f90"]
ignore_modules = ["MPI", "netcdf"]
macros = ["USE_MPI", "PREC=8"]
include_paths = ["include"]
preprocess = true
workers = 4

[output]
path = "build/depends.mak"
build_dir = "build"
object_ext = "obj"
skip_programs = false
dot = "build/modules.dot"

[output.executables]
Main = "bin/model.exe"

[history]
enabled = true

[watch]
debounce = "1s"
rebuilds_per_second = 0.5

[log]
level = "DEBUG"
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(cfg.SearchDirs) != 2 || cfg.SearchDirs[1] != "lib" {
		t.Errorf("expected deduplicated, trimmed search dirs, got %v", cfg.SearchDirs)
	}
	if cfg.Extensions[0] != ".f90" || cfg.Extensions[1] != ".F90" {
		t.Errorf("unexpected extensions %v", cfg.Extensions)
	}
	if cfg.IgnoreModules[0] != "mpi" {
		t.Errorf("ignore modules should be lowercased, got %v", cfg.IgnoreModules)
	}
	if !cfg.Preprocess || cfg.Workers != 4 {
		t.Errorf("unexpected preprocess/workers %v/%d", cfg.Preprocess, cfg.Workers)
	}
	if cfg.Output.ObjectExt != ".obj" {
		t.Errorf("expected .obj, got %s", cfg.Output.ObjectExt)
	}
	if cfg.Output.Executables["main"] != "bin/model.exe" {
		t.Errorf("expected lowercased program key, got %v", cfg.Output.Executables)
	}
	if cfg.Output.ExePrefix != "bin/" {
		t.Errorf("expected default exe prefix, got %s", cfg.Output.ExePrefix)
	}
	if cfg.Watch.Debounce != time.Second {
		t.Errorf("expected debounce 1s, got %v", cfg.Watch.Debounce)
	}
	if cfg.Watch.RebuildsPerSecond != 0.5 {
		t.Errorf("expected 0.5 rebuilds per second, got %v", cfg.Watch.RebuildsPerSecond)
	}
	if !cfg.History.Enabled || cfg.History.Path == "" {
		t.Errorf("expected history enabled with default path, got %+v", cfg.History)
	}
	if cfg.Log.SlogLevel() != slog.LevelDebug {
		t.Errorf("expected debug level, got %v", cfg.Log.SlogLevel())
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Output.Path != "depends.mak" {
		t.Errorf("expected depends.mak, got %s", cfg.Output.Path)
	}
	if len(cfg.SearchDirs) != 1 || cfg.SearchDirs[0] != "." {
		t.Errorf("expected current directory search, got %v", cfg.SearchDirs)
	}
	if cfg.Watch.Debounce != 500*time.Millisecond {
		t.Errorf("expected 500ms debounce, got %v", cfg.Watch.Debounce)
	}
	if cfg.Preprocess {
		t.Error("preprocessing should be opt-in")
	}
}

func TestLoadFilesSkipsDefaultSearch(t *testing.T) {
	cfg, err := Load(writeConfig(t, `files = ["a.f90", "b.f90"]`))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(cfg.SearchDirs) != 0 {
		t.Errorf("explicit files should not imply a search dir, got %v", cfg.SearchDirs)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		code    domainErrors.ErrorCode
	}{
		{"Syntax", "search_dirs = [", domainErrors.CodeValidationError},
		{"BadMacro", `macros = ["1X=2"]`, domainErrors.CodeValidationError},
		{"BadLevel", "[log]\nlevel = \"loud\"", domainErrors.CodeValidationError},
		{"NegativeWorkers", "workers = -1", domainErrors.CodeValidationError},
		{"DotClash", "[output]\npath = \"x\"\ndot = \"x\"", domainErrors.CodeValidationError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if !domainErrors.IsCode(err, tt.code) {
				t.Fatalf("expected %s, got %v", tt.code, err)
			}
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if !domainErrors.IsCode(err, domainErrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestLoadOptional(t *testing.T) {
	cfg, err := LoadOptional(filepath.Join(t.TempDir(), DefaultFile))
	if err != nil {
		t.Fatalf("LoadOptional failed: %v", err)
	}
	if cfg.Output.Path != "depends.mak" {
		t.Errorf("expected defaults, got %+v", cfg.Output)
	}
}
