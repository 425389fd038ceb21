package integration

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"fortrandep/internal/core/app"
	"fortrandep/internal/core/config"
	"fortrandep/internal/output"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestFiles(t *testing.T, root string) {
	t.Helper()
	files := map[string]string{
		"src/core/kinds.f90":    "module kinds\n  implicit none\nend module kinds\n",
		"src/kernels/fast.f90":  "module fast_kernels\n  use kinds\nend module fast_kernels\n",
		"src/kernels/slow.f90":  "module slow_kernels\n  use kinds\nend module slow_kernels\n",
		"src/include/config.h":  "#define HAVE_FAST\n",
		"src/app/main.f90":      "program driver\n  use solver, only: solve\n  use iso_fortran_env\nend program driver\n",
		"src/solver/solve.F90":  "module solver\n#include \"config.h\"\n#ifdef HAVE_FAST\n  use fast_kernels\n#else\n  use slow_kernels\n#endif\n  use kinds\nend module solver\n",
		"src/solver/README.txt": "module not_fortran\n",
	}
	for name, content := range files {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func TestFullPipelineIntegration(t *testing.T) {
	root := t.TempDir()
	createTestFiles(t, root)
	src := filepath.Join(root, "src")

	cfg := config.DefaultConfig()
	cfg.SearchDirs = []string{src}
	cfg.Preprocess = true
	cfg.IncludePaths = []string{filepath.Join(src, "include")}
	cfg.Output.Path = filepath.Join(root, "depends.mak")
	cfg.Output.BuildDir = "build"
	cfg.Output.RelativeTo = src
	cfg.Output.EmitIncludes = true

	a, err := app.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	ctx := context.Background()
	res, err := a.Generate(ctx)
	require.NoError(t, err)
	require.True(t, res.Success(), "diagnostics: %v failures: %v", res.Diagnostics, res.Failures)
	assert.Len(t, res.Project.Files(), 5)
	assert.Equal(t, []string{"kinds", "fast_kernels"}, res.Project.ModuleDeps("solver"))

	data, err := os.ReadFile(cfg.Output.Path)
	require.NoError(t, err)
	want := output.Header +
		"#: build_dir = build\n" +
		"#: app/main.f90\n" +
		"#: core/kinds.f90\n" +
		"#: kernels/fast.f90\n" +
		"#: kernels/slow.f90\n" +
		"#: solver/solve.F90\n" +
		"\nbuild/main.o : build/solve.o app/main.f90\n" +
		"\nbuild/kinds.o : core/kinds.f90\n" +
		"\nbuild/fast.o : build/kinds.o kernels/fast.f90\n" +
		"\nbuild/slow.o : build/kinds.o kernels/slow.f90\n" +
		"\nbuild/solve.o : build/kinds.o build/fast.o solver/solve.F90 include/config.h\n" +
		"\nbin/driver : build/main.o build/kinds.o build/fast.o build/solve.o\n"
	if diff := cmp.Diff(want, string(data)); diff != "" {
		t.Fatalf("rule file mismatch (-want +got):\n%s", diff)
	}

	objects := filepath.Join(root, "objects.mak")
	status, err := a.WriteObjects(cfg.Output.Path, objects, false)
	require.NoError(t, err)
	assert.Equal(t, output.StatusWritten, status)

	data, err = os.ReadFile(objects)
	require.NoError(t, err)
	assert.Equal(t, output.Header+
		"objects :=\n"+
		"objects += build/main.o\n"+
		"objects += build/kinds.o\n"+
		"objects += build/fast.o\n"+
		"objects += build/slow.o\n"+
		"objects += build/solve.o\n", string(data))

	// A second run must not clobber the rules without overwrite.
	res, err = a.Generate(ctx)
	require.NoError(t, err)
	assert.Equal(t, output.StatusExists, res.OutputStatus)
	assert.False(t, res.Success())
}

func TestPipelineWithoutMacroPicksFallbackBranch(t *testing.T) {
	root := t.TempDir()
	createTestFiles(t, root)
	src := filepath.Join(root, "src")
	require.NoError(t, os.WriteFile(filepath.Join(src, "include", "config.h"), []byte("! no features\n"), 0o644))

	cfg := config.DefaultConfig()
	cfg.SearchDirs = []string{src}
	cfg.Preprocess = true
	cfg.IncludePaths = []string{filepath.Join(src, "include")}

	a, err := app.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	_, project, err := a.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"kinds", "slow_kernels"}, project.ModuleDeps("solver"))
}
