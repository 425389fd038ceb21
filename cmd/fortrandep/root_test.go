package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"fortrandep/internal/core/config"
	domainErrors "fortrandep/internal/core/errors"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeSource(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "fortrandep v"+versionString+"\n", out)
}

func TestGenerateFromPositionalFiles(t *testing.T) {
	dir := t.TempDir()
	a := writeSource(t, dir, "a.f90", "module a\nend module a\n")
	main := writeSource(t, dir, "main.f90", "program main\nuse a\nend program main\n")
	dest := filepath.Join(dir, "depends.mak")

	out, err := execute(t, "--output", dest, "--build", "obj", "--relative-to", dir, a, main)
	require.NoError(t, err)
	assert.Contains(t, out, "success")

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Contains(t, string(data), "obj/main.o : obj/a.o main.f90")
	assert.Contains(t, string(data), "bin/main : obj/a.o obj/main.o")
}

func TestGenerateSubcommandFailsOnUnresolved(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "a.f90", "module a\nuse nowhere\nend module a\n")
	dest := filepath.Join(dir, "depends.mak")

	out, err := execute(t, "generate", "--output", dest, src)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errFailed))
	assert.Contains(t, out, "nowhere")
	assert.FileExists(t, dest)

	_, err = execute(t, "generate", "--output", dest, "--ignore-mods", "nowhere,other", "--overwrite", src)
	require.NoError(t, err)
}

func TestGenerateWithConfigFile(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "a.F90", "module a\n#ifdef WITH_B\nuse b\n#endif\nend module a\n")
	writeSource(t, dir, "b.f90", "module b\nend module b\n")
	dest := filepath.Join(dir, "rules.mak")
	cfgPath := writeSource(t, dir, "fortrandep.toml", strings.Join([]string{
		`search_dirs = ["` + filepath.ToSlash(dir) + `"]`,
		`preprocess = true`,
		`[output]`,
		`path = "` + filepath.ToSlash(dest) + `"`,
		`build_dir = "build"`,
		`relative_to = "` + filepath.ToSlash(dir) + `"`,
	}, "\n")+"\n")

	_, err := execute(t, "--config", cfgPath, "--macros", "WITH_B", "--quiet")
	require.NoError(t, err)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Contains(t, string(data), "build/a.o : build/b.o a.F90")
}

func TestPreprocessCommand(t *testing.T) {
	dir := t.TempDir()
	in := writeSource(t, dir, "in.F90", "#define N 4\nprogram p\n#ifdef FAST\ninteger :: k = N\n#endif\nend program p\n")
	dest := filepath.Join(dir, "out.f90")

	out, err := execute(t, "preprocess", "--macros", "FAST", in, dest)
	require.NoError(t, err)
	assert.Contains(t, out, "Output written to")

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "program p\ninteger :: k = 4\nend program p\n", string(data))

	_, err = execute(t, "preprocess", in, dest)
	require.Error(t, err)
	assert.True(t, domainErrors.IsCode(err, domainErrors.CodeOutputExists))

	_, err = execute(t, "preprocess", in)
	assert.Error(t, err)
}

func TestObjectsCommand(t *testing.T) {
	dir := t.TempDir()
	depfile := writeSource(t, dir, "depends.mak", "#\n#: build_dir = out\n#: src/a.f90\n#: src/b.F90\n")
	dest := filepath.Join(dir, "objects.mak")

	_, err := execute(t, "objects", "--ext", "obj", depfile, dest)
	require.NoError(t, err)
	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Contains(t, string(data), "objects :=\nobjects += out/a.obj\nobjects += out/b.obj\n")
}

func TestProjectFlagsApply(t *testing.T) {
	f := &projectFlags{}
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	f.register(fs)
	require.NoError(t, fs.Parse([]string{
		"--exclude", "a.f90 b.f90",
		"--ignore-mods", "mpi,omp_lib",
		"--macros", "DEBUG, N=3",
		"--skip-programs",
	}))

	cfg := config.DefaultConfig()
	f.apply(fs, cfg, []string{"x.f90"})

	assert.Equal(t, []string{"x.f90"}, cfg.Files)
	assert.Empty(t, cfg.SearchDirs)
	assert.Equal(t, []string{"a.f90", "b.f90"}, cfg.Exclude)
	assert.Equal(t, []string{"mpi", "omp_lib"}, cfg.IgnoreModules)
	assert.Equal(t, []string{"DEBUG", "N=3"}, cfg.Macros)
	assert.True(t, cfg.Output.SkipPrograms)
	assert.False(t, cfg.Output.Overwrite)
	assert.Equal(t, "depends.mak", cfg.Output.Path)
}

func TestQueryCommand(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "a.f90", "module a\nend module a\n")
	writeSource(t, dir, "b.f90", "module b\nuse a\nend module b\n")
	writeSource(t, dir, "main.f90", "program main\nuse b\nend program main\n")

	out, err := execute(t, "query", "--dirs", dir, "--trace", "main:a")
	require.NoError(t, err)
	assert.Equal(t, "main -> b -> a\n", out)

	out, err = execute(t, "query", "--dirs", dir, "SELECT units WHERE dependents = 0")
	require.NoError(t, err)
	assert.Contains(t, out, "main\tprogram\t")
	assert.NotContains(t, out, "\nb\t")

	out, err = execute(t, "query", "--dirs", dir, "--unit", "main")
	require.NoError(t, err)
	assert.Contains(t, out, "closure:      a b")

	_, err = execute(t, "query", "--dirs", dir, "--trace", "main")
	assert.Error(t, err)
}
