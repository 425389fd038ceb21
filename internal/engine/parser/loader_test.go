package parser

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	domainErrors "fortrandep/internal/core/errors"
	"fortrandep/internal/engine/preprocessor"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSource(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoaderPreprocessesConditionalUses(t *testing.T) {
	dir := t.TempDir()
	path := writeSource(t, dir, "solver.F90", `module solver
#ifdef USE_MPI
  use mpi
#else
  use serial_comm
#endif
end module solver
`)

	macros := preprocessor.NewMacroTable()
	macros.Define("USE_MPI", "")

	file, err := NewLoader(Options{Preprocess: true, Macros: macros}).LoadFile(path)
	require.NoError(t, err)
	assert.True(t, file.Preprocessed)
	assert.Equal(t, []string{"mpi"}, file.Uses)
	assert.Equal(t, []string{"solver"}, file.UnitNames())

	file, err = NewLoader(Options{Preprocess: true}).LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"serial_comm"}, file.Uses)
}

func TestLoaderWithoutPreprocessingSeesBothBranches(t *testing.T) {
	dir := t.TempDir()
	path := writeSource(t, dir, "a.F90", "module a\n#ifdef X\nuse b\n#else\nuse c\n#endif\nend module a\n")

	file, err := NewLoader(Options{}).LoadFile(path)
	require.NoError(t, err)
	assert.False(t, file.Preprocessed)
	assert.Equal(t, []string{"b", "c"}, file.Uses)
}

func TestLoaderErrors(t *testing.T) {
	dir := t.TempDir()
	l := NewLoader(Options{Preprocess: true})

	_, err := l.LoadFile(filepath.Join(dir, "missing.f90"))
	assert.True(t, domainErrors.IsCode(err, domainErrors.CodeNotFound), "got %v", err)

	bad := writeSource(t, dir, "bad.F90", "module a\n#ifdef X\nend module a\n")
	_, err = l.LoadFile(bad)
	assert.True(t, domainErrors.IsCode(err, domainErrors.CodeUnbalancedDirective), "got %v", err)
	path, _ := domainErrors.ContextValue(err, domainErrors.CtxPath)
	assert.Equal(t, bad, path)
}

func TestParseAll(t *testing.T) {
	dir := t.TempDir()
	paths := []string{
		writeSource(t, dir, "b.f90", "module b\nuse a\nend module b\n"),
		writeSource(t, dir, "a.f90", "module a\nend module a\n"),
		writeSource(t, dir, "broken.f90", "module c\n"),
	}

	batch, err := ParseAll(context.Background(), NewLoader(Options{}), paths, 2)
	require.NoError(t, err)
	require.Len(t, batch.Files, 2)
	assert.Equal(t, filepath.Join(dir, "a.f90"), batch.Files[0].Path)
	assert.Equal(t, filepath.Join(dir, "b.f90"), batch.Files[1].Path)
	require.Len(t, batch.Failures, 1)
	assert.True(t, domainErrors.IsCode(batch.Failures[0].Err, domainErrors.CodeUnmatchedUnit))
	assert.Contains(t, batch.Failures[0].Error(), "broken.f90")
}

func TestParseAllCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ParseAll(ctx, NewLoader(Options{}), []string{"x.f90"}, 1)
	assert.ErrorIs(t, err, context.Canceled)
}
