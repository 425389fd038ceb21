package history

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "nested", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStore_SaveAndRecent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 2, 13, 10, 0, 0, 0, time.UTC)

	firstID, err := store.SaveRun(ctx, Run{
		Timestamp:    base,
		Duration:     1500 * time.Millisecond,
		FileCount:    4,
		UnitCount:    5,
		ProgramCount: 1,
		OutputPath:   "depends.mak",
		OutputStatus: "written",
		Success:      true,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, firstID)

	secondID, err := store.SaveRun(ctx, Run{
		Timestamp:       base.Add(time.Hour),
		FileCount:       4,
		UnresolvedCount: 1,
		Success:         false,
		Diagnostics: []Diagnostic{
			{Kind: "unresolved", Module: "missing", Referrer: "main", File: "main.f90"},
		},
	})
	require.NoError(t, err)
	assert.NotEqual(t, firstID, secondID)

	runs, err := store.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, secondID, runs[0].ID)
	assert.False(t, runs[0].Success)
	assert.Equal(t, 1, runs[0].UnresolvedCount)
	assert.Equal(t, firstID, runs[1].ID)
	assert.True(t, runs[1].Success)
	assert.Equal(t, 1500*time.Millisecond, runs[1].Duration)
	assert.Equal(t, "depends.mak", runs[1].OutputPath)
	assert.True(t, runs[1].Timestamp.Equal(base))

	diags, err := store.Diagnostics(ctx, secondID)
	require.NoError(t, err)
	assert.Equal(t, []Diagnostic{{Kind: "unresolved", Module: "missing", Referrer: "main", File: "main.f90"}}, diags)

	limited, err := store.Recent(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestStore_Prune(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	var ids []string
	for i := 0; i < 4; i++ {
		id, err := store.SaveRun(ctx, Run{
			Timestamp:   base.Add(time.Duration(i) * time.Minute),
			Success:     true,
			Diagnostics: []Diagnostic{{Kind: "cycle", Module: "a", Referrer: "b"}},
		})
		require.NoError(t, err)
		ids = append(ids, id)
	}

	deleted, err := store.Prune(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	runs, err := store.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, ids[3], runs[0].ID)
	assert.Equal(t, ids[2], runs[1].ID)

	diags, err := store.Diagnostics(ctx, ids[0])
	require.NoError(t, err)
	assert.Empty(t, diags)

	deleted, err = store.Prune(ctx, 0)
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

func TestStore_ReopenKeepsSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := Open(path)
	require.NoError(t, err)
	_, err = store.SaveRun(context.Background(), Run{Success: true})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()
	assert.Equal(t, path, reopened.Path())

	runs, err := reopened.Recent(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestOpen_RejectsBadPaths(t *testing.T) {
	_, err := Open("  ")
	assert.Error(t, err)

	dir := t.TempDir()
	_, err = Open(dir)
	assert.Error(t, err)

	_, statErr := os.Stat(dir)
	assert.NoError(t, statErr)
}

func TestNilStore(t *testing.T) {
	var s *Store
	assert.NoError(t, s.Close())
	assert.Equal(t, "", s.Path())
}
