package watcher

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewWatcher_RejectsNilCallback(t *testing.T) {
	w, err := NewWatcher(100*time.Millisecond, nil, nil, nil)
	if err == nil {
		t.Fatal("expected error for nil callback")
	}
	if !errors.Is(err, os.ErrInvalid) {
		t.Fatalf("expected os.ErrInvalid, got %v", err)
	}
	if w != nil {
		t.Fatal("expected nil watcher when callback is invalid")
	}
}

func TestNewWatcher_RejectsBadGlob(t *testing.T) {
	if _, err := NewWatcher(time.Millisecond, []string{"["}, nil, func([]string) {}); err == nil {
		t.Fatal("expected invalid glob to be rejected")
	}
}

func waitFor(t *testing.T, ch <-chan []string, want string, within time.Duration) {
	t.Helper()
	timeout := time.After(within)
	for {
		select {
		case paths := <-ch:
			for _, p := range paths {
				if p == want {
					return
				}
			}
		case <-timeout:
			t.Fatalf("timed out waiting for change to %s", want)
		}
	}
}

func TestWatcher(t *testing.T) {
	tmpDir := t.TempDir()

	changedFiles := make(chan []string, 8)
	w, err := NewWatcher(100*time.Millisecond, []string{"build"}, []string{"*_gen.f90"}, func(paths []string) {
		changedFiles <- paths
	})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	w.SetExtensions([]string{".f90", "inc"})

	if err := w.Watch([]string{tmpDir}); err != nil {
		t.Fatal(err)
	}

	testFile := filepath.Join(tmpDir, "solver.F90")
	if err := os.WriteFile(testFile, []byte("module solver\nend module solver\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, changedFiles, testFile, 2*time.Second)

	excluded := filepath.Join(tmpDir, "table_gen.f90")
	if err := os.WriteFile(excluded, []byte("module table\nend module table\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	select {
	case paths := <-changedFiles:
		for _, p := range paths {
			if p == excluded {
				t.Error("excluded file triggered event")
			}
		}
	case <-time.After(400 * time.Millisecond):
	}

	subdir := filepath.Join(tmpDir, "physics")
	if err := os.MkdirAll(subdir, 0o755); err != nil {
		t.Fatal(err)
	}
	subFile := filepath.Join(subdir, "consts.inc")
	if err := os.WriteFile(subFile, []byte("integer, parameter :: n = 3\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, changedFiles, subFile, 2*time.Second)
}

func TestWatcher_RenameTriggersChange(t *testing.T) {
	tmpDir := t.TempDir()

	changedFiles := make(chan []string, 8)
	w, err := NewWatcher(100*time.Millisecond, nil, nil, func(paths []string) {
		changedFiles <- paths
	})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := w.Watch([]string{tmpDir}); err != nil {
		t.Fatal(err)
	}

	oldPath := filepath.Join(tmpDir, "old.f90")
	newPath := filepath.Join(tmpDir, "new.f90")
	if err := os.WriteFile(oldPath, []byte("program old\nend program old\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(oldPath, newPath); err != nil {
		t.Fatal(err)
	}

	timeout := time.After(2 * time.Second)
	for {
		select {
		case paths := <-changedFiles:
			for _, p := range paths {
				if p == oldPath || p == newPath {
					return
				}
			}
		case <-timeout:
			t.Fatalf("timed out waiting for rename event, old=%s new=%s", oldPath, newPath)
		}
	}
}

func TestWatcher_Filters(t *testing.T) {
	w, err := NewWatcher(10*time.Millisecond, []string{".git"}, []string{"scratch*"}, func([]string) {})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if w.shouldExcludeFile("main.F90") {
		t.Fatal("expected upper-case extension to match default .f90 filter")
	}
	if !w.shouldExcludeFile("depends.mak") {
		t.Fatal("expected generated makefile to be ignored")
	}
	if !w.shouldExcludeFile("scratch.f90") {
		t.Fatal("expected glob exclude to apply")
	}
	if !w.shouldExcludeDir("/src/.git") {
		t.Fatal("expected .git to be excluded")
	}

	w.SetExtensions(nil)
	if w.shouldExcludeFile("notes.txt") {
		t.Fatal("expected empty extension list to admit every file")
	}
}

func TestWatcher_FlushSortsAndClears(t *testing.T) {
	var got [][]string
	w, err := NewWatcher(time.Hour, nil, nil, func(paths []string) {
		got = append(got, paths)
	})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	w.scheduleChange("b.f90")
	w.scheduleChange("a.f90")
	w.scheduleChange("b.f90")
	w.flushChanges()
	w.flushChanges()

	if len(got) != 1 {
		t.Fatalf("expected one callback, got %d", len(got))
	}
	if len(got[0]) != 2 || got[0][0] != "a.f90" || got[0][1] != "b.f90" {
		t.Fatalf("unexpected batch %v", got[0])
	}
}
