package preprocessor

import (
	"testing"

	domainErrors "fortrandep/internal/core/errors"
)

func TestMacroTableDefine(t *testing.T) {
	tbl := NewMacroTable()
	tbl.Define("FOO", "")
	if v, ok := tbl.Lookup("FOO"); !ok || v != Truthy {
		t.Fatalf("flag macro should default to %q, got %q (%v)", Truthy, v, ok)
	}
	tbl.Define("FOO", "2")
	if v, _ := tbl.Lookup("FOO"); v != "2" {
		t.Fatalf("redefinition should win, got %q", v)
	}
	if tbl.Defined("BAR") {
		t.Fatal("BAR should not be defined")
	}
}

func TestMacroTableDefineEntry(t *testing.T) {
	tbl := NewMacroTable()
	for _, entry := range []string{"USE_MPI", "PREC = 8", "NAME=mymod"} {
		if err := tbl.DefineEntry(entry); err != nil {
			t.Fatalf("DefineEntry(%q) failed: %v", entry, err)
		}
	}
	want := map[string]string{"USE_MPI": "1", "PREC": "8", "NAME": "mymod"}
	for k, v := range want {
		if got, _ := tbl.Lookup(k); got != v {
			t.Errorf("%s = %q, want %q", k, got, v)
		}
	}

	err := tbl.DefineEntry("1BAD=2")
	if !domainErrors.IsCode(err, domainErrors.CodeValidationError) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestMacroTableSubstitute(t *testing.T) {
	tbl := NewMacroTable()
	tbl.Define("FOO", "x")
	tbl.Define("FOO_BAR", "y")
	tbl.Define("A", "A_LONG")

	tests := []struct {
		in, want string
	}{
		{"call FOO_BAR(FOO)", "call y(x)"},
		{"FOOBAR = FOO", "FOOBAR = x"},
		{"A + B", "A_LONG + B"},
		{"nothing here", "nothing here"},
	}
	for _, tt := range tests {
		if got := tbl.Substitute(tt.in); got != tt.want {
			t.Errorf("Substitute(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	// Redefinition after a substitution must invalidate the pattern.
	tbl.Define("B", "z")
	if got := tbl.Substitute("A + B"); got != "A_LONG + z" {
		t.Errorf("expected rebuilt pattern, got %q", got)
	}
}

func TestMacroTableCloneAndNames(t *testing.T) {
	tbl := NewMacroTable()
	tbl.Define("AB", "1")
	tbl.Define("ABC", "1")
	tbl.Define("B", "1")

	names := tbl.Names()
	if names[0] != "ABC" || names[1] != "AB" || names[2] != "B" {
		t.Fatalf("expected longest-first order, got %v", names)
	}

	clone := tbl.Clone()
	clone.Define("NEW", "1")
	if tbl.Defined("NEW") {
		t.Fatal("clone must not share bindings with its source")
	}
	if clone.Len() != 4 || tbl.Len() != 3 {
		t.Fatalf("unexpected sizes %d/%d", clone.Len(), tbl.Len())
	}

	if v, ok := tbl.LookupFold("abc"); !ok || v != "1" {
		t.Fatalf("LookupFold should ignore case, got %q %v", v, ok)
	}
	if ms := tbl.Macros(); ms[0].Name != "AB" {
		t.Fatalf("Macros should be alphabetical, got %v", ms)
	}
}
