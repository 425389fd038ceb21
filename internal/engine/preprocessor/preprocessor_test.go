package preprocessor

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	domainErrors "fortrandep/internal/core/errors"

	"github.com/google/go-cmp/cmp"
)

func run(t *testing.T, macros map[string]string, src string) []string {
	t.Helper()
	out, err := runErr(macros, nil, src)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	return out
}

func runErr(macros map[string]string, inc *IncludeResolver, src string) ([]string, error) {
	tbl := NewMacroTable()
	for k, v := range macros {
		tbl.Define(k, v)
	}
	lines := SplitSource("test.F90", []byte(src))
	res, err := New(tbl, inc).Process(lines)
	if err != nil {
		return nil, err
	}
	return Texts(res.Lines), nil
}

func TestIfdefElseUndefined(t *testing.T) {
	got := run(t, nil, "#ifdef FOO\ncode1\n#else\ncode2\n#endif\n")
	if diff := cmp.Diff([]string{"code2"}, got); diff != "" {
		t.Fatalf("output mismatch (-want +got):\n%s", diff)
	}
}

func TestIfdefElseDefined(t *testing.T) {
	got := run(t, map[string]string{"FOO": ""}, "before\n#ifdef FOO\ncode1\n#else\ncode2\n#endif\nafter\n")
	if diff := cmp.Diff([]string{"before", "code1", "after"}, got); diff != "" {
		t.Fatalf("output mismatch (-want +got):\n%s", diff)
	}
}

func TestNestedInnerUndefined(t *testing.T) {
	src := "#ifdef OUTER\n#ifdef INNER\ncode1\n#endif\n#endif\n"
	got := run(t, map[string]string{"OUTER": ""}, src)
	if len(got) != 0 {
		t.Fatalf("expected empty output, got %q", got)
	}
}

func TestIfndef(t *testing.T) {
	got := run(t, nil, "#ifndef GUARD\nyes\n#else\nno\n#endif\n")
	if diff := cmp.Diff([]string{"yes"}, got); diff != "" {
		t.Fatalf("output mismatch (-want +got):\n%s", diff)
	}
}

func TestDeepNesting(t *testing.T) {
	src := strings.Join([]string{
		"#ifdef A",
		"a1",
		"#ifdef B",
		"b1",
		"#ifndef C",
		"c1",
		"#else",
		"c2",
		"#endif",
		"b2",
		"#else",
		"nb",
		"#endif",
		"a2",
		"#endif",
		"tail",
	}, "\n")

	got := run(t, map[string]string{"A": "", "B": ""}, src)
	if diff := cmp.Diff([]string{"a1", "b1", "c1", "b2", "a2", "tail"}, got); diff != "" {
		t.Fatalf("A,B: (-want +got):\n%s", diff)
	}
	got = run(t, map[string]string{"A": "", "C": ""}, src)
	if diff := cmp.Diff([]string{"a1", "nb", "a2", "tail"}, got); diff != "" {
		t.Fatalf("A,C: (-want +got):\n%s", diff)
	}
	got = run(t, map[string]string{"B": ""}, src)
	if diff := cmp.Diff([]string{"tail"}, got); diff != "" {
		t.Fatalf("B: (-want +got):\n%s", diff)
	}
}

func TestDefinesInUntakenBranchStayInvisible(t *testing.T) {
	src := strings.Join([]string{
		"#ifdef NEVER",
		"#define HIDDEN",
		"#endif",
		"#ifdef HIDDEN",
		"leaked",
		"#endif",
		"x = HIDDEN",
	}, "\n")
	got := run(t, nil, src)
	if diff := cmp.Diff([]string{"x = HIDDEN"}, got); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
}

func TestDefinesInTakenBranchGateNestedBlocks(t *testing.T) {
	src := strings.Join([]string{
		"#ifdef OUTER",
		"#define INNER",
		"#ifdef INNER",
		"inner",
		"#endif",
		"#endif",
		"#ifdef INNER",
		"after",
		"#endif",
	}, "\n")
	got := run(t, map[string]string{"OUTER": ""}, src)
	if diff := cmp.Diff([]string{"inner", "after"}, got); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
}

func TestBranchDefineOnlyGatesLaterSiblings(t *testing.T) {
	src := strings.Join([]string{
		"#ifdef A",
		"#ifdef B",
		"x = 1",
		"#endif",
		"#define B",
		"#ifdef B",
		"y = 2",
		"#endif",
		"#endif",
	}, "\n")
	got := run(t, map[string]string{"A": ""}, src)
	if diff := cmp.Diff([]string{"y = 2"}, got); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
}

func TestTopLevelDefineAndSubstitution(t *testing.T) {
	src := "#define WP 8\n#define FLAG\nreal(kind=WP) :: x\n#ifdef FLAG\ny = WP\n#endif\n"
	got := run(t, nil, src)
	if diff := cmp.Diff([]string{"real(kind=8) :: x", "y = 8"}, got); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
}

func TestIfExpressions(t *testing.T) {
	tests := []struct {
		expr string
		want bool
	}{
		{"defined(FOO)", true},
		{"defined FOO", true},
		{"!defined(FOO)", false},
		{"defined(BAR)", false},
		{"1", true},
		{"0", false},
		{"FOO", true},
		{"ZERO", false},
		{"BAR", false},
		{"!BAR", true},
	}
	tbl := NewMacroTable()
	tbl.Define("FOO", "")
	tbl.Define("ZERO", "0")
	for _, tt := range tests {
		got, err := EvalCondition(tt.expr, tbl)
		if err != nil {
			t.Fatalf("EvalCondition(%q) failed: %v", tt.expr, err)
		}
		if got != tt.want {
			t.Errorf("EvalCondition(%q) = %v, want %v", tt.expr, got, tt.want)
		}
	}

	if _, err := EvalCondition("FOO > 2", tbl); err == nil {
		t.Fatal("expected arithmetic to be unsupported")
	}
}

func TestDirectiveErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		code domainErrors.ErrorCode
		line int
	}{
		{"Elif", "#ifdef A\nx\n#elif B\ny\n#endif", domainErrors.CodeNotSupported, 3},
		{"SecondElse", "#ifdef A\nx\n#else\ny\n#else\nz\n#endif", domainErrors.CodeUnbalancedDirective, 5},
		{"StrayEndif", "x\n#endif", domainErrors.CodeUnbalancedDirective, 2},
		{"StrayElse", "#else", domainErrors.CodeUnbalancedDirective, 1},
		{"Unclosed", "a\n#ifdef A\n#ifndef B\n#endif\n", domainErrors.CodeUnbalancedDirective, 2},
		{"BadIf", "#if A + B\nx\n#endif", domainErrors.CodeNotSupported, 1},
		{"EmptyIfdef", "#ifdef\nx\n#endif", domainErrors.CodeNotSupported, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runErr(nil, nil, tt.src)
			if !domainErrors.IsCode(err, tt.code) {
				t.Fatalf("expected %s, got %v", tt.code, err)
			}
			if line, ok := domainErrors.ContextValue(err, domainErrors.CtxLine); !ok || line != tt.line {
				t.Fatalf("expected line %d in context, got %v", tt.line, line)
			}
		})
	}
}

func TestIdempotentOnDirectiveFreeText(t *testing.T) {
	src := "#define N 3\n#ifdef N\nx = N\n#else\nx = 0\n#endif\ny = 1\n"
	macros := map[string]string{"M": "4"}
	once := run(t, macros, src)
	twice := run(t, macros, strings.Join(once, "\n"))
	if diff := cmp.Diff(once, twice); diff != "" {
		t.Fatalf("second pass changed output (-once +twice):\n%s", diff)
	}
}

func TestResidualDirectivesDropped(t *testing.T) {
	got := run(t, nil, "#undef X\n#pragma once\nkeep\n#define F(x) x\n#line 3\n")
	if diff := cmp.Diff([]string{"keep"}, got); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
}

func TestIncludeExpansion(t *testing.T) {
	dir := t.TempDir()
	incDir := filepath.Join(dir, "inc")
	other := filepath.Join(dir, "other")
	for _, d := range []string{incDir, other} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	writeFile(t, filepath.Join(incDir, "defs.h"), "#define HAVE_X\n#include \"nested.h\"\nfrom_inc\n")
	writeFile(t, filepath.Join(other, "defs.h"), "shadowed\n")

	inc, err := NewIncludeResolver([]string{incDir, other, incDir}, 0)
	if err != nil {
		t.Fatalf("NewIncludeResolver failed: %v", err)
	}
	if len(inc.Paths()) != 2 {
		t.Fatalf("expected duplicate search path to be dropped, got %v", inc.Paths())
	}

	src := "#include \"defs.h\"\n#ifdef HAVE_X\nhave_x\n#endif\n"
	tbl := NewMacroTable()
	res, err := New(tbl, inc).Process(SplitSource("main.F90", []byte(src)))
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if diff := cmp.Diff([]string{"from_inc", "have_x"}, Texts(res.Lines)); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
	if len(res.Includes) != 1 || res.Includes[0] != filepath.Join(incDir, "defs.h") {
		t.Fatalf("unexpected includes %v", res.Includes)
	}
	if res.Lines[0].File != filepath.Join(incDir, "defs.h") || res.Lines[0].Num != 3 {
		t.Fatalf("included line should keep its origin, got %+v", res.Lines[0])
	}
	if tbl.Defined("HAVE_X") {
		t.Fatal("base macro table must not be mutated by Process")
	}

	_, err = runErr(nil, inc, "#include 'missing.h'\n")
	if !domainErrors.IsCode(err, domainErrors.CodeIncludeNotFound) {
		t.Fatalf("expected include-not-found, got %v", err)
	}
	_, err = runErr(nil, nil, "#include 'defs.h'\n")
	if !domainErrors.IsCode(err, domainErrors.CodeIncludeNotFound) {
		t.Fatalf("expected include-not-found without resolver, got %v", err)
	}
}

func TestSplitSource(t *testing.T) {
	lines := SplitSource("a.f90", []byte("! header\n\nmodule a\r\n   ! note\nend module a\n"))
	want := []Line{
		{Text: "module a", File: "a.f90", Num: 3},
		{Text: "end module a", File: "a.f90", Num: 5},
	}
	if diff := cmp.Diff(want, lines); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
	if HasDirectives(lines) {
		t.Fatal("no directive lines expected")
	}
}

func TestBuildTreeShape(t *testing.T) {
	lines := FromTexts("t.F90", []string{"#ifdef A", "#ifdef B", "#endif", "#else", "#if 1", "#endif", "#endif", "#ifndef C", "#endif"})
	tree, err := BuildTree(lines, nil)
	if err != nil {
		t.Fatalf("BuildTree failed: %v", err)
	}
	frames := tree.Frames()
	if len(frames) != 2 {
		t.Fatalf("expected 2 top-level frames, got %d", len(frames))
	}
	outer := frames[0]
	if outer.Open != 0 || outer.Else != 3 || outer.End != 6 {
		t.Fatalf("unexpected outer indices %+v", outer)
	}
	kids := outer.Children()
	if len(kids) != 2 || kids[0].Test != "B" || kids[1].Kind != FrameIf {
		t.Fatalf("unexpected children %+v", kids)
	}
	if frames[1].Kind != FrameIfndef || frames[1].Else != -1 {
		t.Fatalf("unexpected second frame %+v", frames[1])
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
