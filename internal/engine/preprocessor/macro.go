package preprocessor

import (
	"regexp"
	"sort"
	"strings"

	domainErrors "fortrandep/internal/core/errors"
)

// Truthy is the value bound to flag macros defined without a value.
const Truthy = "1"

var macroNameRe = regexp.MustCompile(`^[A-Za-z_]\w*$`)

type Macro struct {
	Name  string
	Value string
}

// MacroTable holds name to value bindings. It is not safe for concurrent
// mutation; each file works on its own Clone.
type MacroTable struct {
	values map[string]string
	// pattern is rebuilt lazily after the first Define following a Substitute.
	pattern *regexp.Regexp
}

func NewMacroTable() *MacroTable {
	return &MacroTable{values: make(map[string]string)}
}

// Define binds name to value, replacing any previous binding.
func (t *MacroTable) Define(name, value string) {
	if value == "" {
		value = Truthy
	}
	t.values[name] = value
	t.pattern = nil
}

// DefineEntry parses "NAME" or "NAME=VALUE" and defines it.
func (t *MacroTable) DefineEntry(entry string) error {
	name, value, _ := strings.Cut(strings.TrimSpace(entry), "=")
	name = strings.TrimSpace(name)
	if !macroNameRe.MatchString(name) {
		return domainErrors.Newf(domainErrors.CodeValidationError, "invalid macro definition %q", entry)
	}
	t.Define(name, strings.TrimSpace(value))
	return nil
}

func (t *MacroTable) Defined(name string) bool {
	_, ok := t.values[name]
	return ok
}

func (t *MacroTable) Lookup(name string) (string, bool) {
	v, ok := t.values[name]
	return v, ok
}

// LookupFold finds a macro ignoring case. Exact matches win.
func (t *MacroTable) LookupFold(name string) (string, bool) {
	if v, ok := t.values[name]; ok {
		return v, true
	}
	for _, k := range t.Names() {
		if strings.EqualFold(k, name) {
			return t.values[k], true
		}
	}
	return "", false
}

func (t *MacroTable) Len() int {
	return len(t.values)
}

// Names returns macro names longest first, ties broken alphabetically.
func (t *MacroTable) Names() []string {
	names := make([]string, 0, len(t.values))
	for k := range t.values {
		names = append(names, k)
	}
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}
		return names[i] < names[j]
	})
	return names
}

func (t *MacroTable) Macros() []Macro {
	names := t.Names()
	sort.Strings(names)
	out := make([]Macro, 0, len(names))
	for _, n := range names {
		out = append(out, Macro{Name: n, Value: t.values[n]})
	}
	return out
}

func (t *MacroTable) Clone() *MacroTable {
	c := &MacroTable{values: make(map[string]string, len(t.values))}
	for k, v := range t.values {
		c.values[k] = v
	}
	return c
}

// Substitute replaces every macro occurring at identifier boundaries.
// Longer names are tried first so FOO_BAR is never split by FOO. The
// replacement text is not scanned again.
func (t *MacroTable) Substitute(line string) string {
	if len(t.values) == 0 {
		return line
	}
	if t.pattern == nil {
		names := t.Names()
		quoted := make([]string, len(names))
		for i, n := range names {
			quoted[i] = regexp.QuoteMeta(n)
		}
		t.pattern = regexp.MustCompile(`\b(?:` + strings.Join(quoted, "|") + `)\b`)
	}
	return t.pattern.ReplaceAllStringFunc(line, func(m string) string {
		return t.values[m]
	})
}
