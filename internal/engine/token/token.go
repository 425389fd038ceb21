// Package token classifies single source lines into tagged tokens.
//
// Both the directive preprocessor and the unit scanner consume the same
// token stream, so pattern matching lives here and nowhere else.
package token

import (
	"regexp"
	"strings"
)

// Kind tags what a classified line is.
type Kind int

const (
	Text Kind = iota
	UnitOpen
	UnitClose
	UseRef
	IncludeRef
	DirectiveOpen
	DirectiveElse
	DirectiveElif
	DirectiveClose
	DefineRef
	DirectiveInclude
	DirectiveOther
)

var kindNames = [...]string{
	Text:             "Text",
	UnitOpen:         "UnitOpen",
	UnitClose:        "UnitClose",
	UseRef:           "UseRef",
	IncludeRef:       "IncludeRef",
	DirectiveOpen:    "DirectiveOpen",
	DirectiveElse:    "DirectiveElse",
	DirectiveElif:    "DirectiveElif",
	DirectiveClose:   "DirectiveClose",
	DefineRef:        "DefineRef",
	DirectiveInclude: "DirectiveInclude",
	DirectiveOther:   "DirectiveOther",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Unknown"
}

// IsDirective reports whether the kind was produced from a '#' line.
func (k Kind) IsDirective() bool {
	return k >= DirectiveOpen
}

// UnitKind distinguishes module from program units.
type UnitKind string

const (
	Module  UnitKind = "module"
	Program UnitKind = "program"
)

// Token is the classification of one line.
//
// Field use by kind:
//   - UnitOpen: Unit, Name (lowercase, empty for an unnamed program)
//   - UnitClose: Unit
//   - UseRef: Name (lowercase module name)
//   - IncludeRef, DirectiveInclude: Name (file name as written)
//   - DirectiveOpen: Directive ("ifdef", "ifndef", "if"), Name for
//     ifdef/ifndef, Expr for if
//   - DefineRef: Name, Value, FuncLike
//   - DirectiveOther, DirectiveElif: Directive
type Token struct {
	Kind      Kind
	Unit      UnitKind
	Name      string
	Value     string
	Expr      string
	Directive string
	FuncLike  bool
}

var (
	unitOpenRe  = regexp.MustCompile(`(?i)^\s*(module|program)\s+(\w+)\s*([;!].*)?$`)
	bareProgRe  = regexp.MustCompile(`(?i)^\s*program\s*(!.*)?$`)
	unitCloseRe = regexp.MustCompile(`(?i)^\s*end\s*(module|program)\b`)
	useRe       = regexp.MustCompile(`(?i)^\s*use\b(\s*,\s*(intrinsic|non_intrinsic)\s*)?(\s*::\s*|\s+)(\w+)`)
	includeRe   = regexp.MustCompile(`(?i)^\s*include\s+['"]([^'"]+)['"]`)

	directiveRe = regexp.MustCompile(`^\s*#\s*([A-Za-z_]\w*)\s*(.*)$`)
	defineRe    = regexp.MustCompile(`^([A-Za-z_]\w*)(\()?\s*(.*)$`)
	dirIncRe    = regexp.MustCompile(`^(?:"([^"]+)"|'([^']+)'|<([^>]+)>)`)
	identRe     = regexp.MustCompile(`^[A-Za-z_]\w*`)
)

// Words that may follow "module" without opening a module unit.
var notModuleNames = map[string]bool{
	"procedure":  true,
	"function":   true,
	"subroutine": true,
}

// IsDirectiveLine reports whether line is a preprocessor line.
func IsDirectiveLine(line string) bool {
	return strings.HasPrefix(strings.TrimLeft(line, " \t"), "#")
}

// Classify returns the token for a single line.
func Classify(line string) Token {
	if IsDirectiveLine(line) {
		return classifyDirective(line)
	}
	return classifyFortran(line)
}

func classifyFortran(line string) Token {
	if m := unitCloseRe.FindStringSubmatch(line); m != nil {
		return Token{Kind: UnitClose, Unit: UnitKind(strings.ToLower(m[1]))}
	}
	if m := unitOpenRe.FindStringSubmatch(line); m != nil {
		kind := UnitKind(strings.ToLower(m[1]))
		name := strings.ToLower(m[2])
		if kind == Module && notModuleNames[name] {
			return Token{Kind: Text}
		}
		return Token{Kind: UnitOpen, Unit: kind, Name: name}
	}
	if bareProgRe.MatchString(line) {
		return Token{Kind: UnitOpen, Unit: Program}
	}
	if m := useRe.FindStringSubmatch(line); m != nil {
		return Token{Kind: UseRef, Name: strings.ToLower(m[4])}
	}
	if m := includeRe.FindStringSubmatch(line); m != nil {
		return Token{Kind: IncludeRef, Name: m[1]}
	}
	return Token{Kind: Text}
}

func classifyDirective(line string) Token {
	m := directiveRe.FindStringSubmatch(line)
	if m == nil {
		// A lone '#' or '#' followed by a non-identifier.
		return Token{Kind: DirectiveOther}
	}
	keyword := strings.ToLower(m[1])
	rest := stripDirectiveComment(m[2])

	switch keyword {
	case "ifdef", "ifndef":
		return Token{Kind: DirectiveOpen, Directive: keyword, Name: identRe.FindString(rest)}
	case "if":
		return Token{Kind: DirectiveOpen, Directive: keyword, Expr: rest}
	case "else":
		return Token{Kind: DirectiveElse, Directive: keyword}
	case "elif":
		return Token{Kind: DirectiveElif, Directive: keyword, Expr: rest}
	case "endif":
		return Token{Kind: DirectiveClose, Directive: keyword}
	case "define":
		// Values may legitimately contain "//", so only block comments are cut.
		body := strings.TrimSpace(m[2])
		if i := strings.Index(body, "/*"); i >= 0 {
			body = strings.TrimSpace(body[:i])
		}
		d := defineRe.FindStringSubmatch(body)
		if d == nil {
			return Token{Kind: DirectiveOther, Directive: keyword}
		}
		return Token{
			Kind:      DefineRef,
			Directive: keyword,
			Name:      d[1],
			Value:     strings.TrimSpace(d[3]),
			FuncLike:  d[2] != "",
		}
	case "include":
		inc := dirIncRe.FindStringSubmatch(rest)
		if inc == nil {
			return Token{Kind: DirectiveOther, Directive: keyword}
		}
		name := inc[1] + inc[2] + inc[3]
		return Token{Kind: DirectiveInclude, Directive: keyword, Name: name}
	default:
		return Token{Kind: DirectiveOther, Directive: keyword}
	}
}

// stripDirectiveComment drops C style trailing comments from a directive body.
func stripDirectiveComment(s string) string {
	if i := strings.Index(s, "/*"); i >= 0 {
		s = s[:i]
	}
	if i := strings.Index(s, "//"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
