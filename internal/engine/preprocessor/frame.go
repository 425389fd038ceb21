package preprocessor

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	domainErrors "fortrandep/internal/core/errors"
	"fortrandep/internal/engine/token"
)

// FrameKind names the directive that opened a Frame.
type FrameKind string

const (
	FrameIfdef  FrameKind = "ifdef"
	FrameIfndef FrameKind = "ifndef"
	FrameIf     FrameKind = "if"
)

type nodeKind int

const (
	textNode nodeKind = iota
	defineNode
	frameNode
)

// node is one element of a branch body: a text line, a #define or a
// nested frame.
type node struct {
	kind  nodeKind
	line  Line
	tok   token.Token
	frame *Frame
}

// Frame is one #ifdef/#ifndef/#if ... [#else] ... #endif block. Indices
// refer to positions in the line slice the tree was built from.
type Frame struct {
	Kind FrameKind
	// Test is the macro name for ifdef/ifndef and the expression for if.
	Test string
	Open int
	Else int // -1 without an #else
	End  int

	then      []node
	otherwise []node
}

// Children returns the frames nested directly in either branch.
func (f *Frame) Children() []*Frame {
	var out []*Frame
	for _, body := range [][]node{f.then, f.otherwise} {
		for _, n := range body {
			if n.kind == frameNode {
				out = append(out, n.frame)
			}
		}
	}
	return out
}

// Tree is the conditional structure of one line sequence.
type Tree struct {
	lines []Line
	root  []node
}

// Frames returns the top-level frames.
func (t *Tree) Frames() []*Frame {
	var out []*Frame
	for _, n := range t.root {
		if n.kind == frameNode {
			out = append(out, n.frame)
		}
	}
	return out
}

// BuildTree scans lines once and nests conditionals with an explicit
// stack. Lines that are neither text, defines nor conditionals are
// dropped and reported through drop.
func BuildTree(lines []Line, drop func(Line, token.Token)) (*Tree, error) {
	tree := &Tree{lines: lines}
	var stack []*Frame
	current := func() *[]node {
		if len(stack) == 0 {
			return &tree.root
		}
		top := stack[len(stack)-1]
		if top.Else >= 0 {
			return &top.otherwise
		}
		return &top.then
	}

	for i, l := range lines {
		tok := token.Classify(l.Text)
		switch tok.Kind {
		case token.DirectiveOpen:
			f := &Frame{Kind: FrameKind(tok.Directive), Open: i, Else: -1, End: -1}
			if f.Kind == FrameIf {
				f.Test = tok.Expr
			} else {
				f.Test = tok.Name
			}
			if f.Test == "" {
				return nil, directiveError(domainErrors.CodeNotSupported,
					fmt.Sprintf("#%s without a condition", tok.Directive), l)
			}
			body := current()
			*body = append(*body, node{kind: frameNode, line: l, frame: f})
			stack = append(stack, f)
		case token.DirectiveElif:
			return nil, directiveError(domainErrors.CodeNotSupported, "#elif is not supported", l)
		case token.DirectiveElse:
			if len(stack) == 0 {
				return nil, directiveError(domainErrors.CodeUnbalancedDirective, "#else without an open conditional", l)
			}
			top := stack[len(stack)-1]
			if top.Else >= 0 {
				return nil, directiveError(domainErrors.CodeUnbalancedDirective, "second #else in conditional", l)
			}
			top.Else = i
		case token.DirectiveClose:
			if len(stack) == 0 {
				return nil, directiveError(domainErrors.CodeUnbalancedDirective, "#endif without an open conditional", l)
			}
			stack[len(stack)-1].End = i
			stack = stack[:len(stack)-1]
		case token.DefineRef:
			if tok.FuncLike {
				if drop != nil {
					drop(l, tok)
				}
				continue
			}
			body := current()
			*body = append(*body, node{kind: defineNode, line: l, tok: tok})
		case token.DirectiveInclude, token.DirectiveOther:
			if drop != nil {
				drop(l, tok)
			}
		default:
			body := current()
			*body = append(*body, node{kind: textNode, line: l})
		}
	}
	if len(stack) > 0 {
		top := stack[len(stack)-1]
		return nil, directiveError(domainErrors.CodeUnbalancedDirective,
			fmt.Sprintf("#%s is never closed", top.Kind), lines[top.Open])
	}
	return tree, nil
}

// Resolve evaluates the tree against macros and returns the surviving
// text lines in a fresh slice. Top-level #defines are registered before
// any frame is evaluated. Inside a selected branch a #define takes effect
// where it appears, so it gates later siblings but not earlier ones.
// Bodies that are not selected are skipped whole, defines included.
func (t *Tree) Resolve(macros *MacroTable) ([]Line, error) {
	for _, n := range t.root {
		if n.kind == defineNode {
			macros.Define(n.tok.Name, n.tok.Value)
		}
	}
	out := make([]Line, 0, len(t.lines))
	if err := resolveBody(t.root, macros, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func resolveBody(body []node, macros *MacroTable, out *[]Line) error {
	for _, n := range body {
		switch n.kind {
		case defineNode:
			macros.Define(n.tok.Name, n.tok.Value)
		case textNode:
			*out = append(*out, n.line)
		case frameNode:
			taken, err := n.frame.evaluate(macros)
			if err != nil {
				return directiveError(domainErrors.CodeNotSupported, err.Error(), n.line)
			}
			selected := n.frame.otherwise
			if taken {
				selected = n.frame.then
			}
			if err := resolveBody(selected, macros, out); err != nil {
				return err
			}
		}
	}
	return nil
}

func (f *Frame) evaluate(macros *MacroTable) (bool, error) {
	switch f.Kind {
	case FrameIfdef:
		return macros.Defined(f.Test), nil
	case FrameIfndef:
		return !macros.Defined(f.Test), nil
	default:
		return EvalCondition(f.Test, macros)
	}
}

var (
	definedParenRe = regexp.MustCompile(`^defined\s*\(\s*([A-Za-z_]\w*)\s*\)$`)
	definedBareRe  = regexp.MustCompile(`^defined\s+([A-Za-z_]\w*)$`)
	intLiteralRe   = regexp.MustCompile(`^[0-9]+$`)
	bareNameRe     = regexp.MustCompile(`^[A-Za-z_]\w*$`)
)

// EvalCondition evaluates the #if forms understood here: defined(NAME),
// defined NAME, an integer literal or a bare NAME, each optionally negated
// with '!'. Anything else is unsupported.
func EvalCondition(expr string, macros *MacroTable) (bool, error) {
	expr = strings.TrimSpace(expr)
	negate := false
	for strings.HasPrefix(expr, "!") {
		negate = !negate
		expr = strings.TrimSpace(expr[1:])
	}
	var result bool
	switch {
	case definedParenRe.MatchString(expr):
		result = macros.Defined(definedParenRe.FindStringSubmatch(expr)[1])
	case definedBareRe.MatchString(expr):
		result = macros.Defined(definedBareRe.FindStringSubmatch(expr)[1])
	case intLiteralRe.MatchString(expr):
		n, err := strconv.Atoi(expr)
		if err != nil {
			return false, fmt.Errorf("unsupported #if expression %q", expr)
		}
		result = n != 0
	case bareNameRe.MatchString(expr):
		v, ok := macros.Lookup(expr)
		result = ok && strings.TrimSpace(v) != "0"
	default:
		return false, fmt.Errorf("unsupported #if expression %q", expr)
	}
	if negate {
		result = !result
	}
	return result, nil
}

func directiveError(code domainErrors.ErrorCode, msg string, l Line) error {
	err := domainErrors.New(code, msg)
	err = domainErrors.AddContext(err, domainErrors.CtxPath, l.File)
	err = domainErrors.AddContext(err, domainErrors.CtxLine, l.Num)
	return domainErrors.AddContext(err, domainErrors.CtxDirective, strings.TrimSpace(l.Text))
}
