// Package selector compiles operator-supplied message filter expressions into
// validated selectors the broker can evaluate. The grammar is the SQL92-like
// boolean expression language of JMS message selectors: comparisons, LIKE,
// BETWEEN, IN, IS NULL, AND/OR/NOT and arithmetic on numeric properties.
//
// Compilation validates syntax and property names only; evaluation against
// real messages is the broker's job.
package selector

import (
	"fmt"
	"strings"
)

// Selector is a validated, immutable filter expression. The zero value
// matches all messages.
type Selector struct {
	expr string
	root node
}

// MatchAll selects every message. It is what an empty or absent filter
// expression compiles to.
var MatchAll = Selector{}

// String returns the expression as the operator wrote it, whitespace-trimmed.
// Timestamp literals are rewritten only in the compiled form, not here.
// Empty for MatchAll.
func (s Selector) String() string {
	return s.expr
}

// IsMatchAll reports whether s selects every message.
func (s Selector) IsMatchAll() bool {
	return s.root == nil
}

// Matches evaluates the selector against a message's property map. It exists
// for the broker side of the contract (session implementations and test
// fakes); the core engines never evaluate selectors themselves. A result of
// unknown (missing property, type mismatch) means not selected.
func (s Selector) Matches(props map[string]any) bool {
	if s.root == nil {
		return true
	}
	return s.root.eval(props) == true
}

// CompileError describes why an expression was rejected. Position is the
// 1-based column in the (timestamp-rewritten) expression.
type CompileError struct {
	Reason   string
	Position int
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("compile selector: %s (position %d)", e.Reason, e.Position)
}

func compileErrorf(pos int, format string, args ...any) error {
	return &CompileError{Reason: fmt.Sprintf(format, args...), Position: pos}
}

// Compile validates expr and returns the selector to pass to broker calls.
// A blank expression compiles to MatchAll, never to an error. Malformed
// syntax or unknown standard property names return a *CompileError; no
// broker call is ever made here.
//
// Human-readable timestamp literals ('2019-01-01 00:00:00.000') are rewritten
// to the epoch-millisecond form JMSTimestamp comparisons expect before
// validation.
func Compile(expr string) (Selector, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return MatchAll, nil
	}

	rewritten := rewriteTimestampLiterals(expr)

	p := &parser{lex: newLexer(rewritten)}
	if err := p.advance(); err != nil {
		return Selector{}, err
	}
	root, err := p.parseOr()
	if err != nil {
		return Selector{}, err
	}
	if p.cur.kind != tokEOF {
		return Selector{}, compileErrorf(p.cur.pos, "unexpected %q after expression", p.cur.text)
	}
	return Selector{expr: expr, root: root}, nil
}
