package selector

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokString
	tokNumber
	tokEq     // =
	tokNe     // <>
	tokLt     // <
	tokLe     // <=
	tokGt     // >
	tokGe     // >=
	tokLParen // (
	tokRParen // )
	tokComma  // ,
	tokPlus   // +
	tokMinus  // -
	tokStar   // *
	tokSlash  // /
)

type token struct {
	kind tokenKind
	text string
	pos  int // 1-based column in the expression
}

type lexer struct {
	src string
	i   int
	col int
}

func newLexer(src string) *lexer {
	return &lexer{src: src, col: 1}
}

func (l *lexer) nextToken() (token, error) {
	for {
		if l.i >= len(l.src) {
			return token{kind: tokEOF, pos: l.col}, nil
		}

		r, size := utf8.DecodeRuneInString(l.src[l.i:])
		if r == utf8.RuneError && size == 1 {
			return token{}, compileErrorf(l.col, "invalid utf-8")
		}
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			l.consume(size)
			continue
		}

		pos := l.col
		switch {
		case r == '\'':
			return l.readString()
		case r >= '0' && r <= '9', r == '.' && l.peekDigit():
			return l.readNumber(), nil
		case isIdentStart(r):
			return l.readIdent(), nil
		}

		switch r {
		case '=':
			l.consume(size)
			return token{kind: tokEq, text: "=", pos: pos}, nil
		case '<':
			l.consume(size)
			if l.i < len(l.src) {
				switch l.src[l.i] {
				case '>':
					l.consume(1)
					return token{kind: tokNe, text: "<>", pos: pos}, nil
				case '=':
					l.consume(1)
					return token{kind: tokLe, text: "<=", pos: pos}, nil
				}
			}
			return token{kind: tokLt, text: "<", pos: pos}, nil
		case '>':
			l.consume(size)
			if l.i < len(l.src) && l.src[l.i] == '=' {
				l.consume(1)
				return token{kind: tokGe, text: ">=", pos: pos}, nil
			}
			return token{kind: tokGt, text: ">", pos: pos}, nil
		case '(':
			l.consume(size)
			return token{kind: tokLParen, text: "(", pos: pos}, nil
		case ')':
			l.consume(size)
			return token{kind: tokRParen, text: ")", pos: pos}, nil
		case ',':
			l.consume(size)
			return token{kind: tokComma, text: ",", pos: pos}, nil
		case '+':
			l.consume(size)
			return token{kind: tokPlus, text: "+", pos: pos}, nil
		case '-':
			l.consume(size)
			return token{kind: tokMinus, text: "-", pos: pos}, nil
		case '*':
			l.consume(size)
			return token{kind: tokStar, text: "*", pos: pos}, nil
		case '/':
			l.consume(size)
			return token{kind: tokSlash, text: "/", pos: pos}, nil
		}

		return token{}, compileErrorf(pos, "unexpected character %q", r)
	}
}

// readString consumes a single-quoted SQL string literal. A doubled quote
// ('') is the escape for a literal quote.
func (l *lexer) readString() (token, error) {
	pos := l.col
	l.consume(1) // opening quote

	var out strings.Builder
	for {
		if l.i >= len(l.src) {
			return token{}, compileErrorf(pos, "unterminated string literal")
		}
		r, size := utf8.DecodeRuneInString(l.src[l.i:])
		if r == utf8.RuneError && size == 1 {
			return token{}, compileErrorf(l.col, "invalid utf-8")
		}
		if r == '\'' {
			l.consume(size)
			if l.i < len(l.src) && l.src[l.i] == '\'' {
				l.consume(1)
				out.WriteByte('\'')
				continue
			}
			return token{kind: tokString, text: out.String(), pos: pos}, nil
		}
		l.consume(size)
		out.WriteRune(r)
	}
}

func (l *lexer) readNumber() token {
	pos := l.col
	start := l.i
	seenDot := false
	seenExp := false
	afterExp := false
	for l.i < len(l.src) {
		c := l.src[l.i]
		ok := false
		switch {
		case c >= '0' && c <= '9':
			ok = true
			afterExp = false
		case c == '.' && !seenDot && !seenExp:
			seenDot = true
			ok = true
		case (c == 'e' || c == 'E') && !seenExp && l.i > start:
			seenExp = true
			afterExp = true
			ok = true
		case (c == '+' || c == '-') && afterExp:
			afterExp = false
			ok = true
		}
		if !ok {
			break
		}
		l.consume(1)
	}
	return token{kind: tokNumber, text: l.src[start:l.i], pos: pos}
}

func (l *lexer) readIdent() token {
	pos := l.col
	start := l.i
	for l.i < len(l.src) {
		r, size := utf8.DecodeRuneInString(l.src[l.i:])
		if !isIdentPart(r) {
			break
		}
		l.consume(size)
	}
	return token{kind: tokIdent, text: l.src[start:l.i], pos: pos}
}

func (l *lexer) peekDigit() bool {
	return l.i+1 < len(l.src) && l.src[l.i+1] >= '0' && l.src[l.i+1] <= '9'
}

func (l *lexer) consume(size int) {
	l.i += size
	l.col++
}

func isIdentStart(r rune) bool {
	return r == '_' || r == '$' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || unicode.IsDigit(r)
}
