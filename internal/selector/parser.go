package selector

import (
	"strconv"
	"strings"
)

// Recursive-descent parser over the selector grammar:
//
//	or    := and (OR and)*
//	and   := not (AND not)*
//	not   := [NOT] pred
//	pred  := sum (cmp sum | [NOT] LIKE string [ESCAPE string]
//	              | [NOT] IN '(' literal (',' literal)* ')'
//	              | [NOT] BETWEEN sum AND sum
//	              | IS [NOT] NULL)?
//	sum   := prod (('+'|'-') prod)*
//	prod  := unary (('*'|'/') unary)*
//	unary := ['+'|'-'] prim
//	prim  := property | literal | '(' or ')'
type parser struct {
	lex *lexer
	cur token
}

func (p *parser) advance() error {
	t, err := p.lex.nextToken()
	if err != nil {
		return err
	}
	p.cur = t
	return nil
}

// keyword reports whether the current token is the given reserved word,
// matched case-insensitively as SQL does.
func (p *parser) keyword(word string) bool {
	return p.cur.kind == tokIdent && strings.EqualFold(p.cur.text, word)
}

func (p *parser) acceptKeyword(word string) (bool, error) {
	if !p.keyword(word) {
		return false, nil
	}
	return true, p.advance()
}

func (p *parser) expectKeyword(word string) error {
	ok, err := p.acceptKeyword(word)
	if err != nil {
		return err
	}
	if !ok {
		return compileErrorf(p.cur.pos, "expected %s, found %q", word, p.cur.text)
	}
	return nil
}

func (p *parser) parseOr() (node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.keyword("OR") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = orNode{left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (node, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.keyword("AND") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = andNode{left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseNot() (node, error) {
	if p.keyword("NOT") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		operand, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return notNode{operand: operand}, nil
	}
	return p.parsePredicate()
}

func (p *parser) parsePredicate() (node, error) {
	operand, err := p.parseSum()
	if err != nil {
		return nil, err
	}

	negated := false
	if p.keyword("NOT") {
		negated = true
		if err := p.advance(); err != nil {
			return nil, err
		}
	}

	switch {
	case p.cur.kind == tokEq || p.cur.kind == tokNe ||
		p.cur.kind == tokLt || p.cur.kind == tokLe ||
		p.cur.kind == tokGt || p.cur.kind == tokGe:
		if negated {
			return nil, compileErrorf(p.cur.pos, "NOT cannot precede %q", p.cur.text)
		}
		op := map[tokenKind]cmpOp{
			tokEq: cmpEq, tokNe: cmpNe,
			tokLt: cmpLt, tokLe: cmpLe,
			tokGt: cmpGt, tokGe: cmpGe,
		}[p.cur.kind]
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseSum()
		if err != nil {
			return nil, err
		}
		return cmpNode{op: op, left: operand, right: right}, nil

	case p.keyword("LIKE"):
		return p.parseLike(operand, negated)

	case p.keyword("IN"):
		return p.parseIn(operand, negated)

	case p.keyword("BETWEEN"):
		return p.parseBetween(operand, negated)

	case p.keyword("IS"):
		if negated {
			return nil, compileErrorf(p.cur.pos, "NOT cannot precede IS")
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		isNot, err := p.acceptKeyword("NOT")
		if err != nil {
			return nil, err
		}
		if err := p.expectKeyword("NULL"); err != nil {
			return nil, err
		}
		return isNullNode{operand: operand, negated: isNot}, nil

	default:
		if negated {
			return nil, compileErrorf(p.cur.pos, "expected LIKE, IN or BETWEEN after NOT, found %q", p.cur.text)
		}
		// Bare term: a boolean property (e.g. JMSRedelivered) or literal.
		return operand, nil
	}
}

func (p *parser) parseLike(operand node, negated bool) (node, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	if p.cur.kind != tokString {
		return nil, compileErrorf(p.cur.pos, "LIKE pattern must be a string literal")
	}
	patternPos := p.cur.pos
	pattern := p.cur.text
	if err := p.advance(); err != nil {
		return nil, err
	}

	var escape byte
	hasEscape := false
	ok, err := p.acceptKeyword("ESCAPE")
	if err != nil {
		return nil, err
	}
	if ok {
		if p.cur.kind != tokString || len(p.cur.text) != 1 {
			return nil, compileErrorf(p.cur.pos, "ESCAPE requires a single-character string literal")
		}
		escape = p.cur.text[0]
		hasEscape = true
		if err := p.advance(); err != nil {
			return nil, err
		}
	}

	re, err := likePattern(pattern, escape, hasEscape)
	if err != nil {
		return nil, compileErrorf(patternPos, "invalid LIKE pattern %q", pattern)
	}
	return likeNode{operand: operand, re: re, negated: negated}, nil
}

func (p *parser) parseIn(operand node, negated bool) (node, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	if p.cur.kind != tokLParen {
		return nil, compileErrorf(p.cur.pos, "expected ( after IN")
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	var items []any
	for {
		item, err := p.parseLiteralValue()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		if p.cur.kind == tokComma {
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}
		break
	}
	if p.cur.kind != tokRParen {
		return nil, compileErrorf(p.cur.pos, "expected ) to close IN list")
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	return inNode{operand: operand, items: items, negated: negated}, nil
}

func (p *parser) parseBetween(operand node, negated bool) (node, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	lo, err := p.parseSum()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("AND"); err != nil {
		return nil, err
	}
	hi, err := p.parseSum()
	if err != nil {
		return nil, err
	}
	return betweenNode{operand: operand, lo: lo, hi: hi, negated: negated}, nil
}

func (p *parser) parseSum() (node, error) {
	left, err := p.parseProduct()
	if err != nil {
		return nil, err
	}
	for p.cur.kind == tokPlus || p.cur.kind == tokMinus {
		op := arithAdd
		if p.cur.kind == tokMinus {
			op = arithSub
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseProduct()
		if err != nil {
			return nil, err
		}
		left = arithNode{op: op, left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseProduct() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.cur.kind == tokStar || p.cur.kind == tokSlash {
		op := arithMul
		if p.cur.kind == tokSlash {
			op = arithDiv
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = arithNode{op: op, left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (node, error) {
	switch p.cur.kind {
	case tokMinus:
		if err := p.advance(); err != nil {
			return nil, err
		}
		operand, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		return negNode{operand: operand}, nil
	case tokPlus:
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (node, error) {
	switch p.cur.kind {
	case tokLParen:
		if err := p.advance(); err != nil {
			return nil, err
		}
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.cur.kind != tokRParen {
			return nil, compileErrorf(p.cur.pos, "expected )")
		}
		return inner, p.advance()
	case tokNumber, tokString:
		return p.parseLiteralValueNode()
	case tokIdent:
		if isReserved(p.cur.text) {
			if p.keyword("TRUE") || p.keyword("FALSE") {
				return p.parseLiteralValueNode()
			}
			return nil, compileErrorf(p.cur.pos, "unexpected keyword %q", p.cur.text)
		}
		if err := validateProperty(p.cur.text, p.cur.pos); err != nil {
			return nil, err
		}
		n := propNode{name: p.cur.text}
		return n, p.advance()
	case tokEOF:
		return nil, compileErrorf(p.cur.pos, "unexpected end of expression")
	default:
		return nil, compileErrorf(p.cur.pos, "unexpected %q", p.cur.text)
	}
}

func (p *parser) parseLiteralValue() (any, error) {
	n, err := p.parseLiteralValueNode()
	if err != nil {
		return nil, err
	}
	return n.(litNode).v, nil
}

func (p *parser) parseLiteralValueNode() (node, error) {
	switch {
	case p.cur.kind == tokString:
		n := litNode{v: p.cur.text}
		return n, p.advance()
	case p.cur.kind == tokNumber:
		text := p.cur.text
		pos := p.cur.pos
		if err := p.advance(); err != nil {
			return nil, err
		}
		if i, err := strconv.ParseInt(text, 10, 64); err == nil {
			return litNode{v: i}, nil
		}
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, compileErrorf(pos, "invalid numeric literal %q", text)
		}
		return litNode{v: f}, nil
	case p.keyword("TRUE"):
		return litNode{v: true}, p.advance()
	case p.keyword("FALSE"):
		return litNode{v: false}, p.advance()
	default:
		return nil, compileErrorf(p.cur.pos, "expected literal, found %q", p.cur.text)
	}
}

var reservedWords = map[string]struct{}{
	"AND": {}, "OR": {}, "NOT": {}, "LIKE": {}, "ESCAPE": {}, "IN": {},
	"IS": {}, "NULL": {}, "BETWEEN": {}, "TRUE": {}, "FALSE": {},
}

func isReserved(word string) bool {
	_, ok := reservedWords[strings.ToUpper(word)]
	return ok
}

// standardProperties are the JMS header fields and provider properties that
// may be referenced by name. JMS_BEA_* are the WebLogic extension headers
// that show up in real dead-letter selectors (JMS_BEA_State LIKE 'expired').
var standardProperties = map[string]struct{}{
	"JMSMessageID":     {},
	"JMSCorrelationID": {},
	"JMSTimestamp":     {},
	"JMSType":          {},
	"JMSDeliveryMode":  {},
	"JMSDeliveryTime":  {},
	"JMSPriority":      {},
	"JMSExpiration":    {},
	"JMSRedelivered":   {},

	"JMSXUserID":        {},
	"JMSXAppID":         {},
	"JMSXDeliveryCount": {},
	"JMSXGroupID":       {},
	"JMSXGroupSeq":      {},
	"JMSXProducerTXID":  {},
	"JMSXConsumerTXID":  {},
	"JMSXRcvTimestamp":  {},
	"JMSXState":         {},

	"JMS_BEA_State":           {},
	"JMS_BEA_Size":            {},
	"JMS_BEA_DeliveryTime":    {},
	"JMS_BEA_DeliveryFailure": {},
	"JMS_BEA_RedeliveryLimit": {},
	"JMS_BEA_UnitOfOrder":     {},
}

// validateProperty rejects unknown names in the reserved JMS namespace.
// Names outside it are custom application properties and cannot be known
// statically, so any lexically valid identifier is accepted.
func validateProperty(name string, pos int) error {
	if _, ok := standardProperties[name]; ok {
		return nil
	}
	if strings.HasPrefix(strings.ToUpper(name), "JMS") {
		return compileErrorf(pos, "unknown JMS property %q", name)
	}
	return nil
}
