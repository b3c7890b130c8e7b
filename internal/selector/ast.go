package selector

import (
	"regexp"
	"strings"
)

// Evaluation uses SQL three-valued logic: a missing property or a type
// mismatch yields unknown, and a message whose selector result is unknown is
// not selected. Values are string, int64, float64 or bool; nil is unknown.

type node interface {
	eval(props map[string]any) any
}

type litNode struct {
	v any
}

func (n litNode) eval(map[string]any) any { return n.v }

type propNode struct {
	name string
}

func (n propNode) eval(props map[string]any) any {
	v, ok := props[n.name]
	if !ok {
		return nil
	}
	return v
}

type notNode struct {
	operand node
}

func (n notNode) eval(props map[string]any) any {
	b, ok := n.operand.eval(props).(bool)
	if !ok {
		return nil
	}
	return !b
}

type andNode struct {
	left, right node
}

func (n andNode) eval(props map[string]any) any {
	l, lok := n.left.eval(props).(bool)
	if lok && !l {
		return false
	}
	r, rok := n.right.eval(props).(bool)
	if rok && !r {
		return false
	}
	if lok && rok {
		return true
	}
	return nil
}

type orNode struct {
	left, right node
}

func (n orNode) eval(props map[string]any) any {
	l, lok := n.left.eval(props).(bool)
	if lok && l {
		return true
	}
	r, rok := n.right.eval(props).(bool)
	if rok && r {
		return true
	}
	if lok && rok {
		return false
	}
	return nil
}

type cmpOp int

const (
	cmpEq cmpOp = iota
	cmpNe
	cmpLt
	cmpLe
	cmpGt
	cmpGe
)

type cmpNode struct {
	op          cmpOp
	left, right node
}

func (n cmpNode) eval(props map[string]any) any {
	l := n.left.eval(props)
	r := n.right.eval(props)
	if l == nil || r == nil {
		return nil
	}

	if lf, lok := toFloat(l); lok {
		rf, rok := toFloat(r)
		if !rok {
			return nil
		}
		switch n.op {
		case cmpEq:
			return lf == rf
		case cmpNe:
			return lf != rf
		case cmpLt:
			return lf < rf
		case cmpLe:
			return lf <= rf
		case cmpGt:
			return lf > rf
		case cmpGe:
			return lf >= rf
		}
	}

	// Strings and booleans only support equality.
	if n.op != cmpEq && n.op != cmpNe {
		return nil
	}
	eq := false
	switch lv := l.(type) {
	case string:
		rv, ok := r.(string)
		if !ok {
			return nil
		}
		eq = lv == rv
	case bool:
		rv, ok := r.(bool)
		if !ok {
			return nil
		}
		eq = lv == rv
	default:
		return nil
	}
	if n.op == cmpNe {
		return !eq
	}
	return eq
}

type arithOp int

const (
	arithAdd arithOp = iota
	arithSub
	arithMul
	arithDiv
)

type arithNode struct {
	op          arithOp
	left, right node
}

func (n arithNode) eval(props map[string]any) any {
	l, lok := toFloat(n.left.eval(props))
	r, rok := toFloat(n.right.eval(props))
	if !lok || !rok {
		return nil
	}
	switch n.op {
	case arithAdd:
		return l + r
	case arithSub:
		return l - r
	case arithMul:
		return l * r
	case arithDiv:
		if r == 0 {
			return nil
		}
		return l / r
	}
	return nil
}

type negNode struct {
	operand node
}

func (n negNode) eval(props map[string]any) any {
	v, ok := toFloat(n.operand.eval(props))
	if !ok {
		return nil
	}
	return -v
}

type likeNode struct {
	operand node
	re      *regexp.Regexp
	negated bool
}

func (n likeNode) eval(props map[string]any) any {
	s, ok := n.operand.eval(props).(string)
	if !ok {
		return nil
	}
	m := n.re.MatchString(s)
	if n.negated {
		return !m
	}
	return m
}

// likePattern compiles a SQL LIKE pattern ('%' any run, '_' any single
// character, with an optional escape character) into an anchored regexp.
func likePattern(pattern string, escape byte, hasEscape bool) (*regexp.Regexp, error) {
	var re strings.Builder
	re.WriteString(`(?s)^`)
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		if hasEscape && c == escape && i+1 < len(pattern) {
			i++
			re.WriteString(regexp.QuoteMeta(string(pattern[i])))
			continue
		}
		switch c {
		case '%':
			re.WriteString(`.*`)
		case '_':
			re.WriteString(`.`)
		default:
			re.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	re.WriteString(`$`)
	return regexp.Compile(re.String())
}

type betweenNode struct {
	operand, lo, hi node
	negated         bool
}

func (n betweenNode) eval(props map[string]any) any {
	v, vok := toFloat(n.operand.eval(props))
	lo, lok := toFloat(n.lo.eval(props))
	hi, hok := toFloat(n.hi.eval(props))
	if !vok || !lok || !hok {
		return nil
	}
	in := v >= lo && v <= hi
	if n.negated {
		return !in
	}
	return in
}

type inNode struct {
	operand node
	items   []any
	negated bool
}

func (n inNode) eval(props map[string]any) any {
	v := n.operand.eval(props)
	if v == nil {
		return nil
	}
	found := false
	for _, item := range n.items {
		if (cmpNode{op: cmpEq, left: litNode{v}, right: litNode{item}}).eval(props) == true {
			found = true
			break
		}
	}
	if n.negated {
		return !found
	}
	return found
}

type isNullNode struct {
	operand node
	negated bool
}

func (n isNullNode) eval(props map[string]any) any {
	isNull := n.operand.eval(props) == nil
	if n.negated {
		return !isNull
	}
	return isNull
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}
