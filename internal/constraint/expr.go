package constraint

import (
	"fmt"
	"strings"
)

// Expr is a compiled constraint expression.
type Expr interface {
	// Eval evaluates the expression against the fields of one item.
	Eval(fields map[string]any) (bool, error)
	String() string
}

type opKind int

const (
	opEq opKind = iota
	opNe
	opIn
)

var opNames = [...]string{opEq: "==", opNe: "!=", opIn: "in"}

// operand is a literal, list literal or field reference.
type operand struct {
	field string // set for field references
	value any    // literal: string, float64, bool or []any
}

func (o operand) String() string {
	if o.field != "" {
		return o.field
	}
	return formatValue(o.value)
}

type logicalExpr struct {
	and         bool
	left, right Expr
}

type notExpr struct{ inner Expr }

type compareExpr struct {
	op          opKind
	left, right operand
}

// truthExpr is a bare operand used as a condition.
type truthExpr struct{ operand operand }

func (e *logicalExpr) String() string {
	op := "or"
	if e.and {
		op = "and"
	}
	return fmt.Sprintf("(%s %s %s)", e.left, op, e.right)
}

func (e *notExpr) String() string     { return "not " + e.inner.String() }
func (e *compareExpr) String() string { return fmt.Sprintf("%s %s %s", e.left, opNames[e.op], e.right) }
func (e *truthExpr) String() string   { return e.operand.String() }

func formatValue(v any) string {
	switch val := v.(type) {
	case string:
		return fmt.Sprintf("%q", val)
	case []any:
		parts := make([]string, len(val))
		for i, e := range val {
			parts[i] = formatValue(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return fmt.Sprint(val)
	}
}

// Parse compiles an expression. Operators are applied left to right:
// "a or b and c" is "(a or b) and c". Use parentheses to group otherwise.
func Parse(src string) (Expr, error) {
	toks, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &exprParser{toks: toks}
	if p.peek().kind == tokEOF {
		return nil, &SyntaxError{Column: 1, Msg: "empty expression"}
	}
	e, err := p.chain()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, p.unexpected(t, "'and', 'or' or end of expression")
	}
	return e, nil
}

type exprParser struct {
	toks []token
	i    int
}

func (p *exprParser) peek() token { return p.toks[p.i] }

func (p *exprParser) next() token {
	t := p.toks[p.i]
	if t.kind != tokEOF {
		p.i++
	}
	return t
}

func (p *exprParser) unexpected(t token, want string) error {
	got := t.kind.String()
	if t.kind == tokIdent || t.kind == tokNumber {
		got = fmt.Sprintf("%s %q", got, t.text)
	}
	return &SyntaxError{Column: t.pos, Msg: fmt.Sprintf("unexpected %s, expected %s", got, want)}
}

// chain := unary (("and" | "or") unary)*
func (p *exprParser) chain() (Expr, error) {
	left, err := p.unary()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.kind != tokAnd && t.kind != tokOr {
			return left, nil
		}
		p.next()
		right, err := p.unary()
		if err != nil {
			return nil, err
		}
		left = &logicalExpr{and: t.kind == tokAnd, left: left, right: right}
	}
}

// unary := "not" unary | "(" chain ")" | comparison
func (p *exprParser) unary() (Expr, error) {
	switch p.peek().kind {
	case tokNot:
		p.next()
		inner, err := p.unary()
		if err != nil {
			return nil, err
		}
		return &notExpr{inner: inner}, nil
	case tokLParen:
		p.next()
		e, err := p.chain()
		if err != nil {
			return nil, err
		}
		if t := p.next(); t.kind != tokRParen {
			return nil, p.unexpected(t, "')'")
		}
		return e, nil
	}
	return p.comparison()
}

// comparison := operand [("==" | "!=" | "in") operand]
func (p *exprParser) comparison() (Expr, error) {
	left, err := p.operand()
	if err != nil {
		return nil, err
	}
	var op opKind
	switch p.peek().kind {
	case tokEq:
		op = opEq
	case tokNe:
		op = opNe
	case tokIn:
		op = opIn
	default:
		return &truthExpr{operand: left}, nil
	}
	p.next()
	right, err := p.operand()
	if err != nil {
		return nil, err
	}
	if op == opIn && right.field == "" {
		if _, ok := right.value.([]any); !ok {
			return nil, &SyntaxError{Column: p.toks[p.i-1].pos, Msg: "right side of 'in' must be a list or a field"}
		}
	}
	return &compareExpr{op: op, left: left, right: right}, nil
}

func (p *exprParser) operand() (operand, error) {
	t := p.next()
	switch t.kind {
	case tokIdent:
		return operand{field: t.text}, nil
	case tokLBracket:
		list, err := p.list()
		if err != nil {
			return operand{}, err
		}
		return operand{value: list}, nil
	}
	v, ok := literal(t)
	if !ok {
		return operand{}, p.unexpected(t, "field, literal or list")
	}
	return operand{value: v}, nil
}

func (p *exprParser) list() ([]any, error) {
	out := []any{}
	if p.peek().kind == tokRBracket {
		p.next()
		return out, nil
	}
	for {
		t := p.next()
		v, ok := literal(t)
		if !ok {
			return nil, p.unexpected(t, "literal")
		}
		out = append(out, v)
		switch t := p.next(); t.kind {
		case tokComma:
			if p.peek().kind == tokRBracket {
				p.next()
				return out, nil
			}
		case tokRBracket:
			return out, nil
		default:
			return nil, p.unexpected(t, "',' or ']'")
		}
	}
}

func literal(t token) (any, bool) {
	switch t.kind {
	case tokString:
		return t.text, true
	case tokNumber:
		return t.num, true
	case tokTrue:
		return true, true
	case tokFalse:
		return false, true
	default:
		return nil, false
	}
}
