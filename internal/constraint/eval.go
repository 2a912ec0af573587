package constraint

import (
	"fmt"
	"math"
)

// UndefinedFieldError is returned by Eval when the expression reads a field
// the item does not have. The rule counts as failed.
type UndefinedFieldError struct {
	Field string
}

func (e *UndefinedFieldError) Error() string {
	return fmt.Sprintf("field %q is undefined", e.Field)
}

func (e *logicalExpr) Eval(fields map[string]any) (bool, error) {
	l, err := e.left.Eval(fields)
	if err != nil {
		return false, err
	}
	if e.and && !l {
		return false, nil
	}
	if !e.and && l {
		return true, nil
	}
	return e.right.Eval(fields)
}

func (e *notExpr) Eval(fields map[string]any) (bool, error) {
	v, err := e.inner.Eval(fields)
	if err != nil {
		return false, err
	}
	return !v, nil
}

func (e *truthExpr) Eval(fields map[string]any) (bool, error) {
	v, err := e.operand.resolve(fields)
	if err != nil {
		return false, err
	}
	return truthy(v), nil
}

func (e *compareExpr) Eval(fields map[string]any) (bool, error) {
	l, err := e.left.resolve(fields)
	if err != nil {
		return false, err
	}
	r, err := e.right.resolve(fields)
	if err != nil {
		return false, err
	}
	switch e.op {
	case opIn:
		list, ok := r.([]any)
		if !ok {
			return false, nil
		}
		for _, el := range list {
			if eq, ok := equal(l, el); ok && eq {
				return true, nil
			}
		}
		return false, nil
	case opNe:
		eq, ok := equal(l, r)
		return ok && !eq, nil
	default:
		eq, ok := equal(l, r)
		return ok && eq, nil
	}
}

func (o operand) resolve(fields map[string]any) (any, error) {
	if o.field == "" {
		return o.value, nil
	}
	v, ok := fields[o.field]
	if !ok {
		return nil, &UndefinedFieldError{Field: o.field}
	}
	return normalize(v), nil
}

// normalize maps item field values onto the literal types: numbers become
// float64 and string lists become []any.
func normalize(v any) any {
	switch val := v.(type) {
	case int:
		return float64(val)
	case int64:
		return float64(val)
	case float32:
		return float64(val)
	case []string:
		out := make([]any, len(val))
		for i, s := range val {
			out[i] = s
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = normalize(e)
		}
		return out
	default:
		return v
	}
}

// equal compares two normalized values. ok is false when the types cannot
// be compared, which callers treat as "not satisfied".
func equal(a, b any) (eq, ok bool) {
	switch x := a.(type) {
	case string:
		y, ok := b.(string)
		return ok && x == y, ok
	case bool:
		y, ok := b.(bool)
		return ok && x == y, ok
	case float64:
		y, ok := b.(float64)
		return ok && math.Abs(x-y) <= 1e-9*math.Max(1, math.Max(math.Abs(x), math.Abs(y))), ok
	case []any:
		y, ok := b.([]any)
		if !ok {
			return false, false
		}
		if len(x) != len(y) {
			return false, true
		}
		for i := range x {
			if eq, ok := equal(x[i], y[i]); !ok || !eq {
				return false, true
			}
		}
		return true, true
	default:
		return false, false
	}
}

func truthy(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		return val != ""
	case float64:
		return val != 0
	case []any:
		return len(val) > 0
	default:
		return v != nil
	}
}
