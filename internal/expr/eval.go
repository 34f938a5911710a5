package expr

import (
	"fmt"

	"github.com/roach88/restsql/internal/ir"
)

// Lookup resolves a column for the current row.
type Lookup func(name string) (ir.Value, bool)

// Eval evaluates n against one row.
//
// Int op Int stays Int for + - *; division always yields Float. A null
// operand makes the result null, as does division by zero. Any other
// non-numeric operand is an EXPR_TYPE_ERROR.
func Eval(n Node, lookup Lookup) (ir.Value, error) {
	switch v := n.(type) {
	case Number:
		return v.Value, nil
	case Column:
		val, ok := lookup(v.Name)
		if !ok {
			return nil, ir.Errorf(ir.ErrCodeUnknownField, v.Name, "expression references unknown column %q", v.Name)
		}
		return val, nil
	case Unary:
		x, err := Eval(v.Operand, lookup)
		if err != nil {
			return nil, err
		}
		if ir.IsNull(x) {
			return ir.Null{}, nil
		}
		if err := requireNumeric(x, v); err != nil {
			return nil, err
		}
		if v.Op == '+' {
			return x, nil
		}
		if i, ok := x.(ir.Int); ok {
			return -i, nil
		}
		return -x.(ir.Float), nil
	case Binary:
		l, err := Eval(v.L, lookup)
		if err != nil {
			return nil, err
		}
		r, err := Eval(v.R, lookup)
		if err != nil {
			return nil, err
		}
		return arith(v, l, r)
	default:
		return nil, fmt.Errorf("unknown expression node %T", n)
	}
}

func requireNumeric(x ir.Value, at Node) error {
	if _, ok := ir.AsFloat(x); !ok {
		return ir.Errorf(ir.ErrCodeExprType, at.String(), "arithmetic on non-numeric value %s", ir.Format(x))
	}
	return nil
}

func arith(b Binary, l, r ir.Value) (ir.Value, error) {
	if ir.IsNull(l) || ir.IsNull(r) {
		return ir.Null{}, nil
	}
	if err := requireNumeric(l, b); err != nil {
		return nil, err
	}
	if err := requireNumeric(r, b); err != nil {
		return nil, err
	}

	li, lInt := l.(ir.Int)
	ri, rInt := r.(ir.Int)
	if lInt && rInt && b.Op != '/' {
		switch b.Op {
		case '+':
			return li + ri, nil
		case '-':
			return li - ri, nil
		case '*':
			return li * ri, nil
		}
	}

	lf, _ := ir.AsFloat(l)
	rf, _ := ir.AsFloat(r)
	switch b.Op {
	case '+':
		return ir.Float(lf + rf), nil
	case '-':
		return ir.Float(lf - rf), nil
	case '*':
		return ir.Float(lf * rf), nil
	case '/':
		if rf == 0 {
			return ir.Null{}, nil
		}
		return ir.Float(lf / rf), nil
	default:
		return nil, fmt.Errorf("unknown operator %q", b.Op)
	}
}
