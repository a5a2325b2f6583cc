package consteval

import (
	"fmt"
	"math"

	"lattice.build/go/corec/mir"
)

func evalUnary(op mir.UnOp, operand Result) (Result, error) {
	switch v := operand.Value.(type) {
	case mir.IntConst:
		switch op {
		case mir.Neg:
			return Result{Value: mir.IntConst{Value: -v.Value}, Ty: operand.Ty}, nil
		case mir.BitNot:
			return Result{Value: mir.IntConst{Value: ^v.Value}, Ty: operand.Ty}, nil
		}
	case mir.FloatConst:
		if op == mir.Neg {
			return Result{Value: mir.FloatConst{Value: -v.Value}, Ty: operand.Ty}, nil
		}
	case mir.BoolConst:
		if op == mir.Not {
			return Result{Value: mir.BoolConst{Value: !v.Value}, Ty: operand.Ty}, nil
		}
	}
	return Result{}, fmt.Errorf("unary operator not defined for %T", operand.Value)
}

func evalBinary(op mir.BinOp, lhs, rhs Result) (Result, error) {
	li, lok := lhs.Value.(mir.IntConst)
	ri, rok := rhs.Value.(mir.IntConst)
	if lok && rok {
		return evalIntBinary(op, li.Value, ri.Value, lhs.Ty)
	}

	lf, lfok := asFloat(lhs.Value)
	rf, rfok := asFloat(rhs.Value)
	if lfok && rfok {
		return evalFloatBinary(op, lf, rf, lhs.Ty)
	}

	lb, lbok := lhs.Value.(mir.BoolConst)
	rb, rbok := rhs.Value.(mir.BoolConst)
	if lbok && rbok {
		return evalBoolBinary(op, lb.Value, rb.Value)
	}

	ls, lsok := lhs.Value.(mir.StringConst)
	rs, rsok := rhs.Value.(mir.StringConst)
	if lsok && rsok && (op == mir.Eq || op == mir.Ne) {
		return Result{Value: mir.BoolConst{Value: (ls.Value == rs.Value) == (op == mir.Eq)}, Ty: lhs.Ty}, nil
	}

	return Result{}, fmt.Errorf("binary operator not defined between %T and %T", lhs.Value, rhs.Value)
}

func asFloat(v mir.ConstValue) (float64, bool) {
	switch n := v.(type) {
	case mir.FloatConst:
		return n.Value, true
	case mir.IntConst:
		return float64(n.Value), true
	default:
		return 0, false
	}
}

// evalIntBinary applies overflow-checked semantics (spec §4.6): an
// overflowing add/sub/mul is diagnosed rather than silently wrapping.
func evalIntBinary(op mir.BinOp, l, r int64, t any) (Result, error) {
	var out int64
	switch op {
	case mir.Add:
		out = l + r
		if (r > 0 && out < l) || (r < 0 && out > l) {
			return Result{}, fmt.Errorf("integer overflow in %d + %d", l, r)
		}
	case mir.Sub:
		out = l - r
		if (r < 0 && out < l) || (r > 0 && out > l) {
			return Result{}, fmt.Errorf("integer overflow in %d - %d", l, r)
		}
	case mir.Mul:
		out = l * r
		if l != 0 && out/l != r {
			return Result{}, fmt.Errorf("integer overflow in %d * %d", l, r)
		}
	case mir.Div:
		if r == 0 {
			return Result{}, fmt.Errorf("division by zero")
		}
		out = l / r
	case mir.Rem:
		if r == 0 {
			return Result{}, fmt.Errorf("division by zero")
		}
		out = l % r
	case mir.BitAnd:
		out = l & r
	case mir.BitOr:
		out = l | r
	case mir.BitXor:
		out = l ^ r
	case mir.Shl:
		out = l << uint64(r)
	case mir.Shr:
		out = l >> uint64(r)
	case mir.Eq:
		return boolResult(l == r), nil
	case mir.Ne:
		return boolResult(l != r), nil
	case mir.Lt:
		return boolResult(l < r), nil
	case mir.Le:
		return boolResult(l <= r), nil
	case mir.Gt:
		return boolResult(l > r), nil
	case mir.Ge:
		return boolResult(l >= r), nil
	default:
		return Result{}, fmt.Errorf("unsupported integer operator %v", op)
	}
	return Result{Value: mir.IntConst{Value: out}}, nil
}

func evalFloatBinary(op mir.BinOp, l, r float64, t any) (Result, error) {
	switch op {
	case mir.Add:
		return Result{Value: mir.FloatConst{Value: l + r}}, nil
	case mir.Sub:
		return Result{Value: mir.FloatConst{Value: l - r}}, nil
	case mir.Mul:
		return Result{Value: mir.FloatConst{Value: l * r}}, nil
	case mir.Div:
		if r == 0 {
			return Result{}, fmt.Errorf("division by zero")
		}
		return Result{Value: mir.FloatConst{Value: l / r}}, nil
	case mir.Rem:
		return Result{Value: mir.FloatConst{Value: math.Mod(l, r)}}, nil
	case mir.Eq:
		return boolResult(l == r), nil
	case mir.Ne:
		return boolResult(l != r), nil
	case mir.Lt:
		return boolResult(l < r), nil
	case mir.Le:
		return boolResult(l <= r), nil
	case mir.Gt:
		return boolResult(l > r), nil
	case mir.Ge:
		return boolResult(l >= r), nil
	default:
		return Result{}, fmt.Errorf("unsupported float operator %v", op)
	}
}

func evalBoolBinary(op mir.BinOp, l, r bool) (Result, error) {
	switch op {
	case mir.Eq:
		return boolResult(l == r), nil
	case mir.Ne:
		return boolResult(l != r), nil
	case mir.BitAnd:
		return boolResult(l && r), nil
	case mir.BitOr:
		return boolResult(l || r), nil
	case mir.BitXor:
		return boolResult(l != r), nil
	default:
		return Result{}, fmt.Errorf("unsupported boolean operator %v", op)
	}
}

func boolResult(v bool) Result {
	return Result{Value: mir.BoolConst{Value: v}}
}
