package optimize

import (
	"math/big"
	"strings"

	"github.com/Digithought/quereus-sub006/types"
)

// foldBinary evaluates a deterministic binary operator over two literal
// values, used by the constant-folding rule (spec §4.4). ok is false for
// any operator/operand combination this folder declines to handle, in
// which case the caller leaves the expression unfolded rather than guess.
func foldBinary(op string, l, r types.Value) (types.Value, bool) {
	if types.IsNull(l) || types.IsNull(r) {
		switch strings.ToUpper(op) {
		case "AND":
			if isFalse(l) || isFalse(r) {
				return types.Bool(false), true
			}
		case "OR":
			if isTrue(l) || isTrue(r) {
				return types.Bool(true), true
			}
		}
		return types.Null, true
	}
	switch strings.ToUpper(op) {
	case "+", "-", "*", "/", "%":
		return foldArith(op, l, r)
	case "=", "<>", "!=", "<", "<=", ">", ">=":
		return foldCompare(op, l, r)
	case "AND":
		return types.Bool(isTrue(l) && isTrue(r)), true
	case "OR":
		return types.Bool(isTrue(l) || isTrue(r)), true
	case "||":
		return types.Text(l.String() + r.String()), true
	}
	return types.Value{}, false
}

func isTrue(v types.Value) bool {
	return v.Physical == types.PhysicalBoolean && v.Bool
}

func isFalse(v types.Value) bool {
	return v.Physical == types.PhysicalBoolean && !v.Bool
}

func foldArith(op string, l, r types.Value) (types.Value, bool) {
	if l.Physical == types.PhysicalBigInt || r.Physical == types.PhysicalBigInt {
		return foldArithBig(op, l, r)
	}
	if l.Physical == types.PhysicalInteger && r.Physical == types.PhysicalInteger {
		a, b := l.Int, r.Int
		switch op {
		case "+":
			return types.Int(a + b), true
		case "-":
			return types.Int(a - b), true
		case "*":
			return types.Int(a * b), true
		case "/":
			if b == 0 {
				return types.Value{}, false
			}
			return types.Int(a / b), true
		case "%":
			if b == 0 {
				return types.Value{}, false
			}
			return types.Int(a % b), true
		}
	}
	af, aok := asNumeric(l)
	bf, bok := asNumeric(r)
	if !aok || !bok {
		return types.Value{}, false
	}
	switch op {
	case "+":
		return types.Real(af + bf), true
	case "-":
		return types.Real(af - bf), true
	case "*":
		return types.Real(af * bf), true
	case "/":
		if bf == 0 {
			return types.Value{}, false
		}
		return types.Real(af / bf), true
	}
	return types.Value{}, false
}

func foldArithBig(op string, l, r types.Value) (types.Value, bool) {
	a := asBig(l)
	b := asBig(r)
	if a == nil || b == nil {
		return types.Value{}, false
	}
	out := new(big.Int)
	switch op {
	case "+":
		out.Add(a, b)
	case "-":
		out.Sub(a, b)
	case "*":
		out.Mul(a, b)
	case "/":
		if b.Sign() == 0 {
			return types.Value{}, false
		}
		out.Div(a, b)
	case "%":
		if b.Sign() == 0 {
			return types.Value{}, false
		}
		out.Mod(a, b)
	default:
		return types.Value{}, false
	}
	return types.BigInt(out), true
}

func asBig(v types.Value) *big.Int {
	switch v.Physical {
	case types.PhysicalBigInt:
		return v.Big
	case types.PhysicalInteger:
		return big.NewInt(v.Int)
	}
	return nil
}

func asNumeric(v types.Value) (float64, bool) {
	switch v.Physical {
	case types.PhysicalInteger:
		return float64(v.Int), true
	case types.PhysicalReal:
		return v.Real, true
	}
	return 0, false
}

func foldCompare(op string, l, r types.Value) (types.Value, bool) {
	ordering := types.Compare(l, r, nil)
	if ordering == types.Incomparable {
		return types.Null, true
	}
	switch op {
	case "=":
		return types.Bool(ordering == types.Equal), true
	case "<>", "!=":
		return types.Bool(ordering != types.Equal), true
	case "<":
		return types.Bool(ordering == types.Less), true
	case "<=":
		return types.Bool(ordering == types.Less || ordering == types.Equal), true
	case ">":
		return types.Bool(ordering == types.Greater), true
	case ">=":
		return types.Bool(ordering == types.Greater || ordering == types.Equal), true
	}
	return types.Value{}, false
}

// castValue applies target's physical type to v for constant folding's
// benefit. It only performs the conversions spec §4.1 treats as lossless or
// well-defined (numeric widening, text<->number parse, boolean coercion);
// anything else reports ok=false and the Cast stays unfolded for the
// runtime evaluator to handle (it owns the full coercion table).
func castValue(v types.Value, target types.LogicalType) (types.Value, bool) {
	if types.IsNull(v) {
		return types.Null, true
	}
	if v.Physical == target.Physical {
		return v, true
	}
	switch target.Physical {
	case types.PhysicalReal:
		if f, ok := asNumeric(v); ok {
			return types.Real(f), true
		}
	case types.PhysicalInteger:
		switch v.Physical {
		case types.PhysicalReal:
			return types.Int(int64(v.Real)), true
		case types.PhysicalBoolean:
			if v.Bool {
				return types.Int(1), true
			}
			return types.Int(0), true
		}
	case types.PhysicalText:
		return types.Text(v.String()), true
	}
	return types.Value{}, false
}

// foldUnary evaluates a deterministic unary operator over a literal value.
func foldUnary(op string, v types.Value) (types.Value, bool) {
	switch strings.ToUpper(op) {
	case "NOT":
		if types.IsNull(v) {
			return types.Null, true
		}
		return types.Bool(!isTrue(v)), true
	case "-":
		switch v.Physical {
		case types.PhysicalInteger:
			return types.Int(-v.Int), true
		case types.PhysicalReal:
			return types.Real(-v.Real), true
		case types.PhysicalBigInt:
			return types.BigInt(new(big.Int).Neg(v.Big)), true
		}
	}
	return types.Value{}, false
}
