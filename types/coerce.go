package types

import (
	"math/big"
	"strconv"
)

// CoerceForArithmetic promotes a pair of values to a common numeric
// representation for +,-,*,/ (spec §4.1 "coerceForArithmetic"). Text
// operands are parsed numerically first; non-numeric text is an error left
// to the caller (an expression evaluator), signalled by returning ok=false.
func CoerceForArithmetic(a, b Value) (ca, cb Value, ok bool) {
	a, aok := numify(a)
	b, bok := numify(b)
	if !aok || !bok {
		return a, b, false
	}
	if a.Physical == PhysicalBigInt || b.Physical == PhysicalBigInt {
		return toBigInt(a), toBigInt(b), true
	}
	if a.Physical == PhysicalReal || b.Physical == PhysicalReal {
		return toReal(a), toReal(b), true
	}
	return a, b, true
}

func numify(v Value) (Value, bool) {
	switch v.Physical {
	case PhysicalInteger, PhysicalReal, PhysicalBigInt:
		return v, true
	case PhysicalText:
		if i, err := strconv.ParseInt(v.Text, 10, 64); err == nil {
			return Int(i), true
		}
		if f, err := strconv.ParseFloat(v.Text, 64); err == nil {
			return Real(f), true
		}
		return v, false
	case PhysicalBoolean:
		if v.Bool {
			return Int(1), true
		}
		return Int(0), true
	default:
		return v, false
	}
}

func toReal(v Value) Value {
	switch v.Physical {
	case PhysicalInteger:
		return Real(float64(v.Int))
	case PhysicalBigInt:
		f, _ := new(big.Float).SetInt(v.Big).Float64()
		return Real(f)
	default:
		return v
	}
}

func toBigInt(v Value) Value {
	switch v.Physical {
	case PhysicalInteger:
		return BigInt(big.NewInt(v.Int))
	case PhysicalReal:
		bi, _ := big.NewFloat(v.Real).Int(nil)
		return BigInt(bi)
	default:
		return v
	}
}

// CoerceForComparison prepares a pair of values for Compare, applying the
// same numeric promotion CoerceForArithmetic does but leaving non-numeric
// operands untouched (Compare itself handles the text<->numeric and JSON
// cases; this only normalizes integer/real/bigint pairings so callers that
// pre-coerce see consistent physical types).
func CoerceForComparison(a, b Value) (Value, Value) {
	if isNumeric(a.Physical) && isNumeric(b.Physical) {
		ca, cb, ok := CoerceForArithmetic(a, b)
		if ok {
			return ca, cb
		}
	}
	return a, b
}
