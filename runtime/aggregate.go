package runtime

import (
	"math/big"

	"github.com/Digithought/quereus-sub006/errs"
	"github.com/Digithought/quereus-sub006/types"
)

// AggregateFunc is the init/step/final calling convention spec §3's
// Function schema requires for aggregate and window functions: Init
// produces a fresh accumulator, Step folds one argument in, Final extracts
// the result. The accumulator is opaque to the scheduler (any), letting
// each function choose its own representation.
type AggregateFunc struct {
	Init  func() any
	Step  func(acc any, arg types.Value) (any, error)
	Final func(acc any) (types.Value, error)
}

// BuiltinAggregates returns the aggregate/window functions every engine
// instance registers by default (spec §3 built-ins: count, sum, avg, min,
// max). row_number/rank/dense_rank are position-based over a window's
// ordered partition rather than folds over an accumulator, so
// evalWindowCall (exec.go) special-cases them by name instead of looking
// them up here.
func BuiltinAggregates() map[string]AggregateFunc {
	return map[string]AggregateFunc{
		"count": countAgg(),
		"sum":   sumAgg(),
		"avg":   avgAgg(),
		"min":   extremumAgg(types.Less),
		"max":   extremumAgg(types.Greater),
	}
}

type sumState struct {
	big    *big.Int
	real   float64
	isReal bool
	any    bool
}

func countAgg() AggregateFunc {
	return AggregateFunc{
		Init: func() any { return int64(0) },
		Step: func(acc any, arg types.Value) (any, error) {
			return acc.(int64) + 1, nil
		},
		Final: func(acc any) (types.Value, error) { return types.Int(acc.(int64)), nil },
	}
}

func sumAgg() AggregateFunc {
	return AggregateFunc{
		Init: func() any { return &sumState{big: big.NewInt(0)} },
		Step: func(acc any, arg types.Value) (any, error) {
			s := acc.(*sumState)
			if types.IsNull(arg) {
				return s, nil
			}
			s.any = true
			switch arg.Physical {
			case types.PhysicalInteger:
				if s.isReal {
					s.real += float64(arg.Int)
				} else {
					s.big.Add(s.big, big.NewInt(arg.Int))
				}
			case types.PhysicalReal:
				if !s.isReal {
					f, _ := new(big.Float).SetInt(s.big).Float64()
					s.real = f
					s.isReal = true
				}
				s.real += arg.Real
			case types.PhysicalBigInt:
				if s.isReal {
					f, _ := new(big.Float).SetInt(arg.Big).Float64()
					s.real += f
				} else {
					s.big.Add(s.big, arg.Big)
				}
			default:
				return nil, errs.New(errs.KindMismatch, "sum() requires a numeric argument")
			}
			return s, nil
		},
		Final: func(acc any) (types.Value, error) {
			s := acc.(*sumState)
			if !s.any {
				return types.Null, nil
			}
			if s.isReal {
				return types.Real(s.real), nil
			}
			return types.BigInt(s.big), nil
		},
	}
}

type avgState struct {
	sum   float64
	count int64
}

func avgAgg() AggregateFunc {
	return AggregateFunc{
		Init: func() any { return &avgState{} },
		Step: func(acc any, arg types.Value) (any, error) {
			s := acc.(*avgState)
			if types.IsNull(arg) {
				return s, nil
			}
			switch arg.Physical {
			case types.PhysicalInteger:
				s.sum += float64(arg.Int)
			case types.PhysicalReal:
				s.sum += arg.Real
			case types.PhysicalBigInt:
				f, _ := new(big.Float).SetInt(arg.Big).Float64()
				s.sum += f
			default:
				return nil, errs.New(errs.KindMismatch, "avg() requires a numeric argument")
			}
			s.count++
			return s, nil
		},
		Final: func(acc any) (types.Value, error) {
			s := acc.(*avgState)
			if s.count == 0 {
				return types.Null, nil
			}
			return types.Real(s.sum / float64(s.count)), nil
		},
	}
}

// extremumAgg implements min (want==Less) and max (want==Greater) by
// keeping whichever value Compare ranks on the requested side.
func extremumAgg(want types.Ordering) AggregateFunc {
	return AggregateFunc{
		Init: func() any { return types.Null },
		Step: func(acc any, arg types.Value) (any, error) {
			cur := acc.(types.Value)
			if types.IsNull(arg) {
				return cur, nil
			}
			if types.IsNull(cur) {
				return arg, nil
			}
			if types.Compare(arg, cur, nil) == want {
				return arg, nil
			}
			return cur, nil
		},
		Final: func(acc any) (types.Value, error) { return acc.(types.Value), nil },
	}
}
