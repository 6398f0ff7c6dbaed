package runtime

import (
	"math/big"
	"strings"

	"github.com/Digithought/quereus-sub006/errs"
	"github.com/Digithought/quereus-sub006/plan"
	"github.com/Digithought/quereus-sub006/types"
)

// EvalExpr evaluates e against the active slot chain in ctx (spec §4.5: a
// scalar instruction's run "emits a value"). This is the runtime twin of
// package optimize's constant folder — that one runs once at plan time over
// literals only, this one runs per row over live column values, bound
// parameters, and subquery results.
func EvalExpr(ctx *ExecContext, e plan.Expr) (types.Value, error) {
	if err := ctx.checkCancelled(); err != nil {
		return types.Value{}, err
	}
	switch t := e.(type) {
	case *plan.Literal:
		return t.Value, nil
	case *plan.ColumnRef:
		return ctx.Resolve(t.Refers)
	case *plan.Parameter:
		v, ok := ctx.Params[t.Key]
		if !ok {
			return types.Value{}, errs.New(errs.KindMismatch, "unbound parameter %q", t.Key)
		}
		return v, nil
	case *plan.Unary:
		return evalUnaryExpr(ctx, t)
	case *plan.Binary:
		return evalBinaryExpr(ctx, t)
	case *plan.Cast:
		return evalCastExpr(ctx, t)
	case *plan.Case:
		return evalCaseExpr(ctx, t)
	case *plan.FunctionCall:
		return evalFunctionCall(ctx, t)
	case *plan.Exists:
		return evalExists(ctx, t)
	case *plan.ScalarSubquery:
		return evalScalarSubquery(ctx, t)
	case *plan.In:
		return evalIn(ctx, t)
	default:
		return types.Value{}, errs.New(errs.KindUnsupported, "unsupported expression kind %s", e.Kind())
	}
}

func evalUnaryExpr(ctx *ExecContext, u *plan.Unary) (types.Value, error) {
	v, err := EvalExpr(ctx, u.Operand())
	if err != nil {
		return types.Value{}, err
	}
	switch strings.ToUpper(u.Op) {
	case "NOT":
		if types.IsNull(v) {
			return types.Null, nil
		}
		return types.Bool(!(v.Physical == types.PhysicalBoolean && v.Bool)), nil
	case "-":
		if types.IsNull(v) {
			return types.Null, nil
		}
		switch v.Physical {
		case types.PhysicalInteger:
			return types.Int(-v.Int), nil
		case types.PhysicalReal:
			return types.Real(-v.Real), nil
		}
		return types.Value{}, errs.New(errs.KindMismatch, "cannot negate %s", v.Physical)
	case "ISNULL":
		return types.Bool(types.IsNull(v)), nil
	case "ISNOTNULL":
		return types.Bool(!types.IsNull(v)), nil
	}
	return types.Value{}, errs.New(errs.KindUnsupported, "unsupported unary operator %q", u.Op)
}

func evalBinaryExpr(ctx *ExecContext, b *plan.Binary) (types.Value, error) {
	op := strings.ToUpper(b.Op)
	if op == "AND" || op == "OR" {
		return evalShortCircuit(ctx, op, b)
	}
	l, err := EvalExpr(ctx, b.Left())
	if err != nil {
		return types.Value{}, err
	}
	r, err := EvalExpr(ctx, b.Right())
	if err != nil {
		return types.Value{}, err
	}
	if types.IsNull(l) || types.IsNull(r) {
		return types.Null, nil
	}
	switch op {
	case "+", "-", "*", "/", "%":
		return evalArith(op, l, r)
	case "=", "<>", "!=", "<", "<=", ">", ">=":
		return evalCompare(op, l, r)
	case "||":
		return types.Text(l.String() + r.String()), nil
	}
	return types.Value{}, errs.New(errs.KindUnsupported, "unsupported binary operator %q", b.Op)
}

// evalShortCircuit implements three-valued AND/OR without evaluating the
// right side when the left side already determines the result (spec §4.4's
// "NULL-propagating short-circuits collapse" applies at runtime too).
func evalShortCircuit(ctx *ExecContext, op string, b *plan.Binary) (types.Value, error) {
	l, err := EvalExpr(ctx, b.Left())
	if err != nil {
		return types.Value{}, err
	}
	if op == "AND" && !types.IsNull(l) && !l.Bool {
		return types.Bool(false), nil
	}
	if op == "OR" && !types.IsNull(l) && l.Bool {
		return types.Bool(true), nil
	}
	r, err := EvalExpr(ctx, b.Right())
	if err != nil {
		return types.Value{}, err
	}
	if types.IsNull(l) || types.IsNull(r) {
		if op == "AND" && (isFalseVal(l) || isFalseVal(r)) {
			return types.Bool(false), nil
		}
		if op == "OR" && (isTrueVal(l) || isTrueVal(r)) {
			return types.Bool(true), nil
		}
		return types.Null, nil
	}
	if op == "AND" {
		return types.Bool(l.Bool && r.Bool), nil
	}
	return types.Bool(l.Bool || r.Bool), nil
}

func isTrueVal(v types.Value) bool  { return v.Physical == types.PhysicalBoolean && v.Bool }
func isFalseVal(v types.Value) bool { return v.Physical == types.PhysicalBoolean && !v.Bool }

func evalArith(op string, l, r types.Value) (types.Value, error) {
	cl, cr, ok := types.CoerceForArithmetic(l, r)
	if !ok {
		return types.Value{}, errs.New(errs.KindMismatch, "non-numeric operand to %q", op)
	}
	if cl.Physical == types.PhysicalBigInt {
		out := new(bigIntOp)
		return out.eval(op, cl, cr)
	}
	if cl.Physical == types.PhysicalReal {
		a, b := cl.Real, cr.Real
		switch op {
		case "+":
			return types.Real(a + b), nil
		case "-":
			return types.Real(a - b), nil
		case "*":
			return types.Real(a * b), nil
		case "/":
			if b == 0 {
				return types.Value{}, errs.New(errs.KindMismatch, "division by zero")
			}
			return types.Real(a / b), nil
		}
		return types.Value{}, errs.New(errs.KindUnsupported, "operator %q not defined for REAL", op)
	}
	a, b := cl.Int, cr.Int
	switch op {
	case "+":
		return types.Int(a + b), nil
	case "-":
		return types.Int(a - b), nil
	case "*":
		return types.Int(a * b), nil
	case "/":
		if b == 0 {
			return types.Value{}, errs.New(errs.KindMismatch, "division by zero")
		}
		return types.Int(a / b), nil
	case "%":
		if b == 0 {
			return types.Value{}, errs.New(errs.KindMismatch, "division by zero")
		}
		return types.Int(a % b), nil
	}
	return types.Value{}, errs.New(errs.KindUnsupported, "unsupported arithmetic operator %q", op)
}

func evalCompare(op string, l, r types.Value) (types.Value, error) {
	cl, cr := types.CoerceForComparison(l, r)
	ordering := types.Compare(cl, cr, nil)
	if ordering == types.Incomparable {
		return types.Null, nil
	}
	switch op {
	case "=":
		return types.Bool(ordering == types.Equal), nil
	case "<>", "!=":
		return types.Bool(ordering != types.Equal), nil
	case "<":
		return types.Bool(ordering == types.Less), nil
	case "<=":
		return types.Bool(ordering == types.Less || ordering == types.Equal), nil
	case ">":
		return types.Bool(ordering == types.Greater), nil
	case ">=":
		return types.Bool(ordering == types.Greater || ordering == types.Equal), nil
	}
	return types.Value{}, errs.New(errs.KindUnsupported, "unsupported comparison operator %q", op)
}

func evalCastExpr(ctx *ExecContext, c *plan.Cast) (types.Value, error) {
	v, err := EvalExpr(ctx, c.Operand())
	if err != nil {
		return types.Value{}, err
	}
	ok, mismatch := types.ValidateAgainst(v, c.TargetType)
	if !ok {
		return types.Value{}, errs.New(errs.KindMismatch, "cannot cast to %s: %s", c.TargetType.Name, mismatch)
	}
	return v, nil
}

func evalCaseExpr(ctx *ExecContext, c *plan.Case) (types.Value, error) {
	var operand types.Value
	hasOperand := c.Operand != nil
	if hasOperand {
		v, err := EvalExpr(ctx, c.Operand)
		if err != nil {
			return types.Value{}, err
		}
		operand = v
	}
	for _, w := range c.Whens {
		if hasOperand {
			candidate, err := EvalExpr(ctx, w.When)
			if err != nil {
				return types.Value{}, err
			}
			if types.Compare(operand, candidate, nil) == types.Equal {
				return EvalExpr(ctx, w.Then)
			}
			continue
		}
		cond, err := EvalExpr(ctx, w.When)
		if err != nil {
			return types.Value{}, err
		}
		if isTrueVal(cond) {
			return EvalExpr(ctx, w.Then)
		}
	}
	if c.Else != nil {
		return EvalExpr(ctx, c.Else)
	}
	return types.Null, nil
}

func evalFunctionCall(ctx *ExecContext, f *plan.FunctionCall) (types.Value, error) {
	impl, ok := ctx.Functions[f.Name]
	if !ok {
		return types.Value{}, errs.New(errs.KindSchemaMissing, "no such function: %s", f.Name)
	}
	args := f.Args()
	values := make([]types.Value, len(args))
	for i, a := range args {
		v, err := EvalExpr(ctx, a)
		if err != nil {
			return types.Value{}, err
		}
		values[i] = v
	}
	return impl(values)
}

func evalExists(ctx *ExecContext, e *plan.Exists) (types.Value, error) {
	stream, err := Execute(ctx, e.Inner)
	if err != nil {
		return types.Value{}, err
	}
	defer stream.Close()
	row, err := stream.Next(ctx.Ctx)
	if err != nil {
		return types.Value{}, err
	}
	found := row != nil
	if e.Negated {
		found = !found
	}
	return types.Bool(found), nil
}

func evalScalarSubquery(ctx *ExecContext, s *plan.ScalarSubquery) (types.Value, error) {
	stream, err := Execute(ctx, s.Inner)
	if err != nil {
		return types.Value{}, err
	}
	defer stream.Close()
	row, err := stream.Next(ctx.Ctx)
	if err != nil {
		return types.Value{}, err
	}
	if row == nil {
		return types.Null, nil
	}
	if len(row) == 0 {
		return types.Null, nil
	}
	return row[0], nil
}

func evalIn(ctx *ExecContext, in *plan.In) (types.Value, error) {
	needle, err := EvalExpr(ctx, in.Needle)
	if err != nil {
		return types.Value{}, err
	}
	if in.Inner != nil {
		stream, err := Execute(ctx, in.Inner)
		if err != nil {
			return types.Value{}, err
		}
		defer stream.Close()
		sawNull := types.IsNull(needle)
		for {
			row, err := stream.Next(ctx.Ctx)
			if err != nil {
				return types.Value{}, err
			}
			if row == nil {
				break
			}
			if len(row) == 0 {
				continue
			}
			if types.IsNull(row[0]) {
				sawNull = true
				continue
			}
			if types.Compare(needle, row[0], nil) == types.Equal {
				return types.Bool(!in.Negated), nil
			}
		}
		if sawNull {
			return types.Null, nil
		}
		return types.Bool(in.Negated), nil
	}
	sawNull := types.IsNull(needle)
	for _, item := range in.List {
		v, err := EvalExpr(ctx, item)
		if err != nil {
			return types.Value{}, err
		}
		if types.IsNull(v) {
			sawNull = true
			continue
		}
		if types.Compare(needle, v, nil) == types.Equal {
			return types.Bool(!in.Negated), nil
		}
	}
	if sawNull {
		return types.Null, nil
	}
	return types.Bool(in.Negated), nil
}

// bigIntOp factors big-integer arithmetic out of evalArith for readability.
type bigIntOp struct{}

func (bigIntOp) eval(op string, l, r types.Value) (types.Value, error) {
	a, b := l.Big, r.Big
	switch op {
	case "+":
		return types.BigInt(new(big.Int).Add(a, b)), nil
	case "-":
		return types.BigInt(new(big.Int).Sub(a, b)), nil
	case "*":
		return types.BigInt(new(big.Int).Mul(a, b)), nil
	case "/":
		if b.Sign() == 0 {
			return types.Value{}, errs.New(errs.KindMismatch, "division by zero")
		}
		return types.BigInt(new(big.Int).Div(a, b)), nil
	case "%":
		if b.Sign() == 0 {
			return types.Value{}, errs.New(errs.KindMismatch, "division by zero")
		}
		return types.BigInt(new(big.Int).Mod(a, b)), nil
	}
	return types.Value{}, errs.New(errs.KindUnsupported, "unsupported arithmetic operator %q", op)
}
