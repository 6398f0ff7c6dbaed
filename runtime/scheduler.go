package runtime

import (
	"context"

	"github.com/Digithought/quereus-sub006/errs"
	"github.com/Digithought/quereus-sub006/plan"
	"github.com/Digithought/quereus-sub006/types"
	"github.com/Digithought/quereus-sub006/vtab"
)

// RunRelation emits and schedules root as a row-producing statement (spec
// §4.5): a single-threaded cooperative run that consults ctx.checkCancelled
// before running the root instruction; rows are then pulled through streams
// that check their context on every Next. When ctx.Trace is set (spec §5,
// §6 runtime_metrics) it emits one TraceRecord as the root instruction runs
// and one more, carrying the row count, when the stream ends; the
// instructions beneath the root get no record of their own.
func RunRelation(ctx *ExecContext, root plan.Relation) (vtab.RowStream, error) {
	instr := Emit(root)
	result, err := runTraced(ctx, instr)
	if err != nil {
		return nil, err
	}
	stream, ok := result.(vtab.RowStream)
	if !ok {
		return nil, errs.New(errs.KindInternal, "instruction for %s did not produce a row stream", root.Kind())
	}
	count := new(int64)
	return countingStream{inner: stream, ctx: ctx, op: root.Kind().String(), count: count}, nil
}

// RunScalar emits and schedules root as a single scalar evaluation (spec
// §4.5, e.g. a top-level SELECT with no FROM clause, or statement.eval).
func RunScalar(ctx *ExecContext, root plan.Expr) (types.Value, error) {
	instr := Emit(root)
	result, err := runTraced(ctx, instr)
	if err != nil {
		return types.Value{}, err
	}
	v, ok := result.(types.Value)
	if !ok {
		return types.Value{}, errs.New(errs.KindInternal, "instruction for %s did not produce a scalar value", root.Kind())
	}
	return v, nil
}

func runTraced(ctx *ExecContext, instr *Instruction) (any, error) {
	if err := ctx.checkCancelled(); err != nil {
		return nil, err
	}
	result, err := instr.Run(ctx)
	ctx.emitTrace(instr.Kind.String(), 0, err)
	return result, err
}

// countingStream wraps the outermost row stream of a RunRelation call so
// the final TraceRecord carries a real row count rather than the zero
// runTraced stamped before any row had been pulled (spec §4.5 trace record
// "row-count" field).
type countingStream struct {
	inner vtab.RowStream
	ctx   *ExecContext
	op    string
	count *int64
}

func (c countingStream) Next(ctx context.Context) (vtab.Row, error) {
	row, err := c.inner.Next(ctx)
	if err != nil {
		c.ctx.emitTrace(c.op, *c.count, err)
		return nil, err
	}
	if row == nil {
		c.ctx.emitTrace(c.op, *c.count, nil)
		return nil, nil
	}
	*c.count++
	return row, nil
}

func (c countingStream) Close() error { return c.inner.Close() }
