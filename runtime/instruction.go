package runtime

import "github.com/Digithought/quereus-sub006/plan"

// Instruction is one node of the dataflow Emit builds from a plan.Node
// (spec §4.5: "the emitter turns each plan node into a typed instruction").
// Run dispatches straight to EvalExpr/Execute, which walk Source's plan
// subtree directly rather than replaying through Params; Params exists so a
// caller can introspect or dump the emitted shape without re-walking the
// plan tree (mirrors package plan's Walk/Rewrite separation between
// structural children and cached derived state).
type Instruction struct {
	Kind   plan.Kind
	Source plan.Node
	Params []*Instruction
	// Run executes this instruction. A scalar instruction returns a
	// types.Value; a relational instruction returns a vtab.RowStream. The
	// caller knows which based on Source.NodeType().
	Run func(ctx *ExecContext) (any, error)
}

func newInstruction(source plan.Node, params []*Instruction, run func(ctx *ExecContext) (any, error)) *Instruction {
	return &Instruction{Kind: source.Kind(), Source: source, Params: params, Run: run}
}
