package runtime

import "github.com/Digithought/quereus-sub006/plan"

// Emit builds the Instruction tree for node (spec §4.5). Each Instruction's
// Run closure delegates to EvalExpr or Execute for the actual work; Emit's
// job is to walk the plan once and produce a stable, introspectable shape
// a caller can Dump or re-run without re-walking the plan tree each time.
func Emit(node plan.Node) *Instruction {
	var params []*Instruction
	for _, child := range node.Children() {
		params = append(params, Emit(child))
	}
	if node.NodeType() == plan.TypeRelation {
		rel := node.(plan.Relation)
		return newInstruction(node, params, func(ctx *ExecContext) (any, error) {
			return Execute(ctx, rel)
		})
	}
	expr := node.(plan.Expr)
	return newInstruction(node, params, func(ctx *ExecContext) (any, error) {
		return EvalExpr(ctx, expr)
	})
}
