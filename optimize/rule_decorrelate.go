package optimize

import "github.com/Digithought/quereus-sub006/plan"

// NewDecorrelateSubqueryRule returns the predicate-pushdown pass's lowest-
// priority rule (SPEC_FULL §3 "decorrelateSubquery"): an uncorrelated `x IN
// (subquery)` predicate rewrites into a Join against the subquery's
// Retrieve/subplan, since evaluating it per outer row would otherwise
// re-run the whole subplan once per row for no benefit. `EXISTS`/scalar
// subqueries with no outer references are left as-is here — they already
// evaluate once per statement rather than once per row as long as nothing
// above them forces re-evaluation, so only the row-matching IN form needs
// rewriting to avoid an O(rows) subplan re-run.
//
// Runs last in its pass (highest ID among predicate-pushdown rules) so
// retrieve-growth has already pushed what it can into both sides first.
func NewDecorrelateSubqueryRule(alloc *plan.Allocator) Rule {
	return Rule{ID: 199, Name: "decorrelate-subquery", Match: matchUncorrelatedIn, Rewrite: rewriteDecorrelateIn(alloc)}
}

func matchUncorrelatedIn(n plan.Node) bool {
	f, ok := n.(*plan.Filter)
	if !ok {
		return false
	}
	in, ok := f.Predicate.(*plan.In)
	if !ok || in.Negated || in.Inner == nil {
		return false
	}
	return len(in.Inner.LogicalProps().Bindings.OuterRefs) == 0 && len(in.Inner.Columns()) == 1
}

func rewriteDecorrelateIn(alloc *plan.Allocator) func(plan.Node) plan.Node {
	return func(n plan.Node) plan.Node {
		f := n.(*plan.Filter)
		in := f.Predicate.(*plan.In)

		innerCol := in.Inner.Columns()[0]
		cond := plan.NewBinary(alloc, "=", in.Needle, plan.NewColumnRef(innerCol, "decorrelated"))
		joined := plan.NewJoin(f.Input, in.Inner, plan.JoinInner, cond, nil)

		outerCols := f.Input.Columns()
		items := make([]plan.ProjectItem, len(outerCols))
		for i, c := range outerCols {
			items[i] = plan.ProjectItem{Attr: c, Expr: plan.NewColumnRef(c, "")}
		}
		return plan.NewSeq(joined, items)
	}
}
