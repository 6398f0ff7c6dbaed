package optimize

import (
	"github.com/Digithought/quereus-sub006/catalog"
	"github.com/Digithought/quereus-sub006/plan"
)

// NewEngine builds the optimizer's four named passes, in the order spec
// §4.4 prescribes: logical-lowering, then predicate-pushdown, then
// constant-folding, then physical-lowering. logical-lowering carries no
// rules of its own yet — today's planner already emits a lowered tree — but
// the pass stays in the sequence so a future logical rewrite (e.g. subquery
// unnesting beyond decorrelateSubquery) has a defined place to run before
// pushdown sees the tree.
func NewEngine(alloc *plan.Allocator, cat *catalog.Catalog) *Engine {
	return &Engine{
		Passes: []Pass{
			{Name: "logical-lowering", Rules: nil},
			{Name: "predicate-pushdown", Rules: append(NewRetrieveGrowthRules(alloc, cat), NewDecorrelateSubqueryRule(alloc))},
			{Name: "constant-folding", Rules: NewConstantFoldingRules(alloc)},
			{Name: "physical-lowering", Rules: []Rule{NewStreamingAggregateRule(), NewSortEliminationRule()}},
		},
	}
}

// Optimize runs every rule pass and then the caching-insertion step (spec
// §4.4 "Caching insertion"), which needs whole-tree fingerprint counts and
// so isn't expressed as a per-node Rule.
func Optimize(root plan.Node, alloc *plan.Allocator, cat *catalog.Catalog) plan.Node {
	engine := NewEngine(alloc, cat)
	root = engine.Run(root)
	return InsertCaching(root)
}
