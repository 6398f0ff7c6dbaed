package optimize

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Digithought/quereus-sub006/catalog"
	"github.com/Digithought/quereus-sub006/plan"
	"github.com/Digithought/quereus-sub006/types"
	"github.com/Digithought/quereus-sub006/vtab"
)

func TestConstantFoldingCollapsesArithmetic(t *testing.T) {
	alloc := plan.NewAllocator()
	bin := plan.NewBinary(alloc, "+", plan.NewLiteral(alloc, types.Int(1)), plan.NewLiteral(alloc, types.Int(2)))

	out := NewEngine(alloc, nil).runPass(Pass{Name: "constant-folding", Rules: NewConstantFoldingRules(alloc)}, bin)

	lit, ok := out.(*plan.Literal)
	assert.True(t, ok)
	assert.Equal(t, types.Int(3), lit.Value)
}

func TestConstantFoldingSkipsNonDeterministic(t *testing.T) {
	alloc := plan.NewAllocator()
	call := plan.NewFunctionCall(alloc, "random", false, nil)
	bin := plan.NewBinary(alloc, "+", call, plan.NewLiteral(alloc, types.Int(2)))

	out := NewEngine(alloc, nil).runPass(Pass{Name: "constant-folding", Rules: NewConstantFoldingRules(alloc)}, bin)
	_, stillBinary := out.(*plan.Binary)
	assert.True(t, stillBinary)
}

func TestSortEliminationDropsRedundantSort(t *testing.T) {
	alloc := plan.NewAllocator()
	v := valuesOneCol(alloc)
	col := v.Columns()[0]
	sorted := plan.NewSort(v, []plan.SortKey{{Attr: col}})
	doubleSorted := plan.NewSort(sorted, []plan.SortKey{{Attr: col}})

	rule := NewSortEliminationRule()
	out := plan.Rewrite(doubleSorted, func(n plan.Node) plan.Node {
		if rule.Match(n) {
			return rule.Rewrite(n)
		}
		return n
	})
	assert.Equal(t, plan.KindSort, out.Kind())
	assert.Equal(t, sorted.Input, out.(*plan.Sort).Input)
}

func TestStreamingAggregateChosenWhenOrderCoversGrouping(t *testing.T) {
	alloc := plan.NewAllocator()
	v := valuesOneCol(alloc)
	col := v.Columns()[0]
	sorted := plan.NewSort(v, []plan.SortKey{{Attr: col}})
	agg := plan.NewAggregate(sorted, []plan.AttrID{col}, nil)

	rule := NewStreamingAggregateRule()
	assert.True(t, rule.Match(agg))
	out := rule.Rewrite(agg).(*plan.Aggregate)
	assert.True(t, out.Streaming)
}

func TestHashAggregateWhenOrderDoesNotCoverGrouping(t *testing.T) {
	alloc := plan.NewAllocator()
	v := valuesOneCol(alloc)
	col := v.Columns()[0]
	agg := plan.NewAggregate(v, []plan.AttrID{col}, nil)

	rule := NewStreamingAggregateRule()
	assert.False(t, rule.Match(agg))
}

func TestCachingInsertionWrapsRepeatedSubtree(t *testing.T) {
	alloc := plan.NewAllocator()
	mkLeaf := func() plan.Relation { return valuesOneCol(alloc) }

	left := plan.NewSeq(mkLeaf(), []plan.ProjectItem{{Attr: alloc.Alloc("x"), Expr: plan.NewLiteral(alloc, types.Int(1))}})
	right := plan.NewSeq(mkLeaf(), []plan.ProjectItem{{Attr: alloc.Alloc("x"), Expr: plan.NewLiteral(alloc, types.Int(1))}})
	combined := plan.NewSet(left, right, plan.SetUnion, true)

	out := InsertCaching(combined)
	set := out.(*plan.Set)
	_, leftCached := set.Left.(*plan.Cache)
	_, rightCached := set.Right.(*plan.Cache)
	assert.True(t, leftCached)
	assert.True(t, rightCached)
}

func TestRetrieveGrowthPushesAcceptedConstraintAndKeepsResidual(t *testing.T) {
	alloc := plan.NewAllocator()
	cat := catalog.New()
	cat.RegisterTable(&catalog.TableSchema{Name: "t", SchemaName: "main", Columns: []catalog.ColumnDef{{Name: "a"}, {Name: "b"}}, ModuleName: "fake"})
	cat.RegisterModule(&catalog.Module{Name: "fake", Impl: acceptFirstColumnPlanner{}})

	colA := alloc.Alloc("a")
	colB := alloc.Alloc("b")
	ret := plan.NewRetrieve("t", "main", []plan.AttrID{colA, colB}, nil)

	predA := plan.NewBinary(alloc, "=", plan.NewColumnRef(colA, "a"), plan.NewLiteral(alloc, types.Int(1)))
	predB := plan.NewBinary(alloc, "=", plan.NewColumnRef(colB, "b"), plan.NewLiteral(alloc, types.Int(2)))
	filter := plan.NewFilter(ret, plan.NewBinary(alloc, "AND", predA, predB))

	rules := NewRetrieveGrowthRules(alloc, cat)
	var out plan.Node = filter
	for _, r := range rules {
		if r.Match(out) {
			out = r.Rewrite(out)
			break
		}
	}

	newFilter, ok := out.(*plan.Filter)
	assert.True(t, ok)
	newRet, ok := newFilter.Input.(*plan.Retrieve)
	assert.True(t, ok)
	assert.Len(t, newRet.Constraints, 1)
	assert.Equal(t, colA, newRet.Constraints[0].Column)
}

func valuesOneCol(alloc *plan.Allocator) plan.Relation {
	return plan.NewValues(alloc, [][]plan.Expr{{plan.NewLiteral(alloc, types.Int(1))}})
}

// acceptFirstColumnPlanner accepts only constraints on column index 0,
// simulating a vtab that can only use a single-column index.
type acceptFirstColumnPlanner struct{}

func (acceptFirstColumnPlanner) GetBestAccessPlan(filter vtab.FilterInfo) vtab.AccessPlan {
	var preds []vtab.PredicateSupport
	for i, c := range filter.Constraints {
		preds = append(preds, vtab.PredicateSupport{ConstraintIndex: i, Accepted: c.Column == 0})
	}
	return vtab.AccessPlan{Predicates: preds}
}
