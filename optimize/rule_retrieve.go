package optimize

import (
	"strings"

	"github.com/Digithought/quereus-sub006/catalog"
	"github.com/Digithought/quereus-sub006/plan"
	"github.com/Digithought/quereus-sub006/vtab"
)

// NewRetrieveGrowthRules returns the predicate-pushdown pass's rules (spec
// §4.4 "Retrieve growth"): for a vtab source that declares supported
// filter/sort/limit capabilities, slide the applicable Filter/Sort/Limit
// parent into its Retrieve node; any unsupported residual stays above as a
// plain Filter/Sort/Limit. alloc is needed to rebuild residual AND chains
// without disturbing attribute ids of the kept conjuncts.
//
// Grounded on dolthub-go-mysql-server's analyzer pushdown rules (other
// example repo), which perform the same "ask the table what it can serve,
// keep the rest above" negotiation; cat resolves a Retrieve's table back to
// its vtab.Module the way that rule resolves a table to its sql.Table.
func NewRetrieveGrowthRules(alloc *plan.Allocator, cat *catalog.Catalog) []Rule {
	return []Rule{
		{ID: 100, Name: "pushdown-filter", Match: matchFilterOverRetrieve, Rewrite: rewritePushdownFilter(alloc, cat)},
		{ID: 101, Name: "pushdown-sort", Match: matchSortOverRetrieve, Rewrite: rewritePushdownSort(cat)},
		{ID: 102, Name: "pushdown-limit", Match: matchLimitOverRetrieve, Rewrite: rewritePushdownLimit(cat)},
	}
}

func accessPlannerFor(cat *catalog.Catalog, r *plan.Retrieve) (vtab.AccessPlanner, bool) {
	if cat == nil {
		return nil, false
	}
	schema, err := cat.LookupTable(r.SchemaName, r.TableName)
	if err != nil {
		return nil, false
	}
	mod, ok := cat.LookupModule(schema.ModuleName)
	if !ok {
		return nil, false
	}
	ap, ok := mod.Impl.(vtab.AccessPlanner)
	return ap, ok
}

func columnIndex(r *plan.Retrieve, attr plan.AttrID) int {
	for i, c := range r.Columns() {
		if c == attr {
			return i
		}
	}
	return -1
}

var binaryToFilterOp = map[string]vtab.FilterOp{
	"=": vtab.OpEQ, "<": vtab.OpLT, "<=": vtab.OpLE, ">": vtab.OpGT, ">=": vtab.OpGE, "LIKE": vtab.OpLIKE,
}

var flippedOp = map[vtab.FilterOp]vtab.FilterOp{
	vtab.OpLT: vtab.OpGT, vtab.OpGT: vtab.OpLT, vtab.OpLE: vtab.OpGE, vtab.OpGE: vtab.OpLE, vtab.OpEQ: vtab.OpEQ,
}

func toPlanOp(op vtab.FilterOp) plan.FilterOp { return plan.FilterOp(op) }

func conjuncts(e plan.Expr) []plan.Expr {
	if b, ok := e.(*plan.Binary); ok && strings.EqualFold(b.Op, "AND") {
		return append(conjuncts(b.Left()), conjuncts(b.Right())...)
	}
	return []plan.Expr{e}
}

func combineAnd(alloc *plan.Allocator, exprs []plan.Expr) plan.Expr {
	out := exprs[0]
	for _, e := range exprs[1:] {
		out = plan.NewBinary(alloc, "AND", out, e)
	}
	return out
}

func isPushableArg(e plan.Expr) bool {
	switch e.(type) {
	case *plan.Literal, *plan.Parameter:
		return e.IsDeterministic()
	}
	return false
}

type candidateConstraint struct {
	conjIndex int
	colIndex  int
	pc        plan.PushedConstraint
}

func tryConstraint(r *plan.Retrieve, e plan.Expr) (plan.PushedConstraint, int, bool) {
	b, ok := e.(*plan.Binary)
	if !ok {
		return plan.PushedConstraint{}, 0, false
	}
	vop, ok := binaryToFilterOp[strings.ToUpper(b.Op)]
	if !ok {
		return plan.PushedConstraint{}, 0, false
	}
	if cref, ok := b.Left().(*plan.ColumnRef); ok {
		if idx := columnIndex(r, cref.Refers); idx >= 0 && isPushableArg(b.Right()) {
			return plan.PushedConstraint{Column: cref.Refers, Op: toPlanOp(vop), Arg: b.Right()}, idx, true
		}
	}
	if cref, ok := b.Right().(*plan.ColumnRef); ok {
		if idx := columnIndex(r, cref.Refers); idx >= 0 && isPushableArg(b.Left()) {
			flipped, ok := flippedOp[vop]
			if ok {
				return plan.PushedConstraint{Column: cref.Refers, Op: toPlanOp(flipped), Arg: b.Left()}, idx, true
			}
		}
	}
	return plan.PushedConstraint{}, 0, false
}

func matchFilterOverRetrieve(n plan.Node) bool {
	f, ok := n.(*plan.Filter)
	if !ok {
		return false
	}
	_, ok = f.Input.(*plan.Retrieve)
	return ok
}

func rewritePushdownFilter(alloc *plan.Allocator, cat *catalog.Catalog) func(plan.Node) plan.Node {
	return func(n plan.Node) plan.Node {
		f := n.(*plan.Filter)
		ret := f.Input.(*plan.Retrieve)

		conjs := conjuncts(f.Predicate)
		var candidates []candidateConstraint
		for i, c := range conjs {
			if pc, colIdx, ok := tryConstraint(ret, c); ok {
				candidates = append(candidates, candidateConstraint{conjIndex: i, colIndex: colIdx, pc: pc})
			}
		}
		if len(candidates) == 0 {
			return n
		}
		ap, ok := accessPlannerFor(cat, ret)
		if !ok {
			return n
		}
		fi := vtab.FilterInfo{}
		for _, c := range candidates {
			fi.Constraints = append(fi.Constraints, vtab.Constraint{Column: c.colIndex, Op: vtab.FilterOp(c.pc.Op)})
		}
		result := ap.GetBestAccessPlan(fi)
		accepted := make(map[int]bool)
		for _, p := range result.Predicates {
			if p.Accepted {
				accepted[p.ConstraintIndex] = true
			}
		}
		if len(accepted) == 0 {
			return n
		}
		newConstraints := append([]plan.PushedConstraint{}, ret.Constraints...)
		acceptedConj := make(map[int]bool)
		for i, c := range candidates {
			if accepted[i] {
				newConstraints = append(newConstraints, c.pc)
				acceptedConj[c.conjIndex] = true
			}
		}
		var residual []plan.Expr
		for i, c := range conjs {
			if !acceptedConj[i] {
				residual = append(residual, c)
			}
		}
		newRet := ret.WithPushdown(newConstraints, ret.OrderBy, ret.Projection, ret.Limit, ret.Offset, ret.Params)
		if len(residual) == 0 {
			return newRet
		}
		return plan.NewFilter(newRet, combineAnd(alloc, residual))
	}
}

func matchSortOverRetrieve(n plan.Node) bool {
	s, ok := n.(*plan.Sort)
	if !ok {
		return false
	}
	_, ok = s.Input.(*plan.Retrieve)
	return ok
}

func rewritePushdownSort(cat *catalog.Catalog) func(plan.Node) plan.Node {
	return func(n plan.Node) plan.Node {
		s := n.(*plan.Sort)
		ret := s.Input.(*plan.Retrieve)

		ap, ok := accessPlannerFor(cat, ret)
		if !ok {
			return n
		}
		orderBy := make([]vtab.OrderSpec, len(s.SortKeys))
		for i, k := range s.SortKeys {
			idx := columnIndex(ret, k.Attr)
			if idx < 0 {
				return n
			}
			orderBy[i] = vtab.OrderSpec{Column: idx, Descending: k.Descending}
		}
		result := ap.GetBestAccessPlan(vtab.FilterInfo{OrderBy: orderBy})
		if !result.SupportsSort {
			return n
		}
		return ret.WithPushdown(ret.Constraints, s.SortKeys, ret.Projection, ret.Limit, ret.Offset, ret.Params)
	}
}

func matchLimitOverRetrieve(n plan.Node) bool {
	l, ok := n.(*plan.Limit)
	if !ok {
		return false
	}
	_, ok = l.Input.(*plan.Retrieve)
	return ok
}

func rewritePushdownLimit(cat *catalog.Catalog) func(plan.Node) plan.Node {
	return func(n plan.Node) plan.Node {
		l := n.(*plan.Limit)
		ret := l.Input.(*plan.Retrieve)
		if ret.Limit != nil {
			return n
		}
		ap, ok := accessPlannerFor(cat, ret)
		if !ok {
			return n
		}
		result := ap.GetBestAccessPlan(vtab.FilterInfo{})
		if !result.SupportsLimit {
			return n
		}
		return ret.WithPushdown(ret.Constraints, ret.OrderBy, ret.Projection, l.Count, l.Offset, ret.Params)
	}
}
