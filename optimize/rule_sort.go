package optimize

import "github.com/Digithought/quereus-sub006/plan"

// NewSortEliminationRule returns the physical-lowering pass's rule for spec
// §4.4 "Sort elimination": "remove Sort whose order is already satisfied by
// its input's logical ordering."
func NewSortEliminationRule() Rule {
	return Rule{ID: 401, Name: "sort-elimination", Match: matchRedundantSort, Rewrite: rewriteEliminateSort}
}

func matchRedundantSort(n plan.Node) bool {
	s, ok := n.(*plan.Sort)
	return ok && orderSatisfies(s.Input.LogicalProps().Order, s.SortKeys)
}

func rewriteEliminateSort(n plan.Node) plan.Node {
	s := n.(*plan.Sort)
	return s.Input
}

// orderSatisfies reports whether have, the order a producer already
// guarantees, satisfies want, a required order: every key in want must
// appear at the same position in have with the same direction and null
// placement.
func orderSatisfies(have, want []plan.SortKey) bool {
	if len(have) < len(want) {
		return false
	}
	for i, w := range want {
		h := have[i]
		if h.Attr != w.Attr || h.Descending != w.Descending || h.NullsFirst != w.NullsFirst {
			return false
		}
	}
	return true
}
