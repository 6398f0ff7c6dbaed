package optimize

import "github.com/Digithought/quereus-sub006/plan"

// NewStreamingAggregateRule returns the physical-lowering pass's streaming-
// aggregation rule (spec §4.4 "Streaming aggregate choice": "if input order
// satisfies grouping prefix, use streaming aggregation; else hash
// aggregation").
func NewStreamingAggregateRule() Rule {
	return Rule{ID: 400, Name: "streaming-aggregate", Match: matchUnresolvedAggregate, Rewrite: rewriteStreamingAggregate}
}

func matchUnresolvedAggregate(n plan.Node) bool {
	a, ok := n.(*plan.Aggregate)
	return ok && !a.Streaming && len(a.Grouping) > 0 && orderSatisfiesGroupingPrefix(a)
}

func rewriteStreamingAggregate(n plan.Node) plan.Node {
	a := n.(*plan.Aggregate)
	return a.WithStreaming(true)
}

// orderSatisfiesGroupingPrefix reports whether Input's declared logical
// order covers Grouping as a prefix, in any order of the grouping columns
// themselves (grouping is order-independent; only the column set matters).
func orderSatisfiesGroupingPrefix(a *plan.Aggregate) bool {
	order := a.Input.LogicalProps().Order
	if len(order) < len(a.Grouping) {
		return false
	}
	remaining := make(map[plan.AttrID]bool, len(a.Grouping))
	for _, g := range a.Grouping {
		remaining[g] = true
	}
	for i := 0; i < len(a.Grouping); i++ {
		if !remaining[order[i].Attr] {
			return false
		}
		delete(remaining, order[i].Attr)
	}
	return len(remaining) == 0
}
