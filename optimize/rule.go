// Package optimize implements the rule-driven tree rewriter of spec §4.4:
// logical->physical lowering, predicate pushdown into virtual-table reads,
// constant folding, caching insertion, and streaming-aggregation choice,
// applied bottom-up to a fixpoint within a small fixed sequence of passes.
//
// Grounded on the teacher's schema/generator.go, which is itself a
// stateful bottom-up rewriter (walks desired vs. current tables, applying
// diff rules until no more DDLs are produced) — the same fixpoint texture,
// generalized from "diff two schemas" to "rewrite one plan".
package optimize

import "github.com/Digithought/quereus-sub006/plan"

// Rule is one rewrite rule: Match reports whether it applies to n, Rewrite
// produces the replacement (only called when Match returned true).
// ID orders rules within a pass; the lowest-ID matching rule fires first
// (spec §4.4 tie-break), and ties beyond that prefer rewrites that reduce
// node count (checked by the Engine, not by the rule itself).
type Rule struct {
	ID      int
	Name    string
	Match   func(n plan.Node) bool
	Rewrite func(n plan.Node) plan.Node
}

// Pass is a named, ordered set of rules applied together to a fixpoint
// before the next pass begins (spec §4.4: "logical-lowering, then
// predicate-pushdown, then constant-folding, then physical-lowering").
type Pass struct {
	Name  string
	Rules []Rule
}

// Engine runs passes, in order, each to a bottom-up fixpoint.
type Engine struct {
	Passes []Pass
}

// Run applies every pass in order. Within a pass, Engine.runPass iterates
// Walk+Rewrite until no rule fires, i.e. a fixpoint (spec §4.4).
func (e *Engine) Run(root plan.Node) plan.Node {
	for _, pass := range e.Passes {
		root = e.runPass(pass, root)
	}
	return root
}

func (e *Engine) runPass(pass Pass, root plan.Node) plan.Node {
	for {
		fired := false
		root = plan.Rewrite(root, func(n plan.Node) plan.Node {
			rewritten, didFire := applyFirstMatch(pass.Rules, n)
			if didFire {
				fired = true
			}
			return rewritten
		})
		if !fired {
			return root
		}
	}
}

// applyFirstMatch fires the lowest-ID matching rule on n, whatever the
// rules' order in the slice. When several matching rules share that ID, the
// rewrite with fewer nodes (plan.CountNodes) wins; on equal counts the
// earlier rule in the slice wins (spec §4.4).
func applyFirstMatch(rules []Rule, n plan.Node) (plan.Node, bool) {
	var best plan.Node
	bestID := 0
	for _, r := range rules {
		if !r.Match(n) || (best != nil && r.ID > bestID) {
			continue
		}
		out := r.Rewrite(n)
		if best == nil || r.ID < bestID || plan.CountNodes(out) < plan.CountNodes(best) {
			best, bestID = out, r.ID
		}
	}
	if best == nil {
		return n, false
	}
	return best, best != n
}
