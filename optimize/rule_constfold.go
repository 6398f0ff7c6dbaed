package optimize

import "github.com/Digithought/quereus-sub006/plan"

// NewConstantFoldingRules returns the constant-folding pass's rules (spec
// §4.4 "Constant folding"): a deterministic Binary, Unary, or Cast node
// whose operands are all literals collapses to a single Literal. alloc must
// be the same Allocator the statement's plan was built with, since a folded
// node still needs an attribute id.
//
// Grounded on the teacher's schema/generator.go pattern of repeatedly
// reducing a tree until no rule fires; here the reduction is arithmetic
// rather than schema-diff.
func NewConstantFoldingRules(alloc *plan.Allocator) []Rule {
	return []Rule{
		{ID: 300, Name: "fold-binary", Match: matchFoldableBinary, Rewrite: rewriteFoldBinary(alloc)},
		{ID: 301, Name: "fold-unary", Match: matchFoldableUnary, Rewrite: rewriteFoldUnary(alloc)},
		{ID: 302, Name: "fold-cast", Match: matchFoldableCast, Rewrite: rewriteFoldCast(alloc)},
	}
}

func matchFoldableBinary(n plan.Node) bool {
	b, ok := n.(*plan.Binary)
	if !ok {
		return false
	}
	l, lok := b.Left().(*plan.Literal)
	r, rok := b.Right().(*plan.Literal)
	return lok && rok && l.IsDeterministic() && r.IsDeterministic()
}

func rewriteFoldBinary(alloc *plan.Allocator) func(plan.Node) plan.Node {
	return func(n plan.Node) plan.Node {
		b := n.(*plan.Binary)
		l := b.Left().(*plan.Literal)
		r := b.Right().(*plan.Literal)
		folded, ok := foldBinary(b.Op, l.Value, r.Value)
		if !ok {
			return n
		}
		return plan.NewLiteral(alloc, folded)
	}
}

func matchFoldableUnary(n plan.Node) bool {
	u, ok := n.(*plan.Unary)
	if !ok {
		return false
	}
	operand, ok := u.Operand().(*plan.Literal)
	return ok && operand.IsDeterministic()
}

func rewriteFoldUnary(alloc *plan.Allocator) func(plan.Node) plan.Node {
	return func(n plan.Node) plan.Node {
		u := n.(*plan.Unary)
		operand := u.Operand().(*plan.Literal)
		folded, ok := foldUnary(u.Op, operand.Value)
		if !ok {
			return n
		}
		return plan.NewLiteral(alloc, folded)
	}
}

func matchFoldableCast(n plan.Node) bool {
	c, ok := n.(*plan.Cast)
	if !ok {
		return false
	}
	operand, ok := c.Operand().(*plan.Literal)
	return ok && operand.IsDeterministic()
}

func rewriteFoldCast(alloc *plan.Allocator) func(plan.Node) plan.Node {
	return func(n plan.Node) plan.Node {
		c := n.(*plan.Cast)
		operand := c.Operand().(*plan.Literal)
		folded, ok := castValue(operand.Value, c.TargetType)
		if !ok {
			return n
		}
		return plan.NewLiteral(alloc, folded)
	}
}
