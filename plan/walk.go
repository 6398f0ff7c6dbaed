package plan

// Walk visits every node in the tree rooted at n, post-order (children
// before parent), calling visit on each. This is the traversal the
// optimizer's bottom-up fixpoint rewriter (package optimize) and the
// emitter both build on.
func Walk(n Node, visit func(Node)) {
	for _, c := range n.Children() {
		Walk(c, visit)
	}
	visit(n)
}

// Rewrite applies f bottom-up: children are rewritten first, then f is
// applied to the node with its (possibly replaced) children reattached via
// WithChildren. f may return the same node unchanged.
func Rewrite(n Node, f func(Node) Node) Node {
	children := n.Children()
	if len(children) > 0 {
		newChildren := make([]Node, len(children))
		changed := false
		for i, c := range children {
			rewritten := Rewrite(c, f)
			newChildren[i] = rewritten
			if rewritten != c {
				changed = true
			}
		}
		if changed {
			n = n.WithChildren(newChildren)
		}
	}
	return f(n)
}

// CountNodes returns the number of nodes in the tree rooted at n, used by
// the optimizer's node-count tie-break (spec §4.4).
func CountNodes(n Node) int {
	count := 0
	Walk(n, func(Node) { count++ })
	return count
}
