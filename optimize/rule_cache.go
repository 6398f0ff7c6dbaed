package optimize

import "github.com/Digithought/quereus-sub006/plan"

// cacheMaterializeThreshold bounds how large a subtree the caching-insertion
// rule is willing to memoize; beyond this size the guess is that
// materializing costs more than recomputing (spec §4.4 "judged cheap to
// materialize").
const cacheMaterializeThreshold = 24

// InsertCaching wraps every relation subtree that recurs (by structural
// fingerprint) more than once in root, and whose node count stays within
// cacheMaterializeThreshold, in a Cache node keyed by that fingerprint
// (spec §4.4 "Caching insertion": "a subtree referenced multiple times and
// judged cheap to materialize gets a memoizing node; the cache key is the
// subtree's structural fingerprint plus bound parameters"). The key is the
// fingerprint alone: it names each Parameter by its key, and the cache lives
// in one ExecContext, whose parameter values stay fixed for that execution.
//
// This is a single whole-tree pass rather than a per-node Rule, since
// detecting "referenced multiple times" needs the global fingerprint
// counts up front; Optimize runs it after Engine.Run has finished every
// pass.
func InsertCaching(root plan.Node) plan.Node {
	counts := make(map[string]int)
	countFingerprints(root, counts)

	return plan.Rewrite(root, func(n plan.Node) plan.Node {
		rel, ok := n.(plan.Relation)
		if !ok {
			return n
		}
		switch n.(type) {
		case *plan.Cache, *plan.Retrieve, *plan.Values:
			return n
		}
		fp := plan.Fingerprint(n)
		if counts[fp] < 2 {
			return n
		}
		if plan.CountNodes(n) > cacheMaterializeThreshold {
			return n
		}
		return plan.NewCache(rel, fp)
	})
}

func countFingerprints(n plan.Node, counts map[string]int) {
	if _, ok := n.(plan.Relation); ok {
		counts[plan.Fingerprint(n)]++
	}
	for _, c := range n.Children() {
		countFingerprints(c, counts)
	}
}
