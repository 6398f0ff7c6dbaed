package plan

import (
	"fmt"
	"strings"

	"github.com/k0kubun/pp/v3"
)

// Dump pretty-prints the plan tree, grounded on the teacher's pull of
// k0kubun/pp for readable struct dumps; used by statement.Explain() and by
// the trace_plan_stack configuration option (spec §6, SPEC_FULL §3).
func Dump(n Node) string {
	var b strings.Builder
	dumpNode(&b, n, 0)
	return b.String()
}

func dumpNode(b *strings.Builder, n Node, depth int) {
	fmt.Fprintf(b, "%s%s %s\n", strings.Repeat("  ", depth), n.Kind(), pp.Sprint(summarize(n)))
	for _, c := range n.Children() {
		dumpNode(b, c, depth+1)
	}
}

// summarize strips child nodes out of the struct before handing it to pp,
// so the pretty-printer shows only this node's own fields — children are
// already rendered by the recursive Dump walk.
func summarize(n Node) any {
	switch t := n.(type) {
	case *Literal:
		return t.Value
	case *ColumnRef:
		return t.Name
	case *Binary:
		return t.Op
	case *Unary:
		return t.Op
	case *FunctionCall:
		return t.Name
	case *Retrieve:
		return fmt.Sprintf("%s.%s", t.SchemaName, t.TableName)
	case *Join:
		return t.JoinType
	default:
		return ""
	}
}
