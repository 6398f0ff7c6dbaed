package plan

import (
	"fmt"
	"strings"
)

// Fingerprint returns a structural digest of n: same shape + same parameter
// keys produces the same string, used by the optimizer's caching-
// insertion rule as a memoization key (spec §4.4 "the cache key is the
// subtree's structural fingerprint plus bound parameters").
func Fingerprint(n Node) string {
	var b strings.Builder
	fingerprintInto(&b, n)
	return b.String()
}

func fingerprintInto(b *strings.Builder, n Node) {
	b.WriteString(n.Kind().String())
	switch t := n.(type) {
	case *Literal:
		fmt.Fprintf(b, "(%s)", t.Value.String())
	case *ColumnRef:
		fmt.Fprintf(b, "(#%d)", t.Refers)
	case *Parameter:
		fmt.Fprintf(b, "(:%s)", t.Key)
	case *Binary:
		fmt.Fprintf(b, "(%s)", t.Op)
	case *Unary:
		fmt.Fprintf(b, "(%s)", t.Op)
	case *FunctionCall:
		fmt.Fprintf(b, "(%s)", t.Name)
	case *Retrieve:
		fmt.Fprintf(b, "(%s.%s)", t.SchemaName, t.TableName)
	}
	b.WriteByte('[')
	for i, c := range n.Children() {
		if i > 0 {
			b.WriteByte(',')
		}
		fingerprintInto(b, c)
	}
	b.WriteByte(']')
}
