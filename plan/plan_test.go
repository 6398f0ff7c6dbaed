package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Digithought/quereus-sub006/types"
)

func TestAttrIDsStableAcrossWithChildren(t *testing.T) {
	alloc := NewAllocator()
	lit := NewLiteral(alloc, types.Int(1))
	ref := NewColumnRef(lit.Attributes()[0], "x")
	filter := NewFilter(valuesWithOneCol(alloc), ref)

	before := filter.Attributes()
	rewritten := filter.WithChildren(filter.Children())
	after := rewritten.Attributes()
	assert.Equal(t, before, after)
}

func valuesWithOneCol(alloc *Allocator) Relation {
	return NewValues(alloc, [][]Expr{{NewLiteral(alloc, types.Int(1))}})
}

func TestSeqReusesIncomingAttrID(t *testing.T) {
	alloc := NewAllocator()
	v := valuesWithOneCol(alloc)
	col := v.Columns()[0]
	ref := NewColumnRef(col, "passthrough")
	seq := NewSeq(v, []ProjectItem{{Attr: col, Expr: ref}})
	assert.Equal(t, []AttrID{col}, seq.Columns())
}

func TestWalkVisitsPostOrder(t *testing.T) {
	alloc := NewAllocator()
	bin := NewBinary(alloc, "+", NewLiteral(alloc, types.Int(1)), NewLiteral(alloc, types.Int(2)))
	var order []Kind
	Walk(bin, func(n Node) { order = append(order, n.Kind()) })
	assert.Equal(t, []Kind{KindLiteral, KindLiteral, KindBinary}, order)
}

func TestRewriteReplacesLeaf(t *testing.T) {
	alloc := NewAllocator()
	lit := NewLiteral(alloc, types.Int(1))
	replacement := NewLiteral(alloc, types.Int(2))

	out := Rewrite(lit, func(n Node) Node {
		if n == Node(lit) {
			return replacement
		}
		return n
	})
	assert.Same(t, Node(replacement), out)
}

func TestFingerprintStableForIdenticalShape(t *testing.T) {
	alloc := NewAllocator()
	a := NewBinary(alloc, "+", NewLiteral(alloc, types.Int(1)), NewLiteral(alloc, types.Int(2)))
	b := NewBinary(alloc, "+", NewLiteral(alloc, types.Int(1)), NewLiteral(alloc, types.Int(2)))
	assert.Equal(t, Fingerprint(a), Fingerprint(b))

	c := NewBinary(alloc, "+", NewLiteral(alloc, types.Int(1)), NewLiteral(alloc, types.Int(3)))
	assert.NotEqual(t, Fingerprint(a), Fingerprint(c))
}

func TestCountNodes(t *testing.T) {
	alloc := NewAllocator()
	bin := NewBinary(alloc, "+", NewLiteral(alloc, types.Int(1)), NewLiteral(alloc, types.Int(2)))
	assert.Equal(t, 3, CountNodes(bin))
}

func TestSortCarriesOrderInLogicalProps(t *testing.T) {
	alloc := NewAllocator()
	v := valuesWithOneCol(alloc)
	keys := []SortKey{{Attr: v.Columns()[0]}}
	sorted := NewSort(v, keys)
	assert.Equal(t, keys, sorted.LogicalProps().Order)
}
