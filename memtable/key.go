package memtable

import (
	"strings"

	"github.com/google/btree"

	"github.com/Digithought/quereus-sub006/types"
	"github.com/Digithought/quereus-sub006/vtab"
)

// RowKey is the ordered tuple of values a primary or secondary key is
// compared over (spec §3 "a total order... lexicographic over column
// collations"). Component-level collation selection is left to a future
// TableSpec extension; until then comparison uses the default collation
// per column.
type RowKey []types.Value

// compareKey orders two keys lexicographically, NULL sorting last within a
// component (spec §5.5's lifecycle text doesn't mandate a NULL placement for
// keys; NullsLast matches how a declared-NOT-NULL primary key never
// exercises the branch, and is the conventional choice for index orderings).
func compareKey(a, b RowKey) types.Ordering {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if o := types.OrderWithNulls(a[i], b[i], nil, types.NullsLast); o != types.Equal {
			return o
		}
	}
	switch {
	case len(a) < len(b):
		return types.Less
	case len(a) > len(b):
		return types.Greater
	default:
		return types.Equal
	}
}

func keyString(k RowKey) string {
	var b strings.Builder
	for _, v := range k {
		b.WriteByte('|')
		b.WriteString(v.Physical.String())
		b.WriteByte(':')
		b.WriteString(v.String())
	}
	return b.String()
}

// pkItem is a primary-tree entry. In a Base layer it is always a live row
// (deleted is always false). In a Transaction layer it is a modification:
// either a replacement row or a DeletionMarker (deleted=true, row=nil),
// per spec §4.7's "PrimaryKey → Row | DeletionMarker".
type pkItem struct {
	key     RowKey
	row     vtab.Row
	rowID   int64
	deleted bool
}

func (i *pkItem) Less(than btree.Item) bool {
	return compareKey(i.key, than.(*pkItem).key) == types.Less
}

// skItem is a secondary-tree entry: (IndexKey, RowId), ordered by key then
// by RowId to keep non-unique indexes well-ordered and each (key, rowid)
// pair unique within one tree (spec §3 "ordered set of (IndexKey, RowId)").
type skItem struct {
	key   RowKey
	rowID int64
}

func (i *skItem) Less(than btree.Item) bool {
	o := than.(*skItem)
	switch compareKey(i.key, o.key) {
	case types.Less:
		return true
	case types.Greater:
		return false
	default:
		return i.rowID < o.rowID
	}
}
