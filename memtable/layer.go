package memtable

import "github.com/google/btree"

const btreeDegree = 32

type layerKind int

const (
	layerBase layerKind = iota
	layerTransaction
)

// secondaryMod holds one secondary index's Add/Drop sets within a single
// layer (spec §3 "per-secondary (IndexKey, RowId) → Add|Drop"). A Base
// layer's secondary trees only ever use add (the committed set); drop is
// nil there.
type secondaryMod struct {
	add  *btree.BTree
	drop *btree.BTree
}

// layer is one snapshot in a table's layer chain (spec §4.7). Base holds
// committed data; a Transaction layer holds mutations atop parent, pushed
// on begin/savepoint and collapsed on commit/release or discarded on
// rollback (spec §3 Lifecycle).
type layer struct {
	kind   layerKind
	name   string // savepoint name; empty for Base and for the implicit statement layer
	parent *layer

	primary       *btree.BTree             // pkItem, keyed by RowKey
	secondary     map[string]*secondaryMod // index name -> Add/Drop trees
	deletedRowIDs map[int64]struct{}       // explicit rowid deletions (Transaction only, spec §4.7)
}

func newBaseLayer(indexNames []string) *layer {
	l := &layer{kind: layerBase, primary: btree.New(btreeDegree), secondary: make(map[string]*secondaryMod, len(indexNames))}
	for _, n := range indexNames {
		l.secondary[n] = &secondaryMod{add: btree.New(btreeDegree)}
	}
	return l
}

func newTransactionLayer(parent *layer, name string, indexNames []string) *layer {
	l := &layer{
		kind:          layerTransaction,
		name:          name,
		parent:        parent,
		primary:       btree.New(btreeDegree),
		secondary:     make(map[string]*secondaryMod, len(indexNames)),
		deletedRowIDs: make(map[int64]struct{}),
	}
	for _, n := range indexNames {
		l.secondary[n] = &secondaryMod{add: btree.New(btreeDegree), drop: btree.New(btreeDegree)}
	}
	return l
}

// chainToRoot returns the layer chain from Base (index 0) to l (the
// topmost, index len-1), the order mergePrimaryChain/mergeSecondaryChain
// fold over.
func chainToRoot(l *layer) []*layer {
	var chain []*layer
	for cur := l; cur != nil; cur = cur.parent {
		chain = append(chain, cur)
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}
