package memtable

import (
	"github.com/google/btree"

	"github.com/Digithought/quereus-sub006/errs"
)

// beginLocked pushes a new anonymous transaction layer atop the current top
// (spec §3 Lifecycle: "begin pushes a new Transaction layer"). Caller holds
// t.mu.
func (t *memoryTable) beginLocked() {
	t.txStack = append(t.txStack, newTransactionLayer(t.topLayer(), "", t.indexNames()))
}

// commitLocked drains deferred checks, then folds every open transaction
// layer into Base in order, and only then emits the pending change events
// (spec §4.7 invariant 7: "events are only emitted once a transaction
// actually commits").
func (t *memoryTable) commitLocked() error {
	if len(t.txStack) == 0 {
		return nil
	}
	if err := t.deferred.drain(); err != nil {
		t.rollbackLocked()
		return err
	}
	for _, l := range t.txStack {
		foldLayerIntoBase(t.base, l)
	}
	t.txStack = nil
	t.emitPendingLocked()
	return nil
}

// rollbackLocked discards every open transaction layer without emitting any
// event (spec §4.7 invariant 7).
func (t *memoryTable) rollbackLocked() {
	t.txStack = nil
	t.pending = nil
	t.deferred.clear()
}

// foldLayerIntoBase applies one transaction layer's net effect directly to
// Base: a live primary entry is written through; a deletion marker removes
// the row from Base entirely (Base has no parent left to shadow, so the
// marker itself has no further use once applied); secondary Add entries are
// inserted and Drop entries removed from Base's committed set.
func foldLayerIntoBase(base, l *layer) {
	l.primary.Ascend(func(i btree.Item) bool {
		p := i.(*pkItem)
		if p.deleted {
			base.primary.Delete(p)
		} else {
			base.primary.ReplaceOrInsert(p)
		}
		return true
	})
	for name, sm := range l.secondary {
		baseSM := base.secondary[name]
		if baseSM == nil {
			continue
		}
		sm.add.Ascend(func(i btree.Item) bool {
			baseSM.add.ReplaceOrInsert(i)
			return true
		})
		if sm.drop != nil {
			sm.drop.Ascend(func(i btree.Item) bool {
				baseSM.add.Delete(i)
				return true
			})
		}
	}
}

// foldLayerIntoLayer applies child's net effect onto parent, both
// Transaction layers (used by savepoint release). Unlike folding into Base,
// deletion markers and the deleted-rowid set must be carried forward since
// parent may itself have a parent the marker still needs to shadow.
func foldLayerIntoLayer(parent, child *layer) {
	child.primary.Ascend(func(i btree.Item) bool {
		parent.primary.ReplaceOrInsert(i)
		return true
	})
	for rowID := range child.deletedRowIDs {
		parent.deletedRowIDs[rowID] = struct{}{}
	}
	for name, sm := range child.secondary {
		parentSM := parent.secondary[name]
		if parentSM == nil {
			continue
		}
		sm.add.Ascend(func(i btree.Item) bool {
			s := i.(*skItem)
			parentSM.drop.Delete(s)
			parentSM.add.ReplaceOrInsert(s)
			return true
		})
		sm.drop.Ascend(func(i btree.Item) bool {
			s := i.(*skItem)
			parentSM.add.Delete(s)
			parentSM.drop.ReplaceOrInsert(s)
			return true
		})
	}
}

func pushSavepointLocked(t *memoryTable, name string) {
	t.txStack = append(t.txStack, newTransactionLayer(t.topLayer(), name, t.indexNames()))
}

// releaseSavepointLocked folds the named savepoint layer's own
// modifications into its parent and removes it from the stack; every layer
// above it (and the savepoints they name) is left exactly as it was, merely
// shifted down one slot (spec §3 "release folds into parent... layers above
// the target are kept"). A RollbackTo targeting a savepoint opened after
// the one being released must still find it afterward.
func releaseSavepointLocked(t *memoryTable, name string) error {
	idx := savepointIndex(t, name)
	if idx < 0 {
		return errs.New(errs.KindMisuse, "no such savepoint %q", name)
	}
	target := t.txStack[idx]
	var parent *layer
	if idx > 0 {
		parent = t.txStack[idx-1]
		foldLayerIntoLayer(parent, target)
	} else {
		parent = t.base
		foldLayerIntoBase(parent, target)
	}
	t.txStack = append(t.txStack[:idx], t.txStack[idx+1:]...)
	if idx < len(t.txStack) {
		t.txStack[idx].parent = parent
	}
	return nil
}

// rollbackToSavepointLocked discards the named savepoint layer and
// everything above it (spec §3 "rollback-to discards layers
// above-and-including").
func rollbackToSavepointLocked(t *memoryTable, name string) error {
	idx := savepointIndex(t, name)
	if idx < 0 {
		return errs.New(errs.KindMisuse, "no such savepoint %q", name)
	}
	t.txStack = t.txStack[:idx]
	return nil
}

func savepointIndex(t *memoryTable, name string) int {
	for i := len(t.txStack) - 1; i >= 0; i-- {
		if t.txStack[i].name == name {
			return i
		}
	}
	return -1
}
