package memtable

import (
	"github.com/Digithought/quereus-sub006/errs"
	"github.com/Digithought/quereus-sub006/vtab"
)

// applyLocked performs one write against the topmost transaction layer
// (spec §4.7 "All writes happen on the topmost transaction layer"). Caller
// holds t.mu and has already ensured a transaction layer is open.
func (t *memoryTable) applyLocked(args vtab.UpdateArgs) (vtab.UpdateResult, error) {
	switch args.Op {
	case vtab.UpdateInsert:
		return t.insertLocked(args)
	case vtab.UpdateUpdate:
		return t.updateLocked(args)
	case vtab.UpdateDelete:
		return t.deleteLocked(args)
	default:
		return vtab.UpdateResult{}, errs.New(errs.KindMisuse, "unknown update op %d", args.Op)
	}
}

func (t *memoryTable) lookupLocked(key RowKey) (*pkItem, bool) {
	chain := chainToRoot(t.topLayer())
	for _, it := range mergePrimaryChain(chain) {
		if compareKey(it.key, key) == 0 {
			return it, true
		}
	}
	return nil, false
}

func (t *memoryTable) insertLocked(args vtab.UpdateArgs) (vtab.UpdateResult, error) {
	row := append(vtab.Row{}, args.NewValues...)
	key := t.keyOf(row, t.pkCols)
	if existing, ok := t.lookupLocked(key); ok {
		switch args.ConflictResolution {
		case vtab.ConflictIgnore:
			return vtab.UpdateResult{Row: existing.row}, nil
		case vtab.ConflictReplace:
			if err := t.deleteKeyLocked(existing.key, existing.row, existing.rowID); err != nil {
				return vtab.UpdateResult{}, err
			}
		default:
			return vtab.UpdateResult{}, errs.Constraint("primary_key", "", "row already exists for key in %s.%s", t.schemaName, t.tableName)
		}
	}
	rowID := t.nextRowID + 1
	t.nextRowID = rowID
	top := t.topLayer()
	top.primary.ReplaceOrInsert(&pkItem{key: key, row: row, rowID: rowID})
	t.rowKeys[rowID] = key
	for _, idx := range t.indexes {
		ikey := t.keyOf(row, t.indexCols[idx.Name])
		top.secondary[idx.Name].add.ReplaceOrInsert(&skItem{key: ikey, rowID: rowID})
	}
	t.queueEvent(vtab.DataChangeEvent{Type: vtab.ChangeInsert, Key: key.toRow(), NewRow: row})
	return vtab.UpdateResult{Row: row}, nil
}

func (t *memoryTable) deleteLocked(args vtab.UpdateArgs) (vtab.UpdateResult, error) {
	key := t.resolveOldKey(args)
	existing, ok := t.lookupLocked(key)
	if !ok {
		return vtab.UpdateResult{Deleted: false}, nil
	}
	if err := t.deleteKeyLocked(existing.key, existing.row, existing.rowID); err != nil {
		return vtab.UpdateResult{}, err
	}
	t.queueEvent(vtab.DataChangeEvent{Type: vtab.ChangeDelete, Key: existing.key.toRow(), OldRow: existing.row})
	return vtab.UpdateResult{Deleted: true, DeletedKey: existing.key.toRow()}, nil
}

// deleteKeyLocked writes the DeletionMarker and Drop entries spec §4.7's
// write path describes, against whichever row currently occupies key.
func (t *memoryTable) deleteKeyLocked(key RowKey, row vtab.Row, rowID int64) error {
	top := t.topLayer()
	top.primary.ReplaceOrInsert(&pkItem{key: key, rowID: rowID, deleted: true})
	top.deletedRowIDs[rowID] = struct{}{}
	for _, idx := range t.indexes {
		ikey := t.keyOf(row, t.indexCols[idx.Name])
		top.secondary[idx.Name].drop.ReplaceOrInsert(&skItem{key: ikey, rowID: rowID})
	}
	return nil
}

func (t *memoryTable) updateLocked(args vtab.UpdateArgs) (vtab.UpdateResult, error) {
	oldKey := t.resolveOldKey(args)
	existing, ok := t.lookupLocked(oldKey)
	if !ok {
		return vtab.UpdateResult{}, errs.New(errs.KindSchemaMissing, "no row for key in %s.%s", t.schemaName, t.tableName)
	}
	newRow := append(vtab.Row{}, args.NewValues...)
	newKey := t.keyOf(newRow, t.pkCols)
	if compareKey(oldKey, newKey) != 0 {
		// Primary key changed: delete + insert (spec §4.7 "UPDATE is a
		// DELETE+INSERT when the primary key changes").
		if err := t.deleteKeyLocked(existing.key, existing.row, existing.rowID); err != nil {
			return vtab.UpdateResult{}, err
		}
		res, err := t.insertLocked(vtab.UpdateArgs{Op: vtab.UpdateInsert, NewValues: newRow, ConflictResolution: args.ConflictResolution})
		if err != nil {
			return vtab.UpdateResult{}, err
		}
		t.pending[len(t.pending)-1] = vtab.DataChangeEvent{Type: vtab.ChangeUpdate, Key: newKey.toRow(), OldRow: existing.row, NewRow: newRow}
		return res, nil
	}
	top := t.topLayer()
	top.primary.ReplaceOrInsert(&pkItem{key: existing.key, row: newRow, rowID: existing.rowID})
	for _, idx := range t.indexes {
		oldIKey := t.keyOf(existing.row, t.indexCols[idx.Name])
		newIKey := t.keyOf(newRow, t.indexCols[idx.Name])
		if compareKey(oldIKey, newIKey) == 0 {
			continue
		}
		top.secondary[idx.Name].drop.ReplaceOrInsert(&skItem{key: oldIKey, rowID: existing.rowID})
		top.secondary[idx.Name].add.ReplaceOrInsert(&skItem{key: newIKey, rowID: existing.rowID})
	}
	t.queueEvent(vtab.DataChangeEvent{Type: vtab.ChangeUpdate, Key: existing.key.toRow(), OldRow: existing.row, NewRow: newRow})
	return vtab.UpdateResult{Row: newRow}, nil
}

func (t *memoryTable) resolveOldKey(args vtab.UpdateArgs) RowKey {
	if args.OldKey != nil {
		return RowKey(append(vtab.Row{}, args.OldKey...))
	}
	return t.keyOf(args.OldValues, t.pkCols)
}

func (k RowKey) toRow() vtab.Row { return vtab.Row(k) }
