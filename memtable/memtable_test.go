package memtable

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Digithought/quereus-sub006/types"
	"github.com/Digithought/quereus-sub006/vtab"
)

func newTestSpec() vtab.TableSpec {
	return vtab.TableSpec{
		SchemaName: "main",
		TableName:  "widgets",
		Columns: []vtab.ColumnSpec{
			{Name: "id", Logical: types.LogicalType{Physical: types.PhysicalInteger}},
			{Name: "name", Logical: types.LogicalType{Physical: types.PhysicalText}},
		},
		PrimaryKey: []string{"id"},
		Indexes: []vtab.IndexSpec{
			{Name: "idx_name", Columns: []string{"name"}},
		},
	}
}

func newTestTable(t *testing.T) *memoryTable {
	t.Helper()
	tbl, err := newMemoryTable(newTestSpec())
	require.NoError(t, err)
	return tbl
}

func row(id int64, name string) vtab.Row {
	return vtab.Row{types.Int(id), types.Text(name)}
}

func scanAll(t *testing.T, tbl *memoryTable) []vtab.Row {
	t.Helper()
	stream, err := tbl.Query(context.Background(), vtab.FilterInfo{})
	require.NoError(t, err)
	defer stream.Close()
	var out []vtab.Row
	for {
		r, err := stream.Next(context.Background())
		require.NoError(t, err)
		if r == nil {
			break
		}
		out = append(out, r)
	}
	return out
}

func TestInsertAutocommitVisibleAfterwards(t *testing.T) {
	tbl := newTestTable(t)
	_, err := tbl.Update(context.Background(), vtab.UpdateArgs{Op: vtab.UpdateInsert, NewValues: row(1, "a")})
	require.NoError(t, err)

	rows := scanAll(t, tbl)
	require.Len(t, rows, 1)
	assert.Equal(t, row(1, "a"), rows[0])
}

func TestUpdateInPlaceKeepsRowId(t *testing.T) {
	tbl := newTestTable(t)
	_, err := tbl.Update(context.Background(), vtab.UpdateArgs{Op: vtab.UpdateInsert, NewValues: row(1, "a")})
	require.NoError(t, err)
	before, ok := tbl.lookupLocked(RowKey{types.Int(1)})
	require.True(t, ok)

	_, err = tbl.Update(context.Background(), vtab.UpdateArgs{
		Op:        vtab.UpdateUpdate,
		OldKey:    vtab.Row{types.Int(1)},
		NewValues: row(1, "b"),
	})
	require.NoError(t, err)

	rows := scanAll(t, tbl)
	require.Len(t, rows, 1)
	assert.Equal(t, row(1, "b"), rows[0])
	after, ok := tbl.lookupLocked(RowKey{types.Int(1)})
	require.True(t, ok)
	assert.Equal(t, before.rowID, after.rowID)
}

func TestUpdateChangingPrimaryKeyIsDeleteThenInsert(t *testing.T) {
	tbl := newTestTable(t)
	_, err := tbl.Update(context.Background(), vtab.UpdateArgs{Op: vtab.UpdateInsert, NewValues: row(1, "a")})
	require.NoError(t, err)

	_, err = tbl.Update(context.Background(), vtab.UpdateArgs{
		Op:        vtab.UpdateUpdate,
		OldKey:    vtab.Row{types.Int(1)},
		NewValues: row(2, "a"),
	})
	require.NoError(t, err)

	rows := scanAll(t, tbl)
	require.Len(t, rows, 1)
	assert.Equal(t, row(2, "a"), rows[0])
}

func TestDeleteRemovesRow(t *testing.T) {
	tbl := newTestTable(t)
	_, err := tbl.Update(context.Background(), vtab.UpdateArgs{Op: vtab.UpdateInsert, NewValues: row(1, "a")})
	require.NoError(t, err)

	res, err := tbl.Update(context.Background(), vtab.UpdateArgs{Op: vtab.UpdateDelete, OldKey: vtab.Row{types.Int(1)}})
	require.NoError(t, err)
	assert.True(t, res.Deleted)
	assert.Empty(t, scanAll(t, tbl))
}

func TestInsertConflictAbortByDefault(t *testing.T) {
	tbl := newTestTable(t)
	_, err := tbl.Update(context.Background(), vtab.UpdateArgs{Op: vtab.UpdateInsert, NewValues: row(1, "a")})
	require.NoError(t, err)

	_, err = tbl.Update(context.Background(), vtab.UpdateArgs{Op: vtab.UpdateInsert, NewValues: row(1, "b")})
	assert.Error(t, err)
}

func TestInsertConflictIgnoreKeepsOriginal(t *testing.T) {
	tbl := newTestTable(t)
	_, err := tbl.Update(context.Background(), vtab.UpdateArgs{Op: vtab.UpdateInsert, NewValues: row(1, "a")})
	require.NoError(t, err)

	_, err = tbl.Update(context.Background(), vtab.UpdateArgs{
		Op: vtab.UpdateInsert, NewValues: row(1, "b"), ConflictResolution: vtab.ConflictIgnore,
	})
	require.NoError(t, err)

	rows := scanAll(t, tbl)
	require.Len(t, rows, 1)
	assert.Equal(t, row(1, "a"), rows[0])
}

func TestInsertConflictReplaceOverwrites(t *testing.T) {
	tbl := newTestTable(t)
	_, err := tbl.Update(context.Background(), vtab.UpdateArgs{Op: vtab.UpdateInsert, NewValues: row(1, "a")})
	require.NoError(t, err)

	_, err = tbl.Update(context.Background(), vtab.UpdateArgs{
		Op: vtab.UpdateInsert, NewValues: row(1, "b"), ConflictResolution: vtab.ConflictReplace,
	})
	require.NoError(t, err)

	rows := scanAll(t, tbl)
	require.Len(t, rows, 1)
	assert.Equal(t, row(1, "b"), rows[0])
}

// --- merge-cursor rules, exercised directly against an open transaction layer ---

func TestMergeRuleOnlyParentRemains(t *testing.T) {
	tbl := newTestTable(t)
	require.NoError(t, commitInsert(tbl, row(1, "a")))
	tbl.mu.Lock()
	tbl.beginLocked()
	items := mergePrimaryChain(chainToRoot(tbl.topLayer()))
	tbl.mu.Unlock()
	require.Len(t, items, 1)
	assert.Equal(t, row(1, "a"), items[0].row)
}

func TestMergeRuleOnlyModRemains(t *testing.T) {
	tbl := newTestTable(t)
	tbl.mu.Lock()
	tbl.beginLocked()
	_, err := tbl.insertLocked(vtab.UpdateArgs{Op: vtab.UpdateInsert, NewValues: row(1, "a")})
	require.NoError(t, err)
	items := mergePrimaryChain(chainToRoot(tbl.topLayer()))
	tbl.mu.Unlock()
	require.Len(t, items, 1)
	assert.Equal(t, row(1, "a"), items[0].row)
}

func TestMergeRuleModShadowsParentOnEqualKey(t *testing.T) {
	tbl := newTestTable(t)
	require.NoError(t, commitInsert(tbl, row(1, "a")))
	tbl.mu.Lock()
	tbl.beginLocked()
	_, err := tbl.updateLocked(vtab.UpdateArgs{Op: vtab.UpdateUpdate, OldKey: vtab.Row{types.Int(1)}, NewValues: row(1, "z")})
	require.NoError(t, err)
	items := mergePrimaryChain(chainToRoot(tbl.topLayer()))
	tbl.mu.Unlock()
	require.Len(t, items, 1)
	assert.Equal(t, row(1, "z"), items[0].row)
}

func TestMergeRuleDeletionMarkerSuppressesParentRow(t *testing.T) {
	tbl := newTestTable(t)
	require.NoError(t, commitInsert(tbl, row(1, "a")))
	tbl.mu.Lock()
	tbl.beginLocked()
	_, err := tbl.deleteLocked(vtab.UpdateArgs{Op: vtab.UpdateDelete, OldKey: vtab.Row{types.Int(1)}})
	require.NoError(t, err)
	items := mergePrimaryChain(chainToRoot(tbl.topLayer()))
	tbl.mu.Unlock()
	assert.Empty(t, items)
}

func TestMergeRuleKeyOrderingBetweenModAndParent(t *testing.T) {
	tbl := newTestTable(t)
	require.NoError(t, commitInsert(tbl, row(2, "b")))
	tbl.mu.Lock()
	tbl.beginLocked()
	_, err := tbl.insertLocked(vtab.UpdateArgs{Op: vtab.UpdateInsert, NewValues: row(1, "a")})
	require.NoError(t, err)
	items := mergePrimaryChain(chainToRoot(tbl.topLayer()))
	tbl.mu.Unlock()
	require.Len(t, items, 2)
	assert.Equal(t, row(1, "a"), items[0].row)
	assert.Equal(t, row(2, "b"), items[1].row)
}

func commitInsert(tbl *memoryTable, r vtab.Row) error {
	_, err := tbl.Update(context.Background(), vtab.UpdateArgs{Op: vtab.UpdateInsert, NewValues: r})
	return err
}

// --- savepoints ---

func TestSavepointRollbackToDiscardsLaterWrites(t *testing.T) {
	tbl := newTestTable(t)
	conn, err := tbl.CreateConnection(context.Background())
	require.NoError(t, err)
	require.NoError(t, conn.Begin(context.Background()))
	require.NoError(t, commitInsertNoAutocommit(tbl, row(1, "a")))
	require.NoError(t, conn.CreateSavepoint(context.Background(), "sp1"))
	require.NoError(t, commitInsertNoAutocommit(tbl, row(2, "b")))
	require.NoError(t, conn.RollbackToSavepoint(context.Background(), "sp1"))
	require.NoError(t, conn.Commit(context.Background()))

	rows := scanAll(t, tbl)
	require.Len(t, rows, 1)
	assert.Equal(t, row(1, "a"), rows[0])
}

func TestSavepointReleaseKeepsLaterWrites(t *testing.T) {
	tbl := newTestTable(t)
	conn, err := tbl.CreateConnection(context.Background())
	require.NoError(t, err)
	require.NoError(t, conn.Begin(context.Background()))
	require.NoError(t, commitInsertNoAutocommit(tbl, row(1, "a")))
	require.NoError(t, conn.CreateSavepoint(context.Background(), "sp1"))
	require.NoError(t, commitInsertNoAutocommit(tbl, row(2, "b")))
	require.NoError(t, conn.ReleaseSavepoint(context.Background(), "sp1"))
	require.NoError(t, conn.Commit(context.Background()))

	rows := scanAll(t, tbl)
	assert.Len(t, rows, 2)
}

// TestSavepointReleaseKeepsLaterSavepointsAddressable guards against
// release folding layers *above* the target into it (the opposite of spec
// §3's "layers above the target are kept"): releasing sp1 must not make
// sp2, opened afterward, unreachable.
func TestSavepointReleaseKeepsLaterSavepointsAddressable(t *testing.T) {
	tbl := newTestTable(t)
	conn, err := tbl.CreateConnection(context.Background())
	require.NoError(t, err)
	require.NoError(t, conn.Begin(context.Background()))
	require.NoError(t, commitInsertNoAutocommit(tbl, row(1, "a")))
	require.NoError(t, conn.CreateSavepoint(context.Background(), "sp1"))
	require.NoError(t, commitInsertNoAutocommit(tbl, row(2, "b")))
	require.NoError(t, conn.CreateSavepoint(context.Background(), "sp2"))
	require.NoError(t, commitInsertNoAutocommit(tbl, row(3, "c")))

	require.NoError(t, conn.ReleaseSavepoint(context.Background(), "sp1"))
	require.NoError(t, conn.RollbackToSavepoint(context.Background(), "sp2"))
	require.NoError(t, conn.Commit(context.Background()))

	rows := scanAll(t, tbl)
	require.Len(t, rows, 2)
	assert.Equal(t, row(1, "a"), rows[0])
	assert.Equal(t, row(2, "b"), rows[1])
}

func commitInsertNoAutocommit(tbl *memoryTable, r vtab.Row) error {
	tbl.mu.Lock()
	defer tbl.mu.Unlock()
	_, err := tbl.applyLocked(vtab.UpdateArgs{Op: vtab.UpdateInsert, NewValues: r})
	return err
}

// --- commit/rollback event timing ---

func TestEventsOnlyEmittedAfterCommit(t *testing.T) {
	tbl := newTestTable(t)
	var events []vtab.DataChangeEvent
	tbl.OnDataChange(func(e vtab.DataChangeEvent) { events = append(events, e) })

	conn, err := tbl.CreateConnection(context.Background())
	require.NoError(t, err)
	require.NoError(t, conn.Begin(context.Background()))
	require.NoError(t, commitInsertNoAutocommit(tbl, row(1, "a")))
	assert.Empty(t, events, "no event before commit")

	require.NoError(t, conn.Commit(context.Background()))
	require.Len(t, events, 1)
	assert.Equal(t, vtab.ChangeInsert, events[0].Type)
}

func TestRollbackEmitsNoEvents(t *testing.T) {
	tbl := newTestTable(t)
	var events []vtab.DataChangeEvent
	tbl.OnDataChange(func(e vtab.DataChangeEvent) { events = append(events, e) })

	conn, err := tbl.CreateConnection(context.Background())
	require.NoError(t, err)
	require.NoError(t, conn.Begin(context.Background()))
	require.NoError(t, commitInsertNoAutocommit(tbl, row(1, "a")))
	require.NoError(t, conn.Rollback(context.Background()))

	assert.Empty(t, events)
	assert.Empty(t, scanAll(t, tbl))
}

// --- secondary index scan ---

func TestSecondaryIndexScanFindsInsertedRow(t *testing.T) {
	tbl := newTestTable(t)
	require.NoError(t, commitInsert(tbl, row(1, "a")))
	require.NoError(t, commitInsert(tbl, row(2, "b")))

	tbl.mu.Lock()
	rows := tbl.scanSecondaryLocked(chainToRoot(tbl.topLayer()), "idx_name")
	tbl.mu.Unlock()

	require.Len(t, rows, 2)
	assert.Equal(t, row(1, "a"), rows[0])
	assert.Equal(t, row(2, "b"), rows[1])
}

func TestSecondaryIndexReflectsUpdate(t *testing.T) {
	tbl := newTestTable(t)
	require.NoError(t, commitInsert(tbl, row(1, "a")))
	_, err := tbl.Update(context.Background(), vtab.UpdateArgs{
		Op: vtab.UpdateUpdate, OldKey: vtab.Row{types.Int(1)}, NewValues: row(1, "z"),
	})
	require.NoError(t, err)

	tbl.mu.Lock()
	rows := tbl.scanSecondaryLocked(chainToRoot(tbl.topLayer()), "idx_name")
	tbl.mu.Unlock()

	require.Len(t, rows, 1)
	assert.Equal(t, row(1, "z"), rows[0])
}

// --- deferred checks ---

func TestDeferredCheckFailureAbortsCommit(t *testing.T) {
	tbl := newTestTable(t)
	conn, err := tbl.CreateConnection(context.Background())
	require.NoError(t, err)
	require.NoError(t, conn.Begin(context.Background()))
	require.NoError(t, commitInsertNoAutocommit(tbl, row(1, "a")))

	tbl.mu.Lock()
	tbl.deferred.Enqueue(DeferredCheck{Name: "chk_fail", Eval: func() error {
		return assertError()
	}})
	tbl.mu.Unlock()

	err = conn.Commit(context.Background())
	assert.Error(t, err)
	assert.Empty(t, scanAll(t, tbl), "failed commit rolls back the transaction layers")
}

func assertError() error {
	return errTestDeferredCheck
}

var errTestDeferredCheck = assertErr("deferred check failed")

type assertErr string

func (e assertErr) Error() string { return string(e) }
