package txn

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Digithought/quereus-sub006/memtable"
	"github.com/Digithought/quereus-sub006/types"
	"github.com/Digithought/quereus-sub006/vtab"
)

// fakeOpener hands back tables from a fixed memtable.Module, the same way
// engine's real TableProvider would.
type fakeOpener struct {
	module *memtable.Module
}

func (o *fakeOpener) OpenTable(ctx context.Context, schemaName, tableName string) (vtab.Table, error) {
	return o.module.Connect(ctx, schemaName, tableName, nil)
}

func newFixture(t *testing.T) (*Coordinator, vtab.Table) {
	t.Helper()
	mod := memtable.New()
	spec := vtab.TableSpec{
		SchemaName: "main",
		TableName:  "t",
		Columns: []vtab.ColumnSpec{
			{Name: "id", Logical: types.LogicalType{Physical: types.PhysicalInteger}},
		},
		PrimaryKey: []string{"id"},
	}
	table, err := mod.Create(context.Background(), spec)
	require.NoError(t, err)
	return NewCoordinator(&fakeOpener{module: mod}), table
}

func scan(t *testing.T, table vtab.Table) []vtab.Row {
	t.Helper()
	stream, err := table.Query(context.Background(), vtab.FilterInfo{})
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

func TestWithAutocommitCommitsImmediatelyOutsideTransaction(t *testing.T) {
	coord, table := newFixture(t)
	err := coord.WithAutocommit(context.Background(), "main", "t", func(conn vtab.Connection) error {
		_, err := table.Update(context.Background(), vtab.UpdateArgs{Op: vtab.UpdateInsert, NewValues: vtab.Row{types.Int(1)}})
		return err
	})
	require.NoError(t, err)
	assert.Len(t, scan(t, table), 1)
}

func TestExplicitTransactionCommit(t *testing.T) {
	coord, table := newFixture(t)
	require.NoError(t, coord.Begin(context.Background()))
	_, err := coord.ConnectionFor(context.Background(), "main", "t")
	require.NoError(t, err)
	_, err = table.Update(context.Background(), vtab.UpdateArgs{Op: vtab.UpdateInsert, NewValues: vtab.Row{types.Int(1)}})
	require.NoError(t, err)
	require.NoError(t, coord.Commit(context.Background()))
	assert.False(t, coord.InTransaction())
}

func TestBeginTwiceFails(t *testing.T) {
	coord, _ := newFixture(t)
	require.NoError(t, coord.Begin(context.Background()))
	assert.Error(t, coord.Begin(context.Background()))
}

func TestRollbackToUnknownSavepointFails(t *testing.T) {
	coord, _ := newFixture(t)
	require.NoError(t, coord.Begin(context.Background()))
	assert.Error(t, coord.RollbackTo(context.Background(), "nope"))
}

func TestSavepointReplayedOnLaterConnection(t *testing.T) {
	coord, table := newFixture(t)
	require.NoError(t, coord.Begin(context.Background()))
	require.NoError(t, coord.Savepoint(context.Background(), "sp1"))
	conn, err := coord.ConnectionFor(context.Background(), "main", "t")
	require.NoError(t, err)
	assert.NotNil(t, conn)
	// the connection opened after SAVEPOINT knows sp1, so rolling back to it succeeds
	require.NoError(t, coord.RollbackTo(context.Background(), "sp1"))
	require.NoError(t, coord.Commit(context.Background()))
	_ = table
}
