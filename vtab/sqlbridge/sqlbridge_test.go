package sqlbridge

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
			{Name: "name", Logical: types.LogicalType{Physical: types.PhysicalText}, Nullable: true},
		},
		PrimaryKey: []string{"id"},
		ModuleArgs: []string{string(DialectSQLite), ":memory:"},
	}
}

func TestCreateConnectQueryRoundTrip(t *testing.T) {
	mod := New()
	spec := newTestSpec()
	table, err := mod.Create(context.Background(), spec)
	require.NoError(t, err)

	_, err = table.Update(context.Background(), vtab.UpdateArgs{
		Op:        vtab.UpdateInsert,
		NewValues: vtab.Row{types.Int(1), types.Text("bolt")},
	})
	require.NoError(t, err)

	again, err := mod.Connect(context.Background(), "main", "widgets", nil)
	require.NoError(t, err)

	stream, err := again.Query(context.Background(), vtab.FilterInfo{})
	require.NoError(t, err)
	defer stream.Close()

	row, err := stream.Next(context.Background())
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, types.Int(1), row[0])
	assert.Equal(t, types.Text("bolt"), row[1])

	row, err = stream.Next(context.Background())
	require.NoError(t, err)
	assert.Nil(t, row)
}

func TestQueryPushesDownEqualityConstraint(t *testing.T) {
	mod := New()
	spec := newTestSpec()
	table, err := mod.Create(context.Background(), spec)
	require.NoError(t, err)

	for i, name := range []string{"bolt", "nut", "washer"} {
		_, err := table.Update(context.Background(), vtab.UpdateArgs{
			Op:        vtab.UpdateInsert,
			NewValues: vtab.Row{types.Int(int64(i + 1)), types.Text(name)},
		})
		require.NoError(t, err)
	}

	stream, err := table.Query(context.Background(), vtab.FilterInfo{
		Constraints: []vtab.Constraint{{Column: 0, Op: vtab.OpEQ, ArgPos: 0}},
		Params:      []types.Value{types.Int(2)},
	})
	require.NoError(t, err)
	defer stream.Close()

	row, err := stream.Next(context.Background())
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, types.Text("nut"), row[1])

	row, err = stream.Next(context.Background())
	require.NoError(t, err)
	assert.Nil(t, row)
}

func TestUpdateAndDeleteByPrimaryKey(t *testing.T) {
	mod := New()
	spec := newTestSpec()
	table, err := mod.Create(context.Background(), spec)
	require.NoError(t, err)

	_, err = table.Update(context.Background(), vtab.UpdateArgs{
		Op:        vtab.UpdateInsert,
		NewValues: vtab.Row{types.Int(1), types.Text("bolt")},
	})
	require.NoError(t, err)

	_, err = table.Update(context.Background(), vtab.UpdateArgs{
		Op:        vtab.UpdateUpdate,
		OldKey:    vtab.Row{types.Int(1)},
		NewValues: vtab.Row{types.Int(1), types.Text("renamed")},
	})
	require.NoError(t, err)

	stream, err := table.Query(context.Background(), vtab.FilterInfo{})
	require.NoError(t, err)
	row, err := stream.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.Text("renamed"), row[1])
	stream.Close()

	_, err = table.Update(context.Background(), vtab.UpdateArgs{
		Op:     vtab.UpdateDelete,
		OldKey: vtab.Row{types.Int(1)},
	})
	require.NoError(t, err)

	stream, err = table.Query(context.Background(), vtab.FilterInfo{})
	require.NoError(t, err)
	defer stream.Close()
	row, err = stream.Next(context.Background())
	require.NoError(t, err)
	assert.Nil(t, row)
}

func TestConnectionCommitAndRollback(t *testing.T) {
	mod := New()
	spec := newTestSpec()
	table, err := mod.Create(context.Background(), spec)
	require.NoError(t, err)

	conn, err := table.CreateConnection(context.Background())
	require.NoError(t, err)
	require.NoError(t, conn.Begin(context.Background()))
	_, err = table.Update(context.Background(), vtab.UpdateArgs{
		Op:        vtab.UpdateInsert,
		NewValues: vtab.Row{types.Int(9), types.Text("temp")},
	})
	require.NoError(t, err)
	require.NoError(t, conn.Rollback(context.Background()))

	stream, err := table.Query(context.Background(), vtab.FilterInfo{})
	require.NoError(t, err)
	defer stream.Close()
	row, err := stream.Next(context.Background())
	require.NoError(t, err)
	assert.Nil(t, row, "rollback should undo the insert issued inside the transaction")

	conn, err = table.CreateConnection(context.Background())
	require.NoError(t, err)
	require.NoError(t, conn.Begin(context.Background()))
	_, err = table.Update(context.Background(), vtab.UpdateArgs{
		Op:        vtab.UpdateInsert,
		NewValues: vtab.Row{types.Int(10), types.Text("kept")},
	})
	require.NoError(t, err)
	require.NoError(t, conn.Commit(context.Background()))

	committed, err := table.Query(context.Background(), vtab.FilterInfo{})
	require.NoError(t, err)
	defer committed.Close()
	row, err = committed.Next(context.Background())
	require.NoError(t, err)
	require.NotNil(t, row, "commit should keep the insert issued inside the transaction")
	assert.Equal(t, types.Int(10), row[0])
}

func TestDestroyDropsTable(t *testing.T) {
	mod := New()
	spec := newTestSpec()
	_, err := mod.Create(context.Background(), spec)
	require.NoError(t, err)

	require.NoError(t, mod.Destroy(context.Background(), "main", "widgets"))

	_, err = mod.Connect(context.Background(), "main", "widgets", nil)
	assert.Error(t, err)
}
