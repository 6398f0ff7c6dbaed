package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Digithought/quereus-sub006/catalog"
	"github.com/Digithought/quereus-sub006/config"
	"github.com/Digithought/quereus-sub006/plan"
	"github.com/Digithought/quereus-sub006/types"
	"github.com/Digithought/quereus-sub006/vtab"
)

func newTestDB(t *testing.T) *Database {
	t.Helper()
	return New(config.Options{}, nil)
}

func insertRow(t *testing.T, db *Database, schemaName, tableName string, values vtab.Row) {
	t.Helper()
	table, err := db.OpenTable(context.Background(), schemaName, tableName)
	require.NoError(t, err)
	conn, err := table.CreateConnection(context.Background())
	require.NoError(t, err)
	require.NoError(t, conn.Begin(context.Background()))
	_, err = table.Update(context.Background(), vtab.UpdateArgs{Op: vtab.UpdateInsert, NewValues: values})
	require.NoError(t, err)
	require.NoError(t, conn.Commit(context.Background()))
}

func createUsers(t *testing.T, db *Database) {
	t.Helper()
	err := db.CreateTable(context.Background(), &catalog.TableSchema{
		Name:       "users",
		SchemaName: "main",
		Columns: []catalog.ColumnDef{
			{Name: "id", Logical: types.LogicalType{Physical: types.PhysicalInteger}},
			{Name: "name", Logical: types.LogicalType{Physical: types.PhysicalText}, Nullable: true},
		},
		PrimaryKey: []string{"id"},
	})
	require.NoError(t, err)
}

func TestCreateTableThenPrepareAndRunRetrieve(t *testing.T) {
	db := newTestDB(t)
	createUsers(t, db)

	insertRow(t, db, "main", "users", vtab.Row{types.Int(1), types.Text("alice")})

	alloc := plan.NewAllocator()
	idCol := alloc.Alloc("id")
	nameCol := alloc.Alloc("name")
	root := plan.NewRetrieve("users", "main", []plan.AttrID{idCol, nameCol}, nil)

	stmt, err := db.Prepare(root, alloc, nil)
	require.NoError(t, err)
	defer stmt.Finalize()

	rows, err := stmt.All(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, types.Int(1), rows[0][0])
	assert.Equal(t, types.Text("alice"), rows[0][1])
}

func TestPrepareFailsWhenTableMissing(t *testing.T) {
	db := newTestDB(t)
	alloc := plan.NewAllocator()
	root := plan.NewRetrieve("ghost", "main", nil, nil)
	_, err := db.Prepare(root, alloc, nil)
	assert.Error(t, err)
}

func TestStatementInvalidatedAfterTableDropped(t *testing.T) {
	db := newTestDB(t)
	createUsers(t, db)

	alloc := plan.NewAllocator()
	col := alloc.Alloc("id")
	root := plan.NewRetrieve("users", "main", []plan.AttrID{col}, nil)
	stmt, err := db.Prepare(root, alloc, nil)
	require.NoError(t, err)
	defer stmt.Finalize()

	require.NoError(t, db.DropTable(context.Background(), "main", "users"))

	_, err = stmt.Run(context.Background(), nil)
	assert.Error(t, err)
}

func TestBindRejectsTypeMismatch(t *testing.T) {
	db := newTestDB(t)
	createUsers(t, db)

	alloc := plan.NewAllocator()
	col := alloc.Alloc("id")
	root := plan.NewRetrieve("users", "main", []plan.AttrID{col}, nil)
	stmt, err := db.Prepare(root, alloc, map[string]types.LogicalType{
		"id": {Physical: types.PhysicalInteger},
	})
	require.NoError(t, err)
	defer stmt.Finalize()

	assert.Error(t, stmt.Bind("id", types.Text("nope")))
	assert.NoError(t, stmt.Bind("id", types.Int(3)))
}

func TestExplainReturnsPhysicalPlanDump(t *testing.T) {
	db := newTestDB(t)
	createUsers(t, db)

	alloc := plan.NewAllocator()
	col := alloc.Alloc("id")
	root := plan.NewRetrieve("users", "main", []plan.AttrID{col}, nil)
	stmt, err := db.Prepare(root, alloc, nil)
	require.NoError(t, err)
	defer stmt.Finalize()

	assert.NotEmpty(t, stmt.Explain())
}

func TestFinalizeUnsubscribesFromInvalidation(t *testing.T) {
	db := newTestDB(t)
	createUsers(t, db)

	alloc := plan.NewAllocator()
	col := alloc.Alloc("id")
	root := plan.NewRetrieve("users", "main", []plan.AttrID{col}, nil)
	stmt, err := db.Prepare(root, alloc, nil)
	require.NoError(t, err)

	require.NoError(t, stmt.Finalize())
	require.NoError(t, db.DropTable(context.Background(), "main", "users"))

	_, err = stmt.Run(context.Background(), nil)
	assert.Error(t, err) // finalized, not invalidated, but still unusable
}
