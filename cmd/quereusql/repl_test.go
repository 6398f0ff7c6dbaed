package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Digithought/quereus-sub006/catalog"
	"github.com/Digithought/quereus-sub006/config"
	"github.com/Digithought/quereus-sub006/engine"
	"github.com/Digithought/quereus-sub006/types"
	"github.com/Digithought/quereus-sub006/vtab"
)

func newTestDBWithUsers(t *testing.T) (*engine.Database, *catalog.TableSchema) {
	t.Helper()
	db := engine.New(config.Options{}, nil)
	schema := &catalog.TableSchema{
		Name:       "users",
		SchemaName: "main",
		Columns: []catalog.ColumnDef{
			{Name: "id", Logical: types.LogicalType{Physical: types.PhysicalInteger}},
			{Name: "name", Logical: types.LogicalType{Physical: types.PhysicalText}, Nullable: true},
		},
		PrimaryKey: []string{"id"},
	}
	require.NoError(t, db.CreateTable(context.Background(), schema))

	table, err := db.OpenTable(context.Background(), "main", "users")
	require.NoError(t, err)
	conn, err := table.CreateConnection(context.Background())
	require.NoError(t, err)
	require.NoError(t, conn.Begin(context.Background()))
	_, err = table.Update(context.Background(), vtab.UpdateArgs{
		Op:        vtab.UpdateInsert,
		NewValues: vtab.Row{types.Int(1), types.Text("alice")},
	})
	require.NoError(t, err)
	require.NoError(t, conn.Commit(context.Background()))

	return db, schema
}

func TestREPLScanPrintsRows(t *testing.T) {
	db, schema := newTestDBWithUsers(t)
	var out bytes.Buffer
	r := newREPL(db, []*catalog.TableSchema{schema}, &out, false)

	require.NoError(t, r.scan(context.Background(), []string{"scan", "main", "users"}))
	assert.Contains(t, out.String(), "alice")
	assert.Contains(t, out.String(), "(1 rows)")
}

func TestREPLExplainPrintsPlanDump(t *testing.T) {
	db, schema := newTestDBWithUsers(t)
	var out bytes.Buffer
	r := newREPL(db, []*catalog.TableSchema{schema}, &out, false)

	require.NoError(t, r.explain([]string{"explain", "main", "users"}))
	assert.NotEmpty(t, out.String())
}

func TestREPLScanUnknownTableErrors(t *testing.T) {
	db, schema := newTestDBWithUsers(t)
	r := newREPL(db, []*catalog.TableSchema{schema}, &bytes.Buffer{}, false)

	err := r.scan(context.Background(), []string{"scan", "main", "ghost"})
	assert.Error(t, err)
}

func TestREPLRunQuitExits(t *testing.T) {
	db, schema := newTestDBWithUsers(t)
	var out bytes.Buffer
	r := newREPL(db, []*catalog.TableSchema{schema}, &out, false)

	err := r.run(context.Background(), strings.NewReader("tables\nquit\n"))
	require.NoError(t, err)
	assert.Contains(t, out.String(), "main.users")
}
