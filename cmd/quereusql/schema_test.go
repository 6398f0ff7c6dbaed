package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Digithought/quereus-sub006/types"
)

func TestPhysicalFromNameKnownTypes(t *testing.T) {
	p, err := physicalFromName("integer")
	require.NoError(t, err)
	assert.Equal(t, types.PhysicalInteger, p)

	p, err = physicalFromName("text")
	require.NoError(t, err)
	assert.Equal(t, types.PhysicalText, p)
}

func TestPhysicalFromNameRejectsUnknown(t *testing.T) {
	_, err := physicalFromName("enum")
	assert.Error(t, err)
}

func TestLoadSchemaDocumentParsesTables(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "schema.yaml")
	doc := `
tables:
  - name: users
    schema: main
    primary_key: [id]
    columns:
      - name: id
        type: integer
      - name: name
        type: text
        nullable: true
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	schemas, err := loadSchemaDocument(path)
	require.NoError(t, err)
	require.Len(t, schemas, 1)
	assert.Equal(t, "users", schemas[0].Name)
	assert.Equal(t, "main", schemas[0].SchemaName)
	require.Len(t, schemas[0].Columns, 2)
	assert.Equal(t, types.PhysicalInteger, schemas[0].Columns[0].Logical.Physical)
	assert.True(t, schemas[0].Columns[1].Nullable)
	assert.Equal(t, []string{"id"}, schemas[0].PrimaryKey)
}

func TestLoadSchemaDocumentRejectsUnknownField(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "schema.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tables:\n  - bogus_field: 1\n"), 0o644))

	_, err := loadSchemaDocument(path)
	assert.Error(t, err)
}
