// Package memtable implements the Memory Table Engine (spec §4.7): the
// default vtab.Module backing ordinary tables with an MVCC-style layer
// chain of a committed Base and a stack of per-transaction/savepoint
// layers, read through a merge-cursor and written through an explicit
// insert/update/delete path.
//
// Grounded on the teacher's driver package, which keyed per-backend state
// off a schema name in a map; here the map key extends to (schema, table)
// since one memtable.Module instance serves every memory-backed table in a
// database, not one connection per backend.
package memtable

import (
	"context"
	"sync"

	"github.com/Digithought/quereus-sub006/errs"
	"github.com/Digithought/quereus-sub006/vtab"
)

// Module is the default "memory" vtab.Module (spec §4.7). One Module
// instance owns every memoryTable it has created or connected to.
type Module struct {
	mu     sync.Mutex
	tables map[tableKey]*memoryTable
}

type tableKey struct {
	schema string
	table  string
}

// New returns an empty memory-table module.
func New() *Module {
	return &Module{tables: make(map[tableKey]*memoryTable)}
}

func (m *Module) Create(ctx context.Context, spec vtab.TableSpec) (vtab.Table, error) {
	key := tableKey{spec.SchemaName, spec.TableName}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.tables[key]; exists {
		return nil, errs.New(errs.KindMisuse, "table %s.%s already exists", spec.SchemaName, spec.TableName)
	}
	t, err := newMemoryTable(spec)
	if err != nil {
		return nil, err
	}
	m.tables[key] = t
	return t, nil
}

// Connect attaches to a table a prior Create already built. The memory
// module has no on-disk state to reattach to, so Connect only ever
// succeeds for a table this same Module instance created (spec §4.6's
// Connect is otherwise meant for modules backed by external/persisted
// state, which memtable is not).
func (m *Module) Connect(ctx context.Context, schemaName, tableName string, options map[string]string) (vtab.Table, error) {
	key := tableKey{schemaName, tableName}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tables[key]
	if !ok {
		return nil, errs.New(errs.KindSchemaMissing, "no such memory table %s.%s", schemaName, tableName)
	}
	return t, nil
}

func (m *Module) Destroy(ctx context.Context, schemaName, tableName string) error {
	key := tableKey{schemaName, tableName}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tables[key]; !ok {
		return errs.New(errs.KindSchemaMissing, "no such memory table %s.%s", schemaName, tableName)
	}
	delete(m.tables, key)
	return nil
}

var _ vtab.Module = (*Module)(nil)
