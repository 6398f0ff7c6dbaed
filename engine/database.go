// Package engine is the public API (spec §6): Database and Statement,
// grounded on the teacher's driver/database.go Database façade (a single
// struct dispatching across backends) and cmd/*def/main.go's
// prepare-then-run flow, collapsed here from N separate CLI entrypoints
// into one embeddable Database a host program constructs directly.
//
// spec.md §1 excludes the SQL lexer/parser from this port's scope, so
// "prepare(sql, paramTypes?)" becomes Prepare(root plan.Node, alloc,
// paramTypes): a host (or, in this repo, a test) builds the plan.Node tree
// itself — by hand or via its own SQL front-end — and Prepare takes it from
// there: dependency tracking, re-plan-on-invalidation, optimization, and
// execution. This is recorded as an explicit Open Question resolution in
// DESIGN.md rather than left implicit.
package engine

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/Digithought/quereus-sub006/catalog"
	"github.com/Digithought/quereus-sub006/config"
	"github.com/Digithought/quereus-sub006/errs"
	"github.com/Digithought/quereus-sub006/memtable"
	"github.com/Digithought/quereus-sub006/runtime"
	"github.com/Digithought/quereus-sub006/txn"
	"github.com/Digithought/quereus-sub006/types"
	"github.com/Digithought/quereus-sub006/vtab"
)

// Database is the embeddable engine handle a host program constructs once
// per logical database (spec §5 "lifecycle tied to the owning database
// handle").
type Database struct {
	mu sync.Mutex

	Catalog *catalog.Catalog
	Options config.Options
	Logger  *zap.Logger

	coord     *txn.Coordinator
	modules   map[string]vtab.Module
	functions map[string]runtime.ScalarFunc

	dataListeners   []func(vtab.DataChangeEvent)
	schemaListeners []func(vtab.SchemaChangeEvent)
	subscribed      map[string]bool

	// Trace, when set, receives the TraceRecords the runtime emits for a
	// statement's root instruction (as it runs, and when its row stream
	// ends) while Options.RuntimeMetrics is enabled (spec §6); a host assigns it
	// from a trace.Sink built with whichever observability backends it wants.
	Trace runtime.TraceSink
}

func (db *Database) traceSink() runtime.TraceSink {
	if !db.Options.RuntimeMetrics {
		return nil
	}
	return db.Trace
}

func (db *Database) functionsSnapshot() map[string]runtime.ScalarFunc {
	db.mu.Lock()
	defer db.mu.Unlock()
	out := make(map[string]runtime.ScalarFunc, len(db.functions))
	for k, v := range db.functions {
		out[k] = v
	}
	return out
}

// New builds a Database with the default memory vtab module pre-registered
// (spec §6 default_vtab_module), using opts or config.Default() when opts
// is the zero value's module name is empty.
func New(opts config.Options, logger *zap.Logger) *Database {
	if opts.DefaultVTabModule == "" {
		opts = config.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	db := &Database{
		Catalog:    catalog.New(),
		Options:    opts,
		Logger:     logger,
		modules:    make(map[string]vtab.Module),
		functions:  make(map[string]runtime.ScalarFunc),
		subscribed: make(map[string]bool),
	}
	db.coord = txn.NewCoordinator(db)
	db.RegisterModule(opts.DefaultVTabModule, memtable.New())
	return db
}

// --- registration (spec §6) ---

func (db *Database) RegisterModule(name string, mod vtab.Module) {
	db.mu.Lock()
	db.modules[name] = mod
	db.mu.Unlock()
	db.Catalog.RegisterModule(&catalog.Module{Name: name, Impl: mod})
}

func (db *Database) RegisterFunction(schema *catalog.FunctionSchema, impl runtime.ScalarFunc) {
	db.mu.Lock()
	db.functions[schema.Name] = impl
	db.mu.Unlock()
	db.Catalog.RegisterFunction(schema)
}

func (db *Database) RegisterCollation(col types.Collation) {
	db.Catalog.RegisterCollation(col)
}

func (db *Database) OnDataChange(listener func(vtab.DataChangeEvent)) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.dataListeners = append(db.dataListeners, listener)
}

func (db *Database) OnSchemaChange(listener func(vtab.SchemaChangeEvent)) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.schemaListeners = append(db.schemaListeners, listener)
}

func (db *Database) emitSchemaChange(e vtab.SchemaChangeEvent) {
	db.mu.Lock()
	listeners := append([]func(vtab.SchemaChangeEvent)(nil), db.schemaListeners...)
	db.mu.Unlock()
	for _, l := range listeners {
		l(e)
	}
}

// --- DDL surface (no SQL text; a host builds catalog.TableSchema directly, per the Prepare note above) ---

// CreateTable registers schema with the catalog and asks the named module
// to materialize storage for it, defaulting to Options.DefaultVTabModule
// when schema.ModuleName is empty.
func (db *Database) CreateTable(ctx context.Context, schema *catalog.TableSchema) error {
	moduleName := schema.ModuleName
	if moduleName == "" {
		moduleName = db.Options.DefaultVTabModule
	}
	db.mu.Lock()
	mod, ok := db.modules[moduleName]
	db.mu.Unlock()
	if !ok {
		return errs.New(errs.KindSchemaMissing, "no such vtab module %q", moduleName)
	}

	spec := vtab.TableSpec{
		SchemaName: schema.SchemaName,
		TableName:  schema.Name,
		PrimaryKey: schema.EffectivePrimaryKey(),
		ModuleArgs: schema.ModuleArgs,
	}
	spec.Columns = make([]vtab.ColumnSpec, len(schema.Columns))
	for i, c := range schema.Columns {
		spec.Columns[i] = vtab.ColumnSpec{Name: c.Name, Logical: c.Logical, Nullable: c.Nullable}
	}
	spec.Indexes = make([]vtab.IndexSpec, len(schema.Indexes))
	for i, idx := range schema.Indexes {
		spec.Indexes[i] = vtab.IndexSpec{Name: idx.Name, Columns: idx.Columns, Unique: idx.Unique}
	}

	if _, err := mod.Create(ctx, spec); err != nil {
		return err
	}
	schema.ModuleName = moduleName
	db.Catalog.RegisterTable(schema)
	db.emitSchemaChange(vtab.SchemaChangeEvent{Schema: schema.SchemaName, ObjectType: vtab.ObjectTable, ObjectName: schema.Name, Type: vtab.SchemaCreate})
	return nil
}

func (db *Database) DropTable(ctx context.Context, schemaName, tableName string) error {
	t, err := db.Catalog.LookupTable(schemaName, tableName)
	if err != nil {
		return err
	}
	db.mu.Lock()
	mod, ok := db.modules[t.ModuleName]
	db.mu.Unlock()
	if ok {
		if err := mod.Destroy(ctx, schemaName, tableName); err != nil {
			return err
		}
	}
	if err := db.Catalog.DropTable(schemaName, tableName); err != nil {
		return err
	}
	db.emitSchemaChange(vtab.SchemaChangeEvent{Schema: schemaName, ObjectType: vtab.ObjectTable, ObjectName: tableName, Type: vtab.SchemaDrop})
	return nil
}

// --- runtime.TableProvider / txn.TableOpener ---

// OpenTable resolves schemaName.tableName through the catalog to its
// module and connects to it, satisfying both runtime.TableProvider and
// txn.TableOpener with the same method (the two interfaces share this
// shape by construction, not by a shared declaration, since vtab must not
// import runtime and txn must not import runtime either).
func (db *Database) OpenTable(ctx context.Context, schemaName, tableName string) (vtab.Table, error) {
	t, err := db.Catalog.LookupTable(schemaName, tableName)
	if err != nil {
		return nil, err
	}
	db.mu.Lock()
	mod, ok := db.modules[t.ModuleName]
	db.mu.Unlock()
	if !ok {
		return nil, errs.New(errs.KindSchemaMissing, "no such vtab module %q", t.ModuleName)
	}
	table, err := mod.Connect(ctx, schemaName, tableName, nil)
	if err != nil {
		return nil, err
	}
	key := schemaName + "." + tableName
	db.mu.Lock()
	alreadySubscribed := db.subscribed[key]
	db.subscribed[key] = true
	db.mu.Unlock()
	if !alreadySubscribed {
		if emitter, ok := table.(vtab.DataChangeEmitter); ok {
			emitter.OnDataChange(db.dispatchDataChange)
		}
	}
	return table, nil
}

func (db *Database) dispatchDataChange(e vtab.DataChangeEvent) {
	db.mu.Lock()
	listeners := append([]func(vtab.DataChangeEvent)(nil), db.dataListeners...)
	db.mu.Unlock()
	for _, l := range listeners {
		l(e)
	}
}

// --- transaction control (spec §6) ---

func (db *Database) Begin(ctx context.Context) error    { return db.coord.Begin(ctx) }
func (db *Database) Commit(ctx context.Context) error   { return db.coord.Commit(ctx) }
func (db *Database) Rollback(ctx context.Context) error { return db.coord.Rollback(ctx) }

func (db *Database) Savepoint(ctx context.Context, name string) error {
	return db.coord.Savepoint(ctx, name)
}

func (db *Database) Release(ctx context.Context, name string) error {
	return db.coord.Release(ctx, name)
}

func (db *Database) RollbackTo(ctx context.Context, name string) error {
	return db.coord.RollbackTo(ctx, name)
}
