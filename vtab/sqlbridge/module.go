package sqlbridge

import (
	"context"
	"database/sql"
	"strconv"
	"sync"

	"github.com/Digithought/quereus-sub006/errs"
	"github.com/Digithought/quereus-sub006/vtab"
)

type tableKey struct{ schema, table string }

// Module is the sqlbridge vtab.Module, keyed (schema, table) -> *sqlTable
// the same way memtable.Module is, plus a second map of shared *sql.DB
// handles keyed by dialect+DSN so two tables on the same external database
// reuse one connection pool instead of opening one per table.
type Module struct {
	mu     sync.Mutex
	tables map[tableKey]*sqlTable
	conns  map[string]*sql.DB
}

func New() *Module {
	return &Module{tables: make(map[tableKey]*sqlTable), conns: make(map[string]*sql.DB)}
}

// parseModuleArgs decodes TableSpec.ModuleArgs into a Config. The first
// element names the dialect; the rest are dialect-specific, positional
// (spec §4.6 leaves ModuleArgs module-defined, so this is sqlbridge's own
// convention, not a shared one).
func parseModuleArgs(args []string) (Config, error) {
	if len(args) == 0 {
		return Config{}, errs.New(errs.KindMisuse, "sqlbridge: moduleArgs must start with a dialect name")
	}
	dialect := Dialect(args[0])
	if dialect == DialectSQLite {
		if len(args) < 2 {
			return Config{}, errs.New(errs.KindMisuse, "sqlbridge: sqlite moduleArgs need a file path")
		}
		return Config{Dialect: dialect, File: args[1]}, nil
	}
	if len(args) < 6 {
		return Config{}, errs.New(errs.KindMisuse, "sqlbridge: %s moduleArgs need host, port, user, password, dbname", dialect)
	}
	port, err := strconv.Atoi(args[2])
	if err != nil {
		return Config{}, errs.Wrap(errs.KindMisuse, err, "sqlbridge: invalid port %q", args[2])
	}
	return Config{
		Dialect:  dialect,
		Host:     args[1],
		Port:     port,
		User:     args[3],
		Password: args[4],
		DbName:   args[5],
	}, nil
}

func (m *Module) dbFor(cfg Config) (*sql.DB, error) {
	name, err := driverName(cfg.Dialect)
	if err != nil {
		return nil, err
	}
	dsn, err := buildDSN(cfg)
	if err != nil {
		return nil, err
	}
	key := string(cfg.Dialect) + "|" + dsn

	m.mu.Lock()
	defer m.mu.Unlock()
	if db, ok := m.conns[key]; ok {
		return db, nil
	}
	db, err := sql.Open(name, dsn)
	if err != nil {
		return nil, mapError(cfg.Dialect, err)
	}
	m.conns[key] = db
	return db, nil
}

// Create opens (or reuses) the backend connection and issues CREATE TABLE
// for spec (spec §4.6 "Create... materializes storage").
func (m *Module) Create(ctx context.Context, spec vtab.TableSpec) (vtab.Table, error) {
	key := tableKey{spec.SchemaName, spec.TableName}
	m.mu.Lock()
	if _, exists := m.tables[key]; exists {
		m.mu.Unlock()
		return nil, errs.New(errs.KindMisuse, "table %s.%s already exists", spec.SchemaName, spec.TableName)
	}
	m.mu.Unlock()

	cfg, err := parseModuleArgs(spec.ModuleArgs)
	if err != nil {
		return nil, err
	}
	db, err := m.dbFor(cfg)
	if err != nil {
		return nil, err
	}
	if _, err := db.ExecContext(ctx, buildCreateTableSQL(cfg.Dialect, spec)); err != nil {
		return nil, mapError(cfg.Dialect, err)
	}
	t := &sqlTable{db: db, dialect: cfg.Dialect, spec: spec}

	m.mu.Lock()
	m.tables[key] = t
	m.mu.Unlock()
	return t, nil
}

// Connect attaches to a table a prior Create already built, the same
// contract memtable.Module.Connect follows: sqlbridge has no separate
// reattachment path since the external table's column layout and ModuleArgs
// are only known at Create time (spec §4.6).
func (m *Module) Connect(ctx context.Context, schemaName, tableName string, options map[string]string) (vtab.Table, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tables[tableKey{schemaName, tableName}]
	if !ok {
		return nil, errs.New(errs.KindSchemaMissing, "no such sqlbridge table %s.%s", schemaName, tableName)
	}
	return t, nil
}

// Destroy drops the external table and forgets it; it does not close the
// shared *sql.DB, since other tables may still be using it.
func (m *Module) Destroy(ctx context.Context, schemaName, tableName string) error {
	key := tableKey{schemaName, tableName}
	m.mu.Lock()
	t, ok := m.tables[key]
	if !ok {
		m.mu.Unlock()
		return errs.New(errs.KindSchemaMissing, "no such sqlbridge table %s.%s", schemaName, tableName)
	}
	delete(m.tables, key)
	m.mu.Unlock()

	_, err := t.db.ExecContext(ctx, "DROP TABLE "+quoteIdent(t.dialect, tableName))
	if err != nil {
		return mapError(t.dialect, err)
	}
	return nil
}

var _ vtab.Module = (*Module)(nil)
