// Package catalog implements the Schema Catalog (spec §4.2): tables,
// functions, collations, virtual-table modules, a search path for
// unqualified name resolution, and a change-notification bus that invalidates
// prepared statements when their declared dependencies change.
//
// Structurally this generalizes the teacher's schema/ast.go Table/Column/
// Index value shapes from DDL-text holders into live, queryable catalog
// entities, and reuses its tsort.go topological sort for dependency
// ordering.
package catalog

import (
	"fmt"
	"sync"

	"github.com/Digithought/quereus-sub006/errs"
	"github.com/Digithought/quereus-sub006/types"
	"github.com/Digithought/quereus-sub006/util"
)

// ColumnDef is one column of a TableSchema (spec §3 "Table schema").
type ColumnDef struct {
	Name       string
	Logical    types.LogicalType
	Default    string // expression text; RegisterTable does not syntax-check it
	Nullable   bool
}

// IndexDef is a secondary index definition (spec §3).
type IndexDef struct {
	Name    string
	Columns []string
	Unique  bool
}

// CheckOp is a bitmask of statement kinds a CHECK constraint applies to.
type CheckOp int

const (
	CheckOnInsert CheckOp = 1 << iota
	CheckOnUpdate
	CheckOnDelete
)

// CheckDef is a CHECK constraint (spec §3).
type CheckDef struct {
	Name           string
	Expression     string
	Ops            CheckOp
	Deferrable     bool
	ContainsSubquery bool
}

// TableSchema is the catalog's live representation of a table (spec §3).
type TableSchema struct {
	Name        string
	SchemaName  string
	Columns     []ColumnDef
	PrimaryKey  []string // ordered column names; empty means all columns form the key
	Indexes     []IndexDef
	Checks      []CheckDef
	ModuleName  string
	ModuleArgs  []string
}

// EffectivePrimaryKey returns the declared primary key, or every column name
// in declaration order when none was declared (spec §3).
func (t *TableSchema) EffectivePrimaryKey() []string {
	if len(t.PrimaryKey) > 0 {
		return t.PrimaryKey
	}
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

func (t *TableSchema) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// FunctionKind distinguishes the calling convention a registered function
// uses (spec §3).
type FunctionKind int

const (
	FunctionScalar FunctionKind = iota
	FunctionAggregate
	FunctionWindow
	FunctionTableValued
)

// FunctionSchema describes a registered function (spec §3, §4.2).
type FunctionSchema struct {
	Name          string
	MinArity      int
	Variadic      bool
	Deterministic bool
	Kind          FunctionKind
	ReturnType    types.LogicalType
}

// Module is the registration record for a virtual-table module; the
// interface it must satisfy lives in package vtab to avoid an import cycle
// (catalog holds metadata only, vtab.Module is the runtime contract).
type Module struct {
	Name string
	// Impl is typed any here and asserted to vtab.Module by callers that
	// need to drive it; catalog itself never calls into it.
	Impl any
}

// EventKind is the object kind a ChangeEvent concerns (spec §4.2).
type EventKind int

const (
	EventTable EventKind = iota
	EventFunction
	EventModule
	EventCollation
)

// EventAction is the DDL-shaped action a ChangeEvent reports.
type EventAction int

const (
	ActionCreate EventAction = iota
	ActionAlter
	ActionDrop
)

// ChangeEvent is published on every catalog mutation (spec §4.2).
type ChangeEvent struct {
	Kind   EventKind
	Action EventAction
	Name   string
}

// DependencySet is the set of catalog objects a prepared statement read
// during planning (spec §4.2 "Subscribers ... identify themselves with a
// dependency set").
type DependencySet map[string]struct{}

func NewDependencySet() DependencySet { return make(DependencySet) }

func (d DependencySet) Add(kind EventKind, name string) {
	d[depKey(kind, name)] = struct{}{}
}

func (d DependencySet) Matches(e ChangeEvent) bool {
	_, ok := d[depKey(e.Kind, e.Name)]
	return ok
}

func depKey(kind EventKind, name string) string {
	return fmt.Sprintf("%d:%s", kind, name)
}

// Listener is invoked once per ChangeEvent that matches its dependency set.
type Listener struct {
	Dependencies DependencySet
	Notify       func(ChangeEvent)
}

// Catalog is the process-wide (per database handle) store of schema
// entities, with lifecycle tied to the owning database handle (spec §5).
type Catalog struct {
	mu sync.RWMutex

	tables     map[string]*TableSchema
	functions  map[string]*FunctionSchema
	collations *types.CollationRegistry
	modules    map[string]*Module
	searchPath []string

	listeners []*Listener
}

// New builds an empty catalog with the built-in collations registered and a
// default search path of {"main"}.
func New() *Catalog {
	return &Catalog{
		tables:     make(map[string]*TableSchema),
		functions:  make(map[string]*FunctionSchema),
		collations: types.NewCollationRegistry(),
		modules:    make(map[string]*Module),
		searchPath: []string{"main"},
	}
}

func (c *Catalog) SetSearchPath(schemas []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.searchPath = append([]string(nil), schemas...)
}

func (c *Catalog) SearchPath() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.searchPath...)
}

// RegisterTable adds or replaces a table schema and publishes a create/alter
// event depending on whether it previously existed.
func (c *Catalog) RegisterTable(t *TableSchema) {
	c.mu.Lock()
	key := qualifiedKey(t.SchemaName, t.Name)
	_, existed := c.tables[key]
	c.tables[key] = t
	c.mu.Unlock()

	action := ActionCreate
	if existed {
		action = ActionAlter
	}
	c.publish(ChangeEvent{Kind: EventTable, Action: action, Name: key})
}

func (c *Catalog) DropTable(schemaName, name string) error {
	key := qualifiedKey(schemaName, name)
	c.mu.Lock()
	if _, ok := c.tables[key]; !ok {
		c.mu.Unlock()
		return errs.New(errs.KindSchemaMissing, "no such table: %s", key)
	}
	delete(c.tables, key)
	c.mu.Unlock()
	c.publish(ChangeEvent{Kind: EventTable, Action: ActionDrop, Name: key})
	return nil
}

// LookupTable resolves name using the search path when schemaName is empty,
// matching spec §4.2's "search-path (ordered namespace list) for unqualified
// names" — first match over the ordered namespace wins, falling back to the
// default ("main") schema (SPEC_FULL §3, resolving an open point left
// implicit by the distilled spec).
func (c *Catalog) LookupTable(schemaName, name string) (*TableSchema, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if schemaName != "" {
		t, ok := c.tables[qualifiedKey(schemaName, name)]
		if !ok {
			return nil, errs.New(errs.KindSchemaMissing, "no such table: %s.%s", schemaName, name)
		}
		return t, nil
	}
	for _, ns := range c.searchPath {
		if t, ok := c.tables[qualifiedKey(ns, name)]; ok {
			return t, nil
		}
	}
	if t, ok := c.tables[qualifiedKey("main", name)]; ok {
		return t, nil
	}
	return nil, errs.New(errs.KindSchemaMissing, "no such table: %s", name)
}

// TableNames returns every qualified "schema.table" name currently
// registered, in sorted order, so callers (e.g. a REPL's "list tables"
// command) get deterministic output regardless of map iteration order.
func (c *Catalog) TableNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.tables))
	for key := range util.CanonicalMapIter(c.tables) {
		names = append(names, key)
	}
	return names
}

func (c *Catalog) RegisterFunction(f *FunctionSchema) {
	c.mu.Lock()
	_, existed := c.functions[f.Name]
	c.functions[f.Name] = f
	c.mu.Unlock()
	action := ActionCreate
	if existed {
		action = ActionAlter
	}
	c.publish(ChangeEvent{Kind: EventFunction, Action: action, Name: f.Name})
}

func (c *Catalog) LookupFunction(name string) (*FunctionSchema, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	f, ok := c.functions[name]
	return f, ok
}

func (c *Catalog) RegisterCollation(col types.Collation) {
	c.mu.Lock()
	c.collations.Register(col)
	c.mu.Unlock()
	c.publish(ChangeEvent{Kind: EventCollation, Action: ActionCreate, Name: col.Name})
}

func (c *Catalog) LookupCollation(name string) (types.Collation, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.collations.Lookup(name)
}

func (c *Catalog) RegisterModule(m *Module) {
	c.mu.Lock()
	_, existed := c.modules[m.Name]
	c.modules[m.Name] = m
	c.mu.Unlock()
	action := ActionCreate
	if existed {
		action = ActionAlter
	}
	c.publish(ChangeEvent{Kind: EventModule, Action: action, Name: m.Name})
}

func (c *Catalog) LookupModule(name string) (*Module, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.modules[name]
	return m, ok
}

// Subscribe registers a listener and returns an unsubscribe function. The
// listener slice is snapshotted at dispatch time (see publish) so a
// reentrant registration/unsubscription during a callback never corrupts an
// in-flight dispatch (SPEC_FULL §3 / DESIGN.md Open Question on reentrancy).
func (c *Catalog) Subscribe(l *Listener) (unsubscribe func()) {
	c.mu.Lock()
	c.listeners = append(c.listeners, l)
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, existing := range c.listeners {
			if existing == l {
				c.listeners = append(c.listeners[:i], c.listeners[i+1:]...)
				return
			}
		}
	}
}

func (c *Catalog) publish(e ChangeEvent) {
	c.mu.RLock()
	snapshot := append([]*Listener(nil), c.listeners...)
	c.mu.RUnlock()

	for _, l := range snapshot {
		if l.Dependencies.Matches(e) {
			l.Notify(e)
		}
	}
}

func qualifiedKey(schemaName, name string) string {
	if schemaName == "" {
		schemaName = "main"
	}
	return schemaName + "." + name
}
