// Package vtab defines the Virtual-Table Contract (spec §4.6, §6): the
// interface by which any data source — the in-memory engine in package
// memtable, an external SQL database in vtab/sqlbridge, or a remote service
// in vtab/remote — participates in planning and execution.
//
// Grounded on the teacher's driver/database.go, which dispatches a single
// Database struct across "mysql"/"postgres" backends behind one interface;
// here the dispatch is inverted into a proper plugin interface (spec calls
// it a "module") because the core must support backends it was never
// written against, not just the two the teacher hardcodes.
package vtab

import (
	"context"

	"github.com/Digithought/quereus-sub006/types"
)

// FilterOp mirrors plan.FilterOp; duplicated here (rather than imported)
// because vtab must not depend on package plan — the contract is the
// boundary the optimizer translates plan.PushedConstraint into, not a
// plan-tree consumer itself.
type FilterOp int

const (
	OpEQ FilterOp = iota
	OpLT
	OpLE
	OpGT
	OpGE
	OpLIKE
	OpGLOB
	OpISNULL
	OpISNOTNULL
	OpIN
	OpMATCH
)

// Constraint is one pushed-down predicate in a FilterInfo (spec §6).
type Constraint struct {
	Column int // column index within the table
	Op     FilterOp
	ArgPos int // index into FilterInfo.Params
}

// OrderSpec is one requested sort column (spec §6 FilterInfo.orderBy).
type OrderSpec struct {
	Column    int
	Descending bool
}

// FilterInfo is the input to Table.Query (spec §6).
type FilterInfo struct {
	IndexNumber int
	IndexName   string
	Constraints []Constraint
	OrderBy     []OrderSpec
	Projection  []int // column indices; nil means all columns
	Limit       *int64
	Offset      *int64
	Params      []types.Value
}

// PredicateSupport reports, per constraint, whether a module's
// getBestAccessPlan accepted it for pushdown (SPEC_FULL §3 / DESIGN.md:
// "supports() reports accept/reject per predicate", resolving spec §9's
// open question about partial pushdown contracts).
type PredicateSupport struct {
	ConstraintIndex int
	Accepted        bool
}

// AccessPlan is what getBestAccessPlan returns: which capabilities the
// module can serve for this FilterInfo, plus an estimated row count (spec
// §4.6).
type AccessPlan struct {
	IndexNumber      int
	IndexName        string
	Predicates       []PredicateSupport
	SupportsSort     bool
	SupportsLimit    bool
	SupportsProjection bool
	EstimatedRows    int64
}

// Row is an ordered sequence of values (spec §3); its length equals the
// table's column count.
type Row []types.Value

// RowStream is the pull-based async iterator every relational producer
// exposes (spec §9 "Async streams... model as poll-based iterators"). Next
// returns (nil, nil) at end of stream. Close must be safe to call multiple
// times and must release any underlying resource even if Next was never
// fully drained (spec §5 cancellation).
type RowStream interface {
	Next(ctx context.Context) (Row, error)
	Close() error
}

// UpdateOp enumerates the DML operation an UpdateArgs performs (spec §6).
type UpdateOp int

const (
	UpdateInsert UpdateOp = iota
	UpdateUpdate
	UpdateDelete
)

// ConflictResolution mirrors plan.ConflictResolution (spec §6
// UpdateArgs.conflictResolution, enumerated in SPEC_FULL §3).
type ConflictResolution int

const (
	ConflictAbort ConflictResolution = iota
	ConflictFail
	ConflictIgnore
	ConflictReplace
	ConflictRollback
)

// UpdateArgs is the input to Table.Update (spec §6).
type UpdateArgs struct {
	Op                UpdateOp
	OldKey            Row
	NewValues         Row
	OldValues         Row
	ConflictResolution ConflictResolution
}

// UpdateResult is what Table.Update returns: either the written row (for
// RETURNING) or a deletion receipt.
type UpdateResult struct {
	Row       Row    // nil for a delete
	Deleted   bool
	DeletedKey Row
}

// DataChangeType mirrors plan DML kinds for event payloads (spec §6).
type DataChangeType int

const (
	ChangeInsert DataChangeType = iota
	ChangeUpdate
	ChangeDelete
)

// DataChangeEvent is published post-commit for every row mutation (spec
// §4.7 invariant 7, §6).
type DataChangeEvent struct {
	Schema        string
	Table         string
	ModuleName    string
	Type          DataChangeType
	Key           Row
	OldRow        Row
	NewRow        Row
	ChangedColumns []int
	Remote        bool
}

// SchemaObjectType tags what a SchemaChangeEvent concerns.
type SchemaObjectType int

const (
	ObjectTable SchemaObjectType = iota
	ObjectIndex
	ObjectView
)

// SchemaChangeAction mirrors catalog.EventAction for external consumers.
type SchemaChangeAction int

const (
	SchemaCreate SchemaChangeAction = iota
	SchemaAlter
	SchemaDrop
)

// SchemaChangeEvent is published on DDL (spec §6).
type SchemaChangeEvent struct {
	Schema     string
	ObjectType SchemaObjectType
	ObjectName string
	Type       SchemaChangeAction
	DDL        string
}

// Connection is the per-transaction isolation unit a Table hands out (spec
// §4.6).
type Connection interface {
	Begin(ctx context.Context) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
	CreateSavepoint(ctx context.Context, name string) error
	ReleaseSavepoint(ctx context.Context, name string) error
	RollbackToSavepoint(ctx context.Context, name string) error
}

// Table is the runtime handle a module hands back for one table (spec
// §4.6).
type Table interface {
	Query(ctx context.Context, filter FilterInfo) (RowStream, error)
	Update(ctx context.Context, args UpdateArgs) (UpdateResult, error)
	CreateConnection(ctx context.Context) (Connection, error)
	Disconnect(ctx context.Context) error
}

// AccessPlanner is the optional capability a Table exposes to let the
// optimizer ask what pushdown it supports before emitting a Retrieve (spec
// §4.4, §4.6).
type AccessPlanner interface {
	GetBestAccessPlan(filter FilterInfo) AccessPlan
}

// DataChangeEmitter is the optional capability a Table exposes to publish
// row-level change events (spec §4.6, §6).
type DataChangeEmitter interface {
	OnDataChange(listener func(DataChangeEvent)) (unsubscribe func())
}

// SchemaChangeEmitter is the optional capability a module exposes to
// publish DDL-level change events (spec §4.6, §6).
type SchemaChangeEmitter interface {
	OnSchemaChange(listener func(SchemaChangeEvent)) (unsubscribe func())
}

// DeferredCheckEnqueuer is the optional capability a Table exposes to
// postpone a constraint check to commit time instead of evaluating it
// inline (spec §4.3: "CHECK expressions that contain subqueries are
// implicitly deferred"). eval is called once, at commit, and its error (if
// any) aborts the commit.
type DeferredCheckEnqueuer interface {
	EnqueueDeferredCheck(ctx context.Context, name string, eval func() error) error
}

// ColumnSpec is the minimal per-column shape a module needs to create a
// table; richer metadata (defaults, checks) lives in package catalog and is
// passed through Options for modules that care.
type ColumnSpec struct {
	Name     string
	Logical  types.LogicalType
	Nullable bool
}

// IndexSpec is the narrowed secondary-index shape a module needs (spec §3
// "secondary-index definitions"), mirroring how ColumnSpec narrows
// catalog.ColumnDef.
type IndexSpec struct {
	Name    string
	Columns []string
	Unique  bool
}

// TableSpec is what Module.Create/Connect receives to construct or attach
// to a table (spec §4.6's tableSchema parameter, narrowed to what a module
// implementation needs without importing package catalog).
type TableSpec struct {
	SchemaName string
	TableName  string
	Columns    []ColumnSpec
	PrimaryKey []string
	Indexes    []IndexSpec
	ModuleArgs []string
}

// Module is the virtual-table extension point (spec §4.6).
type Module interface {
	Create(ctx context.Context, spec TableSpec) (Table, error)
	Connect(ctx context.Context, schemaName, tableName string, options map[string]string) (Table, error)
	Destroy(ctx context.Context, schemaName, tableName string) error
}
