package runtime

import (
	"context"

	"github.com/Digithought/quereus-sub006/errs"
	"github.com/Digithought/quereus-sub006/plan"
	"github.com/Digithought/quereus-sub006/types"
	"github.com/Digithought/quereus-sub006/vtab"
)

// ScalarFunc is a registered scalar function's implementation (spec §3
// Function schema, §4.2). Aggregate/window functions use AggregateFunc
// instead (see aggregate.go).
type ScalarFunc func(args []types.Value) (types.Value, error)

// TableProvider resolves a Retrieve node's schema/table name to a live
// vtab.Table, the seam between the runtime and package catalog/vtab
// without the runtime importing catalog directly (kept decoupled the way
// vtab itself avoids importing plan).
type TableProvider interface {
	OpenTable(ctx context.Context, schemaName, tableName string) (vtab.Table, error)
}

// TraceRecord is one instruction execution's trace entry (spec §4.5
// "instruction_index, operation, timestamp, duration, ... row-count,
// error?"). Timestamp/duration are left to the caller to stamp (package
// optimize/runtime scripts must not call time.Now, per this exercise's
// constraints) — TraceSink implementations in package trace add them.
type TraceRecord struct {
	Operation string
	RowCount  int64
	Err       error
}

// TraceSink receives TraceRecords when runtime_metrics is enabled (spec §6
// configuration options).
type TraceSink func(TraceRecord)

// ExecContext is the per-execution environment threaded through every
// Instruction.Run call: the active slot chain, bound parameters,
// mutation-context captures, function registry, table provider, and
// optional trace sink (spec §4.5).
type ExecContext struct {
	Ctx        context.Context
	Slots      SlotStack
	Params     map[string]types.Value
	Captures   map[plan.AttrID]types.Value
	Functions  map[string]ScalarFunc
	Aggregates map[string]AggregateFunc
	Tables     TableProvider
	Trace      TraceSink

	cteTables map[string]*memoryTable
	cache     map[string][]vtab.Row
}

func NewExecContext(ctx context.Context, params map[string]types.Value, functions map[string]ScalarFunc, tables TableProvider) *ExecContext {
	return &ExecContext{
		Ctx:        ctx,
		Params:     params,
		Captures:   make(map[plan.AttrID]types.Value),
		Functions:  functions,
		Aggregates: BuiltinAggregates(),
		Tables:     tables,
		cache:      make(map[string][]vtab.Row),
	}
}

// cacheLookup/cacheStore back the Cache plan node (spec §4.4 "Caching
// insertion"): keyed by the node's structural fingerprint, scoped to one
// ExecContext so a fresh statement run never sees a stale execution's rows.
func (c *ExecContext) cacheLookup(key string) ([]vtab.Row, bool) {
	rows, ok := c.cache[key]
	return rows, ok
}

func (c *ExecContext) cacheStore(key string, rows []vtab.Row) {
	c.cache[key] = rows
}

// Resolve looks up attr in the active slot chain, then in Captures (for
// MutationContext-bound values), reporting an Internal error if neither has
// it — a ColumnRef the emitter built should always resolve, so not finding
// one means a planning bug, not a user error (spec §4.5 "mutation-context
// boundary").
func (c *ExecContext) Resolve(attr plan.AttrID) (types.Value, error) {
	if v, ok := c.Slots.Resolve(attr); ok {
		return v, nil
	}
	if v, ok := c.Captures[attr]; ok {
		return v, nil
	}
	return types.Value{}, errs.New(errs.KindInternal, "unresolved attribute %d", attr)
}

func (c *ExecContext) emitTrace(op string, rowCount int64, err error) {
	if c.Trace != nil {
		c.Trace(TraceRecord{Operation: op, RowCount: rowCount, Err: err})
	}
}

// checkCancelled reports a Cancelled error the moment the context is done
// (spec §5's cancellation-propagation requirement). Execute, EvalExpr and
// runTraced call it before doing work; the row streams' Next methods check
// the Go context's Err directly instead.
func (c *ExecContext) checkCancelled() error {
	select {
	case <-c.Ctx.Done():
		return errs.Wrap(errs.KindCancelled, c.Ctx.Err(), "execution cancelled")
	default:
		return nil
	}
}
