package memtable

import (
	"context"
	"sync"

	"github.com/Digithought/quereus-sub006/errs"
	"github.com/Digithought/quereus-sub006/vtab"
)

// memoryTable is the default vtab.Table implementation (spec §4.7): a Base
// layer of committed data plus a stack of Transaction layers pushed by
// begin/savepoint and collapsed by commit/release or discarded by
// rollback. One memoryTable instance backs one schema-qualified table name;
// package module registers instances by (schema, table).
type memoryTable struct {
	mu sync.Mutex

	schemaName string
	tableName  string
	columns    []vtab.ColumnSpec
	pkCols     []int
	indexes    []vtab.IndexSpec
	indexCols  map[string][]int

	base    *layer
	txStack []*layer // open transaction layers, base excluded; last is topmost

	nextRowID int64
	rowKeys   map[int64]RowKey // RowId -> current primary key, stable for the row's lifetime (spec §3 "stable for a row's lifetime")

	dataListeners []func(vtab.DataChangeEvent)
	pending       []vtab.DataChangeEvent // queued until commit (spec §4.7 invariant 7)

	deferred DeferredQueue
}

func newMemoryTable(spec vtab.TableSpec) (*memoryTable, error) {
	pkCols, err := resolveColumns(spec.Columns, spec.PrimaryKey)
	if err != nil {
		return nil, err
	}
	if len(pkCols) == 0 {
		pkCols = make([]int, len(spec.Columns))
		for i := range spec.Columns {
			pkCols[i] = i
		}
	}
	indexNames := make([]string, len(spec.Indexes))
	indexCols := make(map[string][]int, len(spec.Indexes))
	for i, idx := range spec.Indexes {
		cols, err := resolveColumns(spec.Columns, idx.Columns)
		if err != nil {
			return nil, err
		}
		indexNames[i] = idx.Name
		indexCols[idx.Name] = cols
	}
	t := &memoryTable{
		schemaName: spec.SchemaName,
		tableName:  spec.TableName,
		columns:    spec.Columns,
		pkCols:     pkCols,
		indexes:    spec.Indexes,
		indexCols:  indexCols,
		base:       newBaseLayer(indexNames),
		rowKeys:    make(map[int64]RowKey),
	}
	return t, nil
}

func resolveColumns(cols []vtab.ColumnSpec, names []string) ([]int, error) {
	out := make([]int, len(names))
	for i, n := range names {
		found := -1
		for ci, c := range cols {
			if c.Name == n {
				found = ci
				break
			}
		}
		if found < 0 {
			return nil, errs.New(errs.KindSchemaMissing, "no such column %q", n)
		}
		out[i] = found
	}
	return out, nil
}

func (t *memoryTable) indexNames() []string {
	names := make([]string, len(t.indexes))
	for i, idx := range t.indexes {
		names[i] = idx.Name
	}
	return names
}

// topLayer returns the layer writes and reads should fold from: the topmost
// open transaction layer, or Base when none is open.
func (t *memoryTable) topLayer() *layer {
	if len(t.txStack) == 0 {
		return t.base
	}
	return t.txStack[len(t.txStack)-1]
}

func (t *memoryTable) keyOf(row vtab.Row, cols []int) RowKey {
	key := make(RowKey, len(cols))
	for i, c := range cols {
		key[i] = row[c]
	}
	return key
}

// --- vtab.Table ---

func (t *memoryTable) Query(ctx context.Context, filter vtab.FilterInfo) (vtab.RowStream, error) {
	t.mu.Lock()
	chain := chainToRoot(t.topLayer())
	var rows []vtab.Row
	if filter.IndexName != "" {
		if _, ok := t.indexCols[filter.IndexName]; ok {
			rows = t.scanSecondaryLocked(chain, filter.IndexName)
		}
	}
	if rows == nil {
		items := mergePrimaryChain(chain)
		rows = make([]vtab.Row, len(items))
		for i, it := range items {
			rows[i] = it.row
		}
	}
	t.mu.Unlock()

	rows = applyConstraints(rows, t.columns, filter)
	rows = applyOrderBy(rows, filter.OrderBy)
	rows = applyLimitOffset(rows, filter.Limit, filter.Offset)
	rows = applyProjection(rows, filter.Projection)
	return newRowSliceStream(rows), nil
}

func (t *memoryTable) scanSecondaryLocked(chain []*layer, indexName string) []vtab.Row {
	entries := mergeSecondaryChain(chain, indexName)
	primaryByKey := make(map[string]*pkItem)
	for _, it := range mergePrimaryChain(chain) {
		primaryByKey[keyString(it.key)] = it
	}
	rows := make([]vtab.Row, 0, len(entries))
	for _, e := range entries {
		key, ok := t.rowKeys[e.rowID]
		if !ok {
			continue
		}
		if p, ok := primaryByKey[keyString(key)]; ok && p.rowID == e.rowID {
			rows = append(rows, p.row)
		}
	}
	return rows
}

func (t *memoryTable) Update(ctx context.Context, args vtab.UpdateArgs) (vtab.UpdateResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	autocommit := len(t.txStack) == 0
	if autocommit {
		t.beginLocked()
	}
	res, err := t.applyLocked(args)
	if err != nil {
		if autocommit {
			t.rollbackLocked()
		}
		return vtab.UpdateResult{}, err
	}
	if autocommit {
		if err := t.commitLocked(); err != nil {
			return vtab.UpdateResult{}, err
		}
	}
	return res, nil
}

func (t *memoryTable) CreateConnection(ctx context.Context) (vtab.Connection, error) {
	return &tableConnection{table: t}, nil
}

func (t *memoryTable) Disconnect(ctx context.Context) error { return nil }

// --- vtab.AccessPlanner ---

func (t *memoryTable) GetBestAccessPlan(filter vtab.FilterInfo) vtab.AccessPlan {
	plan := vtab.AccessPlan{SupportsSort: true, SupportsLimit: true, SupportsProjection: true}
	if filter.IndexName != "" {
		if _, ok := t.indexCols[filter.IndexName]; ok {
			plan.IndexName = filter.IndexName
		}
	}
	plan.Predicates = make([]vtab.PredicateSupport, len(filter.Constraints))
	for i := range filter.Constraints {
		plan.Predicates[i] = vtab.PredicateSupport{ConstraintIndex: i, Accepted: true}
	}
	t.mu.Lock()
	plan.EstimatedRows = int64(t.base.primary.Len())
	t.mu.Unlock()
	return plan
}

// --- vtab.DataChangeEmitter ---

func (t *memoryTable) OnDataChange(listener func(vtab.DataChangeEvent)) (unsubscribe func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.dataListeners = append(t.dataListeners, listener)
	idx := len(t.dataListeners) - 1
	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if idx < len(t.dataListeners) {
			t.dataListeners[idx] = nil
		}
	}
}

// --- vtab.DeferredCheckEnqueuer ---

// EnqueueDeferredCheck queues eval to run at commit time against t's
// deferred-check queue (spec §4.3, §4.7's DeferredQueue entity), in place
// of evaluating a subquery-bearing or explicitly DEFERRABLE CHECK inline.
func (t *memoryTable) EnqueueDeferredCheck(ctx context.Context, name string, eval func() error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.deferred.Enqueue(DeferredCheck{Name: name, Eval: eval})
	return nil
}

func (t *memoryTable) queueEvent(e vtab.DataChangeEvent) {
	e.Schema, e.Table = t.schemaName, t.tableName
	t.pending = append(t.pending, e)
}

func (t *memoryTable) emitPendingLocked() {
	pending := t.pending
	t.pending = nil
	listeners := make([]func(vtab.DataChangeEvent), 0, len(t.dataListeners))
	for _, l := range t.dataListeners {
		if l != nil {
			listeners = append(listeners, l)
		}
	}
	if len(listeners) == 0 {
		return
	}
	t.mu.Unlock()
	for _, e := range pending {
		for _, l := range listeners {
			l(e)
		}
	}
	t.mu.Lock()
}
