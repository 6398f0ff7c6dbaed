package engine

import (
	"context"

	"github.com/Digithought/quereus-sub006/catalog"
	"github.com/Digithought/quereus-sub006/errs"
	"github.com/Digithought/quereus-sub006/optimize"
	"github.com/Digithought/quereus-sub006/plan"
	"github.com/Digithought/quereus-sub006/runtime"
	"github.com/Digithought/quereus-sub006/types"
	"github.com/Digithought/quereus-sub006/vtab"
)

// Statement is a prepared plan tree plus its parameter bindings (spec §6
// "statement.bind/run/iterateRows/get/all/finalize"). See the package
// doc comment for why Prepare takes a plan.Node rather than SQL text.
type Statement struct {
	db         *Database
	alloc      *plan.Allocator
	logical    plan.Node // pre-optimization tree, kept to re-plan after invalidation
	physical   plan.Node // optimized tree actually scheduled
	paramTypes map[string]types.LogicalType
	params     map[string]types.Value

	deps        catalog.DependencySet
	unsubscribe func()
	invalid     bool
	finalized   bool
}

// Prepare validates that every table root references currently exists,
// optimizes the tree, computes its dependency set, and subscribes to the
// catalog's change notifier so a later DDL change invalidates the
// statement (spec §4.2, §8 S6).
func (db *Database) Prepare(root plan.Node, alloc *plan.Allocator, paramTypes map[string]types.LogicalType) (*Statement, error) {
	for _, ref := range tableNames(root) {
		if _, err := db.Catalog.LookupTable(ref.Schema, ref.Table); err != nil {
			return nil, err
		}
	}

	physical := optimize.Optimize(root, alloc, db.Catalog)
	deps := collectDependencies(root)

	s := &Statement{
		db:         db,
		alloc:      alloc,
		logical:    root,
		physical:   physical,
		paramTypes: paramTypes,
		params:     make(map[string]types.Value),
		deps:       deps,
	}
	s.unsubscribe = db.Catalog.Subscribe(&catalog.Listener{
		Dependencies: deps,
		Notify:       func(catalog.ChangeEvent) { s.invalid = true },
	})
	return s, nil
}

func (s *Statement) requireUsable() error {
	if s.finalized {
		return errs.New(errs.KindMisuse, "statement is finalized")
	}
	if s.invalid {
		// Re-plan from the kept logical tree; a referenced table that is
		// still missing leaves the statement invalid (SchemaMissing).
		for _, ref := range tableNames(s.logical) {
			if _, err := s.db.Catalog.LookupTable(ref.Schema, ref.Table); err != nil {
				return err
			}
		}
		s.physical = optimize.Optimize(s.logical, s.alloc, s.db.Catalog)
		s.invalid = false
	}
	return nil
}

// Bind sets one named parameter (spec §6 "statement.bind(key, value)").
func (s *Statement) Bind(key string, value types.Value) error {
	if err := s.requireUsable(); err != nil {
		return err
	}
	if lt, ok := s.paramTypes[key]; ok {
		if ok, mismatch := types.ValidateAgainst(value, lt); !ok {
			return errs.New(errs.KindMismatch, "parameter %q: %s", key, mismatch)
		}
	}
	s.params[key] = value
	return nil
}

// BindAll replaces every binding at once (spec §6 "statement.bindAll(args)").
func (s *Statement) BindAll(args map[string]types.Value) error {
	for k, v := range args {
		if err := s.Bind(k, v); err != nil {
			return err
		}
	}
	return nil
}

func (s *Statement) ClearBindings() { s.params = make(map[string]types.Value) }

// Run executes the statement and returns its row stream (a relation root)
// or a single-row, single-column stream (a scalar root), matching
// spec §6's "statement.run(params?)"/"iterateRows(params?)".
func (s *Statement) Run(ctx context.Context, params map[string]types.Value) (vtab.RowStream, error) {
	if err := s.requireUsable(); err != nil {
		return nil, err
	}
	merged := s.mergedParams(params)
	execCtx := runtime.NewExecContext(ctx, merged, s.db.functionsSnapshot(), s.db)
	execCtx.Trace = s.db.traceSink()

	if rel, ok := s.physical.(plan.Relation); ok {
		return runtime.RunRelation(execCtx, rel)
	}
	expr, ok := s.physical.(plan.Expr)
	if !ok {
		return nil, errs.New(errs.KindInternal, "prepared plan is neither a relation nor an expression")
	}
	v, err := runtime.RunScalar(execCtx, expr)
	if err != nil {
		return nil, err
	}
	return &scalarStream{row: vtab.Row{v}}, nil
}

// IterateRows is Run's named alias (spec §6).
func (s *Statement) IterateRows(ctx context.Context, params map[string]types.Value) (vtab.RowStream, error) {
	return s.Run(ctx, params)
}

// Get returns the first row, or nil if the result set is empty (spec §6
// "statement.get(params?)").
func (s *Statement) Get(ctx context.Context, params map[string]types.Value) (vtab.Row, error) {
	stream, err := s.Run(ctx, params)
	if err != nil {
		return nil, err
	}
	defer stream.Close()
	return stream.Next(ctx)
}

// All materializes every row (spec §6 "statement.all(params?)").
func (s *Statement) All(ctx context.Context, params map[string]types.Value) ([]vtab.Row, error) {
	stream, err := s.Run(ctx, params)
	if err != nil {
		return nil, err
	}
	defer stream.Close()
	var rows []vtab.Row
	for {
		row, err := stream.Next(ctx)
		if err != nil {
			return nil, err
		}
		if row == nil {
			return rows, nil
		}
		rows = append(rows, row)
	}
}

// Finalize releases the statement's catalog subscription (spec §6
// "statement.finalize()"); subsequent calls on the statement fail with
// Misuse.
func (s *Statement) Finalize() error {
	if s.finalized {
		return nil
	}
	s.finalized = true
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	return nil
}

// Explain returns the pretty-printed physical plan (SPEC_FULL §3, the
// EXPLAIN-equivalent facility implied by the trace_plan_stack option).
func (s *Statement) Explain() string {
	return plan.Dump(s.physical)
}

func (s *Statement) mergedParams(overrides map[string]types.Value) map[string]types.Value {
	merged := make(map[string]types.Value, len(s.params)+len(overrides))
	for k, v := range s.params {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}
	return merged
}

// scalarStream adapts a single scalar result into the one-row RowStream
// shape iterateRows/get/all expect when the prepared root is an
// expression rather than a relation (e.g. `select 1+1`).
type scalarStream struct {
	row  vtab.Row
	done bool
}

func (s *scalarStream) Next(ctx context.Context) (vtab.Row, error) {
	if s.done {
		return nil, nil
	}
	s.done = true
	return s.row, nil
}

func (s *scalarStream) Close() error { return nil }
