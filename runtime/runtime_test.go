package runtime

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Digithought/quereus-sub006/errs"
	"github.com/Digithought/quereus-sub006/plan"
	"github.com/Digithought/quereus-sub006/types"
	"github.com/Digithought/quereus-sub006/vtab"
)

// fakeTable is an in-memory vtab.Table fixture for runtime tests, standing
// in for a real module (memtable or sqlbridge) implementation.
type fakeTable struct {
	rows []vtab.Row
}

func (t *fakeTable) Query(ctx context.Context, filter vtab.FilterInfo) (vtab.RowStream, error) {
	return newSliceStream(append([]vtab.Row{}, t.rows...)), nil
}

func (t *fakeTable) Update(ctx context.Context, args vtab.UpdateArgs) (vtab.UpdateResult, error) {
	switch args.Op {
	case vtab.UpdateInsert:
		t.rows = append(t.rows, args.NewValues)
		return vtab.UpdateResult{Row: args.NewValues}, nil
	case vtab.UpdateDelete:
		return vtab.UpdateResult{Deleted: true, DeletedKey: args.OldKey}, nil
	default:
		return vtab.UpdateResult{Row: args.NewValues}, nil
	}
}

func (t *fakeTable) CreateConnection(ctx context.Context) (vtab.Connection, error) { return nil, nil }
func (t *fakeTable) Disconnect(ctx context.Context) error                          { return nil }

type fakeTables map[string]*fakeTable

func (f fakeTables) OpenTable(ctx context.Context, schemaName, tableName string) (vtab.Table, error) {
	return f[tableName], nil
}

func newCtx(tables TableProvider) *ExecContext {
	return NewExecContext(context.Background(), map[string]types.Value{}, map[string]ScalarFunc{
		"upper": func(args []types.Value) (types.Value, error) { return args[0], nil },
	}, tables)
}

func drain(t *testing.T, stream vtab.RowStream) []vtab.Row {
	t.Helper()
	defer stream.Close()
	var rows []vtab.Row
	for {
		row, err := stream.Next(context.Background())
		require.NoError(t, err)
		if row == nil {
			return rows
		}
		rows = append(rows, row)
	}
}

func TestEvalExprFoldsArithmeticAtRuntime(t *testing.T) {
	alloc := plan.NewAllocator()
	ctx := newCtx(nil)
	e := plan.NewBinary(alloc, "+", plan.NewLiteral(alloc, types.Int(2)), plan.NewLiteral(alloc, types.Int(3)))
	v, err := EvalExpr(ctx, e)
	require.NoError(t, err)
	assert.Equal(t, types.Int(5), v)
}

func TestEvalExprShortCircuitsAndWithFalseLeft(t *testing.T) {
	alloc := plan.NewAllocator()
	ctx := newCtx(nil)
	call := plan.NewFunctionCall(alloc, "boom", false, nil)
	ctx.Functions["boom"] = func(args []types.Value) (types.Value, error) {
		t.Fatal("right side should not be evaluated")
		return types.Value{}, nil
	}
	e := plan.NewBinary(alloc, "AND", plan.NewLiteral(alloc, types.Bool(false)), call)
	v, err := EvalExpr(ctx, e)
	require.NoError(t, err)
	assert.Equal(t, types.Bool(false), v)
}

func TestExecSeqProjectsColumns(t *testing.T) {
	alloc := plan.NewAllocator()
	colA := alloc.Alloc("a")
	colB := alloc.Alloc("b")
	table := &fakeTable{rows: []vtab.Row{{types.Int(1), types.Text("x")}}}
	tables := fakeTables{"t": table}
	ret := plan.NewRetrieve("t", "main", []plan.AttrID{colA, colB}, nil)

	outAttr := alloc.Alloc("doubled")
	seq := plan.NewSeq(ret, []plan.ProjectItem{
		{Attr: outAttr, Expr: plan.NewBinary(alloc, "+", plan.NewColumnRef(colA, "a"), plan.NewColumnRef(colA, "a"))},
	})

	ctx := newCtx(tables)
	stream, err := Execute(ctx, seq)
	require.NoError(t, err)
	rows := drain(t, stream)
	require.Len(t, rows, 1)
	assert.Equal(t, types.Int(2), rows[0][0])
}

func TestExecFilterKeepsOnlyMatchingRows(t *testing.T) {
	alloc := plan.NewAllocator()
	colA := alloc.Alloc("a")
	table := &fakeTable{rows: []vtab.Row{{types.Int(1)}, {types.Int(2)}, {types.Int(3)}}}
	tables := fakeTables{"t": table}
	ret := plan.NewRetrieve("t", "main", []plan.AttrID{colA}, nil)
	pred := plan.NewBinary(alloc, ">", plan.NewColumnRef(colA, "a"), plan.NewLiteral(alloc, types.Int(1)))
	filter := plan.NewFilter(ret, pred)

	ctx := newCtx(tables)
	stream, err := Execute(ctx, filter)
	require.NoError(t, err)
	rows := drain(t, stream)
	assert.Len(t, rows, 2)
}

func TestExecSortOrdersByKey(t *testing.T) {
	alloc := plan.NewAllocator()
	colA := alloc.Alloc("a")
	table := &fakeTable{rows: []vtab.Row{{types.Int(3)}, {types.Int(1)}, {types.Int(2)}}}
	tables := fakeTables{"t": table}
	ret := plan.NewRetrieve("t", "main", []plan.AttrID{colA}, nil)
	sorted := plan.NewSort(ret, []plan.SortKey{{Attr: colA}})

	ctx := newCtx(tables)
	stream, err := Execute(ctx, sorted)
	require.NoError(t, err)
	rows := drain(t, stream)
	require.Len(t, rows, 3)
	assert.Equal(t, types.Int(1), rows[0][0])
	assert.Equal(t, types.Int(2), rows[1][0])
	assert.Equal(t, types.Int(3), rows[2][0])
}

func TestExecHashAggregateSumsPerGroup(t *testing.T) {
	alloc := plan.NewAllocator()
	colG := alloc.Alloc("g")
	colV := alloc.Alloc("v")
	table := &fakeTable{rows: []vtab.Row{
		{types.Text("a"), types.Int(1)},
		{types.Text("b"), types.Int(10)},
		{types.Text("a"), types.Int(2)},
	}}
	tables := fakeTables{"t": table}
	ret := plan.NewRetrieve("t", "main", []plan.AttrID{colG, colV}, nil)
	sumAttr := alloc.Alloc("total")
	agg := plan.NewAggregate(ret, []plan.AttrID{colG}, []plan.Reduction{
		{Attr: sumAttr, Function: "sum", Arg: plan.NewColumnRef(colV, "v")},
	})

	ctx := newCtx(tables)
	stream, err := Execute(ctx, agg)
	require.NoError(t, err)
	rows := drain(t, stream)
	require.Len(t, rows, 2)
	totals := map[string]int64{}
	for _, r := range rows {
		require.Equal(t, types.PhysicalBigInt, r[1].Physical)
		totals[r[0].Text] = r[1].Big.Int64()
	}
	assert.Equal(t, int64(3), totals["a"])
	assert.Equal(t, int64(10), totals["b"])
}

func TestExecJoinInnerMatchesOnCondition(t *testing.T) {
	alloc := plan.NewAllocator()
	leftCol := alloc.Alloc("id")
	rightCol := alloc.Alloc("id2")
	left := &fakeTable{rows: []vtab.Row{{types.Int(1)}, {types.Int(2)}}}
	right := &fakeTable{rows: []vtab.Row{{types.Int(2)}, {types.Int(3)}}}
	tables := fakeTables{"left": left, "right": right}
	leftRet := plan.NewRetrieve("left", "main", []plan.AttrID{leftCol}, nil)
	rightRet := plan.NewRetrieve("right", "main", []plan.AttrID{rightCol}, nil)
	cond := plan.NewBinary(alloc, "=", plan.NewColumnRef(leftCol, "id"), plan.NewColumnRef(rightCol, "id2"))
	join := plan.NewJoin(leftRet, rightRet, plan.JoinInner, cond, nil)

	ctx := newCtx(tables)
	stream, err := Execute(ctx, join)
	require.NoError(t, err)
	rows := drain(t, stream)
	require.Len(t, rows, 1)
	assert.Equal(t, types.Int(2), rows[0][0])
	assert.Equal(t, types.Int(2), rows[0][1])
}

func TestExecInsertWritesThroughTable(t *testing.T) {
	alloc := plan.NewAllocator()
	table := &fakeTable{}
	tables := fakeTables{"t": table}
	values := plan.NewValues(alloc, [][]plan.Expr{{plan.NewLiteral(alloc, types.Int(9))}})
	ins := plan.NewInsert(values, "t", "main", plan.ConflictAbort)

	ctx := newCtx(tables)
	stream, err := Execute(ctx, ins)
	require.NoError(t, err)
	rows := drain(t, stream)
	require.Len(t, rows, 1)
	assert.Len(t, table.rows, 1)
	assert.Equal(t, types.Int(9), table.rows[0][0])
}

func TestRunRelationEmitsTraceRecords(t *testing.T) {
	alloc := plan.NewAllocator()
	col := alloc.Alloc("a")
	table := &fakeTable{rows: []vtab.Row{{types.Int(1)}, {types.Int(2)}}}
	tables := fakeTables{"t": table}
	ret := plan.NewRetrieve("t", "main", []plan.AttrID{col}, nil)

	ctx := newCtx(tables)
	var records []TraceRecord
	ctx.Trace = func(r TraceRecord) { records = append(records, r) }

	stream, err := RunRelation(ctx, ret)
	require.NoError(t, err)
	rows := drain(t, stream)
	assert.Len(t, rows, 2)
	assert.NotEmpty(t, records)
	assert.Equal(t, int64(2), records[len(records)-1].RowCount)
}

// deferredEnqueuer wraps fakeTable to additionally satisfy
// vtab.DeferredCheckEnqueuer, recording enqueued checks instead of running
// them, so a test can assert a check was deferred rather than run inline.
type deferredEnqueuer struct {
	*fakeTable
	checks []deferredCheckCall
}

type deferredCheckCall struct {
	name string
	eval func() error
}

func (d *deferredEnqueuer) EnqueueDeferredCheck(ctx context.Context, name string, eval func() error) error {
	d.checks = append(d.checks, deferredCheckCall{name: name, eval: eval})
	return nil
}

type singleTableProvider struct {
	table vtab.Table
}

func (p singleTableProvider) OpenTable(ctx context.Context, schemaName, tableName string) (vtab.Table, error) {
	return p.table, nil
}

func TestExecConstraintCheckFailsInlineForOrdinaryCheck(t *testing.T) {
	alloc := plan.NewAllocator()
	colX := alloc.Alloc("x")
	table := &fakeTable{rows: []vtab.Row{{types.Int(-1)}}}
	tables := fakeTables{"t": table}
	ret := plan.NewRetrieve("t", "main", []plan.AttrID{colX}, nil)

	check := plan.CheckSpec{
		ConstraintName: "chk_positive",
		Expression:     plan.NewBinary(alloc, ">", plan.NewColumnRef(colX, "x"), plan.NewLiteral(alloc, types.Int(0))),
	}
	cc := plan.NewConstraintCheck(ret, plan.ConstraintOpInsert, []plan.CheckSpec{check}, nil, nil, "main", "t")

	ctx := newCtx(tables)
	stream, err := Execute(ctx, cc)
	require.NoError(t, err)
	defer stream.Close()
	_, err = stream.Next(context.Background())
	require.Error(t, err)
}

func TestExecConstraintCheckRoutesDeferrableCheckInsteadOfEvaluatingInline(t *testing.T) {
	alloc := plan.NewAllocator()
	colX := alloc.Alloc("x")
	backing := &fakeTable{rows: []vtab.Row{{types.Int(-1)}}}
	table := &deferredEnqueuer{fakeTable: backing}
	tables := singleTableProvider{table: table}
	ret := plan.NewRetrieve("t", "main", []plan.AttrID{colX}, nil)

	check := plan.CheckSpec{
		ConstraintName:   "chk_subquery",
		Expression:       plan.NewBinary(alloc, ">", plan.NewColumnRef(colX, "x"), plan.NewLiteral(alloc, types.Int(0))),
		ContainsSubquery: true,
	}
	cc := plan.NewConstraintCheck(ret, plan.ConstraintOpInsert, []plan.CheckSpec{check}, nil, nil, "main", "t")

	ctx := NewExecContext(context.Background(), map[string]types.Value{}, map[string]ScalarFunc{}, tables)
	stream, err := Execute(ctx, cc)
	require.NoError(t, err)
	rows := drain(t, stream)
	require.Len(t, rows, 1, "the failing row still passes through; its check was deferred, not evaluated")

	require.Len(t, table.checks, 1)
	assert.Equal(t, "chk_subquery", table.checks[0].name)
	assert.Error(t, table.checks[0].eval(), "the deferred check still fails once actually evaluated, just not inline")
}

func TestCheckCancelledReportsCancelledKind(t *testing.T) {
	cancelCtx, cancel := context.WithCancel(context.Background())
	cancel()
	ctx := NewExecContext(cancelCtx, nil, nil, nil)
	err := ctx.checkCancelled()
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindCancelled))
}

func TestExecWindowRankAndDenseRankHandleTies(t *testing.T) {
	alloc := plan.NewAllocator()
	colX := alloc.Alloc("x")
	table := &fakeTable{rows: []vtab.Row{
		{types.Int(1)}, {types.Int(2)}, {types.Int(2)}, {types.Int(3)},
	}}
	tables := fakeTables{"t": table}
	ret := plan.NewRetrieve("t", "main", []plan.AttrID{colX}, nil)

	orderBy := []plan.SortKey{{Attr: colX}}
	rankAttr := alloc.Alloc("rnk")
	denseAttr := alloc.Alloc("drnk")
	win := plan.NewWindow(ret, []plan.ProjectItem{
		{Attr: rankAttr, Expr: plan.NewWindowCall(alloc, "rank", nil, nil, orderBy, nil)},
		{Attr: denseAttr, Expr: plan.NewWindowCall(alloc, "dense_rank", nil, nil, orderBy, nil)},
	})

	ctx := newCtx(tables)
	stream, err := Execute(ctx, win)
	require.NoError(t, err)
	rows := drain(t, stream)
	require.Len(t, rows, 4)

	byX := map[int64][2]int64{}
	for _, row := range rows {
		byX[row[0].Int] = [2]int64{row[1].Int, row[2].Int}
	}
	assert.Equal(t, [2]int64{1, 1}, byX[1])
	assert.Equal(t, [2]int64{2, 2}, byX[2])
	assert.Equal(t, [2]int64{4, 3}, byX[3])
}

func TestExecWindowSumOverPartitionUsesPerRowArgument(t *testing.T) {
	alloc := plan.NewAllocator()
	colGroup := alloc.Alloc("grp")
	colX := alloc.Alloc("x")
	table := &fakeTable{rows: []vtab.Row{
		{types.Text("a"), types.Int(1)},
		{types.Text("a"), types.Int(2)},
		{types.Text("b"), types.Int(10)},
	}}
	tables := fakeTables{"t": table}
	ret := plan.NewRetrieve("t", "main", []plan.AttrID{colGroup, colX}, nil)

	sumAttr := alloc.Alloc("total")
	win := plan.NewWindow(ret, []plan.ProjectItem{
		{Attr: sumAttr, Expr: plan.NewWindowCall(alloc, "sum",
			[]plan.Expr{plan.NewColumnRef(colX, "x")},
			[]plan.Expr{plan.NewColumnRef(colGroup, "grp")},
			nil, nil)},
	})

	ctx := newCtx(tables)
	stream, err := Execute(ctx, win)
	require.NoError(t, err)
	rows := drain(t, stream)
	require.Len(t, rows, 3)

	totals := map[string]int64{}
	for _, row := range rows {
		require.Equal(t, types.PhysicalBigInt, row[2].Physical)
		totals[row[0].Text] = row[2].Big.Int64()
	}
	assert.Equal(t, int64(3), totals["a"])
	assert.Equal(t, int64(10), totals["b"])
}
