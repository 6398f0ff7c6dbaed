package runtime

import (
	"context"
	"sort"

	"github.com/Digithought/quereus-sub006/errs"
	"github.com/Digithought/quereus-sub006/plan"
	"github.com/Digithought/quereus-sub006/types"
	"github.com/Digithought/quereus-sub006/vtab"
)

// Execute turns rel into a live vtab.RowStream, the scheduler's relational
// half (spec §4.5). Scalar evaluation is EvalExpr's job; the two call back
// into each other for subqueries and correlated references.
func Execute(ctx *ExecContext, rel plan.Relation) (vtab.RowStream, error) {
	if err := ctx.checkCancelled(); err != nil {
		return nil, err
	}
	switch r := rel.(type) {
	case *plan.Values:
		return execValues(ctx, r)
	case *plan.Seq:
		return execSeq(ctx, r)
	case *plan.Filter:
		return execFilter(ctx, r)
	case *plan.Join:
		return execJoin(ctx, r)
	case *plan.Aggregate:
		return execAggregate(ctx, r)
	case *plan.Window:
		return execWindow(ctx, r)
	case *plan.Sort:
		return execSort(ctx, r)
	case *plan.Limit:
		return execLimit(ctx, r)
	case *plan.Set:
		return execSet(ctx, r)
	case *plan.CTE:
		return execCTE(ctx, r)
	case *plan.Retrieve:
		return execRetrieve(ctx, r)
	case *plan.MutationContext:
		return execMutationContext(ctx, r)
	case *plan.ConstraintCheck:
		return execConstraintCheck(ctx, r)
	case *plan.Insert:
		return execInsert(ctx, r)
	case *plan.Update:
		return execUpdate(ctx, r)
	case *plan.Delete:
		return execDelete(ctx, r)
	case *plan.Returning:
		return Execute(ctx, r.Input)
	case *plan.Block:
		return execBlock(ctx, r)
	case *plan.Cache:
		return execCache(ctx, r)
	default:
		return nil, errs.New(errs.KindUnsupported, "unsupported relation kind %s", rel.Kind())
	}
}

// descriptorFor maps a relation's declared column list to row positions,
// the RowDescriptor a Slot opens against while the relation's rows are in
// flight (spec §4.5).
func descriptorFor(cols []plan.AttrID) RowDescriptor {
	d := make(RowDescriptor, len(cols))
	for i, c := range cols {
		d[c] = i
	}
	return d
}

// --- Values ---

func execValues(ctx *ExecContext, v *plan.Values) (vtab.RowStream, error) {
	rows := make([]vtab.Row, len(v.Rows))
	for i, exprs := range v.Rows {
		row := make(vtab.Row, len(exprs))
		for j, e := range exprs {
			val, err := EvalExpr(ctx, e)
			if err != nil {
				return nil, err
			}
			row[j] = val
		}
		rows[i] = row
	}
	return newSliceStream(rows), nil
}

// --- Seq (projection) ---

func execSeq(ctx *ExecContext, s *plan.Seq) (vtab.RowStream, error) {
	input, err := Execute(ctx, s.Input)
	if err != nil {
		return nil, err
	}
	descriptor := descriptorFor(s.Input.Columns())
	return newFuncStream(func() (vtab.Row, error) {
		for {
			row, err := input.Next(ctx.Ctx)
			if err != nil || row == nil {
				return row, err
			}
			slot := NewSlot(descriptor)
			slot.Open(row)
			ctx.Slots = append(ctx.Slots, slot)
			out := make(vtab.Row, len(s.Items))
			var evalErr error
			for i, it := range s.Items {
				v, err := EvalExpr(ctx, it.Expr)
				if err != nil {
					evalErr = err
					break
				}
				out[i] = v
			}
			slot.Close()
			ctx.Slots = ctx.Slots[:len(ctx.Slots)-1]
			if evalErr != nil {
				return nil, evalErr
			}
			return out, nil
		}
	}, input.Close), nil
}

// --- Filter ---

func execFilter(ctx *ExecContext, f *plan.Filter) (vtab.RowStream, error) {
	input, err := Execute(ctx, f.Input)
	if err != nil {
		return nil, err
	}
	descriptor := descriptorFor(f.Input.Columns())
	return newFuncStream(func() (vtab.Row, error) {
		for {
			row, err := input.Next(ctx.Ctx)
			if err != nil || row == nil {
				return row, err
			}
			slot := NewSlot(descriptor)
			slot.Open(row)
			ctx.Slots = append(ctx.Slots, slot)
			keep, err := EvalExpr(ctx, f.Predicate)
			slot.Close()
			ctx.Slots = ctx.Slots[:len(ctx.Slots)-1]
			if err != nil {
				return nil, err
			}
			if isTrueVal(keep) {
				return row, nil
			}
		}
	}, input.Close), nil
}

// --- Join ---

// execJoin implements nested-loop evaluation: the right side is
// materialized once and rescanned per left row. Inner/cross/left-outer are
// the join types the optimizer's decorrelation rule and a planner emit
// (spec §3); right joins are normalized to a left join over swapped sides
// by whichever component builds the plan, so this only needs to cover the
// three.
func execJoin(ctx *ExecContext, j *plan.Join) (vtab.RowStream, error) {
	left, err := Execute(ctx, j.Left)
	if err != nil {
		return nil, err
	}
	rightRows, err := materialize(ctx, j.Right)
	if err != nil {
		left.Close()
		return nil, err
	}
	leftCols := j.Left.Columns()
	rightCols := j.Right.Columns()
	descriptor := descriptorFor(append(append([]plan.AttrID{}, leftCols...), rightCols...))

	var curLeft vtab.Row
	rightIdx := 0
	matchedCurLeft := false

	next := func() (vtab.Row, error) {
		for {
			if curLeft == nil {
				row, err := left.Next(ctx.Ctx)
				if err != nil {
					return nil, err
				}
				if row == nil {
					return nil, nil
				}
				curLeft = row
				rightIdx = 0
				matchedCurLeft = false
			}
			for rightIdx < len(rightRows) {
				rr := rightRows[rightIdx]
				rightIdx++
				combined := append(append(vtab.Row{}, curLeft...), rr...)
				if j.JoinType == plan.JoinCross {
					matchedCurLeft = true
					return combined, nil
				}
				if j.Condition == nil {
					matchedCurLeft = true
					return combined, nil
				}
				slot := NewSlot(descriptor)
				slot.Open(combined)
				ctx.Slots = append(ctx.Slots, slot)
				ok, err := EvalExpr(ctx, j.Condition)
				slot.Close()
				ctx.Slots = ctx.Slots[:len(ctx.Slots)-1]
				if err != nil {
					return nil, err
				}
				if isTrueVal(ok) {
					matchedCurLeft = true
					return combined, nil
				}
			}
			if j.JoinType == plan.JoinLeft && !matchedCurLeft {
				row := curLeft
				curLeft = nil
				nullExtended := append(append(vtab.Row{}, row...), make(vtab.Row, len(rightCols))...)
				return nullExtended, nil
			}
			curLeft = nil
		}
	}
	return newFuncStream(next, left.Close), nil
}

// --- Aggregate ---

func execAggregate(ctx *ExecContext, a *plan.Aggregate) (vtab.RowStream, error) {
	if a.Streaming {
		return execStreamingAggregate(ctx, a)
	}
	return execHashAggregate(ctx, a)
}

func execHashAggregate(ctx *ExecContext, a *plan.Aggregate) (vtab.RowStream, error) {
	rows, err := materialize(ctx, a.Input)
	if err != nil {
		return nil, err
	}
	descriptor := descriptorFor(a.Input.Columns())
	groups := make(map[string][]vtab.Row)
	var order []string
	for _, row := range rows {
		key, err := groupKey(ctx, descriptor, a.Grouping, row)
		if err != nil {
			return nil, err
		}
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], row)
	}
	if len(a.Grouping) == 0 && len(order) == 0 {
		order = append(order, "")
		groups[""] = nil
	}
	out := make([]vtab.Row, 0, len(order))
	for _, key := range order {
		rowOut, err := computeReductions(ctx, descriptor, a, groups[key])
		if err != nil {
			return nil, err
		}
		out = append(out, rowOut)
	}
	return newSliceStream(out), nil
}

// execStreamingAggregate relies on Input already being ordered so that
// every grouping key's rows are contiguous (spec §4.4 "Streaming aggregate
// choice"), emitting one output row per group boundary without buffering
// the whole input.
func execStreamingAggregate(ctx *ExecContext, a *plan.Aggregate) (vtab.RowStream, error) {
	input, err := Execute(ctx, a.Input)
	if err != nil {
		return nil, err
	}
	descriptor := descriptorFor(a.Input.Columns())
	var pending []vtab.Row
	var pendingKey string
	havePending := false
	done := false

	flush := func() (vtab.Row, error) {
		out, err := computeReductions(ctx, descriptor, a, pending)
		pending = nil
		return out, err
	}

	next := func() (vtab.Row, error) {
		for {
			if done {
				if havePending {
					havePending = false
					return flush()
				}
				return nil, nil
			}
			row, err := input.Next(ctx.Ctx)
			if err != nil {
				return nil, err
			}
			if row == nil {
				done = true
				if havePending {
					havePending = false
					return flush()
				}
				return nil, nil
			}
			key, err := groupKey(ctx, descriptor, a.Grouping, row)
			if err != nil {
				return nil, err
			}
			if !havePending {
				havePending = true
				pendingKey = key
				pending = []vtab.Row{row}
				continue
			}
			if key == pendingKey {
				pending = append(pending, row)
				continue
			}
			out, err := flush()
			if err != nil {
				return nil, err
			}
			pendingKey = key
			pending = []vtab.Row{row}
			return out, nil
		}
	}
	return newFuncStream(next, input.Close), nil
}

func groupKey(ctx *ExecContext, descriptor RowDescriptor, grouping []plan.AttrID, row vtab.Row) (string, error) {
	key := ""
	for _, attr := range grouping {
		pos, ok := descriptor[attr]
		if !ok || pos >= len(row) {
			return "", errs.New(errs.KindInternal, "grouping attribute %d not in row", attr)
		}
		key += "|" + row[pos].String() + ":" + row[pos].Physical.String()
	}
	return key, nil
}

func computeReductions(ctx *ExecContext, descriptor RowDescriptor, a *plan.Aggregate, rows []vtab.Row) (vtab.Row, error) {
	out := make(vtab.Row, len(a.Grouping)+len(a.Reductions))
	if len(rows) > 0 {
		for i, attr := range a.Grouping {
			pos := descriptor[attr]
			out[i] = rows[0][pos]
		}
	}
	for i, red := range a.Reductions {
		v, err := reduceOne(ctx, descriptor, red, rows)
		if err != nil {
			return nil, err
		}
		out[len(a.Grouping)+i] = v
	}
	return out, nil
}

// reduceOne evaluates one Reduction over rows using the init/step/final
// calling convention an AggregateFunc exposes (see aggregate.go).
func reduceOne(ctx *ExecContext, descriptor RowDescriptor, red plan.Reduction, rows []vtab.Row) (types.Value, error) {
	fn, ok := ctx.Aggregates[red.Function]
	if !ok {
		return types.Value{}, errs.New(errs.KindSchemaMissing, "no such aggregate function: %s", red.Function)
	}
	acc := fn.Init()
	seen := make(map[string]bool)
	for _, row := range rows {
		var arg types.Value
		if red.Arg != nil {
			slot := NewSlot(descriptor)
			slot.Open(row)
			ctx.Slots = append(ctx.Slots, slot)
			v, err := EvalExpr(ctx, red.Arg)
			slot.Close()
			ctx.Slots = ctx.Slots[:len(ctx.Slots)-1]
			if err != nil {
				return types.Value{}, err
			}
			arg = v
		}
		if red.Arg != nil && types.IsNull(arg) {
			continue
		}
		if red.Distinct {
			dk := arg.String() + ":" + arg.Physical.String()
			if seen[dk] {
				continue
			}
			seen[dk] = true
		}
		var err error
		acc, err = fn.Step(acc, arg)
		if err != nil {
			return types.Value{}, err
		}
	}
	return fn.Final(acc)
}

// --- Window ---

// execWindow materializes Input (window functions need the full partition
// before any row can be emitted), then computes each WindowCall over rows
// grouped by PartitionBy and ordered by OrderBy (spec §3). Position-based
// functions (row_number, rank, dense_rank) derive their result from that
// order directly; every other registered function folds over the ordered
// partition using aggregate.go's init/step/final convention, evaluated
// against the call's own Args() per row. Framing beyond the whole ordered
// partition (e.g. a running RANGE frame) is not yet implemented.
func execWindow(ctx *ExecContext, w *plan.Window) (vtab.RowStream, error) {
	rows, err := materialize(ctx, w.Input)
	if err != nil {
		return nil, err
	}
	descriptor := descriptorFor(w.Input.Columns())
	width := len(w.Input.Columns())
	out := make([]vtab.Row, len(rows))
	for i, row := range rows {
		extended := make(vtab.Row, width+len(w.Calls))
		copy(extended, row)
		out[i] = extended
	}
	for ci, call := range w.Calls {
		wc := call.Expr.(*plan.WindowCall)
		values, err := evalWindowCall(ctx, descriptor, wc, rows)
		if err != nil {
			return nil, err
		}
		for i, v := range values {
			out[i][width+ci] = v
		}
	}
	return newSliceStream(out), nil
}

// evalWindowCall returns one result value per row of rows, in rows' order.
func evalWindowCall(ctx *ExecContext, descriptor RowDescriptor, wc *plan.WindowCall, rows []vtab.Row) ([]types.Value, error) {
	partitions, err := partitionRowIndices(ctx, descriptor, wc.PartitionBy, rows)
	if err != nil {
		return nil, err
	}

	results := make([]types.Value, len(rows))
	for _, partition := range partitions {
		ordered := append([]int(nil), partition...)
		sort.SliceStable(ordered, func(i, j int) bool {
			return sortKeyLess(rows[ordered[i]], rows[ordered[j]], wc.OrderBy, descriptor)
		})

		var values []types.Value
		switch wc.Name {
		case "row_number":
			values = rowNumberValues(ordered)
		case "rank":
			values, err = rankValues(descriptor, wc.OrderBy, rows, ordered, false)
		case "dense_rank":
			values, err = rankValues(descriptor, wc.OrderBy, rows, ordered, true)
		default:
			values, err = foldWindowAggregate(ctx, descriptor, wc, rows, ordered)
		}
		if err != nil {
			return nil, err
		}
		for i, origIdx := range ordered {
			results[origIdx] = values[i]
		}
	}
	return results, nil
}

// partitionRowIndices groups row indices by equal PartitionBy tuples,
// preserving first-seen partition order.
func partitionRowIndices(ctx *ExecContext, descriptor RowDescriptor, partitionBy []plan.Expr, rows []vtab.Row) ([][]int, error) {
	var groups [][]int
	var keys [][]types.Value
	for i, row := range rows {
		key, err := evalExprsAgainstRow(ctx, descriptor, partitionBy, row)
		if err != nil {
			return nil, err
		}
		placed := false
		for g, existing := range keys {
			if tuplesEqual(existing, key) {
				groups[g] = append(groups[g], i)
				placed = true
				break
			}
		}
		if !placed {
			groups = append(groups, []int{i})
			keys = append(keys, key)
		}
	}
	return groups, nil
}

// evalExprsAgainstRow opens a single slot over row and evaluates each of
// exprs against it, in order.
func evalExprsAgainstRow(ctx *ExecContext, descriptor RowDescriptor, exprs []plan.Expr, row vtab.Row) ([]types.Value, error) {
	if len(exprs) == 0 {
		return nil, nil
	}
	slot := NewSlot(descriptor)
	slot.Open(row)
	ctx.Slots = append(ctx.Slots, slot)
	defer func() {
		slot.Close()
		ctx.Slots = ctx.Slots[:len(ctx.Slots)-1]
	}()

	out := make([]types.Value, len(exprs))
	for i, e := range exprs {
		v, err := EvalExpr(ctx, e)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func tuplesEqual(a, b []types.Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if types.Compare(a[i], b[i], nil) != types.Equal {
			return false
		}
	}
	return true
}

// rowNumberValues assigns 1..n to ordered's positions (spec §3 row_number).
func rowNumberValues(ordered []int) []types.Value {
	out := make([]types.Value, len(ordered))
	for i := range ordered {
		out[i] = types.Int(int64(i + 1))
	}
	return out
}

// rankValues computes rank()/dense_rank() over ordered, which is already
// sorted by orderBy: rows with an equal ORDER BY key tuple tie, sharing a
// rank; rank() then jumps by the number of tied rows while dense_rank()
// always advances by one (spec §8 S3: t(x)=[1,2,2,3], rank() over (order by
// x) -> [1,2,2,4], dense_rank() -> [1,2,2,3]).
func rankValues(descriptor RowDescriptor, orderBy []plan.SortKey, rows []vtab.Row, ordered []int, dense bool) ([]types.Value, error) {
	out := make([]types.Value, len(ordered))
	var prevKey []types.Value
	rank, denseRank := 0, 0
	for i, idx := range ordered {
		key, err := sortKeyValues(descriptor, orderBy, rows[idx])
		if err != nil {
			return nil, err
		}
		if i == 0 || !tuplesEqual(prevKey, key) {
			rank = i + 1
			denseRank++
		}
		if dense {
			out[i] = types.Int(int64(denseRank))
		} else {
			out[i] = types.Int(int64(rank))
		}
		prevKey = key
	}
	return out, nil
}

// sortKeyValues reads each orderBy key's attribute straight out of row
// (SortKey references an already-materialized attribute, not an Expr).
func sortKeyValues(descriptor RowDescriptor, orderBy []plan.SortKey, row vtab.Row) ([]types.Value, error) {
	out := make([]types.Value, len(orderBy))
	for i, key := range orderBy {
		pos, ok := descriptor[key.Attr]
		if !ok || pos >= len(row) {
			return nil, errs.New(errs.KindInternal, "window order-by attribute not present in row")
		}
		out[i] = row[pos]
	}
	return out, nil
}

// foldWindowAggregate runs the init/step/final convention over ordered's
// rows using wc's own Args()[0] (if any) as the per-row argument, then
// broadcasts the single folded result back to every row in the partition —
// the "whole ordered partition" default frame.
func foldWindowAggregate(ctx *ExecContext, descriptor RowDescriptor, wc *plan.WindowCall, rows []vtab.Row, ordered []int) ([]types.Value, error) {
	fn, ok := ctx.Aggregates[wc.Name]
	if !ok {
		return nil, errs.New(errs.KindSchemaMissing, "no such window function: %s", wc.Name)
	}
	args := wc.Args()

	acc := fn.Init()
	for _, idx := range ordered {
		var arg types.Value
		if len(args) > 0 {
			vs, err := evalExprsAgainstRow(ctx, descriptor, args[:1], rows[idx])
			if err != nil {
				return nil, err
			}
			arg = vs[0]
		}
		var err error
		acc, err = fn.Step(acc, arg)
		if err != nil {
			return nil, err
		}
	}
	final, err := fn.Final(acc)
	if err != nil {
		return nil, err
	}
	out := make([]types.Value, len(ordered))
	for i := range out {
		out[i] = final
	}
	return out, nil
}

// --- Sort ---

func execSort(ctx *ExecContext, s *plan.Sort) (vtab.RowStream, error) {
	rows, err := materialize(ctx, s.Input)
	if err != nil {
		return nil, err
	}
	descriptor := descriptorFor(s.Input.Columns())
	sort.SliceStable(rows, func(i, j int) bool {
		return sortKeyLess(rows[i], rows[j], s.SortKeys, descriptor)
	})
	return newSliceStream(rows), nil
}

// sortKeyLess reports whether a sorts before b under keys, resolving each
// key's attribute straight out of the row via descriptor (shared by
// execSort and the window partition ordering in evalWindowCall).
func sortKeyLess(a, b vtab.Row, keys []plan.SortKey, descriptor RowDescriptor) bool {
	for _, key := range keys {
		pos := descriptor[key.Attr]
		av, bv := a[pos], b[pos]
		nullOrder := types.NullsLast
		if key.NullsFirst {
			nullOrder = types.NullsFirst
		}
		ordering := types.OrderWithNulls(av, bv, nil, nullOrder)
		if key.Descending {
			ordering = flipOrdering(ordering)
		}
		switch ordering {
		case types.Less:
			return true
		case types.Greater:
			return false
		}
	}
	return false
}

func flipOrdering(o types.Ordering) types.Ordering {
	switch o {
	case types.Less:
		return types.Greater
	case types.Greater:
		return types.Less
	default:
		return o
	}
}

// --- Limit ---

func execLimit(ctx *ExecContext, l *plan.Limit) (vtab.RowStream, error) {
	input, err := Execute(ctx, l.Input)
	if err != nil {
		return nil, err
	}
	var offset, limit int64 = 0, -1
	if l.Offset != nil {
		v, err := EvalExpr(ctx, l.Offset)
		if err != nil {
			return nil, err
		}
		offset = v.Int
	}
	if l.Count != nil {
		v, err := EvalExpr(ctx, l.Count)
		if err != nil {
			return nil, err
		}
		limit = v.Int
	}
	var skipped, emitted int64
	return newFuncStream(func() (vtab.Row, error) {
		for skipped < offset {
			row, err := input.Next(ctx.Ctx)
			if err != nil {
				return nil, err
			}
			if row == nil {
				return nil, nil
			}
			skipped++
		}
		if limit >= 0 && emitted >= limit {
			return nil, nil
		}
		row, err := input.Next(ctx.Ctx)
		if err != nil || row == nil {
			return row, err
		}
		emitted++
		return row, nil
	}, input.Close), nil
}

// --- Set ---

func execSet(ctx *ExecContext, s *plan.Set) (vtab.RowStream, error) {
	left, err := materialize(ctx, s.Left)
	if err != nil {
		return nil, err
	}
	right, err := materialize(ctx, s.Right)
	if err != nil {
		return nil, err
	}
	var out []vtab.Row
	switch s.Op {
	case plan.SetUnion:
		out = append(append([]vtab.Row{}, left...), right...)
	case plan.SetIntersect:
		rset := rowSet(right)
		for _, row := range left {
			if rset[rowKey(row)] > 0 {
				out = append(out, row)
				if !s.All {
					rset[rowKey(row)] = 0
				}
			}
		}
	case plan.SetExcept:
		rset := rowSet(right)
		for _, row := range left {
			if rset[rowKey(row)] == 0 {
				out = append(out, row)
			} else if s.All {
				rset[rowKey(row)]--
			}
		}
	}
	if !s.All {
		out = distinctRows(out)
	}
	return newSliceStream(out), nil
}

func rowKey(row vtab.Row) string {
	key := ""
	for _, v := range row {
		key += "|" + v.String() + ":" + v.Physical.String()
	}
	return key
}

func rowSet(rows []vtab.Row) map[string]int {
	m := make(map[string]int, len(rows))
	for _, r := range rows {
		m[rowKey(r)]++
	}
	return m
}

func distinctRows(rows []vtab.Row) []vtab.Row {
	seen := make(map[string]bool, len(rows))
	out := make([]vtab.Row, 0, len(rows))
	for _, r := range rows {
		k := rowKey(r)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, r)
	}
	return out
}

// --- CTE ---

// execCTE runs Body directly for a non-recursive binding (Body's tree
// already embeds Definition wherever the CTE is scanned, sharing the same
// relation pointer the caching-insertion rule memoizes — spec §4.4). A
// recursive CTE instead iterates: the anchor half of Definition (a Set's
// Left) seeds a working-set table that any Retrieve naming this CTE reads
// from, re-running the recursive half (Set's Right) until it contributes
// no new rows (SPEC_FULL §3, resolving spec §9's open question on
// recursive CTE evaluation).
func execCTE(ctx *ExecContext, c *plan.CTE) (vtab.RowStream, error) {
	if !c.Recursive {
		return Execute(ctx, c.Body)
	}
	setNode, ok := c.Definition.(*plan.Set)
	if !ok {
		return nil, errs.New(errs.KindInternal, "recursive CTE definition must be a Set(anchor, recursive term)")
	}
	working, err := materialize(ctx, setNode.Left)
	if err != nil {
		return nil, err
	}
	all := append([]vtab.Row{}, working...)
	table := newMemoryTable(setNode.Left.Columns())
	table.replace(working)
	prevTables := ctx.cteTables
	if prevTables == nil {
		ctx.cteTables = map[string]*memoryTable{}
	} else {
		ctx.cteTables = copyTableMap(prevTables)
	}
	ctx.cteTables[c.Name] = table
	defer func() { ctx.cteTables = prevTables }()

	for len(working) > 0 {
		next, err := materialize(ctx, setNode.Right)
		if err != nil {
			return nil, err
		}
		if !setNode.All {
			next = subtractKnown(next, all)
		}
		if len(next) == 0 {
			break
		}
		all = append(all, next...)
		table.replace(next)
		working = next
	}
	if !setNode.All {
		all = distinctRows(all)
	}
	table.replace(all)
	return Execute(ctx, c.Body)
}

func copyTableMap(m map[string]*memoryTable) map[string]*memoryTable {
	out := make(map[string]*memoryTable, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func subtractKnown(rows, known []vtab.Row) []vtab.Row {
	seen := rowSet(known)
	var out []vtab.Row
	for _, r := range rows {
		if seen[rowKey(r)] == 0 {
			out = append(out, r)
			seen[rowKey(r)]++
		}
	}
	return out
}

// memoryTable is the minimal in-process vtab.Table a recursive CTE's
// working set needs: a replaceable row buffer, queried without pushdown.
type memoryTable struct {
	cols []plan.AttrID
	rows []vtab.Row
}

func newMemoryTable(cols []plan.AttrID) *memoryTable { return &memoryTable{cols: cols} }

func (t *memoryTable) replace(rows []vtab.Row) { t.rows = rows }

func (t *memoryTable) Query(ctx context.Context, filter vtab.FilterInfo) (vtab.RowStream, error) {
	return newSliceStream(append([]vtab.Row{}, t.rows...)), nil
}

func (t *memoryTable) Update(ctx context.Context, args vtab.UpdateArgs) (vtab.UpdateResult, error) {
	return vtab.UpdateResult{}, errs.New(errs.KindUnsupported, "recursive CTE working sets are read-only")
}

func (t *memoryTable) CreateConnection(ctx context.Context) (vtab.Connection, error) {
	return nil, errs.New(errs.KindUnsupported, "recursive CTE working sets have no transaction scope")
}

func (t *memoryTable) Disconnect(ctx context.Context) error { return nil }

// --- Retrieve ---

func execRetrieve(ctx *ExecContext, r *plan.Retrieve) (vtab.RowStream, error) {
	if ctx.cteTables != nil {
		if t, ok := ctx.cteTables[r.TableName]; ok {
			return t.Query(ctx.Ctx, vtab.FilterInfo{})
		}
	}
	table, err := ctx.Tables.OpenTable(ctx.Ctx, r.SchemaName, r.TableName)
	if err != nil {
		return nil, err
	}
	filter := vtab.FilterInfo{}
	cols := r.Columns()
	for _, c := range r.Constraints {
		colIdx := -1
		for i, attr := range cols {
			if attr == c.Column {
				colIdx = i
				break
			}
		}
		cons := vtab.Constraint{Column: colIdx, Op: vtab.FilterOp(c.Op)}
		if c.Arg != nil {
			v, err := EvalExpr(ctx, c.Arg)
			if err != nil {
				return nil, err
			}
			cons.ArgPos = len(filter.Params)
			filter.Params = append(filter.Params, v)
		}
		filter.Constraints = append(filter.Constraints, cons)
	}
	for _, p := range r.Params {
		if _, err := EvalExpr(ctx, p); err != nil {
			return nil, err
		}
	}
	for _, o := range r.OrderBy {
		colIdx := -1
		for i, attr := range cols {
			if attr == o.Attr {
				colIdx = i
				break
			}
		}
		filter.OrderBy = append(filter.OrderBy, vtab.OrderSpec{Column: colIdx, Descending: o.Descending})
	}
	if r.Limit != nil {
		v, err := EvalExpr(ctx, r.Limit)
		if err != nil {
			return nil, err
		}
		filter.Limit = &v.Int
	}
	if r.Offset != nil {
		v, err := EvalExpr(ctx, r.Offset)
		if err != nil {
			return nil, err
		}
		filter.Offset = &v.Int
	}
	return table.Query(ctx.Ctx, filter)
}

// --- MutationContext ---

func execMutationContext(ctx *ExecContext, m *plan.MutationContext) (vtab.RowStream, error) {
	input, err := Execute(ctx, m.Input)
	if err != nil {
		return nil, err
	}
	descriptor := descriptorFor(m.Input.Columns())
	captured := make(map[plan.AttrID]types.Value, len(m.Captures))
	return newFuncStream(func() (vtab.Row, error) {
		row, err := input.Next(ctx.Ctx)
		if err != nil || row == nil {
			return row, err
		}
		slot := NewSlot(descriptor)
		slot.Open(row)
		ctx.Slots = append(ctx.Slots, slot)
		extended := append(append(vtab.Row{}, row...), make(vtab.Row, len(m.Captures))...)
		for i, c := range m.Captures {
			v, ok := captured[c.Attr]
			if !ok {
				var err error
				v, err = EvalExpr(ctx, c.Expr)
				if err != nil {
					slot.Close()
					ctx.Slots = ctx.Slots[:len(ctx.Slots)-1]
					return nil, err
				}
				captured[c.Attr] = v
				ctx.Captures[c.Attr] = v
			}
			extended[len(row)+i] = v
		}
		slot.Close()
		ctx.Slots = ctx.Slots[:len(ctx.Slots)-1]
		return extended, nil
	}, input.Close), nil
}

// --- ConstraintCheck ---

// execConstraintCheck evaluates every CheckSpec against each row from
// Input. A check with Deferrable or ContainsSubquery set is instead
// enqueued on the target table's DeferredQueue (spec §4.3: "CHECK
// expressions that contain subqueries are implicitly deferred"), so its
// actual evaluation happens once, at commit, against the table's
// post-transaction state, rather than in-place here.
func execConstraintCheck(ctx *ExecContext, c *plan.ConstraintCheck) (vtab.RowStream, error) {
	input, err := Execute(ctx, c.Input)
	if err != nil {
		return nil, err
	}
	descriptor := descriptorFor(c.Input.Columns())

	var enqueuer vtab.DeferredCheckEnqueuer
	for _, check := range c.Checks {
		if check.Deferrable || check.ContainsSubquery {
			table, err := ctx.Tables.OpenTable(ctx.Ctx, c.SchemaName, c.TableName)
			if err != nil {
				input.Close()
				return nil, err
			}
			e, ok := table.(vtab.DeferredCheckEnqueuer)
			if !ok {
				input.Close()
				return nil, errs.New(errs.KindUnsupported, "table %s.%s does not support deferred constraint checks", c.SchemaName, c.TableName)
			}
			enqueuer = e
			break
		}
	}

	return newFuncStream(func() (vtab.Row, error) {
		row, err := input.Next(ctx.Ctx)
		if err != nil || row == nil {
			return row, err
		}
		slot := NewSlot(descriptor)
		slot.Open(row)
		ctx.Slots = append(ctx.Slots, slot)
		for _, check := range c.Checks {
			if check.Deferrable || check.ContainsSubquery {
				rowCopy := append(vtab.Row(nil), row...)
				expr, name := check.Expression, check.ConstraintName
				if err := enqueuer.EnqueueDeferredCheck(ctx.Ctx, name, func() error {
					return evalDeferredCheck(ctx, descriptor, rowCopy, expr, name)
				}); err != nil {
					slot.Close()
					ctx.Slots = ctx.Slots[:len(ctx.Slots)-1]
					return nil, err
				}
				continue
			}
			v, err := EvalExpr(ctx, check.Expression)
			if err != nil {
				slot.Close()
				ctx.Slots = ctx.Slots[:len(ctx.Slots)-1]
				return nil, err
			}
			if !types.IsNull(v) && !isTrueVal(v) {
				slot.Close()
				ctx.Slots = ctx.Slots[:len(ctx.Slots)-1]
				return nil, errs.Constraint(check.ConstraintName, "", "row failed constraint check")
			}
		}
		slot.Close()
		ctx.Slots = ctx.Slots[:len(ctx.Slots)-1]
		return row, nil
	}, input.Close), nil
}

// evalDeferredCheck re-evaluates expr against a captured row snapshot at
// commit time, independent of the row-stream slot that was open when the
// check was enqueued (that slot has long since closed).
func evalDeferredCheck(ctx *ExecContext, descriptor RowDescriptor, row vtab.Row, expr plan.Expr, name string) error {
	slot := NewSlot(descriptor)
	slot.Open(row)
	ctx.Slots = append(ctx.Slots, slot)
	defer func() {
		slot.Close()
		ctx.Slots = ctx.Slots[:len(ctx.Slots)-1]
	}()
	v, err := EvalExpr(ctx, expr)
	if err != nil {
		return err
	}
	if !types.IsNull(v) && !isTrueVal(v) {
		return errs.Constraint(name, "", "row failed constraint check")
	}
	return nil
}

// --- Insert / Update / Delete ---

func execInsert(ctx *ExecContext, ins *plan.Insert) (vtab.RowStream, error) {
	input, err := Execute(ctx, ins.Input)
	if err != nil {
		return nil, err
	}
	table, err := ctx.Tables.OpenTable(ctx.Ctx, ins.SchemaName, ins.TableName)
	if err != nil {
		input.Close()
		return nil, err
	}
	return newFuncStream(func() (vtab.Row, error) {
		row, err := input.Next(ctx.Ctx)
		if err != nil || row == nil {
			return row, err
		}
		res, err := table.Update(ctx.Ctx, vtab.UpdateArgs{Op: vtab.UpdateInsert, NewValues: row, ConflictResolution: vtab.ConflictResolution(ins.Conflict)})
		if err != nil {
			return nil, err
		}
		return res.Row, nil
	}, input.Close), nil
}

func execUpdate(ctx *ExecContext, upd *plan.Update) (vtab.RowStream, error) {
	input, err := Execute(ctx, upd.Input)
	if err != nil {
		return nil, err
	}
	table, err := ctx.Tables.OpenTable(ctx.Ctx, upd.SchemaName, upd.TableName)
	if err != nil {
		input.Close()
		return nil, err
	}
	descriptor := descriptorFor(upd.Input.Columns())
	return newFuncStream(func() (vtab.Row, error) {
		row, err := input.Next(ctx.Ctx)
		if err != nil || row == nil {
			return row, err
		}
		slot := NewSlot(descriptor)
		slot.Open(row)
		ctx.Slots = append(ctx.Slots, slot)
		newValues := append(vtab.Row{}, row...)
		var evalErr error
		for _, item := range upd.SetItems {
			v, err := EvalExpr(ctx, item.Expr)
			if err != nil {
				evalErr = err
				break
			}
			if pos, ok := descriptor[item.Attr]; ok {
				newValues[pos] = v
			}
		}
		slot.Close()
		ctx.Slots = ctx.Slots[:len(ctx.Slots)-1]
		if evalErr != nil {
			return nil, evalErr
		}
		res, err := table.Update(ctx.Ctx, vtab.UpdateArgs{Op: vtab.UpdateUpdate, OldKey: row, OldValues: row, NewValues: newValues})
		if err != nil {
			return nil, err
		}
		return res.Row, nil
	}, input.Close), nil
}

func execDelete(ctx *ExecContext, del *plan.Delete) (vtab.RowStream, error) {
	input, err := Execute(ctx, del.Input)
	if err != nil {
		return nil, err
	}
	table, err := ctx.Tables.OpenTable(ctx.Ctx, del.SchemaName, del.TableName)
	if err != nil {
		input.Close()
		return nil, err
	}
	return newFuncStream(func() (vtab.Row, error) {
		row, err := input.Next(ctx.Ctx)
		if err != nil || row == nil {
			return row, err
		}
		res, err := table.Update(ctx.Ctx, vtab.UpdateArgs{Op: vtab.UpdateDelete, OldKey: row, OldValues: row})
		if err != nil {
			return nil, err
		}
		if res.Deleted {
			return res.DeletedKey, nil
		}
		return row, nil
	}, input.Close), nil
}

// --- Block ---

func execBlock(ctx *ExecContext, b *plan.Block) (vtab.RowStream, error) {
	var last vtab.RowStream
	for i, stmt := range b.Statements {
		rows, err := materialize(ctx, stmt)
		if err != nil {
			return nil, err
		}
		if i == len(b.Statements)-1 {
			last = newSliceStream(rows)
		}
	}
	if last == nil {
		return newSliceStream(nil), nil
	}
	return last, nil
}

// --- Cache ---

func execCache(ctx *ExecContext, c *plan.Cache) (vtab.RowStream, error) {
	if cached, ok := ctx.cacheLookup(c.Key); ok {
		return newSliceStream(cached), nil
	}
	rows, err := materialize(ctx, c.Input)
	if err != nil {
		return nil, err
	}
	ctx.cacheStore(c.Key, rows)
	return newSliceStream(rows), nil
}

// --- stream helpers ---

func materialize(ctx *ExecContext, rel plan.Relation) ([]vtab.Row, error) {
	stream, err := Execute(ctx, rel)
	if err != nil {
		return nil, err
	}
	defer stream.Close()
	var rows []vtab.Row
	for {
		row, err := stream.Next(ctx.Ctx)
		if err != nil {
			return nil, err
		}
		if row == nil {
			return rows, nil
		}
		rows = append(rows, row)
	}
}

// sliceStream replays a materialized row set.
type sliceStream struct {
	rows []vtab.Row
	pos  int
}

func newSliceStream(rows []vtab.Row) *sliceStream { return &sliceStream{rows: rows} }

func (s *sliceStream) Next(ctx context.Context) (vtab.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.pos >= len(s.rows) {
		return nil, nil
	}
	row := s.rows[s.pos]
	s.pos++
	return row, nil
}

func (s *sliceStream) Close() error { return nil }

// funcStream adapts a pull closure into a vtab.RowStream.
type funcStream struct {
	next  func() (vtab.Row, error)
	close func() error
}

func newFuncStream(next func() (vtab.Row, error), close func() error) *funcStream {
	return &funcStream{next: next, close: close}
}

func (f *funcStream) Next(ctx context.Context) (vtab.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return f.next()
}

func (f *funcStream) Close() error {
	if f.close == nil {
		return nil
	}
	return f.close()
}
