package memtable

import (
	"context"
	"sort"

	"github.com/Digithought/quereus-sub006/types"
	"github.com/Digithought/quereus-sub006/vtab"
)

// applyConstraints is the residual predicate pass: every Constraint in
// filter is honored here regardless of whether a caller's AccessPlanner
// reported it as pushed down, so a correctness bug in access-plan reporting
// can never silently drop rows (spec §6's FilterInfo is advisory to the
// module, not a promise the module must exploit for pushdown to be
// correct).
func applyConstraints(rows []vtab.Row, cols []vtab.ColumnSpec, filter vtab.FilterInfo) []vtab.Row {
	if len(filter.Constraints) == 0 {
		return rows
	}
	out := rows[:0]
	for _, row := range rows {
		if rowMatches(row, filter) {
			out = append(out, row)
		}
	}
	return out
}

func rowMatches(row vtab.Row, filter vtab.FilterInfo) bool {
	for _, c := range filter.Constraints {
		if c.Column < 0 || c.Column >= len(row) {
			continue
		}
		v := row[c.Column]
		switch c.Op {
		case vtab.OpISNULL:
			if !types.IsNull(v) {
				return false
			}
			continue
		case vtab.OpISNOTNULL:
			if types.IsNull(v) {
				return false
			}
			continue
		}
		if c.ArgPos < 0 || c.ArgPos >= len(filter.Params) {
			continue
		}
		arg := filter.Params[c.ArgPos]
		ord := types.Compare(v, arg, nil)
		switch c.Op {
		case vtab.OpEQ:
			if ord != types.Equal {
				return false
			}
		case vtab.OpLT:
			if ord != types.Less {
				return false
			}
		case vtab.OpLE:
			if ord != types.Less && ord != types.Equal {
				return false
			}
		case vtab.OpGT:
			if ord != types.Greater {
				return false
			}
		case vtab.OpGE:
			if ord != types.Greater && ord != types.Equal {
				return false
			}
		}
	}
	return true
}

func applyOrderBy(rows []vtab.Row, order []vtab.OrderSpec) []vtab.Row {
	if len(order) == 0 {
		return rows
	}
	sort.SliceStable(rows, func(i, j int) bool {
		for _, o := range order {
			if o.Column < 0 || o.Column >= len(rows[i]) {
				continue
			}
			ord := types.OrderWithNulls(rows[i][o.Column], rows[j][o.Column], nil, types.NullsLast)
			if o.Descending {
				ord = flipOrder(ord)
			}
			switch ord {
			case types.Less:
				return true
			case types.Greater:
				return false
			}
		}
		return false
	})
	return rows
}

func flipOrder(o types.Ordering) types.Ordering {
	switch o {
	case types.Less:
		return types.Greater
	case types.Greater:
		return types.Less
	default:
		return o
	}
}

func applyLimitOffset(rows []vtab.Row, limit, offset *int64) []vtab.Row {
	if offset != nil {
		o := int(*offset)
		if o >= len(rows) {
			return nil
		}
		if o > 0 {
			rows = rows[o:]
		}
	}
	if limit != nil {
		l := int(*limit)
		if l < len(rows) {
			rows = rows[:l]
		}
	}
	return rows
}

func applyProjection(rows []vtab.Row, projection []int) []vtab.Row {
	if projection == nil {
		return rows
	}
	out := make([]vtab.Row, len(rows))
	for i, row := range rows {
		projected := make(vtab.Row, len(projection))
		for j, c := range projection {
			if c >= 0 && c < len(row) {
				projected[j] = row[c]
			}
		}
		out[i] = projected
	}
	return out
}

// rowSliceStream replays a materialized, already-filtered row set.
type rowSliceStream struct {
	rows []vtab.Row
	pos  int
}

func newRowSliceStream(rows []vtab.Row) *rowSliceStream { return &rowSliceStream{rows: rows} }

func (s *rowSliceStream) Next(ctx context.Context) (vtab.Row, error) {
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

func (s *rowSliceStream) Close() error { return nil }
