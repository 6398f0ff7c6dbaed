package sqlbridge

import (
	"context"
	"database/sql"

	"github.com/Digithought/quereus-sub006/vtab"
)

// sqlRowStream adapts *sql.Rows to vtab.RowStream (spec §4.6), converting
// each driver row back into a vtab.Row via scanInto.
type sqlRowStream struct {
	rows    *sql.Rows
	columns []vtab.ColumnSpec
	dialect Dialect
}

func (s *sqlRowStream) Next(ctx context.Context) (vtab.Row, error) {
	if !s.rows.Next() {
		if err := s.rows.Err(); err != nil {
			return nil, mapError(s.dialect, err)
		}
		return nil, nil
	}
	raw := make([]any, len(s.columns))
	ptrs := make([]any, len(s.columns))
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	if err := s.rows.Scan(ptrs...); err != nil {
		return nil, err
	}
	row := make(vtab.Row, len(s.columns))
	for i, c := range s.columns {
		v, err := scanInto(c, raw[i])
		if err != nil {
			return nil, err
		}
		row[i] = v
	}
	return row, nil
}

func (s *sqlRowStream) Close() error {
	return s.rows.Close()
}

var _ vtab.RowStream = (*sqlRowStream)(nil)
