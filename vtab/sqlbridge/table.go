package sqlbridge

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	"github.com/Digithought/quereus-sub006/errs"
	"github.com/Digithought/quereus-sub006/types"
	"github.com/Digithought/quereus-sub006/vtab"
)

// sqlExecutor is the *sql.DB/*sql.Tx slice of database/sql a statement
// needs; sqlTable dispatches through it so a write lands in whichever
// connection's transaction is currently open, mirroring memoryTable's
// topLayer() (the single-active-connection-at-a-time model spec §4.6
// assumes: exactly one vtab.Connection drives a table within one
// transaction, per txn.Coordinator).
type sqlExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// sqlTable is the external-database counterpart to memtable's memoryTable:
// every read and write goes straight through to the backend rather than
// through an in-process layer chain (spec §4.6 "modules own their own
// storage/consistency model").
type sqlTable struct {
	db      *sql.DB
	dialect Dialect
	spec    vtab.TableSpec

	mu sync.Mutex
	tx *sql.Tx // non-nil while a Connection has Begin'd a transaction
}

func (t *sqlTable) executor() sqlExecutor {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.tx != nil {
		return t.tx
	}
	return t.db
}

// buildWhere renders filter's equality constraints as a parameterized WHERE
// clause; sqlbridge only pushes down OpEQ (see GetBestAccessPlan), so this
// never needs to render any other operator.
func (t *sqlTable) buildWhere(filter vtab.FilterInfo) (string, []any) {
	if len(filter.Constraints) == 0 {
		return "", nil
	}
	var clauses []string
	var args []any
	for _, c := range filter.Constraints {
		if c.Op != vtab.OpEQ || c.Column < 0 || c.Column >= len(t.spec.Columns) {
			continue
		}
		clauses = append(clauses, fmt.Sprintf("%s = ?", quoteIdent(t.dialect, t.spec.Columns[c.Column].Name)))
		args = append(args, scanArg(filter.Params[c.ArgPos]))
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// Query runs a SELECT against the external table, pushing down whatever
// equality constraints buildWhere renders and leaving the rest (sort,
// limit, further filtering) to the optimizer's residual Filter/Sort/Limit
// nodes above the Retrieve (spec §4.4).
func (t *sqlTable) Query(ctx context.Context, filter vtab.FilterInfo) (vtab.RowStream, error) {
	cols := make([]string, len(t.spec.Columns))
	for i, c := range t.spec.Columns {
		cols[i] = quoteIdent(t.dialect, c.Name)
	}
	where, args := t.buildWhere(filter)
	query := fmt.Sprintf("SELECT %s FROM %s%s", strings.Join(cols, ", "), quoteIdent(t.dialect, t.spec.TableName), where)
	query = rebind(t.dialect, query)

	rows, err := t.executor().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(t.dialect, err)
	}
	return &sqlRowStream{rows: rows, columns: t.spec.Columns, dialect: t.dialect}, nil
}

// Update issues an INSERT/UPDATE/DELETE for args (spec §4.6 Table.Update).
// Conflict resolution beyond ConflictAbort is not implemented for this
// external-backend demo (see DESIGN.md): a dialect-portable upsert would
// need per-dialect syntax (ON DUPLICATE KEY UPDATE, ON CONFLICT, MERGE)
// that sqlbridge does not attempt to unify.
func (t *sqlTable) Update(ctx context.Context, args vtab.UpdateArgs) (vtab.UpdateResult, error) {
	switch args.Op {
	case vtab.UpdateInsert:
		return t.insert(ctx, args)
	case vtab.UpdateUpdate:
		return t.update(ctx, args)
	case vtab.UpdateDelete:
		return t.delete(ctx, args)
	default:
		return vtab.UpdateResult{}, errs.New(errs.KindInternal, "sqlbridge: unknown update op %d", args.Op)
	}
}

func (t *sqlTable) insert(ctx context.Context, args vtab.UpdateArgs) (vtab.UpdateResult, error) {
	cols := make([]string, len(t.spec.Columns))
	placeholders := make([]string, len(t.spec.Columns))
	vals := make([]any, len(t.spec.Columns))
	for i, c := range t.spec.Columns {
		cols[i] = quoteIdent(t.dialect, c.Name)
		placeholders[i] = "?"
		vals[i] = scanArg(args.NewValues[i])
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(t.dialect, t.spec.TableName), strings.Join(cols, ", "), strings.Join(placeholders, ", "))
	if _, err := t.executor().ExecContext(ctx, rebind(t.dialect, query), vals...); err != nil {
		return vtab.UpdateResult{}, mapError(t.dialect, err)
	}
	return vtab.UpdateResult{Row: args.NewValues}, nil
}

func (t *sqlTable) update(ctx context.Context, args vtab.UpdateArgs) (vtab.UpdateResult, error) {
	var sets []string
	var vals []any
	for i, c := range t.spec.Columns {
		sets = append(sets, fmt.Sprintf("%s = ?", quoteIdent(t.dialect, c.Name)))
		vals = append(vals, scanArg(args.NewValues[i]))
	}
	where, whereArgs := t.keyWhere(args.OldKey)
	vals = append(vals, whereArgs...)
	query := fmt.Sprintf("UPDATE %s SET %s%s", quoteIdent(t.dialect, t.spec.TableName), strings.Join(sets, ", "), where)
	if _, err := t.executor().ExecContext(ctx, rebind(t.dialect, query), vals...); err != nil {
		return vtab.UpdateResult{}, mapError(t.dialect, err)
	}
	return vtab.UpdateResult{Row: args.NewValues}, nil
}

func (t *sqlTable) delete(ctx context.Context, args vtab.UpdateArgs) (vtab.UpdateResult, error) {
	where, whereArgs := t.keyWhere(args.OldKey)
	query := fmt.Sprintf("DELETE FROM %s%s", quoteIdent(t.dialect, t.spec.TableName), where)
	if _, err := t.executor().ExecContext(ctx, rebind(t.dialect, query), whereArgs...); err != nil {
		return vtab.UpdateResult{}, mapError(t.dialect, err)
	}
	return vtab.UpdateResult{Deleted: true, DeletedKey: args.OldKey}, nil
}

// keyWhere renders a WHERE clause matching spec.PrimaryKey against key's
// values, in primary-key column order (spec §4.6 "OldKey... identifies the
// row to update/delete").
func (t *sqlTable) keyWhere(key vtab.Row) (string, []any) {
	pk := t.spec.PrimaryKey
	if len(pk) == 0 {
		pk = make([]string, len(t.spec.Columns))
		for i, c := range t.spec.Columns {
			pk[i] = c.Name
		}
	}
	var clauses []string
	var args []any
	for i, name := range pk {
		clauses = append(clauses, fmt.Sprintf("%s = ?", quoteIdent(t.dialect, name)))
		args = append(args, scanArg(key[i]))
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (t *sqlTable) CreateConnection(ctx context.Context) (vtab.Connection, error) {
	return &sqlConnection{table: t}, nil
}

func (t *sqlTable) Disconnect(ctx context.Context) error { return nil }

// GetBestAccessPlan only ever accepts equality constraints (spec §4.6,
// §9's partial-pushdown contract resolution in DESIGN.md): sqlbridge's
// SELECT builder has no general predicate compiler, so every other operator
// is left for the optimizer's residual Filter node to evaluate in-process.
func (t *sqlTable) GetBestAccessPlan(filter vtab.FilterInfo) vtab.AccessPlan {
	plan := vtab.AccessPlan{EstimatedRows: -1}
	for i, c := range filter.Constraints {
		plan.Predicates = append(plan.Predicates, vtab.PredicateSupport{
			ConstraintIndex: i,
			Accepted:        c.Op == vtab.OpEQ,
		})
	}
	return plan
}

var (
	_ vtab.Table         = (*sqlTable)(nil)
	_ vtab.AccessPlanner = (*sqlTable)(nil)
)
