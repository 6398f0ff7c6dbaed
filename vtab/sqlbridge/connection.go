package sqlbridge

import (
	"context"
	"fmt"

	"github.com/Digithought/quereus-sub006/errs"
)

// sqlConnection is sqlbridge's vtab.Connection: it opens the *sql.Tx that
// sqlTable.executor() picks up for every subsequent Query/Update, and issues
// the raw-SQL savepoint statements each dialect accepts since database/sql
// has no savepoint primitive of its own (spec §4.6 "per-transaction
// isolation unit"). Exactly one connection drives a table within a
// transaction at a time (per txn.Coordinator), the same assumption
// memoryTable's single txStack makes.
type sqlConnection struct {
	table *sqlTable
}

func (c *sqlConnection) Begin(ctx context.Context) error {
	c.table.mu.Lock()
	defer c.table.mu.Unlock()
	if c.table.tx != nil {
		return errs.New(errs.KindMisuse, "sqlbridge: table already has an open transaction")
	}
	tx, err := c.table.db.BeginTx(ctx, nil)
	if err != nil {
		return mapError(c.table.dialect, err)
	}
	c.table.tx = tx
	return nil
}

func (c *sqlConnection) Commit(ctx context.Context) error {
	c.table.mu.Lock()
	tx := c.table.tx
	c.table.tx = nil
	c.table.mu.Unlock()
	if tx == nil {
		return errs.New(errs.KindMisuse, "sqlbridge: no open transaction")
	}
	if err := tx.Commit(); err != nil {
		return mapError(c.table.dialect, err)
	}
	return nil
}

func (c *sqlConnection) Rollback(ctx context.Context) error {
	c.table.mu.Lock()
	tx := c.table.tx
	c.table.tx = nil
	c.table.mu.Unlock()
	if tx == nil {
		return errs.New(errs.KindMisuse, "sqlbridge: no open transaction")
	}
	if err := tx.Rollback(); err != nil {
		return mapError(c.table.dialect, err)
	}
	return nil
}

func (c *sqlConnection) exec(ctx context.Context, stmt string) error {
	if _, err := c.table.executor().ExecContext(ctx, stmt); err != nil {
		return mapError(c.table.dialect, err)
	}
	return nil
}

// CreateSavepoint issues SAVEPOINT (SAVE TRANSACTION on MSSQL); SQLite,
// MySQL, and Postgres all accept the standard SQL form.
func (c *sqlConnection) CreateSavepoint(ctx context.Context, name string) error {
	if c.table.dialect == DialectMSSQL {
		return c.exec(ctx, fmt.Sprintf("SAVE TRANSACTION %s", name))
	}
	return c.exec(ctx, fmt.Sprintf("SAVEPOINT %s", name))
}

// ReleaseSavepoint has no MSSQL equivalent (SAVE TRANSACTION has no release
// statement — it is simply superseded by the next SAVE TRANSACTION with the
// same name or discarded at commit), so it is a no-op there.
func (c *sqlConnection) ReleaseSavepoint(ctx context.Context, name string) error {
	if c.table.dialect == DialectMSSQL {
		return nil
	}
	return c.exec(ctx, fmt.Sprintf("RELEASE SAVEPOINT %s", name))
}

func (c *sqlConnection) RollbackToSavepoint(ctx context.Context, name string) error {
	if c.table.dialect == DialectMSSQL {
		return c.exec(ctx, fmt.Sprintf("ROLLBACK TRANSACTION %s", name))
	}
	return c.exec(ctx, fmt.Sprintf("ROLLBACK TO SAVEPOINT %s", name))
}
