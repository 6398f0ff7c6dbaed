// Package txn implements the Transaction Coordinator (spec §4.8): the
// autocommit wrapper and savepoint stack that sits above one or more
// vtab.Connections, generalizing a single statement's writes into either an
// implicit begin/commit pair or participation in an explicit multi-
// statement transaction spanning however many tables it touches.
//
// Grounded on the teacher's database.RunDDLs (database/database.go), which
// opens one *sql.Tx, execs a batch of DDL statements against it, and
// rollbacks-and-rethrows on the first error; here that single-connection
// pattern generalizes to N lazily-opened vtab.Connections (one per table
// touched this transaction) committed/rolled back together.
package txn

import (
	"context"
	"sync"

	"github.com/Digithought/quereus-sub006/errs"
	"github.com/Digithought/quereus-sub006/vtab"
)

// TableOpener resolves a schema-qualified table name to its live
// vtab.Table, mirroring runtime.TableProvider's shape structurally (txn
// must not import runtime — engine wires the same concrete provider to
// both via duck typing).
type TableOpener interface {
	OpenTable(ctx context.Context, schemaName, tableName string) (vtab.Table, error)
}

type tableKey struct{ schema, table string }

// Coordinator is the per-database-handle transaction state: which
// connections are open for the current transaction (if any) and the
// currently nested savepoint names, outermost first (spec §3 Lifecycle).
type Coordinator struct {
	mu     sync.Mutex
	opener TableOpener

	active     bool
	conns      map[tableKey]vtab.Connection
	savepoints []string
}

func NewCoordinator(opener TableOpener) *Coordinator {
	return &Coordinator{opener: opener, conns: make(map[tableKey]vtab.Connection)}
}

// InTransaction reports whether an explicit transaction is currently open.
func (c *Coordinator) InTransaction() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Begin opens an explicit transaction (spec §6 "BEGIN"). It is an error to
// begin while one is already open — nested BEGIN is expressed through
// savepoints, not through Begin itself.
func (c *Coordinator) Begin(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active {
		return errs.New(errs.KindMisuse, "a transaction is already open")
	}
	c.active = true
	c.savepoints = nil
	return nil
}

// Commit commits every connection touched since Begin and clears
// transaction state regardless of outcome. Connections are kept in a map, so
// the order in which tables are committed is not defined
// (spec §4.7 invariant 7: a failed commit must not leave readers able to
// observe a partial transaction on the table whose commit failed — tables
// already committed before the failure remain committed, an accepted
// limitation for a single-process engine with no cross-table two-phase
// commit; see DESIGN.md).
func (c *Coordinator) Commit(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active {
		return errs.New(errs.KindMisuse, "no transaction is open")
	}
	defer c.resetLocked()
	for _, conn := range c.conns {
		if err := conn.Commit(ctx); err != nil {
			return errs.Wrap(errs.KindVirtualTable, err, "commit failed")
		}
	}
	return nil
}

// Rollback discards every connection touched since Begin (spec §6
// "ROLLBACK").
func (c *Coordinator) Rollback(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active {
		return errs.New(errs.KindMisuse, "no transaction is open")
	}
	defer c.resetLocked()
	var first error
	for _, conn := range c.conns {
		if err := conn.Rollback(ctx); err != nil && first == nil {
			first = err
		}
	}
	if first != nil {
		return errs.Wrap(errs.KindVirtualTable, first, "rollback failed")
	}
	return nil
}

func (c *Coordinator) resetLocked() {
	c.active = false
	c.conns = make(map[tableKey]vtab.Connection)
	c.savepoints = nil
}

// Savepoint pushes a new named savepoint on every connection touched so
// far (spec §6 "SAVEPOINT name"); connections first touched afterward
// replay the full savepoint stack when they open, so a later
// RollbackToSavepoint behaves consistently regardless of which tables had
// been touched when the savepoint was taken.
func (c *Coordinator) Savepoint(ctx context.Context, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active {
		return errs.New(errs.KindMisuse, "no transaction is open")
	}
	for _, conn := range c.conns {
		if err := conn.CreateSavepoint(ctx, name); err != nil {
			return errs.Wrap(errs.KindVirtualTable, err, "savepoint %q failed", name)
		}
	}
	c.savepoints = append(c.savepoints, name)
	return nil
}

func (c *Coordinator) Release(ctx context.Context, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	idx, err := c.savepointIndexLocked(name)
	if err != nil {
		return err
	}
	for _, conn := range c.conns {
		if err := conn.ReleaseSavepoint(ctx, name); err != nil {
			return errs.Wrap(errs.KindVirtualTable, err, "release savepoint %q failed", name)
		}
	}
	c.savepoints = c.savepoints[:idx]
	return nil
}

func (c *Coordinator) RollbackTo(ctx context.Context, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	idx, err := c.savepointIndexLocked(name)
	if err != nil {
		return err
	}
	for _, conn := range c.conns {
		if err := conn.RollbackToSavepoint(ctx, name); err != nil {
			return errs.Wrap(errs.KindVirtualTable, err, "rollback to savepoint %q failed", name)
		}
	}
	c.savepoints = c.savepoints[:idx]
	return nil
}

func (c *Coordinator) savepointIndexLocked(name string) (int, error) {
	for i, n := range c.savepoints {
		if n == name {
			return i, nil
		}
	}
	return -1, errs.New(errs.KindMisuse, "no such savepoint %q", name)
}

// ConnectionFor returns the connection for (schemaName, tableName) within
// the current transaction, opening and begin-ing it (replaying the
// savepoint stack) the first time this table is touched. Outside an
// explicit transaction it still returns a connection scoped to one
// caller-managed autocommit unit (see WithAutocommit).
func (c *Coordinator) ConnectionFor(ctx context.Context, schemaName, tableName string) (vtab.Connection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectionForLocked(ctx, schemaName, tableName)
}

func (c *Coordinator) connectionForLocked(ctx context.Context, schemaName, tableName string) (vtab.Connection, error) {
	key := tableKey{schemaName, tableName}
	if conn, ok := c.conns[key]; ok {
		return conn, nil
	}
	table, err := c.opener.OpenTable(ctx, schemaName, tableName)
	if err != nil {
		return nil, err
	}
	conn, err := table.CreateConnection(ctx)
	if err != nil {
		return nil, err
	}
	if err := conn.Begin(ctx); err != nil {
		return nil, err
	}
	for _, name := range c.savepoints {
		if err := conn.CreateSavepoint(ctx, name); err != nil {
			return nil, err
		}
	}
	c.conns[key] = conn
	return conn, nil
}

// WithAutocommit runs fn against a connection for (schemaName, tableName):
// if a transaction is already open, fn participates in it and is left for
// the eventual explicit Commit/Rollback; otherwise a one-statement
// transaction is begun, fn runs, and the result is committed or rolled
// back immediately (spec §4.8 "autocommit wraps a single statement with
// begin/commit").
func (c *Coordinator) WithAutocommit(ctx context.Context, schemaName, tableName string, fn func(vtab.Connection) error) error {
	c.mu.Lock()
	if c.active {
		conn, err := c.connectionForLocked(ctx, schemaName, tableName)
		c.mu.Unlock()
		if err != nil {
			return err
		}
		return fn(conn)
	}
	c.mu.Unlock()

	if err := c.Begin(ctx); err != nil {
		return err
	}
	conn, err := c.ConnectionFor(ctx, schemaName, tableName)
	if err != nil {
		c.Rollback(ctx)
		return err
	}
	if err := fn(conn); err != nil {
		c.Rollback(ctx)
		return err
	}
	return c.Commit(ctx)
}
