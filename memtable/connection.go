package memtable

import (
	"context"

	"github.com/Digithought/quereus-sub006/vtab"
)

// tableConnection is the per-connection handle memoryTable.CreateConnection
// hands out (spec §4.6). A connection's Begin/Commit/Rollback/Savepoint
// calls drive the owning table's layer stack directly; memoryTable itself
// has no notion of "which connection" since spec §4.7 scopes the layer
// chain to the table, not the connection (a single-writer simplification
// DESIGN.md records).
type tableConnection struct {
	table *memoryTable
}

func (c *tableConnection) Begin(ctx context.Context) error {
	c.table.mu.Lock()
	defer c.table.mu.Unlock()
	c.table.beginLocked()
	return nil
}

func (c *tableConnection) Commit(ctx context.Context) error {
	c.table.mu.Lock()
	defer c.table.mu.Unlock()
	return c.table.commitLocked()
}

func (c *tableConnection) Rollback(ctx context.Context) error {
	c.table.mu.Lock()
	defer c.table.mu.Unlock()
	c.table.rollbackLocked()
	return nil
}

func (c *tableConnection) CreateSavepoint(ctx context.Context, name string) error {
	c.table.mu.Lock()
	defer c.table.mu.Unlock()
	pushSavepointLocked(c.table, name)
	return nil
}

func (c *tableConnection) ReleaseSavepoint(ctx context.Context, name string) error {
	c.table.mu.Lock()
	defer c.table.mu.Unlock()
	return releaseSavepointLocked(c.table, name)
}

func (c *tableConnection) RollbackToSavepoint(ctx context.Context, name string) error {
	c.table.mu.Lock()
	defer c.table.mu.Unlock()
	return rollbackToSavepointLocked(c.table, name)
}

var _ vtab.Connection = (*tableConnection)(nil)
