// Package plan implements the immutable Plan Tree (spec §3, §4.3): algebraic
// scan/filter/project/join/aggregate/window/sort/set-op/DML/constraint-check
// nodes, each carrying a stable attribute set assigned once at construction
// and preserved across optimizer rewrites.
//
// Structurally this generalizes the teacher's schema/ast.go pattern (tagged
// struct variants behind a shared interface, unexported fields, constructor
// functions) from DDL-text holders into a live, rewritable expression/
// relation tree.
package plan

// AttrID is a statement-scoped attribute identity (spec §3, §9: "arena-
// allocated 32-bit indices into a per-statement attribute table").
// Attribute IDs are never reused within a statement and survive optimizer
// rewrites unchanged (spec invariant 1).
type AttrID uint32

// Allocator hands out fresh, monotonically increasing AttrIDs for one
// statement's plan construction. Each prepared statement owns exactly one
// Allocator for its lifetime (spec §3 Lifecycle, §9 "avoids pointer
// chasing").
type Allocator struct {
	next AttrID
	info map[AttrID]AttrInfo
}

// AttrInfo records display/debug metadata for an attribute; purely
// diagnostic (used by Dump/Explain), never semantic.
type AttrInfo struct {
	Name string
}

func NewAllocator() *Allocator {
	return &Allocator{info: make(map[AttrID]AttrInfo)}
}

// Alloc returns a fresh attribute id for a computed column.
func (a *Allocator) Alloc(name string) AttrID {
	id := a.next
	a.next++
	a.info[id] = AttrInfo{Name: name}
	return id
}

func (a *Allocator) Info(id AttrID) AttrInfo { return a.info[id] }
