// Package runtime implements the Instruction Emitter + Scheduler (spec
// §4.5): translating an optimized plan.Node tree into a dataflow of typed
// instructions, and running that dataflow with async row streams, per-row
// context slots, and optional trace emission.
package runtime

import (
	"github.com/Digithought/quereus-sub006/plan"
	"github.com/Digithought/quereus-sub006/types"
	"github.com/Digithought/quereus-sub006/vtab"
)

// RowDescriptor maps attribute ids to their position within a row, letting
// a scalar ColumnRef resolve against whichever slot currently holds that
// attribute (spec §4.5 "Row contexts are slots... maps attribute IDs to row
// positions").
type RowDescriptor map[plan.AttrID]int

// Slot is one relational node's per-row binding: the row currently flowing
// through it, described by Descriptor. Slots nest lexically — a child
// scalar resolves a ColumnRef via the innermost enclosing Slot that
// declares that attribute (spec §4.5). Open/Close bracket a row's lifetime
// so an error or early cancellation still releases it (spec §4.5 "opened
// when a row enters, closed on all exit paths, including errors").
type Slot struct {
	Descriptor RowDescriptor
	Row        vtab.Row
	open       bool
}

func NewSlot(descriptor RowDescriptor) *Slot {
	return &Slot{Descriptor: descriptor}
}

func (s *Slot) Open(row vtab.Row) {
	s.Row = row
	s.open = true
}

func (s *Slot) Close() {
	s.Row = nil
	s.open = false
}

func (s *Slot) IsOpen() bool { return s.open }

// Value resolves attr against this slot, returning ok=false if attr isn't
// one of its columns or the slot isn't currently open.
func (s *Slot) Value(attr plan.AttrID) (types.Value, bool) {
	if !s.open {
		return types.Value{}, false
	}
	pos, ok := s.Descriptor[attr]
	if !ok || pos >= len(s.Row) {
		return types.Value{}, false
	}
	return s.Row[pos], true
}

// SlotStack is the lexically nested chain of open Slots an ExecContext
// carries while evaluating scalar expressions against a row in flight.
type SlotStack []*Slot

// Resolve walks the stack innermost-first, matching spec §4.5's "innermost
// matching slot" rule.
func (s SlotStack) Resolve(attr plan.AttrID) (types.Value, bool) {
	for i := len(s) - 1; i >= 0; i-- {
		if v, ok := s[i].Value(attr); ok {
			return v, true
		}
	}
	return types.Value{}, false
}
