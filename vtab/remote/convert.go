package remote

import (
	"github.com/Digithought/quereus-sub006/types"
	"github.com/Digithought/quereus-sub006/vtab"
)

// logicalOf rebuilds a minimal types.LogicalType from the wire-carried
// physical tag a ConnectReply returns; remote tables don't round-trip a
// column's declared Name/constraints since a host only needs enough shape
// here to scan rows, not to re-validate DDL.
func logicalOf(physical int32) types.LogicalType {
	return types.LogicalType{Physical: types.PhysicalType(physical)}
}

func constraintsToWire(cs []vtab.Constraint) []*WireConstraint {
	out := make([]*WireConstraint, len(cs))
	for i, c := range cs {
		out[i] = &WireConstraint{Column: int32(c.Column), Op: int32(c.Op), ArgPos: int32(c.ArgPos)}
	}
	return out
}

func wireToConstraints(cs []*WireConstraint) []vtab.Constraint {
	out := make([]vtab.Constraint, len(cs))
	for i, c := range cs {
		out[i] = vtab.Constraint{Column: int(c.Column), Op: vtab.FilterOp(c.Op), ArgPos: int(c.ArgPos)}
	}
	return out
}
