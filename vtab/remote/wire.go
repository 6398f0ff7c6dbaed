// Package remote is a second non-default vtab.Module, demonstrating the
// Virtual-Table Contract (spec §4.6) works for an out-of-process data
// source over gRPC, not just memtable's in-memory one or vtab/sqlbridge's
// database/sql one.
//
// Grounded on the teacher's driver package's single-Database-dispatching-
// across-backends shape, generalized the same way vtab/sqlbridge
// generalizes it, but with a network RPC backend instead of a SQL one; the
// wire messages use google.golang.org/protobuf's pre-generated
// types/known/structpb (Struct/ListValue/Value) rather than a hand-rolled
// .proto schema, since this module has no build step that runs protoc.
package remote

import (
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/Digithought/quereus-sub006/errs"
	"github.com/Digithought/quereus-sub006/types"
	"github.com/Digithought/quereus-sub006/vtab"
)

// scalarToPB encodes a types.Value as a structpb.Value, the generic JSON-ish
// wire shape every row and filter parameter crosses the RPC boundary as.
// Blob/BigInt/Temporal values are carried as strings — this module proves
// the contract is pluggable over a network boundary, not that every
// physical type round-trips losslessly through a generic wire format.
func scalarToPB(v types.Value) (*structpb.Value, error) {
	switch v.Physical {
	case types.PhysicalNull:
		return structpb.NewNullValue(), nil
	case types.PhysicalInteger:
		return structpb.NewNumberValue(float64(v.Int)), nil
	case types.PhysicalBigInt:
		return structpb.NewStringValue(v.Big.String()), nil
	case types.PhysicalReal:
		return structpb.NewNumberValue(v.Real), nil
	case types.PhysicalBoolean:
		return structpb.NewBoolValue(v.Bool), nil
	case types.PhysicalText, types.PhysicalTemporal:
		return structpb.NewStringValue(v.Text), nil
	case types.PhysicalBlob:
		return structpb.NewStringValue(string(v.Blob)), nil
	default:
		return structpb.NewStringValue(v.String()), nil
	}
}

// pbToScalar decodes a wire Value back into a types.Value typed according
// to physical, the inverse of scalarToPB.
func pbToScalar(v *structpb.Value, physical types.PhysicalType) (types.Value, error) {
	if v == nil || v.GetKind() == nil {
		return types.Null, nil
	}
	switch k := v.GetKind().(type) {
	case *structpb.Value_NullValue:
		return types.Null, nil
	case *structpb.Value_NumberValue:
		if physical == types.PhysicalReal {
			return types.Real(k.NumberValue), nil
		}
		return types.Int(int64(k.NumberValue)), nil
	case *structpb.Value_BoolValue:
		return types.Bool(k.BoolValue), nil
	case *structpb.Value_StringValue:
		if physical == types.PhysicalBlob {
			return types.Blob([]byte(k.StringValue)), nil
		}
		return types.Text(k.StringValue), nil
	default:
		return types.Value{}, errs.New(errs.KindVirtualTable, "remote: unsupported wire value kind %T", k)
	}
}

// rowToPB encodes a vtab.Row as an ordered ListValue (spec §3 "Row is an
// ordered sequence of values").
func rowToPB(row vtab.Row) (*structpb.ListValue, error) {
	if row == nil {
		return nil, nil
	}
	lv := &structpb.ListValue{Values: make([]*structpb.Value, len(row))}
	for i, v := range row {
		pv, err := scalarToPB(v)
		if err != nil {
			return nil, err
		}
		lv.Values[i] = pv
	}
	return lv, nil
}

// pbToRow decodes a wire ListValue into a vtab.Row, typing each column per
// cols' declared physical type.
func pbToRow(lv *structpb.ListValue, cols []vtab.ColumnSpec) (vtab.Row, error) {
	if lv == nil {
		return nil, nil
	}
	if len(lv.Values) != len(cols) {
		return nil, fmt.Errorf("remote: wire row has %d values, table has %d columns", len(lv.Values), len(cols))
	}
	row := make(vtab.Row, len(cols))
	for i, c := range cols {
		v, err := pbToScalar(lv.Values[i], c.Logical.Physical)
		if err != nil {
			return nil, err
		}
		row[i] = v
	}
	return row, nil
}
