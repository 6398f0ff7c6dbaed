// Package types implements the Value & Type Model (spec §3, §4.1): the
// logical/physical type split, value comparison with collations, and the
// coercion rules used throughout planning and execution.
package types

import (
	"fmt"
	"math/big"
)

// PhysicalType is the storage category a Value occupies.
type PhysicalType int

const (
	PhysicalNull PhysicalType = iota
	PhysicalInteger
	PhysicalReal
	PhysicalText
	PhysicalBlob
	PhysicalBoolean
	PhysicalBigInt
	PhysicalTemporal
	PhysicalJSON
)

func (p PhysicalType) String() string {
	switch p {
	case PhysicalNull:
		return "NULL"
	case PhysicalInteger:
		return "INTEGER"
	case PhysicalReal:
		return "REAL"
	case PhysicalText:
		return "TEXT"
	case PhysicalBlob:
		return "BLOB"
	case PhysicalBoolean:
		return "BOOLEAN"
	case PhysicalBigInt:
		return "BIGINT"
	case PhysicalTemporal:
		return "TEMPORAL"
	case PhysicalJSON:
		return "JSON"
	default:
		return "UNKNOWN"
	}
}

// LogicalType is a semantic, nullability-aware, possibly custom-registered
// type attached to a column or expression result (spec §3).
type LogicalType struct {
	Name     string
	Physical PhysicalType
	Nullable bool
}

// Value is the tagged union of every runtime value the engine manipulates.
// Exactly one of the typed fields is meaningful, selected by Physical.
type Value struct {
	Physical PhysicalType
	Int      int64
	Real     float64
	Text     string
	Blob     []byte
	Bool     bool
	Big      *big.Int
	JSON     any // decoded JSON tree: map[string]any, []any, or a scalar
}

// Null is the shared NULL value.
var Null = Value{Physical: PhysicalNull}

func IsNull(v Value) bool { return v.Physical == PhysicalNull }

func Int(i int64) Value               { return Value{Physical: PhysicalInteger, Int: i} }
func Real(f float64) Value            { return Value{Physical: PhysicalReal, Real: f} }
func Text(s string) Value             { return Value{Physical: PhysicalText, Text: s} }
func Blob(b []byte) Value             { return Value{Physical: PhysicalBlob, Blob: append([]byte(nil), b...)} }
func Bool(b bool) Value               { return Value{Physical: PhysicalBoolean, Bool: b} }
func BigInt(b *big.Int) Value         { return Value{Physical: PhysicalBigInt, Big: new(big.Int).Set(b)} }
func Temporal(iso8601 string) Value   { return Value{Physical: PhysicalTemporal, Text: iso8601} }
func JSONValue(tree any) Value        { return Value{Physical: PhysicalJSON, JSON: tree} }

// Clone returns a value safe to mutate independently of v, honoring the
// copy-on-write discipline of row objects (spec §3 Lifecycle).
func (v Value) Clone() Value {
	out := v
	if v.Blob != nil {
		out.Blob = append([]byte(nil), v.Blob...)
	}
	if v.Big != nil {
		out.Big = new(big.Int).Set(v.Big)
	}
	return out
}

func (v Value) String() string {
	switch v.Physical {
	case PhysicalNull:
		return "NULL"
	case PhysicalInteger:
		return fmt.Sprintf("%d", v.Int)
	case PhysicalReal:
		return fmt.Sprintf("%v", v.Real)
	case PhysicalText, PhysicalTemporal:
		return v.Text
	case PhysicalBlob:
		return fmt.Sprintf("x'%x'", v.Blob)
	case PhysicalBoolean:
		return fmt.Sprintf("%v", v.Bool)
	case PhysicalBigInt:
		return v.Big.String()
	case PhysicalJSON:
		return fmt.Sprintf("%v", v.JSON)
	default:
		return "?"
	}
}

// TypeOf reports the physical type of v.
func TypeOf(v Value) PhysicalType { return v.Physical }

// ValidateAgainst reports whether v satisfies logicalType, or a mismatch
// description otherwise.
func ValidateAgainst(v Value, lt LogicalType) (ok bool, mismatchKind string) {
	if IsNull(v) {
		if !lt.Nullable {
			return false, "NOT NULL"
		}
		return true, ""
	}
	if v.Physical == lt.Physical {
		return true, ""
	}
	// Integer/real are mutually assignable; everything else must match exactly.
	if lt.Physical == PhysicalReal && v.Physical == PhysicalInteger {
		return true, ""
	}
	if lt.Physical == PhysicalInteger && v.Physical == PhysicalReal {
		return true, ""
	}
	return false, fmt.Sprintf("expected %s, got %s", lt.Physical, v.Physical)
}
