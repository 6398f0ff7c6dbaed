package types

import (
	"encoding/json"
	"math/big"
	"reflect"
	"strconv"
	"time"
)

// Ordering is the three-valued result of Compare; NULL participation yields
// Incomparable rather than a sign (spec §4.1).
type Ordering int

const (
	Less Ordering = -1
	Equal Ordering = 0
	Greater Ordering = 1
	Incomparable Ordering = 2
)

// NullOrder controls where NULL sorts relative to non-NULL values when a
// caller needs a total order (e.g. a Sort plan node), since Compare itself
// reports NULL as incomparable.
type NullOrder int

const (
	NullsFirst NullOrder = iota
	NullsLast
)

// Compare implements the coercion-aware comparison contract of spec §4.1.
// collation, if non-nil, governs text-to-text comparisons; it is ignored for
// every other physical-type pairing.
func Compare(a, b Value, collation *Collation) Ordering {
	if IsNull(a) || IsNull(b) {
		return Incomparable
	}
	if a.Physical == PhysicalJSON || b.Physical == PhysicalJSON {
		if a.Physical != PhysicalJSON || b.Physical != PhysicalJSON {
			return Incomparable
		}
		if jsonEqual(a.JSON, b.JSON) {
			return Equal
		}
		return Incomparable
	}
	if isNumeric(a.Physical) && isNumeric(b.Physical) {
		return compareNumeric(a, b)
	}
	if a.Physical == PhysicalText && isNumeric(b.Physical) {
		return compareTextNumeric(a, b, true)
	}
	if isNumeric(a.Physical) && b.Physical == PhysicalText {
		return flip(compareTextNumeric(b, a, true))
	}
	if a.Physical == PhysicalTemporal && b.Physical == PhysicalTemporal {
		return compareTemporal(a.Text, b.Text)
	}
	if a.Physical == PhysicalBoolean && b.Physical == PhysicalBoolean {
		return compareBool(a.Bool, b.Bool)
	}
	if a.Physical == PhysicalBlob && b.Physical == PhysicalBlob {
		return compareBytes(a.Blob, b.Blob)
	}
	if a.Physical == PhysicalText && b.Physical == PhysicalText {
		cmp := strcmp
		if collation != nil {
			cmp = collation.Compare
		}
		return fromInt(cmp(a.Text, b.Text))
	}
	return Incomparable
}

func flip(o Ordering) Ordering {
	switch o {
	case Less:
		return Greater
	case Greater:
		return Less
	default:
		return o
	}
}

func isNumeric(p PhysicalType) bool {
	return p == PhysicalInteger || p == PhysicalReal || p == PhysicalBigInt
}

func compareBool(a, b bool) Ordering {
	if a == b {
		return Equal
	}
	if !a && b {
		return Less
	}
	return Greater
}

func compareBytes(a, b []byte) Ordering {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return Less
			}
			return Greater
		}
	}
	return fromInt(len(a) - len(b))
}

func strcmp(a, b string) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}

func fromInt(n int) Ordering {
	switch {
	case n < 0:
		return Less
	case n > 0:
		return Greater
	default:
		return Equal
	}
}

// compareNumeric promotes integer<->real as spec §4.1 requires; when either
// side is a BigInt, comparison is exact via big.Int/big.Float rather than
// float64, to avoid losing precision on large values.
func compareNumeric(a, b Value) Ordering {
	if a.Physical == PhysicalBigInt || b.Physical == PhysicalBigInt {
		return fromInt(asBigFloat(a).Cmp(asBigFloat(b)))
	}
	return fromInt(floatCmp(asFloat(a), asFloat(b)))
}

func asFloat(v Value) float64 {
	switch v.Physical {
	case PhysicalInteger:
		return float64(v.Int)
	case PhysicalReal:
		return v.Real
	}
	return 0
}

func asBigFloat(v Value) *big.Float {
	switch v.Physical {
	case PhysicalInteger:
		return new(big.Float).SetInt64(v.Int)
	case PhysicalReal:
		return big.NewFloat(v.Real)
	case PhysicalBigInt:
		return new(big.Float).SetInt(v.Big)
	}
	return new(big.Float)
}

func floatCmp(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// compareTextNumeric implements the "strict numeric parse, lexical
// fallback" rule of spec §4.1: numeric text parses and compares
// numerically; text that fails to parse falls back to lexical comparison
// against the numeric value's string form.
func compareTextNumeric(text, num Value, _ bool) Ordering {
	if f, err := strconv.ParseFloat(text.Text, 64); err == nil {
		return fromInt(asBigFloat(Real(f)).Cmp(asBigFloat(num)))
	}
	return fromInt(strcmp(text.Text, num.String()))
}

// compareTemporal compares ISO-8601 points on the timeline (spec §3, §4.1).
func compareTemporal(a, b string) Ordering {
	ta, aerr := parseTemporal(a)
	tb, berr := parseTemporal(b)
	if aerr != nil || berr != nil {
		return fromInt(strcmp(a, b))
	}
	switch {
	case ta.Before(tb):
		return Less
	case ta.After(tb):
		return Greater
	default:
		return Equal
	}
}

var temporalLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"15:04:05",
}

func parseTemporal(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range temporalLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		} else {
			lastErr = err
		}
	}
	return time.Time{}, lastErr
}

// jsonEqual implements canonical structural equality: object key-set
// equality, array element-wise (spec §4.1).
func jsonEqual(a, b any) bool {
	return reflect.DeepEqual(normalizeJSON(a), normalizeJSON(b))
}

func normalizeJSON(v any) any {
	// round-trip through encoding/json to normalize numeric representations
	// (e.g. 1 vs 1.0) the same way a parsed JSON document would.
	buf, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(buf, &out); err != nil {
		return v
	}
	return out
}

// OrderWithNulls extends Compare into a total order for sort purposes,
// placing NULLs per nullOrder (spec §4.1 "ordering functions place NULL
// per a caller-supplied {first|last}").
func OrderWithNulls(a, b Value, collation *Collation, nullOrder NullOrder) Ordering {
	an, bn := IsNull(a), IsNull(b)
	if an && bn {
		return Equal
	}
	if an {
		if nullOrder == NullsFirst {
			return Less
		}
		return Greater
	}
	if bn {
		if nullOrder == NullsFirst {
			return Greater
		}
		return Less
	}
	return Compare(a, b, collation)
}
