package sqlbridge

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Digithought/quereus-sub006/types"
	"github.com/Digithought/quereus-sub006/vtab"
)

// rebind rewrites sqlbridge's "?"-style placeholders into lib/pq's
// positional "$1, $2, ..." syntax; every other dialect this package
// supports accepts "?" natively.
func rebind(dialect Dialect, query string) string {
	if dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// scanArg converts a types.Value into the native Go type database/sql
// drivers accept as a bind argument.
func scanArg(v types.Value) any {
	switch v.Physical {
	case types.PhysicalNull:
		return nil
	case types.PhysicalInteger, types.PhysicalBigInt:
		return v.Int
	case types.PhysicalReal:
		return v.Real
	case types.PhysicalText, types.PhysicalTemporal:
		return v.Text
	case types.PhysicalBlob:
		return v.Blob
	case types.PhysicalBoolean:
		return v.Bool
	default:
		return v.String()
	}
}

// scanInto converts a driver-returned column value back into a types.Value
// per the column's declared logical type, the inverse of scanArg.
func scanInto(col vtab.ColumnSpec, raw any) (types.Value, error) {
	if raw == nil {
		return types.Null, nil
	}
	switch col.Logical.Physical {
	case types.PhysicalInteger, types.PhysicalBigInt:
		return types.Int(toInt64(raw)), nil
	case types.PhysicalReal:
		return types.Real(toFloat64(raw)), nil
	case types.PhysicalBoolean:
		return types.Bool(toBool(raw)), nil
	case types.PhysicalBlob:
		if b, ok := raw.([]byte); ok {
			return types.Blob(b), nil
		}
		return types.Blob([]byte(fmt.Sprintf("%v", raw))), nil
	default: // text, temporal, json
		return types.Text(toString(raw)), nil
	}
}

func toInt64(raw any) int64 {
	switch v := raw.(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case []byte:
		n, _ := strconv.ParseInt(string(v), 10, 64)
		return n
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	default:
		return 0
	}
}

func toFloat64(raw any) float64 {
	switch v := raw.(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case []byte:
		f, _ := strconv.ParseFloat(string(v), 64)
		return f
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	default:
		return 0
	}
}

func toBool(raw any) bool {
	switch v := raw.(type) {
	case bool:
		return v
	case int64:
		return v != 0
	case []byte:
		return string(v) == "1" || strings.EqualFold(string(v), "true")
	default:
		return false
	}
}

func toString(raw any) string {
	switch v := raw.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
