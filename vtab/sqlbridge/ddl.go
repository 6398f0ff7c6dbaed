package sqlbridge

import (
	"fmt"
	"strings"

	"github.com/Digithought/quereus-sub006/types"
	"github.com/Digithought/quereus-sub006/vtab"
)

// quoteIdent quotes a schema/table/column identifier the way each dialect
// expects, since sqlbridge composes SQL text itself rather than delegating
// to an ORM (none of this pack's other example repos carry a query builder
// dependency worth adopting here).
func quoteIdent(dialect Dialect, name string) string {
	switch dialect {
	case DialectMySQL:
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	case DialectMSSQL:
		return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
	default: // postgres, sqlite
		return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
	}
}

// columnSQLType maps a logical column type to the dialect's nearest SQL
// column type, narrow on purpose: sqlbridge exists to prove the contract is
// pluggable, not to be a full cross-dialect DDL generator.
func columnSQLType(dialect Dialect, lt types.LogicalType) string {
	switch lt.Physical {
	case types.PhysicalInteger:
		return "INTEGER"
	case types.PhysicalBigInt:
		if dialect == DialectMySQL {
			return "BIGINT"
		}
		return "BIGINT"
	case types.PhysicalReal:
		return "DOUBLE PRECISION"
	case types.PhysicalText, types.PhysicalTemporal, types.PhysicalJSON:
		if dialect == DialectMSSQL {
			return "NVARCHAR(MAX)"
		}
		return "TEXT"
	case types.PhysicalBlob:
		if dialect == DialectMSSQL {
			return "VARBINARY(MAX)"
		}
		return "BLOB"
	case types.PhysicalBoolean:
		if dialect == DialectMySQL {
			return "TINYINT"
		}
		return "BOOLEAN"
	default:
		return "TEXT"
	}
}

// buildCreateTableSQL renders a CREATE TABLE statement for spec, with a
// primary key clause when one is declared (spec §3 "primary key... ordered
// column names").
func buildCreateTableSQL(dialect Dialect, spec vtab.TableSpec) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE %s (", quoteIdent(dialect, spec.TableName))
	for i, c := range spec.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(quoteIdent(dialect, c.Name))
		b.WriteByte(' ')
		b.WriteString(columnSQLType(dialect, c.Logical))
		if !c.Nullable {
			b.WriteString(" NOT NULL")
		}
	}
	if len(spec.PrimaryKey) > 0 {
		b.WriteString(", PRIMARY KEY (")
		for i, name := range spec.PrimaryKey {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(quoteIdent(dialect, name))
		}
		b.WriteString(")")
	}
	b.WriteString(")")
	return b.String()
}

func columnIndex(spec vtab.TableSpec, name string) int {
	for i, c := range spec.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}
