package catalog

import (
	"fmt"

	pgquery "github.com/pganalyze/pg_query_go/v2"

	"github.com/Digithought/quereus-sub006/errs"
)

// ValidateExpressionSyntax checks that expr is at least syntactically valid
// SQL, the way the teacher's parser/expr.go wraps a bare expression in a
// throwaway SELECT before handing it to the grammar. The core does not own
// a SQL grammar (spec §1), so this uses pg_query_go purely as a syntax
// oracle at DDL registration time — a malformed CHECK expression (spec §3)
// given to RegisterCheck is rejected here rather than surfacing a parse
// failure on first row evaluation. RegisterTable does not run it on a
// column's DEFAULT text.
func ValidateExpressionSyntax(expr string) error {
	if expr == "" {
		return nil
	}
	wrapped := fmt.Sprintf("SELECT %s", expr)
	if _, err := pgquery.Parse(wrapped); err != nil {
		return errs.Wrap(errs.KindParse, err, "invalid expression syntax: %s", expr)
	}
	return nil
}

// RegisterCheck validates expression syntax before attaching a CHECK
// constraint to a table, per SPEC_FULL §2's pg_query_go wiring.
func (t *TableSchema) RegisterCheck(c CheckDef) error {
	if err := ValidateExpressionSyntax(c.Expression); err != nil {
		return err
	}
	t.Checks = append(t.Checks, c)
	return nil
}
