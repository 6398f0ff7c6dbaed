package catalog

import (
	"fmt"
	"strings"

	tidbparser "github.com/pingcap/tidb/parser"
	"github.com/pingcap/tidb/parser/ast"
	_ "github.com/pingcap/tidb/parser/test_driver" // registers literal value expression evaluation

	"github.com/Digithought/quereus-sub006/errs"
)

// ValidateWindowFrameBound enforces spec §9's restriction that window frame
// offsets are constant integer literals; richer expressions are explicitly
// unsupported. boundExpr is the raw bound text (e.g. "3" in
// "ROWS 3 PRECEDING"); anything that doesn't parse down to a single integer
// literal is rejected with errs.Unsupported.
//
// This promotes the teacher's indirect dependency on pingcap/tidb/parser
// (brought in transitively through its own SQL-parsing stack) to a direct,
// exercised one: rather than hand-roll a second expression grammar just to
// recognize "is this one integer literal", the existing full-grammar parser
// is reused and its result is constrained down to that one shape.
func ValidateWindowFrameBound(boundExpr string) (int64, error) {
	boundExpr = strings.TrimSpace(boundExpr)
	if boundExpr == "" {
		return 0, errs.New(errs.KindUnsupported, "empty window frame bound")
	}

	p := tidbparser.New()
	stmtNodes, _, err := p.Parse(fmt.Sprintf("SELECT %s", boundExpr), "", "")
	if err != nil || len(stmtNodes) != 1 {
		return 0, errs.Wrap(errs.KindUnsupported, err, "window frame bound is not a valid expression: %s", boundExpr)
	}

	sel, ok := stmtNodes[0].(*ast.SelectStmt)
	if !ok || sel.Fields == nil || len(sel.Fields.Fields) != 1 {
		return 0, errs.New(errs.KindUnsupported, "window frame bound is not a single expression: %s", boundExpr)
	}

	lit, ok := sel.Fields.Fields[0].Expr.(ast.ValueExpr)
	if !ok {
		return 0, errs.New(errs.KindUnsupported, "window frame offsets must be constant integer literals, got: %s", boundExpr)
	}
	i64, ok := lit.GetValue().(int64)
	if !ok {
		return 0, errs.New(errs.KindUnsupported, "window frame offsets must be constant integer literals, got: %s", boundExpr)
	}
	return i64, nil
}
