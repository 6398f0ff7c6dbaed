package engine

import (
	"github.com/Digithought/quereus-sub006/catalog"
	"github.com/Digithought/quereus-sub006/plan"
)

// collectDependencies walks root and records every table and function it
// references, the dependency set a prepared statement registers with the
// catalog's change notifier (spec §4.2 "Subscribers ... identify
// themselves with a dependency set computed during planning").
func collectDependencies(root plan.Node) catalog.DependencySet {
	deps := catalog.NewDependencySet()
	walkDependencies(root, deps)
	return deps
}

func walkDependencies(n plan.Node, deps catalog.DependencySet) {
	if n == nil {
		return
	}
	switch n.Kind() {
	case plan.KindRetrieve:
		r := n.(*plan.Retrieve)
		deps.Add(catalog.EventTable, r.SchemaName+"."+r.TableName)
	case plan.KindFunctionCall:
		f := n.(*plan.FunctionCall)
		deps.Add(catalog.EventFunction, f.Name)
	}
	for _, c := range n.Children() {
		walkDependencies(c, deps)
	}
}

// tableNames returns every distinct schema-qualified table name root's
// Retrieve nodes reference, used by Prepare to validate every referenced
// table exists before the statement is considered usable (SPEC_FULL §3
// resolving spec §8 S6's "re-preparing raises the same error until t is
// recreated").
func tableNames(root plan.Node) []struct{ Schema, Table string } {
	var out []struct{ Schema, Table string }
	var walk func(plan.Node)
	walk = func(n plan.Node) {
		if n == nil {
			return
		}
		if n.Kind() == plan.KindRetrieve {
			r := n.(*plan.Retrieve)
			out = append(out, struct{ Schema, Table string }{r.SchemaName, r.TableName})
		}
		for _, c := range n.Children() {
			walk(c)
		}
	}
	walk(root)
	return out
}
