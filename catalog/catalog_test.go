package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Digithought/quereus-sub006/errs"
	"github.com/Digithought/quereus-sub006/types"
)

func TestRegisterAndLookupTable(t *testing.T) {
	c := New()
	c.RegisterTable(&TableSchema{Name: "users", SchemaName: "main", Columns: []ColumnDef{{Name: "id"}}})

	tbl, err := c.LookupTable("", "users")
	assert.NoError(t, err)
	assert.Equal(t, "users", tbl.Name)
}

func TestLookupMissingTableIsSchemaMissing(t *testing.T) {
	c := New()
	_, err := c.LookupTable("", "nope")
	assert.True(t, errs.Is(err, errs.KindSchemaMissing))
}

func TestSearchPathOrdering(t *testing.T) {
	c := New()
	c.RegisterTable(&TableSchema{Name: "t", SchemaName: "alt"})
	c.SetSearchPath([]string{"alt", "main"})

	tbl, err := c.LookupTable("", "t")
	assert.NoError(t, err)
	assert.Equal(t, "alt", tbl.SchemaName)
}

func TestEffectivePrimaryKeyFallsBackToAllColumns(t *testing.T) {
	tbl := &TableSchema{Columns: []ColumnDef{{Name: "a"}, {Name: "b"}}}
	assert.Equal(t, []string{"a", "b"}, tbl.EffectivePrimaryKey())

	tbl.PrimaryKey = []string{"a"}
	assert.Equal(t, []string{"a"}, tbl.EffectivePrimaryKey())
}

func TestNotifierInvalidatesOnMatchingDependency(t *testing.T) {
	c := New()
	deps := NewDependencySet()
	deps.Add(EventTable, "main.users")

	var invalidated bool
	unsub := c.Subscribe(&Listener{
		Dependencies: deps,
		Notify:       func(ChangeEvent) { invalidated = true },
	})
	defer unsub()

	c.RegisterTable(&TableSchema{Name: "orders", SchemaName: "main"})
	assert.False(t, invalidated, "unrelated table should not invalidate")

	c.RegisterTable(&TableSchema{Name: "users", SchemaName: "main"})
	assert.True(t, invalidated)
}

func TestUnsubscribeStopsNotifications(t *testing.T) {
	c := New()
	deps := NewDependencySet()
	deps.Add(EventTable, "main.users")
	count := 0
	unsub := c.Subscribe(&Listener{Dependencies: deps, Notify: func(ChangeEvent) { count++ }})
	unsub()

	c.RegisterTable(&TableSchema{Name: "users", SchemaName: "main"})
	assert.Equal(t, 0, count)
}

func TestCollationRegistration(t *testing.T) {
	c := New()
	_, ok := c.LookupCollation("binary")
	assert.True(t, ok)

	custom := types.Collation{Name: "reverse", Compare: func(a, b string) int { return 0 }}
	c.RegisterCollation(custom)
	got, ok := c.LookupCollation("reverse")
	assert.True(t, ok)
	assert.Equal(t, "reverse", got.Name)
}

func TestValidateExpressionSyntaxRejectsGarbage(t *testing.T) {
	err := ValidateExpressionSyntax("this is not ( sql")
	assert.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindParse))
}

func TestValidateExpressionSyntaxAcceptsValid(t *testing.T) {
	assert.NoError(t, ValidateExpressionSyntax("age >= 0"))
}

func TestValidateWindowFrameBoundAcceptsIntegerLiteral(t *testing.T) {
	n, err := ValidateWindowFrameBound("3")
	assert.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestValidateWindowFrameBoundRejectsExpression(t *testing.T) {
	_, err := ValidateWindowFrameBound("1 + 2")
	assert.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindUnsupported))
}
