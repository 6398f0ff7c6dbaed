package types

import "strings"

// Collation is a total order on text values (spec §3).
type Collation struct {
	Name    string
	Compare func(a, b string) int
}

// Built-in collations (spec §3).
var (
	CollationBinary = Collation{Name: "binary", Compare: func(a, b string) int { return strings.Compare(a, b) }}

	CollationNoCase = Collation{Name: "nocase", Compare: func(a, b string) int {
		return strings.Compare(strings.ToLower(a), strings.ToLower(b))
	}}

	CollationRTrim = Collation{Name: "rtrim", Compare: func(a, b string) int {
		return strings.Compare(strings.TrimRight(a, " \t\n\r"), strings.TrimRight(b, " \t\n\r"))
	}}
)

// CollationRegistry resolves collations by name; the Schema Catalog embeds one so
// user-registered collations (spec §4.2) participate alongside the built-ins.
type CollationRegistry struct {
	byName map[string]Collation
}

func NewCollationRegistry() *CollationRegistry {
	r := &CollationRegistry{byName: make(map[string]Collation)}
	r.Register(CollationBinary)
	r.Register(CollationNoCase)
	r.Register(CollationRTrim)
	return r
}

func (r *CollationRegistry) Register(c Collation) { r.byName[c.Name] = c }

func (r *CollationRegistry) Lookup(name string) (Collation, bool) {
	c, ok := r.byName[name]
	return c, ok
}
