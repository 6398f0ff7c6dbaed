package plan

// NodeType distinguishes expression nodes (which produce a single scalar
// value per evaluation) from relation nodes (which produce a row stream),
// per spec §3.
type NodeType int

const (
	TypeScalar NodeType = iota
	TypeRelation
)

// Kind tags every concrete node variant named by spec §3. Dispatch on Kind
// is the Go-idiomatic stand-in for the source's dynamic-tag dispatch (spec
// §9 "Dynamic dispatch by type tag").
type Kind int

const (
	KindLiteral Kind = iota
	KindColumnRef
	KindParameter
	KindUnary
	KindBinary
	KindCast
	KindCase
	KindFunctionCall
	KindWindowCall
	KindScalarSubquery
	KindExists
	KindIn

	KindSeq
	KindFilter
	KindJoin
	KindAggregate
	KindWindow
	KindSort
	KindLimit
	KindSet
	KindCTE
	KindValues
	KindRetrieve
	KindMutationContext
	KindConstraintCheck
	KindInsert
	KindUpdate
	KindDelete
	KindReturning
	KindBlock
	KindCache
)

func (k Kind) String() string {
	names := [...]string{
		"Literal", "ColumnRef", "Parameter", "Unary", "Binary", "Cast", "Case",
		"FunctionCall", "WindowCall", "ScalarSubquery", "Exists", "In",
		"Seq", "Filter", "Join", "Aggregate", "Window", "Sort", "Limit", "Set",
		"CTE", "Values", "Retrieve", "MutationContext", "ConstraintCheck",
		"Insert", "Update", "Delete", "Returning", "Block", "Cache",
	}
	if int(k) < len(names) {
		return names[k]
	}
	return "Unknown"
}

// Bindings is the set of parameters/outer-scope column references a
// subtree captures (spec invariant 2, GLOSSARY "Bindings"). A Retrieve
// node's Bindings must enumerate every parameter/outer-column it
// references.
type Bindings struct {
	Parameters []int
	OuterRefs  []AttrID
}

func (b Bindings) Merge(other Bindings) Bindings {
	return Bindings{
		Parameters: append(append([]int(nil), b.Parameters...), other.Parameters...),
		OuterRefs:  append(append([]AttrID(nil), b.OuterRefs...), other.OuterRefs...),
	}
}

// SortKey is one ordering column plus direction/null-placement, used by
// LogicalProps.Order and the Sort node.
type SortKey struct {
	Attr       AttrID
	Descending bool
	NullsFirst bool
}

// LogicalProps carries the per-node facts the optimizer and scheduler use
// without re-deriving them: sort orders the producer already guarantees,
// whether its output is known duplicate-free, an estimated row count, and
// (for scalar subtrees and Retrieve) the bindings it captures (spec §4.3).
type LogicalProps struct {
	Order        []SortKey
	Unique       bool
	EstimatedRows int64
	Bindings     Bindings
}

// Node is the shared interface of every plan-tree element: expression and
// relation nodes alike (spec §4.3).
type Node interface {
	Kind() Kind
	NodeType() NodeType
	Attributes() []AttrID
	Children() []Node
	WithChildren(children []Node) Node
	LogicalProps() LogicalProps
}

// Expr is a scalar (expression) node; it additionally reports determinism,
// which the emitter enforces must be threaded through a mutation-context
// boundary when false inside CHECK/DEFAULT expressions (spec §4.5).
type Expr interface {
	Node
	IsDeterministic() bool
}

// Relation is a producer (relational) node: it has an output column list,
// declared key(s), and a bag-or-set flag (spec §3).
type Relation interface {
	Node
	Columns() []AttrID
	Keys() [][]AttrID
	IsSet() bool
}
