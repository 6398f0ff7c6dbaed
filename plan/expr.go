package plan

import "github.com/Digithought/quereus-sub006/types"

// exprBase factors the Node plumbing shared by every scalar node variant,
// mirroring the teacher's unexported-field-plus-constructor shape
// (schema/ast.go) generalized to a rewritable tree.
type exprBase struct {
	attr AttrID
	kind Kind
	kids []Node
	det  bool
	props LogicalProps
}

func (e *exprBase) Kind() Kind             { return e.kind }
func (e *exprBase) NodeType() NodeType     { return TypeScalar }
func (e *exprBase) Attributes() []AttrID   { return []AttrID{e.attr} }
func (e *exprBase) Children() []Node       { return e.kids }
func (e *exprBase) IsDeterministic() bool  { return e.det }
func (e *exprBase) LogicalProps() LogicalProps { return e.props }

// Literal is a constant value (spec §3).
type Literal struct {
	exprBase
	Value types.Value
}

func NewLiteral(alloc *Allocator, v types.Value) *Literal {
	return &Literal{exprBase: exprBase{attr: alloc.Alloc("literal"), kind: KindLiteral, det: true}, Value: v}
}

func (l *Literal) WithChildren(children []Node) Node {
	if len(children) != 0 {
		panic("Literal takes no children")
	}
	clone := *l
	return &clone
}

// ColumnRef resolves to an attribute produced by an enclosing relation
// (spec §3). Refer is the attribute id being referenced; ref attr (exprBase.attr)
// is this node's own identity, which is the SAME id when the column ref is
// a pure pass-through (optimizer rewrites preserve this equivalence —
// projections re-use incoming ids, spec §4.3).
type ColumnRef struct {
	exprBase
	Refers AttrID
	Name   string
}

func NewColumnRef(refers AttrID, name string) *ColumnRef {
	return &ColumnRef{exprBase: exprBase{attr: refers, kind: KindColumnRef, det: true}, Refers: refers, Name: name}
}

func (c *ColumnRef) WithChildren(children []Node) Node {
	if len(children) != 0 {
		panic("ColumnRef takes no children")
	}
	clone := *c
	return &clone
}

// Parameter is a bound-parameter reference (spec §3, §6 statement.bind).
type Parameter struct {
	exprBase
	Key string
}

func NewParameter(alloc *Allocator, key string) *Parameter {
	p := &Parameter{exprBase: exprBase{attr: alloc.Alloc("param:" + key), kind: KindParameter, det: true}, Key: key}
	p.props.Bindings.Parameters = []int{0}
	return p
}

func (p *Parameter) WithChildren(children []Node) Node {
	if len(children) != 0 {
		panic("Parameter takes no children")
	}
	clone := *p
	return &clone
}

// Unary is a prefix operator expression (NOT, -, etc.) (spec §3).
type Unary struct {
	exprBase
	Op string
}

func NewUnary(alloc *Allocator, op string, operand Expr) *Unary {
	return &Unary{exprBase: exprBase{attr: alloc.Alloc("unary"), kind: KindUnary, kids: []Node{operand}, det: operand.IsDeterministic()}, Op: op}
}

func (u *Unary) Operand() Expr { return u.kids[0].(Expr) }

func (u *Unary) WithChildren(children []Node) Node {
	clone := *u
	clone.kids = children
	clone.det = children[0].(Expr).IsDeterministic()
	return &clone
}

// Binary is an infix operator expression (spec §3).
type Binary struct {
	exprBase
	Op string
}

func NewBinary(alloc *Allocator, op string, left, right Expr) *Binary {
	return &Binary{exprBase: exprBase{
		attr: alloc.Alloc("binary"), kind: KindBinary,
		kids: []Node{left, right},
		det:  left.IsDeterministic() && right.IsDeterministic(),
	}, Op: op}
}

func (b *Binary) Left() Expr  { return b.kids[0].(Expr) }
func (b *Binary) Right() Expr { return b.kids[1].(Expr) }

func (b *Binary) WithChildren(children []Node) Node {
	clone := *b
	clone.kids = children
	clone.det = children[0].(Expr).IsDeterministic() && children[1].(Expr).IsDeterministic()
	return &clone
}

// Cast converts operand to TargetType (spec §3).
type Cast struct {
	exprBase
	TargetType types.LogicalType
}

func NewCast(alloc *Allocator, operand Expr, target types.LogicalType) *Cast {
	return &Cast{exprBase: exprBase{attr: alloc.Alloc("cast"), kind: KindCast, kids: []Node{operand}, det: operand.IsDeterministic()}, TargetType: target}
}

func (c *Cast) Operand() Expr { return c.kids[0].(Expr) }

func (c *Cast) WithChildren(children []Node) Node {
	clone := *c
	clone.kids = children
	clone.det = children[0].(Expr).IsDeterministic()
	return &clone
}

// WhenClause is one WHEN/THEN arm of a Case expression.
type WhenClause struct {
	When Expr
	Then Expr
}

// Case is a searched or simple CASE expression (spec §3). Operand is nil
// for a searched CASE.
type Case struct {
	exprBase
	Operand Expr
	Whens   []WhenClause
	Else    Expr
}

func NewCase(alloc *Allocator, operand Expr, whens []WhenClause, elseExpr Expr) *Case {
	det := operand == nil || operand.IsDeterministic()
	kids := []Node{}
	if operand != nil {
		kids = append(kids, operand)
	}
	for _, w := range whens {
		det = det && w.When.IsDeterministic() && w.Then.IsDeterministic()
		kids = append(kids, w.When, w.Then)
	}
	if elseExpr != nil {
		det = det && elseExpr.IsDeterministic()
		kids = append(kids, elseExpr)
	}
	return &Case{exprBase: exprBase{attr: alloc.Alloc("case"), kind: KindCase, kids: kids, det: det}, Operand: operand, Whens: whens, Else: elseExpr}
}

func (c *Case) WithChildren(children []Node) Node {
	clone := *c
	i := 0
	if clone.Operand != nil {
		clone.Operand = children[i].(Expr)
		i++
	}
	newWhens := make([]WhenClause, len(clone.Whens))
	for j := range newWhens {
		newWhens[j] = WhenClause{When: children[i].(Expr), Then: children[i+1].(Expr)}
		i += 2
	}
	clone.Whens = newWhens
	if clone.Else != nil {
		clone.Else = children[i].(Expr)
	}
	clone.kids = children
	return &clone
}

// FunctionCall invokes a registered scalar or aggregate function by name
// (spec §3, §4.2).
type FunctionCall struct {
	exprBase
	Name string
}

func NewFunctionCall(alloc *Allocator, name string, deterministic bool, args []Expr) *FunctionCall {
	kids := make([]Node, len(args))
	det := deterministic
	for i, a := range args {
		kids[i] = a
		det = det && a.IsDeterministic()
	}
	return &FunctionCall{exprBase: exprBase{attr: alloc.Alloc("call:" + name), kind: KindFunctionCall, kids: kids, det: det}, Name: name}
}

func (f *FunctionCall) Args() []Expr {
	out := make([]Expr, len(f.kids))
	for i, k := range f.kids {
		out[i] = k.(Expr)
	}
	return out
}

func (f *FunctionCall) WithChildren(children []Node) Node {
	clone := *f
	clone.kids = children
	det := true
	for _, c := range children {
		det = det && c.(Expr).IsDeterministic()
	}
	clone.det = det
	return &clone
}

// WindowFrame restricts offsets to constant integer literals (spec §9).
type WindowFrame struct {
	Mode      string // "rows" | "range"
	StartOffset int64
	StartPreceding bool
	EndOffset   int64
	EndPreceding bool
	HasEnd      bool
}

// WindowCall is a window function invocation over PARTITION BY/ORDER
// BY/frame (spec §3).
type WindowCall struct {
	exprBase
	Name        string
	nArgs       int
	PartitionBy []Expr
	OrderBy     []SortKey
	Frame       *WindowFrame
}

func NewWindowCall(alloc *Allocator, name string, args []Expr, partitionBy []Expr, orderBy []SortKey, frame *WindowFrame) *WindowCall {
	kids := append(append([]Node{}, exprsToNodes(args)...), exprsToNodes(partitionBy)...)
	return &WindowCall{
		exprBase:    exprBase{attr: alloc.Alloc("window:" + name), kind: KindWindowCall, kids: kids, det: false},
		Name:        name,
		nArgs:       len(args),
		PartitionBy: partitionBy,
		OrderBy:     orderBy,
		Frame:       frame,
	}
}

// Args returns the window function's argument expressions, mirroring
// FunctionCall.Args(); they occupy the first len(Args()) entries of kids,
// with PartitionBy's expressions following.
func (w *WindowCall) Args() []Expr {
	out := make([]Expr, w.nArgs)
	for i := 0; i < w.nArgs; i++ {
		out[i] = w.kids[i].(Expr)
	}
	return out
}

func exprsToNodes(exprs []Expr) []Node {
	out := make([]Node, len(exprs))
	for i, e := range exprs {
		out[i] = e
	}
	return out
}

func (w *WindowCall) WithChildren(children []Node) Node {
	clone := *w
	clone.kids = children
	return &clone
}

// ScalarSubquery evaluates Inner and yields its single result value (spec §3).
type ScalarSubquery struct {
	exprBase
	Inner Relation
}

func NewScalarSubquery(alloc *Allocator, inner Relation) *ScalarSubquery {
	return &ScalarSubquery{exprBase: exprBase{attr: alloc.Alloc("scalar_subquery"), kind: KindScalarSubquery, kids: []Node{inner}, det: false}, Inner: inner}
}

func (s *ScalarSubquery) WithChildren(children []Node) Node {
	clone := *s
	clone.kids = children
	clone.Inner = children[0].(Relation)
	return &clone
}

// Exists reports whether Inner produces at least one row (spec §3).
type Exists struct {
	exprBase
	Inner Relation
	Negated bool
}

func NewExists(alloc *Allocator, inner Relation, negated bool) *Exists {
	return &Exists{exprBase: exprBase{attr: alloc.Alloc("exists"), kind: KindExists, kids: []Node{inner}, det: false}, Inner: inner, Negated: negated}
}

func (e *Exists) WithChildren(children []Node) Node {
	clone := *e
	clone.kids = children
	clone.Inner = children[0].(Relation)
	return &clone
}

// In tests Needle against either a literal list or a relation's single
// output column (spec §3).
type In struct {
	exprBase
	Needle  Expr
	List    []Expr
	Inner   Relation // nil when List is used
	Negated bool
}

func NewInList(alloc *Allocator, needle Expr, list []Expr, negated bool) *In {
	det := needle.IsDeterministic()
	kids := []Node{needle}
	for _, e := range list {
		det = det && e.IsDeterministic()
		kids = append(kids, e)
	}
	return &In{exprBase: exprBase{attr: alloc.Alloc("in"), kind: KindIn, kids: kids, det: det}, Needle: needle, List: list, Negated: negated}
}

func NewInSubquery(alloc *Allocator, needle Expr, inner Relation, negated bool) *In {
	return &In{exprBase: exprBase{attr: alloc.Alloc("in"), kind: KindIn, kids: []Node{needle, inner}, det: false}, Needle: needle, Inner: inner, Negated: negated}
}

func (in *In) WithChildren(children []Node) Node {
	clone := *in
	clone.kids = children
	clone.Needle = children[0].(Expr)
	if clone.Inner != nil {
		clone.Inner = children[1].(Relation)
	} else {
		list := make([]Expr, len(children)-1)
		for i, c := range children[1:] {
			list[i] = c.(Expr)
		}
		clone.List = list
	}
	return &clone
}
