package plan

// relBase factors the Node plumbing shared by every relation node variant.
type relBase struct {
	kind  Kind
	kids  []Node
	cols  []AttrID
	keys  [][]AttrID
	isSet bool
	props LogicalProps
}

func (r *relBase) Kind() Kind                  { return r.kind }
func (r *relBase) NodeType() NodeType          { return TypeRelation }
func (r *relBase) Attributes() []AttrID        { return r.cols }
func (r *relBase) Children() []Node            { return r.kids }
func (r *relBase) Columns() []AttrID           { return r.cols }
func (r *relBase) Keys() [][]AttrID            { return r.keys }
func (r *relBase) IsSet() bool                 { return r.isSet }
func (r *relBase) LogicalProps() LogicalProps  { return r.props }

func childRelation(n Node) Relation { return n.(Relation) }

// ProjectItem is one output column of a Seq node: Expr computes it, Attr is
// the attribute id it's published under. When Expr is a bare ColumnRef to
// an existing attribute, Attr equals that attribute's id (projections
// re-use incoming ids; spec §4.3) rather than allocating a new one.
type ProjectItem struct {
	Attr AttrID
	Expr Expr
}

// Seq is the projection node (spec §3 "Seq (projection)").
type Seq struct {
	relBase
	Input Relation
	Items []ProjectItem
}

func NewSeq(input Relation, items []ProjectItem) *Seq {
	cols := make([]AttrID, len(items))
	kids := make([]Node, 0, len(items)+1)
	kids = append(kids, input)
	for i, it := range items {
		cols[i] = it.Attr
		kids = append(kids, it.Expr)
	}
	return &Seq{relBase: relBase{kind: KindSeq, kids: kids, cols: cols, isSet: input.IsSet()}, Input: input, Items: items}
}

func (s *Seq) WithChildren(children []Node) Node {
	clone := *s
	clone.Input = childRelation(children[0])
	items := make([]ProjectItem, len(clone.Items))
	for i := range items {
		items[i] = ProjectItem{Attr: clone.Items[i].Attr, Expr: children[i+1].(Expr)}
	}
	clone.Items = items
	clone.kids = children
	return &clone
}

// Filter restricts Input to rows where Predicate is true (spec §3).
type Filter struct {
	relBase
	Input     Relation
	Predicate Expr
}

func NewFilter(input Relation, predicate Expr) *Filter {
	return &Filter{
		relBase: relBase{kind: KindFilter, kids: []Node{input, predicate}, cols: input.Columns(), keys: input.Keys(), isSet: input.IsSet()},
		Input:   input, Predicate: predicate,
	}
}

func (f *Filter) WithChildren(children []Node) Node {
	clone := *f
	clone.Input = childRelation(children[0])
	clone.Predicate = children[1].(Expr)
	clone.kids = children
	clone.cols = clone.Input.Columns()
	return &clone
}

// JoinType enumerates the join kinds spec §3 names.
type JoinType int

const (
	JoinInner JoinType = iota
	JoinLeft
	JoinRight
	JoinCross
)

// Join combines Left and Right rows, by Condition or a USING column list
// (spec §3). Outer joins null-extend the opposite side's columns; that
// null-extension is tracked by the optimizer's predicate-pushdown rule, not
// by this node itself.
type Join struct {
	relBase
	Left, Right Relation
	JoinType    JoinType
	Condition   Expr // nil when Using is set or JoinType == JoinCross
	Using       []string
}

func NewJoin(left, right Relation, joinType JoinType, condition Expr, using []string) *Join {
	cols := append(append([]AttrID{}, left.Columns()...), right.Columns()...)
	kids := []Node{left, right}
	if condition != nil {
		kids = append(kids, condition)
	}
	return &Join{
		relBase:   relBase{kind: KindJoin, kids: kids, cols: cols, isSet: left.IsSet() || right.IsSet()},
		Left:      left, Right: right, JoinType: joinType, Condition: condition, Using: using,
	}
}

func (j *Join) WithChildren(children []Node) Node {
	clone := *j
	clone.Left = childRelation(children[0])
	clone.Right = childRelation(children[1])
	if clone.Condition != nil {
		clone.Condition = children[2].(Expr)
	}
	clone.kids = children
	clone.cols = append(append([]AttrID{}, clone.Left.Columns()...), clone.Right.Columns()...)
	return &clone
}

// Reduction is one aggregate computation inside an Aggregate node.
type Reduction struct {
	Attr     AttrID
	Function string
	Arg      Expr // nil for count(*)
	Distinct bool
}

// Aggregate groups Input by Grouping columns and computes Reductions per
// group (spec §3). An empty Grouping means one group over the whole input.
type Aggregate struct {
	relBase
	Input      Relation
	Grouping   []AttrID
	Reductions []Reduction
	// Streaming is set by the optimizer's physical-lowering pass once it has
	// checked Input's logical ordering against Grouping (spec §4.4
	// "Streaming aggregate choice"); false means hash aggregation.
	Streaming bool
}

func NewAggregate(input Relation, grouping []AttrID, reductions []Reduction) *Aggregate {
	cols := append([]AttrID{}, grouping...)
	kids := []Node{input}
	for _, r := range reductions {
		cols = append(cols, r.Attr)
		if r.Arg != nil {
			kids = append(kids, r.Arg)
		}
	}
	return &Aggregate{relBase: relBase{kind: KindAggregate, kids: kids, cols: cols, isSet: true}, Input: input, Grouping: grouping, Reductions: reductions}
}

// WithStreaming returns a copy of a with Streaming set, used exclusively by
// the optimizer (SPEC_FULL §3); clone-and-replace keeps the immutability
// discipline every other WithX-style mutator in this file follows.
func (a *Aggregate) WithStreaming(streaming bool) *Aggregate {
	clone := *a
	clone.Streaming = streaming
	return &clone
}

func (a *Aggregate) WithChildren(children []Node) Node {
	clone := *a
	clone.Input = childRelation(children[0])
	idx := 1
	newReductions := make([]Reduction, len(clone.Reductions))
	for i, r := range clone.Reductions {
		newReductions[i] = r
		if r.Arg != nil {
			newReductions[i].Arg = children[idx].(Expr)
			idx++
		}
	}
	clone.Reductions = newReductions
	clone.kids = children
	return &clone
}

// Window computes WindowCall expressions over Input without collapsing
// rows (spec §3).
type Window struct {
	relBase
	Input Relation
	Calls []ProjectItem // Expr is always a *WindowCall
}

func NewWindow(input Relation, calls []ProjectItem) *Window {
	cols := append(append([]AttrID{}, input.Columns()...), itemAttrs(calls)...)
	kids := append([]Node{input}, itemExprs(calls)...)
	return &Window{relBase: relBase{kind: KindWindow, kids: kids, cols: cols, isSet: input.IsSet()}, Input: input, Calls: calls}
}

func itemAttrs(items []ProjectItem) []AttrID {
	out := make([]AttrID, len(items))
	for i, it := range items {
		out[i] = it.Attr
	}
	return out
}

func itemExprs(items []ProjectItem) []Node {
	out := make([]Node, len(items))
	for i, it := range items {
		out[i] = it.Expr
	}
	return out
}

func (w *Window) WithChildren(children []Node) Node {
	clone := *w
	clone.Input = childRelation(children[0])
	calls := make([]ProjectItem, len(clone.Calls))
	for i := range calls {
		calls[i] = ProjectItem{Attr: clone.Calls[i].Attr, Expr: children[i+1].(Expr)}
	}
	clone.Calls = calls
	clone.kids = children
	clone.cols = append(append([]AttrID{}, clone.Input.Columns()...), itemAttrs(calls)...)
	return &clone
}

// Sort orders Input by Keys (spec §3).
type Sort struct {
	relBase
	Input Relation
	SortKeys []SortKey
}

func NewSort(input Relation, keys []SortKey) *Sort {
	return &Sort{
		relBase: relBase{kind: KindSort, kids: []Node{input}, cols: input.Columns(), keys: input.Keys(), isSet: input.IsSet(),
			props: LogicalProps{Order: keys}},
		Input: input, SortKeys: keys,
	}
}

func (s *Sort) WithChildren(children []Node) Node {
	clone := *s
	clone.Input = childRelation(children[0])
	clone.kids = children
	clone.cols = clone.Input.Columns()
	return &clone
}

// Limit restricts Input to at most N rows after skipping Offset, either of
// which may be nil (spec §3 "Limit/Offset").
type Limit struct {
	relBase
	Input  Relation
	Count  Expr
	Offset Expr
}

func NewLimit(input Relation, count, offset Expr) *Limit {
	kids := []Node{input}
	if count != nil {
		kids = append(kids, count)
	}
	if offset != nil {
		kids = append(kids, offset)
	}
	return &Limit{relBase: relBase{kind: KindLimit, kids: kids, cols: input.Columns(), keys: input.Keys(), isSet: input.IsSet()}, Input: input, Count: count, Offset: offset}
}

func (l *Limit) WithChildren(children []Node) Node {
	clone := *l
	clone.Input = childRelation(children[0])
	idx := 1
	if clone.Count != nil {
		clone.Count = children[idx].(Expr)
		idx++
	}
	if clone.Offset != nil {
		clone.Offset = children[idx].(Expr)
	}
	clone.kids = children
	clone.cols = clone.Input.Columns()
	return &clone
}

// SetOp enumerates the set operations spec §3 names.
type SetOp int

const (
	SetUnion SetOp = iota
	SetIntersect
	SetExcept
)

// Set combines Left and Right with Op, preserving duplicates when All is
// true (spec §3).
type Set struct {
	relBase
	Left, Right Relation
	Op          SetOp
	All         bool
}

func NewSet(left, right Relation, op SetOp, all bool) *Set {
	return &Set{
		relBase: relBase{kind: KindSet, kids: []Node{left, right}, cols: left.Columns(), isSet: !all},
		Left: left, Right: right, Op: op, All: all,
	}
}

func (s *Set) WithChildren(children []Node) Node {
	clone := *s
	clone.Left = childRelation(children[0])
	clone.Right = childRelation(children[1])
	clone.kids = children
	clone.cols = clone.Left.Columns()
	return &clone
}

// CTE binds Name to Definition for evaluation inside Body (spec §3).
type CTE struct {
	relBase
	Name       string
	Definition Relation
	Body       Relation
	Recursive  bool
}

func NewCTE(name string, definition, body Relation, recursive bool) *CTE {
	return &CTE{
		relBase: relBase{kind: KindCTE, kids: []Node{definition, body}, cols: body.Columns(), isSet: body.IsSet()},
		Name: name, Definition: definition, Body: body, Recursive: recursive,
	}
}

func (c *CTE) WithChildren(children []Node) Node {
	clone := *c
	clone.Definition = childRelation(children[0])
	clone.Body = childRelation(children[1])
	clone.kids = children
	clone.cols = clone.Body.Columns()
	return &clone
}

// Values is an inline row constructor (spec §3).
type Values struct {
	relBase
	Rows [][]Expr
}

func NewValues(alloc *Allocator, rows [][]Expr) *Values {
	var cols []AttrID
	var kids []Node
	if len(rows) > 0 {
		cols = make([]AttrID, len(rows[0]))
		for i := range cols {
			cols[i] = alloc.Alloc("values")
		}
	}
	for _, row := range rows {
		for _, e := range row {
			kids = append(kids, e)
		}
	}
	return &Values{relBase: relBase{kind: KindValues, kids: kids, cols: cols, isSet: false}, Rows: rows}
}

func (v *Values) WithChildren(children []Node) Node {
	clone := *v
	rows := make([][]Expr, len(clone.Rows))
	idx := 0
	for i, row := range clone.Rows {
		newRow := make([]Expr, len(row))
		for j := range row {
			newRow[j] = children[idx].(Expr)
			idx++
		}
		rows[i] = newRow
	}
	clone.Rows = rows
	clone.kids = children
	return &clone
}

// FilterOp enumerates the predicate operators a vtab pushdown constraint
// may carry (spec §6 FilterInfo.constraints[].op).
type FilterOp int

const (
	OpEQ FilterOp = iota
	OpLT
	OpLE
	OpGT
	OpGE
	OpLIKE
	OpGLOB
	OpISNULL
	OpISNOTNULL
	OpIN
	OpMATCH
)

// PushedConstraint is one pushed-down predicate carried by a Retrieve node.
type PushedConstraint struct {
	Column AttrID
	Op     FilterOp
	Arg    Expr // nil for ISNULL/ISNOTNULL
}

// Retrieve wraps a virtual-table read with whatever filters/sort/limit/
// projection the optimizer has pushed into it, plus the bindings it
// captures (spec §3, §4.4, GLOSSARY "Retrieve"). This is the sole plan node
// that crosses the Virtual-Table Contract boundary (package vtab).
type Retrieve struct {
	relBase
	TableName   string
	SchemaName  string
	Constraints []PushedConstraint
	OrderBy     []SortKey
	Projection  []AttrID // nil means all columns
	Limit       Expr
	Offset      Expr
	Params      []Expr
}

func NewRetrieve(tableName, schemaName string, cols []AttrID, keys [][]AttrID) *Retrieve {
	return &Retrieve{relBase: relBase{kind: KindRetrieve, cols: cols, keys: keys}, TableName: tableName, SchemaName: schemaName}
}

// retrieveChildren lays out a Retrieve's scalar children in a fixed order:
// constraint arguments, Limit, Offset, Params. WithChildren must decode the
// same order, which is why both live next to each other.
func retrieveChildren(r *Retrieve) []Node {
	var kids []Node
	for _, c := range r.Constraints {
		if c.Arg != nil {
			kids = append(kids, c.Arg)
		}
	}
	if r.Limit != nil {
		kids = append(kids, r.Limit)
	}
	if r.Offset != nil {
		kids = append(kids, r.Offset)
	}
	for _, p := range r.Params {
		kids = append(kids, p)
	}
	return kids
}

// WithPushdown returns a copy of r with pushdown fields set and kids
// recomputed, the only way the optimizer's predicate-pushdown rule should
// mutate a Retrieve (spec §4.4) — keeps Walk/Rewrite able to reach
// constraint arguments, Limit, and Offset expressions.
func (r *Retrieve) WithPushdown(constraints []PushedConstraint, orderBy []SortKey, projection []AttrID, limit, offset Expr, params []Expr) *Retrieve {
	clone := *r
	clone.Constraints = constraints
	clone.OrderBy = orderBy
	clone.Projection = projection
	clone.Limit = limit
	clone.Offset = offset
	clone.Params = params
	clone.kids = retrieveChildren(&clone)
	clone.props.Order = orderBy
	return &clone
}

func (r *Retrieve) WithChildren(children []Node) Node {
	clone := *r
	idx := 0
	constraints := make([]PushedConstraint, len(clone.Constraints))
	for i, c := range clone.Constraints {
		constraints[i] = c
		if c.Arg != nil {
			constraints[i].Arg = children[idx].(Expr)
			idx++
		}
	}
	clone.Constraints = constraints
	if clone.Limit != nil {
		clone.Limit = children[idx].(Expr)
		idx++
	}
	if clone.Offset != nil {
		clone.Offset = children[idx].(Expr)
		idx++
	}
	params := make([]Expr, len(clone.Params))
	for i := range params {
		params[i] = children[idx].(Expr)
		idx++
	}
	clone.Params = params
	clone.kids = children
	return &clone
}

// MutationContext captures statement-scoped, evaluated-once expressions
// (e.g. CURRENT_TIMESTAMP, a random seed) so non-deterministic producers
// remain replayable across a statement's rows (spec §3, §4.5, GLOSSARY).
type MutationContext struct {
	relBase
	Input    Relation
	Captures []ProjectItem
}

func NewMutationContext(input Relation, captures []ProjectItem) *MutationContext {
	cols := append(append([]AttrID{}, input.Columns()...), itemAttrs(captures)...)
	kids := append([]Node{input}, itemExprs(captures)...)
	return &MutationContext{relBase: relBase{kind: KindMutationContext, kids: kids, cols: cols, isSet: input.IsSet()}, Input: input, Captures: captures}
}

func (m *MutationContext) WithChildren(children []Node) Node {
	clone := *m
	clone.Input = childRelation(children[0])
	captures := make([]ProjectItem, len(clone.Captures))
	for i := range captures {
		captures[i] = ProjectItem{Attr: clone.Captures[i].Attr, Expr: children[i+1].(Expr)}
	}
	clone.Captures = captures
	clone.kids = children
	clone.cols = append(append([]AttrID{}, clone.Input.Columns()...), itemAttrs(captures)...)
	return &clone
}

// ConstraintOp tags which DML operation a ConstraintCheck validates for
// (spec §4.3).
type ConstraintOp int

const (
	ConstraintOpInsert ConstraintOp = iota
	ConstraintOpUpdate
	ConstraintOpDelete
)

// CheckSpec is one constraint a ConstraintCheck node enforces per row.
type CheckSpec struct {
	ConstraintName  string
	Expression      Expr
	Deferrable      bool
	ContainsSubquery bool
}

// ConstraintCheck validates every row from Input against Checks before
// letting it through, per spec §4.3. For UPDATE, Input rows interleave OLD
// then NEW column values (OldColumns/NewColumns index into the row).
// SchemaName/TableName identify the table a Deferrable or
// ContainsSubquery check's target DeferredQueue belongs to (spec §4.3).
type ConstraintCheck struct {
	relBase
	Input       Relation
	Op          ConstraintOp
	Checks      []CheckSpec
	OldColumns  []AttrID // UPDATE only
	NewColumns  []AttrID
	SchemaName  string
	TableName   string
}

func NewConstraintCheck(input Relation, op ConstraintOp, checks []CheckSpec, oldCols, newCols []AttrID, schemaName, tableName string) *ConstraintCheck {
	kids := []Node{input}
	for _, c := range checks {
		kids = append(kids, c.Expression)
	}
	return &ConstraintCheck{
		relBase: relBase{kind: KindConstraintCheck, kids: kids, cols: input.Columns(), keys: input.Keys(), isSet: input.IsSet()},
		Input: input, Op: op, Checks: checks, OldColumns: oldCols, NewColumns: newCols,
		SchemaName: schemaName, TableName: tableName,
	}
}

func (c *ConstraintCheck) WithChildren(children []Node) Node {
	clone := *c
	clone.Input = childRelation(children[0])
	checks := make([]CheckSpec, len(clone.Checks))
	for i := range checks {
		checks[i] = clone.Checks[i]
		checks[i].Expression = children[i+1].(Expr)
	}
	clone.Checks = checks
	clone.kids = children
	clone.cols = clone.Input.Columns()
	return &clone
}

// ConflictResolution enumerates INSERT conflict handling (SPEC_FULL §3,
// resolving spec §6's unenumerated UpdateArgs.conflictResolution).
type ConflictResolution int

const (
	ConflictAbort ConflictResolution = iota
	ConflictFail
	ConflictIgnore
	ConflictReplace
	ConflictRollback
)

// Insert appends Input's rows into TableName (spec §3).
type Insert struct {
	relBase
	Input      Relation
	TableName  string
	SchemaName string
	Conflict   ConflictResolution
}

func NewInsert(input Relation, tableName, schemaName string, conflict ConflictResolution) *Insert {
	return &Insert{relBase: relBase{kind: KindInsert, kids: []Node{input}, cols: input.Columns()}, Input: input, TableName: tableName, SchemaName: schemaName, Conflict: conflict}
}

func (i *Insert) WithChildren(children []Node) Node {
	clone := *i
	clone.Input = childRelation(children[0])
	clone.kids = children
	clone.cols = clone.Input.Columns()
	return &clone
}

// Update applies SetItems to every row Input produces (spec §3).
type Update struct {
	relBase
	Input      Relation
	TableName  string
	SchemaName string
	SetItems   []ProjectItem
}

func NewUpdate(input Relation, tableName, schemaName string, setItems []ProjectItem) *Update {
	kids := append([]Node{input}, itemExprs(setItems)...)
	return &Update{relBase: relBase{kind: KindUpdate, kids: kids, cols: input.Columns()}, Input: input, TableName: tableName, SchemaName: schemaName, SetItems: setItems}
}

func (u *Update) WithChildren(children []Node) Node {
	clone := *u
	clone.Input = childRelation(children[0])
	setItems := make([]ProjectItem, len(clone.SetItems))
	for i := range setItems {
		setItems[i] = ProjectItem{Attr: clone.SetItems[i].Attr, Expr: children[i+1].(Expr)}
	}
	clone.SetItems = setItems
	clone.kids = children
	clone.cols = clone.Input.Columns()
	return &clone
}

// Delete removes every row Input produces from TableName (spec §3).
type Delete struct {
	relBase
	Input      Relation
	TableName  string
	SchemaName string
}

func NewDelete(input Relation, tableName, schemaName string) *Delete {
	return &Delete{relBase: relBase{kind: KindDelete, kids: []Node{input}, cols: input.Columns()}, Input: input, TableName: tableName, SchemaName: schemaName}
}

func (d *Delete) WithChildren(children []Node) Node {
	clone := *d
	clone.Input = childRelation(children[0])
	clone.kids = children
	clone.cols = clone.Input.Columns()
	return &clone
}

// Returning threads Input's post-mutation rows to the statement's output
// unchanged, attribute ids preserved from the table's column set (SPEC_FULL
// §3, resolving spec §3's unspecified Returning evaluation).
type Returning struct {
	relBase
	Input Relation
}

func NewReturning(input Relation) *Returning {
	return &Returning{relBase: relBase{kind: KindReturning, kids: []Node{input}, cols: input.Columns(), isSet: input.IsSet()}, Input: input}
}

func (r *Returning) WithChildren(children []Node) Node {
	clone := *r
	clone.Input = childRelation(children[0])
	clone.kids = children
	clone.cols = clone.Input.Columns()
	return &clone
}

// Cache memoizes Input's rows the first time a statement execution reaches
// it, keyed by Key (the subtree's structural fingerprint, which names
// parameters by key; their values are fixed within one execution), and
// replays the memoized rows on any subsequent poll within the same
// execution (spec §4.4 "Caching insertion"). Inserted only
// by the optimizer's caching-insertion rule, never by a planner.
type Cache struct {
	relBase
	Input Relation
	Key   string
}

func NewCache(input Relation, key string) *Cache {
	return &Cache{relBase: relBase{kind: KindCache, kids: []Node{input}, cols: input.Columns(), keys: input.Keys(), isSet: input.IsSet(), props: input.LogicalProps()}, Input: input, Key: key}
}

func (c *Cache) WithChildren(children []Node) Node {
	clone := *c
	clone.Input = childRelation(children[0])
	clone.kids = children
	clone.cols = clone.Input.Columns()
	return &clone
}

// Block sequences a statement list, executed strictly sequentially across
// statements (spec §3, §5).
type Block struct {
	relBase
	Statements []Relation
}

func NewBlock(statements []Relation) *Block {
	kids := make([]Node, len(statements))
	var cols []AttrID
	for i, s := range statements {
		kids[i] = s
		cols = s.Columns()
	}
	return &Block{relBase: relBase{kind: KindBlock, kids: kids, cols: cols}, Statements: statements}
}

func (b *Block) WithChildren(children []Node) Node {
	clone := *b
	statements := make([]Relation, len(children))
	for i, c := range children {
		statements[i] = childRelation(c)
	}
	clone.Statements = statements
	clone.kids = children
	if len(statements) > 0 {
		clone.cols = statements[len(statements)-1].Columns()
	}
	return &clone
}
