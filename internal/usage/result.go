package usage

import (
	"slices"

	"owninfer/internal/ast"
	"owninfer/internal/source"
	"owninfer/internal/symbols"
)

// BindingID is a 1-based index into Result.Bindings.
type BindingID uint32

const NoBindingID BindingID = 0

type BindingKind uint8

const (
	BindParam BindingKind = iota
	BindSelf
	BindLocal
	// BindPattern is introduced by a destructuring let, a match arm or a
	// closure parameter.
	BindPattern
	// BindLoopVar is a for-loop pattern binding; it refers into the
	// iterated collection and is never owned.
	BindLoopVar
)

var bindingKindNames = [...]string{
	BindParam:   "param",
	BindSelf:    "self",
	BindLocal:   "local",
	BindPattern: "pattern",
	BindLoopVar: "loop-var",
}

func (k BindingKind) String() string {
	if int(k) < len(bindingKindNames) {
		return bindingKindNames[k]
	}
	return "?"
}

// PathElem is one step below a binding root: a named field, an indexed
// element, or the target of a dereference.
type PathElem struct {
	Name  source.StringID
	Index bool
	Deref bool
}

// opaque steps never prove two paths disjoint.
func (e PathElem) opaque() bool { return e.Index || e.Deref }

// Path is a field/index chain below a binding root.
type Path []PathElem

// Overlaps reports whether two paths share storage: one is a prefix of the
// other. Index steps never prove disjointness.
func (p Path) Overlaps(q Path) bool {
	n := min(len(p), len(q))
	for i := range n {
		if p[i].opaque() || q[i].opaque() {
			continue
		}
		if p[i].Name != q[i].Name {
			return false
		}
	}
	return true
}

// Covers reports whether writing p re-initialises everything under q.
func (p Path) Covers(q Path) bool {
	if len(p) > len(q) {
		return false
	}
	for i := range p {
		if p[i].opaque() || q[i].opaque() || p[i].Name != q[i].Name {
			return false
		}
	}
	return true
}

// Source records where a destructured binding was taken from.
type Source struct {
	Root    BindingID
	Path    Path
	Ordinal int
	Span    source.Span
}

type Binding struct {
	ID   BindingID
	Name source.StringID
	Kind BindingKind
	// Param is the declared parameter index, -1 for locals.
	Param int
	Type  ast.TypeID
	// TypeName resolves field types when Type is absent, as for self.
	TypeName source.StringID
	Copy     bool
	Mut      bool
	ByRef    bool
	Span     source.Span
	// Loops is the loop stack at the declaration.
	Loops []LoopID
	// Closure is the innermost closure containing the declaration.
	Closure ClosureID
	// From is set for bindings destructured out of another binding.
	From *Source
	// ClosureOf is the closure expression a local was initialised with.
	ClosureOf ClosureID
}

// Fact is the aggregate usage of one binding over every branch.
type Fact struct {
	ReadCount                 int
	Mutated                   bool
	FieldMutated              bool
	SelfCallMutated           bool
	MovedIntoOwned            bool
	PartiallyMoved            bool
	Returned                  bool
	Stored                    bool
	CapturedByEscapingClosure bool
	Ambiguous                 bool
	Reassigned                bool
}

// Consumed reports whether the binding's value leaves it.
func (f *Fact) Consumed() bool {
	return f.MovedIntoOwned || f.Returned || f.Stored || f.CapturedByEscapingClosure
}

// Used reports whether the binding was touched at all.
func (f *Fact) Used() bool {
	return f.ReadCount > 0 || f.Mutated || f.Consumed() || f.PartiallyMoved || f.Ambiguous
}

type OccKind uint8

const (
	OccRead OccKind = iota
	OccMove
	OccMutate
	// OccAssign is a plain `=` write; with an empty path it re-initialises
	// the whole binding.
	OccAssign
	// OccDestructure is the scrutinee or initialiser of a destructuring
	// pattern; partial moves are attributed to it.
	OccDestructure
)

var occKindNames = [...]string{
	OccRead:        "read",
	OccMove:        "move",
	OccMutate:      "mutate",
	OccAssign:      "assign",
	OccDestructure: "destructure",
}

func (k OccKind) String() string {
	if int(k) < len(occKindNames) {
		return occKindNames[k]
	}
	return "?"
}

// MoveReason says why an occurrence consumes its operand.
type MoveReason uint8

const (
	MoveNone MoveReason = iota
	MoveArg
	MoveReceiver
	MoveLet
	MoveAssign
	MoveStore
	MoveReturn
	MoveClosureResult
)

var moveReasonNames = [...]string{
	MoveNone:          "",
	MoveArg:           "argument to owned parameter",
	MoveReceiver:      "owned receiver",
	MoveLet:           "bound by value",
	MoveAssign:        "assigned by value",
	MoveStore:         "stored in aggregate",
	MoveReturn:        "returned",
	MoveClosureResult: "closure result",
}

func (r MoveReason) String() string {
	if int(r) < len(moveReasonNames) {
		return moveReasonNames[r]
	}
	return "?"
}

// Arm identifies one arm of a conditional: Node is the if or match
// expression, Arm the arm index (then=0, else=1).
type Arm struct {
	Node ast.ExprID
	Arm  int
}

// Occurrence is one use of a binding, in textual evaluation order.
type Occurrence struct {
	Ordinal int
	Binding BindingID
	Kind    OccKind
	Reason  MoveReason
	// Expr is the narrowest operand: the identifier, field chain or index.
	Expr ast.ExprID
	Path Path
	Span source.Span
	// Copy is set when the moved value is known to have copy semantics.
	Copy    bool
	Branch  []Arm
	Loops   []LoopID
	Closure ClosureID
	// Exit is the first break or return that runs after this occurrence
	// in its own or an enclosing block; nil when control falls through.
	Exit *Exit
}

// Exit records a break or return. Occurrences past At inside one of Loops,
// or anywhere past At when Fn is set, cannot run after the exiting one.
type Exit struct {
	At    int
	Loops []LoopID
	Fn    bool
}

// Exits reports whether o leaves loop l before it could iterate again.
func (o *Occurrence) Exits(l LoopID) bool {
	return o.Exit != nil && slices.Contains(o.Exit.Loops, l)
}

// Precedes reports whether other can still run after o once o's exit,
// if any, has been taken into account.
func (o *Occurrence) Precedes(other *Occurrence) bool {
	e := o.Exit
	if e == nil || other.Ordinal <= e.At {
		return true
	}
	if e.Fn {
		return false
	}
	return !slices.ContainsFunc(e.Loops, other.InLoop)
}

// InLoop reports whether l encloses the occurrence.
func (o *Occurrence) InLoop(l LoopID) bool {
	return slices.Contains(o.Loops, l)
}

// ExclusiveWith reports whether o and other lie in different arms of the
// same conditional and so never run in the same pass.
func (o *Occurrence) ExclusiveWith(other *Occurrence) bool {
	for _, a := range o.Branch {
		for _, b := range other.Branch {
			if a.Node == b.Node && a.Arm != b.Arm {
				return true
			}
		}
	}
	return false
}

// LoopID is a 1-based index into Result.Loops.
type LoopID uint32

type Loop struct {
	ID LoopID
	// Closure marks a closure body, which may run any number of times.
	Closure bool
	Span    source.Span
	// Start and End bound the ordinals recorded inside the loop.
	Start, End int
}

// ClosureID is a 1-based index into Result.Closures.
type ClosureID uint32

type Closure struct {
	ID   ClosureID
	Expr ast.ExprID
	Span source.Span
	Move bool
	// Escapes is set when the closure value is returned or stored.
	Escapes  bool
	Captures []BindingID
	// Start and End bound the ordinals recorded in the closure body.
	Start, End int
	Loop       LoopID
}

// Owning reports whether the closure takes its captures by value.
func (c *Closure) Owning() bool { return c.Move || c.Escapes }

// RefResult is a method call whose result is a reference but which is
// consumed by value; it always needs a duplication.
type RefResult struct {
	Expr   ast.ExprID
	Span   source.Span
	Method source.StringID
}

// Result is the usage of one function body.
type Result struct {
	Fn          ast.ItemID
	Info        symbols.FnInfo
	Bindings    []Binding
	Facts       []Fact
	Occurrences []Occurrence
	Loops       []Loop
	Closures    []Closure
	RefResults  []RefResult
	// Params maps declared parameter index to its binding.
	Params []BindingID
}

func (r *Result) Binding(id BindingID) *Binding {
	if id == NoBindingID || int(id) > len(r.Bindings) {
		return nil
	}
	return &r.Bindings[id-1]
}

func (r *Result) Fact(id BindingID) *Fact {
	if id == NoBindingID || int(id) > len(r.Facts) {
		return nil
	}
	return &r.Facts[id-1]
}

func (r *Result) Loop(id LoopID) *Loop {
	if id == 0 || int(id) > len(r.Loops) {
		return nil
	}
	return &r.Loops[id-1]
}

func (r *Result) Closure(id ClosureID) *Closure {
	if id == 0 || int(id) > len(r.Closures) {
		return nil
	}
	return &r.Closures[id-1]
}

// ParamFact returns the fact of declared parameter idx.
func (r *Result) ParamFact(idx int) *Fact {
	if idx < 0 || idx >= len(r.Params) {
		return nil
	}
	return r.Fact(r.Params[idx])
}

// OccurrencesOf returns the occurrences of b in ordinal order.
func (r *Result) OccurrencesOf(b BindingID) []*Occurrence {
	var out []*Occurrence
	for i := range r.Occurrences {
		if r.Occurrences[i].Binding == b {
			out = append(out, &r.Occurrences[i])
		}
	}
	return out
}

// Lookup finds the first binding named name, for tests and explain output.
func (r *Result) Lookup(name source.StringID) *Binding {
	for i := range r.Bindings {
		if r.Bindings[i].Name == name {
			return &r.Bindings[i]
		}
	}
	return nil
}
