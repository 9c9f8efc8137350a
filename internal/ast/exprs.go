package ast

import (
	"slices"

	"owninfer/internal/source"
)

// Exprs manages allocation of expressions.
type Exprs struct {
	Arena       *Arena[Expr]
	Idents      *Arena[ExprIdentData]
	Literals    *Arena[ExprLitData]
	Binaries    *Arena[ExprBinaryData]
	Unaries     *Arena[ExprUnaryData]
	Calls       *Arena[ExprCallData]
	MethodCalls *Arena[ExprMethodCallData]
	Fields      *Arena[ExprFieldData]
	Indices     *Arena[ExprIndexData]
	Blocks      *Arena[ExprBlockData]
	Ifs         *Arena[ExprIfData]
	Matches     *Arena[ExprMatchData]
	Closures    *Arena[ExprClosureData]
	Structs     *Arena[ExprStructData]
	Lists       *Arena[ExprListData]
	Maps        *Arena[ExprMapData]
	Macros      *Arena[ExprMacroData]
	Casts       *Arena[ExprCastData]
	Ranges      *Arena[ExprRangeData]
	Wraps       *Arena[ExprWrapData]
}

// NewExprs creates a new Exprs with per-kind arenas; capHint 0 means 1<<8.
func NewExprs(capHint uint) *Exprs {
	if capHint == 0 {
		capHint = 1 << 8
	}
	return &Exprs{
		Arena:       NewArena[Expr](capHint),
		Idents:      NewArena[ExprIdentData](capHint),
		Literals:    NewArena[ExprLitData](capHint),
		Binaries:    NewArena[ExprBinaryData](capHint),
		Unaries:     NewArena[ExprUnaryData](capHint),
		Calls:       NewArena[ExprCallData](capHint),
		MethodCalls: NewArena[ExprMethodCallData](capHint),
		Fields:      NewArena[ExprFieldData](capHint),
		Indices:     NewArena[ExprIndexData](capHint),
		Blocks:      NewArena[ExprBlockData](capHint),
		Ifs:         NewArena[ExprIfData](capHint),
		Matches:     NewArena[ExprMatchData](capHint),
		Closures:    NewArena[ExprClosureData](capHint),
		Structs:     NewArena[ExprStructData](capHint),
		Lists:       NewArena[ExprListData](capHint),
		Maps:        NewArena[ExprMapData](capHint),
		Macros:      NewArena[ExprMacroData](capHint),
		Casts:       NewArena[ExprCastData](capHint),
		Ranges:      NewArena[ExprRangeData](capHint),
		Wraps:       NewArena[ExprWrapData](capHint),
	}
}

func (e *Exprs) new(kind ExprKind, span source.Span, payload uint32) ExprID {
	return ExprID(e.Arena.Allocate(Expr{
		Kind:    kind,
		Span:    span,
		Payload: PayloadID(payload),
	}))
}

// Get returns the expression with the given ID.
func (e *Exprs) Get(id ExprID) *Expr {
	return e.Arena.Get(uint32(id))
}

func (e *Exprs) payload(id ExprID, kind ExprKind) (uint32, bool) {
	expr := e.Get(id)
	if expr == nil || expr.Kind != kind {
		return 0, false
	}
	return uint32(expr.Payload), true
}

func (e *Exprs) NewIdent(span source.Span, name source.StringID) ExprID {
	return e.new(ExprIdent, span, e.Idents.Allocate(ExprIdentData{Name: name}))
}

func (e *Exprs) Ident(id ExprID) (*ExprIdentData, bool) {
	p, ok := e.payload(id, ExprIdent)
	if !ok {
		return nil, false
	}
	return e.Idents.Get(p), true
}

func (e *Exprs) NewLiteral(span source.Span, kind LitKind, value source.StringID) ExprID {
	return e.new(ExprLit, span, e.Literals.Allocate(ExprLitData{Kind: kind, Value: value}))
}

func (e *Exprs) Literal(id ExprID) (*ExprLitData, bool) {
	p, ok := e.payload(id, ExprLit)
	if !ok {
		return nil, false
	}
	return e.Literals.Get(p), true
}

func (e *Exprs) NewBinary(span source.Span, op BinaryOp, left, right ExprID) ExprID {
	return e.new(ExprBinary, span, e.Binaries.Allocate(ExprBinaryData{Op: op, Left: left, Right: right}))
}

func (e *Exprs) Binary(id ExprID) (*ExprBinaryData, bool) {
	p, ok := e.payload(id, ExprBinary)
	if !ok {
		return nil, false
	}
	return e.Binaries.Get(p), true
}

func (e *Exprs) NewUnary(span source.Span, op UnaryOp, operand ExprID) ExprID {
	return e.new(ExprUnary, span, e.Unaries.Allocate(ExprUnaryData{Op: op, Operand: operand}))
}

func (e *Exprs) Unary(id ExprID) (*ExprUnaryData, bool) {
	p, ok := e.payload(id, ExprUnary)
	if !ok {
		return nil, false
	}
	return e.Unaries.Get(p), true
}

// NewCall creates a new function call expression. args is copied.
func (e *Exprs) NewCall(span source.Span, target ExprID, args []ExprID) ExprID {
	return e.new(ExprCall, span, e.Calls.Allocate(ExprCallData{Target: target, Args: slices.Clone(args)}))
}

func (e *Exprs) Call(id ExprID) (*ExprCallData, bool) {
	p, ok := e.payload(id, ExprCall)
	if !ok {
		return nil, false
	}
	return e.Calls.Get(p), true
}

func (e *Exprs) NewMethodCall(span source.Span, recv ExprID, method source.StringID, args []ExprID) ExprID {
	return e.new(ExprMethodCall, span, e.MethodCalls.Allocate(ExprMethodCallData{
		Receiver: recv,
		Method:   method,
		Args:     slices.Clone(args),
	}))
}

func (e *Exprs) MethodCall(id ExprID) (*ExprMethodCallData, bool) {
	p, ok := e.payload(id, ExprMethodCall)
	if !ok {
		return nil, false
	}
	return e.MethodCalls.Get(p), true
}

func (e *Exprs) NewField(span source.Span, target ExprID, field source.StringID) ExprID {
	return e.new(ExprField, span, e.Fields.Allocate(ExprFieldData{Target: target, Field: field}))
}

func (e *Exprs) Field(id ExprID) (*ExprFieldData, bool) {
	p, ok := e.payload(id, ExprField)
	if !ok {
		return nil, false
	}
	return e.Fields.Get(p), true
}

func (e *Exprs) NewIndex(span source.Span, target, index ExprID) ExprID {
	return e.new(ExprIndex, span, e.Indices.Allocate(ExprIndexData{Target: target, Index: index}))
}

func (e *Exprs) Index(id ExprID) (*ExprIndexData, bool) {
	p, ok := e.payload(id, ExprIndex)
	if !ok {
		return nil, false
	}
	return e.Indices.Get(p), true
}

func (e *Exprs) NewBlock(span source.Span, stmts []StmtID, tail ExprID) ExprID {
	return e.new(ExprBlock, span, e.Blocks.Allocate(ExprBlockData{Stmts: slices.Clone(stmts), Tail: tail}))
}

func (e *Exprs) Block(id ExprID) (*ExprBlockData, bool) {
	p, ok := e.payload(id, ExprBlock)
	if !ok {
		return nil, false
	}
	return e.Blocks.Get(p), true
}

func (e *Exprs) NewIf(span source.Span, cond, then, els ExprID) ExprID {
	return e.new(ExprIf, span, e.Ifs.Allocate(ExprIfData{Cond: cond, Then: then, Else: els}))
}

func (e *Exprs) If(id ExprID) (*ExprIfData, bool) {
	p, ok := e.payload(id, ExprIf)
	if !ok {
		return nil, false
	}
	return e.Ifs.Get(p), true
}

func (e *Exprs) NewMatch(span source.Span, scrutinee ExprID, arms []MatchArm) ExprID {
	return e.new(ExprMatch, span, e.Matches.Allocate(ExprMatchData{Scrutinee: scrutinee, Arms: slices.Clone(arms)}))
}

func (e *Exprs) Match(id ExprID) (*ExprMatchData, bool) {
	p, ok := e.payload(id, ExprMatch)
	if !ok {
		return nil, false
	}
	return e.Matches.Get(p), true
}

func (e *Exprs) NewClosure(span source.Span, params []PatternID, body ExprID, move bool) ExprID {
	return e.new(ExprClosure, span, e.Closures.Allocate(ExprClosureData{Params: slices.Clone(params), Body: body, Move: move}))
}

func (e *Exprs) Closure(id ExprID) (*ExprClosureData, bool) {
	p, ok := e.payload(id, ExprClosure)
	if !ok {
		return nil, false
	}
	return e.Closures.Get(p), true
}

func (e *Exprs) NewStruct(span source.Span, name source.StringID, fields []FieldInit) ExprID {
	return e.new(ExprStruct, span, e.Structs.Allocate(ExprStructData{Name: name, Fields: slices.Clone(fields)}))
}

func (e *Exprs) Struct(id ExprID) (*ExprStructData, bool) {
	p, ok := e.payload(id, ExprStruct)
	if !ok {
		return nil, false
	}
	return e.Structs.Get(p), true
}

func (e *Exprs) NewArray(span source.Span, elems []ExprID) ExprID {
	return e.new(ExprArray, span, e.Lists.Allocate(ExprListData{Elems: slices.Clone(elems)}))
}

func (e *Exprs) NewTuple(span source.Span, elems []ExprID) ExprID {
	return e.new(ExprTuple, span, e.Lists.Allocate(ExprListData{Elems: slices.Clone(elems)}))
}

// List returns the elements of an array or tuple expression.
func (e *Exprs) List(id ExprID) (*ExprListData, bool) {
	expr := e.Get(id)
	if expr == nil || (expr.Kind != ExprArray && expr.Kind != ExprTuple) {
		return nil, false
	}
	return e.Lists.Get(uint32(expr.Payload)), true
}

func (e *Exprs) NewMap(span source.Span, entries []MapEntry) ExprID {
	return e.new(ExprMap, span, e.Maps.Allocate(ExprMapData{Entries: slices.Clone(entries)}))
}

func (e *Exprs) Map(id ExprID) (*ExprMapData, bool) {
	p, ok := e.payload(id, ExprMap)
	if !ok {
		return nil, false
	}
	return e.Maps.Get(p), true
}

func (e *Exprs) NewMacro(span source.Span, name source.StringID, args []ExprID) ExprID {
	return e.new(ExprMacro, span, e.Macros.Allocate(ExprMacroData{Name: name, Args: slices.Clone(args)}))
}

func (e *Exprs) Macro(id ExprID) (*ExprMacroData, bool) {
	p, ok := e.payload(id, ExprMacro)
	if !ok {
		return nil, false
	}
	return e.Macros.Get(p), true
}

func (e *Exprs) NewCast(span source.Span, value ExprID, typ TypeID) ExprID {
	return e.new(ExprCast, span, e.Casts.Allocate(ExprCastData{Value: value, Type: typ}))
}

func (e *Exprs) Cast(id ExprID) (*ExprCastData, bool) {
	p, ok := e.payload(id, ExprCast)
	if !ok {
		return nil, false
	}
	return e.Casts.Get(p), true
}

func (e *Exprs) NewRange(span source.Span, start, end ExprID, inclusive bool) ExprID {
	return e.new(ExprRange, span, e.Ranges.Allocate(ExprRangeData{Start: start, End: end, Inclusive: inclusive}))
}

func (e *Exprs) Range(id ExprID) (*ExprRangeData, bool) {
	p, ok := e.payload(id, ExprRange)
	if !ok {
		return nil, false
	}
	return e.Ranges.Get(p), true
}

func (e *Exprs) NewTry(span source.Span, value ExprID) ExprID {
	return e.new(ExprTry, span, e.Wraps.Allocate(ExprWrapData{Value: value}))
}

func (e *Exprs) NewAwait(span source.Span, value ExprID) ExprID {
	return e.new(ExprAwait, span, e.Wraps.Allocate(ExprWrapData{Value: value}))
}

// NewDup wraps value in an explicit duplication. The wrapper takes the
// operand's span so diagnostics keep pointing at user code.
func (e *Exprs) NewDup(value ExprID) ExprID {
	span := source.NoSpan
	if v := e.Get(value); v != nil {
		span = v.Span
	}
	return e.new(ExprDup, span, e.Wraps.Allocate(ExprWrapData{Value: value}))
}

// Wrapped returns the operand of a try, await or dup expression.
func (e *Exprs) Wrapped(id ExprID) (ExprID, bool) {
	expr := e.Get(id)
	if expr == nil {
		return NoExprID, false
	}
	switch expr.Kind {
	case ExprTry, ExprAwait, ExprDup:
		return e.Wraps.Get(uint32(expr.Payload)).Value, true
	}
	return NoExprID, false
}
