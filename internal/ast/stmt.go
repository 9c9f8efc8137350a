package ast

import (
	"owninfer/internal/source"
)

type StmtKind uint8

const (
	StmtLet StmtKind = iota
	StmtAssign
	StmtExpr
	StmtReturn
	StmtWhile
	StmtLoop
	StmtFor
	StmtBreak
	StmtContinue
)

func (k StmtKind) String() string {
	switch k {
	case StmtLet:
		return "let"
	case StmtAssign:
		return "assign"
	case StmtExpr:
		return "expr"
	case StmtReturn:
		return "return"
	case StmtWhile:
		return "while"
	case StmtLoop:
		return "loop"
	case StmtFor:
		return "for"
	case StmtBreak:
		return "break"
	case StmtContinue:
		return "continue"
	default:
		return "?"
	}
}

type Stmt struct {
	Kind    StmtKind
	Span    source.Span
	Payload PayloadID
}

// AssignOp is the operator of an assignment statement; AssignPlain is `=`.
type AssignOp uint8

const (
	AssignPlain AssignOp = iota
	AssignAdd
	AssignSub
	AssignMul
	AssignDiv
	AssignRem
)

func (op AssignOp) String() string {
	switch op {
	case AssignPlain:
		return "="
	case AssignAdd:
		return "+="
	case AssignSub:
		return "-="
	case AssignMul:
		return "*="
	case AssignDiv:
		return "/="
	case AssignRem:
		return "%="
	default:
		return "?"
	}
}

type StmtLetData struct {
	Pattern PatternID
	Type    TypeID // NoTypeID if inferred
	Value   ExprID // NoExprID if uninitialised
	Else    ExprID // let-else block, NoExprID if absent
}

type StmtAssignData struct {
	Target ExprID
	Value  ExprID
	Op     AssignOp
}

// StmtExprData backs expression and return statements.
type StmtExprData struct {
	Expr ExprID
}

// StmtLoopData backs while and loop; Cond is NoExprID for loop.
type StmtLoopData struct {
	Cond ExprID
	Body ExprID
}

type StmtForData struct {
	Pattern  PatternID
	Iterable ExprID
	Body     ExprID
}

type Stmts struct {
	Arena   *Arena[Stmt]
	Lets    *Arena[StmtLetData]
	Assigns *Arena[StmtAssignData]
	Exprs   *Arena[StmtExprData]
	Loops   *Arena[StmtLoopData]
	Fors    *Arena[StmtForData]
}

func NewStmts(capHint uint) *Stmts {
	if capHint == 0 {
		capHint = 1 << 8
	}
	return &Stmts{
		Arena:   NewArena[Stmt](capHint),
		Lets:    NewArena[StmtLetData](capHint),
		Assigns: NewArena[StmtAssignData](capHint),
		Exprs:   NewArena[StmtExprData](capHint),
		Loops:   NewArena[StmtLoopData](capHint),
		Fors:    NewArena[StmtForData](capHint),
	}
}

func (s *Stmts) new(kind StmtKind, span source.Span, payload uint32) StmtID {
	return StmtID(s.Arena.Allocate(Stmt{Kind: kind, Span: span, Payload: PayloadID(payload)}))
}

func (s *Stmts) Get(id StmtID) *Stmt {
	return s.Arena.Get(uint32(id))
}

func (s *Stmts) NewLet(span source.Span, pat PatternID, typ TypeID, value, els ExprID) StmtID {
	return s.new(StmtLet, span, s.Lets.Allocate(StmtLetData{Pattern: pat, Type: typ, Value: value, Else: els}))
}

func (s *Stmts) Let(id StmtID) (*StmtLetData, bool) {
	st := s.Get(id)
	if st == nil || st.Kind != StmtLet {
		return nil, false
	}
	return s.Lets.Get(uint32(st.Payload)), true
}

func (s *Stmts) NewAssign(span source.Span, op AssignOp, target, value ExprID) StmtID {
	return s.new(StmtAssign, span, s.Assigns.Allocate(StmtAssignData{Target: target, Value: value, Op: op}))
}

func (s *Stmts) Assign(id StmtID) (*StmtAssignData, bool) {
	st := s.Get(id)
	if st == nil || st.Kind != StmtAssign {
		return nil, false
	}
	return s.Assigns.Get(uint32(st.Payload)), true
}

func (s *Stmts) NewExpr(span source.Span, expr ExprID) StmtID {
	return s.new(StmtExpr, span, s.Exprs.Allocate(StmtExprData{Expr: expr}))
}

// NewReturn creates a return statement; value may be NoExprID.
func (s *Stmts) NewReturn(span source.Span, value ExprID) StmtID {
	return s.new(StmtReturn, span, s.Exprs.Allocate(StmtExprData{Expr: value}))
}

// ExprOf returns the expression of an expression or return statement.
func (s *Stmts) ExprOf(id StmtID) (ExprID, bool) {
	st := s.Get(id)
	if st == nil || (st.Kind != StmtExpr && st.Kind != StmtReturn) {
		return NoExprID, false
	}
	return s.Exprs.Get(uint32(st.Payload)).Expr, true
}

func (s *Stmts) NewWhile(span source.Span, cond, body ExprID) StmtID {
	return s.new(StmtWhile, span, s.Loops.Allocate(StmtLoopData{Cond: cond, Body: body}))
}

func (s *Stmts) NewLoop(span source.Span, body ExprID) StmtID {
	return s.new(StmtLoop, span, s.Loops.Allocate(StmtLoopData{Body: body}))
}

func (s *Stmts) Loop(id StmtID) (*StmtLoopData, bool) {
	st := s.Get(id)
	if st == nil || (st.Kind != StmtWhile && st.Kind != StmtLoop) {
		return nil, false
	}
	return s.Loops.Get(uint32(st.Payload)), true
}

func (s *Stmts) NewFor(span source.Span, pat PatternID, iterable, body ExprID) StmtID {
	return s.new(StmtFor, span, s.Fors.Allocate(StmtForData{Pattern: pat, Iterable: iterable, Body: body}))
}

func (s *Stmts) For(id StmtID) (*StmtForData, bool) {
	st := s.Get(id)
	if st == nil || st.Kind != StmtFor {
		return nil, false
	}
	return s.Fors.Get(uint32(st.Payload)), true
}

func (s *Stmts) NewBreak(span source.Span) StmtID {
	return s.new(StmtBreak, span, 0)
}

func (s *Stmts) NewContinue(span source.Span) StmtID {
	return s.new(StmtContinue, span, 0)
}
