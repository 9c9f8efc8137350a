// Package testkit builds small compilation units for tests and checks
// structural invariants of the arenas they live in.
package testkit

import (
	"strconv"
	"strings"

	"owninfer/internal/ast"
	"owninfer/internal/source"
)

const (
	lineWidth = 64
	lineCount = 512
)

// Unit builds an ast.Unit node by node. Each node gets a fresh one-byte
// span in a synthetic file, so spans order nodes by allocation.
type Unit struct {
	U    *ast.Unit
	file source.FileID
	pos  uint32
}

func NewUnit() *Unit {
	u := ast.NewUnit(ast.Hints{})
	content := strings.Repeat(strings.Repeat(" ", lineWidth-1)+"\n", lineCount)
	file := u.Files.Add("unit.own", []byte(content), source.FileVirtual)
	return &Unit{U: u, file: file}
}

func (t *Unit) span() source.Span {
	if t.pos+2 >= lineWidth*lineCount {
		t.pos = 0
	}
	t.pos += 2
	return source.Span{File: t.file, Start: t.pos - 2, End: t.pos - 1}
}

// S interns name.
func (t *Unit) S(name string) source.StringID {
	return t.U.Strings.Intern(name)
}

func (t *Unit) ex() *ast.Exprs    { return t.U.AST.Exprs }
func (t *Unit) st() *ast.Stmts    { return t.U.AST.Stmts }
func (t *Unit) pt() *ast.Patterns { return t.U.AST.Patterns }
func (t *Unit) ty() *ast.Types    { return t.U.AST.Types }
func (t *Unit) items() *ast.Items { return t.U.AST.Items }

func (t *Unit) Id(name string) ast.ExprID {
	return t.ex().NewIdent(t.span(), t.S(name))
}

func (t *Unit) Int(v int) ast.ExprID {
	return t.ex().NewLiteral(t.span(), ast.LitInt, t.S(strconv.Itoa(v)))
}

func (t *Unit) Str(v string) ast.ExprID {
	return t.ex().NewLiteral(t.span(), ast.LitText, t.S(v))
}

func (t *Unit) Bool(v bool) ast.ExprID {
	return t.ex().NewLiteral(t.span(), ast.LitBool, t.S(strconv.FormatBool(v)))
}

// Call calls the function named fn.
func (t *Unit) Call(fn string, args ...ast.ExprID) ast.ExprID {
	return t.ex().NewCall(t.span(), t.Id(fn), args)
}

func (t *Unit) CallExpr(target ast.ExprID, args ...ast.ExprID) ast.ExprID {
	return t.ex().NewCall(t.span(), target, args)
}

// M is a method call.
func (t *Unit) M(recv ast.ExprID, method string, args ...ast.ExprID) ast.ExprID {
	return t.ex().NewMethodCall(t.span(), recv, t.S(method), args)
}

// F is a field access.
func (t *Unit) F(target ast.ExprID, field string) ast.ExprID {
	return t.ex().NewField(t.span(), target, t.S(field))
}

// Path builds a field chain from dotted text: "self.config.paths".
func (t *Unit) Path(dotted string) ast.ExprID {
	parts := strings.Split(dotted, ".")
	e := t.Id(parts[0])
	for _, p := range parts[1:] {
		e = t.F(e, p)
	}
	return e
}

func (t *Unit) Idx(target, index ast.ExprID) ast.ExprID {
	return t.ex().NewIndex(t.span(), target, index)
}

// Block is a block without a tail expression.
func (t *Unit) Block(stmts ...ast.StmtID) ast.ExprID {
	return t.ex().NewBlock(t.span(), stmts, ast.NoExprID)
}

// BlockT is a block whose value is tail.
func (t *Unit) BlockT(tail ast.ExprID, stmts ...ast.StmtID) ast.ExprID {
	return t.ex().NewBlock(t.span(), stmts, tail)
}

func (t *Unit) If(cond, then, els ast.ExprID) ast.ExprID {
	return t.ex().NewIf(t.span(), cond, then, els)
}

func (t *Unit) Match(scrutinee ast.ExprID, arms ...ast.MatchArm) ast.ExprID {
	return t.ex().NewMatch(t.span(), scrutinee, arms)
}

func (t *Unit) Arm(pat ast.PatternID, body ast.ExprID) ast.MatchArm {
	return ast.MatchArm{Pattern: pat, Body: body}
}

func (t *Unit) Closure(move bool, body ast.ExprID, params ...string) ast.ExprID {
	pats := make([]ast.PatternID, 0, len(params))
	for _, p := range params {
		pats = append(pats, t.PId(p))
	}
	return t.ex().NewClosure(t.span(), pats, body, move)
}

func (t *Unit) StructLit(name string, fields ...ast.FieldInit) ast.ExprID {
	return t.ex().NewStruct(t.span(), t.S(name), fields)
}

func (t *Unit) FI(name string, value ast.ExprID) ast.FieldInit {
	return ast.FieldInit{Name: t.S(name), Value: value}
}

func (t *Unit) Array(elems ...ast.ExprID) ast.ExprID {
	return t.ex().NewArray(t.span(), elems)
}

func (t *Unit) Tuple(elems ...ast.ExprID) ast.ExprID {
	return t.ex().NewTuple(t.span(), elems)
}

func (t *Unit) Macro(name string, args ...ast.ExprID) ast.ExprID {
	return t.ex().NewMacro(t.span(), t.S(name), args)
}

func (t *Unit) Bin(op ast.BinaryOp, l, r ast.ExprID) ast.ExprID {
	return t.ex().NewBinary(t.span(), op, l, r)
}

func (t *Unit) Ref(e ast.ExprID) ast.ExprID {
	return t.ex().NewUnary(t.span(), ast.UnRef, e)
}

func (t *Unit) RefMut(e ast.ExprID) ast.ExprID {
	return t.ex().NewUnary(t.span(), ast.UnRefMut, e)
}

func (t *Unit) Deref(e ast.ExprID) ast.ExprID {
	return t.ex().NewUnary(t.span(), ast.UnDeref, e)
}

func (t *Unit) Cast(e ast.ExprID, typ ast.TypeID) ast.ExprID {
	return t.ex().NewCast(t.span(), e, typ)
}

func (t *Unit) Range(start, end ast.ExprID) ast.ExprID {
	return t.ex().NewRange(t.span(), start, end, false)
}

func (t *Unit) Let(name string, value ast.ExprID) ast.StmtID {
	return t.st().NewLet(t.span(), t.PId(name), ast.NoTypeID, value, ast.NoExprID)
}

func (t *Unit) LetMut(name string, value ast.ExprID) ast.StmtID {
	return t.st().NewLet(t.span(), t.PMut(name), ast.NoTypeID, value, ast.NoExprID)
}

func (t *Unit) LetT(name string, typ ast.TypeID, value ast.ExprID) ast.StmtID {
	return t.st().NewLet(t.span(), t.PId(name), typ, value, ast.NoExprID)
}

func (t *Unit) LetPat(pat ast.PatternID, value ast.ExprID) ast.StmtID {
	return t.st().NewLet(t.span(), pat, ast.NoTypeID, value, ast.NoExprID)
}

func (t *Unit) Assign(target, value ast.ExprID) ast.StmtID {
	return t.st().NewAssign(t.span(), ast.AssignPlain, target, value)
}

func (t *Unit) OpAssign(op ast.AssignOp, target, value ast.ExprID) ast.StmtID {
	return t.st().NewAssign(t.span(), op, target, value)
}

// Do is an expression statement.
func (t *Unit) Do(e ast.ExprID) ast.StmtID {
	return t.st().NewExpr(t.span(), e)
}

func (t *Unit) Ret(e ast.ExprID) ast.StmtID {
	return t.st().NewReturn(t.span(), e)
}

func (t *Unit) While(cond ast.ExprID, body ...ast.StmtID) ast.StmtID {
	return t.st().NewWhile(t.span(), cond, t.Block(body...))
}

func (t *Unit) Loop(body ...ast.StmtID) ast.StmtID {
	return t.st().NewLoop(t.span(), t.Block(body...))
}

func (t *Unit) For(name string, iter ast.ExprID, body ...ast.StmtID) ast.StmtID {
	return t.st().NewFor(t.span(), t.PId(name), iter, t.Block(body...))
}

func (t *Unit) Break() ast.StmtID    { return t.st().NewBreak(t.span()) }
func (t *Unit) Continue() ast.StmtID { return t.st().NewContinue(t.span()) }

func (t *Unit) PId(name string) ast.PatternID {
	return t.pt().NewIdent(t.span(), t.S(name), false)
}

func (t *Unit) PMut(name string) ast.PatternID {
	return t.pt().NewIdent(t.span(), t.S(name), true)
}

func (t *Unit) PWild() ast.PatternID { return t.pt().NewWildcard(t.span()) }

func (t *Unit) PTuple(elems ...ast.PatternID) ast.PatternID {
	return t.pt().NewTuple(t.span(), elems)
}

func (t *Unit) PStruct(name string, fields ...ast.PatField) ast.PatternID {
	return t.pt().NewStruct(t.span(), t.S(name), fields, false)
}

func (t *Unit) PF(name string, pat ast.PatternID) ast.PatField {
	return ast.PatField{Name: t.S(name), Pattern: pat}
}

func (t *Unit) PVariant(name string, elems ...ast.PatternID) ast.PatternID {
	return t.pt().NewVariant(t.span(), t.S(name), elems)
}

func (t *Unit) TPrim(name string) ast.TypeID { return t.ty().NewPrim(t.span(), t.S(name)) }
func (t *Unit) TText() ast.TypeID            { return t.ty().NewText(t.span()) }
func (t *Unit) TSelf() ast.TypeID            { return t.ty().New(ast.TypeSelf, t.span(), ast.TypeData{}) }

func (t *Unit) TNamed(name string, args ...ast.TypeID) ast.TypeID {
	return t.ty().NewNamed(t.span(), t.S(name), args...)
}

func (t *Unit) TRef(elem ast.TypeID) ast.TypeID    { return t.ty().NewRef(t.span(), elem, false) }
func (t *Unit) TMutRef(elem ast.TypeID) ast.TypeID { return t.ty().NewRef(t.span(), elem, true) }

func (t *Unit) TTuple(elems ...ast.TypeID) ast.TypeID {
	return t.ty().NewTuple(t.span(), elems...)
}

func (t *Unit) TArray(elem ast.TypeID) ast.TypeID {
	return t.ty().New(ast.TypeArray, t.span(), ast.TypeData{Elems: []ast.TypeID{elem}})
}

// P is a parameter with an inferred ownership.
func (t *Unit) P(name string, typ ast.TypeID) ast.ParamID {
	return t.PH(name, typ, ast.HintInferred)
}

func (t *Unit) PH(name string, typ ast.TypeID, hint ast.OwnershipHint) ast.ParamID {
	return t.items().NewParam(ast.Param{Name: t.S(name), Type: typ, Hint: hint, Span: t.span()})
}

func (t *Unit) Self(hint ast.OwnershipHint) ast.ParamID {
	return t.items().NewParam(ast.Param{Name: t.S("self"), Type: t.TSelf(), Hint: hint, Self: true, Span: t.span()})
}

func Params(ps ...ast.ParamID) []ast.ParamID { return ps }

// Fn declares a root free function.
func (t *Unit) Fn(name string, params []ast.ParamID, body ast.ExprID) ast.ItemID {
	return t.FnR(name, params, ast.NoTypeID, body)
}

func (t *Unit) FnR(name string, params []ast.ParamID, result ast.TypeID, body ast.ExprID) ast.ItemID {
	id := t.items().NewFn(ast.FnDecl{Name: t.S(name), Params: params, Result: result, Body: body, Span: t.span()})
	t.U.AddRoot(id)
	return id
}

// Method declares a root method of owner, optionally implementing trait.
func (t *Unit) Method(owner, trait, name string, params []ast.ParamID, body ast.ExprID) ast.ItemID {
	id := t.ImplFn(owner, trait, name, params, ast.NoTypeID, body)
	t.U.AddRoot(id)
	return id
}

// ImplFn allocates a method for use inside Impl; it is not a root.
func (t *Unit) ImplFn(owner, trait, name string, params []ast.ParamID, result ast.TypeID, body ast.ExprID) ast.ItemID {
	decl := ast.FnDecl{Name: t.S(name), Params: params, Result: result, Body: body, Owner: t.S(owner), Span: t.span()}
	if trait != "" {
		decl.Trait = t.S(trait)
	}
	return t.items().NewFn(decl)
}

func (t *Unit) Impl(typeName, trait string, methods ...ast.ItemID) ast.ItemID {
	decl := ast.ImplDecl{Type: t.S(typeName), Methods: methods}
	if trait != "" {
		decl.Trait = t.S(trait)
	}
	id := t.items().NewImpl(t.span(), decl)
	t.U.AddRoot(id)
	return id
}

func (t *Unit) TM(name string, params ...ast.ParamID) ast.TraitMethod {
	return ast.TraitMethod{Name: t.S(name), Params: params, Span: t.span()}
}

func (t *Unit) Trait(name string, methods ...ast.TraitMethod) ast.ItemID {
	id := t.items().NewTrait(t.span(), ast.TraitDecl{Name: t.S(name), Methods: methods})
	t.U.AddRoot(id)
	return id
}

func (t *Unit) SF(name string, typ ast.TypeID) ast.StructField {
	return ast.StructField{Name: t.S(name), Type: typ}
}

func (t *Unit) Struct(name string, isCopy bool, fields ...ast.StructField) ast.ItemID {
	id := t.items().NewStruct(t.span(), ast.StructDecl{Name: t.S(name), Fields: fields, Copy: isCopy})
	t.U.AddRoot(id)
	return id
}

func (t *Unit) Enum(name string, isCopy bool, variants ...string) ast.ItemID {
	vs := make([]source.StringID, 0, len(variants))
	for _, v := range variants {
		vs = append(vs, t.S(v))
	}
	id := t.items().NewEnum(t.span(), ast.EnumDecl{Name: t.S(name), Variants: vs, Copy: isCopy})
	t.U.AddRoot(id)
	return id
}
