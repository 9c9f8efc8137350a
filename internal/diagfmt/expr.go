package diagfmt

import (
	"strings"

	"owninfer/internal/ast"
)

const exprInlineMaxDepth = 32

// FormatExpr renders an expression on one line in surface syntax. Inserted
// duplications show as dup(...). Used by `owninfer explain` and by tests.
func FormatExpr(u *ast.Unit, id ast.ExprID) string {
	var b strings.Builder
	p := inlinePrinter{u: u, b: &b}
	p.expr(id, 0)
	return b.String()
}

// FormatType renders a written type; empty for NoTypeID.
func FormatType(u *ast.Unit, id ast.TypeID) string {
	var b strings.Builder
	p := inlinePrinter{u: u, b: &b}
	p.typ(id)
	return b.String()
}

type inlinePrinter struct {
	u *ast.Unit
	b *strings.Builder
}

func (p inlinePrinter) w(s ...string) {
	for _, x := range s {
		p.b.WriteString(x)
	}
}

func (p inlinePrinter) list(ids []ast.ExprID, depth int) {
	for i, id := range ids {
		if i > 0 {
			p.w(", ")
		}
		p.expr(id, depth+1)
	}
}

func (p inlinePrinter) expr(id ast.ExprID, depth int) {
	if !id.IsValid() {
		return
	}
	if depth >= exprInlineMaxDepth {
		p.w("...")
		return
	}
	ex := p.u.AST.Exprs
	e := ex.Get(id)
	if e == nil {
		p.w("<invalid>")
		return
	}
	switch e.Kind {
	case ast.ExprIdent:
		d, _ := ex.Ident(id)
		p.w(p.u.Name(d.Name))
	case ast.ExprLit:
		d, _ := ex.Literal(id)
		switch d.Kind {
		case ast.LitText:
			p.w(`"`, p.u.Name(d.Value), `"`)
		case ast.LitChar:
			p.w("'", p.u.Name(d.Value), "'")
		case ast.LitUnit:
			p.w("()")
		default:
			p.w(p.u.Name(d.Value))
		}
	case ast.ExprBinary:
		d, _ := ex.Binary(id)
		p.w("(")
		p.expr(d.Left, depth+1)
		p.w(" ", d.Op.String(), " ")
		p.expr(d.Right, depth+1)
		p.w(")")
	case ast.ExprUnary:
		d, _ := ex.Unary(id)
		p.w(d.Op.String())
		if d.Op == ast.UnRefMut {
			p.w(" ")
		}
		p.expr(d.Operand, depth+1)
	case ast.ExprCall:
		d, _ := ex.Call(id)
		p.expr(d.Target, depth+1)
		p.w("(")
		p.list(d.Args, depth)
		p.w(")")
	case ast.ExprMethodCall:
		d, _ := ex.MethodCall(id)
		p.expr(d.Receiver, depth+1)
		p.w(".", p.u.Name(d.Method), "(")
		p.list(d.Args, depth)
		p.w(")")
	case ast.ExprField:
		d, _ := ex.Field(id)
		p.expr(d.Target, depth+1)
		p.w(".", p.u.Name(d.Field))
	case ast.ExprIndex:
		d, _ := ex.Index(id)
		p.expr(d.Target, depth+1)
		p.w("[")
		p.expr(d.Index, depth+1)
		p.w("]")
	case ast.ExprBlock:
		d, _ := ex.Block(id)
		p.w("{")
		for _, s := range d.Stmts {
			p.w(" ")
			p.stmt(s, depth+1)
			p.w(";")
		}
		if d.Tail.IsValid() {
			p.w(" ")
			p.expr(d.Tail, depth+1)
		}
		p.w(" }")
	case ast.ExprIf:
		d, _ := ex.If(id)
		p.w("if ")
		p.expr(d.Cond, depth+1)
		p.w(" ")
		p.expr(d.Then, depth+1)
		if d.Else.IsValid() {
			p.w(" else ")
			p.expr(d.Else, depth+1)
		}
	case ast.ExprMatch:
		d, _ := ex.Match(id)
		p.w("match ")
		p.expr(d.Scrutinee, depth+1)
		p.w(" {")
		for i, arm := range d.Arms {
			if i > 0 {
				p.w(",")
			}
			p.w(" ")
			p.pattern(arm.Pattern)
			if arm.Guard.IsValid() {
				p.w(" if ")
				p.expr(arm.Guard, depth+1)
			}
			p.w(" => ")
			p.expr(arm.Body, depth+1)
		}
		p.w(" }")
	case ast.ExprClosure:
		d, _ := ex.Closure(id)
		if d.Move {
			p.w("move ")
		}
		p.w("|")
		for i, pat := range d.Params {
			if i > 0 {
				p.w(", ")
			}
			p.pattern(pat)
		}
		p.w("| ")
		p.expr(d.Body, depth+1)
	case ast.ExprStruct:
		d, _ := ex.Struct(id)
		p.w(p.u.Name(d.Name), " {")
		for i, f := range d.Fields {
			if i > 0 {
				p.w(",")
			}
			p.w(" ", p.u.Name(f.Name), ": ")
			p.expr(f.Value, depth+1)
		}
		p.w(" }")
	case ast.ExprArray:
		d, _ := ex.List(id)
		p.w("[")
		p.list(d.Elems, depth)
		p.w("]")
	case ast.ExprTuple:
		d, _ := ex.List(id)
		p.w("(")
		p.list(d.Elems, depth)
		p.w(")")
	case ast.ExprMap:
		d, _ := ex.Map(id)
		p.w("{")
		for i, en := range d.Entries {
			if i > 0 {
				p.w(",")
			}
			p.w(" ")
			p.expr(en.Key, depth+1)
			p.w(": ")
			p.expr(en.Value, depth+1)
		}
		p.w(" }")
	case ast.ExprMacro:
		d, _ := ex.Macro(id)
		p.w(p.u.Name(d.Name), "!(")
		p.list(d.Args, depth)
		p.w(")")
	case ast.ExprCast:
		d, _ := ex.Cast(id)
		p.expr(d.Value, depth+1)
		p.w(" as ")
		p.typ(d.Type)
	case ast.ExprRange:
		d, _ := ex.Range(id)
		p.expr(d.Start, depth+1)
		if d.Inclusive {
			p.w("..=")
		} else {
			p.w("..")
		}
		p.expr(d.End, depth+1)
	case ast.ExprTry:
		v, _ := ex.Wrapped(id)
		p.expr(v, depth+1)
		p.w("?")
	case ast.ExprAwait:
		v, _ := ex.Wrapped(id)
		p.expr(v, depth+1)
		p.w(".await")
	case ast.ExprDup:
		v, _ := ex.Wrapped(id)
		p.w("dup(")
		p.expr(v, depth+1)
		p.w(")")
	}
}

func (p inlinePrinter) stmt(id ast.StmtID, depth int) {
	st := p.u.AST.Stmts
	s := st.Get(id)
	if s == nil {
		return
	}
	switch s.Kind {
	case ast.StmtLet:
		d, _ := st.Let(id)
		p.w("let ")
		p.pattern(d.Pattern)
		if d.Type.IsValid() {
			p.w(": ")
			p.typ(d.Type)
		}
		if d.Value.IsValid() {
			p.w(" = ")
			p.expr(d.Value, depth)
		}
		if d.Else.IsValid() {
			p.w(" else ")
			p.expr(d.Else, depth)
		}
	case ast.StmtAssign:
		d, _ := st.Assign(id)
		p.expr(d.Target, depth)
		p.w(" ", d.Op.String(), " ")
		p.expr(d.Value, depth)
	case ast.StmtExpr:
		e, _ := st.ExprOf(id)
		p.expr(e, depth)
	case ast.StmtReturn:
		e, _ := st.ExprOf(id)
		p.w("return")
		if e.IsValid() {
			p.w(" ")
			p.expr(e, depth)
		}
	case ast.StmtWhile:
		d, _ := st.Loop(id)
		p.w("while ")
		p.expr(d.Cond, depth)
		p.w(" ")
		p.expr(d.Body, depth)
	case ast.StmtLoop:
		d, _ := st.Loop(id)
		p.w("loop ")
		p.expr(d.Body, depth)
	case ast.StmtFor:
		d, _ := st.For(id)
		p.w("for ")
		p.pattern(d.Pattern)
		p.w(" in ")
		p.expr(d.Iterable, depth)
		p.w(" ")
		p.expr(d.Body, depth)
	case ast.StmtBreak:
		p.w("break")
	case ast.StmtContinue:
		p.w("continue")
	}
}

func (p inlinePrinter) pattern(id ast.PatternID) {
	pt := p.u.AST.Patterns
	pat := pt.Get(id)
	if pat == nil {
		return
	}
	switch pat.Kind {
	case ast.PatWildcard:
		p.w("_")
	case ast.PatIdent:
		d, _ := pt.Ident(id)
		if d.ByRef {
			p.w("ref ")
		}
		if d.Mut {
			p.w("mut ")
		}
		p.w(p.u.Name(d.Name))
	case ast.PatLit:
		d := pt.Literals.Get(uint32(pat.Payload))
		p.w(p.u.Name(d.Value))
	case ast.PatTuple, ast.PatOr:
		d, _ := pt.List(id)
		sep := ", "
		if pat.Kind == ast.PatOr {
			sep = " | "
		} else {
			p.w("(")
		}
		for i, e := range d.Elems {
			if i > 0 {
				p.w(sep)
			}
			p.pattern(e)
		}
		if pat.Kind == ast.PatTuple {
			p.w(")")
		}
	case ast.PatStruct:
		d, _ := pt.Struct(id)
		p.w(p.u.Name(d.Name), " {")
		for i, f := range d.Fields {
			if i > 0 {
				p.w(",")
			}
			p.w(" ", p.u.Name(f.Name), ": ")
			p.pattern(f.Pattern)
		}
		if d.Rest {
			p.w(", ..")
		}
		p.w(" }")
	case ast.PatVariant:
		d, _ := pt.Variant(id)
		p.w(p.u.Name(d.Name), "(")
		for i, e := range d.Elems {
			if i > 0 {
				p.w(", ")
			}
			p.pattern(e)
		}
		p.w(")")
	}
}

func (p inlinePrinter) typ(id ast.TypeID) {
	t, d, ok := p.u.AST.Types.Lookup(id)
	if !ok {
		return
	}
	elems := func(open, close string) {
		p.w(open)
		for i, e := range d.Elems {
			if i > 0 {
				p.w(", ")
			}
			p.typ(e)
		}
		p.w(close)
	}
	switch t.Kind {
	case ast.TypePrim, ast.TypeNamed:
		p.w(p.u.Name(d.Name))
		if len(d.Elems) > 0 {
			elems("<", ">")
		}
	case ast.TypeGeneric:
		p.w(p.u.Name(d.Name))
	case ast.TypeText:
		p.w("string")
	case ast.TypeRef, ast.TypeMutRef:
		if t.Kind == ast.TypeRef {
			p.w("&")
		} else {
			p.w("&mut ")
		}
		if len(d.Elems) > 0 {
			p.typ(d.Elems[0])
		}
	case ast.TypeTuple:
		elems("(", ")")
	case ast.TypeArray:
		p.w("[")
		if len(d.Elems) > 0 {
			p.typ(d.Elems[0])
		}
		p.w("]")
	case ast.TypeSelf:
		p.w("Self")
	case ast.TypeInfer:
		p.w("_")
	case ast.TypeFn:
		p.w("fn")
		elems("(", ")")
	}
}
