package ast

// Inspect walks the expression tree rooted at id in evaluation order,
// descending into statements and dup operands. visit is called before a
// node's children; returning false skips them.
func Inspect(b *Builder, id ExprID, visit func(id ExprID, e *Expr) bool) {
	w := inspector{b: b, visit: visit}
	w.expr(id)
}

type inspector struct {
	b     *Builder
	visit func(ExprID, *Expr) bool
}

func (w *inspector) exprs(ids []ExprID) {
	for _, id := range ids {
		w.expr(id)
	}
}

func (w *inspector) expr(id ExprID) {
	ex := w.b.Exprs
	e := ex.Get(id)
	if e == nil || !w.visit(id, e) {
		return
	}
	switch e.Kind {
	case ExprBinary:
		d, _ := ex.Binary(id)
		w.expr(d.Left)
		w.expr(d.Right)
	case ExprUnary:
		d, _ := ex.Unary(id)
		w.expr(d.Operand)
	case ExprCall:
		d, _ := ex.Call(id)
		w.expr(d.Target)
		w.exprs(d.Args)
	case ExprMethodCall:
		d, _ := ex.MethodCall(id)
		w.expr(d.Receiver)
		w.exprs(d.Args)
	case ExprField:
		d, _ := ex.Field(id)
		w.expr(d.Target)
	case ExprIndex:
		d, _ := ex.Index(id)
		w.expr(d.Target)
		w.expr(d.Index)
	case ExprBlock:
		d, _ := ex.Block(id)
		for _, s := range d.Stmts {
			w.stmt(s)
		}
		w.expr(d.Tail)
	case ExprIf:
		d, _ := ex.If(id)
		w.expr(d.Cond)
		w.expr(d.Then)
		w.expr(d.Else)
	case ExprMatch:
		d, _ := ex.Match(id)
		w.expr(d.Scrutinee)
		for _, arm := range d.Arms {
			w.expr(arm.Guard)
			w.expr(arm.Body)
		}
	case ExprClosure:
		d, _ := ex.Closure(id)
		w.expr(d.Body)
	case ExprStruct:
		d, _ := ex.Struct(id)
		for _, f := range d.Fields {
			w.expr(f.Value)
		}
	case ExprArray, ExprTuple:
		d, _ := ex.List(id)
		w.exprs(d.Elems)
	case ExprMap:
		d, _ := ex.Map(id)
		for _, en := range d.Entries {
			w.expr(en.Key)
			w.expr(en.Value)
		}
	case ExprMacro:
		d, _ := ex.Macro(id)
		w.exprs(d.Args)
	case ExprCast:
		d, _ := ex.Cast(id)
		w.expr(d.Value)
	case ExprRange:
		d, _ := ex.Range(id)
		w.expr(d.Start)
		w.expr(d.End)
	case ExprTry, ExprAwait, ExprDup:
		v, _ := ex.Wrapped(id)
		w.expr(v)
	}
}

func (w *inspector) stmt(id StmtID) {
	st := w.b.Stmts
	s := st.Get(id)
	if s == nil {
		return
	}
	switch s.Kind {
	case StmtLet:
		d, _ := st.Let(id)
		w.expr(d.Value)
		w.expr(d.Else)
	case StmtAssign:
		d, _ := st.Assign(id)
		w.expr(d.Value)
		w.expr(d.Target)
	case StmtExpr, StmtReturn:
		e, _ := st.ExprOf(id)
		w.expr(e)
	case StmtWhile, StmtLoop:
		d, _ := st.Loop(id)
		w.expr(d.Cond)
		w.expr(d.Body)
	case StmtFor:
		d, _ := st.For(id)
		w.expr(d.Iterable)
		w.expr(d.Body)
	}
}
