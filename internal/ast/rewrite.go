package ast

import "slices"

// Rewriter rebuilds an expression tree bottom-up. Nodes whose children are
// unchanged are returned as is, so only the spine above an edit is copied
// and the original tree stays intact.
type Rewriter struct {
	b *Builder
	// Post runs after a node's children were rewritten. orig is the node in
	// the source tree, cur the possibly rebuilt node. Its result replaces cur.
	Post func(orig, cur ExprID) ExprID
}

func NewRewriter(b *Builder, post func(orig, cur ExprID) ExprID) *Rewriter {
	return &Rewriter{b: b, Post: post}
}

func (r *Rewriter) post(orig, cur ExprID) ExprID {
	if r.Post == nil {
		return cur
	}
	return r.Post(orig, cur)
}

func (r *Rewriter) exprs(ids []ExprID) ([]ExprID, bool) {
	var out []ExprID
	for i, id := range ids {
		n := r.Expr(id)
		if n != id && out == nil {
			out = slices.Clone(ids)
		}
		if out != nil {
			out[i] = n
		}
	}
	if out == nil {
		return ids, false
	}
	return out, true
}

// Expr rewrites id and returns the replacement (id itself if untouched).
func (r *Rewriter) Expr(id ExprID) ExprID {
	if !id.IsValid() {
		return id
	}
	ex := r.b.Exprs
	expr := ex.Get(id)
	if expr == nil {
		return id
	}
	span := expr.Span
	cur := id
	switch expr.Kind {
	case ExprBinary:
		d, _ := ex.Binary(id)
		l, rt := r.Expr(d.Left), r.Expr(d.Right)
		if l != d.Left || rt != d.Right {
			cur = ex.NewBinary(span, d.Op, l, rt)
		}
	case ExprUnary:
		d, _ := ex.Unary(id)
		if o := r.Expr(d.Operand); o != d.Operand {
			cur = ex.NewUnary(span, d.Op, o)
		}
	case ExprCall:
		d, _ := ex.Call(id)
		t := r.Expr(d.Target)
		args, changed := r.exprs(d.Args)
		if changed || t != d.Target {
			cur = ex.NewCall(span, t, args)
		}
	case ExprMethodCall:
		d, _ := ex.MethodCall(id)
		recv := r.Expr(d.Receiver)
		args, changed := r.exprs(d.Args)
		if changed || recv != d.Receiver {
			cur = ex.NewMethodCall(span, recv, d.Method, args)
		}
	case ExprField:
		d, _ := ex.Field(id)
		if t := r.Expr(d.Target); t != d.Target {
			cur = ex.NewField(span, t, d.Field)
		}
	case ExprIndex:
		d, _ := ex.Index(id)
		t, i := r.Expr(d.Target), r.Expr(d.Index)
		if t != d.Target || i != d.Index {
			cur = ex.NewIndex(span, t, i)
		}
	case ExprBlock:
		d, _ := ex.Block(id)
		var stmts []StmtID
		for i, s := range d.Stmts {
			n := r.Stmt(s)
			if n != s && stmts == nil {
				stmts = slices.Clone(d.Stmts)
			}
			if stmts != nil {
				stmts[i] = n
			}
		}
		tail := r.Expr(d.Tail)
		if stmts != nil || tail != d.Tail {
			if stmts == nil {
				stmts = d.Stmts
			}
			cur = ex.NewBlock(span, stmts, tail)
		}
	case ExprIf:
		d, _ := ex.If(id)
		c, t, e := r.Expr(d.Cond), r.Expr(d.Then), r.Expr(d.Else)
		if c != d.Cond || t != d.Then || e != d.Else {
			cur = ex.NewIf(span, c, t, e)
		}
	case ExprMatch:
		d, _ := ex.Match(id)
		s := r.Expr(d.Scrutinee)
		arms := slices.Clone(d.Arms)
		changed := s != d.Scrutinee
		for i := range arms {
			g, b := r.Expr(arms[i].Guard), r.Expr(arms[i].Body)
			if g != arms[i].Guard || b != arms[i].Body {
				arms[i].Guard, arms[i].Body = g, b
				changed = true
			}
		}
		if changed {
			cur = ex.NewMatch(span, s, arms)
		}
	case ExprClosure:
		d, _ := ex.Closure(id)
		if b := r.Expr(d.Body); b != d.Body {
			cur = ex.NewClosure(span, d.Params, b, d.Move)
		}
	case ExprStruct:
		d, _ := ex.Struct(id)
		fields := slices.Clone(d.Fields)
		changed := false
		for i := range fields {
			if v := r.Expr(fields[i].Value); v != fields[i].Value {
				fields[i].Value = v
				changed = true
			}
		}
		if changed {
			cur = ex.NewStruct(span, d.Name, fields)
		}
	case ExprArray, ExprTuple:
		d, _ := ex.List(id)
		if elems, changed := r.exprs(d.Elems); changed {
			if expr.Kind == ExprArray {
				cur = ex.NewArray(span, elems)
			} else {
				cur = ex.NewTuple(span, elems)
			}
		}
	case ExprMap:
		d, _ := ex.Map(id)
		entries := slices.Clone(d.Entries)
		changed := false
		for i := range entries {
			k, v := r.Expr(entries[i].Key), r.Expr(entries[i].Value)
			if k != entries[i].Key || v != entries[i].Value {
				entries[i].Key, entries[i].Value = k, v
				changed = true
			}
		}
		if changed {
			cur = ex.NewMap(span, entries)
		}
	case ExprMacro:
		d, _ := ex.Macro(id)
		if args, changed := r.exprs(d.Args); changed {
			cur = ex.NewMacro(span, d.Name, args)
		}
	case ExprCast:
		d, _ := ex.Cast(id)
		if v := r.Expr(d.Value); v != d.Value {
			cur = ex.NewCast(span, v, d.Type)
		}
	case ExprRange:
		d, _ := ex.Range(id)
		s, e := r.Expr(d.Start), r.Expr(d.End)
		if s != d.Start || e != d.End {
			cur = ex.NewRange(span, s, e, d.Inclusive)
		}
	case ExprTry, ExprAwait:
		v, _ := ex.Wrapped(id)
		if n := r.Expr(v); n != v {
			if expr.Kind == ExprTry {
				cur = ex.NewTry(span, n)
			} else {
				cur = ex.NewAwait(span, n)
			}
		}
	case ExprDup:
		// Already duplicated; the operand is not revisited.
		return id
	}
	return r.post(id, cur)
}

// Stmt rewrites the expressions held by a statement.
func (r *Rewriter) Stmt(id StmtID) StmtID {
	st := r.b.Stmts
	stmt := st.Get(id)
	if stmt == nil {
		return id
	}
	span := stmt.Span
	switch stmt.Kind {
	case StmtLet:
		d, _ := st.Let(id)
		v, e := r.Expr(d.Value), r.Expr(d.Else)
		if v != d.Value || e != d.Else {
			return st.NewLet(span, d.Pattern, d.Type, v, e)
		}
	case StmtAssign:
		d, _ := st.Assign(id)
		t, v := r.Expr(d.Target), r.Expr(d.Value)
		if t != d.Target || v != d.Value {
			return st.NewAssign(span, d.Op, t, v)
		}
	case StmtExpr, StmtReturn:
		e, _ := st.ExprOf(id)
		if n := r.Expr(e); n != e {
			if stmt.Kind == StmtExpr {
				return st.NewExpr(span, n)
			}
			return st.NewReturn(span, n)
		}
	case StmtWhile, StmtLoop:
		d, _ := st.Loop(id)
		c, b := r.Expr(d.Cond), r.Expr(d.Body)
		if c != d.Cond || b != d.Body {
			if stmt.Kind == StmtWhile {
				return st.NewWhile(span, c, b)
			}
			return st.NewLoop(span, b)
		}
	case StmtFor:
		d, _ := st.For(id)
		it, b := r.Expr(d.Iterable), r.Expr(d.Body)
		if it != d.Iterable || b != d.Body {
			return st.NewFor(span, d.Pattern, it, b)
		}
	}
	return id
}
