package usage

import (
	"slices"
	"strconv"

	"owninfer/internal/ast"
)

// stmt analyses one statement of the block whose occurrences start at
// blockStart; break and return mark those occurrences as exiting.
func (a *analyzer) stmt(id ast.StmtID, blockStart int) {
	st := a.b.Stmts
	s := st.Get(id)
	if s == nil {
		return
	}
	switch s.Kind {
	case ast.StmtLet:
		a.let(id)
	case ast.StmtAssign:
		a.assign(id)
	case ast.StmtExpr:
		e, _ := st.ExprOf(id)
		a.expr(e, readUse)
	case ast.StmtReturn:
		e, _ := st.ExprOf(id)
		reason := MoveReturn
		if a.closure() != 0 {
			reason = MoveClosureResult
		}
		a.expr(e, moveUse(reason))
		a.exit(blockStart, true)
	case ast.StmtWhile, ast.StmtLoop:
		d, _ := st.Loop(id)
		a.inLoop(s.Span, false, func() {
			a.expr(d.Cond, readUse)
			a.expr(d.Body, readUse)
		})
	case ast.StmtFor:
		d, _ := st.For(id)
		a.expr(d.Iterable, readUse)
		a.inLoop(s.Span, false, func() {
			a.push()
			a.bindPattern(d.Pattern, BindLoopVar, nil, nil)
			a.expr(d.Body, readUse)
			a.pop()
		})
	case ast.StmtBreak:
		a.exit(blockStart, false)
	case ast.StmtContinue:
	}
}

// exit attaches a break (innermost loop) or return (every loop up to the
// enclosing closure) to the occurrences recorded since blockStart. An
// occurrence keeps the first exit it meets: a nested block that already
// exits never falls through to this one.
func (a *analyzer) exit(blockStart int, ret bool) {
	e := &Exit{At: a.ordinal}
	if ret {
		for i := len(a.loops) - 1; i >= 0; i-- {
			if a.res.Loop(a.loops[i]).Closure {
				break
			}
			e.Loops = append(e.Loops, a.loops[i])
		}
		e.Fn = a.closure() == 0
	} else if n := len(a.loops); n > 0 && !a.res.Loop(a.loops[n-1]).Closure {
		e.Loops = append(e.Loops, a.loops[n-1])
	}
	for i := blockStart; i < len(a.res.Occurrences); i++ {
		if o := &a.res.Occurrences[i]; o.Exit == nil {
			o.Exit = e
		}
	}
}

func (a *analyzer) let(id ast.StmtID) {
	d, _ := a.b.Stmts.Let(id)
	pat := a.b.Patterns
	ident, simple := pat.Ident(d.Pattern)
	if simple && !ident.ByRef {
		a.expr(d.Value, moveUse(MoveLet))
		closureOf := ClosureID(0)
		if e := a.b.Exprs.Get(d.Value); e != nil && e.Kind == ast.ExprClosure {
			closureOf = a.lastClosure
		}
		a.letElse(d.Else)
		typ, name, isCopy := a.exprType(d.Value)
		if d.Type != ast.NoTypeID {
			typ, name = d.Type, 0
			isCopy = a.ctx.Table.IsCopyType(a.b.Types, d.Type, a.owner)
		}
		b := a.declare(ident.Name, BindLocal, pat.Get(d.Pattern).Span)
		bind := a.res.Binding(b)
		bind.Mut = ident.Mut
		bind.ClosureOf = closureOf
		bind.Type, bind.TypeName, bind.Copy = typ, name, isCopy
		return
	}
	var src *Source
	if d.Value != ast.NoExprID {
		src = a.destructure(d.Value)
	}
	a.letElse(d.Else)
	a.bindPattern(d.Pattern, BindPattern, src, nil)
}

func (a *analyzer) letElse(els ast.ExprID) {
	if els == ast.NoExprID {
		return
	}
	a.inArm(els, 0, func() { a.expr(els, readUse) })
}

func (a *analyzer) assign(id ast.StmtID) {
	d, _ := a.b.Stmts.Assign(id)
	_, path, isPlace := a.peekPlace(d.Target)
	if d.Op != ast.AssignPlain {
		a.expr(d.Value, use{kind: useRead, ambiguous: true})
		a.place(d.Target, use{kind: useMutate})
		return
	}
	value := moveUse(MoveAssign)
	if !isPlace || len(path) > 0 {
		value = moveUse(MoveStore)
	}
	a.expr(d.Value, value)
	if isPlace {
		a.place(d.Target, use{kind: useAssign})
		return
	}
	a.expr(d.Target, use{kind: useMutate})
}

// bindPattern declares every identifier bound by pid. src is the place the
// pattern takes apart and path the position of pid inside it.
func (a *analyzer) bindPattern(pid ast.PatternID, kind BindingKind, src *Source, path Path) {
	pat := a.b.Patterns
	p := pat.Get(pid)
	if p == nil {
		return
	}
	switch p.Kind {
	case ast.PatIdent:
		d, _ := pat.Ident(pid)
		id := a.declare(d.Name, kind, p.Span)
		bind := a.res.Binding(id)
		bind.Mut = d.Mut
		bind.ByRef = d.ByRef || kind == BindLoopVar
		if src != nil {
			full := append(slices.Clone(src.Path), path...)
			bind.From = &Source{Root: src.Root, Path: full, Ordinal: src.Ordinal, Span: src.Span}
			bind.Type, bind.TypeName = a.pathType(src.Root, full)
			bind.Copy = a.pathCopy(src.Root, full)
		}
	case ast.PatTuple:
		d, _ := pat.List(pid)
		for i, el := range d.Elems {
			a.bindPattern(el, kind, src, a.sub(path, strconv.Itoa(i)))
		}
	case ast.PatVariant:
		d, _ := pat.Variant(pid)
		for i, el := range d.Elems {
			a.bindPattern(el, kind, src, a.sub(path, strconv.Itoa(i)))
		}
	case ast.PatStruct:
		d, _ := pat.Struct(pid)
		for _, f := range d.Fields {
			a.bindPattern(f.Pattern, kind, src, append(slices.Clone(path), PathElem{Name: f.Name}))
		}
	case ast.PatOr:
		// Every alternative binds the same names; the first one declares them.
		if d, _ := pat.List(pid); len(d.Elems) > 0 {
			a.bindPattern(d.Elems[0], kind, src, path)
		}
	}
}

func (a *analyzer) sub(path Path, field string) Path {
	return append(slices.Clone(path), PathElem{Name: a.ctx.Unit.Strings.Intern(field)})
}
