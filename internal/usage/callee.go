package usage

import (
	"owninfer/internal/ast"
	"owninfer/internal/config"
	"owninfer/internal/source"
	"owninfer/internal/symbols"
)

// passUse is how an argument is used when passed with ownership o.
func passUse(o symbols.Ownership, reason MoveReason) use {
	switch o {
	case symbols.Borrowed:
		return readUse
	case symbols.MutBorrowed:
		return use{kind: useMutate}
	}
	return moveUse(reason)
}

// ownsResult reports whether a value moved for reason r must be owned. A
// reference bound or assigned to a local stays a reference.
func ownsResult(r MoveReason) bool {
	switch r {
	case MoveLet, MoveAssign:
		return false
	}
	return true
}

// unknownArg is the use of an argument to a callee with no signature.
func (a *analyzer) unknownArg() use {
	if a.pol.UnknownCallee == config.CalleeRead {
		return readUse
	}
	return moveUse(MoveArg)
}

func (a *analyzer) call(id ast.ExprID) {
	ex := a.b.Exprs
	d, _ := ex.Call(id)
	fn := ast.NoItemID
	if ident, ok := ex.Ident(d.Target); ok {
		if b := a.lookup(ident.Name); b != NoBindingID {
			a.record(b, readUse, d.Target, nil, ex.Get(d.Target).Span)
		} else if f, ok := a.ctx.Table.Fn(ident.Name); ok {
			fn = f
		}
	} else {
		a.expr(d.Target, readUse)
	}
	for i, arg := range d.Args {
		if fn != ast.NoItemID {
			a.expr(arg, passUse(a.ctx.CalleeParam(fn, i), MoveArg))
			continue
		}
		a.expr(arg, a.unknownArg())
	}
}

func (a *analyzer) methodCall(id ast.ExprID, u use) {
	ex := a.b.Exprs
	items := a.b.Items
	d, _ := ex.MethodCall(id)
	fn, sig := a.resolveMethod(d.Receiver, d.Method)

	recv := readUse
	args := make([]use, len(d.Args))
	switch {
	case fn != ast.NoItemID:
		decl, _ := items.Fn(fn)
		base := 0
		if len(decl.Params) > 0 {
			if p := items.Param(decl.Params[0]); p != nil && p.Self {
				recv = passUse(a.ctx.CalleeParam(fn, 0), MoveReceiver)
				base = 1
			}
		}
		for i := range args {
			args[i] = passUse(a.ctx.CalleeParam(fn, i+base), MoveArg)
		}
		if u.kind == useMove && ownsResult(u.reason) && a.isRefType(decl.Result) {
			a.res.RefResults = append(a.res.RefResults, RefResult{Expr: id, Span: ex.Get(id).Span, Method: d.Method})
		}
	case sig != nil:
		base := 0
		if sig.HasSelf() {
			recv = passUse(a.ctx.TraitParam(sig.Params[0]), MoveReceiver)
			base = 1
		}
		for i := range args {
			if i+base < len(sig.Params) {
				args[i] = passUse(a.ctx.TraitParam(sig.Params[i+base]), MoveArg)
			} else {
				args[i] = a.unknownArg()
			}
		}
	default:
		if a.pol.IsMutatingMethod(a.ctx.Unit.Name(d.Method)) {
			recv = use{kind: useMutate}
		}
		for i := range args {
			args[i] = a.unknownArg()
		}
	}
	if recv.kind == useMutate {
		recv.selfCall = true
	}
	a.expr(d.Receiver, recv)
	for i, arg := range d.Args {
		a.expr(arg, args[i])
	}
}

// resolveMethod finds the callee of a method call: by the receiver's
// nominal type when known, otherwise by a unique method or trait method of
// that name in the unit.
func (a *analyzer) resolveMethod(recv ast.ExprID, name source.StringID) (ast.ItemID, *symbols.MethodSig) {
	t := a.ctx.Table
	if owner := a.typeNameOf(recv); owner != source.NoStringID {
		if id, ok := t.Method(owner, name); ok {
			return id, nil
		}
		return ast.NoItemID, nil
	}
	if ids := t.MethodsNamed(name); len(ids) == 1 {
		return ids[0], nil
	}
	if sigs := t.TraitMethodsNamed(name); len(sigs) == 1 {
		return ast.NoItemID, sigs[0]
	}
	return ast.NoItemID, nil
}
