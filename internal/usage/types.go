package usage

import (
	"strconv"

	"owninfer/internal/ast"
	"owninfer/internal/source"
)

// named returns the nominal type name of typ, looking through references
// and resolving Self to the impl owner.
func (a *analyzer) named(typ ast.TypeID) source.StringID {
	t, d, ok := a.b.Types.Lookup(typ)
	if !ok {
		return source.NoStringID
	}
	switch t.Kind {
	case ast.TypeNamed:
		return d.Name
	case ast.TypeRef, ast.TypeMutRef:
		if len(d.Elems) > 0 {
			return a.named(d.Elems[0])
		}
	case ast.TypeSelf:
		return a.owner
	}
	return source.NoStringID
}

func (a *analyzer) isRefType(typ ast.TypeID) bool {
	t, _, ok := a.b.Types.Lookup(typ)
	return ok && (t.Kind == ast.TypeRef || t.Kind == ast.TypeMutRef)
}

// pathType walks path from the root binding's declared type. Unknown steps
// yield NoTypeID.
func (a *analyzer) pathType(root BindingID, path Path) (ast.TypeID, source.StringID) {
	bind := a.res.Binding(root)
	if bind == nil {
		return ast.NoTypeID, source.NoStringID
	}
	typ, name := bind.Type, bind.TypeName
	for _, el := range path {
		if name == source.NoStringID {
			name = a.named(typ)
		}
		switch {
		case el.Deref:
			typ = a.elem(typ, ast.TypeRef, ast.TypeMutRef)
		case el.Index:
			typ = a.elem(typ, ast.TypeArray, ast.TypeNamed)
		default:
			typ = a.field(typ, name, el.Name)
		}
		name = source.NoStringID
		if typ == ast.NoTypeID {
			return ast.NoTypeID, source.NoStringID
		}
	}
	return typ, name
}

// elem returns the single element type of typ when its kind is one of
// kinds, looking through references.
func (a *analyzer) elem(typ ast.TypeID, kinds ...ast.TypeKind) ast.TypeID {
	t, d, ok := a.b.Types.Lookup(typ)
	if !ok {
		return ast.NoTypeID
	}
	for _, k := range kinds {
		if t.Kind == k && len(d.Elems) == 1 {
			return d.Elems[0]
		}
	}
	if (t.Kind == ast.TypeRef || t.Kind == ast.TypeMutRef) && len(d.Elems) == 1 {
		return a.elem(d.Elems[0], kinds...)
	}
	return ast.NoTypeID
}

func (a *analyzer) field(typ ast.TypeID, owner, field source.StringID) ast.TypeID {
	if owner != source.NoStringID {
		if ft, ok := a.ctx.Table.StructField(owner, field); ok {
			return ft
		}
		return ast.NoTypeID
	}
	t, d, ok := a.b.Types.Lookup(typ)
	if !ok || t.Kind != ast.TypeTuple {
		return ast.NoTypeID
	}
	n, err := strconv.Atoi(a.ctx.Unit.Name(field))
	if err != nil || n < 0 || n >= len(d.Elems) {
		return ast.NoTypeID
	}
	return d.Elems[n]
}

// pathCopy reports whether the value at path below root is known to have
// copy semantics.
func (a *analyzer) pathCopy(root BindingID, path Path) bool {
	if len(path) == 0 {
		if bind := a.res.Binding(root); bind != nil {
			return bind.Copy
		}
		return false
	}
	typ, _ := a.pathType(root, path)
	return typ != ast.NoTypeID && a.ctx.Table.IsCopyType(a.b.Types, typ, a.owner)
}

// typeNameOf is the nominal type of a receiver expression, when known.
func (a *analyzer) typeNameOf(id ast.ExprID) source.StringID {
	if root, path, ok := a.peekPlace(id); ok {
		typ, name := a.pathType(root, path)
		if name != source.NoStringID {
			return name
		}
		return a.named(typ)
	}
	if d, ok := a.b.Exprs.Struct(id); ok {
		return d.Name
	}
	return source.NoStringID
}

// exprType infers the type facts of a let initialiser: its written type
// when one is known, its nominal name, and whether it is a copy value.
func (a *analyzer) exprType(id ast.ExprID) (ast.TypeID, source.StringID, bool) {
	ex := a.b.Exprs
	e := ex.Get(id)
	if e == nil {
		return ast.NoTypeID, source.NoStringID, false
	}
	tbl := a.ctx.Table
	switch e.Kind {
	case ast.ExprLit:
		d, _ := ex.Literal(id)
		return ast.NoTypeID, source.NoStringID, d.Kind.IsCopy()
	case ast.ExprIdent, ast.ExprField, ast.ExprIndex:
		root, path, ok := a.peekPlace(id)
		if !ok {
			return ast.NoTypeID, source.NoStringID, false
		}
		typ, name := a.pathType(root, path)
		return typ, name, a.pathCopy(root, path)
	case ast.ExprStruct:
		d, _ := ex.Struct(id)
		return ast.NoTypeID, d.Name, tbl.IsCopyName(d.Name)
	case ast.ExprBinary:
		d, _ := ex.Binary(id)
		if !d.Op.IsArithmetic() {
			return ast.NoTypeID, source.NoStringID, true
		}
		_, _, l := a.exprType(d.Left)
		_, _, r := a.exprType(d.Right)
		return ast.NoTypeID, source.NoStringID, l && r
	case ast.ExprUnary:
		d, _ := ex.Unary(id)
		if d.Op == ast.UnRef {
			return ast.NoTypeID, source.NoStringID, true
		}
		if d.Op == ast.UnNeg || d.Op == ast.UnNot {
			return a.exprType(d.Operand)
		}
	case ast.ExprCast:
		d, _ := ex.Cast(id)
		return d.Type, source.NoStringID, tbl.IsCopyType(a.b.Types, d.Type, a.owner)
	case ast.ExprTuple:
		d, _ := ex.List(id)
		for _, el := range d.Elems {
			if _, _, c := a.exprType(el); !c {
				return ast.NoTypeID, source.NoStringID, false
			}
		}
		return ast.NoTypeID, source.NoStringID, true
	case ast.ExprCall:
		d, _ := ex.Call(id)
		if ident, ok := ex.Ident(d.Target); ok && a.lookup(ident.Name) == NoBindingID {
			if fn, ok := tbl.Fn(ident.Name); ok {
				return a.resultType(fn)
			}
		}
	case ast.ExprMethodCall:
		d, _ := ex.MethodCall(id)
		if fn, _ := a.resolveMethod(d.Receiver, d.Method); fn != ast.NoItemID {
			return a.resultType(fn)
		}
	case ast.ExprBlock:
		d, _ := ex.Block(id)
		return a.exprType(d.Tail)
	case ast.ExprIf:
		d, _ := ex.If(id)
		typ, name, c := a.exprType(d.Then)
		if d.Else != ast.NoExprID {
			_, _, ce := a.exprType(d.Else)
			c = c && ce
		}
		return typ, name, c
	}
	return ast.NoTypeID, source.NoStringID, false
}

func (a *analyzer) resultType(fn ast.ItemID) (ast.TypeID, source.StringID, bool) {
	decl, ok := a.b.Items.Fn(fn)
	if !ok || decl.Result == ast.NoTypeID {
		return ast.NoTypeID, source.NoStringID, false
	}
	return decl.Result, source.NoStringID, a.ctx.Table.IsCopyType(a.b.Types, decl.Result, a.owner)
}
