package symbols

import (
	"fmt"

	"owninfer/internal/ast"
	"owninfer/internal/config"
	"owninfer/internal/diag"
	"owninfer/internal/source"
)

// Collect builds the declaration table for u in a single pass over its root
// items and returns it frozen. Duplicate declarations and impls of unknown
// traits are reported; the first declaration wins.
func Collect(u *ast.Unit, pol *config.Policy, r diag.Reporter) *Table {
	t := NewTable(u.Strings)
	if pol != nil {
		for _, name := range pol.CopyTypes {
			t.DeclareCopyType(u.Strings.Intern(name))
		}
		for _, name := range pol.TextTypes {
			t.DeclareTextType(u.Strings.Intern(name))
		}
	}
	items := u.AST.Items

	// Traits and type declarations first so impls can refer to them
	// regardless of source order.
	for _, id := range u.Roots {
		item := items.Get(id)
		if item == nil {
			continue
		}
		switch item.Kind {
		case ast.ItemTrait:
			decl, _ := items.Trait(id)
			info := &TraitInfo{
				Name:    decl.Name,
				Methods: make(map[source.StringID]*MethodSig, len(decl.Methods)),
				Span:    item.Span,
			}
			for _, m := range decl.Methods {
				sig := &MethodSig{Trait: decl.Name, Method: m.Name, Span: m.Span}
				for _, pid := range m.Params {
					p := items.Param(pid)
					sig.Params = append(sig.Params, ParamSig{Name: p.Name, Type: p.Type, Hint: p.Hint, Self: p.Self, Span: p.Span})
				}
				info.Methods[m.Name] = sig
			}
			if !t.DeclareTrait(info) {
				reportDuplicate(r, u, item.Span, "trait", decl.Name)
			}
		case ast.ItemStruct:
			decl, _ := items.Struct(id)
			t.DeclareStruct(decl.Name, decl.Fields)
			if decl.Copy {
				t.DeclareCopyType(decl.Name)
			}
		case ast.ItemEnum:
			decl, _ := items.Enum(id)
			if decl.Copy {
				t.DeclareCopyType(decl.Name)
			}
		}
	}

	for _, id := range u.Roots {
		item := items.Get(id)
		if item == nil {
			continue
		}
		switch item.Kind {
		case ast.ItemFn:
			fn, _ := items.Fn(id)
			if fn.IsMethod() {
				trait := fn.Trait
				if _, known := t.Trait(trait); !known {
					trait = source.NoStringID
				}
				declareMethod(t, r, u, fn.Owner, trait, id, fn)
				continue
			}
			t.info[id] = FnInfo{Item: id, Name: fn.Name}
			if !t.DeclareFn(fn.Name, id) {
				reportDuplicate(r, u, fn.Span, "function", fn.Name)
			}
		case ast.ItemImpl:
			impl, _ := items.Impl(id)
			if impl.Trait != source.NoStringID {
				if _, ok := t.Trait(impl.Trait); !ok {
					diag.ReportWarning(r, diag.OwnUnknownTrait, item.Span,
						fmt.Sprintf("trait %q is not declared in this unit; its methods are inferred like inherent methods", u.Name(impl.Trait))).Emit()
				}
			}
			for _, mid := range impl.Methods {
				fn, ok := items.Fn(mid)
				if !ok {
					continue
				}
				trait := impl.Trait
				if _, known := t.Trait(trait); !known {
					trait = source.NoStringID
				}
				declareMethod(t, r, u, impl.Type, trait, mid, fn)
			}
		}
	}
	t.Freeze()
	return t
}

func declareMethod(t *Table, r diag.Reporter, u *ast.Unit, owner, trait source.StringID, id ast.ItemID, fn *ast.FnDecl) {
	t.info[id] = FnInfo{Item: id, Name: fn.Name, Owner: owner, Trait: trait}
	if !t.DeclareMethod(owner, fn.Name, id) {
		reportDuplicate(r, u, fn.Span, "method", fn.Name)
	}
}

func reportDuplicate(r diag.Reporter, u *ast.Unit, span source.Span, what string, name source.StringID) {
	diag.ReportError(r, diag.OwnDuplicateDecl, span,
		fmt.Sprintf("duplicate %s %q; the first declaration is used", what, u.Name(name))).Emit()
}
