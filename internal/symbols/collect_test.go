package symbols_test

import (
	"testing"

	"owninfer/internal/ast"
	"owninfer/internal/diag"
	"owninfer/internal/symbols"
	"owninfer/internal/testkit"
)

func collect(t *testing.T, tu *testkit.Unit) (*symbols.Table, *diag.Bag) {
	t.Helper()
	bag := diag.NewBag(100)
	tbl := symbols.Collect(tu.U, nil, &diag.BagReporter{Bag: bag})
	return tbl, bag
}

func TestCollectDuplicateFunction(t *testing.T) {
	tu := testkit.NewUnit()
	first := tu.Fn("run", nil, tu.Block())
	tu.Fn("run", nil, tu.Block())
	tbl, bag := collect(t, tu)

	if got, _ := tbl.Fn(tu.S("run")); got != first {
		t.Errorf("first declaration must win: got %d want %d", got, first)
	}
	if !bag.HasErrors() {
		t.Fatal("duplicate not reported")
	}
	if code := bag.Items()[0].Code; code != diag.OwnDuplicateDecl {
		t.Errorf("code = %s", code.ID())
	}
	if n := len(tbl.Functions()); n != 2 {
		t.Errorf("Functions() = %d, both bodies still need analysis", n)
	}
}

func TestCollectImplMethods(t *testing.T) {
	tu := testkit.NewUnit()
	tu.Trait("Update",
		tu.TM("update", tu.Self(ast.HintMut), tu.P("delta", tu.TPrim("f32"))))
	m := tu.ImplFn("Body", "Update", "update", testkit.Params(tu.Self(ast.HintInferred), tu.P("delta", tu.TPrim("f32"))), ast.NoTypeID, tu.Block())
	inherent := tu.ImplFn("Body", "", "mass", testkit.Params(tu.Self(ast.HintInferred)), ast.NoTypeID, tu.Block())
	tu.Impl("Body", "Update", m)
	tu.Impl("Body", "", inherent)
	tbl, bag := collect(t, tu)

	if bag.Len() != 0 {
		t.Fatalf("unexpected diagnostics: %v", bag.Items())
	}
	info, ok := tbl.Info(m)
	if !ok || info.Owner != tu.S("Body") || info.Trait != tu.S("Update") || !info.IsTraitImpl() {
		t.Errorf("trait impl info = %+v", info)
	}
	info, _ = tbl.Info(inherent)
	if !info.IsMethod() || info.IsTraitImpl() {
		t.Errorf("inherent info = %+v", info)
	}
	if got, ok := tbl.Method(tu.S("Body"), tu.S("update")); !ok || got != m {
		t.Errorf("Method lookup = %d, %v", got, ok)
	}
	if got := tbl.MethodsNamed(tu.S("mass")); len(got) != 1 {
		t.Errorf("MethodsNamed = %v", got)
	}
	sigs := tbl.TraitMethodsNamed(tu.S("update"))
	if len(sigs) != 1 || !sigs[0].HasSelf() {
		t.Fatalf("TraitMethodsNamed = %v", sigs)
	}
}

func TestCollectUnknownTraitWarns(t *testing.T) {
	tu := testkit.NewUnit()
	m := tu.ImplFn("Body", "Display", "fmt", testkit.Params(tu.Self(ast.HintInferred)), ast.NoTypeID, tu.Block())
	tu.Impl("Body", "Display", m)
	tbl, bag := collect(t, tu)

	if bag.HasErrors() || !bag.HasWarnings() {
		t.Fatalf("want one warning, got %v", bag.Items())
	}
	if code := bag.Items()[0].Code; code != diag.OwnUnknownTrait {
		t.Errorf("code = %s", code.ID())
	}
	info, _ := tbl.Info(m)
	if info.IsTraitImpl() {
		t.Error("method of an unknown trait must be inferred like an inherent method")
	}
}

func TestTraitParamDefaults(t *testing.T) {
	tu := testkit.NewUnit()
	tbl := symbols.Collect(tu.U, nil, diag.NopReporter{})
	ctx := &symbols.Context{Unit: tu.U, Table: tbl}

	tests := []struct {
		name string
		p    symbols.ParamSig
		want symbols.Ownership
	}{
		{"inferred copy", symbols.ParamSig{Type: tu.TPrim("f32")}, symbols.Owned},
		{"inferred plain", symbols.ParamSig{Type: tu.TNamed("Other")}, symbols.Borrowed},
		{"inferred self", symbols.ParamSig{Type: tu.TSelf(), Self: true}, symbols.Borrowed},
		{"explicit owned", symbols.ParamSig{Type: tu.TNamed("Other"), Hint: ast.HintOwned}, symbols.Owned},
		{"explicit mut", symbols.ParamSig{Type: tu.TSelf(), Self: true, Hint: ast.HintMut}, symbols.MutBorrowed},
		{"explicit ref on copy", symbols.ParamSig{Type: tu.TPrim("int"), Hint: ast.HintRef}, symbols.Borrowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ctx.TraitParam(tt.p); got != tt.want {
				t.Errorf("TraitParam = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestCalleeParam(t *testing.T) {
	tu := testkit.NewUnit()
	fn := tu.Fn("consume", testkit.Params(
		tu.P("items", tu.TNamed("Vec")),
		tu.PH("log", tu.TNamed("Log"), ast.HintMut),
	), tu.Block())
	tbl := symbols.Collect(tu.U, nil, diag.NopReporter{})
	ctx := &symbols.Context{Unit: tu.U, Table: tbl}

	if got := ctx.CalleeParam(fn, 0); got != symbols.Owned {
		t.Errorf("no snapshot: got %s, want owned", got)
	}
	if got := ctx.CalleeParam(fn, 1); got != symbols.MutBorrowed {
		t.Errorf("explicit hint: got %s", got)
	}
	ctx.Sigs = symbols.NewSignatures(1, map[ast.ItemID][]symbols.Ownership{fn: {symbols.Borrowed, symbols.Borrowed}})
	if got := ctx.CalleeParam(fn, 0); got != symbols.Borrowed {
		t.Errorf("snapshot: got %s", got)
	}
	if got := ctx.CalleeParam(fn, 1); got != symbols.MutBorrowed {
		t.Errorf("explicit hint must beat snapshot: got %s", got)
	}
	if got := ctx.CalleeParam(fn, 9); got != symbols.Owned {
		t.Errorf("out of range: got %s", got)
	}
}
