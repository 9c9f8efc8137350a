package usage_test

import (
	"testing"

	"owninfer/internal/ast"
	"owninfer/internal/config"
	"owninfer/internal/diag"
	"owninfer/internal/symbols"
	"owninfer/internal/testkit"
	"owninfer/internal/usage"
)

func analyze(t *testing.T, tu *testkit.Unit, fn ast.ItemID, edit func(*config.Policy)) *usage.Result {
	t.Helper()
	pol := config.Default().Policy
	if edit != nil {
		edit(&pol)
	}
	tbl := symbols.Collect(tu.U, &pol, diag.NopReporter{})
	ctx := &symbols.Context{Unit: tu.U, Table: tbl, Policy: &pol}
	res, err := usage.Analyze(ctx, fn)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	return res
}

func factOf(t *testing.T, tu *testkit.Unit, res *usage.Result, name string) (*usage.Binding, *usage.Fact) {
	t.Helper()
	b := res.Lookup(tu.S(name))
	if b == nil {
		t.Fatalf("no binding %q", name)
	}
	return b, res.Fact(b.ID)
}

func vec(tu *testkit.Unit) ast.TypeID { return tu.TNamed("Vec", tu.TPrim("int")) }

// declareConsume adds `fn consume(v)` whose parameter is taken by value.
func declareConsume(tu *testkit.Unit) {
	tu.Fn("consume", testkit.Params(tu.PH("v", vec(tu), ast.HintOwned)), tu.Block())
}

func TestIterationOnlyIsRead(t *testing.T) {
	tu := testkit.NewUnit()
	fn := tu.Fn("total", testkit.Params(tu.P("items", vec(tu))), tu.Block(
		tu.For("x", tu.Id("items"), tu.Do(tu.Macro("println", tu.Id("x")))),
	))
	res := analyze(t, tu, fn, nil)
	_, f := factOf(t, tu, res, "items")
	if f.ReadCount != 1 || f.Consumed() || f.Mutated {
		t.Errorf("items fact = %+v", *f)
	}
	x, _ := factOf(t, tu, res, "x")
	if x.Kind != usage.BindLoopVar || !x.ByRef {
		t.Errorf("loop variable = %+v", *x)
	}
}

func TestMoveThenReadOrdering(t *testing.T) {
	tu := testkit.NewUnit()
	declareConsume(tu)
	fn := tu.Fn("run", testkit.Params(tu.P("items", vec(tu))), tu.Block(
		tu.Do(tu.Call("consume", tu.Id("items"))),
		tu.Do(tu.M(tu.Id("items"), "len")),
	))
	res := analyze(t, tu, fn, nil)
	b, f := factOf(t, tu, res, "items")
	if !f.MovedIntoOwned || f.ReadCount != 1 {
		t.Errorf("fact = %+v", *f)
	}
	occ := res.OccurrencesOf(b.ID)
	if len(occ) != 2 {
		t.Fatalf("occurrences = %d", len(occ))
	}
	if occ[0].Kind != usage.OccMove || occ[0].Reason != usage.MoveArg || occ[1].Kind != usage.OccRead {
		t.Errorf("kinds = %s(%s), %s", occ[0].Kind, occ[0].Reason, occ[1].Kind)
	}
	if occ[0].Ordinal >= occ[1].Ordinal {
		t.Error("occurrences out of evaluation order")
	}
}

func TestBorrowedCalleeIsRead(t *testing.T) {
	tu := testkit.NewUnit()
	callee := tu.Fn("show", testkit.Params(tu.P("v", vec(tu))), tu.Block())
	fn := tu.Fn("run", testkit.Params(tu.P("items", vec(tu))), tu.Block(
		tu.Do(tu.Call("show", tu.Id("items"))),
	))
	pol := config.Default().Policy
	tbl := symbols.Collect(tu.U, &pol, diag.NopReporter{})
	ctx := &symbols.Context{
		Unit: tu.U, Table: tbl, Policy: &pol,
		Sigs: symbols.NewSignatures(1, map[ast.ItemID][]symbols.Ownership{callee: {symbols.Borrowed}}),
	}
	res, err := usage.Analyze(ctx, fn)
	if err != nil {
		t.Fatal(err)
	}
	_, f := factOf(t, tu, res, "items")
	if f.Consumed() || f.ReadCount != 1 {
		t.Errorf("fact = %+v", *f)
	}
}

func TestSelfFieldMutation(t *testing.T) {
	tu := testkit.NewUnit()
	tu.Struct("Counter", false, tu.SF("counter", tu.TPrim("int")))
	fn := tu.Method("Counter", "", "tick", testkit.Params(tu.Self(ast.HintInferred)), tu.Block(
		tu.OpAssign(ast.AssignAdd, tu.Path("self.counter"), tu.Int(1)),
	))
	res := analyze(t, tu, fn, nil)
	b, f := factOf(t, tu, res, "self")
	if b.Kind != usage.BindSelf {
		t.Errorf("kind = %s", b.Kind)
	}
	if !f.Mutated || !f.FieldMutated || f.Consumed() {
		t.Errorf("self fact = %+v", *f)
	}
}

func TestMutatingMethodHeuristics(t *testing.T) {
	tu := testkit.NewUnit()
	fn := tu.Method("Stack", "", "fill", testkit.Params(tu.Self(ast.HintInferred), tu.P("buf", vec(tu))), tu.Block(
		tu.Do(tu.M(tu.Id("buf"), "push", tu.Int(1))),
		tu.Do(tu.M(tu.Id("self"), "reset_mut")),
	))
	res := analyze(t, tu, fn, nil)
	_, buf := factOf(t, tu, res, "buf")
	if !buf.Mutated || buf.FieldMutated || buf.SelfCallMutated {
		t.Errorf("buf = %+v", *buf)
	}
	_, self := factOf(t, tu, res, "self")
	if !self.SelfCallMutated {
		t.Errorf("self = %+v", *self)
	}
}

func TestKnownMethodSignature(t *testing.T) {
	tu := testkit.NewUnit()
	add := tu.ImplFn("Acc", "", "add", testkit.Params(tu.Self(ast.HintMut), tu.PH("v", vec(tu), ast.HintRef)), ast.NoTypeID, tu.Block())
	tu.Impl("Acc", "", add)
	fn := tu.Fn("run", testkit.Params(tu.P("acc", tu.TNamed("Acc")), tu.P("items", vec(tu))), tu.Block(
		tu.Do(tu.M(tu.Id("acc"), "add", tu.Id("items"))),
	))
	res := analyze(t, tu, fn, nil)
	if _, f := factOf(t, tu, res, "acc"); !f.Mutated {
		t.Errorf("acc = %+v", *f)
	}
	if _, f := factOf(t, tu, res, "items"); f.Consumed() || f.ReadCount != 1 {
		t.Errorf("items = %+v", *f)
	}
}

func TestFieldChainMove(t *testing.T) {
	tu := testkit.NewUnit()
	declareConsume(tu)
	tu.Struct("Config", false, tu.SF("paths", vec(tu)), tu.SF("depth", tu.TPrim("int")))
	paths := tu.Path("config.paths")
	depth := tu.Path("config.depth")
	fn := tu.Fn("run", testkit.Params(tu.P("config", tu.TNamed("Config"))), tu.Block(
		tu.Do(tu.Call("consume", paths)),
		tu.Do(tu.Call("consume", depth)),
	))
	res := analyze(t, tu, fn, nil)
	b, f := factOf(t, tu, res, "config")
	if !f.MovedIntoOwned {
		t.Errorf("fact = %+v", *f)
	}
	occ := res.OccurrencesOf(b.ID)
	if len(occ) != 2 {
		t.Fatalf("occurrences = %d", len(occ))
	}
	if occ[0].Expr != paths || len(occ[0].Path) != 1 || occ[0].Path[0].Name != tu.S("paths") {
		t.Errorf("narrowest operand not recorded: %+v", occ[0])
	}
	if occ[0].Copy {
		t.Error("Vec field reported as copy")
	}
	if !occ[1].Copy {
		t.Error("int field not reported as copy")
	}
}

func TestStoredAndReturned(t *testing.T) {
	tu := testkit.NewUnit()
	fn := tu.Fn("wrap", testkit.Params(tu.P("name", tu.TText()), tu.P("tag", tu.TText())), tu.BlockT(
		tu.StructLit("Named", tu.FI("name", tu.Id("name"))),
		tu.Let("t", tu.Id("tag")),
		tu.Ret(tu.Id("t")),
	))
	res := analyze(t, tu, fn, nil)
	if _, f := factOf(t, tu, res, "name"); !f.Stored {
		t.Errorf("name = %+v", *f)
	}
	if _, f := factOf(t, tu, res, "tag"); !f.MovedIntoOwned {
		t.Errorf("tag = %+v", *f)
	}
	if _, f := factOf(t, tu, res, "t"); !f.Returned {
		t.Errorf("t = %+v", *f)
	}
}

func TestCollectionMacroStoresArguments(t *testing.T) {
	tu := testkit.NewUnit()
	fn := tu.Fn("wrap", testkit.Params(tu.P("items", vec(tu)), tu.P("label", tu.TText())), tu.BlockT(
		tu.Macro("vec", tu.Id("items")),
		tu.Do(tu.Macro("println", tu.Id("label"))),
	))
	res := analyze(t, tu, fn, nil)
	if _, f := factOf(t, tu, res, "items"); !f.Stored {
		t.Errorf("items = %+v", *f)
	}
	if _, f := factOf(t, tu, res, "label"); f.Consumed() || f.ReadCount != 1 {
		t.Errorf("label = %+v", *f)
	}
	res = analyze(t, tu, fn, func(p *config.Policy) { p.CollectionMacros = nil })
	if _, f := factOf(t, tu, res, "items"); f.Consumed() {
		t.Errorf("items without collection macros = %+v", *f)
	}
}

func TestArithmeticOperandIsAmbiguous(t *testing.T) {
	tu := testkit.NewUnit()
	fn := tu.Fn("join", testkit.Params(tu.P("a", tu.TText()), tu.P("b", tu.TText())), tu.BlockT(
		tu.Bin(ast.BinAdd, tu.Id("a"), tu.Ref(tu.Id("b"))),
	))
	res := analyze(t, tu, fn, nil)
	if _, f := factOf(t, tu, res, "a"); !f.Ambiguous {
		t.Errorf("a = %+v", *f)
	}
	if _, f := factOf(t, tu, res, "b"); f.Consumed() {
		t.Errorf("b = %+v", *f)
	}
}

func TestBranchesAreExclusive(t *testing.T) {
	tu := testkit.NewUnit()
	declareConsume(tu)
	fn := tu.Fn("pick", testkit.Params(tu.P("c", tu.TPrim("bool")), tu.P("x", vec(tu))), tu.Block(
		tu.Do(tu.If(tu.Id("c"),
			tu.Block(tu.Do(tu.Call("consume", tu.Id("x")))),
			tu.Block(tu.Do(tu.Macro("println", tu.Id("x")))))),
		tu.Do(tu.Macro("println", tu.Id("x"))),
	))
	res := analyze(t, tu, fn, nil)
	b, f := factOf(t, tu, res, "x")
	if !f.MovedIntoOwned || f.ReadCount != 2 {
		t.Errorf("both arms must contribute: %+v", *f)
	}
	occ := res.OccurrencesOf(b.ID)
	if !occ[0].ExclusiveWith(occ[1]) {
		t.Error("then and else arms not exclusive")
	}
	if occ[0].ExclusiveWith(occ[2]) {
		t.Error("arm and following statement reported exclusive")
	}
}

func TestLoopsAndExits(t *testing.T) {
	tu := testkit.NewUnit()
	declareConsume(tu)
	fn := tu.Fn("drain", testkit.Params(tu.P("x", vec(tu))), tu.Block(
		tu.Loop(
			tu.Do(tu.Call("consume", tu.Id("x"))),
			tu.Break(),
		),
		tu.Loop(
			tu.Do(tu.Call("consume", tu.Id("x"))),
		),
	))
	res := analyze(t, tu, fn, nil)
	b, _ := factOf(t, tu, res, "x")
	occ := res.OccurrencesOf(b.ID)
	if len(occ) != 2 || len(res.Loops) != 2 {
		t.Fatalf("occurrences=%d loops=%d", len(occ), len(res.Loops))
	}
	if !occ[0].Exits(occ[0].Loops[0]) || occ[0].Exit.Fn {
		t.Errorf("break not recorded: %+v", occ[0])
	}
	if occ[1].Exit != nil || len(occ[1].Loops) != 1 {
		t.Errorf("second loop: %+v", occ[1])
	}
	if len(b.Loops) != 0 {
		t.Error("param declared inside a loop")
	}
}

func TestReturnExitsFunction(t *testing.T) {
	tu := testkit.NewUnit()
	declareConsume(tu)
	fn := tu.Fn("early", testkit.Params(tu.P("c", tu.TPrim("bool")), tu.P("x", vec(tu))), tu.Block(
		tu.Do(tu.If(tu.Id("c"), tu.Block(
			tu.Do(tu.Call("consume", tu.Id("x"))),
			tu.Ret(ast.NoExprID),
		), ast.NoExprID)),
		tu.Do(tu.Macro("println", tu.Id("x"))),
	))
	res := analyze(t, tu, fn, nil)
	b, _ := factOf(t, tu, res, "x")
	occ := res.OccurrencesOf(b.ID)
	if occ[0].Exit == nil || !occ[0].Exit.Fn || occ[1].Exit != nil {
		t.Fatalf("exits = %+v, %+v", occ[0].Exit, occ[1].Exit)
	}
	if occ[0].Precedes(occ[1]) {
		t.Error("use after the return reported reachable")
	}
}

func TestReturnValueRunsBeforeExit(t *testing.T) {
	tu := testkit.NewUnit()
	declareConsume(tu)
	fn := tu.Fn("last", testkit.Params(tu.P("c", tu.TPrim("bool")), tu.P("x", vec(tu))), tu.Block(
		tu.Do(tu.If(tu.Id("c"), tu.Block(
			tu.Do(tu.Call("consume", tu.Id("x"))),
		), ast.NoExprID)),
		tu.Ret(tu.M(tu.Id("x"), "len")),
	))
	res := analyze(t, tu, fn, nil)
	b, _ := factOf(t, tu, res, "x")
	occ := res.OccurrencesOf(b.ID)
	if len(occ) != 2 {
		t.Fatalf("occurrences = %d", len(occ))
	}
	if occ[0].Exit == nil || !occ[0].Exit.Fn || occ[0].Exit.At != occ[1].Ordinal {
		t.Fatalf("exit = %+v", occ[0].Exit)
	}
	if !occ[0].Precedes(occ[1]) {
		t.Error("returned expression must still follow the move")
	}
}

func TestBreakKeepsEarlierUsesInIteration(t *testing.T) {
	tu := testkit.NewUnit()
	declareConsume(tu)
	fn := tu.Fn("once", testkit.Params(tu.P("items", vec(tu))), tu.Block(
		tu.Loop(
			tu.Do(tu.Call("consume", tu.Id("items"))),
			tu.Do(tu.Macro("println", tu.Id("items"))),
			tu.Break(),
		),
	))
	res := analyze(t, tu, fn, nil)
	b, _ := factOf(t, tu, res, "items")
	occ := res.OccurrencesOf(b.ID)
	if len(occ) != 2 || occ[0].Exit != occ[1].Exit {
		t.Fatalf("occurrences = %+v", occ)
	}
	if !occ[0].Precedes(occ[1]) {
		t.Error("read before the break reported unreachable")
	}
}

func TestEscapingClosureCaptures(t *testing.T) {
	tu := testkit.NewUnit()
	fn := tu.Fn("make", testkit.Params(tu.P("data", vec(tu)), tu.P("seen", vec(tu))), tu.Block(
		tu.Let("f", tu.Closure(false, tu.Macro("println", tu.Id("data")))),
		tu.Let("g", tu.Closure(false, tu.Macro("println", tu.Id("seen")))),
		tu.Do(tu.CallExpr(tu.Id("g"))),
		tu.Ret(tu.Id("f")),
	))
	res := analyze(t, tu, fn, nil)
	if len(res.Closures) != 2 {
		t.Fatalf("closures = %d", len(res.Closures))
	}
	if !res.Closures[0].Escapes || res.Closures[1].Escapes {
		t.Errorf("escapes = %v, %v", res.Closures[0].Escapes, res.Closures[1].Escapes)
	}
	if _, f := factOf(t, tu, res, "data"); !f.CapturedByEscapingClosure {
		t.Errorf("data = %+v", *f)
	}
	if _, f := factOf(t, tu, res, "seen"); f.CapturedByEscapingClosure || f.ReadCount != 1 {
		t.Errorf("seen = %+v", *f)
	}
}

func TestDestructuringMarksPartialMove(t *testing.T) {
	tu := testkit.NewUnit()
	declareConsume(tu)
	fn := tu.Fn("split", testkit.Params(tu.P("pair", tu.TTuple(vec(tu), vec(tu)))), tu.Block(
		tu.LetPat(tu.PTuple(tu.PId("a"), tu.PId("b")), tu.Id("pair")),
		tu.Do(tu.Call("consume", tu.Id("a"))),
		tu.Do(tu.Macro("println", tu.Id("b"))),
	))
	res := analyze(t, tu, fn, nil)
	_, f := factOf(t, tu, res, "pair")
	if !f.PartiallyMoved {
		t.Errorf("pair = %+v", *f)
	}
	a, _ := factOf(t, tu, res, "a")
	if a.From == nil || len(a.From.Path) != 1 || a.From.Path[0].Name != tu.S("0") {
		t.Errorf("a source = %+v", a.From)
	}
}

func TestUnknownCalleePolicy(t *testing.T) {
	tu := testkit.NewUnit()
	fn := tu.Fn("run", testkit.Params(tu.P("items", vec(tu))), tu.Block(
		tu.Do(tu.Call("external", tu.Id("items"))),
	))
	if _, f := factOf(t, tu, analyze(t, tu, fn, nil), "items"); !f.MovedIntoOwned {
		t.Errorf("move policy: %+v", *f)
	}
	res := analyze(t, tu, fn, func(p *config.Policy) { p.UnknownCallee = config.CalleeRead })
	if _, f := factOf(t, tu, res, "items"); f.Consumed() {
		t.Errorf("read policy: %+v", *f)
	}
}

func TestRefResultConsumed(t *testing.T) {
	tu := testkit.NewUnit()
	declareConsume(tu)
	get := tu.ImplFn("Config", "", "paths", testkit.Params(tu.Self(ast.HintRef)), tu.TRef(vec(tu)), tu.Block())
	tu.Impl("Config", "", get)
	call := tu.M(tu.Id("config"), "paths")
	fn := tu.Fn("run", testkit.Params(tu.P("config", tu.TNamed("Config"))), tu.Block(
		tu.Do(tu.Call("consume", call)),
	))
	res := analyze(t, tu, fn, nil)
	if len(res.RefResults) != 1 || res.RefResults[0].Expr != call {
		t.Errorf("RefResults = %+v", res.RefResults)
	}
}

func TestRefResultBoundToLocal(t *testing.T) {
	tu := testkit.NewUnit()
	get := tu.ImplFn("Config", "", "paths", testkit.Params(tu.Self(ast.HintRef)), tu.TRef(vec(tu)), tu.Block())
	tu.Impl("Config", "", get)
	fn := tu.Fn("run", testkit.Params(tu.P("config", tu.TNamed("Config"))), tu.Block(
		tu.Let("r", tu.M(tu.Id("config"), "paths")),
		tu.Do(tu.Macro("println", tu.Id("r"))),
	))
	if res := analyze(t, tu, fn, nil); len(res.RefResults) != 0 {
		t.Errorf("RefResults = %+v", res.RefResults)
	}
}

func TestShadowingCreatesNewBinding(t *testing.T) {
	tu := testkit.NewUnit()
	fn := tu.Fn("run", testkit.Params(tu.P("x", vec(tu))), tu.Block(
		tu.Let("x", tu.M(tu.Id("x"), "len")),
		tu.Do(tu.Macro("println", tu.Id("x"))),
	))
	res := analyze(t, tu, fn, nil)
	if len(res.Bindings) != 2 {
		t.Fatalf("bindings = %d", len(res.Bindings))
	}
	if f := res.ParamFact(0); f.ReadCount != 1 {
		t.Errorf("param x = %+v", *f)
	}
	if f := res.Fact(res.Bindings[1].ID); f.ReadCount != 1 {
		t.Errorf("local x = %+v", *f)
	}
}

func TestAnalyzeRejectsNonFunction(t *testing.T) {
	tu := testkit.NewUnit()
	st := tu.Struct("S", false)
	tbl := symbols.Collect(tu.U, nil, diag.NopReporter{})
	if _, err := usage.Analyze(&symbols.Context{Unit: tu.U, Table: tbl}, st); err == nil {
		t.Fatal("expected an error for a struct item")
	}
}

func TestPathOverlap(t *testing.T) {
	a, b := usage.PathElem{Name: 1}, usage.PathElem{Name: 2}
	idx := usage.PathElem{Index: true}
	tests := []struct {
		p, q           usage.Path
		overlap, cover bool
	}{
		{nil, usage.Path{a}, true, true},
		{usage.Path{a}, usage.Path{a, b}, true, true},
		{usage.Path{a}, usage.Path{b}, false, false},
		{usage.Path{idx}, usage.Path{idx}, true, false},
		{usage.Path{a, b}, usage.Path{a}, true, false},
	}
	for i, tt := range tests {
		if got := tt.p.Overlaps(tt.q); got != tt.overlap {
			t.Errorf("%d: Overlaps = %v", i, got)
		}
		if got := tt.p.Covers(tt.q); got != tt.cover {
			t.Errorf("%d: Covers = %v", i, got)
		}
	}
}
