package autoclone_test

import (
	"testing"

	"owninfer/internal/ast"
	"owninfer/internal/autoclone"
	"owninfer/internal/config"
	"owninfer/internal/diag"
	"owninfer/internal/ownership"
	"owninfer/internal/symbols"
	"owninfer/internal/testkit"
	"owninfer/internal/usage"
)

type run struct {
	ctx  *symbols.Context
	dec  *ownership.Decisions
	out  *autoclone.Result
	bag  *diag.Bag
	body ast.ExprID
}

func pipeline(t *testing.T, tu *testkit.Unit, fn ast.ItemID) *run {
	t.Helper()
	pol := config.Default().Policy
	tbl := symbols.Collect(tu.U, &pol, diag.NopReporter{})
	ctx := &symbols.Context{Unit: tu.U, Table: tbl, Policy: &pol}
	res, err := usage.Analyze(ctx, fn)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	dec, err := ownership.Infer(ctx, res)
	if err != nil {
		t.Fatalf("Infer: %v", err)
	}
	bag := diag.NewBag(50)
	decl, _ := tu.U.AST.Items.Fn(fn)
	body := decl.Body
	out, err := autoclone.Insert(ctx, res, dec, diag.BagReporter{Bag: bag})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := testkit.CheckBody(tu.U, out.Body); err != nil {
		t.Fatalf("rewritten body: %v", err)
	}
	return &run{ctx: ctx, dec: dec, out: out, bag: bag, body: body}
}

// rerun analyses the rewritten body with the first run's decisions and
// returns the sites a second insertion would still add.
func (r *run) rerun(t *testing.T) []autoclone.Site {
	t.Helper()
	r.ctx.Unit.AST.Items.ReplaceFnBody(r.out.Fn, r.out.Body)
	defer r.ctx.Unit.AST.Items.ReplaceFnBody(r.out.Fn, r.body)
	res, err := usage.Analyze(r.ctx, r.out.Fn)
	if err != nil {
		t.Fatal(err)
	}
	again, err := autoclone.Insert(r.ctx, res, r.dec, nil)
	if err != nil {
		t.Fatal(err)
	}
	return again.Sites
}

func vec(tu *testkit.Unit) ast.TypeID { return tu.TNamed("Vec", tu.TPrim("int")) }

func declareConsume(tu *testkit.Unit) {
	tu.Fn("consume", testkit.Params(tu.PH("v", vec(tu), ast.HintOwned)), tu.Block())
}

func oneSite(t *testing.T, r *run, reason autoclone.Reason, expr ast.ExprID) autoclone.Site {
	t.Helper()
	if len(r.out.Sites) != 1 {
		t.Fatalf("sites = %+v", r.out.Sites)
	}
	s := r.out.Sites[0]
	if s.Reason != reason {
		t.Errorf("reason = %s, want %s", s.Reason, reason)
	}
	if expr != ast.NoExprID && s.Expr != expr {
		t.Errorf("site wraps expr %d, want %d", s.Expr, expr)
	}
	if v, _ := r.ctx.Unit.AST.Exprs.Wrapped(s.Dup); v != s.Expr {
		t.Errorf("dup wraps %d, want the untouched operand %d", v, s.Expr)
	}
	return s
}

func TestMoveThenLaterUse(t *testing.T) {
	tu := testkit.NewUnit()
	declareConsume(tu)
	arg := tu.Id("items")
	fn := tu.Fn("run", testkit.Params(tu.P("items", vec(tu))), tu.Block(
		tu.Do(tu.Call("consume", arg)),
		tu.Do(tu.M(tu.Id("items"), "len")),
	))
	r := pipeline(t, tu, fn)
	if p, _ := r.dec.Param(0); p.Ownership != symbols.Owned {
		t.Errorf("items = %s", p.Ownership)
	}
	s := oneSite(t, r, autoclone.MovedButUsedLater, arg)
	if s.Binding != "items" || s.Later == s.Span {
		t.Errorf("site = %+v", s)
	}
	b := tu.U.AST
	if testkit.CountDups(b, r.body) != 0 {
		t.Error("original body modified")
	}
	if testkit.CountDups(b, r.out.Body) != 1 {
		t.Error("rewritten body lacks the dup")
	}
	if extra := r.rerun(t); len(extra) != 0 {
		t.Errorf("second insertion added %+v", extra)
	}
}

func TestFinalMoveCostsNothing(t *testing.T) {
	tu := testkit.NewUnit()
	declareConsume(tu)
	fn := tu.Fn("run", testkit.Params(tu.P("items", vec(tu))), tu.Block(
		tu.Do(tu.M(tu.Id("items"), "len")),
		tu.Do(tu.Call("consume", tu.Id("items"))),
	))
	before := tu.U.AST.NodeCount()
	r := pipeline(t, tu, fn)
	if r.out.Changed() || r.out.Body != r.body {
		t.Fatalf("unexpected rewrite: %+v", r.out.Sites)
	}
	if after := tu.U.AST.NodeCount(); after != before {
		t.Errorf("node count %d -> %d", before, after)
	}
}

func TestMovedEveryIteration(t *testing.T) {
	tu := testkit.NewUnit()
	declareConsume(tu)
	arg := tu.Id("items")
	fn := tu.Fn("run", testkit.Params(tu.P("items", vec(tu)), tu.P("n", tu.TPrim("int"))), tu.Block(
		tu.For("i", tu.Range(tu.Int(0), tu.Id("n")),
			tu.Do(tu.Macro("println", tu.Id("items"))),
			tu.Do(tu.Call("consume", arg)),
		),
	))
	r := pipeline(t, tu, fn)
	oneSite(t, r, autoclone.MovedInLoop, arg)

	// The dup stays inside the loop body.
	blk, _ := tu.U.AST.Exprs.Block(r.out.Body)
	loop, ok := tu.U.AST.Stmts.For(blk.Stmts[0])
	if !ok {
		t.Fatal("first statement is no longer the loop")
	}
	if testkit.CountDups(tu.U.AST, loop.Body) != 1 {
		t.Error("dup hoisted out of the loop")
	}
	if r.bag.Count(diag.SevInfo) != 1 || r.bag.Items()[0].Code != diag.OwnMovedInLoop {
		t.Errorf("diagnostics = %+v", r.bag.Items())
	}
}

func TestLoopMoveWithoutOtherUseStillRecurs(t *testing.T) {
	tu := testkit.NewUnit()
	declareConsume(tu)
	fn := tu.Fn("run", testkit.Params(tu.P("items", vec(tu))), tu.Block(
		tu.Loop(tu.Do(tu.Call("consume", tu.Id("items")))),
	))
	oneSite(t, pipeline(t, tu, fn), autoclone.MovedInLoop, ast.NoExprID)
}

func TestNoDuplicationNeeded(t *testing.T) {
	tests := []struct {
		name string
		body func(tu *testkit.Unit) ast.ExprID
	}{
		{"reinitialised in the loop", func(tu *testkit.Unit) ast.ExprID {
			return tu.Block(tu.Loop(
				tu.Do(tu.Call("consume", tu.Id("x"))),
				tu.Assign(tu.Id("x"), tu.Call("fresh")),
			))
		}},
		{"reinitialised before later use", func(tu *testkit.Unit) ast.ExprID {
			return tu.Block(
				tu.Do(tu.Call("consume", tu.Id("x"))),
				tu.Assign(tu.Id("x"), tu.Call("fresh")),
				tu.Do(tu.Macro("println", tu.Id("x"))),
			)
		}},
		{"exclusive branches", func(tu *testkit.Unit) ast.ExprID {
			return tu.Block(tu.Do(tu.If(tu.Id("c"),
				tu.Block(tu.Do(tu.Call("consume", tu.Id("x")))),
				tu.Block(tu.Do(tu.Macro("println", tu.Id("x")))))))
		}},
		{"break after the move", func(tu *testkit.Unit) ast.ExprID {
			return tu.Block(tu.Loop(
				tu.Do(tu.Call("consume", tu.Id("x"))),
				tu.Break(),
			))
		}},
		{"return after the move", func(tu *testkit.Unit) ast.ExprID {
			return tu.Block(
				tu.Do(tu.If(tu.Id("c"), tu.Block(
					tu.Do(tu.Call("consume", tu.Id("x"))),
					tu.Ret(ast.NoExprID),
				), ast.NoExprID)),
				tu.Do(tu.Macro("println", tu.Id("x"))),
			)
		}},
		{"disjoint fields", func(tu *testkit.Unit) ast.ExprID {
			return tu.Block(
				tu.Do(tu.Call("consume", tu.Path("x.paths"))),
				tu.Do(tu.Macro("println", tu.Path("x.depth"))),
			)
		}},
		{"copy element by index", func(tu *testkit.Unit) ast.ExprID {
			return tu.Block(tu.Do(tu.Call("take", tu.Idx(tu.Id("nums"), tu.Int(0)))))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tu := testkit.NewUnit()
			declareConsume(tu)
			tu.Struct("Config", false, tu.SF("paths", vec(tu)), tu.SF("depth", tu.TPrim("int")))
			fn := tu.Fn("run", testkit.Params(
				tu.P("x", tu.TNamed("Config")),
				tu.P("c", tu.TPrim("bool")),
				tu.P("nums", tu.TArray(tu.TPrim("int"))),
			), tt.body(tu))
			r := pipeline(t, tu, fn)
			if r.out.Changed() {
				t.Errorf("unexpected sites %+v", r.out.Sites)
			}
		})
	}
}

func TestUsedAfterBreakingLoop(t *testing.T) {
	tu := testkit.NewUnit()
	declareConsume(tu)
	arg := tu.Id("x")
	fn := tu.Fn("run", testkit.Params(tu.P("x", vec(tu))), tu.Block(
		tu.Loop(tu.Do(tu.Call("consume", arg)), tu.Break()),
		tu.Do(tu.Macro("println", tu.Id("x"))),
	))
	oneSite(t, pipeline(t, tu, fn), autoclone.MovedButUsedLater, arg)
}

func TestUsesBeforeAnExit(t *testing.T) {
	tests := []struct {
		name   string
		body   func(tu *testkit.Unit, arg ast.ExprID) ast.ExprID
		reason autoclone.Reason
	}{
		{"read in the returned value", func(tu *testkit.Unit, arg ast.ExprID) ast.ExprID {
			return tu.Block(
				tu.Do(tu.Call("consume", arg)),
				tu.Ret(tu.M(tu.Id("x"), "len")),
			)
		}, autoclone.MovedButUsedLater},
		{"conditional move before return", func(tu *testkit.Unit, arg ast.ExprID) ast.ExprID {
			return tu.Block(
				tu.Do(tu.If(tu.Id("c"), tu.Block(tu.Do(tu.Call("consume", arg))), ast.NoExprID)),
				tu.Ret(tu.M(tu.Id("x"), "len")),
			)
		}, autoclone.MovedButUsedLater},
		{"loop finished before return", func(tu *testkit.Unit, arg ast.ExprID) ast.ExprID {
			return tu.Block(
				tu.Loop(tu.Do(tu.Call("consume", arg))),
				tu.Ret(ast.NoExprID),
			)
		}, autoclone.MovedInLoop},
		{"read before break", func(tu *testkit.Unit, arg ast.ExprID) ast.ExprID {
			return tu.Block(tu.Loop(
				tu.Do(tu.Call("consume", arg)),
				tu.Do(tu.Macro("println", tu.Id("x"))),
				tu.Break(),
			))
		}, autoclone.MovedButUsedLater},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tu := testkit.NewUnit()
			declareConsume(tu)
			arg := tu.Id("x")
			fn := tu.Fn("run", testkit.Params(tu.P("x", vec(tu)), tu.P("c", tu.TPrim("bool"))), tt.body(tu, arg))
			r := pipeline(t, tu, fn)
			oneSite(t, r, tt.reason, arg)
			if testkit.CountDups(tu.U.AST, r.out.Body) != 1 {
				t.Error("rewritten body lacks the dup")
			}
			if extra := r.rerun(t); len(extra) != 0 {
				t.Errorf("second insertion added %+v", extra)
			}
		})
	}
}

func TestNarrowestOperand(t *testing.T) {
	tu := testkit.NewUnit()
	declareConsume(tu)
	tu.Struct("Config", false, tu.SF("paths", vec(tu)))
	field := tu.Path("config.paths")
	fn := tu.Fn("run", testkit.Params(tu.P("config", tu.TNamed("Config"))), tu.BlockT(tu.Id("config"),
		tu.Do(tu.Call("consume", field)),
	))
	oneSite(t, pipeline(t, tu, fn), autoclone.MovedButUsedLater, field)
}

func TestBorrowedSources(t *testing.T) {
	t.Run("loop variable", func(t *testing.T) {
		tu := testkit.NewUnit()
		declareConsume(tu)
		arg := tu.Id("item")
		fn := tu.Fn("run", testkit.Params(tu.P("items", tu.TArray(vec(tu)))), tu.Block(
			tu.For("item", tu.Id("items"), tu.Do(tu.Call("consume", arg))),
		))
		oneSite(t, pipeline(t, tu, fn), autoclone.BorrowedSource, arg)
	})
	t.Run("receiver field", func(t *testing.T) {
		tu := testkit.NewUnit()
		declareConsume(tu)
		tu.Struct("Job", false, tu.SF("items", vec(tu)))
		field := tu.Path("self.items")
		fn := tu.Method("Job", "", "flush", testkit.Params(tu.Self(ast.HintInferred)), tu.Block(
			tu.Do(tu.Call("consume", field)),
		))
		r := pipeline(t, tu, fn)
		if p, _ := r.dec.Param(0); p.Ownership != symbols.Borrowed {
			t.Errorf("self = %s", p.Ownership)
		}
		oneSite(t, r, autoclone.BorrowedSource, field)
	})
	t.Run("explicit ref param", func(t *testing.T) {
		tu := testkit.NewUnit()
		declareConsume(tu)
		arg := tu.Id("items")
		fn := tu.Fn("run", testkit.Params(tu.PH("items", vec(tu), ast.HintRef)), tu.Block(
			tu.Do(tu.Call("consume", arg)),
		))
		oneSite(t, pipeline(t, tu, fn), autoclone.BorrowedSource, arg)
	})
	t.Run("non-copy index", func(t *testing.T) {
		tu := testkit.NewUnit()
		declareConsume(tu)
		idx := tu.Idx(tu.Id("rows"), tu.Int(0))
		fn := tu.Fn("run", testkit.Params(tu.P("rows", tu.TArray(vec(tu)))), tu.Block(
			tu.Do(tu.Call("consume", idx)),
		))
		oneSite(t, pipeline(t, tu, fn), autoclone.BorrowedSource, idx)
	})
	t.Run("reference result bound to a local", func(t *testing.T) {
		tu := testkit.NewUnit()
		get := tu.ImplFn("Config", "", "paths", testkit.Params(tu.Self(ast.HintRef)), tu.TRef(vec(tu)), tu.Block())
		tu.Impl("Config", "", get)
		fn := tu.Fn("run", testkit.Params(tu.P("config", tu.TNamed("Config"))), tu.Block(
			tu.Let("r", tu.M(tu.Id("config"), "paths")),
			tu.Do(tu.Macro("println", tu.Id("r"))),
		))
		if r := pipeline(t, tu, fn); r.out.Changed() {
			t.Errorf("unexpected sites %+v", r.out.Sites)
		}
	})
	t.Run("reference result", func(t *testing.T) {
		tu := testkit.NewUnit()
		declareConsume(tu)
		get := tu.ImplFn("Config", "", "paths", testkit.Params(tu.Self(ast.HintRef)), tu.TRef(vec(tu)), tu.Block())
		tu.Impl("Config", "", get)
		call := tu.M(tu.Id("config"), "paths")
		fn := tu.Fn("run", testkit.Params(tu.P("config", tu.TNamed("Config"))), tu.Block(
			tu.Do(tu.Call("consume", call)),
		))
		s := oneSite(t, pipeline(t, tu, fn), autoclone.BorrowedSource, call)
		if s.Binding != "" {
			t.Errorf("binding = %q", s.Binding)
		}
	})
}

func TestTraitBorrowedMoveIsNotPatched(t *testing.T) {
	tu := testkit.NewUnit()
	declareConsume(tu)
	tu.Trait("Sink", tu.TM("put", tu.Self(ast.HintRef), tu.P("v", vec(tu))))
	m := tu.ImplFn("Buf", "Sink", "put", testkit.Params(tu.Self(ast.HintInferred), tu.P("v", vec(tu))), ast.NoTypeID,
		tu.Block(tu.Do(tu.Call("consume", tu.Id("v")))))
	tu.Impl("Buf", "Sink", m)
	r := pipeline(t, tu, m)
	if r.out.Changed() {
		t.Errorf("conflicting move was patched: %+v", r.out.Sites)
	}
	if len(r.dec.Conflicts) != 1 {
		t.Errorf("conflicts = %+v", r.dec.Conflicts)
	}
}

func TestPartialMoveReuse(t *testing.T) {
	build := func(tu *testkit.Unit, after ...ast.StmtID) ast.ItemID {
		declareConsume(tu)
		return tu.Fn("split", testkit.Params(tu.P("pair", tu.TTuple(vec(tu), vec(tu)))), tu.Block(append([]ast.StmtID{
			tu.LetPat(tu.PTuple(tu.PId("a"), tu.PId("b")), tu.Id("pair")),
			tu.Do(tu.Call("consume", tu.Id("a"))),
		}, after...)...))
	}
	t.Run("whole binding reused", func(t *testing.T) {
		tu := testkit.NewUnit()
		r := pipeline(t, tu, build(tu, tu.Do(tu.Macro("println", tu.Id("pair")))))
		if r.out.Changed() {
			t.Errorf("partial move was patched: %+v", r.out.Sites)
		}
		if !r.bag.HasErrors() {
			t.Fatal("reuse not reported")
		}
		d := r.bag.Items()[0]
		if d.Code != diag.OwnPartialMoveReuse || len(d.Notes) != 2 {
			t.Errorf("diagnostic = %+v", d)
		}
	})
	t.Run("whole binding moved then reused", func(t *testing.T) {
		tu := testkit.NewUnit()
		r := pipeline(t, tu, build(tu,
			tu.Do(tu.Call("consume", tu.Id("pair"))),
			tu.Do(tu.Macro("println", tu.Id("pair")))))
		if r.out.Changed() || testkit.CountDups(tu.U.AST, r.out.Body) != 0 {
			t.Errorf("partially moved value was duplicated: %+v", r.out.Sites)
		}
		if !r.bag.HasErrors() || r.bag.Items()[0].Code != diag.OwnPartialMoveReuse {
			t.Errorf("diagnostics = %+v", r.bag.Items())
		}
	})
	t.Run("live sibling", func(t *testing.T) {
		tu := testkit.NewUnit()
		r := pipeline(t, tu, build(tu, tu.Do(tu.Macro("println", tu.Id("b")))))
		if r.bag.Len() != 0 {
			t.Errorf("diagnostics = %+v", r.bag.Items())
		}
	})
	t.Run("live sibling by path", func(t *testing.T) {
		tu := testkit.NewUnit()
		r := pipeline(t, tu, build(tu, tu.Do(tu.Macro("println", tu.F(tu.Id("pair"), "1")))))
		if r.bag.Len() != 0 {
			t.Errorf("diagnostics = %+v", r.bag.Items())
		}
	})
}

func TestEscapingCaptureReuse(t *testing.T) {
	tu := testkit.NewUnit()
	fn := tu.Fn("make", testkit.Params(tu.P("data", vec(tu))), tu.Block(
		tu.Let("f", tu.Closure(true, tu.Macro("println", tu.Id("data")))),
		tu.Do(tu.Macro("println", tu.Id("data"))),
		tu.Ret(tu.Id("f")),
	))
	r := pipeline(t, tu, fn)
	if r.bag.HasErrors() || r.bag.Count(diag.SevWarning) != 1 {
		t.Fatalf("diagnostics = %+v", r.bag.Items())
	}
	if d := r.bag.Items()[0]; d.Code != diag.OwnEscapingCaptureReuse {
		t.Errorf("code = %s", d.Code.ID())
	}
	if p, _ := r.dec.Param(0); p.Ownership != symbols.Owned {
		t.Errorf("captured param = %s", p.Ownership)
	}
}

// After insertion no move may still be followed by a use of the moved
// value: re-running the pass over its own output finds nothing to add.
func TestInsertionIsSafeAndIdempotent(t *testing.T) {
	bodies := map[string]func(tu *testkit.Unit) ast.ExprID{
		"call twice": func(tu *testkit.Unit) ast.ExprID {
			return tu.Block(
				tu.Do(tu.Call("consume", tu.Id("x"))),
				tu.Do(tu.Call("consume", tu.Id("x"))),
				tu.Do(tu.Call("consume", tu.Id("x"))),
			)
		},
		"same call": func(tu *testkit.Unit) ast.ExprID {
			return tu.Block(tu.Do(tu.Call("pair", tu.Id("x"), tu.Id("x"))))
		},
		"loop and after": func(tu *testkit.Unit) ast.ExprID {
			return tu.Block(
				tu.While(tu.Id("c"), tu.Do(tu.Call("consume", tu.Id("x")))),
				tu.Do(tu.Call("consume", tu.Id("x"))),
			)
		},
		"closure called twice": func(tu *testkit.Unit) ast.ExprID {
			return tu.Block(
				tu.Let("f", tu.Closure(false, tu.Call("consume", tu.Id("x")))),
				tu.Do(tu.CallExpr(tu.Id("f"))),
				tu.Do(tu.CallExpr(tu.Id("f"))),
			)
		},
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			tu := testkit.NewUnit()
			declareConsume(tu)
			tu.Fn("pair", testkit.Params(tu.PH("a", vec(tu), ast.HintOwned), tu.PH("b", vec(tu), ast.HintOwned)), tu.Block())
			fn := tu.Fn("run", testkit.Params(tu.P("x", vec(tu)), tu.P("c", tu.TPrim("bool"))), body(tu))
			r := pipeline(t, tu, fn)
			if !r.out.Changed() {
				t.Fatal("expected at least one dup")
			}
			if extra := r.rerun(t); len(extra) != 0 {
				t.Errorf("moves still reused after insertion: %+v", extra)
			}
		})
	}
}
