package ownership_test

import (
	"testing"

	"owninfer/internal/ast"
	"owninfer/internal/config"
	"owninfer/internal/diag"
	"owninfer/internal/ownership"
	"owninfer/internal/symbols"
	"owninfer/internal/testkit"
	"owninfer/internal/usage"
)

func infer(t *testing.T, tu *testkit.Unit, fn ast.ItemID) *ownership.Decisions {
	t.Helper()
	pol := config.Default().Policy
	tbl := symbols.Collect(tu.U, &pol, diag.NopReporter{})
	ctx := &symbols.Context{Unit: tu.U, Table: tbl, Policy: &pol}
	res, err := usage.Analyze(ctx, fn)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	d, err := ownership.Infer(ctx, res)
	if err != nil {
		t.Fatalf("Infer: %v", err)
	}
	return d
}

func want(t *testing.T, d *ownership.Decisions, idx int, o symbols.Ownership) ownership.Decision {
	t.Helper()
	p, ok := d.Param(idx)
	if !ok {
		t.Fatalf("no param %d", idx)
	}
	if p.Ownership != o {
		t.Errorf("param %q = %s (%s), want %s", p.Name, p.Ownership, p.Reason, o)
	}
	return p
}

func vec(tu *testkit.Unit) ast.TypeID { return tu.TNamed("Vec", tu.TPrim("int")) }

func TestDecisionTable(t *testing.T) {
	tests := []struct {
		name   string
		body   func(tu *testkit.Unit) ast.ExprID
		want   symbols.Ownership
		reason ownership.Reason
	}{
		{"iterated only", func(tu *testkit.Unit) ast.ExprID {
			return tu.Block(tu.For("x", tu.Id("items"), tu.Do(tu.Macro("println", tu.Id("x")))))
		}, symbols.Borrowed, ownership.ReasonReadOnly},
		{"mutated in place", func(tu *testkit.Unit) ast.ExprID {
			return tu.Block(tu.Do(tu.M(tu.Id("items"), "push", tu.Int(1))))
		}, symbols.MutBorrowed, ownership.ReasonMutated},
		{"moved into owned callee", func(tu *testkit.Unit) ast.ExprID {
			return tu.Block(tu.Do(tu.Call("consume", tu.Id("items"))))
		}, symbols.Owned, ownership.ReasonConsumed},
		{"mutated then moved", func(tu *testkit.Unit) ast.ExprID {
			return tu.Block(
				tu.Do(tu.M(tu.Id("items"), "push", tu.Int(1))),
				tu.Do(tu.Call("consume", tu.Id("items"))))
		}, symbols.Owned, ownership.ReasonConsumed},
		{"returned", func(tu *testkit.Unit) ast.ExprID {
			return tu.BlockT(tu.Id("items"))
		}, symbols.Owned, ownership.ReasonConsumed},
		{"stored in a field", func(tu *testkit.Unit) ast.ExprID {
			return tu.Block(tu.Assign(tu.Path("cache.items"), tu.Id("items")))
		}, symbols.Owned, ownership.ReasonConsumed},
		{"wrapped in a collection macro", func(tu *testkit.Unit) ast.ExprID {
			return tu.BlockT(tu.Macro("vec", tu.Id("items")))
		}, symbols.Owned, ownership.ReasonConsumed},
		{"printed", func(tu *testkit.Unit) ast.ExprID {
			return tu.Block(tu.Do(tu.Macro("println", tu.Id("items"))))
		}, symbols.Borrowed, ownership.ReasonReadOnly},
		{"arithmetic operand", func(tu *testkit.Unit) ast.ExprID {
			return tu.BlockT(tu.Bin(ast.BinAdd, tu.Id("items"), tu.Id("other")))
		}, symbols.Owned, ownership.ReasonAmbiguous},
		{"reassigned", func(tu *testkit.Unit) ast.ExprID {
			return tu.Block(tu.Assign(tu.Id("items"), tu.Id("other")))
		}, symbols.Owned, ownership.ReasonReassigned},
		{"unused", func(tu *testkit.Unit) ast.ExprID {
			return tu.Block()
		}, symbols.Owned, ownership.ReasonUnused},
		{"mutated in one branch", func(tu *testkit.Unit) ast.ExprID {
			return tu.Block(tu.Do(tu.If(tu.Bool(true),
				tu.Block(tu.Do(tu.M(tu.Id("items"), "clear"))),
				tu.Block(tu.Do(tu.M(tu.Id("items"), "len"))))))
		}, symbols.MutBorrowed, ownership.ReasonMutated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tu := testkit.NewUnit()
			tu.Fn("consume", testkit.Params(tu.PH("v", vec(tu), ast.HintOwned)), tu.Block())
			fn := tu.Fn("run", testkit.Params(
				tu.P("items", vec(tu)),
				tu.P("other", vec(tu)),
				tu.PH("cache", tu.TNamed("Cache"), ast.HintMut),
			), tt.body(tu))
			p := want(t, infer(t, tu, fn), 0, tt.want)
			if p.Reason != tt.reason {
				t.Errorf("reason = %s, want %s", p.Reason, tt.reason)
			}
		})
	}
}

func TestCopyTypesAlwaysOwned(t *testing.T) {
	for _, prim := range []string{"int", "f32", "bool", "char", "u64"} {
		t.Run(prim, func(t *testing.T) {
			tu := testkit.NewUnit()
			fn := tu.Fn("run", testkit.Params(tu.P("n", tu.TPrim(prim))), tu.Block(
				tu.Do(tu.Macro("println", tu.Id("n"))),
				tu.OpAssign(ast.AssignAdd, tu.Id("n"), tu.Int(1)),
			))
			p := want(t, infer(t, tu, fn), 0, symbols.Owned)
			if p.Reason != ownership.ReasonCopy || !p.NeedsMut {
				t.Errorf("decision = %+v", p)
			}
		})
	}
}

func TestExplicitHintWins(t *testing.T) {
	tu := testkit.NewUnit()
	tu.Fn("consume", testkit.Params(tu.PH("v", vec(tu), ast.HintOwned)), tu.Block())
	fn := tu.Fn("run", testkit.Params(tu.PH("items", vec(tu), ast.HintRef)), tu.Block(
		tu.Do(tu.Call("consume", tu.Id("items"))),
	))
	p := want(t, infer(t, tu, fn), 0, symbols.Borrowed)
	if p.Reason != ownership.ReasonHint || !p.Explicit() {
		t.Errorf("decision = %+v", p)
	}
}

func TestSelfRule(t *testing.T) {
	tests := []struct {
		name string
		body func(tu *testkit.Unit) ast.ExprID
		want symbols.Ownership
	}{
		{"read", func(tu *testkit.Unit) ast.ExprID {
			return tu.Block(tu.Do(tu.Macro("println", tu.Path("self.counter"))))
		}, symbols.Borrowed},
		{"field increment", func(tu *testkit.Unit) ast.ExprID {
			return tu.Block(tu.OpAssign(ast.AssignAdd, tu.Path("self.counter"), tu.Int(1)))
		}, symbols.MutBorrowed},
		{"mutating self call", func(tu *testkit.Unit) ast.ExprID {
			return tu.Block(tu.Do(tu.M(tu.Id("self"), "reset_mut")))
		}, symbols.MutBorrowed},
		{"moved never promotes", func(tu *testkit.Unit) ast.ExprID {
			return tu.BlockT(tu.Id("self"))
		}, symbols.Borrowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tu := testkit.NewUnit()
			tu.Struct("Counter", false, tu.SF("counter", tu.TPrim("int")))
			fn := tu.Method("Counter", "", "tick", testkit.Params(tu.Self(ast.HintInferred)), tt.body(tu))
			p := want(t, infer(t, tu, fn), 0, tt.want)
			if !p.Self {
				t.Error("receiver not marked self")
			}
		})
	}
}

func TestTextParamView(t *testing.T) {
	tu := testkit.NewUnit()
	fn := tu.Fn("greet", testkit.Params(tu.P("name", tu.TText()), tu.P("label", tu.TNamed("String"))), tu.Block(
		tu.Do(tu.Macro("println", tu.Id("name"))),
		tu.Do(tu.Macro("println", tu.Id("label"))),
	))
	d := infer(t, tu, fn)
	for i := range 2 {
		if p := want(t, d, i, symbols.Borrowed); !p.TextView {
			t.Errorf("param %q: TextView not set", p.Name)
		}
	}
}

func TestMutLocals(t *testing.T) {
	tu := testkit.NewUnit()
	fn := tu.Fn("build", nil, tu.BlockT(tu.Id("out"),
		tu.Let("out", tu.StructLit("Vec")),
		tu.Let("n", tu.Int(0)),
		tu.Do(tu.M(tu.Id("out"), "push", tu.Id("n"))),
	))
	d := infer(t, tu, fn)
	if len(d.MutLocals) != 1 || d.MutLocals[0].Name != "out" {
		t.Errorf("MutLocals = %+v", d.MutLocals)
	}
}

func TestInferIsIdempotent(t *testing.T) {
	tu := testkit.NewUnit()
	tu.Fn("consume", testkit.Params(tu.PH("v", vec(tu), ast.HintOwned)), tu.Block())
	fn := tu.Fn("run", testkit.Params(tu.P("a", vec(tu)), tu.P("b", vec(tu)), tu.P("c", tu.TText())), tu.Block(
		tu.Do(tu.Call("consume", tu.Id("a"))),
		tu.Do(tu.M(tu.Id("b"), "push", tu.Id("c"))),
	))
	pol := config.Default().Policy
	tbl := symbols.Collect(tu.U, &pol, diag.NopReporter{})
	ctx := &symbols.Context{Unit: tu.U, Table: tbl, Policy: &pol}
	res, err := usage.Analyze(ctx, fn)
	if err != nil {
		t.Fatal(err)
	}
	first, _ := ownership.Infer(ctx, res)
	for range 3 {
		again, _ := ownership.Infer(ctx, res)
		if !first.Equal(again) {
			t.Fatalf("decisions changed: %v vs %v", first.Ownerships(), again.Ownerships())
		}
	}
}

func TestInferRejectsNilUsage(t *testing.T) {
	tu := testkit.NewUnit()
	tbl := symbols.Collect(tu.U, nil, diag.NopReporter{})
	if _, err := ownership.Infer(&symbols.Context{Unit: tu.U, Table: tbl}, nil); err == nil {
		t.Fatal("expected an error")
	}
}
