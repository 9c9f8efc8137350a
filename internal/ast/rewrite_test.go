package ast

import (
	"testing"

	"owninfer/internal/source"
)

// consume(items); log(items.len)
func buildCallBody(b *Builder, in *source.Interner) (body, arg ExprID) {
	ex, st := b.Exprs, b.Stmts
	items := in.Intern("items")
	arg = ex.NewIdent(source.Span{Start: 8, End: 13}, items)
	call := ex.NewCall(source.Span{Start: 0, End: 14}, ex.NewIdent(source.Span{Start: 0, End: 7}, in.Intern("consume")), []ExprID{arg})
	field := ex.NewField(source.Span{Start: 20, End: 29}, ex.NewIdent(source.Span{Start: 20, End: 25}, items), in.Intern("len"))
	log := ex.NewCall(source.Span{Start: 16, End: 30}, ex.NewIdent(source.Span{Start: 16, End: 19}, in.Intern("log")), []ExprID{field})
	body = ex.NewBlock(source.Span{Start: 0, End: 30}, []StmtID{
		st.NewExpr(source.Span{Start: 0, End: 14}, call),
		st.NewExpr(source.Span{Start: 16, End: 30}, log),
	}, NoExprID)
	return body, arg
}

func TestRewriterIdentityKeepsIDs(t *testing.T) {
	b := NewBuilder(Hints{})
	body, _ := buildCallBody(b, source.NewInterner())
	before := b.NodeCount()
	got := NewRewriter(b, nil).Expr(body)
	if got != body {
		t.Fatalf("untouched tree was rebuilt: %d != %d", got, body)
	}
	if b.NodeCount() != before {
		t.Fatalf("identity rewrite allocated %d nodes", b.NodeCount()-before)
	}
}

func TestRewriterCopiesOnlyTheSpine(t *testing.T) {
	b := NewBuilder(Hints{})
	body, arg := buildCallBody(b, source.NewInterner())
	origBlock, _ := b.Exprs.Block(body)
	origStmts := append([]StmtID(nil), origBlock.Stmts...)

	rw := NewRewriter(b, func(orig, cur ExprID) ExprID {
		if orig == arg {
			return b.Exprs.NewDup(cur)
		}
		return cur
	})
	got := rw.Expr(body)
	if got == body {
		t.Fatalf("expected a new body")
	}

	// original untouched
	blk, _ := b.Exprs.Block(body)
	for i, s := range blk.Stmts {
		if s != origStmts[i] {
			t.Fatalf("original block statement %d changed", i)
		}
	}

	newBlk, _ := b.Exprs.Block(got)
	if newBlk.Stmts[1] != origStmts[1] {
		t.Fatalf("unchanged statement should be shared")
	}
	callID, _ := b.Stmts.ExprOf(newBlk.Stmts[0])
	call, _ := b.Exprs.Call(callID)
	dup := b.Exprs.Get(call.Args[0])
	if dup.Kind != ExprDup {
		t.Fatalf("argument kind = %s, want dup", dup.Kind)
	}
	inner, _ := b.Exprs.Wrapped(call.Args[0])
	if inner != arg {
		t.Fatalf("dup must wrap the original operand")
	}
	if dup.Span != b.Exprs.Get(arg).Span {
		t.Fatalf("dup span %v, want operand span", dup.Span)
	}
}

func TestRewriterDoesNotDescendIntoDup(t *testing.T) {
	b := NewBuilder(Hints{})
	in := source.NewInterner()
	x := b.Exprs.NewIdent(source.NoSpan, in.Intern("x"))
	d := b.Exprs.NewDup(x)
	calls := 0
	NewRewriter(b, func(orig, cur ExprID) ExprID {
		calls++
		return cur
	}).Expr(d)
	if calls != 0 {
		t.Fatalf("post hook ran %d times inside a dup", calls)
	}
}
