package ownership

import (
	"errors"
	"fmt"

	"owninfer/internal/ast"
	"owninfer/internal/source"
	"owninfer/internal/symbols"
	"owninfer/internal/usage"
)

var ErrNoUsage = errors.New("ownership: nil usage result")

type engine struct {
	ctx  *symbols.Context
	res  *usage.Result
	decl *ast.FnDecl
	out  *Decisions
}

// Infer decides every parameter of res.Fn from its usage facts. It is a pure
// function of its inputs: the same context and facts always give the same
// decisions. Trait conflicts are returned in Decisions.Conflicts, not
// reported, so a fixpoint driver can report them once.
func Infer(ctx *symbols.Context, res *usage.Result) (*Decisions, error) {
	if res == nil {
		return nil, ErrNoUsage
	}
	decl, ok := ctx.Unit.AST.Items.Fn(res.Fn)
	if !ok {
		return nil, fmt.Errorf("ownership: item %d is not a function", res.Fn)
	}
	if len(res.Params) != len(decl.Params) {
		return nil, fmt.Errorf("ownership: usage of %q has %d params, declaration has %d",
			ctx.Unit.Name(decl.Name), len(res.Params), len(decl.Params))
	}
	e := &engine{ctx: ctx, res: res, decl: decl, out: &Decisions{Fn: res.Fn}}
	e.generic()
	if res.Info.IsTraitImpl() {
		e.resolveTrait()
	}
	e.finish()
	return e.out, nil
}

// generic applies the decision table to every parameter.
func (e *engine) generic() {
	items := e.ctx.Unit.AST.Items
	e.out.Params = make([]Decision, len(e.decl.Params))
	for i, pid := range e.decl.Params {
		p := items.Param(pid)
		d := Decision{
			Param:   i,
			Name:    e.name(p.Name),
			Binding: e.res.Params[i],
			Self:    p.Self,
			Hint:    p.Hint,
			Span:    p.Span,
		}
		if o, ok := symbols.FromHint(p.Hint); ok {
			d.Ownership, d.Reason = o, ReasonHint
		} else {
			d.Ownership, d.Reason = e.decide(i, p.Self)
		}
		e.out.Params[i] = d
	}
}

// decide is the table for one inferred parameter. Ties go to Owned or
// MutBorrowed: a wrong Borrowed is rejected downstream, a wrong Owned only
// costs a duplication.
func (e *engine) decide(i int, self bool) (symbols.Ownership, Reason) {
	f := e.res.ParamFact(i)
	if self {
		if f.Mutated {
			return symbols.MutBorrowed, ReasonSelfMutated
		}
		return symbols.Borrowed, ReasonSelfDefault
	}
	switch {
	case e.paramCopy(i):
		return symbols.Owned, ReasonCopy
	case f.Consumed() || f.PartiallyMoved:
		return symbols.Owned, ReasonConsumed
	case f.Ambiguous:
		return symbols.Owned, ReasonAmbiguous
	case f.Reassigned:
		return symbols.Owned, ReasonReassigned
	case !f.Used():
		return symbols.Owned, ReasonUnused
	case f.Mutated:
		return symbols.MutBorrowed, ReasonMutated
	}
	return symbols.Borrowed, ReasonReadOnly
}

// finish derives the representation flags once every mode is final.
func (e *engine) finish() {
	types := e.ctx.Unit.AST.Types
	items := e.ctx.Unit.AST.Items
	for i := range e.out.Params {
		d := &e.out.Params[i]
		f := e.res.ParamFact(i)
		p := items.Param(e.decl.Params[i])
		d.TextView = d.Ownership == symbols.Borrowed && !d.Self && e.ctx.Table.IsTextType(types, p.Type)
		d.NeedsMut = d.Ownership == symbols.Owned && f.Mutated
	}
	for i := range e.res.Bindings {
		b := &e.res.Bindings[i]
		if b.Param >= 0 || b.ByRef || !e.res.Fact(b.ID).Mutated {
			continue
		}
		e.out.MutLocals = append(e.out.MutLocals, Local{Binding: b.ID, Name: e.name(b.Name), Span: b.Span})
	}
}

func (e *engine) paramCopy(i int) bool {
	b := e.res.Binding(e.res.Params[i])
	return b != nil && b.Copy
}

func (e *engine) name(id source.StringID) string {
	return e.ctx.Unit.Name(id)
}
