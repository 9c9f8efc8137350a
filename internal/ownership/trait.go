package ownership

import (
	"fmt"

	"owninfer/internal/diag"
	"owninfer/internal/source"
	"owninfer/internal/symbols"
	"owninfer/internal/usage"
)

// Conflict is a trait implementation that cannot honour its trait.
type Conflict struct {
	Code     diag.Code
	Param    int
	Name     string
	Trait    string
	Method   string
	Mandated symbols.Ownership
	// Usage describes what the body does with the parameter.
	Usage    string
	Span     source.Span
	UseSpan  source.Span
	DeclSpan source.Span
}

func (c *Conflict) Message() string {
	switch c.Code {
	case diag.OwnTraitArity:
		return fmt.Sprintf("%s implements %s::%s with %s", c.Method, c.Trait, c.Method, c.Usage)
	case diag.OwnTraitUnknownMethod:
		return fmt.Sprintf("%s is not a method of trait %s", c.Method, c.Trait)
	}
	return fmt.Sprintf(
		"parameter %q of %s::%s must be %s, as declared by the trait, but the body %s; trait signatures are binding on every implementation",
		c.Name, c.Trait, c.Method, c.Mandated, c.Usage)
}

// Report emits c as an error with notes at the use site and the trait
// declaration when known.
func (c *Conflict) Report(r diag.Reporter) {
	b := diag.ReportError(r, c.Code, c.Span, c.Message())
	if c.UseSpan != source.NoSpan {
		b.WithNote(c.UseSpan, "conflicting use here")
	}
	if c.DeclSpan != source.NoSpan {
		b.WithNote(c.DeclSpan, "declared by the trait here")
	}
	b.Emit()
}

// ResolveImplParam decides parameter p of a trait implementation. The
// trait's ownership always wins; an Inferred copy parameter is Owned and any
// other Inferred parameter is Borrowed. The returned usage is non-empty when
// the body's facts contradict the mandated ownership.
func ResolveImplParam(p symbols.ParamSig, f *usage.Fact, isCopy bool) (symbols.Ownership, Reason, string) {
	mandated, explicit := symbols.FromHint(p.Hint)
	reason := ReasonTrait
	if !explicit {
		mandated = symbols.Borrowed
		if isCopy && !p.Self {
			mandated, reason = symbols.Owned, ReasonCopy
		}
	}
	if f == nil {
		return mandated, reason, ""
	}
	return mandated, reason, contradiction(mandated, f, isCopy)
}

func contradiction(mandated symbols.Ownership, f *usage.Fact, isCopy bool) string {
	if mandated == symbols.Owned {
		return ""
	}
	if !isCopy {
		switch {
		case f.Returned:
			return "returns it"
		case f.Stored:
			return "stores it"
		case f.CapturedByEscapingClosure:
			return "captures it in an escaping closure"
		case f.MovedIntoOwned:
			return "moves it into an owned parameter"
		case f.PartiallyMoved:
			return "moves out of it"
		}
	}
	if mandated == symbols.Borrowed && f.Mutated {
		return "mutates it"
	}
	return ""
}

// resolveTrait applies the trait contract to a trait implementation. It
// reports false when the method cannot be matched against the trait, in
// which case the generic decision stands and a conflict explains why.
func (e *engine) resolveTrait() bool {
	info := e.res.Info
	sig, ok := e.ctx.Table.TraitMethod(info.Trait, info.Name)
	if !ok {
		e.out.Conflicts = append(e.out.Conflicts, Conflict{
			Code:   diag.OwnTraitUnknownMethod,
			Param:  -1,
			Trait:  e.name(info.Trait),
			Method: e.name(info.Name),
			Span:   e.decl.Span,
		})
		return false
	}
	if len(sig.Params) != len(e.decl.Params) || sig.HasSelf() != e.hasSelf() {
		e.out.Conflicts = append(e.out.Conflicts, Conflict{
			Code:     diag.OwnTraitArity,
			Param:    -1,
			Trait:    e.name(info.Trait),
			Method:   e.name(info.Name),
			Usage:    arity(len(e.decl.Params), e.hasSelf(), len(sig.Params), sig.HasSelf()),
			Span:     e.decl.Span,
			DeclSpan: sig.Span,
		})
		return false
	}
	for i, tp := range sig.Params {
		d := &e.out.Params[i]
		isCopy := e.paramCopy(i)
		fact := e.res.ParamFact(i)
		mode, reason, conflict := ResolveImplParam(tp, fact, isCopy)
		written := d.Explicit() && d.Ownership != mode
		if written {
			conflict = fmt.Sprintf("declares it %s", d.Ownership)
		}
		d.Ownership, d.Reason = mode, reason
		if conflict == "" {
			continue
		}
		c := Conflict{
			Code:     diag.OwnTraitMismatch,
			Param:    i,
			Name:     d.Name,
			Trait:    e.name(info.Trait),
			Method:   e.name(info.Name),
			Mandated: mode,
			Usage:    conflict,
			Span:     d.Span,
			DeclSpan: tp.Span,
		}
		if !written {
			c.UseSpan = e.useSpan(d.Binding, mode)
		}
		e.out.Conflicts = append(e.out.Conflicts, c)
	}
	return true
}

func arity(got int, gotSelf bool, want int, wantSelf bool) string {
	recv := func(b bool) string {
		if b {
			return "a receiver"
		}
		return "no receiver"
	}
	return fmt.Sprintf("%d parameters and %s; the trait declares %d and %s", got, recv(gotSelf), want, recv(wantSelf))
}

// useSpan finds the first occurrence of b that a parameter passed as mode
// cannot perform.
func (e *engine) useSpan(b usage.BindingID, mode symbols.Ownership) source.Span {
	for _, o := range e.res.OccurrencesOf(b) {
		switch {
		case o.Kind == usage.OccMove && !o.Copy:
			return o.Span
		case mode == symbols.Borrowed && (o.Kind == usage.OccMutate || o.Kind == usage.OccAssign):
			return o.Span
		}
	}
	return source.NoSpan
}

func (e *engine) hasSelf() bool {
	if len(e.decl.Params) == 0 {
		return false
	}
	p := e.ctx.Unit.AST.Items.Param(e.decl.Params[0])
	return p != nil && p.Self
}
