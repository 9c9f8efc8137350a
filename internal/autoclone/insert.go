// Package autoclone rewrites a function body so that every value still
// needed after a move is duplicated at the move site.
package autoclone

import (
	"errors"
	"fmt"
	"slices"

	"owninfer/internal/ast"
	"owninfer/internal/diag"
	"owninfer/internal/ownership"
	"owninfer/internal/source"
	"owninfer/internal/symbols"
	"owninfer/internal/usage"
)

// Reason says why a duplication was inserted.
type Reason uint8

const (
	// MovedButUsedLater: the place is used again after the move.
	MovedButUsedLater Reason = iota + 1
	// MovedInLoop: the move runs again on the next iteration.
	MovedInLoop
	// BorrowedSource: the value is only borrowed here and cannot be moved.
	BorrowedSource
)

func (r Reason) String() string {
	switch r {
	case MovedButUsedLater:
		return "moved_but_used_later"
	case MovedInLoop:
		return "moved_in_loop"
	case BorrowedSource:
		return "borrowed_source"
	default:
		return "?"
	}
}

func (r Reason) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Reason) UnmarshalText(text []byte) error {
	for c := MovedButUsedLater; c <= BorrowedSource; c++ {
		if c.String() == string(text) {
			*r = c
			return nil
		}
	}
	return fmt.Errorf("unknown dup reason %q", text)
}

// Site is one inserted duplication.
type Site struct {
	// Expr is the operand in the original body; Dup wraps its rewrite.
	Expr    ast.ExprID  `yaml:"-" json:"-" msgpack:"expr"`
	Dup     ast.ExprID  `yaml:"-" json:"-" msgpack:"dup"`
	Binding string      `yaml:"binding,omitempty" json:"binding,omitempty" msgpack:"binding,omitempty"`
	Reason  Reason      `yaml:"reason" json:"reason" msgpack:"reason"`
	Span    source.Span `yaml:"-" json:"-" msgpack:"-"`
	// Later is the use that keeps the binding alive, when there is one.
	Later source.Span `yaml:"-" json:"-" msgpack:"-"`
}

type Result struct {
	Fn ast.ItemID
	// Body is the rewritten body; it equals the original when no site was
	// needed.
	Body  ast.ExprID
	Sites []Site
}

// Changed reports whether the body was rewritten.
func (r *Result) Changed() bool { return len(r.Sites) > 0 }

var ErrNoDecisions = errors.New("autoclone: missing usage or decisions")

// Insert plans and applies the duplications of one function. The original
// body is never modified; the caller owns the function's body slot and
// installs Result.Body. Partial-move reuse is reported as an error and
// reuse after an owning closure capture as a warning.
func Insert(ctx *symbols.Context, res *usage.Result, dec *ownership.Decisions, r diag.Reporter) (*Result, error) {
	if res == nil || dec == nil {
		return nil, ErrNoDecisions
	}
	decl, ok := ctx.Unit.AST.Items.Fn(res.Fn)
	if !ok {
		return nil, fmt.Errorf("autoclone: item %d is not a function", res.Fn)
	}
	if r == nil {
		r = diag.NopReporter{}
	}
	p := newPlanner(res, dec)
	out := &Result{Fn: res.Fn, Body: decl.Body}

	wrap := make(map[ast.ExprID]int)
	add := func(s Site) {
		if _, dup := wrap[s.Expr]; dup {
			return
		}
		wrap[s.Expr] = len(out.Sites)
		out.Sites = append(out.Sites, s)
	}
	for i := range res.Occurrences {
		a := &res.Occurrences[i]
		reason, later, need := p.siteFor(a)
		if !need {
			continue
		}
		s := Site{
			Expr:    a.Expr,
			Binding: ctx.Unit.Name(res.Binding(a.Binding).Name),
			Reason:  reason,
			Span:    a.Span,
		}
		if later != nil {
			s.Later = later.Span
		}
		add(s)
		if reason == MovedInLoop {
			diag.ReportInfo(r, diag.OwnMovedInLoop, a.Span,
				fmt.Sprintf("%q is moved on every iteration and is duplicated here each time", s.Binding)).
				WithNote(later.Span, "the value is used again here").Emit()
		}
	}
	for _, rr := range res.RefResults {
		add(Site{Expr: rr.Expr, Reason: BorrowedSource, Span: rr.Span})
	}

	p.partialMoves(ctx.Unit, r)
	p.escapingCaptures(ctx.Unit, r)

	if len(out.Sites) == 0 {
		return out, nil
	}
	ex := ctx.Unit.AST.Exprs
	rw := ast.NewRewriter(ctx.Unit.AST, func(orig, cur ast.ExprID) ast.ExprID {
		i, ok := wrap[orig]
		if !ok {
			return cur
		}
		d := ex.NewDup(cur)
		out.Sites[i].Dup = d
		return d
	})
	out.Body = rw.Expr(decl.Body)
	slices.SortStableFunc(out.Sites, func(a, b Site) int {
		switch {
		case a.Span.Before(b.Span):
			return -1
		case b.Span.Before(a.Span):
			return 1
		}
		return 0
	})
	return out, nil
}

// partialMoves reports uses of a binding after part of it was moved out
// through a destructuring pattern. The moved part is never duplicated.
func (p *planner) partialMoves(u *ast.Unit, r diag.Reporter) {
	for i := range p.res.Bindings {
		part := &p.res.Bindings[i]
		if part.From == nil || part.Copy || part.ByRef || p.borrowed(part) {
			continue
		}
		move := p.firstMove(part.ID)
		if move == nil {
			continue
		}
		root := p.res.Binding(part.From.Root)
		for _, b := range p.byBinding[part.From.Root] {
			if b.Ordinal <= move.Ordinal || !part.From.Path.Overlaps(b.Path) || b.ExclusiveWith(move) {
				continue
			}
			if reinit(b, move) {
				break
			}
			diag.ReportError(r, diag.OwnPartialMoveReuse, b.Span,
				fmt.Sprintf("%q is used after %q was moved out of it; only its remaining parts may be used", u.Name(root.Name), u.Name(part.Name))).
				WithNote(part.From.Span, "destructured here").
				WithNote(move.Span, fmt.Sprintf("%q moved here", u.Name(part.Name))).
				Emit()
			break
		}
	}
}

func (p *planner) firstMove(b usage.BindingID) *usage.Occurrence {
	fact := p.res.Fact(b)
	if fact == nil || !fact.Consumed() {
		return nil
	}
	for _, o := range p.byBinding[b] {
		if o.Kind == usage.OccMove && !o.Copy {
			return o
		}
	}
	return nil
}

// escapingCaptures warns when a value captured by an owning closure is used
// after the closure expression.
func (p *planner) escapingCaptures(u *ast.Unit, r diag.Reporter) {
	for i := range p.res.Closures {
		c := &p.res.Closures[i]
		if !c.Owning() {
			continue
		}
		for _, b := range c.Captures {
			bind := p.res.Binding(b)
			if bind == nil || bind.Copy {
				continue
			}
			var inside *usage.Occurrence
			for _, o := range p.byBinding[b] {
				if o.Ordinal >= c.Start && o.Ordinal <= c.End {
					if inside == nil {
						inside = o
					}
					continue
				}
				if o.Ordinal <= c.End || (inside != nil && o.ExclusiveWith(inside)) {
					continue
				}
				diag.ReportWarning(r, diag.OwnEscapingCaptureReuse, o.Span,
					fmt.Sprintf("%q is owned by a closure that outlives this scope and is used again here", u.Name(bind.Name))).
					WithNote(c.Span, "captured here").
					Emit()
				break
			}
		}
	}
}
