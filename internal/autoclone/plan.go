package autoclone

import (
	"slices"

	"owninfer/internal/ownership"
	"owninfer/internal/symbols"
	"owninfer/internal/usage"
)

// planner decides which move sites need a duplication. It only reads the
// usage result; nothing is allocated until the rewrite.
type planner struct {
	res *usage.Result
	dec *ownership.Decisions
	// byBinding holds the occurrences of each binding in ordinal order.
	byBinding map[usage.BindingID][]*usage.Occurrence
}

func newPlanner(res *usage.Result, dec *ownership.Decisions) *planner {
	p := &planner{res: res, dec: dec, byBinding: make(map[usage.BindingID][]*usage.Occurrence)}
	for i := range res.Occurrences {
		o := &res.Occurrences[i]
		p.byBinding[o.Binding] = append(p.byBinding[o.Binding], o)
	}
	return p
}

// siteFor returns the reason a move occurrence needs a duplication and the
// use that makes it necessary, or ok=false when the move may stand.
func (p *planner) siteFor(a *usage.Occurrence) (reason Reason, later *usage.Occurrence, ok bool) {
	if a.Kind != usage.OccMove || a.Copy {
		return 0, nil, false
	}
	bind := p.res.Binding(a.Binding)
	if bind == nil {
		return 0, nil, false
	}
	if p.borrowed(bind) || opaquePath(a.Path) {
		if p.traitBound(bind) {
			// Reported as a trait conflict; a duplication would hide it.
			return 0, nil, false
		}
		return BorrowedSource, nil, true
	}
	if p.partMovedBefore(a) {
		// Reported as partial-move reuse; the remainder cannot be duplicated.
		return 0, nil, false
	}
	if b := p.laterUse(a); b != nil {
		return MovedButUsedLater, b, true
	}
	if b := p.recurs(a, bind); b != nil {
		return MovedInLoop, b, true
	}
	return 0, nil, false
}

// laterUse scans forward in textual order for a reachable use of the moved
// place. An unconditional re-initialisation ends the scan.
func (p *planner) laterUse(a *usage.Occurrence) *usage.Occurrence {
	for _, b := range p.byBinding[a.Binding] {
		if b.Ordinal <= a.Ordinal || !a.Path.Overlaps(b.Path) {
			continue
		}
		if a.ExclusiveWith(b) || !a.Precedes(b) {
			continue
		}
		if reinit(b, a) {
			return nil
		}
		return b
	}
	return nil
}

// recurs checks the next iterations of every loop that re-executes a: the
// body of the outermost such loop is scanned cyclically starting after a,
// so a use earlier in the body and a itself are both reached.
func (p *planner) recurs(a *usage.Occurrence, bind *usage.Binding) *usage.Occurrence {
	if len(a.Loops) <= len(bind.Loops) {
		return nil
	}
	var outer *usage.Loop
	for _, l := range a.Loops[len(bind.Loops):] {
		if !a.Exits(l) {
			outer = p.res.Loop(l)
			break
		}
	}
	if outer == nil {
		return nil
	}
	occ := p.byBinding[a.Binding]
	inLoop := func(b *usage.Occurrence) bool { return b.Ordinal >= outer.Start && b.Ordinal <= outer.End }
	scan := func(b *usage.Occurrence) (found, stop bool) {
		if !inLoop(b) || !a.Path.Overlaps(b.Path) {
			return false, false
		}
		if b != a && reinit(b, a) {
			return false, true
		}
		return true, false
	}
	for _, b := range occ {
		if b.Ordinal <= a.Ordinal {
			continue
		}
		if !a.Precedes(b) {
			continue
		}
		if found, stop := scan(b); stop {
			return nil
		} else if found {
			return b
		}
	}
	for _, b := range occ {
		if b.Ordinal > a.Ordinal {
			break
		}
		if found, stop := scan(b); stop {
			return nil
		} else if found {
			return b
		}
	}
	return nil
}

// partMovedBefore reports whether part of the place a moves was already
// moved out through a destructuring pattern on a path that reaches a.
func (p *planner) partMovedBefore(a *usage.Occurrence) bool {
	if f := p.res.Fact(a.Binding); f == nil || !f.PartiallyMoved {
		return false
	}
	for i := range p.res.Bindings {
		part := &p.res.Bindings[i]
		if part.From == nil || part.From.Root != a.Binding || part.Copy || part.ByRef {
			continue
		}
		if !a.Path.Overlaps(part.From.Path) {
			continue
		}
		if m := p.firstMove(part.ID); m != nil && m.Ordinal < a.Ordinal && !m.ExclusiveWith(a) && m.Precedes(a) {
			return true
		}
	}
	return false
}

// reinit reports whether r overwrites the place a moved and runs whenever
// a does.
func reinit(r, a *usage.Occurrence) bool {
	if r.Kind != usage.OccAssign || !r.Path.Covers(a.Path) {
		return false
	}
	return isPrefix(r.Branch, a.Branch) && isPrefix(r.Loops, a.Loops)
}

func isPrefix[T comparable](p, s []T) bool {
	return len(p) <= len(s) && slices.Equal(p, s[:len(p)])
}

func opaquePath(p usage.Path) bool {
	return slices.ContainsFunc(p, func(e usage.PathElem) bool { return e.Index || e.Deref })
}

// borrowed reports whether bind refers into storage this function does not
// own, so a move out of it must copy.
func (p *planner) borrowed(bind *usage.Binding) bool {
	switch {
	case bind.Kind == usage.BindLoopVar, bind.ByRef:
		return true
	case bind.Param >= 0:
		d, ok := p.dec.ForBinding(bind.ID)
		return ok && d.Ownership != symbols.Owned
	case bind.From != nil:
		if root := p.res.Binding(bind.From.Root); root != nil {
			return p.borrowed(root)
		}
	}
	return false
}

// traitBound reports a parameter whose borrowed mode comes from a trait.
func (p *planner) traitBound(bind *usage.Binding) bool {
	for bind.From != nil {
		bind = p.res.Binding(bind.From.Root)
	}
	if bind == nil || bind.Param < 0 {
		return false
	}
	d, ok := p.dec.ForBinding(bind.ID)
	return ok && d.Reason == ownership.ReasonTrait && d.Ownership != symbols.Owned
}
