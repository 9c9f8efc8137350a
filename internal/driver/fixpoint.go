package driver

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"owninfer/internal/ast"
	"owninfer/internal/diag"
	"owninfer/internal/ownership"
	"owninfer/internal/source"
	"owninfer/internal/symbols"
	"owninfer/internal/trace"
	"owninfer/internal/usage"
)

// roundLimit bounds the fixpoint. The first round always differs from the
// empty snapshot. After it an inferred parameter can only descend (Owned,
// MutBorrowed, Borrowed), so it changes at most twice, and one more round
// confirms the result.
func (d *run) roundLimit() int {
	if d.cfg.Driver.MaxRounds > 0 {
		return d.cfg.Driver.MaxRounds
	}
	params := 0
	for _, f := range d.fns {
		if decl, ok := d.unit.AST.Items.Fn(f.Fn); ok {
			params += len(decl.Params)
		}
	}
	return 2*params + 2
}

// fixpoint re-infers every function against the previous round's signature
// snapshot until the snapshot stops changing. The first round sees no
// snapshot, so every callee parameter counts as Owned.
func (d *run) fixpoint() (rounds int, converged bool, err error) {
	limit := d.roundLimit()
	var sigs *symbols.Signatures
	for round := 1; round <= limit; round++ {
		ph := d.clock.begin(fmt.Sprintf("infer round %d", round))
		next, err := d.inferRound(round, sigs)
		d.used = sigs
		if err != nil {
			ph.end("error")
			return round, false, err
		}
		stable := next.Equal(sigs)
		if stable {
			ph.end("stable")
		} else {
			ph.end("changed")
		}
		if stable {
			return round, true, nil
		}
		sigs = next
	}
	return limit, false, nil
}

// inferRound analyzes and infers every function in parallel against sigs
// and returns the snapshot the round produced.
func (d *run) inferRound(round int, sigs *symbols.Signatures) (*symbols.Signatures, error) {
	span := trace.Begin(d.tracer, trace.ScopePass, "infer", trace.CurrentSpan(d.ctx)).
		WithExtra("round", fmt.Sprint(round))
	defer span.End("")

	actx := d.context(sigs)
	usages := make([]*usage.Result, len(d.fns))
	decisions := make([]*ownership.Decisions, len(d.fns))

	g, gctx := errgroup.WithContext(d.ctx)
	g.SetLimit(min(d.jobs, max(len(d.fns), 1)))
	for i := range d.fns {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			f := &d.fns[i]
			fspan := trace.Begin(d.tracer, trace.ScopeFunction, f.Name, span.ID())
			start := time.Now()
			d.opts.Progress.OnEvent(Event{Index: i, Fn: f.Name, Stage: StageInfer, Status: StatusWorking, Round: round})

			res, err := usage.Analyze(actx, f.Fn)
			if err == nil {
				decisions[i], err = ownership.Infer(actx, res)
			}
			if err != nil {
				fspan.End("error")
				d.opts.Progress.OnEvent(Event{Index: i, Fn: f.Name, Stage: StageInfer, Status: StatusError, Round: round, Err: err})
				return fmt.Errorf("%s: %w", f.Name, err)
			}
			usages[i] = res
			if d.tracer.Level().ShouldEmit(trace.ScopeNode) {
				for _, p := range decisions[i].Params {
					trace.Point(d.tracer, trace.ScopeNode, p.Name, p.Ownership.String()+" ("+p.Reason.String()+")", fspan.ID())
				}
			}
			fspan.End(ownershipSummary(decisions[i]))
			d.opts.Progress.OnEvent(Event{Index: i, Fn: f.Name, Stage: StageInfer, Status: StatusDone, Round: round, Elapsed: time.Since(start)})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	params := make(map[ast.ItemID][]symbols.Ownership, len(d.fns))
	for i := range d.fns {
		d.fns[i].Usage = usages[i]
		d.fns[i].Decisions = decisions[i]
		params[d.fns[i].Fn] = decisions[i].Ownerships()
	}
	return symbols.NewSignatures(round, params), nil
}

func ownershipSummary(dec *ownership.Decisions) string {
	parts := make([]string, len(dec.Params))
	for i, p := range dec.Params {
		parts[i] = p.Name + ":" + p.Ownership.String()
	}
	return strings.Join(parts, " ")
}

// reportConflicts reports the trait conflicts of the final round once, in
// function order.
func (d *run) reportConflicts(bag *diag.Bag) {
	r := diag.BagReporter{Bag: bag}
	for i := range d.fns {
		dec := d.fns[i].Decisions
		if dec == nil {
			continue
		}
		for j := range dec.Conflicts {
			dec.Conflicts[j].Report(r)
		}
	}
}

// reportDiverged names the functions whose signature still differs from
// the snapshot the last round was inferred against.
func (d *run) reportDiverged(bag *diag.Bag, rounds int) {
	var changing []string
	for i := range d.fns {
		f := &d.fns[i]
		if f.Decisions == nil {
			continue
		}
		if !slices.Equal(f.Decisions.Ownerships(), d.used.Params(f.Fn)) {
			changing = append(changing, f.Name)
		}
	}
	b := diag.ReportError(diag.BagReporter{Bag: bag}, diag.OwnInferenceDiverged, source.NoSpan,
		fmt.Sprintf("parameter ownership did not settle after %d round(s); decisions may be inconsistent across calls", rounds))
	for _, name := range changing {
		b = b.WithNote(source.NoSpan, fmt.Sprintf("signature of %s still changing", name))
	}
	b.Emit()
}
