package driver

import (
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"owninfer/internal/autoclone"
	"owninfer/internal/diag"
	"owninfer/internal/trace"
)

// insert plans and applies the duplications of every function in parallel.
// Each worker reports into its own bag; the bags are merged and the new
// bodies installed in function order after all workers finished, so the
// outcome does not depend on scheduling.
func (d *run) insert(bag *diag.Bag) error {
	ph := d.clock.begin("dup")
	span := trace.Begin(d.tracer, trace.ScopePass, "dup", trace.CurrentSpan(d.ctx))

	actx := d.context(d.used)
	results := make([]*autoclone.Result, len(d.fns))
	bags := make([]*diag.Bag, len(d.fns))

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
			d.opts.Progress.OnEvent(Event{Index: i, Fn: f.Name, Stage: StageDup, Status: StatusWorking})

			bags[i] = diag.NewBag(d.cfg.Driver.MaxDiagnostics)
			res, err := autoclone.Insert(actx, f.Usage, f.Decisions, diag.NewDedupReporter(diag.BagReporter{Bag: bags[i]}))
			if err != nil {
				fspan.End("error")
				d.opts.Progress.OnEvent(Event{Index: i, Fn: f.Name, Stage: StageDup, Status: StatusError, Err: err})
				return fmt.Errorf("%s: %w", f.Name, err)
			}
			results[i] = res
			if d.tracer.Level().ShouldEmit(trace.ScopeNode) {
				for _, s := range res.Sites {
					trace.Point(d.tracer, trace.ScopeNode, "dup", s.Binding+" ("+s.Reason.String()+")", fspan.ID())
				}
			}
			fspan.End(fmt.Sprintf("%d site(s)", len(res.Sites)))
			status := StatusDone
			if bags[i].HasErrors() {
				status = StatusError
			}
			d.opts.Progress.OnEvent(Event{Index: i, Fn: f.Name, Stage: StageDup, Status: status, Elapsed: time.Since(start)})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.End("error")
		ph.end("error")
		return err
	}

	sites := 0
	for i := range d.fns {
		bag.Merge(bags[i])
		d.fns[i].Dups = results[i]
		sites += len(results[i].Sites)
		if d.opts.DryRun || !results[i].Changed() {
			continue
		}
		if !d.unit.AST.Items.ReplaceFnBody(d.fns[i].Fn, results[i].Body) {
			return fmt.Errorf("driver: cannot install body of %s", d.fns[i].Name)
		}
	}
	note := fmt.Sprintf("%d site(s)", sites)
	span.End(note)
	ph.end(note)
	return nil
}
