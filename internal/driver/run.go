// Package driver runs the ownership middle-end over one unit: declaration
// collection, the interprocedural inference fixpoint and duplication
// insertion, with per-function work spread over a bounded worker pool.
package driver

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"github.com/google/uuid"

	"owninfer/internal/ast"
	"owninfer/internal/autoclone"
	"owninfer/internal/config"
	"owninfer/internal/diag"
	"owninfer/internal/observ"
	"owninfer/internal/ownership"
	"owninfer/internal/symbols"
	"owninfer/internal/trace"
	"owninfer/internal/usage"
	"owninfer/internal/version"
)

var ErrNilUnit = errors.New("driver: nil unit")

type Options struct {
	Config config.Config
	// Progress receives per-function events; nil discards them.
	Progress ProgressSink
	Observer PhaseObserver
	// DryRun plans duplications without installing the rewritten bodies.
	DryRun bool
	// Timings appends the phase report to the diagnostics.
	Timings bool
}

// FunctionResult is everything the run decided for one function.
type FunctionResult struct {
	Fn        ast.ItemID
	Name      string
	Info      symbols.FnInfo
	Usage     *usage.Result
	Decisions *ownership.Decisions
	Dups      *autoclone.Result
}

type Result struct {
	RunID     uuid.UUID
	Unit      *ast.Unit
	Table     *symbols.Table
	Functions []FunctionResult
	// Rounds is the number of inference rounds run; Converged is false when
	// the round limit was hit before the signatures stopped changing.
	Rounds    int
	Converged bool
	Bag       *diag.Bag
	Timing    observ.Report
}

// Function returns the result for fn.
func (r *Result) Function(fn ast.ItemID) (*FunctionResult, bool) {
	for i := range r.Functions {
		if r.Functions[i].Fn == fn {
			return &r.Functions[i], true
		}
	}
	return nil, false
}

// Lookup finds a function by its display name, "name" or "Type::name".
func (r *Result) Lookup(name string) (*FunctionResult, bool) {
	for i := range r.Functions {
		if r.Functions[i].Name == name {
			return &r.Functions[i], true
		}
	}
	return nil, false
}

// Sites counts the inserted duplications over all functions.
func (r *Result) Sites() int {
	n := 0
	for i := range r.Functions {
		if d := r.Functions[i].Dups; d != nil {
			n += len(d.Sites)
		}
	}
	return n
}

// DisplayName renders a function as "name" or "Type::name".
func DisplayName(u *ast.Unit, info symbols.FnInfo) string {
	if info.IsMethod() {
		return u.Name(info.Owner) + "::" + u.Name(info.Name)
	}
	return u.Name(info.Name)
}

// Run infers parameter ownership for every function of u and inserts the
// duplications the decisions require. Unless DryRun is set, the function
// bodies of u are replaced by their rewritten versions once all workers are
// done. User-facing problems are reported in Result.Bag; the returned error
// is reserved for operational failures and cancellation.
func Run(ctx context.Context, u *ast.Unit, opts Options) (*Result, error) {
	if u == nil {
		return nil, ErrNilUnit
	}
	if err := version.CheckUnitSchema(u.Schema); err != nil {
		return nil, fmt.Errorf("driver: %w", err)
	}
	cfg := opts.Config
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("driver: %w", err)
	}
	if opts.Progress == nil {
		opts.Progress = nopSink{}
	}

	tracer := trace.FromContext(ctx)
	runID := uuid.New()
	span := trace.Begin(tracer, trace.ScopeDriver, "owninfer", trace.CurrentSpan(ctx)).
		WithExtra("run", runID.String())
	ctx = trace.WithSpan(ctx, span)

	timer := observ.NewTimer()
	clock := &phaseClock{timer: timer, observer: opts.Observer}
	bag := diag.NewBag(cfg.Driver.MaxDiagnostics)

	d := &run{
		ctx:    ctx,
		unit:   u,
		cfg:    &cfg,
		opts:   &opts,
		tracer: tracer,
		clock:  clock,
		jobs:   jobs(cfg.Driver.Jobs),
	}

	ph := clock.begin("collect")
	opts.Progress.OnEvent(Event{Index: -1, Stage: StageCollect, Status: StatusWorking})
	d.table = symbols.Collect(u, &cfg.Policy, diag.BagReporter{Bag: bag})
	d.initFunctions()
	ph.end(fmt.Sprintf("%d function(s)", len(d.fns)))
	opts.Progress.OnEvent(Event{Index: -1, Stage: StageCollect, Status: StatusDone})
	for i := range d.fns {
		opts.Progress.OnEvent(Event{Index: i, Fn: d.fns[i].Name, Stage: StageInfer, Status: StatusQueued})
	}

	rounds, converged, err := d.fixpoint()
	if err != nil {
		span.End("error")
		return nil, err
	}
	d.reportConflicts(bag)
	if !converged {
		d.reportDiverged(bag, rounds)
	}

	if err := d.insert(bag); err != nil {
		span.End("error")
		return nil, err
	}

	bag.Sort()
	bag.Dedup()
	res := &Result{
		RunID:     runID,
		Unit:      u,
		Table:     d.table,
		Functions: d.fns,
		Rounds:    rounds,
		Converged: converged,
		Bag:       bag,
		Timing:    timer.Report(),
	}
	if opts.Timings {
		appendTimingDiagnostic(bag, timingPayload{
			RunID:   runID.String(),
			Rounds:  rounds,
			TotalMS: res.Timing.TotalMS,
			Phases:  res.Timing.Phases,
		})
	}
	span.WithExtra("rounds", fmt.Sprint(rounds)).End(fmt.Sprintf("%d function(s), %d dup(s)", len(d.fns), res.Sites()))
	return res, nil
}

// run is the state shared by the phases of one Run.
type run struct {
	ctx    context.Context
	unit   *ast.Unit
	cfg    *config.Config
	opts   *Options
	tracer trace.Tracer
	clock  *phaseClock
	jobs   int

	table *symbols.Table
	fns   []FunctionResult
	// used is the snapshot the latest round was inferred against.
	used *symbols.Signatures
}

func jobs(n int) int {
	if n <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return n
}

func (d *run) initFunctions() {
	ids := d.table.Functions()
	d.fns = make([]FunctionResult, len(ids))
	for i, id := range ids {
		info, _ := d.table.Info(id)
		d.fns[i] = FunctionResult{Fn: id, Name: DisplayName(d.unit, info), Info: info}
	}
}

func (d *run) context(sigs *symbols.Signatures) *symbols.Context {
	return &symbols.Context{Unit: d.unit, Table: d.table, Policy: &d.cfg.Policy, Sigs: sigs}
}

// FunctionNames lists the display names of u's functions in the order Run
// reports them, so a progress view can be laid out before the run starts.
func FunctionNames(u *ast.Unit, pol *config.Policy) []string {
	tbl := symbols.Collect(u, pol, diag.NopReporter{})
	ids := tbl.Functions()
	names := make([]string, len(ids))
	for i, id := range ids {
		info, _ := tbl.Info(id)
		names[i] = DisplayName(u, info)
	}
	return names
}
