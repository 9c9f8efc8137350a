// Package report turns a driver result into the ownership report handed to
// code generation and shown to users.
package report

import (
	"fmt"

	"github.com/google/uuid"

	"owninfer/internal/ast"
	"owninfer/internal/autoclone"
	"owninfer/internal/diag"
	"owninfer/internal/diagfmt"
	"owninfer/internal/driver"
	"owninfer/internal/observ"
	"owninfer/internal/ownership"
	"owninfer/internal/source"
)

type Report struct {
	RunID       uuid.UUID      `yaml:"run_id" json:"run_id" msgpack:"run_id"`
	Schema      string         `yaml:"schema" json:"schema" msgpack:"schema"`
	Rounds      int            `yaml:"rounds" json:"rounds" msgpack:"rounds"`
	Converged   bool           `yaml:"converged" json:"converged" msgpack:"converged"`
	Functions   []Function     `yaml:"functions" json:"functions" msgpack:"functions"`
	Diagnostics Summary        `yaml:"diagnostics" json:"diagnostics" msgpack:"diagnostics"`
	Timing      *observ.Report `yaml:"timing,omitempty" json:"timing,omitempty" msgpack:"timing,omitempty"`
}

type Function struct {
	Name      string               `yaml:"name" json:"name" msgpack:"name"`
	Trait     string               `yaml:"trait,omitempty" json:"trait,omitempty" msgpack:"trait,omitempty"`
	Params    []ownership.Decision `yaml:"params" json:"params" msgpack:"params"`
	MutLocals []string             `yaml:"mut_locals,omitempty" json:"mut_locals,omitempty" msgpack:"mut_locals,omitempty"`
	Dups      []Dup                `yaml:"dups,omitempty" json:"dups,omitempty" msgpack:"dups,omitempty"`
}

// Dup is one inserted duplication.
type Dup struct {
	Binding  string           `yaml:"binding,omitempty" json:"binding,omitempty" msgpack:"binding,omitempty"`
	Reason   autoclone.Reason `yaml:"reason" json:"reason" msgpack:"reason"`
	Expr     string           `yaml:"expr" json:"expr" msgpack:"expr"`
	Location string           `yaml:"location" json:"location" msgpack:"location"`
	// DupID is the Dup node in the rewritten unit.
	DupID ast.ExprID `yaml:"-" json:"-" msgpack:"dup_id"`
}

type Summary struct {
	Errors   int `yaml:"errors" json:"errors" msgpack:"errors"`
	Warnings int `yaml:"warnings" json:"warnings" msgpack:"warnings"`
	Infos    int `yaml:"infos" json:"infos" msgpack:"infos"`
}

type Options struct {
	// Timing includes the phase timings.
	Timing bool
}

// Build assembles the report of res. Functions keep declaration order and
// dups their source order.
func Build(res *driver.Result, opts Options) *Report {
	u := res.Unit
	rep := &Report{
		RunID:     res.RunID,
		Schema:    u.Schema,
		Rounds:    res.Rounds,
		Converged: res.Converged,
		Functions: make([]Function, 0, len(res.Functions)),
	}
	if res.Bag != nil {
		rep.Diagnostics = Summary{
			Errors:   res.Bag.Count(diag.SevError),
			Warnings: res.Bag.Count(diag.SevWarning),
			Infos:    res.Bag.Count(diag.SevInfo),
		}
	}
	if opts.Timing {
		t := res.Timing
		rep.Timing = &t
	}
	for i := range res.Functions {
		f := &res.Functions[i]
		fn := Function{Name: f.Name}
		if f.Info.IsTraitImpl() {
			fn.Trait = u.Name(f.Info.Trait)
		}
		if f.Decisions != nil {
			fn.Params = f.Decisions.Params
			for _, l := range f.Decisions.MutLocals {
				fn.MutLocals = append(fn.MutLocals, l.Name)
			}
		}
		if f.Dups != nil {
			for _, s := range f.Dups.Sites {
				fn.Dups = append(fn.Dups, Dup{
					Binding:  s.Binding,
					Reason:   s.Reason,
					Expr:     diagfmt.FormatExpr(u, s.Expr),
					Location: Location(u.Files, s.Span),
					DupID:    s.Dup,
				})
			}
		}
		rep.Functions = append(rep.Functions, fn)
	}
	return rep
}

// Location renders span as path:line:col.
func Location(fs *source.FileSet, span source.Span) string {
	start, _, ok := fs.Resolve(span)
	if !ok {
		return "<unknown>"
	}
	path := "<unknown>"
	if f := fs.Get(span.File); f != nil {
		path = f.Path
	}
	return fmt.Sprintf("%s:%d:%d", path, start.Line, start.Col)
}
