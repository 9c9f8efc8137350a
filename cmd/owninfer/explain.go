package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"owninfer/internal/diagfmt"
	"owninfer/internal/driver"
	"owninfer/internal/report"
	"owninfer/internal/usage"
)

var explainCmd = &cobra.Command{
	Use:   "explain <unit> <function>",
	Short: "Show why a function's parameters were passed the way they were",
	Long: `Show the decisions for one function (name or Owner::name): the mode and
reason of every parameter, the usage facts behind them, each planned
duplication and the body with the duplications in place.`,
	Args: cobra.ExactArgs(2),
	RunE: runExplain,
}

func runExplain(cmd *cobra.Command, args []string) error {
	u, err := loadUnit(args[0])
	if err != nil {
		return err
	}
	res, err := driver.Run(cmd.Context(), u, driver.Options{Config: cliConfig, DryRun: true})
	if err != nil {
		return finish(cmd, 0, err)
	}
	f, ok := res.Lookup(args[1])
	if !ok {
		return finish(cmd, 0, fmt.Errorf("no function %q in %s", args[1], args[0]))
	}
	prev := color.NoColor
	color.NoColor = !useColor(cmd, os.Stdout)
	defer func() { color.NoColor = prev }()

	explain(cmd.OutOrStdout(), res, f)
	return nil
}

var (
	explainHeading = color.New(color.Bold)
	explainDim     = color.New(color.FgHiBlack)
	explainDup     = color.New(color.FgBlue)
)

func explain(w io.Writer, res *driver.Result, f *driver.FunctionResult) {
	u := res.Unit
	fmt.Fprintf(w, "%s %s\n", explainHeading.Sprint("fn "+f.Name), explainDim.Sprintf("(%d round(s))", res.Rounds))

	explainHeading.Fprintln(w, "params")
	for _, p := range f.Decisions.Params {
		source := "inferred"
		if p.Explicit() {
			source = "written"
		}
		fmt.Fprintf(w, "  %-12s %-13s %s %s\n", p.Name, p.Ownership, p.Reason, explainDim.Sprint("("+source+")"))
	}
	for i := range f.Decisions.Conflicts {
		c := &f.Decisions.Conflicts[i]
		fmt.Fprintf(w, "  %s %s\n", color.RedString("conflict"), c.Message())
	}

	explainHeading.Fprintln(w, "facts")
	for i := range f.Usage.Bindings {
		b := &f.Usage.Bindings[i]
		if b.Copy {
			continue
		}
		flags := factFlags(f.Usage.Fact(b.ID))
		if len(flags) == 0 {
			flags = []string{"unused"}
		}
		fmt.Fprintf(w, "  %-12s %-8s %s\n", u.Name(b.Name), b.Kind, strings.Join(flags, ", "))
	}

	if len(f.Decisions.MutLocals) > 0 {
		names := make([]string, 0, len(f.Decisions.MutLocals))
		for _, l := range f.Decisions.MutLocals {
			names = append(names, l.Name)
		}
		fmt.Fprintf(w, "%s %s\n", explainHeading.Sprint("mut locals"), strings.Join(names, ", "))
	}

	if f.Dups == nil || len(f.Dups.Sites) == 0 {
		explainDim.Fprintln(w, "no duplications")
		return
	}
	explainHeading.Fprintln(w, "duplications")
	for _, s := range f.Dups.Sites {
		fmt.Fprintf(w, "  %s %s at %s  %s", explainDup.Sprint("dup"), s.Binding, report.Location(u.Files, s.Span), s.Reason)
		if !s.Later.Empty() {
			explainDim.Fprintf(w, ", used again at %s", report.Location(u.Files, s.Later))
		}
		fmt.Fprintln(w)
	}
	explainHeading.Fprintln(w, "body")
	fmt.Fprintf(w, "  %s\n", diagfmt.FormatExpr(u, f.Dups.Body))
}

func factFlags(f *usage.Fact) []string {
	if f == nil {
		return nil
	}
	var out []string
	if f.ReadCount > 0 {
		out = append(out, fmt.Sprintf("read %d time(s)", f.ReadCount))
	}
	for _, flag := range []struct {
		set  bool
		name string
	}{
		{f.Mutated, "mutated"},
		{f.FieldMutated, "field mutated"},
		{f.SelfCallMutated, "mutating method called"},
		{f.MovedIntoOwned, "moved"},
		{f.PartiallyMoved, "partially moved"},
		{f.Returned, "returned"},
		{f.Stored, "stored"},
		{f.CapturedByEscapingClosure, "captured by escaping closure"},
		{f.Reassigned, "reassigned"},
		{f.Ambiguous, "ambiguous"},
	} {
		if flag.set {
			out = append(out, flag.name)
		}
	}
	return out
}
