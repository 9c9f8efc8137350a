package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"owninfer/internal/driver"
	"owninfer/internal/report"
)

var inferCmd = &cobra.Command{
	Use:   "infer <unit>",
	Short: "Infer parameter ownership and insert duplications",
	Long: `Infer how every parameter of the unit is passed and where values must be
duplicated. The report goes to stdout (or --out); --emit writes the unit
with the duplications installed.`,
	Args: cobra.ExactArgs(1),
	RunE: runInfer,
}

func init() {
	inferCmd.Flags().String("format", "pretty", "report format (pretty|json|yaml|msgpack)")
	inferCmd.Flags().StringP("out", "o", "", "write the report to a file instead of stdout")
	inferCmd.Flags().String("emit", "", "write the rewritten unit to this path")
	inferCmd.Flags().String("ui", "auto", "show progress UI (auto|on|off)")
	inferCmd.Flags().Bool("watch", false, "re-run when the unit or its config changes")
	inferCmd.Flags().Bool("with-notes", false, "include diagnostic notes")
}

type inferOptions struct {
	unitPath  string
	format    report.Format
	out       string
	emit      string
	ui        uiMode
	withNotes bool
	quiet     bool
	timings   bool
}

func readInferOptions(cmd *cobra.Command, args []string) (inferOptions, error) {
	opts := inferOptions{unitPath: args[0]}
	formatStr, err := cmd.Flags().GetString("format")
	if err != nil {
		return opts, err
	}
	if opts.format, err = report.ParseFormat(formatStr); err != nil {
		return opts, err
	}
	if opts.out, err = cmd.Flags().GetString("out"); err != nil {
		return opts, err
	}
	if opts.emit, err = cmd.Flags().GetString("emit"); err != nil {
		return opts, err
	}
	uiStr, err := cmd.Flags().GetString("ui")
	if err != nil {
		return opts, err
	}
	if opts.ui, err = readUIMode(uiStr); err != nil {
		return opts, err
	}
	if opts.withNotes, err = cmd.Flags().GetBool("with-notes"); err != nil {
		return opts, err
	}
	if opts.quiet, err = cmd.Root().PersistentFlags().GetBool("quiet"); err != nil {
		return opts, err
	}
	if opts.timings, err = cmd.Root().PersistentFlags().GetBool("timings"); err != nil {
		return opts, err
	}
	if opts.format == report.FormatMsgpack && (opts.out == "" || opts.out == "-") && isTerminal(os.Stdout) {
		return opts, fmt.Errorf("refusing to write msgpack to a terminal; use --out")
	}
	return opts, nil
}

func runInfer(cmd *cobra.Command, args []string) error {
	opts, err := readInferOptions(cmd, args)
	if err != nil {
		return err
	}
	watch, err := cmd.Flags().GetBool("watch")
	if err != nil {
		return err
	}
	if watch {
		return finish(cmd, 0, watchUnit(cmd, opts))
	}
	exit, err := inferOnce(cmd.Context(), cmd, opts)
	return finish(cmd, exit, err)
}

// inferOnce runs the driver over the unit at opts.unitPath with the current
// configuration and writes its report, diagnostics and rewritten unit.
func inferOnce(ctx context.Context, cmd *cobra.Command, opts inferOptions) (int, error) {
	u, err := loadUnit(opts.unitPath)
	if err != nil {
		return 0, err
	}
	dopts := driver.Options{
		Config:  cliConfig,
		DryRun:  opts.emit == "",
		Timings: opts.timings,
	}

	toStdout := opts.out == "" || opts.out == "-"
	var res *driver.Result
	if !opts.quiet && shouldUseTUI(opts.ui, toStdout && opts.format != report.FormatPretty) {
		res, err = runWithUI(ctx, "owninfer "+filepath.Base(opts.unitPath), u, dopts)
	} else {
		res, err = driver.Run(ctx, u, dopts)
	}
	if err != nil {
		return 0, err
	}

	printDiagnostics(cmd, os.Stderr, res, opts.withNotes)

	w, isStdout, err := openOutput(opts.out)
	if err != nil {
		return 0, err
	}
	rep := report.Build(res, report.Options{Timing: opts.timings})
	color := isStdout && useColor(cmd, os.Stdout)
	if err := report.Write(w, rep, opts.format, color); err != nil {
		w.Close()
		return 0, fmt.Errorf("failed to write report: %w", err)
	}
	if err := w.Close(); err != nil {
		return 0, err
	}

	exit := exitCodeOf(res.Bag, false)
	if opts.emit != "" {
		if exit != 0 {
			fmt.Fprintf(os.Stderr, "not writing %s: the unit has errors\n", opts.emit)
			return exit, nil
		}
		if err := writeUnit(opts.emit, res.Unit); err != nil {
			return 0, fmt.Errorf("failed to write unit: %w", err)
		}
		if !opts.quiet {
			fmt.Fprintf(os.Stderr, "wrote %s (%d duplication(s))\n", opts.emit, res.Sites())
		}
	}
	return exit, nil
}
