package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"owninfer/internal/diag"
	"owninfer/internal/diagfmt"
	"owninfer/internal/driver"
	"owninfer/internal/trace"
)

// errDiagnosticsPrinted makes the command exit with status 1 without cobra
// printing anything further.
var errDiagnosticsPrinted = errors.New("")

// finish converts an exit code into the command's error. PersistentPostRun
// does not run when RunE fails, so tracing is cleaned up here.
func finish(cmd *cobra.Command, exitCode int, err error) error {
	if err == nil && exitCode == 0 {
		return nil
	}
	if err != nil {
		dumpTraceRing(cmd)
	}
	cleanupRun()
	cleanupRun = func() {}
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	return errDiagnosticsPrinted
}

// dumpTraceRing prints the events kept in ring mode, so a failed run shows
// what the driver was doing.
func dumpTraceRing(cmd *cobra.Command) {
	ring := trace.RingOf(trace.FromContext(cmd.Context()))
	if ring == nil {
		return
	}
	w := cmd.ErrOrStderr()
	fmt.Fprintln(w, "trace: last events before the failure")
	if err := ring.Dump(w, trace.FormatText); err != nil {
		fmt.Fprintf(w, "trace: dump error: %v\n", err)
	}
}

func printDiagnostics(cmd *cobra.Command, w *os.File, res *driver.Result, withNotes bool) {
	if res.Bag.Len() == 0 {
		return
	}
	diagfmt.Pretty(w, res.Bag, res.Unit.Files, diagfmt.PrettyOpts{
		Color:     useColor(cmd, w),
		Context:   2,
		PathMode:  diagfmt.PathModeAsIs,
		ShowNotes: withNotes,
	})
}

func writeDiagnosticsJSON(w io.Writer, res *driver.Result, withNotes bool) error {
	if err := diagfmt.JSON(w, res.Bag, res.Unit.Files, diagfmt.JSONOpts{
		IncludePositions: true,
		IncludeNotes:     withNotes,
	}); err != nil {
		return fmt.Errorf("failed to format diagnostics: %w", err)
	}
	return nil
}

func exitCodeOf(bag *diag.Bag, warningsAsErrors bool) int {
	if bag.HasErrors() || (warningsAsErrors && bag.HasWarnings()) {
		return 1
	}
	return 0
}

// openOutput returns stdout for "" and "-", otherwise creates path.
func openOutput(path string) (io.WriteCloser, bool, error) {
	if path == "" || path == "-" {
		return nopCloser{os.Stdout}, true, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, false, err
	}
	return f, false, nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
