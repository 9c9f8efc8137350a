package main

import (
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"owninfer/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "owninfer",
	Short: "Ownership and lifetime inference for compiled units",
	Long: `owninfer decides how every function parameter is passed (owned, borrowed
or mutably borrowed) and inserts the duplications a unit needs to be
memory-safe without a garbage collector.`,
	SilenceUsage:      true,
	PersistentPreRunE: setupRun,
	PersistentPostRun: func(*cobra.Command, []string) { cleanupRun() },
}

func init() {
	rootCmd.Version = version.Version

	rootCmd.AddCommand(inferCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(explainCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)

	flags := rootCmd.PersistentFlags()
	flags.String("color", "auto", "colorize output (auto|on|off)")
	flags.Bool("quiet", false, "suppress non-essential output")
	flags.Bool("timings", false, "show timing information")
	flags.Int("max-diagnostics", 0, "maximum number of diagnostics to keep (0 = config value)")
	flags.Int("jobs", 0, "max parallel workers (0 = config value, then GOMAXPROCS)")
	flags.String("config", "", "path to owninfer.toml (default: discovered from the unit's directory)")
	flags.String("unknown-callee", "", "override [policy].unknown_callee (move|read)")

	flags.String("trace", "", "trace output file (- for stderr)")
	flags.String("trace-level", "", "trace level (off|error|phase|detail|debug)")
	flags.String("trace-mode", "", "trace storage mode (stream|ring|both)")
	flags.String("trace-format", "auto", "trace format (auto|text|ndjson)")
	flags.Int("trace-ring-size", 4096, "ring buffer size for ring and both modes")
	flags.Duration("trace-heartbeat", 0, "heartbeat interval (0 = config value)")

	flags.String("cpu-profile", "", "write a CPU profile to this file")
	flags.String("mem-profile", "", "write a heap profile to this file on exit")
	flags.String("runtime-trace", "", "write a Go runtime trace to this file")
}

// main executes the root command. Any error exits with status 1; commands
// that find errors in the unit print them and exit with status 1 silently.
func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// isTerminal reports whether f is a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

func useColor(cmd *cobra.Command, f *os.File) bool {
	colorFlag, err := cmd.Root().PersistentFlags().GetString("color")
	if err != nil {
		return false
	}
	return colorFlag == "on" || (colorFlag == "auto" && isTerminal(f))
}
