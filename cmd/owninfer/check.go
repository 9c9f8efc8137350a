package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"owninfer/internal/diag"
	"owninfer/internal/driver"
)

var checkCmd = &cobra.Command{
	Use:   "check <unit>",
	Short: "Report ownership diagnostics without rewriting anything",
	Args:  cobra.ExactArgs(1),
	RunE:  runCheck,
}

func init() {
	checkCmd.Flags().String("format", "pretty", "diagnostics format (pretty|short|json)")
	checkCmd.Flags().Bool("with-notes", false, "include diagnostic notes")
	checkCmd.Flags().Bool("warnings-as-errors", false, "exit with status 1 on warnings")
}

func runCheck(cmd *cobra.Command, args []string) error {
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return err
	}
	withNotes, err := cmd.Flags().GetBool("with-notes")
	if err != nil {
		return err
	}
	strict, err := cmd.Flags().GetBool("warnings-as-errors")
	if err != nil {
		return err
	}
	timings, err := cmd.Root().PersistentFlags().GetBool("timings")
	if err != nil {
		return err
	}
	quiet, err := cmd.Root().PersistentFlags().GetBool("quiet")
	if err != nil {
		return err
	}
	switch format {
	case "pretty", "short", "json":
	default:
		return fmt.Errorf("unknown format: %s", format)
	}

	u, err := loadUnit(args[0])
	if err != nil {
		return err
	}
	res, err := driver.Run(cmd.Context(), u, driver.Options{
		Config:  cliConfig,
		DryRun:  true,
		Timings: timings,
	})
	if err != nil {
		return finish(cmd, 0, err)
	}

	switch format {
	case "json":
		err = writeDiagnosticsJSON(cmd.OutOrStdout(), res, withNotes)
	case "short":
		if out := diag.FormatShort(res.Bag.Items(), res.Unit.Files, withNotes); out != "" {
			fmt.Fprintln(cmd.OutOrStdout(), out)
		}
	default:
		printDiagnostics(cmd, os.Stdout, res, withNotes)
		if !quiet {
			printCheckSummary(cmd, res)
		}
	}
	return finish(cmd, exitCodeOf(res.Bag, strict), err)
}

func printCheckSummary(cmd *cobra.Command, res *driver.Result) {
	status := "ok"
	if !res.Converged {
		status = "not converged"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d function(s), %d round(s), %d duplication(s), %d error(s), %d warning(s)\n",
		status, len(res.Functions), res.Rounds, res.Sites(), res.Bag.Count(diag.SevError), res.Bag.Count(diag.SevWarning))
}
