package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jamesainslie/crxsrc/pkg/crxsrc/analyze"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <dir>",
	Short: "Summarize an unpacked extension",
	Long: `Walk an unpacked extension, group its files by type, read manifest.json
and write a Markdown summary to ` + analyze.SummaryFile + ` in the directory.`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
}

// runAnalyze is the analyze command handler.
func runAnalyze(cmd *cobra.Command, args []string) error {
	a, err := analyze.Run(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	path, err := a.WriteSummary()
	if err != nil {
		return fmt.Errorf("writing summary: %w", err)
	}

	if a.Manifest != nil {
		printInfo("%s %s", a.Manifest.Name, a.Manifest.Version)
	}
	for _, c := range analyze.Categories {
		if n := len(a.Files[c]); n > 0 {
			printInfo("  %-10s %4d files  %s", c, n, humanize.IBytes(uint64(a.CategorySize(c))))
		}
	}
	for _, e := range a.Errors {
		printVerbose("%s", e)
	}
	printInfo("Wrote %s", path)
	return nil
}
