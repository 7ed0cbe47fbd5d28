package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jamesainslie/crxsrc/pkg/crxsrc/config"
	"github.com/jamesainslie/crxsrc/pkg/crxsrc/history"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View run history",
	Long: `View the history of unpack and split runs.

Each run records its source, output directory and the files it wrote.`,
	RunE: runHistory,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show details of a specific run",
	Long:  `Display a run by its ID. Any unique prefix of the ID is accepted.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Clean up old history entries",
	Long:  `Remove history entries older than the retention period. With --all every entry is removed.`,
	RunE:  runHistoryClean,
}

var (
	historyLimit    int
	historyCleanAll bool
)

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "l", 20, "maximum number of entries to show")
	historyCleanCmd.Flags().BoolVar(&historyCleanAll, "all", false, "remove every entry")

	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyCleanCmd)
	rootCmd.AddCommand(historyCmd)
}

// getHistory returns the history store at the configured directory, even
// when recording is disabled.
func getHistory() (*history.History, error) {
	return history.New(cfg.History.Path)
}

// runHistory lists recent runs.
func runHistory(_ *cobra.Command, _ []string) error {
	h, err := getHistory()
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}

	all, err := h.List(0)
	if err != nil {
		return fmt.Errorf("failed to list history: %w", err)
	}

	if len(all) == 0 {
		printInfo("No history entries found.")
		printInfo("Run 'crxsrc unpack <artifact>' to extract a package.")
		return nil
	}

	entries := all
	if historyLimit > 0 && len(entries) > historyLimit {
		entries = entries[:historyLimit]
	}

	fmt.Printf("\n%-36s  %-16s  %-6s  %5s  %-10s  %s\n", "ID", "TIME", "OP", "FILES", "SIZE", "SOURCE")
	fmt.Println(strings.Repeat("-", 100))

	for _, entry := range entries {
		fmt.Printf("%-36s  %-16s  %-6s  %5d  %-10s  %s\n",
			entry.ID,
			entry.Timestamp.Local().Format("2006-01-02 15:04"),
			entry.Operation,
			entry.Summary.TotalFiles,
			humanize.IBytes(uint64(entry.Summary.TotalBytes)),
			truncateString(entry.Source, 40),
		)
	}

	fmt.Println(strings.Repeat("-", 100))
	fmt.Printf("\nShowing %d of %d entries. Use --limit to see more.\n", len(entries), len(all))
	fmt.Println("Use 'crxsrc history show <id>' for details on a specific entry.")

	return nil
}

// runHistoryShow displays details of a specific run.
func runHistoryShow(_ *cobra.Command, args []string) error {
	h, err := getHistory()
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}

	entry, err := h.Get(args[0])
	if errors.Is(err, history.ErrAmbiguous) {
		return fmt.Errorf("%w; use more characters of the ID", err)
	}
	if err != nil {
		return fmt.Errorf("failed to get entry: %w", err)
	}

	fmt.Println("\nRun Details")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("ID:         %s\n", entry.ID)
	fmt.Printf("Timestamp:  %s\n", entry.Timestamp.Local().Format("2006-01-02 15:04:05 MST"))
	fmt.Printf("Operation:  %s\n", entry.Operation)
	fmt.Printf("Source:     %s\n", entry.Source)
	fmt.Printf("Output:     %s\n", entry.OutputDir)
	fmt.Printf("Files:      %d\n", entry.Summary.TotalFiles)
	fmt.Printf("Total Size: %s\n", humanize.IBytes(uint64(entry.Summary.TotalBytes)))

	if len(entry.Files) > 0 {
		fmt.Println("\nFiles:")
		fmt.Println(strings.Repeat("-", 60))
		fmt.Printf("%-10s  %-4s  %s\n", "SIZE", "FMT", "PATH")
		fmt.Println(strings.Repeat("-", 60))

		limit := min(len(entry.Files), 50)
		for _, file := range entry.Files[:limit] {
			mark := ""
			if file.Normalized {
				mark = "yes"
			}
			fmt.Printf("%-10s  %-4s  %s\n", humanize.IBytes(uint64(file.Size)), mark, file.Path)
		}

		if len(entry.Files) > limit {
			fmt.Printf("\n... and %d more files\n", len(entry.Files)-limit)
		}
	}

	if len(entry.Warnings) > 0 {
		fmt.Println("\nWarnings:")
		for _, w := range entry.Warnings {
			fmt.Printf("  %s\n", w)
		}
	}

	return nil
}

// runHistoryClean removes old history entries.
func runHistoryClean(_ *cobra.Command, _ []string) error {
	h, err := getHistory()
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}

	retentionDays := cfg.History.RetentionDays
	if historyCleanAll {
		retentionDays = 0
		printInfo("Removing all history entries...")
	} else {
		if retentionDays <= 0 {
			retentionDays = config.DefaultRetentionDays
		}
		printInfo("Cleaning history entries older than %d days...", retentionDays)
	}

	removed, err := h.Clean(retentionDays)
	if err != nil {
		return fmt.Errorf("failed to clean history: %w", err)
	}

	printInfo("Removed %d entries.", removed)
	return nil
}

// truncateString truncates a string to maxLen, keeping its tail and adding
// "..." in front if truncated.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[len(s)-maxLen:]
	}
	return "..." + s[len(s)-maxLen+3:]
}
