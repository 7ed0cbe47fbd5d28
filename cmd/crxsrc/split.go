package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jamesainslie/crxsrc/pkg/crxsrc/bundle"
	"github.com/jamesainslie/crxsrc/pkg/crxsrc/fsutil"
	"github.com/jamesainslie/crxsrc/pkg/crxsrc/history"
)

var (
	splitPath   string
	splitSearch string
	splitOutput string
)

var splitCmd = &cobra.Command{
	Use:   "split -p <bundle>",
	Short: "Rebuild module files from a bundled script",
	Long: `Rebuild the original module files of a bundled script.

The bundle is an object literal of modules, each an array of the module
function and its dependency table, optionally preceded by "export default"
or "module.exports =". Run "crxsrc normalize" first on a raw bundler chunk.

Every module named in a dependency table is written under the output
directory with a "// ID: <id>" header. With -s only names containing the
search string are written.`,
	Args: cobra.NoArgs,
	RunE: runSplit,
}

func init() {
	splitCmd.Flags().StringVarP(&splitPath, "path", "p", "", "bundle file")
	splitCmd.Flags().StringVarP(&splitSearch, "search", "s", "", "only write modules whose name contains this")
	splitCmd.Flags().StringVarP(&splitOutput, "output", "o", "", "output directory (default from config: output)")
	_ = splitCmd.MarkFlagRequired("path")

	rootCmd.AddCommand(splitCmd)
}

// runSplit is the split command handler.
func runSplit(cmd *cobra.Command, _ []string) error {
	src, err := os.ReadFile(splitPath)
	if err != nil {
		return fmt.Errorf("reading bundle: %w", err)
	}

	b, err := bundle.Parse(src)
	if err != nil {
		return err
	}

	ix := bundle.BuildIndex(b)
	rec.Conflicts(len(ix.Conflicts))
	for _, c := range ix.Conflicts {
		printVerbose("module %s renamed from %s to %s by %s", c.ID, c.Previous, c.Current, c.Module)
	}

	files := ix.Files(splitSearch)
	if len(files) == 0 {
		printInfo("No modules matched.")
		return nil
	}

	outputDir := splitOutput
	if outputDir == "" {
		outputDir = cfg.Split.Output
	}

	result, err := bundle.Write(cmd.Context(), files, outputDir, poolSizes().WriteWorkers)
	if result != nil {
		rec.ModulesWritten(len(result.Files), result.Bytes)
	}
	if err != nil {
		return fmt.Errorf("writing modules: %w", err)
	}

	var warnings []string
	for _, name := range result.Skipped {
		if kept, ok := result.Shadowed[name]; ok {
			warnings = append(warnings, fmt.Sprintf("skipped %s: same output file as %s", name, kept))
			continue
		}
		warnings = append(warnings, fmt.Sprintf("skipped %s: outside output directory", name))
	}
	for _, c := range ix.Conflicts {
		warnings = append(warnings, fmt.Sprintf("module %s: %s overwritten by %s", c.ID, c.Previous, c.Current))
	}
	recordRun(openHistory(), history.OpSplit, splitPath, outputDir, splitRecords(files, outputDir, result), warnings)

	for _, w := range warnings {
		printInfo("warning: %s", w)
	}
	printInfo("Wrote %d modules (%s) to %s", len(result.Files), humanize.IBytes(uint64(result.Bytes)), outputDir)
	return nil
}

// splitRecords maps written modules back to their bundle names.
func splitRecords(files map[string]string, outputDir string, result *bundle.WriteResult) []history.FileRecord {
	written := make(map[string]bool, len(result.Files))
	for _, f := range result.Files {
		written[f] = true
	}
	skipped := make(map[string]bool, len(result.Skipped))
	for _, name := range result.Skipped {
		skipped[name] = true
	}

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	var records []history.FileRecord
	for _, name := range names {
		if skipped[name] {
			continue
		}
		dest, err := fsutil.SafeJoin(outputDir, bundle.OutputName(name))
		if err != nil || !written[dest] {
			continue
		}
		records = append(records, history.FileRecord{
			Path:   dest,
			Size:   int64(len(files[name])),
			Origin: name,
		})
	}
	return records
}
