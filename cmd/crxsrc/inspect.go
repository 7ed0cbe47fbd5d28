package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/crxsrc/cmd/crxsrc/tui"
	"github.com/jamesainslie/crxsrc/pkg/crxsrc/archive"
	"github.com/jamesainslie/crxsrc/pkg/crxsrc/container"
	"github.com/jamesainslie/crxsrc/pkg/crxsrc/logging"
	"github.com/jamesainslie/crxsrc/pkg/crxsrc/tree"
)

var inspectInteractive bool

var inspectCmd = &cobra.Command{
	Use:   "inspect <artifact>",
	Short: "Print the file tree of a CRX or zip package",
	Long: `Print every entry of a CRX or zip package as a tree, followed by the
entry count. Nothing is written to disk.

With -i the tree opens in an interactive browser.`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func init() {
	inspectCmd.Flags().BoolVarP(&inspectInteractive, "interactive", "i", false, "browse the tree interactively")
	rootCmd.AddCommand(inspectCmd)
}

// runInspect is the inspect command handler.
func runInspect(_ *cobra.Command, args []string) error {
	zr, kind, err := openArchive(args[0])
	if err != nil {
		return err
	}

	if !inspectInteractive {
		return tree.Inspect(os.Stdout, zr.Names())
	}

	entries, err := zr.Collect()
	if err != nil {
		return err
	}
	items := make([]tree.Item, 0, len(entries))
	for _, e := range entries {
		items = append(items, tree.Item{Name: e.Name, Size: e.Size})
	}

	if err := initTUILogging(); err != nil {
		return fmt.Errorf("failed to initialize TUI logging: %w", err)
	}
	return tui.Run(tui.Options{
		Title:   args[0],
		Kind:    kind.String(),
		Root:    tree.BuildItems(items),
		Entries: len(entries),
	})
}

// openArchive reads a package and opens its zip payload.
func openArchive(path string) (*archive.Reader, container.Kind, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, container.KindUnknown, fmt.Errorf("reading artifact: %w", err)
	}

	kind := container.Sniff(b)
	zipBytes, err := container.Decode(b)
	if err != nil {
		return nil, kind, fmt.Errorf("decoding container: %w", err)
	}

	zr, err := archive.Open(zipBytes)
	if err != nil {
		return nil, kind, err
	}
	return zr, kind, nil
}

// initTUILogging re-initializes logging so nothing is mirrored to the
// terminal while the browser owns it.
func initTUILogging() error {
	logCfg, err := cfg.LoggingOptions()
	if err != nil {
		return err
	}
	logCfg.TUIMode = true
	return logging.Init(logCfg)
}
