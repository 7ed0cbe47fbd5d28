package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/crxsrc/pkg/crxsrc/extract"
	"github.com/jamesainslie/crxsrc/pkg/crxsrc/normalize"
	"github.com/jamesainslie/crxsrc/pkg/crxsrc/watcher"
)

var (
	watchOutput  string
	watchInitial bool
)

var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Unpack packages as they appear in a directory",
	Long: `Watch a directory and unpack every package created or rewritten in it.

Each package is unpacked with the configured preset into
<output>/<name>, where name is the file name without its extension.
Events for the same file are debounced (watch.debounce, default 500ms).
Stop with Ctrl+C.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&watchOutput, "output", "o", "", "output root (default from config: output)")
	watchCmd.Flags().BoolVar(&watchInitial, "initial", false, "also unpack packages already in the directory")
	rootCmd.AddCommand(watchCmd)
}

// runWatch is the watch command handler.
func runWatch(cmd *cobra.Command, args []string) error {
	sel, err := extract.Preset(cfg.Preset)
	if err != nil {
		return err
	}

	outputRoot := watchOutput
	if outputRoot == "" {
		outputRoot = cfg.Output
	}

	var reg *normalize.Registry
	if cfg.Normalize {
		c := openCache()
		if c != nil {
			defer func() { _ = c.Close() }()
		}
		reg = newRegistry(c)
	}
	hist := openHistory()

	handler := func(ctx context.Context, path string) error {
		dest := watchDest(outputRoot, path)
		report, err := unpackFile(ctx, path, dest, sel, reg, hist)
		if err != nil {
			printError("%s: %v", path, err)
			return err
		}
		printInfo("%s: %d entries written to %s", filepath.Base(path), report.Written(), dest)
		for _, w := range report.Warnings {
			printVerbose("%s: %s", filepath.Base(path), w)
		}
		if err := rec.WriteFile(cfg.Metrics.File); err != nil {
			printVerbose("metrics: %v", err)
		}
		return nil
	}

	opts := []watcher.Option{
		watcher.WithDebounce(cfg.Watch.Debounce),
		watcher.WithExtensions(cfg.Watch.Extensions...),
	}
	if watchInitial {
		opts = append(opts, watcher.WithInitialScan())
	}

	w, err := watcher.New(args[0], handler, opts...)
	if err != nil {
		return err
	}
	defer func() { _ = w.Close() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	printInfo("Watching %s (Ctrl+C to stop)", w.Dir())
	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("watching %s: %w", w.Dir(), err)
	}
	return nil
}

// watchDest returns the directory a watched package is unpacked into.
func watchDest(outputRoot, path string) string {
	base := filepath.Base(path)
	return filepath.Join(outputRoot, strings.TrimSuffix(base, filepath.Ext(base)))
}
