package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/crxsrc/pkg/crxsrc/extract"
	"github.com/jamesainslie/crxsrc/pkg/crxsrc/history"
	"github.com/jamesainslie/crxsrc/pkg/crxsrc/normalize"
	"github.com/jamesainslie/crxsrc/pkg/crxsrc/output"
)

var (
	unpackSel         selectorFlags
	unpackOutput      string
	unpackFormat      string
	unpackNoNormalize bool
)

var unpackCmd = &cobra.Command{
	Use:   "unpack <artifact>",
	Short: "Extract and reformat entries from a CRX or zip package",
	Long: `Extract entries from a CRX (v2 or v3) or zip package.

Without --entry every entry whose extension the preset allows is written
under the output directory and reformatted. With --entry only the first
entry with that name, or that generic name, is written.

Presets:
  sweep    js, json and html entries under their archive names (default)
  legacy   js entries only, with hash segments dropped from file names

Examples:
  crxsrc unpack ext.crx
  crxsrc unpack ext.crx -o src --ext js,css
  crxsrc unpack ext.crx --include 'js/**' --exclude '**/*.min.js'
  crxsrc unpack ext.crx -e background.js
  crxsrc unpack ext.crx --format json`,
	Args: cobra.ExactArgs(1),
	RunE: runUnpack,
}

func init() {
	f := unpackCmd.Flags()
	f.StringVarP(&unpackSel.entry, "entry", "e", "", "extract only this entry")
	f.StringVarP(&unpackOutput, "output", "o", "", "output directory (default from config: output)")
	f.StringVar(&unpackSel.preset, "preset", "", "selector preset: sweep, legacy")
	f.StringVar(&unpackSel.rename, "rename", "", "override the preset naming: original, generic")
	f.StringSliceVar(&unpackSel.exts, "ext", nil, "allowed extensions (e.g. js,json)")
	f.StringSliceVar(&unpackSel.include, "include", nil, "only extract entries matching these globs")
	f.StringSliceVar(&unpackSel.exclude, "exclude", nil, "skip entries matching these globs")
	f.BoolVar(&unpackNoNormalize, "no-normalize", false, "write entries exactly as stored")
	f.StringVar(&unpackFormat, "format", "", "report format: pretty, plain, json, yaml")

	rootCmd.AddCommand(unpackCmd)
}

// runUnpack is the unpack command handler.
func runUnpack(cmd *cobra.Command, args []string) error {
	artifact := args[0]

	if unpackSel.preset == "" {
		unpackSel.preset = cfg.Preset
	}
	sel, err := buildSelector(unpackSel)
	if err != nil {
		return err
	}

	format := unpackFormat
	if format == "" {
		format = cfg.Format
	}
	formatter, err := output.Get(format)
	if err != nil {
		return fmt.Errorf("unknown output format %q: available formats are %v", format, output.Available())
	}

	outputDir := unpackOutput
	if outputDir == "" {
		outputDir = cfg.Output
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var reg *normalize.Registry
	if !unpackNoNormalize && cfg.Normalize {
		c := openCache()
		if c != nil {
			defer func() { _ = c.Close() }()
		}
		reg = newRegistry(c)
	}

	report, err := unpackFile(ctx, artifact, outputDir, sel, reg, openHistory())
	if report != nil {
		var buf bytes.Buffer
		if ferr := formatter.Format(&buf, report); ferr != nil {
			return fmt.Errorf("formatting report: %w", ferr)
		}
		if !getQuiet() || format == "json" || format == "yaml" {
			fmt.Print(buf.String())
		}
	}
	if errors.Is(err, context.Canceled) {
		printInfo("Unpack cancelled")
		return nil
	}
	return err
}

// unpackFile runs one extraction and records it in hist. A nil reg writes
// entries as stored. The report is returned even when extraction fails part
// way.
func unpackFile(ctx context.Context, artifact, outputDir string, sel extract.Selector, reg *normalize.Registry, hist *history.History) (*extract.Report, error) {
	b, err := os.ReadFile(artifact)
	if err != nil {
		return nil, fmt.Errorf("reading artifact: %w", err)
	}

	ext := extract.New(extract.Options{
		Workers:     poolSizes().ExtractWorkers,
		Normalizers: reg,
		Metrics:     rec,
	})

	report, err := ext.Extract(ctx, b, sel, outputDir)
	if report == nil {
		return nil, err
	}

	if abs, aerr := filepath.Abs(artifact); aerr == nil {
		report.Artifact = abs
	} else {
		report.Artifact = artifact
	}

	if err == nil || report.Written() > 0 {
		recordRun(hist, history.OpUnpack, report.Artifact, outputDir, unpackRecords(report), report.Warnings)
	}
	return report, err
}
