package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/crxsrc/pkg/crxsrc/bundle"
	"github.com/jamesainslie/crxsrc/pkg/crxsrc/fsutil"
)

var normalizePath string

var normalizeCmd = &cobra.Command{
	Use:   "normalize -p <chunk>",
	Short: "Turn a raw bundler chunk into text split accepts",
	Long: `Wrap a raw bundler chunk as "export default { ... }" starting at the first
module function and dropping the chunk's last two lines. The result is
written beside the input as <chunk>.json.js.`,
	Args: cobra.NoArgs,
	RunE: runNormalize,
}

func init() {
	normalizeCmd.Flags().StringVarP(&normalizePath, "path", "p", "", "raw chunk file")
	_ = normalizeCmd.MarkFlagRequired("path")

	rootCmd.AddCommand(normalizeCmd)
}

// runNormalize is the normalize command handler.
func runNormalize(_ *cobra.Command, _ []string) error {
	f, err := os.Open(normalizePath)
	if err != nil {
		return fmt.Errorf("opening chunk: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	if err := bundle.Prepare(f, &buf); err != nil {
		return err
	}

	dest := bundle.PreparedPath(normalizePath)
	if err := fsutil.WriteFileAtomic(dest, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", dest, err)
	}

	printInfo("Wrote %s", dest)
	return nil
}
