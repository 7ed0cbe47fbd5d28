package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jamesainslie/crxsrc/pkg/crxsrc/cache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the normalization cache",
	Long: `Commands for managing the normalization cache.

The cache stores reformatted output keyed by normalizer and content hash so
packages that share files are only reformatted once. Cache data is stored in
the XDG cache directory (typically ~/.cache/crxsrc/normalize).`,
}

var cacheClearNormalizer string

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear cached output",
	Long:  `Removes cached output, for every normalizer or only the one given with --normalizer.`,
	RunE: func(_ *cobra.Command, _ []string) error {
		if _, err := os.Stat(cfg.Cache.Path); os.IsNotExist(err) {
			fmt.Println("Cache is already empty.")
			return nil
		}

		c, err := cache.Open(cfg.Cache.Path)
		if err != nil {
			return fmt.Errorf("failed to open cache: %w", err)
		}
		defer func() { _ = c.Close() }()

		if cacheClearNormalizer != "" {
			n, err := c.Clear(cacheClearNormalizer)
			if err != nil {
				return fmt.Errorf("failed to clear cache: %w", err)
			}
			fmt.Printf("Removed %d %s entries.\n", n, cacheClearNormalizer)
			return nil
		}

		if err := c.ClearAll(); err != nil {
			return fmt.Errorf("failed to clear cache: %w", err)
		}
		fmt.Println("Cache cleared.")
		return nil
	},
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache statistics",
	Long:  `Displays the cache location and its entry counts and sizes per normalizer.`,
	RunE: func(_ *cobra.Command, _ []string) error {
		if _, err := os.Stat(cfg.Cache.Path); os.IsNotExist(err) {
			fmt.Println("Cache: empty (no cache directory)")
			fmt.Printf("Cache location: %s\n", cfg.Cache.Path)
			return nil
		}

		c, err := cache.Open(cfg.Cache.Path)
		if err != nil {
			return fmt.Errorf("failed to open cache: %w", err)
		}
		defer func() { _ = c.Close() }()

		stats, err := c.Stats()
		if err != nil {
			return fmt.Errorf("failed to read cache stats: %w", err)
		}

		fmt.Printf("Cache location: %s\n", stats.Path)
		fmt.Printf("Cache entries:  %d\n", stats.Entries)
		fmt.Printf("Cache size:     %s\n", humanize.IBytes(uint64(stats.Bytes)))
		if len(stats.Normalizers) > 0 {
			fmt.Println()
			fmt.Printf("%-12s  %8s  %10s\n", "NORMALIZER", "ENTRIES", "SIZE")
			for _, ns := range stats.Normalizers {
				fmt.Printf("%-12s  %8d  %10s\n", ns.Normalizer, ns.Entries, humanize.IBytes(uint64(ns.Bytes)))
			}
		}
		return nil
	},
}

var cachePathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show cache location",
	Long:  `Prints the path to the cache directory.`,
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Println(cfg.Cache.Path)
	},
}

func init() {
	cacheClearCmd.Flags().StringVar(&cacheClearNormalizer, "normalizer", "", "only clear entries of this normalizer (script, markup, json)")

	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cachePathCmd)
	rootCmd.AddCommand(cacheCmd)
}
