package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/jamesainslie/crxsrc/pkg/crxsrc/cache"
	"github.com/jamesainslie/crxsrc/pkg/crxsrc/extract"
	"github.com/jamesainslie/crxsrc/pkg/crxsrc/history"
	"github.com/jamesainslie/crxsrc/pkg/crxsrc/normalize"
	"github.com/jamesainslie/crxsrc/pkg/crxsrc/tuner"
)

// selectorFlags holds the unpack flags that shape a Selector.
type selectorFlags struct {
	entry   string
	preset  string
	rename  string
	exts    []string
	include []string
	exclude []string
}

// buildSelector starts from the named preset and layers the flags on top.
func buildSelector(f selectorFlags) (extract.Selector, error) {
	sel, err := extract.Preset(f.preset)
	if err != nil {
		return extract.Selector{}, err
	}

	if f.rename != "" {
		policy, err := extract.ParseRenamePolicy(f.rename)
		if err != nil {
			return extract.Selector{}, err
		}
		sel.Rename = policy
	}

	if exts := normalizeExtensions(parseList(f.exts)); len(exts) > 0 {
		sel.Extensions = exts
	}
	sel.Include = parseList(f.include)
	sel.Exclude = parseList(f.exclude)
	sel.Target = strings.TrimSpace(f.entry)

	return sel, nil
}

// parseList flattens repeated and comma separated flag values, dropping
// empty items.
func parseList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// normalizeExtensions lower-cases extensions and strips the leading dot.
func normalizeExtensions(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, ext := range exts {
		out = append(out, strings.ToLower(strings.TrimPrefix(ext, ".")))
	}
	return out
}

// poolSizes sizes worker pools from the host and the configured override.
func poolSizes() tuner.Pools {
	pools := tuner.ForHost(cfg.Workers)
	printVerbose("workers: %d extract, %d write", pools.ExtractWorkers, pools.WriteWorkers)
	return pools
}

// cacheEnabled reports whether the normalization cache should be opened.
func cacheEnabled() bool {
	return cfg.Cache.Enabled && !viper.GetBool("no_cache")
}

// openCache opens the normalization cache. A cache that cannot be opened,
// for example because another process holds its lock, is skipped with a
// notice.
func openCache() *cache.Cache {
	if !cacheEnabled() {
		return nil
	}
	c, err := cache.Open(cfg.Cache.Path, cache.WithMetrics(rec))
	if err != nil {
		printVerbose("normalization cache unavailable: %v", err)
		return nil
	}
	return c
}

// newRegistry returns the default normalizers, backed by c when non-nil.
func newRegistry(c *cache.Cache) *normalize.Registry {
	if c == nil {
		return normalize.Default()
	}
	return normalize.Default(normalize.WithCache(c))
}

// openHistory returns the run history, or nil when it is disabled.
func openHistory() *history.History {
	if !cfg.History.Enabled {
		return nil
	}
	h, err := history.New(cfg.History.Path)
	if err != nil {
		printVerbose("history disabled: %v", err)
		return nil
	}
	return h
}

// recordRun stores a history entry and reports a failure without failing
// the command.
func recordRun(h *history.History, op history.OperationType, source, outputDir string, files []history.FileRecord, warnings []string) {
	if h == nil {
		return
	}
	entry, err := h.Record(op, source, outputDir, files, warnings)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to record history: %v\n", err)
		return
	}
	printVerbose("history entry %s", entry.ID)
}

// unpackRecords converts an extraction report into history records.
func unpackRecords(r *extract.Report) []history.FileRecord {
	files := make([]history.FileRecord, 0, len(r.Entries))
	for _, e := range r.Entries {
		if e.Failed() {
			continue
		}
		files = append(files, history.FileRecord{
			Path:       e.Dest,
			Size:       e.Size,
			Origin:     e.Name,
			Normalized: e.Normalized,
		})
	}
	return files
}
