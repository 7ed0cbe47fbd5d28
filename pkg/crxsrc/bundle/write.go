package bundle

import (
	"context"
	"fmt"
	"path"
	"runtime"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/jamesainslie/crxsrc/pkg/crxsrc/fsutil"
	"github.com/jamesainslie/crxsrc/pkg/crxsrc/logging"
)

// WriteResult lists what Write produced.
type WriteResult struct {
	// Files are the written paths, sorted.
	Files []string `json:"files"`

	// Skipped are filenames that were not written, sorted. A name is skipped
	// when it resolves outside the output directory or when a later name in
	// sorted order resolves to the same file.
	Skipped []string `json:"skipped,omitempty"`

	// Shadowed maps each skipped name that shared a file to the name written
	// in its place.
	Shadowed map[string]string `json:"shadowed,omitempty"`

	// Bytes is the total content written.
	Bytes int64 `json:"bytes"`
}

// OutputName returns the relative path a reconstructed filename is written
// under: the name cleaned of "./" segments, with ".js" appended when the base
// name has no extension.
func OutputName(name string) string {
	clean := path.Clean(name)
	if clean == "." || clean == "/" {
		return ""
	}
	// A leading dot starts a hidden name, not an extension.
	if base := path.Base(clean); !strings.Contains(base[1:], ".") {
		clean += ".js"
	}
	return clean
}

// Write writes files under outputDir on at most workers goroutines. Names
// that would escape outputDir are skipped and reported. Names resolving to
// the same file, such as "./util", "util" and "util.js", are written once
// from the last of them in sorted order. Each file is written through a
// temporary file and renamed into place. Any write failure cancels the
// remaining writes and is returned.
func Write(ctx context.Context, files map[string]string, outputDir string, workers int) (*WriteResult, error) {
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	log := logging.Get("bundle")

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	result := &WriteResult{}

	type job struct {
		name, dest string
	}
	var jobs []job
	owner := make(map[string]int)
	for _, name := range names {
		if files[name] == "" {
			continue
		}

		dest, err := fsutil.SafeJoin(outputDir, OutputName(name))
		if err != nil {
			log.Warn("skipping module outside output directory", "name", name, "err", err)
			result.Skipped = append(result.Skipped, name)
			continue
		}

		if i, ok := owner[dest]; ok {
			prev := jobs[i].name
			log.Warn("modules share an output file", "dest", dest, "skipped", prev, "kept", name)
			result.Skipped = append(result.Skipped, prev)
			if result.Shadowed == nil {
				result.Shadowed = make(map[string]string)
			}
			result.Shadowed[prev] = name
			jobs[i].name = name
			continue
		}
		owner[dest] = len(jobs)
		jobs = append(jobs, job{name: name, dest: dest})
	}
	sort.Strings(result.Skipped)
	for prev, kept := range result.Shadowed {
		// A chain a -> b -> c resolves to the final writer.
		for next, ok := result.Shadowed[kept]; ok; next, ok = result.Shadowed[kept] {
			kept = next
		}
		result.Shadowed[prev] = kept
	}

	var (
		mu    sync.Mutex
		total atomic.Int64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, j := range jobs {
		content, dest := files[j.name], j.dest
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			if err := fsutil.WriteFileAtomic(dest, []byte(content), 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", dest, err)
			}
			total.Add(int64(len(content)))
			log.Debug("module written", "dest", dest)

			mu.Lock()
			result.Files = append(result.Files, dest)
			mu.Unlock()
			return nil
		})
	}

	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	sort.Strings(result.Files)
	result.Bytes = total.Load()
	return result, err
}
