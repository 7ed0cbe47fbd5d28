// Package extract materializes selected archive entries to disk and
// normalizes them for readability.
//
// In sweep mode every entry accepted by the Selector is extracted on a
// bounded worker pool; the first stream failure cancels the remaining tasks
// and is returned. Entries that resolve to the same destination are written
// once, from the last of them in archive order. In targeted mode the archive is scanned in order and only
// the first entry matching Selector.Target is extracted.
package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jamesainslie/crxsrc/pkg/crxsrc/archive"
	"github.com/jamesainslie/crxsrc/pkg/crxsrc/container"
	"github.com/jamesainslie/crxsrc/pkg/crxsrc/fsutil"
	"github.com/jamesainslie/crxsrc/pkg/crxsrc/logging"
	"github.com/jamesainslie/crxsrc/pkg/crxsrc/normalize"
)

// Extractor runs extractions. It holds no per-run state and may be reused.
type Extractor struct {
	opts Options
	log  *logging.Logger
}

// New returns an Extractor with the given options.
func New(opts Options) *Extractor {
	opts.validate()
	return &Extractor{
		opts: opts,
		log:  logging.Get("extract"),
	}
}

// run is the state of one Extract call.
type run struct {
	*Extractor
	m         *matcher
	outputDir string
	report    *Report

	mu   sync.Mutex
	done atomic.Int64
}

// Extract decodes b (a CRX container or a bare zip), selects entries with
// sel and writes them under outputDir. The returned report is non-nil
// whenever the archive could be opened, even if err is non-nil.
func (e *Extractor) Extract(ctx context.Context, b []byte, sel Selector, outputDir string) (*Report, error) {
	started := time.Now()
	kind := container.Sniff(b)

	zipBytes, err := container.Decode(b)
	if err != nil {
		return nil, fmt.Errorf("decoding container: %w", err)
	}

	zr, err := archive.Open(zipBytes)
	if err != nil {
		return nil, err
	}

	m, err := sel.compile()
	if err != nil {
		return nil, err
	}

	r := &run{
		Extractor: e,
		m:         m,
		outputDir: outputDir,
		report: &Report{
			Container:    kind.String(),
			OutputDir:    outputDir,
			Mode:         sel.Mode(),
			TotalEntries: zr.Len(),
			Started:      started,
		},
	}

	if sel.Mode() == ModeTargeted {
		err = r.targeted(ctx, zr)
	} else {
		err = r.sweep(ctx, zr)
	}

	r.report.sortEntries()
	r.report.Duration = time.Since(started)
	e.opts.Metrics.ObserveRun(string(r.report.Mode), r.report.Duration, err)

	return r.report, err
}

// targeted pulls entries in order and processes the first match.
func (r *run) targeted(ctx context.Context, zr *archive.Reader) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		entry, err := zr.Next()
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: %s", ErrNoMatch, r.m.sel.Target)
		}
		if err != nil {
			return err
		}
		if entry.IsDir() || !r.m.targets(entry.Name) {
			continue
		}

		r.report.Selected = 1
		r.log.Debug("target matched", "target", r.m.sel.Target, "entry", entry.Name)
		return r.process(ctx, entry)
	}
}

// sweep enumerates every entry, then runs the selected ones concurrently.
func (r *run) sweep(ctx context.Context, zr *archive.Reader) error {
	var tasks []*archive.Entry
	for {
		entry, err := zr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		if entry.IsDir() || !r.m.selects(entry.Name) {
			continue
		}
		tasks = append(tasks, entry)
	}

	tasks = r.dedupe(tasks)
	r.report.Selected = len(tasks)
	if len(tasks) == 0 {
		r.report.Message = "No matching entries found."
		r.log.Info("nothing selected", "entries", zr.Len())
		return nil
	}

	r.log.Debug("sweep started", "selected", len(tasks), "workers", r.opts.Workers)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Workers)

	for _, entry := range tasks {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			return r.process(gctx, entry)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r.report.Message = fmt.Sprintf("All %d selected entries processed.", len(tasks))
	return nil
}

// dedupe keeps one task per destination. When several entries resolve to
// the same file, the last one in archive order wins and the others are
// reported as warnings.
func (r *run) dedupe(entries []*archive.Entry) []*archive.Entry {
	last := make(map[string]int, len(entries))
	for i, entry := range entries {
		last[path.Clean(r.m.destName(entry.Name))] = i
	}
	if len(last) == len(entries) {
		return entries
	}

	kept := make([]*archive.Entry, 0, len(last))
	for i, entry := range entries {
		dest := path.Clean(r.m.destName(entry.Name))
		if j := last[dest]; j != i {
			winner := entries[j].Name
			r.log.Warn("duplicate destination", "entry", entry.Name, "dest", dest, "kept", winner)
			r.report.Warnings = append(r.report.Warnings,
				fmt.Sprintf("skipped %s: %s is written from %s", entry.Name, dest, winner))
			continue
		}
		kept = append(kept, entry)
	}
	return kept
}

// process writes one entry and normalizes it in place.
func (r *run) process(ctx context.Context, entry *archive.Entry) error {
	dest, err := fsutil.SafeJoin(r.outputDir, r.m.destName(entry.Name))
	if err != nil {
		return r.fail(entry, &StreamError{Entry: entry.Name, Op: "resolve", Err: err})
	}

	n, err := r.stream(entry, dest)
	if err != nil {
		return r.fail(entry, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	result := EntryResult{Name: entry.Name, Dest: dest, Size: n}

	if reg := r.opts.Normalizers; reg != nil {
		if nz := reg.For(dest); nz != nil {
			result.Normalizer = nz.Name()
			r.normalize(reg, entry, dest, &result)
		}
	}

	r.opts.Metrics.EntryExtracted(string(r.report.Mode), result.Size)

	r.mu.Lock()
	r.report.Entries = append(r.report.Entries, result)
	if result.Warning != "" {
		r.report.Warnings = append(r.report.Warnings, result.Warning)
	}
	r.mu.Unlock()

	done := r.done.Add(1)
	r.log.Info("entry extracted", "entry", entry.Name, "dest", dest, "bytes", result.Size)
	if r.opts.OnProgress != nil {
		r.opts.OnProgress(Progress{Done: done, Total: int64(r.report.Selected), Current: entry.Name})
	}
	return nil
}

// fail records a stream failure against its entry and returns it.
func (r *run) fail(entry *archive.Entry, err error) error {
	r.log.Error("entry failed", "entry", entry.Name, "err", err)

	r.mu.Lock()
	r.report.Entries = append(r.report.Entries, EntryResult{Name: entry.Name, Error: err.Error()})
	r.mu.Unlock()
	return err
}

// stream copies the decompressed entry to a temporary file and renames it
// to dest, so dest never holds a partial entry.
func (r *run) stream(entry *archive.Entry, dest string) (int64, error) {
	rc, err := entry.Open()
	if err != nil {
		return 0, &StreamError{Entry: entry.Name, Op: "open", Err: err}
	}
	defer rc.Close()

	src := &readTracker{r: rc}
	n, err := fsutil.CopyAtomic(dest, src, 0o644)
	if err != nil {
		if src.err != nil {
			return n, &StreamError{Entry: entry.Name, Op: "read", Err: src.err}
		}
		return n, &StreamError{Entry: entry.Name, Op: "write", Err: err}
	}
	return n, nil
}

// readTracker remembers the first read failure so it can be told apart
// from a write failure.
type readTracker struct {
	r   io.Reader
	err error
}

func (t *readTracker) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if err != nil && !errors.Is(err, io.EOF) && t.err == nil {
		t.err = err
	}
	return n, err
}

// normalize rewrites dest with normalized content. Failures leave the raw
// bytes in place and are recorded as a warning.
func (r *run) normalize(reg *normalize.Registry, entry *archive.Entry, dest string, result *EntryResult) {
	raw, err := os.ReadFile(dest)
	if err != nil {
		r.warn(result, &normalize.Error{Normalizer: result.Normalizer, Path: entry.Name, Err: err})
		return
	}

	out, _, err := reg.Apply(entry.Name, raw)
	if err != nil {
		r.warn(result, err)
		return
	}

	if err := fsutil.WriteFileAtomic(dest, out, 0o644); err != nil {
		r.warn(result, &normalize.Error{Normalizer: result.Normalizer, Path: entry.Name, Err: err})
		return
	}

	result.Normalized = true
	result.Size = int64(len(out))
}

func (r *run) warn(result *EntryResult, err error) {
	result.Warning = err.Error()
	r.opts.Metrics.NormalizeFailed(result.Normalizer)
	r.log.Warn("normalization failed, keeping raw content", "entry", result.Name, "err", err)
}
