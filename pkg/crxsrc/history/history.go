package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/adrg/xdg"
	"github.com/google/uuid"

	"github.com/jamesainslie/crxsrc/pkg/crxsrc/fsutil"
)

// ErrNotFound is returned by Get when no entry matches.
var ErrNotFound = errors.New("history entry not found")

// ErrAmbiguous is returned by Get when an id prefix matches several entries.
var ErrAmbiguous = errors.New("history entry id is ambiguous")

// DefaultDir returns the default history directory.
func DefaultDir() string {
	return filepath.Join(xdg.ConfigHome, "crxsrc", ".history")
}

// History manages run records on the filesystem.
type History struct {
	dir string
	mu  sync.Mutex
	now func() time.Time
}

// New creates a History rooted at dir.
// The directory is not created until the first entry is recorded.
func New(dir string) (*History, error) {
	if dir == "" {
		return nil, errors.New("history directory cannot be empty")
	}
	return &History{dir: dir, now: time.Now}, nil
}

// Dir returns the history directory.
func (h *History) Dir() string { return h.dir }

// Record persists a run and returns the stored entry.
func (h *History) Record(op OperationType, source, outputDir string, files []FileRecord, warnings []string) (*Entry, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var totalBytes int64
	for _, f := range files {
		totalBytes += f.Size
	}
	if files == nil {
		files = []FileRecord{}
	}

	entry := &Entry{
		ID:        uuid.NewString(),
		Timestamp: h.now().UTC(),
		Operation: op,
		Source:    source,
		OutputDir: outputDir,
		Files:     files,
		Warnings:  warnings,
		Summary: Summary{
			TotalFiles: int64(len(files)),
			TotalBytes: totalBytes,
		},
	}

	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling history entry: %w", err)
	}

	if err := os.MkdirAll(h.dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}
	if err := fsutil.WriteFileAtomic(filepath.Join(h.dir, entry.ID+".json"), data, 0o644); err != nil {
		return nil, fmt.Errorf("writing history entry: %w", err)
	}

	return entry, nil
}

// List returns entries sorted newest first. A limit of 0 or less returns
// every entry. Unparseable files are skipped.
func (h *History) List(limit int) ([]Entry, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	entries, err := h.readAll()
	if err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})

	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// Get returns the entry whose id equals or starts with id.
func (h *History) Get(id string) (*Entry, error) {
	if id == "" {
		return nil, errors.New("entry ID cannot be empty")
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if entry, err := h.readEntryFile(id + ".json"); err == nil {
		return entry, nil
	}

	entries, err := h.readAll()
	if err != nil {
		return nil, err
	}

	var match *Entry
	for i := range entries {
		if !strings.HasPrefix(entries[i].ID, id) {
			continue
		}
		if match != nil {
			return nil, fmt.Errorf("%w: %s", ErrAmbiguous, id)
		}
		match = &entries[i]
	}
	if match == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return match, nil
}

// Clean removes entries older than retentionDays and returns how many were
// removed. A retention of 0 or less removes every entry.
func (h *History) Clean(retentionDays int) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	entries, err := h.readAll()
	if err != nil {
		return 0, err
	}

	cutoff := h.now().AddDate(0, 0, -retentionDays)
	var removed int
	for _, e := range entries {
		if retentionDays > 0 && !e.Timestamp.Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(h.dir, e.ID+".json")); err != nil && !os.IsNotExist(err) {
			return removed, fmt.Errorf("removing history entry %s: %w", e.ID, err)
		}
		removed++
	}
	return removed, nil
}

func (h *History) readAll() ([]Entry, error) {
	files, err := os.ReadDir(h.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Entry{}, nil
		}
		return nil, fmt.Errorf("reading history directory: %w", err)
	}

	entries := []Entry{}
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
			continue
		}
		entry, err := h.readEntryFile(f.Name())
		if err != nil {
			continue
		}
		entries = append(entries, *entry)
	}
	return entries, nil
}

func (h *History) readEntryFile(name string) (*Entry, error) {
	data, err := os.ReadFile(filepath.Join(h.dir, name))
	if err != nil {
		return nil, err
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", name, err)
	}
	return &entry, nil
}
