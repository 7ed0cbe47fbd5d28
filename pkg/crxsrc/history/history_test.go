package history

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func newHistory(t *testing.T) *History {
	t.Helper()
	h, err := New(filepath.Join(t.TempDir(), ".history"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return h
}

func TestNew(t *testing.T) {
	t.Parallel()

	if _, err := New(""); err == nil {
		t.Fatal("New() error = nil, want error for empty directory")
	}
}

func TestHistory_RecordAndGet(t *testing.T) {
	t.Parallel()
	h := newHistory(t)

	files := []FileRecord{
		{Path: "out/a.js", Size: 10, Origin: "a.js", Normalized: true},
		{Path: "out/b/c.json", Size: 32, Origin: "b/c.json"},
	}

	entry, err := h.Record(OpUnpack, "ext.crx", "out", files, []string{"normalize d.html: bad"})
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	if entry.Summary.TotalFiles != 2 || entry.Summary.TotalBytes != 42 {
		t.Errorf("Summary = %+v, want 2 files / 42 bytes", entry.Summary)
	}
	if _, err := os.Stat(filepath.Join(h.Dir(), entry.ID+".json")); err != nil {
		t.Fatalf("entry file not written: %v", err)
	}

	got, err := h.Get(entry.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Operation != OpUnpack || got.Source != "ext.crx" || got.OutputDir != "out" {
		t.Errorf("Get() = %+v", got)
	}
	if len(got.Files) != 2 || got.Files[0].Origin != "a.js" || !got.Files[0].Normalized {
		t.Errorf("Files = %+v", got.Files)
	}
	if len(got.Warnings) != 1 {
		t.Errorf("Warnings = %v, want 1", got.Warnings)
	}

	t.Run("by prefix", func(t *testing.T) {
		got, err := h.Get(entry.ID[:8])
		if err != nil {
			t.Fatalf("Get(prefix) error = %v", err)
		}
		if got.ID != entry.ID {
			t.Errorf("Get(prefix).ID = %s, want %s", got.ID, entry.ID)
		}
	})

	t.Run("unknown id", func(t *testing.T) {
		if _, err := h.Get("does-not-exist"); !errors.Is(err, ErrNotFound) {
			t.Errorf("Get() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("empty id", func(t *testing.T) {
		if _, err := h.Get(""); err == nil {
			t.Error("Get(\"\") error = nil")
		}
	})
}

func TestHistory_RecordNilFiles(t *testing.T) {
	t.Parallel()
	h := newHistory(t)

	entry, err := h.Record(OpSplit, "bundle.js", "output", nil, nil)
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(h.Dir(), entry.ID+".json"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"files": []`) {
		t.Errorf("files should encode as an empty array:\n%s", data)
	}
}

func TestHistory_List(t *testing.T) {
	t.Parallel()
	h := newHistory(t)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, op := range []OperationType{OpUnpack, OpSplit, OpUnpack} {
		at := base.Add(time.Duration(i) * time.Hour)
		h.now = func() time.Time { return at }
		if _, err := h.Record(op, "src", "out", nil, nil); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(h.Dir(), "junk.json"), []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}

	entries, err := h.List(0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("List() returned %d entries, want 3", len(entries))
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].Timestamp.After(entries[i-1].Timestamp) {
			t.Errorf("entries not sorted newest first at %d", i)
		}
	}
	if entries[1].Operation != OpSplit {
		t.Errorf("entries[1].Operation = %s, want split", entries[1].Operation)
	}

	limited, err := h.List(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 2 {
		t.Errorf("List(2) returned %d entries", len(limited))
	}
}

func TestHistory_ListMissingDir(t *testing.T) {
	t.Parallel()
	h := newHistory(t)

	entries, err := h.List(0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if entries == nil || len(entries) != 0 {
		t.Errorf("List() = %v, want empty slice", entries)
	}
}

func TestHistory_Clean(t *testing.T) {
	t.Parallel()
	h := newHistory(t)

	now := time.Date(2026, 3, 30, 0, 0, 0, 0, time.UTC)
	for _, age := range []int{40, 20, 1} {
		at := now.AddDate(0, 0, -age)
		h.now = func() time.Time { return at }
		if _, err := h.Record(OpUnpack, "src", "out", nil, nil); err != nil {
			t.Fatal(err)
		}
	}
	h.now = func() time.Time { return now }

	removed, err := h.Clean(30)
	if err != nil {
		t.Fatalf("Clean(30) error = %v", err)
	}
	if removed != 1 {
		t.Errorf("Clean(30) removed %d, want 1", removed)
	}

	removed, err = h.Clean(0)
	if err != nil {
		t.Fatalf("Clean(0) error = %v", err)
	}
	if removed != 2 {
		t.Errorf("Clean(0) removed %d, want 2", removed)
	}

	entries, _ := h.List(0)
	if len(entries) != 0 {
		t.Errorf("%d entries left after Clean(0)", len(entries))
	}
}

func TestHistory_ConcurrentRecord(t *testing.T) {
	t.Parallel()
	h := newHistory(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := h.Record(OpUnpack, "src", "out", nil, nil); err != nil {
				t.Errorf("Record() error = %v", err)
			}
		}()
	}
	wg.Wait()

	entries, err := h.List(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 10 {
		t.Errorf("List() returned %d entries, want 10", len(entries))
	}
}
