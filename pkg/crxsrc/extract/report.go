package extract

import (
	"sort"
	"time"
)

// Mode is the extraction mode.
type Mode string

// Extraction modes.
const (
	ModeSweep    Mode = "sweep"
	ModeTargeted Mode = "targeted"
)

// EntryResult describes one processed entry. Entries that failed to stream
// carry Error and have no Dest.
type EntryResult struct {
	// Name is the entry name inside the archive.
	Name string `json:"name" yaml:"name"`

	// Dest is the path the entry was written to.
	Dest string `json:"dest" yaml:"dest"`

	// Size is the number of bytes finally on disk.
	Size int64 `json:"size" yaml:"size"`

	// Normalizer names the normalizer that ran, if any.
	Normalizer string `json:"normalizer,omitempty" yaml:"normalizer,omitempty"`

	// Normalized is false when no normalizer applied or it failed.
	Normalized bool `json:"normalized" yaml:"normalized"`

	// Warning holds the normalization failure, if any.
	Warning string `json:"warning,omitempty" yaml:"warning,omitempty"`

	// Error holds the stream failure, if any.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Failed reports whether the entry could not be written.
func (e EntryResult) Failed() bool { return e.Error != "" }

// Report summarises one extraction run.
type Report struct {
	Artifact     string        `json:"artifact,omitempty" yaml:"artifact,omitempty"`
	Container    string        `json:"container" yaml:"container"`
	OutputDir    string        `json:"output_dir" yaml:"output_dir"`
	Mode         Mode          `json:"mode" yaml:"mode"`
	TotalEntries int           `json:"total_entries" yaml:"total_entries"`
	Selected     int           `json:"selected" yaml:"selected"`
	Entries      []EntryResult `json:"entries" yaml:"entries"`
	Warnings     []string      `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Message      string        `json:"message,omitempty" yaml:"message,omitempty"`
	Started      time.Time     `json:"started" yaml:"started"`
	Duration     time.Duration `json:"duration" yaml:"duration"`
}

// Written returns the number of entries written to disk.
func (r *Report) Written() int {
	var n int
	for _, e := range r.Entries {
		if !e.Failed() {
			n++
		}
	}
	return n
}

// Failures returns the entries that failed to stream.
func (r *Report) Failures() []EntryResult {
	var failed []EntryResult
	for _, e := range r.Entries {
		if e.Failed() {
			failed = append(failed, e)
		}
	}
	return failed
}

// BytesWritten returns the total size of all written entries.
func (r *Report) BytesWritten() int64 {
	var total int64
	for _, e := range r.Entries {
		total += e.Size
	}
	return total
}

// sortEntries orders entries by archive name, since sweep tasks finish in
// arbitrary order.
func (r *Report) sortEntries() {
	sort.Slice(r.Entries, func(i, j int) bool {
		return r.Entries[i].Name < r.Entries[j].Name
	})
}
