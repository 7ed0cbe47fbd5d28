// Package history records unpack and split runs so their outputs can be
// listed and inspected later.
package history

import "time"

// OperationType represents the kind of run recorded.
type OperationType string

const (
	// OpUnpack represents an archive extraction.
	OpUnpack OperationType = "unpack"
	// OpSplit represents a bundle reconstruction.
	OpSplit OperationType = "split"
)

// Entry represents a single recorded run.
type Entry struct {
	ID        string        `json:"id"`
	Timestamp time.Time     `json:"timestamp"`
	Operation OperationType `json:"operation"`
	Source    string        `json:"source"`
	OutputDir string        `json:"output_dir"`
	Files     []FileRecord  `json:"files"`
	Warnings  []string      `json:"warnings,omitempty"`
	Summary   Summary       `json:"summary"`
}

// FileRecord is one file written by a run.
type FileRecord struct {
	Path       string `json:"path"`
	Size       int64  `json:"size"`
	Origin     string `json:"origin,omitempty"` // archive entry or module id
	Normalized bool   `json:"normalized,omitempty"`
}

// Summary contains run totals.
type Summary struct {
	TotalFiles int64 `json:"total_files"`
	TotalBytes int64 `json:"total_bytes"`
}
