package output

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/jamesainslie/crxsrc/pkg/crxsrc/extract"
)

// jsonOutput represents the full JSON output structure.
type jsonOutput struct {
	Entries []jsonEntry `json:"entries"`
	Summary jsonSummary `json:"summary"`
	Meta    jsonMeta    `json:"meta"`
}

type jsonEntry struct {
	Name       string `json:"name"`
	Dest       string `json:"dest"`
	Size       int64  `json:"size"`
	SizeHuman  string `json:"size_human"`
	Normalizer string `json:"normalizer,omitempty"`
	Normalized bool   `json:"normalized"`
	Warning    string `json:"warning,omitempty"`
	Error      string `json:"error,omitempty"`
}

type jsonSummary struct {
	TotalEntries int    `json:"total_entries"`
	Selected     int    `json:"selected"`
	Written      int    `json:"written"`
	BytesWritten int64  `json:"bytes_written"`
	Duration     string `json:"duration,omitempty"`
}

type jsonMeta struct {
	Artifact  string    `json:"artifact,omitempty"`
	Container string    `json:"container"`
	OutputDir string    `json:"output_dir"`
	Mode      string    `json:"mode"`
	Started   time.Time `json:"started"`
	Message   string    `json:"message,omitempty"`
	Warnings  []string  `json:"warnings,omitempty"`
}

// JSONFormatter formats the report as a single indented JSON object.
type JSONFormatter struct{}

// Format writes the formatted report to the buffer.
func (f *JSONFormatter) Format(w *bytes.Buffer, r *extract.Report) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(buildJSON(r))
}

func buildJSON(r *extract.Report) jsonOutput {
	entries := make([]jsonEntry, len(r.Entries))
	for i, e := range r.Entries {
		entries[i] = jsonEntry{
			Name:       e.Name,
			Dest:       e.Dest,
			Size:       e.Size,
			SizeHuman:  humanize.IBytes(uint64(e.Size)),
			Normalizer: e.Normalizer,
			Normalized: e.Normalized,
			Warning:    e.Warning,
			Error:      e.Error,
		}
	}

	return jsonOutput{
		Entries: entries,
		Summary: jsonSummary{
			TotalEntries: r.TotalEntries,
			Selected:     r.Selected,
			Written:      r.Written(),
			BytesWritten: r.BytesWritten(),
			Duration:     formatDurationString(r.Duration),
		},
		Meta: jsonMeta{
			Artifact:  r.Artifact,
			Container: r.Container,
			OutputDir: r.OutputDir,
			Mode:      string(r.Mode),
			Started:   r.Started,
			Message:   r.Message,
			Warnings:  r.Warnings,
		},
	}
}

func init() {
	Register("json", func() Formatter {
		return &JSONFormatter{}
	})
}

var _ Formatter = (*JSONFormatter)(nil)
