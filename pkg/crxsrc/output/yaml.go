package output

import (
	"bytes"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/jamesainslie/crxsrc/pkg/crxsrc/extract"
)

// yamlOutput represents the full YAML output structure.
type yamlOutput struct {
	Entries []yamlEntry `yaml:"entries"`
	Summary yamlSummary `yaml:"summary"`
	Meta    yamlMeta    `yaml:"meta"`
}

type yamlEntry struct {
	Name       string `yaml:"name"`
	Dest       string `yaml:"dest"`
	Size       int64  `yaml:"size"`
	SizeHuman  string `yaml:"size_human"`
	Normalizer string `yaml:"normalizer,omitempty"`
	Normalized bool   `yaml:"normalized"`
	Warning    string `yaml:"warning,omitempty"`
	Error      string `yaml:"error,omitempty"`
}

type yamlSummary struct {
	TotalEntries int    `yaml:"total_entries"`
	Selected     int    `yaml:"selected"`
	Written      int    `yaml:"written"`
	BytesWritten int64  `yaml:"bytes_written"`
	Duration     string `yaml:"duration,omitempty"`
}

type yamlMeta struct {
	Artifact  string    `yaml:"artifact,omitempty"`
	Container string    `yaml:"container"`
	OutputDir string    `yaml:"output_dir"`
	Mode      string    `yaml:"mode"`
	Started   time.Time `yaml:"started"`
	Message   string    `yaml:"message,omitempty"`
	Warnings  []string  `yaml:"warnings,omitempty"`
}

// YAMLFormatter formats the report as YAML with the same structure as
// JSONFormatter.
type YAMLFormatter struct{}

// Format writes the formatted report to the buffer.
func (f *YAMLFormatter) Format(w *bytes.Buffer, r *extract.Report) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(buildYAML(r)); err != nil {
		return err
	}
	return encoder.Close()
}

func buildYAML(r *extract.Report) yamlOutput {
	entries := make([]yamlEntry, len(r.Entries))
	for i, e := range r.Entries {
		entries[i] = yamlEntry{
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

	return yamlOutput{
		Entries: entries,
		Summary: yamlSummary{
			TotalEntries: r.TotalEntries,
			Selected:     r.Selected,
			Written:      r.Written(),
			BytesWritten: r.BytesWritten(),
			Duration:     formatDurationString(r.Duration),
		},
		Meta: yamlMeta{
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
	Register("yaml", func() Formatter {
		return &YAMLFormatter{}
	})
}

var _ Formatter = (*YAMLFormatter)(nil)
