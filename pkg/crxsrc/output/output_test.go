package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/jamesainslie/crxsrc/pkg/crxsrc/extract"
)

func sampleReport() *extract.Report {
	return &extract.Report{
		Artifact:     "ext.crx",
		Container:    "crx3",
		OutputDir:    "output",
		Mode:         extract.ModeSweep,
		TotalEntries: 5,
		Selected:     3,
		Entries: []extract.EntryResult{
			{Name: "a.js", Dest: "output/a.js", Size: 2048, Normalizer: "script", Normalized: true},
			{Name: "b/c.json", Dest: "output/b/c.json", Size: 12, Normalizer: "json", Normalized: true},
			{Name: "d.html", Dest: "output/d.html", Size: 7, Normalizer: "markup", Warning: "markup d.html: bad"},
		},
		Warnings: []string{"markup d.html: bad"},
		Message:  "All 3 selected entries processed.",
		Started:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Duration: 1500 * time.Millisecond,
	}
}

func TestRegistry(t *testing.T) {
	assert.Equal(t, []string{"json", "plain", "pretty", "yaml"}, Available())

	for _, name := range Available() {
		f, err := Get(name)
		require.NoError(t, err)
		assert.NotNil(t, f)
	}

	_, err := Get("xml")
	assert.EqualError(t, err, "unknown formatter: xml")

	r := NewRegistry()
	r.Register("plain", func() Formatter { return &PlainFormatter{} })
	assert.Equal(t, []string{"plain"}, r.Available())
}

func TestPlainFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&PlainFormatter{}).Format(&buf, sampleReport()))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 6)
	assert.True(t, strings.HasPrefix(lines[0], "SIZE"))
	assert.Contains(t, lines[1], "2.0 KiB")
	assert.Contains(t, lines[1], "script")
	assert.Contains(t, lines[3], "-", "failed normalization shows a dash")
	assert.Equal(t, "warning: markup d.html: bad", lines[4])
	assert.Equal(t, "All 3 selected entries processed.", lines[5])
}

func TestPrettyFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&PrettyFormatter{}).Format(&buf, sampleReport()))

	out := buf.String()
	assert.Contains(t, out, "ext.crx")
	assert.Contains(t, out, "crx3")
	assert.Contains(t, out, "b/c.json")
	assert.Contains(t, out, "3/3")
	assert.Contains(t, out, "1.5s")
	assert.Contains(t, out, "Warnings:")

	t.Run("empty report", func(t *testing.T) {
		var buf bytes.Buffer
		r := &extract.Report{Container: "zip", Mode: extract.ModeSweep, Message: "No matching entries found."}
		require.NoError(t, (&PrettyFormatter{}).Format(&buf, r))
		assert.Contains(t, buf.String(), "No matching entries found")
		assert.NotContains(t, buf.String(), "Warnings:")
	})
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&JSONFormatter{}).Format(&buf, sampleReport()))

	var got jsonOutput
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))

	require.Len(t, got.Entries, 3)
	assert.Equal(t, "2.0 KiB", got.Entries[0].SizeHuman)
	assert.Equal(t, int64(2067), got.Summary.BytesWritten)
	assert.Equal(t, 3, got.Summary.Written)
	assert.Equal(t, "1.5s", got.Summary.Duration)
	assert.Equal(t, "sweep", got.Meta.Mode)
	assert.Equal(t, []string{"markup d.html: bad"}, got.Meta.Warnings)
}

func TestYAMLFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&YAMLFormatter{}).Format(&buf, sampleReport()))

	var got yamlOutput
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))

	assert.Equal(t, "crx3", got.Meta.Container)
	assert.Equal(t, "b/c.json", got.Entries[1].Name)
	assert.Equal(t, 5, got.Summary.TotalEntries)
}

func TestFormatters_FailedEntries(t *testing.T) {
	r := sampleReport()
	r.Entries = append(r.Entries, extract.EntryResult{Name: "e.js", Error: "write e.js: disk full"})

	t.Run("plain", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, (&PlainFormatter{}).Format(&buf, r))
		assert.Contains(t, buf.String(), "failed")
		assert.Contains(t, buf.String(), "write e.js: disk full")
	})

	t.Run("pretty", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, (&PrettyFormatter{}).Format(&buf, r))
		assert.Contains(t, buf.String(), "3/3")
		assert.Contains(t, buf.String(), "Failed:")
		assert.Contains(t, buf.String(), "write e.js: disk full")
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, (&JSONFormatter{}).Format(&buf, r))

		var got jsonOutput
		require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
		assert.Equal(t, 3, got.Summary.Written)
		require.Len(t, got.Entries, 4)
		assert.Equal(t, "write e.js: disk full", got.Entries[3].Error)
	})
}

func TestFormatDuration(t *testing.T) {
	tests := map[time.Duration]string{
		250 * time.Millisecond:  "250ms",
		1500 * time.Millisecond: "1.5s",
		125 * time.Second:       "2m 5s",
	}
	for d, want := range tests {
		assert.Equal(t, want, formatDuration(d))
	}
	assert.Empty(t, formatDurationString(0))
}
