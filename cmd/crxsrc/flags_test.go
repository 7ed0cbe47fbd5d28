package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/crxsrc/pkg/crxsrc/bundle"
	"github.com/jamesainslie/crxsrc/pkg/crxsrc/extract"
)

func TestBuildSelector(t *testing.T) {
	tests := []struct {
		name    string
		flags   selectorFlags
		want    extract.Selector
		wantErr bool
	}{
		{
			name:  "default preset",
			flags: selectorFlags{},
			want:  extract.SweepPreset(),
		},
		{
			name:  "legacy preset",
			flags: selectorFlags{preset: "legacy"},
			want:  extract.LegacyPreset(),
		},
		{
			name:  "extensions override preset",
			flags: selectorFlags{preset: "sweep", exts: []string{".JS,css", "json"}},
			want: extract.Selector{
				Extensions: []string{"js", "css", "json"},
				Rename:     extract.RenameOriginal,
			},
		},
		{
			name:  "rename override",
			flags: selectorFlags{rename: "generic"},
			want: extract.Selector{
				Extensions: []string{"js", "json", "html"},
				Rename:     extract.RenameGeneric,
			},
		},
		{
			name:  "target and globs",
			flags: selectorFlags{entry: " main.js ", include: []string{"js/**"}, exclude: []string{"**/*.min.js,vendor/**"}},
			want: extract.Selector{
				Extensions: []string{"js", "json", "html"},
				Rename:     extract.RenameOriginal,
				Target:     "main.js",
				Include:    []string{"js/**"},
				Exclude:    []string{"**/*.min.js", "vendor/**"},
			},
		},
		{
			name:    "unknown preset",
			flags:   selectorFlags{preset: "everything"},
			wantErr: true,
		},
		{
			name:    "unknown rename",
			flags:   selectorFlags{rename: "shuffle"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := buildSelector(tt.flags)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseList(t *testing.T) {
	assert.Nil(t, parseList(nil))
	assert.Nil(t, parseList([]string{"", " , "}))
	assert.Equal(t, []string{"a", "b", "c"}, parseList([]string{"a, b", "c"}))
}

func TestWatchDest(t *testing.T) {
	root := filepath.Join("out", "watched")
	assert.Equal(t, filepath.Join(root, "ext"), watchDest(root, filepath.Join("in", "ext.crx")))
	assert.Equal(t, filepath.Join(root, "my.ext"), watchDest(root, "/drop/my.ext.zip"))
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "short", truncateString("short", 10))
	assert.Equal(t, "...xt.crx", truncateString("/very/long/ext.crx", 9))
	assert.Equal(t, "crx", truncateString("ext.crx", 3))
}

func TestEnvOverrides(t *testing.T) {
	environ := []string{"HOME=/root", "CRXSRC_WORKERS=4", "CRXSRC_PRESET=legacy", "XCRXSRC_NOPE=1"}
	assert.Equal(t, []string{"CRXSRC_PRESET=legacy", "CRXSRC_WORKERS=4"}, envOverrides(environ))
}

func TestUnpackRecords(t *testing.T) {
	report := &extract.Report{Entries: []extract.EntryResult{
		{Name: "a.js", Dest: "out/a.js", Size: 12, Normalizer: "script", Normalized: true},
		{Name: "b/c.json", Dest: "out/b/c.json", Size: 7},
		{Name: "d.js", Error: "write d.js: permission denied"},
	}}

	records := unpackRecords(report)
	require.Len(t, records, 2, "failed entries wrote nothing")
	assert.Equal(t, "a.js", records[0].Origin)
	assert.True(t, records[0].Normalized)
	assert.Equal(t, "out/b/c.json", records[1].Path)
	assert.Equal(t, int64(7), records[1].Size)
}

func TestSplitRecords(t *testing.T) {
	out := t.TempDir()
	files := map[string]string{
		"./util":     "// ID: 1\nx\n\n",
		"lib/api.js": "// ID: 2\nyy\n\n",
		"../escape":  "// ID: 3\nz\n\n",
	}

	result, err := bundle.Write(t.Context(), files, out, 2)
	require.NoError(t, err)

	records := splitRecords(files, out, result)
	require.Len(t, records, 2)
	assert.Equal(t, "./util", records[0].Origin)
	assert.Equal(t, filepath.Join(out, "util.js"), records[0].Path)
	assert.Equal(t, "lib/api.js", records[1].Origin)
	assert.Equal(t, int64(len(files["lib/api.js"])), records[1].Size)

	t.Run("shared output file is recorded once", func(t *testing.T) {
		out := t.TempDir()
		files := map[string]string{
			"./util":  "// ID: 1\nold\n\n",
			"util.js": "// ID: 2\nnew\n\n",
		}
		result, err := bundle.Write(t.Context(), files, out, 2)
		require.NoError(t, err)

		records := splitRecords(files, out, result)
		require.Len(t, records, 1)
		assert.Equal(t, "util.js", records[0].Origin)
	})
}
