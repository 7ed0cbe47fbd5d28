package fsutil_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/jamesainslie/crxsrc/pkg/crxsrc/fsutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSafeJoin(t *testing.T) {
	dst := filepath.Join("out", "ext")

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "plain file", input: "manifest.json", want: filepath.Join(dst, "manifest.json")},
		{name: "nested", input: "js/lib/a.js", want: filepath.Join(dst, "js", "lib", "a.js")},
		{name: "inner dot-dot that stays inside", input: "js/../css/a.css", want: filepath.Join(dst, "css", "a.css")},
		{name: "dots in a file name", input: "js/main..js", want: filepath.Join(dst, "js", "main..js")},
		{name: "parent escape", input: "../evil.js", wantErr: true},
		{name: "deep escape", input: "js/../../evil.js", wantErr: true},
		{name: "absolute", input: "/etc/passwd", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := fsutil.SafeJoin(dst, tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, fsutil.ErrUnsafePath)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "state.json")

	require.NoError(t, fsutil.WriteFileAtomic(path, []byte(`{"a":1,"b":2}`), 0o600))
	require.NoError(t, fsutil.WriteFileAtomic(path, []byte(`{"a":1}`), 0o600))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(data), "existing content is replaced")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must not be left behind")
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestCopyAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ext.crx")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o644))

	_, err := fsutil.CopyAtomic(path, failingReader{}, 0o644)
	require.Error(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "old", string(data), "failed copy leaves the target untouched")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
