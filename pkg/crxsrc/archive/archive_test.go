package archive_test

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/jamesainslie/crxsrc/pkg/crxsrc/archive"
	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type file struct {
	name string
	body string
}

func buildZip(t *testing.T, files ...file) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range files {
		w, err := zw.Create(f.name)
		require.NoError(t, err)
		if f.body != "" {
			_, err = w.Write([]byte(f.body))
			require.NoError(t, err)
		}
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestReader_Next(t *testing.T) {
	b := buildZip(t,
		file{"manifest.json", `{"name":"demo"}`},
		file{"js/", ""},
		file{"js/main.js", "console.log(1)"},
		file{"popup.html", "<html></html>"},
	)

	r, err := archive.Open(b)
	require.NoError(t, err)
	assert.Equal(t, 4, r.Len())

	var names []string
	for {
		e, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		names = append(names, e.Name)
	}

	assert.Equal(t, []string{"manifest.json", "js/", "js/main.js", "popup.html"}, names)

	t.Run("exhausted iterator keeps returning EOF", func(t *testing.T) {
		_, err := r.Next()
		assert.ErrorIs(t, err, io.EOF)
	})
}

func TestEntry_Open(t *testing.T) {
	b := buildZip(t, file{"js/main.js", "console.log('hello')"}, file{"js/", ""})

	r, err := archive.Open(b)
	require.NoError(t, err)

	e, err := r.Next()
	require.NoError(t, err)
	assert.False(t, e.IsDir())
	assert.Equal(t, uint64(20), e.Size)
	assert.Equal(t, 0, e.Index)

	rc, err := e.Open()
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "console.log('hello')", string(data))

	dir, err := r.Next()
	require.NoError(t, err)
	assert.True(t, dir.IsDir())
}

func TestReader_Names(t *testing.T) {
	b := buildZip(t, file{"b.js", "b"}, file{"a.js", "a"})

	r, err := archive.Open(b)
	require.NoError(t, err)

	_, err = r.Next()
	require.NoError(t, err)

	assert.Equal(t, []string{"b.js", "a.js"}, r.Names(), "Names lists all entries regardless of position")

	rest, err := r.Collect()
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, "a.js", rest[0].Name)
}

func TestOpen_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
	}{
		{"empty", nil},
		{"garbage", []byte("definitely not a zip archive")},
		{"truncated", buildZip(t, file{"a.js", "x"})[:30]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := archive.Open(tt.input)
			require.Error(t, err)

			var openErr *archive.OpenError
			require.ErrorAs(t, err, &openErr)
			assert.Equal(t, len(tt.input), openErr.Size)
			assert.Contains(t, err.Error(), "open archive")
		})
	}
}
