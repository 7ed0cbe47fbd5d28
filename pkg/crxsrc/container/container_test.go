package container_test

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/jamesainslie/crxsrc/pkg/crxsrc/container"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildZip returns a small zip archive containing the given files.
func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func crx2(pubKey, sig, payload []byte) []byte {
	var buf bytes.Buffer
	buf.Write(container.Magic[:])
	buf.Write([]byte{2, 0, 0, 0})
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(pubKey)))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(sig)))
	buf.Write(pubKey)
	buf.Write(sig)
	buf.Write(payload)
	return buf.Bytes()
}

func crx3(header, payload []byte) []byte {
	var buf bytes.Buffer
	buf.Write(container.Magic[:])
	buf.Write([]byte{3, 0, 0, 0})
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(header)))
	buf.Write(header)
	buf.Write(payload)
	return buf.Bytes()
}

func TestDecode(t *testing.T) {
	payload := buildZip(t, map[string]string{"manifest.json": `{"name":"x"}`})

	t.Run("version 2 strips key and signature", func(t *testing.T) {
		in := crx2(bytes.Repeat([]byte{0xAA}, 162), bytes.Repeat([]byte{0xBB}, 128), payload)

		out, err := container.Decode(in)
		require.NoError(t, err)
		assert.Equal(t, payload, out)

		_, err = zip.NewReader(bytes.NewReader(out), int64(len(out)))
		assert.NoError(t, err)
	})

	t.Run("version 3 strips header block", func(t *testing.T) {
		in := crx3(bytes.Repeat([]byte{0x01}, 577), payload)

		out, err := container.Decode(in)
		require.NoError(t, err)
		assert.Equal(t, payload, out)
	})

	t.Run("bare zip is returned unchanged", func(t *testing.T) {
		out, err := container.Decode(payload)
		require.NoError(t, err)
		assert.Equal(t, payload, out)
		assert.Same(t, &payload[0], &out[0], "passthrough must not copy")
	})

	t.Run("result aliases the input", func(t *testing.T) {
		in := crx3([]byte{1, 2, 3}, payload)
		out, err := container.Decode(in)
		require.NoError(t, err)
		assert.Same(t, &in[15], &out[0])
	})

	t.Run("empty payload", func(t *testing.T) {
		out, err := container.Decode(crx3(nil, nil))
		require.NoError(t, err)
		assert.Empty(t, out)
	})
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   []byte
		wantErr error
	}{
		{"empty buffer", nil, container.ErrInvalidHeader},
		{"short buffer", []byte("Cr"), container.ErrInvalidHeader},
		{"wrong magic", []byte("Cr25\x03\x00\x00\x00\x00\x00\x00\x00"), container.ErrInvalidHeader},
		{"gzip is not accepted", []byte{0x1f, 0x8b, 0x08, 0x00, 0, 0, 0, 0}, container.ErrInvalidHeader},
		{"version 1", []byte("Cr24\x01\x00\x00\x00\x00\x00\x00\x00"), container.ErrUnsupportedVersion},
		{"version 4", []byte("Cr24\x04\x00\x00\x00\x00\x00\x00\x00"), container.ErrUnsupportedVersion},
		{"reserved byte 5", []byte("Cr24\x03\x01\x00\x00\x00\x00\x00\x00"), container.ErrUnsupportedVersion},
		{"reserved byte 6", []byte("Cr24\x02\x00\x01\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00"), container.ErrUnsupportedVersion},
		{"reserved byte 7", []byte("Cr24\x03\x00\x00\xff\x00\x00\x00\x00"), container.ErrUnsupportedVersion},
		{"missing version", []byte("Cr24"), container.ErrTruncated},
		{"bad version in a short buffer", []byte("Cr24\x09"), container.ErrUnsupportedVersion},
		{"reserved byte set in a short buffer", []byte("Cr24\x02\x01"), container.ErrUnsupportedVersion},
		{"valid version in a short buffer", []byte("Cr24\x03\x00"), container.ErrTruncated},
		{"v2 fixed fields cut", []byte("Cr24\x02\x00\x00\x00\x00\x00"), container.ErrTruncated},
		{"v3 header size past end", []byte("Cr24\x03\x00\x00\x00\xff\x00\x00\x00"), container.ErrTruncated},
		{"v2 lengths past end", crx2(make([]byte, 4), make([]byte, 4), nil)[:20], container.ErrTruncated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := container.Decode(tt.input)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, out)
		})
	}
}

func TestParseHeader(t *testing.T) {
	t.Run("v2 fields", func(t *testing.T) {
		in := crx2(make([]byte, 0x0102), make([]byte, 7), nil)

		h, err := container.ParseHeader(in)
		require.NoError(t, err)
		assert.Equal(t, container.Version2, h.Version)
		assert.Equal(t, uint32(0x0102), h.PublicKeyLength)
		assert.Equal(t, uint32(7), h.SignatureLength)
		assert.Equal(t, uint64(16+0x0102+7), h.Len())
		assert.Equal(t, container.KindCRX2, h.Kind())
	})

	t.Run("v3 fields", func(t *testing.T) {
		h, err := container.ParseHeader(crx3(make([]byte, 300), nil))
		require.NoError(t, err)
		assert.Equal(t, uint32(300), h.HeaderSize)
		assert.Equal(t, uint64(312), h.Len())
		assert.Equal(t, container.KindCRX3, h.Kind())
	})

	t.Run("length fields are unsigned", func(t *testing.T) {
		in := []byte("Cr24\x03\x00\x00\x00\xff\xff\xff\xff")
		_, err := container.ParseHeader(in)
		assert.ErrorIs(t, err, container.ErrTruncated)
	})
}

func TestSniff(t *testing.T) {
	tests := []struct {
		input []byte
		want  container.Kind
	}{
		{[]byte("PK\x03\x04rest"), container.KindZip},
		{[]byte("Cr24\x02"), container.KindCRX2},
		{[]byte("Cr24\x03"), container.KindCRX3},
		{[]byte("Cr24\x09"), container.KindUnknown},
		{[]byte("hello"), container.KindUnknown},
		{nil, container.KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.want.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, container.Sniff(tt.input))
		})
	}
}
