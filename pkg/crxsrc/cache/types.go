// Package cache provides a persistent store for normalized file content,
// keyed by normalizer and a digest of the source bytes.
package cache

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"github.com/pierrec/lz4/v4"
	"github.com/vmihailenco/msgpack/v5"
)

// EntryVersion is bumped whenever the encoded layout of Entry changes.
// Entries written with another version are treated as misses.
const EntryVersion = 1

// KeySeparator separates the normalizer name from the content digest.
const KeySeparator = '\x00'

// Entry is the stored value for one normalized input.
type Entry struct {
	Version    int    `msgpack:"v"`
	Normalizer string `msgpack:"n"`
	SourceSize int64  `msgpack:"ss"`
	OutputSize int64  `msgpack:"os"`
	Created    int64  `msgpack:"t"`
	Payload    []byte `msgpack:"p"` // lz4 frame
}

// NewEntry builds an entry for out, compressing it.
func NewEntry(normalizer string, src, out []byte) (*Entry, error) {
	payload, err := compress(out)
	if err != nil {
		return nil, err
	}
	return &Entry{
		Version:    EntryVersion,
		Normalizer: normalizer,
		SourceSize: int64(len(src)),
		OutputSize: int64(len(out)),
		Created:    time.Now().Unix(),
		Payload:    payload,
	}, nil
}

// Output decompresses the stored output.
func (e *Entry) Output() ([]byte, error) {
	out, err := decompress(e.Payload)
	if err != nil {
		return nil, err
	}
	if int64(len(out)) != e.OutputSize {
		return nil, fmt.Errorf("cache entry: output is %d bytes, want %d", len(out), e.OutputSize)
	}
	return out, nil
}

// Encode serializes the entry.
func (e *Entry) Encode() ([]byte, error) {
	return msgpack.Marshal(e)
}

// Decode deserializes data into the entry.
func (e *Entry) Decode(data []byte) error {
	return msgpack.Unmarshal(data, e)
}

// MakeKey builds the store key for src under normalizer.
func MakeKey(normalizer string, src []byte) []byte {
	sum := sha256.Sum256(src)
	key := make([]byte, 0, len(normalizer)+1+hex.EncodedLen(len(sum)))
	key = append(key, normalizer...)
	key = append(key, KeySeparator)
	key = hex.AppendEncode(key, sum[:])
	return key
}

// MakeKeyPrefix returns the prefix shared by every key of normalizer.
func MakeKeyPrefix(normalizer string) []byte {
	return append([]byte(normalizer), KeySeparator)
}

// ParseKey splits a key into normalizer name and hex digest.
func ParseKey(key []byte) (normalizer, digest string) {
	i := bytes.IndexByte(key, KeySeparator)
	if i < 0 {
		return "", string(key)
	}
	return string(key[:i]), string(key[i+1:])
}

func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := lz4.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, fmt.Errorf("compressing cache payload: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("compressing cache payload: %w", err)
	}
	return buf.Bytes(), nil
}

func decompress(data []byte) ([]byte, error) {
	out, err := io.ReadAll(lz4.NewReader(bytes.NewReader(data)))
	if err != nil {
		return nil, fmt.Errorf("decompressing cache payload: %w", err)
	}
	return out, nil
}
