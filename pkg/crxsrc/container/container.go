// Package container decodes the packaged extension format (CRX) into the
// zip archive it wraps.
//
// A CRX file is a small fixed header, a version-specific block of key and
// signature material, and then a plain zip archive. Decode validates the
// header and returns the zip section as a sub-slice of the input; it performs
// no I/O and never copies or mutates the archive bytes.
//
// Basic usage:
//
//	zipBytes, err := container.Decode(data)
//	if errors.Is(err, container.ErrInvalidHeader) {
//	    // not a CRX and not a zip
//	}
package container

import (
	"bytes"
	"errors"
	"fmt"
)

// Magic is the four-byte signature at the start of every CRX file.
var Magic = [4]byte{'C', 'r', '2', '4'}

// ZipMagic is the local file header signature of a zip archive. Buffers
// starting with it are already unpacked and pass through Decode unchanged.
var ZipMagic = [4]byte{'P', 'K', 0x03, 0x04}

// Supported format versions.
const (
	Version2 uint8 = 2
	Version3 uint8 = 3
)

// Fixed header sizes in bytes, before any variable-length block.
const (
	v2FixedSize = 16
	v3FixedSize = 12
)

var (
	// ErrInvalidHeader is returned when the buffer starts with neither the
	// CRX magic nor the zip magic.
	ErrInvalidHeader = errors.New("invalid header: does not start with Cr24")

	// ErrUnsupportedVersion is returned when the format version is not 2 or 3,
	// or when any of the reserved bytes following it is non-zero.
	ErrUnsupportedVersion = errors.New("unsupported crx format version")

	// ErrTruncated is returned when the buffer ends before the header does.
	ErrTruncated = errors.New("truncated crx header")
)

// Kind classifies a buffer by its leading bytes.
type Kind int

const (
	// KindUnknown is neither a CRX nor a zip.
	KindUnknown Kind = iota
	// KindCRX2 is a version 2 CRX container.
	KindCRX2
	// KindCRX3 is a version 3 CRX container.
	KindCRX3
	// KindZip is a bare zip archive.
	KindZip
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindCRX2:
		return "crx2"
	case KindCRX3:
		return "crx3"
	case KindZip:
		return "zip"
	default:
		return "unknown"
	}
}

// Header is a parsed CRX header. It is a value type and is never modified
// after ParseHeader returns it.
type Header struct {
	// Magic is always "Cr24".
	Magic [4]byte

	// Version is the format version, 2 or 3.
	Version uint8

	// PublicKeyLength is the size of the public key block (version 2 only).
	PublicKeyLength uint32

	// SignatureLength is the size of the signature block (version 2 only).
	SignatureLength uint32

	// HeaderSize is the size of the protobuf header block (version 3 only).
	HeaderSize uint32
}

// Len returns the offset at which the zip payload begins.
func (h Header) Len() uint64 {
	if h.Version == Version2 {
		return v2FixedSize + uint64(h.PublicKeyLength) + uint64(h.SignatureLength)
	}
	return v3FixedSize + uint64(h.HeaderSize)
}

// Kind returns the container kind described by the header.
func (h Header) Kind() Kind {
	if h.Version == Version2 {
		return KindCRX2
	}
	return KindCRX3
}

// IsZip reports whether b starts with the zip local file header signature.
func IsZip(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], ZipMagic[:])
}

// Sniff classifies b without validating anything beyond the magic and
// version byte.
func Sniff(b []byte) Kind {
	if IsZip(b) {
		return KindZip
	}
	if len(b) < 5 || !bytes.Equal(b[:4], Magic[:]) {
		return KindUnknown
	}
	switch b[4] {
	case Version2:
		return KindCRX2
	case Version3:
		return KindCRX3
	default:
		return KindUnknown
	}
}

// ParseHeader validates and parses the CRX header at the start of b.
func ParseHeader(b []byte) (Header, error) {
	if len(b) < 4 || !bytes.Equal(b[:4], Magic[:]) {
		return Header{}, ErrInvalidHeader
	}
	if len(b) < 5 {
		return Header{}, fmt.Errorf("%w: %d bytes", ErrTruncated, len(b))
	}

	// A bad version or reserved byte is reported ahead of truncation.
	version := b[4]
	reserved := b[5:min(len(b), 8)]
	if (version != Version2 && version != Version3) || len(bytes.TrimLeft(reserved, "\x00")) != 0 {
		return Header{}, fmt.Errorf("%w: version byte %d, reserved % x", ErrUnsupportedVersion, version, reserved)
	}
	if len(b) < 8 {
		return Header{}, fmt.Errorf("%w: %d bytes", ErrTruncated, len(b))
	}

	h := Header{Magic: Magic, Version: version}
	if version == Version2 {
		if len(b) < v2FixedSize {
			return Header{}, fmt.Errorf("%w: need %d bytes for v2 header, have %d", ErrTruncated, v2FixedSize, len(b))
		}
		h.PublicKeyLength = readLength(b[8:12])
		h.SignatureLength = readLength(b[12:16])
	} else {
		if len(b) < v3FixedSize {
			return Header{}, fmt.Errorf("%w: need %d bytes for v3 header, have %d", ErrTruncated, v3FixedSize, len(b))
		}
		h.HeaderSize = readLength(b[8:12])
	}

	if h.Len() > uint64(len(b)) {
		return Header{}, fmt.Errorf("%w: header claims %d bytes, buffer has %d", ErrTruncated, h.Len(), len(b))
	}

	return h, nil
}

// Decode returns the zip archive wrapped by the CRX container in b.
// If b is already a zip archive it is returned unchanged.
// The result aliases b.
func Decode(b []byte) ([]byte, error) {
	if IsZip(b) {
		return b, nil
	}

	h, err := ParseHeader(b)
	if err != nil {
		return nil, err
	}

	return b[h.Len():], nil
}

// readLength decodes a little-endian unsigned 32-bit length field.
func readLength(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
