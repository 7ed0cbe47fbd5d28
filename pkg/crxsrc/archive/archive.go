// Package archive provides a single-pass pull iterator over the entries of an
// in-memory zip archive.
package archive

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"

	"github.com/klauspost/compress/zip"
)

// OpenError reports that the archive bytes could not be opened as a zip.
type OpenError struct {
	Size int
	Err  error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("open archive (%d bytes): %v", e.Size, e.Err)
}

func (e *OpenError) Unwrap() error { return e.Err }

// Entry is one record of the archive's central directory.
type Entry struct {
	// Name is the slash-separated relative path stored in the archive.
	Name string

	// Size is the uncompressed size in bytes.
	Size uint64

	// CompressedSize is the stored size in bytes.
	CompressedSize uint64

	// Index is the entry's position in the central directory.
	Index int

	file *zip.File
}

// IsDir reports whether the entry is a directory record.
func (e *Entry) IsDir() bool {
	return e.file.Mode().IsDir() || (len(e.Name) > 0 && e.Name[len(e.Name)-1] == '/')
}

// Mode returns the entry's file mode bits.
func (e *Entry) Mode() fs.FileMode {
	return e.file.Mode()
}

// Open returns a decompressing stream over the entry's content.
// The caller must close it.
func (e *Entry) Open() (io.ReadCloser, error) {
	return e.file.Open()
}

// Reader iterates the entries of a zip archive in central-directory order.
// A Reader is not safe for concurrent use; the entries it yields are, since
// each Open creates an independent stream over the shared byte slice.
type Reader struct {
	zr   *zip.Reader
	next int
}

// Open parses the central directory of the zip archive in b.
func Open(b []byte) (*Reader, error) {
	zr, err := zip.NewReader(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		return nil, &OpenError{Size: len(b), Err: err}
	}
	return &Reader{zr: zr}, nil
}

// Len returns the total number of entries, directories included.
func (r *Reader) Len() int {
	return len(r.zr.File)
}

// Next returns the next entry, or io.EOF once every entry has been yielded.
func (r *Reader) Next() (*Entry, error) {
	if r.next >= len(r.zr.File) {
		return nil, io.EOF
	}

	f := r.zr.File[r.next]
	e := &Entry{
		Name:           f.Name,
		Size:           f.UncompressedSize64,
		CompressedSize: f.CompressedSize64,
		Index:          r.next,
		file:           f,
	}
	r.next++
	return e, nil
}

// Names returns every entry name in central-directory order. It does not
// advance the iterator.
func (r *Reader) Names() []string {
	names := make([]string, len(r.zr.File))
	for i, f := range r.zr.File {
		names[i] = f.Name
	}
	return names
}

// Collect drains the iterator and returns the remaining entries.
func (r *Reader) Collect() ([]*Entry, error) {
	var entries []*Entry
	for {
		e, err := r.Next()
		if err == io.EOF {
			return entries, nil
		}
		if err != nil {
			return entries, err
		}
		entries = append(entries, e)
	}
}
