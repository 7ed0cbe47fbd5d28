// Package fsutil holds the file writing helpers shared by the extraction and
// reconstruction pipelines.
package fsutil

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsafePath is returned for names that would resolve outside the
// destination directory.
var ErrUnsafePath = errors.New("unsafe path")

// SafeJoin joins a slash-separated archive name onto dst and rejects names
// that are absolute or that escape dst.
func SafeJoin(dst, name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("%w: empty name", ErrUnsafePath)
	}

	local := filepath.FromSlash(name)
	if filepath.IsAbs(local) || strings.HasPrefix(name, "/") || filepath.VolumeName(local) != "" {
		return "", fmt.Errorf("%w: absolute path %s", ErrUnsafePath, name)
	}
	if !filepath.IsLocal(local) {
		return "", fmt.Errorf("%w: %s escapes destination", ErrUnsafePath, name)
	}

	target := filepath.Join(dst, local)

	cleanDst := filepath.Clean(dst)
	if target != cleanDst && !strings.HasPrefix(target, cleanDst+string(os.PathSeparator)) && cleanDst != "." {
		return "", fmt.Errorf("%w: %s escapes destination", ErrUnsafePath, name)
	}

	return target, nil
}

// WriteFileAtomic writes data to a temporary file beside path and renames it
// into place, so readers never observe a partial file.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	_, err := CopyAtomic(path, bytes.NewReader(data), perm)
	return err
}

// CopyAtomic streams r into a temporary file beside path and renames it into
// place once r is drained. On failure path is left untouched.
func CopyAtomic(path string, r io.Reader, perm os.FileMode) (int64, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("creating directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return 0, fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	n, err := io.Copy(tmp, r)
	if err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return n, fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return n, fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		_ = os.Remove(tmpPath)
		return n, fmt.Errorf("setting permissions: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return n, fmt.Errorf("renaming temp file: %w", err)
	}
	return n, nil
}
