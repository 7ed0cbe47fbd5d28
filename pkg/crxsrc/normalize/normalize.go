// Package normalize reformats extracted content for readability.
//
// Each Normalizer handles one content kind and is selected by the lower-cased
// file extension. A failed normalization is never fatal to extraction: callers
// keep the raw bytes and report the *Error as a warning.
package normalize

import (
	"fmt"
	"path"
	"strings"
)

// Normalizer reformats the content of one file kind.
type Normalizer interface {
	// Name identifies the normalizer in cache keys and warnings.
	Name() string

	// Normalize returns the reformatted content.
	Normalize(src []byte) ([]byte, error)
}

// Cache stores normalized output keyed by normalizer name and input content.
type Cache interface {
	Get(normalizer string, src []byte) ([]byte, bool)
	Put(normalizer string, src, out []byte) error
}

// Error reports a normalization failure for one file.
type Error struct {
	Normalizer string
	Path       string
	Err        error
}

func (e *Error) Error() string {
	return fmt.Sprintf("normalize %s (%s): %v", e.Path, e.Normalizer, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Registry maps extensions to normalizers.
type Registry struct {
	byExt map[string]Normalizer
	cache Cache
}

// Option configures a Registry.
type Option func(*Registry)

// WithCache serves and stores normalized output through c.
func WithCache(c Cache) Option {
	return func(r *Registry) {
		r.cache = c
	}
}

// WithNormalizer registers n for each of the given extensions.
func WithNormalizer(n Normalizer, exts ...string) Option {
	return func(r *Registry) {
		for _, ext := range exts {
			r.byExt[canonicalExt(ext)] = n
		}
	}
}

// NewRegistry returns an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{byExt: make(map[string]Normalizer)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Default returns a registry with the script, markup and data normalizers
// registered for .js, .html/.htm and .json respectively.
func Default(opts ...Option) *Registry {
	base := []Option{
		WithNormalizer(Script{}, ".js", ".mjs", ".cjs"),
		WithNormalizer(Markup{}, ".html", ".htm"),
		WithNormalizer(JSON{}, ".json"),
	}
	return NewRegistry(append(base, opts...)...)
}

// For returns the normalizer for p's extension, or nil.
func (r *Registry) For(p string) Normalizer {
	return r.byExt[canonicalExt(path.Ext(p))]
}

// Extensions returns the registered extensions without the leading dot.
func (r *Registry) Extensions() []string {
	exts := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		exts = append(exts, ext)
	}
	return exts
}

// Apply normalizes src according to p's extension. It returns src unchanged
// and ok=false when no normalizer is registered. On failure the returned
// error is an *Error and out is nil.
func (r *Registry) Apply(p string, src []byte) (out []byte, ok bool, err error) {
	n := r.For(p)
	if n == nil {
		return src, false, nil
	}

	if r.cache != nil {
		if cached, hit := r.cache.Get(n.Name(), src); hit {
			return cached, true, nil
		}
	}

	out, err = n.Normalize(src)
	if err != nil {
		return nil, true, &Error{Normalizer: n.Name(), Path: p, Err: err}
	}

	if r.cache != nil {
		// A failed store only costs a recompute next time.
		_ = r.cache.Put(n.Name(), src, out)
	}

	return out, true, nil
}

func canonicalExt(ext string) string {
	return strings.TrimPrefix(strings.ToLower(ext), ".")
}
