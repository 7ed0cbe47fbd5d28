// Package rewrite hands recovered source to an external rewriting service
// and stores what comes back beside the input.
//
// No service implementation lives here; callers inject one.
package rewrite

import (
	"context"
	"errors"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"

	"github.com/jamesainslie/crxsrc/pkg/crxsrc/fsutil"
	"github.com/jamesainslie/crxsrc/pkg/crxsrc/logging"
)

// ErrEmptyResult is returned when the service produced no code.
var ErrEmptyResult = errors.New("rewrite service returned no code")

// Result is what a Service produces for one file.
type Result struct {
	// Code is the rewritten source. It may contain HTML entities.
	Code string
	// Extension is the extension to save under, such as ".jsx". Empty keeps
	// the input's extension.
	Extension string
}

// Service rewrites source code.
type Service interface {
	Rewrite(ctx context.Context, code string) (Result, error)
}

// ServiceFunc adapts a function to Service.
type ServiceFunc func(ctx context.Context, code string) (Result, error)

// Rewrite calls f.
func (f ServiceFunc) Rewrite(ctx context.Context, code string) (Result, error) {
	return f(ctx, code)
}

// Rewriter runs files through a Service.
type Rewriter struct {
	svc Service
	log *logging.Logger
}

// New returns a Rewriter backed by svc.
func New(svc Service) *Rewriter {
	return &Rewriter{svc: svc, log: logging.Get("rewrite")}
}

// OutputPath returns where the rewritten form of path is stored:
// <dir>/<base>.rewritten<ext>.
func OutputPath(path, ext string) string {
	orig := filepath.Ext(path)
	if ext == "" {
		ext = orig
	}
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return strings.TrimSuffix(path, orig) + ".rewritten" + ext
}

// File rewrites the file at path and returns the output path.
func (r *Rewriter) File(ctx context.Context, path string) (string, error) {
	code, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	res, err := r.svc.Rewrite(ctx, string(code))
	if err != nil {
		return "", fmt.Errorf("rewriting %s: %w", path, err)
	}
	if strings.TrimSpace(res.Code) == "" {
		return "", fmt.Errorf("rewriting %s: %w", path, ErrEmptyResult)
	}

	out := OutputPath(path, res.Extension)
	if err := fsutil.WriteFileAtomic(out, []byte(html.UnescapeString(res.Code)), 0o644); err != nil {
		return "", err
	}

	r.log.Info("file rewritten", "input", path, "output", out)
	return out, nil
}
