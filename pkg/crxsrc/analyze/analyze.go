// Package analyze summarises an unpacked extension directory: file
// categories, sizes and the manifest's identity fields.
package analyze

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/Masterminds/semver/v3"
	"github.com/charlievieth/fastwalk"

	"github.com/jamesainslie/crxsrc/pkg/crxsrc/logging"
)

// SummaryFile is the name of the Markdown summary written into the
// analysed directory.
const SummaryFile = "ANALYSIS_SUMMARY.md"

// Category groups files by what they contain.
type Category string

// File categories, in report order.
const (
	CategoryScript Category = "javascript"
	CategoryStyle  Category = "css"
	CategoryMarkup Category = "html"
	CategoryJSON   Category = "json"
	CategoryImage  Category = "image"
	CategoryOther  Category = "other"
)

// Categories lists every category in report order.
var Categories = []Category{
	CategoryScript, CategoryStyle, CategoryMarkup, CategoryJSON, CategoryImage, CategoryOther,
}

var categoryByExt = map[string]Category{
	".js":   CategoryScript,
	".jsx":  CategoryScript,
	".ts":   CategoryScript,
	".tsx":  CategoryScript,
	".css":  CategoryStyle,
	".html": CategoryMarkup,
	".htm":  CategoryMarkup,
	".json": CategoryJSON,
	".png":  CategoryImage,
	".jpg":  CategoryImage,
	".jpeg": CategoryImage,
	".gif":  CategoryImage,
	".svg":  CategoryImage,
	".webp": CategoryImage,
	".ico":  CategoryImage,
}

// Categorize returns the category for a file name.
func Categorize(name string) Category {
	if c, ok := categoryByExt[strings.ToLower(filepath.Ext(name))]; ok {
		return c
	}
	return CategoryOther
}

// File is one regular file found under the analysed directory.
type File struct {
	Path     string   `json:"path"` // slash-separated, relative to the root
	Size     int64    `json:"size"`
	Category Category `json:"category"`
}

// Manifest holds the identity fields of an extension manifest.
type Manifest struct {
	Name            string `json:"name"`
	Version         string `json:"version"`
	ManifestVersion int    `json:"manifest_version"`
	Description     string `json:"description"`

	// SemVer is the parsed Version, or nil when it is not semver-like.
	SemVer *semver.Version `json:"-"`
}

// Analysis is the result of Run.
type Analysis struct {
	Root       string
	Manifest   *Manifest
	Files      map[Category][]File
	TotalFiles int
	TotalSize  int64
	Errors     []string
}

// CategorySize returns the combined size of the files in c.
func (a *Analysis) CategorySize(c Category) int64 {
	var total int64
	for _, f := range a.Files[c] {
		total += f.Size
	}
	return total
}

// Run walks dir and categorises every regular file in it. Unreadable
// subdirectories are recorded in Errors and skipped.
func Run(ctx context.Context, dir string) (*Analysis, error) {
	log := logging.Get("analyze")

	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}

	a := &Analysis{
		Root:  dir,
		Files: make(map[Category][]File),
	}
	var mu sync.Mutex

	conf := fastwalk.Config{Follow: false}
	walkErr := fastwalk.Walk(&conf, dir, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			mu.Lock()
			a.Errors = append(a.Errors, err.Error())
			mu.Unlock()
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil || rel == SummaryFile {
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			mu.Lock()
			a.Errors = append(a.Errors, err.Error())
			mu.Unlock()
			return nil
		}

		f := File{
			Path:     filepath.ToSlash(rel),
			Size:     fi.Size(),
			Category: Categorize(rel),
		}

		mu.Lock()
		a.Files[f.Category] = append(a.Files[f.Category], f)
		a.TotalFiles++
		a.TotalSize += f.Size
		mu.Unlock()
		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}

	for _, files := range a.Files {
		sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	}
	sort.Strings(a.Errors)

	m, err := ReadManifest(filepath.Join(dir, "manifest.json"))
	switch {
	case err == nil:
		a.Manifest = m
	case errors.Is(err, fs.ErrNotExist):
		log.Debug("no manifest.json", "dir", dir)
	default:
		log.Warn("could not read manifest.json", "dir", dir, "err", err)
	}

	log.Info("analysis complete", "dir", dir, "files", a.TotalFiles, "bytes", a.TotalSize)
	return a, nil
}

// ReadManifest parses the identity fields of a manifest.json file.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	data = trimBOM(data)

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if v, err := semver.NewVersion(m.Version); err == nil {
		m.SemVer = v
	}
	return &m, nil
}

func trimBOM(b []byte) []byte {
	if len(b) >= 3 && b[0] == 0xEF && b[1] == 0xBB && b[2] == 0xBF {
		return b[3:]
	}
	return b
}
