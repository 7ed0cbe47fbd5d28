package extract

import (
	"fmt"
	"path"
	"slices"
	"strings"

	"github.com/gobwas/glob"
)

// RenamePolicy controls the on-disk name of an extracted entry.
type RenamePolicy int

const (
	// RenameOriginal keeps the entry name as stored in the archive.
	RenameOriginal RenamePolicy = iota

	// RenameGeneric drops content-hash segments from the base name, so
	// js/main.3f2a.js is written as js/main.js.
	RenameGeneric
)

// String returns the string representation of the policy.
func (p RenamePolicy) String() string {
	if p == RenameGeneric {
		return "generic"
	}
	return "original"
}

// ParseRenamePolicy parses "original" or "generic".
func ParseRenamePolicy(s string) (RenamePolicy, error) {
	switch strings.ToLower(s) {
	case "original", "":
		return RenameOriginal, nil
	case "generic":
		return RenameGeneric, nil
	default:
		return RenameOriginal, fmt.Errorf("unknown rename policy: %s", s)
	}
}

// Selector decides which entries are extracted and how they are named.
type Selector struct {
	// Extensions lists the allowed extensions, lower-case, without the dot.
	Extensions []string

	// Rename is the naming policy for written files.
	Rename RenamePolicy

	// Target switches to targeted mode: only the first entry whose name, or
	// generic name, equals Target is extracted.
	Target string

	// Include keeps only entries matching at least one glob, when non-empty.
	Include []string

	// Exclude drops entries matching any glob.
	Exclude []string
}

// SweepPreset selects scripts, data and markup under their original names.
func SweepPreset() Selector {
	return Selector{
		Extensions: []string{"js", "json", "html"},
		Rename:     RenameOriginal,
	}
}

// LegacyPreset selects scripts only and writes them under generic names.
func LegacyPreset() Selector {
	return Selector{
		Extensions: []string{"js"},
		Rename:     RenameGeneric,
	}
}

// Preset returns the named preset.
func Preset(name string) (Selector, error) {
	switch strings.ToLower(name) {
	case "sweep", "":
		return SweepPreset(), nil
	case "legacy":
		return LegacyPreset(), nil
	default:
		return Selector{}, fmt.Errorf("unknown preset: %s (valid: sweep, legacy)", name)
	}
}

// Mode returns the extraction mode the selector implies.
func (s Selector) Mode() Mode {
	if s.Target != "" {
		return ModeTargeted
	}
	return ModeSweep
}

// GenericName strips everything after the first dot of the base name and
// re-appends the final extension: dir/main.3f2a.js becomes dir/main.js.
// Names without a dot are returned unchanged.
func GenericName(name string) string {
	dir, base := path.Split(name)
	ext := path.Ext(base)
	if ext == "" {
		return name
	}
	// A leading dot belongs to the stem (.eslintrc.js keeps .eslintrc).
	stem := base
	if i := strings.IndexByte(base[1:], '.'); i >= 0 {
		stem = base[:i+1]
	}
	return dir + stem + ext
}

// Ext returns the lower-cased extension of name without the dot.
func Ext(name string) string {
	return strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
}

// matcher is a compiled Selector.
type matcher struct {
	sel     Selector
	exts    map[string]struct{}
	include []glob.Glob
	exclude []glob.Glob
}

func (s Selector) compile() (*matcher, error) {
	m := &matcher{sel: s, exts: make(map[string]struct{}, len(s.Extensions))}
	for _, ext := range s.Extensions {
		m.exts[strings.ToLower(strings.TrimPrefix(ext, "."))] = struct{}{}
	}

	for _, p := range s.Include {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid include pattern %q: %w", p, err)
		}
		m.include = append(m.include, g)
	}
	for _, p := range s.Exclude {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", p, err)
		}
		m.exclude = append(m.exclude, g)
	}
	return m, nil
}

// allowedExt reports whether name's extension is selected. An empty
// extension list allows everything.
func (m *matcher) allowedExt(name string) bool {
	if len(m.exts) == 0 {
		return true
	}
	_, ok := m.exts[Ext(name)]
	return ok
}

// selects is the sweep-mode predicate.
func (m *matcher) selects(name string) bool {
	if !m.allowedExt(name) {
		return false
	}
	if len(m.include) > 0 && !slices.ContainsFunc(m.include, func(g glob.Glob) bool { return g.Match(name) }) {
		return false
	}
	return !slices.ContainsFunc(m.exclude, func(g glob.Glob) bool { return g.Match(name) })
}

// targets is the targeted-mode predicate.
func (m *matcher) targets(name string) bool {
	if name == m.sel.Target {
		return true
	}
	return GenericName(name) == m.sel.Target && m.allowedExt(name)
}

// destName is the archive-relative name the entry is written under.
func (m *matcher) destName(name string) string {
	if m.sel.Rename == RenameGeneric {
		return GenericName(name)
	}
	return name
}
