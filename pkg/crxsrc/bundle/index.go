package bundle

import (
	"fmt"
	"strings"

	"github.com/jamesainslie/crxsrc/pkg/crxsrc/logging"
)

// Conflict records a dependency id whose filename was overwritten by a later
// dependency table with a different name.
type Conflict struct {
	ID       string `json:"id"`
	Previous string `json:"previous"`
	Current  string `json:"current"`
	// Module is the id of the record whose table caused the overwrite.
	Module string `json:"module"`
}

// Index is the result of folding a bundle's records.
type Index struct {
	// Filenames maps a module id to the name it is required under.
	Filenames map[string]string

	// Implementations maps a module id to its cleaned source.
	Implementations map[string]string

	// Conflicts lists every overwrite in Filenames, in fold order.
	Conflicts []Conflict

	// order is the first-seen order of Filenames keys.
	order []string
}

// IDs returns the ids of the filename index in first-seen order.
func (ix *Index) IDs() []string {
	return append([]string(nil), ix.order...)
}

// BuildIndex folds the bundle in two passes. The first pass maps every
// dependency id to its required name; when an id is named again, the last
// name wins and a Conflict is recorded if it differs. The second pass stores
// each record's cleaned implementation under its own id.
func BuildIndex(b *Bundle) *Index {
	log := logging.Get("bundle")
	ix := &Index{
		Filenames:       make(map[string]string),
		Implementations: make(map[string]string, len(b.Records)),
	}

	for _, rec := range b.Records {
		for _, dep := range rec.Dependencies {
			prev, seen := ix.Filenames[dep.ID]
			if !seen {
				ix.order = append(ix.order, dep.ID)
			} else if prev != dep.Name {
				ix.Conflicts = append(ix.Conflicts, Conflict{ID: dep.ID, Previous: prev, Current: dep.Name, Module: rec.ID})
				log.Warn("module name overwritten", "id", dep.ID, "previous", prev, "current", dep.Name, "module", rec.ID)
			}
			ix.Filenames[dep.ID] = dep.Name
		}
	}

	for _, rec := range b.Records {
		ix.Implementations[rec.ID] = CleanImplementation(rec.Implementation)
	}

	return ix
}

// CleanImplementation strips the wrapper from a module function's source:
// a first line starting with "function(" is dropped, trailing blank lines are
// skipped, and a final line consisting of "}" is dropped.
func CleanImplementation(src string) string {
	lines := strings.Split(src, "\n")
	start, end := 0, len(lines)-1

	if strings.HasPrefix(strings.TrimSpace(lines[0]), "function(") {
		start = 1
	}
	for end > start && strings.TrimSpace(lines[end]) == "" {
		end--
	}
	if end >= 0 && strings.TrimSpace(lines[end]) == "}" {
		end--
	}
	if end < start {
		return ""
	}
	return strings.Join(lines[start:end+1], "\n")
}

// Reconstruct joins the indexes of b into file contents keyed by filename.
// Only filenames containing filter are emitted; an empty filter keeps all.
// Each body is "// ID: {id}\n{implementation}\n\n". When two ids share a
// filename, the one named last in the bundle wins.
func Reconstruct(b *Bundle, filter string) map[string]string {
	return BuildIndex(b).Files(filter)
}

// Files renders the joined output of the index.
func (ix *Index) Files(filter string) map[string]string {
	files := make(map[string]string)
	for _, id := range ix.order {
		name := ix.Filenames[id]
		if filter != "" && !strings.Contains(name, filter) {
			continue
		}
		files[name] = fmt.Sprintf("// ID: %s\n%s\n\n", id, ix.Implementations[id])
	}
	return files
}
