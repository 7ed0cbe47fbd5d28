package analyze

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/jamesainslie/crxsrc/pkg/crxsrc/fsutil"
)

// maxListedScripts caps the script list in the summary.
const maxListedScripts = 10

var categoryTitles = map[Category]string{
	CategoryScript: "JavaScript Files",
	CategoryStyle:  "CSS Files",
	CategoryMarkup: "HTML Files",
	CategoryJSON:   "JSON Files",
	CategoryImage:  "Image Files",
	CategoryOther:  "Other Files",
}

func size(n int64) string {
	return humanize.IBytes(uint64(n))
}

// Summary renders the analysis as Markdown.
func (a *Analysis) Summary() string {
	var sb strings.Builder

	sb.WriteString("# Chrome Extension Analysis\n\n")
	sb.WriteString("## Overview\n")
	fmt.Fprintf(&sb, "- **Total Files**: %d\n", a.TotalFiles)
	fmt.Fprintf(&sb, "- **Total Size**: %s\n\n", size(a.TotalSize))

	if m := a.Manifest; m != nil {
		sb.WriteString("## Manifest Information\n")
		fmt.Fprintf(&sb, "- **Name**: %s\n", orDefault(m.Name, "Unknown"))
		version := orDefault(m.Version, "Unknown")
		if m.SemVer != nil && m.SemVer.String() != m.Version {
			version += fmt.Sprintf(" (semver %s)", m.SemVer)
		}
		fmt.Fprintf(&sb, "- **Version**: %s\n", version)
		mv := "Unknown"
		if m.ManifestVersion > 0 {
			mv = fmt.Sprintf("%d", m.ManifestVersion)
		}
		fmt.Fprintf(&sb, "- **Manifest Version**: %s\n", mv)
		fmt.Fprintf(&sb, "- **Description**: %s\n\n", orDefault(m.Description, "No description"))
	}

	sb.WriteString("## File Distribution\n")
	for _, c := range Categories {
		fmt.Fprintf(&sb, "- **%s**: %d (%s)\n", categoryTitles[c], len(a.Files[c]), size(a.CategorySize(c)))
	}
	sb.WriteString("\n")

	sb.WriteString("## Key Files\n")
	if scripts := a.Files[CategoryScript]; len(scripts) > 0 {
		sb.WriteString("### JavaScript Files:\n")
		for i, f := range scripts {
			if i == maxListedScripts {
				fmt.Fprintf(&sb, "- ... and %d more\n", len(scripts)-maxListedScripts)
				break
			}
			fmt.Fprintf(&sb, "- `%s` (%s)\n", f.Path, size(f.Size))
		}
		sb.WriteString("\n")
	}
	if pages := a.Files[CategoryMarkup]; len(pages) > 0 {
		sb.WriteString("### HTML Files:\n")
		for _, f := range pages {
			fmt.Fprintf(&sb, "- `%s` (%s)\n", f.Path, size(f.Size))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// WriteSummary writes the Markdown summary into the analysed directory and
// returns its path.
func (a *Analysis) WriteSummary() (string, error) {
	path := filepath.Join(a.Root, SummaryFile)
	if err := fsutil.WriteFileAtomic(path, []byte(a.Summary()), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
