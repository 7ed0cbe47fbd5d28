package output

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/jamesainslie/crxsrc/pkg/crxsrc/extract"
)

// PrettyFormatter renders the report with lipgloss styling for terminals.
type PrettyFormatter struct{}

// Format writes the formatted report to the buffer.
func (f *PrettyFormatter) Format(w *bytes.Buffer, r *extract.Report) error {
	w.WriteString(f.formatHeader(r))
	w.WriteString("\n")
	w.WriteString(f.formatTable(r))
	w.WriteString(f.formatFooter(r))

	if len(r.Warnings) > 0 {
		w.WriteString("\n")
		w.WriteString(f.formatWarnings(r.Warnings))
	}
	if failed := r.Failures(); len(failed) > 0 {
		w.WriteString("\n")
		w.WriteString(f.formatFailures(failed))
	}
	return nil
}

func (f *PrettyFormatter) formatHeader(r *extract.Report) string {
	var lines []string

	if r.Artifact != "" {
		lines = append(lines, LabelStyle.Render("Artifact:")+" "+ValueStyle.Render(r.Artifact))
	}

	info := []string{
		LabelStyle.Render("Container:") + " " + ValueStyle.Render(r.Container),
		LabelStyle.Render("Mode:") + " " + ValueStyle.Render(string(r.Mode)),
		LabelStyle.Render("Entries:") + " " + ValueStyle.Render(fmt.Sprintf("%d", r.TotalEntries)),
	}
	lines = append(lines, strings.Join(info, "  "))
	lines = append(lines, LabelStyle.Render("Output:")+" "+PathStyle.Render(r.OutputDir))

	return HeaderBox.Render(strings.Join(lines, "\n"))
}

func (f *PrettyFormatter) formatTable(r *extract.Report) string {
	if len(r.Entries) == 0 {
		return MutedStyle.Render("  No matching entries found") + "\n"
	}

	sizes := make([]string, len(r.Entries))
	width := 8
	for i, e := range r.Entries {
		sizes[i] = humanize.IBytes(uint64(e.Size))
		if len(sizes[i]) > width {
			width = len(sizes[i])
		}
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("  %s  %s\n",
		TableHeaderStyle.Render(padLeft("SIZE", width)), TableHeaderStyle.Render("ENTRY")))

	for i, e := range r.Entries {
		marker := MutedStyle.Render(" ")
		switch {
		case e.Failed():
			marker = ErrorStyle.Render("x")
		case e.Warning != "":
			marker = WarningStyle.Render("!")
		case e.Normalized:
			marker = SuccessStyle.Render("*")
		}
		sb.WriteString(fmt.Sprintf("  %s %s %s\n",
			SizeStyle.Render(padLeft(sizes[i], width)), marker, PathStyle.Render(e.Name)))
	}
	return sb.String()
}

func (f *PrettyFormatter) formatFooter(r *extract.Report) string {
	parts := []string{
		LabelStyle.Render("Written:") + " " + ValueStyle.Render(fmt.Sprintf("%d/%d", r.Written(), r.Selected)),
		LabelStyle.Render("Total:") + " " + SizeStyle.Render(humanize.IBytes(uint64(r.BytesWritten()))),
		LabelStyle.Render("Took:") + " " + ValueStyle.Render(formatDuration(r.Duration)),
	}
	if r.Message != "" {
		parts = append(parts, MutedStyle.Render(r.Message))
	}
	return FooterBox.Render(strings.Join(parts, "  "))
}

func (f *PrettyFormatter) formatWarnings(warnings []string) string {
	var sb strings.Builder
	sb.WriteString(WarningStyle.Bold(true).Render("Warnings:"))
	sb.WriteString("\n")
	for _, warning := range warnings {
		sb.WriteString(WarningStyle.Render("  " + warning))
		sb.WriteString("\n")
	}
	return sb.String()
}

func (f *PrettyFormatter) formatFailures(failed []extract.EntryResult) string {
	var sb strings.Builder
	sb.WriteString(ErrorStyle.Bold(true).Render("Failed:"))
	sb.WriteString("\n")
	for _, e := range failed {
		sb.WriteString(ErrorStyle.Render("  " + e.Error))
		sb.WriteString("\n")
	}
	return sb.String()
}

// padLeft pads s with spaces on the left to width.
func padLeft(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat(" ", width-len(s)) + s
}

func init() {
	Register("pretty", func() Formatter {
		return &PrettyFormatter{}
	})
}

var _ Formatter = (*PrettyFormatter)(nil)
