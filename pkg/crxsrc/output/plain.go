package output

import (
	"bytes"
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"github.com/jamesainslie/crxsrc/pkg/crxsrc/extract"
)

// PlainFormatter writes an unstyled table suitable for scripting.
type PlainFormatter struct{}

// Format writes the formatted report to the buffer.
func (f *PlainFormatter) Format(w *bytes.Buffer, r *extract.Report) error {
	tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', 0)

	if _, err := fmt.Fprint(tw, "SIZE\tNORMALIZED\tENTRY\tDEST\n"); err != nil {
		return err
	}

	for _, e := range r.Entries {
		if e.Failed() {
			if _, err := fmt.Fprintf(tw, "-\tfailed\t%s\t%s\n", e.Name, e.Error); err != nil {
				return err
			}
			continue
		}
		norm := "-"
		if e.Normalized {
			norm = e.Normalizer
		}
		if _, err := fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			humanize.IBytes(uint64(e.Size)), norm, e.Name, e.Dest); err != nil {
			return err
		}
	}

	if err := tw.Flush(); err != nil {
		return err
	}

	for _, warning := range r.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warning)
	}
	if r.Message != "" {
		w.WriteString(r.Message + "\n")
	}
	return nil
}

func init() {
	Register("plain", func() Formatter {
		return &PlainFormatter{}
	})
}

var _ Formatter = (*PlainFormatter)(nil)
