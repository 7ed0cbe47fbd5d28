package bundle

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// chunkMarker is the wrapper signature of the first module in a raw chunk.
const chunkMarker = "function(e, t, r)"

// Prepare rewrites a raw bundler chunk into text Parse accepts. It writes
// "export default {", then the input from the first line containing the
// module wrapper signature up to, but not including, the last two lines of
// the input, and finally "}".
func Prepare(r io.Reader, w io.Writer) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("reading chunk: %w", err)
	}

	lines := strings.Split(string(data), "\n")
	total := len(lines)
	// A trailing newline does not start another line.
	if total > 0 && lines[total-1] == "" {
		lines = lines[:total-1]
	}

	bw := bufio.NewWriter(w)
	bw.WriteString("export default {\n")

	found := false
	for i, line := range lines {
		line = strings.TrimSuffix(line, "\r")
		lineNo := i + 1
		switch {
		case !found && strings.Contains(line, chunkMarker):
			found = true
			bw.WriteString(line)
			bw.WriteByte('\n')
		case found && lineNo <= total-2:
			bw.WriteString(line)
			bw.WriteByte('\n')
		}
	}

	bw.WriteString("}\n")
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("writing prepared bundle: %w", err)
	}
	return nil
}

// PreparedPath returns the path Prepare output is written to for a chunk at p.
func PreparedPath(p string) string {
	return p + ".json.js"
}
