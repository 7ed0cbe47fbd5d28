package tree

import (
	"bufio"
	"fmt"
	"io"
)

const (
	branch   = "├── "
	lastItem = "└── "
	pipe     = "│   "
	space    = "    "
)

// Render writes the children of root depth-first, one line per node.
func Render(w io.Writer, root *Node) error {
	bw := bufio.NewWriter(w)
	render(bw, root, "")
	return bw.Flush()
}

func render(w *bufio.Writer, n *Node, prefix string) {
	for i, child := range n.Children {
		last := i == len(n.Children)-1

		connector, extend := branch, pipe
		if last {
			connector, extend = lastItem, space
		}

		w.WriteString(prefix)
		w.WriteString(connector)
		w.WriteString(child.Name)
		w.WriteByte('\n')

		if !child.IsLeaf() {
			render(w, child, prefix+extend)
		}
	}
}

// Inspect writes the full listing for an archive: a header line, the tree,
// and the total entry count.
func Inspect(w io.Writer, names []string) error {
	if _, err := fmt.Fprintln(w, "File tree:"); err != nil {
		return err
	}
	if err := Render(w, Build(names)); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "Total %d files.\n", len(names))
	return err
}
