package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/jamesainslie/crxsrc/pkg/crxsrc/tree"
)

// Tree view icons using Unicode symbols.
const (
	iconExpanded  = "▼" // Black down-pointing triangle
	iconCollapsed = "▶" // Black right-pointing triangle
	iconFile      = "·" // Middle dot
)

// TreeView displays an archive tree with expand/collapse, search and
// scrolling. The root node itself is never shown.
type TreeView struct {
	root   *tree.Node
	flat   []*tree.Node // Flattened visible nodes
	cursor int          // Index in flat slice
	offset int          // Scroll offset
	query  string       // Last search, lower-cased
}

// NewTreeView creates a TreeView with the top level expanded.
func NewTreeView(root *tree.Node) *TreeView {
	tv := &TreeView{root: root}
	if root != nil {
		root.Expanded = true
	}
	tv.refresh()
	return tv
}

// refresh rebuilds the flat list from the current tree state.
func (tv *TreeView) refresh() {
	tv.flat = tv.flat[:0]
	if tv.root != nil {
		for _, child := range tv.root.Children {
			tv.flat = append(tv.flat, child.Flatten()...)
		}
	}

	if tv.cursor >= len(tv.flat) {
		tv.cursor = len(tv.flat) - 1
	}
	if tv.cursor < 0 {
		tv.cursor = 0
	}
}

// Len returns the number of visible rows.
func (tv *TreeView) Len() int { return len(tv.flat) }

// Cursor returns the index of the highlighted row.
func (tv *TreeView) Cursor() int { return tv.cursor }

// Selected returns the currently highlighted node.
func (tv *TreeView) Selected() *tree.Node {
	if len(tv.flat) == 0 || tv.cursor < 0 || tv.cursor >= len(tv.flat) {
		return nil
	}
	return tv.flat[tv.cursor]
}

// MoveUp moves the cursor up by n rows.
func (tv *TreeView) MoveUp(n int) {
	tv.cursor = max(tv.cursor-n, 0)
}

// MoveDown moves the cursor down by n rows.
func (tv *TreeView) MoveDown(n int) {
	if len(tv.flat) == 0 {
		return
	}
	tv.cursor = min(tv.cursor+n, len(tv.flat)-1)
}

// Top moves the cursor to the first row.
func (tv *TreeView) Top() { tv.cursor = 0 }

// Bottom moves the cursor to the last row.
func (tv *TreeView) Bottom() { tv.cursor = max(len(tv.flat)-1, 0) }

// Toggle expands or collapses the highlighted directory.
func (tv *TreeView) Toggle() {
	node := tv.Selected()
	if node == nil || node.IsLeaf() {
		return
	}
	node.Toggle()
	tv.refresh()
}

// Expand opens a collapsed directory, or steps into an open one.
func (tv *TreeView) Expand() {
	node := tv.Selected()
	if node == nil || node.IsLeaf() {
		return
	}
	if !node.Expanded {
		node.Toggle()
		tv.refresh()
		return
	}
	tv.MoveDown(1)
}

// Collapse closes an open directory, or moves to the parent directory.
func (tv *TreeView) Collapse() {
	node := tv.Selected()
	if node == nil {
		return
	}
	if !node.IsLeaf() && node.Expanded {
		node.Toggle()
		tv.refresh()
		return
	}
	if node.Parent != nil && node.Parent != tv.root {
		tv.moveTo(node.Parent)
	}
}

// ExpandAll expands every directory.
func (tv *TreeView) ExpandAll() {
	if tv.root == nil {
		return
	}
	current := tv.Selected()
	tv.root.ExpandAll()
	tv.refresh()
	tv.moveTo(current)
}

// CollapseAll collapses every directory below the top level.
func (tv *TreeView) CollapseAll() {
	if tv.root == nil {
		return
	}
	current := tv.Selected()
	tv.root.CollapseAll()
	tv.root.Expanded = true
	tv.refresh()
	for current != nil && current.Parent != nil && current.Parent != tv.root {
		current = current.Parent
	}
	tv.moveTo(current)
}

// Find searches entry paths for query, case-insensitively, starting after
// the cursor and wrapping around. Matches inside collapsed directories are
// revealed. It reports whether anything matched.
func (tv *TreeView) Find(query string) bool {
	tv.query = strings.ToLower(strings.TrimSpace(query))
	return tv.FindNext()
}

// FindNext repeats the last search.
func (tv *TreeView) FindNext() bool {
	if tv.query == "" || tv.root == nil {
		return false
	}

	nodes := tv.allNodes()
	if len(nodes) == 0 {
		return false
	}

	start := 0
	if current := tv.Selected(); current != nil {
		for i, n := range nodes {
			if n == current {
				start = i + 1
				break
			}
		}
	}

	for i := range nodes {
		n := nodes[(start+i)%len(nodes)]
		if strings.Contains(strings.ToLower(n.Path), tv.query) {
			tv.reveal(n)
			return true
		}
	}
	return false
}

// Query returns the active search string.
func (tv *TreeView) Query() string { return tv.query }

// allNodes returns every node below the root in display order, regardless
// of expansion.
func (tv *TreeView) allNodes() []*tree.Node {
	var out []*tree.Node
	var walk func(n *tree.Node)
	walk = func(n *tree.Node) {
		for _, c := range n.Children {
			out = append(out, c)
			walk(c)
		}
	}
	walk(tv.root)
	return out
}

// reveal expands the ancestors of n and moves the cursor to it.
func (tv *TreeView) reveal(n *tree.Node) {
	for p := n.Parent; p != nil; p = p.Parent {
		p.Expanded = true
	}
	tv.refresh()
	tv.moveTo(n)
}

// moveTo places the cursor on n if it is visible.
func (tv *TreeView) moveTo(n *tree.Node) {
	for i, v := range tv.flat {
		if v == n {
			tv.cursor = i
			return
		}
	}
}

// View renders the tree view within the given dimensions.
func (tv *TreeView) View(width, height int) string {
	if len(tv.flat) == 0 {
		return mutedTextStyle.Render("Archive is empty") + "\n"
	}

	visibleRows := max(height, 1)
	tv.ensureVisible(visibleRows)

	var b strings.Builder
	end := min(tv.offset+visibleRows, len(tv.flat))
	for i := tv.offset; i < end; i++ {
		b.WriteString(tv.renderNode(tv.flat[i], width, i == tv.cursor))
		b.WriteString("\n")
	}
	for i := end - tv.offset; i < visibleRows; i++ {
		b.WriteString("\n")
	}

	return b.String()
}

// ensureVisible adjusts offset to keep the cursor within visible rows.
func (tv *TreeView) ensureVisible(visible int) {
	if tv.cursor < tv.offset {
		tv.offset = tv.cursor
	} else if tv.cursor >= tv.offset+visible {
		tv.offset = tv.cursor - visible + 1
	}
	if tv.offset < 0 {
		tv.offset = 0
	}
}

// renderNode renders a single node row.
func (tv *TreeView) renderNode(node *tree.Node, width int, isCursor bool) string {
	indent := strings.Repeat("  ", max(node.Depth()-1, 0))

	icon := iconFile
	name := node.Name
	var sizeStr string
	if node.IsLeaf() {
		sizeStr = humanize.IBytes(node.Size)
	} else {
		if node.Expanded {
			icon = iconExpanded
		} else {
			icon = iconCollapsed
		}
		name += "/"
		sizeStr = fmt.Sprintf("(%d files, %s)", node.Count(), humanize.IBytes(subtreeSize(node)))
	}

	plain := indent + icon + " " + name
	padding := max(width-lipgloss.Width(plain)-lipgloss.Width(sizeStr)-1, 1)

	if isCursor {
		return treeRowHighlightStyle.Width(width).Render(plain + strings.Repeat(" ", padding) + sizeStr)
	}

	styledName := name
	switch {
	case tv.query != "" && strings.Contains(strings.ToLower(node.Path), tv.query):
		styledName = treeMatchStyle.Render(name)
	case !node.IsLeaf():
		styledName = treeDirStyle.Render(name)
	}
	row := indent + icon + " " + styledName + strings.Repeat(" ", padding) + treeSizeStyle.Render(sizeStr)
	return treeRowNormalStyle.Width(width).Render(row)
}

// subtreeSize sums the sizes of the leaves under n.
func subtreeSize(n *tree.Node) uint64 {
	if n.IsLeaf() {
		return n.Size
	}
	var total uint64
	for _, c := range n.Children {
		total += subtreeSize(c)
	}
	return total
}
