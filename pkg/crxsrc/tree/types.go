// Package tree folds archive entry names into an ordered prefix tree and
// renders it as box-drawing text.
package tree

// Node is one path segment of the archive tree.
type Node struct {
	// Identity
	Path string `json:"path"`
	Name string `json:"name"`

	// Size is the uncompressed size for entries that were added with one.
	Size uint64 `json:"size,omitempty"`

	// Tree structure, in insertion order
	Children []*Node `json:"children,omitempty"`
	Parent   *Node   `json:"-"`

	// UI state
	Expanded bool `json:"expanded,omitempty"`

	index map[string]*Node
}

// AddChild appends a child node and sets this node as the child's parent.
func (n *Node) AddChild(child *Node) {
	child.Parent = n
	n.Children = append(n.Children, child)
	if n.index == nil {
		n.index = make(map[string]*Node)
	}
	n.index[child.Name] = child
}

// Child returns the direct child with the given segment name, or nil.
func (n *Node) Child(name string) *Node {
	return n.index[name]
}

// IsLeaf reports whether the node has no children.
func (n *Node) IsLeaf() bool {
	return len(n.Children) == 0
}

// Depth returns the depth of this node from the root (root = 0).
func (n *Node) Depth() int {
	depth := 0
	for p := n.Parent; p != nil; p = p.Parent {
		depth++
	}
	return depth
}

// Count returns the number of leaves under n, n included if it is one.
func (n *Node) Count() int {
	if n.IsLeaf() {
		return 1
	}
	total := 0
	for _, c := range n.Children {
		total += c.Count()
	}
	return total
}

// Flatten returns the visible nodes in display order.
// Collapsed nodes hide their children.
func (n *Node) Flatten() []*Node {
	result := []*Node{n}
	if !n.IsLeaf() && n.Expanded {
		for _, child := range n.Children {
			result = append(result, child.Flatten()...)
		}
	}
	return result
}

// Toggle expands or collapses an internal node. Leaves are unaffected.
func (n *Node) Toggle() {
	if n.IsLeaf() {
		return
	}
	n.Expanded = !n.Expanded
}

// ExpandAll expands this node and all descendants.
func (n *Node) ExpandAll() {
	if n.IsLeaf() {
		return
	}
	n.Expanded = true
	for _, child := range n.Children {
		child.ExpandAll()
	}
}

// CollapseAll collapses this node and all descendants.
func (n *Node) CollapseAll() {
	if n.IsLeaf() {
		return
	}
	n.Expanded = false
	for _, child := range n.Children {
		child.CollapseAll()
	}
}
