package tree

import "strings"

// Item is an entry name with an optional size.
type Item struct {
	Name string
	Size uint64
}

// Build folds slash-separated names into a tree. Empty segments are dropped,
// so "js/" and "js" describe the same node. Sibling order follows the order
// in which names first appear.
func Build(names []string) *Node {
	items := make([]Item, len(names))
	for i, name := range names {
		items[i] = Item{Name: name}
	}
	return BuildItems(items)
}

// BuildItems is Build with sizes attached to the leaf nodes.
func BuildItems(items []Item) *Node {
	root := &Node{Expanded: true}

	for _, it := range items {
		current := root
		for _, seg := range strings.Split(it.Name, "/") {
			if seg == "" {
				continue
			}
			next := current.Child(seg)
			if next == nil {
				path := seg
				if current.Path != "" {
					path = current.Path + "/" + seg
				}
				next = &Node{Path: path, Name: seg}
				current.AddChild(next)
			}
			current = next
		}
		if current != root {
			current.Size = it.Size
		}
	}

	return root
}
