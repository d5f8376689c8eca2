// Package tree implements the arena-indexed tree of spec.md §3: a flat
// node slice with node 0 as root "/", insertion-ordered child maps, and
// two builders — one from a flat (path, size) list (Local Tree Builder,
// spec.md §4.F) and one that walks a device over rpctransport (Remote
// Tree Builder, spec.md §4.G). Grounded directly on
// original_source/src/walking_diff/tree.rs's Tree/Node/RemoteTree/
// RemoteNode shapes.
package tree

import "strings"

// Node is one arena entry. Size is meaningful only for files; Dir is the
// authoritative directory/file discriminator when a builder sets it
// explicitly (the Remote Tree Builder always does). Local-tree nodes
// leave Dir false and rely on the convention spec.md §3 states: a node
// with no children is a file.
type Node struct {
	Name string
	Size int64
	Dir  bool

	order    []string
	children map[string]int
}

func newNode(name string) *Node {
	return &Node{Name: name, children: map[string]int{}}
}

// IsLeaf reports whether n has no children — the local-tree file
// convention (spec.md §3).
func (n *Node) IsLeaf() bool { return len(n.children) == 0 }

// ChildNames returns n's children in insertion order, the order the
// Diff Engine's passes iterate in (spec.md §4.H "Tie-breaks / ordering").
func (n *Node) ChildNames() []string { return n.order }

// Child looks up a child by name.
func (n *Node) Child(name string) (int, bool) {
	idx, ok := n.children[name]
	return idx, ok
}

// Tree is the flat node arena; Nodes[0] is always root "/".
type Tree struct {
	Nodes []*Node
}

// New returns a Tree containing only the root node, with its backing
// slice preallocated to capacityHint (an advisory sizing hint; zero is
// fine).
func New(capacityHint int) *Tree {
	t := &Tree{Nodes: make([]*Node, 0, capacityHint+1)}
	t.Nodes = append(t.Nodes, newNode("/"))
	return t
}

// AddChild appends n as a new child of parent and returns its index.
func (t *Tree) AddChild(parent int, n *Node) int {
	idx := len(t.Nodes)
	p := t.Nodes[parent]
	p.children[n.Name] = idx
	p.order = append(p.order, n.Name)
	t.Nodes = append(t.Nodes, n)
	return idx
}

// FindChild looks up parent's child named name.
func (t *Tree) FindChild(parent int, name string) (int, bool) {
	return t.Nodes[parent].Child(name)
}

// Paths returns, for every node in t, its absolute device path computed
// by joining child names under root with "/". Used by the Diff Engine's
// equality oracle to turn a remote node index into the path fs_read_dir
// needs.
func (t *Tree) Paths(root string) map[int]string {
	out := map[int]string{0: root}
	var walk func(idx int, path string)
	walk = func(idx int, path string) {
		node := t.Nodes[idx]
		for _, name := range node.order {
			childIdx := node.children[name]
			childPath := strings.TrimSuffix(path, "/") + "/" + name
			out[childIdx] = childPath
			walk(childIdx, childPath)
		}
	}
	walk(0, root)
	return out
}

// EnsurePath walks comps from root, creating directory nodes as needed,
// and returns the index of the final component. Intermediate nodes
// created along the way are left with Size 0 and Dir false, matching the
// "exactness is achieved by deduplicating via child lookup" invariant of
// spec.md §4.F: revisiting the same prefix never creates a duplicate.
func (t *Tree) EnsurePath(comps []string) int {
	parent := 0
	for _, c := range comps {
		if idx, ok := t.FindChild(parent, c); ok {
			parent = idx
			continue
		}
		parent = t.AddChild(parent, newNode(c))
	}
	return parent
}
