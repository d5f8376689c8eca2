// Package diff implements the three-pass diff engine of spec.md §4.H:
// prune, creation, update, producing a minimal ordered op sequence that
// transforms a Remote tree into a Local one. Grounded on
// original_source/src/walking_diff/diff.rs's prune_pass/creation_pass
// shape, completed with the update pass (equality oracle) the original
// left commented out as future work.
package diff

import (
	"github.com/flippy-sync/flippy/internal/tree"
)

// OpKind discriminates one Op.
type OpKind int

const (
	OpCreateDir OpKind = iota
	OpCopy
	OpRemove
)

// Op is one unit of the op stream (spec.md §3): a relative path, never
// leading with a separator, scoped by whatever Repo/Mapping delimiters
// the Sync Orchestrator has already emitted.
type Op struct {
	Kind OpKind
	Path string
}

// matchedEntry records one (local, remote) pair visited by the prune
// pass, carried forward to the update pass (spec.md §4.H step 1).
type matchedEntry struct {
	path            string
	localIdx        int
	remoteIdx       int
	remoteParentIdx int
}

// Diff computes the minimal op sequence that transforms remote into
// local. oracle resolves whether a matched file pair differs; pass nil
// only when local and remote are known to share no files (e.g. purely
// structural tests) — Diff will panic if the update pass needs it.
func Diff(local, remote *tree.Tree, oracle *EqualityOracle) ([]Op, error) {
	var ops []Op

	matched := prunePass(local, remote, &ops)
	creationPass(local, remote, &ops)
	if err := updatePass(local, matched, oracle, &ops); err != nil {
		return nil, err
	}

	return ops, nil
}

func joinRel(base, name string) string {
	if base == "" {
		return name
	}
	return base + "/" + name
}

// prunePass DFS's both trees from their roots. Remote-only subtrees are
// removed wholesale (one Remove op per subtree root — the transport's
// fs_remove is recursive). Matched (path, local, remote, remote-parent)
// tuples are recorded for the update pass. The root itself ("" here,
// "/" in spec.md) is never emitted as an op.
func prunePass(local, remote *tree.Tree, ops *[]Op) []matchedEntry {
	var matched []matchedEntry

	var walk func(localIdx, remoteIdx, remoteParentIdx int, path string)
	walk = func(localIdx, remoteIdx, remoteParentIdx int, path string) {
		matched = append(matched, matchedEntry{
			path:            path,
			localIdx:        localIdx,
			remoteIdx:       remoteIdx,
			remoteParentIdx: remoteParentIdx,
		})

		remoteNode := remote.Nodes[remoteIdx]
		localNode := local.Nodes[localIdx]
		for _, name := range remoteNode.ChildNames() {
			rChildIdx, _ := remoteNode.Child(name)
			childPath := joinRel(path, name)
			if lChildIdx, ok := localNode.Child(name); ok {
				walk(lChildIdx, rChildIdx, remoteIdx, childPath)
			} else {
				*ops = append(*ops, Op{Kind: OpRemove, Path: childPath})
			}
		}
	}
	walk(0, 0, -1, "")

	return matched
}

// creationPass DFS's local. Where both sides have a matching directory
// it recurses; a local-only subtree is created in full, parents before
// descendants.
func creationPass(local, remote *tree.Tree, ops *[]Op) {
	var walk func(localIdx, remoteIdx int, hasRemote bool, path string)
	walk = func(localIdx, remoteIdx int, hasRemote bool, path string) {
		if !hasRemote {
			emitCreateSubtree(local, localIdx, path, ops)
			return
		}

		localNode := local.Nodes[localIdx]
		remoteNode := remote.Nodes[remoteIdx]
		for _, name := range localNode.ChildNames() {
			lChildIdx, _ := localNode.Child(name)
			childPath := joinRel(path, name)
			if rChildIdx, ok := remoteNode.Child(name); ok {
				walk(lChildIdx, rChildIdx, true, childPath)
			} else {
				emitCreateSubtree(local, lChildIdx, childPath, ops)
			}
		}
	}
	walk(0, 0, true, "")
}

// emitCreateSubtree emits CreateDir/Copy for the entire subtree rooted
// at idx, directories preceding their descendants.
func emitCreateSubtree(local *tree.Tree, idx int, path string, ops *[]Op) {
	node := local.Nodes[idx]
	if node.IsLeaf() {
		if path != "" {
			*ops = append(*ops, Op{Kind: OpCopy, Path: path})
		}
		return
	}

	if path != "" {
		*ops = append(*ops, Op{Kind: OpCreateDir, Path: path})
	}
	for _, name := range node.ChildNames() {
		childIdx, _ := node.Child(name)
		emitCreateSubtree(local, childIdx, joinRel(path, name), ops)
	}
}

// updatePass walks the matched list; for each matched file pair it asks
// oracle whether the two differ and emits Copy when they do.
func updatePass(local *tree.Tree, matched []matchedEntry, oracle *EqualityOracle, ops *[]Op) error {
	for _, m := range matched {
		if m.path == "" {
			continue // root is never an op target
		}
		localNode := local.Nodes[m.localIdx]
		if !localNode.IsLeaf() {
			continue // only files are subject to the equality oracle
		}

		different, err := oracle.Different(m.path, localNode.Size, m.remoteIdx, m.remoteParentIdx)
		if err != nil {
			return err
		}
		if different {
			*ops = append(*ops, Op{Kind: OpCopy, Path: m.path})
		}
	}
	return nil
}
