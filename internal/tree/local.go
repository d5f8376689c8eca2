package tree

import (
	"hash/fnv"
	"strconv"
	"strings"

	"github.com/axiomhq/hyperloglog"
)

// PathSize is one (repo-relative path, byte size) pair, the Local Tree
// Builder's input unit (spec.md §4.F).
type PathSize struct {
	Path string
	Size int64
}

// BuildLocal builds a Tree whose leaves are entries' paths and whose
// internal nodes are the directory path components. A HyperLogLog sketch
// pre-estimates the final node count so the arena backing slice needs no
// reallocation during the real insertion pass, mirroring
// original_source/src/walking_diff/tree.rs's two-pass
// "sketch-then-build" structure — the sketch is advisory only;
// exactness comes from EnsurePath's child-lookup dedup.
func BuildLocal(entries []PathSize) *Tree {
	sketch := hyperloglog.New14()
	for _, e := range entries {
		parent := uint64(0)
		for _, comp := range splitClean(e.Path) {
			h := componentHash(parent, comp)
			sketch.InsertHash(h)
			parent = h
		}
	}

	t := New(int(sketch.Estimate()) + 1)
	for _, e := range entries {
		comps := splitClean(e.Path)
		if len(comps) == 0 {
			continue
		}
		idx := t.EnsurePath(comps)
		t.Nodes[idx].Size = e.Size
	}
	return t
}

// componentHash combines a parent node's hash identity with a child
// name, the same (parent, name) keying walking_diff/tree.rs uses for its
// HyperLogLog inserts.
func componentHash(parent uint64, name string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(strconv.FormatUint(parent, 36)))
	h.Write([]byte{0})
	h.Write([]byte(name))
	return h.Sum64()
}

// splitClean splits a repo-relative path into its normal components,
// dropping empty segments (leading/trailing/duplicate slashes).
func splitClean(p string) []string {
	parts := strings.Split(p, "/")
	out := parts[:0]
	for _, s := range parts {
		if s != "" && s != "." {
			out = append(out, s)
		}
	}
	return out
}
