package tree

import (
	"path"
	"strings"

	"github.com/pkg/errors"

	"github.com/flippy-sync/flippy/internal/rpctransport"
)

// queueEntry is one pending directory to expand during the remote BFS.
type queueEntry struct {
	nodeIdx int
	path    string
}

// BuildRemote breadth-first walks the device filesystem under root via t,
// skipping names in ignore only at the traversal root's direct children
// (spec.md §4.G). It uses fs_read_dir(..., with_md5=false) throughout:
// hashes are fetched lazily, later, by the Diff Engine's equality oracle.
func BuildRemote(t rpctransport.Transport, root string, ignore map[string]bool) (*Tree, error) {
	result := New(0)
	queue := []queueEntry{{nodeIdx: 0, path: root}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		entries, err := t.FsReadDir(cur.path, false)
		if err != nil {
			return nil, errors.Wrapf(err, "fs_read_dir %s", cur.path)
		}

		for _, e := range entries {
			if cur.nodeIdx == 0 && ignore[e.Name] {
				continue
			}

			switch e.Kind {
			case rpctransport.EntryFile:
				n := newNode(e.Name)
				n.Size = e.Size
				result.AddChild(cur.nodeIdx, n)
			case rpctransport.EntryDir:
				n := newNode(e.Name)
				n.Dir = true
				idx := result.AddChild(cur.nodeIdx, n)
				queue = append(queue, queueEntry{nodeIdx: idx, path: joinRemote(cur.path, e.Name)})
			}
		}
	}

	return result, nil
}

func joinRemote(dir, name string) string {
	return path.Clean(strings.TrimSuffix(dir, "/") + "/" + name)
}
