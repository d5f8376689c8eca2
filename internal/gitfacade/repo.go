// Package gitfacade narrows go-git down to exactly the operations the sync
// engine needs: open, clone, fetch, head commit, commit lookup, and a
// tree-to-tree diff with rewrites disabled (renames/copies surface as a
// plain Addition + Deletion pair, which keeps op translation a flat
// switch). Grounded on cache/gitcache.go's clone-if-absent pattern,
// generalized from the teacher's unmaintained gopkg.in/src-d/go-git.v4 to
// its maintained successor.
package gitfacade

import (
	"io"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/utils/merkletrie"
	"github.com/pkg/errors"
)

// ErrCommitNotFound is returned by FindCommit when oid does not resolve to
// a commit reachable in the local object store (spec.md §4.J Strategy A:
// "the recorded commit cannot be found in the local clone" falls back to
// the walking diff).
var ErrCommitNotFound = errors.New("gitfacade: commit not found")

// Repo wraps a single local clone.
type Repo struct {
	repo *git.Repository
	path string
}

// Open opens an existing local clone at path.
func Open(path string) (*Repo, error) {
	r, err := git.PlainOpen(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	return &Repo{repo: r, path: path}, nil
}

// Clone clones url into dst, reporting progress to w (nil discards it).
func Clone(url, dst string, w io.Writer) (*Repo, error) {
	r, err := git.PlainClone(dst, false, &git.CloneOptions{
		URL:      url,
		Progress: w,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "clone %s into %s", url, dst)
	}
	return &Repo{repo: r, path: dst}, nil
}

// Path returns the local clone's working directory.
func (r *Repo) Path() string { return r.path }

// Fetch updates the local clone's "origin" remote, reporting progress to w
// (nil discards it). An up-to-date remote is not an error.
func (r *Repo) Fetch(w io.Writer) error {
	err := r.repo.Fetch(&git.FetchOptions{
		RemoteName: "origin",
		Progress:   w,
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return errors.Wrap(err, "fetch")
	}
	return nil
}

// HeadCommit returns the clone's current HEAD commit.
func (r *Repo) HeadCommit() (*object.Commit, error) {
	ref, err := r.repo.Head()
	if err != nil {
		return nil, errors.Wrap(err, "head")
	}
	c, err := r.repo.CommitObject(ref.Hash())
	if err != nil {
		return nil, errors.Wrap(err, "head commit object")
	}
	return c, nil
}

// FindCommit resolves a hex commit object id to a commit. It returns
// ErrCommitNotFound (wrapped) when oid is malformed or absent from the
// local object store, which the orchestrator treats as a signal to fall
// back to the walking diff (Strategy B).
func (r *Repo) FindCommit(oid string) (*object.Commit, error) {
	hash := plumbing.NewHash(oid)
	if hash.IsZero() && oid != plumbing.ZeroHash.String() {
		return nil, errors.Wrapf(ErrCommitNotFound, "malformed oid %q", oid)
	}
	c, err := r.repo.CommitObject(hash)
	if err != nil {
		return nil, errors.Wrapf(ErrCommitNotFound, "%s: %v", oid, err)
	}
	return c, nil
}

// ChangeKind classifies one entry of a tree-to-tree diff.
type ChangeKind int

const (
	Added ChangeKind = iota
	Deleted
	Modified
)

// Change is one file-level change between two commits. Size is the blob
// size of the new side (Added/Modified); it is meaningless for Deleted.
type Change struct {
	Kind ChangeKind
	Path string
	Size int64
}

// DiffTreeToTree computes the file-level changes from old to new with
// rewrite detection disabled (spec.md §4.D: "Rewrites are explicitly
// disabled"). go-git's object.DiffTree performs no rename/copy detection
// on its own, so this matches that contract without extra configuration.
func (r *Repo) DiffTreeToTree(old, new *object.Commit) ([]Change, error) {
	oldTree, err := old.Tree()
	if err != nil {
		return nil, errors.Wrap(err, "old tree")
	}
	newTree, err := new.Tree()
	if err != nil {
		return nil, errors.Wrap(err, "new tree")
	}

	changes, err := oldTree.Diff(newTree)
	if err != nil {
		return nil, errors.Wrap(err, "diff tree to tree")
	}

	out := make([]Change, 0, len(changes))
	for _, ch := range changes {
		action, err := ch.Action()
		if err != nil {
			return nil, errors.Wrap(err, "change action")
		}
		switch action {
		case merkletrie.Insert:
			size, err := blobSize(new, ch.To)
			if err != nil {
				return nil, err
			}
			out = append(out, Change{Kind: Added, Path: ch.To.Name, Size: size})
		case merkletrie.Delete:
			out = append(out, Change{Kind: Deleted, Path: ch.From.Name})
		case merkletrie.Modify:
			size, err := blobSize(new, ch.To)
			if err != nil {
				return nil, err
			}
			out = append(out, Change{Kind: Modified, Path: ch.To.Name, Size: size})
		}
	}
	return out, nil
}

func blobSize(commit *object.Commit, entry object.ChangeEntry) (int64, error) {
	f, err := commit.File(entry.Name)
	if err != nil {
		return 0, errors.Wrapf(err, "blob for %s", entry.Name)
	}
	return f.Size, nil
}
