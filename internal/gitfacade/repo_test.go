package gitfacade

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(filepath.Join(dir, name)), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func commitAll(t *testing.T, repo *git.Repository, msg string) object.Hash {
	t.Helper()
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := wt.Add("."); err != nil {
		t.Fatal(err)
	}
	sig := &object.Signature{Name: "test", Email: "test@example.com", When: time.Unix(0, 0)}
	hash, err := wt.Commit(msg, &git.CommitOptions{Author: sig})
	if err != nil {
		t.Fatal(err)
	}
	return hash
}

func TestCloneFetchHeadCommit(t *testing.T) {
	srcDir := t.TempDir()
	src, err := git.PlainInit(srcDir, false)
	if err != nil {
		t.Fatal(err)
	}
	writeFile(t, srcDir, "subghz/a.sub", "one")
	first := commitAll(t, src, "first")

	dstDir := t.TempDir()
	dst, err := Clone(srcDir, filepath.Join(dstDir, "clone"), nil)
	if err != nil {
		t.Fatalf("Clone: %v", err)
	}

	head, err := dst.HeadCommit()
	if err != nil {
		t.Fatalf("HeadCommit: %v", err)
	}
	if head.Hash != first {
		t.Errorf("HeadCommit = %s, want %s", head.Hash, first)
	}

	writeFile(t, srcDir, "subghz/a.sub", "two")
	writeFile(t, srcDir, "subghz/assets/ignored.txt", "junk")
	second := commitAll(t, src, "second")

	if err := dst.Fetch(nil); err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	oldCommit, err := dst.FindCommit(first.String())
	if err != nil {
		t.Fatalf("FindCommit(first): %v", err)
	}
	newCommit, err := dst.FindCommit(second.String())
	if err != nil {
		t.Fatalf("FindCommit(second): %v", err)
	}

	changes, err := dst.DiffTreeToTree(oldCommit, newCommit)
	if err != nil {
		t.Fatalf("DiffTreeToTree: %v", err)
	}

	var sawModify, sawAdd bool
	for _, c := range changes {
		switch {
		case c.Path == "subghz/a.sub" && c.Kind == Modified:
			sawModify = true
		case c.Path == "subghz/assets/ignored.txt" && c.Kind == Added:
			sawAdd = true
		}
	}
	if !sawModify {
		t.Errorf("changes %+v missing modified subghz/a.sub", changes)
	}
	if !sawAdd {
		t.Errorf("changes %+v missing added subghz/assets/ignored.txt", changes)
	}
}

func TestFindCommitNotFound(t *testing.T) {
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatal(err)
	}
	writeFile(t, dir, "a.txt", "x")
	commitAll(t, repo, "first")

	r, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := r.FindCommit("deadbeefdeadbeefdeadbeefdeadbeefdeadbeef"); err == nil {
		t.Error("FindCommit on an absent oid should fail")
	}
	if _, err := r.FindCommit("not-a-hash"); err == nil {
		t.Error("FindCommit on a malformed oid should fail")
	}
}
