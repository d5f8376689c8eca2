package tree

import (
	"testing"

	"github.com/flippy-sync/flippy/internal/rpctransport"
)

func TestBuildLocalLeavesAndDirs(t *testing.T) {
	tr := BuildLocal([]PathSize{
		{Path: "a.sub", Size: 10},
		{Path: "dir/b.sub", Size: 20},
		{Path: "dir/sub/c.sub", Size: 30},
	})

	root := tr.Nodes[0]
	aIdx, ok := tr.FindChild(0, "a.sub")
	if !ok {
		t.Fatal("a.sub missing")
	}
	if !tr.Nodes[aIdx].IsLeaf() || tr.Nodes[aIdx].Size != 10 {
		t.Errorf("a.sub = %+v, want leaf size 10", tr.Nodes[aIdx])
	}

	dirIdx, ok := tr.FindChild(0, "dir")
	if !ok {
		t.Fatal("dir missing")
	}
	if tr.Nodes[dirIdx].IsLeaf() {
		t.Error("dir should not be a leaf")
	}

	bIdx, ok := tr.FindChild(dirIdx, "b.sub")
	if !ok || !tr.Nodes[bIdx].IsLeaf() || tr.Nodes[bIdx].Size != 20 {
		t.Errorf("dir/b.sub missing or wrong: ok=%v node=%+v", ok, tr.Nodes[bIdx])
	}

	subIdx, ok := tr.FindChild(dirIdx, "sub")
	if !ok || tr.Nodes[subIdx].IsLeaf() {
		t.Fatalf("dir/sub missing or leaf")
	}
	cIdx, ok := tr.FindChild(subIdx, "c.sub")
	if !ok || !tr.Nodes[cIdx].IsLeaf() || tr.Nodes[cIdx].Size != 30 {
		t.Errorf("dir/sub/c.sub wrong: %+v", tr.Nodes[cIdx])
	}

	if len(root.ChildNames()) != 2 {
		t.Errorf("root children = %v, want [a.sub dir]", root.ChildNames())
	}
}

func TestBuildLocalDedup(t *testing.T) {
	tr := BuildLocal([]PathSize{
		{Path: "dir/a.sub", Size: 1},
		{Path: "dir/b.sub", Size: 2},
	})
	dirIdx, _ := tr.FindChild(0, "dir")
	if n := len(tr.Nodes[dirIdx].ChildNames()); n != 2 {
		t.Errorf("dir has %d children, want 2 (single dir node, not duplicated)", n)
	}
	// 1 root + 1 dir + 2 files = 4 nodes total.
	if len(tr.Nodes) != 4 {
		t.Errorf("len(Nodes) = %d, want 4", len(tr.Nodes))
	}
}

func TestBuildRemoteIgnoresOnlyAtRoot(t *testing.T) {
	mem := rpctransport.NewMemTransport()
	mem.Seed("/ext/subghz/a.sub", []byte("one"))
	mem.Seed("/ext/subghz/assets/skip.sub", []byte("skip"))
	mem.Seed("/ext/subghz/sub/assets", []byte("not ignored: assets is nested, not at root"))

	tr, err := BuildRemote(mem, "/ext/subghz", map[string]bool{"assets": true})
	if err != nil {
		t.Fatalf("BuildRemote: %v", err)
	}

	if _, ok := tr.FindChild(0, "assets"); ok {
		t.Error("root-level assets should have been ignored")
	}
	if _, ok := tr.FindChild(0, "a.sub"); !ok {
		t.Error("a.sub should be present")
	}

	subIdx, ok := tr.FindChild(0, "sub")
	if !ok {
		t.Fatal("sub missing")
	}
	if _, ok := tr.FindChild(subIdx, "assets"); !ok {
		t.Error("nested assets (not at traversal root) should NOT be ignored")
	}
}

func TestBuildRemoteDirVsFileDiscriminator(t *testing.T) {
	mem := rpctransport.NewMemTransport()
	if _, err := mem.FsCreateDir("/ext/nfc/empty"); err != nil {
		t.Fatal(err)
	}
	mem.Seed("/ext/nfc/x.nfc", []byte("data"))

	tr, err := BuildRemote(mem, "/ext/nfc", nil)
	if err != nil {
		t.Fatalf("BuildRemote: %v", err)
	}

	emptyIdx, ok := tr.FindChild(0, "empty")
	if !ok {
		t.Fatal("empty dir missing")
	}
	if !tr.Nodes[emptyIdx].Dir {
		t.Error("an empty directory must still be discriminated as a directory, not inferred from children")
	}
}
