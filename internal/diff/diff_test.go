package diff

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/flippy-sync/flippy/internal/rpctransport"
	"github.com/flippy-sync/flippy/internal/tree"
)

// applyToMem applies ops to mem at destRoot, simulating the transport
// side of an upload so invariant I1 (diff soundness) can be checked
// end-to-end against a MemTransport.
func applyToMem(t *testing.T, mem *rpctransport.MemTransport, localRoot, destRoot string, ops []Op) {
	t.Helper()
	for _, op := range ops {
		full := destRoot + "/" + op.Path
		switch op.Kind {
		case OpCreateDir:
			if _, err := mem.FsCreateDir(full); err != nil {
				t.Fatalf("FsCreateDir(%s): %v", full, err)
			}
		case OpCopy:
			data, err := os.ReadFile(filepath.Join(localRoot, filepath.FromSlash(op.Path)))
			if err != nil {
				t.Fatalf("read local %s: %v", op.Path, err)
			}
			if err := mem.FsWrite(full, data, nil); err != nil {
				t.Fatalf("FsWrite(%s): %v", full, err)
			}
		case OpRemove:
			if err := mem.FsRemove(full, true); err != nil {
				t.Fatalf("FsRemove(%s): %v", full, err)
			}
		}
	}
}

func writeLocal(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestDiffFirstRunSingleFile(t *testing.T) {
	localRoot := t.TempDir()
	writeLocal(t, localRoot, "1.sub", "HELLO FLIPPER\n\x00\x00\x00")

	local := tree.BuildLocal([]tree.PathSize{{Path: "1.sub", Size: 17}})

	mem := rpctransport.NewMemTransport()
	if _, err := mem.FsCreateDir("/ext/subghz"); err != nil {
		t.Fatal(err)
	}
	remote, err := tree.BuildRemote(mem, "/ext/subghz", nil)
	if err != nil {
		t.Fatal(err)
	}

	oracle := NewEqualityOracle(mem, remote, "/ext/subghz", localRoot)
	ops, err := Diff(local, remote, oracle)
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	if len(ops) != 1 || ops[0] != (Op{Kind: OpCopy, Path: "1.sub"}) {
		t.Errorf("ops = %+v, want single Copy(1.sub)", ops)
	}
}

func TestDiffNoOpReRun(t *testing.T) {
	localRoot := t.TempDir()
	writeLocal(t, localRoot, "1.sub", "same bytes")
	local := tree.BuildLocal([]tree.PathSize{{Path: "1.sub", Size: 10}})

	mem := rpctransport.NewMemTransport()
	mem.Seed("/ext/subghz/1.sub", []byte("same bytes"))
	remote, err := tree.BuildRemote(mem, "/ext/subghz", nil)
	if err != nil {
		t.Fatal(err)
	}

	oracle := NewEqualityOracle(mem, remote, "/ext/subghz", localRoot)
	ops, err := Diff(local, remote, oracle)
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	if len(ops) != 0 {
		t.Errorf("ops = %+v, want none", ops)
	}
}

func TestDiffAdditionAndDeletion(t *testing.T) {
	localRoot := t.TempDir()
	writeLocal(t, localRoot, "bar.nfc", "new file")
	local := tree.BuildLocal([]tree.PathSize{{Path: "bar.nfc", Size: 8}})

	mem := rpctransport.NewMemTransport()
	mem.Seed("/ext/nfc/old.nfc", []byte("stale"))
	remote, err := tree.BuildRemote(mem, "/ext/nfc", nil)
	if err != nil {
		t.Fatal(err)
	}

	oracle := NewEqualityOracle(mem, remote, "/ext/nfc", localRoot)
	ops, err := Diff(local, remote, oracle)
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}

	var sawCopy, sawRemove bool
	for _, op := range ops {
		if op == (Op{Kind: OpCopy, Path: "bar.nfc"}) {
			sawCopy = true
		}
		if op == (Op{Kind: OpRemove, Path: "old.nfc"}) {
			sawRemove = true
		}
	}
	if !sawCopy || !sawRemove {
		t.Errorf("ops = %+v, want Copy(bar.nfc) and Remove(old.nfc)", ops)
	}
	// I3 (op ordering): removes precede creates.
	if ops[0].Kind != OpRemove {
		t.Errorf("ops[0] = %+v, want Remove first (prune precedes creation)", ops[0])
	}
}

func TestDiffSizeEqualContentDifferent(t *testing.T) {
	localRoot := t.TempDir()
	local128 := make([]byte, 128)
	for i := range local128 {
		local128[i] = byte(i)
	}
	writeLocal(t, localRoot, "x.ir", string(local128))
	local := tree.BuildLocal([]tree.PathSize{{Path: "x.ir", Size: 128}})

	remote128 := make([]byte, 128)
	for i := range remote128 {
		remote128[i] = byte(255 - i)
	}
	mem := rpctransport.NewMemTransport()
	mem.Seed("/ext/infared/x.ir", remote128)
	remote, err := tree.BuildRemote(mem, "/ext/infared", nil)
	if err != nil {
		t.Fatal(err)
	}

	oracle := NewEqualityOracle(mem, remote, "/ext/infared", localRoot)
	ops, err := Diff(local, remote, oracle)
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	if len(ops) != 1 || ops[0] != (Op{Kind: OpCopy, Path: "x.ir"}) {
		t.Errorf("ops = %+v, want single Copy(x.ir)", ops)
	}
}

func TestDiffSoundnessAndMinimality(t *testing.T) {
	localRoot := t.TempDir()
	writeLocal(t, localRoot, "a/keep.sub", "keep")
	writeLocal(t, localRoot, "a/new.sub", "new")
	writeLocal(t, localRoot, "b/c/d.sub", "deep")
	local := tree.BuildLocal([]tree.PathSize{
		{Path: "a/keep.sub", Size: 4},
		{Path: "a/new.sub", Size: 3},
		{Path: "b/c/d.sub", Size: 4},
	})

	mem := rpctransport.NewMemTransport()
	mem.Seed("/ext/subghz/a/keep.sub", []byte("keep"))
	mem.Seed("/ext/subghz/a/stale.sub", []byte("stale"))
	remote, err := tree.BuildRemote(mem, "/ext/subghz", nil)
	if err != nil {
		t.Fatal(err)
	}

	oracle := NewEqualityOracle(mem, remote, "/ext/subghz", localRoot)
	ops, err := Diff(local, remote, oracle)
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}

	applyToMem(t, mem, localRoot, "/ext/subghz", ops)

	for _, want := range []string{"a/keep.sub", "a/new.sub", "b/c/d.sub"} {
		if _, err := mem.FsRead("/ext/subghz/" + want); err != nil {
			t.Errorf("after apply, %s missing: %v", want, err)
		}
	}
	if _, err := mem.FsRead("/ext/subghz/a/stale.sub"); err == nil {
		t.Error("after apply, stale.sub should have been removed")
	}

	// I2 (minimality): keep.sub is byte-identical, so no Copy should be
	// emitted for it.
	for _, op := range ops {
		if op.Path == "a/keep.sub" {
			t.Errorf("unexpected op for unchanged file: %+v", op)
		}
	}
}
