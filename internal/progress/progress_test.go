package progress

import (
	"io"
	"testing"
)

func TestItemLifecycle(t *testing.T) {
	tr := New(io.Discard)
	item := tr.Init("subghz", 100, "B")

	item.Set(10)
	item.Inc(20)
	item.Info("computing diff")
	item.Done("synced")

	if got := item.bar.Current(); got != item.total {
		t.Errorf("bar.Current() = %d, want %d (Done sets current to total)", got, item.total)
	}
	if msg, _ := item.message.Load().(string); msg != "synced" {
		t.Errorf("message = %q, want %q", msg, "synced")
	}

	tr.Shutdown()
}

func TestMultipleItemsIndependent(t *testing.T) {
	tr := New(io.Discard)
	a := tr.Init("repo-a", 10, "files")
	b := tr.Init("repo-b", 5, "files")

	a.Done("ok")
	b.Done("ok")

	tr.Shutdown()

	if a.bar.Current() != 10 {
		t.Errorf("a.Current() = %d, want 10", a.bar.Current())
	}
	if b.bar.Current() != 5 {
		t.Errorf("b.Current() = %d, want 5", b.bar.Current())
	}
}
