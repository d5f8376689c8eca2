package rpctransport

import (
	"errors"
	"testing"
)

func TestMemTransportReadWrite(t *testing.T) {
	m := NewMemTransport()
	if err := m.FsWrite("/ext/subghz/a.sub", []byte("hello"), nil); err != nil {
		t.Fatalf("FsWrite: %v", err)
	}
	got, err := m.FsRead("/ext/subghz/a.sub")
	if err != nil {
		t.Fatalf("FsRead: %v", err)
	}
	if string(got) != "hello" {
		t.Errorf("FsRead = %q, want %q", got, "hello")
	}
}

func TestMemTransportFsReadNotFound(t *testing.T) {
	m := NewMemTransport()
	if _, err := m.FsRead("/nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("FsRead on absent path: err = %v, want ErrNotFound", err)
	}
}

func TestMemTransportCreateDirIdempotent(t *testing.T) {
	m := NewMemTransport()
	existed, err := m.FsCreateDir("/ext/update")
	if err != nil || existed {
		t.Fatalf("first FsCreateDir: existed=%v err=%v", existed, err)
	}
	existed, err = m.FsCreateDir("/ext/update")
	if err != nil || !existed {
		t.Fatalf("second FsCreateDir: existed=%v err=%v", existed, err)
	}
}

func TestMemTransportReadDirWithMD5(t *testing.T) {
	m := NewMemTransport()
	m.Seed("/ext/subghz/a.sub", []byte("one"))
	m.Seed("/ext/subghz/b.sub", []byte("two"))
	if _, err := m.FsCreateDir("/ext/subghz/dir"); err != nil {
		t.Fatal(err)
	}

	entries, err := m.FsReadDir("/ext/subghz", true)
	if err != nil {
		t.Fatalf("FsReadDir: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("entries = %+v, want 3", entries)
	}
	for _, e := range entries {
		if e.Kind == EntryFile && e.MD5 == "" {
			t.Errorf("file entry %+v missing MD5", e)
		}
		if e.Kind == EntryDir && e.MD5 != "" {
			t.Errorf("dir entry %+v should not carry MD5", e)
		}
	}
}

func TestMemTransportRemoveRecursive(t *testing.T) {
	m := NewMemTransport()
	m.Seed("/ext/nfc/a.nfc", []byte("x"))
	if err := m.FsRemove("/ext/nfc", false); err == nil {
		t.Error("non-recursive remove of non-empty dir should fail")
	}
	if err := m.FsRemove("/ext/nfc", true); err != nil {
		t.Errorf("recursive remove: %v", err)
	}
	if _, err := m.FsRead("/ext/nfc/a.nfc"); !errors.Is(err, ErrNotFound) {
		t.Errorf("file should be gone, err = %v", err)
	}
}

func TestMemTransportSendAndReceive(t *testing.T) {
	m := NewMemTransport()
	if err := m.Send(Reboot(RebootUpdate)); err != nil {
		t.Fatal(err)
	}
	resp, err := m.SendAndReceive(SystemUpdate("/ext/update/x/update.fuf"))
	if err != nil {
		t.Fatal(err)
	}
	if !resp.OK {
		t.Errorf("response = %+v, want OK", resp)
	}
	if len(m.SentRequests) != 2 {
		t.Fatalf("SentRequests = %+v, want 2 entries", m.SentRequests)
	}
	if m.SentRequests[0].Kind != RequestReboot || m.SentRequests[1].Kind != RequestSystemUpdate {
		t.Errorf("SentRequests = %+v, want Reboot then SystemUpdate", m.SentRequests)
	}
}
