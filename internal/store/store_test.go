package store

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/flippy-sync/flippy/internal/project"
)

func TestRepoClonePathDeterministic(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "store"))
	if err != nil {
		t.Fatal(err)
	}
	id := uuid.New()
	want := filepath.Join(s.Root(), id.String())
	if got := s.RepoClonePath(id); got != want {
		t.Errorf("RepoClonePath = %s, want %s", got, want)
	}
	if s.HasRepoClone(id) {
		t.Error("HasRepoClone true before any clone exists")
	}
}

func TestFirmwareCachePathMatchesRepositoryFingerprint(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "store"))
	if err != nil {
		t.Fatal(err)
	}
	const url = "https://update.flipperzero.one/firmware/release.tgz"

	wantDir := filepath.Join(s.Root(), project.UUIDForURL(url).String())
	if got := s.FirmwareCacheDir(url); got != wantDir {
		t.Errorf("FirmwareCacheDir = %s, want %s", got, wantDir)
	}

	p, err := s.FirmwareCachePath(url)
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(wantDir, "release.tgz"); p != want {
		t.Errorf("FirmwareCachePath = %s, want %s", p, want)
	}

	if s.HasFirmwareCache(url) {
		t.Error("HasFirmwareCache true before directory created")
	}
}

func TestFirmwareCachePathRejectsBasenamelessURL(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "store"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.FirmwareCachePath("https://update.flipperzero.one/"); err == nil {
		t.Error("expected error for URL with no basename")
	}
}
