// Package store implements the deterministic on-disk workspace layout of
// spec.md §6: "<project>/store/<uuid>/" for each repository clone, and
// "<project>/store/<uuid5(NAMESPACE_URL,url)>/<basename>" for each
// firmware .tgz cache. Grounded on cache/cache.go's "one subdirectory per
// concern under a root, MkdirAll as needed" shape.
package store

import (
	"net/url"
	"os"
	"path"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/flippy-sync/flippy/internal/project"
)

// Store resolves paths under "<project>/store".
type Store struct {
	root string
}

// New returns a Store rooted at dir (typically a Project's StoreDir()),
// creating it if absent.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create store root %s", dir)
	}
	return &Store{root: dir}, nil
}

// Root returns the store's root directory.
func (s *Store) Root() string { return s.root }

// RepoClonePath returns the local clone directory for a repository
// identified by id.
func (s *Store) RepoClonePath(id uuid.UUID) string {
	return filepath.Join(s.root, id.String())
}

// HasRepoClone reports whether a repository clone already exists on
// disk.
func (s *Store) HasRepoClone(id uuid.UUID) bool {
	info, err := os.Stat(s.RepoClonePath(id))
	return err == nil && info.IsDir()
}

// FirmwareCacheDir returns the cache directory for a firmware artifact
// fetched from artifactURL: uuid5(NAMESPACE_URL, url), per spec.md §4.K.
// This reuses the same fingerprinting scheme project.UUIDForURL applies to
// repository URLs.
func (s *Store) FirmwareCacheDir(artifactURL string) string {
	return filepath.Join(s.root, project.UUIDForURL(artifactURL).String())
}

// FirmwareCachePath returns the cached file path for artifactURL: the
// cache directory plus the URL's basename.
func (s *Store) FirmwareCachePath(artifactURL string) (string, error) {
	u, err := url.Parse(artifactURL)
	if err != nil {
		return "", errors.Wrapf(err, "parse firmware url %s", artifactURL)
	}
	base := path.Base(u.Path)
	if base == "" || base == "." || base == "/" {
		return "", errors.Errorf("firmware url %s has no usable basename", artifactURL)
	}
	return filepath.Join(s.FirmwareCacheDir(artifactURL), base), nil
}

// HasFirmwareCache reports whether artifactURL's cache directory
// already exists (spec.md §4.K: "If the cache directory already exists,
// reuse it without re-downloading").
func (s *Store) HasFirmwareCache(artifactURL string) bool {
	info, err := os.Stat(s.FirmwareCacheDir(artifactURL))
	return err == nil && info.IsDir()
}
