// Package firmware implements the Firmware Installer (spec.md §4.K):
// resolve a firmware selection to a cached .tgz, then stream its entries
// directly onto the device's /ext/update staging area without ever
// extracting to a local directory, finishing with a SystemUpdate +
// Reboot(Update) request pair.
package firmware

import (
	"archive/tar"
	"io"
	"os"
	"path"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"

	"github.com/flippy-sync/flippy/internal/download"
	"github.com/flippy-sync/flippy/internal/fwmanifest"
	"github.com/flippy-sync/flippy/internal/rpctransport"
	"github.com/flippy-sync/flippy/internal/store"
)

// updateRoot is the fixed device directory every staged update lives
// under (spec.md §3 "Device layout written").
const updateRoot = "/ext/update"

// manifestFile is the fixed name a staged update directory must contain
// (spec.md §3: "must contain update.fuf").
const manifestFile = "update.fuf"

// ProgressFunc reports cumulative bytes written for the file currently
// being staged.
type ProgressFunc func(path string, written, total int64)

// Confirm is asked once, after staging completes and before the device
// is told to apply the update, whether to proceed. Returning false
// aborts without sending SystemUpdate or Reboot.
type Confirm func() bool

// Installer resolves, downloads, caches and stages firmware onto a
// device.
type Installer struct {
	Manifest  *fwmanifest.Client
	Download  *download.Client
	Store     *store.Store
	Transport rpctransport.Transport
}

// New returns an Installer wired to the given store and transport, using
// default HTTP clients for manifest resolution and download.
func New(st *store.Store, t rpctransport.Transport) *Installer {
	return &Installer{
		Manifest:  fwmanifest.NewClient(),
		Download:  download.NewClient(),
		Store:     st,
		Transport: t,
	}
}

// resolve maps a firmware selection to a downloadable URL and (when
// known) expected SHA-256 digest.
func (i *Installer) resolve(f fwmanifest.Firmware) (url, sha256 string, err error) {
	if f.IsCustom() {
		return f.Custom, "", nil
	}
	art, err := i.Manifest.Resolve(f)
	if err != nil {
		return "", "", err
	}
	return art.URL, art.SHA256, nil
}

// FetchAndCache resolves f and ensures its .tgz is present in the store,
// downloading it only if the cache directory is absent (spec.md §4.K
// step 2: "If the cache directory already exists, reuse it without
// re-downloading").
func (i *Installer) FetchAndCache(f fwmanifest.Firmware, onWarnCached func(dir string), progress download.ProgressFunc) (string, error) {
	url, sha256, err := i.resolve(f)
	if err != nil {
		return "", errors.Wrap(err, "resolve firmware")
	}

	if i.Store.HasFirmwareCache(url) {
		if onWarnCached != nil {
			onWarnCached(i.Store.FirmwareCacheDir(url))
		}
		return i.Store.FirmwareCachePath(url)
	}

	dest, err := i.Store.FirmwareCachePath(url)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(path.Dir(dest), 0o755); err != nil {
		return "", errors.Wrapf(err, "create cache dir for %s", dest)
	}
	if err := i.Download.ToFile(url, sha256, dest, progress); err != nil {
		return "", errors.Wrap(err, "download firmware")
	}
	return dest, nil
}

// Stage streams tgzPath's entries onto the device, in archive order,
// without ever writing them to a local directory first. It returns the
// device path of the manifest (update_base/update.fuf) ready for
// SystemUpdate, per spec.md §4.K step 4.
func (i *Installer) Stage(tgzPath string, progress ProgressFunc) (manifestPath string, err error) {
	f, err := os.Open(tgzPath)
	if err != nil {
		return "", errors.Wrapf(err, "open %s", tgzPath)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return "", errors.Wrapf(err, "gunzip %s", tgzPath)
	}
	defer gz.Close()

	if _, err := i.Transport.FsCreateDir(updateRoot); err != nil {
		return "", errors.Wrapf(err, "create %s", updateRoot)
	}

	var updateBase string
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", errors.Wrapf(err, "read tar entry in %s", tgzPath)
		}

		devicePath := path.Join(updateRoot, strings.TrimPrefix(hdr.Name, "./"))

		switch hdr.Typeflag {
		case tar.TypeDir:
			if updateBase == "" {
				updateBase = devicePath
			}
			existed, err := i.Transport.FsCreateDir(devicePath)
			if err != nil {
				return "", errors.Wrapf(err, "create %s", devicePath)
			}
			if existed {
				// Idempotent clean state: wipe and recreate (spec.md §7
				// REDESIGN FLAGS — this intentionally discards any
				// device-local state under the staged directory).
				if err := i.Transport.FsRemove(devicePath, true); err != nil {
					return "", errors.Wrapf(err, "remove stale %s", devicePath)
				}
				if _, err := i.Transport.FsCreateDir(devicePath); err != nil {
					return "", errors.Wrapf(err, "recreate %s", devicePath)
				}
			}

		case tar.TypeReg:
			data, err := io.ReadAll(tr)
			if err != nil {
				return "", errors.Wrapf(err, "read %s from archive", hdr.Name)
			}
			total := hdr.Size
			if err := i.Transport.FsWrite(devicePath, data, func(written int64) {
				if progress != nil {
					progress(devicePath, written, total)
				}
			}); err != nil {
				return "", errors.Wrapf(err, "write %s", devicePath)
			}
		}
	}

	if updateBase == "" {
		return "", errors.Errorf("%s: archive contains no top-level directory", tgzPath)
	}
	return path.Join(updateBase, manifestFile), nil
}

// Apply sends the staged update's manifest to the device and asks it to
// reboot into the updater (spec.md §4.K step 5). Both calls are issued
// only after confirm returns true; Reboot is fire-and-forget, since the
// device becomes unavailable immediately after.
func (i *Installer) Apply(manifestPath string, confirm Confirm) error {
	if confirm != nil && !confirm() {
		return nil
	}
	if _, err := i.Transport.SendAndReceive(rpctransport.SystemUpdate(manifestPath)); err != nil {
		return errors.Wrap(err, "SystemUpdate")
	}
	if err := i.Transport.Send(rpctransport.Reboot(rpctransport.RebootUpdate)); err != nil {
		return errors.Wrap(err, "Reboot")
	}
	return nil
}

// Install runs the full pipeline: resolve, cache, stage, confirm, apply.
func (i *Installer) Install(f fwmanifest.Firmware, onWarnCached func(dir string), dlProgress download.ProgressFunc, stageProgress ProgressFunc, confirm Confirm) error {
	tgzPath, err := i.FetchAndCache(f, onWarnCached, dlProgress)
	if err != nil {
		return err
	}
	manifestPath, err := i.Stage(tgzPath, stageProgress)
	if err != nil {
		return err
	}
	return i.Apply(manifestPath, confirm)
}
