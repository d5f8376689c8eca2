// Package rpctransport narrows the device's RPC surface down to the calls
// the sync engine actually issues: a handful of filesystem operations plus
// two generic control requests (SystemUpdate, Reboot). All calls are
// blocking and must be strictly serialized against a single device
// session (spec.md §4.E, §5).
//
// Transport is the facade the rest of the tool programs against;
// FramedTransport is the implementation that talks to a device, a generic
// length-prefixed framing over any io.ReadWriteCloser (serial port, pipe,
// or — in tests — an in-memory pipe); MemTransport is an in-memory
// simulated device for tests. The framing is generalized from
// update/payload.go's binary.Read-a-header-then-the-body idiom.
package rpctransport

import (
	"github.com/pkg/errors"
)

// ErrNotFound is the NotFound sum-type variant spec.md §4.E calls out:
// fs_read on an absent path fails this way, and the Sync Orchestrator
// treats it as the first-run signal (spec.md §7).
var ErrNotFound = errors.New("rpctransport: not found")

// ProgressFunc is invoked with the cumulative number of bytes
// transferred so far during an FsWrite.
type ProgressFunc func(written int64)

// EntryKind discriminates a directory listing entry. The discriminator is
// authoritative and independent of whether a Dir entry happens to have
// any children (spec.md §3 Tree: "a node with empty children IS a
// file... an empty directory cannot be distinguished by shape alone").
type EntryKind uint8

const (
	EntryFile EntryKind = iota
	EntryDir
)

// DirEntry is one entry of an fs_read_dir listing.
type DirEntry struct {
	Kind EntryKind
	Name string
	Size int64  // meaningful only for EntryFile
	MD5  string // populated only for EntryFile when withMD5 was requested
}

// RequestKind discriminates the generic control requests Send and
// SendAndReceive carry.
type RequestKind uint8

const (
	RequestSystemUpdate RequestKind = iota
	RequestReboot
)

// RebootMode selects what a Reboot request asks the device to do on
// restart.
type RebootMode uint8

// RebootUpdate is the only mode the sync engine issues: reboot into the
// firmware update staged by the Firmware Installer.
const RebootUpdate RebootMode = iota

// Request is a generic control RPC. Exactly one of ManifestPath (for
// RequestSystemUpdate) or Mode (for RequestReboot) is meaningful,
// selected by Kind.
type Request struct {
	Kind         RequestKind
	ManifestPath string
	Mode         RebootMode
}

// SystemUpdate builds a Request that tells the device to stage an update
// from manifestPath (spec.md §4.K: "SystemUpdate{manifest_path}").
func SystemUpdate(manifestPath string) Request {
	return Request{Kind: RequestSystemUpdate, ManifestPath: manifestPath}
}

// Reboot builds a Request that asks the device to reboot in mode.
func Reboot(mode RebootMode) Request {
	return Request{Kind: RequestReboot, Mode: mode}
}

// Response is the device's reply to a SendAndReceive request.
type Response struct {
	OK      bool
	Message string
}

// Transport is the full set of device RPCs the sync engine depends on.
// Implementations must serialize calls: the orchestrator never issues a
// second call before the first returns (spec.md §5: "no concurrent RPC
// issuance is permitted").
type Transport interface {
	// FsRead returns the full contents of path, or a wrapped ErrNotFound
	// if it does not exist.
	FsRead(path string) ([]byte, error)

	// FsWrite writes data to path. progress, if non-nil, is called after
	// each internally-chunked write with the cumulative byte count sent
	// so far.
	FsWrite(path string, data []byte, progress ProgressFunc) error

	// FsCreateDir creates path, reporting whether it already existed.
	FsCreateDir(path string) (existed bool, err error)

	// FsRemove removes path, recursively if recursive is set.
	FsRemove(path string, recursive bool) error

	// FsReadDir lists path's immediate children. When withMD5 is set,
	// file entries carry their MD5 digest, letting the Diff Engine's
	// equality oracle batch an entire directory's hashes in one call.
	FsReadDir(path string, withMD5 bool) ([]DirEntry, error)

	// FsMD5 returns the hex MD5 digest of the file at path.
	FsMD5(path string) (string, error)

	// Send issues a fire-and-forget request; no response is awaited
	// (spec.md §4.K: Reboot is "fire-and-forget; no response expected").
	Send(req Request) error

	// SendAndReceive issues a request and waits for the device's
	// response.
	SendAndReceive(req Request) (Response, error)

	// Close releases the underlying connection.
	Close() error
}
