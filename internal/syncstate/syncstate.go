// Package syncstate serializes and deserializes the per-device marker
// file spec.md §3 defines: a fixed 1-byte version, a fixed 32-byte
// ASCII notice, followed by N fixed-size (UUID, commit) records. Ported
// near-verbatim from
// original_source/src/types/remote_sync_file.rs's SyncFile.
package syncstate

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Path is the device path the Sync-State file lives at (spec.md §6).
const Path = "/ext/.flippy_do_not_remove"

const version = 1

const notice = "FLIPPY SYNC FILE: DO NOT MODIFY."

const noticeLen = 32 // len(notice) == 32; asserted by init

const (
	uuidLen   = 16
	commitLen = 20
	recordLen = uuidLen + commitLen
	headerLen = 1 + noticeLen
)

func init() {
	if len(notice) != noticeLen {
		panic("syncstate: notice constant is not 32 bytes")
	}
}

// ErrMalformed is returned by Deserialize for any corrupt input: wrong
// version, wrong notice, or a repository region whose length is not a
// multiple of 36 bytes (spec.md §7: "Fatal; operator must inspect. Never
// silently overwritten").
var ErrMalformed = errors.New("syncstate: malformed sync-state file")

// Record is one repository's recorded state: its UUIDv5 fingerprint and
// the git commit it was last synced to.
type Record struct {
	UUID   uuid.UUID
	Commit [commitLen]byte
}

// SyncFile is the full decoded contents of the device's marker file.
type SyncFile struct {
	Repositories []Record
}

// FindCommit returns the commit recorded for id, if any.
func (s SyncFile) FindCommit(id uuid.UUID) ([commitLen]byte, bool) {
	for _, r := range s.Repositories {
		if r.UUID == id {
			return r.Commit, true
		}
	}
	return [commitLen]byte{}, false
}

// Serialize encodes s into the on-device byte layout.
func (s SyncFile) Serialize() []byte {
	buf := make([]byte, 0, headerLen+len(s.Repositories)*recordLen)
	buf = append(buf, version)
	buf = append(buf, notice...)
	for _, r := range s.Repositories {
		buf = append(buf, r.UUID[:]...)
		buf = append(buf, r.Commit[:]...)
	}
	return buf
}

// Deserialize decodes data into a SyncFile, rejecting anything that does
// not exactly match the expected layout (spec.md §8 invariant 5).
func Deserialize(data []byte) (SyncFile, error) {
	if len(data) < headerLen {
		return SyncFile{}, errors.Wrap(ErrMalformed, "data shorter than header")
	}
	if data[0] != version {
		return SyncFile{}, errors.Wrapf(ErrMalformed, "unsupported version %d", data[0])
	}
	if string(data[1:headerLen]) != notice {
		return SyncFile{}, errors.Wrap(ErrMalformed, "notice mismatch")
	}

	rest := data[headerLen:]
	if len(rest)%recordLen != 0 {
		return SyncFile{}, errors.Wrapf(ErrMalformed, "repository region length %d is not a multiple of %d", len(rest), recordLen)
	}

	count := len(rest) / recordLen
	out := SyncFile{Repositories: make([]Record, 0, count)}
	for i := 0; i < count; i++ {
		chunk := rest[i*recordLen : (i+1)*recordLen]
		var rec Record
		copy(rec.UUID[:], chunk[:uuidLen])
		copy(rec.Commit[:], chunk[uuidLen:])
		out.Repositories = append(out.Repositories, rec)
	}
	return out, nil
}
