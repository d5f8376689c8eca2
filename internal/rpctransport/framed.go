package rpctransport

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"io"
	"sync"

	"github.com/pkg/errors"
)

// writeChunkSize matches update/generator.go's BlockSize: large enough to
// amortize per-frame overhead, small enough to keep progress granular
// during an FsWrite.
const writeChunkSize = 4096

type opCode uint8

const (
	opFsRead opCode = iota
	opFsWriteChunk
	opFsCreateDir
	opFsRemove
	opFsReadDir
	opFsMD5
	opSend
	opSendAndReceive
)

// frame is the single wire message shape FramedTransport exchanges with
// the device: one request op, its arguments, and (on replies) its
// result. Encoded with encoding/gob and length-prefixed the way
// update/payload.go reads a fixed BigEndian header before its body.
type frame struct {
	Op opCode

	Path      string
	Data      []byte
	Recursive bool
	WithMD5   bool
	Final     bool // last chunk of an FsWrite
	Request   Request

	// reply fields
	Err      string
	Existed  bool
	Entries  []DirEntry
	MD5      string
	Response Response
}

// FramedTransport implements Transport over any io.ReadWriteCloser using
// a simple length-prefixed gob framing, standing in for the device's
// real serial-port RPC protocol (spec.md §4.E names the call surface,
// not a wire format).
type FramedTransport struct {
	rwc io.ReadWriteCloser
	mu  sync.Mutex // spec.md §5: one serialized session
	r   *bufio.Reader
}

// NewFramedTransport wraps rwc (typically an open serial port) in a
// Transport.
func NewFramedTransport(rwc io.ReadWriteCloser) *FramedTransport {
	return &FramedTransport{rwc: rwc, r: bufio.NewReader(rwc)}
}

func (t *FramedTransport) writeFrame(f frame) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(f); err != nil {
		return errors.Wrap(err, "encode frame")
	}

	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(buf.Len()))
	if _, err := t.rwc.Write(header[:]); err != nil {
		return errors.Wrap(err, "write frame header")
	}
	if _, err := t.rwc.Write(buf.Bytes()); err != nil {
		return errors.Wrap(err, "write frame body")
	}
	return nil
}

func (t *FramedTransport) readFrame() (frame, error) {
	var header [4]byte
	if _, err := io.ReadFull(t.r, header[:]); err != nil {
		return frame{}, errors.Wrap(err, "read frame header")
	}
	n := binary.BigEndian.Uint32(header[:])
	body := make([]byte, n)
	if _, err := io.ReadFull(t.r, body); err != nil {
		return frame{}, errors.Wrap(err, "read frame body")
	}
	var f frame
	if err := gob.NewDecoder(bytes.NewReader(body)).Decode(&f); err != nil {
		return frame{}, errors.Wrap(err, "decode frame")
	}
	return f, nil
}

func (t *FramedTransport) roundTrip(req frame) (frame, error) {
	if err := t.writeFrame(req); err != nil {
		return frame{}, err
	}
	reply, err := t.readFrame()
	if err != nil {
		return frame{}, err
	}
	if reply.Err != "" {
		if reply.Err == ErrNotFound.Error() {
			return frame{}, errors.Wrapf(ErrNotFound, "%s", req.Path)
		}
		return frame{}, errors.New(reply.Err)
	}
	return reply, nil
}

func (t *FramedTransport) FsRead(path string) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	reply, err := t.roundTrip(frame{Op: opFsRead, Path: path})
	if err != nil {
		return nil, err
	}
	return reply.Data, nil
}

func (t *FramedTransport) FsWrite(path string, data []byte, progress ProgressFunc) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	var sent int64
	for off := 0; off < len(data) || (off == 0 && len(data) == 0); off += writeChunkSize {
		end := off + writeChunkSize
		if end > len(data) {
			end = len(data)
		}
		chunk := data[off:end]
		final := end >= len(data)
		if _, err := t.roundTrip(frame{Op: opFsWriteChunk, Path: path, Data: chunk, Final: final}); err != nil {
			return errors.Wrapf(err, "fs_write %s", path)
		}
		sent += int64(len(chunk))
		if progress != nil {
			progress(sent)
		}
		if final {
			break
		}
	}
	return nil
}

func (t *FramedTransport) FsCreateDir(path string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	reply, err := t.roundTrip(frame{Op: opFsCreateDir, Path: path})
	if err != nil {
		return false, err
	}
	return reply.Existed, nil
}

func (t *FramedTransport) FsRemove(path string, recursive bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, err := t.roundTrip(frame{Op: opFsRemove, Path: path, Recursive: recursive})
	return err
}

func (t *FramedTransport) FsReadDir(path string, withMD5 bool) ([]DirEntry, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	reply, err := t.roundTrip(frame{Op: opFsReadDir, Path: path, WithMD5: withMD5})
	if err != nil {
		return nil, err
	}
	return reply.Entries, nil
}

func (t *FramedTransport) FsMD5(path string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	reply, err := t.roundTrip(frame{Op: opFsMD5, Path: path})
	if err != nil {
		return "", err
	}
	return reply.MD5, nil
}

func (t *FramedTransport) Send(req Request) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.writeFrame(frame{Op: opSend, Request: req})
}

func (t *FramedTransport) SendAndReceive(req Request) (Response, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	reply, err := t.roundTrip(frame{Op: opSendAndReceive, Request: req})
	if err != nil {
		return Response{}, err
	}
	return reply.Response, nil
}

func (t *FramedTransport) Close() error {
	return t.rwc.Close()
}
