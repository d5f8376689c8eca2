package rpctransport

import (
	"crypto/md5"
	"encoding/hex"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// memNode is one node of MemTransport's simulated device filesystem.
type memNode struct {
	isDir    bool
	data     []byte
	children map[string]*memNode
}

// MemTransport is an in-memory Transport, standing in for a real device in
// tests: the Sync Orchestrator, Diff Engine, and Firmware Installer tests
// all drive a MemTransport instead of real hardware.
type MemTransport struct {
	mu   sync.Mutex
	root *memNode

	// SentRequests records every Send/SendAndReceive call, in order, for
	// assertions (e.g. "SystemUpdate then Reboot").
	SentRequests []Request
	ReplyOK      bool
}

// NewMemTransport returns an empty MemTransport.
func NewMemTransport() *MemTransport {
	return &MemTransport{root: &memNode{isDir: true, children: map[string]*memNode{}}, ReplyOK: true}
}

func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

func (m *MemTransport) walk(parts []string, create bool) (*memNode, error) {
	n := m.root
	for i, part := range parts {
		child, ok := n.children[part]
		if !ok {
			if !create {
				return nil, errors.Wrapf(ErrNotFound, "/%s", strings.Join(parts[:i+1], "/"))
			}
			child = &memNode{isDir: true, children: map[string]*memNode{}}
			n.children[part] = child
		}
		n = child
	}
	return n, nil
}

// Seed installs a file at path with the given content, creating parent
// directories as needed. It is test-only setup, not part of Transport.
func (m *MemTransport) Seed(p string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	parts := splitPath(p)
	parent, _ := m.walk(parts[:len(parts)-1], true)
	name := parts[len(parts)-1]
	parent.children[name] = &memNode{data: append([]byte(nil), data...)}
}

func (m *MemTransport) FsRead(p string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, err := m.walk(splitPath(p), false)
	if err != nil {
		return nil, err
	}
	if n.isDir {
		return nil, errors.Errorf("fs_read %s: is a directory", p)
	}
	return append([]byte(nil), n.data...), nil
}

func (m *MemTransport) FsWrite(p string, data []byte, progress ProgressFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	parts := splitPath(p)
	parent, err := m.walk(parts[:len(parts)-1], true)
	if err != nil {
		return err
	}
	parent.children[parts[len(parts)-1]] = &memNode{data: append([]byte(nil), data...)}
	if progress != nil {
		progress(int64(len(data)))
	}
	return nil
}

func (m *MemTransport) FsCreateDir(p string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	parts := splitPath(p)
	parent, err := m.walk(parts[:len(parts)-1], true)
	if err != nil {
		return false, err
	}
	name := parts[len(parts)-1]
	if existing, ok := parent.children[name]; ok && existing.isDir {
		return true, nil
	}
	parent.children[name] = &memNode{isDir: true, children: map[string]*memNode{}}
	return false, nil
}

func (m *MemTransport) FsRemove(p string, recursive bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	parts := splitPath(p)
	if len(parts) == 0 {
		return errors.New("fs_remove: cannot remove root")
	}
	parent, err := m.walk(parts[:len(parts)-1], false)
	if err != nil {
		return err
	}
	name := parts[len(parts)-1]
	n, ok := parent.children[name]
	if !ok {
		return errors.Wrapf(ErrNotFound, "/%s", p)
	}
	if n.isDir && len(n.children) > 0 && !recursive {
		return errors.Errorf("fs_remove %s: not empty and not recursive", p)
	}
	delete(parent.children, name)
	return nil
}

func (m *MemTransport) FsReadDir(p string, withMD5 bool) ([]DirEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, err := m.walk(splitPath(p), false)
	if err != nil {
		return nil, err
	}
	if !n.isDir {
		return nil, errors.Errorf("fs_read_dir %s: not a directory", p)
	}
	var out []DirEntry
	for name, child := range n.children {
		if child.isDir {
			out = append(out, DirEntry{Kind: EntryDir, Name: name})
			continue
		}
		e := DirEntry{Kind: EntryFile, Name: name, Size: int64(len(child.data))}
		if withMD5 {
			sum := md5.Sum(child.data)
			e.MD5 = hex.EncodeToString(sum[:])
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MemTransport) FsMD5(p string) (string, error) {
	data, err := m.FsRead(p)
	if err != nil {
		return "", err
	}
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:]), nil
}

func (m *MemTransport) Send(req Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SentRequests = append(m.SentRequests, req)
	return nil
}

func (m *MemTransport) SendAndReceive(req Request) (Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SentRequests = append(m.SentRequests, req)
	return Response{OK: m.ReplyOK}, nil
}

func (m *MemTransport) Close() error { return nil }

var _ Transport = (*MemTransport)(nil)
