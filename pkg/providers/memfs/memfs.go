// Package memfs provides an in-memory backing tree. It is useful for tests
// and for projecting generated or synthetic content without touching disk.
package memfs

import (
	"bytes"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/winprojfs/winprojfs/pkg/errors"
	"github.com/winprojfs/winprojfs/pkg/types"
	"github.com/winprojfs/winprojfs/pkg/utils"
)

type node struct {
	entry    types.EntryDescriptor
	data     []byte
	children map[string]*node // keyed by upper-cased name
}

func newDirNode(name string, when time.Time) *node {
	return &node{
		entry: types.EntryDescriptor{
			Name:           name,
			Kind:           types.KindDirectory,
			CreationTime:   when,
			LastWriteTime:  when,
			LastAccessTime: when,
		},
		children: make(map[string]*node),
	}
}

// FS is an in-memory provider. The tree is mutable while projected; changes
// become visible to new enumerations and hydrations.
type FS struct {
	mu   sync.RWMutex
	root *node
	now  func() time.Time
}

// New creates an empty tree.
func New() *FS {
	now := time.Now
	return &FS{
		root: newDirNode(".", now()),
		now:  now,
	}
}

// AddDir creates a directory, including missing parents. Adding an existing
// directory is a no-op.
func (f *FS) AddDir(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	_, err := f.makeDirs(utils.NormalizeVirtualPath(path))
	return err
}

// AddFile creates or replaces a file, creating missing parent directories.
func (f *FS) AddFile(path string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	path = utils.NormalizeVirtualPath(path)
	parent, name := utils.ParentAndName(path)
	if name == "" {
		return errors.New(errors.ErrCodePathInvalid, "file path cannot be empty").
			WithComponent("memfs")
	}

	dir, err := f.makeDirs(parent)
	if err != nil {
		return err
	}
	if existing, ok := dir.children[strings.ToUpper(name)]; ok && existing.entry.IsDirectory() {
		return errors.Newf(errors.ErrCodePathInvalid, "%q is a directory", path).
			WithComponent("memfs").WithPath(path)
	}

	when := f.now()
	buf := make([]byte, len(data))
	copy(buf, data)
	dir.children[strings.ToUpper(name)] = &node{
		entry: types.EntryDescriptor{
			Name:           name,
			Kind:           types.KindFile,
			Size:           int64(len(buf)),
			CreationTime:   when,
			LastWriteTime:  when,
			LastAccessTime: when,
		},
		data: buf,
	}
	return nil
}

// Remove deletes a file or directory subtree.
func (f *FS) Remove(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	path = utils.NormalizeVirtualPath(path)
	parent, name := utils.ParentAndName(path)
	if name == "" {
		return errors.New(errors.ErrCodePathInvalid, "cannot remove the root").
			WithComponent("memfs")
	}
	dir := f.lookup(parent)
	if dir == nil || !dir.entry.IsDirectory() {
		return errors.Newf(errors.ErrCodeNotFound, "no such directory %q", parent).
			WithComponent("memfs").WithPath(parent)
	}
	key := strings.ToUpper(name)
	if _, ok := dir.children[key]; !ok {
		return errors.Newf(errors.ErrCodeNotFound, "no such entry %q", path).
			WithComponent("memfs").WithPath(path)
	}
	delete(dir.children, key)
	return nil
}

// makeDirs walks path creating directories. Caller holds the write lock.
func (f *FS) makeDirs(path string) (*node, error) {
	cur := f.root
	if path == "" {
		return cur, nil
	}
	for _, part := range utils.SplitVirtualPath(path) {
		key := strings.ToUpper(part)
		next, ok := cur.children[key]
		if !ok {
			next = newDirNode(part, f.now())
			cur.children[key] = next
		} else if !next.entry.IsDirectory() {
			return nil, errors.Newf(errors.ErrCodePathInvalid, "%q is a file", part).
				WithComponent("memfs").WithPath(path)
		}
		cur = next
	}
	return cur, nil
}

// lookup resolves a normalized path. Caller holds a lock.
func (f *FS) lookup(path string) *node {
	cur := f.root
	if path == "" {
		return cur
	}
	for _, part := range utils.SplitVirtualPath(path) {
		if !cur.entry.IsDirectory() {
			return nil
		}
		next, ok := cur.children[strings.ToUpper(part)]
		if !ok {
			return nil
		}
		cur = next
	}
	return cur
}

// ListDirectory implements types.Provider.
func (f *FS) ListDirectory(path string) ([]types.EntryDescriptor, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	n := f.lookup(utils.NormalizeVirtualPath(path))
	if n == nil {
		return nil, errors.Newf(errors.ErrCodeNotFound, "no such directory %q", path).
			WithComponent("memfs").WithPath(path)
	}
	if !n.entry.IsDirectory() {
		return nil, errors.Newf(errors.ErrCodePathInvalid, "%q is not a directory", path).
			WithComponent("memfs").WithPath(path)
	}

	entries := make([]types.EntryDescriptor, 0, len(n.children))
	for _, child := range n.children {
		entries = append(entries, child.entry)
	}
	return entries, nil
}

// GetMetadata implements types.Provider.
func (f *FS) GetMetadata(path string) (*types.EntryDescriptor, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	n := f.lookup(utils.NormalizeVirtualPath(path))
	if n == nil {
		return nil, errors.Newf(errors.ErrCodeNotFound, "no such entry %q", path).
			WithComponent("memfs").WithPath(path)
	}
	entry := n.entry
	return &entry, nil
}

// StreamFile implements types.ReaderProvider over a snapshot of the file
// content, so concurrent tree mutation cannot tear a hydration.
func (f *FS) StreamFile(path string) (io.ReadCloser, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	n := f.lookup(utils.NormalizeVirtualPath(path))
	if n == nil {
		return nil, errors.Newf(errors.ErrCodeNotFound, "no such file %q", path).
			WithComponent("memfs").WithPath(path)
	}
	if n.entry.IsDirectory() {
		return nil, errors.Newf(errors.ErrCodePathInvalid, "%q is a directory", path).
			WithComponent("memfs").WithPath(path)
	}
	data := make([]byte, len(n.data))
	copy(data, n.data)
	return io.NopCloser(bytes.NewReader(data)), nil
}

// ReadFile implements types.Provider.
func (f *FS) ReadFile(path string, offset int64, dst []byte) (int, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	n := f.lookup(utils.NormalizeVirtualPath(path))
	if n == nil {
		return 0, errors.Newf(errors.ErrCodeNotFound, "no such file %q", path).
			WithComponent("memfs").WithPath(path)
	}
	if n.entry.IsDirectory() {
		return 0, errors.Newf(errors.ErrCodePathInvalid, "%q is a directory", path).
			WithComponent("memfs").WithPath(path)
	}
	if offset >= int64(len(n.data)) {
		return 0, io.EOF
	}
	copied := copy(dst, n.data[offset:])
	if offset+int64(copied) == int64(len(n.data)) {
		return copied, io.EOF
	}
	return copied, nil
}
