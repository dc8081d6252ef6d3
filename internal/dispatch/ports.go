package dispatch

import (
	stderrors "errors"

	"github.com/winprojfs/winprojfs/pkg/types"
)

// ErrBufferFull is returned by a DirEntryWriter when the driver's output
// buffer cannot hold the offered entry. The entry is re-offered on the next
// continuation.
var ErrBufferFull = stderrors.New("directory entry buffer is full")

// DirEntryWriter serializes directory entries into the driver's enumeration
// buffer.
type DirEntryWriter interface {
	WriteEntry(entry *types.EntryDescriptor) error
}

// PlaceholderWriter creates a placeholder in the backing layer for a virtual
// path.
type PlaceholderWriter interface {
	WritePlaceholder(path string, entry *types.EntryDescriptor) error
}

// FileDataWriter hands file content back to the driver for a hydration
// request.
type FileDataWriter interface {
	WriteData(offset uint64, data []byte) error
}

// CallbackInfo carries the per-callback context the driver supplies: the
// virtual path the operation targets and the identity of the process that
// triggered it.
type CallbackInfo struct {
	Path             string
	ProcessID        uint32
	ProcessImageName string
}
