package types

import (
	"fmt"
	"strings"
	"time"
)

// EntryKind identifies whether a virtual entry is a file or a directory.
type EntryKind int

const (
	KindFile EntryKind = iota
	KindDirectory
)

// String returns the string representation of the entry kind.
func (k EntryKind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDirectory:
		return "directory"
	default:
		return "unknown"
	}
}

// FileAttributes is the subset of Windows file attribute flags a provider
// may set on a virtual entry. The values match FILE_ATTRIBUTE_* so they can
// be handed to the projection driver unchanged.
type FileAttributes uint32

const (
	AttrReadOnly FileAttributes = 0x0001
	AttrHidden   FileAttributes = 0x0002
	AttrSystem   FileAttributes = 0x0004
	AttrNormal   FileAttributes = 0x0080
)

// EntryDescriptor describes one virtual file or directory entry. Descriptors
// are transient: the provider creates one per enumeration or metadata query,
// the bridge serializes it into the driver's buffers, and nothing retains it
// afterwards.
type EntryDescriptor struct {
	// Name is the final path component only. It must be non-empty and must
	// not contain path separators.
	Name string

	Kind EntryKind

	// Size is the file size in bytes. It is ignored for directories.
	Size int64

	Attributes FileAttributes

	CreationTime   time.Time
	LastWriteTime  time.Time
	LastAccessTime time.Time
}

// IsDirectory reports whether the entry describes a directory.
func (e *EntryDescriptor) IsDirectory() bool {
	return e.Kind == KindDirectory
}

// Validate checks the descriptor invariants: a non-empty name with no path
// separators, and a non-negative size for files.
func (e *EntryDescriptor) Validate() error {
	if e.Name == "" {
		return fmt.Errorf("entry name cannot be empty")
	}
	if strings.ContainsAny(e.Name, `/\`) {
		return fmt.Errorf("entry name %q contains a path separator", e.Name)
	}
	if e.Kind == KindFile && e.Size < 0 {
		return fmt.Errorf("entry %q has negative size %d", e.Name, e.Size)
	}
	return nil
}

// windowsEpochDelta is the number of 100ns intervals between the Windows
// epoch (1601-01-01) and the Unix epoch (1970-01-01).
const windowsEpochDelta = 116444736000000000

// Filetime converts a time.Time into a Windows FILETIME value (100ns
// intervals since 1601-01-01 UTC). The zero time maps to zero, which the
// driver interprets as "unspecified".
func Filetime(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()/100 + windowsEpochDelta
}

// TimeFromFiletime is the inverse of Filetime.
func TimeFromFiletime(ft int64) time.Time {
	if ft == 0 {
		return time.Time{}
	}
	return time.Unix(0, (ft-windowsEpochDelta)*100).UTC()
}
