package types

import "io"

// Provider is the application-supplied source of truth for virtual content
// and metadata. The bridge shares a single Provider across all concurrent
// callback dispatches; implementations that keep mutable state are
// responsible for their own synchronization.
//
// Paths handed to the provider are relative to the virtualization root,
// use backslash separators, and are empty for the root itself.
type Provider interface {
	// ListDirectory returns the entries of the directory at path. The
	// bridge sorts the result into the driver's name order, so providers
	// may return entries in any order.
	ListDirectory(path string) ([]EntryDescriptor, error)

	// GetMetadata returns the descriptor for a single path, or an error
	// carrying the NOT_FOUND code when no such entry exists.
	GetMetadata(path string) (*EntryDescriptor, error)

	// ReadFile copies file content starting at offset into dst and returns
	// the number of bytes written. A short count with io.EOF marks the end
	// of the file.
	ReadFile(path string, offset int64, dst []byte) (int, error)
}

// ReaderProvider is an optional extension of Provider. When a provider
// implements it, full-file hydration requests stream from the reader
// instead of issuing repeated ReadFile calls; ranged requests always go
// through ReadFile. The bridge closes the reader when the transfer ends.
type ReaderProvider interface {
	StreamFile(path string) (io.ReadCloser, error)
}

// NotificationHandler is an optional extension of Provider. When the
// provider implements it and the instance was started with a non-empty
// notification mask, completed and pending file system operations are
// delivered to OnNotification.
//
// Returning an error from a pre-operation notification (PreDelete,
// PreRename) denies the operation.
type NotificationHandler interface {
	OnNotification(event NotificationEvent) error
}
