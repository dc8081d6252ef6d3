package types

import "strings"

// NotificationType identifies one projection driver notification. The
// values match the PRJ_NOTIFICATION enumeration, whose members double as
// bits of the notification mask registered at start.
type NotificationType uint32

const (
	NotifyFileOpened                     NotificationType = 0x00000002
	NotifyNewFileCreated                 NotificationType = 0x00000004
	NotifyFileOverwritten                NotificationType = 0x00000008
	NotifyPreDelete                      NotificationType = 0x00000010
	NotifyPreRename                      NotificationType = 0x00000020
	NotifyFileRenamed                    NotificationType = 0x00000080
	NotifyFileHandleClosedNoModification NotificationType = 0x00000200
	NotifyFileHandleClosedModified       NotificationType = 0x00000400
	NotifyFileHandleClosedDeleted        NotificationType = 0x00000800
)

// String returns a short name for the notification type.
func (t NotificationType) String() string {
	switch t {
	case NotifyFileOpened:
		return "file_opened"
	case NotifyNewFileCreated:
		return "new_file_created"
	case NotifyFileOverwritten:
		return "file_overwritten"
	case NotifyPreDelete:
		return "pre_delete"
	case NotifyPreRename:
		return "pre_rename"
	case NotifyFileRenamed:
		return "file_renamed"
	case NotifyFileHandleClosedNoModification:
		return "handle_closed_no_modification"
	case NotifyFileHandleClosedModified:
		return "handle_closed_modified"
	case NotifyFileHandleClosedDeleted:
		return "handle_closed_deleted"
	default:
		return "unknown"
	}
}

// NotificationMask is the set of notification types a provider subscribed
// to. The mask is fixed when the virtualization instance starts and cannot
// change for the life of the registration.
type NotificationMask uint32

// Contains reports whether the mask includes the given notification type.
func (m NotificationMask) Contains(t NotificationType) bool {
	return uint32(m)&uint32(t) != 0
}

// With returns a copy of the mask with the given types added.
func (m NotificationMask) With(types ...NotificationType) NotificationMask {
	for _, t := range types {
		m |= NotificationMask(t)
	}
	return m
}

// String lists the subscribed notification names, for logging.
func (m NotificationMask) String() string {
	if m == 0 {
		return "none"
	}
	all := []NotificationType{
		NotifyFileOpened,
		NotifyNewFileCreated,
		NotifyFileOverwritten,
		NotifyPreDelete,
		NotifyPreRename,
		NotifyFileRenamed,
		NotifyFileHandleClosedNoModification,
		NotifyFileHandleClosedModified,
		NotifyFileHandleClosedDeleted,
	}
	var names []string
	for _, t := range all {
		if m.Contains(t) {
			names = append(names, t.String())
		}
	}
	return strings.Join(names, ",")
}

// NotificationEvent describes one file system operation reported by the
// driver. Path is relative to the virtualization root; DestinationPath is
// set only for renames.
type NotificationEvent struct {
	Type            NotificationType
	Path            string
	DestinationPath string
	IsDirectory     bool

	// Identity of the process whose I/O triggered the notification, as
	// reported by the driver. ProcessImageName may be empty for system
	// initiated operations.
	ProcessID        uint32
	ProcessImageName string
}
