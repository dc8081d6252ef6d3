package winapi

import (
	"encoding/binary"

	"github.com/google/uuid"
	"golang.org/x/sys/windows"
)

// Callback data flags.
const (
	prjCBDataFlagEnumRestartScan       = 0x1
	prjCBDataFlagEnumReturnSingleEntry = 0x2
)

// Start flags.
const (
	prjFlagUseNegativePathCache = 0x1
)

const prjPlaceholderIDLength = 128

// prjCallbackData mirrors PRJ_CALLBACK_DATA.
type prjCallbackData struct {
	Size                           uint32
	Flags                          uint32
	NamespaceVirtualizationContext uintptr
	CommandID                      int32
	FileID                         windows.GUID
	DataStreamID                   windows.GUID
	FilePathName                   *uint16
	VersionInfo                    *prjPlaceholderVersionInfo
	TriggeringProcessID            uint32
	TriggeringProcessImageFileName *uint16
	InstanceContext                uintptr
}

// prjPlaceholderVersionInfo mirrors PRJ_PLACEHOLDER_VERSION_INFO.
type prjPlaceholderVersionInfo struct {
	ProviderID [prjPlaceholderIDLength]byte
	ContentID  [prjPlaceholderIDLength]byte
}

// prjFileBasicInfo mirrors PRJ_FILE_BASIC_INFO. Times are FILETIME values.
type prjFileBasicInfo struct {
	IsDirectory    uint8
	_              [7]byte
	FileSize       int64
	CreationTime   int64
	LastAccessTime int64
	LastWriteTime  int64
	ChangeTime     int64
	FileAttributes uint32
	_              [4]byte
}

// prjPlaceholderInfo mirrors PRJ_PLACEHOLDER_INFO.
type prjPlaceholderInfo struct {
	FileBasicInfo prjFileBasicInfo

	EaBufferSize    uint32
	OffsetToFirstEa uint32

	SecurityBufferSize         uint32
	OffsetToSecurityDescriptor uint32

	StreamsInfoBufferSize   uint32
	OffsetToFirstStreamInfo uint32

	VersionInfo  prjPlaceholderVersionInfo
	VariableData [1]byte
}

// prjNotificationMapping mirrors PRJ_NOTIFICATION_MAPPING.
type prjNotificationMapping struct {
	NotificationBitMask uint32
	_                   [4]byte
	NotificationRoot    *uint16
}

// prjStartVirtualizingOptions mirrors PRJ_STARTVIRTUALIZING_OPTIONS.
type prjStartVirtualizingOptions struct {
	Flags                     uint32
	PoolThreadCount           uint32
	ConcurrentThreadCount     uint32
	NotificationMappings      *prjNotificationMapping
	NotificationMappingsCount uint32
	_                         [4]byte
}

// prjCallbacks mirrors PRJ_CALLBACKS: a table of C function pointers in
// registration order.
type prjCallbacks struct {
	StartDirectoryEnumeration uintptr
	EndDirectoryEnumeration   uintptr
	GetDirectoryEnumeration   uintptr
	GetPlaceholderInfo        uintptr
	GetFileData               uintptr
	QueryFileName             uintptr
	Notification              uintptr
	CancelCommand             uintptr
}

// guidFromUUID converts the textual-order UUID bytes into the mixed-endian
// GUID layout the driver expects.
func guidFromUUID(id uuid.UUID) windows.GUID {
	var g windows.GUID
	g.Data1 = binary.BigEndian.Uint32(id[0:4])
	g.Data2 = binary.BigEndian.Uint16(id[4:6])
	g.Data3 = binary.BigEndian.Uint16(id[6:8])
	copy(g.Data4[:], id[8:16])
	return g
}

// uuidFromGUID is the inverse of guidFromUUID.
func uuidFromGUID(g windows.GUID) uuid.UUID {
	var id uuid.UUID
	binary.BigEndian.PutUint32(id[0:4], g.Data1)
	binary.BigEndian.PutUint16(id[4:6], g.Data2)
	binary.BigEndian.PutUint16(id[6:8], g.Data3)
	copy(id[8:16], g.Data4[:])
	return id
}
