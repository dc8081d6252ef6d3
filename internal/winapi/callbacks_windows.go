package winapi

import (
	"sync"
	"sync/atomic"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/winprojfs/winprojfs/internal/dispatch"
	"github.com/winprojfs/winprojfs/internal/session"
	"github.com/winprojfs/winprojfs/pkg/types"
	"github.com/winprojfs/winprojfs/pkg/utils"
)

// hostState is the per-instance context the trampolines resolve from the
// opaque token handed to the driver. Go pointers must not cross the driver
// boundary, so the driver holds the token and the map holds the pointer.
type hostState struct {
	dispatcher *dispatch.Dispatcher
	log        *utils.Logger
}

var (
	hostTokens sync.Map // uintptr -> *hostState
	tokenSeq   atomic.Uintptr
)

func registerHost(h *hostState) uintptr {
	token := tokenSeq.Add(1)
	hostTokens.Store(token, h)
	return token
}

func unregisterHost(token uintptr) {
	hostTokens.Delete(token)
}

func lookupHost(token uintptr) *hostState {
	if v, ok := hostTokens.Load(token); ok {
		return v.(*hostState)
	}
	return nil
}

// The callback table is built once; syscall.NewCallback allocations are
// permanent for the life of the process.
var (
	callbackTableOnce sync.Once
	callbackTable     prjCallbacks
)

func callbacks() *prjCallbacks {
	callbackTableOnce.Do(func() {
		callbackTable = prjCallbacks{
			StartDirectoryEnumeration: syscall.NewCallback(startDirEnumTrampoline),
			EndDirectoryEnumeration:   syscall.NewCallback(endDirEnumTrampoline),
			GetDirectoryEnumeration:   syscall.NewCallback(getDirEnumTrampoline),
			GetPlaceholderInfo:        syscall.NewCallback(getPlaceholderTrampoline),
			GetFileData:               syscall.NewCallback(getFileDataTrampoline),
			QueryFileName:             syscall.NewCallback(queryFileNameTrampoline),
			Notification:              syscall.NewCallback(notificationTrampoline),
			CancelCommand:             syscall.NewCallback(cancelCommandTrampoline),
		}
	})
	return &callbackTable
}

func hostFromData(dataPtr uintptr) (*hostState, *prjCallbackData) {
	data := (*prjCallbackData)(unsafe.Pointer(dataPtr))
	return lookupHost(data.InstanceContext), data
}

func infoFromData(data *prjCallbackData) dispatch.CallbackInfo {
	info := dispatch.CallbackInfo{
		ProcessID: data.TriggeringProcessID,
	}
	if data.FilePathName != nil {
		info.Path = windows.UTF16PtrToString(data.FilePathName)
	}
	if data.TriggeringProcessImageFileName != nil {
		info.ProcessImageName = windows.UTF16PtrToString(data.TriggeringProcessImageFileName)
	}
	return info
}

func startDirEnumTrampoline(dataPtr, enumIDPtr uintptr) uintptr {
	h, data := hostFromData(dataPtr)
	if h == nil {
		return uintptr(dispatch.StatusInternalError)
	}
	id := uuidFromGUID(*(*windows.GUID)(unsafe.Pointer(enumIDPtr)))
	return uintptr(h.dispatcher.StartEnumeration(id, infoFromData(data)))
}

func endDirEnumTrampoline(dataPtr, enumIDPtr uintptr) uintptr {
	h, data := hostFromData(dataPtr)
	if h == nil {
		return uintptr(dispatch.StatusInternalError)
	}
	id := uuidFromGUID(*(*windows.GUID)(unsafe.Pointer(enumIDPtr)))
	return uintptr(h.dispatcher.EndEnumeration(id, infoFromData(data)))
}

func getDirEnumTrampoline(dataPtr, enumIDPtr, searchPtr, bufferHandle uintptr) uintptr {
	h, data := hostFromData(dataPtr)
	if h == nil {
		return uintptr(dispatch.StatusInternalError)
	}
	id := uuidFromGUID(*(*windows.GUID)(unsafe.Pointer(enumIDPtr)))

	opts := session.AdvanceOptions{
		Restart:     data.Flags&prjCBDataFlagEnumRestartScan != 0,
		SingleEntry: data.Flags&prjCBDataFlagEnumReturnSingleEntry != 0,
	}
	if searchPtr != 0 {
		opts.Filter = windows.UTF16PtrToString((*uint16)(unsafe.Pointer(searchPtr)))
	}

	out := &dirEntryBuffer{handle: bufferHandle}
	return uintptr(h.dispatcher.GetEnumeration(id, infoFromData(data), opts, out))
}

func getPlaceholderTrampoline(dataPtr uintptr) uintptr {
	h, data := hostFromData(dataPtr)
	if h == nil {
		return uintptr(dispatch.StatusInternalError)
	}
	out := &placeholderWriter{ctx: data.NamespaceVirtualizationContext}
	return uintptr(h.dispatcher.GetPlaceholderInfo(infoFromData(data), out))
}

func getFileDataTrampoline(dataPtr, byteOffset, length uintptr) uintptr {
	h, data := hostFromData(dataPtr)
	if h == nil {
		return uintptr(dispatch.StatusInternalError)
	}
	out := &fileDataWriter{
		ctx:      data.NamespaceVirtualizationContext,
		streamID: data.DataStreamID,
	}
	return uintptr(h.dispatcher.GetFileData(infoFromData(data), uint64(byteOffset), uint32(length), out))
}

func queryFileNameTrampoline(dataPtr uintptr) uintptr {
	h, data := hostFromData(dataPtr)
	if h == nil {
		return uintptr(dispatch.StatusInternalError)
	}
	return uintptr(h.dispatcher.QueryFileName(infoFromData(data)))
}

func notificationTrampoline(dataPtr, isDirectory, notification, destNamePtr, paramsPtr uintptr) uintptr {
	h, data := hostFromData(dataPtr)
	if h == nil {
		return uintptr(dispatch.StatusInternalError)
	}
	info := infoFromData(data)

	// paramsPtr is the PRJ_NOTIFICATION_PARAMETERS block. For file-opened,
	// new-file-created, and file-overwritten events the driver reads a
	// replacement notification mask back out of it; the block is left
	// untouched here, so the mask registered at start stays in effect for
	// the life of the instance. Per-path mask adjustment would need a
	// handler return channel for the new mask before writing it back.

	event := types.NotificationEvent{
		Type:             types.NotificationType(notification),
		Path:             info.Path,
		IsDirectory:      isDirectory != 0,
		ProcessID:        info.ProcessID,
		ProcessImageName: info.ProcessImageName,
	}
	if destNamePtr != 0 {
		event.DestinationPath = windows.UTF16PtrToString((*uint16)(unsafe.Pointer(destNamePtr)))
	}
	return uintptr(h.dispatcher.Notification(info, event))
}

func cancelCommandTrampoline(dataPtr uintptr) uintptr {
	// Cancellation is advisory. In-flight provider calls run to completion
	// and the driver discards the late result.
	return 0
}
