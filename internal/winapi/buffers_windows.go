package winapi

import (
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/winprojfs/winprojfs/internal/dispatch"
	"github.com/winprojfs/winprojfs/pkg/errors"
	"github.com/winprojfs/winprojfs/pkg/types"
)

// basicInfoFrom converts an entry descriptor into the driver's basic info
// block. The driver has no separate change time, so the last write time
// stands in for it.
func basicInfoFrom(entry *types.EntryDescriptor) prjFileBasicInfo {
	info := prjFileBasicInfo{
		CreationTime:   types.Filetime(entry.CreationTime),
		LastAccessTime: types.Filetime(entry.LastAccessTime),
		LastWriteTime:  types.Filetime(entry.LastWriteTime),
		ChangeTime:     types.Filetime(entry.LastWriteTime),
		FileAttributes: uint32(entry.Attributes),
	}
	if entry.IsDirectory() {
		info.IsDirectory = 1
		info.FileAttributes |= windows.FILE_ATTRIBUTE_DIRECTORY
	} else {
		info.FileSize = entry.Size
		if info.FileAttributes == 0 {
			info.FileAttributes = uint32(types.AttrNormal)
		}
	}
	return info
}

// dirEntryBuffer serializes entries into the driver's enumeration buffer.
type dirEntryBuffer struct {
	handle uintptr
}

func (b *dirEntryBuffer) WriteEntry(entry *types.EntryDescriptor) error {
	name, err := windows.UTF16PtrFromString(entry.Name)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodePathInvalid, "entry name is not valid UTF-16").
			WithComponent("winapi").WithPath(entry.Name)
	}
	info := basicInfoFrom(entry)

	hr, _, _ := procPrjFillDirEntryBuffer.Call(
		uintptr(unsafe.Pointer(name)),
		uintptr(unsafe.Pointer(&info)),
		b.handle,
	)
	switch uint32(hr) {
	case hrOK:
		return nil
	case hrInsufficientBuffer:
		return dispatch.ErrBufferFull
	default:
		return errors.Newf(errors.ErrCodeIoFailure,
			"fill dir entry buffer failed: 0x%08X", uint32(hr)).
			WithComponent("winapi").WithPath(entry.Name)
	}
}

// placeholderWriter materializes placeholder metadata in the backing layer.
type placeholderWriter struct {
	ctx uintptr
}

func (w *placeholderWriter) WritePlaceholder(path string, entry *types.EntryDescriptor) error {
	name, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodePathInvalid, "path is not valid UTF-16").
			WithComponent("winapi").WithPath(path)
	}

	info := prjPlaceholderInfo{FileBasicInfo: basicInfoFrom(entry)}
	hr, _, _ := procPrjWritePlaceholderInfo.Call(
		w.ctx,
		uintptr(unsafe.Pointer(name)),
		uintptr(unsafe.Pointer(&info)),
		unsafe.Sizeof(info),
	)
	if uint32(hr) != hrOK {
		return errors.Newf(errors.ErrCodeIoFailure,
			"write placeholder info failed: 0x%08X", uint32(hr)).
			WithComponent("winapi").WithPath(path)
	}
	return nil
}

// fileDataWriter hands hydration data to the driver through an aligned
// transfer buffer. The driver requires its own allocator for the buffer so
// the copy satisfies the backing volume's alignment rules.
type fileDataWriter struct {
	ctx      uintptr
	streamID windows.GUID
}

func (w *fileDataWriter) WriteData(offset uint64, data []byte) error {
	if len(data) == 0 {
		return nil
	}

	bufPtr, _, _ := procPrjAllocateAlignedBuffer.Call(w.ctx, uintptr(len(data)))
	if bufPtr == 0 {
		return errors.New(errors.ErrCodeIoFailure, "aligned buffer allocation failed").
			WithComponent("winapi")
	}
	defer procPrjFreeAlignedBuffer.Call(bufPtr)

	copy(unsafe.Slice((*byte)(unsafe.Pointer(bufPtr)), len(data)), data)

	hr, _, _ := procPrjWriteFileData.Call(
		w.ctx,
		uintptr(unsafe.Pointer(&w.streamID)),
		bufPtr,
		uintptr(offset),
		uintptr(uint32(len(data))),
	)
	if uint32(hr) != hrOK {
		return errors.Newf(errors.ErrCodeIoFailure,
			"write file data failed: 0x%08X", uint32(hr)).
			WithComponent("winapi")
	}
	return nil
}
