package winapi

import (
	"golang.org/x/sys/windows"

	"github.com/winprojfs/winprojfs/pkg/errors"
)

var (
	modProjectedFSLib = windows.NewLazySystemDLL("ProjectedFSLib.dll")

	procPrjStartVirtualizing          = modProjectedFSLib.NewProc("PrjStartVirtualizing")
	procPrjStopVirtualizing           = modProjectedFSLib.NewProc("PrjStopVirtualizing")
	procPrjMarkDirectoryAsPlaceholder = modProjectedFSLib.NewProc("PrjMarkDirectoryAsPlaceholder")
	procPrjWritePlaceholderInfo       = modProjectedFSLib.NewProc("PrjWritePlaceholderInfo")
	procPrjFillDirEntryBuffer         = modProjectedFSLib.NewProc("PrjFillDirEntryBuffer")
	procPrjWriteFileData              = modProjectedFSLib.NewProc("PrjWriteFileData")
	procPrjAllocateAlignedBuffer      = modProjectedFSLib.NewProc("PrjAllocateAlignedBuffer")
	procPrjFreeAlignedBuffer          = modProjectedFSLib.NewProc("PrjFreeAlignedBuffer")
)

// HRESULT values the bindings inspect.
const (
	hrOK                      = 0x0
	hrInsufficientBuffer      = 0x8007007A // HRESULT_FROM_WIN32(ERROR_INSUFFICIENT_BUFFER)
	hrReparsePointEncountered = 0x80071127 // root is already marked as a placeholder
)

// Available reports whether the projection driver's user-mode library can
// be loaded. The library ships with the optional Windows feature, so its
// absence means projection is not enabled on this host.
func Available() error {
	if err := modProjectedFSLib.Load(); err != nil {
		return errors.Wrap(err, errors.ErrCodeFeatureUnavailable,
			"projection driver library is not available").
			WithComponent("winapi")
	}
	return nil
}
