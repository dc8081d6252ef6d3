package winapi

import (
	"unsafe"

	"github.com/google/uuid"
	"golang.org/x/sys/windows"

	"github.com/winprojfs/winprojfs/internal/dispatch"
	"github.com/winprojfs/winprojfs/pkg/errors"
	"github.com/winprojfs/winprojfs/pkg/utils"
)

type virtualizer struct {
	log        *utils.Logger
	instanceID uuid.UUID
	token      uintptr
	ctx        uintptr
}

// NewVirtualizer binds to the projection driver library. It fails with
// FEATURE_UNAVAILABLE when the library cannot be loaded.
func NewVirtualizer() (Virtualizer, error) {
	if err := Available(); err != nil {
		return nil, err
	}
	return &virtualizer{}, nil
}

func (v *virtualizer) Start(root string, dispatcher *dispatch.Dispatcher, opts Options) error {
	log := opts.Logger
	if log == nil {
		log = utils.Default()
	}
	v.log = log.WithComponent("winapi")

	rootPtr, err := windows.UTF16PtrFromString(root)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodePathInvalid, "root path is not valid UTF-16").
			WithComponent("winapi").WithPath(root)
	}

	// The root must carry the placeholder reparse tag before registration.
	// Re-marking a root from a previous run reports the existing reparse
	// point, which is fine.
	v.instanceID = uuid.New()
	guid := guidFromUUID(v.instanceID)
	hr, _, _ := procPrjMarkDirectoryAsPlaceholder.Call(
		uintptr(unsafe.Pointer(rootPtr)),
		0,
		0,
		uintptr(unsafe.Pointer(&guid)),
	)
	if uint32(hr) != hrOK && uint32(hr) != hrReparsePointEncountered {
		return errors.Newf(errors.ErrCodeRegistrationFailed,
			"mark virtualization root failed: 0x%08X", uint32(hr)).
			WithComponent("winapi").WithPath(root)
	}

	token := registerHost(&hostState{dispatcher: dispatcher, log: v.log})

	startOpts := prjStartVirtualizingOptions{
		PoolThreadCount:       uint32(opts.PoolThreadCount),
		ConcurrentThreadCount: uint32(opts.ConcurrentThreadCount),
	}
	if opts.EnableNegativePathCache {
		startOpts.Flags |= prjFlagUseNegativePathCache
	}

	// One notification mapping rooted at the virtualization root covers
	// the whole namespace.
	var mapping prjNotificationMapping
	if opts.NotificationMask != 0 {
		emptyRoot, _ := windows.UTF16PtrFromString("")
		mapping = prjNotificationMapping{
			NotificationBitMask: uint32(opts.NotificationMask),
			NotificationRoot:    emptyRoot,
		}
		startOpts.NotificationMappings = &mapping
		startOpts.NotificationMappingsCount = 1
	}

	var ctx uintptr
	hr, _, _ = procPrjStartVirtualizing.Call(
		uintptr(unsafe.Pointer(rootPtr)),
		uintptr(unsafe.Pointer(callbacks())),
		token,
		uintptr(unsafe.Pointer(&startOpts)),
		uintptr(unsafe.Pointer(&ctx)),
	)
	if uint32(hr) != hrOK {
		unregisterHost(token)
		return errors.Newf(errors.ErrCodeRegistrationFailed,
			"start virtualizing failed: 0x%08X", uint32(hr)).
			WithComponent("winapi").WithPath(root)
	}

	v.token = token
	v.ctx = ctx
	v.log.Infof("virtualization started at %q (instance %s)", root, v.instanceID)
	return nil
}

func (v *virtualizer) Stop() error {
	if v.ctx == 0 {
		return nil
	}
	procPrjStopVirtualizing.Call(v.ctx)
	unregisterHost(v.token)
	v.ctx = 0
	v.log.Infof("virtualization stopped (instance %s)", v.instanceID)
	return nil
}
