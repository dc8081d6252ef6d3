// Package winapi binds the projection driver's user-mode library. It owns
// the callback trampolines, the registration lifecycle, and the buffer
// writers that serialize entries, placeholders, and file data into driver
// memory. Everything above this package is platform independent.
package winapi

import (
	"github.com/winprojfs/winprojfs/internal/dispatch"
	"github.com/winprojfs/winprojfs/pkg/types"
	"github.com/winprojfs/winprojfs/pkg/utils"
)

// Options carries the registration parameters for a virtualization
// instance.
type Options struct {
	// PoolThreadCount and ConcurrentThreadCount size the driver's worker
	// pool for callback delivery. Zero lets the driver choose.
	PoolThreadCount       int
	ConcurrentThreadCount int

	// EnableNegativePathCache lets the driver cache NOT_FOUND answers.
	EnableNegativePathCache bool

	// NotificationMask selects the operation notifications routed to the
	// provider. The mapping is registered for the whole virtualization
	// root.
	NotificationMask types.NotificationMask

	Logger *utils.Logger
}

// Virtualizer manages one registration with the projection driver.
type Virtualizer interface {
	// Start marks root as the virtualization root and begins callback
	// delivery to the dispatcher.
	Start(root string, dispatcher *dispatch.Dispatcher, opts Options) error

	// Stop detaches from the driver. No callbacks are delivered after
	// Stop returns.
	Stop() error
}
