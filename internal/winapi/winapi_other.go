//go:build !windows

package winapi

import (
	"github.com/winprojfs/winprojfs/pkg/errors"
)

// Available always fails off Windows; the projection driver is a Windows
// kernel component.
func Available() error {
	return errors.New(errors.ErrCodeFeatureUnavailable,
		"file projection requires a Windows host").
		WithComponent("winapi")
}

// NewVirtualizer fails with FEATURE_UNAVAILABLE off Windows.
func NewVirtualizer() (Virtualizer, error) {
	return nil, Available()
}
