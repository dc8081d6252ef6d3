package dispatch

import (
	stderrors "errors"

	"github.com/winprojfs/winprojfs/pkg/errors"
)

// Status is the HRESULT handed back to the projection driver from a
// callback. Zero is success; failures use HRESULT_FROM_WIN32 encodings so
// the driver can surface a meaningful Win32 error to the calling process.
type Status uint32

const (
	StatusOK Status = 0

	// HRESULT_FROM_WIN32(x) = 0x80070000 | x
	StatusFileNotFound       Status = 0x80070002 // ERROR_FILE_NOT_FOUND
	StatusOutOfMemory        Status = 0x8007000E // ERROR_OUTOFMEMORY
	StatusInvalidParameter   Status = 0x80070057 // ERROR_INVALID_PARAMETER
	StatusInsufficientBuffer Status = 0x8007007A // ERROR_INSUFFICIENT_BUFFER
	StatusAccessDenied       Status = 0x80070005 // ERROR_ACCESS_DENIED
	StatusOperationAborted   Status = 0x800703E3 // ERROR_OPERATION_ABORTED
	StatusIoIncomplete       Status = 0x800703E4 // ERROR_IO_INCOMPLETE
	StatusInternalError      Status = 0x8007054F // ERROR_INTERNAL_ERROR
)

// String names the status for logs.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusFileNotFound:
		return "FILE_NOT_FOUND"
	case StatusOutOfMemory:
		return "OUT_OF_MEMORY"
	case StatusInvalidParameter:
		return "INVALID_PARAMETER"
	case StatusInsufficientBuffer:
		return "INSUFFICIENT_BUFFER"
	case StatusAccessDenied:
		return "ACCESS_DENIED"
	case StatusOperationAborted:
		return "OPERATION_ABORTED"
	case StatusIoIncomplete:
		return "IO_INCOMPLETE"
	case StatusInternalError:
		return "INTERNAL_ERROR"
	default:
		return "UNKNOWN"
	}
}

// OK reports whether the status is a success.
func (s Status) OK() bool {
	return s == StatusOK
}

// statusFromError translates a provider or registry error into a driver
// status. Unrecognized errors collapse to INTERNAL_ERROR rather than leak
// arbitrary codes to the driver.
func statusFromError(err error) Status {
	if err == nil {
		return StatusOK
	}
	if stderrors.Is(err, ErrBufferFull) {
		return StatusInsufficientBuffer
	}

	switch errors.CodeOf(err) {
	case errors.ErrCodeNotFound:
		return StatusFileNotFound
	case errors.ErrCodePathInvalid:
		return StatusInvalidParameter
	default:
		return StatusInternalError
	}
}
