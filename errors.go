package usbgo

import "errors"

// Sentinel errors returned by engine operations. Backends should map
// their own OS-level failures onto these where a mapping exists, and
// wrap them with fmt.Errorf("%w: ...") to preserve detail; callers
// compare against these with errors.Is.
var (
	ErrIO           = errors.New("usbgo: I/O error")
	ErrInvalidParam = errors.New("usbgo: invalid parameter")
	ErrAccess       = errors.New("usbgo: access denied")
	ErrNoDevice     = errors.New("usbgo: no such device")
	ErrNotFound     = errors.New("usbgo: entity not found")
	ErrBusy         = errors.New("usbgo: resource busy")
	ErrTimeout      = errors.New("usbgo: operation timed out")
	ErrOverflow     = errors.New("usbgo: overflow")
	ErrPipe         = errors.New("usbgo: pipe error")
	ErrInterrupted  = errors.New("usbgo: system call interrupted")
	ErrNoMem        = errors.New("usbgo: insufficient memory")
	ErrNotSupported = errors.New("usbgo: operation not supported")
	ErrOther        = errors.New("usbgo: other error")
)
