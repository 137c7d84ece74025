//go:build linux

package linux

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// urb mirrors struct usbdevfs_urb. isoFrameDesc is omitted: isochronous
// framing is not exercised by this backend.
type urb struct {
	typ          uint8
	endpoint     uint8
	status       int32
	flags        uint32
	buffer       uintptr
	bufferLength int32
	actualLength int32
	startFrame   int32
	streamID     uint32
	errorCount   int32
	signr        uint32
	userContext  uintptr
}

// setInterface mirrors struct usbdevfs_setinterface.
type setInterface struct {
	iface uint32
	alt   uint32
}

// urbType values for the urb.typ field.
const (
	urbTypeISO       = 0
	urbTypeInterrupt = 1
	urbTypeControl   = 2
	urbTypeBulk      = 3
)

// ioctlArg performs fd's ioctl request with a pointer argument via
// unix.Syscall, since golang.org/x/sys/unix has no generic
// arbitrary-struct ioctl wrapper.
func ioctlArg(fd int, req uintptr, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), req, uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}

func claimInterfaceIoctl(fd int, iface uint8) error {
	n := uint32(iface)
	return ioctlArg(fd, ioctlClaimInterface, unsafe.Pointer(&n))
}

func releaseInterfaceIoctl(fd int, iface uint8) error {
	n := uint32(iface)
	return ioctlArg(fd, ioctlReleaseInterface, unsafe.Pointer(&n))
}

func setInterfaceIoctl(fd int, iface, alt uint8) error {
	si := setInterface{iface: uint32(iface), alt: uint32(alt)}
	return ioctlArg(fd, ioctlSetInterface, unsafe.Pointer(&si))
}

func setConfigurationIoctl(fd int, value int) error {
	n := uint32(value)
	return ioctlArg(fd, ioctlSetConfiguration, unsafe.Pointer(&n))
}

func clearHaltIoctl(fd int, endpoint uint8) error {
	n := uint32(endpoint)
	return ioctlArg(fd, ioctlClearHalt, unsafe.Pointer(&n))
}

func disconnectDriverIoctl(fd int, iface uint8) error {
	n := uint32(iface)
	return ioctlArg(fd, ioctlDisconnect, unsafe.Pointer(&n))
}

func connectDriverIoctl(fd int, iface uint8) error {
	n := uint32(iface)
	return ioctlArg(fd, ioctlConnect, unsafe.Pointer(&n))
}

func resetDeviceIoctl(fd int) error {
	return ioctlArg(fd, ioctlReset, nil)
}

func submitURB(fd int, u *urb) error {
	return ioctlArg(fd, ioctlSubmitURB, unsafe.Pointer(u))
}

// reapURBNDelay retrieves a completed URB without blocking, returning
// EAGAIN (wrapped as unix.EAGAIN) if none is ready.
func reapURBNDelay(fd int) (*urb, error) {
	var ptr *urb
	if err := ioctlArg(fd, ioctlReapURBNDelay, unsafe.Pointer(&ptr)); err != nil {
		return nil, err
	}
	return ptr, nil
}

func discardURB(fd int, u *urb) error {
	return ioctlArg(fd, ioctlDiscardURB, unsafe.Pointer(u))
}

func initBulkURB(u *urb, endpoint uint8, data []byte) {
	*u = urb{typ: urbTypeBulk, endpoint: endpoint}
	u.bufferLength = int32(len(data))
	if len(data) > 0 {
		u.buffer = uintptr(unsafe.Pointer(&data[0]))
	}
}

func initInterruptURB(u *urb, endpoint uint8, data []byte) {
	*u = urb{typ: urbTypeInterrupt, endpoint: endpoint}
	u.bufferLength = int32(len(data))
	if len(data) > 0 {
		u.buffer = uintptr(unsafe.Pointer(&data[0]))
	}
}

// initControlURB initializes u for a combined setup+data buffer: buf's
// first 8 bytes are the setup packet, the remainder the data stage.
func initControlURB(u *urb, endpoint uint8, buf []byte) {
	*u = urb{typ: urbTypeControl, endpoint: endpoint}
	u.bufferLength = int32(len(buf))
	if len(buf) > 0 {
		u.buffer = uintptr(unsafe.Pointer(&buf[0]))
	}
}

func isErrno(err error, want unix.Errno) bool {
	errno, ok := err.(unix.Errno)
	return ok && errno == want
}
