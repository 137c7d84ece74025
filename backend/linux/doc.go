// Package linux implements backend.Backend on top of the Linux usbfs
// (/dev/bus/usb) character devices, using golang.org/x/sys/unix for the
// ioctl syscalls instead of raw syscall.Syscall.
//
// Device discovery walks /sys/bus/usb/devices the way udev does; actual
// I/O goes through USBDEVFS_SUBMITURB/USBDEVFS_REAPURBNDELAY on the
// per-device file descriptor. This package does not run its own event
// loop: each open device's fd is handed to the core via
// backend.PollFDSink.AddPollFD/RemovePollFD, and the core's single
// unix.Select call in its event loop is what actually waits on every
// backend's fds together and reaps urbs when one becomes readable.
// Build with GOOS=linux; this package is inert everywhere else.
package linux
