//go:build linux

package linux

import (
	"errors"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/usbgo/usbgo/backend"
	"github.com/usbgo/usbgo/internal/obs"
)

// urbStatusEConnReset is the negative-errno value the kernel reports in
// usbdevfs_urb.status for a URB reaped after USBDEVFS_DISCARDURB.
const urbStatusEConnReset = -int32(unix.ECONNRESET)

// errTransferNotPending is returned by CancelTransfer when the transfer
// has already been reaped (or was never submitted through this Backend).
var errTransferNotPending = errors.New("linux: transfer not pending")

func (b *Backend) SubmitTransfer(t *backend.Transfer) error {
	dh := t.Handle.Priv.(*devHandle)

	u := &urb{}
	switch t.Type {
	case backend.TransferControl:
		initControlURB(u, t.Endpoint, t.Data)
	case backend.TransferBulk:
		initBulkURB(u, t.Endpoint, t.Data)
	case backend.TransferInterrupt:
		initInterruptURB(u, t.Endpoint, t.Data)
	default:
		return unix.ENOTSUP
	}

	pu := &pendingURB{u: u, buf: t.Data, transfer: t}
	key := uintptr(unsafe.Pointer(u))

	dh.mu.Lock()
	dh.pending[key] = pu
	dh.mu.Unlock()

	if err := submitURB(dh.fd, u); err != nil {
		dh.mu.Lock()
		delete(dh.pending, key)
		dh.mu.Unlock()
		return err
	}
	return nil
}

func (b *Backend) CancelTransfer(t *backend.Transfer) error {
	dh := t.Handle.Priv.(*devHandle)

	dh.mu.Lock()
	var u *urb
	for _, pu := range dh.pending {
		if pu.transfer == t {
			u = pu.u
			break
		}
	}
	dh.mu.Unlock()

	if u == nil {
		return errTransferNotPending
	}
	return discardURB(dh.fd, u)
}

// HandleEvents drains every usbfs fd reported ready, reaping each
// completed or discarded URB and dispatching its transfer's Done
// callback exactly once.
func (b *Backend) HandleEvents(ready []backend.PollFd) error {
	for _, pf := range ready {
		b.mu.Lock()
		dh := b.byFD[pf.FD]
		b.mu.Unlock()
		if dh == nil {
			continue
		}
		b.drain(dh)
	}
	return nil
}

func (b *Backend) drain(dh *devHandle) {
	for {
		u, err := reapURBNDelay(dh.fd)
		if err != nil {
			if !isErrno(err, unix.EAGAIN) {
				obs.Warn(obs.ComponentBackend, "reap urb failed", "error", err)
			}
			return
		}
		if u == nil {
			return
		}

		key := uintptr(unsafe.Pointer(u))
		dh.mu.Lock()
		pu, ok := dh.pending[key]
		if ok {
			delete(dh.pending, key)
		}
		dh.mu.Unlock()
		if !ok {
			continue
		}

		pu.transfer.Done(outcomeFor(u))
	}
}

func outcomeFor(u *urb) backend.Outcome {
	if u.status == urbStatusEConnReset {
		return backend.Outcome{Cancelled: true}
	}
	if u.status != 0 {
		return backend.Outcome{Status: statusForErrno(u.status), ActualLength: int(u.actualLength)}
	}
	return backend.Outcome{Status: backend.StatusCompleted, ActualLength: int(u.actualLength)}
}

func statusForErrno(status int32) backend.Status {
	switch unix.Errno(-status) {
	case unix.EPIPE:
		return backend.StatusStall
	case unix.ENODEV, unix.ESHUTDOWN:
		return backend.StatusNoDevice
	case unix.EOVERFLOW:
		return backend.StatusOverflow
	default:
		return backend.StatusError
	}
}
