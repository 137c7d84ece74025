//go:build cgolibusb

package cgolibusb

import (
	"time"

	"golang.org/x/sys/unix"

	"github.com/usbgo/usbgo/backend"
	"github.com/usbgo/usbgo/internal/obs"
)

// syncTransferTimeout bounds each goroutine's blocking libusb call.
// Cancellation is cooperative (libusb/v2 has no cancel-in-flight call
// for its synchronous transfers), so this is the backstop that keeps a
// CancelTransfer request from blocking forever on an unplugged device.
const syncTransferTimeout = 5 * time.Second

// SubmitTransfer runs the transfer on its own goroutine: libusb/v2 only
// exposes blocking calls, so the only way to honor the core's async
// contract is to let the call block off to the side and report back
// through the handle's eventfd once it returns.
func (b *Backend) SubmitTransfer(t *backend.Transfer) error {
	dh := t.Handle.Priv.(*devHandle)

	go func() {
		outcome := runSyncTransfer(dh, t)
		dh.mu.Lock()
		dh.completions = append(dh.completions, completion{transfer: t, outcome: outcome})
		dh.mu.Unlock()

		var one [8]byte
		one[7] = 1
		if _, err := unix.Write(dh.eventFD, one[:]); err != nil {
			obs.Warn(obs.ComponentBackend, "cgolibusb: eventfd write failed", "err", err)
		}
	}()
	return nil
}

func runSyncTransfer(dh *devHandle, t *backend.Transfer) backend.Outcome {
	var n int
	var err error
	switch t.Type {
	case backend.TransferControl:
		if len(t.Data) < 8 {
			return backend.Outcome{Status: backend.StatusError}
		}
		setup := t.Data[:8]
		data := t.Data[8:]
		n, err = dh.handle.ControlTransfer(setup[0], setup[1],
			leU16(setup[2:4]), leU16(setup[4:6]), data, len(data), syncTransferTimeout)
	case backend.TransferBulk:
		n, err = dh.handle.BulkTransfer(t.Endpoint, t.Data, len(t.Data), syncTransferTimeout)
	case backend.TransferInterrupt:
		n, err = dh.handle.InterruptTransfer(t.Endpoint, t.Data, len(t.Data), syncTransferTimeout)
	default:
		return backend.Outcome{Status: backend.StatusError}
	}
	if err != nil {
		return backend.Outcome{Status: statusForLibusbErr(err), ActualLength: n}
	}
	return backend.Outcome{Status: backend.StatusCompleted, ActualLength: n}
}

func leU16(b []byte) uint16 { return uint16(b[0]) | uint16(b[1])<<8 }

// CancelTransfer cannot interrupt a blocking libusb/v2 call in flight;
// runSyncTransfer's own timeout is what eventually unblocks it. The
// core still expects a Done callback, which arrives normally once the
// goroutine's call returns or times out.
func (b *Backend) CancelTransfer(t *backend.Transfer) error {
	obs.Debug(obs.ComponentBackend, "cgolibusb: cancel requested, awaiting sync timeout")
	return nil
}

// HandleEvents drains each ready handle's eventfd counter and delivers
// every completion queued since the last drain.
func (b *Backend) HandleEvents(ready []backend.PollFd) error {
	for _, pf := range ready {
		b.mu.Lock()
		dh := b.byFD[pf.FD]
		b.mu.Unlock()
		if dh == nil {
			continue
		}

		var buf [8]byte
		for {
			if _, err := unix.Read(dh.eventFD, buf[:]); err != nil {
				break
			}
		}

		dh.mu.Lock()
		batch := dh.completions
		dh.completions = nil
		dh.mu.Unlock()

		for _, c := range batch {
			c.transfer.Done(c.outcome)
		}
	}
	return nil
}

func statusForLibusbErr(err error) backend.Status {
	switch {
	case err == nil:
		return backend.StatusCompleted
	case isLibusbTimeout(err):
		return backend.StatusTimedOut
	case isLibusbNoDevice(err):
		return backend.StatusNoDevice
	case isLibusbPipe(err):
		return backend.StatusStall
	case isLibusbOverflow(err):
		return backend.StatusOverflow
	default:
		return backend.StatusError
	}
}

// isLibusbTimeout, isLibusbNoDevice, isLibusbPipe and isLibusbOverflow
// classify libusb/v2's error strings; the library returns plain errors
// rather than a typed errno, so matching on LIBUSB_ERROR_* text (as
// libusb itself renders it through strerror.c) is the only option
// short of vendoring libusb's C headers.
func isLibusbTimeout(err error) bool  { return containsAny(err, "LIBUSB_ERROR_TIMEOUT") }
func isLibusbNoDevice(err error) bool { return containsAny(err, "LIBUSB_ERROR_NO_DEVICE") }
func isLibusbPipe(err error) bool     { return containsAny(err, "LIBUSB_ERROR_PIPE") }
func isLibusbOverflow(err error) bool { return containsAny(err, "LIBUSB_ERROR_OVERFLOW") }

func containsAny(err error, substr string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for i := 0; i+len(substr) <= len(msg); i++ {
		if msg[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
