package usbgo

import (
	"encoding/binary"

	"github.com/usbgo/usbgo/backend"
	"github.com/usbgo/usbgo/clock"
)

// Transfer is a single asynchronous USB transfer. Allocate one with
// AllocTransfer, fill in the user-facing fields, then Submit it; its
// Callback runs from inside a Poll/PollTimeout call on whichever thread
// is driving the event loop, never from any other goroutine.
type Transfer struct {
	// User-facing fields, read by Submit.
	Endpoint         uint8
	Type             TransferType
	Flags            TransferFlags
	Data             []byte
	Timeout          uint32 // milliseconds; 0 means no timeout
	Callback         func(*Transfer)
	UserContext      any
	ISOPacketLengths []uint32

	// Populated once the transfer reaches a terminal state.
	Status       TransferStatus
	ActualLength int

	ctx    *Context
	handle *DeviceHandle

	deadline        clock.Deadline
	flags           engineFlags
	backendTransfer *backend.Transfer

	prev, next *Transfer
	linked     bool
}

// AllocTransfer creates a Transfer bound to ctx. Bind a handle and the
// remaining fields, then call ctx.SubmitTransfer.
func AllocTransfer(ctx *Context) *Transfer {
	return &Transfer{ctx: ctx}
}

// Init sets the fields needed before the first Submit. Callers may also
// set fields directly; Init exists for the common case.
func (t *Transfer) Init(h *DeviceHandle, endpoint uint8, typ TransferType, data []byte, timeout uint32, callback func(*Transfer), userCtx any) {
	t.handle = h
	t.Endpoint = endpoint
	t.Type = typ
	t.Data = data
	t.Timeout = timeout
	t.Callback = callback
	t.UserContext = userCtx
}

// free drops the data buffer if FlagFreeBuffer is set. There is no
// separate deallocation step beyond that: once nothing references the
// Transfer, the garbage collector reclaims it.
func (t *Transfer) free() {
	if t.Flags&FlagFreeBuffer != 0 {
		t.Data = nil
	}
}

// onBackendDone is installed as backend.Transfer.Done at submission
// time. It runs on whichever goroutine is inside Poll/PollTimeout, which
// by the single-driver contract is always exactly one at a time.
func (t *Transfer) onBackendDone(outcome backend.Outcome) {
	c := t.ctx
	c.schedMu.Lock()
	c.sched.remove(t)
	depth := c.sched.len()
	c.schedMu.Unlock()
	c.metrics.SchedulerDepth(depth)

	if outcome.Cancelled {
		t.deliverCancellation()
		return
	}
	t.deliverCompletion(outcome.Status, outcome.ActualLength)
}

// deliverCompletion publishes status/actual_length onto the transfer
// and invokes its callback, applying the short-transfer-is-error rule
// when requested. A StatusSilentCompletion is swallowed entirely: no
// publish, no callback, used to suppress the user-visible event of a
// transfer CancelTransferSync is synchronously waiting on.
func (t *Transfer) deliverCompletion(status backend.Status, actualLength int) {
	if status == backend.StatusSilentCompletion {
		return
	}

	if status == backend.StatusCompleted && t.Flags&FlagShortNotOk != 0 {
		want := len(t.Data)
		if t.Type == TransferControl {
			want -= controlSetupSize
		}
		if actualLength < want {
			status = backend.StatusError
		}
	}

	t.Status = status
	t.ActualLength = actualLength
	t.recordMetric(status)

	if t.Callback != nil {
		t.Callback(t)
	}
	if t.Flags&FlagFreeTransfer != 0 {
		t.free()
	}
}

// deliverCancellation dispatches a backend-reported cancellation to the
// right outward status: silent (sync-cancel in progress), TIMED_OUT
// (the scheduler's own sweep initiated the cancel), or a plain
// CANCELLED from an explicit CancelTransfer.
func (t *Transfer) deliverCancellation() {
	t.ctx.schedMu.Lock()
	syncCancelled := t.flags&engineFlagSyncCancelled != 0
	timedOut := t.flags&engineFlagTimedOut != 0
	if syncCancelled {
		t.flags &^= engineFlagSyncCancelled
	}
	t.ctx.schedMu.Unlock()

	switch {
	case syncCancelled:
		t.deliverCompletion(backend.StatusSilentCompletion, 0)
	case timedOut:
		t.deliverCompletion(backend.StatusTimedOut, 0)
	default:
		t.deliverCompletion(backend.StatusCancelled, 0)
	}
}

func (t *Transfer) recordMetric(status backend.Status) {
	switch status {
	case backend.StatusCompleted:
		t.ctx.metrics.TransferCompleted()
	case backend.StatusCancelled:
		t.ctx.metrics.TransferCancelled()
	case backend.StatusTimedOut:
		t.ctx.metrics.TransferTimedOut()
	default:
		t.ctx.metrics.TransferErrored()
	}
}

// SubmitTransfer hands t to the backend. On success t is linked into
// the in-flight scheduler at its deadline-ordered position; on failure
// it is left untouched and may be resubmitted.
//
// For TransferControl, the three 16-bit setup fields (wValue, wIndex,
// wLength) are byte-swapped from host order to little-endian wire order
// on every call, exactly as the USB control setup packet requires.
// Resubmitting the same Transfer without first restoring those fields
// to host order will double-swap them; this mirrors the underlying
// control-transfer wire format rather than tracking per-transfer
// normalization state.
func (c *Context) SubmitTransfer(t *Transfer) error {
	if t.handle == nil {
		return ErrInvalidParam
	}

	t.ActualLength = 0
	t.deadline = clock.FromTimeout(c.clk.Now(), t.Timeout)

	if t.Type == TransferControl {
		swapControlSetupHeader(t.Data)
	}

	bt := &backend.Transfer{
		Handle:   t.handle.backendHandle,
		Endpoint: t.Endpoint,
		Type:     t.Type,
		Data:     t.Data,
		Done:     t.onBackendDone,
	}
	if err := c.be.SubmitTransfer(bt); err != nil {
		return err
	}

	t.backendTransfer = bt
	t.flags = 0

	c.schedMu.Lock()
	c.sched.insert(t)
	depth := c.sched.len()
	c.schedMu.Unlock()

	c.metrics.TransferSubmitted()
	c.metrics.SchedulerDepth(depth)
	return nil
}

// CancelTransfer asks the backend to cancel an in-flight transfer. The
// transfer's callback still runs later, from inside Poll/PollTimeout,
// reporting StatusCancelled. It does not contend with an in-progress
// Poll/PollTimeout call: submission and cancellation only ever touch
// the scheduler's own lock, never the one that guards the blocking
// select itself, so a long-running poll can never stall a cancel.
func (c *Context) CancelTransfer(t *Transfer) error {
	return c.be.CancelTransfer(t.backendTransfer)
}

// CancelTransferSync cancels t and blocks, running the event loop
// itself, until the cancellation has been reaped. No callback fires for
// this particular completion: deliverCancellation sees the
// engineFlagSyncCancelled latch and swallows it.
func (c *Context) CancelTransferSync(t *Transfer) error {
	c.schedMu.Lock()
	t.flags |= engineFlagSyncCancelled
	c.schedMu.Unlock()

	if err := c.be.CancelTransfer(t.backendTransfer); err != nil {
		c.schedMu.Lock()
		t.flags &^= engineFlagSyncCancelled
		c.schedMu.Unlock()
		return err
	}

	for {
		c.schedMu.Lock()
		pending := t.flags&engineFlagSyncCancelled != 0
		c.schedMu.Unlock()
		if !pending {
			return nil
		}
		if err := c.Poll(); err != nil {
			return err
		}
	}
}

// swapControlSetupHeader rewrites the wValue, wIndex, and wLength
// fields of a control setup packet from the host's native byte order to
// little-endian wire order. It is a no-op if buf is shorter than a
// setup packet.
func swapControlSetupHeader(buf []byte) {
	if len(buf) < controlSetupSize {
		return
	}
	swap16ToLE(buf[2:4])
	swap16ToLE(buf[4:6])
	swap16ToLE(buf[6:8])
}

func swap16ToLE(b []byte) {
	v := binary.NativeEndian.Uint16(b)
	binary.LittleEndian.PutUint16(b, v)
}
