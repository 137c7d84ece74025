package usbgo_test

import (
	"context"
	"encoding/binary"
	"testing"
	"time"

	"github.com/usbgo/usbgo"
	"github.com/usbgo/usbgo/backend"
)

func TestSubmitControlTransferByteSwapsSetupHeader(t *testing.T) {
	fb := newFakeBackend()
	c := newTestContext(t, fb)
	h := openTestHandle(t, c, fb)

	data := make([]byte, 8)
	binary.NativeEndian.PutUint16(data[2:4], 0x1234) // wValue
	binary.NativeEndian.PutUint16(data[4:6], 0x5678) // wIndex
	binary.NativeEndian.PutUint16(data[6:8], 0x0040) // wLength

	tr := usbgo.AllocTransfer(c)
	tr.Init(h, 0, usbgo.TransferControl, data, 0, nil, nil)
	if err := c.SubmitTransfer(tr); err != nil {
		t.Fatalf("SubmitTransfer: %v", err)
	}

	want := []byte{0x34, 0x12, 0x78, 0x56, 0x40, 0x00}
	if got := data[2:8]; !bytesEqual(got, want) {
		t.Fatalf("setup bytes[2:8] = %x, want %x", got, want)
	}
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestSubmitRequiresBoundHandle(t *testing.T) {
	fb := newFakeBackend()
	c := newTestContext(t, fb)

	tr := usbgo.AllocTransfer(c)
	tr.Data = make([]byte, 8)
	if err := c.SubmitTransfer(tr); err != usbgo.ErrInvalidParam {
		t.Fatalf("err = %v, want ErrInvalidParam", err)
	}
}

func TestTransferCompletesAndInvokesCallback(t *testing.T) {
	fb := newFakeBackend()
	c := newTestContext(t, fb)
	h := openTestHandle(t, c, fb)

	var gotStatus usbgo.TransferStatus
	var gotLen int
	done := make(chan struct{})

	tr := usbgo.AllocTransfer(c)
	tr.Init(h, 0x81, usbgo.TransferBulk, make([]byte, 64), 0, func(t *usbgo.Transfer) {
		gotStatus = t.Status
		gotLen = t.ActualLength
		close(done)
	}, nil)
	if err := c.SubmitTransfer(tr); err != nil {
		t.Fatalf("SubmitTransfer: %v", err)
	}

	bt := fb.lastSubmitted()
	fb.queueCompletion(bt, backend.Outcome{Status: backend.StatusCompleted, ActualLength: 64})

	if err := c.PollTimeout(time.Second); err != nil {
		t.Fatalf("PollTimeout: %v", err)
	}
	select {
	case <-done:
	default:
		t.Fatalf("callback did not run")
	}
	if gotStatus != usbgo.StatusCompleted || gotLen != 64 {
		t.Fatalf("status=%v len=%d, want Completed/64", gotStatus, gotLen)
	}
}

func TestShortTransferBecomesErrorWhenFlagged(t *testing.T) {
	fb := newFakeBackend()
	c := newTestContext(t, fb)
	h := openTestHandle(t, c, fb)

	var gotStatus usbgo.TransferStatus
	done := make(chan struct{})

	tr := usbgo.AllocTransfer(c)
	tr.Flags = usbgo.FlagShortNotOk
	tr.Init(h, 0x81, usbgo.TransferBulk, make([]byte, 64), 0, func(t *usbgo.Transfer) {
		gotStatus = t.Status
		close(done)
	}, nil)
	if err := c.SubmitTransfer(tr); err != nil {
		t.Fatalf("SubmitTransfer: %v", err)
	}

	bt := fb.lastSubmitted()
	fb.queueCompletion(bt, backend.Outcome{Status: backend.StatusCompleted, ActualLength: 32})
	if err := c.PollTimeout(time.Second); err != nil {
		t.Fatalf("PollTimeout: %v", err)
	}
	<-done
	if gotStatus != usbgo.StatusError {
		t.Fatalf("status = %v, want StatusError for a short FlagShortNotOk transfer", gotStatus)
	}
}

func TestFullTransferWithShortNotOkStaysCompleted(t *testing.T) {
	fb := newFakeBackend()
	c := newTestContext(t, fb)
	h := openTestHandle(t, c, fb)

	var gotStatus usbgo.TransferStatus
	done := make(chan struct{})

	tr := usbgo.AllocTransfer(c)
	tr.Flags = usbgo.FlagShortNotOk
	tr.Init(h, 0x81, usbgo.TransferBulk, make([]byte, 64), 0, func(t *usbgo.Transfer) {
		gotStatus = t.Status
		close(done)
	}, nil)
	if err := c.SubmitTransfer(tr); err != nil {
		t.Fatalf("SubmitTransfer: %v", err)
	}

	bt := fb.lastSubmitted()
	fb.queueCompletion(bt, backend.Outcome{Status: backend.StatusCompleted, ActualLength: 64})
	if err := c.PollTimeout(time.Second); err != nil {
		t.Fatalf("PollTimeout: %v", err)
	}
	<-done
	if gotStatus != usbgo.StatusCompleted {
		t.Fatalf("status = %v, want StatusCompleted for a full transfer", gotStatus)
	}
}

func TestCancelTransferReportsCancelled(t *testing.T) {
	fb := newFakeBackend()
	c := newTestContext(t, fb)
	h := openTestHandle(t, c, fb)

	var gotStatus usbgo.TransferStatus
	done := make(chan struct{})

	tr := usbgo.AllocTransfer(c)
	tr.Init(h, 0x02, usbgo.TransferBulk, make([]byte, 64), 0, func(t *usbgo.Transfer) {
		gotStatus = t.Status
		close(done)
	}, nil)
	if err := c.SubmitTransfer(tr); err != nil {
		t.Fatalf("SubmitTransfer: %v", err)
	}
	if err := c.CancelTransfer(tr); err != nil {
		t.Fatalf("CancelTransfer: %v", err)
	}
	if err := c.PollTimeout(time.Second); err != nil {
		t.Fatalf("PollTimeout: %v", err)
	}
	<-done
	if gotStatus != usbgo.StatusCancelled {
		t.Fatalf("status = %v, want StatusCancelled", gotStatus)
	}
}

func TestCancelTransferSyncSuppressesCallback(t *testing.T) {
	fb := newFakeBackend()
	c := newTestContext(t, fb)
	h := openTestHandle(t, c, fb)

	called := false
	tr := usbgo.AllocTransfer(c)
	tr.Init(h, 0x02, usbgo.TransferBulk, make([]byte, 64), 0, func(t *usbgo.Transfer) {
		called = true
	}, nil)
	if err := c.SubmitTransfer(tr); err != nil {
		t.Fatalf("SubmitTransfer: %v", err)
	}

	if err := c.CancelTransferSync(tr); err != nil {
		t.Fatalf("CancelTransferSync: %v", err)
	}
	if called {
		t.Fatalf("callback ran for a sync-cancelled transfer, want silent suppression")
	}
}

func TestTimeoutSweepCancelsAndReportsTimedOut(t *testing.T) {
	fb := newFakeBackend()
	clk := newFakeClock()
	c, err := usbgo.NewContext(fb, usbgo.WithClock(clk))
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	defer c.Exit()

	bd := &backend.Device{SessionID: 1, NumConfigurations: 1}
	fb.devices = []*backend.Device{bd}
	d := registryDeviceFor(t, c, bd)
	h, err := c.Open(context.Background(), d)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	var gotStatus usbgo.TransferStatus
	done := make(chan struct{})
	tr := usbgo.AllocTransfer(c)
	tr.Init(h, 0x81, usbgo.TransferBulk, make([]byte, 64), 50, func(t *usbgo.Transfer) {
		gotStatus = t.Status
		close(done)
	}, nil)
	if err := c.SubmitTransfer(tr); err != nil {
		t.Fatalf("SubmitTransfer: %v", err)
	}

	// Advance the fake clock past the deadline so the next poll's select
	// wait computes to zero and returns immediately instead of sleeping.
	clk.Advance(100 * time.Millisecond)
	if err := c.PollTimeout(0); err != nil {
		t.Fatalf("PollTimeout (sweep): %v", err)
	}
	if err := c.PollTimeout(time.Second); err != nil {
		t.Fatalf("PollTimeout (reap): %v", err)
	}
	<-done
	if gotStatus != usbgo.StatusTimedOut {
		t.Fatalf("status = %v, want StatusTimedOut", gotStatus)
	}
}

func TestGetNextTimeoutReflectsNearestDeadline(t *testing.T) {
	fb := newFakeBackend()
	clk := newFakeClock()
	c, err := usbgo.NewContext(fb, usbgo.WithClock(clk))
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	defer c.Exit()

	if _, ok := c.GetNextTimeout(); ok {
		t.Fatalf("GetNextTimeout reported a deadline with nothing scheduled")
	}

	h := openTestHandle(t, c, fb)
	tr := usbgo.AllocTransfer(c)
	tr.Init(h, 0x81, usbgo.TransferBulk, make([]byte, 64), 200, nil, nil)
	if err := c.SubmitTransfer(tr); err != nil {
		t.Fatalf("SubmitTransfer: %v", err)
	}

	rem, ok := c.GetNextTimeout()
	if !ok {
		t.Fatalf("GetNextTimeout reported no deadline after submit")
	}
	if rem <= 0 || rem > 200*time.Millisecond {
		t.Fatalf("rem = %v, want in (0, 200ms]", rem)
	}
}
