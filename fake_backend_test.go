package usbgo_test

import (
	"context"
	"encoding/binary"
	"errors"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/usbgo/usbgo/backend"
)

var errFakeConfigNotFound = errors.New("fake: no config descriptor registered for device")

// fakeBackend is a minimal, fully synchronous backend.Backend used to
// drive the engine in tests without any real USB hardware. Completions
// are queued explicitly by a test via queueCompletion, then delivered
// the next time the engine's event loop calls HandleEvents; an eventfd
// stands in for whatever OS-specific wakeup mechanism a real backend
// would use to make that happen.
type fakeBackend struct {
	mu sync.Mutex

	devices     []*backend.Device
	destroyed   []*backend.Device
	descriptors map[*backend.Device][18]byte
	configs     map[*backend.Device]*backend.ConfigDescriptor
	hostEndian  bool

	submitted []*backend.Transfer
	cancelled []*backend.Transfer
	completed []fakeCompletion

	submitErr error
	cancelErr error
	claimErr  error

	sink    backend.PollFDSink
	eventFD int
}

type fakeCompletion struct {
	t       *backend.Transfer
	outcome backend.Outcome
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		descriptors: make(map[*backend.Device][18]byte),
		configs:     make(map[*backend.Device]*backend.ConfigDescriptor),
	}
}

func (f *fakeBackend) Init(ctx context.Context, sink backend.PollFDSink) error {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		return err
	}
	f.eventFD = fd
	f.sink = sink
	sink.AddPollFD(fd, backend.PollReadable)
	return nil
}

func (f *fakeBackend) Exit() error {
	f.sink.RemovePollFD(f.eventFD)
	return unix.Close(f.eventFD)
}

func (f *fakeBackend) GetDeviceList(ctx context.Context) ([]*backend.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*backend.Device, len(f.devices))
	copy(out, f.devices)
	return out, nil
}

func (f *fakeBackend) DestroyDevice(d *backend.Device) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.destroyed = append(f.destroyed, d)
}

func (f *fakeBackend) Open(d *backend.Device) (*backend.Handle, error) {
	return &backend.Handle{Device: d}, nil
}

func (f *fakeBackend) Close(h *backend.Handle) error { return nil }

func (f *fakeBackend) GetDeviceDescriptor(d *backend.Device) (raw [18]byte, hostEndian bool, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.descriptors[d], f.hostEndian, nil
}

func (f *fakeBackend) GetActiveConfigDescriptor(d *backend.Device) (*backend.ConfigDescriptor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cfg, ok := f.configs[d]
	if !ok {
		return nil, errFakeConfigNotFound
	}
	return cfg, nil
}

func (f *fakeBackend) SetConfiguration(h *backend.Handle, value int) error { return nil }

func (f *fakeBackend) ClaimInterface(h *backend.Handle, iface uint8) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.claimErr
}

func (f *fakeBackend) ReleaseInterface(h *backend.Handle, iface uint8) error { return nil }

func (f *fakeBackend) SetInterfaceAltSetting(h *backend.Handle, iface, alt uint8) error { return nil }

func (f *fakeBackend) ClearHalt(h *backend.Handle, endpoint uint8) error { return nil }

func (f *fakeBackend) ResetDevice(h *backend.Handle) error { return nil }

func (f *fakeBackend) SubmitTransfer(t *backend.Transfer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return f.submitErr
	}
	f.submitted = append(f.submitted, t)
	return nil
}

func (f *fakeBackend) CancelTransfer(t *backend.Transfer) error {
	f.mu.Lock()
	if f.cancelErr != nil {
		defer f.mu.Unlock()
		return f.cancelErr
	}
	f.cancelled = append(f.cancelled, t)
	f.mu.Unlock()

	f.queueCompletion(t, backend.Outcome{Cancelled: true})
	return nil
}

func (f *fakeBackend) HandleEvents(ready []backend.PollFd) error {
	for _, pf := range ready {
		if pf.FD == f.eventFD {
			var buf [8]byte
			unix.Read(f.eventFD, buf[:])
		}
	}

	f.mu.Lock()
	queue := f.completed
	f.completed = nil
	f.mu.Unlock()

	for _, c := range queue {
		c.t.Done(c.outcome)
	}
	return nil
}

func (f *fakeBackend) DevicePrivSize() int       { return 0 }
func (f *fakeBackend) DeviceHandlePrivSize() int { return 0 }
func (f *fakeBackend) TransferPrivSize() int     { return 0 }

// queueCompletion schedules outcome for t and wakes the event loop, the
// way a real backend would signal its device-side completion fd.
func (f *fakeBackend) queueCompletion(t *backend.Transfer, outcome backend.Outcome) {
	f.mu.Lock()
	f.completed = append(f.completed, fakeCompletion{t, outcome})
	f.mu.Unlock()

	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], 1)
	unix.Write(f.eventFD, buf[:])
}

func (f *fakeBackend) lastSubmitted() *backend.Transfer {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.submitted) == 0 {
		return nil
	}
	return f.submitted[len(f.submitted)-1]
}

// fakeBackendKD adds kernel-driver-capable behavior on top of
// fakeBackend, used to test the type-assertion-based capability check.
type fakeBackendKD struct {
	*fakeBackend
	driverActive bool
	detachErr    error
}

func (f *fakeBackendKD) KernelDriverActive(h *backend.Handle, iface uint8) (bool, error) {
	return f.driverActive, nil
}

func (f *fakeBackendKD) DetachKernelDriver(h *backend.Handle, iface uint8) error {
	if f.detachErr != nil {
		return f.detachErr
	}
	f.driverActive = false
	return nil
}
