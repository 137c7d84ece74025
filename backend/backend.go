package backend

import "context"

// Status is a USB transfer completion status (spec §6.4).
type Status int

// Transfer status values.
const (
	StatusCompleted Status = iota
	StatusError
	StatusTimedOut
	StatusCancelled
	StatusStall
	StatusNoDevice
	StatusOverflow

	// StatusSilentCompletion is an internal sentinel: the core never
	// delivers it to a user callback. A backend must never produce it;
	// it exists only as a value the core itself threads through the
	// completion path when suppressing a sync-cancelled transfer's
	// callback.
	StatusSilentCompletion
)

// TransferType identifies the USB transfer type. Values match the USB
// bmAttributes transfer-type field.
type TransferType uint8

// Transfer type constants.
const (
	TransferControl     TransferType = 0
	TransferIsochronous TransferType = 1
	TransferBulk        TransferType = 2
	TransferInterrupt   TransferType = 3
)

// PollEvent is a readiness bitmask for a watched file descriptor.
type PollEvent uint8

// Poll event bits.
const (
	PollReadable PollEvent = 1 << 0
	PollWritable PollEvent = 1 << 1
)

// PollFd is a file descriptor the backend needs watched, plus the
// events it is interested in.
type PollFd struct {
	FD     int
	Events PollEvent
}

// PollFDSink receives pollfd add/remove notifications from a Backend.
// The core's poll-FD registry implements this; a Backend never sees the
// core's concrete types, only this narrow interface, so the two layers
// never import each other.
type PollFDSink interface {
	AddPollFD(fd int, events PollEvent)
	RemovePollFD(fd int)
}

// Device is the backend's view of a USB device: the fields the core
// needs (bus/address/session ID/config count) plus a backend-private
// block. The core's registry wraps one of these per physical device
// attachment.
type Device struct {
	Bus               uint8
	Address           uint8
	SessionID         uint64
	NumConfigurations uint8

	// Priv is backend-private device state. Unlike the C original, Go
	// has no reason to preallocate a fixed-size block inline after the
	// core struct; DevicePrivSize is kept only as a declared-capability
	// method backends may use for pool sizing hints.
	Priv any
}

// Handle is the backend's view of an open device session.
type Handle struct {
	Device *Device
	Priv   any
}

// EndpointDescriptor is the minimal per-endpoint information the core's
// GetMaxPacketSize helper needs. Full descriptor parsing is out of
// scope for the core (spec §1); the backend supplies only this.
type EndpointDescriptor struct {
	Address       uint8
	Attributes    uint8
	MaxPacketSize uint16
}

// ConfigDescriptor is the minimal parsed active-configuration view the
// core consumes: the configuration value, interface count, and the
// endpoint table GetMaxPacketSize looks up against.
type ConfigDescriptor struct {
	ConfigurationValue uint8
	NumInterfaces      uint8
	Endpoints          []EndpointDescriptor
}

// Outcome is what a Backend reports when a submitted Transfer reaches a
// terminal state. Cancelled distinguishes "this reap is the result of a
// CancelTransfer the core asked for" from a transfer that ran to
// natural completion — it is the Go-native collapse of the two distinct
// core callbacks (handle_transfer_completion / handle_transfer_
// cancellation) the spec's backend contract describes; the core's
// Transfer.onBackendDone dispatches on it the same way.
type Outcome struct {
	Status       Status
	ActualLength int
	Cancelled    bool
}

// Transfer is the backend's view of one in-flight USB transfer. The
// core constructs one per submission and never reuses it.
type Transfer struct {
	Handle   *Handle
	Endpoint uint8
	Type     TransferType
	Data     []byte

	// Priv is backend-private transfer state (URB, slot index, etc).
	Priv any

	// Done is invoked by the backend exactly once, when the transfer
	// reaches a terminal state. The core supplies this before calling
	// SubmitTransfer; a backend must never call it more than once and
	// must never call it from within SubmitTransfer itself (completion
	// is always reported from HandleEvents).
	Done func(Outcome)
}

// KernelDriverCapable is implemented by backends that can report and
// detach an attached kernel driver. The core checks for it with a type
// assertion and returns ErrNotSupported when absent (spec §6.1).
type KernelDriverCapable interface {
	KernelDriverActive(h *Handle, iface uint8) (bool, error)
	DetachKernelDriver(h *Handle, iface uint8) error
}

// Backend is the capability set the core requires from an OS-specific
// USB transport (spec §6.1). Exactly one implementation is linked in at
// build time; the core never assumes anything beyond this interface.
type Backend interface {
	Init(ctx context.Context, sink PollFDSink) error
	Exit() error

	GetDeviceList(ctx context.Context) ([]*Device, error)
	DestroyDevice(d *Device)

	Open(d *Device) (*Handle, error)
	Close(h *Handle) error

	GetDeviceDescriptor(d *Device) (raw [18]byte, hostEndian bool, err error)
	GetActiveConfigDescriptor(d *Device) (*ConfigDescriptor, error)

	SetConfiguration(h *Handle, value int) error
	ClaimInterface(h *Handle, iface uint8) error
	ReleaseInterface(h *Handle, iface uint8) error
	SetInterfaceAltSetting(h *Handle, iface, alt uint8) error
	ClearHalt(h *Handle, endpoint uint8) error
	ResetDevice(h *Handle) error

	SubmitTransfer(t *Transfer) error
	CancelTransfer(t *Transfer) error
	HandleEvents(ready []PollFd) error

	DevicePrivSize() int
	DeviceHandlePrivSize() int
	TransferPrivSize() int
}
