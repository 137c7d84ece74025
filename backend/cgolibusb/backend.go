//go:build cgolibusb

package cgolibusb

import (
	"context"
	"fmt"
	"sync"

	"github.com/gotmc/libusb/v2"
	"golang.org/x/sys/unix"

	"github.com/usbgo/usbgo/backend"
	"github.com/usbgo/usbgo/internal/obs"
)

// devNode is the backend-private state stashed in backend.Device.Priv.
type devNode struct {
	dev *libusb.Device
}

// devHandle is the backend-private state stashed in backend.Handle.Priv.
// completions and eventFD are shared with the transfer goroutines spawned
// against this handle; eventFD is the fd registered with the core's
// poll-FD sink so HandleEvents gets invoked once a goroutine finishes.
type devHandle struct {
	handle  *libusb.DeviceHandle
	eventFD int

	mu          sync.Mutex
	completions []completion
}

type completion struct {
	transfer *backend.Transfer
	outcome  backend.Outcome
}

// Backend adapts github.com/gotmc/libusb/v2's synchronous transfer API
// to backend.Backend's async submit/HandleEvents contract.
type Backend struct {
	sink backend.PollFDSink
	ctx  *libusb.Context

	mu   sync.Mutex
	byFD map[int]*devHandle
}

// New returns an uninitialized cgolibusb Backend.
func New() *Backend {
	return &Backend{}
}

// Init opens a libusb context and remembers sink for later pollfd
// registration; one eventfd is registered per opened Handle, not here,
// since libusb/v2 has no context-wide completion fd of its own.
func (b *Backend) Init(ctx context.Context, sink backend.PollFDSink) error {
	libctx, err := libusb.NewContext()
	if err != nil {
		return fmt.Errorf("cgolibusb: new context: %w", err)
	}
	b.ctx = libctx
	b.sink = sink
	b.byFD = make(map[int]*devHandle)
	obs.Debug(obs.ComponentBackend, "cgolibusb backend initialized")
	return nil
}

// Exit closes the libusb context.
func (b *Backend) Exit() error {
	if b.ctx == nil {
		return nil
	}
	return b.ctx.Close()
}

// GetDeviceList enumerates attached devices through libusb.
func (b *Backend) GetDeviceList(ctx context.Context) ([]*backend.Device, error) {
	devs, err := b.ctx.GetDeviceList()
	if err != nil {
		return nil, fmt.Errorf("cgolibusb: get device list: %w", err)
	}
	out := make([]*backend.Device, 0, len(devs))
	for _, d := range devs {
		busNum, err := d.GetBusNumber()
		if err != nil {
			continue
		}
		devAddr, err := d.GetDeviceAddress()
		if err != nil {
			continue
		}
		desc, err := d.GetDeviceDescriptor()
		if err != nil {
			continue
		}
		out = append(out, &backend.Device{
			Bus:               busNum,
			Address:           devAddr,
			SessionID:         uint64(busNum)<<8 | uint64(devAddr),
			NumConfigurations: desc.NumConfigurations,
			Priv:              &devNode{dev: d},
		})
	}
	return out, nil
}

// DestroyDevice is a no-op; libusb's *Device is reference-counted by the
// context and freed when the context closes.
func (b *Backend) DestroyDevice(d *backend.Device) {}

// Open opens the device, registers an eventfd for its completion queue,
// and wires it into the poll-FD sink.
func (b *Backend) Open(d *backend.Device) (*backend.Handle, error) {
	node := d.Priv.(*devNode)
	lh, err := node.dev.Open()
	if err != nil {
		return nil, fmt.Errorf("cgolibusb: open: %w", err)
	}

	efd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		lh.Close()
		return nil, fmt.Errorf("cgolibusb: eventfd: %w", err)
	}

	dh := &devHandle{handle: lh, eventFD: efd}
	b.mu.Lock()
	b.byFD[efd] = dh
	b.mu.Unlock()
	b.sink.AddPollFD(efd, backend.PollReadable)

	return &backend.Handle{Device: d, Priv: dh}, nil
}

// Close releases the eventfd registration and closes the libusb handle.
func (b *Backend) Close(h *backend.Handle) error {
	dh := h.Priv.(*devHandle)
	b.sink.RemovePollFD(dh.eventFD)
	b.mu.Lock()
	delete(b.byFD, dh.eventFD)
	b.mu.Unlock()
	unix.Close(dh.eventFD)
	return dh.handle.Close()
}

// GetDeviceDescriptor returns libusb's 18-byte raw device descriptor.
// libusb/v2 decodes it into a struct rather than handing back the raw
// wire bytes the core wants, so it is re-encoded here in USB's
// documented little-endian layout.
func (b *Backend) GetDeviceDescriptor(d *backend.Device) (raw [18]byte, hostEndian bool, err error) {
	node := d.Priv.(*devNode)
	desc, err := node.dev.GetDeviceDescriptor()
	if err != nil {
		return raw, false, fmt.Errorf("cgolibusb: get device descriptor: %w", err)
	}
	raw[0] = 18
	raw[1] = 1 // DEVICE descriptor type
	le16(raw[2:4], desc.USBSpecification)
	raw[4] = desc.DeviceClass
	raw[5] = desc.DeviceSubClass
	raw[6] = desc.DeviceProtocol
	raw[7] = desc.MaxPacketSize0
	le16(raw[8:10], desc.VendorID)
	le16(raw[10:12], desc.ProductID)
	le16(raw[12:14], desc.DeviceReleaseNumber)
	raw[14] = desc.ManufacturerIndex
	raw[15] = desc.ProductIndex
	raw[16] = desc.SerialNumberIndex
	raw[17] = desc.NumConfigurations
	return raw, false, nil
}

func le16(dst []byte, v uint16) {
	dst[0] = byte(v)
	dst[1] = byte(v >> 8)
}

// GetActiveConfigDescriptor flattens libusb's nested interface/alt-
// setting/endpoint descriptor tree into the core's table form.
func (b *Backend) GetActiveConfigDescriptor(d *backend.Device) (*backend.ConfigDescriptor, error) {
	node := d.Priv.(*devNode)
	cfg, err := node.dev.GetActiveConfigDescriptor()
	if err != nil {
		return nil, fmt.Errorf("cgolibusb: get active config descriptor: %w", err)
	}
	out := &backend.ConfigDescriptor{
		ConfigurationValue: cfg.ConfigurationValue,
		NumInterfaces:      cfg.NumInterfaces,
	}
	for _, iface := range cfg.SupportedInterfaces {
		for _, alt := range iface.AltSettings {
			for _, ep := range alt.EndpointDescriptors {
				out.Endpoints = append(out.Endpoints, backend.EndpointDescriptor{
					Address:       ep.EndpointAddress,
					Attributes:    ep.Attributes,
					MaxPacketSize: ep.MaxPacketSize,
				})
			}
		}
	}
	return out, nil
}

func (b *Backend) SetConfiguration(h *backend.Handle, value int) error {
	dh := h.Priv.(*devHandle)
	return dh.handle.SetConfiguration(value)
}

// ClaimInterface detaches an active kernel driver first, the same
// precondition backend/linux enforces through usbfs's disconnect
// ioctl; libusb/v2 exposes it as a direct method instead.
func (b *Backend) ClaimInterface(h *backend.Handle, iface uint8) error {
	dh := h.Priv.(*devHandle)
	active, err := dh.handle.KernelDriverActive(int(iface))
	if err == nil && active {
		if err := dh.handle.DetachKernelDriver(int(iface)); err != nil {
			return fmt.Errorf("cgolibusb: detach kernel driver: %w", err)
		}
	}
	return dh.handle.ClaimInterface(int(iface))
}

func (b *Backend) ReleaseInterface(h *backend.Handle, iface uint8) error {
	dh := h.Priv.(*devHandle)
	return dh.handle.ReleaseInterface(int(iface))
}

func (b *Backend) SetInterfaceAltSetting(h *backend.Handle, iface, alt uint8) error {
	dh := h.Priv.(*devHandle)
	return dh.handle.SetInterfaceAltSetting(int(iface), int(alt))
}

func (b *Backend) ClearHalt(h *backend.Handle, endpoint uint8) error {
	dh := h.Priv.(*devHandle)
	return dh.handle.ClearHalt(endpoint)
}

func (b *Backend) ResetDevice(h *backend.Handle) error {
	dh := h.Priv.(*devHandle)
	return dh.handle.ResetDevice()
}

// KernelDriverActive and DetachKernelDriver implement
// backend.KernelDriverCapable directly against libusb/v2's own methods,
// unlike backend/linux's disconnect-and-probe workaround.
func (b *Backend) KernelDriverActive(h *backend.Handle, iface uint8) (bool, error) {
	dh := h.Priv.(*devHandle)
	return dh.handle.KernelDriverActive(int(iface))
}

func (b *Backend) DetachKernelDriver(h *backend.Handle, iface uint8) error {
	dh := h.Priv.(*devHandle)
	return dh.handle.DetachKernelDriver(int(iface))
}

func (b *Backend) DevicePrivSize() int       { return 0 }
func (b *Backend) DeviceHandlePrivSize() int { return 0 }
func (b *Backend) TransferPrivSize() int     { return 0 }

var (
	_ backend.Backend             = (*Backend)(nil)
	_ backend.KernelDriverCapable = (*Backend)(nil)
)
