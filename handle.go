package usbgo

import (
	"context"
	"sync"

	"github.com/usbgo/usbgo/backend"
	"github.com/usbgo/usbgo/registry"
)

// handleTable is the set of currently open handles, used only so Exit
// can force-close anything an embedder failed to close itself.
type handleTable struct {
	mu   sync.Mutex
	open map[*DeviceHandle]struct{}
}

func (ht *handleTable) add(h *DeviceHandle) {
	ht.mu.Lock()
	ht.open[h] = struct{}{}
	ht.mu.Unlock()
}

func (ht *handleTable) remove(h *DeviceHandle) {
	ht.mu.Lock()
	delete(ht.open, h)
	ht.mu.Unlock()
}

// DeviceHandle is an open session on a Device: a backend handle plus
// the claimed-interface bitmap the core tracks on the backend's behalf
// (spec §4.3). A DeviceHandle holds one strong reference on its Device,
// released by Close.
type DeviceHandle struct {
	ctx           *Context
	device        *registry.Device
	backendHandle *backend.Handle

	mu      sync.Mutex
	claimed [4]uint32 // ClaimedInterfaceBitmapWidth bits
}

// Device returns the Device this handle was opened on.
func (h *DeviceHandle) Device() *registry.Device { return h.device }

// Open opens d, taking one extra reference on it for the lifetime of
// the returned handle. On backend failure the reference is released
// and the error is returned unchanged.
func (c *Context) Open(ctx context.Context, d *registry.Device) (*DeviceHandle, error) {
	c.reg.Ref(d)

	bh, err := c.be.Open(d.Backend)
	if err != nil {
		c.reg.Unref(d)
		return nil, err
	}

	h := &DeviceHandle{ctx: c, device: d, backendHandle: bh}
	c.handles.add(h)
	return h, nil
}

// Close closes h and releases the reference Open took on its Device.
func (c *Context) Close(h *DeviceHandle) error {
	c.handles.remove(h)
	err := c.be.Close(h.backendHandle)
	c.reg.Unref(h.device)
	return err
}

// ClaimInterface claims iface, delegating to the backend only on the
// first claim; repeat calls on an already-claimed interface are a
// cheap no-op (spec §4.3).
func (h *DeviceHandle) ClaimInterface(iface uint8) error {
	if iface >= ClaimedInterfaceBitmapWidth {
		return ErrInvalidParam
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.bitTest(iface) {
		return nil
	}
	if err := h.ctx.be.ClaimInterface(h.backendHandle, iface); err != nil {
		return err
	}
	h.bitSet(iface)
	return nil
}

// ReleaseInterface releases a previously claimed iface. It fails with
// ErrNotFound if iface was never claimed through this handle.
func (h *DeviceHandle) ReleaseInterface(iface uint8) error {
	if iface >= ClaimedInterfaceBitmapWidth {
		return ErrInvalidParam
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.bitTest(iface) {
		return ErrNotFound
	}
	if err := h.ctx.be.ReleaseInterface(h.backendHandle, iface); err != nil {
		return err
	}
	h.bitClear(iface)
	return nil
}

// SetInterfaceAltSetting requires iface to already be claimed through
// this handle.
func (h *DeviceHandle) SetInterfaceAltSetting(iface, alt uint8) error {
	if iface >= ClaimedInterfaceBitmapWidth {
		return ErrInvalidParam
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.bitTest(iface) {
		return ErrNotFound
	}
	return h.ctx.be.SetInterfaceAltSetting(h.backendHandle, iface, alt)
}

// ClearHalt clears a stalled endpoint.
func (h *DeviceHandle) ClearHalt(endpoint uint8) error {
	return h.ctx.be.ClearHalt(h.backendHandle, endpoint)
}

// ResetDevice issues a USB port reset.
func (h *DeviceHandle) ResetDevice() error {
	return h.ctx.be.ResetDevice(h.backendHandle)
}

// SetConfiguration sets the device's active configuration. A value of
// -1 requests the unconfigured state.
func (h *DeviceHandle) SetConfiguration(value int) error {
	return h.ctx.be.SetConfiguration(h.backendHandle, value)
}

// KernelDriverActive reports whether a kernel driver is attached to
// iface. It returns ErrNotSupported if the active backend doesn't
// implement backend.KernelDriverCapable.
func (h *DeviceHandle) KernelDriverActive(iface uint8) (bool, error) {
	kd, ok := h.ctx.be.(backend.KernelDriverCapable)
	if !ok {
		return false, ErrNotSupported
	}
	return kd.KernelDriverActive(h.backendHandle, iface)
}

// DetachKernelDriver detaches the kernel driver bound to iface, if any.
// It returns ErrNotSupported if the active backend doesn't implement
// backend.KernelDriverCapable.
func (h *DeviceHandle) DetachKernelDriver(iface uint8) error {
	kd, ok := h.ctx.be.(backend.KernelDriverCapable)
	if !ok {
		return ErrNotSupported
	}
	return kd.DetachKernelDriver(h.backendHandle, iface)
}

func (h *DeviceHandle) bitTest(n uint8) bool { return h.claimed[n/32]&(1<<(n%32)) != 0 }
func (h *DeviceHandle) bitSet(n uint8)       { h.claimed[n/32] |= 1 << (n % 32) }
func (h *DeviceHandle) bitClear(n uint8)     { h.claimed[n/32] &^= 1 << (n % 32) }
