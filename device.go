package usbgo

import (
	"context"
	"encoding/binary"

	"github.com/usbgo/usbgo/registry"
)

// GetDeviceList asks the backend for every currently attached device,
// sanitizes the result, and reconciles it against the registry so a
// device already known from a previous scan keeps its identity (spec
// §4.2). The returned slice holds exactly one reference per entry,
// owned by the caller; pass it to FreeDeviceList when done.
func (c *Context) GetDeviceList(ctx context.Context) ([]*registry.Device, error) {
	discovered, err := c.be.GetDeviceList(ctx)
	if err != nil {
		return nil, err
	}

	devices := make([]*registry.Device, 0, len(discovered))
	for _, bd := range discovered {
		if bd.NumConfigurations == 0 || bd.NumConfigurations > maxConfigurations {
			c.be.DestroyDevice(bd)
			continue
		}
		devices = append(devices, c.reg.Ensure(bd))
	}
	return devices, nil
}

// FreeDeviceList releases a list returned by GetDeviceList. When unref
// is true (the normal case) every entry's reference is dropped, which
// may destroy devices with no other references outstanding.
func (c *Context) FreeDeviceList(list []*registry.Device, unref bool) {
	if !unref {
		return
	}
	for _, d := range list {
		c.reg.Unref(d)
	}
}

// RefDevice takes an additional reference on d and returns it, for
// callers that want to hold onto a Device beyond the list it came from
// or the handle it was opened through.
func (c *Context) RefDevice(d *registry.Device) *registry.Device {
	c.reg.Ref(d)
	return d
}

// UnrefDevice releases a reference taken with RefDevice or implicitly
// held by a device list entry.
func (c *Context) UnrefDevice(d *registry.Device) {
	c.reg.Unref(d)
}

// GetBusNumber returns d's USB bus number.
func (c *Context) GetBusNumber(d *registry.Device) uint8 { return d.BusNumber() }

// GetDeviceAddress returns d's address on its bus.
func (c *Context) GetDeviceAddress(d *registry.Device) uint8 { return d.DeviceAddress() }

// GetMaxPacketSize looks up the wMaxPacketSize of endpoint in d's
// active configuration descriptor. It returns ErrNotFound if no
// endpoint with that address exists.
func (c *Context) GetMaxPacketSize(d *registry.Device, endpoint uint8) (uint16, error) {
	cfg, err := c.be.GetActiveConfigDescriptor(d.Backend)
	if err != nil {
		return 0, err
	}
	for _, ep := range cfg.Endpoints {
		if ep.Address == endpoint {
			return ep.MaxPacketSize, nil
		}
	}
	return 0, ErrNotFound
}

// GetDeviceDescriptor returns d's raw 18-byte USB device descriptor, as
// reported by the active backend. hostEndian reports whether the
// multi-byte fields have already been converted to the host's native
// byte order; parseVendorProduct and similar callers need to know this
// to decode idVendor/idProduct correctly.
func (c *Context) GetDeviceDescriptor(d *registry.Device) (raw [18]byte, hostEndian bool, err error) {
	return c.be.GetDeviceDescriptor(d.Backend)
}

// OpenDeviceWithVIDPID enumerates attached devices and opens the first
// one whose device descriptor reports the given vendor and product IDs.
// It returns ErrNoDevice if none matches. This is a convenience
// wrapper; callers needing more control should use GetDeviceList and
// Open directly.
func (c *Context) OpenDeviceWithVIDPID(ctx context.Context, vendor, product uint16) (*DeviceHandle, error) {
	list, err := c.GetDeviceList(ctx)
	if err != nil {
		return nil, err
	}
	defer c.FreeDeviceList(list, true)

	for _, d := range list {
		raw, hostEndian, err := c.GetDeviceDescriptor(d)
		if err != nil {
			continue
		}
		v, p := parseVendorProduct(raw, hostEndian)
		if v == vendor && p == product {
			return c.Open(ctx, d)
		}
	}
	return nil, ErrNoDevice
}

// parseVendorProduct extracts idVendor and idProduct from a raw 18-byte
// USB device descriptor. Both fields are encoded little-endian on the
// wire; hostEndian true means the backend already converted them to
// the host's native order before returning raw.
func parseVendorProduct(raw [18]byte, hostEndian bool) (vendor, product uint16) {
	if hostEndian {
		return binary.NativeEndian.Uint16(raw[8:10]), binary.NativeEndian.Uint16(raw[10:12])
	}
	return binary.LittleEndian.Uint16(raw[8:10]), binary.LittleEndian.Uint16(raw[10:12])
}
