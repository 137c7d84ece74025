package registry

import (
	"sync"
	"sync/atomic"

	"github.com/usbgo/usbgo/backend"
	"github.com/usbgo/usbgo/internal/obs"
)

// Device is a registry entry for one physical device attachment. The
// registry weakly tracks Devices: membership in the registry is not
// ownership. Strong references live in user code and in each open
// DeviceHandle (spec §3).
type Device struct {
	// Backend is the backend's view of the device (bus/address/session
	// ID/config count/private block). Read-only after Alloc except for
	// the bus/address/config-count refresh Ensure performs on
	// re-enumeration.
	Backend *backend.Device

	refcount atomic.Int32
}

// SessionID returns the backend-assigned session ID that uniquely
// identifies this physical device attachment.
func (d *Device) SessionID() uint64 { return d.Backend.SessionID }

// BusNumber returns the bus number.
func (d *Device) BusNumber() uint8 { return d.Backend.Bus }

// DeviceAddress returns the device address on its bus.
func (d *Device) DeviceAddress() uint8 { return d.Backend.Address }

// NumConfigurations returns the device's number of configurations.
func (d *Device) NumConfigurations() uint8 { return d.Backend.NumConfigurations }

// RefCount returns the current reference count. Exposed for tests and
// diagnostics; not part of the steady-state API contract.
func (d *Device) RefCount() int32 { return d.refcount.Load() }

// Registry is the process-wide set of known devices, keyed by session
// ID. The registry lock protects list linkage only; refcount mutation
// is lock-free (an atomic int32 needs no separate per-device lock and
// therefore cannot violate the registry > ... > per-device lock
// ordering spec §5 requires).
type Registry struct {
	mu      sync.Mutex
	byID    map[uint64]*Device
	destroy func(*backend.Device)
}

// New creates an empty Registry. destroy is called exactly once per
// Device, after its refcount reaches zero and it has been delinked,
// to release the backend-private block (spec §4.1).
func New(destroy func(*backend.Device)) *Registry {
	return &Registry{
		byID:    make(map[uint64]*Device),
		destroy: destroy,
	}
}

// Alloc creates a new Device for bd with refcount 1 and publishes it
// under the registry lock.
func (r *Registry) Alloc(bd *backend.Device) *Device {
	d := &Device{Backend: bd}
	d.refcount.Store(1)

	r.mu.Lock()
	r.byID[bd.SessionID] = d
	r.mu.Unlock()

	obs.Debug(obs.ComponentRegistry, "allocated device", obs.SessionAttr(bd.SessionID))
	return d
}

// Find returns the Device registered under sessionID, or nil. It does
// not change the refcount; the caller must Ref it if it intends to keep
// a reference beyond the registry lock's scope.
func (r *Registry) Find(sessionID uint64) *Device {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byID[sessionID]
}

// Ensure re-associates a re-enumeration with the Device already
// registered under bd's session ID, if any, so stable user references
// survive re-scans; otherwise it allocates a fresh Device. The returned
// Device always carries one additional reference the caller owns.
func (r *Registry) Ensure(bd *backend.Device) *Device {
	r.mu.Lock()
	existing, ok := r.byID[bd.SessionID]
	if ok {
		existing.Backend.Bus = bd.Bus
		existing.Backend.Address = bd.Address
		existing.Backend.NumConfigurations = bd.NumConfigurations
		existing.refcount.Add(1)
	}
	r.mu.Unlock()

	if ok {
		return existing
	}
	return r.Alloc(bd)
}

// Ref increments d's reference count.
func (r *Registry) Ref(d *Device) {
	d.refcount.Add(1)
}

// Unref decrements d's reference count. On the 1->0 transition, d is
// delinked from the registry and its backend-private block released.
func (r *Registry) Unref(d *Device) {
	if d.refcount.Add(-1) != 0 {
		return
	}

	r.mu.Lock()
	delete(r.byID, d.Backend.SessionID)
	r.mu.Unlock()

	obs.Debug(obs.ComponentRegistry, "destroying device", obs.SessionAttr(d.Backend.SessionID))
	if r.destroy != nil {
		r.destroy(d.Backend)
	}
}

// Len returns the number of devices currently registered. Exposed for
// tests and diagnostics.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}
