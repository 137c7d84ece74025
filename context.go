package usbgo

import (
	"context"
	"sync"

	"github.com/usbgo/usbgo/backend"
	"github.com/usbgo/usbgo/clock"
	"github.com/usbgo/usbgo/internal/metrics"
	"github.com/usbgo/usbgo/internal/obs"
	"github.com/usbgo/usbgo/registry"
)

// Context owns one backend and everything that depends on it: the
// device registry, the open-handle table, the in-flight transfer
// scheduler, and the pollfd set. Most programs need exactly one.
type Context struct {
	be  backend.Backend
	clk clock.Clock
	reg *registry.Registry

	handles handleTable
	sched   scheduler
	pfds    pollFDRegistry

	// schedMu guards the scheduler's linkage and every Transfer's
	// engine-private flags/deadline. engineMu is unrelated: it only
	// ensures a single goroutine is ever inside the blocking select
	// call at once, so it is never held across a Submit or Cancel.
	schedMu  sync.Mutex
	engineMu sync.Mutex
	metrics  *metrics.Recorder
}

// Option configures a Context at construction time.
type Option func(*Context)

// WithClock overrides the Context's time source. Tests use this to
// substitute a fake clock so deadline behavior doesn't depend on
// wall-clock sleeps.
func WithClock(c clock.Clock) Option {
	return func(ctx *Context) { ctx.clk = c }
}

// WithMetrics attaches a Prometheus-backed recorder. Omit this option
// and the engine runs with no instrumentation overhead beyond a nil
// check per event.
func WithMetrics(m *metrics.Recorder) Option {
	return func(ctx *Context) { ctx.metrics = m }
}

// NewContext creates a Context around be and initializes it. be.Init is
// called with the Context's pollfd registry as the sink, so any fds the
// backend wants watched before GetDeviceList is first called are
// already tracked.
func NewContext(be backend.Backend, opts ...Option) (*Context, error) {
	c := &Context{
		be:  be,
		clk: clock.Real{},
	}
	c.pfds.fds = make(map[int]backend.PollEvent)
	c.handles.open = make(map[*DeviceHandle]struct{})

	for _, opt := range opts {
		opt(c)
	}

	c.reg = registry.New(be.DestroyDevice)

	if err := be.Init(context.Background(), &c.pfds); err != nil {
		return nil, err
	}
	return c, nil
}

// Exit tears down the backend. Any DeviceHandle still open is force-
// closed first, with a warning logged for each: an embedder that leaks
// handles past Exit has a bug, but the engine still needs to return its
// backend to a clean state.
func (c *Context) Exit() error {
	c.handles.mu.Lock()
	leaked := c.handles.open
	c.handles.open = make(map[*DeviceHandle]struct{})
	c.handles.mu.Unlock()

	for h := range leaked {
		obs.Warn(obs.ComponentHandle, "force-closing handle outliving context teardown",
			obs.SessionAttr(h.device.SessionID()))
		if err := c.be.Close(h.backendHandle); err != nil {
			obs.Warn(obs.ComponentHandle, "backend close failed during forced teardown", "error", err)
		}
		c.reg.Unref(h.device)
	}

	return c.be.Exit()
}
