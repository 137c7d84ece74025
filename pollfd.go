package usbgo

import (
	"sync"

	"github.com/usbgo/usbgo/backend"
)

// pollFDRegistry is the core's implementation of backend.PollFDSink: the
// set of file descriptors a backend currently wants watched, plus the
// optional notifier callbacks an embedder installs via
// Context.SetPollFDNotifiers to learn about additions/removals without
// polling GetPollFDs itself (spec §7.6).
type pollFDRegistry struct {
	mu      sync.Mutex
	fds     map[int]backend.PollEvent
	added   func(fd int, events backend.PollEvent)
	removed func(fd int)
}

// AddPollFD implements backend.PollFDSink.
func (p *pollFDRegistry) AddPollFD(fd int, events backend.PollEvent) {
	p.mu.Lock()
	p.fds[fd] = events
	added := p.added
	p.mu.Unlock()

	if added != nil {
		added(fd, events)
	}
}

// RemovePollFD implements backend.PollFDSink.
func (p *pollFDRegistry) RemovePollFD(fd int) {
	p.mu.Lock()
	delete(p.fds, fd)
	removed := p.removed
	p.mu.Unlock()

	if removed != nil {
		removed(fd)
	}
}

// snapshot returns the currently watched descriptors. Safe to call
// concurrently with AddPollFD/RemovePollFD; the result reflects some
// consistent point in time, not necessarily the very latest.
func (p *pollFDRegistry) snapshot() []backend.PollFd {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]backend.PollFd, 0, len(p.fds))
	for fd, ev := range p.fds {
		out = append(out, backend.PollFd{FD: fd, Events: ev})
	}
	return out
}

// GetPollFDs returns the file descriptors the active backend currently
// wants watched. An embedder running its own event loop instead of
// calling Poll/PollTimeout uses this to seed that loop, and must call
// PollTimeout(0) whenever one of them becomes ready.
func (c *Context) GetPollFDs() []backend.PollFd {
	return c.pfds.snapshot()
}

// SetPollFDNotifiers installs callbacks for pollfd set changes. Either
// argument may be nil. Notifiers run synchronously, inline with whatever
// backend call triggered the change.
func (c *Context) SetPollFDNotifiers(added func(fd int, events backend.PollEvent), removed func(fd int)) {
	c.pfds.mu.Lock()
	c.pfds.added = added
	c.pfds.removed = removed
	c.pfds.mu.Unlock()
}
