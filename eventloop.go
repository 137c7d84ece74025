package usbgo

import (
	"time"

	"golang.org/x/sys/unix"

	"github.com/usbgo/usbgo/backend"
	"github.com/usbgo/usbgo/internal/obs"
)

// Poll runs one iteration of the event loop, blocking until a watched
// file descriptor becomes ready or the nearest scheduled transfer
// deadline arrives, whichever is sooner. If nothing is scheduled and no
// fds are watched it blocks indefinitely.
func (c *Context) Poll() error {
	return c.pollOnce(nil)
}

// PollTimeout is like Poll but also returns once userTimeout elapses,
// even with nothing scheduled.
func (c *Context) PollTimeout(userTimeout time.Duration) error {
	return c.pollOnce(&userTimeout)
}

// GetNextTimeout reports how long until the nearest scheduled
// transfer's deadline, if any. Embedders driving their own event loop
// use this to bound their own select/epoll wait.
func (c *Context) GetNextTimeout() (time.Duration, bool) {
	c.schedMu.Lock()
	nd := c.sched.nearestDeadline()
	c.schedMu.Unlock()

	if !nd.IsSet() {
		return 0, false
	}
	return nd.Remaining(c.clk.Now())
}

// pollOnce is the shared implementation behind Poll and PollTimeout.
// Only one goroutine may be inside it at a time; a second concurrent
// caller gets ErrBusy immediately rather than blocking, per the
// engine's single-driver contract (spec §5).
func (c *Context) pollOnce(userTimeout *time.Duration) error {
	if !c.engineMu.TryLock() {
		return ErrBusy
	}
	defer c.engineMu.Unlock()

	now := c.clk.Now()
	c.schedMu.Lock()
	nearest := c.sched.nearestDeadline()
	c.schedMu.Unlock()
	wait := selectWait(userTimeout, nearest, now)

	fds := c.pfds.snapshot()
	rset, wset, nfd := buildFDSets(fds)

	var tv *unix.Timeval
	if wait != nil {
		t := unix.NsecToTimeval(wait.Nanoseconds())
		tv = &t
	}

	n, err := unix.Select(nfd, &rset, &wset, nil, tv)
	sweep, handle, retErr := selectOutcome(n, err)
	if retErr != nil {
		return retErr
	}

	if handle {
		ready := readyFDs(fds, &rset, &wset)
		if err := c.be.HandleEvents(ready); err != nil {
			return err
		}
	}
	if sweep {
		c.sweepTimeouts()
	}
	return nil
}

// selectOutcome turns the raw result of the underlying select call into
// what pollOnce should do next. An interrupted syscall (EINTR) reports
// success without handling events or sweeping timeouts, matching the
// reference implementation's poll_io: a signal arriving mid-wait is not
// itself a timeout or a readiness event, so retrying on the next driven
// iteration is the caller's job, not this one's.
func selectOutcome(n int, err error) (sweep, handle bool, retErr error) {
	switch {
	case err == unix.EINTR:
		return false, false, nil
	case err != nil:
		return false, false, err
	case n == 0:
		return true, false, nil
	default:
		return true, true, nil
	}
}

// selectWait combines a caller-supplied timeout with the scheduler's
// nearest deadline, returning whichever is sooner. A nil result means
// block indefinitely.
func selectWait(userTimeout *time.Duration, nearest interface {
	IsSet() bool
	Remaining(time.Time) (time.Duration, bool)
}, now time.Time) *time.Duration {
	var wait *time.Duration
	if userTimeout != nil {
		w := *userTimeout
		wait = &w
	}
	if nearest.IsSet() {
		if rem, ok := nearest.Remaining(now); ok {
			if wait == nil || rem < *wait {
				wait = &rem
			}
		}
	}
	if wait != nil && *wait < 0 {
		z := time.Duration(0)
		wait = &z
	}
	return wait
}

// sweepTimeouts cancels every transfer whose deadline has passed,
// latching engineFlagTimedOut so its eventual cancellation reap is
// reported as StatusTimedOut rather than StatusCancelled.
func (c *Context) sweepTimeouts() {
	now := c.clk.Now()

	c.schedMu.Lock()
	expired := c.sched.sweepExpired(now)
	for _, t := range expired {
		t.flags |= engineFlagTimedOut
	}
	c.schedMu.Unlock()

	for _, t := range expired {
		if err := c.be.CancelTransfer(t.backendTransfer); err != nil {
			obs.Warn(obs.ComponentEventLoop, "timeout cancel failed", "error", err)
		}
	}
}

// buildFDSets turns the watched pollfds into read/write fd_set
// bitmaps plus the nfds value unix.Select expects.
func buildFDSets(fds []backend.PollFd) (r, w unix.FdSet, nfd int) {
	for _, pf := range fds {
		if pf.FD+1 > nfd {
			nfd = pf.FD + 1
		}
		if pf.Events&backend.PollReadable != 0 {
			fdSetAdd(&r, pf.FD)
		}
		if pf.Events&backend.PollWritable != 0 {
			fdSetAdd(&w, pf.FD)
		}
	}
	return r, w, nfd
}

// readyFDs reduces the post-select fd_sets back to the subset of
// watched pollfds that actually became ready.
func readyFDs(fds []backend.PollFd, rset, wset *unix.FdSet) []backend.PollFd {
	var ready []backend.PollFd
	for _, pf := range fds {
		var ev backend.PollEvent
		if pf.Events&backend.PollReadable != 0 && fdSetIsSet(rset, pf.FD) {
			ev |= backend.PollReadable
		}
		if pf.Events&backend.PollWritable != 0 && fdSetIsSet(wset, pf.FD) {
			ev |= backend.PollWritable
		}
		if ev != 0 {
			ready = append(ready, backend.PollFd{FD: pf.FD, Events: ev})
		}
	}
	return ready
}

func fdSetAdd(set *unix.FdSet, fd int) {
	set.Bits[fd/64] |= 1 << (uint(fd) % 64)
}

func fdSetIsSet(set *unix.FdSet, fd int) bool {
	return set.Bits[fd/64]&(1<<(uint(fd)%64)) != 0
}
