package usbgo_test

import "time"

// fakeClock lets tests advance time deterministically instead of
// sleeping, so deadline-expiry behavior doesn't depend on real wall
// clock timing.
type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1700000000, 0)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }
