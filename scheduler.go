package usbgo

import (
	"time"

	"github.com/usbgo/usbgo/clock"
)

// scheduler is the in-flight transfer list, kept sorted by ascending
// deadline with unset deadlines trailing (spec §7.8 / §4.5). It carries
// no lock of its own: every caller holds Context.schedMu around each
// call into it, which makes those calls mutually exclusive, the same way
// the teacher's ioctl submission path relied on callers already holding
// the relevant device lock instead of re-locking internally.
type scheduler struct {
	head, tail *Transfer
	n          int
}

// insert links t before the first entry whose deadline is unset, or
// strictly later than t's. This keeps the list sorted without a
// separate pass: earliest deadlines lead, unset deadlines always trail.
func (s *scheduler) insert(t *Transfer) {
	var prev *Transfer
	cur := s.head
	for cur != nil {
		if !cur.deadline.IsSet() || t.deadline.Before(cur.deadline) {
			break
		}
		prev = cur
		cur = cur.next
	}

	t.prev, t.next = prev, cur
	if prev != nil {
		prev.next = t
	} else {
		s.head = t
	}
	if cur != nil {
		cur.prev = t
	} else {
		s.tail = t
	}
	t.linked = true
	s.n++
}

// remove delinks t in O(1). A no-op if t is not currently linked.
func (s *scheduler) remove(t *Transfer) {
	if !t.linked {
		return
	}
	if t.prev != nil {
		t.prev.next = t.next
	} else {
		s.head = t.next
	}
	if t.next != nil {
		t.next.prev = t.prev
	} else {
		s.tail = t.prev
	}
	t.prev, t.next = nil, nil
	t.linked = false
	s.n--
}

// nearestDeadline returns the deadline of the earliest-scheduled entry
// that is not already latched TIMED_OUT, skipping over latched entries
// that haven't been reaped yet. It returns an unset deadline if there is
// nothing left to wait on.
func (s *scheduler) nearestDeadline() clock.Deadline {
	for cur := s.head; cur != nil; cur = cur.next {
		if cur.flags&engineFlagTimedOut != 0 {
			continue
		}
		return cur.deadline
	}
	return clock.Unset()
}

// sweepExpired returns every entry whose deadline has passed as of now,
// stopping at the first entry with an unset or not-yet-expired deadline
// (the list is sorted, so nothing past that point can be expired
// either). Entries already latched TIMED_OUT are skipped, not treated
// as a stopping point, since a latched entry's own deadline value is no
// longer meaningful once its cancellation is already in flight.
func (s *scheduler) sweepExpired(now time.Time) []*Transfer {
	var expired []*Transfer
	for cur := s.head; cur != nil; cur = cur.next {
		if cur.flags&engineFlagTimedOut != 0 {
			continue
		}
		if !cur.deadline.IsSet() || !cur.deadline.Expired(now) {
			break
		}
		expired = append(expired, cur)
	}
	return expired
}

// len returns the number of linked transfers.
func (s *scheduler) len() int { return s.n }
