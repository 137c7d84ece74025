package usbgo

import (
	"testing"
	"time"

	"github.com/usbgo/usbgo/clock"
)

func orderedDeadlines(s *scheduler) []clock.Deadline {
	var out []clock.Deadline
	for cur := s.head; cur != nil; cur = cur.next {
		out = append(out, cur.deadline)
	}
	return out
}

func TestSchedulerInsertOrdersByDeadlineUnsetLast(t *testing.T) {
	now := time.Unix(1000, 0)
	s := &scheduler{}

	a := &Transfer{deadline: clock.FromTimeout(now, 300)}
	b := &Transfer{deadline: clock.FromTimeout(now, 100)}
	c := &Transfer{deadline: clock.Unset()}
	d := &Transfer{deadline: clock.FromTimeout(now, 200)}

	s.insert(a)
	s.insert(b)
	s.insert(c)
	s.insert(d)

	if s.len() != 4 {
		t.Fatalf("len = %d, want 4", s.len())
	}
	order := orderedDeadlines(s)
	if !(order[0].Before(order[1]) && order[1].Before(order[2]) && !order[3].IsSet()) {
		t.Fatalf("scheduler did not sort ascending with unset trailing: %+v", order)
	}
	if s.head != b || s.tail != c {
		t.Fatalf("head/tail pointers wrong: head=%v tail=%v", s.head, s.tail)
	}
}

func TestSchedulerRemoveIsIdempotent(t *testing.T) {
	now := time.Unix(1000, 0)
	s := &scheduler{}
	a := &Transfer{deadline: clock.FromTimeout(now, 100)}
	b := &Transfer{deadline: clock.FromTimeout(now, 200)}
	s.insert(a)
	s.insert(b)

	s.remove(a)
	if s.len() != 1 || s.head != b {
		t.Fatalf("remove did not delink a: len=%d head=%v", s.len(), s.head)
	}

	// Removing an already-unlinked entry must be a no-op, not a panic or
	// a double-decrement.
	s.remove(a)
	if s.len() != 1 {
		t.Fatalf("len = %d after redundant remove, want 1", s.len())
	}
}

func TestSchedulerNearestDeadlineSkipsTimedOutLatch(t *testing.T) {
	now := time.Unix(1000, 0)
	s := &scheduler{}
	a := &Transfer{deadline: clock.FromTimeout(now, 100), flags: engineFlagTimedOut}
	b := &Transfer{deadline: clock.FromTimeout(now, 200)}
	s.insert(a)
	s.insert(b)

	nd := s.nearestDeadline()
	if !nd.IsSet() {
		t.Fatalf("nearestDeadline returned unset, want b's deadline")
	}
	bt, _ := b.deadline.Time()
	got, _ := nd.Time()
	if !got.Equal(bt) {
		t.Fatalf("nearestDeadline = %v, want %v (latched a skipped)", got, bt)
	}
}

func TestSchedulerSweepExpiredStopsAtFirstUnexpired(t *testing.T) {
	now := time.Unix(1000, 0)
	s := &scheduler{}
	expired1 := &Transfer{deadline: clock.FromTimeout(now, 10)}
	expired2 := &Transfer{deadline: clock.FromTimeout(now, 20)}
	notYet := &Transfer{deadline: clock.FromTimeout(now, 500)}
	unset := &Transfer{deadline: clock.Unset()}
	s.insert(expired1)
	s.insert(expired2)
	s.insert(notYet)
	s.insert(unset)

	later := now.Add(100 * time.Millisecond)
	got := s.sweepExpired(later)
	if len(got) != 2 || got[0] != expired1 || got[1] != expired2 {
		t.Fatalf("sweepExpired = %v, want [expired1 expired2]", got)
	}
}

func TestSchedulerSweepExpiredSkipsAlreadyLatched(t *testing.T) {
	now := time.Unix(1000, 0)
	s := &scheduler{}
	latched := &Transfer{deadline: clock.FromTimeout(now, 10), flags: engineFlagTimedOut}
	expired := &Transfer{deadline: clock.FromTimeout(now, 20)}
	s.insert(latched)
	s.insert(expired)

	got := s.sweepExpired(now.Add(time.Second))
	if len(got) != 1 || got[0] != expired {
		t.Fatalf("sweepExpired = %v, want [expired] (latched entry must be skipped, not re-swept)", got)
	}
}
