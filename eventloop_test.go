package usbgo

import (
	"errors"
	"testing"

	"golang.org/x/sys/unix"
)

func TestSelectOutcomeInterruptedSyscallReturnsSuccessWithoutSweepOrHandle(t *testing.T) {
	sweep, handle, err := selectOutcome(-1, unix.EINTR)
	if err != nil {
		t.Fatalf("err = %v, want nil", err)
	}
	if sweep || handle {
		t.Fatalf("sweep=%v handle=%v, want both false on EINTR", sweep, handle)
	}
}

func TestSelectOutcomePropagatesOtherErrors(t *testing.T) {
	wantErr := errors.New("select: bad file descriptor")
	sweep, handle, err := selectOutcome(-1, wantErr)
	if err != wantErr {
		t.Fatalf("err = %v, want %v", err, wantErr)
	}
	if sweep || handle {
		t.Fatalf("sweep=%v handle=%v, want both false on error", sweep, handle)
	}
}

func TestSelectOutcomeZeroReadyFDsSweepsWithoutHandlingEvents(t *testing.T) {
	sweep, handle, err := selectOutcome(0, nil)
	if err != nil {
		t.Fatalf("err = %v, want nil", err)
	}
	if !sweep || handle {
		t.Fatalf("sweep=%v handle=%v, want sweep=true handle=false on timeout", sweep, handle)
	}
}

func TestSelectOutcomeReadyFDsHandlesEventsThenSweeps(t *testing.T) {
	sweep, handle, err := selectOutcome(2, nil)
	if err != nil {
		t.Fatalf("err = %v, want nil", err)
	}
	if !sweep || !handle {
		t.Fatalf("sweep=%v handle=%v, want both true when fds are ready", sweep, handle)
	}
}
