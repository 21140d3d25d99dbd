//go:build linux

package reactor_test

import (
	"testing"
	"time"

	"github.com/momentics/hioload-udp/reactor"
	"golang.org/x/sys/unix"
)

func TestWaitReportsReadReadiness(t *testing.T) {
	r, err := reactor.NewReactor()
	if err != nil {
		t.Fatalf("new reactor: %v", err)
	}
	defer r.Close()

	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		t.Fatalf("pipe: %v", err)
	}
	defer unix.Close(fds[0])
	defer unix.Close(fds[1])

	if err := r.Register(uintptr(fds[0]), reactor.EventRead); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := unix.Write(fds[1], []byte("x")); err != nil {
		t.Fatalf("write: %v", err)
	}

	events := make([]reactor.Event, 8)
	n, err := r.Wait(events)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if n != 1 || events[0].FD != uintptr(fds[0]) || events[0].Mask&reactor.EventRead == 0 {
		t.Fatalf("unexpected events: n=%d %+v", n, events[:n])
	}
}

func TestWakeupUnblocksWait(t *testing.T) {
	r, err := reactor.NewReactor()
	if err != nil {
		t.Fatalf("new reactor: %v", err)
	}
	defer r.Close()

	done := make(chan struct{})
	go func() {
		events := make([]reactor.Event, 4)
		n, err := r.Wait(events)
		if err != nil || n != 0 {
			t.Errorf("wait after wakeup: n=%d err=%v", n, err)
		}
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	if err := r.Wakeup(); err != nil {
		t.Fatalf("wakeup: %v", err)
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Wait did not return after Wakeup")
	}
}
