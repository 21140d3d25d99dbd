// File: reactor/reactor.go
// Author: momentics <momentics@gmail.com>
//
// Platform-neutral readiness multiplexer interface. Exactly one thread,
// the runtime's reactor loop, calls Wait; Register, Modify, Unregister
// and Wakeup are safe from any thread.

package reactor

// EventMask is a bit set of readiness conditions.
type EventMask uint32

const (
	EventRead EventMask = 1 << iota
	EventWrite
	EventError
)

// Event is one readiness notification returned by Wait.
type Event struct {
	FD   uintptr
	Mask EventMask
}

// EventReactor multiplexes readiness over registered descriptors.
type EventReactor interface {
	// Register starts watching fd for the given conditions.
	Register(fd uintptr, mask EventMask) error

	// Modify replaces the watched conditions for fd.
	Modify(fd uintptr, mask EventMask) error

	// Unregister stops watching fd.
	Unregister(fd uintptr) error

	// Wait blocks until readiness is available or Wakeup is called and
	// fills events. It may return 0 events after a wakeup.
	Wait(events []Event) (int, error)

	// Wakeup unblocks a concurrent Wait.
	Wakeup() error

	// Close releases the multiplexer.
	Close() error
}
