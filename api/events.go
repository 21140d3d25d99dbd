// File: api/events.go
// Package api defines the session state-event taxonomy.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

// StateEvent is the closed set of lifecycle and error notifications
// delivered to processors and plugins. It is the sole path through which
// the reactor and workers report exceptional conditions outward.
type StateEvent uint8

const (
	// StateNewSession fires when the first datagram from a peer address
	// creates its session.
	StateNewSession StateEvent = iota

	// StateDecodeError fires when the codec fails or returns no message.
	// A codec error also closes the session; an empty result does not.
	StateDecodeError

	// StateProcessError fires when the processor returns an error or
	// panics. The worker thread survives and keeps draining its queue.
	StateProcessError

	// StateSessionClosed fires once when a session is evicted from its
	// channel's cache.
	StateSessionClosed

	// StateChannelError fires when a receive or send syscall fails. The
	// failure is scoped to the offending channel, which is closed.
	StateChannelError
)

var stateEventNames = [...]string{
	"NEW_SESSION",
	"DECODE_ERROR",
	"PROCESS_ERROR",
	"SESSION_CLOSED",
	"CHANNEL_ERROR",
}

func (e StateEvent) String() string {
	if int(e) < len(stateEventNames) {
		return stateEventNames[e]
	}
	return "UNKNOWN"
}
