// File: api/session.go
// Package api
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Session and write-buffer contracts. A session is the logical
// conversation with one peer address over a shared datagram channel;
// the concrete implementation lives in the transport package.

package api

import "net/netip"

// Session represents one peer's conversation over a bound channel.
// Exactly one session exists per (channel, peer address) pair; all
// messages from the peer are processed in order on one worker.
type Session interface {
	// Peer returns the remote datagram address.
	Peer() netip.AddrPort

	// LocalAddr returns the bound address of the owning channel.
	LocalAddr() netip.AddrPort

	// WriteBuffer returns the session's output assembler. The assembler
	// is lazily backed by a pooled handle; Flush enqueues the assembled
	// datagram for send and starts a fresh handle.
	WriteBuffer() WriteBuffer

	// Close evicts the session from the channel cache. Idempotent.
	// A later datagram from the same peer creates a fresh session.
	Close()

	// Closed reports whether Close has been called.
	Closed() bool
}

// WriteBuffer assembles one outgoing datagram.
type WriteBuffer interface {
	// Write appends p. Fails with ErrCapacityExceeded when p does not
	// fit in the remaining capacity; no partial write occurs.
	Write(p []byte) (int, error)

	// WriteUint32 appends v in big-endian byte order.
	WriteUint32(v uint32) error

	// WriteLengthPrefixed appends a 4-byte big-endian length followed
	// by p.
	WriteLengthPrefixed(p []byte) error

	// Flush enqueues the assembled datagram on the channel's pending
	// write queue and resets the assembler. A flush of an empty
	// assembler is a no-op.
	Flush() error
}
