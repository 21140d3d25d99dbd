// File: transport/udpsock.go
// Author: momentics <momentics@gmail.com>
//
// Non-blocking datagram socket abstraction. Platform implementations
// live in udpsock_linux.go; other platforms get a constructor error.

package transport

import (
	"errors"
	"net/netip"
)

// ErrAgain signals that a non-blocking receive found no datagram or a
// non-blocking send would block.
var ErrAgain = errors.New("transport: operation would block")

// PacketSocket is a bound, non-blocking datagram socket.
type PacketSocket interface {
	// FD returns the OS-level descriptor for reactor registration.
	FD() uintptr

	// LocalAddr returns the bound address.
	LocalAddr() netip.AddrPort

	// ReadFrom receives one datagram into p. Returns ErrAgain when the
	// receive queue is empty.
	ReadFrom(p []byte) (int, netip.AddrPort, error)

	// WriteTo sends p as one datagram to the given peer. Returns
	// ErrAgain when the kernel send buffer is full.
	WriteTo(p []byte, to netip.AddrPort) (int, error)

	// Close releases the socket.
	Close() error
}

// NewPacketSocket binds a non-blocking UDP socket. An empty host binds
// the wildcard address; port 0 picks an ephemeral port.
func NewPacketSocket(host string, port int) (PacketSocket, error) {
	return newPacketSocket(host, port)
}
