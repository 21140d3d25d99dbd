//go:build !linux
// +build !linux

// File: transport/udpsock_stub.go
// Author: momentics <momentics@gmail.com>
//
// Stub socket factory for unsupported platforms.

package transport

import "errors"

func newPacketSocket(host string, port int) (PacketSocket, error) {
	return nil, errors.New("transport: this platform is not supported")
}
