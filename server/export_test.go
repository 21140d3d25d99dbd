// File: server/export_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import "github.com/momentics/hioload-udp/transport"

// SetSocketFactory substitutes the socket constructor used by OpenAddr.
func (b *Bootstrap) SetSocketFactory(f func(host string, port int) (transport.PacketSocket, error)) {
	b.newSocket = f
}
