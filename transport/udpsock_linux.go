//go:build linux
// +build linux

// File: transport/udpsock_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Linux datagram socket over raw fds via golang.org/x/sys/unix.

package transport

import (
	"fmt"
	"net/netip"

	"golang.org/x/sys/unix"
)

type linuxPacketSocket struct {
	fd    int
	local netip.AddrPort
}

func newPacketSocket(host string, port int) (PacketSocket, error) {
	addr := netip.IPv4Unspecified()
	if host != "" {
		parsed, err := netip.ParseAddr(host)
		if err != nil {
			return nil, fmt.Errorf("parse bind address %q: %w", host, err)
		}
		addr = parsed.Unmap()
	}

	family := unix.AF_INET
	if addr.Is6() {
		family = unix.AF_INET6
	}
	fd, err := unix.Socket(family, unix.SOCK_DGRAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("socket create: %w", err)
	}
	if err := unix.Bind(fd, addrPortToSockaddr(netip.AddrPortFrom(addr, uint16(port)))); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("bind %s:%d: %w", addr, port, err)
	}
	sa, err := unix.Getsockname(fd)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("getsockname: %w", err)
	}
	return &linuxPacketSocket{fd: fd, local: sockaddrToAddrPort(sa)}, nil
}

func (s *linuxPacketSocket) FD() uintptr { return uintptr(s.fd) }

func (s *linuxPacketSocket) LocalAddr() netip.AddrPort { return s.local }

func (s *linuxPacketSocket) ReadFrom(p []byte) (int, netip.AddrPort, error) {
	n, sa, err := unix.Recvfrom(s.fd, p, 0)
	if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
		return 0, netip.AddrPort{}, ErrAgain
	}
	if err != nil {
		return 0, netip.AddrPort{}, fmt.Errorf("recvfrom: %w", err)
	}
	return n, sockaddrToAddrPort(sa), nil
}

func (s *linuxPacketSocket) WriteTo(p []byte, to netip.AddrPort) (int, error) {
	err := unix.Sendto(s.fd, p, 0, addrPortToSockaddr(to))
	if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
		return 0, ErrAgain
	}
	if err != nil {
		return 0, fmt.Errorf("sendto %s: %w", to, err)
	}
	return len(p), nil
}

func (s *linuxPacketSocket) Close() error {
	return unix.Close(s.fd)
}

func addrPortToSockaddr(ap netip.AddrPort) unix.Sockaddr {
	addr := ap.Addr().Unmap()
	if addr.Is6() {
		return &unix.SockaddrInet6{Port: int(ap.Port()), Addr: addr.As16()}
	}
	return &unix.SockaddrInet4{Port: int(ap.Port()), Addr: addr.As4()}
}

func sockaddrToAddrPort(sa unix.Sockaddr) netip.AddrPort {
	switch v := sa.(type) {
	case *unix.SockaddrInet4:
		return netip.AddrPortFrom(netip.AddrFrom4(v.Addr), uint16(v.Port))
	case *unix.SockaddrInet6:
		return netip.AddrPortFrom(netip.AddrFrom16(v.Addr).Unmap(), uint16(v.Port))
	}
	return netip.AddrPort{}
}
