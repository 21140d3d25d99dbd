//go:build linux
// +build linux

// File: reactor/reactor_linux.go
// Author: momentics <momentics@gmail.com>
//
// Linux epoll(7)-based reactor with an eventfd wakeup channel.
// Level-triggered: the runtime re-arms nothing and drains readiness
// with a bounded number of non-blocking calls per pass.

package reactor

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/sys/unix"
)

type linuxReactor struct {
	epfd   int
	wakefd int
	// scratch is reused across Wait calls; Wait has a single caller by
	// contract, so no synchronization is needed.
	scratch []unix.EpollEvent
}

// NewReactor constructs the platform EventReactor for Linux.
func NewReactor() (EventReactor, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll create: %w", err)
	}
	wakefd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		unix.Close(epfd)
		return nil, fmt.Errorf("eventfd: %w", err)
	}
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(wakefd)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakefd, &ev); err != nil {
		unix.Close(wakefd)
		unix.Close(epfd)
		return nil, fmt.Errorf("epoll ctl add wakeup: %w", err)
	}
	return &linuxReactor{epfd: epfd, wakefd: wakefd}, nil
}

func epollEvents(mask EventMask) uint32 {
	var ev uint32
	if mask&EventRead != 0 {
		ev |= unix.EPOLLIN
	}
	if mask&EventWrite != 0 {
		ev |= unix.EPOLLOUT
	}
	return ev
}

func (r *linuxReactor) Register(fd uintptr, mask EventMask) error {
	ev := unix.EpollEvent{Events: epollEvents(mask), Fd: int32(fd)}
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, int(fd), &ev); err != nil {
		return fmt.Errorf("epoll ctl add: %w", err)
	}
	return nil
}

func (r *linuxReactor) Modify(fd uintptr, mask EventMask) error {
	ev := unix.EpollEvent{Events: epollEvents(mask), Fd: int32(fd)}
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_MOD, int(fd), &ev); err != nil {
		return fmt.Errorf("epoll ctl mod: %w", err)
	}
	return nil
}

func (r *linuxReactor) Unregister(fd uintptr) error {
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, int(fd), nil); err != nil {
		return fmt.Errorf("epoll ctl del: %w", err)
	}
	return nil
}

func (r *linuxReactor) Wait(events []Event) (int, error) {
	if len(r.scratch) < len(events) {
		r.scratch = make([]unix.EpollEvent, len(events))
	}
	raw := r.scratch[:len(events)]
	for {
		n, err := unix.EpollWait(r.epfd, raw, -1)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("epoll wait: %w", err)
		}
		out := 0
		for i := 0; i < n; i++ {
			fd := uintptr(raw[i].Fd)
			if int(fd) == r.wakefd {
				r.drainWakeup()
				continue
			}
			var mask EventMask
			if raw[i].Events&unix.EPOLLIN != 0 {
				mask |= EventRead
			}
			if raw[i].Events&unix.EPOLLOUT != 0 {
				mask |= EventWrite
			}
			if raw[i].Events&(unix.EPOLLERR|unix.EPOLLHUP) != 0 {
				mask |= EventError
			}
			events[out] = Event{FD: fd, Mask: mask}
			out++
		}
		return out, nil
	}
}

func (r *linuxReactor) Wakeup() error {
	var one [8]byte
	binary.LittleEndian.PutUint64(one[:], 1)
	_, err := unix.Write(r.wakefd, one[:])
	if err == unix.EAGAIN {
		// counter saturated, a wakeup is already pending
		return nil
	}
	return err
}

func (r *linuxReactor) drainWakeup() {
	var buf [8]byte
	for {
		if _, err := unix.Read(r.wakefd, buf[:]); err != nil {
			return
		}
	}
}

func (r *linuxReactor) Close() error {
	unix.Close(r.wakefd)
	return unix.Close(r.epfd)
}
