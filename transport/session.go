// File: transport/session.go
// Package transport
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Session: one peer's logical conversation over a shared channel. The
// session does not own the channel. Created by the reactor on first
// datagram from a new peer; evicted on Close or when the channel closes.

package transport

import (
	"net/netip"
	"sync"
	"sync/atomic"

	"github.com/momentics/hioload-udp/api"
	"github.com/momentics/hioload-udp/pool"
)

// Session implements api.Session.
type Session struct {
	peer   netip.AddrPort
	ch     *Channel
	out    WriteAssembler
	closed atomic.Bool
}

var _ api.Session = (*Session)(nil)

func newSession(ch *Channel, peer netip.AddrPort) *Session {
	s := &Session{peer: peer, ch: ch}
	s.out.s = s
	return s
}

// Peer returns the remote address.
func (s *Session) Peer() netip.AddrPort { return s.peer }

// LocalAddr returns the bound address of the owning channel.
func (s *Session) LocalAddr() netip.AddrPort { return s.ch.LocalAddr() }

// WriteBuffer returns the session's output assembler.
func (s *Session) WriteBuffer() api.WriteBuffer { return &s.out }

// Close evicts the session from the channel cache and discards any
// unflushed output. Idempotent; a later datagram from the same peer
// creates a fresh session.
func (s *Session) Close() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	s.out.discard()
	s.ch.evict(s)
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool { return s.closed.Load() }

// WriteAssembler builds one outgoing datagram in a pooled handle. The
// handle is allocated on first write and handed to the channel's write
// queue on Flush.
type WriteAssembler struct {
	mu sync.Mutex
	s  *Session
	h  *pool.Handle
}

var _ api.WriteBuffer = (*WriteAssembler)(nil)

func (w *WriteAssembler) ensure() (*pool.Handle, error) {
	if w.s.closed.Load() {
		return nil, api.ErrSessionClosed
	}
	if w.h == nil {
		w.h = w.s.ch.pool.Allocate(w.s.ch.writeBufSize)
	}
	return w.h, nil
}

func (w *WriteAssembler) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	h, err := w.ensure()
	if err != nil {
		return 0, err
	}
	return h.Write(p)
}

func (w *WriteAssembler) WriteUint32(v uint32) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	h, err := w.ensure()
	if err != nil {
		return err
	}
	return h.WriteUint32(v)
}

func (w *WriteAssembler) WriteLengthPrefixed(p []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	h, err := w.ensure()
	if err != nil {
		return err
	}
	return h.WriteLengthPrefixed(p)
}

// Flush enqueues the assembled datagram for send. The handle passes to
// the channel; on enqueue failure it is released here so no path leaks.
func (w *WriteAssembler) Flush() error {
	w.mu.Lock()
	h := w.h
	w.h = nil
	w.mu.Unlock()
	if h == nil {
		return nil
	}
	if h.Len() == 0 {
		h.Release()
		return nil
	}
	if err := w.s.ch.enqueueWrite(w.s.peer, h); err != nil {
		h.Release()
		return err
	}
	return nil
}

// discard drops any unflushed handle.
func (w *WriteAssembler) discard() {
	w.mu.Lock()
	h := w.h
	w.h = nil
	w.mu.Unlock()
	if h != nil {
		h.Release()
	}
}
