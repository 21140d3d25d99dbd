// File: transport/channel.go
// Package transport
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Channel: one bound datagram endpoint. Owns the per-peer session cache
// and the pending-write queue. Sessions are created by the reactor
// thread on first datagram from a new peer; writes are enqueued by any
// thread and drained by the reactor on write readiness.

package transport

import (
	"errors"
	"net/netip"
	"sync"
	"sync/atomic"

	"github.com/eapache/queue"

	"github.com/momentics/hioload-udp/api"
	"github.com/momentics/hioload-udp/pool"
)

// Hooks are the runtime callbacks a channel needs. All of them run
// inline on the calling thread.
type Hooks struct {
	// SetWriteInterest flips the reactor write interest for the
	// channel's descriptor.
	SetWriteInterest func(c *Channel, enable bool) error

	// Accept gates session creation for a new peer address. A nil hook
	// accepts everyone.
	Accept func(peer netip.AddrPort) bool

	// StateEvent surfaces session lifecycle notifications.
	StateEvent func(s *Session, event api.StateEvent, cause error)

	// AfterWrite observes one sent datagram. Runs on the reactor thread
	// during a queue drain.
	AfterWrite func(to netip.AddrPort, n int)

	// WriteQueued and WriteReleased track pending-write queue depth.
	// WriteReleased fires for sent, failed and discarded writes alike.
	WriteQueued   func()
	WriteReleased func()
}

type pendingWrite struct {
	to netip.AddrPort
	h  *pool.Handle
}

// Channel is a bound datagram endpoint multiplexed by the runtime.
type Channel struct {
	sock         PacketSocket
	pool         *pool.PagePool
	writeBufSize int
	hooks        Hooks

	mu            sync.Mutex
	sessions      map[netip.AddrPort]*Session
	writes        *queue.Queue // of pendingWrite
	writeInterest bool

	closed atomic.Bool
}

// NewChannel wraps a bound socket. writeBufSize caps one assembled
// outgoing datagram.
func NewChannel(sock PacketSocket, p *pool.PagePool, writeBufSize int, hooks Hooks) *Channel {
	return &Channel{
		sock:         sock,
		pool:         p,
		writeBufSize: writeBufSize,
		hooks:        hooks,
		sessions:     make(map[netip.AddrPort]*Session),
		writes:       queue.New(),
	}
}

// FD returns the socket descriptor for reactor registration.
func (c *Channel) FD() uintptr { return c.sock.FD() }

// LocalAddr returns the bound address.
func (c *Channel) LocalAddr() netip.AddrPort { return c.sock.LocalAddr() }

// ReadFrom receives one datagram. ErrAgain means the pass is drained.
func (c *Channel) ReadFrom(p []byte) (int, netip.AddrPort, error) {
	return c.sock.ReadFrom(p)
}

// Session looks up or creates the session for peer. fresh is true when
// this call created it; ok is false when the accept gate rejected the
// peer or the channel is closed.
func (c *Channel) Session(peer netip.AddrPort) (s *Session, fresh, ok bool) {
	if c.closed.Load() {
		return nil, false, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, exists := c.sessions[peer]; exists {
		return s, false, true
	}
	if c.hooks.Accept != nil && !c.hooks.Accept(peer) {
		return nil, false, false
	}
	s = newSession(c, peer)
	c.sessions[peer] = s
	return s, true, true
}

// Lookup returns the cached session for peer without creating one.
func (c *Channel) Lookup(peer netip.AddrPort) (*Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[peer]
	return s, ok
}

// SessionCount returns the number of cached sessions.
func (c *Channel) SessionCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sessions)
}

// evict removes s from the cache if it is still the cached entry.
func (c *Channel) evict(s *Session) {
	c.mu.Lock()
	if cur, ok := c.sessions[s.peer]; ok && cur == s {
		delete(c.sessions, s.peer)
	}
	c.mu.Unlock()
	if c.hooks.StateEvent != nil {
		c.hooks.StateEvent(s, api.StateSessionClosed, nil)
	}
}

// enqueueWrite queues one assembled datagram and arms write interest.
// Ownership of the handle passes to the channel.
func (c *Channel) enqueueWrite(to netip.AddrPort, h *pool.Handle) error {
	if c.closed.Load() {
		return api.ErrChannelClosed
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes.Add(pendingWrite{to: to, h: h})
	if c.hooks.WriteQueued != nil {
		c.hooks.WriteQueued()
	}
	if !c.writeInterest {
		c.writeInterest = true
		if c.hooks.SetWriteInterest != nil {
			if err := c.hooks.SetWriteInterest(c, true); err != nil {
				return err
			}
		}
	}
	return nil
}

// PendingWrites returns the queued datagram count.
func (c *Channel) PendingWrites() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writes.Length()
}

// sentWrite records one successfully sent datagram for hook delivery.
type sentWrite struct {
	to netip.AddrPort
	n  int
}

// DrainWrites performs non-blocking sends of queued datagrams, releasing
// each handle after a successful send. Invoked by the reactor on write
// readiness. A full kernel buffer keeps write interest armed; a send
// error is returned to the runtime, which closes the channel. AfterWrite
// hooks fire after c.mu is released, so a hook may re-enter the channel.
func (c *Channel) DrainWrites() error {
	sent, err := c.drainQueued()
	if c.hooks.AfterWrite != nil {
		for _, sw := range sent {
			c.hooks.AfterWrite(sw.to, sw.n)
		}
	}
	return err
}

func (c *Channel) drainQueued() ([]sentWrite, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var sent []sentWrite
	for c.writes.Length() > 0 {
		pw := c.writes.Peek().(pendingWrite)
		_, err := c.sock.WriteTo(pw.h.Bytes(), pw.to)
		if errors.Is(err, ErrAgain) {
			return sent, nil
		}
		c.writes.Remove()
		n := pw.h.Len()
		pw.h.Release()
		if c.hooks.WriteReleased != nil {
			c.hooks.WriteReleased()
		}
		if err != nil {
			return sent, err
		}
		sent = append(sent, sentWrite{to: pw.to, n: n})
	}
	if c.writeInterest {
		c.writeInterest = false
		if c.hooks.SetWriteInterest != nil {
			if err := c.hooks.SetWriteInterest(c, false); err != nil {
				return sent, err
			}
		}
	}
	return sent, nil
}

// Close evicts all sessions, releases queued write handles and closes
// the socket. Idempotent.
func (c *Channel) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.mu.Lock()
	open := make([]*Session, 0, len(c.sessions))
	for _, s := range c.sessions {
		open = append(open, s)
	}
	for c.writes.Length() > 0 {
		pw := c.writes.Remove().(pendingWrite)
		pw.h.Release()
		if c.hooks.WriteReleased != nil {
			c.hooks.WriteReleased()
		}
	}
	c.mu.Unlock()

	for _, s := range open {
		s.Close()
	}
	return c.sock.Close()
}

// Closed reports whether Close has been called.
func (c *Channel) Closed() bool { return c.closed.Load() }
