// File: plugins/plugin.go
// Package plugins implements the observer pipeline around the session
// lifecycle.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// A Plugin is a capability set of independently optional callbacks; nil
// slots default to no-ops, so an observer fills in only the hooks it
// cares about. Hooks execute inline on the reactor or worker thread and
// must not block for unbounded time.

package plugins

import (
	"net/netip"

	"github.com/momentics/hioload-udp/api"
)

// Plugin observes accept/read/write/process/error transitions. Gates
// (PreProcess, Accept) can veto the governed action; monitors and the
// state-event sink are informational.
type Plugin struct {
	// PreProcess gates message handling. Returning false skips the
	// processor call for this message without closing the session.
	PreProcess func(session api.Session, msg any) bool

	// Accept gates session creation for a new peer address. Returning
	// false drops the peer's datagrams before a session is cached.
	Accept func(peer netip.AddrPort) bool

	// BeforeRead runs before a received datagram is decoded.
	BeforeRead func(session api.Session)

	// AfterRead observes the received byte count.
	AfterRead func(session api.Session, n int)

	// AfterWrite observes one sent datagram's byte count.
	AfterWrite func(session api.Session, n int)

	// StateEvent receives lifecycle and error notifications.
	StateEvent func(event api.StateEvent, session api.Session, cause error)
}

// Pipeline composes plugins, in registration order, around a terminal
// processor. It implements api.Processor: workers call Process, which
// runs the pre-process gates before the terminal handler.
type Pipeline struct {
	proc    api.Processor
	plugins []*Plugin
}

var _ api.Processor = (*Pipeline)(nil)

// NewPipeline wraps proc with the given plugins.
func NewPipeline(proc api.Processor, ps ...*Plugin) *Pipeline {
	return &Pipeline{proc: proc, plugins: ps}
}

// Process runs the pre-process gates in order, then the terminal
// processor. The first gate returning false short-circuits: the handler
// is skipped and the session stays open.
func (pl *Pipeline) Process(session api.Session, msg any) error {
	for _, p := range pl.plugins {
		if p.PreProcess != nil && !p.PreProcess(session, msg) {
			return nil
		}
	}
	return pl.proc.Process(session, msg)
}

// StateEvent notifies every plugin sink, then the terminal processor.
func (pl *Pipeline) StateEvent(session api.Session, event api.StateEvent, cause error) {
	for _, p := range pl.plugins {
		if p.StateEvent != nil {
			p.StateEvent(event, session, cause)
		}
	}
	pl.proc.StateEvent(session, event, cause)
}

// Accept runs the accept gates in order. The first veto wins; later
// gates are not consulted for a rejected peer.
func (pl *Pipeline) Accept(peer netip.AddrPort) bool {
	for _, p := range pl.plugins {
		if p.Accept != nil && !p.Accept(peer) {
			return false
		}
	}
	return true
}

// BeforeRead notifies every read monitor.
func (pl *Pipeline) BeforeRead(session api.Session) {
	for _, p := range pl.plugins {
		if p.BeforeRead != nil {
			p.BeforeRead(session)
		}
	}
}

// AfterRead notifies every read monitor with the byte count.
func (pl *Pipeline) AfterRead(session api.Session, n int) {
	for _, p := range pl.plugins {
		if p.AfterRead != nil {
			p.AfterRead(session, n)
		}
	}
}

// AfterWrite notifies every write monitor with the byte count.
func (pl *Pipeline) AfterWrite(session api.Session, n int) {
	for _, p := range pl.plugins {
		if p.AfterWrite != nil {
			p.AfterWrite(session, n)
		}
	}
}
