// File: api/processor.go
// Package api
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

// Processor handles decoded messages and observes session state events.
// Process runs on the worker thread that owns the session's queue, so
// for a fixed peer invocations are strictly ordered. An error return is
// surfaced as a StateProcessError event; the worker continues.
type Processor interface {
	Process(session Session, msg any) error

	// StateEvent receives a lifecycle or error notification. session may
	// be nil for channel-scoped failures. cause is nil for non-error
	// transitions.
	StateEvent(session Session, event StateEvent, cause error)
}

// ProcessorFunc adapts a plain message handler to Processor, dropping
// state events.
type ProcessorFunc func(session Session, msg any) error

func (f ProcessorFunc) Process(session Session, msg any) error { return f(session, msg) }

func (ProcessorFunc) StateEvent(Session, StateEvent, error) {}
