// File: api/errors.go
// Package api
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Common error values used across the hioload-udp library.

package api

import "errors"

var (
	// ErrCapacityExceeded is returned when a write would overflow a
	// buffer handle. The write is rejected whole; nothing is truncated.
	ErrCapacityExceeded = errors.New("buffer capacity exceeded")

	// ErrEmptyDecode marks a codec returning no message for a datagram.
	// Every datagram is expected to carry one complete message, so an
	// empty decode is a protocol violation, not "need more bytes".
	ErrEmptyDecode = errors.New("decode produced no message")

	// ErrChannelClosed is returned by operations on a closed channel.
	ErrChannelClosed = errors.New("channel is closed")

	// ErrSessionClosed is returned when writing through a closed session.
	ErrSessionClosed = errors.New("session is closed")

	// ErrDispatcherClosed is returned by Dispatch after shutdown began.
	ErrDispatcherClosed = errors.New("dispatcher is closed")

	// ErrNotRunning is returned by runtime calls before the first Open.
	ErrNotRunning = errors.New("runtime is not running")
)
