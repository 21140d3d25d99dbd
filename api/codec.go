// File: api/codec.go
// Package api
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

// Codec decodes one datagram into one application message. Each datagram
// is expected to frame a complete message.
//
// A nil message with a nil error is treated as a protocol violation: the
// runtime raises a StateDecodeError event but keeps the session open. A
// non-nil error raises the same event, closes the session, and aborts
// the channel's read pass.
type Codec interface {
	Decode(data []byte, session Session) (any, error)
}

// CodecFunc adapts a function to the Codec interface.
type CodecFunc func(data []byte, session Session) (any, error)

func (f CodecFunc) Decode(data []byte, session Session) (any, error) {
	return f(data, session)
}
