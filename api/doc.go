// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package api defines the contracts between the hioload-udp core and its
// collaborators: the wire codec, the message processor, sessions, and the
// state-event taxonomy. Implementations live in pool, transport, dispatch,
// plugins and server.
package api
