// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package transport implements the datagram endpoint layer: a Channel
// wraps one bound non-blocking UDP socket and owns its per-peer session
// cache plus the pending-write queue drained on write readiness. A
// Session is one peer's conversation over a shared channel; its output
// assembler builds outgoing datagrams in pooled handles.
package transport
