// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package dispatch fans decoded messages out to a fixed pool of
// workers keyed by peer address, so all traffic from one peer is
// processed in order on one worker.
package dispatch
