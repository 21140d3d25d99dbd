// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package server exposes the Bootstrap facade: open bound datagram
// channels, run the reactor loop and worker pool, and shut the runtime
// down cooperatively.
package server
