// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package plugins provides the ordered observer chain invoked around
// accept, read, write and process transitions, and the state-event sink
// through which the reactor and workers report exceptional conditions.
package plugins
