// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package control exposes optional Prometheus instrumentation for the
// hioload-udp runtime.
package control
