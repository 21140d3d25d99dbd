// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor provides the readiness multiplexer driving the
// hioload-udp run loop: a level-triggered epoll implementation on Linux
// with an eventfd wakeup, and a stub elsewhere.
package reactor
