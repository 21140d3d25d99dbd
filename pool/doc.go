// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package pool implements the arena allocator backing every read and
// write in hioload-udp. A PagePool pre-allocates a small number of large
// pages, carves them into recyclable ranges, and hands out scoped
// handles. Datagrams are bounded and complete, so a slab sized to the
// configured read-buffer amortizes buffer churn without per-packet heap
// traffic.
package pool
