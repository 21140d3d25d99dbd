// File: server/config.go
// Package server
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"runtime"
	"time"

	"github.com/momentics/hioload-udp/pool"
)

// Config holds the runtime tunables. Zero values are replaced by the
// documented defaults at bootstrap construction.
type Config struct {
	// ReadBufferSize caps one received datagram. Default 4096.
	ReadBufferSize int

	// WriteBufferSize caps one assembled outgoing datagram. Default 4096.
	WriteBufferSize int

	// WorkerCount is the fixed number of dispatch workers. Default
	// runtime.NumCPU().
	WorkerCount int

	// BannerEnabled prints the console banner on first open. Default true.
	BannerEnabled bool

	// PoolPageSize and PoolPageCount set the arena geometry. Defaults
	// 1 MiB pages, 2 pages.
	PoolPageSize  int
	PoolPageCount int

	// IdleReclaimInterval enables the pool's background compaction
	// sweep when positive. Default 0 (disabled).
	IdleReclaimInterval time.Duration
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() *Config {
	return &Config{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		WorkerCount:     runtime.NumCPU(),
		BannerEnabled:   true,
		PoolPageSize:    pool.DefaultPageSize,
		PoolPageCount:   pool.DefaultPageCount,
	}
}

func (c *Config) normalize() {
	d := DefaultConfig()
	if c.ReadBufferSize <= 0 {
		c.ReadBufferSize = d.ReadBufferSize
	}
	if c.WriteBufferSize <= 0 {
		c.WriteBufferSize = d.WriteBufferSize
	}
	if c.WorkerCount <= 0 {
		c.WorkerCount = d.WorkerCount
	}
	if c.PoolPageSize <= 0 {
		c.PoolPageSize = d.PoolPageSize
	}
	if c.PoolPageCount <= 0 {
		c.PoolPageCount = d.PoolPageCount
	}
}
