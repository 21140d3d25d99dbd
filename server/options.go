// File: server/options.go
// Package server defines functional options for the Bootstrap facade.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/momentics/hioload-udp/control"
	"github.com/momentics/hioload-udp/plugins"
)

// Option customizes bootstrap initialization.
type Option func(*Bootstrap)

// WithReadBufferSize sets the receive buffer size in bytes.
func WithReadBufferSize(size int) Option {
	return func(b *Bootstrap) { b.cfg.ReadBufferSize = size }
}

// WithWriteBufferSize caps one assembled outgoing datagram.
func WithWriteBufferSize(size int) Option {
	return func(b *Bootstrap) { b.cfg.WriteBufferSize = size }
}

// WithWorkerCount sets the fixed number of dispatch workers.
func WithWorkerCount(n int) Option {
	return func(b *Bootstrap) { b.cfg.WorkerCount = n }
}

// WithBanner toggles the console banner printed on first open.
func WithBanner(enabled bool) Option {
	return func(b *Bootstrap) { b.cfg.BannerEnabled = enabled }
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bootstrap) { b.logger = logger }
}

// WithPlugins appends observers to the pipeline in registration order.
func WithPlugins(ps ...*plugins.Plugin) Option {
	return func(b *Bootstrap) { b.plugins = append(b.plugins, ps...) }
}

// WithMetrics registers Prometheus collectors with reg and wires them
// into the runtime.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(b *Bootstrap) { b.metrics = control.NewMetrics(reg) }
}

// WithPoolGeometry overrides the arena page size and count.
func WithPoolGeometry(pageSize, pageCount int) Option {
	return func(b *Bootstrap) {
		b.cfg.PoolPageSize = pageSize
		b.cfg.PoolPageCount = pageCount
	}
}

// WithIdleReclaim enables the pool's background compaction sweep.
func WithIdleReclaim(interval time.Duration) Option {
	return func(b *Bootstrap) { b.cfg.IdleReclaimInterval = interval }
}
