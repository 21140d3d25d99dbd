// File: control/metrics.go
// Package control provides runtime instrumentation for hioload-udp.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package control

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics aggregates the runtime's Prometheus collectors. A nil
// *Metrics is valid and turns every method into a no-op, so the
// runtime works unchanged without instrumentation.
type Metrics struct {
	DatagramsReceived prometheus.Counter
	DatagramsSent     prometheus.Counter
	BytesReceived     prometheus.Counter
	BytesSent         prometheus.Counter
	DecodeErrors      prometheus.Counter
	ProcessErrors     prometheus.Counter
	SessionsActive    prometheus.Gauge
	PendingWrites     prometheus.Gauge
}

// NewMetrics registers all collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		DatagramsReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "hioload_udp_datagrams_received_total",
			Help: "Total number of datagrams received",
		}),
		DatagramsSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "hioload_udp_datagrams_sent_total",
			Help: "Total number of datagrams sent",
		}),
		BytesReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "hioload_udp_bytes_received_total",
			Help: "Total bytes received across all channels",
		}),
		BytesSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "hioload_udp_bytes_sent_total",
			Help: "Total bytes sent across all channels",
		}),
		DecodeErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "hioload_udp_decode_errors_total",
			Help: "Total number of decode failures, including empty decodes",
		}),
		ProcessErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "hioload_udp_process_errors_total",
			Help: "Total number of processor failures",
		}),
		SessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "hioload_udp_sessions_active",
			Help: "Current number of cached peer sessions",
		}),
		PendingWrites: factory.NewGauge(prometheus.GaugeOpts{
			Name: "hioload_udp_pending_writes",
			Help: "Datagrams queued for send across all channels",
		}),
	}
}

// ObserveReceive records one received datagram of n bytes.
func (m *Metrics) ObserveReceive(n int) {
	if m == nil {
		return
	}
	m.DatagramsReceived.Inc()
	m.BytesReceived.Add(float64(n))
}

// ObserveSend records one sent datagram of n bytes.
func (m *Metrics) ObserveSend(n int) {
	if m == nil {
		return
	}
	m.DatagramsSent.Inc()
	m.BytesSent.Add(float64(n))
}

// ObserveDecodeError records one decode failure.
func (m *Metrics) ObserveDecodeError() {
	if m == nil {
		return
	}
	m.DecodeErrors.Inc()
}

// ObserveProcessError records one processor failure.
func (m *Metrics) ObserveProcessError() {
	if m == nil {
		return
	}
	m.ProcessErrors.Inc()
}

// SessionOpened and SessionClosed track the active session gauge.
func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.SessionsActive.Inc()
}

func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.SessionsActive.Dec()
}

// WriteQueued and WriteReleased track the pending-write gauge. A write
// is released when it is sent, fails, or is discarded at channel close.
func (m *Metrics) WriteQueued() {
	if m == nil {
		return
	}
	m.PendingWrites.Inc()
}

func (m *Metrics) WriteReleased() {
	if m == nil {
		return
	}
	m.PendingWrites.Dec()
}
