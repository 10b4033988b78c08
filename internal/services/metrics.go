package services

import (
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service counters and exposes them via Prometheus.
type Metrics struct {
	FramesSubmitted atomic.Int64
	FramesProcessed atomic.Int64
	DetectorErrors  atomic.Int64

	EventsEmitted  atomic.Int64
	EventsRejected atomic.Int64

	ActiveMonitors atomic.Int64

	WSConnections atomic.Int64
	WSMessages    atomic.Int64
	WSErrors      atomic.Int64

	registry *prometheus.Registry
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}
	m.registerPrometheusMetrics()
	return m
}

func (m *Metrics) registerPrometheusMetrics() {
	gauges := []struct {
		name string
		help string
		load func() int64
	}{
		{"proctor_frames_submitted_total", "Total frames submitted by candidate clients", m.FramesSubmitted.Load},
		{"proctor_frames_processed_total", "Total frames processed by the detector", m.FramesProcessed.Load},
		{"proctor_detector_errors_total", "Total detector call failures (ticks skipped)", m.DetectorErrors.Load},
		{"proctor_events_emitted_total", "Total integrity events emitted", m.EventsEmitted.Load},
		{"proctor_events_rejected_total", "Total integrity events rejected by the aggregator", m.EventsRejected.Load},
		{"proctor_active_monitors", "Number of sessions currently monitored", m.ActiveMonitors.Load},
		{"proctor_ws_connections", "Current WebSocket connections", m.WSConnections.Load},
		{"proctor_ws_messages_total", "Total WebSocket messages handled", m.WSMessages.Load},
		{"proctor_ws_errors_total", "Total WebSocket errors", m.WSErrors.Load},
	}

	for _, g := range gauges {
		load := g.load
		m.registry.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{Name: g.name, Help: g.help},
			func() float64 { return float64(load()) },
		))
	}
}

// Handler returns the Prometheus HTTP handler for /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
