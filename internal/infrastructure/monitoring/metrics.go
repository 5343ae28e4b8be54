// Package monitoring exposes Prometheus metrics for the sync engine.
//
// Metrics are optional: every recording method is nil-safe, so components
// accept a *Metrics and simply skip recording when none was wired.
package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the engine's Prometheus collectors.
type Metrics struct {
	EventsApplied   *prometheus.CounterVec
	FramesMalformed prometheus.Counter

	SnapshotsInstalled prometheus.Counter
	SnapshotRefreshes  prometheus.Counter

	ReconnectAttempts prometheus.Counter
	AuthFailures      prometheus.Counter
	Connected         prometheus.Gauge

	Watermark prometheus.Gauge
}

// New registers the engine metrics with the default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers with a caller-supplied registry, which keeps parallel
// tests out of each other's way.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		EventsApplied: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pocketdesk_events_total",
				Help: "Realtime events by reducer outcome",
			},
			[]string{"outcome"},
		),
		FramesMalformed: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "pocketdesk_frames_malformed_total",
				Help: "Realtime frames that failed parsing or validation",
			},
		),
		SnapshotsInstalled: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "pocketdesk_snapshots_installed_total",
				Help: "Full snapshots installed into the mirror",
			},
		),
		SnapshotRefreshes: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "pocketdesk_snapshot_refreshes_total",
				Help: "Snapshot re-fetches triggered by staleness events",
			},
		),
		ReconnectAttempts: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "pocketdesk_reconnect_attempts_total",
				Help: "Connection attempts after the first",
			},
		),
		AuthFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "pocketdesk_auth_failures_total",
				Help: "401 responses that forced a re-pair",
			},
		),
		Connected: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "pocketdesk_connected",
				Help: "1 while the realtime stream is up",
			},
		),
		Watermark: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "pocketdesk_sequence_watermark",
				Help: "Highest event or snapshot sequence applied",
			},
		),
	}
}

// RecordEvent counts one reducer outcome.
func (m *Metrics) RecordEvent(outcome string) {
	if m == nil {
		return
	}
	m.EventsApplied.WithLabelValues(outcome).Inc()
}

// RecordMalformedFrame counts a frame that failed decode.
func (m *Metrics) RecordMalformedFrame() {
	if m == nil {
		return
	}
	m.FramesMalformed.Inc()
}

// RecordSnapshot counts an installed snapshot and updates the watermark.
func (m *Metrics) RecordSnapshot(watermark uint64) {
	if m == nil {
		return
	}
	m.SnapshotsInstalled.Inc()
	m.Watermark.Set(float64(watermark))
}

// RecordRefresh counts a staleness-triggered re-fetch.
func (m *Metrics) RecordRefresh() {
	if m == nil {
		return
	}
	m.SnapshotRefreshes.Inc()
}

// RecordReconnect counts a retry attempt.
func (m *Metrics) RecordReconnect() {
	if m == nil {
		return
	}
	m.ReconnectAttempts.Inc()
}

// RecordAuthFailure counts a 401 trapdoor.
func (m *Metrics) RecordAuthFailure() {
	if m == nil {
		return
	}
	m.AuthFailures.Inc()
}

// SetConnected flips the connection gauge.
func (m *Metrics) SetConnected(up bool) {
	if m == nil {
		return
	}
	if up {
		m.Connected.Set(1)
	} else {
		m.Connected.Set(0)
	}
}

// SetWatermark updates the watermark gauge.
func (m *Metrics) SetWatermark(v uint64) {
	if m == nil {
		return
	}
	m.Watermark.Set(float64(v))
}
