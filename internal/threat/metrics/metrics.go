// Package metrics exposes Prometheus counters for the threat engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	EventsRecorded *prometheus.CounterVec
	AlertsEmitted  *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		EventsRecorded: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "rollcall_threat_events_total",
			Help: "Threat events recorded against identities, by event label.",
		}, []string{"event"}),
		AlertsEmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "rollcall_threat_alerts_total",
			Help: "Alerts emitted after the weighted threshold was crossed, by event label.",
		}, []string{"event"}),
	}
}

// ObserveEvent is nil-safe so the engine can run without metrics in tests.
func (m *Metrics) ObserveEvent(event string) {
	if m == nil {
		return
	}
	m.EventsRecorded.WithLabelValues(event).Inc()
}

func (m *Metrics) ObserveAlert(event string) {
	if m == nil {
		return
	}
	m.AlertsEmitted.WithLabelValues(event).Inc()
}
