package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the attendance verification pipeline.
type Metrics struct {
	MarkSucceeded prometheus.Counter
	MarkRefused   *prometheus.CounterVec
	MarkDuration  prometheus.Histogram
	Similarity    prometheus.Histogram
	GeoDistance   prometheus.Histogram
}

// New creates a Metrics instance with all attendance metrics registered.
func New() *Metrics {
	return &Metrics{
		MarkSucceeded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rollcall_attendance_marks_total",
			Help: "Total number of successful attendance marks",
		}),
		MarkRefused: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "rollcall_attendance_refusals_total",
			Help: "Total number of refused marking attempts by reason",
		}, []string{"reason"}),
		MarkDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "rollcall_attendance_mark_duration_seconds",
			Help:    "Duration of full verification pipeline runs",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		Similarity: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "rollcall_attendance_similarity_score",
			Help:    "Cosine similarity of accepted biometric matches",
			Buckets: prometheus.LinearBuckets(0.5, 0.05, 11),
		}),
		GeoDistance: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "rollcall_attendance_geo_distance_meters",
			Help:    "Measured distance from the campus reference on accepted marks",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10),
		}),
	}
}

// ObserveSuccess records one accepted mark with its scores.
func (m *Metrics) ObserveSuccess(start time.Time, similarity, distanceMeters float64) {
	if m == nil {
		return
	}
	m.MarkSucceeded.Inc()
	m.MarkDuration.Observe(time.Since(start).Seconds())
	m.Similarity.Observe(similarity)
	m.GeoDistance.Observe(distanceMeters)
}

// ObserveRefusal records one refused attempt.
func (m *Metrics) ObserveRefusal(start time.Time, reason string) {
	if m == nil {
		return
	}
	m.MarkRefused.WithLabelValues(reason).Inc()
	m.MarkDuration.Observe(time.Since(start).Seconds())
}
