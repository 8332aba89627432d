package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the MedSAGE backend.
type Metrics struct {
	RequestTotal         *prometheus.CounterVec
	RequestDurationMs    *prometheus.HistogramVec
	RateLimitHitTotal    *prometheus.CounterVec
	ClassifierTotal      *prometheus.CounterVec
	DegradedTotal        prometheus.Counter
	PersistFailureTotal  prometheus.Counter
	HealthCheckUnhealthy *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		RequestTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "medsage_request_total",
			Help: "Total number of requests processed.",
		}, []string{"route", "status"}),

		RequestDurationMs: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "medsage_request_duration_ms",
			Help:    "Request duration in milliseconds (including external calls).",
			Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000},
		}, []string{"route"}),

		RateLimitHitTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "medsage_rate_limit_hit_total",
			Help: "Requests rejected by the rate limiter.",
		}, []string{"operation"}),

		ClassifierTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "medsage_classifier_result_total",
			Help: "Image classifications by outcome label (or 'failed').",
		}, []string{"label"}),

		DegradedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "medsage_degraded_diagnosis_total",
			Help: "Diagnoses served with the fallback text because generation failed.",
		}),

		PersistFailureTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "medsage_persistence_failure_total",
			Help: "Diagnosis records that failed to persist or verify.",
		}),

		HealthCheckUnhealthy: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "medsage_health_check_unhealthy_total",
			Help: "Health sub-check failures by check name.",
		}, []string{"check"}),
	}
}

// RecordRequest records the outcome of one handled request.
func (m *Metrics) RecordRequest(route, status string, durationMs float64) {
	m.RequestTotal.WithLabelValues(route, status).Inc()
	m.RequestDurationMs.WithLabelValues(route).Observe(durationMs)
}

// RecordRateLimitHit records a rejected request for the operation.
func (m *Metrics) RecordRateLimitHit(operation string) {
	m.RateLimitHitTotal.WithLabelValues(operation).Inc()
}

// RecordClassification records a classifier outcome; label is the
// predicted class or "failed".
func (m *Metrics) RecordClassification(label string) {
	m.ClassifierTotal.WithLabelValues(label).Inc()
}
