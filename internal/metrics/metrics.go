// Package metrics provides Prometheus metrics for orderdesk.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// GuardDecisionsTotal counts route guard outcomes.
	GuardDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "orderdesk",
			Name:      "guard_decisions_total",
			Help:      "Total number of route guard decisions",
		},
		[]string{"outcome"},
	)

	// BackendRequestsTotal counts REST backend calls by endpoint and status.
	BackendRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "orderdesk",
			Name:      "backend_requests_total",
			Help:      "Total number of REST backend requests",
		},
		[]string{"endpoint", "status"},
	)

	// BackendRequestDuration measures REST backend latency.
	BackendRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "orderdesk",
			Name:      "backend_request_duration_seconds",
			Help:      "Duration of REST backend requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	// OrderSubmissionsTotal counts order submissions by result.
	OrderSubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "orderdesk",
			Name:      "order_submissions_total",
			Help:      "Total number of order submissions",
		},
		[]string{"result"},
	)

	// SignInsTotal counts completed redirect sign-ins.
	SignInsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "orderdesk",
			Name:      "sign_ins_total",
			Help:      "Total number of redirect sign-in callbacks",
		},
		[]string{"result"},
	)

	// ActiveProfiles tracks live profile workspaces.
	ActiveProfiles = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "orderdesk",
			Name:      "active_profiles",
			Help:      "Number of profile workspaces held in memory",
		},
	)
)

func RecordGuardDecision(outcome string) {
	GuardDecisionsTotal.WithLabelValues(outcome).Inc()
}

// RecordBackendRequest records one backend call. status is the HTTP status
// code, or "error" when no response arrived.
func RecordBackendRequest(endpoint, status string, duration float64) {
	BackendRequestsTotal.WithLabelValues(endpoint, status).Inc()
	BackendRequestDuration.WithLabelValues(endpoint).Observe(duration)
}

func RecordOrderSubmission(result string) {
	OrderSubmissionsTotal.WithLabelValues(result).Inc()
}

func RecordSignIn(result string) {
	SignInsTotal.WithLabelValues(result).Inc()
}

func SetActiveProfiles(n int) {
	ActiveProfiles.Set(float64(n))
}
