// Package metrics holds the prometheus collectors of the sync layer. A nil
// *Metrics is valid and records nothing.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the collectors registered on one registerer.
type Metrics struct {
	requests    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	refreshes   *prometheus.CounterVec
	submissions *prometheus.CounterVec
	cache       *prometheus.CounterVec
}

// New registers the collectors on reg. Pass prometheus.NewRegistry() in tests
// to keep registrations isolated.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "formsync_api_requests_total",
				Help: "API requests by resource, method and status code.",
			},
			[]string{"resource", "method", "status"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "formsync_api_request_duration_seconds",
				Help:    "API request latency in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"resource", "method"},
		),
		refreshes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "formsync_token_refresh_total",
				Help: "Access token refresh attempts by outcome.",
			},
			[]string{"outcome"},
		),
		submissions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "formsync_submissions_total",
				Help: "Form submissions by entity, mode and outcome.",
			},
			[]string{"entity", "mode", "outcome"},
		),
		cache: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "formsync_cache_lookups_total",
				Help: "Read cache lookups by result.",
			},
			[]string{"result"},
		),
	}
}

// ObserveRequest records one API round trip. Status 0 means a transport
// failure.
func (m *Metrics) ObserveRequest(resource, method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(resource, method, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(resource, method).Observe(elapsed.Seconds())
}

// Refresh records a token refresh outcome ("ok" or "failed").
func (m *Metrics) Refresh(outcome string) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(outcome).Inc()
}

// Submission records a submission outcome ("ok", "failed", "rejected").
func (m *Metrics) Submission(entity, mode, outcome string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(entity, mode, outcome).Inc()
}

// CacheLookup records a read cache hit or miss.
func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cache.WithLabelValues(result).Inc()
}
