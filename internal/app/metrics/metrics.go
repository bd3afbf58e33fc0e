package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "escrow_layer",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "escrow_layer",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "escrow_layer",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	missionTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "escrow_layer",
			Subsystem: "missions",
			Name:      "transitions_total",
			Help:      "Total number of mission state transitions.",
		},
		[]string{"to"},
	)

	disputeTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "escrow_layer",
			Subsystem: "disputes",
			Name:      "transitions_total",
			Help:      "Total number of dispute state transitions.",
		},
		[]string{"to"},
	)

	valueDistributed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "escrow_layer",
			Subsystem: "payouts",
			Name:      "value_distributed_microunits_total",
			Help:      "Total micro-units of value distributed, by payout leg.",
		},
		[]string{"leg"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		missionTransitions,
		disputeTransitions,
		valueDistributed,
	)
}

// Handler exposes the registry over HTTP.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// IncrementInFlight marks an HTTP request as started.
func IncrementInFlight() { httpInFlight.Inc() }

// DecrementInFlight marks an HTTP request as finished.
func DecrementInFlight() { httpInFlight.Dec() }

// RecordHTTPRequest records one handled HTTP request.
func RecordHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequests.WithLabelValues(method, path, status).Inc()
	httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordMissionTransition counts a mission entering a state.
func RecordMissionTransition(to string) {
	missionTransitions.WithLabelValues(to).Inc()
}

// RecordDisputeTransition counts a dispute entering a state.
func RecordDisputeTransition(to string) {
	disputeTransitions.WithLabelValues(to).Inc()
}

// RecordPayout counts distributed value on a payout leg.
func RecordPayout(leg string, amount int64) {
	if amount <= 0 {
		return
	}
	valueDistributed.WithLabelValues(leg).Add(float64(amount))
}
