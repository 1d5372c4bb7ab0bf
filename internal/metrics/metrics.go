// Package metrics provides Prometheus instrumentation for the retry engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RetriesScheduled counts retry decisions, labelled by the strategy that
	// produced them ("custom" or "standard").
	RetriesScheduled = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "retryd",
		Name:      "retries_scheduled_total",
		Help:      "Total number of retry decisions applied.",
	}, []string{"strategy"})

	// FallbacksApplied counts custom-strategy resolutions that degraded to
	// the standard strategy, labelled by failure reason.
	FallbacksApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "retryd",
		Name:      "fallbacks_applied_total",
		Help:      "Total number of retry decisions that fell back to the standard strategy.",
	}, []string{"reason"})

	// RetriesInitialized counts first-failure retry counter initializations.
	RetriesInitialized = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "retryd",
		Name:      "retries_initialized_total",
		Help:      "Total number of jobs whose retry counter was initialized from configuration.",
	})

	// RetriesExhausted counts jobs whose retry counter reached zero.
	RetriesExhausted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "retryd",
		Name:      "retries_exhausted_total",
		Help:      "Total number of jobs that exhausted their retry budget.",
	})

	// FailedJobsNotFound counts failure reports for jobs that no longer exist.
	FailedJobsNotFound = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "retryd",
		Name:      "failed_jobs_not_found_total",
		Help:      "Total number of failure reports for vanished jobs.",
	})

	// JobsDispatched counts re-eligible jobs handed to the work queue.
	JobsDispatched = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "retryd",
		Name:      "jobs_dispatched_total",
		Help:      "Total number of due jobs dispatched to the work queue.",
	})

	// DecisionDuration tracks end-to-end retry decision latency.
	DecisionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "retryd",
		Name:      "decision_duration_seconds",
		Help:      "Duration of retry decisions in seconds.",
		Buckets:   prometheus.DefBuckets,
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status code.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "retryd",
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks HTTP request latency.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "retryd",
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests in seconds.",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"method", "path", "status"})

	// ServerInfo exposes static server metadata as labels.
	ServerInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "retryd",
		Name:      "server_info",
		Help:      "Static server metadata.",
	}, []string{"version", "store"})
)

// Init sets static server metadata on the info metric.
func Init(version, store string) {
	ServerInfo.WithLabelValues(version, store).Set(1)
}
