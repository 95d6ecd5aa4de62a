package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "catalog", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "catalog", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)

	// DocumentWrites counts catalog document writes by mutation and outcome
	// (ok, conflict, too_large, error).
	DocumentWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "catalog", Name: "document_writes_total", Help: "Catalog document write attempts by mutation and result."},
		[]string{"op", "result"},
	)
	// DocumentConflicts counts version-token mismatches that triggered a retry
	// or surfaced as a conflict.
	DocumentConflicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "catalog", Name: "document_conflicts_total", Help: "Version conflicts observed while writing the catalog document."},
		[]string{"op"},
	)
	DocumentWriteDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Namespace: "catalog", Name: "document_write_seconds", Help: "Latency of a full fetch-mutate-write cycle.", Buckets: prometheus.DefBuckets},
		[]string{"op"},
	)

	MediaUploads = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "catalog", Name: "media_uploads_total", Help: "Image uploads to the media store by result."},
		[]string{"result"},
	)
	MediaRollbacks = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "catalog", Name: "media_rollbacks_total", Help: "Uploaded images deleted because their request failed."},
	)
	MediaCleanupFailures = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "catalog", Name: "media_cleanup_failures_total", Help: "Best-effort image deletions that failed."},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
	reg.MustRegister(DocumentWrites)
	reg.MustRegister(DocumentConflicts)
	reg.MustRegister(DocumentWriteDuration)
	reg.MustRegister(MediaUploads)
	reg.MustRegister(MediaRollbacks)
	reg.MustRegister(MediaCleanupFailures)
}
