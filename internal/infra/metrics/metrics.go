// Package metrics provides Prometheus metrics for reply-orchestrator.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// GatewayRequestsTotal counts outbound model gateway calls.
	GatewayRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reply",
			Name:      "gateway_requests_total",
			Help:      "Total number of model gateway requests",
		},
		[]string{"operation", "status"},
	)

	// GatewayTokensTotal counts tokens consumed by completion calls.
	GatewayTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reply",
			Name:      "gateway_tokens_total",
			Help:      "Total number of tokens consumed by completion calls",
		},
		[]string{"kind"},
	)

	// GatewayDuration measures gateway call duration.
	GatewayDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "reply",
			Name:      "gateway_duration_seconds",
			Help:      "Duration of model gateway requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// IngestJobsTotal counts ingestion jobs by outcome.
	IngestJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reply",
			Name:      "ingest_jobs_total",
			Help:      "Total number of ingestion jobs processed",
		},
		[]string{"source_type", "status"},
	)

	// PoolRebuildsTotal counts candidate pool rebuilds by outcome.
	PoolRebuildsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reply",
			Name:      "pool_rebuilds_total",
			Help:      "Total number of candidate pool rebuilds",
		},
		[]string{"status"},
	)

	// AnswersTotal counts composed answers by outcome.
	AnswersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reply",
			Name:      "answers_total",
			Help:      "Total number of answer compositions",
		},
		[]string{"status"},
	)

	// RetrievalHits observes hit counts returned per retrieval.
	RetrievalHits = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "reply",
			Name:      "retrieval_hits",
			Help:      "Distribution of hit counts returned per retrieval",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50, 100},
		},
		[]string{"source_type"},
	)

	// PendingIngestJobs tracks the queue depth seen by the worker.
	PendingIngestJobs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "reply",
			Name:      "pending_ingest_jobs",
			Help:      "Number of ingestion jobs waiting or in flight",
		},
	)
)

// RecordGatewayRequest records a gateway call.
func RecordGatewayRequest(operation, status string, duration float64) {
	GatewayRequestsTotal.WithLabelValues(operation, status).Inc()
	GatewayDuration.WithLabelValues(operation).Observe(duration)
}

// RecordTokenUsage records completion token consumption.
func RecordTokenUsage(prompt, completion int) {
	GatewayTokensTotal.WithLabelValues("prompt").Add(float64(prompt))
	GatewayTokensTotal.WithLabelValues("completion").Add(float64(completion))
}

// RecordIngestJob records an ingestion job outcome.
func RecordIngestJob(sourceType, status string) {
	IngestJobsTotal.WithLabelValues(sourceType, status).Inc()
}

// RecordPoolRebuild records a pool rebuild outcome.
func RecordPoolRebuild(status string) {
	PoolRebuildsTotal.WithLabelValues(status).Inc()
}

// RecordAnswer records an answer composition outcome.
func RecordAnswer(status string) {
	AnswersTotal.WithLabelValues(status).Inc()
}

// RecordRetrieval records the hit count for a retrieval.
func RecordRetrieval(sourceType string, hits int) {
	RetrievalHits.WithLabelValues(sourceType).Observe(float64(hits))
}
