// Package metrics holds the Prometheus collectors for ingestion and sessions.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	IngestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkpoints_ingest_total",
		Help: "Session summaries received, by outcome",
	}, []string{"outcome"})

	IngestRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkpoints_ingest_rejections_total",
		Help: "Summaries rejected by the anti-abuse gate, by reason",
	}, []string{"reason"})

	IngestRateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checkpoints_ingest_rate_limited_total",
		Help: "Ingest requests refused by the per-client rate limiter",
	})

	IngestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "checkpoints_ingest_duration_seconds",
		Help:    "Time spent persisting one accepted summary",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	})

	StoreRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkpoints_store_retries_total",
		Help: "Transient store failures retried, by operation",
	}, []string{"op"})

	SessionsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checkpoints_sessions_started_total",
		Help: "Interview sessions started",
	})

	SessionsEnded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checkpoints_sessions_ended_total",
		Help: "Interview sessions ended",
	})

	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "checkpoints_active_sessions",
		Help: "Interview sessions currently active in memory",
	})
)

// Ingest outcomes.
const (
	OutcomeOK       = "ok"
	OutcomePartial  = "partial"
	OutcomeInvalid  = "invalid"
	OutcomeRejected = "rejected"
)
