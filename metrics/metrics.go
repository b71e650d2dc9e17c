// Package metrics registers the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ProviderSearches counts catalog provider calls by outcome
	// (ok, empty, error).
	ProviderSearches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "readrival",
		Subsystem: "catalog",
		Name:      "provider_searches_total",
		Help:      "Metadata provider searches by outcome.",
	}, []string{"outcome"})

	CatalogFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "readrival",
		Subsystem: "catalog",
		Name:      "local_fallbacks_total",
		Help:      "Searches answered from the local catalog.",
	})

	BookUpsertFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "readrival",
		Subsystem: "catalog",
		Name:      "upsert_failures_total",
		Help:      "Resolved books that failed to persist.",
	})

	LeaderboardDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "readrival",
		Subsystem: "leaderboard",
		Name:      "compute_duration_seconds",
		Help:      "Leaderboard computation time.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"metric", "period"})

	ChallengeCompletions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "readrival",
		Subsystem: "challenges",
		Name:      "completions_total",
		Help:      "Challenge participations that reached their target.",
	})

	PointsCredited = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "readrival",
		Subsystem: "points",
		Name:      "credited_total",
		Help:      "Points credited to users by source type.",
	}, []string{"source"})

	// ExternalCallFailures counts failed calls to AI, payment and storage vendors.
	ExternalCallFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "readrival",
		Name:      "external_call_failures_total",
		Help:      "Failed calls to external vendors.",
	}, []string{"vendor"})

	WorkerRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "readrival",
		Subsystem: "workers",
		Name:      "runs_total",
		Help:      "Background worker batches by worker and result.",
	}, []string{"worker", "result"})
)
