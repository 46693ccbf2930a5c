// Package metrics exposes the Prometheus instruments for the research
// pipeline. Collectors are registered on the default registry so the
// /metrics endpoint picks them up without extra wiring.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// QueriesTotal counts research queries by outcome ("completed" or
	// "failed").
	QueriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bizlaw_research_queries_total",
		Help: "Number of research queries processed, by outcome.",
	}, []string{"outcome"})

	// SearchesTotal counts jurisdiction searches by jurisdiction and
	// outcome ("ok" or "degraded").
	SearchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bizlaw_jurisdiction_searches_total",
		Help: "Number of jurisdiction searches, by jurisdiction and outcome.",
	}, []string{"jurisdiction", "outcome"})

	// ParseFailures counts model responses that could not be parsed into a
	// structured analysis.
	ParseFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bizlaw_synthesis_parse_failures_total",
		Help: "Number of model responses rejected by the analysis parser.",
	})

	// QueryDuration tracks the end-to-end latency of a research query,
	// from source discovery through parsed analysis.
	QueryDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "bizlaw_query_duration_seconds",
		Help:    "End-to-end research query latency in seconds.",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
	})
)
