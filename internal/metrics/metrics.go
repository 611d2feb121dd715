// Feedscout - Social Profile Content Retrieval API
// Copyright 2026 Feedscout Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/feedscout/feedscout

// Package metrics provides Prometheus instrumentation for the retrieval
// engine: per-tier retrieval outcomes, cache efficiency, rate limiting, and
// API endpoint latency.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API Metrics
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "feedscout_api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedscout_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	// Retrieval Metrics
	RetrievalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedscout_retrievals_total",
			Help: "Total number of retrieval attempts by tier and outcome",
		},
		[]string{"tier", "outcome"}, // tier: "http", "automation"; outcome: "success", "not_found", "timeout", "error", "empty"
	)

	RetrievalDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "feedscout_retrieval_duration_seconds",
			Help:    "Duration of retrieval tier attempts in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 40},
		},
		[]string{"tier"},
	)

	EscalationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedscout_escalations_total",
			Help: "Total number of escalations to the automation tier by reason",
		},
		[]string{"reason"},
	)

	RecordsNormalized = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "feedscout_records_normalized_total",
			Help: "Total number of raw items normalized into canonical records",
		},
	)

	RecordsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "feedscout_records_dropped_total",
			Help: "Total number of raw items dropped for lacking identity or URL",
		},
	)

	// Cache Metrics
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "feedscout_cache_hits_total",
			Help: "Total number of response cache hits",
		},
	)

	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "feedscout_cache_misses_total",
			Help: "Total number of response cache misses",
		},
	)

	// Rate Limit Metrics
	RateLimitDenials = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedscout_rate_limit_denials_total",
			Help: "Total number of requests denied by the rate limiter",
		},
		[]string{"window"},
	)
)

// RecordAPIRequest records one served API request.
func RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	code := strconv.Itoa(statusCode)
	APIRequestDuration.WithLabelValues(method, endpoint, code).Observe(duration.Seconds())
	APIRequestsTotal.WithLabelValues(method, endpoint, code).Inc()
}

// RecordRetrieval records one tier attempt.
func RecordRetrieval(tier, outcome string, duration time.Duration) {
	RetrievalsTotal.WithLabelValues(tier, outcome).Inc()
	RetrievalDuration.WithLabelValues(tier).Observe(duration.Seconds())
}

// RecordNormalization records a normalization pass.
func RecordNormalization(kept, dropped int) {
	RecordsNormalized.Add(float64(kept))
	RecordsDropped.Add(float64(dropped))
}

// RecordCacheLookup records a cache probe.
func RecordCacheLookup(hit bool) {
	if hit {
		CacheHits.Inc()
		return
	}
	CacheMisses.Inc()
}
