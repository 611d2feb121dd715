// Feedscout - Social Profile Content Retrieval API
// Copyright 2026 Feedscout Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/feedscout/feedscout

// Package api provides HTTP routing for the retrieval engine using chi.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/feedscout/feedscout/internal/config"
	"github.com/feedscout/feedscout/internal/retrieval"
)

// NewRouter wires the full middleware stack and route tree.
func NewRouter(cfg *config.Config, engine *retrieval.Engine, version string) http.Handler {
	handler := NewHandler(engine, version)

	r := chi.NewRouter()

	// Global middleware, applied to all routes in order.
	r.Use(RequestIDWithLogging())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(CORS(cfg.Server.CORSOrigins))

	r.Get("/", handler.Root)

	r.Route("/api/v1", func(r chi.Router) {
		r.With(RateLimitHealth()).Get("/health", handler.Health)

		// Engine rate limiting happens inside Handle; no edge limiter
		// here so denials share the engine's retry-after accounting.
		r.With(PrometheusMetrics).Get("/profiles/{target}/records", handler.Records)
	})

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}
