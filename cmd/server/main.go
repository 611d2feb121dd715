// Feedscout - Social Profile Content Retrieval API
// Copyright 2026 Feedscout Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/feedscout/feedscout

// Package main is the entry point for the Feedscout server.
//
// Feedscout retrieves public profile content from a configured social site,
// normalizes it into canonical records, and serves it over a small REST API.
// Retrieval is tiered: a lightweight HTTP fetch runs first, and a headless
// Chrome render takes over when the lightweight tier times out, fails, or
// comes back empty.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: layered settings from defaults, config.yaml, and
//     environment variables (Koanf v2)
//  2. Session builder: default and fallback credentials for upstream requests
//  3. Lightweight fetch client: throttled HTTP tier with retries and a
//     circuit breaker
//  4. Browser tier (optional): headless Chrome escalation via chromedp
//  5. Retrieval engine: tier orchestration, normalization, response cache,
//     and per-client rate limiting
//  6. HTTP server: Chi router with Prometheus metrics on /metrics
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins):
//   - Environment variables (SITE_BASE_URL, SESSION_CREDENTIALS, ...)
//   - Config file (config.yaml, or CONFIG_PATH)
//   - Built-in defaults
//
// # Signal Handling
//
// The server shuts down gracefully on SIGINT and SIGTERM: it stops accepting
// new connections and waits up to 10 seconds for in-flight requests.
//
// # Example Usage
//
// Public retrieval only, no browser escalation:
//
//	export BROWSER_ENABLED=false
//	./feedscout
//
// With a default session and Chrome escalation:
//
//	export SESSION_CREDENTIALS="sessionid=...; tt_csrf_token=..."
//	export CHROME_PATH=/usr/bin/chromium
//	./feedscout
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"regexp"
	"syscall"
	"time"

	"github.com/feedscout/feedscout/internal/api"
	"github.com/feedscout/feedscout/internal/browser"
	"github.com/feedscout/feedscout/internal/cache"
	"github.com/feedscout/feedscout/internal/config"
	"github.com/feedscout/feedscout/internal/fetch"
	"github.com/feedscout/feedscout/internal/logging"
	"github.com/feedscout/feedscout/internal/normalize"
	"github.com/feedscout/feedscout/internal/ratelimit"
	"github.com/feedscout/feedscout/internal/retrieval"
	"github.com/feedscout/feedscout/internal/session"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Use default logger for config errors (config not yet available)
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("version", version).
		Str("site", cfg.Site.BaseURL).
		Str("environment", cfg.Server.Environment).
		Msg("Starting Feedscout")

	engine := buildEngine(cfg)
	router := api.NewRouter(cfg, engine, version)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	serveErrCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		serveErrCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logging.Info().Msg("Shutting down HTTP server...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logging.Error().Err(err).Msg("HTTP server shutdown error")
		}
		<-serveErrCh
	case err := <-serveErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal().Err(err).Msg("HTTP server failed")
		}
	}

	logging.Info().Msg("Application stopped gracefully")
}

// buildEngine wires the retrieval pipeline from configuration: session
// builder, lightweight fetch tier, optional browser tier, normalizer,
// response cache, and rate limiter.
func buildEngine(cfg *config.Config) *retrieval.Engine {
	sessions := session.NewBuilder(
		cfg.Site.CredentialScope,
		cfg.Site.CredentialPath,
		cfg.Session.Credentials,
		cfg.Session.Fallbacks,
	)

	fetcher := fetch.NewClient(&cfg.Site, &cfg.Retrieval)

	var escalator retrieval.Escalator
	if cfg.Browser.Enabled {
		escalator = browser.NewTier(&cfg.Site, &cfg.Browser, &cfg.Retrieval, nil)
		logging.Info().
			Dur("navigation_timeout", cfg.Browser.NavigationTimeout).
			Dur("content_wait_timeout", cfg.Browser.ContentWaitTimeout).
			Msg("Browser escalation tier enabled")
	} else {
		logging.Info().Msg("Browser escalation disabled (BROWSER_ENABLED=false)")
	}

	// Validated at load time, so MustCompile is safe here.
	recordURLTemplate := cfg.Site.BaseURL + cfg.Site.ProfilePath + cfg.Site.RecordPath
	normalizer := normalize.New(recordURLTemplate, regexp.MustCompile(cfg.Site.RecordIDPattern))

	store := cache.NewStore(cfg.Cache.TTL, cfg.Cache.ErrorTTL, cfg.Cache.Capacity)
	if store.Enabled() {
		logging.Info().
			Dur("ttl", cfg.Cache.TTL).
			Int("capacity", cfg.Cache.Capacity).
			Msg("Response cache enabled")
	} else {
		logging.Info().Msg("Response cache disabled")
	}

	limiter := ratelimit.New(rateWindows(&cfg.RateLimit))
	if !limiter.Enabled() {
		logging.Info().Msg("Rate limiting disabled")
	}

	return retrieval.NewEngine(sessions, fetcher, escalator, normalizer, store, limiter)
}

// rateWindows converts rate limit settings into limiter windows. Windows
// with a zero limit are omitted.
func rateWindows(cfg *config.RateLimitConfig) []ratelimit.Window {
	var windows []ratelimit.Window
	if cfg.PerMinute > 0 {
		windows = append(windows, ratelimit.Window{Name: "minute", Duration: time.Minute, Limit: cfg.PerMinute})
	}
	if cfg.PerHour > 0 {
		windows = append(windows, ratelimit.Window{Name: "hour", Duration: time.Hour, Limit: cfg.PerHour})
	}
	return windows
}
