// Feedscout - Social Profile Content Retrieval API
// Copyright 2026 Feedscout Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/feedscout/feedscout

// Package config provides layered configuration loading for Feedscout.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: built-in sensible defaults for all optional settings
//  2. Config File: optional YAML config file (config.yaml)
//  3. Environment Variables: override any setting
//
// Config is immutable after Load() and safe for concurrent reads.
package config

import "time"

// Config holds all application configuration.
type Config struct {
	Site      SiteConfig      `koanf:"site"`
	Session   SessionConfig   `koanf:"session"`
	Retrieval RetrievalConfig `koanf:"retrieval"`
	Browser   BrowserConfig   `koanf:"browser"`
	Cache     CacheConfig     `koanf:"cache"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
	Server    ServerConfig    `koanf:"server"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// SiteConfig describes the target site this instance retrieves from.
// One engine deployment serves one site; all site-specific constants
// (URL shape, credential scope, content markers) live here so the
// retrieval pipeline itself stays site-agnostic.
//
// Environment Variables:
//   - SITE_BASE_URL: e.g. https://www.tiktok.com
//   - SITE_PROFILE_PATH: fmt template for a profile page, e.g. /@%s
//   - SITE_CREDENTIAL_SCOPE: cookie domain credentials are scoped to
type SiteConfig struct {
	// BaseURL is the scheme and host of the target site.
	BaseURL string `koanf:"base_url"`

	// ProfilePath is an fmt template producing the public profile page path
	// for a target identity, e.g. "/@%s".
	ProfilePath string `koanf:"profile_path"`

	// CredentialScope is the cookie domain applied to credentials that
	// arrive without one (e.g. ".tiktok.com").
	CredentialScope string `koanf:"credential_scope"`

	// CredentialPath is the cookie path applied to credentials that arrive
	// without one.
	CredentialPath string `koanf:"credential_path"`

	// ContentMarker is a CSS selector whose appearance signals that profile
	// content has rendered. The automation tier waits for it.
	ContentMarker string `koanf:"content_marker"`

	// NotFoundMarker is a CSS selector whose appearance in a rendered page
	// is a definitive absence signal for the target.
	NotFoundMarker string `koanf:"not_found_marker"`

	// RecordPath is an fmt template producing the path of an individual
	// record page under a profile, e.g. "/video/%s". Canonical record URLs
	// are BaseURL + ProfilePath + RecordPath.
	RecordPath string `koanf:"record_path"`

	// RecordIDPattern is a regular expression with one capture group that
	// recovers a record ID from a record URL, e.g. `/video/(\d+)`.
	RecordIDPattern string `koanf:"record_id_pattern"`
}

// SessionConfig holds process-wide credential material. Per-request
// credentials supplied in headers take priority over these.
type SessionConfig struct {
	// Credentials is the default credential bundle, in any of the accepted
	// blob forms (cookie-header string, base64 of one, or JSON array).
	Credentials string `koanf:"credentials"`

	// Fallbacks are individually named credentials that fill remaining gaps
	// after the request and default bundles are merged.
	Fallbacks map[string]string `koanf:"fallbacks"`
}

// RetrievalConfig controls the lightweight fetch tier and overall limits.
type RetrievalConfig struct {
	// MaxItems caps how many raw items a single retrieval collects before
	// normalization.
	MaxItems int `koanf:"max_items"`

	// FetchTimeout bounds one lightweight HTTP attempt.
	FetchTimeout time.Duration `koanf:"fetch_timeout"`

	// RetryAttempts is the total attempt budget for transient failures in
	// the lightweight tier.
	RetryAttempts int `koanf:"retry_attempts"`

	// RetryDelay is the linear backoff unit: attempt n waits n*RetryDelay.
	RetryDelay time.Duration `koanf:"retry_delay"`

	// ThrottlePerSecond paces upstream requests across all in-flight
	// retrievals. Zero disables pacing.
	ThrottlePerSecond float64 `koanf:"throttle_per_second"`

	// UserAgent is sent on lightweight fetches and applied to the browser.
	UserAgent string `koanf:"user_agent"`

	// BreakerEnabled wraps the lightweight tier in a circuit breaker.
	BreakerEnabled bool `koanf:"breaker_enabled"`
}

// BrowserConfig controls the full-render escalation tier.
type BrowserConfig struct {
	// Enabled allows escalation to headless Chrome. When false the engine
	// reports extraction failures without escalating.
	Enabled bool `koanf:"enabled"`

	// ChromePath is the Chrome/Chromium binary. Empty means look up in PATH.
	ChromePath string `koanf:"chrome_path"`

	// NavigationTimeout bounds page navigation.
	NavigationTimeout time.Duration `koanf:"navigation_timeout"`

	// ContentWaitTimeout bounds the wait for the site's content marker
	// after navigation completes.
	ContentWaitTimeout time.Duration `koanf:"content_wait_timeout"`
}

// CacheConfig controls the response cache. TTL or Capacity of zero disables
// caching entirely.
type CacheConfig struct {
	TTL      time.Duration `koanf:"ttl"`
	Capacity int           `koanf:"capacity"`

	// ErrorTTL is the short TTL applied to definitive not-found outcomes.
	ErrorTTL time.Duration `koanf:"error_ttl"`
}

// RateLimitConfig controls per-client rate limiting. A limit of zero
// disables that window.
type RateLimitConfig struct {
	PerMinute int `koanf:"per_minute"`
	PerHour   int `koanf:"per_hour"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port        int           `koanf:"port"`
	Host        string        `koanf:"host"`
	Timeout     time.Duration `koanf:"timeout"`
	Environment string        `koanf:"environment"`
	CORSOrigins []string      `koanf:"cors_origins"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Load loads configuration from defaults, an optional config file, and
// environment variables, then validates it.
func Load() (*Config, error) {
	return loadWithKoanf()
}
