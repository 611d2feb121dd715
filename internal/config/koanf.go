// Feedscout - Social Profile Content Retrieval API
// Copyright 2026 Feedscout Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/feedscout/feedscout

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/feedscout/config.yaml",
	"/etc/feedscout/config.yml",
}

// ConfigPathEnvVar is the environment variable that overrides the config
// file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config with all defaults applied. Defaults are
// loaded first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			BaseURL:         "https://www.tiktok.com",
			ProfilePath:     "/@%s",
			CredentialScope: ".tiktok.com",
			CredentialPath:  "/",
			ContentMarker:   `[data-e2e="user-post-item"]`,
			NotFoundMarker:  `[data-e2e="user-page-not-found"]`,
			RecordPath:      "/video/%s",
			RecordIDPattern: `/video/(\d+)`,
		},
		Session: SessionConfig{
			Credentials: "",
			Fallbacks:   map[string]string{},
		},
		Retrieval: RetrievalConfig{
			MaxItems:          200,
			FetchTimeout:      20 * time.Second,
			RetryAttempts:     3,
			RetryDelay:        500 * time.Millisecond,
			ThrottlePerSecond: 5,
			UserAgent:         "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120 Safari/537.36",
			BreakerEnabled:    true,
		},
		Browser: BrowserConfig{
			Enabled:            true,
			ChromePath:         "",
			NavigationTimeout:  30 * time.Second,
			ContentWaitTimeout: 15 * time.Second,
		},
		Cache: CacheConfig{
			TTL:      5 * time.Minute,
			Capacity: 1024,
			ErrorTTL: 30 * time.Second,
		},
		RateLimit: RateLimitConfig{
			PerMinute: 100,
			PerHour:   5000,
		},
		Server: ServerConfig{
			Port:        8000,
			Host:        "0.0.0.0",
			Timeout:     60 * time.Second,
			Environment: "development",
			CORSOrigins: []string{"*"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// loadWithKoanf loads configuration using Koanf v2 with layered sources:
// defaults, then an optional YAML file, then environment variables.
func loadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: defaults from struct
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	// Layer 2: optional config file
	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: environment variables (highest priority)
	// SITE_BASE_URL -> site.base_url, CACHE_TTL -> cache.ttl, etc.
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("load environment variables: %w", err)
	}

	// Env vars arrive as strings; convert known slice fields.
	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first config file found, or empty string.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths lists config paths parsed as comma-separated slices when
// they arrive from the environment.
var sliceConfigPaths = []string{
	"server.cors_origins",
}

// processSliceFields converts comma-separated string values to slices for
// known slice fields.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}
		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envTransformFunc maps environment variable names to koanf config paths.
//
// Examples:
//   - SITE_BASE_URL -> site.base_url
//   - SESSION_CREDENTIALS -> session.credentials
//   - RATE_LIMIT_PER_MINUTE -> rate_limit.per_minute
//   - HTTP_PORT -> server.port (legacy alias)
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	// Legacy aliases kept for deployments predating the nested layout.
	envMappings := map[string]string{
		"http_port":            "server.port",
		"http_host":            "server.host",
		"environment":          "server.environment",
		"log_level":            "logging.level",
		"log_format":           "logging.format",
		"session_cookie":       "session.credentials",
		"cache_ttl":            "cache.ttl",
		"max_retries":          "retrieval.retry_attempts",
		"request_timeout":      "retrieval.fetch_timeout",
		"throttle_per_second":  "retrieval.throttle_per_second",
		"chrome_path":          "browser.chrome_path",
		"rate_limit_requests_per_minute": "rate_limit.per_minute",
		"rate_limit_requests_per_hour":   "rate_limit.per_hour",
	}
	if mapped, ok := envMappings[key]; ok {
		return mapped
	}

	// Known section prefixes map SECTION_FIELD_NAME -> section.field_name.
	prefixes := []string{"site", "session", "retrieval", "browser", "cache", "rate_limit", "server", "logging"}
	for _, prefix := range prefixes {
		if strings.HasPrefix(key, prefix+"_") {
			return prefix + "." + strings.TrimPrefix(key, prefix+"_")
		}
	}

	// Unknown variables are ignored by returning an empty path.
	return ""
}
