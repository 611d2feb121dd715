// Feedscout - Social Profile Content Retrieval API
// Copyright 2026 Feedscout Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/feedscout/feedscout

package config

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Validate checks the configuration for invalid or inconsistent values.
// It is called automatically by Load().
func (c *Config) Validate() error {
	if c.Site.BaseURL == "" {
		return fmt.Errorf("site.base_url is required")
	}
	parsed, err := url.Parse(c.Site.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("site.base_url %q is not a valid URL", c.Site.BaseURL)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("site.base_url scheme must be http or https, got %q", parsed.Scheme)
	}
	if !strings.Contains(c.Site.ProfilePath, "%s") {
		return fmt.Errorf("site.profile_path must contain a %%s placeholder, got %q", c.Site.ProfilePath)
	}
	if !strings.Contains(c.Site.RecordPath, "%s") {
		return fmt.Errorf("site.record_path must contain a %%s placeholder, got %q", c.Site.RecordPath)
	}
	if _, err := regexp.Compile(c.Site.RecordIDPattern); err != nil {
		return fmt.Errorf("site.record_id_pattern %q is not a valid regular expression: %v", c.Site.RecordIDPattern, err)
	}

	if c.Retrieval.MaxItems <= 0 {
		return fmt.Errorf("retrieval.max_items must be positive, got %d", c.Retrieval.MaxItems)
	}
	if c.Retrieval.RetryAttempts < 1 {
		return fmt.Errorf("retrieval.retry_attempts must be at least 1, got %d", c.Retrieval.RetryAttempts)
	}
	if c.Retrieval.FetchTimeout <= 0 {
		return fmt.Errorf("retrieval.fetch_timeout must be positive, got %s", c.Retrieval.FetchTimeout)
	}
	if c.Retrieval.RetryDelay < 0 {
		return fmt.Errorf("retrieval.retry_delay must not be negative, got %s", c.Retrieval.RetryDelay)
	}
	if c.Retrieval.ThrottlePerSecond < 0 {
		return fmt.Errorf("retrieval.throttle_per_second must not be negative, got %f", c.Retrieval.ThrottlePerSecond)
	}

	if c.Browser.Enabled {
		if c.Browser.NavigationTimeout <= 0 {
			return fmt.Errorf("browser.navigation_timeout must be positive, got %s", c.Browser.NavigationTimeout)
		}
		if c.Browser.ContentWaitTimeout <= 0 {
			return fmt.Errorf("browser.content_wait_timeout must be positive, got %s", c.Browser.ContentWaitTimeout)
		}
	}

	// TTL and capacity of zero are valid: they disable the cache.
	if c.Cache.TTL < 0 {
		return fmt.Errorf("cache.ttl must not be negative, got %s", c.Cache.TTL)
	}
	if c.Cache.Capacity < 0 {
		return fmt.Errorf("cache.capacity must not be negative, got %d", c.Cache.Capacity)
	}
	if c.Cache.ErrorTTL < 0 {
		return fmt.Errorf("cache.error_ttl must not be negative, got %s", c.Cache.ErrorTTL)
	}

	// Zero limits are valid: they disable the window.
	if c.RateLimit.PerMinute < 0 {
		return fmt.Errorf("rate_limit.per_minute must not be negative, got %d", c.RateLimit.PerMinute)
	}
	if c.RateLimit.PerHour < 0 {
		return fmt.Errorf("rate_limit.per_hour must not be negative, got %d", c.RateLimit.PerHour)
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in [1, 65535], got %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("server.timeout must be positive, got %s", c.Server.Timeout)
	}

	return nil
}
