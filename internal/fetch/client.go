// Feedscout - Social Profile Content Retrieval API
// Copyright 2026 Feedscout Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/feedscout/feedscout

// Package fetch implements the lightweight retrieval tier: a direct HTTP
// request for a target's public profile page, with bounded retries, upstream
// pacing, and a circuit breaker. Extraction works on the embedded page JSON
// and falls back to the server-rendered DOM.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/feedscout/feedscout/internal/config"
	"github.com/feedscout/feedscout/internal/logging"
	"github.com/feedscout/feedscout/internal/normalize"
	"github.com/feedscout/feedscout/internal/session"
)

// Sentinel outcomes of the lightweight tier. The orchestrator maps these to
// its typed error kinds and decides whether to escalate.
var (
	// ErrTargetNotFound is a definitive absence signal: HTTP 404/410 or a
	// recognized not-found marker in the page. Never escalated.
	ErrTargetNotFound = errors.New("target not found")
	// ErrTimeout means the request deadline elapsed on every attempt.
	ErrTimeout = errors.New("fetch timed out")
	// ErrUpstream means the upstream kept failing across all attempts.
	ErrUpstream = errors.New("upstream request failed")
	// ErrBreakerOpen means the circuit breaker is rejecting requests.
	ErrBreakerOpen = errors.New("circuit breaker open")
)

// maxErrorBodyBytes caps how much of an error response body is read for
// diagnostics.
const maxErrorBodyBytes = 64 * 1024

// maxPageBytes caps how much page HTML is read. Profile pages run a few MB.
const maxPageBytes = 16 * 1024 * 1024

// errNonRetryable marks a definitive upstream refusal that another attempt
// cannot change, such as a 403. The retry loop stops on it immediately.
var errNonRetryable = errors.New("non-retryable status")

// transient status codes worth another attempt.
func isTransientStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

// Client performs lightweight page fetches against one target site.
type Client struct {
	httpClient *http.Client
	baseURL    string
	pagePath   string
	userAgent  string

	attempts   int
	retryDelay time.Duration
	maxItems   int

	throttle *rate.Limiter
	breaker  *gobreaker.CircuitBreaker[[]normalize.RawItem]

	extractor *Extractor
}

// NewClient builds a fetch client from the site and retrieval configuration.
func NewClient(site *config.SiteConfig, ret *config.RetrievalConfig) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: ret.FetchTimeout},
		baseURL:    strings.TrimRight(site.BaseURL, "/"),
		pagePath:   site.ProfilePath,
		userAgent:  ret.UserAgent,
		attempts:   ret.RetryAttempts,
		retryDelay: ret.RetryDelay,
		maxItems:   ret.MaxItems,
		extractor:  NewExtractor(site.NotFoundMarker, site.ContentMarker).WithBaseURL(site.BaseURL),
	}
	if c.attempts < 1 {
		c.attempts = 1
	}
	if ret.ThrottlePerSecond > 0 {
		c.throttle = rate.NewLimiter(rate.Limit(ret.ThrottlePerSecond), 1)
	}
	if ret.BreakerEnabled {
		c.breaker = newBreaker()
	}
	return c
}

// newBreaker configures the upstream circuit breaker: opens at a 60% failure
// rate over at least 10 requests, recovers through a half-open probe window.
func newBreaker() *gobreaker.CircuitBreaker[[]normalize.RawItem] {
	return gobreaker.NewCircuitBreaker[[]normalize.RawItem](gobreaker.Settings{
		Name:        "profile-fetch",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state transition")
		},
		IsSuccessful: func(err error) bool {
			// A definitive not-found is a healthy upstream answer.
			return err == nil || errors.Is(err, ErrTargetNotFound)
		},
	})
}

// Fetch retrieves and extracts raw items for the target. A nil error with an
// empty slice means the page was fetched but held no recognizable items; the
// orchestrator decides whether that warrants escalation.
func (c *Client) Fetch(ctx context.Context, target string, sess *session.Context) ([]normalize.RawItem, error) {
	if c.throttle != nil {
		if err := c.throttle.Wait(ctx); err != nil {
			return nil, fmt.Errorf("throttle wait: %w", err)
		}
	}

	if c.breaker == nil {
		return c.fetchWithRetries(ctx, target, sess)
	}

	items, err := c.breaker.Execute(func() ([]normalize.RawItem, error) {
		return c.fetchWithRetries(ctx, target, sess)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %w", ErrBreakerOpen, err)
	}
	return items, err
}

// fetchWithRetries runs the bounded retry loop with linear backoff. Only
// transient statuses and network errors are retried; a definitive not-found
// short-circuits immediately.
func (c *Client) fetchWithRetries(ctx context.Context, target string, sess *session.Context) ([]normalize.RawItem, error) {
	pageURL := c.baseURL + fmt.Sprintf(c.pagePath, target)

	var lastErr error
	sawTimeout := false

	for attempt := 1; attempt <= c.attempts; attempt++ {
		if attempt > 1 {
			// Linear backoff between attempts.
			if err := sleepCtx(ctx, time.Duration(attempt-1)*c.retryDelay); err != nil {
				return nil, err
			}
		}

		items, err := c.fetchOnce(ctx, pageURL, target, sess)
		if err == nil {
			return items, nil
		}
		if errors.Is(err, ErrTargetNotFound) || ctx.Err() != nil {
			return nil, err
		}
		if errors.Is(err, errNonRetryable) {
			return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
		}

		lastErr = err
		if isTimeout(err) {
			sawTimeout = true
		}
		logging.Warn().
			Str("target", target).
			Int("attempt", attempt).
			Int("max_attempts", c.attempts).
			Err(err).
			Msg("Lightweight fetch attempt failed")
	}

	if sawTimeout {
		return nil, fmt.Errorf("%w after %d attempts: %w", ErrTimeout, c.attempts, lastErr)
	}
	return nil, fmt.Errorf("%w after %d attempts: %w", ErrUpstream, c.attempts, lastErr)
}

func (c *Client) fetchOnce(ctx context.Context, pageURL, target string, sess *session.Context) ([]normalize.RawItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	if sess != nil && sess.Len() > 0 {
		req.Header.Set("Cookie", sess.CookieHeader())
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return nil, fmt.Errorf("%w: status %d", ErrTargetNotFound, resp.StatusCode)
	case !isTransientStatus(resp.StatusCode) && resp.StatusCode != http.StatusOK:
		body := readBodyForError(resp.Body)
		return nil, fmt.Errorf("%w %d: %s", errNonRetryable, resp.StatusCode, body)
	case resp.StatusCode != http.StatusOK:
		body := readBodyForError(resp.Body)
		return nil, fmt.Errorf("transient status %d: %s", resp.StatusCode, body)
	}

	html, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("read page body: %w", err)
	}

	items, err := c.extractor.Extract(string(html), target)
	if err != nil {
		return nil, err
	}
	if c.maxItems > 0 && len(items) > c.maxItems {
		items = items[:c.maxItems]
	}
	return items, nil
}

// readBodyForError captures a bounded slice of an error response for logs.
func readBodyForError(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, maxErrorBodyBytes))
	if err != nil || len(data) == 0 {
		return "<no body>"
	}
	return strings.TrimSpace(string(data))
}

// isTimeout matches deadline and net-level timeout errors.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// sleepCtx waits for d or until the context ends, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
