// Feedscout - Social Profile Content Retrieval API
// Copyright 2026 Feedscout Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/feedscout/feedscout

// Package retrieval orchestrates the tiered retrieval pipeline: rate limit
// check, cache lookup, session build, lightweight fetch with escalation to
// browser automation, normalization, pagination, and cache store.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/feedscout/feedscout/internal/browser"
	"github.com/feedscout/feedscout/internal/cache"
	"github.com/feedscout/feedscout/internal/fetch"
	"github.com/feedscout/feedscout/internal/logging"
	"github.com/feedscout/feedscout/internal/metrics"
	"github.com/feedscout/feedscout/internal/models"
	"github.com/feedscout/feedscout/internal/normalize"
	"github.com/feedscout/feedscout/internal/pagination"
	"github.com/feedscout/feedscout/internal/ratelimit"
	"github.com/feedscout/feedscout/internal/session"
	"github.com/feedscout/feedscout/internal/validation"
)

// Retrieval tier names surfaced in diagnostics and metrics.
const (
	SourceHTTP       = "http"
	SourceAutomation = "automation"
	SourceCache      = "cache"
)

// Escalation reasons surfaced as http_fallback_reason.
const (
	ReasonTimeout       = "timeout"
	ReasonNoItems       = "no_items"
	ReasonUpstreamError = "upstream_error"
	ReasonBreakerOpen   = "breaker_open"
)

// Fetcher is the lightweight tier.
type Fetcher interface {
	Fetch(ctx context.Context, target string, sess *session.Context) ([]normalize.RawItem, error)
}

// Escalator is the browser automation tier.
type Escalator interface {
	Retrieve(ctx context.Context, target string, sess *session.Context) ([]normalize.RawItem, error)
}

// Request is the single inbound call the HTTP layer makes.
type Request struct {
	TargetIdentity string
	Page           int
	PageSize       int
	StartEpoch     *int64
	EndEpoch       *int64
	CredentialBlob string
	ClientID       string
}

// Diagnostics records how a response was produced. Escalation reasons are
// never silently dropped; they ride along into response metadata.
type Diagnostics struct {
	// Source names the tier that served the result.
	Source string
	// HTTPFallbackReason is set only when escalation occurred.
	HTTPFallbackReason string
	// CacheHit marks responses served from the response cache.
	CacheHit bool
	// DroppedItems counts raw items discarded during normalization.
	DroppedItems int
	// RequestTime is the server epoch when handling started.
	RequestTime int64
}

// Response is a successful engine result.
type Response struct {
	Result      models.ResultSet
	Diagnostics Diagnostics
	// Rate is the rate-limit decision for the caller, for response headers.
	Rate ratelimit.Decision
}

// Engine wires the pipeline components. All shared mutable state lives in
// the injected cache and limiter; everything else is request-local.
type Engine struct {
	sessions   *session.Builder
	fetcher    Fetcher
	escalator  Escalator
	normalizer *normalize.Normalizer
	cache      *cache.Store
	limiter    *ratelimit.Limiter
	now        func() time.Time

	requestCount atomic.Uint64
	errorCount   atomic.Uint64
}

// Counters reports lifetime request and error totals for the health
// endpoint.
func (e *Engine) Counters() (requests, failures uint64) {
	return e.requestCount.Load(), e.errorCount.Load()
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the engine clock.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates the orchestrator. escalator may be nil when browser
// automation is disabled.
func NewEngine(
	sessions *session.Builder,
	fetcher Fetcher,
	escalator Escalator,
	normalizer *normalize.Normalizer,
	store *cache.Store,
	limiter *ratelimit.Limiter,
	opts ...Option,
) *Engine {
	e := &Engine{
		sessions:   sessions,
		fetcher:    fetcher,
		escalator:  escalator,
		normalizer: normalizer,
		cache:      store,
		limiter:    limiter,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Handle runs one retrieval request end to end.
//
// Control flow: rate limiter, cache lookup, session build, tiered retrieval,
// normalization, pagination, cache store. A denied or invalid request never
// consumes upstream budget.
func (e *Engine) Handle(ctx context.Context, req Request) (*Response, error) {
	resp, err := e.handle(ctx, req)
	e.requestCount.Add(1)
	if err != nil {
		e.errorCount.Add(1)
	}
	return resp, err
}

func (e *Engine) handle(ctx context.Context, req Request) (*Response, error) {
	requestTime := e.now().Unix()

	decision := e.limiter.Check(req.ClientID)
	if !decision.Allowed {
		for _, window := range decision.Exceeded {
			metrics.RateLimitDenials.WithLabelValues(window).Inc()
		}
		return nil, &Error{
			Kind:              KindRateLimited,
			Message:           "rate limit exceeded",
			RetryAfterSeconds: decision.RetryAfterSeconds,
		}
	}

	sess := e.sessions.Build(req.CredentialBlob)
	query, err := e.buildQuery(req, sess.Fingerprint())
	if err != nil {
		return nil, err
	}

	key := e.cache.Key(query)
	if entry, ok := e.cache.Get(key); ok {
		metrics.RecordCacheLookup(true)
		if entry.NotFound {
			return nil, newTierError(SourceCache, KindTargetNotFound, "target not found (cached)", nil)
		}
		return &Response{
			Result:      entry.Payload,
			Diagnostics: Diagnostics{Source: SourceCache, CacheHit: true, RequestTime: requestTime},
			Rate:        decision,
		}, nil
	}
	metrics.RecordCacheLookup(false)

	items, diag, err := e.retrieveTiered(ctx, query.TargetIdentity, sess, key)
	if err != nil {
		return nil, err
	}
	diag.RequestTime = requestTime

	records, dropped := e.normalizer.Normalize(items, query.TargetIdentity)
	metrics.RecordNormalization(len(records), dropped)
	diag.DroppedItems = dropped
	if len(records) == 0 {
		// Items came back but none carried a usable identity or URL.
		return nil, newTierError(diag.Source, KindExtractionFailed, "no usable records after normalization", nil)
	}

	result := pagination.Paginate(records, query)
	e.cache.Put(key, result)

	logging.Ctx(ctx).Debug().
		Str("target", query.TargetIdentity).
		Str("source", diag.Source).
		Int("total", result.Total).
		Int("dropped", dropped).
		Msg("Retrieval completed")

	return &Response{Result: result, Diagnostics: diag, Rate: decision}, nil
}

// buildQuery validates inbound parameters into a RetrievalQuery.
func (e *Engine) buildQuery(req Request, fingerprint string) (models.RetrievalQuery, error) {
	query := models.RetrievalQuery{
		TargetIdentity:     strings.TrimSpace(strings.TrimPrefix(req.TargetIdentity, "@")),
		Page:               req.Page,
		PageSize:           req.PageSize,
		StartEpoch:         req.StartEpoch,
		EndEpoch:           req.EndEpoch,
		SessionFingerprint: fingerprint,
	}

	if verr := validation.ValidateStruct(query); verr != nil {
		apiErr := verr.ToAPIError()
		return models.RetrievalQuery{}, &Error{
			Kind:    KindInvalidInput,
			Message: apiErr.Message,
			Details: apiErr.Details,
			cause:   verr,
		}
	}
	if query.StartEpoch != nil && query.EndEpoch != nil && *query.StartEpoch > *query.EndEpoch {
		return models.RetrievalQuery{}, &Error{
			Kind:    KindInvalidInput,
			Message: "start_epoch must not exceed end_epoch",
			Details: map[string]interface{}{"start_epoch": "must be less than or equal to end_epoch"},
		}
	}
	return query, nil
}

// retrieveTiered runs the two-tier state machine:
// LightweightAttempt -> {Success | Escalate | Fail},
// AutomationAttempt -> {Success | Fail}.
func (e *Engine) retrieveTiered(ctx context.Context, target string, sess *session.Context, cacheKey string) ([]normalize.RawItem, Diagnostics, error) {
	started := e.now()
	items, err := e.fetcher.Fetch(ctx, target, sess)
	elapsed := e.now().Sub(started)

	var reason string
	switch {
	case err == nil && len(items) > 0:
		metrics.RecordRetrieval(SourceHTTP, "success", elapsed)
		return items, Diagnostics{Source: SourceHTTP}, nil

	case errors.Is(err, fetch.ErrTargetNotFound):
		metrics.RecordRetrieval(SourceHTTP, "not_found", elapsed)
		e.cache.PutNotFound(cacheKey)
		return nil, Diagnostics{}, newTierError(SourceHTTP, KindTargetNotFound, fmt.Sprintf("target %q not found", target), err)

	case err == nil:
		metrics.RecordRetrieval(SourceHTTP, "empty", elapsed)
		reason = ReasonNoItems

	case errors.Is(err, fetch.ErrTimeout):
		metrics.RecordRetrieval(SourceHTTP, "timeout", elapsed)
		reason = ReasonTimeout

	case errors.Is(err, fetch.ErrBreakerOpen):
		metrics.RecordRetrieval(SourceHTTP, "error", elapsed)
		reason = ReasonBreakerOpen

	case ctx.Err() != nil:
		metrics.RecordRetrieval(SourceHTTP, "error", elapsed)
		return nil, Diagnostics{}, e.cancellationError(ctx, err)

	default:
		metrics.RecordRetrieval(SourceHTTP, "error", elapsed)
		reason = ReasonUpstreamError
	}

	if e.escalator == nil {
		return nil, Diagnostics{}, e.terminalLightweightError(reason, err)
	}

	metrics.EscalationsTotal.WithLabelValues(reason).Inc()
	logging.Ctx(ctx).Info().
		Str("target", target).
		Str("reason", reason).
		Msg("Escalating to browser automation")

	return e.automationAttempt(ctx, target, sess, cacheKey, reason)
}

func (e *Engine) automationAttempt(ctx context.Context, target string, sess *session.Context, cacheKey, reason string) ([]normalize.RawItem, Diagnostics, error) {
	started := e.now()
	items, err := e.escalator.Retrieve(ctx, target, sess)
	elapsed := e.now().Sub(started)

	switch {
	case errors.Is(err, fetch.ErrTargetNotFound):
		metrics.RecordRetrieval(SourceAutomation, "not_found", elapsed)
		e.cache.PutNotFound(cacheKey)
		return nil, Diagnostics{}, newTierError(SourceAutomation, KindTargetNotFound, fmt.Sprintf("target %q not found", target), err)

	case errors.Is(err, browser.ErrLaunch):
		metrics.RecordRetrieval(SourceAutomation, "error", elapsed)
		return nil, Diagnostics{}, newTierError(SourceAutomation, KindUpstreamUnavailable, "browser automation unavailable", err)

	case errors.Is(err, browser.ErrTimeout) || errors.Is(err, context.DeadlineExceeded):
		metrics.RecordRetrieval(SourceAutomation, "timeout", elapsed)
		return nil, Diagnostics{}, newTierError(SourceAutomation, KindUpstreamTimeout, "browser automation timed out", err)

	case err != nil:
		if ctx.Err() != nil {
			metrics.RecordRetrieval(SourceAutomation, "error", elapsed)
			return nil, Diagnostics{}, e.cancellationError(ctx, err)
		}
		metrics.RecordRetrieval(SourceAutomation, "error", elapsed)
		return nil, Diagnostics{}, newTierError(SourceAutomation, KindUpstreamUnavailable, "browser automation failed", err)

	case len(items) == 0:
		// Both tiers ran and neither produced items, with no absence
		// signal observed. Never cached.
		metrics.RecordRetrieval(SourceAutomation, "empty", elapsed)
		return nil, Diagnostics{}, newTierError(SourceAutomation, KindExtractionFailed, "no items extracted by either tier", nil)
	}

	metrics.RecordRetrieval(SourceAutomation, "success", elapsed)
	return items, Diagnostics{Source: SourceAutomation, HTTPFallbackReason: reason}, nil
}

// terminalLightweightError maps a would-be escalation to a final error when
// automation is disabled.
func (e *Engine) terminalLightweightError(reason string, cause error) error {
	switch reason {
	case ReasonTimeout:
		return newTierError(SourceHTTP, KindUpstreamTimeout, "lightweight fetch timed out", cause)
	case ReasonNoItems:
		return newTierError(SourceHTTP, KindExtractionFailed, "no items extracted and automation disabled", cause)
	default:
		return newTierError(SourceHTTP, KindUpstreamUnavailable, "upstream fetch failed and automation disabled", cause)
	}
}

func (e *Engine) cancellationError(ctx context.Context, cause error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return NewError(KindUpstreamTimeout, "request deadline exceeded", cause)
	}
	return NewError(KindInternal, "request cancelled", cause)
}

// CacheStats exposes cache counters for the health endpoint.
func (e *Engine) CacheStats() cache.Stats {
	return e.cache.Stats()
}
