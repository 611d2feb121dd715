// Feedscout - Social Profile Content Retrieval API
// Copyright 2026 Feedscout Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/feedscout/feedscout

package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/feedscout/feedscout/internal/models"
	"github.com/feedscout/feedscout/internal/retrieval"
)

// credentialHeader carries an optional per-request credential bundle that
// overrides the process-wide default.
const credentialHeader = "X-Session-Credentials"

const defaultPageSize = 10

// Handler serves the public API endpoints backed by the retrieval engine.
type Handler struct {
	engine  *retrieval.Engine
	version string
	started time.Time
}

// NewHandler creates the API handler.
func NewHandler(engine *retrieval.Engine, version string) *Handler {
	return &Handler{engine: engine, version: version, started: time.Now()}
}

// Root serves service information.
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data: map[string]interface{}{
			"service": "feedscout",
			"version": h.version,
			"endpoints": []string{
				"/api/v1/health",
				"/api/v1/profiles/{target}/records",
				"/metrics",
			},
		},
		Metadata: models.Metadata{Timestamp: time.Now()},
	})
}

// Health serves liveness plus engine counters.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	requests, failures := h.engine.Counters()
	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data: map[string]interface{}{
			"status":         "healthy",
			"uptime_seconds": int64(time.Since(h.started).Seconds()),
			"requests":       requests,
			"errors":         failures,
			"cache":          h.engine.CacheStats(),
		},
		Metadata: models.Metadata{Timestamp: time.Now()},
	})
}

// Records is the single engine call: retrieve, normalize, filter, and page
// a target profile's content.
func (h *Handler) Records(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	page, ok := getIntParam(r, "page", 1)
	if !ok {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "page must be an integer", nil, nil)
		return
	}
	pageSize, ok := getIntParam(r, "page_size", defaultPageSize)
	if !ok {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "page_size must be an integer", nil, nil)
		return
	}
	startEpoch, ok := getEpochParam(r, "start_epoch")
	if !ok {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "start_epoch must be an integer", nil, nil)
		return
	}
	endEpoch, ok := getEpochParam(r, "end_epoch")
	if !ok {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "end_epoch must be an integer", nil, nil)
		return
	}

	req := retrieval.Request{
		TargetIdentity: chi.URLParam(r, "target"),
		Page:           page,
		PageSize:       pageSize,
		StartEpoch:     startEpoch,
		EndEpoch:       endEpoch,
		CredentialBlob: r.Header.Get(credentialHeader),
		ClientID:       r.RemoteAddr,
	}

	resp, err := h.engine.Handle(r.Context(), req)
	elapsed := time.Since(start)
	if err != nil {
		h.respondEngineError(w, err)
		return
	}

	w.Header().Set("X-Processing-Time", formatMillis(elapsed))
	if resp.Diagnostics.CacheHit {
		w.Header().Set("X-Cache", "HIT")
	} else {
		w.Header().Set("X-Cache", "MISS")
	}
	if remaining, ok := minRemaining(resp.Rate.Remaining); ok {
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	}

	meta := models.RetrievalMeta{
		Target:             req.TargetIdentity,
		Page:               resp.Result.Page,
		TotalPages:         resp.Result.TotalPages,
		PageSize:           resp.Result.PageSize,
		Total:              resp.Result.Total,
		StartEpoch:         req.StartEpoch,
		EndEpoch:           req.EndEpoch,
		FirstEpoch:         resp.Result.FirstEpoch,
		LastEpoch:          resp.Result.LastEpoch,
		Source:             resp.Diagnostics.Source,
		HTTPFallbackReason: resp.Diagnostics.HTTPFallbackReason,
		RequestTime:        resp.Diagnostics.RequestTime,
		ProcessingTimeMS:   float64(elapsed.Microseconds()) / 1000.0,
		CacheHit:           resp.Diagnostics.CacheHit,
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data: models.RetrievalResponse{
			Meta:  meta,
			Items: resp.Result.Items,
		},
		Metadata: models.Metadata{
			Timestamp:        time.Now(),
			ProcessingTimeMS: elapsed.Milliseconds(),
			Cached:           resp.Diagnostics.CacheHit,
		},
	})
}

// respondEngineError maps typed engine errors onto HTTP statuses.
func (h *Handler) respondEngineError(w http.ResponseWriter, err error) {
	var engineErr *retrieval.Error
	if !errors.As(err, &engineErr) {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error", nil, err)
		return
	}

	switch engineErr.Kind {
	case retrieval.KindInvalidInput:
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", engineErr.Message, engineErr.Details, nil)
	case retrieval.KindTargetNotFound:
		respondError(w, http.StatusNotFound, "TARGET_NOT_FOUND", engineErr.Message, nil, nil)
	case retrieval.KindRateLimited:
		w.Header().Set("Retry-After", strconv.Itoa(engineErr.RetryAfterSeconds))
		respondError(w, http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED", engineErr.Message, nil, nil)
	case retrieval.KindUpstreamTimeout:
		respondError(w, http.StatusGatewayTimeout, "UPSTREAM_TIMEOUT", engineErr.Message, nil, err)
	case retrieval.KindUpstreamUnavailable:
		respondError(w, http.StatusBadGateway, "UPSTREAM_UNAVAILABLE", engineErr.Message, nil, err)
	case retrieval.KindExtractionFailed:
		respondError(w, http.StatusBadGateway, "EXTRACTION_FAILED", engineErr.Message, nil, err)
	default:
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error", nil, err)
	}
}

// minRemaining reports the tightest remaining budget across all windows.
func minRemaining(remaining map[string]int) (int, bool) {
	found := false
	minimum := 0
	for _, value := range remaining {
		if !found || value < minimum {
			minimum = value
			found = true
		}
	}
	return minimum, found
}

func formatMillis(d time.Duration) string {
	return strconv.FormatFloat(float64(d.Microseconds())/1000.0, 'f', 2, 64) + "ms"
}
