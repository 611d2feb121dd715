// Feedscout - Social Profile Content Retrieval API
// Copyright 2026 Feedscout Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/feedscout/feedscout

package models

import "time"

// APIResponse is the standard envelope for all API responses.
//
// Successful responses carry Data and a nil Error; failures carry a nil Data
// and a populated Error. Status is "success" or "error".
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata contains response metadata for observability.
type Metadata struct {
	Timestamp        time.Time `json:"timestamp"`
	ProcessingTimeMS int64     `json:"processing_time_ms,omitempty"`
	Cached           bool      `json:"cached,omitempty"`
}

// APIError represents an error response with structured details.
//
// Common codes:
//   - VALIDATION_ERROR: invalid input parameters
//   - TARGET_NOT_FOUND: the requested profile does not exist
//   - RATE_LIMIT_EXCEEDED: too many requests from this client
//   - UPSTREAM_TIMEOUT: the target site did not respond in time
//   - UPSTREAM_UNAVAILABLE: the rendering environment could not start
//   - EXTRACTION_FAILED: both retrieval tiers ran but produced no usable items
//   - INTERNAL_ERROR: unexpected server failure
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// RetrievalMeta is the meta block returned alongside items on the records
// endpoint. It echoes the requested pagination, reports the computed totals
// and epoch bounds of the filtered set, and surfaces which retrieval tier
// served the result.
type RetrievalMeta struct {
	Target     string `json:"target"`
	Page       int    `json:"page"`
	TotalPages int    `json:"total_pages"`
	PageSize   int    `json:"page_size"`
	Total      int    `json:"total"`
	StartEpoch *int64 `json:"start_epoch"`
	EndEpoch   *int64 `json:"end_epoch"`
	FirstEpoch *int64 `json:"first_epoch"`
	LastEpoch  *int64 `json:"last_epoch"`

	// Source is the tier that produced the records: "http", "automation",
	// or "cache".
	Source string `json:"source"`

	// HTTPFallbackReason is set only when the automation tier ran; it names
	// the reason the lightweight tier failed ("timeout", "no_items", ...).
	HTTPFallbackReason string `json:"http_fallback_reason,omitempty"`

	RequestTime      int64   `json:"request_time"`
	ProcessingTimeMS float64 `json:"processing_time_ms"`
	CacheHit         bool    `json:"cache_hit"`
}

// RetrievalResponse is the data payload of a successful records request.
type RetrievalResponse struct {
	Meta  RetrievalMeta     `json:"meta"`
	Items []CanonicalRecord `json:"items"`
}
