// Feedscout - Social Profile Content Retrieval API
// Copyright 2026 Feedscout Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/feedscout/feedscout

package retrieval

import (
	"errors"
	"fmt"
)

// Kind classifies engine failures so the HTTP layer can map them to status
// codes without inspecting error text.
type Kind int

const (
	// KindInternal covers unexpected failures. Deliberately the zero value.
	KindInternal Kind = iota
	// KindInvalidInput marks bad pagination or epoch values. Never retried.
	KindInvalidInput
	// KindTargetNotFound marks a definitive absence signal from either tier.
	KindTargetNotFound
	// KindRateLimited marks a caller that exceeded a rate window.
	KindRateLimited
	// KindUpstreamTimeout marks a tier that exceeded its time budget.
	KindUpstreamTimeout
	// KindUpstreamUnavailable marks an upstream or automation environment
	// that could not serve the request at all.
	KindUpstreamUnavailable
	// KindExtractionFailed marks a run where both tiers completed but no
	// usable items came out.
	KindExtractionFailed
)

// String returns the stable name used in logs and metrics labels.
func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindTargetNotFound:
		return "target_not_found"
	case KindRateLimited:
		return "rate_limited"
	case KindUpstreamTimeout:
		return "upstream_timeout"
	case KindUpstreamUnavailable:
		return "upstream_unavailable"
	case KindExtractionFailed:
		return "extraction_failed"
	default:
		return "internal"
	}
}

// Error is the typed failure the engine hands to its caller.
type Error struct {
	Kind    Kind
	Message string
	// RetryAfterSeconds is set for KindRateLimited.
	RetryAfterSeconds int
	// Details carries field-level validation messages for KindInvalidInput.
	Details map[string]interface{}
	// Source names the tier that produced this terminal outcome ("http",
	// "automation", or "cache"). Empty when no tier ran, such as invalid
	// input or a rate-limit denial.
	Source string

	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// NewError builds a typed engine error. cause may be nil.
func NewError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// newTierError tags a terminal error with the tier that produced it.
func newTierError(source string, kind Kind, message string, cause error) *Error {
	err := NewError(kind, message, cause)
	err.Source = source
	return err
}

// KindOf extracts the kind from any error. Non-engine errors classify as
// internal.
func KindOf(err error) Kind {
	var engineErr *Error
	if errors.As(err, &engineErr) {
		return engineErr.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
