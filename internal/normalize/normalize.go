// Feedscout - Social Profile Content Retrieval API
// Copyright 2026 Feedscout Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/feedscout/feedscout

// Package normalize maps arbitrary raw item shapes into canonical records.
//
// Raw items arrive in different shapes depending on which retrieval tier
// produced them: structured API-style objects, embedded-script JSON
// fragments, or key/value fragments lifted from the rendered DOM. Each
// logical field has an ordered list of candidate paths; the first present,
// well-typed value wins. Items without a resolvable identity or URL are
// dropped, never synthesized.
package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/feedscout/feedscout/internal/models"
)

// RawItem is an opaque field bag produced by a retrieval tier.
type RawItem map[string]any

// Candidate paths per logical field, in priority order. Dots descend into
// nested objects.
var (
	idPaths        = []string{"id", "video.id", "aweme_id", "item_id"}
	urlPaths       = []string{"url", "webapp_url", "share_url", "link"}
	textPaths      = []string{"desc", "description", "title", "text", "content"}
	timestampPaths = []string{"createTime", "create_time", "created_at", "timestamp", "time"}
	relativePaths  = []string{"time_ago", "posted", "time_text"}
)

// metricPaths maps each canonical metric name to its candidate source paths.
var metricPaths = map[string][]string{
	"views":    {"stats.playCount", "stats.view_count", "statistics.play_count", "playCount", "views"},
	"likes":    {"stats.diggCount", "stats.like_count", "statistics.digg_count", "diggCount", "likes"},
	"comments": {"stats.commentCount", "stats.comment_count", "statistics.comment_count", "commentCount", "comments"},
	"shares":   {"stats.shareCount", "stats.share_count", "statistics.share_count", "shareCount", "shares"},
}

// metricOrder keeps map iteration out of the output shape.
var metricOrder = []string{"views", "likes", "comments", "shares"}

var relativeTimePattern = regexp.MustCompile(`(?i)^(?:an?|\d+)\s*(s|sec|second|m|min|minute|h|hr|hour|d|day|w|week|mo|month|y|yr|year)s?\.?\s+ago$`)

var relativeUnits = map[string]time.Duration{
	"s": time.Second, "sec": time.Second, "second": time.Second,
	"m": time.Minute, "min": time.Minute, "minute": time.Minute,
	"h": time.Hour, "hr": time.Hour, "hour": time.Hour,
	"d": 24 * time.Hour, "day": 24 * time.Hour,
	"w": 7 * 24 * time.Hour, "week": 7 * 24 * time.Hour,
	"mo": 30 * 24 * time.Hour, "month": 30 * 24 * time.Hour,
	"y": 365 * 24 * time.Hour, "yr": 365 * 24 * time.Hour, "year": 365 * 24 * time.Hour,
}

// Normalizer converts raw items into canonical records for one target site.
type Normalizer struct {
	recordURLTemplate string
	idFromURL         *regexp.Regexp
	now               func() time.Time
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithClock overrides the clock used to resolve relative timestamps.
func WithClock(now func() time.Time) Option {
	return func(n *Normalizer) { n.now = now }
}

// New creates a Normalizer.
//
// recordURLTemplate builds a record URL from (target identity, record id),
// e.g. "https://www.tiktok.com/@%s/video/%s". idFromURL extracts an identity
// from a record URL when no explicit id field is present; its first capture
// group is the id.
func New(recordURLTemplate string, idFromURL *regexp.Regexp, opts ...Option) *Normalizer {
	n := &Normalizer{
		recordURLTemplate: recordURLTemplate,
		idFromURL:         idFromURL,
		now:               time.Now,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize maps raw items into canonical records, deduplicating by identity
// with first occurrence winning. The second return value counts items dropped
// for lacking a resolvable identity or URL.
func (n *Normalizer) Normalize(items []RawItem, targetIdentity string) ([]models.CanonicalRecord, int) {
	records := make([]models.CanonicalRecord, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	dropped := 0

	for _, item := range items {
		record, ok := n.normalizeOne(item, targetIdentity)
		if !ok {
			dropped++
			continue
		}
		if _, dup := seen[record.ID]; dup {
			continue
		}
		seen[record.ID] = struct{}{}
		records = append(records, record)
	}

	return records, dropped
}

func (n *Normalizer) normalizeOne(item RawItem, targetIdentity string) (models.CanonicalRecord, bool) {
	id := firstString(item, idPaths)
	url := firstString(item, urlPaths)

	// Identity may come from an explicit field or be derived from a
	// canonical URL. Neither resolvable means the item is unusable.
	if id == "" && url != "" && n.idFromURL != nil {
		if m := n.idFromURL.FindStringSubmatch(url); len(m) > 1 {
			id = m[1]
		}
	}
	if id == "" {
		return models.CanonicalRecord{}, false
	}
	if url == "" {
		if n.recordURLTemplate == "" {
			return models.CanonicalRecord{}, false
		}
		url = fmt.Sprintf(n.recordURLTemplate, targetIdentity, id)
	}

	record := models.CanonicalRecord{
		ID:      id,
		URL:     url,
		Metrics: make(map[string]*int64, len(metricOrder)),
	}

	if text := firstString(item, textPaths); text != "" {
		record.Text = &text
	}
	record.PostedAtEpoch = n.extractTimestamp(item)

	for _, name := range metricOrder {
		record.Metrics[name] = firstMetric(item, metricPaths[name])
	}

	return record, true
}

// extractTimestamp tries absolute epoch fields first and falls back to
// relative "time since" text resolved against the current clock.
func (n *Normalizer) extractTimestamp(item RawItem) *int64 {
	for _, path := range timestampPaths {
		value, ok := lookupPath(item, path)
		if !ok {
			continue
		}
		if epoch, ok := asEpoch(value); ok {
			return &epoch
		}
		if text, ok := value.(string); ok {
			if epoch, ok := n.resolveRelative(text); ok {
				return &epoch
			}
		}
	}
	for _, path := range relativePaths {
		value, ok := lookupPath(item, path)
		if !ok {
			continue
		}
		if text, ok := value.(string); ok {
			if epoch, ok := n.resolveRelative(text); ok {
				return &epoch
			}
		}
	}
	return nil
}

// resolveRelative parses patterns like "3 hours ago" against the clock.
func (n *Normalizer) resolveRelative(text string) (int64, bool) {
	text = strings.TrimSpace(text)
	m := relativeTimePattern.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}

	count := int64(1)
	numEnd := strings.IndexFunc(text, func(r rune) bool { return r < '0' || r > '9' })
	if numEnd > 0 {
		parsed, err := strconv.ParseInt(text[:numEnd], 10, 64)
		if err != nil {
			return 0, false
		}
		count = parsed
	}

	unit, ok := relativeUnits[strings.ToLower(m[1])]
	if !ok {
		return 0, false
	}
	return n.now().Add(-time.Duration(count) * unit).Unix(), true
}

// lookupPath descends dot-separated keys through nested maps.
func lookupPath(item RawItem, path string) (any, bool) {
	var current any = map[string]any(item)
	for _, key := range strings.Split(path, ".") {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = obj[key]
		if !ok {
			return nil, false
		}
	}
	if current == nil {
		return nil, false
	}
	return current, true
}

// firstString returns the first non-empty string-coercible value along the
// candidate paths.
func firstString(item RawItem, paths []string) string {
	for _, path := range paths {
		value, ok := lookupPath(item, path)
		if !ok {
			continue
		}
		switch v := value.(type) {
		case string:
			if trimmed := strings.TrimSpace(v); trimmed != "" {
				return trimmed
			}
		case float64:
			// JSON numbers decode as float64; ids are sometimes numeric.
			if v == float64(int64(v)) {
				return strconv.FormatInt(int64(v), 10)
			}
		case int64:
			return strconv.FormatInt(v, 10)
		case int:
			return strconv.Itoa(v)
		}
	}
	return ""
}

// firstMetric returns the first value along the candidate paths that parses
// to a non-negative integer, or nil.
func firstMetric(item RawItem, paths []string) *int64 {
	for _, path := range paths {
		value, ok := lookupPath(item, path)
		if !ok {
			continue
		}
		if count, ok := asCount(value); ok {
			return &count
		}
	}
	return nil
}

// asEpoch coerces epoch-like values. Zero means the source had no real
// timestamp and is treated as unknown.
func asEpoch(value any) (int64, bool) {
	switch v := value.(type) {
	case float64:
		if v > 0 && v == float64(int64(v)) {
			return int64(v), true
		}
	case int64:
		if v > 0 {
			return v, true
		}
	case int:
		if v > 0 {
			return int64(v), true
		}
	case string:
		trimmed := strings.TrimSpace(v)
		if parsed, err := strconv.ParseInt(trimmed, 10, 64); err == nil && parsed > 0 {
			return parsed, true
		}
	}
	return 0, false
}

// asCount coerces metric values to non-negative integers. Accepts numbers,
// digit strings with separators, and abbreviated forms like "1.2K" that DOM
// extraction produces.
func asCount(value any) (int64, bool) {
	switch v := value.(type) {
	case float64:
		if v >= 0 && v == float64(int64(v)) {
			return int64(v), true
		}
	case int64:
		if v >= 0 {
			return v, true
		}
	case int:
		if v >= 0 {
			return int64(v), true
		}
	case string:
		return parseAbbreviatedCount(v)
	}
	return 0, false
}

var abbreviatedMultipliers = map[byte]float64{'K': 1e3, 'M': 1e6, 'B': 1e9}

func parseAbbreviatedCount(text string) (int64, bool) {
	text = strings.ReplaceAll(strings.TrimSpace(text), ",", "")
	if text == "" {
		return 0, false
	}

	multiplier := float64(1)
	last := text[len(text)-1]
	if m, ok := abbreviatedMultipliers[upperByte(last)]; ok {
		multiplier = m
		text = text[:len(text)-1]
	}

	parsed, err := strconv.ParseFloat(text, 64)
	if err != nil || parsed < 0 {
		return 0, false
	}
	return int64(parsed * multiplier), true
}

func upperByte(b byte) byte {
	if b >= 'a' && b <= 'z' {
		return b - 'a' + 'A'
	}
	return b
}
