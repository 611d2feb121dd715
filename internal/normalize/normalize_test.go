// Feedscout - Social Profile Content Retrieval API
// Copyright 2026 Feedscout Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/feedscout/feedscout

package normalize

import (
	"regexp"
	"testing"
	"time"
)

var testIDPattern = regexp.MustCompile(`/video/(\d+)`)

func newTestNormalizer(opts ...Option) *Normalizer {
	return New("https://www.example.com/@%s/video/%s", testIDPattern, opts...)
}

func TestNormalizeAPIStyleItem(t *testing.T) {
	n := newTestNormalizer()

	items := []RawItem{{
		"id":         "7301234567890",
		"desc":       "first clip",
		"createTime": float64(1700000000),
		"stats": map[string]any{
			"playCount":    float64(1500),
			"diggCount":    float64(120),
			"commentCount": float64(30),
			"shareCount":   float64(4),
		},
	}}

	records, dropped := n.Normalize(items, "alice")
	if dropped != 0 {
		t.Fatalf("expected no drops, got %d", dropped)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}

	rec := records[0]
	if rec.ID != "7301234567890" {
		t.Errorf("unexpected id %q", rec.ID)
	}
	if rec.URL != "https://www.example.com/@alice/video/7301234567890" {
		t.Errorf("unexpected url %q", rec.URL)
	}
	if rec.Text == nil || *rec.Text != "first clip" {
		t.Errorf("unexpected text %v", rec.Text)
	}
	if rec.PostedAtEpoch == nil || *rec.PostedAtEpoch != 1700000000 {
		t.Errorf("unexpected epoch %v", rec.PostedAtEpoch)
	}
	if v := rec.Metrics["views"]; v == nil || *v != 1500 {
		t.Errorf("unexpected views %v", v)
	}
	if v := rec.Metrics["likes"]; v == nil || *v != 120 {
		t.Errorf("unexpected likes %v", v)
	}
}

func TestNormalizeNestedAndSnakeCasePaths(t *testing.T) {
	n := newTestNormalizer()

	items := []RawItem{{
		"video":       map[string]any{"id": "555"},
		"description": "nested id form",
		"create_time": "1690000000",
		"statistics":  map[string]any{"play_count": float64(9)},
	}}

	records, _ := n.Normalize(items, "bob")
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].ID != "555" {
		t.Errorf("expected nested video.id, got %q", records[0].ID)
	}
	if records[0].PostedAtEpoch == nil || *records[0].PostedAtEpoch != 1690000000 {
		t.Errorf("string epoch not parsed: %v", records[0].PostedAtEpoch)
	}
	if v := records[0].Metrics["views"]; v == nil || *v != 9 {
		t.Errorf("statistics.play_count not picked up: %v", v)
	}
}

func TestNormalizeIDDerivedFromURL(t *testing.T) {
	n := newTestNormalizer()

	items := []RawItem{{
		"url":  "https://www.example.com/@carol/video/987654",
		"text": "no explicit id",
	}}

	records, dropped := n.Normalize(items, "carol")
	if dropped != 0 || len(records) != 1 {
		t.Fatalf("expected 1 record and no drops, got %d records, %d dropped", len(records), dropped)
	}
	if records[0].ID != "987654" {
		t.Errorf("id should come from the URL pattern, got %q", records[0].ID)
	}
}

func TestNormalizeDropsItemsWithoutIdentity(t *testing.T) {
	n := newTestNormalizer()

	items := []RawItem{
		{"desc": "no id, no url"},
		{"url": "https://www.example.com/about"},
		{"id": "1", "desc": "keeper"},
	}

	records, dropped := n.Normalize(items, "dave")
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if dropped != 2 {
		t.Errorf("expected 2 drops, got %d", dropped)
	}
}

func TestNormalizeDedupFirstWins(t *testing.T) {
	n := newTestNormalizer()

	items := []RawItem{
		{"id": "42", "desc": "original"},
		{"id": "42", "desc": "duplicate"},
		{"id": "43"},
	}

	records, dropped := n.Normalize(items, "erin")
	if dropped != 0 {
		t.Errorf("duplicates are not drops, got %d", dropped)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Text == nil || *records[0].Text != "original" {
		t.Errorf("first occurrence should win, got %v", records[0].Text)
	}

	seen := make(map[string]bool)
	for _, rec := range records {
		if seen[rec.ID] {
			t.Fatalf("duplicate id %q in output", rec.ID)
		}
		seen[rec.ID] = true
	}
}

func TestNormalizeUnknownFieldsStayNull(t *testing.T) {
	n := newTestNormalizer()

	items := []RawItem{{"id": "7"}}

	records, _ := n.Normalize(items, "frank")
	rec := records[0]
	if rec.Text != nil {
		t.Errorf("missing text should be nil, got %v", *rec.Text)
	}
	if rec.PostedAtEpoch != nil {
		t.Errorf("missing timestamp should be nil, got %v", *rec.PostedAtEpoch)
	}
	for name, value := range rec.Metrics {
		if value != nil {
			t.Errorf("missing metric %q should be nil, got %d", name, *value)
		}
	}
}

func TestNormalizeZeroEpochIsUnknown(t *testing.T) {
	n := newTestNormalizer()

	records, _ := n.Normalize([]RawItem{{"id": "8", "createTime": float64(0)}}, "gail")
	if records[0].PostedAtEpoch != nil {
		t.Errorf("zero epoch should be treated as unknown, got %v", *records[0].PostedAtEpoch)
	}
}

func TestNormalizeRelativeTimestamps(t *testing.T) {
	fixed := time.Unix(1700003600, 0)
	n := newTestNormalizer(WithClock(func() time.Time { return fixed }))

	cases := []struct {
		text string
		want int64
	}{
		{"3 hours ago", fixed.Add(-3 * time.Hour).Unix()},
		{"45 minutes ago", fixed.Add(-45 * time.Minute).Unix()},
		{"2 days ago", fixed.Add(-48 * time.Hour).Unix()},
		{"an hour ago", fixed.Add(-time.Hour).Unix()},
		{"1w ago", fixed.Add(-7 * 24 * time.Hour).Unix()},
	}

	for _, tc := range cases {
		records, _ := n.Normalize([]RawItem{{"id": "9", "time_ago": tc.text}}, "hank")
		got := records[0].PostedAtEpoch
		if got == nil || *got != tc.want {
			t.Errorf("%q: expected %d, got %v", tc.text, tc.want, got)
		}
	}
}

func TestNormalizeRelativeTimestampUnparseable(t *testing.T) {
	n := newTestNormalizer()

	records, _ := n.Normalize([]RawItem{{"id": "10", "time_ago": "yesterday-ish"}}, "iris")
	if records[0].PostedAtEpoch != nil {
		t.Errorf("unparseable relative time should be nil, got %v", *records[0].PostedAtEpoch)
	}
}

func TestNormalizeMetricSanitization(t *testing.T) {
	n := newTestNormalizer()

	items := []RawItem{{
		"id": "11",
		"stats": map[string]any{
			"playCount":    "1.2K",
			"diggCount":    float64(-5),
			"commentCount": "garbage",
			"shareCount":   "2,340",
		},
	}}

	records, _ := n.Normalize(items, "jo")
	m := records[0].Metrics
	if v := m["views"]; v == nil || *v != 1200 {
		t.Errorf("abbreviated count not parsed: %v", v)
	}
	if m["likes"] != nil {
		t.Errorf("negative metric should be nil, got %d", *m["likes"])
	}
	if m["comments"] != nil {
		t.Errorf("non-numeric metric should be nil, got %d", *m["comments"])
	}
	if v := m["shares"]; v == nil || *v != 2340 {
		t.Errorf("comma-separated count not parsed: %v", v)
	}
}

func TestNormalizeNumericIDCoercion(t *testing.T) {
	n := newTestNormalizer()

	records, _ := n.Normalize([]RawItem{{"id": float64(123456789)}}, "kay")
	if len(records) != 1 || records[0].ID != "123456789" {
		t.Fatalf("numeric id should coerce to string, got %+v", records)
	}
}
