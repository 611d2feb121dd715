// Feedscout - Social Profile Content Retrieval API
// Copyright 2026 Feedscout Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/feedscout/feedscout

// Package models defines the shared data types exchanged between the
// retrieval engine and the HTTP layer.
package models

// CanonicalRecord is the normalized representation of one retrieved item
// (post, video, tweet) regardless of which source shape produced it.
//
// Invariants:
//   - ID is unique within a single result set.
//   - Fields with unknown values are nil, never a fabricated default.
//   - Records with no resolvable ID or URL are discarded during
//     normalization, never synthesized.
type CanonicalRecord struct {
	ID            string            `json:"id"`
	URL           string            `json:"url"`
	Text          *string           `json:"text"`
	PostedAtEpoch *int64            `json:"posted_at_epoch"`
	Metrics       map[string]*int64 `json:"metrics"`
}

// Clone returns a deep copy of the record. The response cache relies on this
// to guarantee callers never share metric maps with cached state.
func (r CanonicalRecord) Clone() CanonicalRecord {
	out := r
	if r.Text != nil {
		text := *r.Text
		out.Text = &text
	}
	if r.PostedAtEpoch != nil {
		epoch := *r.PostedAtEpoch
		out.PostedAtEpoch = &epoch
	}
	if r.Metrics != nil {
		out.Metrics = make(map[string]*int64, len(r.Metrics))
		for name, value := range r.Metrics {
			if value == nil {
				out.Metrics[name] = nil
				continue
			}
			v := *value
			out.Metrics[name] = &v
		}
	}
	return out
}

// RetrievalQuery describes one inbound retrieval request after input
// validation. StartEpoch <= EndEpoch is enforced before retrieval begins.
type RetrievalQuery struct {
	TargetIdentity     string `validate:"required,min=1,max=64"`
	Page               int    `validate:"min=1"`
	PageSize           int    `validate:"min=1,max=100"`
	StartEpoch         *int64 `validate:"omitempty,min=0"`
	EndEpoch           *int64 `validate:"omitempty,min=0"`
	SessionFingerprint string
}

// ResultSet is a paginated, filtered page of canonical records plus the
// aggregate numbers computed over the full filtered set. This is the payload
// the response cache stores.
type ResultSet struct {
	Items      []CanonicalRecord `json:"items"`
	Page       int               `json:"page"`
	TotalPages int               `json:"total_pages"`
	PageSize   int               `json:"page_size"`
	Total      int               `json:"total"`
	FirstEpoch *int64            `json:"first_epoch"`
	LastEpoch  *int64            `json:"last_epoch"`
}

// Clone returns a deep copy of the result set, including every record.
func (rs ResultSet) Clone() ResultSet {
	out := rs
	if rs.FirstEpoch != nil {
		first := *rs.FirstEpoch
		out.FirstEpoch = &first
	}
	if rs.LastEpoch != nil {
		last := *rs.LastEpoch
		out.LastEpoch = &last
	}
	if rs.Items != nil {
		out.Items = make([]CanonicalRecord, len(rs.Items))
		for i, item := range rs.Items {
			out.Items[i] = item.Clone()
		}
	}
	return out
}
