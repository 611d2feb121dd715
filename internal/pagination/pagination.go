// Feedscout - Social Profile Content Retrieval API
// Copyright 2026 Feedscout Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/feedscout/feedscout

// Package pagination applies inclusive time-range filtering, deterministic
// recency ordering, and offset/limit windowing to canonical records.
package pagination

import (
	"sort"

	"github.com/feedscout/feedscout/internal/models"
)

// Paginate filters, sorts, and windows records per the query.
//
// Steps, in order: drop records with unknown timestamps when an epoch filter
// is active, apply inclusive start/end bounds, sort newest first with unknown
// timestamps last, then slice the requested page. A page beyond the data
// yields an empty item list, not an error. FirstEpoch and LastEpoch describe
// the whole filtered set, not just the returned page.
func Paginate(records []models.CanonicalRecord, query models.RetrievalQuery) models.ResultSet {
	filtered := filterByEpoch(records, query.StartEpoch, query.EndEpoch)

	sort.SliceStable(filtered, func(i, j int) bool {
		a, b := filtered[i].PostedAtEpoch, filtered[j].PostedAtEpoch
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return *a > *b
		}
	})

	total := len(filtered)
	totalPages := 0
	if total > 0 {
		totalPages = (total + query.PageSize - 1) / query.PageSize
	}

	start := (query.Page - 1) * query.PageSize
	end := start + query.PageSize
	var items []models.CanonicalRecord
	if start < total {
		if end > total {
			end = total
		}
		items = filtered[start:end]
	} else {
		items = []models.CanonicalRecord{}
	}

	result := models.ResultSet{
		Items:      items,
		Page:       query.Page,
		TotalPages: totalPages,
		PageSize:   query.PageSize,
		Total:      total,
	}
	if total > 0 {
		result.FirstEpoch = filtered[0].PostedAtEpoch
		result.LastEpoch = filtered[total-1].PostedAtEpoch
	}
	return result
}

// filterByEpoch applies inclusive epoch bounds. When either bound is set,
// records with unknown timestamps cannot be proven in-range and are dropped.
func filterByEpoch(records []models.CanonicalRecord, start, end *int64) []models.CanonicalRecord {
	filterActive := start != nil || end != nil
	filtered := make([]models.CanonicalRecord, 0, len(records))
	for _, rec := range records {
		if rec.PostedAtEpoch == nil {
			if filterActive {
				continue
			}
			filtered = append(filtered, rec)
			continue
		}
		if start != nil && *rec.PostedAtEpoch < *start {
			continue
		}
		if end != nil && *rec.PostedAtEpoch > *end {
			continue
		}
		filtered = append(filtered, rec)
	}
	return filtered
}
