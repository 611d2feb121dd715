// Feedscout - Social Profile Content Retrieval API
// Copyright 2026 Feedscout Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/feedscout/feedscout

package pagination

import (
	"strconv"
	"testing"

	"github.com/feedscout/feedscout/internal/models"
)

func epochPtr(v int64) *int64 { return &v }

// makeRecords builds n records with epochs base, base+1, ... base+n-1.
func makeRecords(n int, base int64) []models.CanonicalRecord {
	records := make([]models.CanonicalRecord, 0, n)
	for i := range n {
		records = append(records, models.CanonicalRecord{
			ID:            strconv.Itoa(i),
			URL:           "https://example.com/" + strconv.Itoa(i),
			PostedAtEpoch: epochPtr(base + int64(i)),
		})
	}
	return records
}

func baseQuery(page, pageSize int) models.RetrievalQuery {
	return models.RetrievalQuery{TargetIdentity: "t", Page: page, PageSize: pageSize}
}

func TestPaginateThreePages(t *testing.T) {
	records := makeRecords(25, 1000)

	rs := Paginate(records, baseQuery(3, 10))
	if rs.TotalPages != 3 {
		t.Errorf("expected 3 total pages, got %d", rs.TotalPages)
	}
	if rs.Total != 25 {
		t.Errorf("expected total 25, got %d", rs.Total)
	}
	if len(rs.Items) != 5 {
		t.Errorf("page 3 should hold the trailing 5 items, got %d", len(rs.Items))
	}
}

func TestPaginateNeverExceedsPageSize(t *testing.T) {
	records := makeRecords(37, 500)
	for page := 1; page <= 6; page++ {
		rs := Paginate(records, baseQuery(page, 7))
		if len(rs.Items) > 7 {
			t.Errorf("page %d: %d items exceeds page size", page, len(rs.Items))
		}
	}
}

func TestPaginateSortsNewestFirst(t *testing.T) {
	records := []models.CanonicalRecord{
		{ID: "a", PostedAtEpoch: epochPtr(100)},
		{ID: "b", PostedAtEpoch: epochPtr(300)},
		{ID: "c", PostedAtEpoch: nil},
		{ID: "d", PostedAtEpoch: epochPtr(200)},
	}

	rs := Paginate(records, baseQuery(1, 10))
	wantOrder := []string{"b", "d", "a", "c"}
	for i, want := range wantOrder {
		if rs.Items[i].ID != want {
			t.Fatalf("position %d: expected %q, got %q", i, want, rs.Items[i].ID)
		}
	}
}

func TestPaginateInclusiveBounds(t *testing.T) {
	records := makeRecords(10, 100)
	query := baseQuery(1, 10)
	query.StartEpoch = epochPtr(102)
	query.EndEpoch = epochPtr(105)

	rs := Paginate(records, query)
	if rs.Total != 4 {
		t.Fatalf("inclusive [102,105] should match 4 records, got %d", rs.Total)
	}
	for _, rec := range rs.Items {
		if *rec.PostedAtEpoch < 102 || *rec.PostedAtEpoch > 105 {
			t.Errorf("record %q epoch %d outside bounds", rec.ID, *rec.PostedAtEpoch)
		}
	}
}

func TestPaginateEqualBoundsMatchExactTimestamp(t *testing.T) {
	records := []models.CanonicalRecord{
		{ID: "a", PostedAtEpoch: epochPtr(499)},
		{ID: "b", PostedAtEpoch: epochPtr(500)},
		{ID: "c", PostedAtEpoch: epochPtr(500)},
		{ID: "d", PostedAtEpoch: epochPtr(501)},
	}
	query := baseQuery(1, 10)
	query.StartEpoch = epochPtr(500)
	query.EndEpoch = epochPtr(500)

	rs := Paginate(records, query)
	if rs.Total != 2 {
		t.Fatalf("start==end should match only exact timestamps, got %d", rs.Total)
	}
	for _, rec := range rs.Items {
		if *rec.PostedAtEpoch != 500 {
			t.Errorf("record %q has epoch %d", rec.ID, *rec.PostedAtEpoch)
		}
	}
}

func TestPaginateDropsUnknownEpochWhenFilterActive(t *testing.T) {
	records := []models.CanonicalRecord{
		{ID: "a", PostedAtEpoch: epochPtr(100)},
		{ID: "b", PostedAtEpoch: nil},
	}
	query := baseQuery(1, 10)
	query.StartEpoch = epochPtr(0)

	rs := Paginate(records, query)
	if rs.Total != 1 {
		t.Errorf("record with unknown epoch cannot be proven in-range, total %d", rs.Total)
	}
}

func TestPaginateKeepsUnknownEpochWithoutFilter(t *testing.T) {
	records := []models.CanonicalRecord{
		{ID: "a", PostedAtEpoch: nil},
		{ID: "b", PostedAtEpoch: epochPtr(100)},
	}

	rs := Paginate(records, baseQuery(1, 10))
	if rs.Total != 2 {
		t.Errorf("without an epoch filter unknown timestamps stay, total %d", rs.Total)
	}
}

func TestPaginatePageBeyondData(t *testing.T) {
	records := makeRecords(5, 100)

	rs := Paginate(records, baseQuery(9, 10))
	if rs.Items == nil {
		t.Fatal("beyond-data page should be an empty slice, not nil")
	}
	if len(rs.Items) != 0 {
		t.Errorf("expected empty page, got %d items", len(rs.Items))
	}
	if rs.Total != 5 || rs.TotalPages != 1 {
		t.Errorf("totals should still describe the set: total %d, pages %d", rs.Total, rs.TotalPages)
	}
}

func TestPaginateEmptySet(t *testing.T) {
	rs := Paginate(nil, baseQuery(1, 10))
	if rs.Total != 0 || rs.TotalPages != 0 {
		t.Errorf("empty set: total %d, pages %d", rs.Total, rs.TotalPages)
	}
	if rs.FirstEpoch != nil || rs.LastEpoch != nil {
		t.Error("empty set should report nil first/last epochs")
	}
	if len(rs.Items) != 0 {
		t.Errorf("expected no items, got %d", len(rs.Items))
	}
}

func TestPaginateFirstLastEpochCoverFilteredSet(t *testing.T) {
	records := makeRecords(30, 1000)

	rs := Paginate(records, baseQuery(2, 10))
	if rs.FirstEpoch == nil || *rs.FirstEpoch != 1029 {
		t.Errorf("first epoch should be the newest of the whole set, got %v", rs.FirstEpoch)
	}
	if rs.LastEpoch == nil || *rs.LastEpoch != 1000 {
		t.Errorf("last epoch should be the oldest of the whole set, got %v", rs.LastEpoch)
	}
}

func TestPaginateTotalPagesCeiling(t *testing.T) {
	cases := []struct {
		total    int
		pageSize int
		want     int
	}{
		{0, 10, 0},
		{1, 10, 1},
		{10, 10, 1},
		{11, 10, 2},
		{100, 7, 15},
	}
	for _, tc := range cases {
		rs := Paginate(makeRecords(tc.total, 100), baseQuery(1, tc.pageSize))
		if rs.TotalPages != tc.want {
			t.Errorf("total=%d pageSize=%d: expected %d pages, got %d", tc.total, tc.pageSize, tc.want, rs.TotalPages)
		}
	}
}
