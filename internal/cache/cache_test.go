// Feedscout - Social Profile Content Retrieval API
// Copyright 2026 Feedscout Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/feedscout/feedscout

package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/feedscout/feedscout/internal/models"
)

func epochPtr(v int64) *int64 { return &v }

func samplePayload() models.ResultSet {
	text := "hello"
	views := int64(10)
	return models.ResultSet{
		Items: []models.CanonicalRecord{{
			ID:            "1",
			URL:           "https://example.com/1",
			Text:          &text,
			PostedAtEpoch: epochPtr(1700000000),
			Metrics:       map[string]*int64{"views": &views, "likes": nil},
		}},
		Page:       1,
		TotalPages: 1,
		PageSize:   10,
		Total:      1,
		FirstEpoch: epochPtr(1700000000),
		LastEpoch:  epochPtr(1700000000),
	}
}

func sampleQuery(fingerprint string) models.RetrievalQuery {
	return models.RetrievalQuery{
		TargetIdentity:     "alice",
		Page:               1,
		PageSize:           10,
		SessionFingerprint: fingerprint,
	}
}

func TestRoundTripDeepCopy(t *testing.T) {
	s := NewStore(time.Minute, time.Second, 16)
	key := s.Key(sampleQuery("public"))

	s.Put(key, samplePayload())

	entry, ok := s.Get(key)
	if !ok {
		t.Fatal("expected hit")
	}
	if entry.NotFound {
		t.Fatal("success entry flagged as not found")
	}
	if len(entry.Payload.Items) != 1 || entry.Payload.Items[0].ID != "1" {
		t.Fatalf("unexpected payload: %+v", entry.Payload)
	}

	// Mutating the returned copy must not leak into the cache.
	*entry.Payload.Items[0].Text = "mutated"
	*entry.Payload.Items[0].Metrics["views"] = 999
	entry.Payload.Items[0].ID = "corrupted"

	again, ok := s.Get(key)
	if !ok {
		t.Fatal("expected second hit")
	}
	if *again.Payload.Items[0].Text != "hello" {
		t.Errorf("text aliased: %q", *again.Payload.Items[0].Text)
	}
	if *again.Payload.Items[0].Metrics["views"] != 10 {
		t.Errorf("metrics aliased: %d", *again.Payload.Items[0].Metrics["views"])
	}
	if again.Payload.Items[0].ID != "1" {
		t.Errorf("id aliased: %q", again.Payload.Items[0].ID)
	}
}

func TestPutStoresCopyOfCallerPayload(t *testing.T) {
	s := NewStore(time.Minute, time.Second, 16)
	key := s.Key(sampleQuery("public"))

	payload := samplePayload()
	s.Put(key, payload)
	*payload.Items[0].Text = "changed after put"

	entry, _ := s.Get(key)
	if *entry.Payload.Items[0].Text != "hello" {
		t.Errorf("write aliased caller memory: %q", *entry.Payload.Items[0].Text)
	}
}

func TestDifferentCredentialSetsDoNotShareEntries(t *testing.T) {
	s := NewStore(time.Minute, time.Second, 16)

	keyA := s.Key(sampleQuery("fp-aaaa"))
	keyB := s.Key(sampleQuery("fp-bbbb"))
	if keyA == keyB {
		t.Fatal("different fingerprints produced equal keys")
	}

	s.Put(keyA, samplePayload())
	if _, ok := s.Get(keyB); ok {
		t.Error("credential-scoped entry leaked to another fingerprint")
	}
}

func TestKeyCoversPaginationAndBounds(t *testing.T) {
	s := NewStore(time.Minute, time.Second, 16)

	base := sampleQuery("public")
	variants := []models.RetrievalQuery{base, base, base, base}
	variants[1].Page = 2
	variants[2].PageSize = 20
	variants[3].StartEpoch = epochPtr(100)

	seen := make(map[string]int)
	for i, q := range variants {
		seen[s.Key(q)] = i
	}
	if len(seen) != 4 {
		t.Errorf("expected 4 distinct keys, got %d", len(seen))
	}
}

func TestExpiry(t *testing.T) {
	current := time.Unix(1000, 0)
	s := NewStore(time.Minute, time.Second, 16, WithClock(func() time.Time { return current }))
	key := s.Key(sampleQuery("public"))

	s.Put(key, samplePayload())
	if _, ok := s.Get(key); !ok {
		t.Fatal("expected hit before expiry")
	}

	current = current.Add(2 * time.Minute)
	if _, ok := s.Get(key); ok {
		t.Error("expected miss after TTL elapsed")
	}
}

func TestNotFoundUsesShortTTL(t *testing.T) {
	current := time.Unix(1000, 0)
	s := NewStore(time.Minute, 10*time.Second, 16, WithClock(func() time.Time { return current }))
	key := s.Key(sampleQuery("public"))

	s.PutNotFound(key)

	entry, ok := s.Get(key)
	if !ok || !entry.NotFound {
		t.Fatalf("expected not-found hit, got ok=%v entry=%+v", ok, entry)
	}

	current = current.Add(11 * time.Second)
	if _, ok := s.Get(key); ok {
		t.Error("not-found entry should expire on the error TTL")
	}
}

func TestInsertionOrderEviction(t *testing.T) {
	s := NewStore(time.Minute, time.Second, 3)

	keys := make([]string, 4)
	for i := range keys {
		q := sampleQuery("public")
		q.Page = i + 1
		keys[i] = s.Key(q)
		s.Put(keys[i], samplePayload())
	}

	if _, ok := s.Get(keys[0]); ok {
		t.Error("oldest-inserted entry should have been evicted")
	}
	for _, key := range keys[1:] {
		if _, ok := s.Get(key); !ok {
			t.Errorf("entry %s should survive", key)
		}
	}
	if got := s.Stats().Evictions; got != 1 {
		t.Errorf("expected 1 eviction, got %d", got)
	}
}

func TestOverwriteDoesNotEvict(t *testing.T) {
	s := NewStore(time.Minute, time.Second, 2)
	keyA := s.Key(sampleQuery("a"))
	keyB := s.Key(sampleQuery("b"))

	s.Put(keyA, samplePayload())
	s.Put(keyB, samplePayload())
	s.Put(keyA, samplePayload())

	if _, ok := s.Get(keyA); !ok {
		t.Error("overwritten entry missing")
	}
	if _, ok := s.Get(keyB); !ok {
		t.Error("overwrite of an existing key must not evict another entry")
	}
}

func TestDisabledByZeroTTLOrCapacity(t *testing.T) {
	for _, s := range []*Store{
		NewStore(0, time.Second, 16),
		NewStore(time.Minute, time.Second, 0),
	} {
		if s.Enabled() {
			t.Fatal("store should be disabled")
		}
		key := s.Key(sampleQuery("public"))
		s.Put(key, samplePayload())
		if _, ok := s.Get(key); ok {
			t.Error("disabled cache must never hit")
		}
	}
}

func TestFlush(t *testing.T) {
	s := NewStore(time.Minute, time.Second, 16)
	key := s.Key(sampleQuery("public"))
	s.Put(key, samplePayload())

	s.Flush()
	if _, ok := s.Get(key); ok {
		t.Error("expected miss after flush")
	}
	if s.Stats().Entries != 0 {
		t.Errorf("expected 0 entries, got %d", s.Stats().Entries)
	}
}

func TestConcurrentAccess(t *testing.T) {
	s := NewStore(time.Minute, time.Second, 64)

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range 100 {
				q := sampleQuery(fmt.Sprintf("fp-%d", i))
				q.Page = j%5 + 1
				key := s.Key(q)
				s.Put(key, samplePayload())
				if entry, ok := s.Get(key); ok {
					if len(entry.Payload.Items) != 1 {
						t.Errorf("torn entry: %+v", entry.Payload)
					}
				}
			}
		}()
	}
	wg.Wait()
}
