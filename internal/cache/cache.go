// Feedscout - Social Profile Content Retrieval API
// Copyright 2026 Feedscout Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/feedscout/feedscout

// Package cache provides a bounded in-memory TTL cache for retrieval
// responses.
//
// Entries are keyed by a fingerprint of the full query including the
// caller's credential hash, so private sessions never share results.
// Every read and write deep-copies the payload; callers can mutate their
// copy without corrupting cached state. When capacity is exceeded the
// single oldest-inserted entry is evicted. This is a best-effort
// optimization layer, not a correctness-critical store.
package cache

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/feedscout/feedscout/internal/models"
)

// Entry is what a cache hit returns. NotFound marks a cached definitive
// absence outcome; its Payload is empty.
type Entry struct {
	Payload  models.ResultSet
	NotFound bool
}

// Stats holds cumulative counters for the health endpoint.
type Stats struct {
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Evictions uint64 `json:"evictions"`
	Entries   int    `json:"entries"`
}

type cacheEntry struct {
	payload   models.ResultSet
	notFound  bool
	expiresAt time.Time
}

// Store is a concurrency-safe TTL cache. Configuring TTL or capacity to
// zero disables it entirely.
type Store struct {
	mu       sync.Mutex
	entries  map[string]cacheEntry
	order    []string
	ttl      time.Duration
	errorTTL time.Duration
	capacity int
	now      func() time.Time

	hits      uint64
	misses    uint64
	evictions uint64
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the clock, for expiry tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates a cache with the given TTL for successful payloads,
// a shorter TTL for cached not-found outcomes, and a maximum entry count.
func NewStore(ttl, errorTTL time.Duration, capacity int, opts ...Option) *Store {
	s := &Store{
		entries:  make(map[string]cacheEntry),
		ttl:      ttl,
		errorTTL: errorTTL,
		capacity: capacity,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Enabled reports whether the cache is active.
func (s *Store) Enabled() bool {
	return s.ttl > 0 && s.capacity > 0
}

// Key derives the cache key for a query. The session fingerprint is part of
// the key so different credential sets never collide; callers without
// credentials share the public fingerprint's bucket.
func (s *Store) Key(query models.RetrievalQuery) string {
	material, err := json.Marshal(struct {
		Target      string `json:"target"`
		Page        int    `json:"page"`
		PageSize    int    `json:"page_size"`
		StartEpoch  *int64 `json:"start_epoch"`
		EndEpoch    *int64 `json:"end_epoch"`
		Fingerprint string `json:"fingerprint"`
	}{
		Target:      query.TargetIdentity,
		Page:        query.Page,
		PageSize:    query.PageSize,
		StartEpoch:  query.StartEpoch,
		EndEpoch:    query.EndEpoch,
		Fingerprint: query.SessionFingerprint,
	})
	if err != nil {
		// Marshal of a plain struct cannot fail; keep a safe fallback key.
		material = fmt.Appendf(nil, "%s|%d|%d|%v|%v|%s",
			query.TargetIdentity, query.Page, query.PageSize,
			query.StartEpoch, query.EndEpoch, query.SessionFingerprint)
	}
	sum := sha256.Sum256(material)
	return fmt.Sprintf("%x", sum[:16])
}

// Get returns a deep copy of the entry for key, or a miss when absent or
// expired. Expired entries are removed on observation.
func (s *Store) Get(key string) (Entry, bool) {
	if !s.Enabled() {
		return Entry{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		s.misses++
		return Entry{}, false
	}
	if s.now().After(entry.expiresAt) {
		delete(s.entries, key)
		s.misses++
		return Entry{}, false
	}

	s.hits++
	return Entry{Payload: entry.payload.Clone(), NotFound: entry.notFound}, true
}

// Put stores a deep copy of a successful payload under key.
func (s *Store) Put(key string, payload models.ResultSet) {
	s.put(key, cacheEntry{payload: payload.Clone()}, s.ttl)
}

// PutNotFound records a definitive absence outcome with the short error TTL,
// so a deleted or renamed target does not hammer the upstream.
func (s *Store) PutNotFound(key string) {
	if s.errorTTL <= 0 {
		return
	}
	s.put(key, cacheEntry{notFound: true}, s.errorTTL)
}

func (s *Store) put(key string, entry cacheEntry, ttl time.Duration) {
	if !s.Enabled() {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry.expiresAt = s.now().Add(ttl)
	if _, exists := s.entries[key]; exists {
		// Overwrite keeps the original insertion position.
		s.entries[key] = entry
		return
	}

	if len(s.entries) >= s.capacity {
		s.evictOldestLocked()
	}
	s.entries[key] = entry
	s.order = append(s.order, key)
}

// evictOldestLocked drops the oldest-inserted live entry. Order slots left
// behind by expired entries are skipped.
func (s *Store) evictOldestLocked() {
	for len(s.order) > 0 {
		oldest := s.order[0]
		s.order = s.order[1:]
		if _, ok := s.entries[oldest]; ok {
			delete(s.entries, oldest)
			s.evictions++
			return
		}
	}
}

// Flush drops all entries. Counters survive.
func (s *Store) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]cacheEntry)
	s.order = nil
}

// Stats returns a snapshot of the cache counters.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Hits:      s.hits,
		Misses:    s.misses,
		Evictions: s.evictions,
		Entries:   len(s.entries),
	}
}
