// Feedscout - Social Profile Content Retrieval API
// Copyright 2026 Feedscout Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/feedscout/feedscout

// Package ratelimit implements per-client counting windows across one or
// more concurrent time granularities.
//
// Each window resets lazily when its expiry is observed; there is no
// background timer. A request is denied when any configured window is
// exceeded, and the retry-after hint is the longest wait across all
// exceeded windows.
package ratelimit

import (
	"math"
	"sync"
	"time"
)

// Window configures one counting granularity.
type Window struct {
	Name     string
	Duration time.Duration
	Limit    int
}

// Decision is the outcome of one Check call.
type Decision struct {
	Allowed           bool
	RetryAfterSeconds int
	// Remaining and ResetAt are keyed by window name. ResetAt values are
	// unix epoch seconds.
	Remaining map[string]int
	ResetAt   map[string]int64
	// Exceeded names the windows that denied this request. Empty when the
	// request is allowed, even if a window sits exactly at its limit.
	Exceeded []string
}

type windowState struct {
	count   int
	resetAt time.Time
}

// pruneThreshold bounds client-map growth between opportunistic sweeps.
const pruneThreshold = 4096

// Limiter tracks per-client counters. Safe for concurrent use.
type Limiter struct {
	mu      sync.Mutex
	windows []Window
	clients map[string][]windowState
	now     func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock overrides the clock, for window-reset tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// New creates a Limiter. Windows with a zero or negative limit are disabled
// and removed from consideration entirely.
func New(windows []Window, opts ...Option) *Limiter {
	l := &Limiter{
		clients: make(map[string][]windowState),
		now:     time.Now,
	}
	for _, w := range windows {
		if w.Limit > 0 && w.Duration > 0 {
			l.windows = append(l.windows, w)
		}
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Enabled reports whether any window is active.
func (l *Limiter) Enabled() bool {
	return len(l.windows) > 0
}

// Check counts one request for clientID against every configured window.
// Expired windows reset before counting. The request is denied when any
// window's counter exceeds its limit.
func (l *Limiter) Check(clientID string) Decision {
	decision := Decision{
		Allowed:   true,
		Remaining: make(map[string]int, len(l.windows)),
		ResetAt:   make(map[string]int64, len(l.windows)),
	}
	if len(l.windows) == 0 {
		return decision
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	states, ok := l.clients[clientID]
	if !ok {
		if len(l.clients) >= pruneThreshold {
			l.pruneLocked(now)
		}
		states = make([]windowState, len(l.windows))
		l.clients[clientID] = states
	}

	var maxWait time.Duration
	for i, w := range l.windows {
		state := &states[i]
		if !now.Before(state.resetAt) {
			state.count = 0
			state.resetAt = now.Add(w.Duration)
		}
		state.count++

		remaining := w.Limit - state.count
		if remaining < 0 {
			remaining = 0
		}
		decision.Remaining[w.Name] = remaining
		decision.ResetAt[w.Name] = state.resetAt.Unix()

		if state.count > w.Limit {
			decision.Allowed = false
			decision.Exceeded = append(decision.Exceeded, w.Name)
			if wait := state.resetAt.Sub(now); wait > maxWait {
				maxWait = wait
			}
		}
	}

	if !decision.Allowed {
		decision.RetryAfterSeconds = int(math.Ceil(maxWait.Seconds()))
		if decision.RetryAfterSeconds < 1 {
			decision.RetryAfterSeconds = 1
		}
	}
	return decision
}

// pruneLocked drops clients whose every window has expired.
func (l *Limiter) pruneLocked(now time.Time) {
	for client, states := range l.clients {
		live := false
		for _, state := range states {
			if now.Before(state.resetAt) {
				live = true
				break
			}
		}
		if !live {
			delete(l.clients, client)
		}
	}
}
