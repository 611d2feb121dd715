// Feedscout - Social Profile Content Retrieval API
// Copyright 2026 Feedscout Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/feedscout/feedscout

package ratelimit

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func minuteWindow(limit int) Window {
	return Window{Name: "minute", Duration: time.Minute, Limit: limit}
}

func TestAllowsUpToLimitDeniesNext(t *testing.T) {
	current := time.Unix(1000, 0)
	l := New([]Window{minuteWindow(2)}, WithClock(func() time.Time { return current }))

	first := l.Check("client-a")
	second := l.Check("client-a")
	third := l.Check("client-a")

	if !first.Allowed || !second.Allowed {
		t.Fatalf("first two requests should pass: %v, %v", first.Allowed, second.Allowed)
	}
	if third.Allowed {
		t.Fatal("third request should be denied")
	}
	if third.RetryAfterSeconds <= 0 {
		t.Errorf("denied request must carry a positive retry-after, got %d", third.RetryAfterSeconds)
	}
	if first.Remaining["minute"] != 1 || second.Remaining["minute"] != 0 {
		t.Errorf("remaining countdown wrong: %d, %d", first.Remaining["minute"], second.Remaining["minute"])
	}
}

func TestWindowResetsLazily(t *testing.T) {
	current := time.Unix(1000, 0)
	l := New([]Window{minuteWindow(1)}, WithClock(func() time.Time { return current }))

	if !l.Check("c").Allowed {
		t.Fatal("first request should pass")
	}
	if l.Check("c").Allowed {
		t.Fatal("second request inside the window should be denied")
	}

	current = current.Add(61 * time.Second)
	if !l.Check("c").Allowed {
		t.Error("request after window expiry should pass again")
	}
}

func TestClientsAreIndependent(t *testing.T) {
	l := New([]Window{minuteWindow(1)})

	if !l.Check("a").Allowed {
		t.Fatal("client a first request should pass")
	}
	if !l.Check("b").Allowed {
		t.Error("client b must not inherit client a's count")
	}
}

func TestDenialRequiresAnyExceededWindow(t *testing.T) {
	current := time.Unix(1000, 0)
	l := New([]Window{
		{Name: "minute", Duration: time.Minute, Limit: 100},
		{Name: "hour", Duration: time.Hour, Limit: 2},
	}, WithClock(func() time.Time { return current }))

	l.Check("c")
	l.Check("c")
	d := l.Check("c")

	if d.Allowed {
		t.Fatal("hour window exhausted, request should be denied despite minute headroom")
	}
	// The exceeded hour window dictates the wait, not the minute window.
	if d.RetryAfterSeconds < 3500 {
		t.Errorf("retry-after should reflect the hour window, got %d", d.RetryAfterSeconds)
	}
	if d.Remaining["minute"] != 97 {
		t.Errorf("minute window should keep counting, remaining %d", d.Remaining["minute"])
	}
	// Only the hour window denied; the minute window had headroom.
	if len(d.Exceeded) != 1 || d.Exceeded[0] != "hour" {
		t.Errorf("expected only the hour window in Exceeded, got %v", d.Exceeded)
	}
}

func TestExceededEmptyAtExactLimit(t *testing.T) {
	l := New([]Window{minuteWindow(2)})

	l.Check("c")
	atLimit := l.Check("c")
	if !atLimit.Allowed {
		t.Fatal("request at the limit should still pass")
	}
	if atLimit.Remaining["minute"] != 0 {
		t.Fatalf("expected remaining 0 at the limit, got %d", atLimit.Remaining["minute"])
	}
	if len(atLimit.Exceeded) != 0 {
		t.Errorf("a window at its limit has not denied anything, got %v", atLimit.Exceeded)
	}

	denied := l.Check("c")
	if denied.Allowed {
		t.Fatal("request past the limit should be denied")
	}
	if len(denied.Exceeded) != 1 || denied.Exceeded[0] != "minute" {
		t.Errorf("expected the minute window in Exceeded, got %v", denied.Exceeded)
	}
}

func TestZeroLimitRemovesWindow(t *testing.T) {
	l := New([]Window{
		{Name: "minute", Duration: time.Minute, Limit: 0},
		{Name: "hour", Duration: time.Hour, Limit: 3},
	})

	d := l.Check("c")
	if !d.Allowed {
		t.Fatal("request should pass")
	}
	if _, ok := d.Remaining["minute"]; ok {
		t.Error("zero-limit window should not appear in the decision")
	}
	if _, ok := d.Remaining["hour"]; !ok {
		t.Error("active window missing from the decision")
	}
}

func TestNoWindowsAlwaysAllows(t *testing.T) {
	l := New(nil)
	if l.Enabled() {
		t.Fatal("limiter with no windows should report disabled")
	}
	for range 50 {
		if !l.Check("c").Allowed {
			t.Fatal("disabled limiter must always allow")
		}
	}
}

func TestResetAtReported(t *testing.T) {
	current := time.Unix(5000, 0)
	l := New([]Window{minuteWindow(10)}, WithClock(func() time.Time { return current }))

	d := l.Check("c")
	if got := d.ResetAt["minute"]; got != 5060 {
		t.Errorf("expected reset at 5060, got %d", got)
	}
}

func TestConcurrentChecksDoNotTearCounts(t *testing.T) {
	l := New([]Window{{Name: "minute", Duration: time.Minute, Limit: 1000}})

	var wg sync.WaitGroup
	allowed := make([]int, 8)
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				if l.Check("shared").Allowed {
					allowed[i]++
				}
			}
		}()
	}
	wg.Wait()

	total := 0
	for _, n := range allowed {
		total += n
	}
	if total != 400 {
		t.Errorf("all 400 requests fit the limit, got %d allowed", total)
	}

	// One more client pushes past the limit deterministically.
	for range 600 {
		l.Check("shared")
	}
	if l.Check("shared").Allowed {
		t.Error("request past the limit should be denied")
	}
}

func TestPruneDropsExpiredClients(t *testing.T) {
	current := time.Unix(1000, 0)
	l := New([]Window{minuteWindow(5)}, WithClock(func() time.Time { return current }))

	for i := range pruneThreshold {
		l.Check(fmt.Sprintf("client-%d", i))
	}
	current = current.Add(2 * time.Minute)

	// A new client while over the threshold triggers the sweep.
	l.Check("fresh")
	l.mu.Lock()
	count := len(l.clients)
	l.mu.Unlock()
	if count != 1 {
		t.Errorf("expected only the fresh client to survive the sweep, got %d", count)
	}
}
