// Package guard – submission throttle
//
// This file implements a per-form cooldown gate. A form identifier may
// acquire the gate at most once per window; a validation failure downstream
// releases the gate so the user's corrected resubmission is not itself
// throttled.
//
// Elapsed-time comparisons use time.Time values produced by the clock and
// compared with Sub, so the monotonic reading carries through and wall-clock
// adjustments cannot corrupt the window.
package guard

import (
	"sync"
	"time"
)

// gcEvery bounds the cooldown map: after this many acquires the map is
// swept and entries older than the window are dropped.
const gcEvery = 1000

// SubmissionThrottle is a per-key cooldown gate. Safe for concurrent use.
type SubmissionThrottle struct {
	window time.Duration
	clock  func() time.Time

	mu     sync.Mutex
	last   map[string]time.Time
	sweepN int
}

// NewSubmissionThrottle constructs a throttle with the given cooldown
// window. A nil clock defaults to time.Now.
func NewSubmissionThrottle(window time.Duration, clock func() time.Time) *SubmissionThrottle {
	if clock == nil {
		clock = time.Now
	}
	return &SubmissionThrottle{
		window: window,
		clock:  clock,
		last:   make(map[string]time.Time),
	}
}

// TryAcquire reports whether a submission for formID may proceed. It
// returns false when the last accepted acquire for formID is younger than
// the window; otherwise it records the current instant and returns true.
func (t *SubmissionThrottle) TryAcquire(formID string) bool {
	now := t.clock()

	t.mu.Lock()
	defer t.mu.Unlock()

	// Sweep BEFORE touching the requested entry so an old entry can be
	// evicted even when it is the one being fetched.
	t.sweepN++
	if t.sweepN >= gcEvery {
		for k, at := range t.last {
			if now.Sub(at) >= t.window {
				delete(t.last, k)
			}
		}
		t.sweepN = 0
	}

	if at, ok := t.last[formID]; ok && now.Sub(at) < t.window {
		return false
	}
	t.last[formID] = now
	return true
}

// Release clears the cooldown for formID, permitting an immediate retry.
// Called after a business-key validation rejection.
func (t *SubmissionThrottle) Release(formID string) {
	t.mu.Lock()
	delete(t.last, formID)
	t.mu.Unlock()
}
