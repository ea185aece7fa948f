// Package velocity implements the per-key sliding-window counters used for
// throttling, login and registration limits, payment velocity and
// distinct-value detection (card testing, promo sharing).
package velocity

import (
	"sync"
	"time"

	"github.com/richxcame/pizzaguard/pkg/window"
)

// Rule is a sliding-window cap.
type Rule struct {
	Window time.Duration
	Cap    int
}

// Tracker counts admitted events per key inside a sliding window.
// Rejected events are not recorded.
type Tracker struct {
	mu   sync.Mutex
	rule Rule
	hits map[string][]time.Time
}

// NewTracker creates a Tracker enforcing rule.
func NewTracker(rule Rule) *Tracker {
	return &Tracker{
		rule: rule,
		hits: make(map[string][]time.Time),
	}
}

// Rule returns the configured window and cap.
func (t *Tracker) Rule() Rule {
	return t.rule
}

// TryAdmit records an event for key when fewer than Cap events remain in the window.
func (t *Tracker) TryAdmit(key string, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	hits := t.prune(key, now)
	if len(hits) >= t.rule.Cap {
		return false
	}
	t.hits[key] = append(hits, now)
	return true
}

// Count returns the number of events currently inside the window for key.
func (t *Tracker) Count(key string, now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.prune(key, now))
}

// ResetIn returns how long until the oldest event for key leaves the window.
func (t *Tracker) ResetIn(key string, now time.Time) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	return window.ResetIn(t.prune(key, now), t.rule.Window, now)
}

// Reset forgets every event recorded for key.
func (t *Tracker) Reset(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.hits, key)
}

// Sweep drops keys with no event left in the window and returns how many were removed.
func (t *Tracker) Sweep(now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for key := range t.hits {
		if t.prune(key, now) == nil {
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.hits)
}

// prune must be called with mu held.
func (t *Tracker) prune(key string, now time.Time) []time.Time {
	hits, ok := t.hits[key]
	if !ok {
		return nil
	}
	hits = window.Prune(hits, t.rule.Window, now)
	if hits == nil {
		delete(t.hits, key)
		return nil
	}
	t.hits[key] = hits
	return hits
}
