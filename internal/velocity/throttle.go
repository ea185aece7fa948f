package velocity

import (
	"math"
	"sync"
	"time"

	"github.com/richxcame/pizzaguard/pkg/window"
)

// ThrottleDecision is the outcome of Throttle.Allow.
type ThrottleDecision struct {
	Allowed    bool
	RetryAfter time.Duration
	// Tripped is set on the request that moved the key into the blocked state.
	Tripped bool
}

// RetryAfterSeconds rounds RetryAfter up to whole seconds.
func (d ThrottleDecision) RetryAfterSeconds() int {
	return int(math.Ceil(d.RetryAfter.Seconds()))
}

type throttleState struct {
	hits         []time.Time
	blockedUntil time.Time
}

// Throttle is a burst limiter that blocks a key for a fixed duration once it
// exceeds Max requests inside Window.
type Throttle struct {
	mu     sync.Mutex
	window time.Duration
	max    int
	block  time.Duration
	states map[string]*throttleState
}

// NewThrottle creates a Throttle.
func NewThrottle(w time.Duration, max int, block time.Duration) *Throttle {
	return &Throttle{
		window: w,
		max:    max,
		block:  block,
		states: make(map[string]*throttleState),
	}
}

// Allow admits or rejects one request for key.
func (t *Throttle) Allow(key string, now time.Time) ThrottleDecision {
	t.mu.Lock()
	defer t.mu.Unlock()

	st, ok := t.states[key]
	if !ok {
		st = &throttleState{}
		t.states[key] = st
	}

	if !st.blockedUntil.IsZero() {
		if now.Before(st.blockedUntil) {
			return ThrottleDecision{RetryAfter: st.blockedUntil.Sub(now)}
		}
		st.blockedUntil = time.Time{}
		st.hits = nil
	}

	st.hits = window.Prune(st.hits, t.window, now)
	if len(st.hits) >= t.max {
		st.blockedUntil = now.Add(t.block)
		st.hits = nil
		return ThrottleDecision{RetryAfter: t.block, Tripped: true}
	}

	st.hits = append(st.hits, now)
	return ThrottleDecision{Allowed: true}
}

// Blocked reports whether key is currently inside a block.
func (t *Throttle) Blocked(key string, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	st, ok := t.states[key]
	return ok && now.Before(st.blockedUntil)
}

// Sweep drops keys that are neither blocked nor have recent requests.
func (t *Throttle) Sweep(now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for key, st := range t.states {
		if now.Before(st.blockedUntil) {
			continue
		}
		if st.hits = window.Prune(st.hits, t.window, now); st.hits == nil {
			delete(t.states, key)
			removed++
		}
	}
	return removed
}
