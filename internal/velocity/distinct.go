package velocity

import (
	"sync"
	"time"

	"github.com/richxcame/pizzaguard/pkg/window"
)

// DistinctTracker remembers which distinct values were seen per key inside a
// sliding window. Each value ages out individually from its last sighting.
type DistinctTracker struct {
	mu     sync.Mutex
	window time.Duration
	seen   map[string]map[string]time.Time
}

// NewDistinctTracker creates a DistinctTracker over window w.
func NewDistinctTracker(w time.Duration) *DistinctTracker {
	return &DistinctTracker{
		window: w,
		seen:   make(map[string]map[string]time.Time),
	}
}

// Observe records value under key and returns the number of distinct values now held.
func (d *DistinctTracker) Observe(key, value string, now time.Time) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	values := d.prune(key, now)
	if values == nil {
		values = make(map[string]time.Time)
		d.seen[key] = values
	}
	values[value] = now
	return len(values)
}

// Contains reports whether value was seen under key inside the window.
func (d *DistinctTracker) Contains(key, value string, now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	_, ok := d.prune(key, now)[value]
	return ok
}

// Count returns the number of distinct values held for key.
func (d *DistinctTracker) Count(key string, now time.Time) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return len(d.prune(key, now))
}

// Sweep drops keys whose values all aged out.
func (d *DistinctTracker) Sweep(now time.Time) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	removed := 0
	for key := range d.seen {
		if d.prune(key, now) == nil {
			removed++
		}
	}
	return removed
}

func (d *DistinctTracker) prune(key string, now time.Time) map[string]time.Time {
	values, ok := d.seen[key]
	if !ok {
		return nil
	}
	for v, at := range values {
		if !window.Within(at, d.window, now) {
			delete(values, v)
		}
	}
	if len(values) == 0 {
		delete(d.seen, key)
		return nil
	}
	return values
}
