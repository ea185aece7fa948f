// Package window holds the sliding-window arithmetic shared by every tracker.
package window

import "time"

// Prune returns the timestamps strictly younger than w relative to now.
// The input is assumed to be in insertion order; the result reuses its backing array.
func Prune(timestamps []time.Time, w time.Duration, now time.Time) []time.Time {
	kept := timestamps[:0]
	for _, ts := range timestamps {
		if Within(ts, w, now) {
			kept = append(kept, ts)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	return kept
}

// Within reports whether ts still falls inside the window ending at now.
func Within(ts time.Time, w time.Duration, now time.Time) bool {
	return now.Sub(ts) < w
}

// Oldest returns the earliest retained timestamp, or the zero time.
func Oldest(timestamps []time.Time) time.Time {
	if len(timestamps) == 0 {
		return time.Time{}
	}
	oldest := timestamps[0]
	for _, ts := range timestamps[1:] {
		if ts.Before(oldest) {
			oldest = ts
		}
	}
	return oldest
}

// ResetIn is how long until the oldest timestamp leaves the window.
func ResetIn(timestamps []time.Time, w time.Duration, now time.Time) time.Duration {
	if len(timestamps) == 0 {
		return 0
	}
	d := Oldest(timestamps).Add(w).Sub(now)
	if d < 0 {
		return 0
	}
	return d
}
