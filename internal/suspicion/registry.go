// Package suspicion accumulates per-IP strikes and blocks an address once
// enough strikes land within the block duration.
package suspicion

import (
	"sync"
	"time"
)

// Reasons recorded by the risk layer.
const (
	ReasonThrottled    = "ip_throttled"
	ReasonCardTesting  = "card_testing"
	ReasonPromoAbuse   = "promo_abuse"
	ReasonAutomatedUA  = "automated_client"
	ReasonLoginFlood   = "login_velocity"
	ReasonRegistration = "registration_flood"
)

// Strike is a single suspicious observation.
type Strike struct {
	Reason string    `json:"reason"`
	At     time.Time `json:"at"`
}

// Record is the accumulated state of one address.
type Record struct {
	IP             string    `json:"ip"`
	Strikes        []Strike  `json:"strikes"`
	Count          int       `json:"count"`
	FirstDetection time.Time `json:"first_detection"`
	LastDetection  time.Time `json:"last_detection"`
	Blocked        bool      `json:"blocked"`
}

// Registry holds suspicion records keyed by IP.
type Registry struct {
	mu        sync.Mutex
	threshold int
	block     time.Duration
	records   map[string]*Record

	// OnBlocked is called, outside the lock, when a record first reaches the threshold.
	OnBlocked func(Record)
}

// NewRegistry creates a Registry blocking after threshold strikes for block duration.
func NewRegistry(threshold int, block time.Duration) *Registry {
	return &Registry{
		threshold: threshold,
		block:     block,
		records:   make(map[string]*Record),
	}
}

// Mark appends a strike for ip and returns the updated record.
func (r *Registry) Mark(ip, reason string, now time.Time) Record {
	r.mu.Lock()
	rec := r.live(ip, now)
	if rec == nil {
		rec = &Record{IP: ip, FirstDetection: now}
		r.records[ip] = rec
	}
	rec.Strikes = append(rec.Strikes, Strike{Reason: reason, At: now})
	rec.Count++
	rec.LastDetection = now
	escalated := rec.Count == r.threshold
	snapshot := r.snapshot(rec)
	hook := r.OnBlocked
	r.mu.Unlock()

	if escalated && hook != nil {
		hook(snapshot)
	}
	return snapshot
}

// IsSuspicious reports whether ip has reached the strike threshold and its
// last strike is younger than the block duration. Expired records are deleted.
func (r *Registry) IsSuspicious(ip string, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec := r.live(ip, now)
	return rec != nil && rec.Count >= r.threshold
}

// Get returns a copy of the live record for ip.
func (r *Registry) Get(ip string, now time.Time) (Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec := r.live(ip, now)
	if rec == nil {
		return Record{}, false
	}
	return r.snapshot(rec), true
}

// Sweep deletes expired records.
func (r *Registry) Sweep(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for ip := range r.records {
		if r.live(ip, now) == nil {
			removed++
		}
	}
	return removed
}

// Len returns the number of stored records.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.records)
}

func (r *Registry) live(ip string, now time.Time) *Record {
	rec, ok := r.records[ip]
	if !ok {
		return nil
	}
	if now.Sub(rec.LastDetection) >= r.block {
		delete(r.records, ip)
		return nil
	}
	return rec
}

func (r *Registry) snapshot(rec *Record) Record {
	cp := *rec
	cp.Strikes = append([]Strike(nil), rec.Strikes...)
	cp.Blocked = rec.Count >= r.threshold
	return cp
}
