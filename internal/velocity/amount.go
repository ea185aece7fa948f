package velocity

import (
	"sync"
	"time"

	"github.com/richxcame/pizzaguard/pkg/window"
)

type amountHit struct {
	at     time.Time
	amount float64
}

// Usage is the state of one key after an AmountTracker decision.
type Usage struct {
	Count int
	Total float64
}

// Breach names the limit an AmountTracker refused on.
type Breach string

const (
	BreachNone   Breach = ""
	BreachCount  Breach = "count"
	BreachAmount Breach = "amount"
)

// AmountTracker caps both the number of events and their cumulative amount per key.
type AmountTracker struct {
	mu        sync.Mutex
	rule      Rule
	amountCap float64
	hits      map[string][]amountHit
}

// NewAmountTracker creates an AmountTracker with a count rule and a cumulative amount cap.
func NewAmountTracker(rule Rule, amountCap float64) *AmountTracker {
	return &AmountTracker{
		rule:      rule,
		amountCap: amountCap,
		hits:      make(map[string][]amountHit),
	}
}

// TryAdmit records amount for key unless it would exceed the count or amount cap.
// The returned Usage includes the attempted event either way.
func (t *AmountTracker) TryAdmit(key string, amount float64, now time.Time) (Usage, Breach) {
	t.mu.Lock()
	defer t.mu.Unlock()

	hits := t.prune(key, now)
	usage := Usage{Count: len(hits) + 1, Total: amount}
	for _, h := range hits {
		usage.Total += h.amount
	}

	switch {
	case len(hits) >= t.rule.Cap:
		return usage, BreachCount
	case t.amountCap > 0 && usage.Total > t.amountCap:
		return usage, BreachAmount
	}

	t.hits[key] = append(hits, amountHit{at: now, amount: amount})
	return usage, BreachNone
}

// Sweep drops keys with no event left in the window.
func (t *AmountTracker) Sweep(now time.Time) int {
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

func (t *AmountTracker) prune(key string, now time.Time) []amountHit {
	hits, ok := t.hits[key]
	if !ok {
		return nil
	}
	kept := hits[:0]
	for _, h := range hits {
		if window.Within(h.at, t.rule.Window, now) {
			kept = append(kept, h)
		}
	}
	if len(kept) == 0 {
		delete(t.hits, key)
		return nil
	}
	t.hits[key] = kept
	return kept
}
