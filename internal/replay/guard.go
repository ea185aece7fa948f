// Package replay rejects payment attempts that repeat the same user, amount
// and time bucket within a short TTL.
package replay

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"sync"
	"time"
)

// TransactionID derives the dedup key for a payment attempt.
// Two attempts by the same user for the same amount inside one bucket collide.
func TransactionID(userID string, amount float64, at time.Time, bucket time.Duration) string {
	b := at.Truncate(bucket).Unix()
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s-%s-%d", userID, strconv.FormatFloat(amount, 'f', 2, 64), b)))
	return hex.EncodeToString(sum[:])
}

// Guard is a TTL seen-set of transaction ids.
type Guard struct {
	mu     sync.Mutex
	ttl    time.Duration
	bucket time.Duration
	seen   map[string]time.Time
}

// NewGuard creates a Guard remembering ids for ttl, bucketing time by bucket.
func NewGuard(ttl, bucket time.Duration) *Guard {
	return &Guard{
		ttl:    ttl,
		bucket: bucket,
		seen:   make(map[string]time.Time),
	}
}

// IsDuplicate reports whether id was seen within the TTL; otherwise it records id.
func (g *Guard) IsDuplicate(id string, now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if first, ok := g.seen[id]; ok {
		if now.Sub(first) < g.ttl {
			return true
		}
	}
	g.seen[id] = now
	return false
}

// Check derives the transaction id for the attempt and tests it.
func (g *Guard) Check(userID string, amount float64, now time.Time) (string, bool) {
	id := TransactionID(userID, amount, now, g.bucket)
	return id, g.IsDuplicate(id, now)
}

// Forget removes id, e.g. when the downstream charge failed and a retry is legitimate.
func (g *Guard) Forget(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.seen, id)
}

// Sweep drops expired ids.
func (g *Guard) Sweep(now time.Time) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	removed := 0
	for id, first := range g.seen {
		if now.Sub(first) >= g.ttl {
			delete(g.seen, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of remembered ids.
func (g *Guard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return len(g.seen)
}
