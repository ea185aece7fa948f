package fraud

import (
	"time"

	"github.com/richxcame/pizzaguard/internal/suspicion"
	"github.com/richxcame/pizzaguard/internal/velocity"
)

// CardTestingDetector flags an IP that tries more distinct cards than allowed
// inside the window.
type CardTestingDetector struct {
	cards     *velocity.DistinctTracker
	maxCards  int
	suspicion SuspicionStore
}

// NewCardTestingDetector creates a detector allowing rule.Cap distinct cards per rule.Window.
func NewCardTestingDetector(rule velocity.Rule, s SuspicionStore) *CardTestingDetector {
	return &CardTestingDetector{
		cards:     velocity.NewDistinctTracker(rule.Window),
		maxCards:  rule.Cap,
		suspicion: s,
	}
}

// Detect records cardLast4 for ip and reports whether the IP is card testing.
// A flagged attempt adds a suspicion strike.
func (d *CardTestingDetector) Detect(ip, cardLast4 string, now time.Time) bool {
	if d.cards.Observe(ip, cardLast4, now) <= d.maxCards {
		return false
	}
	d.suspicion.Mark(ip, suspicion.ReasonCardTesting, now)
	return true
}

// Sweep drops idle IPs.
func (d *CardTestingDetector) Sweep(now time.Time) int {
	return d.cards.Sweep(now)
}
