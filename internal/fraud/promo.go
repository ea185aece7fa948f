package fraud

import (
	"sync"
	"time"

	"github.com/richxcame/pizzaguard/internal/suspicion"
	"github.com/richxcame/pizzaguard/internal/velocity"
)

// Promo rejection reasons.
const (
	ReasonPromoReused = "Promo code already used"
	ReasonPromoAbuse  = "Promo code abuse detected"
)

// PromoRules configures PromoGuard.
type PromoRules struct {
	Window time.Duration
	// UsersPerIP caps distinct users redeeming one code from one IP.
	UsersPerIP int
	// IPsPerCode caps distinct IPs redeeming one code; zero disables it.
	IPsPerCode int
}

// PromoGuard rejects repeat redemptions and codes farmed from one address.
type PromoGuard struct {
	mu        sync.Mutex
	rules     PromoRules
	users     *velocity.DistinctTracker // code -> users
	ipUsers   *velocity.DistinctTracker // code|ip -> users
	ips       *velocity.DistinctTracker // code -> ips
	suspicion SuspicionStore
}

// NewPromoGuard creates a PromoGuard.
func NewPromoGuard(rules PromoRules, s SuspicionStore) *PromoGuard {
	return &PromoGuard{
		rules:     rules,
		users:     velocity.NewDistinctTracker(rules.Window),
		ipUsers:   velocity.NewDistinctTracker(rules.Window),
		ips:       velocity.NewDistinctTracker(rules.Window),
		suspicion: s,
	}
}

// Check decides whether userID may redeem code from ip and records the redemption when allowed.
func (g *PromoGuard) Check(userID, ip, code string, now time.Time) PromoCheck {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.users.Contains(code, userID, now) {
		return PromoCheck{Abused: true, Reason: ReasonPromoReused}
	}

	pair := code + "|" + ip
	if g.ipUsers.Count(pair, now) >= g.rules.UsersPerIP {
		g.suspicion.Mark(ip, suspicion.ReasonPromoAbuse, now)
		return PromoCheck{Abused: true, Reason: ReasonPromoAbuse}
	}

	if g.rules.IPsPerCode > 0 && !g.ips.Contains(code, ip, now) && g.ips.Count(code, now) >= g.rules.IPsPerCode {
		g.suspicion.Mark(ip, suspicion.ReasonPromoAbuse, now)
		return PromoCheck{Abused: true, Reason: ReasonPromoAbuse}
	}

	g.users.Observe(code, userID, now)
	g.ipUsers.Observe(pair, userID, now)
	g.ips.Observe(code, ip, now)
	return PromoCheck{}
}

// Sweep drops codes with no redemption left in the window.
func (g *PromoGuard) Sweep(now time.Time) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.ipUsers.Sweep(now)
	g.ips.Sweep(now)
	return g.users.Sweep(now)
}
