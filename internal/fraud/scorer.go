package fraud

import (
	"time"

	"github.com/richxcame/pizzaguard/internal/suspicion"
	"github.com/richxcame/pizzaguard/internal/velocity"
	"github.com/richxcame/pizzaguard/pkg/config"
	"github.com/richxcame/pizzaguard/pkg/fingerprint"
)

// SuspicionStore is the part of the suspicion registry the scorer needs.
type SuspicionStore interface {
	IsSuspicious(ip string, now time.Time) bool
	Mark(ip, reason string, now time.Time) suspicion.Record
}

// VelocityLimiter tracks payment count and cumulative amount per user.
type VelocityLimiter interface {
	TryAdmit(key string, amount float64, now time.Time) (velocity.Usage, velocity.Breach)
}

// ScoringConfig holds weights and thresholds.
type ScoringConfig struct {
	Weights         config.FraudWeights
	HighAmount      float64
	MediumThreshold int
	HighThreshold   int
}

// ScoringConfigFrom extracts the scoring parameters of the risk configuration.
func ScoringConfigFrom(cfg config.RiskConfig) ScoringConfig {
	return ScoringConfig{
		Weights:         cfg.Weights,
		HighAmount:      cfg.HighAmount,
		MediumThreshold: cfg.MediumThreshold,
		HighThreshold:   cfg.HighThreshold,
	}
}

// Scorer combines independent risk signals into an additive score.
type Scorer struct {
	cfg       ScoringConfig
	suspicion SuspicionStore
	velocity  VelocityLimiter
}

// NewScorer creates a Scorer.
func NewScorer(cfg ScoringConfig, s SuspicionStore, v VelocityLimiter) *Scorer {
	return &Scorer{cfg: cfg, suspicion: s, velocity: v}
}

// Score evaluates one payment attempt. It records the attempt against the
// user's payment velocity and strikes the IP when an automation signature matches.
func (s *Scorer) Score(req RequestContext, userID string, amount float64, order OrderContext, now time.Time) ScoreResult {
	var res ScoreResult
	w := s.cfg.Weights

	if s.suspicion.IsSuspicious(req.IP, now) {
		res.add(w.SuspiciousIP, ReasonSuspiciousIP)
	}

	if sig, ok := fingerprint.DetectAutomation(req.UserAgent()); ok {
		s.suspicion.Mark(req.IP, suspicion.ReasonAutomatedUA, now)
		res.add(w.AutomatedClient, sig.Reason)
	}

	switch _, breach := s.velocity.TryAdmit(userID, amount, now); breach {
	case velocity.BreachCount:
		res.add(w.VelocityExceeded, ReasonTooManyTx)
	case velocity.BreachAmount:
		res.add(w.VelocityExceeded, ReasonAmountVelocity)
	}

	if amount > s.cfg.HighAmount {
		res.add(w.HighAmount, ReasonHighAmount)
	}

	if order.IsNewAccount {
		res.add(w.NewAccount, ReasonNewAccount)
	}

	res.Tier = s.TierFor(res.Score)
	res.Blocked = res.Tier == TierHigh
	return res
}

// TierFor maps a score to its risk tier.
func (s *Scorer) TierFor(score int) RiskTier {
	switch {
	case score >= s.cfg.HighThreshold:
		return TierHigh
	case score >= s.cfg.MediumThreshold:
		return TierMedium
	default:
		return TierLow
	}
}

func (r *ScoreResult) add(weight int, reason string) {
	r.Score += weight
	r.Reasons = append(r.Reasons, reason)
}
