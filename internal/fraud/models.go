package fraud

import (
	"net/http"
	"time"

	"github.com/google/uuid"
)

// RiskTier is the triage bucket of a fraud score.
type RiskTier string

const (
	TierLow    RiskTier = "low"
	TierMedium RiskTier = "medium"
	TierHigh   RiskTier = "high"
)

// Reasons attached to a score.
const (
	ReasonSuspiciousIP   = "Suspicious IP detected"
	ReasonTooManyTx      = "Too many transactions in short period"
	ReasonAmountVelocity = "Transaction amount limit exceeded"
	ReasonHighAmount     = "High transaction amount"
	ReasonNewAccount     = "New account"
)

// RequestContext is what the HTTP layer knows about the caller.
type RequestContext struct {
	IP      string
	Headers http.Header
}

// UserAgent returns the caller's user agent.
func (r RequestContext) UserAgent() string {
	if r.Headers == nil {
		return ""
	}
	return r.Headers.Get("User-Agent")
}

// OrderContext carries facts about the order and account computed by collaborators.
type OrderContext struct {
	OrderID      string
	IsNewAccount bool
}

// ScoreResult is the outcome of Scorer.Score. Score and Reasons are for logs
// and review only; callers expose Tier and Blocked.
type ScoreResult struct {
	Score   int
	Tier    RiskTier
	Reasons []string
	Blocked bool
}

// AmountCheck is the outcome of ValidateTransactionAmount.
type AmountCheck struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

// PromoCheck is the outcome of PromoGuard.Check.
type PromoCheck struct {
	Abused bool   `json:"abused"`
	Reason string `json:"reason,omitempty"`
}

// AlertStatus tracks manual review of a flagged payment.
type AlertStatus string

const (
	AlertStatusPending       AlertStatus = "pending"
	AlertStatusConfirmed     AlertStatus = "confirmed"
	AlertStatusFalsePositive AlertStatus = "false_positive"
)

// Resolved reports whether s closes a review.
func (s AlertStatus) Resolved() bool {
	return s == AlertStatusConfirmed || s == AlertStatusFalsePositive
}

// ReviewAlert records a medium or high tier payment for manual review.
type ReviewAlert struct {
	ID         uuid.UUID   `json:"id"`
	UserID     string      `json:"user_id"`
	OrderID    string      `json:"order_id,omitempty"`
	IP         string      `json:"ip"`
	Tier       RiskTier    `json:"tier"`
	Score      int         `json:"score"`
	Reasons    []string    `json:"reasons"`
	Amount     float64     `json:"amount"`
	Blocked    bool        `json:"blocked"`
	Status     AlertStatus `json:"status"`
	DetectedAt time.Time   `json:"detected_at"`
}

// NewReviewAlert builds a pending alert from a score result.
func NewReviewAlert(userID, ip string, amount float64, order OrderContext, res ScoreResult, now time.Time) *ReviewAlert {
	return &ReviewAlert{
		ID:         uuid.New(),
		UserID:     userID,
		OrderID:    order.OrderID,
		IP:         ip,
		Tier:       res.Tier,
		Score:      res.Score,
		Reasons:    append([]string(nil), res.Reasons...),
		Amount:     amount,
		Blocked:    res.Blocked,
		Status:     AlertStatusPending,
		DetectedAt: now,
	}
}
