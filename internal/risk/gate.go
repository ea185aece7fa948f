package risk

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/richxcame/pizzaguard/internal/fraud"
	"github.com/richxcame/pizzaguard/internal/session"
	"github.com/richxcame/pizzaguard/pkg/common"
	"github.com/richxcame/pizzaguard/pkg/eventbus"
	"github.com/richxcame/pizzaguard/pkg/logger"
	"github.com/richxcame/pizzaguard/pkg/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Stage names a step of the payment gate.
type Stage string

const (
	StageIPBlocked   Stage = "ip_blocked"
	StageFingerprint Stage = "fingerprint_mismatch"
	StageDuplicate   Stage = "duplicate_transaction"
	StageAmount      Stage = "amount_invalid"
	StageCardTesting Stage = "card_testing"
	StageFraudScore  Stage = "fraud_score"
	StageAdmitted    Stage = "admitted"
)

const tracerName = "risk"

// User-facing rejection reasons.
const (
	reasonBlockedIP    = "Suspicious activity detected. Please contact support."
	reasonDuplicate    = "Duplicate transaction detected. Please wait before retrying."
	reasonCardTesting  = "Suspicious payment activity detected."
	reasonFraudBlocked = "Transaction blocked for security review. Please contact support."
)

// PaymentAttempt is everything the gate needs to decide on one payment.
type PaymentAttempt struct {
	UserID     string
	IP         string
	Headers    http.Header
	Session    session.Session
	Amount     float64
	OrderTotal float64
	CardLast4  string
	OrderID    string
	// NewAccount is used when no account store is configured.
	NewAccount bool

	// SessionVerified marks a session already bound and checked for this
	// request by the session middleware; the gate does not check it again.
	SessionVerified bool
}

// GateDecision is the outcome of EvaluatePayment. The fraud score itself is
// never part of it.
type GateDecision struct {
	Admitted  bool           `json:"admitted"`
	Stage     Stage          `json:"stage"`
	ErrorCode string         `json:"error_code,omitempty"`
	Reason    string         `json:"reason,omitempty"`
	RiskLevel fraud.RiskTier `json:"risk_level,omitempty"`
	// RequiresReview marks an admitted medium-risk payment.
	RequiresReview bool `json:"requires_review,omitempty"`

	TransactionID string `json:"-"`
}

// EvaluatePayment runs the short-circuiting gate
// IP blocked, fingerprint, duplicate, amount, card testing, fraud score.
// The first failing stage decides the rejection. An error means a
// collaborator could not be consulted.
func (e *Engine) EvaluatePayment(ctx context.Context, p PaymentAttempt) (GateDecision, error) {
	start := time.Now()
	defer func() { gateDuration.Observe(time.Since(start).Seconds()) }()

	ctx, span := tracing.StartSpan(ctx, tracerName, "risk.EvaluatePayment")
	defer span.End()
	span.SetAttributes(tracing.PaymentAttributes(p.UserID, p.IP, p.Amount)...)

	d, err := e.evaluate(ctx, p, e.now())
	if err != nil {
		span.RecordError(err)
		return GateDecision{}, err
	}

	span.SetAttributes(
		attribute.String("risk.stage", string(d.Stage)),
		attribute.Bool("risk.admitted", d.Admitted),
	)
	if !d.Admitted {
		gateRejectionsTotal.WithLabelValues(string(d.Stage)).Inc()
		logger.Security(ctx, "payment rejected",
			zap.String("user_id", p.UserID),
			zap.String("ip", p.IP),
			zap.String("stage", string(d.Stage)),
			zap.String("reason", d.Reason),
		)
		e.publish(ctx, eventbus.SubjectPaymentRejected, eventbus.PaymentRejectedData{
			UserID:     p.UserID,
			IP:         p.IP,
			Stage:      string(d.Stage),
			Reason:     d.Reason,
			Amount:     p.Amount,
			RejectedAt: e.now(),
		})
	}
	return d, nil
}

func (e *Engine) evaluate(ctx context.Context, p PaymentAttempt, now time.Time) (GateDecision, error) {
	if e.suspicion.IsSuspicious(p.IP, now) {
		return reject(StageIPBlocked, common.CodeSuspicious, reasonBlockedIP), nil
	}

	if p.Session != nil && !p.SessionVerified {
		if res := e.BindOrCheckDeviceFingerprint(ctx, p.Session, p.Headers); res.Invalidated {
			return reject(StageFingerprint, common.CodeSessionInvalidated, res.Reason), nil
		}
	}

	txID, dup := e.replay.Check(p.UserID, p.Amount, now)
	recordCheck("duplicate", !dup)
	if dup {
		return reject(StageDuplicate, common.CodeDuplicate, reasonDuplicate), nil
	}

	if check := e.ValidateTransactionAmount(p.Amount, p.OrderTotal); !check.Valid {
		return reject(StageAmount, common.CodeAmountMismatch, check.Reason), nil
	}

	if p.CardLast4 != "" && e.DetectCardTesting(ctx, p.IP, p.CardLast4, now) {
		return reject(StageCardTesting, common.CodeSuspicious, reasonCardTesting), nil
	}

	isNew, err := e.isNewAccount(ctx, p, now)
	if err != nil {
		// No decision was made, so a retry of the same attempt is not a replay.
		e.replay.Forget(txID)
		return GateDecision{}, err
	}

	req := fraud.RequestContext{IP: p.IP, Headers: p.Headers}
	order := fraud.OrderContext{OrderID: p.OrderID, IsNewAccount: isNew}
	score := e.ScoreFraud(ctx, req, p.UserID, p.Amount, order, now)
	if score.Blocked {
		d := reject(StageFraudScore, common.CodeFraudBlocked, reasonFraudBlocked)
		d.RiskLevel = score.Tier
		return d, nil
	}

	return GateDecision{
		Admitted:       true,
		Stage:          StageAdmitted,
		RiskLevel:      score.Tier,
		RequiresReview: score.Tier == fraud.TierMedium,
		TransactionID:  txID,
	}, nil
}

func (e *Engine) isNewAccount(ctx context.Context, p PaymentAttempt, now time.Time) (bool, error) {
	if e.accounts == nil {
		return p.NewAccount, nil
	}
	id, err := uuid.Parse(p.UserID)
	if err != nil {
		return p.NewAccount, nil
	}
	isNew, err := e.accounts.IsNewAccount(ctx, id, now)
	if err != nil {
		if appErr, ok := common.AsAppError(err); ok && appErr.Code == http.StatusNotFound {
			return p.NewAccount, nil
		}
		return false, fmt.Errorf("look up account age: %w", err)
	}
	return isNew, nil
}

func reject(stage Stage, code, reason string) GateDecision {
	return GateDecision{Stage: stage, ErrorCode: code, Reason: reason}
}
