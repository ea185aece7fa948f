// Package risk wires the individual trackers and detectors into the decision
// API consumed by the HTTP layer: throttling, device binding, registration and
// login limits, promo abuse, order validation and the payment gate.
package risk

import (
	"context"
	"math"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/richxcame/pizzaguard/internal/account"
	"github.com/richxcame/pizzaguard/internal/fraud"
	"github.com/richxcame/pizzaguard/internal/pricing"
	"github.com/richxcame/pizzaguard/internal/replay"
	"github.com/richxcame/pizzaguard/internal/session"
	"github.com/richxcame/pizzaguard/internal/suspicion"
	"github.com/richxcame/pizzaguard/internal/velocity"
	"github.com/richxcame/pizzaguard/pkg/async"
	"github.com/richxcame/pizzaguard/pkg/config"
	apperrors "github.com/richxcame/pizzaguard/pkg/errors"
	"github.com/richxcame/pizzaguard/pkg/eventbus"
	"github.com/richxcame/pizzaguard/pkg/logger"
	"go.uber.org/zap"
)

// OrderValidator recomputes order totals from trusted catalog data.
type OrderValidator interface {
	ValidateOrder(ctx context.Context, order pricing.OrderPayload) (*pricing.Result, error)
}

// Accounts exposes the persisted account facts the engine consults.
type Accounts interface {
	IsNewAccount(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
	LockStatus(ctx context.Context, id uuid.UUID, now time.Time) (account.LockStatus, error)
	RecordLogin(ctx context.Context, id uuid.UUID, success bool, now time.Time) (account.LockStatus, error)
}

// Deps are the collaborators of the engine. Only Orders is required.
type Deps struct {
	Orders   OrderValidator
	Accounts Accounts
	Alerts   fraud.AlertStore
	Events   eventbus.Publisher
	// Source names this service in published events.
	Source string
	Now    func() time.Time
}

// Engine owns every in-memory tracker of the risk layer. It is built once at
// startup and shared by all request handlers; each tracker serializes its own state.
type Engine struct {
	cfg config.RiskConfig

	throttle      *velocity.Throttle
	logins        *velocity.Tracker
	registrations *velocity.Tracker
	payments      *velocity.AmountTracker
	suspicion     *suspicion.Registry
	replay        *replay.Guard
	cards         *fraud.CardTestingDetector
	promos        *fraud.PromoGuard
	scorer        *fraud.Scorer
	sessions      *session.Guard
	limits        fraud.AmountLimits

	orders   OrderValidator
	accounts Accounts
	alerts   fraud.AlertStore
	events   eventbus.Publisher
	source   string
	now      func() time.Time
}

// NewEngine builds the trackers described by cfg.
func NewEngine(cfg config.RiskConfig, deps Deps) *Engine {
	e := &Engine{
		cfg:           cfg,
		throttle:      velocity.NewThrottle(cfg.ThrottleWindow, cfg.ThrottleMax, cfg.ThrottleBlock),
		logins:        velocity.NewTracker(rule(cfg.LoginVelocity)),
		registrations: velocity.NewTracker(rule(cfg.Registration)),
		payments:      velocity.NewAmountTracker(rule(cfg.PaymentVelocity), cfg.PaymentAmountCap),
		suspicion:     suspicion.NewRegistry(cfg.SuspicionThreshold, cfg.SuspicionBlock),
		replay:        replay.NewGuard(cfg.DuplicateTTL, cfg.DuplicateBucket),
		sessions:      session.NewGuard(cfg.SessionIdleTimeout),
		limits:        fraud.AmountLimits{Max: cfg.MaxTransaction, Tolerance: cfg.AmountTolerance},

		orders:   deps.Orders,
		accounts: deps.Accounts,
		alerts:   deps.Alerts,
		events:   deps.Events,
		source:   deps.Source,
		now:      deps.Now,
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.source == "" {
		e.source = "riskgate"
	}

	e.suspicion.OnBlocked = e.onIPBlocked
	e.cards = fraud.NewCardTestingDetector(rule(cfg.CardTesting), e.suspicion)
	e.promos = fraud.NewPromoGuard(fraud.PromoRules{
		Window:     cfg.PromoUsers.Window,
		UsersPerIP: cfg.PromoUsers.Cap,
		IPsPerCode: cfg.PromoIPsPerCode,
	}, e.suspicion)
	e.scorer = fraud.NewScorer(fraud.ScoringConfigFrom(cfg), e.suspicion, e.payments)
	return e
}

// asyncTimeout bounds event publishing and alert storage.
const asyncTimeout = 5 * time.Second

func rule(l config.WindowLimit) velocity.Rule {
	return velocity.Rule{Window: l.Window, Cap: l.Cap}
}

// Now returns the engine clock.
func (e *Engine) Now() time.Time {
	return e.now()
}

// ThrottleDecision is the outcome of IPThrottle.
type ThrottleDecision struct {
	Allowed           bool `json:"allowed"`
	RetryAfterSeconds int  `json:"retry_after,omitempty"`
}

// IPThrottle admits or rejects a request from ip. The request that trips the
// burst limit also records a suspicion strike.
func (e *Engine) IPThrottle(ctx context.Context, ip string, now time.Time) ThrottleDecision {
	d := e.throttle.Allow(ip, now)
	recordCheck("ip_throttle", d.Allowed)
	if d.Tripped {
		logger.Security(ctx, "ip throttled",
			zap.String("ip", ip),
			zap.Duration("block", e.cfg.ThrottleBlock),
		)
		e.suspicion.Mark(ip, suspicion.ReasonThrottled, now)
	}
	return ThrottleDecision{Allowed: d.Allowed, RetryAfterSeconds: d.RetryAfterSeconds()}
}

// BindOrCheckDeviceFingerprint binds s to the caller's device on first use and
// invalidates it when the device changes or the session went idle.
func (e *Engine) BindOrCheckDeviceFingerprint(ctx context.Context, s session.Session, h http.Header) session.Result {
	now := e.now()
	res := e.sessions.Check(ctx, s, h, now)
	recordCheck("device_binding", !res.Invalidated)
	if res.Invalidated {
		data := eventbus.SessionInvalidatedData{Reason: string(res.Status), InvalidatedAt: now}
		if d, ok := s.(*session.Data); ok {
			data.SessionID, data.UserID = d.ID, d.UserID
		}
		e.publish(ctx, eventbus.SubjectSessionInvalidated, data)
	}
	return res
}

// LimitDecision is the outcome of a windowed limit check.
type LimitDecision struct {
	Allowed bool `json:"allowed"`
	// ResetInMinutes is set when the limit refused the request.
	ResetInMinutes int `json:"reset_in_minutes,omitempty"`
}

// CheckRegistrationLimit admits one account creation from ip.
func (e *Engine) CheckRegistrationLimit(ctx context.Context, ip string, now time.Time) LimitDecision {
	if e.registrations.TryAdmit(ip, now) {
		recordCheck("registration", true)
		return LimitDecision{Allowed: true}
	}
	recordCheck("registration", false)
	reset := e.registrations.ResetIn(ip, now)
	logger.Security(ctx, "registration limit reached",
		zap.String("ip", ip),
		zap.Duration("reset_in", reset),
	)
	e.suspicion.Mark(ip, suspicion.ReasonRegistration, now)
	return LimitDecision{ResetInMinutes: minutesCeil(reset)}
}

// RegistrationStats describes the registration window of one address.
type RegistrationStats struct {
	Count          int    `json:"count"`
	Limit          int    `json:"limit,omitempty"`
	ResetInMinutes int    `json:"reset_in_minutes,omitempty"`
	Status         string `json:"status"`
}

// RegistrationStats reports the registration window of ip for operators.
func (e *Engine) RegistrationStats(ip string, now time.Time) RegistrationStats {
	count := e.registrations.Count(ip, now)
	if count == 0 {
		return RegistrationStats{Status: "new"}
	}
	limit := e.registrations.Rule().Cap
	st := RegistrationStats{
		Count:          count,
		Limit:          limit,
		ResetInMinutes: minutesCeil(e.registrations.ResetIn(ip, now)),
		Status:         "active",
	}
	if count >= limit {
		st.Status = "blocked"
	}
	return st
}

// CheckLoginVelocity admits one login attempt from ip.
func (e *Engine) CheckLoginVelocity(ctx context.Context, ip string, now time.Time) bool {
	allowed := e.logins.TryAdmit(ip, now)
	recordCheck("login_velocity", allowed)
	if !allowed {
		logger.Security(ctx, "login velocity exceeded", zap.String("ip", ip))
		e.suspicion.Mark(ip, suspicion.ReasonLoginFlood, now)
	}
	return allowed
}

// LoginResetIn is how long until ip may attempt another login.
func (e *Engine) LoginResetIn(ip string, now time.Time) time.Duration {
	return e.logins.ResetIn(ip, now)
}

// AccountLockStatus reports the persisted lockout of a user. Without an
// account store every user is unlocked.
func (e *Engine) AccountLockStatus(ctx context.Context, userID uuid.UUID, now time.Time) (account.LockStatus, error) {
	if e.accounts == nil {
		return account.LockStatus{}, nil
	}
	return e.accounts.LockStatus(ctx, userID, now)
}

// RecordLoginOutcome applies a password check result to the user's lockout state.
func (e *Engine) RecordLoginOutcome(ctx context.Context, userID uuid.UUID, ip string, success bool, now time.Time) (account.LockStatus, error) {
	if e.accounts == nil {
		return account.LockStatus{}, nil
	}
	st, err := e.accounts.RecordLogin(ctx, userID, success, now)
	if err != nil {
		return st, err
	}
	if st.Locked && st.LockUntil != nil {
		e.publish(ctx, eventbus.SubjectAccountLocked, eventbus.AccountLockedData{
			UserID:    userID.String(),
			IP:        ip,
			LockUntil: *st.LockUntil,
		})
	}
	return st, nil
}

// IsDuplicateTransaction reports whether the same user paid the same amount
// inside the current time bucket within the replay TTL.
func (e *Engine) IsDuplicateTransaction(userID string, amount float64, now time.Time) bool {
	_, dup := e.replay.Check(userID, amount, now)
	recordCheck("duplicate", !dup)
	return dup
}

// DetectCardTesting records cardLast4 for ip and reports whether the address
// is cycling through cards.
func (e *Engine) DetectCardTesting(ctx context.Context, ip, cardLast4 string, now time.Time) bool {
	flagged := e.cards.Detect(ip, cardLast4, now)
	recordCheck("card_testing", !flagged)
	if flagged {
		logger.Security(ctx, "card testing detected", zap.String("ip", ip))
	}
	return flagged
}

// ValidateTransactionAmount checks amount against the cap and the order total.
func (e *Engine) ValidateTransactionAmount(amount, orderTotal float64) fraud.AmountCheck {
	return fraud.ValidateTransactionAmount(amount, orderTotal, e.limits)
}

// ScoreFraud scores a payment attempt. Medium and high results are logged,
// published and stored for manual review.
func (e *Engine) ScoreFraud(ctx context.Context, req fraud.RequestContext, userID string, amount float64, order fraud.OrderContext, now time.Time) fraud.ScoreResult {
	res := e.scorer.Score(req, userID, amount, order, now)
	fraudTierTotal.WithLabelValues(string(res.Tier)).Inc()

	if res.Tier == fraud.TierLow {
		return res
	}

	logger.Security(ctx, "payment flagged for review",
		zap.String("user_id", userID),
		zap.String("ip", req.IP),
		zap.String("tier", string(res.Tier)),
		zap.Int("score", res.Score),
		zap.Strings("reasons", res.Reasons),
		zap.Bool("blocked", res.Blocked),
	)

	e.publish(ctx, eventbus.SubjectPaymentFlagged, eventbus.PaymentFlaggedData{
		UserID:    userID,
		OrderID:   order.OrderID,
		IP:        req.IP,
		Tier:      string(res.Tier),
		Score:     res.Score,
		Reasons:   res.Reasons,
		Amount:    amount,
		Blocked:   res.Blocked,
		FlaggedAt: now,
	})
	e.storeAlert(ctx, fraud.NewReviewAlert(userID, req.IP, amount, order, res, now))
	return res
}

// CheckPromoAbuse decides whether userID may redeem code from ip.
func (e *Engine) CheckPromoAbuse(ctx context.Context, userID, ip, code string, now time.Time) fraud.PromoCheck {
	res := e.promos.Check(userID, ip, code, now)
	recordCheck("promo", !res.Abused)
	if res.Abused {
		logger.Security(ctx, "promo code rejected",
			zap.String("user_id", userID),
			zap.String("ip", ip),
			zap.String("code", code),
			zap.String("reason", res.Reason),
		)
		e.publish(ctx, eventbus.SubjectPromoAbuse, eventbus.PromoAbuseData{
			UserID:     userID,
			IP:         ip,
			Code:       code,
			Reason:     res.Reason,
			DetectedAt: now,
		})
	}
	return res
}

// ValidateOrder recomputes the order from the catalog. Tampered orders are published.
func (e *Engine) ValidateOrder(ctx context.Context, ip string, order pricing.OrderPayload) (*pricing.Result, error) {
	res, err := e.orders.ValidateOrder(ctx, order)
	if err != nil {
		return nil, err
	}
	recordCheck("order", res.IsValid)
	if res.Tampered() {
		e.publish(ctx, eventbus.SubjectPriceTampering, eventbus.PriceTamperingData{
			IP:          ip,
			ClientTotal: order.Total.String(),
			ActualTotal: res.ValidatedTotal.String(),
			Issues:      len(res.Errors),
			DetectedAt:  e.now(),
		})
	}
	return res, nil
}

// IPReport is the operator view of one address.
type IPReport struct {
	IP            string            `json:"ip"`
	Suspicious    bool              `json:"suspicious"`
	Throttled     bool              `json:"throttled"`
	Record        *suspicion.Record `json:"record,omitempty"`
	Registrations RegistrationStats `json:"registrations"`
}

// InspectIP returns everything the engine holds about ip.
func (e *Engine) InspectIP(ip string, now time.Time) IPReport {
	report := IPReport{
		IP:            ip,
		Throttled:     e.throttle.Blocked(ip, now),
		Registrations: e.RegistrationStats(ip, now),
	}
	if rec, ok := e.suspicion.Get(ip, now); ok {
		report.Record = &rec
		report.Suspicious = rec.Blocked
	}
	return report
}

func (e *Engine) onIPBlocked(rec suspicion.Record) {
	ipBlocksTotal.Inc()

	reasons := make([]string, 0, len(rec.Strikes))
	for _, s := range rec.Strikes {
		reasons = append(reasons, s.Reason)
	}

	ctx := context.Background()
	logger.Security(ctx, "ip blocked after repeated suspicious activity",
		zap.String("ip", rec.IP),
		zap.Int("strikes", rec.Count),
		zap.Strings("reasons", reasons),
	)
	apperrors.AlertOperators("ip blocked by suspicion registry",
		map[string]string{"ip": rec.IP},
		map[string]interface{}{"strikes": rec.Count, "reasons": reasons},
	)
	e.publish(ctx, eventbus.SubjectIPBlocked, eventbus.IPBlockedData{
		IP:        rec.IP,
		Strikes:   rec.Count,
		Reasons:   reasons,
		BlockedAt: rec.LastDetection,
	})
}

// publish sends an event without holding up the request.
func (e *Engine) publish(ctx context.Context, subject string, data interface{}) {
	if e.events == nil {
		return
	}
	event, err := eventbus.NewEvent(subject, e.source, data)
	if err != nil {
		logger.Warn("failed to build security event", zap.String("subject", subject), zap.Error(err))
		return
	}
	async.Go(ctx, "publish "+subject, asyncTimeout, func(ctx context.Context) error {
		return e.events.Publish(ctx, subject, event)
	})
}

func (e *Engine) storeAlert(ctx context.Context, alert *fraud.ReviewAlert) {
	if e.alerts == nil {
		return
	}
	async.Go(ctx, "store review alert", asyncTimeout, func(ctx context.Context) error {
		return e.alerts.CreateAlert(ctx, alert)
	})
}

func minutesCeil(d time.Duration) int {
	return int(math.Ceil(d.Minutes()))
}
