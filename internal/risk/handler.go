package risk

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/richxcame/pizzaguard/internal/otp"
	"github.com/richxcame/pizzaguard/internal/pricing"
	"github.com/richxcame/pizzaguard/internal/session"
	"github.com/richxcame/pizzaguard/pkg/common"
)

// OTPService issues and verifies login codes.
type OTPService interface {
	Issue(ctx context.Context, userID, phone string, now time.Time) (*otp.Challenge, error)
	Verify(ctx context.Context, userID, code string, now time.Time) error
}

// Handler exposes the engine over HTTP.
type Handler struct {
	engine  *Engine
	otp     OTPService
	reviews ReviewQueue
}

// NewHandler creates a new risk handler. otpService may be nil, in which case
// the OTP routes are not registered.
func NewHandler(engine *Engine, otpService OTPService) *Handler {
	return &Handler{engine: engine, otp: otpService}
}

// RegisterRoutes registers the risk routes. sessions runs device binding on
// the caller's session; admin guards the operator routes.
func (h *Handler) RegisterRoutes(router *gin.Engine, sessions gin.HandlerFunc, admin ...gin.HandlerFunc) {
	api := router.Group("/api/v1/risk")
	api.Use(sessions)
	{
		api.POST("/payments/evaluate", h.EvaluatePayment)
		api.POST("/orders/validate", h.ValidateOrder)
		api.POST("/promos/check", h.CheckPromo)
		api.POST("/registrations/check", h.CheckRegistration)
		api.POST("/logins/check", h.CheckLogin)
		api.POST("/logins/outcome", h.RecordLoginOutcome)
		if h.otp != nil {
			api.POST("/logins/otp", h.IssueOTP)
			api.POST("/logins/otp/verify", h.VerifyOTP)
		}
	}

	ops := router.Group("/api/v1/admin/risk")
	ops.Use(admin...)
	{
		ops.GET("/ips/:ip", h.InspectIP)
		if h.reviews != nil {
			ops.GET("/alerts", h.ListAlerts)
			ops.POST("/alerts/:id/review", h.ResolveAlert)
		}
	}
}

// PaymentRequest is the body of the payment gate endpoint.
type PaymentRequest struct {
	UserID     string  `json:"user_id" binding:"required"`
	Amount     float64 `json:"amount"`
	OrderTotal float64 `json:"order_total"`
	OrderID    string  `json:"order_id"`
	CardLast4  string  `json:"card_last4" binding:"omitempty,card_last4"`
	NewAccount bool    `json:"new_account"`
}

// EvaluatePayment runs the payment gate for the caller.
func (h *Handler) EvaluatePayment(c *gin.Context) {
	var req PaymentRequest
	if !common.BindJSON(c, &req) {
		return
	}

	attempt := PaymentAttempt{
		UserID:     req.UserID,
		IP:         common.ClientIP(c),
		Headers:    c.Request.Header,
		Amount:     req.Amount,
		OrderTotal: req.OrderTotal,
		CardLast4:  req.CardLast4,
		OrderID:    req.OrderID,
		NewAccount: req.NewAccount,
	}
	if sess, ok := session.FromContext(c); ok {
		attempt.Session = sess
		attempt.SessionVerified = true
	}

	decision, err := h.engine.EvaluatePayment(c.Request.Context(), attempt)
	if common.HandleServiceError(c, err, "failed to evaluate payment") {
		return
	}

	if !decision.Admitted {
		appErr := common.NewAppError(statusFor(decision.ErrorCode), decision.Reason, nil).WithCode(decision.ErrorCode)
		common.AppErrorResponseWithDetails(c, appErr, gin.H{
			"stage":      decision.Stage,
			"risk_level": decision.RiskLevel,
		})
		return
	}

	common.SuccessResponse(c, decision)
}

// ValidateOrder recomputes a submitted order against the catalog.
func (h *Handler) ValidateOrder(c *gin.Context) {
	var req pricing.OrderPayload
	if !common.BindJSON(c, &req) {
		return
	}

	res, err := h.engine.ValidateOrder(c.Request.Context(), common.ClientIP(c), req)
	if common.HandleServiceError(c, err, "failed to validate order") {
		return
	}

	if !res.IsValid {
		code, msg := common.CodeValidationIncomplete, "Order validation failed"
		if res.Tampered() {
			code, msg = common.CodePriceTampering, "Order validation failed. Prices may have changed or there was an error."
		}
		common.AppErrorResponseWithDetails(c, common.NewBadRequestError(msg, nil).WithCode(code), res)
		return
	}

	common.SuccessResponse(c, res)
}

// PromoRequest is the body of the promo check endpoint.
type PromoRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Code   string `json:"code" binding:"required,promo_code"`
}

// CheckPromo decides whether the user may redeem a promo code.
func (h *Handler) CheckPromo(c *gin.Context) {
	var req PromoRequest
	if !common.BindJSON(c, &req) {
		return
	}

	res := h.engine.CheckPromoAbuse(c.Request.Context(), req.UserID, common.ClientIP(c), req.Code, h.engine.Now())
	if res.Abused {
		common.AppErrorResponse(c, common.NewForbiddenError(res.Reason).WithCode(common.CodePromoAbuse))
		return
	}

	common.SuccessResponse(c, res)
}

// CheckRegistration admits one account creation from the caller's address.
func (h *Handler) CheckRegistration(c *gin.Context) {
	d := h.engine.CheckRegistrationLimit(c.Request.Context(), common.ClientIP(c), h.engine.Now())
	if !d.Allowed {
		c.Header("Retry-After", strconv.Itoa(d.ResetInMinutes*60))
		common.AppErrorResponseWithDetails(c,
			common.NewTooManyRequestsError("Too many accounts created from this IP address. Please try again later."),
			d,
		)
		return
	}

	common.SuccessResponse(c, d)
}

// LoginCheckRequest is the body of the login pre-check endpoint.
type LoginCheckRequest struct {
	UserID string `json:"user_id" binding:"omitempty,uuid"`
}

// CheckLogin applies the per-address login velocity and the account lockout.
func (h *Handler) CheckLogin(c *gin.Context) {
	var req LoginCheckRequest
	if !common.BindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	ip := common.ClientIP(c)
	now := h.engine.Now()

	if !h.engine.CheckLoginVelocity(ctx, ip, now) {
		retry := int(h.engine.LoginResetIn(ip, now).Seconds()) + 1
		c.Header("Retry-After", strconv.Itoa(retry))
		common.AppErrorResponseWithDetails(c,
			common.NewTooManyRequestsError("Too many attempts. Please try again later."),
			gin.H{"retry_after": retry},
		)
		return
	}

	if req.UserID != "" {
		st, err := h.engine.AccountLockStatus(ctx, uuid.MustParse(req.UserID), now)
		if common.HandleServiceError(c, err, "failed to check account lock") {
			return
		}
		if st.Locked {
			common.AppErrorResponseWithDetails(c,
				common.NewForbiddenError("Account temporarily locked due to too many failed login attempts").WithCode(common.CodeAccountLocked),
				gin.H{"lock_until": st.LockUntil},
			)
			return
		}
	}

	common.SuccessResponse(c, gin.H{
		"allowed":      true,
		"otp_required": h.otp != nil,
	})
}

// LoginOutcomeRequest reports the result of a password check.
type LoginOutcomeRequest struct {
	UserID  string `json:"user_id" binding:"required,uuid"`
	Success bool   `json:"success"`
}

// RecordLoginOutcome updates the lockout state of the user.
func (h *Handler) RecordLoginOutcome(c *gin.Context) {
	var req LoginOutcomeRequest
	if !common.BindJSON(c, &req) {
		return
	}

	st, err := h.engine.RecordLoginOutcome(c.Request.Context(), uuid.MustParse(req.UserID), common.ClientIP(c), req.Success, h.engine.Now())
	if common.HandleServiceError(c, err, "failed to record login outcome") {
		return
	}

	common.SuccessResponse(c, gin.H{
		"locked":     st.Locked,
		"lock_until": st.LockUntil,
	})
}

// IssueOTPRequest starts the second login factor.
type IssueOTPRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Phone  string `json:"phone" binding:"required,phone"`
}

// IssueOTP sends a one-time code to the user's phone.
func (h *Handler) IssueOTP(c *gin.Context) {
	var req IssueOTPRequest
	if !common.BindJSON(c, &req) {
		return
	}

	ch, err := h.otp.Issue(c.Request.Context(), req.UserID, req.Phone, h.engine.Now())
	if common.HandleServiceError(c, err, "failed to send verification code") {
		return
	}

	common.SuccessResponse(c, ch)
}

// VerifyOTPRequest completes the second login factor.
type VerifyOTPRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Code   string `json:"code" binding:"required,numeric"`
}

// VerifyOTP checks a one-time code.
func (h *Handler) VerifyOTP(c *gin.Context) {
	var req VerifyOTPRequest
	if !common.BindJSON(c, &req) {
		return
	}

	err := h.otp.Verify(c.Request.Context(), req.UserID, req.Code, h.engine.Now())
	if common.HandleServiceError(c, err, "failed to verify code") {
		return
	}

	common.SuccessResponse(c, gin.H{"verified": true})
}

// InspectIP returns the operator view of one address.
func (h *Handler) InspectIP(c *gin.Context) {
	common.SuccessResponse(c, h.engine.InspectIP(c.Param("ip"), h.engine.Now()))
}

// statusFor maps a rejection kind to its HTTP status.
func statusFor(code string) int {
	switch code {
	case common.CodeRateExceeded:
		return http.StatusTooManyRequests
	case common.CodeSuspicious, common.CodeFraudBlocked, common.CodePromoAbuse, common.CodeAccountLocked:
		return http.StatusForbidden
	case common.CodeDuplicate:
		return http.StatusConflict
	case common.CodeSessionInvalidated:
		return http.StatusUnauthorized
	default:
		return http.StatusBadRequest
	}
}
