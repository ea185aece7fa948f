package eventbus

import "time"

// IPBlockedData is emitted when an address reaches the suspicion threshold.
type IPBlockedData struct {
	IP        string    `json:"ip"`
	Strikes   int       `json:"strikes"`
	Reasons   []string  `json:"reasons"`
	BlockedAt time.Time `json:"blocked_at"`
}

// PaymentFlaggedData is emitted for medium and high tier payments.
type PaymentFlaggedData struct {
	UserID    string    `json:"user_id"`
	OrderID   string    `json:"order_id,omitempty"`
	IP        string    `json:"ip"`
	Tier      string    `json:"tier"`
	Score     int       `json:"score"`
	Reasons   []string  `json:"reasons"`
	Amount    float64   `json:"amount"`
	Blocked   bool      `json:"blocked"`
	FlaggedAt time.Time `json:"flagged_at"`
}

// PaymentRejectedData is emitted when the payment gate refuses an attempt.
type PaymentRejectedData struct {
	UserID     string    `json:"user_id"`
	IP         string    `json:"ip"`
	Stage      string    `json:"stage"`
	Reason     string    `json:"reason"`
	Amount     float64   `json:"amount"`
	RejectedAt time.Time `json:"rejected_at"`
}

// SessionInvalidatedData is emitted when a session is destroyed by the device guard.
type SessionInvalidatedData struct {
	SessionID     string    `json:"session_id"`
	UserID        string    `json:"user_id,omitempty"`
	Reason        string    `json:"reason"`
	InvalidatedAt time.Time `json:"invalidated_at"`
}

// PriceTamperingData is emitted when a submitted order disagrees with catalog prices.
type PriceTamperingData struct {
	IP          string    `json:"ip"`
	ClientTotal string    `json:"client_total"`
	ActualTotal string    `json:"actual_total"`
	Issues      int       `json:"issues"`
	DetectedAt  time.Time `json:"detected_at"`
}

// PromoAbuseData is emitted when a promo redemption is refused.
type PromoAbuseData struct {
	UserID     string    `json:"user_id"`
	IP         string    `json:"ip"`
	Code       string    `json:"code"`
	Reason     string    `json:"reason"`
	DetectedAt time.Time `json:"detected_at"`
}

// AccountLockedData is emitted when repeated failed logins lock an account.
type AccountLockedData struct {
	UserID    string    `json:"user_id"`
	IP        string    `json:"ip"`
	LockUntil time.Time `json:"lock_until"`
}
