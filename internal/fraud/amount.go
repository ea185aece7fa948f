package fraud

import "math"

// Amount rejection reasons.
const (
	ReasonInvalidAmount  = "Invalid amount"
	ReasonAmountTooHigh  = "Amount exceeds maximum limit"
	ReasonAmountMismatch = "Payment amount does not match order total"
)

// AmountLimits bounds a single payment.
type AmountLimits struct {
	Max       float64
	Tolerance float64
}

// ValidateTransactionAmount checks a payment amount against the hard cap and
// the server-computed order total. It has no side effects.
func ValidateTransactionAmount(amount, orderTotal float64, limits AmountLimits) AmountCheck {
	switch {
	case amount <= 0 || math.IsNaN(amount):
		return AmountCheck{Reason: ReasonInvalidAmount}
	case amount > limits.Max:
		return AmountCheck{Reason: ReasonAmountTooHigh}
	case math.Abs(amount-orderTotal) > limits.Tolerance:
		return AmountCheck{Reason: ReasonAmountMismatch}
	}
	return AmountCheck{Valid: true}
}
