package pricing

import (
	"github.com/shopspring/decimal"
)

// Delivery types.
const (
	DeliveryTypeDelivery = "delivery"
	DeliveryTypePickup   = "pickup"
)

// Customization is the structured choice of options for one line item.
type Customization struct {
	Size     string   `json:"size,omitempty"`
	Crust    string   `json:"crust,omitempty"`
	Toppings []string `json:"toppings,omitempty"`
}

// LineItem is one product line as submitted by the client. Price is the
// client's claimed unit price and is never trusted.
type LineItem struct {
	ProductID     string          `json:"product_id" binding:"required"`
	Name          string          `json:"name,omitempty"`
	Quantity      int             `json:"quantity" binding:"required,gt=0"`
	Price         decimal.Decimal `json:"price"`
	Customization Customization   `json:"customization"`
}

// DeliveryInfo is the address used for delivery orders.
type DeliveryInfo struct {
	Street     string `json:"street"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code,omitempty"`
	Phone      string `json:"phone,omitempty" binding:"omitempty,phone"`
}

// PaymentInfo is the minimal payment descriptor attached to an order.
type PaymentInfo struct {
	Method    string `json:"method"`
	CardLast4 string `json:"card_last4,omitempty" binding:"omitempty,card_last4"`
}

// OrderPayload is a client-submitted order.
type OrderPayload struct {
	Items        []LineItem      `json:"items" binding:"required,min=1,dive"`
	DeliveryType string          `json:"delivery_type" binding:"required,delivery_type"`
	DeliveryInfo *DeliveryInfo   `json:"delivery_info,omitempty"`
	PaymentInfo  *PaymentInfo    `json:"payment_info,omitempty"`
	Subtotal     decimal.Decimal `json:"subtotal"`
	DeliveryFee  decimal.Decimal `json:"delivery_fee"`
	Total        decimal.Decimal `json:"total"`
}

// IssueKind classifies a validation issue.
type IssueKind string

const (
	IssueProductNotFound    IssueKind = "product_not_found"
	IssueUnavailable        IssueKind = "product_unavailable"
	IssueInvalidOption      IssueKind = "invalid_option"
	IssueInvalidQuantity    IssueKind = "invalid_quantity"
	IssuePriceMismatch      IssueKind = "price_mismatch"
	IssueDeliveryFee        IssueKind = "delivery_fee_mismatch"
	IssueTotalMismatch      IssueKind = "total_mismatch"
	IssueInvalidDelivery    IssueKind = "invalid_delivery_type"
	IssueIncompleteDelivery IssueKind = "incomplete_delivery"
	IssueMissingPayment     IssueKind = "missing_payment"
)

// Tampering reports whether the issue is a client-submitted amount that
// disagrees with the server-side computation.
func (k IssueKind) Tampering() bool {
	switch k {
	case IssuePriceMismatch, IssueDeliveryFee, IssueTotalMismatch:
		return true
	}
	return false
}

// Issue is one reason an order failed validation. Mismatches carry both the
// client and the server value so legitimate clients can resubmit.
type Issue struct {
	Kind        IssueKind        `json:"kind"`
	ProductID   string           `json:"product_id,omitempty"`
	ProductName string           `json:"product_name,omitempty"`
	Message     string           `json:"error"`
	ClientPrice *decimal.Decimal `json:"client_price,omitempty"`
	ActualPrice *decimal.Decimal `json:"actual_price,omitempty"`
	Difference  *decimal.Decimal `json:"difference,omitempty"`
}

// Result is the outcome of ValidateOrder. ValidatedSubtotal and ValidatedTotal
// are always computed from catalog data, never from the client's figures.
type Result struct {
	IsValid           bool            `json:"is_valid"`
	Errors            []Issue         `json:"errors,omitempty"`
	ValidatedSubtotal decimal.Decimal `json:"validated_subtotal"`
	DeliveryFee       decimal.Decimal `json:"delivery_fee"`
	ValidatedTotal    decimal.Decimal `json:"validated_total"`
}

// Tampered reports whether any issue is a price or total mismatch.
func (r *Result) Tampered() bool {
	for _, e := range r.Errors {
		if e.Kind.Tampering() {
			return true
		}
	}
	return false
}

func (r *Result) add(issue Issue) {
	r.Errors = append(r.Errors, issue)
}

func mismatch(kind IssueKind, msg string, client, actual decimal.Decimal) Issue {
	diff := client.Sub(actual).Abs()
	return Issue{
		Kind:        kind,
		Message:     msg,
		ClientPrice: &client,
		ActualPrice: &actual,
		Difference:  &diff,
	}
}
